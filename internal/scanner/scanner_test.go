package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"mixdeck/internal/audio"
	"mixdeck/internal/database"
	"mixdeck/internal/library"
	"mixdeck/pkg/models"

	"github.com/bogem/id3v2/v2"
	"github.com/sirupsen/logrus"
)

type fixture struct {
	t       *testing.T
	lib     *library.Library
	scanner *Scanner
	dir     string
	folder  models.Folder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	lib, err := library.Open(filepath.Join(t.TempDir(), "scan.db"), logger, library.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to open library: %v", err)
	}
	t.Cleanup(func() { lib.Close() })

	dir := t.TempDir()
	folder, err := lib.Folders.AddFolder(dir)
	if err != nil {
		t.Fatalf("AddFolder failed: %v", err)
	}
	return &fixture{t: t, lib: lib, scanner: New(lib, nil, logger, 2), dir: dir, folder: folder}
}

func (f *fixture) writeWAV(rel string, frames int) string {
	f.t.Helper()
	path := filepath.Join(f.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		f.t.Fatalf("MkdirAll failed: %v", err)
	}
	w, err := audio.CreateWAV(path, audio.Format{SampleRate: 44100, Channels: 2})
	if err != nil {
		f.t.Fatalf("CreateWAV failed: %v", err)
	}
	if err := w.Write(make([]float32, frames*2)); err != nil {
		f.t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		f.t.Fatalf("Close failed: %v", err)
	}
	return path
}

func (f *fixture) tracks() map[string]models.TrackInfo {
	f.t.Helper()
	var tracks []models.TrackInfo
	err := f.lib.DB().Do(func(s database.Store) error {
		var err error
		tracks, err = s.TracksInFolder(f.folder.FolderID)
		return err
	})
	if err != nil {
		f.t.Fatalf("TracksInFolder failed: %v", err)
	}
	byName := make(map[string]models.TrackInfo, len(tracks))
	for _, t := range tracks {
		rel, _ := filepath.Rel(f.dir, t.FilePath)
		byName[rel] = t
	}
	return byName
}

func (f *fixture) scan(force bool) Stats {
	f.t.Helper()
	stats, err := f.scanner.ScanFolder(context.Background(), f.folder, force)
	if err != nil {
		f.t.Fatalf("ScanFolder failed: %v", err)
	}
	return stats
}

func TestScanFolder(t *testing.T) {
	f := newFixture(t)
	f.writeWAV("one.wav", 44100)
	f.writeWAV("two.wav", 22050)
	f.writeWAV("sub/three.wav", 4410)
	f.writeWAV(".hidden/four.wav", 4410)
	f.writeWAV(".five.wav", 4410)
	os.WriteFile(filepath.Join(f.dir, "notes.txt"), []byte("not audio"), 0644)

	stats := f.scan(false)
	if stats.Added != 3 || stats.NumFiles != 3 {
		t.Fatalf("Expected 3 files added, got %+v", stats)
	}

	tracks := f.tracks()
	var names []string
	for name := range tracks {
		names = append(names, name)
	}
	sort.Strings(names)
	want := []string{"one.wav", "sub/three.wav", "two.wav"}
	if len(names) != len(want) {
		t.Fatalf("Expected tracks %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != filepath.FromSlash(want[i]) {
			t.Errorf("Expected track %s, got %s", want[i], names[i])
		}
	}
	if d := tracks["one.wav"].Duration; d != 1000 {
		t.Errorf("Expected duration 1000 ms, got %d", d)
	}
	if tracks["one.wav"].FolderID != f.folder.FolderID {
		t.Errorf("Expected folder id %d, got %d", f.folder.FolderID, tracks["one.wav"].FolderID)
	}

	folder, err := f.lib.Folders.Folder(f.folder.FolderID)
	if err != nil {
		t.Fatalf("Folder failed: %v", err)
	}
	if folder.NumFiles != 3 || folder.LastScannedTime.IsZero() {
		t.Errorf("Expected folder stats updated, got %+v", folder)
	}

	t.Run("unchanged files are skipped", func(t *testing.T) {
		stats := f.scan(false)
		if stats.Unchanged != 3 || stats.Added+stats.Updated != 0 {
			t.Errorf("Expected 3 unchanged, got %+v", stats)
		}
	})

	t.Run("changed and removed files", func(t *testing.T) {
		id := tracks["two.wav"].TrackID
		f.writeWAV("two.wav", 44100)
		if err := os.Remove(filepath.Join(f.dir, "sub", "three.wav")); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}

		stats := f.scan(false)
		if stats.Updated != 1 || stats.Missing != 1 || stats.Unchanged != 1 {
			t.Errorf("Expected 1 updated, 1 missing, 1 unchanged, got %+v", stats)
		}
		after := f.tracks()
		if after["two.wav"].TrackID != id {
			t.Errorf("Expected the track id to survive a rescan, got %d want %d", after["two.wav"].TrackID, id)
		}
		if after["two.wav"].Duration != 1000 {
			t.Errorf("Expected updated duration 1000, got %d", after["two.wav"].Duration)
		}
		if !after[filepath.Join("sub", "three.wav")].IsMissing {
			t.Error("Expected the removed file to be marked missing")
		}

		stats = f.scan(false)
		if stats.Missing != 0 {
			t.Errorf("Expected missing tracks to be counted once, got %d", stats.Missing)
		}
	})

	t.Run("force rescans everything", func(t *testing.T) {
		stats := f.scan(true)
		if stats.Updated != 2 || stats.Unchanged != 0 {
			t.Errorf("Expected 2 updated, got %+v", stats)
		}
	})

	t.Run("missing file comes back", func(t *testing.T) {
		f.writeWAV("sub/three.wav", 4410)
		f.scan(false)
		if f.tracks()[filepath.Join("sub", "three.wav")].IsMissing {
			t.Error("Expected a returning file to be present again")
		}
	})
}

func TestScanGenresBecomeTags(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "tagged.mp3")
	if err := os.WriteFile(path, make([]byte, 512), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	writeID3 := func(title string) {
		tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("id3v2.Open failed: %v", err)
		}
		tag.SetDefaultEncoding(id3v2.EncodingUTF8)
		tag.SetTitle(title)
		tag.SetArtist("Someone")
		tag.SetGenre("House; Deep House")
		if err := tag.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		tag.Close()
	}
	writeID3("First")

	f.scan(false)
	track := f.tracks()["tagged.mp3"]
	if track.Title != "First" || track.Artist != "Someone" {
		t.Errorf("Expected tags read, got title %q artist %q", track.Title, track.Artist)
	}
	if names := f.lib.Tags.TagNames(track.TagIDs); len(names) != 2 {
		t.Fatalf("Expected 2 genre tags, got %v", names)
	}

	userTag, err := f.lib.Tags.GetOrCreateTagID("favourite", true)
	if err != nil {
		t.Fatalf("GetOrCreateTagID failed: %v", err)
	}
	err = f.lib.DB().Do(func(s database.Store) error {
		return s.SetTrackTags(track.TrackID, append(track.TagIDs, userTag))
	})
	if err != nil {
		t.Fatalf("SetTrackTags failed: %v", err)
	}

	writeID3("Second, longer title")
	f.scan(false)
	track = f.tracks()["tagged.mp3"]
	if track.Title != "Second, longer title" {
		t.Errorf("Expected updated title, got %q", track.Title)
	}
	if len(track.TagIDs) != 3 {
		t.Errorf("Expected user tag kept next to genres, got %v", f.lib.Tags.TagNames(track.TagIDs))
	}
}

func TestScanCancelled(t *testing.T) {
	f := newFixture(t)
	f.writeWAV("one.wav", 441)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.scanner.ScanFolder(ctx, f.folder, false); !errors.Is(err, models.ErrCancelled) {
		t.Errorf("Expected ErrCancelled, got %v", err)
	}
}

func TestScanFileAndMissing(t *testing.T) {
	f := newFixture(t)
	path := f.writeWAV("single.wav", 4410)

	if err := f.scanner.ScanFile(f.folder, path); err != nil {
		t.Fatalf("ScanFile failed: %v", err)
	}
	if _, ok := f.tracks()["single.wav"]; !ok {
		t.Fatal("Expected the file to be catalogued")
	}
	if err := f.scanner.ScanFile(f.folder, filepath.Join(f.dir, "x.txt")); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for a non-audio file, got %v", err)
	}

	if err := f.scanner.MarkFileMissing(path); err != nil {
		t.Fatalf("MarkFileMissing failed: %v", err)
	}
	if !f.tracks()["single.wav"].IsMissing {
		t.Error("Expected the track to be marked missing")
	}
	if err := f.scanner.MarkFileMissing(filepath.Join(f.dir, "never.wav")); err != nil {
		t.Errorf("Expected unknown paths to be ignored, got %v", err)
	}
}

func TestWatcher(t *testing.T) {
	f := newFixture(t)
	w, err := NewWatcher(f.scanner, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Close()

	waitFor := func(cond func(map[string]models.TrackInfo) bool) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for !cond(f.tracks()) {
			if time.Now().After(deadline) {
				t.Fatal("Watcher did not update the catalogue in time")
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	path := f.writeWAV("live.wav", 4410)
	waitFor(func(m map[string]models.TrackInfo) bool {
		t, ok := m["live.wav"]
		return ok && t.Duration == 100
	})

	os.Remove(path)
	waitFor(func(m map[string]models.TrackInfo) bool { return m["live.wav"].IsMissing })

	f.writeWAV("newdir/deep.wav", 4410)
	waitFor(func(m map[string]models.TrackInfo) bool {
		_, ok := m[filepath.Join("newdir", "deep.wav")]
		return ok
	})
}

func TestRescanTask(t *testing.T) {
	f := newFixture(t)
	f.writeWAV("one.wav", 4410)

	task := NewRescanTask(f.scanner, time.Hour)
	clock := time.Now()
	task.now = func() time.Time { return clock }

	if err := task.ProcessWork(context.Background()); err != nil {
		t.Fatalf("ProcessWork failed: %v", err)
	}
	if len(f.tracks()) != 1 {
		t.Fatalf("Expected the folder to be scanned, got %d tracks", len(f.tracks()))
	}

	f.writeWAV("two.wav", 4410)
	if err := task.ProcessWork(context.Background()); err != nil {
		t.Fatalf("ProcessWork failed: %v", err)
	}
	if len(f.tracks()) != 1 {
		t.Error("Expected no rescan within the interval")
	}

	clock = clock.Add(2 * time.Hour)
	if err := task.ProcessWork(context.Background()); err != nil {
		t.Fatalf("ProcessWork failed: %v", err)
	}
	if len(f.tracks()) != 2 {
		t.Errorf("Expected the rescan to pick up the new file, got %d tracks", len(f.tracks()))
	}
}
