package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"mixdeck/internal/database"
	"mixdeck/internal/library"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestLibrary(t *testing.T) (*library.Library, []models.TrackInfo) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	lib, err := library.Open(filepath.Join(t.TempDir(), "project.db"), logger, library.Options{DefaultCrossfadeMs: 2000})
	if err != nil {
		t.Fatalf("Failed to open library: %v", err)
	}
	t.Cleanup(func() { lib.Close() })

	dir := t.TempDir()
	folder, err := lib.Folders.AddFolder(dir)
	if err != nil {
		t.Fatalf("AddFolder failed: %v", err)
	}
	var ids []int64
	err = lib.DB().Transaction(func(s database.Store) error {
		for i := 0; i < 3; i++ {
			track := models.NewTrackInfo()
			track.FolderID = folder.FolderID
			track.FilePath = filepath.Join(dir, fmt.Sprintf("%d.wav", i))
			track.Title = fmt.Sprintf("Track %d", i)
			track.Duration = 5000
			id, err := s.UpsertTrack(track)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to seed tracks: %v", err)
	}
	tracks, err := lib.Tracks(ids)
	if err != nil {
		t.Fatalf("Tracks failed: %v", err)
	}
	return lib, tracks
}

func TestLoad(t *testing.T) {
	lib, tracks := newTestLibrary(t)

	// the same track twice is allowed in a mix
	order := []models.TrackInfo{tracks[2], tracks[0], tracks[2]}
	mix, _, err := lib.Mixes.CreateAndSaveAutoMix(order, models.NewMix("Snapshot"), 0)
	if err != nil {
		t.Fatalf("CreateAndSaveAutoMix failed: %v", err)
	}

	snap, err := Load(lib.DB(), mix.MixID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.Mix.Name != "Snapshot" {
		t.Errorf("Expected mix name Snapshot, got %s", snap.Mix.Name)
	}
	if len(snap.Tracks) != 3 {
		t.Fatalf("Expected 3 mix tracks, got %d", len(snap.Tracks))
	}
	if len(snap.Infos) != 2 {
		t.Errorf("Expected 2 distinct track infos, got %d", len(snap.Infos))
	}
	for i, mt := range snap.Tracks {
		if mt.OrderInMix != i {
			t.Errorf("Expected order %d, got %d", i, mt.OrderInMix)
		}
		info, ok := snap.TrackInfo(mt.TrackID)
		if !ok || info.TrackID != order[i].TrackID {
			t.Errorf("Row %d: expected track %d in the index", i, order[i].TrackID)
		}
	}
	if snap.Duration() != mix.TotalDuration {
		t.Errorf("Expected duration %d, got %d", mix.TotalDuration, snap.Duration())
	}

	// the snapshot does not follow later edits
	if _, err := lib.Mixes.RemoveTrackAt(mix.MixID, 0); err != nil {
		t.Fatalf("RemoveTrackAt failed: %v", err)
	}
	if len(snap.Tracks) != 3 {
		t.Errorf("Snapshot changed after the mix was edited")
	}
}

func TestLoaderSetMixID(t *testing.T) {
	lib, tracks := newTestLibrary(t)

	first, _, err := lib.Mixes.CreateAndSaveAutoMix(tracks[:1], models.NewMix("One"), 0)
	if err != nil {
		t.Fatalf("CreateAndSaveAutoMix failed: %v", err)
	}
	second, _, err := lib.Mixes.CreateAndSaveAutoMix(tracks, models.NewMix("Three"), 0)
	if err != nil {
		t.Fatalf("CreateAndSaveAutoMix failed: %v", err)
	}

	loader, err := NewLoader(lib.DB(), first.MixID)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	if n := len(loader.Snapshot().Tracks); n != 1 {
		t.Fatalf("Expected 1 track, got %d", n)
	}

	if err := loader.SetMixID(second.MixID); err != nil {
		t.Fatalf("SetMixID failed: %v", err)
	}
	if name := loader.Snapshot().Mix.Name; name != "Three" {
		t.Errorf("Expected mix Three, got %s", name)
	}

	err = loader.SetMixID(9999)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if name := loader.Snapshot().Mix.Name; name != "Three" {
		t.Errorf("Expected the previous snapshot to survive a failed load, got %s", name)
	}

	if _, err := lib.Mixes.RemoveTrackAt(second.MixID, 2); err != nil {
		t.Fatalf("RemoveTrackAt failed: %v", err)
	}
	if err := loader.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if n := len(loader.Snapshot().Tracks); n != 2 {
		t.Errorf("Expected 2 tracks after reload, got %d", n)
	}
}
