package metadata

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"mixdeck/internal/audio"

	"github.com/sirupsen/logrus"
)

func writeWAV(t *testing.T, path string, rate, channels, frames int) {
	t.Helper()
	w, err := audio.CreateWAV(path, audio.Format{SampleRate: rate, Channels: channels})
	if err != nil {
		t.Fatalf("CreateWAV failed: %v", err)
	}
	data := make([]float32, frames*channels)
	for i := range data {
		data[i] = float32(i%100) / 200
	}
	if err := w.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func newTestExtractor() *Extractor {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewExtractor(nil, logger)
}

func TestExtractWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Sunrise Edit.wav")
	writeWAV(t, path, 22050, 1, 44100)

	res, err := newTestExtractor().ExtractFromFile(path)
	if err != nil {
		t.Fatalf("ExtractFromFile failed: %v", err)
	}
	track := res.Track

	if track.Title != "Sunrise Edit" {
		t.Errorf("Expected title from file name, got %q", track.Title)
	}
	if track.Duration != 2000 {
		t.Errorf("Expected duration 2000 ms, got %d", track.Duration)
	}
	if track.SampleRate != 22050 || track.Channels != 1 {
		t.Errorf("Expected 22050 Hz mono, got %d Hz %d channels", track.SampleRate, track.Channels)
	}
	if track.Bitrate != 352 {
		t.Errorf("Expected 352 kbit/s, got %d", track.Bitrate)
	}
	if track.CodecName != "WAV" {
		t.Errorf("Expected codec WAV, got %q", track.CodecName)
	}
	if track.FileSizeBytes != 44+2*44100 {
		t.Errorf("Expected size %d, got %d", 44+2*44100, track.FileSizeBytes)
	}
	if track.TrackID != -1 || track.FolderID != -1 {
		t.Errorf("Expected unset ids, got track %d folder %d", track.TrackID, track.FolderID)
	}
	if len(track.ContentHash) != 64 {
		t.Errorf("Expected a 256-bit hex hash, got %q", track.ContentHash)
	}

	t.Run("hash follows content", func(t *testing.T) {
		other := filepath.Join(dir, "copy.wav")
		writeWAV(t, other, 22050, 1, 44100)
		res2, err := newTestExtractor().ExtractFromFile(other)
		if err != nil {
			t.Fatalf("ExtractFromFile failed: %v", err)
		}
		if res2.Track.ContentHash != track.ContentHash {
			t.Error("Expected identical files to hash the same")
		}

		writeWAV(t, other, 22050, 1, 22050)
		res3, err := newTestExtractor().ExtractFromFile(other)
		if err != nil {
			t.Fatalf("ExtractFromFile failed: %v", err)
		}
		if res3.Track.ContentHash == track.ContentHash {
			t.Error("Expected different files to hash differently")
		}
	})
}

func TestExtractUnreadableStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.flac")
	if err := os.WriteFile(path, []byte("not really flac"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	res, err := newTestExtractor().ExtractFromFile(path)
	if err != nil {
		t.Fatalf("Expected extraction to tolerate a broken stream, got %v", err)
	}
	if res.Track.Duration != 0 {
		t.Errorf("Expected duration 0, got %d", res.Track.Duration)
	}
	if res.Track.Title != "broken" {
		t.Errorf("Expected title broken, got %q", res.Track.Title)
	}

	if _, err := newTestExtractor().ExtractFromFile(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestIsAudioFile(t *testing.T) {
	e := newTestExtractor()
	tests := map[string]bool{
		"a.mp3":      true,
		"b.FLAC":     true,
		"c.wav":      true,
		"d.ogg":      false,
		"e":          false,
		"f.mp3.part": false,
	}
	for path, want := range tests {
		if got := e.IsAudioFile(path); got != want {
			t.Errorf("IsAudioFile(%q): expected %v, got %v", path, want, got)
		}
	}
}

func TestSplitGenres(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"House", []string{"House"}},
		{"House; Deep House", []string{"House", "Deep House"}},
		{"Techno/Minimal, Acid", []string{"Techno", "Minimal", "Acid"}},
		{"  ", nil},
	}
	for _, tt := range tests {
		if got := SplitGenres(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitGenres(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
