package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"mixdeck/internal/database"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	lib, err := Open(filepath.Join(t.TempDir(), "library.db"), logger, Options{DefaultCrossfadeMs: 2000})
	if err != nil {
		t.Fatalf("Failed to open library: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib
}

// seedTracks registers a folder and inserts one track per artist with the
// given durations, returning the stored tracks in insertion order.
func seedTracks(t *testing.T, lib *Library, artists []string, durations []int64) []models.TrackInfo {
	t.Helper()
	dir := t.TempDir()
	folder, err := lib.Folders.AddFolder(dir)
	if err != nil {
		t.Fatalf("Failed to add folder: %v", err)
	}

	var ids []int64
	err = lib.DB().Transaction(func(s database.Store) error {
		for i, artist := range artists {
			track := models.NewTrackInfo()
			track.FolderID = folder.FolderID
			track.FilePath = filepath.Join(dir, fmt.Sprintf("%02d.wav", i))
			track.Title = fmt.Sprintf("Song %d", i)
			track.Artist = artist
			track.Duration = durations[i%len(durations)]
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
		t.Fatalf("Failed to load seeded tracks: %v", err)
	}
	return tracks
}

func TestTracksPreservesOrder(t *testing.T) {
	lib := newTestLibrary(t)
	tracks := seedTracks(t, lib, []string{"A", "B", "C"}, []int64{1000})

	got, err := lib.Tracks([]int64{tracks[2].TrackID, tracks[0].TrackID})
	if err != nil {
		t.Fatalf("Tracks failed: %v", err)
	}
	if got[0].Artist != "C" || got[1].Artist != "A" {
		t.Errorf("Expected C, A; got %s, %s", got[0].Artist, got[1].Artist)
	}

	if _, err := lib.Tracks([]int64{tracks[0].TrackID, 4242}); err == nil {
		t.Error("Expected error for unknown track id")
	}
}

func TestQueryEngine(t *testing.T) {
	lib := newTestLibrary(t)
	seedTracks(t, lib, []string{"Rock One", "Jazz", "Rock Two"}, []int64{1000, 2000, 3000})

	args := models.NewQueryArgs()
	args.SearchTerms = []string{"rock"}

	count, err := lib.Query.Count(args)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rock tracks, got %d", count)
	}

	total, err := lib.Query.TotalDuration(args)
	if err != nil {
		t.Fatalf("TotalDuration failed: %v", err)
	}
	if total != 4000 {
		t.Errorf("Expected 4000 ms, got %d", total)
	}

	t.Run("stream visits every match", func(t *testing.T) {
		var seen []string
		err := lib.Query.Stream(context.Background(), models.NewQueryArgs(), func(track models.TrackInfo) error {
			seen = append(seen, track.Artist)
			return nil
		})
		if err != nil {
			t.Fatalf("Stream failed: %v", err)
		}
		if len(seen) != 3 {
			t.Errorf("Expected 3 tracks, got %v", seen)
		}
	})

	t.Run("callback error stops the stream", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := lib.Query.Stream(context.Background(), models.NewQueryArgs(), func(models.TrackInfo) error {
			calls++
			return stop
		})
		if !errors.Is(err, stop) || calls != 1 {
			t.Errorf("Expected stop after 1 call, got %v after %d", err, calls)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := lib.Query.Stream(ctx, models.NewQueryArgs(), func(models.TrackInfo) error { return nil })
		if !errors.Is(err, models.ErrCancelled) {
			t.Errorf("Expected ErrCancelled, got %v", err)
		}
	})
}
