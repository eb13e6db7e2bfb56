package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mixdeck/pkg/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertFolder(t *testing.T, db *Database, path string) int64 {
	t.Helper()
	var id int64
	err := db.Do(func(s Store) error {
		var err error
		id, err = s.InsertFolder(models.Folder{Path: path})
		return err
	})
	if err != nil {
		t.Fatalf("Failed to insert folder: %v", err)
	}
	return id
}

func insertTrack(t *testing.T, db *Database, folderID int64, path, title, artist string, duration int64) int64 {
	t.Helper()
	track := models.NewTrackInfo()
	track.FolderID = folderID
	track.FilePath = path
	track.Title = title
	track.Artist = artist
	track.Album = "Album"
	track.Duration = duration
	var id int64
	err := db.Do(func(s Store) error {
		var err error
		id, err = s.UpsertTrack(track)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to insert track %s: %v", path, err)
	}
	return id
}

func TestDatabase(t *testing.T) {
	db := newTestDatabase(t)
	folderID := insertFolder(t, db, "/music")

	t.Run("UpsertAndGetTrack", func(t *testing.T) {
		id := insertTrack(t, db, folderID, "/music/a.wav", "Test Song", "Test Artist", 180000)

		var got models.TrackInfo
		err := db.Do(func(s Store) error {
			var err error
			got, err = s.GetTrack(id)
			return err
		})
		if err != nil {
			t.Fatalf("Failed to get track by ID: %v", err)
		}
		if got.Title != "Test Song" {
			t.Errorf("Expected title %s, got %s", "Test Song", got.Title)
		}
		if got.Duration != 180000 {
			t.Errorf("Expected duration 180000, got %d", got.Duration)
		}

		again := insertTrack(t, db, folderID, "/music/a.wav", "Renamed", "Test Artist", 180000)
		if again != id {
			t.Errorf("Expected upsert to keep id %d, got %d", id, again)
		}
	})

	t.Run("TrackNotFound", func(t *testing.T) {
		err := db.Do(func(s Store) error {
			_, err := s.GetTrack(9999)
			return err
		})
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if db.LastError() == "" {
			t.Error("Expected last error to be recorded")
		}
	})

	t.Run("BeatsAndBPM", func(t *testing.T) {
		id := insertTrack(t, db, folderID, "/music/beats.wav", "Beats", "DJ", 60000)
		err := db.Do(func(s Store) error {
			next, err := s.NextTrackNeedingBPM()
			if err != nil {
				return err
			}
			if next.BPM != 0 {
				return fmt.Errorf("next track already has bpm %f", next.BPM)
			}
			return s.UpdateBPM(id, 128, []int64{0, 468, 937})
		})
		if err != nil {
			t.Fatalf("BPM update failed: %v", err)
		}
		var got models.TrackInfo
		db.Do(func(s Store) error {
			got, err = s.GetTrack(id)
			return err
		})
		if got.BPM != 128 || len(got.BeatLocations) != 3 || got.BeatLocations[2] != 937 {
			t.Errorf("Unexpected bpm data: %v %v", got.BPM, got.BeatLocations)
		}
	})
}

func TestTransactionRollback(t *testing.T) {
	db := newTestDatabase(t)

	err := db.Transaction(func(s Store) error {
		if _, err := s.InsertFolder(models.Folder{Path: "/rolled/back"}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("Expected transaction error")
	}

	err = db.Transaction(func(s Store) error {
		if _, err := s.InsertFolder(models.Folder{Path: "/panicked"}); err != nil {
			return err
		}
		panic("bad state")
	})
	if !errors.Is(err, models.ErrStore) {
		t.Fatalf("Expected ErrStore from panicking transaction, got %v", err)
	}

	var folders []models.Folder
	db.Do(func(s Store) error {
		folders, err = s.ListFolders()
		return err
	})
	if len(folders) != 0 {
		t.Errorf("Expected no folders after rollback, got %d", len(folders))
	}
}

func TestQueryTracks(t *testing.T) {
	db := newTestDatabase(t)
	rock := insertFolder(t, db, "/music/rock")
	jazz := insertFolder(t, db, "/music/jazz")

	insertTrack(t, db, rock, "/music/rock/1.mp3", "Rock Anthem", "Band A", 1000)
	insertTrack(t, db, rock, "/music/rock/2.mp3", "Ballad", "Rock Stars", 2000)
	insertTrack(t, db, jazz, "/music/jazz/1.mp3", "Blue", "Quartet", 3000)
	insertTrack(t, db, jazz, "/music/jazz/2.mp3", "100% Pure", "Trio", 4000)

	tests := []struct {
		name  string
		args  func() models.QueryArgs
		count int
	}{
		{"all", models.NewQueryArgs, 4},
		{"term", func() models.QueryArgs {
			a := models.NewQueryArgs()
			a.SearchTerms = []string{"rock"}
			return a
		}, 2},
		{"terms are anded", func() models.QueryArgs {
			a := models.NewQueryArgs()
			a.SearchTerms = []string{"rock", "ballad"}
			return a
		}, 1},
		{"like wildcards escaped", func() models.QueryArgs {
			a := models.NewQueryArgs()
			a.SearchTerms = []string{"_"}
			return a
		}, 0},
		{"folder prefix", func() models.QueryArgs {
			a := models.NewQueryArgs()
			a.FolderPath = "/music/jazz"
			return a
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.args()
			var tracks []models.TrackInfo
			var count int
			err := db.Do(func(s Store) error {
				var err error
				if tracks, err = s.QueryTracks(args); err != nil {
					return err
				}
				count, err = s.CountTracks(args)
				return err
			})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(tracks) != tt.count || count != tt.count {
				t.Errorf("Expected %d tracks, got %d (count %d)", tt.count, len(tracks), count)
			}
		})
	}

	t.Run("sort by duration descending", func(t *testing.T) {
		args := models.NewQueryArgs()
		args.SortOrder = []models.SortKey{{Column: models.ColumnDuration}}
		var tracks []models.TrackInfo
		db.Do(func(s Store) error {
			var err error
			tracks, err = s.QueryTracks(args)
			return err
		})
		if len(tracks) != 4 || tracks[0].Duration != 4000 || tracks[3].Duration != 1000 {
			t.Errorf("Unexpected order: %+v", tracks)
		}
	})
}

func TestFolderRemovalCascades(t *testing.T) {
	db := newTestDatabase(t)
	folderID := insertFolder(t, db, "/music")
	trackID := insertTrack(t, db, folderID, "/music/x.wav", "X", "Y", 1000)

	err := db.Transaction(func(s Store) error {
		wsID, err := s.InsertWorkingSet(models.WorkingSet{Name: "set"})
		if err != nil {
			return err
		}
		if err := s.AddWorkingSetTracks(wsID, []int64{trackID}); err != nil {
			return err
		}
		return s.RemoveFolder(folderID)
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	err = db.Do(func(s Store) error {
		_, err := s.GetTrack(trackID)
		return err
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected track to be removed with its folder, got %v", err)
	}
}

func TestMixTracksRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	folderID := insertFolder(t, db, "/music")
	a := insertTrack(t, db, folderID, "/music/a.wav", "A", "X", 5000)
	b := insertTrack(t, db, folderID, "/music/b.wav", "B", "X", 5000)

	rows := []models.MixTrack{
		{TrackID: a, OrderInMix: 0, FadeInEnd: 2000, FadeOutStart: 3000, FadeOutEnd: 5000, CutoffTime: 5000,
			VolumeAtStart: models.VolumeNormalization, VolumeAtEnd: models.VolumeNormalization},
		{TrackID: b, OrderInMix: 1, FadeInEnd: 2000, FadeOutStart: 3000, FadeOutEnd: 5000, CutoffTime: 5000,
			VolumeAtStart: models.VolumeNormalization, VolumeAtEnd: models.VolumeNormalization,
			MixStartTime: 3000, CrossfadeDuration: 2000},
	}

	var mixID int64
	err := db.Transaction(func(s Store) error {
		var err error
		mix := models.NewMix("Set")
		mix.Timestamp = time.UnixMilli(1700000000000)
		if mixID, err = s.InsertMix(mix); err != nil {
			return err
		}
		return s.ReplaceMixTracks(mixID, rows)
	})
	if err != nil {
		t.Fatalf("Failed to save mix: %v", err)
	}

	var got []models.MixTrack
	var orders []int
	err = db.Do(func(s Store) error {
		var err error
		if got, err = s.MixTracks(mixID); err != nil {
			return err
		}
		args := models.NewQueryArgs()
		args.MixID = mixID
		_, orders, err = s.QueryMixView(args)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to load mix: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 mix tracks, got %d", len(got))
	}
	for i := range rows {
		want := rows[i]
		want.MixID = mixID
		if got[i] != want {
			t.Errorf("Row %d: expected %+v, got %+v", i, want, got[i])
		}
	}
	if len(orders) != 2 || orders[0] != 0 || orders[1] != 1 {
		t.Errorf("Expected mix view in order, got %v", orders)
	}
}
