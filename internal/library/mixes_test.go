package library

import (
	"errors"
	"math/rand"
	"testing"

	"mixdeck/pkg/models"
)

// randomMixTracks builds a valid, densely ordered track list over tracks.
func randomMixTracks(rng *rand.Rand, tracks []models.TrackInfo) []models.MixTrack {
	n := rng.Intn(len(tracks) + 1)
	result := make([]models.MixTrack, n)
	var start int64
	for i := 0; i < n; i++ {
		src := tracks[rng.Intn(len(tracks))]
		d := src.Duration
		points := make([]int64, 6)
		for j := range points {
			points[j] = rng.Int63n(d + 1)
		}
		for a := 1; a < len(points); a++ {
			for b := a; b > 0 && points[b] < points[b-1]; b-- {
				points[b], points[b-1] = points[b-1], points[b]
			}
		}
		start += rng.Int63n(5000)
		result[i] = models.MixTrack{
			MixID:             models.UnsetID,
			TrackID:           src.TrackID,
			OrderInMix:        i,
			SilenceStart:      points[0],
			FadeInStart:       points[1],
			FadeInEnd:         points[2],
			FadeOutStart:      points[3],
			FadeOutEnd:        points[4],
			CutoffTime:        points[5],
			VolumeAtStart:     rng.Int63n(models.VolumeNormalization + 1),
			VolumeAtEnd:       rng.Int63n(models.VolumeNormalization + 1),
			MixStartTime:      start,
			CrossfadeDuration: rng.Int63n(3000),
		}
	}
	return result
}

func TestCreateOrUpdateMixRoundTrip(t *testing.T) {
	lib := newTestLibrary(t)
	tracks := seedTracks(t, lib, []string{"A", "B", "C", "D"}, []int64{30000, 45000, 60000})
	rng := rand.New(rand.NewSource(1))

	header := models.NewMix("Property")
	for run := 0; run < 25; run++ {
		want := randomMixTracks(rng, tracks)

		saved, err := lib.Mixes.CreateOrUpdateMix(header, want)
		if err != nil {
			t.Fatalf("run %d: CreateOrUpdateMix failed: %v", run, err)
		}
		header = saved

		got, err := lib.Mixes.MixTracks(saved.MixID)
		if err != nil {
			t.Fatalf("run %d: MixTracks failed: %v", run, err)
		}
		if len(got) != len(want) {
			t.Fatalf("run %d: expected %d tracks, got %d", run, len(want), len(got))
		}
		for i := range want {
			w := want[i]
			w.MixID = saved.MixID
			if got[i] != w {
				t.Errorf("run %d row %d: expected %+v, got %+v", run, i, w, got[i])
			}
		}

		stored, err := lib.Mixes.Get(saved.MixID)
		if err != nil {
			t.Fatalf("run %d: Get failed: %v", run, err)
		}
		if stored.NumberOfTracks != len(want) {
			t.Errorf("run %d: expected %d tracks in header, got %d", run, len(want), stored.NumberOfTracks)
		}
		if stored.TotalDuration != models.MixDuration(want) {
			t.Errorf("run %d: expected total duration %d, got %d", run, models.MixDuration(want), stored.TotalDuration)
		}
	}

	mixes, err := lib.Mixes.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(mixes) != 1 {
		t.Errorf("Expected updates to reuse one mix, got %d", len(mixes))
	}
}

func TestCreateOrUpdateMixRejectsBadTracks(t *testing.T) {
	lib := newTestLibrary(t)
	tracks := seedTracks(t, lib, []string{"A"}, []int64{10000})
	id := tracks[0].TrackID

	tests := []struct {
		name   string
		tracks []models.MixTrack
		kind   error
	}{
		{"gap in order", []models.MixTrack{{TrackID: id, OrderInMix: 1, CutoffTime: 1000, FadeOutEnd: 1000}}, models.ErrInvalidArgument},
		{"envelope out of order", []models.MixTrack{{TrackID: id, FadeInStart: 500, FadeInEnd: 100, CutoffTime: 1000, FadeOutStart: 600, FadeOutEnd: 1000}}, models.ErrInvalidArgument},
		{"cutoff past source", []models.MixTrack{{TrackID: id, FadeOutEnd: 20000, FadeOutStart: 20000, CutoffTime: 20000}}, models.ErrInvalidArgument},
		{"unknown track", []models.MixTrack{{TrackID: 999, CutoffTime: 10}}, models.ErrNotFound},
		{"start time decreases", []models.MixTrack{
			{TrackID: id, OrderInMix: 0, MixStartTime: 500},
			{TrackID: id, OrderInMix: 1, MixStartTime: 100},
		}, models.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lib.Mixes.CreateOrUpdateMix(models.NewMix(tt.name), tt.tracks)
			if !errors.Is(err, tt.kind) {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
		})
	}

	mixes, _ := lib.Mixes.List()
	if len(mixes) != 0 {
		t.Errorf("Failed saves must not leave mixes behind, found %d", len(mixes))
	}
}

func TestCreateAndSaveAutoMix(t *testing.T) {
	lib := newTestLibrary(t)
	tracks := seedTracks(t, lib, []string{"A", "B"}, []int64{5000})

	mix, derived, err := lib.Mixes.CreateAndSaveAutoMix(tracks, models.NewMix("Auto"), 2000)
	if err != nil {
		t.Fatalf("CreateAndSaveAutoMix failed: %v", err)
	}
	if mix.TotalDuration != 8000 || mix.NumberOfTracks != 2 {
		t.Errorf("Unexpected header: %+v", mix)
	}
	if derived[1].MixStartTime != 3000 || derived[1].MixID != mix.MixID {
		t.Errorf("Unexpected derived track: %+v", derived[1])
	}
}

func TestRemoveTrackAt(t *testing.T) {
	lib := newTestLibrary(t)
	tracks := seedTracks(t, lib, []string{"A", "B", "C"}, []int64{5000})

	mix, _, err := lib.Mixes.CreateAndSaveAutoMix(tracks, models.NewMix("Three"), 2000)
	if err != nil {
		t.Fatalf("CreateAndSaveAutoMix failed: %v", err)
	}

	mix, err = lib.Mixes.RemoveTrackAt(mix.MixID, 1)
	if err != nil {
		t.Fatalf("RemoveTrackAt failed: %v", err)
	}
	got, _ := lib.Mixes.MixTracks(mix.MixID)
	if len(got) != 2 || mix.NumberOfTracks != 2 {
		t.Fatalf("Expected 2 tracks, got %d (header %d)", len(got), mix.NumberOfTracks)
	}
	if got[1].TrackID != tracks[2].TrackID || got[1].OrderInMix != 1 || got[1].MixStartTime != 3000 {
		t.Errorf("Unexpected relinked track: %+v", got[1])
	}
	if mix.TotalDuration != 8000 {
		t.Errorf("Expected total 8000 after removal, got %d", mix.TotalDuration)
	}

	if _, err := lib.Mixes.RemoveTrackAt(mix.MixID, 5); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing order, got %v", err)
	}
}

func TestRemoveFolderRenumbersMixes(t *testing.T) {
	lib := newTestLibrary(t)
	first := seedTracks(t, lib, []string{"A"}, []int64{5000})
	second := seedTracks(t, lib, []string{"B", "C"}, []int64{5000})

	all := []models.TrackInfo{second[0], first[0], second[1]}
	mix, _, err := lib.Mixes.CreateAndSaveAutoMix(all, models.NewMix("Mixed"), 2000)
	if err != nil {
		t.Fatalf("CreateAndSaveAutoMix failed: %v", err)
	}

	if err := lib.Folders.RemoveFolder(first[0].FolderID); err != nil {
		t.Fatalf("RemoveFolder failed: %v", err)
	}

	got, err := lib.Mixes.MixTracks(mix.MixID)
	if err != nil {
		t.Fatalf("MixTracks failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 remaining tracks, got %d", len(got))
	}
	for i, mt := range got {
		if mt.OrderInMix != i {
			t.Errorf("Expected dense order, got %d at %d", mt.OrderInMix, i)
		}
	}
	header, _ := lib.Mixes.Get(mix.MixID)
	if header.NumberOfTracks != 2 {
		t.Errorf("Expected header to count 2 tracks, got %d", header.NumberOfTracks)
	}
}
