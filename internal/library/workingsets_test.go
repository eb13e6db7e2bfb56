package library

import (
	"errors"
	"math/rand"
	"testing"

	"mixdeck/pkg/models"
)

func TestCreateWorkingSetFromQuery(t *testing.T) {
	lib := newTestLibrary(t)
	artists := []string{
		"Rock Band", "Jazz Trio", "Punk Rockers", "Folk Duo", "Classic rock",
		"Electro", "rockabilly", "Blues", "Soul", "Pop",
	}
	seedTracks(t, lib, artists, []int64{1000, 2000, 3000})

	args := models.NewQueryArgs()
	args.SearchTerms = []string{"rock"}

	want, err := lib.Query.Count(args)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if want != 4 {
		t.Fatalf("Expected 4 matching tracks, got %d", want)
	}

	ws, err := lib.WorkingSets.CreateFromQuery("Rock", args)
	if err != nil {
		t.Fatalf("CreateFromQuery failed: %v", err)
	}
	if ws.TrackCount != want {
		t.Errorf("Expected %d members, got %d", want, ws.TrackCount)
	}

	page, err := lib.Query.Query(args)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	var total int64
	for _, track := range page {
		total += track.Duration
	}
	if ws.TotalDuration != total {
		t.Errorf("Expected total duration %d, got %d", total, ws.TotalDuration)
	}

	scoped := models.NewQueryArgs()
	scoped.WorkingSetID = ws.ID
	if n, _ := lib.Query.Count(scoped); n != want {
		t.Errorf("Working-set scoped query returned %d rows, want %d", n, want)
	}
}

func TestWorkingSetMembershipIsASet(t *testing.T) {
	lib := newTestLibrary(t)
	tracks := seedTracks(t, lib, []string{"A", "B", "C", "D", "E", "F"}, []int64{1000})

	ids := []int64{tracks[0].TrackID, tracks[1].TrackID, tracks[0].TrackID, tracks[2].TrackID}
	ws, err := lib.WorkingSets.CreateFromIDs("Dupes", ids)
	if err != nil {
		t.Fatalf("CreateFromIDs failed: %v", err)
	}
	if ws.TrackCount != 3 {
		t.Fatalf("Expected 3 unique members, got %d", ws.TrackCount)
	}

	before, err := lib.WorkingSets.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		id := tracks[3+rng.Intn(3)].TrackID
		if _, err := lib.WorkingSets.AddTracks(ws.ID, []int64{id}); err != nil {
			t.Fatalf("AddTracks failed: %v", err)
		}
		if _, err := lib.WorkingSets.RemoveTracks(ws.ID, []int64{id}); err != nil {
			t.Fatalf("RemoveTracks failed: %v", err)
		}
	}

	after, err := lib.WorkingSets.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("Expected %d working sets, got %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].TrackCount != after[i].TrackCount ||
			before[i].TotalDuration != after[i].TotalDuration {
			t.Errorf("Working set changed: %+v -> %+v", before[i], after[i])
		}
	}

	members, err := lib.WorkingSets.TrackIDs(ws.ID)
	if err != nil {
		t.Fatalf("TrackIDs failed: %v", err)
	}
	seen := make(map[int64]bool)
	for _, id := range members {
		if seen[id] {
			t.Errorf("Duplicate member %d", id)
		}
		seen[id] = true
	}
}

func TestRemoveWorkingSet(t *testing.T) {
	lib := newTestLibrary(t)
	tracks := seedTracks(t, lib, []string{"A"}, []int64{1000})

	ws, err := lib.WorkingSets.CreateFromIDs("One", []int64{tracks[0].TrackID})
	if err != nil {
		t.Fatalf("CreateFromIDs failed: %v", err)
	}
	if err := lib.WorkingSets.Remove(ws.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := lib.WorkingSets.Get(ws.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := lib.Track(tracks[0].TrackID); err != nil {
		t.Errorf("Track should survive working set removal: %v", err)
	}
}
