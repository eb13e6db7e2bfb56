// Package project snapshots a mix for rendering: its header, its ordered
// mix tracks and the catalogue metadata of every track they reference.
package project

import (
	"fmt"

	"mixdeck/internal/database"
	"mixdeck/pkg/models"
)

// Source is the store access a snapshot is built from; *database.Database
// satisfies it.
type Source interface {
	Do(fn func(s database.Store) error) error
}

// Snapshot is a by-value copy of a mix. It is safe to use while the
// catalogue changes underneath it.
type Snapshot struct {
	Mix    models.Mix
	Tracks []models.MixTrack
	Infos  []models.TrackInfo
	byID   map[int64]models.TrackInfo
}

// Load reads mixID from src into a new Snapshot.
func Load(src Source, mixID int64) (*Snapshot, error) {
	snap := &Snapshot{}
	err := src.Do(func(s database.Store) error {
		mix, err := s.GetMix(mixID)
		if err != nil {
			return err
		}
		tracks, err := s.MixTracks(mixID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(tracks))
		seen := make(map[int64]bool, len(tracks))
		for _, mt := range tracks {
			if !seen[mt.TrackID] {
				seen[mt.TrackID] = true
				ids = append(ids, mt.TrackID)
			}
		}
		infos, err := s.GetTracksByIDs(ids)
		if err != nil {
			return err
		}
		snap.Mix, snap.Tracks, snap.Infos = mix, tracks, infos
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load mix %d: %w", mixID, err)
	}

	snap.byID = make(map[int64]models.TrackInfo, len(snap.Infos))
	for _, info := range snap.Infos {
		snap.byID[info.TrackID] = info
	}
	for _, mt := range snap.Tracks {
		if _, ok := snap.byID[mt.TrackID]; !ok {
			return nil, fmt.Errorf("load mix %d: %w: track %d", mixID, models.ErrNotFound, mt.TrackID)
		}
	}
	return snap, nil
}

// TrackInfo returns the metadata of a track referenced by the mix.
func (s *Snapshot) TrackInfo(trackID int64) (models.TrackInfo, bool) {
	info, ok := s.byID[trackID]
	return info, ok
}

// Duration is the mix length in milliseconds.
func (s *Snapshot) Duration() int64 {
	return models.MixDuration(s.Tracks)
}

// IsEmpty reports whether the mix has no tracks.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Tracks) == 0
}

// Loader holds the snapshot of one mix and reloads it on demand.
type Loader struct {
	src  Source
	snap *Snapshot
}

// NewLoader loads mixID from src.
func NewLoader(src Source, mixID int64) (*Loader, error) {
	l := &Loader{src: src}
	if err := l.SetMixID(mixID); err != nil {
		return nil, err
	}
	return l, nil
}

// SetMixID replaces the snapshot with one of mixID. On failure the previous
// snapshot is kept.
func (l *Loader) SetMixID(mixID int64) error {
	snap, err := Load(l.src, mixID)
	if err != nil {
		return err
	}
	l.snap = snap
	return nil
}

// Reload refreshes the snapshot of the current mix.
func (l *Loader) Reload() error {
	return l.SetMixID(l.snap.Mix.MixID)
}

// Snapshot returns the current snapshot.
func (l *Loader) Snapshot() *Snapshot {
	return l.snap
}
