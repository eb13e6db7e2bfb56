package library

import (
	"fmt"
	"time"

	"mixdeck/internal/database"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

// MixManager maintains mix headers and their ordered, enveloped tracks.
type MixManager struct {
	db     *database.Database
	logger *logrus.Logger
	opts   Options
}

// validateMixTracks checks that tracks are densely ordered by position, that
// start times never go backwards and that every envelope fits its source.
func validateMixTracks(s database.Store, tracks []models.MixTrack) error {
	ids := make([]int64, len(tracks))
	for i, mt := range tracks {
		if mt.OrderInMix != i {
			return fmt.Errorf("%w: track at position %d has order %d", models.ErrInvalidArgument, i, mt.OrderInMix)
		}
		if i > 0 && mt.MixStartTime < tracks[i-1].MixStartTime {
			return fmt.Errorf("%w: mix start time decreases at order %d", models.ErrInvalidArgument, i)
		}
		ids[i] = mt.TrackID
	}

	sources, err := s.GetTracksByIDs(ids)
	if err != nil {
		return err
	}
	durations := make(map[int64]int64, len(sources))
	for _, t := range sources {
		durations[t.TrackID] = t.Duration
	}

	for _, mt := range tracks {
		duration, ok := durations[mt.TrackID]
		if !ok {
			return fmt.Errorf("%w: track with ID %d", models.ErrNotFound, mt.TrackID)
		}
		// Tracks whose duration could not be probed are bounded by the cutoff.
		if duration == 0 {
			duration = mt.CutoffTime
		}
		if err := mt.Validate(duration); err != nil {
			return err
		}
	}
	return nil
}

// saveMix writes header and tracks in the caller's transaction.
func saveMix(s database.Store, header models.Mix, tracks []models.MixTrack) (models.Mix, error) {
	if header.Name == "" {
		return models.Mix{}, fmt.Errorf("%w: mix without name", models.ErrInvalidArgument)
	}
	if err := validateMixTracks(s, tracks); err != nil {
		return models.Mix{}, err
	}

	header.NumberOfTracks = len(tracks)
	header.TotalDuration = models.MixDuration(tracks)
	if header.Timestamp.IsZero() {
		header.Timestamp = time.Now()
	}

	if header.MixID > 0 {
		if err := s.UpdateMix(header); err != nil {
			return models.Mix{}, err
		}
	} else {
		id, err := s.InsertMix(header)
		if err != nil {
			return models.Mix{}, err
		}
		header.MixID = id
	}

	rows := make([]models.MixTrack, len(tracks))
	for i, mt := range tracks {
		mt.MixID = header.MixID
		rows[i] = mt
	}
	if err := s.ReplaceMixTracks(header.MixID, rows); err != nil {
		return models.Mix{}, err
	}
	return header, nil
}

// renumberMix reloads a mix after some of its rows vanished, makes its order
// dense again and re-derives start times and header totals.
func renumberMix(s database.Store, mixID int64) error {
	header, err := s.GetMix(mixID)
	if err != nil {
		return err
	}
	tracks, err := s.MixTracks(mixID)
	if err != nil {
		return err
	}
	relinkMixTracks(tracks)
	_, err = saveMix(s, header, tracks)
	return err
}

// CreateOrUpdateMix saves header and replaces the mix's whole track list in
// one transaction. A header without a positive MixID creates a new mix.
// The header counters are recomputed from tracks.
func (m *MixManager) CreateOrUpdateMix(header models.Mix, tracks []models.MixTrack) (models.Mix, error) {
	var saved models.Mix
	err := m.db.Transaction(func(s database.Store) error {
		var err error
		saved, err = saveMix(s, header, tracks)
		return err
	})
	if err != nil {
		return models.Mix{}, err
	}

	m.logger.WithFields(logrus.Fields{
		"mix_id":   saved.MixID,
		"name":     saved.Name,
		"tracks":   saved.NumberOfTracks,
		"duration": saved.TotalDuration,
	}).Info("Mix saved")
	return saved, nil
}

// CreateAndSaveAutoMix derives envelopes for tracks in order and saves them
// as the content of header. It returns the saved header and mix tracks.
// A defaultCrossfadeMs of 0 uses the configured default.
func (m *MixManager) CreateAndSaveAutoMix(tracks []models.TrackInfo, header models.Mix, defaultCrossfadeMs int64) (models.Mix, []models.MixTrack, error) {
	if defaultCrossfadeMs <= 0 {
		defaultCrossfadeMs = m.opts.DefaultCrossfadeMs
	}
	derived := DeriveAutoMix(tracks, defaultCrossfadeMs, m.opts.DefaultFadeMs)

	saved, err := m.CreateOrUpdateMix(header, derived)
	if err != nil {
		return models.Mix{}, nil, err
	}
	for i := range derived {
		derived[i].MixID = saved.MixID
	}
	return saved, derived, nil
}

// RemoveTrackAt drops the track at order from a mix and relinks the rest.
func (m *MixManager) RemoveTrackAt(mixID int64, order int) (models.Mix, error) {
	var saved models.Mix
	err := m.db.Transaction(func(s database.Store) error {
		header, err := s.GetMix(mixID)
		if err != nil {
			return err
		}
		tracks, err := s.MixTracks(mixID)
		if err != nil {
			return err
		}
		if order < 0 || order >= len(tracks) {
			return fmt.Errorf("%w: mix %d has no track at order %d", models.ErrNotFound, mixID, order)
		}
		tracks = append(tracks[:order], tracks[order+1:]...)
		relinkMixTracks(tracks)
		saved, err = saveMix(s, header, tracks)
		return err
	})
	return saved, err
}

// Rename changes the name of a mix.
func (m *MixManager) Rename(mixID int64, name string) error {
	if name == "" {
		return fmt.Errorf("%w: mix without name", models.ErrInvalidArgument)
	}
	return m.db.Transaction(func(s database.Store) error {
		header, err := s.GetMix(mixID)
		if err != nil {
			return err
		}
		header.Name = name
		return s.UpdateMix(header)
	})
}

// List returns every mix header, newest first.
func (m *MixManager) List() ([]models.Mix, error) {
	var mixes []models.Mix
	err := m.db.Do(func(s database.Store) error {
		var err error
		mixes, err = s.ListMixes()
		return err
	})
	return mixes, err
}

// Get returns one mix header.
func (m *MixManager) Get(mixID int64) (models.Mix, error) {
	var mix models.Mix
	err := m.db.Do(func(s database.Store) error {
		var err error
		mix, err = s.GetMix(mixID)
		return err
	})
	return mix, err
}

// MixTracks returns the tracks of a mix ordered by orderInMix.
func (m *MixManager) MixTracks(mixID int64) ([]models.MixTrack, error) {
	var tracks []models.MixTrack
	err := m.db.Do(func(s database.Store) error {
		if _, err := s.GetMix(mixID); err != nil {
			return err
		}
		var err error
		tracks, err = s.MixTracks(mixID)
		return err
	})
	return tracks, err
}

// Remove deletes a mix.
func (m *MixManager) Remove(mixID int64) error {
	err := m.db.Do(func(s database.Store) error {
		return s.RemoveMix(mixID)
	})
	if err == nil {
		m.logger.WithField("mix_id", mixID).Info("Mix removed")
	}
	return err
}
