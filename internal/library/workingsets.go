package library

import (
	"fmt"
	"time"

	"mixdeck/internal/database"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

// WorkingSetManager maintains named track collections.
type WorkingSetManager struct {
	db     *database.Database
	logger *logrus.Logger
}

// CreateFromQuery creates a working set holding every track the query
// matches, ignoring its paging.
func (m *WorkingSetManager) CreateFromQuery(name string, args models.QueryArgs) (models.WorkingSet, error) {
	if name == "" {
		return models.WorkingSet{}, fmt.Errorf("%w: working set without name", models.ErrInvalidArgument)
	}

	var ws models.WorkingSet
	err := m.db.Transaction(func(s database.Store) error {
		id, err := s.InsertWorkingSet(models.WorkingSet{Name: name, CreatedAt: time.Now()})
		if err != nil {
			return err
		}
		if _, err := s.InsertWorkingSetTracksFromQuery(id, args); err != nil {
			return err
		}
		ws, err = s.RecountWorkingSet(id)
		return err
	})
	if err != nil {
		return models.WorkingSet{}, err
	}

	m.logger.WithFields(logrus.Fields{
		"working_set_id": ws.ID,
		"name":           ws.Name,
		"tracks":         ws.TrackCount,
	}).Info("Working set created from query")
	return ws, nil
}

// CreateFromIDs creates a working set from explicit track ids. Duplicate ids
// are stored once.
func (m *WorkingSetManager) CreateFromIDs(name string, trackIDs []int64) (models.WorkingSet, error) {
	if name == "" {
		return models.WorkingSet{}, fmt.Errorf("%w: working set without name", models.ErrInvalidArgument)
	}

	var ws models.WorkingSet
	err := m.db.Transaction(func(s database.Store) error {
		id, err := s.InsertWorkingSet(models.WorkingSet{Name: name, CreatedAt: time.Now()})
		if err != nil {
			return err
		}
		if err := s.AddWorkingSetTracks(id, trackIDs); err != nil {
			return err
		}
		ws, err = s.RecountWorkingSet(id)
		return err
	})
	if err != nil {
		return models.WorkingSet{}, err
	}

	m.logger.WithFields(logrus.Fields{
		"working_set_id": ws.ID,
		"name":           ws.Name,
		"tracks":         ws.TrackCount,
	}).Info("Working set created")
	return ws, nil
}

// AddTracks adds tracks to a working set. Tracks already present are left
// alone.
func (m *WorkingSetManager) AddTracks(wsID int64, trackIDs []int64) (models.WorkingSet, error) {
	var ws models.WorkingSet
	err := m.db.Transaction(func(s database.Store) error {
		if _, err := s.GetWorkingSet(wsID); err != nil {
			return err
		}
		if err := s.AddWorkingSetTracks(wsID, trackIDs); err != nil {
			return err
		}
		var err error
		ws, err = s.RecountWorkingSet(wsID)
		return err
	})
	return ws, err
}

// RemoveTracks removes tracks from a working set.
func (m *WorkingSetManager) RemoveTracks(wsID int64, trackIDs []int64) (models.WorkingSet, error) {
	var ws models.WorkingSet
	err := m.db.Transaction(func(s database.Store) error {
		if _, err := s.GetWorkingSet(wsID); err != nil {
			return err
		}
		if err := s.RemoveWorkingSetTracks(wsID, trackIDs); err != nil {
			return err
		}
		var err error
		ws, err = s.RecountWorkingSet(wsID)
		return err
	})
	return ws, err
}

// Remove deletes a working set. Its tracks stay in the catalogue.
func (m *WorkingSetManager) Remove(wsID int64) error {
	err := m.db.Do(func(s database.Store) error {
		return s.RemoveWorkingSet(wsID)
	})
	if err == nil {
		m.logger.WithField("working_set_id", wsID).Info("Working set removed")
	}
	return err
}

// List returns every working set header.
func (m *WorkingSetManager) List() ([]models.WorkingSet, error) {
	var sets []models.WorkingSet
	err := m.db.Do(func(s database.Store) error {
		var err error
		sets, err = s.ListWorkingSets()
		return err
	})
	return sets, err
}

// Get returns one working set header.
func (m *WorkingSetManager) Get(wsID int64) (models.WorkingSet, error) {
	var ws models.WorkingSet
	err := m.db.Do(func(s database.Store) error {
		var err error
		ws, err = s.GetWorkingSet(wsID)
		return err
	})
	return ws, err
}

// TrackIDs returns the members of a working set.
func (m *WorkingSetManager) TrackIDs(wsID int64) ([]int64, error) {
	var ids []int64
	err := m.db.Do(func(s database.Store) error {
		if _, err := s.GetWorkingSet(wsID); err != nil {
			return err
		}
		var err error
		ids, err = s.WorkingSetTrackIDs(wsID)
		return err
	})
	return ids, err
}
