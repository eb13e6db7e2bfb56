package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"mixdeck/internal/database"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

// FolderManager registers library roots.
type FolderManager struct {
	db     *database.Database
	logger *logrus.Logger
}

// AddFolder registers an existing directory. Adding a path twice returns the
// folder registered the first time.
func (m *FolderManager) AddFolder(path string) (models.Folder, error) {
	if path == "" {
		return models.Folder{}, fmt.Errorf("%w: empty folder path", models.ErrInvalidArgument)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return models.Folder{}, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.Folder{}, fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	if !info.IsDir() {
		return models.Folder{}, fmt.Errorf("%w: %s is not a directory", models.ErrInvalidArgument, abs)
	}

	var folder models.Folder
	err = m.db.Transaction(func(s database.Store) error {
		existing, err := s.GetFolderByPath(abs)
		if err == nil {
			folder = existing
			return nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		folder = models.Folder{Path: abs}
		folder.FolderID, err = s.InsertFolder(folder)
		return err
	})
	if err != nil {
		return models.Folder{}, err
	}

	m.logger.WithFields(logrus.Fields{
		"folder_id": folder.FolderID,
		"path":      folder.Path,
	}).Info("Folder registered")
	return folder, nil
}

// RemoveFolder unregisters a folder. Its tracks go with it, and every mix
// that referenced them is renumbered so its order stays dense.
func (m *FolderManager) RemoveFolder(id int64) error {
	err := m.db.Transaction(func(s database.Store) error {
		mixIDs, err := s.MixIDsForFolder(id)
		if err != nil {
			return err
		}
		if err := s.RemoveFolder(id); err != nil {
			return err
		}
		for _, mixID := range mixIDs {
			if err := renumberMix(s, mixID); err != nil {
				return err
			}
		}
		sets, err := s.ListWorkingSets()
		if err != nil {
			return err
		}
		for _, ws := range sets {
			if _, err := s.RecountWorkingSet(ws.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.WithField("folder_id", id).Info("Folder removed")
	return nil
}

// Folders lists every registered folder.
func (m *FolderManager) Folders() ([]models.Folder, error) {
	var folders []models.Folder
	err := m.db.Do(func(s database.Store) error {
		var err error
		folders, err = s.ListFolders()
		return err
	})
	return folders, err
}

// Folder returns one registered folder.
func (m *FolderManager) Folder(id int64) (models.Folder, error) {
	var folder models.Folder
	err := m.db.Do(func(s database.Store) error {
		var err error
		folder, err = s.GetFolder(id)
		return err
	})
	return folder, err
}

// UpdateAfterScan stores the statistics gathered by a scan.
func (m *FolderManager) UpdateAfterScan(folder models.Folder) error {
	return m.db.Do(func(s database.Store) error {
		return s.UpdateFolder(folder)
	})
}
