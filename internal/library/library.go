// Package library is the engine facade over the catalogue store: tags,
// folders, working sets, mixes and track queries.
package library

import (
	"fmt"

	"mixdeck/internal/database"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

// Options tune the library managers.
type Options struct {
	// DefaultCrossfadeMs is used by auto-mix when the caller passes 0.
	DefaultCrossfadeMs int64
	// DefaultFadeMs caps auto-mix fade-ins; 0 means DefaultCrossfadeMs.
	DefaultFadeMs int64
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{DefaultCrossfadeMs: 4000}
}

// Library owns the store handle and the managers built on top of it. Create
// one per process with New and close it after every navigation node and
// renderer that uses it is gone.
type Library struct {
	db     *database.Database
	logger *logrus.Logger
	opts   Options

	Tags        *TagManager
	Folders     *FolderManager
	WorkingSets *WorkingSetManager
	Mixes       *MixManager
	Query       *QueryEngine
}

// New builds a Library over an open database.
func New(db *database.Database, logger *logrus.Logger, opts Options) *Library {
	if logger == nil {
		logger = db.Logger()
	}
	if opts.DefaultCrossfadeMs <= 0 {
		opts.DefaultCrossfadeMs = DefaultOptions().DefaultCrossfadeMs
	}

	lib := &Library{db: db, logger: logger, opts: opts}
	lib.Tags = &TagManager{db: db}
	lib.Folders = &FolderManager{db: db, logger: logger}
	lib.WorkingSets = &WorkingSetManager{db: db, logger: logger}
	lib.Mixes = &MixManager{db: db, logger: logger, opts: opts}
	lib.Query = &QueryEngine{db: db}
	return lib
}

// Open opens the catalogue at dbPath and builds a Library over it.
func Open(dbPath string, logger *logrus.Logger, opts Options) (*Library, error) {
	db, err := database.NewDatabase(dbPath, logger)
	if err != nil {
		return nil, err
	}
	return New(db, logger, opts), nil
}

// DB exposes the underlying store for components that run their own
// statements, such as the scanner and the background tasks.
func (l *Library) DB() *database.Database {
	return l.db
}

// Logger returns the library logger.
func (l *Library) Logger() *logrus.Logger {
	return l.logger
}

// Options returns the options the library was built with.
func (l *Library) Options() Options {
	return l.opts
}

// LastError returns the message of the most recent failed store operation.
func (l *Library) LastError() string {
	return l.db.LastError()
}

// Close releases the store.
func (l *Library) Close() error {
	return l.db.Close()
}

// Track returns one catalogued track.
func (l *Library) Track(id int64) (models.TrackInfo, error) {
	var track models.TrackInfo
	err := l.db.Do(func(s database.Store) error {
		var err error
		track, err = s.GetTrack(id)
		return err
	})
	return track, err
}

// Tracks returns the tracks for ids in the order the ids are given. Unknown
// ids are reported as ErrNotFound.
func (l *Library) Tracks(ids []int64) ([]models.TrackInfo, error) {
	var found []models.TrackInfo
	err := l.db.Do(func(s database.Store) error {
		var err error
		found, err = s.GetTracksByIDs(ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.TrackInfo, len(found))
	for _, t := range found {
		byID[t.TrackID] = t
	}
	tracks := make([]models.TrackInfo, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: track with ID %d", models.ErrNotFound, id)
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// UpdateTrack stores the user-editable fields of a track (rating, liked
// status, key, notes, play statistics) and its tags.
func (l *Library) UpdateTrack(track models.TrackInfo) error {
	return l.db.Transaction(func(s database.Store) error {
		if err := s.UpdateUserFields(track); err != nil {
			return err
		}
		if track.TagIDs != nil {
			return s.SetTrackTags(track.TrackID, track.TagIDs)
		}
		return nil
	})
}
