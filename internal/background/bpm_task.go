package background

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"mixdeck/internal/analysis"
	"mixdeck/internal/database"
	"mixdeck/pkg/models"

	"github.com/sirupsen/logrus"
)

// DefaultBPMDelay keeps tempo analysis from competing with startup work.
const DefaultBPMDelay = 30 * time.Second

// FailedBPM is stored for tracks that could not be analysed so they are not
// picked again.
const FailedBPM = -1

// Catalogue is the store access a task needs. *database.Database satisfies it.
type Catalogue interface {
	Do(fn func(s database.Store) error) error
}

// AnalyseFunc estimates the tempo of one file.
type AnalyseFunc func(ctx context.Context, path string) (analysis.Result, error)

// BPMTask analyses one track per call once its start-up delay has passed.
type BPMTask struct {
	TaskBase

	db      Catalogue
	delay   time.Duration
	analyse AnalyseFunc
	logger  *logrus.Logger
	now     func() time.Time

	started   time.Time
	processed atomic.Int64
}

// NewBPMTask creates a task that analyses tracks from db. A negative delay
// uses DefaultBPMDelay.
func NewBPMTask(db Catalogue, delay time.Duration, logger *logrus.Logger) *BPMTask {
	if delay < 0 {
		delay = DefaultBPMDelay
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &BPMTask{
		db:      db,
		delay:   delay,
		analyse: analysis.AnalyseFile,
		logger:  logger,
		now:     time.Now,
	}
}

func (t *BPMTask) Name() string { return "bpm" }

// ProcessWork records the start time on its first call, then does nothing
// until the delay has passed. After that each call analyses at most one track.
func (t *BPMTask) ProcessWork(ctx context.Context) error {
	now := t.now()
	if t.started.IsZero() {
		t.started = now
		return nil
	}
	if now.Sub(t.started) < t.delay {
		return nil
	}

	var track models.TrackInfo
	err := t.db.Do(func(s database.Store) error {
		var err error
		track, err = s.NextTrackNeedingBPM()
		return err
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	log := t.logger.WithFields(logrus.Fields{"track_id": track.TrackID, "path": track.FilePath})
	res, err := t.analyse(ctx, track.FilePath)
	if errors.Is(err, models.ErrCancelled) {
		return err
	}
	if err != nil {
		log.WithError(err).Warn("Tempo analysis failed")
		res = analysis.Result{BPM: FailedBPM}
	}

	err = t.db.Do(func(s database.Store) error {
		return s.UpdateBPM(track.TrackID, res.BPM, res.Beats)
	})
	if err != nil {
		return err
	}
	t.processed.Add(1)
	log.WithField("bpm", res.BPM).Debug("Tempo stored")
	return nil
}

// Processed returns the number of tracks this task has written a tempo for.
func (t *BPMTask) Processed() int64 { return t.processed.Load() }
