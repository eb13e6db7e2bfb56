// Package background runs long-lived catalogue maintenance on a single
// worker goroutine.
package background

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultWaitTimeout is how long the worker sleeps between rounds when
	// nobody calls Notify.
	DefaultWaitTimeout = 5 * time.Second
	// PauseTimeout bounds how long Pause waits for the running task to yield.
	PauseTimeout = time.Second
)

// Task is a unit of cooperative background work. ProcessWork should do a
// small, bounded amount of work and return.
type Task interface {
	Name() string
	ProcessWork(ctx context.Context) error
	Retain()
	Release()
}

// TaskBase implements the reference counting part of Task.
type TaskBase struct {
	refs atomic.Int32
}

func (b *TaskBase) Retain() { b.refs.Add(1) }

func (b *TaskBase) Release() {
	if b.refs.Add(-1) < 0 {
		panic("background: task released more often than retained")
	}
}

// RetainCount returns the number of outstanding references.
func (b *TaskBase) RetainCount() int { return int(b.refs.Load()) }

// Service owns one worker goroutine that calls every registered task in turn.
type Service struct {
	logger      *logrus.Logger
	waitTimeout time.Duration

	tasks    []Task
	tasksMux sync.Mutex

	notify chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	shouldExit   atomic.Bool
	isPaused     atomic.Bool
	isProcessing atomic.Bool
}

// NewService creates a stopped service. A zero waitTimeout uses
// DefaultWaitTimeout.
func NewService(logger *logrus.Logger, waitTimeout time.Duration) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		logger:      logger,
		waitTimeout: waitTimeout,
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker. Calling it again has no effect.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
		s.logger.Info("Background service started")
	})
}

// Register retains task, adds it to the round and wakes the worker.
func (s *Service) Register(task Task) {
	task.Retain()
	s.tasksMux.Lock()
	s.tasks = append(s.tasks, task)
	s.tasksMux.Unlock()
	s.logger.WithField("task", task.Name()).Debug("Background task registered")
	s.Notify()
}

// Unregister removes task and releases the service's reference to it.
// It reports whether the task was registered.
func (s *Service) Unregister(task Task) bool {
	s.tasksMux.Lock()
	defer s.tasksMux.Unlock()
	for i, t := range s.tasks {
		if t == task {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			task.Release()
			return true
		}
	}
	return false
}

// Tasks returns the number of registered tasks.
func (s *Service) Tasks() int {
	s.tasksMux.Lock()
	defer s.tasksMux.Unlock()
	return len(s.tasks)
}

// Notify wakes the worker for another round.
func (s *Service) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Pause stops the worker from starting new tasks and waits up to
// PauseTimeout for the current one to return. It reports whether the worker
// is idle.
func (s *Service) Pause() bool {
	s.isPaused.Store(true)
	deadline := time.Now().Add(PauseTimeout)
	for s.isProcessing.Load() {
		if time.Now().After(deadline) {
			s.logger.Warn("Background task did not yield within pause timeout")
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}

// Resume lets the worker run tasks again.
func (s *Service) Resume() {
	s.isPaused.Store(false)
	s.Notify()
}

// IsPaused reports whether Pause is in effect.
func (s *Service) IsPaused() bool { return s.isPaused.Load() }

// IsProcessing reports whether a task is running right now.
func (s *Service) IsProcessing() bool { return s.isProcessing.Load() }

// Stop cancels the running task's context, joins the worker and releases
// every registered task.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.shouldExit.Store(true)
		s.cancel()
		close(s.done)
		s.wg.Wait()

		s.tasksMux.Lock()
		for _, t := range s.tasks {
			t.Release()
		}
		s.tasks = nil
		s.tasksMux.Unlock()
		s.logger.Info("Background service stopped")
	})
}

func (s *Service) run() {
	defer s.wg.Done()

	timer := time.NewTimer(s.waitTimeout)
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.waitTimeout)

		if s.shouldExit.Load() {
			return
		}
		if s.isPaused.Load() {
			continue
		}

		s.tasksMux.Lock()
		round := make([]Task, len(s.tasks))
		copy(round, s.tasks)
		for _, t := range round {
			t.Retain()
		}
		s.tasksMux.Unlock()

		for _, t := range round {
			s.process(t)
			t.Release()
		}
	}
}

// process runs one task unless the service is pausing or exiting, logging
// its error or panic. isProcessing is raised before the flags are read so
// Pause cannot miss a task that is about to start.
func (s *Service) process(task Task) {
	s.isProcessing.Store(true)
	defer s.isProcessing.Store(false)
	if s.shouldExit.Load() || s.isPaused.Load() {
		return
	}

	log := s.logger.WithField("task", task.Name())
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("Background task panicked")
		}
	}()

	if err := task.ProcessWork(s.ctx); err != nil {
		log.WithError(err).Warn("Background task failed")
	}
}
