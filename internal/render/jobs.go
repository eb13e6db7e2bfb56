package render

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mixdeck/internal/project"
	"mixdeck/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JobStatus is the lifecycle state of a render job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRendering JobStatus = "rendering"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job is one queued render
type Job struct {
	ID          string     `json:"id"`
	MixID       int64      `json:"mix_id"`
	MixName     string     `json:"mix_name"`
	OutputPath  string     `json:"output_path"`
	Status      JobStatus  `json:"status"`
	Progress    float64    `json:"progress"`
	Message     string     `json:"message,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	cancel context.CancelFunc
}

// Done reports whether the job reached a terminal state.
func (j Job) Done() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed || j.Status == StatusCancelled
}

// Queue renders mixes on a bounded pool of workers. Each job snapshots its
// mix when submitted, so later edits do not affect a queued render.
type Queue struct {
	renderer *Renderer
	source   project.Source
	logger   *logrus.Logger

	jobs    map[string]*Job
	jobsMux sync.RWMutex

	work   chan workItem
	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

type workItem struct {
	job  *Job
	snap *project.Snapshot
	ctx  context.Context
}

// NewQueue starts workers goroutines rendering jobs read from src.
func NewQueue(renderer *Renderer, src project.Source, workers int, logger *logrus.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = renderer.logger
	}
	ctx, stop := context.WithCancel(context.Background())
	q := &Queue{
		renderer: renderer,
		source:   src,
		logger:   logger,
		jobs:     make(map[string]*Job),
		work:     make(chan workItem, 64),
		ctx:      ctx,
		stop:     stop,
	}
	for range workers {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit snapshots mixID and queues a render of it to outPath.
func (q *Queue) Submit(mixID int64, outPath string) (Job, error) {
	snap, err := project.Load(q.source, mixID)
	if err != nil {
		return Job{}, err
	}

	ctx, cancel := context.WithCancel(q.ctx)
	job := &Job{
		ID:         uuid.New().String(),
		MixID:      mixID,
		MixName:    snap.Mix.Name,
		OutputPath: outPath,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
		cancel:     cancel,
	}

	q.jobsMux.Lock()
	if q.closed {
		q.jobsMux.Unlock()
		cancel()
		return Job{}, fmt.Errorf("%w: render queue closed", models.ErrCancelled)
	}
	q.jobs[job.ID] = job
	q.jobsMux.Unlock()

	select {
	case q.work <- workItem{job: job, snap: snap, ctx: ctx}:
	case <-q.ctx.Done():
		q.finish(job.ID, StatusCancelled, "", nil)
		return q.snapshot(job), fmt.Errorf("%w: render queue closed", models.ErrCancelled)
	}
	q.logger.WithFields(logrus.Fields{"job_id": job.ID, "mix_id": mixID, "output": outPath}).Info("Render queued")
	return q.snapshot(job), nil
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case item := <-q.work:
			q.process(item)
		}
	}
}

func (q *Queue) process(item workItem) {
	job := item.job
	if item.ctx.Err() != nil {
		q.finish(job.ID, StatusCancelled, "", nil)
		return
	}
	q.update(job.ID, func(j *Job) { j.Status = StatusRendering })

	err := q.renderer.Render(item.ctx, item.snap, job.OutputPath, func(fraction float64, status string) {
		q.update(job.ID, func(j *Job) {
			j.Progress = fraction
			j.Message = status
		})
	})

	switch {
	case err == nil:
		q.finish(job.ID, StatusCompleted, "Done", nil)
	case errors.Is(err, models.ErrCancelled):
		q.finish(job.ID, StatusCancelled, "", err)
	default:
		q.finish(job.ID, StatusFailed, "", err)
	}
}

func (q *Queue) update(id string, fn func(*Job)) {
	q.jobsMux.Lock()
	defer q.jobsMux.Unlock()
	if job, ok := q.jobs[id]; ok {
		fn(job)
	}
}

func (q *Queue) finish(id string, status JobStatus, message string, err error) {
	now := time.Now()
	q.update(id, func(j *Job) {
		j.Status = status
		j.CompletedAt = &now
		if message != "" {
			j.Message = message
		}
		if err != nil {
			j.Error = err.Error()
		}
		if status == StatusCompleted {
			j.Progress = 1
		}
		j.cancel()
	})
	q.logger.WithFields(logrus.Fields{"job_id": id, "status": status}).Info("Render finished")
}

// snapshot copies a job under the lock.
func (q *Queue) snapshot(job *Job) Job {
	q.jobsMux.RLock()
	defer q.jobsMux.RUnlock()
	c := *job
	c.cancel = nil
	return c
}

// Get returns a copy of a job.
func (q *Queue) Get(id string) (Job, bool) {
	q.jobsMux.RLock()
	job, ok := q.jobs[id]
	q.jobsMux.RUnlock()
	if !ok {
		return Job{}, false
	}
	return q.snapshot(job), true
}

// List returns every job, oldest first.
func (q *Queue) List() []Job {
	q.jobsMux.RLock()
	jobs := make([]Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		c := *job
		c.cancel = nil
		jobs = append(jobs, c)
	}
	q.jobsMux.RUnlock()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs
}

// Cancel stops a pending or running job. The renderer notices at its next
// block boundary and removes the partial output.
func (q *Queue) Cancel(id string) error {
	q.jobsMux.RLock()
	job, ok := q.jobs[id]
	q.jobsMux.RUnlock()
	if !ok {
		return fmt.Errorf("%w: render job %s", models.ErrNotFound, id)
	}
	job.cancel()
	return nil
}

// Wait blocks until the job is done or ctx ends.
func (q *Queue) Wait(ctx context.Context, id string) (Job, error) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		job, ok := q.Get(id)
		if !ok {
			return Job{}, fmt.Errorf("%w: render job %s", models.ErrNotFound, id)
		}
		if job.Done() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, fmt.Errorf("%w: %v", models.ErrCancelled, ctx.Err())
		case <-ticker.C:
		}
	}
}

// CleanupFinishedJobs drops terminal jobs that finished before maxAge ago.
func (q *Queue) CleanupFinishedJobs(maxAge time.Duration) {
	q.jobsMux.Lock()
	defer q.jobsMux.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range q.jobs {
		if job.Done() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(q.jobs, id)
		}
	}
}

// Close cancels every job and waits for the workers to exit. Jobs still
// queued are marked cancelled.
func (q *Queue) Close() {
	q.jobsMux.Lock()
	q.closed = true
	q.jobsMux.Unlock()
	q.stop()
	q.wg.Wait()

	now := time.Now()
	q.jobsMux.Lock()
	defer q.jobsMux.Unlock()
	for _, job := range q.jobs {
		if !job.Done() {
			job.Status = StatusCancelled
			job.CompletedAt = &now
		}
	}
}
