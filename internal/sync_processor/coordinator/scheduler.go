package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

var ErrSchedulerClosed = errors.New("scheduler is shut down")

// Job is one sync run waiting for its twin's turn
type Job struct {
	RunID         uuid.UUID
	TwinID        uuid.UUID
	CorrelationID string
}

// Scheduler keeps one FIFO queue per twin and runs at most one drain loop per
// twin on a bounded ants pool. Different twins drain concurrently.
type Scheduler struct {
	pool   *ants.Pool
	handle func(ctx context.Context, job Job)
	logger *slog.Logger

	mu     sync.Mutex
	queues map[uuid.UUID][]Job
	active map[uuid.UUID]bool
	closed bool
	wg     sync.WaitGroup
}

func NewScheduler(size int, handle func(ctx context.Context, job Job), logger *slog.Logger) (*Scheduler, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		pool:   pool,
		handle: handle,
		logger: logger,
		queues: make(map[uuid.UUID][]Job),
		active: make(map[uuid.UUID]bool),
	}, nil
}

// Submit queues the job behind any earlier job of the same twin
func (s *Scheduler) Submit(job Job) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.queues[job.TwinID] = append(s.queues[job.TwinID], job)
	if s.active[job.TwinID] {
		depth := len(s.queues[job.TwinID])
		s.mu.Unlock()
		s.logger.Debug("Twin busy, run queued", "twin_id", job.TwinID.String(), "sync_run_id", job.RunID.String(), "queue_depth", depth)
		return nil
	}
	s.active[job.TwinID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.pool.Submit(func() { s.drain(job.TwinID) }); err != nil {
		s.mu.Lock()
		s.dropLast(job.TwinID)
		delete(s.active, job.TwinID)
		s.mu.Unlock()
		s.wg.Done()

		s.logger.Error("Failed to submit twin drain loop to worker pool", "twin_id", job.TwinID.String(), "error", err)
		return err
	}
	return nil
}

func (s *Scheduler) drain(twinID uuid.UUID) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		queue := s.queues[twinID]
		if len(queue) == 0 || s.closed {
			delete(s.queues, twinID)
			delete(s.active, twinID)
			s.mu.Unlock()
			return
		}
		job := queue[0]
		s.queues[twinID] = queue[1:]
		s.mu.Unlock()

		s.run(job)
	}
}

func (s *Scheduler) run(job Job) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Panic recovered in sync run", "twin_id", job.TwinID.String(), "sync_run_id", job.RunID.String(), "panic", p)
		}
	}()
	s.handle(context.Background(), job)
}

func (s *Scheduler) dropLast(twinID uuid.UUID) {
	queue := s.queues[twinID]
	if len(queue) <= 1 {
		delete(s.queues, twinID)
		return
	}
	s.queues[twinID] = queue[:len(queue)-1]
}

// Pending returns how many jobs wait for the twin, excluding the running one
func (s *Scheduler) Pending(twinID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[twinID])
}

// Shutdown stops accepting jobs, lets in-flight runs finish and releases the pool.
// Queued runs stay RECEIVED and are picked up by Recover on the next start.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.logger.Info("Shutting down sync scheduler", "running_workers", s.pool.Running())

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.pool.Release()
		return nil
	case <-ctx.Done():
		s.pool.Release()
		return ctx.Err()
	}
}

// Running returns the number of running workers in the pool.
func (s *Scheduler) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *Scheduler) Capacity() int {
	return s.pool.Cap()
}
