package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/podcast-log/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// ErrTaskInFlight is returned by EnqueueTask while a task for the same
// target is still queued, running or waiting for a retry.
var ErrTaskInFlight = errors.New("task already queued or running")

// Scheduler re-ingests every registered feed on a fixed interval using a
// pool of workers. A feed whose fetch fails waits for the next tick; store
// failures are retried with backoff.
type Scheduler struct {
	ingester    *Ingester
	feedRepo    database.FeedRepository
	options     RunOptions
	interval    time.Duration
	taskTimeout time.Duration
	workerCount int
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewScheduler(ingester *Ingester, feedRepo database.FeedRepository, options RunOptions,
	interval, taskTimeout time.Duration, workerCount int, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		ingester:    ingester,
		feedRepo:    feedRepo,
		options:     options,
		interval:    interval,
		taskTimeout: taskTimeout,
		workerCount: max(workerCount, 1),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
		inFlight:    map[string]struct{}{},
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueTask queues task unless another task for the same target has not
// finished yet. The target stays claimed until the task completes without
// a pending retry.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if !s.claim(task.GetTarget()) {
		return fmt.Errorf("%w: %s", ErrTaskInFlight, task.GetTarget())
	}

	if err := s.enqueue(task); err != nil {
		s.release(task.GetTarget())
		return err
	}
	return nil
}

func (s *Scheduler) claim(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[target]; busy {
		return false
	}
	s.inFlight[target] = struct{}{}
	return true
}

func (s *Scheduler) release(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, target)
}

func (s *Scheduler) enqueue(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueTasks() {
	feeds, err := s.feedRepo.GetAllFeeds(s.ctx)
	if err != nil {
		s.logger.Error("Failed to load feeds for scheduling", "error", err)
		return
	}
	if len(feeds) == 0 {
		s.logger.Debug("No feeds registered")
		return
	}

	s.logger.Debug("Scheduling feed processing", "count", len(feeds))

	for _, f := range feeds {
		task := s.ingester.NewProcessFeedTask(f, s.options)
		err := s.EnqueueTask(task)
		switch {
		case errors.Is(err, ErrTaskInFlight):
			s.logger.Debug("Previous run still in progress, skipping feed", "feed_id", f.ID)
		case err != nil:
			s.logger.Warn("Failed to enqueue ProcessFeedTask", "feed_id", f.ID, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	retrying := false
	defer func() {
		if !retrying {
			s.release(task.GetTarget())
		}
	}()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	s.logger.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "error", err)

	if !retryable(err) {
		return
	}

	if !task.CanRetry() {
		s.logger.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, 30*time.Second)

	s.logger.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	retrying = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			s.logger.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.release(task.GetTarget())
		case <-timer.C:
			if retryErr := s.enqueue(task); retryErr != nil {
				s.release(task.GetTarget())
				s.logger.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
