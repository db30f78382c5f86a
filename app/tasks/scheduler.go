package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var ErrQueueFull = errors.New("task queue is full")

const (
	queueSize     = 100
	recordLimit   = 200
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Record is the externally visible progress of an enqueued task.
type Record struct {
	ID         string     `json:"id"`
	Type       TaskType   `json:"type"`
	Subject    string     `json:"subject"`
	State      State      `json:"state"`
	RetryCount int        `json:"retry_count"`
	Error      string     `json:"error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type Scheduler struct {
	refresher   Refresher
	interval    time.Duration
	workerCount int
	retryBase   time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

// NewScheduler creates a worker pool. When refresher is set, a refresh is
// enqueued on Start and then every interval (interval <= 0 disables the
// periodic refresh).
func NewScheduler(refresher Refresher, workerCount int, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if workerCount < 1 {
		workerCount = 1
	}

	return &Scheduler{
		refresher:   refresher,
		interval:    interval,
		workerCount: workerCount,
		retryBase:   time.Second,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
		records:     make(map[string]*Record),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	if s.refresher == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.enqueueRefresh()

		if s.interval <= 0 {
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueRefresh()
			}
		}
	}()
}

// Stop cancels running tasks and waits for the workers to exit. Tasks still
// queued are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	s.track(task)

	select {
	case s.taskQueue <- task:
		return nil
	default:
		s.update(task, StateFailed, ErrQueueFull)
		return ErrQueueFull
	}
}

// RefreshNow enqueues a refresh. It matches the signature the deck expects
// for its refresh trigger.
func (s *Scheduler) RefreshNow(ctx context.Context) {
	s.enqueueRefresh()
}

// Lookup returns the record of a recently enqueued task.
func (s *Scheduler) Lookup(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

func (s *Scheduler) enqueueRefresh() {
	if s.refresher == nil {
		return
	}
	if err := s.EnqueueTask(NewRefreshFeedsTask(s.refresher)); err != nil {
		slog.Warn("Failed to enqueue RefreshFeedsTask", "error", err)
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
	s.update(task, StateRunning, nil)

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.update(task, StateSucceeded, nil)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		s.update(task, StateFailed, err)
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		return
	}

	task.IncrementRetryCount()
	s.update(task, StatePending, err)

	retryDelay := s.retryBase * time.Duration(1<<uint(task.GetRetryCount()-1))
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		case <-time.After(retryDelay):
		}

		if retryErr := s.EnqueueTask(task); retryErr != nil {
			s.update(task, StateFailed, retryErr)
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
		}
	}()
}

func (s *Scheduler) track(task TaskInterface) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[task.GetID()]; ok {
		record.State = StatePending
		return
	}

	s.records[task.GetID()] = &Record{
		ID:         task.GetID(),
		Type:       task.GetType(),
		Subject:    task.GetSubject(),
		State:      StatePending,
		EnqueuedAt: time.Now(),
	}
	s.order = append(s.order, task.GetID())

	if len(s.order) > recordLimit {
		delete(s.records, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Scheduler) update(task TaskInterface, state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[task.GetID()]
	if !ok {
		return
	}

	record.State = state
	record.RetryCount = task.GetRetryCount()
	if err != nil {
		record.Error = err.Error()
	}
	if state == StateSucceeded || state == StateFailed {
		now := time.Now()
		record.FinishedAt = &now
		if state == StateSucceeded {
			record.Error = ""
		}
	}
}
