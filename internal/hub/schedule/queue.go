package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Queue runs tasks on a single worker goroutine in FIFO order.
// The queue is unbounded, so Schedule never blocks and a task may schedule
// further tasks without risk of deadlock.
type Queue struct {
	opts options

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []Task
	running bool
	busy    bool          // worker is executing a task
	done    chan struct{} // closed when the worker exits
	idle    []chan struct{}

	// Stats
	scheduled   atomic.Uint64
	executed    atomic.Uint64
	panicked    atomic.Uint64
	rejected    atomic.Uint64
	totalTimeNs atomic.Int64
}

// NewQueue creates a stopped queue. Call Start before scheduling.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{opts: newOptions(opts)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start starts the worker goroutine.
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return ErrAlreadyRunning
	}
	if q.done != nil {
		select {
		case <-q.done:
		default:
			// A previous Stop gave up waiting and the old worker is still draining.
			return ErrAlreadyRunning
		}
	}

	q.running = true
	q.done = make(chan struct{})
	go q.worker(q.done)
	return nil
}

// Stop stops accepting tasks and waits for queued tasks to finish
// or until ctx is done.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return ErrNotRunning
	}
	q.running = false
	done := q.done
	q.cond.Broadcast()
	q.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule implements Scheduler.
func (q *Queue) Schedule(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		q.rejected.Add(1)
		return ErrNotRunning
	}
	q.tasks = append(q.tasks, task)
	q.scheduled.Add(1)
	q.cond.Signal()
	return nil
}

// Drain waits until the queue is empty and no task is executing,
// or until ctx is done. It must not be called from inside a task.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if len(q.tasks) == 0 && !q.busy {
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.idle = append(q.idle, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker executes tasks until the queue is stopped and empty.
func (q *Queue) worker(done chan struct{}) {
	defer close(done)

	q.mu.Lock()
	for {
		for len(q.tasks) == 0 && q.running {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.notifyIdle()
			q.mu.Unlock()
			return
		}

		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.busy = true
		q.mu.Unlock()

		q.execute(task)

		q.mu.Lock()
		q.busy = false
		if len(q.tasks) == 0 {
			q.notifyIdle()
		}
	}
}

// notifyIdle wakes Drain callers. Caller must hold q.mu.
func (q *Queue) notifyIdle() {
	for _, ch := range q.idle {
		close(ch)
	}
	q.idle = nil
}

// execute runs a single task and records stats.
func (q *Queue) execute(task Task) {
	start := time.Now()
	if runTask(task, q.opts.panicHandler) {
		q.panicked.Add(1)
	}
	q.executed.Add(1)
	q.totalTimeNs.Add(time.Since(start).Nanoseconds())
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// IsRunning returns true if the queue accepts tasks.
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Stats returns queue statistics.
func (q *Queue) Stats() QueueStats {
	executed := q.executed.Load()
	totalNs := q.totalTimeNs.Load()

	var avgNs int64
	if executed > 0 {
		avgNs = totalNs / int64(executed)
	}

	return QueueStats{
		Scheduled:     q.scheduled.Load(),
		Executed:      executed,
		Panicked:      q.panicked.Load(),
		Rejected:      q.rejected.Load(),
		Depth:         q.Len(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}

// QueueStats contains statistics for a queue.
type QueueStats struct {
	// Scheduled is the number of tasks accepted.
	Scheduled uint64

	// Executed is the number of tasks that have run.
	Executed uint64

	// Panicked is the number of tasks that panicked.
	Panicked uint64

	// Rejected is the number of tasks refused because the queue was stopped.
	Rejected uint64

	// Depth is the number of tasks waiting to run.
	Depth int

	// TotalDuration is the cumulative time spent running tasks.
	TotalDuration time.Duration

	// AvgDuration is the average task run time.
	AvgDuration time.Duration
}
