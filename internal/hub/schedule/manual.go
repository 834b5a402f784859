package schedule

import "sync"

// Manual holds tasks until they are run explicitly.
// It is safe for concurrent use; tasks run on the goroutine that calls
// RunPending or RunAll.
type Manual struct {
	opts options

	mu    sync.Mutex
	tasks []Task
	ready chan struct{}
}

// NewManual creates an empty manual scheduler.
func NewManual(opts ...Option) *Manual {
	return &Manual{
		opts:  newOptions(opts),
		ready: make(chan struct{}, 1),
	}
}

// Schedule implements Scheduler.
func (m *Manual) Schedule(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return nil
}

// Ready returns a channel that receives a value after tasks are scheduled.
// A single value may stand for several tasks.
func (m *Manual) Ready() <-chan struct{} {
	return m.ready
}

// Pending returns the number of tasks waiting to run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// RunPending runs the tasks that were queued when it was called.
// Tasks scheduled while they run are left for the next call.
// Returns the number of tasks run.
func (m *Manual) RunPending() int {
	m.mu.Lock()
	batch := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	for _, task := range batch {
		runTask(task, m.opts.panicHandler)
	}
	return len(batch)
}

// RunAll runs tasks until none are left, including tasks scheduled by
// the tasks themselves. Returns the number of tasks run.
func (m *Manual) RunAll() int {
	total := 0
	for {
		n := m.RunPending()
		if n == 0 {
			return total
		}
		total += n
	}
}
