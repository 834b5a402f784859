package schedule

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// Timer defers each task by a fixed delay on a clock.
//
// Every Schedule call arms one clock timer. Whichever timer fires runs the
// oldest waiting task, and firings are serialised, so tasks run one at a
// time in schedule order even if the clock fires them out of order.
type Timer struct {
	opts  options
	clock clock.Clock
	delay time.Duration

	mu      sync.Mutex
	pending []Task
	stopped bool

	runMu sync.Mutex
}

// NewTimer creates a timer scheduler. A nil clock means the wall clock.
// Negative delays are treated as zero.
func NewTimer(clk clock.Clock, delay time.Duration, opts ...Option) *Timer {
	if clk == nil {
		clk = clock.WallClock
	}
	if delay < 0 {
		delay = 0
	}
	return &Timer{
		opts:  newOptions(opts),
		clock: clk,
		delay: delay,
	}
}

// Schedule implements Scheduler.
func (t *Timer) Schedule(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrNotRunning
	}
	t.pending = append(t.pending, task)
	t.mu.Unlock()

	t.clock.AfterFunc(t.delay, t.fire)
	return nil
}

// fire runs the oldest pending task.
func (t *Timer) fire() {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return
	}
	task := t.pending[0]
	t.pending[0] = nil
	t.pending = t.pending[1:]
	t.mu.Unlock()

	runTask(task, t.opts.panicHandler)
}

// Pending returns the number of tasks whose timers have not fired yet.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Delay returns the configured delay.
func (t *Timer) Delay() time.Duration {
	return t.delay
}

// Stop rejects further tasks. Tasks already scheduled still run.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}
