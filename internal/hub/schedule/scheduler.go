package schedule

import (
	"runtime/debug"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("topichub.schedule")

// Sentinel errors for the schedule package.
const (
	// ErrAlreadyRunning is returned when Start is called on a running scheduler.
	ErrAlreadyRunning = errors.ConstError("scheduler is already running")

	// ErrNotRunning is returned when tasks are scheduled on a stopped scheduler.
	ErrNotRunning = errors.ConstError("scheduler is not running")

	// ErrNilTask is returned when a nil task is scheduled.
	ErrNilTask = errors.ConstError("task cannot be nil")
)

// Task is a unit of deferred work.
type Task func()

// Scheduler defers tasks for later execution.
type Scheduler interface {
	// Schedule queues task to run later. It must not run task before returning.
	Schedule(task Task) error
}

// Func adapts a function to the Scheduler interface.
type Func func(task Task) error

// Schedule implements Scheduler.
func (f Func) Schedule(task Task) error {
	return f(task)
}

// PanicHandler is called when a task panics.
// It receives the panic value and the stack trace.
type PanicHandler func(recovered any, stack []byte)

// defaultPanicHandler logs the panic.
func defaultPanicHandler(recovered any, stack []byte) {
	logger.Errorf("scheduled task panicked: %v\n%s", recovered, stack)
}

// Option configures a scheduler.
type Option func(*options)

type options struct {
	panicHandler PanicHandler
}

func newOptions(opts []Option) options {
	o := options{panicHandler: defaultPanicHandler}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithPanicHandler sets the handler called when a task panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *options) {
		if h != nil {
			o.panicHandler = h
		}
	}
}

// runTask executes a task, recovering from panics.
// Returns true if the task panicked.
func runTask(task Task, panicHandler PanicHandler) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			stack := debug.Stack()

			// Protect the panic handler call as well
			func() {
				defer func() { _ = recover() }()
				panicHandler(r, stack)
			}()
		}
	}()

	task()
	return false
}
