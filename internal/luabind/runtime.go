package luabind

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/topichub/internal/hub"
	"github.com/dshills/topichub/internal/hub/schedule"
)

var logger = loggo.GetLogger("topichub.luabind")

// ErrClosed is returned when a closed runtime is used.
const ErrClosed = errors.ConstError("lua runtime is closed")

// Option configures a Runtime.
type Option func(*runtimeConfig)

type runtimeConfig struct {
	out   io.Writer
	clock clock.Clock
	delay time.Duration
	timed bool
}

// WithOutput sets where the Lua print function writes. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *runtimeConfig) {
		if w != nil {
			c.out = w
		}
	}
}

// WithTimer delays every delivery by delay on clk before it reaches the
// Lua event loop. A nil clock means the wall clock.
func WithTimer(clk clock.Clock, delay time.Duration) Option {
	return func(c *runtimeConfig) {
		c.clock = clk
		c.delay = delay
		c.timed = true
	}
}

// Runtime runs Lua scripts against a hub.
//
// The Lua state is not goroutine-safe, so deliveries are queued in an inbox
// and run on the goroutine that calls DoString, DoFile or Drain. Go code may
// publish on Hub() from any goroutine; Lua callbacks see those publishes on
// the next Drain.
type Runtime struct {
	L   *lua.LState
	hub *hub.Hub
	out io.Writer

	inbox    *schedule.Manual
	timer    *schedule.Timer
	inflight atomic.Int64

	mu     sync.Mutex
	errs   []error
	closed bool
}

// New creates a runtime with the hub module installed as the global "hub".
func New(opts ...Option) *Runtime {
	cfg := runtimeConfig{out: os.Stdout}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Runtime{
		L:     lua.NewState(),
		out:   cfg.out,
		inbox: schedule.NewManual(),
	}
	if cfg.timed {
		r.timer = schedule.NewTimer(cfg.clock, cfg.delay)
	}

	r.hub = hub.New(
		hub.WithScheduler(schedule.Func(r.schedule)),
		hub.WithPanicHandler(func(err *hub.PanicError) {
			r.recordError(err)
		}),
	)

	r.register()
	return r
}

// Hub returns the hub scripts publish to and subscribe on.
func (r *Runtime) Hub() *hub.Hub {
	return r.hub
}

// schedule queues a delivery for the Lua goroutine.
func (r *Runtime) schedule(task schedule.Task) error {
	if task == nil {
		return schedule.ErrNilTask
	}

	r.inflight.Add(1)
	run := func() {
		defer r.inflight.Add(-1)
		task()
	}

	var err error
	if r.timer != nil {
		err = r.timer.Schedule(func() {
			// The inbox never refuses a non-nil task.
			_ = r.inbox.Schedule(run)
		})
	} else {
		err = r.inbox.Schedule(run)
	}
	if err != nil {
		r.inflight.Add(-1)
		return errors.Trace(err)
	}
	return nil
}

// Pending returns the number of deliveries that have not run yet.
func (r *Runtime) Pending() int {
	return int(r.inflight.Load())
}

// Drain runs deliveries on the calling goroutine until none are left,
// including deliveries published by the callbacks themselves.
func (r *Runtime) Drain(ctx context.Context) error {
	if r.isClosed() {
		return ErrClosed
	}
	for {
		r.inbox.RunPending()
		if r.inflight.Load() == 0 {
			return nil
		}
		select {
		case <-r.inbox.Ready():
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		}
	}
}

// DoString runs a Lua chunk and then drains its deliveries.
func (r *Runtime) DoString(ctx context.Context, source string) error {
	return r.run(ctx, "chunk", func() error {
		return r.L.DoString(source)
	})
}

// DoFile runs a Lua file and then drains its deliveries.
func (r *Runtime) DoFile(ctx context.Context, path string) error {
	return r.run(ctx, path, func() error {
		return r.L.DoFile(path)
	})
}

func (r *Runtime) run(ctx context.Context, name string, exec func() error) error {
	if r.isClosed() {
		return ErrClosed
	}

	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := exec(); err != nil {
		return errors.Annotatef(err, "running %s", name)
	}
	return errors.Annotatef(r.Drain(ctx), "draining %s", name)
}

// recordError stores a callback failure.
func (r *Runtime) recordError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

// Errors returns the callback failures recorded so far.
func (r *Runtime) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// ResetErrors discards recorded callback failures.
func (r *Runtime) ResetErrors() {
	r.mu.Lock()
	r.errs = nil
	r.mu.Unlock()
}

func (r *Runtime) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close releases the Lua state. Undelivered publishes are discarded.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.L.Close()
}
