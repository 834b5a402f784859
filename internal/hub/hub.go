package hub

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/dshills/topichub/internal/hub/schedule"
	"github.com/dshills/topichub/internal/hub/topic"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("topichub.hub")

// Hub is a hierarchical publish/subscribe dispatcher.
//
// Subscribe and Unsubscribe mutate the registry synchronously. Publish
// resolves the matching buckets immediately and schedules exactly one task
// that invokes every callback in those buckets. Callbacks never run inside
// Publish.
//
// A panicking callback is recovered, logged and counted. The remaining
// callbacks of the same publish still run.
type Hub struct {
	registry     *Registry
	scheduler    schedule.Scheduler
	owned        *schedule.Queue
	panicHandler PanicHandler
	logger       loggo.Logger

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
	dropped   atomic.Uint64

	closeOnce sync.Once
}

// New creates a hub. Without WithScheduler the hub owns a started Queue,
// which Close stops.
func New(opts ...Option) *Hub {
	cfg := defaultHubConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Hub{
		registry:     NewRegistry(),
		scheduler:    cfg.scheduler,
		panicHandler: cfg.panicHandler,
		logger:       cfg.logger,
	}

	if h.scheduler == nil {
		q := schedule.NewQueue()
		// A fresh queue cannot already be running.
		_ = q.Start()
		h.owned = q
		h.scheduler = q
	}

	return h
}

var (
	defaultHub     *Hub
	defaultHubOnce sync.Once
)

// Default returns the process-wide hub, creating it on first use.
func Default() *Hub {
	defaultHubOnce.Do(func() {
		defaultHub = New()
	})
	return defaultHub
}

// Subscribe registers h under the exact pattern key.
// Subscribing the same handler twice creates two independent registrations.
func (h *Hub) Subscribe(pattern string, handler Handler) (Handle, error) {
	if handler == nil {
		return Handle{}, errors.Annotatef(ErrInvalidCallback, "subscribe %q", pattern)
	}
	if fn, ok := handler.(HandlerFunc); ok && fn == nil {
		return Handle{}, errors.Annotatef(ErrInvalidCallback, "subscribe %q", pattern)
	}

	handle := h.registry.Add(pattern, handler, identityOf(handler))
	h.logger.Tracef("subscribed %s to %q", handle.id, pattern)
	return handle, nil
}

// SubscribeFunc registers fn under the exact pattern key.
func (h *Hub) SubscribeFunc(pattern string, fn func(Delivery)) (Handle, error) {
	if fn == nil {
		return Handle{}, errors.Annotatef(ErrInvalidCallback, "subscribe %q", pattern)
	}
	return h.Subscribe(pattern, HandlerFunc(fn))
}

// Unsubscribe removes the registration identified by handle.
// Removing a registration that no longer exists is a no-op.
func (h *Hub) Unsubscribe(handle Handle) error {
	if handle.IsZero() {
		return errors.Annotate(ErrInvalidChannel, "unsubscribe zero handle")
	}
	if h.registry.Remove(handle.id) {
		h.logger.Tracef("unsubscribed %s from %q", handle.id, handle.pattern)
	}
	return nil
}

// UnsubscribeFunc removes the first registration under the exact pattern key
// whose callback is handler. Only comparable handlers, such as pointers, can
// be removed this way; func handlers fail with ErrInvalidCallback and must be
// removed by handle. Removing a pairing that does not exist is a no-op.
func (h *Hub) UnsubscribeFunc(pattern string, handler Handler) error {
	if handler == nil {
		return errors.Annotatef(ErrInvalidCallback, "unsubscribe %q", pattern)
	}
	if fn, ok := handler.(HandlerFunc); ok && fn == nil {
		return errors.Annotatef(ErrInvalidCallback, "unsubscribe %q", pattern)
	}
	return h.removeFirst(pattern, handler)
}

func (h *Hub) removeFirst(pattern string, callback any) error {
	ident := identityOf(callback)
	if ident == nil {
		return errors.Annotatef(ErrInvalidCallback,
			"unsubscribe %q: %T cannot be compared, unsubscribe by handle", pattern, callback)
	}
	h.registry.RemoveFirst(pattern, ident)
	return nil
}

// Publish delivers data to every callback whose pattern matches channel.
// Each callback receives a Delivery carrying data and the channel segments.
// Publish returns before any callback runs and never reports callback
// failures.
func (h *Hub) Publish(channel string, data ...any) {
	h.published.Add(1)

	buckets := h.registry.resolve(channel)
	segments := topic.Split(channel)
	if segments == nil {
		segments = []string{}
	}
	d := Delivery{Channel: channel, Segments: segments, Data: data}

	err := h.scheduler.Schedule(func() {
		h.deliver(buckets, d)
	})
	if err != nil {
		h.dropped.Add(1)
		h.logger.Warningf("dropped publish on %q: %v", channel, err)
	}
}

// deliver runs every live entry of the captured buckets in order.
func (h *Hub) deliver(buckets []*bucket, d Delivery) {
	for _, b := range buckets {
		for _, e := range h.registry.entriesOf(b) {
			if e.removed.Load() {
				continue
			}
			h.invoke(e, d)
		}
	}
}

// invoke calls a single callback, recovering from panics.
func (h *Hub) invoke(e *entry, d Delivery) {
	defer func() {
		if r := recover(); r != nil {
			h.panics.Add(1)
			perr := &PanicError{
				HandleID: e.handle.id,
				Pattern:  e.handle.pattern,
				Channel:  d.Channel,
				Value:    r,
				Stack:    string(debug.Stack()),
			}
			h.logger.Errorf("%v\n%s", perr, perr.Stack)
			h.notifyPanic(perr)
		}
	}()

	h.delivered.Add(1)
	e.handle.handler.Handle(d)
}

// notifyPanic calls the panic handler, ignoring any panic it raises.
func (h *Hub) notifyPanic(err *PanicError) {
	if h.panicHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorf("panic handler panicked: %v", r)
		}
	}()
	h.panicHandler(err)
}

// Match returns the pattern keys a publish on channel would fire, in firing order.
func (h *Hub) Match(channel string) []string {
	return h.registry.Match(channel)
}

// Registry returns the hub's subscription registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Stats returns a snapshot of hub statistics.
func (h *Hub) Stats() Stats {
	return Stats{
		Published:     h.published.Load(),
		Delivered:     h.delivered.Load(),
		Panics:        h.panics.Load(),
		Dropped:       h.dropped.Load(),
		Subscriptions: h.registry.Count(),
		Patterns:      len(h.registry.Patterns()),
	}
}

// drainer is implemented by schedulers that can wait for idleness.
type drainer interface {
	Drain(ctx context.Context) error
}

// Drain waits until the scheduler has run every delivery queued so far.
// Schedulers without a Drain method return immediately.
func (h *Hub) Drain(ctx context.Context) error {
	if d, ok := h.scheduler.(drainer); ok {
		return errors.Trace(d.Drain(ctx))
	}
	return nil
}

// Close stops an owned scheduler after it finishes queued deliveries.
// Publishing after Close drops the delivery.
func (h *Hub) Close(ctx context.Context) error {
	var err error
	h.closeOnce.Do(func() {
		if h.owned != nil {
			err = h.owned.Stop(ctx)
		}
	})
	return errors.Trace(err)
}

// String returns a short description of the hub.
func (h *Hub) String() string {
	return fmt.Sprintf("hub(%d subscriptions, %d patterns)",
		h.registry.Count(), len(h.registry.Patterns()))
}
