package hub

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/topichub/internal/hub/schedule"
	"github.com/juju/loggo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects deliveries in order.
type recorder struct {
	name string
	log  *[]string
	got  []Delivery
}

func (r *recorder) Handle(d Delivery) {
	r.got = append(r.got, d)
	if r.log != nil {
		*r.log = append(*r.log, r.name)
	}
}

func newManualHub(opts ...Option) (*Hub, *schedule.Manual) {
	m := schedule.NewManual()
	return New(append([]Option{WithScheduler(m)}, opts...)...), m
}

func TestHub_ExactMatch(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	_, err := h.Subscribe("/a/b", r)
	require.NoError(t, err)

	h.Publish("/a/b", 1, 2)
	m.RunAll()

	require.Len(t, r.got, 1)
	assert.Equal(t, []any{1, 2, []string{"a", "b"}}, r.got[0].Args())
	assert.Equal(t, "/a/b", r.got[0].Channel)
}

func TestHub_SingleWildcard(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	_, err := h.Subscribe("/a/*", r)
	require.NoError(t, err)

	h.Publish("/a/x")
	m.RunAll()
	require.Len(t, r.got, 1)
	assert.Equal(t, []any{[]string{"a", "x"}}, r.got[0].Args())

	h.Publish("/a/x/y")
	m.RunAll()
	assert.Len(t, r.got, 1)
}

func TestHub_MultiWildcard(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	_, err := h.Subscribe("/a/**", r)
	require.NoError(t, err)

	h.Publish("/a/x/y/z")
	m.RunAll()
	assert.Len(t, r.got, 1)

	h.Publish("/b/x")
	m.RunAll()
	assert.Len(t, r.got, 1)

	// Zero extra segments still match.
	h.Publish("/a")
	m.RunAll()
	assert.Len(t, r.got, 2)
}

func TestHub_RootMultiWildcard(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	_, err := h.Subscribe("/**", r)
	require.NoError(t, err)

	h.Publish("/anything/at/all")
	h.Publish("")
	m.RunAll()

	require.Len(t, r.got, 2)
	assert.Equal(t, []string{"anything", "at", "all"}, r.got[0].Segments)
	assert.Equal(t, []string{}, r.got[1].Segments)
}

func TestHub_UnsubscribeOneOfDuplicates(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	_, err := h.Subscribe("/a", r)
	require.NoError(t, err)
	_, err = h.Subscribe("/a", r)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Registry().CountByPattern("/a"))

	require.NoError(t, h.UnsubscribeAny("/a", r))
	assert.Equal(t, 1, h.Registry().CountByPattern("/a"))

	h.Publish("/a")
	m.RunAll()
	assert.Len(t, r.got, 1)
}

// counter is used through method values, which share one code pointer
// across receivers.
type counter struct{ hits int }

func (c *counter) On(Delivery) { c.hits++ }

func TestHub_UnsubscribeFuncRejectsFuncCallbacks(t *testing.T) {
	h, m := newManualHub()
	a, b := &counter{}, &counter{}

	_, err := h.SubscribeFunc("/e", a.On)
	require.NoError(t, err)
	handle, err := h.SubscribeFunc("/e", b.On)
	require.NoError(t, err)

	assert.ErrorIs(t, h.UnsubscribeFunc("/e", HandlerFunc(b.On)), ErrInvalidCallback)
	assert.ErrorIs(t, h.UnsubscribeAny("/e", b.On), ErrInvalidCallback)
	assert.ErrorIs(t, h.UnsubscribeAny("/e", func(...any) {}), ErrInvalidCallback)
	assert.Equal(t, 2, h.Registry().CountByPattern("/e"))

	h.Publish("/e")
	m.RunAll()
	assert.Equal(t, 1, a.hits)
	assert.Equal(t, 1, b.hits)

	require.NoError(t, h.Unsubscribe(handle))
	h.Publish("/e")
	m.RunAll()
	assert.Equal(t, 2, a.hits)
	assert.Equal(t, 1, b.hits)
}

func TestHub_UnsubscribeHandle(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	first, err := h.Subscribe("/a", r)
	require.NoError(t, err)
	second, err := h.Subscribe("/a", r)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, "/a", first.Pattern())

	require.NoError(t, h.Unsubscribe(second))
	// Unsubscribing twice is a no-op.
	require.NoError(t, h.Unsubscribe(second))

	h.Publish("/a")
	m.RunAll()
	assert.Len(t, r.got, 1)

	require.NoError(t, h.Unsubscribe(first))
	assert.Zero(t, h.Registry().Count())
	assert.Empty(t, h.Registry().Patterns())
}

func TestHub_UnsubscribeUnknownPairing(t *testing.T) {
	h, _ := newManualHub()
	r := &recorder{}
	other := &recorder{}

	_, err := h.Subscribe("/a", r)
	require.NoError(t, err)

	require.NoError(t, h.UnsubscribeFunc("/a", other))
	require.NoError(t, h.UnsubscribeFunc("/b", r))
	assert.Equal(t, 1, h.Registry().Count())

	require.NoError(t, h.UnsubscribeFunc("/a", r))
	assert.Zero(t, h.Registry().Count())
}

func TestHub_SubscribeInvalid(t *testing.T) {
	h, _ := newManualHub()

	_, err := h.SubscribeAny(123, func() {})
	assert.ErrorIs(t, err, ErrInvalidChannel)

	_, err = h.SubscribeAny("/a", "not a function")
	assert.ErrorIs(t, err, ErrInvalidCallback)

	_, err = h.SubscribeAny("/a", nil)
	assert.ErrorIs(t, err, ErrInvalidCallback)

	_, err = h.Subscribe("/a", nil)
	assert.ErrorIs(t, err, ErrInvalidCallback)

	_, err = h.SubscribeFunc("/a", nil)
	assert.ErrorIs(t, err, ErrInvalidCallback)

	var nilFunc func(...any)
	_, err = h.SubscribeAny("/a", nilFunc)
	assert.ErrorIs(t, err, ErrInvalidCallback)

	assert.Zero(t, h.Registry().Count())
}

func TestHub_UnsubscribeInvalid(t *testing.T) {
	h, _ := newManualHub()

	assert.ErrorIs(t, h.UnsubscribeAny(42, func() {}), ErrInvalidChannel)
	assert.ErrorIs(t, h.UnsubscribeAny("/a", 42), ErrInvalidCallback)
	assert.ErrorIs(t, h.Unsubscribe(Handle{}), ErrInvalidChannel)
	assert.ErrorIs(t, h.UnsubscribeFunc("/a", nil), ErrInvalidCallback)

	var nilFunc HandlerFunc
	assert.ErrorIs(t, h.UnsubscribeFunc("/a", nilFunc), ErrInvalidCallback)

	var nilHandle *Handle
	assert.ErrorIs(t, h.UnsubscribeAny(nilHandle, nil), ErrInvalidChannel)
}

func TestHub_UnsubscribeAnyHandleIgnoresCallback(t *testing.T) {
	h, _ := newManualHub()

	handle, err := h.SubscribeAny("/a", func(...any) {})
	require.NoError(t, err)

	require.NoError(t, h.UnsubscribeAny(handle, "ignored"))
	assert.Zero(t, h.Registry().Count())

	handle, err = h.SubscribeAny("/a", func() {})
	require.NoError(t, err)
	require.NoError(t, h.UnsubscribeAny(&handle, nil))
	assert.Zero(t, h.Registry().Count())
}

func TestHub_CallbackShapes(t *testing.T) {
	h, m := newManualHub()

	var variadic []any
	var bare int
	var delivery Delivery

	_, err := h.SubscribeAny("/x", func(args ...any) { variadic = args })
	require.NoError(t, err)
	_, err = h.SubscribeAny("/x", func() { bare++ })
	require.NoError(t, err)
	_, err = h.SubscribeAny("/x", func(d Delivery) { delivery = d })
	require.NoError(t, err)
	_, err = h.SubscribeAny("/x", HandlerFunc(func(Delivery) { bare++ }))
	require.NoError(t, err)

	h.Publish("/x", "payload")
	m.RunAll()

	assert.Equal(t, []any{"payload", []string{"x"}}, variadic)
	assert.Equal(t, 2, bare)
	assert.Equal(t, []any{"payload"}, delivery.Data)
}

func TestHub_NoMatch(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	_, err := h.Subscribe("/a/b", r)
	require.NoError(t, err)

	h.Publish("/a/c")
	h.Publish("/a")
	h.Publish("/a/b/c")
	m.RunAll()

	assert.Empty(t, r.got)
}

func TestHub_PublishIsAsynchronous(t *testing.T) {
	h, m := newManualHub()

	var order []string
	_, err := h.SubscribeFunc("/a", func(Delivery) { order = append(order, "callback") })
	require.NoError(t, err)

	h.Publish("/a")
	order = append(order, "after publish")
	assert.Equal(t, 1, m.Pending())

	m.RunAll()
	assert.Equal(t, []string{"after publish", "callback"}, order)
}

func TestHub_OneTaskPerPublish(t *testing.T) {
	h, m := newManualHub()

	h.Publish("/nobody/listens")
	assert.Equal(t, 1, m.Pending())

	for _, p := range []string{"/**", "/a/**", "/a/*", "/a/b"} {
		_, err := h.SubscribeFunc(p, func(Delivery) {})
		require.NoError(t, err)
	}
	h.Publish("/a/b")
	assert.Equal(t, 2, m.Pending())

	m.RunAll()
	stats := h.Stats()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(4), stats.Delivered)
}

func TestHub_FiringOrder(t *testing.T) {
	h, m := newManualHub()

	var log []string
	patterns := []string{"/a/b/c", "/a/*/c", "/a/**", "/**", "/*/b/c", "/a/b/**", "/a/b/*"}
	for _, p := range patterns {
		_, err := h.Subscribe(p, &recorder{name: p, log: &log})
		require.NoError(t, err)
	}

	h.Publish("/a/b/c")
	m.RunAll()

	want := []string{"/**", "/a/**", "/a/b/**", "/*/b/c", "/a/*/c", "/a/b/*", "/a/b/c"}
	assert.Equal(t, want, log)
	assert.Equal(t, want, h.Match("/a/b/c"))
}

func TestHub_RegistrationOrderWithinBucket(t *testing.T) {
	h, m := newManualHub()

	var log []string
	for _, name := range []string{"first", "second", "third"} {
		_, err := h.Subscribe("/a", &recorder{name: name, log: &log})
		require.NoError(t, err)
	}

	h.Publish("/a")
	m.RunAll()
	assert.Equal(t, []string{"first", "second", "third"}, log)
}

func TestHub_LiteralWildcardChannel(t *testing.T) {
	h, m := newManualHub()

	count := 0
	_, err := h.SubscribeFunc("/a/*", func(Delivery) { count++ })
	require.NoError(t, err)

	// The channel's own "*" is literal text, and it also equals the pattern key,
	// so the bucket fires once as a wildcard match and once as an exact match.
	h.Publish("/a/*")
	m.RunAll()
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"/a/*", "/a/*"}, h.Match("/a/*"))
}

func TestHub_UnrootedPattern(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	_, err := h.Subscribe("a/b", r)
	require.NoError(t, err)

	// Only the exact pass can reach unrooted keys.
	h.Publish("/a/b")
	m.RunAll()
	assert.Empty(t, r.got)

	h.Publish("a/b")
	m.RunAll()
	require.Len(t, r.got, 1)
	assert.Equal(t, []string{"a", "b"}, r.got[0].Segments)
}

func TestHub_RemovedBeforeDeliveryIsSkipped(t *testing.T) {
	h, m := newManualHub()

	var log []string
	first, err := h.Subscribe("/a", &recorder{name: "first", log: &log})
	require.NoError(t, err)
	_, err = h.Subscribe("/a", &recorder{name: "second", log: &log})
	require.NoError(t, err)

	h.Publish("/a")
	require.NoError(t, h.Unsubscribe(first))
	m.RunAll()

	assert.Equal(t, []string{"second"}, log)
}

func TestHub_CallbackRemovesLaterEntry(t *testing.T) {
	h, m := newManualHub()

	var log []string
	var second Handle
	_, err := h.SubscribeFunc("/a", func(Delivery) {
		log = append(log, "first")
		_ = h.Unsubscribe(second)
	})
	require.NoError(t, err)
	second, err = h.Subscribe("/a", &recorder{name: "second", log: &log})
	require.NoError(t, err)

	h.Publish("/a")
	m.RunAll()
	assert.Equal(t, []string{"first"}, log)
}

func TestHub_AddedToCapturedBucketIsDelivered(t *testing.T) {
	h, m := newManualHub()

	var log []string
	_, err := h.Subscribe("/a", &recorder{name: "first", log: &log})
	require.NoError(t, err)

	h.Publish("/a")
	_, err = h.Subscribe("/a", &recorder{name: "late", log: &log})
	require.NoError(t, err)
	m.RunAll()

	assert.Equal(t, []string{"first", "late"}, log)
}

func TestHub_NewBucketAfterPublishIsNotDelivered(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	h.Publish("/a")
	_, err := h.Subscribe("/a", r)
	require.NoError(t, err)
	m.RunAll()

	assert.Empty(t, r.got)
}

func TestHub_EmptiedBucketStillReceivesLateRegistrations(t *testing.T) {
	h, m := newManualHub()
	r := &recorder{}

	first, err := h.SubscribeFunc("/a", func(Delivery) {})
	require.NoError(t, err)

	h.Publish("/a")
	require.NoError(t, h.Unsubscribe(first))
	assert.Empty(t, h.Registry().Patterns())
	assert.Empty(t, h.Match("/a"))

	_, err = h.Subscribe("/a", r)
	require.NoError(t, err)
	m.RunAll()

	assert.Len(t, r.got, 1)
	assert.Equal(t, []string{"/a"}, h.Registry().Patterns())
}

func TestHub_PanicIsolation(t *testing.T) {
	tw := &loggo.TestWriter{}
	logCtx := loggo.NewContext(loggo.TRACE)
	require.NoError(t, logCtx.AddWriter("test", tw))

	var handled []*PanicError
	h, m := newManualHub(
		WithLogger(logCtx.GetLogger("topichub.hub")),
		WithPanicHandler(func(err *PanicError) { handled = append(handled, err) }),
	)

	var log []string
	bad, err := h.SubscribeFunc("/a", func(Delivery) { panic("boom") })
	require.NoError(t, err)
	_, err = h.Subscribe("/a", &recorder{name: "after", log: &log})
	require.NoError(t, err)

	h.Publish("/a")
	m.RunAll()

	assert.Equal(t, []string{"after"}, log)
	require.Len(t, handled, 1)
	assert.Equal(t, bad.ID(), handled[0].HandleID)
	assert.Equal(t, "boom", handled[0].Value)
	assert.ErrorIs(t, handled[0], ErrCallbackPanic)
	assert.Equal(t, uint64(1), h.Stats().Panics)

	var found bool
	for _, e := range tw.Log() {
		if e.Level == loggo.ERROR && strings.Contains(e.Message, "boom") {
			found = true
		}
	}
	assert.True(t, found, "panic was not logged")
}

func TestHub_PanicHandlerPanics(t *testing.T) {
	h, m := newManualHub(WithPanicHandler(func(*PanicError) { panic("again") }))

	ran := false
	_, err := h.SubscribeFunc("/a", func(Delivery) { panic("boom") })
	require.NoError(t, err)
	_, err = h.SubscribeFunc("/a", func(Delivery) { ran = true })
	require.NoError(t, err)

	h.Publish("/a")
	m.RunAll()
	assert.True(t, ran)
}

func TestHub_DroppedWhenSchedulerRefuses(t *testing.T) {
	refuse := schedule.Func(func(schedule.Task) error {
		return schedule.ErrNotRunning
	})
	h := New(WithScheduler(refuse))

	h.Publish("/a")
	assert.Equal(t, uint64(1), h.Stats().Dropped)
}

func TestHub_OwnedQueue(t *testing.T) {
	h := New()

	var got atomic.Int32
	_, err := h.SubscribeFunc("/a/**", func(Delivery) { got.Add(1) })
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		h.Publish("/a/b")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Drain(ctx))
	assert.Equal(t, int32(10), got.Load())

	require.NoError(t, h.Close(ctx))
	require.NoError(t, h.Close(ctx))

	h.Publish("/a/b")
	assert.Equal(t, uint64(1), h.Stats().Dropped)
}

func TestHub_DrainWithoutDrainer(t *testing.T) {
	h, _ := newManualHub()
	assert.NoError(t, h.Drain(context.Background()))
	assert.NoError(t, h.Close(context.Background()))
}

func TestHub_Stats(t *testing.T) {
	h, _ := newManualHub()

	_, err := h.SubscribeFunc("/a", func(Delivery) {})
	require.NoError(t, err)
	_, err = h.SubscribeFunc("/a", func(Delivery) {})
	require.NoError(t, err)
	_, err = h.SubscribeFunc("/b/*", func(Delivery) {})
	require.NoError(t, err)

	stats := h.Stats()
	assert.Equal(t, 3, stats.Subscriptions)
	assert.Equal(t, 2, stats.Patterns)
	assert.Equal(t, "hub(3 subscriptions, 2 patterns)", h.String())
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
}
