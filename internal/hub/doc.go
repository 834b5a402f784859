// Package hub provides an in-process hierarchical publish/subscribe hub.
//
// Callbacks subscribe to pattern keys. A publish on a concrete channel fires
// every matching bucket of callbacks, in this order:
//
//   - trailing "**" patterns, shortest prefix first ("/**", "/a/**", ...)
//   - single "*" patterns, leftmost replaced segment first
//   - the exact channel string
//
// Every match fires; there is no first-match-wins and no deduplication.
//
// # Delivery
//
// Publish never runs callbacks itself. It resolves the matching buckets and
// hands one task to the hub's scheduler; that task runs the callbacks bucket
// by bucket in registration order. A registration removed before the task
// runs is skipped. Registrations added to a captured bucket before the task
// runs are delivered.
//
// A callback receives a Delivery with the published data and the channel
// segments, so wildcard subscribers can see which channel fired:
//
//	h := hub.New()
//	h.SubscribeFunc("/editor/*", func(d hub.Delivery) {
//	    fmt.Println(d.Segments[1], d.Data)
//	})
//	h.Publish("/editor/save", "main.go")
//
// # Failures
//
// Subscribe and Unsubscribe fail immediately with ErrInvalidChannel or
// ErrInvalidCallback. Publish reports nothing. A callback that panics is
// recovered and logged, counted in Stats, and passed to the panic handler
// set with WithPanicHandler; the other callbacks of that publish still run.
//
// # Removal
//
// Unsubscribe(handle) removes exactly the registration the handle was
// returned for. UnsubscribeFunc and UnsubscribeAny with a pattern string
// remove the first registration under that exact key whose callback is
// identical. That needs a comparable callback such as a pointer Handler.
// Func callbacks have no identity Go can check, so removing one by pattern
// fails with ErrInvalidCallback; keep the handle instead.
//
// Buckets are never dropped when they empty. A publish that captured the
// bucket for a key delivers to every registration added under that key
// before the task runs, including after the key was emptied.
package hub
