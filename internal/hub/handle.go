package hub

import (
	"reflect"

	"github.com/google/uuid"
)

// Handle identifies one registration returned by Subscribe.
// Passing it back to Unsubscribe removes exactly that registration,
// even when the same callback was subscribed to the same pattern more than once.
type Handle struct {
	id      string
	pattern string
	handler Handler
}

func newHandle(pattern string, h Handler) Handle {
	return Handle{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: h,
	}
}

// ID returns the unique registration token.
func (h Handle) ID() string {
	return h.id
}

// Pattern returns the pattern key the registration was made under.
func (h Handle) Pattern() string {
	return h.pattern
}

// Handler returns the registered callback.
func (h Handle) Handler() Handler {
	return h.handler
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.id == ""
}

// identityOf returns the value used to compare callbacks in UnsubscribeFunc,
// or nil when the callback has none. Func values never have one: closures
// from one literal and method values on different receivers share a code
// pointer, and Go offers nothing finer.
func identityOf(callback any) any {
	if callback == nil {
		return nil
	}
	t := reflect.TypeOf(callback)
	if t.Kind() == reflect.Func || !t.Comparable() {
		return nil
	}
	return callback
}

// sameIdentity compares two identities produced by identityOf.
func sameIdentity(a, b any) (same bool) {
	if a == nil || b == nil {
		return false
	}
	// Interface fields inside a comparable struct can still hold
	// uncomparable values.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
