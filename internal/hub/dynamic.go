package hub

import (
	"github.com/juju/errors"
)

// SubscribeAny is the untyped form of Subscribe used by script bindings and
// other callers that hold values of unknown type.
//
// pattern must be a string. callback must be a Handler, a func(Delivery),
// a func(...any) receiving Delivery.Args, or a func().
func (h *Hub) SubscribeAny(pattern any, callback any) (Handle, error) {
	key, ok := pattern.(string)
	if !ok {
		return Handle{}, errors.Annotatef(ErrInvalidChannel, "subscribe: pattern of type %T", pattern)
	}
	handler, err := asHandler(callback)
	if err != nil {
		return Handle{}, errors.Annotatef(err, "subscribe %q", key)
	}

	handle := h.registry.Add(key, handler, identityOf(callback))
	h.logger.Tracef("subscribed %s to %q", handle.id, key)
	return handle, nil
}

// UnsubscribeAny is the untyped form of Unsubscribe.
//
// handleOrPattern is either a Handle, in which case callback is ignored, or
// a pattern string, in which case the first registration under that exact
// key whose callback is callback is removed. As with UnsubscribeFunc, func
// callbacks are rejected with ErrInvalidCallback.
func (h *Hub) UnsubscribeAny(handleOrPattern any, callback any) error {
	switch v := handleOrPattern.(type) {
	case Handle:
		return h.Unsubscribe(v)
	case *Handle:
		if v == nil {
			return errors.Annotate(ErrInvalidChannel, "unsubscribe nil handle")
		}
		return h.Unsubscribe(*v)
	case string:
		if _, err := asHandler(callback); err != nil {
			return errors.Annotatef(err, "unsubscribe %q", v)
		}
		return h.removeFirst(v, callback)
	default:
		return errors.Annotatef(ErrInvalidChannel, "unsubscribe: argument of type %T", handleOrPattern)
	}
}

// asHandler adapts the supported callback shapes to Handler.
func asHandler(callback any) (Handler, error) {
	switch fn := callback.(type) {
	case nil:
		return nil, errors.Trace(ErrInvalidCallback)
	case HandlerFunc:
		if fn == nil {
			return nil, errors.Trace(ErrInvalidCallback)
		}
		return fn, nil
	case Handler:
		return fn, nil
	case func(Delivery):
		if fn == nil {
			return nil, errors.Trace(ErrInvalidCallback)
		}
		return HandlerFunc(fn), nil
	case func(...any):
		if fn == nil {
			return nil, errors.Trace(ErrInvalidCallback)
		}
		return HandlerFunc(func(d Delivery) { fn(d.Args()...) }), nil
	case func():
		if fn == nil {
			return nil, errors.Trace(ErrInvalidCallback)
		}
		return HandlerFunc(func(Delivery) { fn() }), nil
	default:
		return nil, errors.Annotatef(ErrInvalidCallback, "callback of type %T", callback)
	}
}
