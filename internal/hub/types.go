package hub

// Delivery is what a callback receives for one matching publish.
type Delivery struct {
	// Channel is the channel exactly as published.
	Channel string

	// Segments is the normalised split of Channel. Callbacks subscribed with
	// wildcards use it to see which channel fired. It is shared between the
	// callbacks of one publish and must not be modified.
	Segments []string

	// Data holds the published values in call order.
	Data []any
}

// Args returns the argument list of the delivery: every published value
// followed by the channel segments.
func (d Delivery) Args() []any {
	args := make([]any, 0, len(d.Data)+1)
	args = append(args, d.Data...)
	return append(args, d.Segments)
}

// Handler is the interface for subscription callbacks.
type Handler interface {
	// Handle processes one delivery.
	Handle(d Delivery)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(d Delivery)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(d Delivery) {
	f(d)
}

// PanicHandler is called when a callback panics during delivery.
type PanicHandler func(err *PanicError)

// Stats contains hub statistics.
type Stats struct {
	// Published is the number of Publish calls.
	Published uint64

	// Delivered is the number of callback invocations.
	Delivered uint64

	// Panics is the number of callbacks that panicked.
	Panics uint64

	// Dropped is the number of publishes the scheduler refused.
	Dropped uint64

	// Subscriptions is the current number of registrations.
	Subscriptions int

	// Patterns is the current number of distinct pattern keys.
	Patterns int
}
