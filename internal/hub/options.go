package hub

import (
	"github.com/dshills/topichub/internal/hub/schedule"
	"github.com/juju/loggo"
)

// Option configures a Hub.
type Option func(*hubConfig)

// hubConfig contains configuration for a hub.
type hubConfig struct {
	// scheduler defers delivery tasks. Nil means the hub owns a Queue.
	scheduler schedule.Scheduler

	// panicHandler is called when a callback panics.
	panicHandler PanicHandler

	// logger receives delivery diagnostics.
	logger loggo.Logger
}

func defaultHubConfig() hubConfig {
	return hubConfig{
		logger: logger,
	}
}

// WithScheduler sets the scheduler used to defer deliveries.
// The hub does not start or stop a scheduler it was given.
func WithScheduler(s schedule.Scheduler) Option {
	return func(c *hubConfig) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithPanicHandler sets a handler that is called after a callback panic
// has been recovered and logged.
func WithPanicHandler(h PanicHandler) Option {
	return func(c *hubConfig) {
		c.panicHandler = h
	}
}

// WithLogger sets the logger used by the hub.
func WithLogger(l loggo.Logger) Option {
	return func(c *hubConfig) {
		c.logger = l
	}
}
