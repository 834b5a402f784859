// Package schedule provides the deferred execution capability used by the hub.
//
// A Scheduler accepts a zero-argument Task and runs it later, never inside
// the Schedule call. The hub schedules exactly one task per publish, so the
// ordering a scheduler gives its tasks is the ordering publishes are
// delivered in.
//
// # Schedulers
//
//   - Queue: a FIFO drained by one worker goroutine. Tasks never overlap and run
//     in the order they were scheduled. This is the hub's default.
//
//   - Manual: tasks wait until RunPending or RunAll is called. Used by tests and
//     by hosts that own their own event loop (see the luabind package).
//
//   - Timer: each task is deferred by a fixed delay on a juju/clock Clock, the
//     way a zero-delay timer works in an event loop. Tasks still run one at a time
//     in schedule order.
//
// Any function with the right shape can be used through Func.
//
// # Panic Recovery
//
// A task that panics is recovered so one bad task cannot stop a worker. The
// panic value and stack are passed to the PanicHandler option.
package schedule
