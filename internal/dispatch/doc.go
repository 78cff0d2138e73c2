// Package dispatch runs the user callback of a form as a background task.
//
// A Dispatcher has two states:
//
//	Idle --Start--> Running --Poll observes the end--> Idle
//
// Start hands the validated invocation and the callback to a new goroutine
// through a one-shot channel and returns immediately. Poll is non-blocking
// and is the only place where the dispatcher learns a run has ended; a host
// is expected to call it on every tick.
//
// Invariants:
//   - At most one run is active. Start while Running returns ErrRunInProgress
//     and changes nothing.
//   - The invocation is owned by the worker once handed over.
//   - A panicking callback is recovered, reported to stderr and treated as a
//     finished run. There is no typed error coming back from the callback.
//   - Runs are not killed. Cancel only cancels the context the callback got.
package dispatch
