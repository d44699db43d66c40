// package scheduler runs the rotation loop and owns all queue state.
//
// A single goroutine ([Scheduler.Run]) multiplexes the tick timer, bridge requests, and download results,
// so queue mutations never interleave. Downloads run on a separate worker goroutine and only their
// results are applied on the owning goroutine. Snapshots are written by a persister goroutine that
// always saves the latest state.
//
// Other goroutines reach the state only through [Scheduler.Submit] and [Call].
package scheduler
