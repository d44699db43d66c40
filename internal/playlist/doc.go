// package playlist implements the rotation queue: the ordered pending sequence, the current slot,
// and the per-track vote rules that promote or evict entries.
//
// A [Queue] is not safe for concurrent use. It is owned by the scheduler goroutine and reached from
// other goroutines only through the scheduler's bridge.
package playlist
