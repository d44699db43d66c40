// package resolver turns queued tracks into local files by trying their ranked download candidates.
//
// Resolution is split in two so downloads never run on the scheduler goroutine:
// [Resolver.Fetch] performs the blocking I/O from a [Job] copy and never touches the queue, and
// [Resolver.Apply] folds the [Result] back into the queue on the owning goroutine.
package resolver
