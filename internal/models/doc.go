// Package models defines the domain entities of the crowdq rotation queue.
//
// The package contains two categories of types:
//
// 1. Owned Entities: mutable state that lives inside the scheduler goroutine
//   - [Track] : one queued or playing item with its ranked download candidates and vote ledger
//   - [Candidate] : a persisted descriptor of one way to obtain a local file for a track
//
// 2. Read Views: value copies handed to callers outside the scheduler goroutine
//   - [TrackView] : a track plus the requesting voter's membership in its vote sets
//   - [QueueView] : the current slot and one page of the pending sequence
//   - [SnapshotEntry] : the persisted form of one pending track
//
// A [Track] must never escape the scheduler goroutine; everything else may be shared freely.
package models
