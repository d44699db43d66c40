// Package repositories persists queue snapshots.
//
// Only the pending sequence is stored: the current slot and resolved files are transient and are
// resolved again after a restart. Two implementations of [SnapshotStore] exist:
//   - [SQLiteSnapshotStore] : default, schema managed by the embedded migrations in shared
//   - [PostgresSnapshotStore] : selected by a postgres:// database url, schema created on open
//
// Every save replaces the stored sequence in one transaction and appends a row to the snapshot log.
package repositories
