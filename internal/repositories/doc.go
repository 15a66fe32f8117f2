// Package repositories implements SQLite persistence for parties, queued tracks and vote markers.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Parties support soft deletes via deleted_at timestamps and deleted parties are excluded from queries by default.
//
// Key Implementations:
//   - [PartyRepository] : Party persistence with code-based lookups
//   - [QueueRepository] : Queued tracks, vote markers and their denormalised counters
//   - [ImportAdapter] : Queue writer for the fallback playlist import that treats duplicates as skipped
//
// Sequence numbers provide stable, human-readable ordering (e.g., party #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
