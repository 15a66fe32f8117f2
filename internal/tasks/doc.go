// Package tasks runs long party operations with real-time progress reporting.
//
// # Fallback Playlist Import
//
// [ImportEngine.Import] copies a host's Spotify playlist into a party queue:
//
//   - Fetches every track of the playlist, following pagination
//   - Feeds the tracks to a pool of workers throttled by a [rate.Limiter]
//   - Skips tracks that are already queued and counts write failures
//   - Publishes a single queue change once the pool is drained
//
// # Progress Reporting
//
// Progress is sent over a channel with select/default so a slow reader never
// blocks the import. [ProgressUpdate] carries the phase, step counters, a
// message and, for imported tracks, the [TrackImportResult].
package tasks
