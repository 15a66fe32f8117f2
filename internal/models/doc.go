// Package models defines domain entities and persistence interfaces for the Multify party playlist service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service and wire data
//   - [Track] : Spotify catalog track metadata
//   - [Playlist] / [PlaylistPage] : A user's Spotify playlists with paging cursors
//   - [TokenRecord] : The cached Spotify token triple kept by the client
//   - [TokenGrant] : The token payload returned by the callable endpoints
//
// 2. Persistent Entities: Database-backed models
//   - [Party] : A hosted party with its join code and host credentials
//   - [QueuedTrack] : A track in a party queue with its denormalised vote counters
//   - [Vote] : A single like or dislike marker cast by a user
//
// [Party] implements the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
