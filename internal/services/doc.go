// Package services implements the clients Multify uses to talk to Spotify and to its own backend.
//
// # Spotify
//
// [SpotifyService] holds the OAuth configuration (golang.org/x/oauth2) and builds a
// Web API client (github.com/zmb3/spotify/v2) per access token. It implements both
// [TokenService] and [Catalog].
//
// Endpoints default to Spotify's and can be overridden through the "auth_url",
// "token_url" and "api_url" credential keys.
//
// # Callable client
//
// [CallableClient] calls the backend's callable endpoints using the
// {"data": ...} / {"result": ...} envelope. It implements [TokenService] so the
// client-side token manager can authorize and refresh through the backend
// without holding the Spotify client secret.
//
// # Error Handling
//
// Failed upstream calls return a [shared.CallableError] with code "unknown",
// the message "Spotify error code: <status>" and the upstream HTTP status.
// Malformed input returns code "invalid-argument".
package services
