// Package server provides the HTTP API of the party backend.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] uses [http.ServeMux] patterns of the form "METHOD /path/{wildcard}".
// [Middleware] wraps handlers in reverse order (last added executes first).
//
// # Callable Functions
//
// [CallableHandler] serves POST /callable/{name} for authenticateSpotifyUser,
// refreshToken and createParty. Requests carry {"data": {...}}. Successful calls
// answer {"result": ...}; failures answer {"error": {"status", "message", "details"}}
// with an HTTP status derived from the error code.
//
// # Parties
//
// [PartyHandler] serves code lookup, the viewer's ranked queue, adding tracks,
// vote changes and the websocket live feed. The calling user comes from the
// X-Multify-User header or the viewer query parameter.
//
// # OAuth Callback Handler
//
// [OAuthHandler] receives the Spotify redirect during `multify spotify login`.
// It validates the state parameter and passes the redirect URL on through a
// channel. It only processes one callback.
package server
