// Package token keeps a Spotify access token alive on the client.
//
// A [Manager] owns the cached [models.TokenRecord], persists it through a [Store]
// and schedules one silent refresh shortly before the access token expires.
//
// State transitions:
//
//	Unauthenticated --Login--> Authorizing --ok--> Fresh
//	Authorizing --fail--> Unauthenticated (ConsentRequiredError)
//	Fresh --timer--> Refreshing --ok--> Fresh
//	Refreshing --fail--> NearExpiry
package token
