// Package party creates hosted parties and resolves join codes.
//
// A party is created with a fresh 5-digit code and a Spotify playlist owned by the host.
// Guests find the party by its code via [Service.LookupByCode].
package party
