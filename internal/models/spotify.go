package models

import "time"

// Playlist is a Spotify playlist owned or followed by the current user.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

// PlaylistPage is one page of playlists. Next and Previous are page URLs usable as cursors.
type PlaylistPage struct {
	Items    []Playlist `json:"items"`
	Total    int        `json:"total"`
	Next     string     `json:"next,omitempty"`
	Previous string     `json:"previous,omitempty"`
}

// SpotifyUser is the profile of the account behind an access token.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// TokenRecord is the cached token triple. ExpiresAt is in unix seconds.
type TokenRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Expiry returns ExpiresAt as a time.
func (r TokenRecord) Expiry() time.Time {
	return time.Unix(r.ExpiresAt, 0)
}

// Live reports whether the access token is still valid at now.
func (r TokenRecord) Live(now time.Time) bool {
	return r.AccessToken != "" && r.Expiry().After(now)
}

// TokenGrant is a freshly issued token as returned by the callable endpoints.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// Record converts the grant into a token record issued at now.
//
// When the grant carries no refresh token, previousRefresh is kept.
func (g TokenGrant) Record(now time.Time, previousRefresh string) TokenRecord {
	refresh := g.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}
	return TokenRecord{
		AccessToken:  g.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(time.Duration(g.ExpiresIn) * time.Second).Unix(),
	}
}
