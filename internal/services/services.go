// package services wraps the third-party HTTP APIs used by Multify.
//
// Spotify (OAuth and Web API) and the backend's own callable endpoints.
package services

import (
	"context"

	"github.com/desertthunder/multify/internal/models"
)

// Catalog is the part of the Spotify Web API used by the backend and the CLI.
// Every call is made on behalf of the owner of accessToken.
type Catalog interface {
	CurrentUser(ctx context.Context, accessToken string) (models.SpotifyUser, error)
	CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (models.Playlist, error)
	Playlists(ctx context.Context, accessToken, cursor string) (models.PlaylistPage, error)
	SearchTracks(ctx context.Context, accessToken, query string, limit int) ([]models.Track, error)
	GetTrack(ctx context.Context, accessToken, trackID string) (models.Track, error)
	GetPlaylistTracks(ctx context.Context, accessToken, playlistID string) ([]models.Track, error)
}

// TokenService exchanges OAuth redirects and refresh tokens for token grants.
type TokenService interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, redirectURL string) (models.TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenGrant, error)
}
