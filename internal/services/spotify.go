package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1/"

	defaultRedirectURI = "http://localhost:3000/login/"
	defaultPageSize    = 20
	playlistPageSize   = 100
)

// DefaultScopes are requested when the credentials name none.
var DefaultScopes = []string{"playlist-modify-public", "user-modify-playback-state", "user-read-email"}

// SpotifyService talks to Spotify's accounts service and Web API.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Required keys are client_id and client_secret. Optional keys: redirect_uri,
// scopes (space separated), auth_url, token_url and api_url.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingCredentials)
	}

	scopes := strings.Fields(credentials["scopes"])
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  valueOr(credentials["redirect_uri"], defaultRedirectURI),
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   valueOr(credentials["auth_url"], spotifyAuthURL),
			TokenURL:  valueOr(credentials["token_url"], spotifyTokenURL),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	apiURL := valueOr(credentials["api_url"], spotifyAPIURL)
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}

	return &SpotifyService{
		config:     config,
		apiURL:     apiURL,
		httpClient: http.DefaultClient,
	}, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetHTTPClient replaces the HTTP client used for token and API requests.
func (s *SpotifyService) SetHTTPClient(client *http.Client) {
	if client != nil {
		s.httpClient = client
	}
}

// RedirectURL returns the configured OAuth redirect URI.
func (s *SpotifyService) RedirectURL() string {
	return s.config.RedirectURL
}

// AuthURL returns the Spotify consent page for state.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange reads the authorization code from the URL Spotify redirected the user
// to and trades it for a token grant.
func (s *SpotifyService) Exchange(ctx context.Context, redirectURL string) (models.TokenGrant, error) {
	code, err := CodeFromRedirect(redirectURL)
	if err != nil {
		return models.TokenGrant{}, err
	}

	tok, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return models.TokenGrant{}, upstreamError(err)
	}
	return grantFromToken(tok), nil
}

// Refresh trades a refresh token for a new access token.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (models.TokenGrant, error) {
	if refreshToken == "" {
		return models.TokenGrant{}, shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'refreshToken' parameter.")
	}

	tok, err := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return models.TokenGrant{}, upstreamError(err)
	}
	return grantFromToken(tok), nil
}

// CodeFromRedirect extracts the authorization code from an OAuth redirect URL.
func CodeFromRedirect(redirectURL string) (string, error) {
	if strings.TrimSpace(redirectURL) == "" {
		return "", shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'url' parameter.")
	}

	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", &shared.CallableError{Code: shared.CodeInvalidArgument, Message: "Invalid 'url' parameter.", Err: err}
	}

	query := u.Query()
	if reason := query.Get("error"); reason != "" {
		return "", shared.NewCallableError(shared.CodeInvalidArgument, "Spotify authorization denied: %s", reason)
	}

	code := query.Get("code")
	if code == "" {
		return "", shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'code' in 'url' parameter.")
	}
	return code, nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func grantFromToken(tok *oauth2.Token) models.TokenGrant {
	grant := models.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		grant.ExpiresIn = int(math.Round(time.Until(tok.Expiry).Seconds()))
	}
	return grant
}

// upstreamError converts an OAuth or Web API failure into a callable error carrying the upstream status.
func upstreamError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return shared.UpstreamError(retrieveErr.Response.StatusCode, err)
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return shared.UpstreamError(apiErr.Status, err)
	}

	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) {
		return shared.UpstreamError(apiErrPtr.Status, err)
	}

	return &shared.CallableError{
		Code:    shared.CodeUnknown,
		Message: "Spotify request failed",
		Err:     fmt.Errorf("%w: %v", shared.ErrAPIRequest, err),
	}
}

// client builds a Web API client authorized with accessToken.
func (s *SpotifyService) client(accessToken string) *spotify.Client {
	base := s.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   base,
		},
		Timeout: s.httpClient.Timeout,
	}

	return spotify.New(httpClient, spotify.WithBaseURL(s.apiURL))
}

// CurrentUser retrieves the profile of the token's owner.
func (s *SpotifyService) CurrentUser(ctx context.Context, accessToken string) (models.SpotifyUser, error) {
	user, err := s.client(accessToken).CurrentUser(ctx)
	if err != nil {
		return models.SpotifyUser{}, upstreamError(err)
	}

	return models.SpotifyUser{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}, nil
}

// CreatePlaylist creates a public playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (models.Playlist, error) {
	playlist, err := s.client(accessToken).CreatePlaylistForUser(ctx, userID, name, description, true, false)
	if err != nil {
		return models.Playlist{}, upstreamError(err)
	}

	return models.Playlist{
		ID:          string(playlist.ID),
		Name:        playlist.Name,
		Description: playlist.Description,
		Owner:       playlist.Owner.ID,
		Public:      playlist.IsPublic,
	}, nil
}

// Playlists returns one page of the user's playlists. cursor is empty for the
// first page or a Next/Previous URL from an earlier page.
func (s *SpotifyService) Playlists(ctx context.Context, accessToken, cursor string) (models.PlaylistPage, error) {
	limit, offset, err := parseCursor(cursor)
	if err != nil {
		return models.PlaylistPage{}, err
	}

	page, err := s.client(accessToken).CurrentUsersPlaylists(ctx, spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return models.PlaylistPage{}, upstreamError(err)
	}

	result := models.PlaylistPage{
		Items:    make([]models.Playlist, 0, len(page.Playlists)),
		Total:    int(page.Total),
		Next:     page.Next,
		Previous: page.Previous,
	}

	for _, p := range page.Playlists {
		owner := p.Owner.DisplayName
		if owner == "" {
			owner = p.Owner.ID
		}
		result.Items = append(result.Items, models.Playlist{
			ID:          string(p.ID),
			Name:        p.Name,
			Description: p.Description,
			Owner:       owner,
			TrackCount:  int(p.Tracks.Total),
			Public:      p.IsPublic,
		})
	}

	return result, nil
}

// parseCursor reads limit and offset from a page URL.
func parseCursor(cursor string) (limit, offset int, err error) {
	limit = defaultPageSize
	if cursor == "" {
		return limit, 0, nil
	}

	u, err := url.Parse(cursor)
	if err != nil {
		return 0, 0, &shared.CallableError{Code: shared.CodeInvalidArgument, Message: "Invalid page cursor.", Err: err}
	}

	query := u.Query()
	if v := query.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, shared.NewCallableError(shared.CodeInvalidArgument, "Invalid page cursor limit %q.", v)
		}
	}
	if v := query.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, shared.NewCallableError(shared.CodeInvalidArgument, "Invalid page cursor offset %q.", v)
		}
	}

	return limit, offset, nil
}

// SearchTracks searches the catalog for tracks matching query.
func (s *SpotifyService) SearchTracks(ctx context.Context, accessToken, query string, limit int) ([]models.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, shared.NewCallableError(shared.CodeInvalidArgument, "Missing 'query' parameter.")
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	results, err := s.client(accessToken).Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, upstreamError(err)
	}

	tracks := []models.Track{}
	if results.Tracks == nil {
		return tracks, nil
	}
	for _, ft := range results.Tracks.Tracks {
		tracks = append(tracks, toTrack(ft))
	}
	return tracks, nil
}

// GetTrack retrieves one catalog track.
func (s *SpotifyService) GetTrack(ctx context.Context, accessToken, trackID string) (models.Track, error) {
	ft, err := s.client(accessToken).GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return models.Track{}, upstreamError(err)
	}
	return toTrack(*ft), nil
}

// GetPlaylistTracks returns every track of a playlist, following pagination.
// Episodes and local files without a catalog id are skipped.
func (s *SpotifyService) GetPlaylistTracks(ctx context.Context, accessToken, playlistID string) ([]models.Track, error) {
	client := s.client(accessToken)

	page, err := client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(playlistPageSize))
	if err != nil {
		return nil, upstreamError(err)
	}

	var tracks []models.Track
	for {
		for _, item := range page.Items {
			if item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			tracks = append(tracks, toTrack(*item.Track.Track))
		}

		err := client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, upstreamError(err)
		}
	}

	return tracks, nil
}

func toTrack(ft spotify.FullTrack) models.Track {
	track := models.Track{
		ID:      string(ft.ID),
		Name:    ft.Name,
		Album:   ft.Album.Name,
		URI:     string(ft.URI),
		Artists: make([]string, 0, len(ft.Artists)),
	}
	for _, a := range ft.Artists {
		track.Artists = append(track.Artists, a.Name)
	}
	if len(ft.Album.Images) > 0 {
		track.ArtworkURL = ft.Album.Images[0].URL
	}
	return track
}
