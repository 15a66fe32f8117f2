// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

// MockSpotify is a test double for the Spotify catalog used by the party, server and task packages.
//
// Calls counts every method invocation so tests can assert that no network call happened.
type MockSpotify struct {
	mu sync.Mutex

	User           models.SpotifyUser
	Playlist       models.Playlist
	Pages          map[string]models.PlaylistPage
	Tracks         map[string]models.Track
	PlaylistTracks map[string][]models.Track
	Grant          models.TokenGrant
	Redirect       string
	Err            error

	Calls   int
	Created []string
}

// NewMockSpotify creates a MockSpotify with a user and an empty catalog.
func NewMockSpotify() *MockSpotify {
	return &MockSpotify{
		User:           models.SpotifyUser{ID: "spotify-user", DisplayName: "Host"},
		Playlist:       models.Playlist{ID: "playlist-1", Name: "Multify Playlist"},
		Pages:          map[string]models.PlaylistPage{},
		Tracks:         map[string]models.Track{},
		PlaylistTracks: map[string][]models.Track{},
		Grant:          models.TokenGrant{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600},
		Redirect:       "http://127.0.0.1:3000/login/",
	}
}

func (m *MockSpotify) record() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Err
}

// CallCount returns the number of calls made so far.
func (m *MockSpotify) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

func (m *MockSpotify) CurrentUser(ctx context.Context, accessToken string) (models.SpotifyUser, error) {
	if err := m.record(); err != nil {
		return models.SpotifyUser{}, err
	}
	return m.User, nil
}

func (m *MockSpotify) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string) (models.Playlist, error) {
	if err := m.record(); err != nil {
		return models.Playlist{}, err
	}
	m.mu.Lock()
	m.Created = append(m.Created, userID+"/"+name)
	m.mu.Unlock()
	return m.Playlist, nil
}

func (m *MockSpotify) Playlists(ctx context.Context, accessToken, cursor string) (models.PlaylistPage, error) {
	if err := m.record(); err != nil {
		return models.PlaylistPage{}, err
	}
	return m.Pages[cursor], nil
}

func (m *MockSpotify) SearchTracks(ctx context.Context, accessToken, query string, limit int) ([]models.Track, error) {
	if err := m.record(); err != nil {
		return nil, err
	}

	var found []models.Track
	for _, track := range m.Tracks {
		if strings.Contains(strings.ToLower(track.Name), strings.ToLower(query)) {
			found = append(found, track)
		}
		if limit > 0 && len(found) == limit {
			break
		}
	}
	return found, nil
}

func (m *MockSpotify) GetTrack(ctx context.Context, accessToken, trackID string) (models.Track, error) {
	if err := m.record(); err != nil {
		return models.Track{}, err
	}
	track, ok := m.Tracks[trackID]
	if !ok {
		return models.Track{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, trackID)
	}
	return track, nil
}

func (m *MockSpotify) GetPlaylistTracks(ctx context.Context, accessToken, playlistID string) ([]models.Track, error) {
	if err := m.record(); err != nil {
		return nil, err
	}
	return m.PlaylistTracks[playlistID], nil
}

// AuthURL returns a fake consent page carrying state. It does not count as a call.
func (m *MockSpotify) AuthURL(state string) string {
	return "https://accounts.test/authorize?state=" + state
}

// RedirectURL returns the configured redirect URI.
func (m *MockSpotify) RedirectURL() string { return m.Redirect }

func (m *MockSpotify) Exchange(ctx context.Context, redirectURL string) (models.TokenGrant, error) {
	if err := m.record(); err != nil {
		return models.TokenGrant{}, err
	}
	return m.Grant, nil
}

func (m *MockSpotify) Refresh(ctx context.Context, refreshToken string) (models.TokenGrant, error) {
	if err := m.record(); err != nil {
		return models.TokenGrant{}, err
	}
	return m.Grant, nil
}

// NewTestDB opens an in-memory database with migrations applied and closes it when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(shared.MemoryDSN)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
