package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/shared"
)

// UserHeader carries the caller's user id on callable and party requests.
const UserHeader = "X-Multify-User"

// CallableClient calls the backend's callable endpoints.
type CallableClient struct {
	baseURL    string
	httpClient *http.Client
	userID     string
	consentURL func(state string) string
}

// NewCallableClient creates a client for the backend at baseURL.
func NewCallableClient(baseURL string, client *http.Client) *CallableClient {
	if baseURL == "" {
		baseURL = "http://localhost:3001"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &CallableClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

// SetUser sets the user id sent with every call.
func (c *CallableClient) SetUser(userID string) { c.userID = userID }

// SetConsentURL sets the builder of the Spotify consent page returned by [CallableClient.AuthURL].
func (c *CallableClient) SetConsentURL(f func(state string) string) { c.consentURL = f }

type callableRequest struct {
	Data any `json:"data"`
}

// CallableResponse is the envelope returned by a callable endpoint.
type CallableResponse struct {
	Result json.RawMessage           `json:"result,omitempty"`
	Error  *shared.CallableErrorBody `json:"error,omitempty"`
}

// Call invokes the callable name with data and decodes its result into result, which may be nil.
// A failure reported by the backend is returned as a [shared.CallableError].
func (c *CallableClient) Call(ctx context.Context, name string, data, result any) error {
	payload, err := json.Marshal(callableRequest{Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/callable/"+name, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.userID != "" {
		req.Header.Set(UserHeader, c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope CallableResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: status %d: unexpected response body", shared.ErrAPIRequest, resp.StatusCode)
	}

	if envelope.Error != nil {
		return envelope.Error.Err()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}

	return nil
}

// AuthURL returns the Spotify consent page, or an empty string when no builder is set.
func (c *CallableClient) AuthURL(state string) string {
	if c.consentURL == nil {
		return ""
	}
	return c.consentURL(state)
}

// Exchange calls authenticateSpotifyUser with the OAuth redirect URL.
func (c *CallableClient) Exchange(ctx context.Context, redirectURL string) (models.TokenGrant, error) {
	var grant models.TokenGrant
	err := c.Call(ctx, "authenticateSpotifyUser", map[string]string{"url": redirectURL}, &grant)
	return grant, err
}

// Refresh calls refreshToken.
func (c *CallableClient) Refresh(ctx context.Context, refreshToken string) (models.TokenGrant, error) {
	var grant models.TokenGrant
	err := c.Call(ctx, "refreshToken", map[string]string{"refreshToken": refreshToken}, &grant)
	return grant, err
}

// CreatedParty is the result of the createParty callable.
type CreatedParty struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	PlaylistID string `json:"playlist_id,omitempty"`
}

// CreateParty calls createParty as the client's user.
func (c *CallableClient) CreateParty(ctx context.Context, name, spotifyToken, spotifyID string) (CreatedParty, error) {
	var created CreatedParty
	data := map[string]string{"name": name, "spotifyToken": spotifyToken}
	if spotifyID != "" {
		data["spotifyId"] = spotifyID
	}
	err := c.Call(ctx, "createParty", data, &created)
	return created, err
}
