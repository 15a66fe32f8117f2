package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/queue"
	"github.com/desertthunder/multify/internal/shared"
)

// LookupParty resolves a join code to a party id.
func (c *CallableClient) LookupParty(ctx context.Context, code string) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodGet, "/codes/"+url.PathEscape(code), nil, &result)
	return result.ID, err
}

// Queue returns the ranked queue of a party as seen by the client's user.
func (c *CallableClient) Queue(ctx context.Context, partyID string) ([]queue.RankedTrack, error) {
	var result struct {
		Tracks []queue.RankedTrack `json:"tracks"`
	}
	err := c.do(ctx, http.MethodGet, "/parties/"+url.PathEscape(partyID)+"/queue", nil, &result)
	return result.Tracks, err
}

// AddTrack queues a catalog track by id.
func (c *CallableClient) AddTrack(ctx context.Context, partyID, trackID string) error {
	body := map[string]string{"track_id": trackID}
	return c.do(ctx, http.MethodPost, "/parties/"+url.PathEscape(partyID)+"/queue", body, nil)
}

// Vote sets the client's user markers on a track.
func (c *CallableClient) Vote(ctx context.Context, partyID, trackID string, up, down bool) (models.VoteState, error) {
	var state models.VoteState
	path := "/parties/" + url.PathEscape(partyID) + "/queue/" + url.PathEscape(trackID) + "/vote"
	err := c.do(ctx, http.MethodPut, path, models.VoteState{Up: up, Down: down}, &state)
	return state, err
}

// LiveURL returns the websocket URL of a party's live updates.
func (c *CallableClient) LiveURL(partyID string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/parties/" + url.PathEscape(partyID) + "/live?viewer=" + url.QueryEscape(c.userID)
}

// do sends a JSON request to a REST endpoint. Errors use the same body as callables.
func (c *CallableClient) do(ctx context.Context, method, path string, data, result any) error {
	var reader io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
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

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope CallableResponse
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
			return envelope.Error.Err()
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
