package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Subscription reads snapshots from a party's live endpoint.
type Subscription struct {
	conn *websocket.Conn
}

// Subscribe connects to the websocket at url.
func Subscribe(ctx context.Context, url string, header http.Header) (*Subscription, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to subscribe (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return &Subscription{conn: conn}, nil
}

// Next blocks until the next snapshot arrives.
func (s *Subscription) Next() (Message, error) {
	var msg Message
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("invalid snapshot: %w", err)
	}
	return msg, nil
}

// Close sends a close frame and closes the connection.
func (s *Subscription) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
