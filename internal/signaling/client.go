package signaling

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// connect dials the host's WebSocket, adding the shared secret to the query.
//
//	ws://203.0.113.7:8443/ws
func connect(ctx context.Context, rawURL, secret string) (*websocket.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid signaling url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set(keyParam, secret)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	return conn, nil
}
