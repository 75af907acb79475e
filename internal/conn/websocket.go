package conn

import (
	"context"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"
)

const maxFrameBytes = 1 << 20

type wsSocket struct {
	c *websocket.Conn
}

func (s *wsSocket) Read(ctx context.Context) ([]byte, error) {
	_, data, err := s.c.Read(ctx)
	return data, err
}

func (s *wsSocket) Write(ctx context.Context, data []byte) error {
	return s.c.Write(ctx, websocket.MessageText, data)
}

func (s *wsSocket) Close() error {
	return s.c.Close(websocket.StatusNormalClosure, "client disconnect")
}

// dialWebsocket is the production DialFunc. The bearer credential travels in
// the handshake; a 401/403 handshake response is an authentication rejection,
// not a transient failure.
func dialWebsocket(ctx context.Context, url, token string) (Socket, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("handshake status %d: %w", resp.StatusCode, ErrAuthRejected)
		}
		return nil, err
	}
	c.SetReadLimit(maxFrameBytes)
	return &wsSocket{c: c}, nil
}
