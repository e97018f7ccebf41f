package ddp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}

// PushSubscription is the long-lived notification channel. The server
// stays silent until an analysis finishes, then sends a single text
// frame carrying the result handle.
type PushSubscription struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// SubscribeResults opens the websocket push channel for the current
// credential. The caller owns the subscription and must Close it.
func (c *Client) SubscribeResults(ctx context.Context) (*PushSubscription, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/ws?token=%s", c.wsURL, token)
	header := http.Header{}
	header.Add("Authorization", fmt.Sprintf("Bearer %s", token))

	conn, resp, err := c.Dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("push channel dial failed (%d): %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return &PushSubscription{conn: conn}, nil
}

// Wait blocks until the server pushes a result handle, the context is
// cancelled, or the connection drops. Frames are read in send order;
// the first text frame wins and its whole payload is the handle.
func (s *PushSubscription) Wait(ctx context.Context) (ResultID, error) {
	// ReadMessage has no context form; unblock it by closing the
	// connection when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "", fmt.Errorf("push channel closed before a result arrived")
			}
			return "", fmt.Errorf("push channel error: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		id := strings.TrimSpace(string(data))
		if id == "" {
			continue
		}
		return ResultID(id), nil
	}
}

// Close tears the channel down. Safe to call more than once and from a
// different goroutine than Wait.
func (s *PushSubscription) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeDeadline())
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
