package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// maxMessageSize bounds a single message; it fits the largest frame.
const maxMessageSize = 128 << 20

// WebSocketSource reads envelopes from a backend event socket.
type WebSocketSource struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the event socket at url.
func Dial(ctx context.Context, url string, header http.Header) (*WebSocketSource, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial event socket %s: %w", url, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Dial",
		"url":      url,
	}).Info("Connected to event socket")
	return NewWebSocketSource(conn), nil
}

// NewWebSocketSource wraps an established connection.
func NewWebSocketSource(conn *websocket.Conn) *WebSocketSource {
	conn.SetReadLimit(maxMessageSize)
	return &WebSocketSource{conn: conn}
}

// Next reads and decodes the next message. Text messages are signaling
// events and binary messages are video frames. Cancelling ctx interrupts a
// blocked read and leaves the connection unusable.
func (s *WebSocketSource) Next(ctx context.Context) (Envelope, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Envelope{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Envelope{}, io.EOF
			}
			return Envelope{}, err
		}

		switch kind {
		case websocket.TextMessage:
			return DecodeSignal(data)
		case websocket.BinaryMessage:
			return DecodeFrame(data)
		default:
			logrus.WithFields(logrus.Fields{
				"function":     "Next",
				"message_type": kind,
			}).Debug("Ignoring websocket message")
		}
	}
}

// Close sends a close frame and closes the connection.
func (s *WebSocketSource) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
