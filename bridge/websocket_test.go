package bridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/toxcall/video"
)

type wsMessage struct {
	kind int
	data []byte
}

// eventServer serves msgs to the first client and then closes normally,
// unless hold is set.
func eventServer(t *testing.T, msgs []wsMessage, hold bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range msgs {
			if err := conn.WriteMessage(m.kind, m.data); err != nil {
				return
			}
		}
		if hold {
			// Wait for the client to go away.
			_, _, _ = conn.ReadMessage()
			return
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketSourceDecodesMessages(t *testing.T) {
	frame := testFrame(video.RemoteSource(7), 4, 2, 200)
	frameMsg, err := EncodeFrame(1, frame)
	require.NoError(t, err)

	srv := eventServer(t, []wsMessage{
		{websocket.TextMessage, []byte(`{"op":"incoming_call","d":{"friend_number":7,"audio_enabled":true},"seq":1}`)},
		{websocket.BinaryMessage, frameMsg},
		{websocket.TextMessage, []byte(`{"op":"bogus"}`)},
	}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src, err := Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer src.Close()

	env, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, Envelope{Seq: 1, Event: IncomingCall{PeerID: 7, AudioEnabled: true}}, env)

	env, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, VideoFrame{Frame: frame}, env.Event)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWebSocketSourceCancel(t *testing.T) {
	srv := eventServer(t, nil, true)

	src, err := Dial(context.Background(), wsURL(srv), nil)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunOverWebSocket(t *testing.T) {
	frameMsg, err := EncodeFrame(0, testFrame(video.LocalSource(), 2, 2, 90))
	require.NoError(t, err)
	srv := eventServer(t, []wsMessage{
		{websocket.TextMessage, []byte(`{"op":"video_capture_error","d":{"message":"unplugged"}}`)},
		{websocket.TextMessage, []byte(`{"op":"incoming_call","d":{"friend_number":5}}`)},
		{websocket.BinaryMessage, frameMsg},
	}, false)

	src, err := Dial(context.Background(), wsURL(srv), nil)
	require.NoError(t, err)
	defer src.Close()

	b, ctrl, reg := newTestBridge(t, 4)
	require.NoError(t, b.Run(context.Background(), src))

	assert.Equal(t, []Event{IncomingCall{PeerID: 5}}, ctrl.recorded())
	_, hasErr := b.CaptureError()
	assert.False(t, hasErr, "local frame after the capture error clears it")
	p, ok := reg.Lookup(video.LocalSource())
	require.True(t, ok)
	assert.True(t, p.HasRendered())
}

func TestRunCountsMismatchedFrameAsDropped(t *testing.T) {
	// 4x2 needs 12 bytes of planar data; send 11.
	payload := append([]byte{4, 0, 2, 0}, make([]byte, 11)...)
	frameMsg, err := frameEncMode.Marshal(frameMessage{Seq: 1, PeerID: 7, Payload: payload})
	require.NoError(t, err)
	srv := eventServer(t, []wsMessage{
		{websocket.BinaryMessage, frameMsg},
	}, false)

	src, err := Dial(context.Background(), wsURL(srv), nil)
	require.NoError(t, err)
	defer src.Close()

	b, _, reg := newTestBridge(t, 4)
	require.NoError(t, b.Run(context.Background(), src))

	assert.Zero(t, b.Stats().Malformed)
	p, ok := reg.Lookup(video.RemoteSource(7))
	require.True(t, ok)
	assert.Equal(t, uint64(1), p.Stats().Dropped)
	assert.False(t, p.HasRendered())
}
