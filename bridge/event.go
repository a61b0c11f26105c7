package bridge

import (
	"github.com/opd-ai/toxcall/call"
	"github.com/opd-ai/toxcall/video"
)

// StreamSignal is the dedup stream shared by all signaling events.
const StreamSignal = "signal"

// Event is one decoded backend event. The set of variants is closed.
type Event interface {
	isEvent()
}

// IncomingCall reports a call request from a peer.
type IncomingCall struct {
	PeerID       uint32
	PeerName     string
	AudioEnabled bool
	VideoEnabled bool
}

// CallStateChange reports the peer's call state flags.
type CallStateChange struct {
	PeerID uint32
	Flags  call.StateFlags
}

// CallEnded reports that the call with a peer is over.
type CallEnded struct {
	PeerID uint32
	Reason string
}

// AudioLevel reports a peer's current audio level in the range 0 to 1.
type AudioLevel struct {
	PeerID uint32
	Level  float32
}

// VideoFrame carries one planar YUV420 frame.
type VideoFrame struct {
	Frame video.Frame
}

// VideoCaptureError reports a local capture failure, such as a camera
// unplugged mid-call. It is not a frame decode error.
type VideoCaptureError struct {
	Message string
}

func (IncomingCall) isEvent()      {}
func (CallStateChange) isEvent()   {}
func (CallEnded) isEvent()         {}
func (AudioLevel) isEvent()        {}
func (VideoFrame) isEvent()        {}
func (VideoCaptureError) isEvent() {}

// Envelope wraps an event with its dedup sequence.
type Envelope struct {
	// Seq is the per-stream sequence number; zero disables dedup.
	Seq uint64
	// Stream names the dedup stream. When empty it is derived from the event.
	Stream string
	Event  Event
}

// streamKey returns the dedup stream of env.
func (env Envelope) streamKey() string {
	if env.Stream != "" {
		return env.Stream
	}
	switch ev := env.Event.(type) {
	case VideoFrame:
		return ev.Frame.Source.String()
	case VideoCaptureError:
		return video.LocalSource().String()
	default:
		return StreamSignal
	}
}
