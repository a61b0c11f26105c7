package bridge

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/opd-ai/toxcall/call"
	"github.com/opd-ai/toxcall/video"
)

// Signaling ops carried in text messages.
const (
	OpIncomingCall      = "incoming_call"
	OpCallStateChange   = "call_state_change"
	OpCallEnded         = "call_ended"
	OpVideoCaptureError = "video_capture_error"
	OpAudioLevel        = "audio_level_update"
)

// Call state names carried by call_state_change.
const (
	stateInProgress = "in_progress"
	stateEnded      = "ended"
	stateError      = "error"
)

// signalMessage is the JSON envelope of a text message.
type signalMessage struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  uint64          `json:"seq,omitempty"`
}

type incomingCallData struct {
	FriendNumber uint32 `json:"friend_number"`
	Name         string `json:"name,omitempty"`
	AudioEnabled bool   `json:"audio_enabled"`
	VideoEnabled bool   `json:"video_enabled"`
}

type callStateData struct {
	FriendNumber   uint32 `json:"friend_number"`
	State          string `json:"state,omitempty"`
	SendingAudio   bool   `json:"sending_audio"`
	SendingVideo   bool   `json:"sending_video"`
	AcceptingAudio bool   `json:"accepting_audio"`
	AcceptingVideo bool   `json:"accepting_video"`
	// Bits, when present, is the raw call state bitmask and overrides
	// the other fields.
	Bits *uint32 `json:"bits,omitempty"`
}

type callEndedData struct {
	FriendNumber uint32 `json:"friend_number"`
	Reason       string `json:"reason"`
}

type audioLevelData struct {
	FriendNumber uint32  `json:"friend_number"`
	Level        float32 `json:"level"`
}

type captureErrorData struct {
	Message string `json:"message"`
}

// frameMessage is the CBOR envelope of a binary message. Payload is a
// frame in the video wire format.
type frameMessage struct {
	Seq     uint64 `cbor:"seq,omitempty"`
	Local   bool   `cbor:"local"`
	PeerID  uint32 `cbor:"peer"`
	Payload []byte `cbor:"payload"`
}

var (
	frameEncMode cbor.EncMode
	frameDecMode cbor.DecMode
)

func init() {
	var err error
	frameEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("bridge: CBOR encoder initialization failed: " + err.Error())
	}
	frameDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("bridge: CBOR decoder initialization failed: " + err.Error())
	}
}

// DecodeSignal decodes a JSON signaling message.
func DecodeSignal(data []byte) (Envelope, error) {
	var msg signalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	var ev Event
	switch msg.Op {
	case OpIncomingCall:
		var d incomingCallData
		if err := decodeData(msg, &d); err != nil {
			return Envelope{}, err
		}
		ev = IncomingCall{
			PeerID:       d.FriendNumber,
			PeerName:     d.Name,
			AudioEnabled: d.AudioEnabled,
			VideoEnabled: d.VideoEnabled,
		}
	case OpCallStateChange:
		var d callStateData
		if err := decodeData(msg, &d); err != nil {
			return Envelope{}, err
		}
		ev = CallStateChange{PeerID: d.FriendNumber, Flags: d.flags()}
	case OpCallEnded:
		var d callEndedData
		if err := decodeData(msg, &d); err != nil {
			return Envelope{}, err
		}
		ev = CallEnded{PeerID: d.FriendNumber, Reason: d.Reason}
	case OpAudioLevel:
		var d audioLevelData
		if err := decodeData(msg, &d); err != nil {
			return Envelope{}, err
		}
		ev = AudioLevel{PeerID: d.FriendNumber, Level: clampLevel(d.Level)}
	case OpVideoCaptureError:
		var d captureErrorData
		if err := decodeData(msg, &d); err != nil {
			return Envelope{}, err
		}
		ev = VideoCaptureError{Message: d.Message}
	default:
		return Envelope{}, fmt.Errorf("%w: %w %q", ErrMalformedEvent, ErrUnknownOp, msg.Op)
	}
	return Envelope{Seq: msg.Seq, Event: ev}, nil
}

func decodeData(msg signalMessage, v any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%w: %s without payload", ErrMalformedEvent, msg.Op)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedEvent, msg.Op, err)
	}
	return nil
}

func clampLevel(level float32) float32 {
	switch {
	case math.IsNaN(float64(level)) || level < 0:
		return 0
	case level > 1:
		return 1
	}
	return level
}

func (d callStateData) flags() call.StateFlags {
	if d.Bits != nil {
		return call.StateFlagsFromBits(*d.Bits)
	}
	return call.StateFlags{
		Error:          d.State == stateError,
		Finished:       d.State == stateEnded,
		SendingAudio:   d.SendingAudio,
		SendingVideo:   d.SendingVideo,
		AcceptingAudio: d.AcceptingAudio,
		AcceptingVideo: d.AcceptingVideo,
	}
}

// EncodeSignal encodes a signaling event as a JSON message.
func EncodeSignal(seq uint64, ev Event) ([]byte, error) {
	var (
		op   string
		data any
	)
	switch ev := ev.(type) {
	case IncomingCall:
		op = OpIncomingCall
		data = incomingCallData{
			FriendNumber: ev.PeerID,
			Name:         ev.PeerName,
			AudioEnabled: ev.AudioEnabled,
			VideoEnabled: ev.VideoEnabled,
		}
	case CallStateChange:
		state := stateInProgress
		switch {
		case ev.Flags.Error:
			state = stateError
		case ev.Flags.Finished:
			state = stateEnded
		}
		op = OpCallStateChange
		data = callStateData{
			FriendNumber:   ev.PeerID,
			State:          state,
			SendingAudio:   ev.Flags.SendingAudio,
			SendingVideo:   ev.Flags.SendingVideo,
			AcceptingAudio: ev.Flags.AcceptingAudio,
			AcceptingVideo: ev.Flags.AcceptingVideo,
		}
	case CallEnded:
		op = OpCallEnded
		data = callEndedData{FriendNumber: ev.PeerID, Reason: ev.Reason}
	case AudioLevel:
		op = OpAudioLevel
		data = audioLevelData{FriendNumber: ev.PeerID, Level: ev.Level}
	case VideoCaptureError:
		op = OpVideoCaptureError
		data = captureErrorData{Message: ev.Message}
	default:
		return nil, fmt.Errorf("%w: %T is not a signaling event", ErrUnknownOp, ev)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(signalMessage{Op: op, Data: raw, Seq: seq})
}

// DecodeFrame decodes a CBOR frame message.
func DecodeFrame(data []byte) (Envelope, error) {
	var msg frameMessage
	if err := frameDecMode.Unmarshal(data, &msg); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	source := video.RemoteSource(msg.PeerID)
	if msg.Local {
		source = video.LocalSource()
	}
	frame, err := video.DecodeWire(source, msg.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: frame from %s: %w", ErrMalformedEvent, source, err)
	}
	return Envelope{Seq: msg.Seq, Event: VideoFrame{Frame: frame}}, nil
}

// EncodeFrame encodes a frame as a CBOR message.
func EncodeFrame(seq uint64, frame video.Frame) ([]byte, error) {
	payload, err := video.EncodeWire(frame)
	if err != nil {
		return nil, err
	}
	return frameEncMode.Marshal(frameMessage{
		Seq:     seq,
		Local:   frame.Source.Local,
		PeerID:  frame.Source.PeerID,
		Payload: payload,
	})
}
