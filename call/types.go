package call

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the position of the controller in the call lifecycle.
//
// A Session always carries one of RingingOutgoing, RingingIncoming,
// InProgress, Ended or Error. StatusIdle is reported by the controller when
// no session exists.
type Status uint32

const (
	// StatusIdle indicates no session and no pending incoming call.
	StatusIdle Status = iota
	// StatusRingingOutgoing indicates a call was placed and the peer has not answered.
	StatusRingingOutgoing
	// StatusRingingIncoming indicates an incoming call is waiting to be answered.
	StatusRingingIncoming
	// StatusInProgress indicates media is flowing.
	StatusInProgress
	// StatusEnded indicates the call finished normally.
	StatusEnded
	// StatusError indicates the call failed.
	StatusError
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRingingOutgoing:
		return "ringing_outgoing"
	case StatusRingingIncoming:
		return "ringing_incoming"
	case StatusInProgress:
		return "in_progress"
	case StatusEnded:
		return "ended"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint32(s))
	}
}

// IsSessionStatus reports whether s is a status a Session may carry.
func (s Status) IsSessionStatus() bool {
	return s >= StatusRingingOutgoing && s <= StatusError
}

// StateFlags mirrors the peer call state reported by the backend.
type StateFlags struct {
	Error          bool
	Finished       bool
	SendingAudio   bool
	SendingVideo   bool
	AcceptingAudio bool
	AcceptingVideo bool
}

// StateFlags bit values, matching TOXAV_FRIEND_CALL_STATE_*.
const (
	flagError          = 1 << 0
	flagFinished       = 1 << 1
	flagSendingAudio   = 1 << 2
	flagSendingVideo   = 1 << 3
	flagAcceptingAudio = 1 << 4
	flagAcceptingVideo = 1 << 5
)

// StateFlagsFromBits decodes a raw call state bitmask.
func StateFlagsFromBits(bits uint32) StateFlags {
	return StateFlags{
		Error:          bits&flagError != 0,
		Finished:       bits&flagFinished != 0,
		SendingAudio:   bits&flagSendingAudio != 0,
		SendingVideo:   bits&flagSendingVideo != 0,
		AcceptingAudio: bits&flagAcceptingAudio != 0,
		AcceptingVideo: bits&flagAcceptingVideo != 0,
	}
}

// IsActive reports whether the call is neither finished nor failed.
func (f StateFlags) IsActive() bool { return !f.Finished && !f.Error }

// HasAudio reports whether audio flows in either direction.
func (f StateFlags) HasAudio() bool { return f.SendingAudio || f.AcceptingAudio }

// HasVideo reports whether video flows in either direction.
func (f StateFlags) HasVideo() bool { return f.SendingVideo || f.AcceptingVideo }

// Session is a snapshot of the single active call.
type Session struct {
	// ID changes for every new session and is used to detect that a
	// command's session was replaced while the transport was busy.
	ID           uuid.UUID
	PeerID       uint32
	Status       Status
	HasAudio     bool
	HasVideo     bool
	IsAudioMuted bool
	IsVideoMuted bool
	// StartedAt is zero until the call first reaches InProgress.
	StartedAt time.Time
	// Duration is derived from StartedAt when the snapshot is taken.
	Duration time.Duration
}

// Started reports whether the session has reached InProgress.
func (s Session) Started() bool { return !s.StartedAt.IsZero() }

// DurationSeconds returns the whole seconds elapsed since the call connected.
func (s Session) DurationSeconds() int64 { return int64(s.Duration / time.Second) }

// IncomingCall is a pending call request from a peer.
type IncomingCall struct {
	PeerID          uint32
	PeerDisplayName string
	AudioEnabled    bool
	VideoEnabled    bool
	ReceivedAt      time.Time
}

// Flags are call-scoped local presentation flags. They reset whenever the
// session ends.
type Flags struct {
	Deafened      bool
	ScreenSharing bool
	// ScreenID selects the shared screen; nil means the primary screen.
	ScreenID   *uint32
	Fullscreen bool
}

// Snapshot is the view of controller state delivered to observers.
type Snapshot struct {
	Status   Status
	Session  *Session
	Incoming *IncomingCall
	Flags    Flags
	// EndReason is set only on the snapshot reporting an Ended or Error status.
	EndReason string
}

// Config holds controller timing settings.
type Config struct {
	// TickInterval is the period of duration notifications while in progress.
	TickInterval time.Duration
	// RingTimeout clears an unanswered incoming call.
	RingTimeout time.Duration
	// CommandTimeout bounds transport requests issued by the controller
	// itself (ring timeout hangups).
	CommandTimeout time.Duration
}

// DefaultConfig returns the default controller timing.
func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		RingTimeout:    30 * time.Second,
		CommandTimeout: 5 * time.Second,
	}
}

func (c Config) validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval %v", ErrInvalidConfig, c.TickInterval)
	}
	if c.RingTimeout <= 0 {
		return fmt.Errorf("%w: ring timeout %v", ErrInvalidConfig, c.RingTimeout)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("%w: command timeout %v", ErrInvalidConfig, c.CommandTimeout)
	}
	return nil
}
