package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Controller owns the call session state machine.
//
// The Controller follows the single-writer discipline: every command and
// every signaling event mutates state inside exactly one critical section,
// and no critical section spans a transport request.
type Controller struct {
	transport    Transport
	config       Config
	timeProvider TimeProvider

	// cmdSem queues commands that wait on the transport. Hangup and
	// DeclineCall never take it.
	cmdSem chan struct{}

	mu       sync.Mutex
	session  *Session
	incoming *IncomingCall
	flags    Flags
	pending  *pendingCommand
	ticker   *durationTicker
	ring     *time.Timer
	closed   bool

	obsMu     sync.RWMutex
	observers []func(Snapshot)
}

// pendingCommand marks a call-creating command waiting on the transport.
// Signaling events for its peer that arrive before the transport returns
// are recorded here and applied once the session exists.
type pendingCommand struct {
	op     string
	peerID uint32
	// cancelled is set when the user hangs up before an outgoing call
	// has been confirmed by the transport.
	cancelled bool

	ended     bool
	endStatus Status
	endReason string

	active bool
	flags  StateFlags
}

// record stores a signaling event that raced the transport request.
func (p *pendingCommand) record(flags StateFlags, final Status, reason string, ended bool) {
	if p.ended {
		return
	}
	if ended {
		p.ended, p.endStatus, p.endReason = true, final, reason
		p.active = false
		return
	}
	p.active, p.flags = true, flags
}

// NewController creates a controller bound to transport.
func NewController(transport Transport, config Config) (*Controller, error) {
	logrus.WithFields(logrus.Fields{
		"function":      "NewController",
		"tick_interval": config.TickInterval,
		"ring_timeout":  config.RingTimeout,
	}).Info("Creating call session controller")

	if transport == nil {
		return nil, ErrNilTransport
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Controller{
		transport:    transport,
		config:       config,
		timeProvider: DefaultTimeProvider{},
		cmdSem:       make(chan struct{}, 1),
	}, nil
}

// SetTimeProvider sets the time provider for deterministic testing.
// If tp is nil, DefaultTimeProvider is used.
func (c *Controller) SetTimeProvider(tp TimeProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tp == nil {
		tp = DefaultTimeProvider{}
	}
	c.timeProvider = tp
}

// OnChange registers an observer invoked after every state change and on
// every duration tick. Observers run outside the controller lock and may
// call back into the controller.
func (c *Controller) OnChange(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, fn)
}

// Close stops the duration ticker and the ring timer. The controller keeps
// answering snapshot queries after Close.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTickerLocked()
	c.stopRingLocked()
}

// StartCall places an outgoing call to peerID.
//
// The session is created in RingingOutgoing only after the transport
// accepts the request. If the user hangs up while the request is in flight
// the placed call is hung up again and ErrCallCancelled is returned. If the
// peer ends the call before the transport returns, no session is created
// and ErrCallCancelled is returned; if the peer already accepted, the
// session starts in InProgress.
func (c *Controller) StartCall(ctx context.Context, peerID uint32, withVideo bool) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	snap, err := c.placeCall(ctx, peerID, withVideo)
	c.release()
	if snap != nil {
		c.notify(*snap)
	}
	return err
}

func (c *Controller) placeCall(ctx context.Context, peerID uint32, withVideo bool) (*Snapshot, error) {
	c.mu.Lock()
	switch {
	case c.session != nil:
		c.mu.Unlock()
		return nil, ErrCallAlreadyActive
	case c.incoming != nil:
		c.mu.Unlock()
		return nil, ErrIncomingCallPending
	}
	cmd := &pendingCommand{op: "place_call", peerID: peerID}
	c.pending = cmd
	c.mu.Unlock()

	err := c.transport.PlaceCall(ctx, peerID, withVideo)

	c.mu.Lock()
	c.pending = nil
	if err != nil {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "StartCall",
			"peer_id":  peerID,
			"error":    err.Error(),
		}).Error("Transport rejected outgoing call")
		return nil, fmt.Errorf("%w: place call to peer %d: %w", ErrCommandFailed, peerID, err)
	}
	if cmd.cancelled {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "StartCall",
			"peer_id":  peerID,
		}).Info("Outgoing call cancelled before confirmation")
		if herr := c.transport.Hangup(ctx, peerID); herr != nil {
			return nil, fmt.Errorf("%w: hangup cancelled call to peer %d: %w", ErrCommandFailed, peerID, herr)
		}
		return nil, ErrCallCancelled
	}
	if c.incoming != nil && c.incoming.PeerID == peerID {
		// Both ends dialled each other; the outgoing call supersedes the request.
		c.incoming = nil
		c.stopRingLocked()
	}
	session := &Session{
		ID:           uuid.New(),
		PeerID:       peerID,
		Status:       StatusRingingOutgoing,
		HasAudio:     true,
		HasVideo:     withVideo,
		IsVideoMuted: !withVideo,
	}
	if cmd.ended {
		ended := *session
		ended.Status = cmd.endStatus
		snap := c.snapshotLocked()
		snap.Status = cmd.endStatus
		snap.Session = &ended
		snap.EndReason = cmd.endReason
		c.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function": "StartCall",
			"peer_id":  peerID,
			"reason":   cmd.endReason,
		}).Info("Outgoing call ended by peer before confirmation")
		return &snap, fmt.Errorf("%w: peer %d ended the call: %s", ErrCallCancelled, peerID, cmd.endReason)
	}
	if cmd.active {
		session.Status = StatusInProgress
		session.StartedAt = c.timeProvider.Now()
		session.HasAudio = cmd.flags.HasAudio()
		session.HasVideo = cmd.flags.HasVideo()
	}
	c.session = session
	if session.Status == StatusInProgress {
		c.startTickerLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "StartCall",
		"peer_id":    peerID,
		"session_id": snap.Session.ID,
		"status":     snap.Status.String(),
		"with_video": withVideo,
	}).Info("Outgoing call placed")
	return &snap, nil
}

// AnswerCall accepts the pending incoming call.
func (c *Controller) AnswerCall(ctx context.Context, withVideo bool) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	snap, err := c.answer(ctx, withVideo)
	c.release()
	if snap != nil {
		c.notify(*snap)
	}
	return err
}

func (c *Controller) answer(ctx context.Context, withVideo bool) (*Snapshot, error) {
	c.mu.Lock()
	switch {
	case c.incoming == nil:
		c.mu.Unlock()
		return nil, ErrNoIncomingCall
	case c.session != nil:
		c.mu.Unlock()
		return nil, ErrCallAlreadyActive
	}
	req := c.incoming
	cmd := &pendingCommand{op: "answer", peerID: req.PeerID}
	c.pending = cmd
	c.mu.Unlock()

	err := c.transport.Answer(ctx, req.PeerID, withVideo)

	c.mu.Lock()
	c.pending = nil
	if err != nil {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "AnswerCall",
			"peer_id":  req.PeerID,
			"error":    err.Error(),
		}).Error("Transport rejected answer")
		return nil, fmt.Errorf("%w: answer peer %d: %w", ErrCommandFailed, req.PeerID, err)
	}
	if c.incoming != req {
		c.mu.Unlock()
		return nil, ErrCallCancelled
	}
	c.incoming = nil
	c.stopRingLocked()
	c.session = &Session{
		ID:           uuid.New(),
		PeerID:       req.PeerID,
		Status:       StatusInProgress,
		HasAudio:     true,
		HasVideo:     withVideo,
		IsVideoMuted: !withVideo,
		StartedAt:    c.timeProvider.Now(),
	}
	if cmd.active {
		c.session.HasAudio = cmd.flags.HasAudio()
		c.session.HasVideo = cmd.flags.HasVideo()
	}
	c.startTickerLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "AnswerCall",
		"peer_id":    req.PeerID,
		"session_id": snap.Session.ID,
		"with_video": withVideo,
	}).Info("Incoming call answered")
	return &snap, nil
}

// DeclineCall rejects the pending incoming call. The request is cleared
// locally before the transport is asked to hang up, so a slow or failing
// transport never leaves the user stuck on a ringing call. Declining with
// nothing pending is a no-op.
func (c *Controller) DeclineCall(ctx context.Context) error {
	c.mu.Lock()
	req := c.incoming
	if req == nil {
		c.mu.Unlock()
		return nil
	}
	c.incoming = nil
	c.stopRingLocked()
	snap := c.snapshotLocked()
	snap.EndReason = "declined"
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "DeclineCall",
		"peer_id":  req.PeerID,
	}).Info("Incoming call declined")

	c.notify(snap)

	if err := c.transport.Hangup(ctx, req.PeerID); err != nil {
		return fmt.Errorf("%w: decline peer %d: %w", ErrCommandFailed, req.PeerID, err)
	}
	return nil
}

// Hangup ends the active or ringing outgoing call. The session is torn down
// locally first. Hanging up with no such call is a no-op returning nil.
func (c *Controller) Hangup(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	if s == nil || (s.Status != StatusInProgress && s.Status != StatusRingingOutgoing) {
		if c.pending != nil && c.pending.op == "place_call" {
			c.pending.cancelled = true
		}
		c.mu.Unlock()
		return nil
	}
	peerID := s.PeerID
	snap := c.teardownLocked(StatusEnded, "hangup")
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "Hangup",
		"peer_id":    peerID,
		"session_id": snap.Session.ID,
	}).Info("Call hung up locally")

	c.notify(snap)

	if err := c.transport.Hangup(ctx, peerID); err != nil {
		return fmt.Errorf("%w: hangup peer %d: %w", ErrCommandFailed, peerID, err)
	}
	return nil
}

// ToggleMute flips the local audio mute flag and asks the transport to
// apply it. Two calls toggle twice.
func (c *Controller) ToggleMute(ctx context.Context) error {
	return c.sessionCommand(ctx, "toggle_mute", func(s Session) (func() error, func(*Session, *Flags)) {
		muted := !s.IsAudioMuted
		send := func() error { return c.transport.SetMuted(ctx, s.PeerID, muted) }
		apply := func(s *Session, _ *Flags) { s.IsAudioMuted = muted }
		return send, apply
	})
}

// ToggleVideo flips the local video flag and requests renegotiation.
// Enabling video also marks the session as carrying video; the negotiated
// flags are corrected by the next CallStateChange if the peer disagrees.
func (c *Controller) ToggleVideo(ctx context.Context) error {
	return c.sessionCommand(ctx, "toggle_video", func(s Session) (func() error, func(*Session, *Flags)) {
		enable := s.IsVideoMuted
		send := func() error { return c.transport.SetVideoEnabled(ctx, s.PeerID, enable) }
		apply := func(s *Session, f *Flags) {
			s.IsVideoMuted = !enable
			if enable {
				s.HasVideo = true
			} else {
				f.ScreenSharing = false
				f.ScreenID = nil
			}
		}
		return send, apply
	})
}

// SetScreenShare switches the outgoing video source between the camera and
// a screen. Turning screen sharing on enables video first if it is muted.
func (c *Controller) SetScreenShare(ctx context.Context, on bool, screenID *uint32) error {
	return c.sessionCommand(ctx, "screen_share", func(s Session) (func() error, func(*Session, *Flags)) {
		var send func() error
		if on && s.IsVideoMuted {
			send = func() error { return c.transport.SetVideoEnabled(ctx, s.PeerID, true) }
		}
		apply := func(s *Session, f *Flags) {
			f.ScreenSharing = on
			f.ScreenID = nil
			if on {
				if screenID != nil {
					id := *screenID
					f.ScreenID = &id
				}
				s.IsVideoMuted = false
				s.HasVideo = true
			}
		}
		return send, apply
	})
}

// ToggleDeafen flips the local deafen flag. It never reaches the transport.
func (c *Controller) ToggleDeafen() error {
	return c.localFlag("toggle_deafen", func(f *Flags) { f.Deafened = !f.Deafened })
}

// SetFullscreen records whether the call view is fullscreen.
func (c *Controller) SetFullscreen(on bool) error {
	return c.localFlag("set_fullscreen", func(f *Flags) { f.Fullscreen = on })
}

// sessionCommand runs a two-phase command against the current session.
// Commands queue behind each other; plan is evaluated under the lock once
// the command reaches the head of the queue, so it always sees the state
// left by the previous command. It returns the transport request (nil when
// none is needed) and the mutation to apply once the request succeeded.
func (c *Controller) sessionCommand(ctx context.Context, op string, plan func(s Session) (send func() error, apply func(*Session, *Flags))) error {
	if !c.HasActiveCall() {
		return fmt.Errorf("%s: %w", op, ErrNoActiveCall)
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	snap, err := c.runSessionCommand(op, plan)
	c.release()
	if snap != nil {
		c.notify(*snap)
	}
	return err
}

func (c *Controller) runSessionCommand(op string, plan func(s Session) (send func() error, apply func(*Session, *Flags))) (*Snapshot, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, ErrNoActiveCall)
	}
	s := *c.session
	send, apply := plan(s)
	c.mu.Unlock()

	var err error
	if send != nil {
		err = send()
	}

	c.mu.Lock()
	if err != nil {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":   op,
			"peer_id":    s.PeerID,
			"session_id": s.ID,
			"error":      err.Error(),
		}).Error("Transport rejected call command")
		return nil, fmt.Errorf("%w: %s peer %d: %w", ErrCommandFailed, op, s.PeerID, err)
	}
	if c.session == nil || c.session.ID != s.ID {
		c.mu.Unlock()
		return nil, ErrCallCancelled
	}
	apply(c.session, &c.flags)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":       op,
		"peer_id":        s.PeerID,
		"audio_muted":    snap.Session.IsAudioMuted,
		"video_muted":    snap.Session.IsVideoMuted,
		"screen_sharing": snap.Flags.ScreenSharing,
	}).Debug("Call command applied")
	return &snap, nil
}

// acquire waits for the command queue or for ctx to be done.
func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.cmdSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) release() {
	<-c.cmdSem
}

func (c *Controller) localFlag(op string, apply func(*Flags)) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrNoActiveCall)
	}
	apply(&c.flags)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// Status returns the controller's current lifecycle position.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Snapshot returns the full controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Session returns the active session, if any.
func (c *Controller) Session() (Session, bool) {
	snap := c.Snapshot()
	if snap.Session == nil {
		return Session{}, false
	}
	return *snap.Session, true
}

// Incoming returns the pending incoming call request, if any.
func (c *Controller) Incoming() (IncomingCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incoming == nil {
		return IncomingCall{}, false
	}
	return *c.incoming, true
}

// Flags returns the call-scoped local flags.
func (c *Controller) Flags() Flags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags
}

// HasActiveCall reports whether a session exists. The device manager uses
// it to decide whether a selection applies immediately.
func (c *Controller) HasActiveCall() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

func (c *Controller) statusLocked() Status {
	if c.session != nil {
		return c.session.Status
	}
	if c.incoming != nil {
		return StatusRingingIncoming
	}
	return StatusIdle
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status: c.statusLocked(),
		Flags:  c.flags,
	}
	if c.session != nil {
		s := *c.session
		s.Duration = c.durationLocked(s.StartedAt)
		snap.Session = &s
	}
	if c.incoming != nil {
		in := *c.incoming
		snap.Incoming = &in
	}
	if c.flags.ScreenID != nil {
		id := *c.flags.ScreenID
		snap.Flags.ScreenID = &id
	}
	return snap
}

func (c *Controller) durationLocked(startedAt time.Time) time.Duration {
	if startedAt.IsZero() {
		return 0
	}
	d := c.timeProvider.Since(startedAt)
	if d < 0 {
		return 0
	}
	return d
}

// teardownLocked clears the session and every call-scoped flag. The
// returned snapshot reports the final status of the ended session.
func (c *Controller) teardownLocked(final Status, reason string) Snapshot {
	ended := *c.session
	ended.Status = final
	ended.Duration = c.durationLocked(ended.StartedAt)

	c.stopTickerLocked()
	c.session = nil
	c.flags = Flags{}

	snap := c.snapshotLocked()
	snap.Status = final
	snap.Session = &ended
	snap.EndReason = reason
	return snap
}

func (c *Controller) notify(snap Snapshot) {
	c.obsMu.RLock()
	observers := make([]func(Snapshot), len(c.observers))
	copy(observers, c.observers)
	c.obsMu.RUnlock()

	for _, fn := range observers {
		fn(snap)
	}
}
