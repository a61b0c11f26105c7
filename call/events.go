package call

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// HandleIncomingCall applies an incoming call signal.
//
// A request from the peer of the current session is a duplicate and is
// dropped. A request from any other peer replaces the pending request.
func (c *Controller) HandleIncomingCall(peerID uint32, peerName string, audioEnabled, videoEnabled bool) {
	c.mu.Lock()
	if c.session != nil && c.session.PeerID == peerID {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "HandleIncomingCall",
			"peer_id":  peerID,
			"status":   c.Status().String(),
		}).Debug("Dropping incoming call for peer already in session")
		return
	}
	if c.incoming != nil && c.incoming.PeerID == peerID {
		c.mu.Unlock()
		return
	}
	if c.incoming != nil {
		logrus.WithFields(logrus.Fields{
			"function":      "HandleIncomingCall",
			"replaced_peer": c.incoming.PeerID,
			"peer_id":       peerID,
		}).Info("Replacing pending incoming call")
	}

	req := &IncomingCall{
		PeerID:          peerID,
		PeerDisplayName: peerName,
		AudioEnabled:    audioEnabled,
		VideoEnabled:    videoEnabled,
		ReceivedAt:      c.timeProvider.Now(),
	}
	c.incoming = req
	c.startRingLocked(req)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":      "HandleIncomingCall",
		"peer_id":       peerID,
		"audio_enabled": audioEnabled,
		"video_enabled": videoEnabled,
	}).Info("Incoming call pending")

	c.notify(snap)
}

// HandleCallStateChange applies a peer call state report.
//
// An active report moves a ringing or in-progress session for the same peer
// to InProgress and refreshes the negotiated audio/video flags. A finished
// or error report ends the session (or clears the pending request) for that
// peer. Reports for any other peer are stale and dropped.
func (c *Controller) HandleCallStateChange(peerID uint32, flags StateFlags) {
	if !flags.IsActive() {
		final, reason := StatusEnded, "hangup"
		if flags.Error {
			final, reason = StatusError, "error"
		}
		c.endPeer(peerID, final, reason)
		return
	}

	c.mu.Lock()
	s := c.session
	if s == nil && c.recordPendingLocked(peerID, flags, StatusInProgress, "", false) {
		c.mu.Unlock()
		return
	}
	if s == nil || s.PeerID != peerID {
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "HandleCallStateChange",
			"peer_id":  peerID,
		}).Debug("Dropping state change for peer without session")
		return
	}
	if s.Status != StatusRingingOutgoing && s.Status != StatusInProgress {
		c.mu.Unlock()
		return
	}
	previous := s.Status
	if s.Status != StatusInProgress {
		s.Status = StatusInProgress
		s.StartedAt = c.timeProvider.Now()
	}
	s.HasAudio = flags.HasAudio()
	s.HasVideo = flags.HasVideo()
	c.startTickerLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "HandleCallStateChange",
		"peer_id":    peerID,
		"session_id": snap.Session.ID,
		"from":       previous.String(),
		"to":         snap.Session.Status.String(),
		"has_audio":  snap.Session.HasAudio,
		"has_video":  snap.Session.HasVideo,
	}).Info("Call state updated")

	c.notify(snap)
}

// HandleCallEnded applies a call-ended signal for peerID.
func (c *Controller) HandleCallEnded(peerID uint32, reason string) {
	if reason == "" {
		reason = "ended"
	}
	c.endPeer(peerID, StatusEnded, reason)
}

// endPeer ends whatever the controller holds for peerID and leaves state
// belonging to other peers untouched.
func (c *Controller) endPeer(peerID uint32, final Status, reason string) {
	c.mu.Lock()
	var snap Snapshot
	switch {
	case c.session != nil && c.session.PeerID == peerID:
		snap = c.teardownLocked(final, reason)
	case c.incoming != nil && c.incoming.PeerID == peerID:
		c.incoming = nil
		c.stopRingLocked()
		snap = c.snapshotLocked()
		snap.EndReason = reason
	case c.session == nil && c.recordPendingLocked(peerID, StateFlags{}, final, reason, true):
		c.mu.Unlock()
		return
	default:
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "endPeer",
			"peer_id":  peerID,
			"reason":   reason,
		}).Debug("Dropping end signal for unknown peer")
		return
	}
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "endPeer",
		"peer_id":  peerID,
		"status":   final.String(),
		"reason":   reason,
	}).Info("Call ended by peer")

	c.notify(snap)
}

// recordPendingLocked hands an event for peerID to the command awaiting the
// transport for that peer. It reports whether the event was taken.
func (c *Controller) recordPendingLocked(peerID uint32, flags StateFlags, final Status, reason string, ended bool) bool {
	p := c.pending
	if p == nil || p.peerID != peerID {
		return false
	}
	// An answer in flight is ended through the incoming request.
	if ended && p.op != "place_call" {
		return false
	}
	p.record(flags, final, reason, ended)
	logrus.WithFields(logrus.Fields{
		"function": "recordPendingLocked",
		"peer_id":  peerID,
		"op":       p.op,
		"ended":    ended,
	}).Debug("Holding signaling event until the transport returns")
	return true
}

func (c *Controller) startRingLocked(req *IncomingCall) {
	c.stopRingLocked()
	if c.closed {
		return
	}
	c.ring = time.AfterFunc(c.config.RingTimeout, func() { c.expireIncoming(req) })
}

func (c *Controller) stopRingLocked() {
	if c.ring != nil {
		c.ring.Stop()
		c.ring = nil
	}
}

// expireIncoming clears req if it is still the pending request when the
// ring timeout fires.
func (c *Controller) expireIncoming(req *IncomingCall) {
	c.mu.Lock()
	if c.incoming != req {
		c.mu.Unlock()
		return
	}
	c.incoming = nil
	c.ring = nil
	snap := c.snapshotLocked()
	snap.EndReason = "timeout"
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "expireIncoming",
		"peer_id":  req.PeerID,
		"timeout":  c.config.RingTimeout,
	}).Info("Incoming call timed out")

	c.notify(snap)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.CommandTimeout)
	defer cancel()
	if err := c.transport.Hangup(ctx, req.PeerID); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "expireIncoming",
			"peer_id":  req.PeerID,
			"error":    err.Error(),
		}).Warn("Failed to hang up timed out call")
	}
}
