// Package call implements the call session controller for toxcall.
//
// The Controller owns at most one call session and at most one pending
// incoming call request. It reconciles local user commands (start, answer,
// decline, hang up, mute and video toggles) with asynchronous signaling
// events delivered by the event bridge.
//
// # Lifecycle
//
//	Idle ──StartCall──▶ RingingOutgoing ──CallStateChange──▶ InProgress
//	Idle ──IncomingCall event──▶ (pending request) ──AnswerCall──▶ InProgress
//	(pending request) ──DeclineCall / ring timeout──▶ Idle
//	InProgress ──Hangup / CallEnded / finished state──▶ Idle
//
// Ended and Error are terminal statuses reported once to observers before
// the session is cleared.
//
// # Usage
//
//	ctrl, err := call.NewController(transport, call.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer ctrl.Close()
//
//	ctrl.OnChange(func(s call.Snapshot) {
//	    // re-render call UI
//	})
//
//	if err := ctrl.StartCall(ctx, peerID, false); err != nil {
//	    // the transport rejected the call; state is unchanged
//	}
//
// # Thread Safety
//
// All Controller methods are safe for concurrent use. State is mutated in
// one critical section per command or event; transport requests are issued
// outside the lock and their outcome is applied in a second critical
// section that re-checks the session identity. Commands that reach the
// transport are queued and run one at a time; Hangup and DeclineCall skip
// the queue. Signaling events for a peer whose call is still being placed
// are held and applied when the transport returns. Observers are invoked
// outside the lock.
//
// # Duration
//
// The connected duration is never stored as a free-running counter. It is
// derived as now minus the start time each time it is read, and a periodic
// ticker owned by the Controller only triggers observer notifications while
// the call is in progress.
package call
