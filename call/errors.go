package call

import "errors"

// Sentinel errors for call package operations.
// These errors enable reliable error classification using errors.Is().

// Command errors.
var (
	// ErrCallAlreadyActive indicates a session already exists.
	ErrCallAlreadyActive = errors.New("call already active")

	// ErrIncomingCallPending indicates an unanswered incoming call blocks the command.
	ErrIncomingCallPending = errors.New("incoming call pending")

	// ErrNoIncomingCall indicates there is no pending incoming call to answer.
	ErrNoIncomingCall = errors.New("no incoming call")

	// ErrNoActiveCall indicates there is no session for the command to act on.
	ErrNoActiveCall = errors.New("no active call")

	// ErrCallCancelled indicates the call was torn down while the command was in flight.
	ErrCallCancelled = errors.New("call cancelled")

	// ErrCommandFailed wraps every error returned by the transport.
	ErrCommandFailed = errors.New("transport command failed")
)

// Construction errors.
var (
	// ErrNilTransport indicates a controller was created without a transport.
	ErrNilTransport = errors.New("transport cannot be nil")

	// ErrInvalidConfig indicates a non-positive interval or timeout.
	ErrInvalidConfig = errors.New("invalid controller configuration")
)
