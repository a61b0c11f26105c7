package call

import (
	"context"
	"time"
)

// Transport is the external collaborator that places and maintains calls.
//
// Every method is a request into an asynchronous backend and reports only
// success or failure. State confirmation arrives later as signaling events.
type Transport interface {
	PlaceCall(ctx context.Context, peerID uint32, withVideo bool) error
	Answer(ctx context.Context, peerID uint32, withVideo bool) error
	Hangup(ctx context.Context, peerID uint32) error
	SetMuted(ctx context.Context, peerID uint32, muted bool) error
	SetVideoEnabled(ctx context.Context, peerID uint32, enabled bool) error
}

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Since returns the duration since t.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }
