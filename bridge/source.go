package bridge

import (
	"context"
	"io"
)

// Source yields envelopes in arrival order. Next returns an error wrapping
// ErrMalformedEvent for a message that could not be decoded; the source
// remains usable. io.EOF reports that the source is exhausted.
type Source interface {
	Next(ctx context.Context) (Envelope, error)
}

// ChanSource reads envelopes from a channel. Closing the channel ends the
// source.
type ChanSource struct {
	ch <-chan Envelope
}

// NewChanSource returns a source reading from ch.
func NewChanSource(ch <-chan Envelope) *ChanSource {
	return &ChanSource{ch: ch}
}

// Next returns the next envelope from the channel.
func (s *ChanSource) Next(ctx context.Context) (Envelope, error) {
	select {
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case env, ok := <-s.ch:
		if !ok {
			return Envelope{}, io.EOF
		}
		return env, nil
	}
}
