package call

import (
	"context"
	"sync"
	"time"
)

type transportCall struct {
	op     string
	peerID uint32
	value  bool
}

// mockTransport records every request and returns the configured error.
type mockTransport struct {
	mu    sync.Mutex
	calls []transportCall
	errs  map[string]error
	// hook runs before the request returns; tests use it to interleave
	// events with an in-flight command.
	hook func(op string)
}

func newMockTransport() *mockTransport {
	return &mockTransport{errs: make(map[string]error)}
}

func (m *mockTransport) record(op string, peerID uint32, value bool) error {
	m.mu.Lock()
	m.calls = append(m.calls, transportCall{op: op, peerID: peerID, value: value})
	err := m.errs[op]
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(op)
	}
	return err
}

func (m *mockTransport) failWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op] = err
}

func (m *mockTransport) setHook(hook func(op string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
}

func (m *mockTransport) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (m *mockTransport) last(op string) (transportCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].op == op {
			return m.calls[i], true
		}
	}
	return transportCall{}, false
}

func (m *mockTransport) PlaceCall(_ context.Context, peerID uint32, withVideo bool) error {
	return m.record("place", peerID, withVideo)
}

func (m *mockTransport) Answer(_ context.Context, peerID uint32, withVideo bool) error {
	return m.record("answer", peerID, withVideo)
}

func (m *mockTransport) Hangup(_ context.Context, peerID uint32) error {
	return m.record("hangup", peerID, false)
}

func (m *mockTransport) SetMuted(_ context.Context, peerID uint32, muted bool) error {
	return m.record("mute", peerID, muted)
}

func (m *mockTransport) SetVideoEnabled(_ context.Context, peerID uint32, enabled bool) error {
	return m.record("video", peerID, enabled)
}

type mockTimeProvider struct {
	mu          sync.Mutex
	currentTime time.Time
}

func newMockTimeProvider() *mockTimeProvider {
	return &mockTimeProvider{currentTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *mockTimeProvider) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

func (m *mockTimeProvider) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// snapshotRecorder collects observer notifications.
type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *snapshotRecorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *snapshotRecorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func (r *snapshotRecorder) lastStatus() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return StatusIdle
	}
	return r.snaps[len(r.snaps)-1].Status
}
