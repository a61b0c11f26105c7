package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager enumerates devices and tracks the preferred selection.
type Manager struct {
	backend   Backend
	transport DeviceTransport

	// selMu orders selections so the recorded preference always matches
	// the device last applied to the call.
	selMu sync.Mutex

	mu         sync.Mutex
	runner     CommandRunner
	selection  Selection
	activeCall func() bool
}

// NewManager creates a manager over backend. transport may be nil, in which
// case selections only set the preference for the next call.
func NewManager(backend Backend, transport DeviceTransport) (*Manager, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	return &Manager{backend: backend, transport: transport, runner: ExecRunner{}}, nil
}

// SetActiveCallFunc sets the function used to decide whether a selection
// must be applied to a live call.
func (m *Manager) SetActiveCallFunc(fn func() bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeCall = fn
}

// ListAudioInputs returns a fresh list of audio capture devices.
func (m *Manager) ListAudioInputs() ([]Descriptor, error) {
	return m.list(KindAudioInput)
}

// ListAudioOutputs returns a fresh list of audio playback devices.
func (m *Manager) ListAudioOutputs() ([]Descriptor, error) {
	return m.list(KindAudioOutput)
}

// ListVideoInputs returns a fresh list of video capture devices.
func (m *Manager) ListVideoInputs() ([]Descriptor, error) {
	return m.list(KindVideoInput)
}

func (m *Manager) list(kind Kind) ([]Descriptor, error) {
	var (
		devices []Descriptor
		err     error
	)
	switch kind {
	case KindAudioInput:
		devices, err = m.backend.AudioInputs()
	case KindAudioOutput:
		devices, err = m.backend.AudioOutputs()
	case KindVideoInput:
		devices, err = m.backend.VideoInputs()
	default:
		return nil, fmt.Errorf("%w: unknown kind %s", ErrEnumeration, kind)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "list",
			"kind":     kind.String(),
			"error":    err.Error(),
		}).Warn("Device enumeration failed")
		return nil, fmt.Errorf("%w: %s: %w", ErrEnumeration, kind, err)
	}
	out := make([]Descriptor, len(devices))
	copy(out, devices)
	return out, nil
}

// SelectAudioInput selects the audio capture device. An empty id selects
// the system default.
func (m *Manager) SelectAudioInput(ctx context.Context, id string) error {
	return m.sel(ctx, KindAudioInput, id)
}

// SelectAudioOutput selects the audio playback device.
func (m *Manager) SelectAudioOutput(ctx context.Context, id string) error {
	return m.sel(ctx, KindAudioOutput, id)
}

// SelectVideoInput selects the camera.
func (m *Manager) SelectVideoInput(ctx context.Context, id string) error {
	return m.sel(ctx, KindVideoInput, id)
}

// sel verifies id against a fresh enumeration, applies it to the live call
// if there is one, and records it as the preference. The preference is left
// unchanged when the live switch fails.
func (m *Manager) sel(ctx context.Context, kind Kind, id string) error {
	m.selMu.Lock()
	defer m.selMu.Unlock()

	if id != "" {
		devices, err := m.list(kind)
		if err != nil {
			return err
		}
		if !contains(devices, id) {
			return fmt.Errorf("%w: %s %q", ErrDeviceNotFound, kind, id)
		}
	}

	m.mu.Lock()
	active := m.activeCall != nil && m.activeCall()
	m.mu.Unlock()

	if active && m.transport != nil {
		if err := m.apply(ctx, kind, id); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Select",
				"kind":      kind.String(),
				"device_id": id,
				"error":     err.Error(),
			}).Error("Failed to switch device on active call")
			return fmt.Errorf("%w: %s %q: %w", ErrApplyFailed, kind, id, err)
		}
	}

	m.mu.Lock()
	switch kind {
	case KindAudioInput:
		m.selection.AudioInput = id
	case KindAudioOutput:
		m.selection.AudioOutput = id
	case KindVideoInput:
		m.selection.VideoInput = id
	}
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Select",
		"kind":      kind.String(),
		"device_id": id,
		"live":      active,
	}).Info("Device selected")
	return nil
}

func (m *Manager) apply(ctx context.Context, kind Kind, id string) error {
	switch kind {
	case KindAudioInput:
		return m.transport.SetAudioInput(ctx, id)
	case KindAudioOutput:
		return m.transport.SetAudioOutput(ctx, id)
	default:
		return m.transport.SetVideoInput(ctx, id)
	}
}

// Selection returns the current preferred devices.
func (m *Manager) Selection() Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selection
}

// CheckVideoCaptureReadiness reports whether a camera can be opened. A
// backend error is logged and reported as ReadinessNoDevice.
func (m *Manager) CheckVideoCaptureReadiness() Readiness {
	r, err := m.backend.VideoCaptureReadiness()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "CheckVideoCaptureReadiness",
			"error":    err.Error(),
		}).Warn("Video capture readiness check failed")
		return ReadinessNoDevice
	}
	logrus.WithFields(logrus.Fields{
		"function":  "CheckVideoCaptureReadiness",
		"readiness": r.String(),
	}).Debug("Video capture readiness checked")
	return r
}

func contains(devices []Descriptor, id string) bool {
	for _, d := range devices {
		if d.ID == id {
			return true
		}
	}
	return false
}
