package device

import (
	"context"
	"fmt"
)

// Kind identifies a device class.
type Kind uint8

const (
	// KindAudioInput is a microphone or other capture device.
	KindAudioInput Kind = iota
	// KindAudioOutput is a speaker or headset.
	KindAudioOutput
	// KindVideoInput is a camera.
	KindVideoInput
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindAudioInput:
		return "audio_input"
	case KindAudioOutput:
		return "audio_output"
	case KindVideoInput:
		return "video_input"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Descriptor describes one device. ID is opaque and stable for the OS
// session.
type Descriptor struct {
	ID              string
	DisplayName     string
	IsSystemDefault bool
}

// Readiness is the video capture readiness tri-state.
type Readiness uint8

const (
	// ReadinessReady indicates at least one capture node exists.
	ReadinessReady Readiness = iota
	// ReadinessNoDevice indicates no capture hardware is attached.
	ReadinessNoDevice
	// ReadinessDriverNotLoaded indicates capture hardware is attached but
	// its driver is not loaded.
	ReadinessDriverNotLoaded
)

// String returns the readiness name.
func (r Readiness) String() string {
	switch r {
	case ReadinessReady:
		return "ready"
	case ReadinessNoDevice:
		return "no_device"
	case ReadinessDriverNotLoaded:
		return "driver_not_loaded"
	default:
		return fmt.Sprintf("readiness(%d)", uint8(r))
	}
}

// Remediation returns a user-facing hint for r, or "" when ready.
func (r Readiness) Remediation() string {
	switch r {
	case ReadinessNoDevice:
		return "No camera detected. Connect a camera and try again."
	case ReadinessDriverNotLoaded:
		return "A camera is connected but its driver is not loaded. Load it with: sudo modprobe uvcvideo"
	default:
		return ""
	}
}

// Selection is the set of preferred device IDs. An empty ID means the
// system default.
type Selection struct {
	AudioInput  string
	AudioOutput string
	VideoInput  string
}

// Backend enumerates devices on the host.
type Backend interface {
	AudioInputs() ([]Descriptor, error)
	AudioOutputs() ([]Descriptor, error)
	VideoInputs() ([]Descriptor, error)
	VideoCaptureReadiness() (Readiness, error)
}

// DeviceTransport switches the devices of an active call.
type DeviceTransport interface {
	SetAudioInput(ctx context.Context, id string) error
	SetAudioOutput(ctx context.Context, id string) error
	SetVideoInput(ctx context.Context, id string) error
}
