// Package device enumerates and selects the audio and video devices used
// by a call.
//
// Device lists are always re-read from the backend and returned whole. A
// selection is validated against a fresh list, recorded as the preference
// for the next call and, when a call is active, applied immediately through
// the DeviceTransport.
//
// # Video capture readiness
//
// CheckVideoCaptureReadiness distinguishes a machine with no camera from a
// machine whose camera is attached but whose driver is not loaded. The two
// need different remediation: plugging in a device versus a privileged
// driver load.
//
//	switch mgr.CheckVideoCaptureReadiness() {
//	case device.ReadinessNoDevice:
//	    // ask the user to connect a camera
//	case device.ReadinessDriverNotLoaded:
//	    readiness, err := mgr.LoadCaptureDriver(ctx)
//	    // readiness is re-checked after pkexec modprobe uvcvideo
//	}
//
// Selections run one at a time, so the recorded preference is always the
// device last applied to the call.
//
// # Backends
//
// SysfsBackend reads ALSA and V4L2 information from procfs and sysfs. Its
// Root can point at a fixture tree in tests.
package device
