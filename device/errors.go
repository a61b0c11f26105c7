package device

import "errors"

// Sentinel errors for device operations.
var (
	// ErrDeviceNotFound indicates a selected ID is not present in a fresh enumeration.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrEnumeration indicates the backend could not list devices.
	ErrEnumeration = errors.New("device enumeration failed")

	// ErrNilBackend indicates a manager was created without a backend.
	ErrNilBackend = errors.New("backend cannot be nil")

	// ErrApplyFailed wraps an error returned by the DeviceTransport.
	ErrApplyFailed = errors.New("device switch failed")

	// ErrDriverLoadFailed indicates the capture driver could not be loaded.
	ErrDriverLoadFailed = errors.New("capture driver load failed")
)
