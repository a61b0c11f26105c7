package video

import "errors"

// Frame validation errors. A validation error drops one frame and never
// ends the stream.
var (
	// ErrInvalidDimensions indicates a width or height outside the supported range.
	ErrInvalidDimensions = errors.New("invalid frame dimensions")

	// ErrInvalidFrameSize indicates the planar buffer length does not match the dimensions.
	ErrInvalidFrameSize = errors.New("planar buffer size mismatch")

	// ErrWireTooShort indicates a wire-encoded frame shorter than its header.
	ErrWireTooShort = errors.New("wire frame too short")
)
