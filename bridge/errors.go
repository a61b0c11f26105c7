package bridge

import "errors"

var (
	// ErrMalformedEvent indicates a message that could not be decoded.
	// Sources return it wrapped; Run logs it and keeps reading.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrUnknownOp indicates a signaling envelope with an unrecognised op.
	ErrUnknownOp = errors.New("unknown event op")

	// ErrNilController indicates a bridge was created without a controller.
	ErrNilController = errors.New("controller cannot be nil")

	// ErrNilRegistry indicates a bridge was created without a pipeline registry.
	ErrNilRegistry = errors.New("registry cannot be nil")

	// ErrInvalidConfig indicates a non-positive frame queue depth.
	ErrInvalidConfig = errors.New("invalid bridge configuration")
)
