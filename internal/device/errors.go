package device

import "errors"

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrNotReady      = errors.New("devices not ready")
	ErrInvalidState  = errors.New("invalid state")
)

// ValidationError describes a request that was rejected before reaching a
// worker. It is carried inside a Result rather than returned on its own.
type ValidationError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Name + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
