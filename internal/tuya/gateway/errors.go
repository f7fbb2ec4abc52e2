package gateway

import "errors"

var (
	ErrNotConnected = errors.New("mqtt gateway not connected")
	ErrNoDeviceID   = errors.New("device has no id")
)
