package color

import "errors"

var (
	ErrInvalidHex = errors.New("color must be hex string like #C0C0C0")
	ErrInvalidHSV = errors.New("hsv value must be 12 hex digits")
)
