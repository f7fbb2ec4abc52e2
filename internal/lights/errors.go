package lights

import "errors"

var ErrInvalidRotation = errors.New("rotation speed must be at least 1 and interval positive")
