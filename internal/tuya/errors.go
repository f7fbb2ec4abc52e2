package tuya

import "errors"

var ErrBadDataPoint = errors.New("unexpected data point value")
