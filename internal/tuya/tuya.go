// Package tuya adapts Tuya data points to the device drivers used by the
// bulb and outlet managers. Transport is behind Client so the same drivers
// work over any gateway.
package tuya

import (
	"context"

	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/logging"
)

var logger = logging.New("tuya")

// Data point ids used by the supported devices.
const (
	DPSwitch     = "1"
	DPBulbMode   = "21"
	DPBulbColour = "24"

	ModeColour = "colour"
)

// Payload is a device status report.
type Payload struct {
	DPS map[string]any `json:"dps"`
}

// Client talks to one Tuya device.
type Client interface {
	Connect(ctx context.Context, spec device.Spec) error
	Status(ctx context.Context) (Payload, error)
	SetValues(ctx context.Context, dps map[string]any) error
	Close() error
}

// ClientFactory returns an unconnected client for a device.
type ClientFactory func(spec device.Spec) Client
