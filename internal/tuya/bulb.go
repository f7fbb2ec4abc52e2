package tuya

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/color"
	"github.com/scheerer/homelights/internal/device"
)

// BulbDriver reads and writes a bulb's colour data point.
type BulbDriver struct {
	client Client
	name   string
}

var _ device.Driver[color.RGB] = (*BulbDriver)(nil)

func NewBulbDriver(client Client) *BulbDriver {
	return &BulbDriver{client: client}
}

// BulbFactory builds bulb drivers on top of clients.
func BulbFactory(clients ClientFactory) device.DriverFactory[color.RGB] {
	return func(spec device.Spec) device.Driver[color.RGB] {
		return NewBulbDriver(clients(spec))
	}
}

func (d *BulbDriver) Connect(ctx context.Context, spec device.Spec) error {
	d.name = spec.Name
	return d.client.Connect(ctx, spec)
}

// QueryStatus decodes the colour data point. A report without data points
// leaves the bulb black.
func (d *BulbDriver) QueryStatus(ctx context.Context) (color.RGB, error) {
	p, err := d.client.Status(ctx)
	if err != nil {
		return color.RGB{}, err
	}
	if p.DPS == nil {
		logger.With(zap.String("bulb", d.name)).Warn("Bulb status had no data points")
		return color.RGB{}, nil
	}
	raw, ok := p.DPS[DPBulbColour]
	if !ok {
		return color.RGB{}, nil
	}
	s, ok := raw.(string)
	if !ok {
		return color.RGB{}, fmt.Errorf("dp %s is %T: %w", DPBulbColour, raw, ErrBadDataPoint)
	}
	return color.DecodeHSVHex(s)
}

func (d *BulbDriver) Apply(ctx context.Context, c color.RGB) error {
	return d.client.SetValues(ctx, map[string]any{
		DPBulbMode:   ModeColour,
		DPBulbColour: color.EncodeHSVHex(c),
	})
}

func (d *BulbDriver) Close() error {
	return d.client.Close()
}
