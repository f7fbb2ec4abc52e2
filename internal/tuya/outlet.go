package tuya

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/device"
)

// OutletDriver switches an outlet's relay data point.
type OutletDriver struct {
	client Client
	name   string
}

var _ device.Driver[bool] = (*OutletDriver)(nil)

func NewOutletDriver(client Client) *OutletDriver {
	return &OutletDriver{client: client}
}

func OutletFactory(clients ClientFactory) device.DriverFactory[bool] {
	return func(spec device.Spec) device.Driver[bool] {
		return NewOutletDriver(clients(spec))
	}
}

func (d *OutletDriver) Connect(ctx context.Context, spec device.Spec) error {
	d.name = spec.Name
	return d.client.Connect(ctx, spec)
}

// QueryStatus reads the relay. An outlet that reports no data points is
// treated as off.
func (d *OutletDriver) QueryStatus(ctx context.Context) (bool, error) {
	p, err := d.client.Status(ctx)
	if err != nil {
		return false, err
	}
	raw, ok := p.DPS[DPSwitch]
	if !ok {
		logger.With(zap.String("outlet", d.name)).Warn("Outlet status had no data")
		return false, nil
	}
	on, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("dp %s is %T: %w", DPSwitch, raw, ErrBadDataPoint)
	}
	return on, nil
}

func (d *OutletDriver) Apply(ctx context.Context, on bool) error {
	return d.client.SetValues(ctx, map[string]any{DPSwitch: on})
}

func (d *OutletDriver) Close() error {
	return d.client.Close()
}
