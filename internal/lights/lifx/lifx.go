package lifx

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pdf/golifx"
	"github.com/pdf/golifx/common"
	"github.com/pdf/golifx/protocol"
	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/color"
	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/logging"
)

var logger = logging.New("lifx")

const kelvin = 3500

type Config struct {
	MaxBrightness float64
	MinBrightness float64
	Transition    time.Duration
}

type lightFinder interface {
	GetLightByLabel(label string) (common.Light, error)
}

// Connector shares one LIFX discovery client between every bulb driver.
type Connector struct {
	config Config
	finder lightFinder
	close  func() error
}

func NewConnector(config Config) (*Connector, error) {
	client, err := golifx.NewClient(&protocol.V2{})
	if err != nil {
		return nil, err
	}
	client.SetDiscoveryInterval(15 * time.Second)
	return &Connector{config: config, finder: client, close: client.Close}, nil
}

// Driver satisfies device.DriverFactory for color bulbs.
func (c *Connector) Driver(device.Spec) device.Driver[color.RGB] {
	return &Driver{connector: c}
}

func (c *Connector) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Driver controls one LIFX bulb found by label. The inventory ID is used as the
// label when set, otherwise the device name.
type Driver struct {
	connector *Connector
	light     common.Light
}

var _ device.Driver[color.RGB] = (*Driver)(nil)

func (d *Driver) Connect(ctx context.Context, spec device.Spec) error {
	label := spec.ID
	if label == "" {
		label = spec.Name
	}
	logger.With(zap.String("label", label)).Info("LIFX discovery starting...")

	type found struct {
		light common.Light
		err   error
	}
	completed := make(chan found, 1)
	go func() {
		l, err := d.connector.finder.GetLightByLabel(label)
		completed <- found{light: l, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("lifx discovery %q: %w", label, ctx.Err())
	case f := <-completed:
		if f.err != nil {
			return fmt.Errorf("lifx discovery %q: %w", label, f.err)
		}
		d.light = f.light
	}
	logger.With(zap.String("label", label)).Info("LIFX light found")
	return nil
}

func (d *Driver) QueryStatus(context.Context) (color.RGB, error) {
	c, err := d.light.GetColor()
	if err != nil {
		return color.RGB{}, err
	}
	return color.FromHSB(c.Hue, c.Saturation, c.Brightness), nil
}

func (d *Driver) Apply(_ context.Context, c color.RGB) error {
	lifxColor := adjustColor(newLifxColor(c), d.connector.config)

	logger.With(zap.Stringer("color", c),
		zap.Any("lifxColor", lifxColor)).
		Debug("Setting LIFX device color")

	return d.light.SetColor(lifxColor, d.connector.config.Transition)
}

func (d *Driver) Close() error {
	return nil
}

func newLifxColor(c color.RGB) common.Color {
	hue, saturation, brightness := color.ToHSB(c)

	return common.Color{
		Hue:        hue,
		Saturation: saturation,
		Brightness: brightness,
		Kelvin:     kelvin,
	}
}

func adjustColor(c common.Color, config Config) common.Color {
	blackThreshold := 0.015 * 0xFFFF
	if c.Brightness <= uint16(blackThreshold) && c.Saturation <= uint16(blackThreshold) {
		// blackish, turn the light down completely
		return common.Color{Kelvin: kelvin}
	}

	maxBrightness := config.MaxBrightness
	if maxBrightness <= 0 {
		maxBrightness = 1
	}
	c.Brightness = uint16(math.Min(maxBrightness*0xFFFF, math.Max(config.MinBrightness*0xFFFF, float64(c.Brightness))))

	return c
}
