package lifx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pdf/golifx/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/homelights/internal/color"
	"github.com/scheerer/homelights/internal/device"
)

type fakeLight struct {
	common.Light

	color    common.Color
	set      []common.Color
	duration time.Duration
}

func (l *fakeLight) GetColor() (common.Color, error) { return l.color, nil }

func (l *fakeLight) SetColor(c common.Color, d time.Duration) error {
	l.set = append(l.set, c)
	l.duration = d
	return nil
}

type fakeFinder struct {
	lights map[string]common.Light
	block  chan struct{}
}

func (f *fakeFinder) GetLightByLabel(label string) (common.Light, error) {
	if f.block != nil {
		<-f.block
	}
	l, ok := f.lights[label]
	if !ok {
		return nil, errors.New("not found")
	}
	return l, nil
}

func TestConnectByIDThenName(t *testing.T) {
	byID := &fakeLight{}
	byName := &fakeLight{}
	c := &Connector{finder: &fakeFinder{lights: map[string]common.Light{"lifx-1": byID, "Desk": byName}}}

	d := c.Driver(device.Spec{}).(*Driver)
	require.NoError(t, d.Connect(context.Background(), device.Spec{Name: "Desk", ID: "lifx-1"}))
	assert.Same(t, byID, d.light)

	d = c.Driver(device.Spec{}).(*Driver)
	require.NoError(t, d.Connect(context.Background(), device.Spec{Name: "Desk"}))
	assert.Same(t, byName, d.light)

	d = c.Driver(device.Spec{}).(*Driver)
	assert.Error(t, d.Connect(context.Background(), device.Spec{Name: "Nope"}))
}

func TestConnectHonorsContext(t *testing.T) {
	finder := &fakeFinder{block: make(chan struct{})}
	defer close(finder.block)
	d := (&Connector{finder: finder}).Driver(device.Spec{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Connect(ctx, device.Spec{Name: "Desk"}), context.DeadlineExceeded)
}

func TestQueryStatusConvertsHSB(t *testing.T) {
	light := &fakeLight{color: common.Color{Hue: 0, Saturation: 0xFFFF, Brightness: 0xFFFF, Kelvin: kelvin}}
	d := &Driver{connector: &Connector{}, light: light}

	got, err := d.QueryStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, color.RGB{R: 255}, got)
}

func TestApplyClampsBrightness(t *testing.T) {
	light := &fakeLight{}
	d := &Driver{connector: &Connector{config: Config{MaxBrightness: 0.5, Transition: 50 * time.Millisecond}}, light: light}

	require.NoError(t, d.Apply(context.Background(), color.RGB{R: 255}))

	require.Len(t, light.set, 1)
	assert.Equal(t, uint16(32767), light.set[0].Brightness)
	assert.Equal(t, uint16(0xFFFF), light.set[0].Saturation)
	assert.Equal(t, uint16(kelvin), light.set[0].Kelvin)
	assert.Equal(t, 50*time.Millisecond, light.duration)
}

func TestApplyBlackTurnsLightDown(t *testing.T) {
	light := &fakeLight{}
	d := &Driver{connector: &Connector{config: Config{MinBrightness: 0.2}}, light: light}

	require.NoError(t, d.Apply(context.Background(), color.RGB{R: 1, G: 1, B: 1}))
	assert.Equal(t, common.Color{Kelvin: kelvin}, light.set[0])
}
