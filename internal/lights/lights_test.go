package lights

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/color"
	"github.com/scheerer/homelights/internal/device"
)

var (
	red   = color.RGB{R: 255}
	green = color.RGB{G: 255}
	blue  = color.RGB{B: 255}
)

type bulb struct {
	initial color.RGB

	mu      sync.Mutex
	applied []color.RGB
}

func (b *bulb) Connect(context.Context, device.Spec) error { return nil }

func (b *bulb) QueryStatus(context.Context) (color.RGB, error) { return b.initial, nil }

func (b *bulb) Apply(_ context.Context, c color.RGB) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied = append(b.applied, c)
	return nil
}

func (b *bulb) Close() error { return nil }

func (b *bulb) sawColor(c color.RGB) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.applied {
		if a == c {
			return true
		}
	}
	return false
}

func (b *bulb) last() (color.RGB, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.applied) == 0 {
		return color.RGB{}, false
	}
	return b.applied[len(b.applied)-1], true
}

func newTestManager(t *testing.T, initial map[string]color.RGB, names ...string) (*Manager, map[string]*bulb) {
	t.Helper()
	bulbs := make(map[string]*bulb)
	specs := make([]device.Spec, len(names))
	for i, n := range names {
		specs[i] = device.Spec{Name: n}
		bulbs[n] = &bulb{initial: initial[n]}
	}
	m := NewManager(specs, func(s device.Spec) device.Driver[color.RGB] {
		return bulbs[s.Name]
	}, Config{
		IdlePoll:         5 * time.Millisecond,
		SettleDelay:      -1,
		RotationInterval: time.Hour,
		Logger:           zap.NewNop().Sugar(),
	})
	t.Cleanup(m.Shutdown)
	require.NoError(t, m.WaitReady(context.Background()))
	return m, bulbs
}

func TestSnapshotAfterReady(t *testing.T) {
	m, _ := newTestManager(t, map[string]color.RGB{"A": red, "B": blue}, "A", "B")

	assert.Equal(t, map[string]color.RGB{"A": red, "B": blue}, m.Colors())
	assert.Equal(t, map[string]string{"A": "#FF0000", "B": "#0000FF"}, m.ColorsHex())
	assert.Equal(t, []device.Entry[color.RGB]{{Name: "A", State: red}, {Name: "B", State: blue}}, m.Snapshot())
}

func TestSetColorReachesDevice(t *testing.T) {
	m, bulbs := newTestManager(t, nil, "A")

	res := m.SetColor("A", green)
	require.True(t, res.OK())
	assert.Equal(t, green, res.Value())

	require.Eventually(t, func() bool {
		c, ok := bulbs["A"].last()
		return ok && c == green
	}, time.Second, time.Millisecond)
}

func TestSetColorUnknownBulb(t *testing.T) {
	m, bulbs := newTestManager(t, nil, "A", "B")

	res := m.SetColor("a", red)

	assert.False(t, res.OK())
	assert.Equal(t, "bulb name does not exist, must be one of these: A, B", res.Reason)
	assert.Equal(t, "a", res.Name)
	assert.ErrorIs(t, res.Err(), device.ErrUnknownDevice)

	assert.Never(t, func() bool {
		_, a := bulbs["A"].last()
		_, b := bulbs["B"].last()
		return a || b
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestSetColorHex(t *testing.T) {
	m, _ := newTestManager(t, nil, "A")

	res := m.SetColorHex("A", "#c0c0c0")
	require.True(t, res.OK())
	hex, ok := m.GetColorHex("A")
	require.True(t, ok)
	assert.Equal(t, "#C0C0C0", hex)
}

func TestSetColorHexMalformedLeavesCache(t *testing.T) {
	m, _ := newTestManager(t, map[string]color.RGB{"A": red}, "A")

	res := m.SetColorHex("A", "C0C0C0")

	assert.False(t, res.OK())
	assert.Equal(t, "color must be hex string like #C0C0C0", res.Reason)
	assert.Equal(t, "A", res.Name)
	assert.ErrorIs(t, res.Err(), color.ErrInvalidHex)
	assert.Equal(t, red, m.GetColor("A").Value())
}

func TestSetColorsHex(t *testing.T) {
	m, _ := newTestManager(t, nil, "A", "B")

	results := m.SetColorsHex(map[string]string{"B": "#0000FF", "A": "#FF0000", "C": "#000000"})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.True(t, results[1].OK())
	assert.False(t, results[2].OK())
	assert.Equal(t, "C", results[2].Name)
	assert.Equal(t, map[string]color.RGB{"A": red, "B": blue}, m.Colors())
}

func TestGetColorUnknown(t *testing.T) {
	m, _ := newTestManager(t, nil, "A")

	assert.False(t, m.GetColor("Z").OK())
	_, ok := m.GetColorHex("Z")
	assert.False(t, ok)
}

func TestRotationTwoBulbPass(t *testing.T) {
	m, _ := newTestManager(t, map[string]color.RGB{"A": red, "B": blue}, "A", "B")

	require.NoError(t, m.Rotate(4, time.Hour, true))
	assert.Equal(t, map[string]color.RGB{"A": red, "B": blue}, m.Colors())

	m.tick()
	assert.Equal(t, map[string]color.RGB{"A": red, "B": blue}, m.Colors())

	m.tick()
	assert.Equal(t, map[string]color.RGB{"A": {R: 191, B: 63}, "B": {R: 63, B: 191}}, m.Colors())

	m.tick()
	assert.Equal(t, map[string]color.RGB{"A": {R: 127, B: 127}, "B": {R: 127, B: 127}}, m.Colors())

	m.tick()
	assert.Equal(t, map[string]color.RGB{"A": {R: 63, B: 191}, "B": {R: 191, B: 63}}, m.Colors())
	assert.Equal(t, []color.RGB{blue, red}, m.rotation.ring)

	m.tick()
	assert.Equal(t, map[string]color.RGB{"A": blue, "B": red}, m.Colors())
}

func TestRotationCounterClockwise(t *testing.T) {
	m, _ := newTestManager(t, map[string]color.RGB{"A": red, "B": green, "C": blue}, "A", "B", "C")

	require.NoError(t, m.Rotate(2, time.Hour, false))
	m.tick()
	m.tick()
	assert.Equal(t, map[string]color.RGB{
		"A": {R: 127, B: 127},
		"B": {R: 127, G: 127},
		"C": {G: 127, B: 127},
	}, m.Colors())
	assert.Equal(t, []color.RGB{blue, red, green}, m.rotation.ring)

	m.tick()
	assert.Equal(t, map[string]color.RGB{"A": blue, "B": red, "C": green}, m.Colors())
}

func TestRotationSingleStepPass(t *testing.T) {
	m, _ := newTestManager(t, map[string]color.RGB{"A": red, "B": blue}, "A", "B")

	require.NoError(t, m.Rotate(1, time.Hour, true))
	m.tick()
	assert.Equal(t, map[string]color.RGB{"A": red, "B": blue}, m.Colors())
	m.tick()
	assert.Equal(t, map[string]color.RGB{"A": blue, "B": red}, m.Colors())
}

func TestRotateValidation(t *testing.T) {
	m, _ := newTestManager(t, nil, "A")

	assert.ErrorIs(t, m.Rotate(0, time.Second, true), ErrInvalidRotation)
	assert.ErrorIs(t, m.Rotate(0.4, time.Second, true), ErrInvalidRotation)
	assert.ErrorIs(t, m.Rotate(5, 0, true), ErrInvalidRotation)
	assert.False(t, m.RotationStatus().Active)

	require.NoError(t, m.Rotate(1.6, time.Hour, false))
	status := m.RotationStatus()
	assert.True(t, status.Active)
	assert.Equal(t, 2, status.Speed)
	assert.Equal(t, time.Hour, status.Interval)
	assert.False(t, status.Clockwise)
}

func TestStopRotationFreezesColors(t *testing.T) {
	m, _ := newTestManager(t, map[string]color.RGB{"A": red, "B": blue}, "A", "B")

	require.NoError(t, m.Rotate(4, time.Hour, true))
	m.tick()
	m.tick()
	m.StopRotation()
	frozen := m.Colors()

	m.tick()
	m.tick()
	assert.Equal(t, frozen, m.Colors())
	assert.False(t, m.RotationStatus().Active)
}

func TestRotateRestartsFromCurrentColors(t *testing.T) {
	m, _ := newTestManager(t, map[string]color.RGB{"A": red, "B": blue}, "A", "B")

	require.NoError(t, m.Rotate(4, time.Hour, true))
	m.tick()
	m.tick()
	m.SetColor("A", green)

	require.NoError(t, m.Rotate(2, time.Hour, true))
	m.tick()
	assert.Equal(t, green, m.GetColor("A").Value())
	assert.Equal(t, []color.RGB{green, {R: 63, B: 191}}, m.rotation.pass)
}

func TestRotationLoopDrivesBulbs(t *testing.T) {
	m, bulbs := newTestManager(t, map[string]color.RGB{"A": red, "B": blue}, "A", "B")

	require.NoError(t, m.Rotate(2, 5*time.Millisecond, true))

	require.Eventually(t, func() bool {
		return bulbs["A"].sawColor(blue) && bulbs["B"].sawColor(red)
	}, 2*time.Second, time.Millisecond)
}

func TestWatchSeesRotationWrites(t *testing.T) {
	m, _ := newTestManager(t, map[string]color.RGB{"A": red, "B": blue}, "A", "B")

	var mu sync.Mutex
	seen := map[string]int{}
	m.Watch(func(c device.Change[color.RGB]) {
		mu.Lock()
		seen[c.Name]++
		mu.Unlock()
	})

	require.NoError(t, m.Rotate(4, time.Hour, true))
	m.tick()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, seen)
}

func TestShutdownIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, nil, "A", "B")
	require.NoError(t, m.Rotate(2, time.Millisecond, true))

	m.Shutdown()
	m.Shutdown()

	for _, s := range m.Statuses() {
		assert.Equal(t, device.Terminated, s.State)
	}
}

func TestSetColorAfterShutdown(t *testing.T) {
	m, bulbs := newTestManager(t, nil, "A")

	m.Shutdown()
	require.True(t, m.SetColor("A", green).OK())
	require.True(t, m.SetColorHex("A", "#0000FF").OK())

	assert.Never(t, func() bool {
		_, ok := bulbs["A"].last()
		return ok
	}, 50*time.Millisecond, 5*time.Millisecond)
}
