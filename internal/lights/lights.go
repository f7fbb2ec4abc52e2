// Package lights manages the fleet of color bulbs: direct color changes,
// hex conversions for API clients and the rotation effect that cycles
// colors around the bulb ring.
package lights

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/color"
	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/logging"
)

var logger = logging.New("lights")

type Config struct {
	IdlePoll    time.Duration
	SettleDelay time.Duration
	// RotationInterval is how often the rotation loop wakes while no
	// rotation is active.
	RotationInterval time.Duration
	Logger           *zap.SugaredLogger
}

// Result is the outcome of a bulb set or get.
type Result = device.Result[color.RGB]

// Manager owns one worker per bulb. Bulb order is the rotation ring order.
type Manager struct {
	devices  *device.Manager[color.RGB]
	logger   *zap.SugaredLogger
	rotation *rotation

	ctx          context.Context
	cancel       context.CancelFunc
	wake         chan struct{}
	rotationDone chan struct{}
	shutdownOnce sync.Once
}

func NewManager(specs []device.Spec, factory device.DriverFactory[color.RGB], config Config) *Manager {
	if config.Logger == nil {
		config.Logger = logger
	}
	if config.RotationInterval <= 0 {
		config.RotationInterval = DefaultRotationInterval
	}

	devices := device.NewManager(specs, factory, device.Options{
		Kind:          "bulb",
		Match:         device.ExactMatch,
		UnknownReason: unknownBulbReason,
		IdlePoll:      config.IdlePoll,
		SettleDelay:   config.SettleDelay,
		Logger:        config.Logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		devices:      devices,
		logger:       config.Logger,
		rotation:     newRotation(config.RotationInterval),
		ctx:          ctx,
		cancel:       cancel,
		wake:         make(chan struct{}, 1),
		rotationDone: make(chan struct{}),
	}
	go m.runRotation()
	return m
}

func unknownBulbReason(names []string) string {
	return "bulb name does not exist, must be one of these: " + strings.Join(names, ", ")
}

func (m *Manager) Names() []string {
	return m.devices.Names()
}

// SetColor requests c for the named bulb. Names are case-sensitive.
func (m *Manager) SetColor(name string, c color.RGB) Result {
	return m.devices.Set(name, c)
}

// SetColorHex is SetColor for a #RRGGBB string.
func (m *Manager) SetColorHex(name, hex string) Result {
	c, err := color.ParseHex(hex)
	if err != nil {
		return device.Reject[color.RGB](name, color.InvalidHexReason, err)
	}
	return m.devices.Set(name, c)
}

// SetColorsHex applies SetColorHex to every entry, in name order.
func (m *Manager) SetColorsHex(colors map[string]string) []Result {
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, m.SetColorHex(name, colors[name]))
	}
	return results
}

// SetAll requests c for every bulb.
func (m *Manager) SetAll(c color.RGB) {
	for _, name := range m.devices.Names() {
		m.devices.Set(name, c)
	}
}

func (m *Manager) GetColor(name string) Result {
	return m.devices.Lookup(name)
}

func (m *Manager) GetColorHex(name string) (string, bool) {
	c, ok := m.devices.Get(name)
	if !ok {
		return "", false
	}
	return c.Hex(), true
}

// Snapshot lists every bulb color in ring order.
func (m *Manager) Snapshot() []device.Entry[color.RGB] {
	return m.devices.Snapshot()
}

func (m *Manager) Colors() map[string]color.RGB {
	snapshot := m.devices.Snapshot()
	colors := make(map[string]color.RGB, len(snapshot))
	for _, e := range snapshot {
		colors[e.Name] = e.State
	}
	return colors
}

func (m *Manager) ColorsHex() map[string]string {
	snapshot := m.devices.Snapshot()
	colors := make(map[string]string, len(snapshot))
	for _, e := range snapshot {
		colors[e.Name] = e.State.Hex()
	}
	return colors
}

// Watch registers fn for every accepted color change.
func (m *Manager) Watch(fn func(device.Change[color.RGB])) {
	m.devices.Watch(fn)
}

func (m *Manager) WaitReady(ctx context.Context) error {
	return m.devices.WaitReady(ctx)
}

func (m *Manager) Ready() bool {
	return m.devices.Ready()
}

func (m *Manager) Statuses() []device.Entry[device.Status] {
	return m.devices.Statuses()
}

// Shutdown stops the rotation loop and then joins every bulb worker.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.cancel()
		<-m.rotationDone
		m.devices.Shutdown()
	})
}
