// Package outlets manages on/off smart outlets. Outlet names are matched
// without regard to case.
package outlets

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/logging"
)

var logger = logging.New("outlets")

const UnknownOutletReason = "outlet name not found"

type Config struct {
	IdlePoll    time.Duration
	SettleDelay time.Duration
	Logger      *zap.SugaredLogger
}

type Result = device.Result[bool]

type Manager struct {
	devices *device.Manager[bool]
}

func NewManager(specs []device.Spec, factory device.DriverFactory[bool], config Config) *Manager {
	if config.Logger == nil {
		config.Logger = logger
	}
	return &Manager{
		devices: device.NewManager(specs, factory, device.Options{
			Kind:          "outlet",
			Match:         device.FoldMatch,
			UnknownReason: func([]string) string { return UnknownOutletReason },
			IdlePoll:      config.IdlePoll,
			SettleDelay:   config.SettleDelay,
			Logger:        config.Logger,
		}),
	}
}

func (m *Manager) Names() []string {
	return m.devices.Names()
}

func (m *Manager) SetState(name string, on bool) Result {
	return m.devices.Set(name, on)
}

func (m *Manager) GetState(name string) Result {
	return m.devices.Lookup(name)
}

// States maps every outlet name to whether it is on.
func (m *Manager) States() map[string]bool {
	snapshot := m.devices.Snapshot()
	states := make(map[string]bool, len(snapshot))
	for _, e := range snapshot {
		states[e.Name] = e.State
	}
	return states
}

func (m *Manager) Watch(fn func(device.Change[bool])) {
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

func (m *Manager) Shutdown() {
	m.devices.Shutdown()
}
