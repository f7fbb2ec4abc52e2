package lights

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/color"
)

const (
	DefaultRotationSpeed    = 10
	DefaultRotationInterval = 500 * time.Millisecond
)

// RotationStatus is a read-only view of the rotation effect.
type RotationStatus struct {
	Active    bool          `json:"active"`
	Speed     int           `json:"speed"`
	Interval  time.Duration `json:"interval"`
	Clockwise bool          `json:"clockwise"`
}

// rotation blends each bulb towards its ring neighbor over speed ticks,
// then shifts the ring by one so the next pass starts where this one ended.
type rotation struct {
	mu        sync.Mutex
	active    bool
	speed     int
	interval  time.Duration
	clockwise bool
	ring      []color.RGB
	pass      []color.RGB
	cycle     int
}

func newRotation(interval time.Duration) *rotation {
	return &rotation{speed: DefaultRotationSpeed, interval: interval}
}

func (r *rotation) tickInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

func (r *rotation) status() RotationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RotationStatus{Active: r.active, Speed: r.speed, Interval: r.interval, Clockwise: r.clockwise}
}

func (r *rotation) start(ring []color.RGB, speed int, interval time.Duration, clockwise bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring = ring
	r.pass = nil
	r.speed = speed
	r.interval = interval
	r.clockwise = clockwise
	r.cycle = 0
	r.active = true
}

func (r *rotation) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
}

// next advances one tick and returns the color for every ring position,
// or nil when inactive.
func (r *rotation) next() []color.RGB {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.ring)
	if !r.active || n == 0 {
		return nil
	}
	if r.cycle == 0 {
		r.cycle = r.speed
		r.pass = append(r.pass[:0], r.ring...)
	}
	progress := float64(r.speed-r.cycle) / float64(r.speed)
	r.cycle--

	targets := make([]color.RGB, n)
	for i := range targets {
		neighbor := (i + 1) % n
		if !r.clockwise {
			neighbor = (i - 1 + n) % n
		}
		targets[i] = color.Lerp(r.pass[i], r.pass[neighbor], progress)
	}

	if r.cycle == 0 {
		if r.clockwise {
			r.ring = append(r.ring[1:n:n], r.ring[0])
		} else {
			r.ring = append([]color.RGB{r.ring[n-1]}, r.ring[:n-1]...)
		}
	}
	return targets
}

// Rotate starts cycling colors around the ring from the bulbs' current
// colors. speed is the number of ticks per pass and is rounded to a whole
// number; interval is the time between ticks. No bulb is written until the
// first tick.
func (m *Manager) Rotate(speed float64, interval time.Duration, clockwise bool) error {
	steps := int(math.Round(speed))
	if steps < 1 {
		return fmt.Errorf("speed %v: %w", speed, ErrInvalidRotation)
	}
	if interval <= 0 {
		return fmt.Errorf("interval %v: %w", interval, ErrInvalidRotation)
	}

	snapshot := m.devices.Snapshot()
	ring := make([]color.RGB, len(snapshot))
	for i, e := range snapshot {
		ring[i] = e.State
	}
	m.rotation.start(ring, steps, interval, clockwise)

	m.logger.With(
		zap.Int("speed", steps),
		zap.Duration("interval", interval),
		zap.Bool("clockwise", clockwise)).
		Info("Rotation started")

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// StopRotation deactivates rotation. A tick already computing finishes.
func (m *Manager) StopRotation() {
	m.rotation.stop()
	m.logger.Info("Rotation stopped")
}

func (m *Manager) RotationStatus() RotationStatus {
	return m.rotation.status()
}

// tick runs one rotation step through the normal set path.
func (m *Manager) tick() {
	targets := m.rotation.next()
	if targets == nil {
		return
	}
	names := m.devices.Names()
	for i, c := range targets {
		if i >= len(names) {
			break
		}
		m.devices.Set(names[i], c)
	}
}

func (m *Manager) runRotation() {
	defer close(m.rotationDone)

	timer := time.NewTimer(m.rotation.tickInterval())
	defer timer.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
		case <-timer.C:
			m.tick()
		}
		timer.Reset(m.rotation.tickInterval())
	}
}
