// Package schedule runs bulb and outlet actions on cron specs.
package schedule

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/color"
	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/logging"
)

var logger = logging.New("schedule")

var (
	ErrUnknownAction = errors.New("unknown schedule action")
	ErrMissingTarget = errors.New("schedule action needs a target")
)

const (
	ActionColor        = "color"
	ActionRotate       = "rotate"
	ActionStopRotation = "stop-rotation"
	ActionOutletOn     = "outlet-on"
	ActionOutletOff    = "outlet-off"

	// AllBulbs as a color target sets every bulb.
	AllBulbs = "*"
)

// Entry is one scheduled action as written in the inventory file. A rotate
// entry without clockwise runs clockwise.
type Entry struct {
	Spec      string        `yaml:"spec" json:"spec"`
	Action    string        `yaml:"action" json:"action"`
	Target    string        `yaml:"target,omitempty" json:"target,omitempty"`
	Color     string        `yaml:"color,omitempty" json:"color,omitempty"`
	Speed     float64       `yaml:"speed,omitempty" json:"speed,omitempty"`
	Interval  time.Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	Clockwise *bool         `yaml:"clockwise,omitempty" json:"clockwise,omitempty"`
}

// Validate checks everything but the cron spec, which cron parses on Add.
func (e Entry) Validate() error {
	switch e.Action {
	case ActionColor:
		if e.Target == "" {
			return fmt.Errorf("%s: %w", e.Action, ErrMissingTarget)
		}
		if !color.IsHex(e.Color) {
			return fmt.Errorf("%s %q: %w", e.Action, e.Color, color.ErrInvalidHex)
		}
	case ActionOutletOn, ActionOutletOff:
		if e.Target == "" {
			return fmt.Errorf("%s: %w", e.Action, ErrMissingTarget)
		}
	case ActionRotate, ActionStopRotation:
	default:
		return fmt.Errorf("%q: %w", e.Action, ErrUnknownAction)
	}
	return nil
}

type Bulbs interface {
	SetColorHex(name, hex string) device.Result[color.RGB]
	SetAll(c color.RGB)
	Rotate(speed float64, interval time.Duration, clockwise bool) error
	StopRotation()
}

type Outlets interface {
	SetState(name string, on bool) device.Result[bool]
}

// Follower is the screen follow loop, stopped before a scheduled rotation
// takes over the bulbs.
type Follower interface {
	Stop()
}

// Scheduler runs entries against the managers.
type Scheduler struct {
	cron    *cron.Cron
	bulbs    Bulbs
	outlets  Outlets
	follower Follower

	// rotation defaults for entries that leave them unset
	defaultSpeed    float64
	defaultInterval time.Duration

	mu      sync.RWMutex
	entries map[cron.EntryID]Entry
}

// New builds a scheduler. follower may be nil.
func New(bulbs Bulbs, outlets Outlets, follower Follower, defaultSpeed float64, defaultInterval time.Duration) *Scheduler {
	return &Scheduler{
		cron:            cron.New(),
		bulbs:           bulbs,
		outlets:         outlets,
		follower:        follower,
		defaultSpeed:    defaultSpeed,
		defaultInterval: defaultInterval,
		entries:         make(map[cron.EntryID]Entry),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.With(zap.Int("entries", len(s.Entries()))).Info("Scheduler started")
}

// Stop halts the scheduler and waits for running actions.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

func (s *Scheduler) Add(e Entry) (cron.EntryID, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(e.Spec, func() {
		if err := s.Run(e); err != nil {
			logger.With(zap.Any("entry", e), zap.Error(err)).Error("Scheduled action failed")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", e.Spec, err)
	}
	s.entries[id] = e
	logger.With(zap.Int("id", int(id)), zap.String("spec", e.Spec), zap.String("action", e.Action)).Info("Added schedule")
	return id, nil
}

func (s *Scheduler) Remove(id cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Remove(id)
	delete(s.entries, id)
}

// Entries returns a copy of the registered entries.
func (s *Scheduler) Entries() map[cron.EntryID]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[cron.EntryID]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Run performs e immediately.
func (s *Scheduler) Run(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	logger.With(zap.String("action", e.Action), zap.String("target", e.Target)).Info("Running scheduled action")

	switch e.Action {
	case ActionColor:
		if e.Target == AllBulbs {
			c, err := color.ParseHex(e.Color)
			if err != nil {
				return err
			}
			s.bulbs.SetAll(c)
			return nil
		}
		return s.bulbs.SetColorHex(e.Target, e.Color).Err()
	case ActionRotate:
		speed, interval := e.Speed, e.Interval
		if speed == 0 {
			speed = s.defaultSpeed
		}
		if interval == 0 {
			interval = s.defaultInterval
		}
		clockwise := true
		if e.Clockwise != nil {
			clockwise = *e.Clockwise
		}
		if s.follower != nil {
			s.follower.Stop()
		}
		return s.bulbs.Rotate(speed, interval, clockwise)
	case ActionStopRotation:
		s.bulbs.StopRotation()
		return nil
	case ActionOutletOn:
		return s.outlets.SetState(e.Target, true).Err()
	case ActionOutletOff:
		return s.outlets.SetState(e.Target, false).Err()
	}
	return nil
}
