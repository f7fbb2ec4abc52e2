// Package config loads process settings from the environment and the device
// inventory from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/schedule"
)

var ErrInvalidInventory = errors.New("invalid device inventory")

const (
	DriverTuya = "TUYA"
	DriverLifx = "LIFX"
)

// ReservedBulbNames are path segments the API routes under /bulbs itself,
// so a bulb with one of these names could not be addressed.
var ReservedBulbNames = []string{"rotation", "follow"}

type Config struct {
	DevicesFile  string        `env:"DEVICES_FILE" envDefault:"devices.yaml"`
	BulbDriver   string        `env:"BULB_DRIVER" envDefault:"TUYA"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	SettleDelay  time.Duration `env:"SETTLE_DELAY" envDefault:"200ms"`
	IdlePoll     time.Duration `env:"IDLE_POLL" envDefault:"500ms"`
	ReadyTimeout time.Duration `env:"READY_TIMEOUT" envDefault:"0s"`

	MQTTBroker      string `env:"MQTT_BROKER" envDefault:"tcp://localhost:1883"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"tuya"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD" json:"-"`

	RotationSpeed    float64       `env:"ROTATION_SPEED" envDefault:"10"`
	RotationInterval time.Duration `env:"ROTATION_INTERVAL" envDefault:"500ms"`

	CaptureInterval time.Duration `env:"CAPTURE_INTERVAL" envDefault:"80ms"`
	ColorAlgo       string        `env:"COLOR_ALGO" envDefault:"AVERAGE"`
	PixelGridSize   int           `env:"PIXEL_GRID_SIZE" envDefault:"5"`
	ScreenNumber    int           `env:"SCREEN_NUMBER" envDefault:"0"`

	LifxMinBrightness float64       `env:"LIFX_MIN_BRIGHTNESS" envDefault:"0"`
	LifxMaxBrightness float64       `env:"LIFX_MAX_BRIGHTNESS" envDefault:"1"`
	LifxTransition    time.Duration `env:"LIFX_TRANSITION" envDefault:"0s"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	c.BulbDriver = strings.ToUpper(c.BulbDriver)
	switch c.BulbDriver {
	case DriverTuya, DriverLifx:
	default:
		return Config{}, fmt.Errorf("unknown BULB_DRIVER %q", c.BulbDriver)
	}
	return c, nil
}

// Inventory lists every device the process manages. List order is
// significant: bulbs rotate in the order given.
type Inventory struct {
	Bulbs     []device.Spec    `yaml:"bulbs"`
	Outlets   []device.Spec    `yaml:"outlets"`
	Schedules []schedule.Entry `yaml:"schedules"`
}

func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}
	return ParseInventory(data)
}

func ParseInventory(data []byte) (*Inventory, error) {
	inv := &Inventory{}
	if err := yaml.Unmarshal(data, inv); err != nil {
		return nil, fmt.Errorf("parsing inventory: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

// Validate requires names to be present and unique. Outlet names must also
// be unique ignoring case since outlets are looked up that way, and bulb
// names must not collide with ReservedBulbNames.
func (inv *Inventory) Validate() error {
	var errs []string

	seen := make(map[string]bool)
	for i, b := range inv.Bulbs {
		switch {
		case b.Name == "":
			errs = append(errs, fmt.Sprintf("bulb %d has no name", i))
		case seen[b.Name]:
			errs = append(errs, fmt.Sprintf("duplicate bulb %q", b.Name))
		case slices.Contains(ReservedBulbNames, b.Name):
			errs = append(errs, fmt.Sprintf("bulb name %q is reserved", b.Name))
		}
		seen[b.Name] = true
	}

	seen = make(map[string]bool)
	for i, o := range inv.Outlets {
		key := strings.ToLower(o.Name)
		switch {
		case o.Name == "":
			errs = append(errs, fmt.Sprintf("outlet %d has no name", i))
		case seen[key]:
			errs = append(errs, fmt.Sprintf("duplicate outlet %q", o.Name))
		}
		seen[key] = true
	}

	for i, s := range inv.Schedules {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("schedule %d: %v", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInventory, strings.Join(errs, "; "))
	}
	return nil
}
