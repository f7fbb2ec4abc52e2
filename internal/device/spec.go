package device

import (
	"context"
)

// Spec is the immutable addressing information for one device.
type Spec struct {
	Name            string `yaml:"name" json:"name"`
	ID              string `yaml:"id" json:"id"`
	Address         string `yaml:"address" json:"address"`
	AuthKey         string `yaml:"key" json:"-"`
	ProtocolVersion string `yaml:"version" json:"version"`
}

// Driver is the blocking hardware boundary a Worker drives. Calls on a
// single driver are never concurrent. The context is cancelled when the
// worker is asked to shut down.
type Driver[S any] interface {
	Connect(ctx context.Context, spec Spec) error
	QueryStatus(ctx context.Context) (S, error)
	Apply(ctx context.Context, state S) error
	Close() error
}

// DriverFactory builds a fresh, unconnected driver for a spec.
type DriverFactory[S any] func(spec Spec) Driver[S]
