package device

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// fakeDriver records every call. Nil gates never block.
type fakeDriver struct {
	initial int

	connectErr error
	statusErr  error
	applyErr   error

	connectGate chan struct{}
	statusGate  chan struct{}
	// applyGate, when set, must receive once per Apply before it returns.
	applyGate chan struct{}

	applyStarted chan int

	mu      sync.Mutex
	applied []int
	closed  atomic.Int32
}

func newFakeDriver(initial int) *fakeDriver {
	return &fakeDriver{
		initial:      initial,
		applyStarted: make(chan int, 64),
	}
}

func (f *fakeDriver) Connect(ctx context.Context, _ Spec) error {
	if err := wait(ctx, f.connectGate); err != nil {
		return err
	}
	return f.connectErr
}

func (f *fakeDriver) QueryStatus(ctx context.Context) (int, error) {
	if err := wait(ctx, f.statusGate); err != nil {
		return 0, err
	}
	if f.statusErr != nil {
		return 0, f.statusErr
	}
	return f.initial, nil
}

func (f *fakeDriver) Apply(ctx context.Context, v int) error {
	f.applyStarted <- v
	if f.applyGate != nil {
		select {
		case <-f.applyGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.applied = append(f.applied, v)
	f.mu.Unlock()
	return f.applyErr
}

func (f *fakeDriver) Close() error {
	f.closed.Add(1)
	return nil
}

func (f *fakeDriver) Applied() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.applied...)
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var errBoom = errors.New("boom")
