// Package screen captures a display and pushes its dominant color to every
// bulb, so the room follows whatever is on screen.
package screen

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/color"
	"github.com/scheerer/homelights/internal/logging"
)

var logger = logging.New("screen")

var ErrUnknownAlgorithm = errors.New("unknown color algorithm")

type Config struct {
	CaptureInterval time.Duration
	ColorAlgo       string
	PixelGridSize   int
	ScreenNumber    int
}

// Target receives the computed color.
type Target interface {
	SetAll(c color.RGB)
}

// Follower runs the capture loop while started.
type Follower struct {
	config  Config
	compute ColorFunc
	capture func(display int) (*image.RGBA, error)
	target  Target

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewFollower(config Config, target Target) (*Follower, error) {
	compute, err := Algorithm(config.ColorAlgo)
	if err != nil {
		return nil, err
	}
	if config.CaptureInterval <= 0 {
		config.CaptureInterval = 80 * time.Millisecond
	}
	return &Follower{
		config:  config,
		compute: compute,
		capture: screenshot.CaptureDisplay,
		target:  target,
	}, nil
}

// Start begins following. It is a no-op while already running.
func (f *Follower) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(ctx, f.done)

	logger.With(zap.Any("config", f.config)).Info("Screen follow started")
}

// Stop ends the capture loop and waits for it to exit.
func (f *Follower) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Info("Screen follow stopped")
}

func (f *Follower) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}

func (f *Follower) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var (
		last        color.RGB
		pushed      bool
		lastWarning time.Time
	)
	for {
		startTime := time.Now()
		img, err := f.capture(f.config.ScreenNumber)
		captureDuration := time.Since(startTime)

		if err != nil {
			logger.With(zap.Error(err)).Error("Failed to capture screen")
		} else {
			c := f.compute(img, f.config.PixelGridSize)
			if !pushed || c != last {
				f.target.SetAll(c)
				last, pushed = c, true
			}
		}

		total := time.Since(startTime)
		if total > f.config.CaptureInterval && time.Since(lastWarning) > 10*time.Second {
			logger.With(
				zap.Stringer("captureScreenDuration", captureDuration),
				zap.Stringer("totalDuration", total)).
				Warn("Cannot keep up with CAPTURE_INTERVAL. Consider increasing PIXEL_GRID_SIZE or increasing CAPTURE_INTERVAL.")
			lastWarning = time.Now()
		}

		wait := f.config.CaptureInterval - total
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
