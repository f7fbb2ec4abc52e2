// Package api exposes the bulb and outlet managers over HTTP and streams
// state changes to websocket clients.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/color"
	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/lights"
	"github.com/scheerer/homelights/internal/logging"
)

var logger = logging.New("api")

type Bulbs interface {
	Colors() map[string]color.RGB
	ColorsHex() map[string]string
	SetColor(name string, c color.RGB) lights.Result
	SetColorHex(name, hex string) lights.Result
	SetColorsHex(colors map[string]string) []lights.Result
	GetColor(name string) lights.Result
	Rotate(speed float64, interval time.Duration, clockwise bool) error
	StopRotation()
	RotationStatus() lights.RotationStatus
	Ready() bool
	Statuses() []device.Entry[device.Status]
	Watch(fn func(device.Change[color.RGB]))
}

type Outlets interface {
	SetState(name string, on bool) device.Result[bool]
	GetState(name string) device.Result[bool]
	States() map[string]bool
	Ready() bool
	Statuses() []device.Entry[device.Status]
	Watch(fn func(device.Change[bool]))
}

// Follower is the screen follow loop. It may be absent.
type Follower interface {
	Start(ctx context.Context)
	Stop()
	Active() bool
}

type Options struct {
	RotationSpeed    float64
	RotationInterval time.Duration
	Logger           *zap.SugaredLogger
}

type Server struct {
	bulbs    Bulbs
	outlets  Outlets
	follower Follower
	hub      *Hub
	opts     Options
	logger   *zap.SugaredLogger
	router   chi.Router

	// followCtx outlives individual requests
	followCtx context.Context
}

func NewServer(bulbs Bulbs, outlets Outlets, follower Follower, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger
	}
	if opts.RotationSpeed <= 0 {
		opts.RotationSpeed = lights.DefaultRotationSpeed
	}
	if opts.RotationInterval <= 0 {
		opts.RotationInterval = lights.DefaultRotationInterval
	}

	s := &Server{
		bulbs:     bulbs,
		outlets:   outlets,
		follower:  follower,
		hub:       NewHub(opts.Logger),
		opts:      opts,
		logger:    opts.Logger,
		followCtx: context.Background(),
	}
	s.router = s.routes()

	bulbs.Watch(func(device.Change[color.RGB]) {
		s.hub.Broadcast(EventBulbColorsChanged, s.bulbs.ColorsHex())
	})
	outlets.Watch(func(device.Change[bool]) {
		s.hub.Broadcast(EventOutletStatesChanged, s.outlets.States())
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.followCtx = ctx
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.With(zap.String("addr", addr)).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
