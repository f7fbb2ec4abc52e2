package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scheerer/homelights/internal/logging"
)

const (
	DefaultIdlePoll    = 500 * time.Millisecond
	DefaultSettleDelay = 200 * time.Millisecond
)

// WorkerConfig tunes a Worker. Zero durations fall back to the defaults;
// a negative SettleDelay disables the write throttle.
type WorkerConfig struct {
	IdlePoll    time.Duration
	SettleDelay time.Duration
	Logger      *zap.SugaredLogger
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.IdlePoll <= 0 {
		c.IdlePoll = DefaultIdlePoll
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.Logger == nil {
		c.Logger = logging.New("device")
	}
	return c
}

// Worker owns one device connection and serializes every write to it.
type Worker[S any] struct {
	spec      Spec
	driver    Driver[S]
	config    WorkerConfig
	logger    *zap.SugaredLogger
	readiness *Readiness
	limiter   *rate.Limiter

	// pending holds at most one outstanding change; senders replace it.
	pending chan S

	mu        sync.RWMutex
	state     S
	requested bool

	status atomic.Int32

	ctx      context.Context
	cancel   context.CancelFunc
	started  sync.Once
	done     chan struct{}
	stopOnce sync.Once
}

// NewWorker prepares a worker for spec. It does nothing until Start.
func NewWorker[S any](spec Spec, driver Driver[S], config WorkerConfig) *Worker[S] {
	config = config.withDefaults()

	limit := rate.Inf
	if config.SettleDelay > 0 {
		limit = rate.Every(config.SettleDelay)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker[S]{
		spec:      spec,
		driver:    driver,
		config:    config,
		logger:    config.Logger.With(zap.String("device", spec.Name)),
		readiness: newReadiness(),
		limiter:   rate.NewLimiter(limit, 1),
		pending:   make(chan S, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start launches the worker goroutine. Calling it again has no effect.
func (w *Worker[S]) Start() {
	w.started.Do(func() {
		go w.run()
	})
}

func (w *Worker[S]) Spec() Spec {
	return w.spec
}

func (w *Worker[S]) Readiness() *Readiness {
	return w.readiness
}

func (w *Worker[S]) Status() Status {
	return Status(w.status.Load())
}

// State is the last requested value, or the value the device reported if
// nothing has been requested yet. It is not a confirmation from hardware.
func (w *Worker[S]) State() S {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// RequestChange records v as the desired state and queues it for the
// device, replacing any change that has not been written yet. It never
// blocks on the device.
func (w *Worker[S]) RequestChange(v S) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state = v
	w.requested = true
	for {
		select {
		case w.pending <- v:
			return
		default:
		}
		select {
		case <-w.pending:
		default:
		}
	}
}

// Shutdown asks the worker to stop. It returns immediately; use Wait to
// join. Calling it more than once is harmless.
func (w *Worker[S]) Shutdown() {
	w.stopOnce.Do(w.cancel)
}

// Wait blocks until the worker has terminated.
func (w *Worker[S]) Wait() {
	<-w.done
}

// Done is closed when the worker has terminated.
func (w *Worker[S]) Done() <-chan struct{} {
	return w.done
}

func (w *Worker[S]) setStatus(s Status) {
	w.status.Store(int32(s))
}

func (w *Worker[S]) run() {
	defer close(w.done)
	defer w.setStatus(Terminated)

	w.setStatus(Connecting)
	if err := w.driver.Connect(w.ctx, w.spec); err != nil {
		w.logger.With(zap.Error(err)).Error("Failed to connect to device")
		w.park()
		return
	}
	w.readiness.markConnected()
	w.setStatus(Connected)
	w.logger.Debug("Device connected")

	w.setStatus(AwaitingInitialStatus)
	s, err := w.driver.QueryStatus(w.ctx)
	if err != nil {
		w.logger.With(zap.Error(err)).Error("Failed to read device status")
		w.park()
		return
	}
	w.storeReported(s)
	w.readiness.markStatusKnown()
	w.logger.With(zap.Any("state", s)).Debug("Device status known")

	w.setStatus(Serving)
	w.serve()

	w.setStatus(ShuttingDown)
	w.closeDriver()
}

// park keeps a worker whose device never became usable joinable until
// shutdown is requested.
func (w *Worker[S]) park() {
	<-w.ctx.Done()
	w.setStatus(ShuttingDown)
	w.closeDriver()
}

func (w *Worker[S]) storeReported(s S) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.requested {
		w.state = s
	}
}

func (w *Worker[S]) serve() {
	idle := time.NewTicker(w.config.IdlePoll)
	defer idle.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case v := <-w.pending:
			if w.ctx.Err() != nil {
				return
			}
			w.apply(v)
		case <-idle.C:
		}
	}
}

func (w *Worker[S]) apply(v S) {
	if err := w.limiter.Wait(w.ctx); err != nil {
		return
	}
	// anything that arrived while throttled supersedes v
	select {
	case newer := <-w.pending:
		v = newer
	default:
	}

	if err := w.driver.Apply(w.ctx, v); err != nil {
		w.logger.With(zap.Any("state", v), zap.Error(err)).Error("Failed to apply device state")
	}
}

func (w *Worker[S]) closeDriver() {
	if err := w.driver.Close(); err != nil {
		w.logger.With(zap.Error(err)).Warn("Failed to close device connection")
	}
}
