package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/api"
	"github.com/scheerer/homelights/internal/color"
	"github.com/scheerer/homelights/internal/config"
	"github.com/scheerer/homelights/internal/device"
	"github.com/scheerer/homelights/internal/lights"
	"github.com/scheerer/homelights/internal/lights/lifx"
	"github.com/scheerer/homelights/internal/logging"
	"github.com/scheerer/homelights/internal/outlets"
	"github.com/scheerer/homelights/internal/schedule"
	"github.com/scheerer/homelights/internal/screen"
	"github.com/scheerer/homelights/internal/tuya"
	"github.com/scheerer/homelights/internal/tuya/gateway"
)

var logger = logging.New("main")

func main() {
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to parse environment variables")
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Invalid LOG_LEVEL")
	}
	logging.GetLeveler().SetAll(level)

	logger.With(zap.Any("config", cfg)).Info("Starting homelights")
	logger.Info("Adjust DEVICES_FILE to point at the bulb and outlet inventory.")
	logger.Info("Adjust BULB_DRIVER to choose how bulbs are reached. Valid values are: [TUYA, LIFX]")
	logger.Info("Adjust SETTLE_DELAY to change the minimum time between writes to one device.")
	logger.Info("Adjust READY_TIMEOUT to bound the wait for devices at startup. 0 waits forever.")
	logger.Info("Press Ctrl+C to stop")

	inventory, err := config.LoadInventory(cfg.DevicesFile)
	if err != nil {
		logger.With(zap.Error(err)).Fatal("Failed to load device inventory")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, inventory); err != nil {
		logger.With(zap.Error(err)).Error("Stopped with error")
		os.Exit(1)
	}
	logger.Info("Shut down cleanly")
}

func run(ctx context.Context, cfg config.Config, inventory *config.Inventory) error {
	gw := gateway.New(gateway.Config{
		Broker:      cfg.MQTTBroker,
		TopicPrefix: cfg.MQTTTopicPrefix,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
	})
	defer gw.Close()

	var bulbFactory device.DriverFactory[color.RGB]
	switch cfg.BulbDriver {
	case config.DriverLifx:
		connector, err := lifx.NewConnector(lifx.Config{
			MinBrightness: cfg.LifxMinBrightness,
			MaxBrightness: cfg.LifxMaxBrightness,
			Transition:    cfg.LifxTransition,
		})
		if err != nil {
			return err
		}
		defer connector.Close()
		bulbFactory = connector.Driver
	default:
		bulbFactory = tuya.BulbFactory(gw.Client)
	}

	bulbs := lights.NewManager(inventory.Bulbs, bulbFactory, lights.Config{
		IdlePoll:         cfg.IdlePoll,
		SettleDelay:      cfg.SettleDelay,
		RotationInterval: cfg.RotationInterval,
	})
	defer bulbs.Shutdown()

	plugs := outlets.NewManager(inventory.Outlets, tuya.OutletFactory(gw.Client), outlets.Config{
		IdlePoll:    cfg.IdlePoll,
		SettleDelay: cfg.SettleDelay,
	})
	defer plugs.Shutdown()

	if err := waitReady(ctx, cfg.ReadyTimeout, bulbs, plugs); err != nil {
		return err
	}

	var follower api.Follower
	f, err := screen.NewFollower(screen.Config{
		CaptureInterval: cfg.CaptureInterval,
		ColorAlgo:       cfg.ColorAlgo,
		PixelGridSize:   cfg.PixelGridSize,
		ScreenNumber:    cfg.ScreenNumber,
	}, bulbs)
	if err != nil {
		logger.With(zap.Error(err)).Warn("Screen follow disabled")
	} else {
		defer f.Stop()
		follower = f
	}

	scheduler := schedule.New(bulbs, plugs, follower, cfg.RotationSpeed, cfg.RotationInterval)
	for _, e := range inventory.Schedules {
		if _, err := scheduler.Add(e); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := api.NewServer(bulbs, plugs, follower, api.Options{
		RotationSpeed:    cfg.RotationSpeed,
		RotationInterval: cfg.RotationInterval,
	})
	return server.Run(ctx, cfg.HTTPAddr)
}

type readier interface {
	WaitReady(ctx context.Context) error
}

// waitReady blocks until every device has reported its initial state. A
// zero timeout waits until ctx is cancelled.
func waitReady(ctx context.Context, timeout time.Duration, fleets ...readier) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	for _, fleet := range fleets {
		if err := fleet.WaitReady(ctx); err != nil {
			return err
		}
	}
	logger.With(zap.Duration("took", time.Since(start))).Info("All devices ready")
	return nil
}
