package daemonrun

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"lux/internal/brightness"
	"lux/internal/config"
	"lux/internal/daemon"
	"lux/internal/ddc"
	"lux/internal/history"
	"lux/internal/logging"
	"lux/internal/notifications"
	"lux/internal/protocol"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
	// SocketPath overrides the configured socket path when non-empty,
	// matching the client-side --socket flag.
	SocketPath string
	// Backend overrides hardware access; nil selects the i2c-dev backend.
	Backend ddc.Backend
}

// Run starts the lux daemon runtime loop and blocks until a stop command or
// termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "lux.log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}

	sessionID := uuid.NewString()
	logger.Info("lux daemon starting",
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("socket", socketPath),
		logging.Duration("read_cooldown", cfg.ReadCooldown()),
		logging.Duration("write_cooldown", cfg.WriteCooldown()))

	backend := opts.Backend
	if backend == nil {
		backend = ddc.NewI2CBackend(cfg.DDC.Devices)
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.HistoryDBPath(), cfg.History.MaxEntries)
		if err != nil {
			logger.Warn("history store unavailable",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_open_failed"),
				logging.String(logging.FieldErrorHint, "check the runtime directory or disable history"),
				logging.String(logging.FieldImpact, "brightness changes from this session will not be recorded"))
			store = nil
		} else {
			defer store.Close()
		}
	}

	notifier := notifications.NewService(cfg)

	manager, err := brightness.New(signalCtx, backend, brightness.Options{
		ReadCooldown:  cfg.ReadCooldown(),
		WriteCooldown: cfg.WriteCooldown(),
		Logger:        logger,
		OnApply: func(previous, value int) {
			ctx, cancelApply := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelApply()
			if store != nil {
				record := history.Change{
					Value:     value,
					Previous:  previous,
					Source:    "daemon",
					SessionID: sessionID,
				}
				if err := store.Record(ctx, record); err != nil {
					logger.Warn("failed to record brightness change",
						logging.Error(err),
						logging.String(logging.FieldEventType, "history_record_failed"),
						logging.String(logging.FieldErrorHint, "check history database access"),
						logging.String(logging.FieldImpact, "history output is incomplete"))
				}
			}
			if err := notifier.NotifyBrightnessChanged(ctx, value); err != nil {
				logger.Debug("desktop notification failed", logging.Error(err))
			}
		},
	})
	if err != nil {
		logger.Error("brightness manager initialization failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "manager_init_failed"),
			logging.String(logging.FieldErrorHint, "verify at least one connected monitor supports DDC/CI"))
		return err
	}
	defer manager.Close()

	handler := protocol.NewHandler(manager, protocol.Defaults{
		Step: cfg.Brightness.DefaultStep,
		Set:  cfg.Brightness.DefaultSet,
	})

	d, err := daemon.New(cfg, manager, handler, socketPath, logger)
	if err != nil {
		return err
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Close()

	monitor := daemon.NewHotplugMonitor(logger, manager.Refresh)
	_ = monitor.Start(signalCtx)
	defer monitor.Stop()

	select {
	case <-signalCtx.Done():
		logger.Info("lux daemon shutting down", logging.String("reason", "signal"))
	case <-d.Done():
		logger.Info("lux daemon shutting down", logging.String("reason", "stop command"))
	}
	return nil
}
