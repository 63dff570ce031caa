package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/gofrs/flock"

	"lux/internal/brightness"
	"lux/internal/config"
	"lux/internal/ipc"
	"lux/internal/logging"
	"lux/internal/protocol"
)

// Daemon coordinates the shared brightness manager and enforces
// single-instance execution. One manager instance lives for the whole
// process; that is the point of the daemon — enumeration cost and cooldown
// state are amortized across every client call.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *brightness.Manager
	handler *protocol.Handler

	socketPath string

	lock   *flock.Flock
	server *ipc.Server

	mu       sync.Mutex
	started  bool
	stopped  chan struct{}
	stopOnce sync.Once
}

// New constructs a daemon with initialized dependencies. An empty socketPath
// binds the configured default.
func New(cfg *config.Config, manager *brightness.Manager, handler *protocol.Handler, socketPath string, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || manager == nil || handler == nil {
		return nil, errors.New("daemon requires config, manager, and handler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		manager:    manager,
		handler:    handler,
		socketPath: socketPath,
		stopped:    make(chan struct{}),
	}, nil
}

// Start acquires the instance lock, binds the socket, and begins serving.
// Both the lock and the socket existence check refuse a second instance.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return errors.New("daemon already started")
	}

	lock := flock.New(d.cfg.LockFilePath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: lock %s held by another process", ipc.ErrAlreadyRunning, d.cfg.LockFilePath())
	}
	d.lock = lock

	server, err := ipc.NewServer(ctx, d.socketPath, d.handler, d.requestStop, d.logger)
	if err != nil {
		_ = lock.Unlock()
		d.lock = nil
		return err
	}
	d.server = server

	if err := d.writePIDFile(); err != nil {
		server.Close()
		_ = lock.Unlock()
		d.lock = nil
		return err
	}

	server.Serve()
	d.started = true

	d.logger.Info("daemon started",
		logging.String("socket", d.socketPath),
		logging.Int("display_count", len(d.manager.DisplayIDs())),
		logging.String(logging.FieldEventType, "daemon_started"))
	return nil
}

// Done is closed once a stop command has been acknowledged.
func (d *Daemon) Done() <-chan struct{} {
	return d.stopped
}

func (d *Daemon) requestStop() {
	d.stopOnce.Do(func() {
		close(d.stopped)
	})
}

// Close releases the socket, pid file, and lock. Safe to call once after
// Start succeeded or failed.
func (d *Daemon) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.server != nil {
		d.server.Close()
		d.server = nil
	}
	if err := os.Remove(d.cfg.PIDFilePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("failed to remove pid file",
			logging.Error(err),
			logging.String(logging.FieldEventType, "pidfile_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the pid file manually"),
			logging.String(logging.FieldImpact, "stale pid file left behind"))
	}
	if d.lock != nil {
		_ = d.lock.Unlock()
		d.lock = nil
	}
	d.started = false
}

func (d *Daemon) writePIDFile() error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(d.cfg.PIDFilePath(), []byte(value), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}
