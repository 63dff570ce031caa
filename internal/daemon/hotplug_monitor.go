package daemon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"lux/internal/logging"
)

// HotplugMonitor listens for udev netlink events on the drm subsystem and
// re-enumerates displays when a monitor is plugged or unplugged, so the
// running daemon picks up topology changes without a restart.
type HotplugMonitor struct {
	logger  *slog.Logger
	refresh func(ctx context.Context) error

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor creates a monitor that invokes refresh on drm change
// events.
func NewHotplugMonitor(logger *slog.Logger, refresh func(ctx context.Context) error) *HotplugMonitor {
	return &HotplugMonitor{
		logger:  logging.NewComponentLogger(logger, "hotplug-monitor"),
		refresh: refresh,
	}
}

// Start begins listening for udev netlink events. A connect failure is
// non-fatal: the daemon still works, it just won't notice hotplug.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; displays are only enumerated at startup",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon can open netlink sockets"),
			logging.String(logging.FieldImpact, "hotplugged displays require a daemon restart"))
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"))
	return nil
}

// Stop shuts down the monitor.
func (m *HotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "hotplug detection may be affected"))
		}
	}
}

// buildMatcher matches drm connector state changes: SUBSYSTEM=drm,
// ACTION=change.
func (m *HotplugMonitor) buildMatcher() netlink.Matcher {
	action := "change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "drm",
		},
	})
	return rules
}

func (m *HotplugMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	m.logger.Info("display topology changed",
		logging.String("kobj", uevent.KObj),
		logging.String("action", string(uevent.Action)),
		logging.String(logging.FieldEventType, "hotplug_detected"))

	if m.refresh == nil {
		return
	}
	if err := m.refresh(ctx); err != nil {
		m.logger.Warn("display re-enumeration failed; keeping existing handles",
			logging.Error(err),
			logging.String(logging.FieldEventType, "hotplug_refresh_failed"),
			logging.String(logging.FieldErrorHint, "check display connections and DDC/CI support"),
			logging.String(logging.FieldImpact, "brightness control may target stale displays"))
	}
}
