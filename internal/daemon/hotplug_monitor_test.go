package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestHotplugMonitorNilSafety(t *testing.T) {
	var m *HotplugMonitor
	if m.Running() {
		t.Error("expected Running() to return false for nil monitor")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Errorf("Start on nil monitor returned error: %v", err)
	}
	m.Stop()
}

func TestHotplugMonitorUnstartedNotRunning(t *testing.T) {
	m := NewHotplugMonitor(nil, nil)
	if m.Running() {
		t.Error("expected Running() to return false before Start")
	}
	m.Stop()
	if m.Running() {
		t.Error("expected Running() to stay false after redundant Stop")
	}
}

func TestHotplugMonitorHandleEventInvokesRefresh(t *testing.T) {
	var calls atomic.Int64
	m := NewHotplugMonitor(nil, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	event := netlink.UEvent{Action: netlink.ADD, KObj: "/devices/card0"}
	m.handleEvent(context.Background(), event)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
}

func TestHotplugMonitorHandleEventToleratesRefreshFailure(t *testing.T) {
	m := NewHotplugMonitor(nil, func(ctx context.Context) error {
		return errors.New("enumeration failed")
	})

	// Must not panic; failures are logged and the old handles stay live.
	m.handleEvent(context.Background(), netlink.UEvent{KObj: "/devices/card0"})
}

func TestHotplugMonitorBuildMatcher(t *testing.T) {
	m := NewHotplugMonitor(nil, nil)
	matcher := m.buildMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	drmChange := netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "drm"},
	}
	if !matcher.Evaluate(drmChange) {
		t.Error("expected matcher to accept drm change event")
	}

	blockChange := netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "block"},
	}
	if matcher.Evaluate(blockChange) {
		t.Error("expected matcher to reject non-drm event")
	}

	drmAdd := netlink.UEvent{
		Action: netlink.ADD,
		Env:    map[string]string{"SUBSYSTEM": "drm"},
	}
	if matcher.Evaluate(drmAdd) {
		t.Error("expected matcher to reject non-change action")
	}
}
