package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lux/internal/brightness"
	"lux/internal/daemon"
	"lux/internal/ipc"
	"lux/internal/protocol"
	"lux/internal/testsupport"
)

func startDaemon(t *testing.T) (*daemon.Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)

	backend := testsupport.NewFakeBackend(testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 42))
	manager, err := brightness.New(context.Background(), backend, brightness.Options{})
	if err != nil {
		t.Fatalf("manager init: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	handler := protocol.NewHandler(manager, protocol.Defaults{Step: 5, Set: 50})
	d, err := daemon.New(cfg, manager, handler, "", nil)
	if err != nil {
		t.Fatalf("daemon.New returned error: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start returned error: %v", err)
	}
	t.Cleanup(d.Close)
	return d, cfg.SocketPath()
}

func TestDaemonServesClients(t *testing.T) {
	_, socket := startDaemon(t)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer client.Close()

	reply, err := client.Send("get")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if !strings.Contains(reply, `"percentage":42`) {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestDaemonWritesPIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	backend := testsupport.NewFakeBackend(testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 42))
	manager, err := brightness.New(context.Background(), backend, brightness.Options{})
	if err != nil {
		t.Fatalf("manager init: %v", err)
	}
	defer manager.Close()

	handler := protocol.NewHandler(manager, protocol.Defaults{})
	d, err := daemon.New(cfg, manager, handler, "", nil)
	if err != nil {
		t.Fatalf("daemon.New returned error: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start returned error: %v", err)
	}

	if _, err := os.Stat(cfg.PIDFilePath()); err != nil {
		t.Fatalf("expected pid file, stat err: %v", err)
	}

	d.Close()
	if _, err := os.Stat(cfg.PIDFilePath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected pid file removed, stat err: %v", err)
	}
	if _, err := os.Lstat(cfg.SocketPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected socket removed, stat err: %v", err)
	}
}

func TestDaemonHonorsSocketPathOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	override := filepath.Join(t.TempDir(), "override.sock")

	backend := testsupport.NewFakeBackend(testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 42))
	manager, err := brightness.New(context.Background(), backend, brightness.Options{})
	if err != nil {
		t.Fatalf("manager init: %v", err)
	}
	defer manager.Close()

	handler := protocol.NewHandler(manager, protocol.Defaults{Step: 5, Set: 50})
	d, err := daemon.New(cfg, manager, handler, override, nil)
	if err != nil {
		t.Fatalf("daemon.New returned error: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start returned error: %v", err)
	}
	defer d.Close()

	if _, err := os.Lstat(cfg.SocketPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("default socket must not be bound, stat err: %v", err)
	}

	client, err := ipc.Dial(override)
	if err != nil {
		t.Fatalf("Dial on override socket returned error: %v", err)
	}
	defer client.Close()

	reply, err := client.Send("get")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if !strings.Contains(reply, `"percentage":42`) {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestStopCommandSignalsDone(t *testing.T) {
	d, socket := startDaemon(t)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	defer client.Close()

	reply, err := client.Send("stop")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if reply != protocol.ReplyStopping {
		t.Fatalf("unexpected stop reply: %q", reply)
	}

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatal("Done was not signaled after stop command")
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	newDaemon := func() *daemon.Daemon {
		backend := testsupport.NewFakeBackend(testsupport.NewFakeDisplay("i2c-1", "FAKE-1", 42))
		manager, err := brightness.New(context.Background(), backend, brightness.Options{})
		if err != nil {
			t.Fatalf("manager init: %v", err)
		}
		t.Cleanup(func() { manager.Close() })
		handler := protocol.NewHandler(manager, protocol.Defaults{})
		d, err := daemon.New(cfg, manager, handler, "", nil)
		if err != nil {
			t.Fatalf("daemon.New returned error: %v", err)
		}
		return d
	}

	first := newDaemon()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}
	t.Cleanup(first.Close)

	second := newDaemon()
	err := second.Start(context.Background())
	if !errors.Is(err, ipc.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}
