package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"lux/internal/config"
)

const (
	notifyDest      = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyMethod    = "org.freedesktop.Notifications.Notify"
	notifyIcon      = "display-brightness-symbolic"
	notifyTimeoutMS = 2000
)

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyBrightnessChanged(ctx context.Context, value int) error
}

// NewService builds a notification service backed by the session bus when
// enabled. When notifications are disabled, a noop implementation is
// returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil || !cfg.Notifications.Enabled {
		return noopService{}
	}
	return &dbusService{appName: cfg.Notifications.AppName}
}

type noopService struct{}

func (noopService) NotifyBrightnessChanged(context.Context, int) error { return nil }

type dbusService struct {
	appName string

	mu     sync.Mutex
	conn   *dbus.Conn
	lastID uint32
}

func (s *dbusService) connection() (*dbus.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	s.conn = conn
	return conn, nil
}

// NotifyBrightnessChanged shows (or updates) a brightness popup. Replacing
// the previous notification id keeps a key-repeat burst to a single popup.
func (s *dbusService) NotifyBrightnessChanged(ctx context.Context, value int) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}

	s.mu.Lock()
	replaceID := s.lastID
	s.mu.Unlock()

	hints := map[string]dbus.Variant{
		"value": dbus.MakeVariant(int32(value)),
	}
	obj := conn.Object(notifyDest, dbus.ObjectPath(notifyPath))
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		s.appName,
		replaceID,
		notifyIcon,
		"Brightness",
		fmt.Sprintf("%d%%", value),
		[]string{},
		hints,
		int32(notifyTimeoutMS),
	)
	if call.Err != nil {
		return fmt.Errorf("send notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err == nil {
		s.mu.Lock()
		s.lastID = id
		s.mu.Unlock()
	}
	return nil
}
