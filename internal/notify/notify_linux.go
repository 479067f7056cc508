//go:build linux

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsName = "org.freedesktop.Notifications"
	notificationsPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod      = notificationsName + ".Notify"

	appName      = "PromptAssist"
	expireMillis = int32(2500)
	callTimeout  = time.Second
)

// dbusBackend posts freedesktop desktop notifications on the session bus.
type dbusBackend struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func newPlatformBackend() Backend {
	return &dbusBackend{}
}

func (d *dbusBackend) connect() (*dbus.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil && d.conn.Connected() {
		return d.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("notify: session bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}

func (d *dbusBackend) Alert(ev Event) error {
	conn, err := d.connect()
	if err != nil {
		return err
	}

	summary, sound := "Prompt ready", "complete"
	urgency := byte(0)
	if ev == EventRejected {
		summary, sound = "A prompt is already generating", "dialog-warning"
		urgency = 1
	}
	hints := map[string]dbus.Variant{
		"urgency":    dbus.MakeVariant(urgency),
		"sound-name": dbus.MakeVariant(sound),
		"transient":  dbus.MakeVariant(true),
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	obj := conn.Object(notificationsName, notificationsPath)
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		appName, uint32(0), "", summary, "", []string{}, hints, expireMillis)
	if call.Err != nil {
		return fmt.Errorf("notify: %s: %w", notifyMethod, call.Err)
	}
	return nil
}
