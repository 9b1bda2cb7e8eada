// Package dbusnotify emits D-Bus signals for steering FSM transitions,
// colocated with hostapd's own fi.w1.hostapd1 control interface so
// management tooling can watch both over the same bus.
package dbusnotify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	objectPath = dbus.ObjectPath("/com/steerd/Coordinator")
	signalName = "com.steerd.Coordinator.StateChanged"
)

// busConn is the narrow slice of *dbus.Conn this package needs, letting
// tests fake it without a real bus to dial into.
type busConn interface {
	Emit(path dbus.ObjectPath, name string, values ...any) error
	Close() error
}

// Emitter publishes steering FSM transitions onto a D-Bus connection.
type Emitter struct {
	conn busConn
}

// Option configures an Emitter at construction.
type Option func(*emitterConfig)

type emitterConfig struct {
	systemBus bool
}

// WithSystemBus dials the system bus instead of the default session bus —
// the bus hostapd's own D-Bus control interface runs on.
func WithSystemBus() Option {
	return func(c *emitterConfig) { c.systemBus = true }
}

// New dials a D-Bus connection and returns an Emitter bound to it. By
// default it connects to the session bus; pass WithSystemBus to match
// hostapd's own control interface.
func New(opts ...Option) (*Emitter, error) {
	cfg := emitterConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var conn busConn
	var err error
	if cfg.systemBus {
		conn, err = dbus.ConnectSystemBus()
	} else {
		conn, err = dbus.ConnectSessionBus()
	}
	if err != nil {
		return nil, fmt.Errorf("dbusnotify: connect: %w", err)
	}

	return &Emitter{conn: conn}, nil
}

// StateChanged emits a StateChanged signal for one STA's FSM transition.
// Signal body: (bss string, sta string, from string, to string).
func (e *Emitter) StateChanged(bss, sta, from, to string) error {
	if err := e.conn.Emit(objectPath, signalName, bss, sta, from, to); err != nil {
		return fmt.Errorf("dbusnotify: emit StateChanged: %w", err)
	}
	return nil
}

// Close releases the underlying D-Bus connection.
func (e *Emitter) Close() error {
	if err := e.conn.Close(); err != nil {
		return fmt.Errorf("dbusnotify: close: %w", err)
	}
	return nil
}
