package steering

import (
	"errors"
	"log/slog"
	"sync"
)

// Mode controls how aggressively a BSS acts on steering decisions.
type Mode int

const (
	// ModeOff disables steering entirely; a Coordinator should not be
	// constructed for a BSS in this mode.
	ModeOff Mode = iota
	// ModeSuggest never hard-disassociates: every departure is requested
	// via an 802.11v BSS Transition Management message, and the local
	// blacklist is never touched.
	ModeSuggest
	// ModeForce additionally blacklists and, for STAs that do not support
	// BSS Transition Management, hard-disassociates.
	ModeForce
)

// String renders the mode the way it is logged and configured.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeSuggest:
		return "suggest"
	case ModeForce:
		return "force"
	default:
		return "unknown"
	}
}

// BSSHandle identifies one BSS process-wide, used as the process registry's
// key and in the debug endpoint. Typically the BSS's own BSSID string or a
// configured interface name.
type BSSHandle string

// Coordinator owns everything needed to run steering for a single BSS: its
// client registry, timers, flood engine, and the AP-stack collaborator it
// drives. One Coordinator exists per locally hosted BSS; every exported
// method is expected to run on that BSS's single event-loop goroutine.
type Coordinator struct {
	Handle BSSHandle
	Local  MAC
	Mode   Mode

	Registry *Registry
	Timers   *TimerService
	Flood    *FloodEngine
	Stack    APStack

	Log      *slog.Logger
	Metrics  MetricsSink
	Notifier StateChangeNotifier
}

// CoordinatorOption configures optional Coordinator fields at construction.
type CoordinatorOption func(*Coordinator)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.Log = l }
}

// WithMetrics wires a MetricsSink. Without this option a Coordinator
// reports to a no-op sink.
func WithMetrics(m MetricsSink) CoordinatorOption {
	return func(c *Coordinator) { c.Metrics = m }
}

// WithNotifier wires a StateChangeNotifier. Without this option a
// Coordinator reports to a no-op notifier.
func WithNotifier(n StateChangeNotifier) CoordinatorOption {
	return func(c *Coordinator) { c.Notifier = n }
}

// NewCoordinator builds a Coordinator for one BSS. peers is the configured
// peer BSSID list (the key-holder/r0kh list repurposed as the steering
// flood's peer set); sender is the raw L2 transport's send side.
func NewCoordinator(
	handle BSSHandle,
	local MAC,
	mode Mode,
	peers []MAC,
	sender FrameSender,
	stack APStack,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		Handle:   handle,
		Local:    local,
		Mode:     mode,
		Registry: NewRegistry(),
		Timers:   NewTimerService(),
		Stack:    stack,
		Log:      slog.Default(),
		Metrics:  noopMetrics{},
		Notifier: noopNotifier{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Flood = NewFloodEngine(local, peers, sender, c.Log)
	c.Flood.withMetrics(string(handle), c.Metrics)
	return c
}

// Deinit cancels every client's timers and releases the timer service's
// own resources. It does not touch the raw L2 socket — that is cmd/steerd's
// responsibility, since Coordinator does not own the receive loop.
func (c *Coordinator) Deinit() {
	c.Registry.All(func(cl *Client) {
		c.Timers.CancelAll(cl.Addr)
	})
	c.Timers.Stop()
}

// ErrUnknownBSS is returned by CoordinatorRegistry.Find for a handle with
// no registered Coordinator.
var ErrUnknownBSS = errors.New("steering: unknown BSS handle")

// CoordinatorRegistry is the process-wide set of active Coordinators,
// keyed by BSSHandle. Unlike Registry (client records within one BSS),
// this is read from multiple goroutines — the debug HTTP endpoint's
// handlers while the daemon registers and unregisters coordinators at
// startup and shutdown — so it is the one place in this package that
// takes a lock.
type CoordinatorRegistry struct {
	mu       sync.RWMutex
	byHandle map[BSSHandle]*Coordinator
}

// NewCoordinatorRegistry returns an empty process-wide registry.
func NewCoordinatorRegistry() *CoordinatorRegistry {
	return &CoordinatorRegistry{byHandle: make(map[BSSHandle]*Coordinator)}
}

// Register adds c under its own Handle, replacing any prior Coordinator
// registered under the same handle.
func (r *CoordinatorRegistry) Register(c *Coordinator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHandle[c.Handle] = c
}

// Unregister removes handle's Coordinator, if any.
func (r *CoordinatorRegistry) Unregister(handle BSSHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byHandle, handle)
}

// Find returns the Coordinator registered under handle, or ErrUnknownBSS.
func (r *CoordinatorRegistry) Find(handle BSSHandle) (*Coordinator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byHandle[handle]
	if !ok {
		return nil, ErrUnknownBSS
	}
	return c, nil
}

// All calls fn once per registered Coordinator. fn must not register or
// unregister coordinators on this CoordinatorRegistry.
func (r *CoordinatorRegistry) All(fn func(*Coordinator)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byHandle {
		fn(c)
	}
}
