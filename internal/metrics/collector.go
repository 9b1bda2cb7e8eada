// Package steeringmetrics holds the Prometheus metrics steerd exposes for
// its client-steering coordinator: per-state client gauges, flood-frame
// counters, FSM transition counters and blacklist action counters.
package steeringmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "steerd"
	subsystem = "steering"
)

// Label names for steering metrics.
const (
	labelBSS    = "bss"
	labelState  = "state"
	labelPeer   = "peer_bssid"
	labelReason = "reason"
	labelFrom   = "from_state"
	labelTo     = "to_state"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Steering Metrics
// -------------------------------------------------------------------------

// Collector holds all steering Prometheus metrics.
//
// Metrics are designed for multi-AP deployment monitoring:
//   - ClientsByState tracks how many STAs each BSS currently carries in
//     each FSM state, for spotting a BSS stuck flooding CLOSE_CLIENT.
//   - FramesSent/Received/Dropped track the inter-AP flood protocol's
//     health per BSS.
//   - Transitions counts FSM state changes for alerting on steering churn.
//   - BlacklistAdds/Removes flag force-mode actions taken against STAs.
type Collector struct {
	// ClientsByState tracks the number of STAs currently in each FSM
	// state, per BSS. Incremented on entry to a state, decremented on
	// exit.
	ClientsByState *prometheus.GaugeVec

	// FramesSent counts steering control frames transmitted, per BSS and
	// destination peer.
	FramesSent *prometheus.CounterVec

	// FramesReceived counts steering control frames successfully decoded,
	// per BSS.
	FramesReceived *prometheus.CounterVec

	// FramesDropped counts steering control frames dropped undecoded, per
	// BSS and drop reason (the wire codec's sentinel error).
	FramesDropped *prometheus.CounterVec

	// Transitions counts FSM state transitions, labeled with the old and
	// new state for precise alerting (e.g. Associated->Rejecting).
	Transitions *prometheus.CounterVec

	// BlacklistAdds counts ActionBlacklistAdd executions, per BSS.
	BlacklistAdds *prometheus.CounterVec

	// BlacklistRemoves counts ActionBlacklistRemove executions, per BSS.
	BlacklistRemoves *prometheus.CounterVec
}

// NewCollector creates a Collector with all steering metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "steerd_steering_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.ClientsByState,
		c.FramesSent,
		c.FramesReceived,
		c.FramesDropped,
		c.Transitions,
		c.BlacklistAdds,
		c.BlacklistRemoves,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	stateLabels := []string{labelBSS, labelState}
	bssLabels := []string{labelBSS}
	peerLabels := []string{labelBSS, labelPeer}
	droppedLabels := []string{labelBSS, labelReason}
	transitionLabels := []string{labelBSS, labelFrom, labelTo}

	return &Collector{
		ClientsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "clients_by_state",
			Help:      "Number of STAs currently in each steering FSM state, per BSS.",
		}, stateLabels),

		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_sent_total",
			Help:      "Total steering control frames transmitted to a peer BSS.",
		}, peerLabels),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Total steering control frames successfully decoded.",
		}, bssLabels),

		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Total steering control frames dropped undecoded, by reason.",
		}, droppedLabels),

		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Total steering FSM state transitions.",
		}, transitionLabels),

		BlacklistAdds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "blacklist_adds_total",
			Help:      "Total times a STA was added to the driver blacklist.",
		}, bssLabels),

		BlacklistRemoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "blacklist_removes_total",
			Help:      "Total times a STA was removed from the driver blacklist.",
		}, bssLabels),
	}
}

// -------------------------------------------------------------------------
// Client State Gauge
// -------------------------------------------------------------------------

// EnterState increments the client gauge for the given BSS and state.
// Called when a client's FSM transitions into state.
func (c *Collector) EnterState(bss, state string) {
	c.ClientsByState.WithLabelValues(bss, state).Inc()
}

// ExitState decrements the client gauge for the given BSS and state.
// Called when a client's FSM transitions out of state.
func (c *Collector) ExitState(bss, state string) {
	c.ClientsByState.WithLabelValues(bss, state).Dec()
}

// -------------------------------------------------------------------------
// Frame Counters
// -------------------------------------------------------------------------

// IncFramesSent increments the transmitted-frames counter for the given
// BSS and destination peer.
func (c *Collector) IncFramesSent(bss, peerBSSID string) {
	c.FramesSent.WithLabelValues(bss, peerBSSID).Inc()
}

// IncFramesReceived increments the received-frames counter for the given BSS.
func (c *Collector) IncFramesReceived(bss string) {
	c.FramesReceived.WithLabelValues(bss).Inc()
}

// IncFramesDropped increments the dropped-frames counter for the given BSS
// and reason.
func (c *Collector) IncFramesDropped(bss, reason string) {
	c.FramesDropped.WithLabelValues(bss, reason).Inc()
}

// -------------------------------------------------------------------------
// State Transitions
// -------------------------------------------------------------------------

// RecordTransition increments the transition counter with the old and new
// state labels. Used for alerting on steering churn (e.g. a STA bouncing
// between Associating and Rejecting).
func (c *Collector) RecordTransition(bss, from, to string) {
	c.Transitions.WithLabelValues(bss, from, to).Inc()
}

// -------------------------------------------------------------------------
// Blacklist Actions
// -------------------------------------------------------------------------

// IncBlacklistAdds increments the blacklist-add counter for the given BSS.
func (c *Collector) IncBlacklistAdds(bss string) {
	c.BlacklistAdds.WithLabelValues(bss).Inc()
}

// IncBlacklistRemoves increments the blacklist-remove counter for the given BSS.
func (c *Collector) IncBlacklistRemoves(bss string) {
	c.BlacklistRemoves.WithLabelValues(bss).Inc()
}
