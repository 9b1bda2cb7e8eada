package steering

// MetricsSink receives steering telemetry. Implementations must be safe to
// call from the single BSS event-loop goroutine that owns the Coordinator.
// *steeringmetrics.Collector (internal/metrics) satisfies this interface;
// accepting it as an interface here keeps this package free of a
// Prometheus dependency.
type MetricsSink interface {
	EnterState(bss, state string)
	ExitState(bss, state string)
	IncFramesSent(bss, peerBSSID string)
	IncFramesReceived(bss string)
	IncFramesDropped(bss, reason string)
	RecordTransition(bss, from, to string)
	IncBlacklistAdds(bss string)
	IncBlacklistRemoves(bss string)
}

// noopMetrics is the default MetricsSink, used when no collector is wired
// in. Every method is a no-op.
type noopMetrics struct{}

func (noopMetrics) EnterState(string, string)       {}
func (noopMetrics) ExitState(string, string)        {}
func (noopMetrics) IncFramesSent(string, string)    {}
func (noopMetrics) IncFramesReceived(string)        {}
func (noopMetrics) IncFramesDropped(string, string) {}
func (noopMetrics) RecordTransition(_, _, _ string) {}
func (noopMetrics) IncBlacklistAdds(string)          {}
func (noopMetrics) IncBlacklistRemoves(string)       {}

// StateChangeNotifier publishes an out-of-process notification for a
// client's FSM transition. *dbusnotify.Emitter (internal/dbusnotify)
// satisfies this interface; as with MetricsSink, this package only
// depends on the narrow interface, not on D-Bus itself.
type StateChangeNotifier interface {
	StateChanged(bss, sta, from, to string) error
}

// noopNotifier is the default StateChangeNotifier.
type noopNotifier struct{}

func (noopNotifier) StateChanged(string, string, string, string) error { return nil }
