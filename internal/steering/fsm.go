package steering

// State is one of the six steering states a client record can be in.
type State int

// Steering states.
const (
	// StateIdle: record exists, STA is not associated here and we have no
	// ownership information from peers.
	StateIdle State = iota
	// StateConfirming: we told a peer to close the STA; waiting for it to
	// respond (CLOSED, or for our score to become best).
	StateConfirming
	// StateAssociating: we expect the STA to associate here shortly. No
	// blacklist is held.
	StateAssociating
	// StateAssociated: STA is locally associated; we periodically flood
	// our score.
	StateAssociated
	// StateRejecting: we have just initiated local departure of the STA;
	// waiting for disassociation to be observed.
	StateRejecting
	// StateRejected: STA is locally blacklisted and not associated.
	StateRejected
)

// String renders the state name used in log lines, matching the original
// protocol's state_to_str.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConfirming:
		return "CONFIRMING"
	case StateAssociating:
		return "ASSOCIATING"
	case StateAssociated:
		return "ASSOCIATED"
	case StateRejecting:
		return "REJECTING"
	case StateRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Event is one of the eight FSM input events.
type Event int

// Steering events.
const (
	EventAssociated Event = iota
	EventDisassociated
	EventPeerIsWorse
	EventPeerNotWorse
	EventPeerLostClient
	EventCloseClient
	EventClosedClient
	EventTimeout
)

// String renders the event name used in log lines.
func (e Event) String() string {
	switch e {
	case EventAssociated:
		return "ASSOCIATED"
	case EventDisassociated:
		return "DISASSOCIATED"
	case EventPeerIsWorse:
		return "PEER_IS_WORSE"
	case EventPeerNotWorse:
		return "PEER_NOT_WORSE"
	case EventPeerLostClient:
		return "PEER_LOST_CLIENT"
	case EventCloseClient:
		return "CLOSE_CLIENT"
	case EventClosedClient:
		return "CLOSED_CLIENT"
	case EventTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Action is one side effect a transition requests of its caller. Actions
// never touch the client record directly; ApplyEvent is pure and the
// caller (ingress.go) is responsible for executing the returned actions in
// order against the registry, flood engine, timer adapter, and external
// AP-stack collaborators.
type Action int

// Actions a transition may request, executed in the order returned.
const (
	// ActionStartFloodTimer (re)starts the 1s periodic score flood and
	// immediately floods once.
	ActionStartFloodTimer Action = iota
	// ActionStopFloodTimer cancels the flood timer and resets local_score
	// to MaxScore.
	ActionStopFloodTimer
	// ActionFloodClose emits a CLOSE_CLIENT TLV to all peers.
	ActionFloodClose
	// ActionFloodClosed emits a CLOSED_CLIENT TLV naming the close_bssid
	// peer as target to all peers, then clears close_bssid.
	ActionFloodClosed
	// ActionBlacklistAdd blacklists the STA locally (no-op outside FORCE
	// mode).
	ActionBlacklistAdd
	// ActionBlacklistRemove un-blacklists the STA locally (no-op outside
	// FORCE mode).
	ActionBlacklistRemove
	// ActionDisassociate issues a hard disassociate or a BTM request,
	// depending on mode and the STA's BSS-transition capability.
	ActionDisassociate
	// ActionStartClientTimer (re)starts the 10s client timer.
	ActionStartClientTimer
	// ActionStopClientTimer cancels the client timer.
	ActionStopClientTimer
)

// String renders the action name used in log lines.
func (a Action) String() string {
	switch a {
	case ActionStartFloodTimer:
		return "start_flood_timer"
	case ActionStopFloodTimer:
		return "stop_flood_timer"
	case ActionFloodClose:
		return "flood_close"
	case ActionFloodClosed:
		return "flood_closed"
	case ActionBlacklistAdd:
		return "blacklist_add"
	case ActionBlacklistRemove:
		return "blacklist_remove"
	case ActionDisassociate:
		return "disassociate"
	case ActionStartClientTimer:
		return "start_client_timer"
	case ActionStopClientTimer:
		return "stop_client_timer"
	default:
		return "unknown"
	}
}

// stateEvent is the lookup key into fsmTable.
type stateEvent struct {
	state State
	event Event
}

// transition is one table entry: the resulting state and the actions to
// execute, in order, when taken.
type transition struct {
	next    State
	actions []Action
}

// FSMResult is the outcome of ApplyEvent: the state before and after, the
// actions to execute (already in the correct order), and whether the state
// actually changed (Changed is false for actions taken as a self-loop, e.g.
// ASSOCIATED+PEER_IS_WORSE stays ASSOCIATED but still floods a CLOSE).
type FSMResult struct {
	OldState State
	NewState State
	Actions  []Action
	Changed  bool
}

// fsmTable is the authoritative transition table. Any (state, event) pair
// absent from this map is a no-op: the state does not change and no action
// fires, mirroring net_steering's SM_STEP_EVENT default-no-op behavior.
//
//nolint:gochecknoglobals // the transition table is immutable data, not mutable state.
var fsmTable = map[stateEvent]transition{
	// IDLE
	{StateIdle, EventAssociated}: {StateAssociated, []Action{ActionStartFloodTimer}},
	{StateIdle, EventPeerIsWorse}: {StateConfirming, []Action{ActionFloodClose}},
	{StateIdle, EventPeerNotWorse}: {
		StateRejected,
		[]Action{ActionBlacklistAdd, ActionStartClientTimer},
	},
	// PEER_LOST_CLIENT in IDLE transitions to ASSOCIATING with no entry
	// actions, so only the client's State field changes.
	{StateIdle, EventPeerLostClient}: {StateAssociating, nil},
	{StateIdle, EventCloseClient}: {
		// Open question, not silently resolved: this blacklists a STA that
		// may never have associated here, on a peer's say-so alone.
		StateRejected,
		[]Action{ActionFloodClose, ActionBlacklistAdd, ActionStartClientTimer},
	},

	// CONFIRMING
	{StateConfirming, EventPeerIsWorse}: {StateConfirming, []Action{ActionFloodClose}},
	{StateConfirming, EventAssociated}:  {StateAssociated, []Action{ActionStartFloodTimer}},
	{StateConfirming, EventClosedClient}: {StateAssociating, nil},
	{StateConfirming, EventTimeout}:      {StateIdle, nil},
	// Open question, not silently resolved: CONFIRMING+PEER_NOT_WORSE is
	// intentionally absent from this table — already closing our side too
	// would black-hole the STA while both APs wait.

	// ASSOCIATING
	{StateAssociating, EventAssociated}:    {StateAssociated, []Action{ActionStartFloodTimer}},
	{StateAssociating, EventDisassociated}: {StateIdle, nil},
	{StateAssociating, EventPeerIsWorse}:   {StateAssociating, []Action{ActionFloodClose}},
	{StateAssociating, EventCloseClient}: {
		StateRejected,
		[]Action{ActionFloodClosed, ActionBlacklistAdd, ActionStartClientTimer},
	},

	// ASSOCIATED
	{StateAssociated, EventCloseClient}: {
		StateRejecting,
		[]Action{ActionBlacklistAdd, ActionDisassociate, ActionStartClientTimer, ActionStopFloodTimer},
	},
	{StateAssociated, EventDisassociated}: {StateIdle, []Action{ActionStopFloodTimer}},
	{StateAssociated, EventPeerIsWorse}:   {StateAssociated, []Action{ActionFloodClose}},

	// REJECTING. Restarting (not merely stopping) the client timer on
	// REJECTING->REJECTED is deliberate: the 10s window measures "time
	// since we last heard anything fresh" and disassociation counts as
	// fresh.
	{StateRejecting, EventDisassociated}: {
		StateRejected,
		[]Action{ActionFloodClosed, ActionStopClientTimer, ActionStartClientTimer},
	},
	{StateRejecting, EventPeerIsWorse}: {
		StateConfirming,
		[]Action{ActionBlacklistRemove, ActionFloodClose, ActionStopClientTimer},
	},
	{StateRejecting, EventPeerLostClient}: {
		// A hint, not a command — we unblacklist and let the next real
		// event (via CONFIRMING) drive the decision.
		StateConfirming,
		[]Action{ActionBlacklistRemove, ActionStopClientTimer},
	},
	{StateRejecting, EventTimeout}: {
		StateAssociating,
		[]Action{ActionBlacklistRemove, ActionStopClientTimer},
	},

	// REJECTED
	{StateRejected, EventPeerIsWorse}: {
		StateConfirming,
		[]Action{ActionBlacklistRemove, ActionFloodClose, ActionStopClientTimer},
	},
	{StateRejected, EventPeerLostClient}: {
		StateConfirming,
		[]Action{ActionBlacklistRemove, ActionFloodClose, ActionStopClientTimer},
	},
	{StateRejected, EventCloseClient}: {StateRejected, []Action{ActionFloodClose}},
	{StateRejected, EventTimeout}: {
		StateAssociating,
		[]Action{ActionBlacklistRemove, ActionStopClientTimer},
	},
}

// ApplyEvent is the FSM's single pure entry point: given the client's
// current state and an incoming event, it returns the next state and the
// ordered list of actions the caller must execute. ApplyEvent never
// touches a client record, a timer, or the network — all of that is the
// caller's responsibility (internal/steering/ingress.go), keeping the FSM
// itself trivially testable as a pure function.
func ApplyEvent(state State, event Event) FSMResult {
	t, ok := fsmTable[stateEvent{state, event}]
	if !ok {
		// Unlisted pair: no-op.
		return FSMResult{OldState: state, NewState: state, Changed: false}
	}
	return FSMResult{
		OldState: state,
		NewState: t.next,
		Actions:  t.actions,
		Changed:  t.next != state,
	}
}
