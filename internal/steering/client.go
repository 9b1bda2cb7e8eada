package steering

import (
	"errors"
	"time"
)

// ErrClientNotFound is returned by Registry.Find when no record exists for
// the given STA address.
var ErrClientNotFound = errors.New("steering: client not found")

// Client is the per-STA steering record tracked by a single BSS. Nothing in
// this package mutates a Client concurrently with itself: every method on
// Registry and every call into ingress.go assumes single-threaded,
// caller-serialized invocation.
type Client struct {
	// Addr is the STA's MAC address; the registry key.
	Addr MAC

	// State is the client's current position in the steering FSM.
	State State

	// Local is true while the STA is associated to this BSS.
	Local bool

	// AssociationTime is when Local last became true. Used to compute the
	// AssociatedMillis this BSS reports in its own SCORE floods.
	AssociationTime time.Time

	// LocalScore is this BSS's most recently computed |RSSI|-based score.
	// MaxScore means "no current signal" (not associated, probe timer
	// expired with nothing heard since).
	LocalScore uint16

	// RemoteBSSID and RemoteScore are the best-known peer's identity and
	// score, as last reported on the wire.
	RemoteBSSID MAC
	RemoteScore uint16

	// RemoteTime is the wall-clock instant (derived from a peer's
	// AssociatedMillis, corrected onto our own clock) that the peer
	// computed its score from. Used to detect stale or superseded
	// SCORE TLVs and roams.
	RemoteTime time.Time

	// RemoteChannel is the channel the STA associated on at the peer,
	// carried so a force-mode close can request a BSS-transition
	// candidate there if supported.
	RemoteChannel uint8

	// CloseBSSID is the peer that most recently told us to close this
	// client; cleared once we confirm with CLOSED_CLIENT.
	CloseBSSID MAC

	// SupportsBTM caches, at association time, whether the STA is capable
	// of 802.11v BSS Transition Management. Cached rather than queried at
	// disassociate time because the AP-stack may already be tearing down
	// STA state when ActionDisassociate fires.
	SupportsBTM bool
}

// Registry is the MAC-keyed set of client records owned by a single BSS
// coordinator. A map lookup here replaces a doubly linked list scanned
// linearly per packet; the original protocol's dl_list is flat across all
// of a BSS's clients and walked on every receive.
type Registry struct {
	clients map[MAC]*Client
}

// NewRegistry returns an empty client registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[MAC]*Client)}
}

// Find returns the client record for addr, or ErrClientNotFound.
func (r *Registry) Find(addr MAC) (*Client, error) {
	c, ok := r.clients[addr]
	if !ok {
		return nil, ErrClientNotFound
	}
	return c, nil
}

// Create inserts a fresh IDLE record for addr, overwriting any existing one.
// Callers that want find-or-create semantics should call Find first.
func (r *Registry) Create(addr MAC) *Client {
	c := &Client{
		Addr:        addr,
		State:       StateIdle,
		LocalScore:  MaxScore,
		RemoteScore: MaxScore,
	}
	r.clients[addr] = c
	return c
}

// FindOrCreate returns the existing record for addr, or creates and returns
// a fresh one.
func (r *Registry) FindOrCreate(addr MAC) *Client {
	if c, err := r.Find(addr); err == nil {
		return c
	}
	return r.Create(addr)
}

// Delete removes addr's record. The caller must cancel every timer
// associated with the client (via the TimerService) before calling Delete,
// mirroring client_delete's cancel-then-free ordering in the original
// protocol; Delete itself does not reach into a TimerService, since the
// registry has no reference to one.
func (r *Registry) Delete(addr MAC) {
	delete(r.clients, addr)
}

// Len reports the number of tracked clients, used by the coordinator's
// debug endpoint.
func (r *Registry) Len() int {
	return len(r.clients)
}

// All calls fn once per tracked client, in unspecified order. fn must not
// mutate the registry.
func (r *Registry) All(fn func(*Client)) {
	for _, c := range r.clients {
		fn(c)
	}
}
