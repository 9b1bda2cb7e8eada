// Package debugapi implements the daemon's plain-JSON introspection
// endpoint — the control-interface surface reimagined as HTTP, since no
// generated ConnectRPC stubs exist for this domain. It is shared by cmd/steerd, which serves it, and
// cmd/steerctl, which consumes it, so the wire shape only exists once.
package debugapi

import (
	"encoding/json"
	"net/http"

	"github.com/cococorp/steerd/internal/steering"
)

// ClientStatus is one STA's steering record as seen by a single BSS.
type ClientStatus struct {
	Addr        string `json:"addr"`
	State       string `json:"state"`
	Local       bool   `json:"local"`
	LocalScore  uint16 `json:"local_score"`
	RemoteBSSID string `json:"remote_bssid,omitempty"`
	RemoteScore uint16 `json:"remote_score"`
	SupportsBTM bool   `json:"supports_btm"`
}

// BSSStatus is one locally hosted BSS's steering state. Clients is omitted
// by the list endpoint and populated by the per-BSS endpoint, the same
// summary-vs-detail split a session list/show command pair draws.
type BSSStatus struct {
	Handle      string         `json:"handle"`
	BSSID       string         `json:"bssid"`
	Mode        string         `json:"mode"`
	ClientCount int            `json:"client_count"`
	Clients     []ClientStatus `json:"clients,omitempty"`
}

// ErrorResponse is the JSON body returned alongside a non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// snapshotClient renders cl as a ClientStatus. Caller must already be on
// cl's owning Coordinator's event-loop goroutine, or hold no other
// expectation of consistency — this package does no locking of its own,
// matching internal/steering's single-threaded-per-BSS design.
func snapshotClient(cl *steering.Client) ClientStatus {
	cs := ClientStatus{
		Addr:        cl.Addr.String(),
		State:       cl.State.String(),
		Local:       cl.Local,
		LocalScore:  cl.LocalScore,
		RemoteScore: cl.RemoteScore,
		SupportsBTM: cl.SupportsBTM,
	}
	if !cl.RemoteBSSID.IsZero() {
		cs.RemoteBSSID = cl.RemoteBSSID.String()
	}
	return cs
}

// snapshotBSS renders c as a BSSStatus. withClients controls whether the
// per-client detail list is populated.
func snapshotBSS(c *steering.Coordinator, withClients bool) BSSStatus {
	bs := BSSStatus{
		Handle:      string(c.Handle),
		BSSID:       c.Local.String(),
		Mode:        c.Mode.String(),
		ClientCount: c.Registry.Len(),
	}
	if withClients {
		bs.Clients = make([]ClientStatus, 0, c.Registry.Len())
		c.Registry.All(func(cl *steering.Client) {
			bs.Clients = append(bs.Clients, snapshotClient(cl))
		})
	}
	return bs
}

// NewHandler returns the debug endpoint's mux: GET /bsses lists every
// locally hosted BSS without client detail, GET /bsses/{handle} returns
// one BSS with its full client list.
func NewHandler(reg *steering.CoordinatorRegistry) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /bsses", func(w http.ResponseWriter, _ *http.Request) {
		var bsses []BSSStatus
		reg.All(func(c *steering.Coordinator) {
			bsses = append(bsses, snapshotBSS(c, false))
		})
		writeJSON(w, http.StatusOK, bsses)
	})

	mux.HandleFunc("GET /bsses/{handle}", func(w http.ResponseWriter, r *http.Request) {
		handle := steering.BSSHandle(r.PathValue("handle"))
		c, err := reg.Find(handle)
		if err != nil {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snapshotBSS(c, true))
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
