package steering

import (
	"context"
	"time"
)

// computeScore turns an RSSI reading (typically negative, in dBm) into the
// wire score: smaller is better. Values that would not fit in a uint16
// saturate at MaxScore rather than wrapping, since MaxScore is also the
// "no signal" sentinel and an RSSI that large in magnitude is never real.
func computeScore(rssi int) uint16 {
	if rssi < 0 {
		rssi = -rssi
	}
	if rssi >= int(MaxScore) {
		return MaxScore
	}
	return uint16(rssi)
}

// OnAssociation is the hook the AP stack calls the moment a STA associates
// to this BSS. It creates the client record if this is the first time this
// BSS has seen the STA, clears any stale remote-peer tracking, immediately
// publishes the freshly computed score, and drives EventAssociated.
func (c *Coordinator) OnAssociation(ctx context.Context, addr MAC, rssi int, supportsBTM bool) {
	cl := c.Registry.FindOrCreate(addr)
	cl.RemoteBSSID = MAC{}
	cl.RemoteScore = MaxScore
	cl.RemoteTime = time.Time{}
	cl.Local = true
	cl.AssociationTime = time.Now()
	cl.SupportsBTM = supportsBTM
	cl.LocalScore = computeScore(rssi)

	c.Timers.Cancel(TimerProbe, addr)
	c.Flood.FloodScore(ctx, cl)
	c.applyAndExecute(ctx, cl, EventAssociated)
}

// OnDisassociation is the hook the AP stack calls when a STA leaves this
// BSS, for any reason (including one we ourselves requested).
func (c *Coordinator) OnDisassociation(ctx context.Context, addr MAC) {
	cl, err := c.Registry.Find(addr)
	if err != nil {
		return
	}
	c.disassociateLocally(ctx, cl)
}

// disassociateLocally drives EventDisassociated and clears every field that
// only makes sense while the STA is locally associated, then restarts the
// probe-staleness timer so LocalScore ages out if the STA never comes back.
func (c *Coordinator) disassociateLocally(ctx context.Context, cl *Client) {
	c.applyAndExecute(ctx, cl, EventDisassociated)
	cl.Local = false
	cl.AssociationTime = time.Time{}
	cl.RemoteBSSID = MAC{}
	cl.RemoteScore = MaxScore
	cl.RemoteTime = time.Time{}
	c.Timers.RegisterProbe(cl.Addr)
}

// OnProbeRequest is the hook the AP stack calls for every probe request
// frame received on this BSS, associated or not. A probe from a STA with
// no existing record is only processed if it was directed at our own
// BSSID — otherwise it is almost certainly someone else's client probing
// around, and creating a record for every STA within radio range would
// make the registry unbounded.
func (c *Coordinator) OnProbeRequest(ctx context.Context, addr MAC, destBSSID MAC, rssi int) {
	cl, err := c.Registry.Find(addr)
	if err != nil {
		if destBSSID != c.Local {
			return
		}
		cl = c.Registry.Create(addr)
	}

	score := computeScore(rssi)
	changed := score != cl.LocalScore
	cl.LocalScore = score

	if changed && cl.Local {
		c.Flood.FloodScore(ctx, cl)
	}
	if !cl.Local {
		c.Timers.RegisterProbe(addr)
	}
}

// OnReceive demultiplexes a decoded control frame from a peer BSS to the
// per-TLV-type handler.
func (c *Coordinator) OnReceive(ctx context.Context, f Frame) {
	c.Metrics.IncFramesReceived(string(c.Handle))
	for _, s := range f.Scores {
		c.receiveScore(ctx, s)
	}
	for _, cc := range f.Closes {
		c.receiveCloseClient(ctx, cc)
	}
	for _, cd := range f.Closeds {
		c.receiveClosedClient(ctx, cd)
	}
}

// OnDecodeError is the hook cmd/steerd calls when Decode fails on a frame
// read from this BSS's raw socket, before OnReceive would ever be reached.
// reason should be a short label for the decode sentinel error (e.g.
// "bad_magic"), used as a metrics label.
func (c *Coordinator) OnDecodeError(reason string) {
	c.Metrics.IncFramesDropped(string(c.Handle), reason)
	c.Log.Debug("steering: dropped undecodable frame", "reason", reason)
}

// receiveScore folds a peer's SCORE publication into our tracking of that
// client. If the peer's corrected association time is strictly later than
// what we had on file, and the reporting BSSID differs from the one we
// were already tracking, the STA has roamed to a third AP since we last
// heard from its previous owner; if we still think the STA is locally
// associated, that belief is now stale and must be corrected immediately,
// not left to dangle until our own flood timer or a future probe notices.
func (c *Coordinator) receiveScore(ctx context.Context, t ScoreTLV) {
	cl := c.Registry.FindOrCreate(t.STA)

	remoteAssociatedAt := time.Now().Add(-time.Duration(t.AssociatedMillis) * time.Millisecond)
	roamed := !cl.RemoteTime.IsZero() && remoteAssociatedAt.After(cl.RemoteTime) && t.BSSID != cl.RemoteBSSID

	if roamed && cl.Local {
		c.disassociateLocally(ctx, cl)
	}

	cl.RemoteBSSID = t.BSSID
	cl.RemoteScore = t.Score
	cl.RemoteTime = remoteAssociatedAt

	c.compareScores(ctx, cl)
}

// compareScores drives EventPeerIsWorse when our own tracked LocalScore
// beats the peer's reported RemoteScore (we should contest ownership), and
// EventPeerNotWorse otherwise (the peer already has, or deserves, the
// client). Equal scores favor the incumbent peer, not us.
func (c *Coordinator) compareScores(ctx context.Context, cl *Client) {
	if cl.LocalScore < cl.RemoteScore {
		c.applyAndExecute(ctx, cl, EventPeerIsWorse)
		return
	}
	c.applyAndExecute(ctx, cl, EventPeerNotWorse)
}

// receiveCloseClient handles a peer's request that we release a client in
// its favor. Frames addressed to some other BSSID are ignored (every peer
// hears every flood, content-addressed rather than link-addressed); a
// request for a client we have no record of is silently dropped, since
// there is nothing here for us to release.
func (c *Coordinator) receiveCloseClient(ctx context.Context, t CloseClientTLV) {
	if t.TargetBSSID != c.Local {
		return
	}
	cl, err := c.Registry.Find(t.STA)
	if err != nil {
		return
	}
	cl.CloseBSSID = t.SenderBSSID
	cl.RemoteBSSID = t.SenderBSSID
	cl.RemoteChannel = t.Channel
	c.applyAndExecute(ctx, cl, EventCloseClient)
}

// receiveClosedClient handles a peer's confirmation that it has released a
// client we had asked it to give up.
func (c *Coordinator) receiveClosedClient(ctx context.Context, t ClosedClientTLV) {
	if t.TargetBSSID != c.Local {
		return
	}
	cl, err := c.Registry.Find(t.STA)
	if err != nil {
		return
	}
	c.applyAndExecute(ctx, cl, EventClosedClient)
}

// OnTimerEvent is the hook cmd/steerd calls for every event read off
// Coordinator.Timers.Events(). A client timer expiry drives EventTimeout
// through the FSM; a flood timer rearms itself and republishes the current
// score (the periodic timer is not self-rearming, see timers.go); a probe
// timer expiry ages LocalScore back out to MaxScore with no FSM event,
// matching the original protocol's fire-and-forget probe timeout.
func (c *Coordinator) OnTimerEvent(ctx context.Context, ev TimerEvent) {
	cl, err := c.Registry.Find(ev.Client)
	if err != nil {
		return
	}
	switch ev.Kind {
	case TimerClient:
		c.applyAndExecute(ctx, cl, EventTimeout)
	case TimerFlood:
		c.Timers.RegisterFlood(cl.Addr)
		c.Flood.FloodScore(ctx, cl)
	case TimerProbe:
		cl.LocalScore = MaxScore
	}
}

// applyAndExecute runs the FSM, commits the resulting state, logs the
// transition if one occurred, and executes the requested actions in order.
func (c *Coordinator) applyAndExecute(ctx context.Context, cl *Client, event Event) FSMResult {
	result := ApplyEvent(cl.State, event)
	cl.State = result.NewState
	if result.Changed {
		c.Log.Debug("steering: state transition",
			"client", cl.Addr, "event", event, "from", result.OldState, "to", result.NewState)
		c.Metrics.ExitState(string(c.Handle), result.OldState.String())
		c.Metrics.EnterState(string(c.Handle), result.NewState.String())
		c.Metrics.RecordTransition(string(c.Handle), result.OldState.String(), result.NewState.String())
		if err := c.Notifier.StateChanged(string(c.Handle), cl.Addr.String(), result.OldState.String(), result.NewState.String()); err != nil {
			c.Log.Warn("steering: state change notification failed", "client", cl.Addr, "err", err)
		}
	}
	for _, action := range result.Actions {
		c.executeAction(ctx, cl, action)
	}
	return result
}

func (c *Coordinator) executeAction(ctx context.Context, cl *Client, action Action) {
	switch action {
	case ActionStartFloodTimer:
		c.Timers.RegisterFlood(cl.Addr)
		c.Flood.FloodScore(ctx, cl)
	case ActionStopFloodTimer:
		c.Timers.Cancel(TimerFlood, cl.Addr)
		cl.LocalScore = MaxScore
	case ActionFloodClose:
		c.Flood.FloodClose(ctx, cl)
	case ActionFloodClosed:
		c.Flood.FloodClosed(ctx, cl)
	case ActionBlacklistAdd:
		if c.Mode == ModeForce {
			if err := c.Stack.BlacklistAdd(cl.Addr); err != nil {
				c.Log.Warn("steering: blacklist add failed", "client", cl.Addr, "err", err)
			} else {
				c.Metrics.IncBlacklistAdds(string(c.Handle))
			}
		}
	case ActionBlacklistRemove:
		if c.Mode == ModeForce {
			if err := c.Stack.BlacklistRemove(cl.Addr); err != nil {
				c.Log.Warn("steering: blacklist remove failed", "client", cl.Addr, "err", err)
			} else {
				c.Metrics.IncBlacklistRemoves(string(c.Handle))
			}
		}
	case ActionDisassociate:
		c.disassociate(cl)
	case ActionStartClientTimer:
		c.Timers.RegisterClient(cl.Addr)
	case ActionStopClientTimer:
		c.Timers.Cancel(TimerClient, cl.Addr)
	}
}

// disassociate picks between a soft BSS Transition Management request and a
// hard disassociate: suggest mode never hard-disconnects, and force mode
// only falls back to a hard disassociate for STAs that cannot act on a BTM
// request at all.
func (c *Coordinator) disassociate(cl *Client) {
	if c.Mode == ModeSuggest || cl.SupportsBTM {
		if err := c.Stack.SendBTMRequest(cl.Addr, cl.RemoteBSSID, cl.RemoteChannel); err != nil {
			c.Log.Warn("steering: BTM request failed", "client", cl.Addr, "err", err)
		}
		return
	}
	if err := c.Stack.Disassociate(cl.Addr); err != nil {
		c.Log.Warn("steering: disassociate failed", "client", cl.Addr, "err", err)
	}
}
