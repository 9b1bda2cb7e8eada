package steering

import (
	"context"
	"log/slog"
	"time"
)

// FrameSender is the narrow send-side interface onto the raw L2 transport.
// internal/l2 implements it; tests can fake it without a privileged socket.
type FrameSender interface {
	Send(ctx context.Context, peer MAC, frame []byte) error
}

// FloodEngine fans a frame out to every configured peer BSSID over the
// control channel, one unicast per peer, skipping the local BSSID. It owns
// the per-BSS frame sequence counter.
type FloodEngine struct {
	local  MAC
	peers  []MAC
	sender FrameSender
	log    *slog.Logger
	seq    uint16

	handle  string
	metrics MetricsSink
}

// NewFloodEngine returns a FloodEngine that floods to peers (a BSSID list,
// typically sourced from the configured key-holder/peer-AP list) over
// sender, using local as this BSS's own BSSID for self-suppression and
// frame fields.
func NewFloodEngine(local MAC, peers []MAC, sender FrameSender, log *slog.Logger) *FloodEngine {
	if log == nil {
		log = slog.Default()
	}
	return &FloodEngine{local: local, peers: peers, sender: sender, log: log, metrics: noopMetrics{}}
}

// withMetrics wires the BSS handle and MetricsSink used to report
// per-peer send counts. Called by NewCoordinator; not exported, since
// plain FloodEngine use (as in this package's own tests) has no handle to
// label with.
func (f *FloodEngine) withMetrics(handle string, m MetricsSink) {
	f.handle = handle
	f.metrics = m
}

func (f *FloodEngine) nextSeq() uint16 {
	f.seq++
	return f.seq
}

// send unicasts frame to every configured peer except ourselves. A send
// failure to one peer is logged and does not stop delivery to the rest.
func (f *FloodEngine) send(ctx context.Context, frame []byte) {
	for _, peer := range f.peers {
		if peer == f.local {
			continue
		}
		if err := f.sender.Send(ctx, peer, frame); err != nil {
			f.log.Warn("steering: flood send failed", "peer", peer, "err", err)
			continue
		}
		f.metrics.IncFramesSent(f.handle, peer.String())
	}
}

// FloodScore publishes c's current LocalScore to every peer.
// c.AssociationTime is the instant c last associated locally; when it is
// zero, AssociatedMillis is sent as 0 (the original protocol still floods the last known score
// while ASSOCIATED, so callers only invoke this for associated clients).
// Suppressed when LocalScore is still MaxScore (no signal sample yet) —
// flooding an unknown score would let every peer think this AP has the
// worst possible signal for the client, which is wrong in the opposite
// direction from not having an opinion yet.
func (f *FloodEngine) FloodScore(ctx context.Context, c *Client) {
	if c.LocalScore == MaxScore {
		f.log.Debug("steering: flood_score suppressed, no score yet", "sta", c.Addr)
		return
	}

	var millis uint32
	if !c.AssociationTime.IsZero() {
		millis = uint32(time.Since(c.AssociationTime).Milliseconds())
	}
	frame := EncodeScore(f.nextSeq(), ScoreTLV{
		STA:              c.Addr,
		BSSID:            f.local,
		Score:            c.LocalScore,
		AssociatedMillis: millis,
	})
	f.send(ctx, frame)
}

// FloodClose asks every peer to release c in our favor.
func (f *FloodEngine) FloodClose(ctx context.Context, c *Client) {
	frame := EncodeCloseClient(f.nextSeq(), CloseClientTLV{
		STA:         c.Addr,
		SenderBSSID: f.local,
		TargetBSSID: c.RemoteBSSID,
		Channel:     c.RemoteChannel,
	})
	f.send(ctx, frame)
}

// FloodClosed confirms to every peer that we have released c, then clears
// c.CloseBSSID — mirroring flood_closed_client's clear-after-send ordering
// in the original protocol.
func (f *FloodEngine) FloodClosed(ctx context.Context, c *Client) {
	frame := EncodeClosedClient(f.nextSeq(), ClosedClientTLV{
		STA:         c.Addr,
		TargetBSSID: c.CloseBSSID,
	})
	f.send(ctx, frame)
	c.CloseBSSID = MAC{}
}
