package steering_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cococorp/steerd/internal/steering"
)

type fakeSender struct {
	sent []sentFrame
	fail map[steering.MAC]error
}

type sentFrame struct {
	peer  steering.MAC
	frame []byte
}

func (f *fakeSender) Send(_ context.Context, peer steering.MAC, frame []byte) error {
	if err := f.fail[peer]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentFrame{peer: peer, frame: frame})
	return nil
}

func TestFloodScoreSkipsSelfAndReachesEveryPeer(t *testing.T) {
	t.Parallel()

	local := mac(1)
	sender := &fakeSender{}
	eng := steering.NewFloodEngine(local, []steering.MAC{local, mac(2), mac(3)}, sender, nil)

	c := &steering.Client{Addr: mac(9), LocalScore: 40, AssociationTime: time.Now()}
	eng.FloodScore(context.Background(), c)

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d frames, want 2 (self must be skipped)", len(sender.sent))
	}
	for _, s := range sender.sent {
		if s.peer == local {
			t.Errorf("sent to local BSSID %v, should have been skipped", local)
		}
		f, err := steering.Decode(s.frame)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if len(f.Scores) != 1 || f.Scores[0].Score != 40 || f.Scores[0].STA != mac(9) {
			t.Errorf("decoded score = %+v, want score 40 for mac(9)", f.Scores)
		}
	}
}

func TestFloodSendFailureToOnePeerDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	local := mac(1)
	sender := &fakeSender{fail: map[steering.MAC]error{mac(2): errors.New("boom")}}
	eng := steering.NewFloodEngine(local, []steering.MAC{local, mac(2), mac(3)}, sender, nil)

	c := &steering.Client{Addr: mac(9), LocalScore: 10}
	eng.FloodScore(context.Background(), c)

	if len(sender.sent) != 1 || sender.sent[0].peer != mac(3) {
		t.Errorf("sent = %+v, want exactly one frame to mac(3)", sender.sent)
	}
}

func TestFloodScoreSuppressedWhenScoreUnknown(t *testing.T) {
	t.Parallel()

	local := mac(1)
	sender := &fakeSender{}
	eng := steering.NewFloodEngine(local, []steering.MAC{local, mac(2), mac(3)}, sender, nil)

	c := &steering.Client{Addr: mac(9), LocalScore: steering.MaxScore, AssociationTime: time.Now()}
	eng.FloodScore(context.Background(), c)

	if len(sender.sent) != 0 {
		t.Errorf("sent %d frames, want 0 (score == MaxScore must be suppressed)", len(sender.sent))
	}
}

func TestFloodCloseUsesRemoteBSSIDAsTarget(t *testing.T) {
	t.Parallel()

	local := mac(1)
	sender := &fakeSender{}
	eng := steering.NewFloodEngine(local, []steering.MAC{local, mac(2)}, sender, nil)

	c := &steering.Client{Addr: mac(9), RemoteBSSID: mac(5), RemoteChannel: 36}
	eng.FloodClose(context.Background(), c)

	f, err := steering.Decode(sender.sent[0].frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(f.Closes) != 1 {
		t.Fatalf("Closes = %+v, want one entry", f.Closes)
	}
	got := f.Closes[0]
	if got.TargetBSSID != mac(5) || got.SenderBSSID != local || got.Channel != 36 {
		t.Errorf("CloseClientTLV = %+v, want TargetBSSID=mac(5) SenderBSSID=local Channel=36", got)
	}
}

func TestFloodClosedClearsCloseBSSID(t *testing.T) {
	t.Parallel()

	local := mac(1)
	sender := &fakeSender{}
	eng := steering.NewFloodEngine(local, []steering.MAC{local, mac(2)}, sender, nil)

	c := &steering.Client{Addr: mac(9), CloseBSSID: mac(7)}
	eng.FloodClosed(context.Background(), c)

	if !c.CloseBSSID.IsZero() {
		t.Errorf("CloseBSSID = %v, want zeroed after FloodClosed", c.CloseBSSID)
	}

	f, err := steering.Decode(sender.sent[0].frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(f.Closeds) != 1 || f.Closeds[0].TargetBSSID != mac(7) {
		t.Errorf("Closeds = %+v, want TargetBSSID=mac(7)", f.Closeds)
	}
}

func TestFloodSequenceNumberIncrements(t *testing.T) {
	t.Parallel()

	local := mac(1)
	sender := &fakeSender{}
	eng := steering.NewFloodEngine(local, []steering.MAC{local, mac(2)}, sender, nil)

	c := &steering.Client{Addr: mac(9)}
	eng.FloodScore(context.Background(), c)
	eng.FloodScore(context.Background(), c)

	f1, _ := steering.Decode(sender.sent[0].frame)
	f2, _ := steering.Decode(sender.sent[1].frame)
	if f2.Seq <= f1.Seq {
		t.Errorf("seq did not increase: %d then %d", f1.Seq, f2.Seq)
	}
}
