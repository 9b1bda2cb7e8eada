package steering_test

import (
	"errors"
	"testing"

	"github.com/cococorp/steerd/internal/steering"
)

func TestRegistryFindMissing(t *testing.T) {
	t.Parallel()

	r := steering.NewRegistry()
	_, err := r.Find(mac(1))
	if !errors.Is(err, steering.ErrClientNotFound) {
		t.Errorf("err = %v, want ErrClientNotFound", err)
	}
}

func TestRegistryCreateDefaults(t *testing.T) {
	t.Parallel()

	r := steering.NewRegistry()
	c := r.Create(mac(1))

	if c.State != steering.StateIdle {
		t.Errorf("State = %v, want StateIdle", c.State)
	}
	if c.LocalScore != steering.MaxScore || c.RemoteScore != steering.MaxScore {
		t.Errorf("scores = (%d, %d), want both MaxScore", c.LocalScore, c.RemoteScore)
	}

	got, err := r.Find(mac(1))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != c {
		t.Errorf("Find returned a different pointer than Create")
	}
}

func TestRegistryFindOrCreate(t *testing.T) {
	t.Parallel()

	r := steering.NewRegistry()
	first := r.FindOrCreate(mac(1))
	first.LocalScore = 5

	second := r.FindOrCreate(mac(1))
	if second != first {
		t.Error("FindOrCreate should return the existing record, not a fresh one")
	}
	if second.LocalScore != 5 {
		t.Errorf("LocalScore = %d, want 5 (existing record)", second.LocalScore)
	}
}

func TestRegistryDelete(t *testing.T) {
	t.Parallel()

	r := steering.NewRegistry()
	r.Create(mac(1))
	r.Delete(mac(1))

	if _, err := r.Find(mac(1)); !errors.Is(err, steering.ErrClientNotFound) {
		t.Errorf("err = %v, want ErrClientNotFound after Delete", err)
	}
}

func TestRegistryLenAndAll(t *testing.T) {
	t.Parallel()

	r := steering.NewRegistry()
	r.Create(mac(1))
	r.Create(mac(2))
	r.Create(mac(3))

	if got := r.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}

	seen := map[steering.MAC]bool{}
	r.All(func(c *steering.Client) { seen[c.Addr] = true })
	if len(seen) != 3 {
		t.Errorf("All visited %d distinct clients, want 3", len(seen))
	}
}
