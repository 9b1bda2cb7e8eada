package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cococorp/steerd/internal/config"
	"github.com/cococorp/steerd/internal/steering"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Metrics.Addr != ":9105" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9105")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Debug.Addr != ":9106" {
		t.Errorf("Debug.Addr = %q, want %q", cfg.Debug.Addr, ":9106")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	// DefaultConfig has no bsses, so it fails validation on its own —
	// unlike a config made entirely of scalar defaults, at least one bss
	// is always required.
	if err := config.Validate(cfg); !errors.Is(err, config.ErrNoBSS) {
		t.Errorf("Validate(DefaultConfig()) error = %v, want %v", err, config.ErrNoBSS)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
metrics:
  addr: ":9200"
  path: "/custom-metrics"
debug:
  addr: ":9206"
log:
  level: "debug"
  format: "text"
bsses:
  - handle: "bss0"
    bridge: "br0"
    iface: "wlan0"
    bssid: "aa:bb:cc:dd:ee:01"
    net_steering_mode: "force"
    r0kh_list:
      - "aa:bb:cc:dd:ee:02"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Debug.Addr != ":9206" {
		t.Errorf("Debug.Addr = %q, want %q", cfg.Debug.Addr, ":9206")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if len(cfg.BSSes) != 1 {
		t.Fatalf("BSSes count = %d, want 1", len(cfg.BSSes))
	}
	bss := cfg.BSSes[0]
	if bss.Handle != "bss0" {
		t.Errorf("BSSes[0].Handle = %q, want %q", bss.Handle, "bss0")
	}
	if bss.Bridge != "br0" {
		t.Errorf("BSSes[0].Bridge = %q, want %q", bss.Bridge, "br0")
	}
	if len(bss.Peers) != 1 || bss.Peers[0] != "aa:bb:cc:dd:ee:02" {
		t.Errorf("BSSes[0].Peers = %v, want [aa:bb:cc:dd:ee:02]", bss.Peers)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override log.level and declare the required bss.
	// Everything else should inherit from defaults.
	yamlContent := `
log:
  level: "warn"
bsses:
  - handle: "bss0"
    bridge: "br0"
    iface: "wlan0"
    bssid: "aa:bb:cc:dd:ee:01"
    net_steering_mode: "off"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9105" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9105")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	validBSS := config.BSSConfig{
		Handle: "bss0",
		Bridge: "br0",
		Iface:  "wlan0",
		BSSID:  "aa:bb:cc:dd:ee:01",
		Mode:   "force",
		Peers:  []string{"aa:bb:cc:dd:ee:02"},
	}

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name:    "no bsses",
			modify:  func(cfg *config.Config) { cfg.BSSes = nil },
			wantErr: config.ErrNoBSS,
		},
		{
			name: "duplicate handle",
			modify: func(cfg *config.Config) {
				cfg.BSSes = []config.BSSConfig{validBSS, validBSS}
			},
			wantErr: config.ErrDuplicateBSS,
		},
		{
			name: "missing bridge",
			modify: func(cfg *config.Config) {
				b := validBSS
				b.Bridge = ""
				cfg.BSSes = []config.BSSConfig{b}
			},
			wantErr: config.ErrMissingBridge,
		},
		{
			name: "missing iface",
			modify: func(cfg *config.Config) {
				b := validBSS
				b.Iface = ""
				cfg.BSSes = []config.BSSConfig{b}
			},
			wantErr: config.ErrMissingIface,
		},
		{
			name: "invalid bssid",
			modify: func(cfg *config.Config) {
				b := validBSS
				b.BSSID = "not-a-mac"
				cfg.BSSes = []config.BSSConfig{b}
			},
			wantErr: config.ErrInvalidBSSID,
		},
		{
			name: "invalid peer mac",
			modify: func(cfg *config.Config) {
				b := validBSS
				b.Peers = []string{"nope"}
				cfg.BSSes = []config.BSSConfig{b}
			},
			wantErr: config.ErrInvalidPeerMAC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			cfg.BSSes = []config.BSSConfig{validBSS}
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOffModeAllowsNoPeers(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.BSSes = []config.BSSConfig{{
		Handle: "bss0",
		Bridge: "br0",
		Iface:  "wlan0",
		BSSID:  "aa:bb:cc:dd:ee:01",
		Mode:   "off",
	}}

	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate() with mode off and no peers returned error: %v", err)
	}
}

func TestValidateForceModeWithNoPeersDisablesBSSInsteadOfFailing(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.BSSes = []config.BSSConfig{{
		Handle: "bss0",
		Bridge: "br0",
		Iface:  "wlan0",
		BSSID:  "aa:bb:cc:dd:ee:01",
		Mode:   "force",
	}}

	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate() with no peers configured returned error %v, want nil (disable, not fail)", err)
	}

	mode, _ := config.ParseMode(cfg.BSSes[0].Mode)
	if mode != steering.ModeOff {
		t.Errorf("bsses[0].Mode = %q, want a mode that parses to ModeOff", cfg.BSSes[0].Mode)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input        string
		wantMode     steering.Mode
		wantRecog    bool
	}{
		{input: "off", wantMode: steering.ModeOff, wantRecog: true},
		{input: "", wantMode: steering.ModeOff, wantRecog: true},
		{input: "OFF", wantMode: steering.ModeOff, wantRecog: true},
		{input: "suggest", wantMode: steering.ModeSuggest, wantRecog: true},
		{input: "force", wantMode: steering.ModeForce, wantRecog: true},
		{input: "bogus", wantMode: steering.ModeForce, wantRecog: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			mode, recognized := config.ParseMode(tt.input)
			if mode != tt.wantMode {
				t.Errorf("ParseMode(%q) mode = %v, want %v", tt.input, mode, tt.wantMode)
			}
			if recognized != tt.wantRecog {
				t.Errorf("ParseMode(%q) recognized = %v, want %v", tt.input, recognized, tt.wantRecog)
			}
		})
	}
}

func TestBSSConfigMACHelpers(t *testing.T) {
	t.Parallel()

	bss := config.BSSConfig{
		BSSID: "aa:bb:cc:dd:ee:01",
		Peers: []string{"aa:bb:cc:dd:ee:02", "aa:bb:cc:dd:ee:03"},
	}

	want, _ := steering.ParseMAC("aa:bb:cc:dd:ee:01")
	if got := bss.BSSIDMAC(); got != want {
		t.Errorf("BSSIDMAC() = %v, want %v", got, want)
	}

	peers := bss.PeerMACs()
	if len(peers) != 2 {
		t.Fatalf("PeerMACs() len = %d, want 2", len(peers))
	}
	wantPeer0, _ := steering.ParseMAC("aa:bb:cc:dd:ee:02")
	if peers[0] != wantPeer0 {
		t.Errorf("PeerMACs()[0] = %v, want %v", peers[0], wantPeer0)
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
log:
  level: "info"
bsses:
  - handle: "bss0"
    bridge: "br0"
    iface: "wlan0"
    bssid: "aa:bb:cc:dd:ee:01"
    net_steering_mode: "off"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("STEERD_LOG_LEVEL", "debug")
	t.Setenv("STEERD_METRICS_ADDR", ":9300")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}

	if cfg.Metrics.Addr != ":9300" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9300")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "steerd.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
