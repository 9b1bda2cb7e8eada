// Package config manages steerd daemon configuration using koanf/v2.
//
// Supports a YAML file and environment variable overrides on top of
// compiled-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/cococorp/steerd/internal/steering"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete steerd configuration.
type Config struct {
	Metrics MetricsConfig `koanf:"metrics"`
	Debug   DebugConfig   `koanf:"debug"`
	Log     LogConfig     `koanf:"log"`
	BSSes   []BSSConfig   `koanf:"bsses"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9105").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// DebugConfig holds the plain-JSON introspection endpoint configuration
// steerctl talks to, the control-interface surface reimagined as HTTP.
type DebugConfig struct {
	// Addr is the HTTP listen address for the debug endpoint (e.g., ":9106").
	Addr string `koanf:"addr"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// BSSConfig declares one BSS the daemon steers clients for. A process may
// host several BSSConfig entries at once, one per BSS it is attached to.
type BSSConfig struct {
	// Handle names this BSS in logs, metrics and the debug endpoint. Must
	// be unique within a process.
	Handle string `koanf:"handle"`

	// Bridge is the network interface steering control frames are sent
	// and received on, normally the bridge the BSS's wired and wireless
	// ports both sit behind.
	Bridge string `koanf:"bridge"`

	// Iface is the wireless interface name hostapd manages this BSS on,
	// used to locate its ctrl_iface socket (<hostapd-run-dir>/<iface>).
	// Distinct from Bridge: several BSSes can share one bridge but each
	// has its own hostapd control socket.
	Iface string `koanf:"iface"`

	// BSSID is this BSS's own address, used as the local identity in
	// every TLV this process floods.
	BSSID string `koanf:"bssid"`

	// Mode selects the steering mode: "off", "suggest" or "force". Any
	// other value is accepted but treated as "force" with a warning
	// logged at load time.
	Mode string `koanf:"net_steering_mode"`

	// Peers lists the BSSIDs of cooperating APs this BSS floods score and
	// close-client TLVs to.
	Peers []string `koanf:"r0kh_list"`
}

// BSSIDMAC parses BSSID as a steering.MAC. Callers should only invoke this
// after Validate has succeeded.
func (b BSSConfig) BSSIDMAC() steering.MAC {
	m, _ := steering.ParseMAC(b.BSSID)
	return m
}

// PeerMACs parses Peers as steering.MAC values. Callers should only invoke
// this after Validate has succeeded.
func (b BSSConfig) PeerMACs() []steering.MAC {
	macs := make([]steering.MAC, 0, len(b.Peers))
	for _, p := range b.Peers {
		m, _ := steering.ParseMAC(p)
		macs = append(macs, m)
	}
	return macs
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults. BSSes
// has no default: at least one must come from the file or environment.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9105",
			Path: "/metrics",
		},
		Debug: DebugConfig{
			Addr: ":9106",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for steerd configuration.
// Variables are named STEERD_<section>_<key>, e.g., STEERD_METRICS_ADDR.
const envPrefix = "STEERD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (STEERD_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	STEERD_METRICS_ADDR -> metrics.addr
//	STEERD_METRICS_PATH -> metrics.path
//	STEERD_DEBUG_ADDR    -> debug.addr
//	STEERD_LOG_LEVEL     -> log.level
//	STEERD_LOG_FORMAT    -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	// STEERD_METRICS_ADDR -> metrics.addr (strip prefix, lowercase, _ -> .).
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms STEERD_METRICS_ADDR -> metrics.addr.
// Strips the STEERD_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr": defaults.Metrics.Addr,
		"metrics.path": defaults.Metrics.Path,
		"debug.addr":   defaults.Debug.Addr,
		"log.level":    defaults.Log.Level,
		"log.format":   defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrNoBSS indicates no bss entries were configured.
	ErrNoBSS = errors.New("at least one bss must be configured")

	// ErrDuplicateBSS indicates two bsses share the same handle.
	ErrDuplicateBSS = errors.New("duplicate bss handle")

	// ErrMissingBridge indicates a bss has no bridge interface configured.
	ErrMissingBridge = errors.New("bss is missing a bridge interface")

	// ErrMissingIface indicates a bss has no hostapd interface configured.
	ErrMissingIface = errors.New("bss is missing a hostapd interface")

	// ErrInvalidBSSID indicates a bss has an unparseable bssid.
	ErrInvalidBSSID = errors.New("bss has an invalid bssid")

	// ErrInvalidPeerMAC indicates a bss has an unparseable peer bssid.
	ErrInvalidPeerMAC = errors.New("bss has an invalid peer bssid")
)

// Validate checks the configuration for logical errors. Returns the first
// hard validation error encountered. An enabled bss with no peers
// configured is not a hard error: it is disabled in place (mode forced to
// "off") with a warning logged, mirroring net_steering_init's non-fatal
// "no FT key holders configured, steering disabled" return for the same
// condition — one misconfigured bss should not keep the rest of the
// daemon's bsses, or the host AP itself, from starting.
func Validate(cfg *Config) error {
	if len(cfg.BSSes) == 0 {
		return ErrNoBSS
	}
	return validateBSSes(cfg.BSSes)
}

// validateBSSes checks each declared bss for correctness, disabling (not
// failing) a bss whose peer list is empty. bsses is mutated in place: it
// shares cfg.BSSes's backing array, so a disabled bss's Mode="off" is
// visible to the caller after Validate returns.
func validateBSSes(bsses []BSSConfig) error {
	seen := make(map[string]struct{}, len(bsses))

	for i, bss := range bsses {
		if _, dup := seen[bss.Handle]; dup {
			return fmt.Errorf("bsses[%d] handle %q: %w", i, bss.Handle, ErrDuplicateBSS)
		}
		seen[bss.Handle] = struct{}{}

		if bss.Bridge == "" {
			return fmt.Errorf("bsses[%d] %q: %w", i, bss.Handle, ErrMissingBridge)
		}
		if bss.Iface == "" {
			return fmt.Errorf("bsses[%d] %q: %w", i, bss.Handle, ErrMissingIface)
		}
		if _, err := steering.ParseMAC(bss.BSSID); err != nil {
			return fmt.Errorf("bsses[%d] %q: %w", i, bss.Handle, ErrInvalidBSSID)
		}

		mode, recognized := ParseMode(bss.Mode)
		if !recognized {
			slog.Warn("unrecognized net_steering_mode, defaulting to force",
				"bss", bss.Handle, "configured_mode", bss.Mode)
		}

		if mode != steering.ModeOff && len(bss.Peers) == 0 {
			slog.Warn("no peers configured, steering disabled",
				"bss", bss.Handle, "configured_mode", bss.Mode)
			bsses[i].Mode = "off"
			continue
		}
		for _, p := range bss.Peers {
			if _, err := steering.ParseMAC(p); err != nil {
				return fmt.Errorf("bsses[%d] %q peer %q: %w", i, bss.Handle, p, ErrInvalidPeerMAC)
			}
		}
	}

	return nil
}

// ParseMode maps a net_steering_mode string to a steering.Mode. An empty
// or "off" string is recognized as ModeOff, "suggest" as ModeSuggest,
// "force" as ModeForce. Any other value still returns ModeForce, the
// same fallback hostapd's own net_steering mode parsing uses, but with
// recognized=false so the caller can log the fallback.
func ParseMode(s string) (mode steering.Mode, recognized bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return steering.ModeOff, true
	case "suggest":
		return steering.ModeSuggest, true
	case "force":
		return steering.ModeForce, true
	default:
		return steering.ModeForce, false
	}
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
