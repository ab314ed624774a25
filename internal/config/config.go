package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Tiliavir/showrun/internal/storage"
)

// Config is the root configuration for showrun, stored in
// ~/.showrun/config.json. The file supports single-line // comments for
// documentation purposes. SHOWRUN_* environment variables override it.
type Config struct {
	// DataDir holds project.json, restore.json and showrun.log. Empty means
	// the directory of the config file.
	DataDir string `json:"data_dir" env:"DATA_DIR"`
	// Timezone is the IANA zone the show runs in. Empty = local time.
	Timezone string `json:"timezone" env:"TIMEZONE"`

	Server     ServerConfig     `json:"server" envPrefix:"SERVER_"`
	Playback   PlaybackConfig   `json:"playback" envPrefix:"PLAYBACK_"`
	Automation AutomationConfig `json:"automation" envPrefix:"AUTOMATION_"`
	Calendar   CalendarConfig   `json:"calendar" envPrefix:"CALENDAR_"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `json:"addr" env:"ADDR"`
}

// PlaybackConfig tunes the playback loop and crash recovery.
type PlaybackConfig struct {
	TickIntervalMs     int `json:"tick_interval_ms" env:"TICK_INTERVAL_MS"`
	RestoreMaxFailures int `json:"restore_max_failures" env:"RESTORE_MAX_FAILURES"`
}

// AutomationConfig configures outgoing automation requests.
type AutomationConfig struct {
	TimeoutMs int          `json:"timeout_ms" env:"TIMEOUT_MS"`
	OAuth2    OAuth2Config `json:"oauth2" envPrefix:"OAUTH2_"`
}

// OAuth2Config enables client-credentials authentication for HTTP outputs
// when TokenURL and ClientID are set.
type OAuth2Config struct {
	TokenURL     string   `json:"token_url" env:"TOKEN_URL"`
	ClientID     string   `json:"client_id" env:"CLIENT_ID"`
	ClientSecret string   `json:"client_secret" env:"CLIENT_SECRET"`
	Scopes       []string `json:"scopes" env:"SCOPES" envSeparator:","`
}

// CalendarConfig holds the Azure AD settings for importing rundown entries
// from a Microsoft 365 calendar.
type CalendarConfig struct {
	// TenantID is "common" for personal and multi-tenant accounts.
	TenantID string `json:"tenant_id" env:"TENANT_ID"`
	// ClientID must be a public client app registration with device code
	// flow enabled.
	ClientID string `json:"client_id" env:"CLIENT_ID"`
}

// Enabled reports whether HTTP outputs should fetch tokens.
func (o OAuth2Config) Enabled() bool {
	return o.TokenURL != "" && o.ClientID != ""
}

const (
	// DefaultAddr is where the HTTP API listens.
	DefaultAddr = "127.0.0.1:4001"
	// DefaultTickIntervalMs is the playback tick cadence.
	DefaultTickIntervalMs = 100
	// DefaultRestoreMaxFailures stops restore writes after this many
	// consecutive failures.
	DefaultRestoreMaxFailures = 5
	// DefaultTimeoutMs bounds one automation output.
	DefaultTimeoutMs = 5000
	// DefaultTenantID works for personal and organisational accounts.
	DefaultTenantID = "common"
	// DefaultClientID is the Microsoft Azure CLI public client, which has
	// device code flow enabled in every tenant.
	DefaultClientID = "04b07795-8542-4c4a-95af-30b2c573d5ab"

	envPrefix = "SHOWRUN_"
)

// defaultConfig returns a Config pre-filled with sensible defaults.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: DefaultAddr},
		Playback: PlaybackConfig{
			TickIntervalMs:     DefaultTickIntervalMs,
			RestoreMaxFailures: DefaultRestoreMaxFailures,
		},
		Automation: AutomationConfig{TimeoutMs: DefaultTimeoutMs},
		Calendar:   CalendarConfig{TenantID: DefaultTenantID, ClientID: DefaultClientID},
	}
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// showrun configuration – ~/.showrun/config.json
//
// All settings are optional; the built-in defaults shown below work out of
// the box. Every value can also be set with a SHOWRUN_* environment
// variable, e.g. SHOWRUN_SERVER_ADDR or SHOWRUN_PLAYBACK_TICK_INTERVAL_MS.
{
  // Directory for project.json, restore.json and showrun.log.
  // Leave empty to keep them next to this file.
  "data_dir": "",

  // IANA timezone the show runs in, e.g. "Europe/Berlin".
  // Leave empty to use the local timezone of this machine.
  "timezone": "",

  // ── HTTP API ──────────────────────────────────────────────────────────────
  "server": {
    // Listen address for showrun serve.
    "addr": "127.0.0.1:4001"
  },

  // ── Playback ──────────────────────────────────────────────────────────────
  "playback": {
    // How often the timer is advanced, in milliseconds.
    "tick_interval_ms": 100,

    // Consecutive restore point write failures before giving up for the session.
    "restore_max_failures": 5
  },

  // ── Automation outputs ────────────────────────────────────────────────────
  "automation": {
    // Timeout for a single OSC or HTTP output, in milliseconds.
    "timeout_ms": 5000,

    // Optional OAuth2 client credentials for HTTP outputs.
    // Leave token_url empty to send requests unauthenticated.
    "oauth2": {
      "token_url": "",
      "client_id": "",
      "client_secret": "",
      "scopes": []
    }
  },

  // ── Calendar import ───────────────────────────────────────────────────────
  "calendar": {
    // Azure AD tenant for showrun rundown import-calendar.
    // "common" works for personal and most work accounts.
    "tenant_id": "common",

    // Public client app registration with device code flow enabled.
    // The default is the Microsoft Azure CLI client.
    "client_id": "04b07795-8542-4c4a-95af-30b2c573d5ab"
  }
}
`

// FilePath returns the path to ~/.showrun/config.json.
func FilePath() (string, error) {
	base, err := storage.BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads ~/.showrun/config.json, creating it with annotated defaults on
// first run.
func Load() (Config, error) {
	path, err := FilePath()
	if err != nil {
		return defaultConfig(), err
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, writing the annotated template if it
// does not exist yet. Environment overrides are applied last.
func LoadFile(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return defaultConfig(), fmt.Errorf("reading config file %s: %w", path, err)
	default:
		cfg = Config{}
		if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
			return defaultConfig(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return defaultConfig(), fmt.Errorf("parse env: %w", err)
	}

	// Fill zero-value fields with built-in defaults so callers always get
	// a usable Config even if the user only partially fills in the file.
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(path)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Playback.TickIntervalMs <= 0 {
		cfg.Playback.TickIntervalMs = DefaultTickIntervalMs
	}
	if cfg.Playback.RestoreMaxFailures <= 0 {
		cfg.Playback.RestoreMaxFailures = DefaultRestoreMaxFailures
	}
	if cfg.Automation.TimeoutMs <= 0 {
		cfg.Automation.TimeoutMs = DefaultTimeoutMs
	}
	if cfg.Calendar.TenantID == "" {
		cfg.Calendar.TenantID = DefaultTenantID
	}
	if cfg.Calendar.ClientID == "" {
		cfg.Calendar.ClientID = DefaultClientID
	}

	if _, err := cfg.Location(); err != nil {
		return defaultConfig(), err
	}
	return cfg, nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// TickInterval is the playback tick cadence.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Playback.TickIntervalMs) * time.Millisecond
}

// AutomationTimeout bounds one automation output.
func (c Config) AutomationTimeout() time.Duration {
	return time.Duration(c.Automation.TimeoutMs) * time.Millisecond
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
