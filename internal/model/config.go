package model

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FirebaseConfig holds the hosted backend connection settings.
type FirebaseConfig struct {
	// ProjectID is the Firebase/GCP project hosting the document store.
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`

	// CredentialsFile is a service account or user credential JSON file.
	// Empty means application default credentials.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

// CollectionsConfig names the remote collections.
type CollectionsConfig struct {
	Messages   string `mapstructure:"messages" yaml:"messages"`
	ReadStatus string `mapstructure:"read_status" yaml:"read_status"`
	Users      string `mapstructure:"users" yaml:"users"`
	RaceStatus string `mapstructure:"race_status" yaml:"race_status"`
}

// SyncConfig tunes the connectivity monitor and offline queue.
type SyncConfig struct {
	// ConnectivityRetrySec is the probe interval while disconnected.
	ConnectivityRetrySec int `mapstructure:"connectivity_retry_sec" yaml:"connectivity_retry_sec"`

	// ProbeMinIntervalMs throttles probes triggered by online/offline hints.
	ProbeMinIntervalMs int `mapstructure:"probe_min_interval_ms" yaml:"probe_min_interval_ms"`

	// MaxAttempts is how many times a queued operation is replayed before
	// it is moved to the failed list.
	MaxAttempts int `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// AlertsConfig tunes new-message detection.
type AlertsConfig struct {
	// GraceWindowSec re-admits recently created messages for alerting
	// after a reload.
	GraceWindowSec int `mapstructure:"grace_window_sec" yaml:"grace_window_sec"`

	// SeenPersistRate is the probability (0..1) that a delivery persists
	// the seen-id set.
	SeenPersistRate float64 `mapstructure:"seen_persist_rate" yaml:"seen_persist_rate"`

	// SeenCap bounds the persisted seen-id set.
	SeenCap int `mapstructure:"seen_cap" yaml:"seen_cap"`
}

// SoundConfig selects the playback backend.
type SoundConfig struct {
	// PlayerCommand is an external audio player (e.g. "paplay"). Empty
	// uses the terminal bell.
	PlayerCommand string `mapstructure:"player_command" yaml:"player_command"`

	// PlayerArgs may contain {file} and {volume} placeholders.
	PlayerArgs []string `mapstructure:"player_args" yaml:"player_args"`

	// Files maps a priority to a sound file.
	Files map[string]string `mapstructure:"files" yaml:"files"`

	// RequireInteraction holds playback until the first key press.
	RequireInteraction bool `mapstructure:"require_interaction" yaml:"require_interaction"`

	// DeviceMuteOverride lists priorities that still play when the device
	// looks muted.
	DeviceMuteOverride []string `mapstructure:"device_mute_override" yaml:"device_mute_override"`
}

// DiagConfig controls the optional metrics/health listener.
type DiagConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Firebase       FirebaseConfig    `mapstructure:"firebase" yaml:"firebase"`
	Collections    CollectionsConfig `mapstructure:"collections" yaml:"collections"`
	EventEditionID string            `mapstructure:"event_edition_id" yaml:"event_edition_id"`
	CachePath      string            `mapstructure:"cache_path" yaml:"cache_path"`
	LogPath        string            `mapstructure:"log_path" yaml:"log_path"`
	Demo           bool              `mapstructure:"demo" yaml:"demo"`
	Sync           SyncConfig        `mapstructure:"sync" yaml:"sync"`
	Alerts         AlertsConfig      `mapstructure:"alerts" yaml:"alerts"`
	Sound          SoundConfig       `mapstructure:"sound" yaml:"sound"`
	Diag           DiagConfig        `mapstructure:"diag" yaml:"diag"`
}

// ConnectivityRetry returns the disconnected probe interval.
func (c *AppConfig) ConnectivityRetry() time.Duration {
	return time.Duration(c.Sync.ConnectivityRetrySec) * time.Second
}

// ProbeMinInterval returns the hint probe throttle.
func (c *AppConfig) ProbeMinInterval() time.Duration {
	return time.Duration(c.Sync.ProbeMinIntervalMs) * time.Millisecond
}

// GraceWindow returns the re-alert grace window.
func (c *AppConfig) GraceWindow() time.Duration {
	return time.Duration(c.Alerts.GraceWindowSec) * time.Second
}

// configDir returns ~/.config/runalert, or the working directory if the
// home directory cannot be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "runalert")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/runalert/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Collections: CollectionsConfig{
			Messages:   "ra_messages",
			ReadStatus: "ra_userMessageStatus",
			Users:      "users",
			RaceStatus: "ra_raceStatus",
		},
		EventEditionID: "mmc-2025",
		CachePath:      filepath.Join(configDir(), "cache.db"),
		LogPath:        filepath.Join(configDir(), "runalert.log"),
		Sync: SyncConfig{
			ConnectivityRetrySec: 180,
			ProbeMinIntervalMs:   2000,
			MaxAttempts:          10,
		},
		Alerts: AlertsConfig{
			GraceWindowSec:  120,
			SeenPersistRate: 0.5,
			SeenCap:         1000,
		},
		Sound: SoundConfig{
			Files: map[string]string{
				"info":         "sounds/notification-info.ogg",
				"normal":       "sounds/notification-info.ogg",
				"warning":      "sounds/notification-warning.wav",
				"critical":     "sounds/notification-critical.ogg",
				"announcement": "sounds/notification-announcement.wav",
			},
			PlayerArgs:         []string{"{file}"},
			RequireInteraction: true,
			DeviceMuteOverride: []string{"critical"},
		},
	}
}

// newViper builds a viper instance with defaults and RUNALERT_* env
// overrides applied.
func newViper(path string) *viper.Viper {
	d := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("runalert")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("firebase.project_id", "")
	v.SetDefault("firebase.credentials_file", "")
	v.SetDefault("collections.messages", d.Collections.Messages)
	v.SetDefault("collections.read_status", d.Collections.ReadStatus)
	v.SetDefault("collections.users", d.Collections.Users)
	v.SetDefault("collections.race_status", d.Collections.RaceStatus)
	v.SetDefault("event_edition_id", d.EventEditionID)
	v.SetDefault("cache_path", d.CachePath)
	v.SetDefault("log_path", d.LogPath)
	v.SetDefault("demo", false)
	v.SetDefault("sync.connectivity_retry_sec", d.Sync.ConnectivityRetrySec)
	v.SetDefault("sync.probe_min_interval_ms", d.Sync.ProbeMinIntervalMs)
	v.SetDefault("sync.max_attempts", d.Sync.MaxAttempts)
	v.SetDefault("alerts.grace_window_sec", d.Alerts.GraceWindowSec)
	v.SetDefault("alerts.seen_persist_rate", d.Alerts.SeenPersistRate)
	v.SetDefault("alerts.seen_cap", d.Alerts.SeenCap)
	v.SetDefault("sound.player_command", "")
	v.SetDefault("sound.player_args", d.Sound.PlayerArgs)
	v.SetDefault("sound.files", d.Sound.Files)
	v.SetDefault("sound.require_interaction", d.Sound.RequireInteraction)
	v.SetDefault("sound.device_mute_override", d.Sound.DeviceMuteOverride)
	v.SetDefault("diag.listen_addr", "")

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first so RUNALERT_*
// variables can override file values. If the config file does not exist,
// defaults (plus environment overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("ignoring unreadable .env: %v", err)
	}

	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if _, ok := err.(*os.PathError); !ok && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps values that would break the runtime.
func (c *AppConfig) normalize() {
	d := DefaultAppConfig()
	if c.Sync.ConnectivityRetrySec <= 0 {
		c.Sync.ConnectivityRetrySec = d.Sync.ConnectivityRetrySec
	}
	if c.Sync.ProbeMinIntervalMs < 0 {
		c.Sync.ProbeMinIntervalMs = 0
	}
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = d.Sync.MaxAttempts
	}
	if c.Alerts.GraceWindowSec < 0 {
		c.Alerts.GraceWindowSec = 0
	}
	if c.Alerts.SeenPersistRate < 0 || c.Alerts.SeenPersistRate > 1 {
		c.Alerts.SeenPersistRate = d.Alerts.SeenPersistRate
	}
	if c.Alerts.SeenCap <= 0 {
		c.Alerts.SeenCap = d.Alerts.SeenCap
	}
	if c.Firebase.ProjectID == "" && c.Firebase.CredentialsFile == "" {
		// Nothing to connect to; fall back to the bundled demo feed.
		c.Demo = true
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("firebase", cfg.Firebase)
	v.Set("collections", cfg.Collections)
	v.Set("event_edition_id", cfg.EventEditionID)
	v.Set("cache_path", cfg.CachePath)
	v.Set("log_path", cfg.LogPath)
	v.Set("demo", cfg.Demo)
	v.Set("sync", cfg.Sync)
	v.Set("alerts", cfg.Alerts)
	v.Set("sound", cfg.Sound)
	v.Set("diag", cfg.Diag)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
