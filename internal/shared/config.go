package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
	Logging     LoggingConfig     `toml:"logging"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
	Apple   AppleConfig   `toml:"apple"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// YouTubeConfig contains Google OAuth client credentials for the YouTube Data API.
type YouTubeConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// AppleConfig contains Apple Music API credentials.
type AppleConfig struct {
	DeveloperToken string `toml:"developer_token"`
	Storefront     string `toml:"storefront"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for [net/http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL returns the externally reachable URL of the HTTP server.
func (s ServerConfig) BaseURL() string {
	return "http://" + s.Addr()
}

// SyncConfig controls the polling scheduler and connector transport.
type SyncConfig struct {
	PollIntervalSeconds   int     `toml:"poll_interval_seconds"`
	MaxParallelTargets    int     `toml:"max_parallel_targets"`
	RetryFailedTargets    bool    `toml:"retry_failed_targets"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	RequestsPerSecond     float64 `toml:"requests_per_second"`
}

// PollInterval returns the sweep interval, never less than one second.
func (s SyncConfig) PollInterval() time.Duration {
	if s.PollIntervalSeconds <= 0 {
		return time.Second
	}
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-request connector timeout, defaulting to 30 seconds.
func (s SyncConfig) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Missing fields keep the embedded defaults and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv()
	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		config := DefaultConfig()
		config.ApplyEnv()
		return config, nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnv overrides configuration values from the environment.
//
// Recognised variables: PLAYLIST_SYNC_HOST, PLAYLIST_SYNC_PORT, PLAYLIST_SYNC_POLL_INTERVAL,
// PLAYLIST_SYNC_DB, SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET, SPOTIFY_REDIRECT_URI,
// YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, APPLE_DEVELOPER_TOKEN.
func (c *Config) ApplyEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString(&c.Server.Host, "PLAYLIST_SYNC_HOST")
	setInt(&c.Server.Port, "PLAYLIST_SYNC_PORT")
	setInt(&c.Sync.PollIntervalSeconds, "PLAYLIST_SYNC_POLL_INTERVAL")
	setString(&c.Database.Path, "PLAYLIST_SYNC_DB")
	setString(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	setString(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	setString(&c.Credentials.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	setString(&c.Credentials.YouTube.ClientID, "YOUTUBE_CLIENT_ID")
	setString(&c.Credentials.YouTube.ClientSecret, "YOUTUBE_CLIENT_SECRET")
	setString(&c.Credentials.Apple.DeveloperToken, "APPLE_DEVELOPER_TOKEN")
}

// Validate checks values the engine cannot run without.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Sync.PollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: sync.poll_interval_seconds must be positive", ErrInvalidConfig)
	}
	if c.Sync.MaxParallelTargets < 0 {
		return fmt.Errorf("%w: sync.max_parallel_targets must not be negative", ErrInvalidConfig)
	}
	return nil
}
