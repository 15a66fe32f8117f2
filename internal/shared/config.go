package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is the prefix of environment variables that override the TOML configuration.
const EnvPrefix = "multify"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Queue       QueueConfig       `toml:"queue"`
	Tokens      TokensConfig      `toml:"tokens"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
}

// Map returns the credentials in the form expected by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"scopes":        strings.Join(s.Scopes, " "),
	}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// QueueConfig contains queue ranking settings.
type QueueConfig struct {
	Score          string `toml:"score"`
	RecountWorkers int    `toml:"recount_workers"`
}

// TokensConfig contains settings of the client-side token store.
type TokensConfig struct {
	StoragePath        string `toml:"storage_path"`
	RefreshLeadSeconds int    `toml:"refresh_lead_seconds"`
}

// RefreshLead returns how long before expiry the access token is refreshed.
func (t TokensConfig) RefreshLead() time.Duration {
	return time.Duration(t.RefreshLeadSeconds) * time.Second
}

// ResolvedStoragePath expands a leading ~ to the user's home directory.
func (t TokensConfig) ResolvedStoragePath() (string, error) {
	if !strings.HasPrefix(t.StoragePath, "~") {
		return t.StoragePath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(t.StoragePath, "~")), nil
}

// envOverrides holds settings read from MULTIFY_* environment variables.
type envOverrides struct {
	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET"`
	SpotifyRedirectURI  string `envconfig:"SPOTIFY_REDIRECT_URI"`
	DatabasePath        string `envconfig:"DATABASE_PATH"`
	Port                int    `envconfig:"PORT"`
	Score               string `envconfig:"QUEUE_SCORE"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
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

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes the configuration to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadDotEnv loads variables from the given .env files into the process environment.
//
// Missing files are ignored; existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overlays MULTIFY_* environment variables onto the configuration.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if env.SpotifyClientID != "" {
		c.Credentials.Spotify.ClientID = env.SpotifyClientID
	}
	if env.SpotifyClientSecret != "" {
		c.Credentials.Spotify.ClientSecret = env.SpotifyClientSecret
	}
	if env.SpotifyRedirectURI != "" {
		c.Credentials.Spotify.RedirectURI = env.SpotifyRedirectURI
	}
	if env.DatabasePath != "" {
		c.Database.Path = env.DatabasePath
	}
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.Score != "" {
		c.Queue.Score = env.Score
	}

	return nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Queue.Score {
	case "magnitude", "net":
	default:
		return fmt.Errorf("%w: queue.score must be \"magnitude\" or \"net\", got %q", ErrInvalidConfig, c.Queue.Score)
	}

	if c.Tokens.RefreshLeadSeconds < 0 {
		return fmt.Errorf("%w: tokens.refresh_lead_seconds must not be negative", ErrInvalidConfig)
	}

	return nil
}
