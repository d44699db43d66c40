package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Queue     QueueConfig     `toml:"queue"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Player    PlayerConfig    `toml:"player"`
	Announcer AnnouncerConfig `toml:"announcer"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Database  DatabaseConfig  `toml:"database"`
	Events    EventsConfig    `toml:"events"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
}

// QueueConfig contains the initial voting thresholds. They can be changed at runtime through [Settings].
type QueueConfig struct {
	LikeThreshold    int  `toml:"like_threshold"`
	DislikeThreshold int  `toml:"dislike_threshold"`
	SayNames         bool `toml:"say_names"`
	PageSize         int  `toml:"page_size"`
}

// SchedulerConfig contains rotation loop timing.
type SchedulerConfig struct {
	TickInterval Duration `toml:"tick_interval"`
	SettleDelay  Duration `toml:"settle_delay"`
	EndPosition  float64  `toml:"end_position"`
}

// ResolverConfig contains download settings.
type ResolverConfig struct {
	DownloadDir       string  `toml:"download_dir"`
	AttemptsPerSecond float64 `toml:"attempts_per_second"`
	Burst             int     `toml:"burst"`
}

// PlayerConfig selects and configures the playback device.
type PlayerConfig struct {
	Backend        string   `toml:"backend"` // "mpv" or "simulated"
	SocketPath     string   `toml:"socket_path"`
	StartInstance  bool     `toml:"start_instance"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	InitialVolume  int      `toml:"initial_volume"`
	SimulatedTrack Duration `toml:"simulated_track"`
}

// AnnouncerConfig configures the speech command used to announce tracks.
type AnnouncerConfig struct {
	Command    string   `toml:"command"`
	Args       []string `toml:"args"`
	DuckFactor float64  `toml:"duck_factor"`
}

// CatalogConfig contains the metadata provider endpoint and optional client credentials.
type CatalogConfig struct {
	BaseURL           string  `toml:"base_url"`
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	TokenURL          string  `toml:"token_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DatabaseConfig contains snapshot store connection settings.
//
// A postgres:// URL selects the PostgreSQL store; otherwise SQLite at Path is used.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	URL          string `toml:"url"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// EventsConfig contains the optional Redis publisher settings.
type EventsConfig struct {
	RedisURL string `toml:"redis_url"`
	Channel  string `toml:"channel"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"` // AllowedOrigins restricts the event stream; empty allows any
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Address returns the host:port the HTTP server listens on.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Duration is a [time.Duration] decoded from TOML strings such as "1s" or "1500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the defaults from the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
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
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if _, err := NewSettings(c.Queue, c.Announcer.DuckFactor); err != nil {
		return err
	}
	if c.Scheduler.TickInterval.Duration <= 0 {
		return fmt.Errorf("%w: scheduler.tick_interval must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.EndPosition <= 0 || c.Scheduler.EndPosition > 1 {
		return fmt.Errorf("%w: scheduler.end_position must be in (0, 1]", ErrInvalidConfig)
	}
	switch c.Player.Backend {
	case "mpv", "simulated":
	default:
		return fmt.Errorf("%w: player.backend %q", ErrInvalidConfig, c.Player.Backend)
	}
	return nil
}
