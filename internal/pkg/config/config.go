package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Source    SourceConfig    `mapstructure:"source"`
	Proximity ProximityConfig `mapstructure:"proximity"`
	Map       MapConfig       `mapstructure:"map"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	Enabled   bool   `mapstructure:"enabled"`
	SearchTTL int    `mapstructure:"search_ttl"` // seconds
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// SourceConfig selects and configures the parking data source.
type SourceConfig struct {
	Kind     string `mapstructure:"kind"` // mosapi, postgres or memory
	BaseURL  string `mapstructure:"base_url"`
	Timeout  int    `mapstructure:"timeout"` // seconds
	SeedFile string `mapstructure:"seed_file"`
}

// ProximityConfig bounds the map click search.
type ProximityConfig struct {
	RadiusMeters uint32 `mapstructure:"radius_meters"`
	Limit        uint32 `mapstructure:"limit"`
}

// MapConfig is the initial state of the server-side map surface.
type MapConfig struct {
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLng float64 `mapstructure:"center_lng"`
	Zoom      float64 `mapstructure:"zoom"`
	MaxZoom   float64 `mapstructure:"max_zoom"`
	Width     float64 `mapstructure:"width"`
	Height    float64 `mapstructure:"height"`
}

type TemporalConfig struct {
	HostPort        string `mapstructure:"host_port"`
	Namespace       string `mapstructure:"namespace"`
	TaskQueue       string `mapstructure:"task_queue"`
	RefreshInterval int    `mapstructure:"refresh_interval"` // minutes
}

// RealtimeConfig drives the availability poller.
type RealtimeConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // seconds
}

var validSourceKinds = map[string]bool{"mosapi": true, "postgres": true, "memory": true}

// Load reads configuration from .env, config file and environment variables.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "parkfinder")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "parkfinder")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("valkey.search_ttl", 120)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("source.kind", "mosapi")
	v.SetDefault("source.base_url", "http://localhost:3847")
	v.SetDefault("source.timeout", 10)
	v.SetDefault("proximity.radius_meters", 200)
	v.SetDefault("proximity.limit", 5)
	v.SetDefault("map.center_lat", 55.751244)
	v.SetDefault("map.center_lng", 37.618423)
	v.SetDefault("map.zoom", 12)
	v.SetDefault("map.max_zoom", 16)
	v.SetDefault("map.width", 1024)
	v.SetDefault("map.height", 768)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "parkfinder-refresh")
	v.SetDefault("temporal.refresh_interval", 15)
	v.SetDefault("realtime.poll_interval", 60)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PARKFINDER_SOURCE_BASE_URL → source.base_url
	v.SetEnvPrefix("PARKFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}

	if !validSourceKinds[c.Source.Kind] {
		errs = append(errs, fmt.Sprintf("source.kind must be mosapi, postgres or memory, got %q", c.Source.Kind))
	}
	switch c.Source.Kind {
	case "mosapi":
		if c.Source.BaseURL == "" {
			errs = append(errs, "source.base_url is required for the mosapi source")
		}
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.Source.Timeout <= 0 {
		errs = append(errs, "source.timeout must be positive")
	}

	if c.Proximity.RadiusMeters == 0 {
		errs = append(errs, "proximity.radius_meters must be positive")
	}
	if c.Proximity.Limit == 0 {
		errs = append(errs, "proximity.limit must be positive")
	}
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		errs = append(errs, "map.width and map.height must be positive")
	}
	if c.Map.MaxZoom <= 0 {
		errs = append(errs, "map.max_zoom must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
