// Package config loads layered configuration: defaults, an optional
// config.yaml and AIRMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AIRMAP_CACHE_TTL.
const EnvPrefix = "AIRMAP"

// Config holds all application configuration.
type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sampler   SamplerConfig   `mapstructure:"sampler"`
	Nearby    NearbyConfig    `mapstructure:"nearby"`
	Session   SessionConfig   `mapstructure:"session"`
	Gazetteer GazetteerConfig `mapstructure:"gazetteer"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RequireTLS      bool          `mapstructure:"require_tls"`
}

// ProviderConfig configures the OpenWeatherMap client and its resilience.
type ProviderConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	OpenTimeout  time.Duration `mapstructure:"open_timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
}

type GeocoderConfig struct {
	GoogleAPIKey string  `mapstructure:"google_api_key"`
	RadiusMeters float64 `mapstructure:"radius_meters"`
}

type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries"`
	EvictionBatch int           `mapstructure:"eviction_batch"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type SamplerConfig struct {
	MinPoints       int `mapstructure:"min_points"`
	MaxPoints       int `mapstructure:"max_points"`
	AttemptsPerCell int `mapstructure:"attempts_per_cell"`
}

type NearbyConfig struct {
	CardinalOffset          float64 `mapstructure:"cardinal_offset"`
	DiagonalOffset          float64 `mapstructure:"diagonal_offset"`
	HighPopulationThreshold int     `mapstructure:"high_population_threshold"`
	HighPopulationScale     float64 `mapstructure:"high_population_scale"`
	FetchConcurrency        int     `mapstructure:"fetch_concurrency"`
}

type SessionConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	IdleTTL  time.Duration `mapstructure:"idle_ttl"`
}

// GazetteerConfig selects where city records come from: "embedded" or
// "postgres".
type GazetteerConfig struct {
	Source string `mapstructure:"source"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ValkeyConfig enables the shared reading store when Addr is set.
type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type WorkerConfig struct {
	Schedule       string        `mapstructure:"schedule"`
	Concurrency    int           `mapstructure:"concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ProjectID      string        `mapstructure:"project_id"`
	SubscriptionID string        `mapstructure:"subscription_id"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from defaults, an optional config file and the
// environment. configFile may be empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// AIRMAP_CACHE_TTL → cache.ttl
	v.SetEnvPrefix(EnvPrefix)
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.require_tls", false)

	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://api.openweathermap.org")
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("provider.max_retries", 2)
	v.SetDefault("provider.open_timeout", 30*time.Second)
	v.SetDefault("provider.failure_ratio", 0.5)

	v.SetDefault("geocoder.google_api_key", "")
	v.SetDefault("geocoder.radius_meters", 30000.0)

	v.SetDefault("cache.ttl", 30*time.Minute)
	v.SetDefault("cache.max_entries", 100)
	v.SetDefault("cache.eviction_batch", 20)
	v.SetDefault("cache.purge_interval", 5*time.Minute)

	v.SetDefault("sampler.min_points", 10)
	v.SetDefault("sampler.max_points", 15)
	v.SetDefault("sampler.attempts_per_cell", 8)

	v.SetDefault("nearby.cardinal_offset", 0.025)
	v.SetDefault("nearby.diagonal_offset", 0.02)
	v.SetDefault("nearby.high_population_threshold", 1_000_000)
	v.SetDefault("nearby.high_population_scale", 2.0)
	v.SetDefault("nearby.fetch_concurrency", 8)

	v.SetDefault("session.debounce", 500*time.Millisecond)
	v.SetDefault("session.idle_ttl", 30*time.Minute)

	v.SetDefault("gazetteer.source", "embedded")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "airmap")
	v.SetDefault("database.password", "localdev")
	v.SetDefault("database.name", "airmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("valkey.addr", "")

	v.SetDefault("worker.schedule", "*/20 * * * *")
	v.SetDefault("worker.concurrency", 3)
	v.SetDefault("worker.timeout", 30*time.Second)
	v.SetDefault("worker.project_id", "")
	v.SetDefault("worker.subscription_id", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate checks that configuration values are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server timeouts must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must not be negative")
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, "provider.timeout must be positive")
	}
	if c.Provider.FailureRatio <= 0 || c.Provider.FailureRatio > 1 {
		errs = append(errs, fmt.Sprintf("provider.failure_ratio must be in (0,1], got %v", c.Provider.FailureRatio))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, "cache.max_entries must be positive")
	}
	if c.Cache.EvictionBatch <= 0 || c.Cache.EvictionBatch >= c.Cache.MaxEntries {
		errs = append(errs, "cache.eviction_batch must be positive and below cache.max_entries")
	}
	if c.Sampler.MinPoints <= 0 || c.Sampler.MaxPoints < c.Sampler.MinPoints {
		errs = append(errs, fmt.Sprintf("sampler range [%d,%d] is invalid", c.Sampler.MinPoints, c.Sampler.MaxPoints))
	}
	if c.Sampler.AttemptsPerCell <= 0 {
		errs = append(errs, "sampler.attempts_per_cell must be positive")
	}
	if c.Nearby.CardinalOffset <= 0 || c.Nearby.DiagonalOffset <= 0 {
		errs = append(errs, "nearby offsets must be positive")
	}
	if c.Nearby.HighPopulationScale < 1 {
		errs = append(errs, "nearby.high_population_scale must be at least 1")
	}
	if c.Nearby.FetchConcurrency <= 0 {
		errs = append(errs, "nearby.fetch_concurrency must be positive")
	}
	if c.Session.Debounce <= 0 || c.Session.IdleTTL <= 0 {
		errs = append(errs, "session durations must be positive")
	}
	switch c.Gazetteer.Source {
	case "embedded":
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, "database.host and database.name are required for the postgres gazetteer")
		}
	default:
		errs = append(errs, fmt.Sprintf("gazetteer.source must be embedded or postgres, got %q", c.Gazetteer.Source))
	}
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, "worker.concurrency must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, "telemetry.sample_ratio must be in [0,1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
