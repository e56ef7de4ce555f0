package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// IngestConfig holds ingestion pipeline configuration
type IngestConfig struct {
	Mode           string        `mapstructure:"mode"` // "live" or "fixture"
	FixturesDir    string        `mapstructure:"fixtures_dir"`
	ArchiveDir     string        `mapstructure:"archive_dir"`
	Parallelism    int           `mapstructure:"parallelism"`
	StaleRunMaxAge time.Duration `mapstructure:"stale_run_max_age"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	EnsureSchema   bool          `mapstructure:"ensure_schema"`
}

// TelemetryConfig holds tracing configuration
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

var globalConfig *Config

// Load reads configuration in increasing precedence: defaults, an optional
// yaml file, an optional .env file, then process environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := loadDotEnv(".env", "config/.env"); err != nil {
		log.Warn().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix("INGEST_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No yaml file is fine, defaults and env vars carry it.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// loadDotEnv applies KEY=VALUE pairs from the first .env file that exists.
// A missing file is not an error; a found file that fails to read is.
func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			continue
		}
		err = applyEnvFile(file)
		file.Close()
		return err
	}
	return nil
}

// applyEnvFile parses dotenv lines and exports each pair. Variables already
// present in the environment win over file values.
func applyEnvFile(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"'`))
	}
	return scanner.Err()
}

// bindEnvVars binds the unprefixed environment variables deploys actually set
func bindEnvVars(v *viper.Viper) {
	// Database
	v.BindEnv("database.url", "DATABASE_URL")

	// Server
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")

	// Logging
	v.BindEnv("logging.level", "LOG_LEVEL")

	// Ingestion
	v.BindEnv("ingest.mode", "INGEST_MODE")
	v.BindEnv("ingest.fixtures_dir", "FIXTURES_DIR")

	// Telemetry
	v.BindEnv("telemetry.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", 1*time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	// Ingestion defaults
	v.SetDefault("ingest.mode", "live")
	v.SetDefault("ingest.fixtures_dir", "./fixtures")
	v.SetDefault("ingest.archive_dir", "")
	v.SetDefault("ingest.parallelism", 3)
	v.SetDefault("ingest.stale_run_max_age", 2*time.Hour)
	v.SetDefault("ingest.sweep_interval", 5*time.Minute)
	v.SetDefault("ingest.ensure_schema", true)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "ingest-service")
	v.SetDefault("telemetry.otlp_endpoint", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if cfg := Get(); cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}
