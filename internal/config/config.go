package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "15m" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LocationConfig identifies the forecast point.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"`
}

// ThresholdsConfig tunes the statistical classification rules.
type ThresholdsConfig struct {
	PrecipitationMinMM float64 `yaml:"precipitation_min_mm"`
	MinSample          int     `yaml:"min_sample"`
	CalmWindMaxKMH     float64 `yaml:"calm_wind_max_kmh"`
}

// APIConfig points at the upstream forecast provider.
type APIConfig struct {
	BaseURL     string   `yaml:"base_url"`
	MetadataURL string   `yaml:"metadata_url"`
	Timeout     Duration `yaml:"timeout"`
}

// DatabaseConfig configures the SQLite run archive.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// ExportConfig configures CSV output.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// KafkaConfig configures the optional downstream publisher.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds all service settings, populated from a YAML file with
// environment variable overrides.
type Config struct {
	Location   LocationConfig   `yaml:"location"`
	Models     []string         `yaml:"models"`
	Variables  []string         `yaml:"variables"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Export     ExportConfig     `yaml:"export"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Log        LogConfig        `yaml:"log"`

	PollInterval    Duration `yaml:"poll_interval"`
	HTTPAddr        string   `yaml:"http_addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DefaultVariables is the hourly variable set requested from the provider
// when the config file does not name its own.
var DefaultVariables = []string{
	"temperature_2m",
	"dew_point_2m",
	"pressure_msl",
	"temperature_850hPa",
	"cape",
	"precipitation",
	"cloud_cover",
	"wind_speed_10m",
	"wind_direction_10m",
	"wind_gusts_10m",
	"weather_code",
}

// DefaultModels is the ensemble model set used when the config file does
// not name its own.
var DefaultModels = []string{"icon_seamless", "gfs_seamless"}

func defaults() Config {
	return Config{
		Location: LocationConfig{Timezone: "UTC"},
		Thresholds: ThresholdsConfig{
			PrecipitationMinMM: 0.1,
			MinSample:          1,
			CalmWindMaxKMH:     0.5,
		},
		API: APIConfig{
			BaseURL:     "https://ensemble-api.open-meteo.com/v1/ensemble",
			MetadataURL: "https://api.open-meteo.com/data/%s/static/meta.json",
			Timeout:     Duration(30 * time.Second),
		},
		Database: DatabaseConfig{
			Path:          "forecasts.db",
			RetentionDays: 30,
		},
		Export: ExportConfig{OutputDir: "output"},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "consolidated-forecasts",
		},
		Log:             LogConfig{Level: "info", Format: "json"},
		PollInterval:    Duration(15 * time.Minute),
		HTTPAddr:        ":8080",
		ShutdownTimeout: Duration(10 * time.Second),
	}
}

// Load reads the YAML config at path, applies defaults for unset fields,
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if len(cfg.Models) == 0 {
		cfg.Models = append([]string(nil), DefaultModels...)
	}
	if len(cfg.Variables) == 0 {
		cfg.Variables = append([]string(nil), DefaultVariables...)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitBrokers(v)
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

func splitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func (c *Config) validate() error {
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("location.latitude %v out of range [-90, 90]", c.Location.Latitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("location.longitude %v out of range [-180, 180]", c.Location.Longitude)
	}
	if _, err := time.LoadLocation(c.Location.Timezone); err != nil {
		return fmt.Errorf("location.timezone: %w", err)
	}
	if len(c.Models) == 0 {
		return errors.New("at least one model is required")
	}
	if c.Thresholds.PrecipitationMinMM < 0 {
		return errors.New("thresholds.precipitation_min_mm must not be negative")
	}
	if c.Thresholds.MinSample < 1 {
		return errors.New("thresholds.min_sample must be at least 1")
	}
	if c.PollInterval.Std() <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.ShutdownTimeout.Std() <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.MetadataURL == "" {
		return errors.New("api.metadata_url is required")
	}
	if c.Export.OutputDir == "" {
		return errors.New("export.output_dir is required")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.enabled is true but kafka.brokers is empty")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.enabled is true but kafka.topic is empty")
		}
	}
	return nil
}

// TimeLocation resolves the configured timezone. Validation guarantees it loads.
func (c *Config) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(c.Location.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
