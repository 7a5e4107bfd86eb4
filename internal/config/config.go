// Package config provides configuration management using Viper.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Run     RunConfig     `mapstructure:"run"`
	Vector  VectorConfig  `mapstructure:"vector"`
	Raster  RasterConfig  `mapstructure:"raster"`
	Storage StorageConfig `mapstructure:"storage"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RunConfig holds worker pool and batching configuration shared by both
// commands.
type RunConfig struct {
	BatchSize   int `mapstructure:"batch_size"`
	ThreadCount int `mapstructure:"thread_count"`
	Prefetch    int `mapstructure:"prefetch"`
}

// VectorConfig holds region input configuration.
type VectorConfig struct {
	IDField  string `mapstructure:"id_field"`
	Layer    string `mapstructure:"layer"`
	GridProj string `mapstructure:"grid_proj"`
}

// RasterConfig holds raster input configuration.
type RasterConfig struct {
	Variable  string  `mapstructure:"variable"`
	XVar      string  `mapstructure:"x_var"`
	YVar      string  `mapstructure:"y_var"`
	LonOffset float64 `mapstructure:"lon_offset"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	CacheDir  string      `mapstructure:"cache_dir"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Manifest string        `mapstructure:"manifest"` // default: manifest.txt
	Timeout  time.Duration `mapstructure:"timeout"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
}

// OutputConfig holds result output configuration.
type OutputConfig struct {
	Path        string `mapstructure:"path"` // empty or "-" writes to stdout
	SummaryFile string `mapstructure:"summary_file"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Run defaults
	viper.SetDefault("run.batch_size", 16)
	viper.SetDefault("run.thread_count", runtime.NumCPU())
	viper.SetDefault("run.prefetch", 2)

	// Vector defaults
	viper.SetDefault("vector.id_field", "id")

	// Raster defaults
	viper.SetDefault("raster.x_var", "lon")
	viper.SetDefault("raster.y_var", "lat")
	viper.SetDefault("raster.lon_offset", 0.0)

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./data")
	viper.SetDefault("storage.cache_dir", "./.cache")
	viper.SetDefault("storage.http.manifest", "manifest.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	// Output defaults
	viper.SetDefault("output.path", "-")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.address", "127.0.0.1:9090")
	viper.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("TESSERA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/tessera")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Run.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.Run.BatchSize)
	}
	if c.Run.ThreadCount < 1 {
		return fmt.Errorf("thread count must be positive, got %d", c.Run.ThreadCount)
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("local storage path is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("S3 region is required")
		}
	case "azure":
		if c.Storage.Azure.Container == "" {
			return fmt.Errorf("azure container is required")
		}
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.ConnectionString == "" {
			return fmt.Errorf("azure account name or connection string is required")
		}
	case "http":
		if c.Storage.HTTP.BaseURL == "" {
			return fmt.Errorf("HTTP base URL is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown logging format: %s", c.Logging.Format)
	}

	return nil
}
