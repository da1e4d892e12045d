package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/QuantaDist/internal/log"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// QUANTADIST_BATCH_SIZE or QUANTADIST_LOG_LEVEL.
const EnvPrefix = "QUANTADIST"

// Shuffle compression codecs understood by the local fetcher.
const (
	CompressionNone = "none"
	CompressionLZ4  = "lz4"
	CompressionZstd = "zstd"
)

// ExecutorConfig holds the execution tuning decided locally by an executor.
// None of these values are taken from plans received over the wire.
type ExecutorConfig struct {
	// Rows per batch produced by file scans
	BatchSize int `json:"batch_size" mapstructure:"batch_size"`

	// Maximum number of Parquet files read concurrently
	ParquetMaxConcurrency int `json:"parquet_max_concurrency" mapstructure:"parquet_max_concurrency"`

	// Number of sort partitions; only 1 is implemented
	SortConcurrency int `json:"sort_concurrency" mapstructure:"sort_concurrency"`

	// Output partitions executed concurrently by executor.Collect
	CollectConcurrency int `json:"collect_concurrency" mapstructure:"collect_concurrency"`

	// Root directory holding shuffle partition files
	WorkDir string `json:"work_dir" mapstructure:"work_dir"`

	// Codec of shuffle partition files: none, lz4 or zstd
	ShuffleCompression string `json:"shuffle_compression" mapstructure:"shuffle_compression"`

	Log log.Config `json:"log" mapstructure:"log"`
}

// DefaultExecutorConfig returns the executor defaults.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		BatchSize:             32768,
		ParquetMaxConcurrency: 8,
		SortConcurrency:       1,
		CollectConcurrency:    runtime.GOMAXPROCS(0),
		WorkDir:               "./work",
		ShuffleCompression:    CompressionLZ4,
		Log:                   log.DefaultConfig(),
	}
}

// Load reads configuration from path (JSON, TOML or YAML, chosen by
// extension) layered over the defaults, then applies QUANTADIST_* environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*ExecutorConfig, error) {
	return LoadWithFlags(path, nil)
}

// RegisterFlags adds command line overrides for the most tuned settings.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("batch-size", 0, "Rows per batch produced by file scans")
	fs.String("work-dir", "", "Directory holding shuffle partition files")
	fs.String("shuffle-compression", "", "Shuffle file codec: none, lz4 or zstd")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
}

// LoadWithFlags is Load with flags registered by RegisterFlags taking
// precedence over the file and environment when they were set.
func LoadWithFlags(path string, fs *pflag.FlagSet) (*ExecutorConfig, error) {
	v := newViper()
	if fs != nil {
		for key, name := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &ExecutorConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var flagKeys = map[string]string{
	"batch_size":          "batch-size",
	"work_dir":            "work-dir",
	"shuffle_compression": "shuffle-compression",
	"log.level":           "log-level",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	d := DefaultExecutorConfig()
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("parquet_max_concurrency", d.ParquetMaxConcurrency)
	v.SetDefault("sort_concurrency", d.SortConcurrency)
	v.SetDefault("collect_concurrency", d.CollectConcurrency)
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("shuffle_compression", d.ShuffleCompression)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	return v
}

// Validate checks that the configuration is usable.
func (c *ExecutorConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.ParquetMaxConcurrency <= 0 {
		return fmt.Errorf("parquet_max_concurrency must be positive, got %d", c.ParquetMaxConcurrency)
	}
	if c.SortConcurrency != 1 {
		return fmt.Errorf("sort_concurrency must be 1, got %d", c.SortConcurrency)
	}
	if c.CollectConcurrency <= 0 {
		return fmt.Errorf("collect_concurrency must be positive, got %d", c.CollectConcurrency)
	}
	switch c.ShuffleCompression {
	case CompressionNone, CompressionLZ4, CompressionZstd:
	default:
		return fmt.Errorf("unknown shuffle_compression %q", c.ShuffleCompression)
	}
	return nil
}
