// Package config loads the cellstore command line configuration from
// defaults, an optional YAML file and CELLSTORE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidMaxFileSize = errors.New("invalid import max file size")
	ErrInvalidBenchSize   = errors.New("bench rows and columns must be positive")
)

const (
	envPrefix      = "CELLSTORE"
	maxBenchColumn = 16_384
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Config holds all configuration of the cellstore command.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Import   ImportConfig   `mapstructure:"import"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Bench    BenchConfig    `mapstructure:"bench"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// ImportConfig controls reading xlsx files.
type ImportConfig struct {
	MaxFileSize string `mapstructure:"max_file_size"`
	Calculate   bool   `mapstructure:"calculate"`
	Styles      bool   `mapstructure:"styles"`
}

// SnapshotConfig controls writing snapshots.
type SnapshotConfig struct {
	// Verify decodes every snapshot right after writing it.
	Verify bool `mapstructure:"verify"`
}

// BenchConfig sizes the generated benchmark workbook.
type BenchConfig struct {
	Rows    int    `mapstructure:"rows"`
	Columns int    `mapstructure:"columns"`
	Seed    uint64 `mapstructure:"seed"`
}

// SlogLevel returns the configured level. validated configs always carry a
// known level.
func (c LoggingConfig) SlogLevel() slog.Level {
	return logLevels[strings.ToLower(c.Level)]
}

// JSON reports whether logs are written as JSON.
func (c LoggingConfig) JSON() bool {
	return strings.EqualFold(c.Format, "json")
}

// MaxFileSizeBytes returns the import size limit in bytes. zero means no limit.
func (c ImportConfig) MaxFileSizeBytes() uint64 {
	n, err := humanize.ParseBytes(c.MaxFileSize)
	if err != nil {
		return 0
	}
	return n
}

// LoadConfig loads configuration from file and environment variables. an
// empty configPath looks for cellstore.yaml in the working directory and
// in $HOME/.config/cellstore; a missing file is not an error then.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("cellstore")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.config/cellstore")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Import: ImportConfig{
			MaxFileSize: DefaultImportMaxFileSize,
			Calculate:   DefaultImportCalculate,
			Styles:      DefaultImportStyles,
		},
		Snapshot: SnapshotConfig{Verify: DefaultSnapshotVerify},
		Bench:    BenchConfig{Rows: DefaultBenchRows, Columns: DefaultBenchColumns, Seed: DefaultBenchSeed},
	}
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("import.max_file_size", DefaultImportMaxFileSize)
	viperCfg.SetDefault("import.calculate", DefaultImportCalculate)
	viperCfg.SetDefault("import.styles", DefaultImportStyles)

	viperCfg.SetDefault("snapshot.verify", DefaultSnapshotVerify)

	viperCfg.SetDefault("bench.rows", DefaultBenchRows)
	viperCfg.SetDefault("bench.columns", DefaultBenchColumns)
	viperCfg.SetDefault("bench.seed", DefaultBenchSeed)
}

func validateConfig(config *Config) error {
	if _, ok := logLevels[strings.ToLower(config.Logging.Level)]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	switch strings.ToLower(config.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Import.MaxFileSize != "" {
		if _, err := humanize.ParseBytes(config.Import.MaxFileSize); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidMaxFileSize, config.Import.MaxFileSize)
		}
	}

	if config.Bench.Rows <= 0 || config.Bench.Columns <= 0 || config.Bench.Columns > maxBenchColumn {
		return fmt.Errorf("%w: %dx%d", ErrInvalidBenchSize, config.Bench.Rows, config.Bench.Columns)
	}

	return nil
}
