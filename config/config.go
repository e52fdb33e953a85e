// Package config loads sharedref settings from a YAML file and the environment.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/sharedref/errors"
	"github.com/wippyai/sharedref/handle"
)

// LogConfig controls the zap logger built by Logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn or error
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// HandlesConfig controls handles created by the CLI.
type HandlesConfig struct {
	Atomic bool `mapstructure:"atomic" yaml:"atomic"` // use an atomic use count
}

// ScenariosConfig points at scenario files loaded next to the built-in ones.
type ScenariosConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// Config is the root configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Handles   HandlesConfig   `mapstructure:"handles" yaml:"handles"`
	Scenarios ScenariosConfig `mapstructure:"scenarios" yaml:"scenarios"`
}

var (
	// envBindings maps config keys to the environment variables that can set them.
	envBindings = map[string][]string{
		"log.level":      {"SHAREDREF_LOG_LEVEL"},
		"log.format":     {"SHAREDREF_LOG_FORMAT"},
		"handles.atomic": {"SHAREDREF_HANDLES_ATOMIC"},
		"scenarios.dir":  {"SHAREDREF_SCENARIOS_DIR"},
	}

	defaults = map[string]any{
		"log.level":      "info",
		"log.format":     "console",
		"handles.atomic": false,
		"scenarios.dir":  "",
	}
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load loads the config from filePath, falling back to defaults and env vars
// if the file does not exist. Env vars that are set override file values.
// An empty filePath reads the environment only.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	if err := bindEnvs(v); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "bind env")
	}

	if filePath != "" {
		v.SetConfigFile(filePath)
		v.SetConfigType("yaml")
		if _, err := os.Stat(filePath); !stderrors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.ParseFailed("config "+filePath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.ParseFailed("config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(slices.Clone(envs), 0, key)
		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log", "level").
			Cause(err).
			Detail("unknown level %q", c.Log.Level).
			Build()
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log", "format").
			Detail("unknown format %q", c.Log.Format).
			Build()
	}
	if c.Scenarios.Dir != "" {
		info, err := os.Stat(c.Scenarios.Dir)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "scenarios.dir")
		}
		if !info.IsDir() {
			return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("scenarios.dir %s is not a directory", c.Scenarios.Dir))
		}
	}
	return nil
}

// Logger builds the zap logger described by c.Log. Verbose forces debug level.
func (c *Config) Logger(verbose bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	var zc zap.Config
	if c.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "build logger")
	}
	return logger, nil
}

// HandleOptions returns the handle options selected by c.Handles.
func (c *Config) HandleOptions() []handle.Option {
	if c.Handles.Atomic {
		return []handle.Option{handle.WithAtomicCount()}
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "marshal config")
	}
	return string(out), nil
}
