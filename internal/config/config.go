package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

//go:embed default/config.yaml
var defaultConfigData []byte

// FileName is the per-user configuration file looked up in the home directory
// when no explicit path is given.
const FileName = ".smallsh.yml"

type Config struct {
	ShellName         string `yaml:"shell_name" validate:"required"`
	Prompt            string `yaml:"prompt" validate:"required"`
	MaxLineLength     int    `yaml:"max_line_length" validate:"gt=0"`
	MaxArgs           int    `yaml:"max_args" validate:"gt=0"`
	MaxBackgroundJobs int    `yaml:"max_background_jobs" validate:"gte=0"`
	HomeDir           string `yaml:"home_dir"`
	DebugLog          string `yaml:"debug_log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(defaultConfigData, cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads file from fs on top of the defaults. An empty file name means
// $HOME/.smallsh.yml, which is optional; an explicitly named file must exist.
func Load(fs afero.Fs, file string) (*Config, error) {
	cfg := Default()

	explicit := file != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err == nil {
			file = filepath.Join(home, FileName)
		}
	}

	if file != "" {
		data, err := afero.ReadFile(fs, file)
		switch {
		case err == nil:
			if err := yaml.UnmarshalStrict(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", file, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
	}

	if cfg.HomeDir == "" {
		cfg.HomeDir = os.Getenv("HOME")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate the configuration for basic semantic errors.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	})

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Rows returns the effective settings as name/value pairs in file order.
func (c *Config) Rows() [][]string {
	debugLog := c.DebugLog
	if debugLog == "" {
		debugLog = "(disabled)"
	}
	return [][]string{
		{"shell_name", c.ShellName},
		{"prompt", fmt.Sprintf("%q", c.Prompt)},
		{"max_line_length", fmt.Sprint(c.MaxLineLength)},
		{"max_args", fmt.Sprint(c.MaxArgs)},
		{"max_background_jobs", fmt.Sprint(c.MaxBackgroundJobs)},
		{"home_dir", c.HomeDir},
		{"debug_log", debugLog},
	}
}
