// Package config loads formwizard settings from defaults, an optional YAML
// file and FORMWIZARD_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FORMWIZARD"

// DefaultFile is the project-local config file looked up when no explicit
// path is given.
const DefaultFile = "formwizard.yaml"

// Config holds all configuration values.
type Config struct {
	ListenAddr     string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	SinkURL        string   `mapstructure:"sink_url" yaml:"sink_url"`
	DatabaseURL    string   `mapstructure:"database_url" yaml:"database_url,omitempty"`
	LogLevel       string   `mapstructure:"log_level" yaml:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
	FormsDir       string   `mapstructure:"forms_dir" yaml:"forms_dir,omitempty"`
}

var keys = []string{"listen_addr", "sink_url", "database_url", "log_level", "allowed_origins", "forms_dir"}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		SinkURL:    "http://localhost:8080",
		LogLevel:   "info",
	}
}

// Load resolves configuration with precedence ENV > file > defaults. An
// empty path reads DefaultFile when it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	def := Default()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("sink_url", def.SinkURL)
	v.SetDefault("database_url", "")
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("forms_dir", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	switch {
	case path != "":
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	case fileExists(DefaultFile):
		v.SetConfigFile(DefaultFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", DefaultFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if strings.TrimSpace(c.SinkURL) == "" {
		errs = append(errs, errors.New("sink_url is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Write stores cfg as YAML at path, creating parent directories.
func Write(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
