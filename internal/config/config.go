// Package config loads servicereport settings from defaults, a YAML file,
// an env file and SERVICEREPORT_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
	"github.com/Aman-CERP/servicereport/internal/logging"
)

const (
	// DefaultPath is the system configuration file.
	DefaultPath = "/etc/servicereport/config.yaml"
	// DefaultEnvFile holds KEY=value overrides in the distro defaults
	// directory.
	DefaultEnvFile = "/etc/default/servicereport"
	// DefaultHistoryPath is the run history database.
	DefaultHistoryPath = "/var/lib/servicereport/history.db"
	// DefaultLockPath serializes concurrent runs.
	DefaultLockPath = "/run/servicereport.lock"

	envPrefix = "SERVICEREPORT_"
)

// Report colour modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config is the complete servicereport configuration.
type Config struct {
	Version int `yaml:"version" json:"version"`
	// Plugins is the default ordered plugin selection. Empty runs every
	// applicable plugin.
	Plugins  []string      `yaml:"plugins" json:"plugins"`
	Optional []string      `yaml:"optional" json:"optional"`
	All      bool          `yaml:"all" json:"all"`
	Root     string        `yaml:"root" json:"root"`
	LockPath string        `yaml:"lock_path" json:"lock_path"`
	Log      LogConfig     `yaml:"log" json:"log"`
	History  HistoryConfig `yaml:"history" json:"history"`
	Report   ReportConfig  `yaml:"report" json:"report"`
}

// LogConfig configures the log file.
type LogConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	// Keep is the number of runs retained.
	Keep int `yaml:"keep" json:"keep"`
}

// ReportConfig configures the terminal report.
type ReportConfig struct {
	Color string `yaml:"color" json:"color"`
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	return &Config{
		Version:  1,
		Root:     "/",
		LockPath: DefaultLockPath,
		Log: LogConfig{
			Level:     "debug",
			File:      logging.DefaultLogPath(),
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath,
			Keep:    50,
		},
		Report: ReportConfig{Color: ColorAuto},
	}
}

// Load applies, in increasing precedence: defaults, the YAML file, the
// env file and the process environment. An empty path selects
// DefaultPath, which may be absent; an explicit path must exist. An
// empty envFile selects DefaultEnvFile.
func Load(path, envFile string) (*Config, error) {
	cfg := NewConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.loadYAML(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}

	if envFile == "" {
		envFile = DefaultEnvFile
	}
	fileEnv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, srerrors.ConfigError("failed to read env file "+envFile, err)
	}
	cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML overlays the keys present in path onto c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return srerrors.New(srerrors.ErrCodeConfigNotFound, "config file not found: "+path, err)
		}
		return srerrors.ConfigError("failed to read config file "+path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return srerrors.ConfigError("failed to parse config file "+path, err)
	}
	return nil
}

// applyEnv applies SERVICEREPORT_* overrides. Malformed numbers and
// booleans are ignored.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("PLUGINS"); ok {
		c.Plugins = splitList(v)
	}
	if v, ok := get("OPTIONAL"); ok {
		c.Optional = splitList(v)
	}
	if v, ok := get("ALL"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.All = b
		}
	}
	if v, ok := get("ROOT"); ok {
		c.Root = v
	}
	if v, ok := get("LOCK_PATH"); ok {
		c.LockPath = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("LOG_FILE"); ok {
		c.Log.File = v
	}
	if v, ok := get("HISTORY_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.History.Enabled = b
		}
	}
	if v, ok := get("HISTORY_PATH"); ok {
		c.History.Path = v
	}
	if v, ok := get("HISTORY_KEEP"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.Keep = n
		}
	}
	if v, ok := get("COLOR"); ok {
		c.Report.Color = v
	}
}

// splitList splits a comma or whitespace separated list.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "recommendation": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return srerrors.ConfigError(fmt.Sprintf("log.level must be debug, info, recommendation, warn or error, got %q", c.Log.Level), nil)
	}
	if c.Log.MaxSizeMB <= 0 {
		return srerrors.ConfigError(fmt.Sprintf("log.max_size_mb must be positive, got %d", c.Log.MaxSizeMB), nil)
	}
	if c.Log.MaxFiles <= 0 {
		return srerrors.ConfigError(fmt.Sprintf("log.max_files must be positive, got %d", c.Log.MaxFiles), nil)
	}
	if c.History.Keep < 1 {
		return srerrors.ConfigError(fmt.Sprintf("history.keep must be at least 1, got %d", c.History.Keep), nil)
	}
	if c.History.Enabled && c.History.Path == "" {
		return srerrors.ConfigError("history.path is required when history is enabled", nil)
	}
	if !filepath.IsAbs(c.Root) {
		return srerrors.ConfigError(fmt.Sprintf("root must be an absolute path, got %q", c.Root), nil)
	}
	switch strings.ToLower(c.Report.Color) {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return srerrors.ConfigError(fmt.Sprintf("report.color must be auto, always or never, got %q", c.Report.Color), nil)
	}
	return nil
}

// WriteYAML writes the configuration to path, creating its directory.
// An existing file is backed up first.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return srerrors.New(srerrors.ErrCodeConfigWrite, "failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return srerrors.New(srerrors.ErrCodeConfigWrite, "failed to create config directory", err)
	}
	if _, err := Backup(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return srerrors.New(srerrors.ErrCodeConfigWrite, "failed to write config file", err)
	}
	return nil
}
