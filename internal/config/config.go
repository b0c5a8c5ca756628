// Package config loads the mnb.yaml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "mnb.yaml"

// Handler kinds.
const (
	HandlerNone    = "none"
	HandlerLSP     = "lsp"
	HandlerRemote  = "remote"
	HandlerProcess = "process"
)

// Store and journal kinds.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	JournalSQLite = "sqlite"
	JournalMemory = "memory"
)

// Config is the full project configuration.
type Config struct {
	Handler HandlerConfig `yaml:"handler"`
	Server  ServerConfig  `yaml:"server"`
	Remote  RemoteConfig  `yaml:"remote"`
	Process ProcessConfig `yaml:"process"`
	LSP     LSPConfig     `yaml:"lsp"`
	Store   StoreConfig   `yaml:"store"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`

	// Dir is the directory relative paths were resolved against.
	Dir string `yaml:"-"`
}

// HandlerConfig selects the execution handler.
type HandlerConfig struct {
	Kind    string   `yaml:"kind"`
	Timeout Duration `yaml:"timeout"`
}

// ServerConfig configures `mnb serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RemoteConfig points at a remote execution server.
type RemoteConfig struct {
	Address string `yaml:"address"`
}

// ProcessConfig configures the process handler.
type ProcessConfig struct {
	Config  string `yaml:"config"`
	Command string `yaml:"command"`
	Dir     string `yaml:"dir"`
}

// LSPConfig configures the Syntheto language server.
type LSPConfig struct {
	Home      string   `yaml:"home"`
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	Debug     bool     `yaml:"debug"`
	Workspace string   `yaml:"workspace"`
}

// StoreConfig selects where notebooks are kept.
type StoreConfig struct {
	Kind   string      `yaml:"kind"`
	Dir    string      `yaml:"dir"`
	Redis  RedisConfig `yaml:"redis"`
	Locker bool        `yaml:"locker"`
	// EncryptionKey is a base64 AES-256 key; notebooks are encrypted at rest when set.
	EncryptionKey string `yaml:"encryption_key"`
	// FallbackKeys still decrypt notebooks written before a key rotation.
	FallbackKeys []string `yaml:"fallback_keys"`
}

// RedisConfig configures the redis store and lock.
type RedisConfig struct {
	Addr   string   `yaml:"addr"`
	Prefix string   `yaml:"prefix"`
	TTL    Duration `yaml:"ttl"`
}

// JournalConfig selects where executions are recorded.
type JournalConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ConfigError reports an unreadable or invalid configuration file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Handler: HandlerConfig{Kind: HandlerNone, Timeout: Duration(2 * time.Minute)},
		Server:  ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Kind:  StoreFile,
			Dir:   ".mnb/notebooks",
			Redis: RedisConfig{Addr: "localhost:6379", Prefix: "mnb:"},
		},
		Journal: JournalConfig{Kind: JournalSQLite, Path: ".mnb/journal.db"},
		Log:     LogConfig{Level: "info"},
		Dir:     ".",
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	cfg.Dir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, &ConfigError{Path: path, Err: err}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Path: path, Err: err}
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return cfg, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("MNB_HANDLER"); ok && v != "" {
		c.Handler.Kind = v
	}
	if v, ok := lookup("MNB_REMOTE_ADDRESS"); ok && v != "" {
		c.Remote.Address = v
	}
	if v, ok := lookup("MNB_REDIS_ADDR"); ok && v != "" {
		c.Store.Redis.Addr = v
	}
	if v, ok := lookup("MNB_STORE_KEY"); ok && v != "" {
		c.Store.EncryptionKey = v
	}
	if v, ok := lookup("MNB_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("SYNTHETO_HOME"); ok && v != "" && c.LSP.Home == "" {
		c.LSP.Home = v
	}
}

func (c *Config) resolvePaths() {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.Dir, p)
	}
	c.Store.Dir = abs(c.Store.Dir)
	c.Journal.Path = abs(c.Journal.Path)
	c.Process.Config = abs(c.Process.Config)
	c.Process.Dir = abs(c.Process.Dir)
	c.LSP.Workspace = abs(c.LSP.Workspace)
	c.Log.File = abs(c.Log.File)
}

// Validate checks the enumerated fields.
func (c Config) Validate() error {
	var errs []error
	switch c.Handler.Kind {
	case HandlerNone, HandlerLSP, HandlerProcess:
	case HandlerRemote:
		if strings.TrimSpace(c.Remote.Address) == "" {
			errs = append(errs, errors.New("handler remote requires remote.address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown handler kind %q", c.Handler.Kind))
	}
	switch c.Store.Kind {
	case StoreFile, StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.Store.Kind))
	}
	switch c.Journal.Kind {
	case JournalSQLite, JournalMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown journal kind %q", c.Journal.Kind))
	}
	if c.Handler.Timeout < 0 {
		errs = append(errs, errors.New("handler.timeout must not be negative"))
	}
	return errors.Join(errs...)
}
