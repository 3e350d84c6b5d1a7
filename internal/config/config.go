package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen    = "127.0.0.1:8080"
	defaultStorePath = "./var/timetable.json"
	defaultLogLevel  = "info"
	defaultLocale    = "ko"
	defaultDispatch  = "* * * * *"
)

// EditorConfig controls how drafts are turned into entries.
type EditorConfig struct {
	// Strict enables draft validation (non-empty title, color range,
	// start before end). Off by default: any input becomes an entry.
	Strict bool `yaml:"strict" json:"strict"`
}

// NotifyConfig controls class-start notifications.
type NotifyConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Dispatch is the cron schedule on which pending alerts are checked
	// and delivered (e.g. "* * * * *").
	Dispatch string `yaml:"dispatch" json:"dispatch"`

	// Sound is passed through to every scheduled alert.
	Sound bool `yaml:"sound" json:"sound"`

	// CancelOnDelete cancels the pending alert of an entry when the entry
	// is removed. Disabling it keeps stale alerts around.
	CancelOnDelete bool `yaml:"cancel_on_delete" json:"cancel_on_delete"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API and grid page.
	Listen string `yaml:"listen" json:"listen"`

	// StorePath is the file backing the single timetable storage slot.
	StorePath string `yaml:"store_path" json:"store_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Locale selects the day column labels. Supported values:
	//   - "ko" (default): 월 화 수 목 금
	//   - "en": Mon Tue Wed Thu Fri
	Locale string `yaml:"locale" json:"locale"`

	Editor EditorConfig `yaml:"editor" json:"editor"`
	Notify NotifyConfig `yaml:"notify" json:"notify"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    defaultListen,
		StorePath: defaultStorePath,
		LogLevel:  defaultLogLevel,
		Locale:    defaultLocale,
		Editor:    EditorConfig{Strict: false},
		Notify: NotifyConfig{
			Enabled:        true,
			Dispatch:       defaultDispatch,
			Sound:          true,
			CancelOnDelete: true,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.StorePath == "" {
		c.StorePath = defaultStorePath
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	switch c.Locale {
	case "ko", "en":
	default:
		c.Locale = defaultLocale
	}

	// An unparsable dispatch schedule would stop every alert from firing.
	if c.Notify.Dispatch == "" {
		c.Notify.Dispatch = defaultDispatch
	} else if _, err := cron.ParseStandard(c.Notify.Dispatch); err != nil {
		c.Notify.Dispatch = defaultDispatch
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, missing sections keep their defaults and
//     the result is normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to path atomically with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data to a temp file next to path, syncs it, sets
// 0600 and renames it over path. Parent directories are created with 0700.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
