package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "fechas/internal/log"
	"fechas/internal/theme"
)

// NOTE: This file provides the application configuration (not the [Config]
// block inside schedule files) with YAML load/save, first-run creation and
// 0600 permissions.

const (
	defaultListen       = "127.0.0.1:8080"
	defaultSchedulePath = "UDC Fechas.txt"
	defaultCacheDir     = "./cache/schedules"
	defaultDownloadName = "UDC Fechas.txt"
	defaultTimezone     = "America/Argentina/Buenos_Aires"
	defaultRefresh      = "*/15 * * * *"
	defaultCaptureW     = 1280
	defaultCaptureH     = 1600
)

// CaptureConfig controls the periodic PNG snapshot of the rendered schedule.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Refresh is a cron expression (e.g. "*/15 * * * *").
	Refresh string `yaml:"refresh" json:"refresh"`

	// URL to capture. Empty means the local server root.
	URL string `yaml:"url" json:"url"`

	// Output is where the PNG is written and served from /preview.png.
	Output string `yaml:"output" json:"output"`

	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// SchedulePath is the schedule loaded at startup: a file path, or an
	// http(s) URL fetched with caching.
	SchedulePath string `yaml:"schedule_path" json:"schedule_path"`

	// CacheDir holds the cached bodies of remote schedules.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// DownloadName is the file name offered by /api/download.
	DownloadName string `yaml:"download_name" json:"download_name"`

	// Theme is the active theme before any schedule sets Tema.
	Theme string `yaml:"theme" json:"theme"`

	// Timezone is the IANA zone used for the iCalendar export and cron.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Watch reloads SchedulePath when it changes on disk.
	Watch bool `yaml:"watch" json:"watch"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		SchedulePath: defaultSchedulePath,
		CacheDir:     defaultCacheDir,
		DownloadName: defaultDownloadName,
		Theme:        theme.Default,
		Timezone:     defaultTimezone,
		Watch:        true,
		Capture: CaptureConfig{
			Enabled: false,
			Refresh: defaultRefresh,
			Output:  "./cache/preview.png",
			Width:   defaultCaptureW,
			Height:  defaultCaptureH,
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
	if c.SchedulePath == "" {
		c.SchedulePath = defaultSchedulePath
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.DownloadName == "" {
		c.DownloadName = defaultDownloadName
		if !strings.Contains(c.SchedulePath, "://") {
			c.DownloadName = filepath.Base(c.SchedulePath)
		}
	}
	c.Theme = theme.Normalize(c.Theme)
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}

	// An unparsable cron spec falls back to the default instead of failing
	// the scheduler at startup.
	if _, err := cron.ParseStandard(c.Capture.Refresh); err != nil {
		c.Capture.Refresh = defaultRefresh
	}
	if c.Capture.Output == "" {
		c.Capture.Output = "./cache/preview.png"
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = defaultCaptureW
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = defaultCaptureH
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file +
// rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".fechas-config-*.tmp")
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

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}
