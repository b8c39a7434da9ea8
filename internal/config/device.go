package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

const deviceConfigName = "config.yaml"

// DeviceConfig configures the vibedesk CLI. It lives in the data directory
// next to the local database.
type DeviceConfig struct {
	APIURL         string `yaml:"api_url"`
	DataDir        string `yaml:"data_dir"`
	SessionMinutes int    `yaml:"session_minutes"`
	LogLevel       string `yaml:"log_level"`
	Bell           bool   `yaml:"bell"`
}

func DefaultDeviceConfig() DeviceConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return DeviceConfig{
		APIURL:         "http://localhost:8080",
		DataDir:        filepath.Join(home, ".vibedesk"),
		SessionMinutes: domain.DefaultSessionMinutes,
		LogLevel:       "info",
		Bell:           true,
	}
}

// LoadDevice reads the YAML config from dataDir. A missing file yields the
// defaults; a present file overrides only the keys it sets.
func LoadDevice(dataDir string) (DeviceConfig, error) {
	cfg := DefaultDeviceConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, deviceConfigName))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return cfg, fmt.Errorf("read device config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse device config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, cfg.Validate()
}

func (c DeviceConfig) Validate() error {
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", c.APIURL)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.SessionMinutes <= 0 {
		return domain.ErrInvalidSessionLength
	}
	return nil
}

// Save writes the config to its data directory.
func (c DeviceConfig) Save() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.DataDir, deviceConfigName), data, 0o600)
}

func (c DeviceConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "vibedesk.db")
}

func (c DeviceConfig) LogPath() string {
	return filepath.Join(c.DataDir, "vibedesk.log")
}
