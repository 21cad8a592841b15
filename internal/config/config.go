package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// EnvConfigFile overrides the config file location
const EnvConfigFile = "DISKFORGE_CONFIG"

type LogConfig struct {
	Level string `json:"level"`
	JSON  bool   `json:"json"`
}

type WriteConfig struct {
	BlockSizeMB    int    `json:"block_size_mb"`
	PollIntervalMS int    `json:"poll_interval_ms"`
	Verify         bool   `json:"verify"`
	MountDir       string `json:"mount_dir"`
	Label          string `json:"label"`
}

type SafetyConfig struct {
	// ExtraProtected mountpoints make their devices unsafe, on top of the OS defaults
	ExtraProtected []string `json:"extra_protected"`
	// Sensitive mountpoints raise the risk tier to high
	Sensitive []string `json:"sensitive"`
}

type ServerConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type Config struct {
	Log    LogConfig    `json:"log"`
	Write  WriteConfig  `json:"write"`
	Safety SafetyConfig `json:"safety"`
	Server ServerConfig `json:"server"`
}

var (
	ConfigDir  = "/etc/diskforge"
	ConfigFile = filepath.Join(ConfigDir, "config.json")
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Write: WriteConfig{
			BlockSizeMB:    4,
			PollIntervalMS: 250,
			Label:          "DISKFORGE",
		},
		Safety: SafetyConfig{
			ExtraProtected: []string{},
			Sensitive:      []string{},
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8750,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Path resolves the config file: explicit flag, then DISKFORGE_CONFIG, then ConfigFile
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvConfigFile); env != "" {
		return env
	}
	return ConfigFile
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.WithField("path", path).Debug("No config file, using defaults")
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config file %s is corrupted: %w", path, err)
	}
	cfg.Safety.ExtraProtected = removeDuplicates(cfg.Safety.ExtraProtected)
	cfg.Safety.Sensitive = removeDuplicates(cfg.Safety.Sensitive)
	return cfg, nil
}

// Save writes cfg to path, creating its directory
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	log.WithField("path", path).Info("Configuration saved")
	return nil
}

// BlockSize is the raw copy chunk size in bytes
func (c *Config) BlockSize() int {
	if c.Write.BlockSizeMB <= 0 {
		return 0
	}
	return c.Write.BlockSizeMB << 20
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Write.PollIntervalMS) * time.Millisecond
}

// Addr is the listen address of the API server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AddProtected adds mountpoint to the extra protected list; it reports false when already present
func (c *Config) AddProtected(mountpoint string) bool {
	for _, existing := range c.Safety.ExtraProtected {
		if existing == mountpoint {
			return false
		}
	}
	c.Safety.ExtraProtected = append(c.Safety.ExtraProtected, mountpoint)
	return true
}

// RemoveProtected drops mountpoint from the extra protected list
func (c *Config) RemoveProtected(mountpoint string) bool {
	before := len(c.Safety.ExtraProtected)
	c.Safety.ExtraProtected = removeFromSlice(c.Safety.ExtraProtected, mountpoint)
	return len(c.Safety.ExtraProtected) != before
}

func removeDuplicates(slice []string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, item := range slice {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}

func removeFromSlice(slice []string, item string) []string {
	for i, v := range slice {
		if v == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
