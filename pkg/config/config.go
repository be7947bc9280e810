package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.weavechat/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8088
// data:
//   dir: /var/lib/weavechat
// chat:
//   history_budget_bytes: 18874368
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Chat   ChatConfig   `yaml:"chat"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type DataConfig struct {
	Dir *string `yaml:"dir"`
}

type ChatConfig struct {
	// HistoryBudgetBytes caps the total payload size of a prompt assembled
	// from conversation history, including inlined attachments.
	HistoryBudgetBytes *int `yaml:"history_budget_bytes"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8088

	// DefaultHistoryBudgetBytes is 90% of the 20 MiB provider payload limit.
	DefaultHistoryBudgetBytes = 20 * 1024 * 1024 * 9 / 10
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".weavechat")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.weavechat/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	if cfg.HistoryBudgetBytes() <= 0 {
		return nil, "", fmt.Errorf("invalid chat.history_budget_bytes %d in %s", cfg.HistoryBudgetBytes(), configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)}}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// DataDir returns the directory holding the database and attachment blobs.
func (c *AppConfig) DataDir() string {
	if c != nil && c.Data.Dir != nil && strings.TrimSpace(*c.Data.Dir) != "" {
		return strings.TrimSpace(*c.Data.Dir)
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "."
	}
	return configDir
}

func (c *AppConfig) HistoryBudgetBytes() int {
	if c == nil || c.Chat.HistoryBudgetBytes == nil {
		return DefaultHistoryBudgetBytes
	}
	return *c.Chat.HistoryBudgetBytes
}

func ptr[T any](v T) *T { return &v }
