// Package config loads client configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIBaseURL string `yaml:"apiBaseUrl"`
	SocketURL  string `yaml:"socketUrl"`

	RequestTimeout       time.Duration `yaml:"requestTimeout"`
	DedupCapacity        int           `yaml:"dedupCapacity"`
	DebounceWindow       time.Duration `yaml:"debounceWindow"`
	ReconnectAttempts    int           `yaml:"reconnectAttempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnectBaseDelay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnectMaxDelay"`
	CredentialAttempts   int           `yaml:"credentialAttempts"`
	CredentialRetryDelay time.Duration `yaml:"credentialRetryDelay"`
}

func Default() Config {
	return Config{
		APIBaseURL:           "http://127.0.0.1:8080",
		SocketURL:            "ws://127.0.0.1:8080/v1/events",
		RequestTimeout:       15 * time.Second,
		DedupCapacity:        512,
		DebounceWindow:       250 * time.Millisecond,
		ReconnectAttempts:    8,
		ReconnectBaseDelay:   500 * time.Millisecond,
		ReconnectMaxDelay:    30 * time.Second,
		CredentialAttempts:   3,
		CredentialRetryDelay: 500 * time.Millisecond,
	}
}

// Load reads the file when it exists, then applies env overrides. A missing
// file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("ORDERSYNC_API_URL")); v != "" {
		c.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ORDERSYNC_SOCKET_URL")); v != "" {
		c.SocketURL = v
	}
	if v := durationEnv("ORDERSYNC_REQUEST_TIMEOUT"); v > 0 {
		c.RequestTimeout = v
	}
	if v := intEnv("ORDERSYNC_DEDUP_CAPACITY"); v > 0 {
		c.DedupCapacity = v
	}
	if v := durationEnv("ORDERSYNC_DEBOUNCE_WINDOW"); v > 0 {
		c.DebounceWindow = v
	}
	if v := intEnv("ORDERSYNC_RECONNECT_ATTEMPTS"); v > 0 {
		c.ReconnectAttempts = v
	}
}

func (c *Config) normalize() {
	defaults := Default()
	if strings.TrimSpace(c.APIBaseURL) == "" {
		c.APIBaseURL = defaults.APIBaseURL
	}
	if strings.TrimSpace(c.SocketURL) == "" {
		c.SocketURL = defaults.SocketURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.DedupCapacity <= 0 {
		c.DedupCapacity = defaults.DedupCapacity
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = defaults.DebounceWindow
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = defaults.ReconnectAttempts
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = defaults.ReconnectBaseDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = defaults.ReconnectMaxDelay
	}
	if c.CredentialAttempts <= 0 {
		c.CredentialAttempts = defaults.CredentialAttempts
	}
	if c.CredentialRetryDelay <= 0 {
		c.CredentialRetryDelay = defaults.CredentialRetryDelay
	}
}

func durationEnv(name string) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return value
}

func intEnv(name string) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
