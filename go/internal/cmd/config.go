package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable knobs of the timer service. Everything has a
// default so the file is optional.
type Config struct {
	Broadcast struct {
		SubjectPrefix string        `yaml:"subject_prefix"`
		MaxRetries    int           `yaml:"max_retries"`
		RetryDelay    time.Duration `yaml:"retry_delay"`
		ReconnectWait time.Duration `yaml:"reconnect_wait"`
	} `yaml:"broadcast"`
	WebSocket struct {
		WriteTimeoutSec int `yaml:"write_timeout_sec"`
		ReadTimeoutSec  int `yaml:"read_timeout_sec"`
		PingIntervalSec int `yaml:"ping_interval_sec"`
	} `yaml:"websocket"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.Broadcast.SubjectPrefix = "timer.events"
	cfg.Broadcast.MaxRetries = 3
	cfg.Broadcast.RetryDelay = time.Second
	cfg.Broadcast.ReconnectWait = 2 * time.Second
	cfg.WebSocket.WriteTimeoutSec = 10
	cfg.WebSocket.ReadTimeoutSec = 60
	cfg.WebSocket.PingIntervalSec = 30
	return &cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
