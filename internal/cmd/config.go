package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration file. Every field has a default and an
// environment variable override, so the file itself is optional.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Store struct {
		Backend string `yaml:"backend"` // "nats" or "memory"
		NatsURL string `yaml:"nats_url"`
		Bucket  string `yaml:"bucket"`
	} `yaml:"store"`
	Database struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"database"`
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Store.Backend = "nats"
	config.Store.Bucket = "trivia"
	config.Database.Enabled = true
	return &config
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(config)
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Store.Backend = getEnv("STORE_BACKEND", config.Store.Backend)
	config.Store.NatsURL = getEnv("NATS_URL", config.Store.NatsURL)
	config.Store.Bucket = getEnv("STORE_BUCKET", config.Store.Bucket)
	if v := os.Getenv("DB_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			config.Database.Enabled = enabled
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
