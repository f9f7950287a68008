// Package config loads the application configuration: in-code defaults,
// overridden by config/config.yml, then config/config.local.yml, then
// environment variables.
package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"clientflow/internal/logging"
	scheduler "clientflow/internal/scheduler/config"
	storage "clientflow/internal/storage/config"
	workflow "clientflow/internal/workflow/config"
)

// Config holds the application configuration.
type Config struct {
	Logging   logging.Config   `yaml:"logging"`
	Storage   storage.Config   `yaml:"storage"`
	Workflow  workflow.Config  `yaml:"workflow"`
	Scheduler scheduler.Config `yaml:"scheduler"`
}

// LoadConfig loads configuration from files and environment variables.
// Order: defaults -> config.yml -> config.local.yml -> env overrides.
func LoadConfig() *Config {
	cfg := &Config{
		Logging:   logging.DefaultConfig(),
		Storage:   storage.DefaultConfig(),
		Workflow:  workflow.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
	}

	loadFile("config/config.yml", cfg)
	loadFile("config/config.local.yml", cfg)

	cfg.Storage.ApplyEnvOverrides()

	return cfg
}

func loadFile(filename string, cfg *Config) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Printf("Warning: Error reading %s: %v", filename, err)
		return
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("Warning: Error parsing %s: %v", filename, err)
	}
}
