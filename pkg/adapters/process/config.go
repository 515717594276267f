package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes how to launch an external judge process.
type Config struct {
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Dir         string            `yaml:"dir" json:"dir"`
	Environment map[string]string `yaml:"env" json:"env"`
}

// LoadConfig reads a judge configuration file (YAML or JSON).
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read judge config: %w", err)
	}

	var cfg Config
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse judge config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse judge config: %w", err)
		}
	}

	if cfg.Command == "" {
		return Config{}, fmt.Errorf("judge config: command is required")
	}
	return cfg, nil
}
