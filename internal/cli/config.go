// Package cli holds the configuration file and output helpers of the sprida CLI.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration
type Config struct {
	DefaultEnv   string               `yaml:"default_env"`
	Environments map[string]EnvConfig `yaml:"environments"`
}

// EnvConfig represents configuration for a specific environment
type EnvConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".sprida", "config.yaml"), nil
}

// LoadConfig loads the configuration from file. A missing file yields an
// empty configuration with default_env prod.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				DefaultEnv:   "prod",
				Environments: make(map[string]EnvConfig),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Environments == nil {
		cfg.Environments = make(map[string]EnvConfig)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to file
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetEnvConfig resolves the server to talk to.
// Priority: command flags > SPRIDA_BASE_URL / SPRIDA_API_KEY > config file.
// The API key may stay empty; only write commands need it.
func GetEnvConfig(envName, baseURLFlag, apiKeyFlag string) (*EnvConfig, string, error) {
	envBaseURL := os.Getenv("SPRIDA_BASE_URL")
	envAPIKey := os.Getenv("SPRIDA_API_KEY")

	pick := func(flag, fromEnv, fromFile string) string {
		switch {
		case flag != "":
			return flag
		case fromEnv != "":
			return fromEnv
		default:
			return fromFile
		}
	}

	if baseURLFlag != "" || envBaseURL != "" {
		return &EnvConfig{
			BaseURL: pick(baseURLFlag, envBaseURL, ""),
			APIKey:  pick(apiKeyFlag, envAPIKey, ""),
		}, envName, nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return nil, "", err
	}
	if envName == "" {
		envName = cfg.DefaultEnv
	}

	envCfg, ok := cfg.Environments[envName]
	if !ok {
		return nil, "", fmt.Errorf("environment '%s' not found in config (run 'sprida config init' or pass --base-url)", envName)
	}
	envCfg.APIKey = pick(apiKeyFlag, envAPIKey, envCfg.APIKey)

	if envCfg.BaseURL == "" {
		return nil, "", fmt.Errorf("base_url must be configured for environment '%s'", envName)
	}

	return &envCfg, envName, nil
}

// InitConfig creates a default config file
func InitConfig() error {
	cfg := &Config{
		DefaultEnv: "dev",
		Environments: map[string]EnvConfig{
			"dev": {
				BaseURL: "http://localhost:8080",
				APIKey:  "admin-123",
			},
			"prod": {
				BaseURL: "https://sprida.example.com",
			},
		},
	}

	return SaveConfig(cfg)
}

// parseSetting splits "env.key" and checks key.
func parseSetting(path string) (env, key string, err error) {
	parts := strings.Split(path, ".")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid key format, expected 'env.key' (e.g., 'dev.base_url')")
	}
	switch parts[1] {
	case "base_url", "api_key":
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("unknown key '%s', valid keys: base_url, api_key", parts[1])
	}
}

// Get returns the value at "env.key".
func (c *Config) Get(path string) (string, error) {
	envName, key, err := parseSetting(path)
	if err != nil {
		return "", err
	}
	envCfg, ok := c.Environments[envName]
	if !ok {
		return "", fmt.Errorf("environment '%s' not found", envName)
	}
	if key == "base_url" {
		return envCfg.BaseURL, nil
	}
	return envCfg.APIKey, nil
}

// Set stores value at "env.key", creating the environment if needed.
func (c *Config) Set(path, value string) error {
	envName, key, err := parseSetting(path)
	if err != nil {
		return err
	}
	if c.Environments == nil {
		c.Environments = make(map[string]EnvConfig)
	}
	envCfg := c.Environments[envName]
	if key == "base_url" {
		envCfg.BaseURL = value
	} else {
		envCfg.APIKey = value
	}
	c.Environments[envName] = envCfg
	return nil
}

// MaskKey hides all but the first four characters of an API key.
func MaskKey(k string) string {
	if len(k) > 4 {
		return k[:4] + "***"
	}
	return "***"
}
