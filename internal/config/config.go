// Package config provides YAML-based configuration loading for Stride.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Stride configuration, loaded from stride.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Advisor  AdvisorConfig  `yaml:"advisor"`
	Notify   NotifyConfig   `yaml:"notify"`
	Token    TokenConfig    `yaml:"token"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig selects the backing store. Driver is "sqlite" (Path) or
// "mysql" (Host/Port/Database).
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
}

// AdvisorConfig holds settings for the LLM proposal generator.
type AdvisorConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
}

// NotifyConfig holds optional chat notification targets.
type NotifyConfig struct {
	SlackToken     string `yaml:"slack_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// TokenConfig holds apply-token signing settings.
type TokenConfig struct {
	SecretEnv string `yaml:"secret_env"`
	TTLHours  int    `yaml:"ttl_hours"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config suitable for local use without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "stride.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Database == "" {
			c.Database.Database = "stride"
		}
	}
	if c.Advisor.APIKeyEnv == "" {
		c.Advisor.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = "gpt-4o-mini"
	}
	if c.Token.SecretEnv == "" {
		c.Token.SecretEnv = "STRIDE_TOKEN_SECRET"
	}
	if c.Token.TTLHours == 0 {
		c.Token.TTLHours = 48
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.Database == "" {
			errs = append(errs, "database.database is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Token.TTLHours < 1 {
		errs = append(errs, "token.ttl_hours must be at least 1")
	}
	if (c.Notify.SlackToken == "") != (c.Notify.SlackChannel == "") {
		errs = append(errs, "notify.slack_token and notify.slack_channel must be set together")
	}
	if (c.Notify.DiscordToken == "") != (c.Notify.DiscordChannel == "") {
		errs = append(errs, "notify.discord_token and notify.discord_channel must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TokenSecret resolves the apply-token signing secret from the environment.
func (c *Config) TokenSecret() (string, error) {
	secret := os.Getenv(c.Token.SecretEnv)
	if secret == "" {
		return "", fmt.Errorf("config: %s is not set", c.Token.SecretEnv)
	}
	return secret, nil
}

// AdvisorAPIKey resolves the advisor API key from the environment.
func (c *Config) AdvisorAPIKey() (string, error) {
	key := os.Getenv(c.Advisor.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("config: %s is not set", c.Advisor.APIKeyEnv)
	}
	return key, nil
}
