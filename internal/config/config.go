package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/nidhogg/nuka-bot/internal/command"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig        `json:"server"`
	Dispatch  DispatchConfig      `json:"dispatch"`
	Responses map[string][]string `json:"responses,omitempty"`
	Gateway   GatewayConfig       `json:"gateway"`
	Database  DatabaseConfig      `json:"database"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
	// APIToken guards the REST gateway and the list mutation routes.
	APIToken string `json:"api_token"`
}

// DispatchConfig drives the text command pipeline.
type DispatchConfig struct {
	Prefixes     []string                `json:"prefixes"`
	Owners       []string                `json:"owners"`
	BlockedUsers []string                `json:"blocked_users"`
	Commands     map[string]command.Spec `json:"commands,omitempty"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
	REST    RESTGatewayConfig    `json:"rest"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	// GuildID scopes slash command publishing; empty publishes globally.
	GuildID string `json:"guild_id"`
}

type RESTGatewayConfig struct {
	Enabled bool `json:"enabled"`
	// TimeoutSeconds bounds how long a REST caller waits for a reply.
	TimeoutSeconds int `json:"timeout_seconds"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

const (
	DefaultPort        = 8080
	DefaultLogLevel    = "info"
	DefaultRESTTimeout = 30
)

// DefaultPrefixes is used when the config names none.
var DefaultPrefixes = []string{"!"}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes raw JSON config after environment substitution and fills in
// defaults.
func Parse(data []byte) (*Config, error) {
	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}
	if len(c.Dispatch.Prefixes) == 0 {
		c.Dispatch.Prefixes = append([]string(nil), DefaultPrefixes...)
	}
	if c.Gateway.REST.TimeoutSeconds <= 0 {
		c.Gateway.REST.TimeoutSeconds = DefaultRESTTimeout
	}
	// Unset ${VAR:} references leave empty ids behind.
	c.Dispatch.Owners = compact(c.Dispatch.Owners)
	c.Dispatch.BlockedUsers = compact(c.Dispatch.BlockedUsers)
}

func compact(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
