package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL           = "https://api.linear.app/graphql"
	DefaultDBFileName       = ".mobridge.db"
	DefaultLogLevel         = "info"
	DefaultWebhookPort      = 7933
	DefaultWebhookPath      = "/webhook"
	DefaultHeartbeatSeconds = 30

	configDirEnvKey      = "MOBRIDGE_CONFIG_DIR"
	apiURLEnvKey         = "MOBRIDGE_API_URL"
	dbPathEnvKey         = "MOBRIDGE_DB"
	apiKeyEnvKey         = "MOBRIDGE_API_KEY"
	teamIDEnvKey         = "MOBRIDGE_TEAM_ID"
	webhookEnabledEnvKey = "MOBRIDGE_WEBHOOK_ENABLED"
	webhookPortEnvKey    = "MOBRIDGE_WEBHOOK_PORT"

	configFileName = ".mobridge.toml"
)

// WebhookConfig defines runtime configuration for the webhook listener.
type WebhookConfig struct {
	Enabled   bool   `toml:"enabled"`
	Port      int    `toml:"port"`
	Path      string `toml:"path"`
	PublicURL string `toml:"public_url"`
}

// Config defines runtime configuration for mobridge.
type Config struct {
	APIURL           string        `toml:"api_url"`
	DBPath           string        `toml:"db_path"`
	LogLevel         string        `toml:"log_level"`
	DefaultTeamID    string        `toml:"default_team_id"`
	HeartbeatSeconds int           `toml:"heartbeat_seconds"`
	Webhook          WebhookConfig `toml:"webhook"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:           DefaultAPIURL,
		DBPath:           "",
		LogLevel:         DefaultLogLevel,
		HeartbeatSeconds: DefaultHeartbeatSeconds,
		Webhook: WebhookConfig{
			Enabled: false,
			Port:    DefaultWebhookPort,
			Path:    DefaultWebhookPath,
		},
	}
}

// EnvAPIKey returns the API credential supplied via environment for
// headless bootstrapping, if any.
func EnvAPIKey() string {
	return strings.TrimSpace(os.Getenv(apiKeyEnvKey))
}

// EnvTeamID returns the default team scope supplied via environment, if any.
func EnvTeamID() string {
	return strings.TrimSpace(os.Getenv(teamIDEnvKey))
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"default_team_id",
	"heartbeat_seconds",
	"webhook.enabled",
	"webhook.port",
	"webhook.path",
	"webhook.public_url",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "default_team_id":
		return c.DefaultTeamID, nil
	case "heartbeat_seconds":
		return strconv.Itoa(c.HeartbeatSeconds), nil
	case "webhook.enabled":
		return strconv.FormatBool(c.Webhook.Enabled), nil
	case "webhook.port":
		return strconv.Itoa(c.Webhook.Port), nil
	case "webhook.path":
		return c.Webhook.Path, nil
	case "webhook.public_url":
		return c.Webhook.PublicURL, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from the global file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		if _, err := loadFileIfExists(filepath.Join(home, configFileName), &cfg); err != nil {
			return nil, err
		}
	}

	if cfg.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DBPath = filepath.Join(home, DefaultDBFileName)
		}
	}

	if apiURL := strings.TrimSpace(os.Getenv(apiURLEnvKey)); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := strings.TrimSpace(os.Getenv(dbPathEnvKey)); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if teamID := EnvTeamID(); teamID != "" {
		cfg.DefaultTeamID = teamID
	}
	if raw := strings.TrimSpace(os.Getenv(webhookEnabledEnvKey)); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.Webhook.Enabled = parsed
		}
	}
	if raw := strings.TrimSpace(os.Getenv(webhookPortEnvKey)); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			cfg.Webhook.Port = parsed
		}
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "heartbeat_seconds", "webhook.port":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "webhook.enabled":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

// WebhookPublicURL returns the externally reachable delivery URL for the
// webhook listener, or empty when no public URL is configured.
func (c *Config) WebhookPublicURL() string {
	base := strings.TrimSpace(c.Webhook.PublicURL)
	if base == "" {
		return ""
	}
	base = strings.TrimRight(base, "/")
	path := c.Webhook.Path
	if path == "" {
		path = DefaultWebhookPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if strings.HasSuffix(base, path) {
		return base
	}
	return base + path
}

func (c *Config) normalizeDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.HeartbeatSeconds <= 0 {
		c.HeartbeatSeconds = DefaultHeartbeatSeconds
	}
	if c.Webhook.Port <= 0 {
		c.Webhook.Port = DefaultWebhookPort
	}
	if c.Webhook.Path == "" {
		c.Webhook.Path = DefaultWebhookPath
	}
	if !strings.HasPrefix(c.Webhook.Path, "/") {
		c.Webhook.Path = "/" + c.Webhook.Path
	}
}
