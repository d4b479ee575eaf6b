package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.1.0"

// Current version of the config files.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Bot    BotConfig
}

// CommonConfig contains configuration shared between the bot and the CLI tools.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	GeminiAI   GeminiAI   `koanf:"gemini_ai"`
	Loki       Loki       `koanf:"loki"`
	Uptrace    Uptrace    `koanf:"uptrace"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Discord configuration.
	Discord Discord `koanf:"discord"`
	// Moderation engine configuration.
	Moderation Moderation `koanf:"moderation"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// GeminiAI contains Gemini API configuration for the toxicity classifier.
type GeminiAI struct {
	APIKey string `koanf:"api_key"` // API key for authentication
	Model  string `koanf:"model"`   // Model version to use
	// Maximum concurrent classifier requests.
	MaxConcurrent int64 `koanf:"max_concurrent"`
}

// Loki contains Grafana Loki logging configuration.
type Loki struct {
	// Enable Loki integration
	Enabled bool `koanf:"enabled"`
	// Loki server URL (without /loki/api/v1/push suffix)
	URL string `koanf:"url"`
	// Maximum number of log entries per batch
	BatchMaxSize int `koanf:"batch_max_size"`
	// Maximum time to wait before sending a batch (in milliseconds)
	BatchMaxWaitMS int `koanf:"batch_max_wait_ms"`
	// Labels added to all log streams
	Labels map[string]string `koanf:"labels"`
	// Basic authentication username (optional)
	Username string `koanf:"username"`
	// Basic authentication password (optional)
	Password string `koanf:"password"`
}

// Uptrace contains OpenTelemetry export configuration.
type Uptrace struct {
	// DSN of the Uptrace project. Tracing export is disabled when empty.
	DSN string `koanf:"dsn"`
	// Service name reported with every span.
	ServiceName string `koanf:"service_name"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
}

// LoadConfig loads the configuration from the config search paths.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".toxguard",
		homeDir + "/.toxguard/config",
		"/etc/toxguard/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, configName := range []string{"common", "bot"} {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	config, err := unmarshal(k)
	if err != nil {
		return nil, "", err
	}

	return config, usedConfigPath, nil
}

// LoadConfigFrom loads the common and bot configuration from explicit file paths.
func LoadConfigFrom(commonPath, botPath string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range []string{commonPath, botPath} {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrConfigFileNotFound, path, err)
		}
	}

	return unmarshal(k)
}

// unmarshal decodes the loaded files, applies defaults and validates the result.
func unmarshal(k *koanf.Koanf) (*Config, error) {
	config := Config{
		Bot: BotConfig{
			RequestTimeout: 10000,
			Moderation:     DefaultModeration(),
		},
	}
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, err
	}

	if err := config.Bot.Moderation.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/toxguard/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
