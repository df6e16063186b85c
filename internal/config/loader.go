package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"./configs/development.yaml",
	"/etc/creatorlink/config.yaml",
	"/etc/creatorlink/config.yml",
}

// Defaults returns a configuration populated with default values only
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "localhost",
			Port:          8080,
			PublicBaseURL: "http://localhost:8080",
			LoginURL:      "/login",
			DashboardPath: "/dashboard",
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "creatorlink",
				User:     "postgres",
				SSLMode:  "disable",
			},
		},
		Session: SessionConfig{
			PendingTTL:  time.Hour,
			StateLedger: "postgres",
		},
		Provider: ProviderConfig{
			Name:         "tiktok",
			AuthorizeURL: "https://www.tiktok.com/v2/auth/authorize/",
			TokenURL:     "https://open.tiktokapis.com/v2/oauth/token/",
			UserInfoURL:  "https://open.tiktokapis.com/v2/user/info/",
			RedirectURI:  "http://localhost:8080/link/tiktok/callback",
			Scopes:       []string{"user.info.basic", "user.info.profile", "user.info.stats"},
		},
		Exchange: ExchangeConfig{
			Mode:    "backend",
			Timeout: 15 * time.Second,
		},
		Identity: IdentityConfig{
			Attempts: 3,
			Delay:    time.Second,
		},
		Status: StatusConfig{
			CacheSize: 1024,
			CacheTTL:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Templates: TemplateConfig{
			Path: "web/templates",
		},
		Environment: "local",
	}
}

// Load loads the configuration from the specified file or default locations.
// Order: defaults, YAML file, environment variables, validation.
func Load(configPath string) (*Config, error) {
	// A missing .env is fine
	_ = godotenv.Load()

	config := Defaults()

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" && fileExists(configPath) {
		slog.Info("loading config", slog.String("path", configPath))
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		slog.Info("no config file found, using defaults")
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides lets environment variables take precedence over the file
func applyEnvOverrides(config *Config) error {
	if v := os.Getenv("CREATORLINK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CREATORLINK_PORT: %w", err)
		}
		config.Server.Port = port
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		config.Database.Postgres.Password = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		config.Session.Secret = v
	}
	if v := os.Getenv("SESSION_JWT_SIGNING_KEY"); v != "" {
		config.Session.JWTSigningKey = v
	}
	if v := os.Getenv("PROVIDER_CLIENT_KEY"); v != "" {
		config.Provider.ClientKey = v
	}
	if v := os.Getenv("PROVIDER_CLIENT_SECRET"); v != "" {
		config.Provider.ClientSecret = v
	}
	if v := os.Getenv("EXCHANGE_BACKEND_URL"); v != "" {
		config.Exchange.BackendURL = v
	}
	if v := os.Getenv("EXCHANGE_MODE"); v != "" {
		config.Exchange.Mode = strings.ToLower(v)
	}
	return nil
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return !info.IsDir()
}

// validate checks struct tags plus exchange mode requirements
func validate(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}

	// Cross-field checks the struct tags can't express
	switch config.Exchange.Mode {
	case "backend":
		if config.Exchange.BackendURL == "" {
			return fmt.Errorf("exchange.backend_url is required when exchange.mode is backend")
		}
	case "direct":
		if config.Provider.ClientSecret == "" {
			return fmt.Errorf("provider.client_secret is required when exchange.mode is direct")
		}
		if config.Provider.TokenURL == "" || config.Provider.UserInfoURL == "" {
			return fmt.Errorf("provider.token_url and provider.userinfo_url are required when exchange.mode is direct")
		}
	}

	return nil
}
