package config

import (
	"fmt"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Session     SessionConfig  `yaml:"session"`
	Provider    ProviderConfig `yaml:"provider"`
	Exchange    ExchangeConfig `yaml:"exchange"`
	Identity    IdentityConfig `yaml:"identity"`
	Status      StatusConfig   `yaml:"status"`
	Logging     LoggingConfig  `yaml:"logging"`
	Templates   TemplateConfig `yaml:"templates"`
	Environment string         `yaml:"environment" default:"local"` // local, dev, prod
	NodeID      int64          `yaml:"node_id" validate:"gte=0,lte=1023"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string `yaml:"host" default:"localhost"`
	Port          int    `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	PublicBaseURL string `yaml:"public_base_url" validate:"required,url"`
	LoginURL      string `yaml:"login_url" default:"/login" validate:"required"`
	DashboardPath string `yaml:"dashboard_path" default:"/dashboard" validate:"required,startswith=/"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432" validate:"gte=1,lte=65535"`
	Database string `yaml:"database" default:"creatorlink" validate:"required"`
	User     string `yaml:"user" default:"postgres" validate:"required"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

// SessionConfig holds cookie session configuration
type SessionConfig struct {
	Secret        string        `yaml:"secret"`                                      // 32-byte base64-encoded
	JWTSigningKey string        `yaml:"jwt_signing_key" validate:"required,min=32"` // HS256 key shared with the login service
	PendingTTL    time.Duration `yaml:"pending_ttl" default:"1h" validate:"gt=0"`     // lifetime of the long-lived link scope
	SecureCookies bool          `yaml:"secure_cookies"`
	// StateLedger is where redeemed state tokens are recorded: postgres is
	// shared by all instances, memory only guards a single process
	StateLedger string `yaml:"state_ledger" default:"postgres" validate:"oneof=postgres memory"`
}

// ProviderConfig holds the external creator platform's OAuth configuration
type ProviderConfig struct {
	Name         string   `yaml:"name" default:"tiktok" validate:"required"`
	ClientKey    string   `yaml:"client_key" validate:"required"`
	ClientSecret string   `yaml:"client_secret,omitempty"` // only needed for direct exchange
	AuthorizeURL string   `yaml:"authorize_url" validate:"required,url"`
	TokenURL     string   `yaml:"token_url" validate:"omitempty,url"`
	UserInfoURL  string   `yaml:"userinfo_url" validate:"omitempty,url"`
	RedirectURI  string   `yaml:"redirect_uri" validate:"required,url"`
	Scopes       []string `yaml:"scopes" validate:"min=1"`
}

// ExchangeConfig selects how authorization codes are exchanged
type ExchangeConfig struct {
	Mode       string        `yaml:"mode" default:"backend" validate:"oneof=backend direct"`
	BackendURL string        `yaml:"backend_url" validate:"omitempty,url"`
	Timeout    time.Duration `yaml:"timeout" default:"15s" validate:"gt=0"`
}

// IdentityConfig bounds how long the callback waits for a rehydrating session
type IdentityConfig struct {
	Attempts int           `yaml:"attempts" default:"3" validate:"gte=1"`
	Delay    time.Duration `yaml:"delay" default:"1s" validate:"gte=0"`
}

// StatusConfig holds the connection status cache configuration
type StatusConfig struct {
	CacheSize int           `yaml:"cache_size" default:"1024" validate:"gte=1"`
	CacheTTL  time.Duration `yaml:"cache_ttl" default:"30s" validate:"gt=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`  // debug, info, warn, error
	Format string `yaml:"format" default:"json"` // json, text
}

// TemplateConfig holds template loading configuration
type TemplateConfig struct {
	Path string `yaml:"path" default:"web/templates"`
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
