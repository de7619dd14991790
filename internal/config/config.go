// Package config loads the server configuration from defaults, an optional
// YAML file and environment variables. The result is an explicit value that
// main passes down; nothing here is package-level mutable state.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Google   GoogleConfig   `mapstructure:"google"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// ExposeInternalErrors controls whether 500 responses carry the
	// underlying error text. Defaults to true outside production.
	ExposeInternalErrors bool `mapstructure:"expose_internal_errors"`
}

// DatabaseConfig holds database connection settings.
// Supports both PostgreSQL and SQLite backends.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`

	// URL is a full connection string and wins over the discrete fields.
	URL string `mapstructure:"url"`

	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// SQLite file path (used when Driver is "sqlite").
	Path string `mapstructure:"path"`

	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	// A URL escapes each field, so any byte is safe in the password.
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	switch {
	case c.Password != "":
		u.User = url.UserPassword(c.User, c.Password)
	case c.User != "":
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// AuthConfig holds session and password settings.
type AuthConfig struct {
	// JWTSecret signs session tokens. Required; at least 16 bytes.
	JWTSecret string `mapstructure:"jwt_secret"`

	// TokenTTL is the session lifetime. Zero issues tokens without expiry.
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// GoogleConfig holds Google OAuth settings. Sign-in with Google is
// registered only when ClientID and ClientSecret are both set.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
}

func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// CORSConfig lists the browser origins allowed to call the API with
// credentials. FrontendURL is also where OAuth callbacks land.
type CORSConfig struct {
	FrontendURL string   `mapstructure:"frontend_url"`
	Origins     []string `mapstructure:"origins"`
}

// AllowedOrigins returns Origins, falling back to FrontendURL.
func (c CORSConfig) AllowedOrigins() []string {
	if len(c.Origins) > 0 {
		return c.Origins
	}
	if c.FrontendURL != "" {
		return []string{c.FrontendURL}
	}
	return nil
}

// StorageConfig holds blob storage settings for uploaded images.
type StorageConfig struct {
	// Backend is "filesystem" or "s3".
	Backend        string          `mapstructure:"backend"`
	UploadDir      string          `mapstructure:"upload_dir"`
	PublicBaseURL  string          `mapstructure:"public_base_url"`
	MaxUploadBytes int64           `mapstructure:"max_upload_bytes"`
	S3             S3StorageConfig `mapstructure:"s3"`
}

// S3StorageConfig holds S3 backend settings. Endpoint is set for
// S3-compatible services (MinIO and friends) and switches on path-style URLs.
type S3StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
	PublicURL       string `mapstructure:"public_url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// IsProduction reports whether the server runs with production cookies
// and hidden internal errors.
func (c *Config) IsProduction() bool {
	return c.Server.Env == EnvProduction
}

// envBindings maps config keys to the environment variable names the
// deployment already uses.
var envBindings = map[string][]string{
	"server.port":                   {"PORT"},
	"server.env":                    {"APP_ENV", "NODE_ENV"},
	"server.expose_internal_errors": {"EXPOSE_INTERNAL_ERRORS"},
	"database.driver":               {"DB_DRIVER"},
	"database.url":                  {"DATABASE_URL"},
	"database.host":                 {"PG_HOST"},
	"database.port":                 {"PG_PORT"},
	"database.user":                 {"PG_USER"},
	"database.password":             {"PG_PASSWORD"},
	"database.database":             {"PG_DATABASE"},
	"database.ssl_mode":             {"PG_SSLMODE"},
	"database.path":                 {"DB_PATH"},
	"auth.jwt_secret":               {"JWT_SECRET"},
	"auth.token_ttl":                {"TOKEN_TTL"},
	"google.client_id":              {"GOOGLE_CLIENT_ID"},
	"google.client_secret":          {"GOOGLE_CLIENT_SECRET"},
	"google.callback_url":           {"GOOGLE_CALLBACK_URL"},
	"cors.frontend_url":             {"FRONTEND_URL"},
	"cors.origins":                  {"CORS_ORIGINS"},
	"storage.backend":               {"STORAGE_BACKEND"},
	"storage.upload_dir":            {"UPLOAD_DIR"},
	"storage.public_base_url":       {"PUBLIC_BASE_URL"},
	"storage.max_upload_bytes":      {"MAX_UPLOAD_BYTES"},
	"storage.s3.endpoint":           {"S3_ENDPOINT"},
	"storage.s3.region":             {"S3_REGION"},
	"storage.s3.bucket":             {"S3_BUCKET"},
	"storage.s3.access_key_id":      {"S3_ACCESS_KEY_ID"},
	"storage.s3.secret_access_key":  {"S3_SECRET_ACCESS_KEY"},
	"storage.s3.prefix":             {"S3_PREFIX"},
	"storage.s3.public_url":         {"S3_PUBLIC_URL"},
	"logging.level":                 {"LOG_LEVEL"},
	"logging.format":                {"LOG_FORMAT"},
	"metrics.enabled":               {"METRICS_ENABLED"},
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values. An empty
// configPath looks for config.yaml in . and ./configs and tolerates its absence.
func Load(configPath string) (*Config, error) {
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDatabase reads the same sources as Load but validates only the
// database section. Admin tooling uses it so it can run without the
// server's secrets.
func LoadDatabase(configPath string) (DatabaseConfig, error) {
	cfg, err := load(configPath)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if err := cfg.Database.Validate(); err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg.Database, nil
}

func load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if !v.IsSet("server.expose_internal_errors") {
		cfg.Server.ExposeInternalErrors = !cfg.IsProduction()
	}
	if cfg.Storage.PublicBaseURL == "" {
		cfg.Storage.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	cfg.Storage.PublicBaseURL = strings.TrimRight(cfg.Storage.PublicBaseURL, "/")
	if cfg.Google.CallbackURL == "" {
		cfg.Google.CallbackURL = cfg.Storage.PublicBaseURL + "/api/auth/google/callback"
	}
	cfg.CORS.Origins = splitOrigins(cfg.CORS.Origins)

	return &cfg, nil
}

// splitOrigins trims entries and also splits any that still hold commas,
// which happens when the list comes from a single env var.
func splitOrigins(in []string) []string {
	var out []string
	for _, o := range in {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.env", EnvDevelopment)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "blog")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.path", "./data/blog.db")
	v.SetDefault("database.retry_attempts", 5)
	v.SetDefault("database.retry_initial_delay", 200*time.Millisecond)

	v.SetDefault("auth.token_ttl", time.Duration(0))
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("cors.frontend_url", "http://localhost:5173")

	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.upload_dir", "./data/uploads")
	v.SetDefault("storage.max_upload_bytes", 5*1024*1024)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.prefix", "blog")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// MinSecretLength is the shortest accepted JWT signing secret.
const MinSecretLength = 16

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.Env != EnvDevelopment && c.Server.Env != EnvProduction {
		return fmt.Errorf("server.env must be %q or %q", EnvDevelopment, EnvProduction)
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) is required")
	}
	if len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinSecretLength)
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must not be negative")
	}
	// The session cookie's Max-Age is whole seconds.
	if c.Auth.TokenTTL > 0 && c.Auth.TokenTTL < time.Second {
		return fmt.Errorf("auth.token_ttl must be 0 or at least 1s")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}

	switch c.Storage.Backend {
	case "filesystem":
		if c.Storage.UploadDir == "" {
			return fmt.Errorf("storage.upload_dir is required for filesystem backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for s3 backend")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required for s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend must be 'filesystem' or 's3'")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage.max_upload_bytes must be positive")
	}
	if _, err := url.Parse(c.Storage.PublicBaseURL); err != nil {
		return fmt.Errorf("storage.public_base_url: %w", err)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}

	return nil
}

// Validate checks the database section on its own.
func (c DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres":
		if c.URL == "" {
			if c.Host == "" || c.User == "" || c.Database == "" {
				return fmt.Errorf("postgres driver needs DATABASE_URL or database.host, database.user and database.database")
			}
		}
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("database.path is required for sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("database.retry_attempts must be at least 1")
	}
	return nil
}
