package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment names recognised by Config.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the root configuration structure for Customo Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Environment string          `yaml:"environment"`
	Database    DatabaseConfig  `yaml:"database"`
	API         APIConfig       `yaml:"api"`
	WebSocket   WebSocketConfig `yaml:"websocket"`
	Security    SecurityConfig  `yaml:"security"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Devices     DevicesConfig   `yaml:"devices"`
	MQTT        MQTTConfig      `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig  `yaml:"influxdb"`
	Logging     LoggingConfig   `yaml:"logging"`
	External    ExternalConfig  `yaml:"external"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains device channel settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// SecurityConfig contains token, password and bootstrap admin settings.
type SecurityConfig struct {
	JWT      JWTConfig      `yaml:"jwt"`
	Password PasswordConfig `yaml:"password"`
	Admin    AdminConfig    `yaml:"admin"`
}

// JWTConfig contains bearer token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// TokenTTL is the token lifetime in minutes.
	TokenTTL int    `yaml:"token_ttl"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// PasswordConfig contains password hashing settings.
type PasswordConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// AdminConfig describes the administrator account seeded into an empty database.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// RateLimitConfig groups the per-route-family request limits.
type RateLimitConfig struct {
	Auth     RateLimitRule `yaml:"auth"`
	Products RateLimitRule `yaml:"products"`
}

// RateLimitRule allows MaxRequests per WindowSeconds for each client.
type RateLimitRule struct {
	Enabled       bool `yaml:"enabled"`
	WindowSeconds int  `yaml:"window_seconds"`
	MaxRequests   int  `yaml:"max_requests"`
}

// DevicesConfig contains device registry tuning.
type DevicesConfig struct {
	LowBatteryThreshold int `yaml:"low_battery_threshold"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`     // points per batch
	FlushInterval int    `yaml:"flush_interval"` // seconds
	// ConnectTimeout bounds the startup ping and each health check (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ExternalConfig carries credentials for collaborators that live outside
// this service (payment gateway, CDN uploads, transactional email). They are
// parsed so deployments can share one config file, but nothing here calls out.
type ExternalConfig struct {
	Payment PaymentConfig `yaml:"payment"`
	Storage StorageConfig `yaml:"storage"`
	Email   EmailConfig   `yaml:"email"`
}

// PaymentConfig holds payment provider credentials.
type PaymentConfig struct {
	SecretKey      string `yaml:"secret_key"`
	PublishableKey string `yaml:"publishable_key"`
	WebhookSecret  string `yaml:"webhook_secret"`
}

// StorageConfig holds file storage credentials.
type StorageConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// EmailConfig holds SMTP credentials.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// When optional is true a missing file is not an error: defaults and
// environment variables are used on their own. This is how the binary runs
// in containers configured purely through the environment.
//
// Environment variables follow the pattern CUSTOMO_SECTION_KEY. The
// conventional names used by the storefront deployment (PORT, JWT_SECRET,
// FRONTEND_URL, DATABASE_PATH, NODE_ENV, ...) are honoured as well.
func Load(path string, optional bool) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
		// defaults + env only
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Database: DatabaseConfig{
			Path:        "./data/customo.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  120,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:5173"},
			},
			MaxBodyBytes: 10 << 20,
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				TokenTTL: 7 * 24 * 60,
				Issuer:   "customo-api",
				Audience: "customo-clients",
			},
			Password: PasswordConfig{
				BcryptCost: 12,
			},
			Admin: AdminConfig{
				Email: "admin@customo.local",
			},
		},
		RateLimit: RateLimitConfig{
			Auth: RateLimitRule{
				Enabled:       true,
				WindowSeconds: 900,
				MaxRequests:   20,
			},
			Products: RateLimitRule{
				Enabled:       true,
				WindowSeconds: 900,
				MaxRequests:   100,
			},
		},
		Devices: DevicesConfig{
			LowBatteryThreshold: 20,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "customo-core",
			},
			QoS:         1,
			TopicPrefix: "customo",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Org:            "customo",
			Bucket:         "devices",
			BatchSize:      100,
			FlushInterval:  10,
			ConnectTimeout: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// The first non-empty variable in each list wins.
func applyEnvOverrides(cfg *Config) error {
	if v := firstEnv("CUSTOMO_ENV", "NODE_ENV"); v != "" {
		cfg.Environment = strings.ToLower(v)
	}

	// Database
	if v := firstEnv("CUSTOMO_DATABASE_PATH", "DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("CUSTOMO_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := firstEnv("CUSTOMO_API_PORT", "PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("api port %q: %w", v, err)
		}
		cfg.API.Port = port
	}
	if v := firstEnv("CUSTOMO_FRONTEND_URL", "FRONTEND_URL"); v != "" {
		cfg.API.CORS.AllowedOrigins = splitList(v)
	}

	// Security
	if v := firstEnv("CUSTOMO_JWT_SECRET", "JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := firstEnv("CUSTOMO_JWT_EXPIRES_IN", "JWT_EXPIRES_IN"); v != "" {
		ttl, err := parseTTL(v)
		if err != nil {
			return fmt.Errorf("jwt expiry %q: %w", v, err)
		}
		cfg.Security.JWT.TokenTTL = ttl
	}
	if v := os.Getenv("CUSTOMO_JWT_ISSUER"); v != "" {
		cfg.Security.JWT.Issuer = v
	}
	if v := os.Getenv("CUSTOMO_JWT_AUDIENCE"); v != "" {
		cfg.Security.JWT.Audience = v
	}
	if v := os.Getenv("CUSTOMO_ADMIN_EMAIL"); v != "" {
		cfg.Security.Admin.Email = v
	}
	if v := os.Getenv("CUSTOMO_ADMIN_PASSWORD"); v != "" {
		cfg.Security.Admin.Password = v
	}

	// Rate limiting applies the same window/max to both route families, as
	// the storefront's single limiter did.
	if v := os.Getenv("RATE_LIMIT_WINDOW_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("rate limit window %q: %w", v, err)
		}
		cfg.RateLimit.Auth.WindowSeconds = ms / 1000
		cfg.RateLimit.Products.WindowSeconds = ms / 1000
	}
	if v := os.Getenv("RATE_LIMIT_MAX_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("rate limit max %q: %w", v, err)
		}
		cfg.RateLimit.Auth.MaxRequests = n
		cfg.RateLimit.Products.MaxRequests = n
	}

	// MQTT
	if v := os.Getenv("CUSTOMO_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CUSTOMO_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CUSTOMO_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CUSTOMO_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// External collaborators
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		cfg.External.Payment.SecretKey = v
	}
	if v := os.Getenv("CLOUDINARY_API_SECRET"); v != "" {
		cfg.External.Storage.APISecret = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.External.Email.Password = v
	}

	return nil
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	switch c.Environment {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, "environment must be development, production or test")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.JWT.TokenTTL <= 0 {
		errs = append(errs, "security.jwt.token_ttl must be positive")
	}
	if c.Security.JWT.Issuer == "" || c.Security.JWT.Audience == "" {
		errs = append(errs, "security.jwt.issuer and security.jwt.audience are required")
	}

	const minBcryptCost, maxBcryptCost = 10, 31
	if c.Security.Password.BcryptCost < minBcryptCost || c.Security.Password.BcryptCost > maxBcryptCost {
		errs = append(errs, "security.password.bcrypt_cost must be between 10 and 31")
	}

	for name, rule := range map[string]RateLimitRule{"auth": c.RateLimit.Auth, "products": c.RateLimit.Products} {
		if rule.Enabled && (rule.WindowSeconds <= 0 || rule.MaxRequests <= 0) {
			errs = append(errs, fmt.Sprintf("rate_limit.%s needs a positive window and max", name))
		}
	}

	if c.Devices.LowBatteryThreshold < 0 || c.Devices.LowBatteryThreshold > 100 {
		errs = append(errs, "devices.low_battery_threshold must be between 0 and 100")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.BatchSize <= 0 {
			errs = append(errs, "influxdb.batch_size must be positive")
		}
		if c.InfluxDB.FlushInterval <= 0 {
			errs = append(errs, "influxdb.flush_interval must be positive")
		}
		if c.InfluxDB.ConnectTimeout <= 0 {
			errs = append(errs, "influxdb.connect_timeout must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsProduction reports whether error details must be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTokenTTL returns the bearer token lifetime.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.TokenTTL) * time.Minute
}

// Window returns the rule's window as a Duration.
func (r RateLimitRule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseTTL accepts a Go duration ("168h") or the "7d" shorthand and returns minutes.
func parseTTL(v string) (int, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return n * 24 * 60, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return int(d / time.Minute), nil
}
