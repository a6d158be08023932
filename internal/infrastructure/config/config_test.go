package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJWTSecret = "test-secret-key-at-least-32-chars!"

// clearEnv blanks every variable Load consults so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CUSTOMO_ENV", "NODE_ENV", "CUSTOMO_DATABASE_PATH", "DATABASE_PATH",
		"CUSTOMO_API_HOST", "CUSTOMO_API_PORT", "PORT", "CUSTOMO_FRONTEND_URL", "FRONTEND_URL",
		"CUSTOMO_JWT_SECRET", "JWT_SECRET", "CUSTOMO_JWT_EXPIRES_IN", "JWT_EXPIRES_IN",
		"CUSTOMO_JWT_ISSUER", "CUSTOMO_JWT_AUDIENCE", "CUSTOMO_ADMIN_EMAIL", "CUSTOMO_ADMIN_PASSWORD",
		"RATE_LIMIT_WINDOW_MS", "RATE_LIMIT_MAX_REQUESTS",
		"CUSTOMO_MQTT_HOST", "CUSTOMO_MQTT_USERNAME", "CUSTOMO_MQTT_PASSWORD", "CUSTOMO_INFLUXDB_TOKEN",
		"STRIPE_SECRET_KEY", "CLOUDINARY_API_SECRET", "SMTP_PASSWORD",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
environment: production
database:
  path: "/tmp/customo-test.db"
api:
  port: 8081
  cors:
    allowed_origins: ["https://shop.example.com"]
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
    issuer: "issuer-a"
    audience: "aud-a"
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/customo-test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.API.Port != 8081 {
		t.Errorf("API.Port = %d, want 8081", cfg.API.Port)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	if got := cfg.API.CORS.AllowedOrigins; len(got) != 1 || got[0] != "https://shop.example.com" {
		t.Errorf("AllowedOrigins = %v", got)
	}
	if cfg.Security.JWT.Issuer != "issuer-a" || cfg.Security.JWT.Audience != "aud-a" {
		t.Errorf("issuer/audience = %q/%q", cfg.Security.JWT.Issuer, cfg.Security.JWT.Audience)
	}
	// Defaults survive a partial file.
	if cfg.Security.Password.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want default 12", cfg.Security.Password.BcryptCost)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	t.Run("required file", func(t *testing.T) {
		if _, err := Load("/nonexistent/path/config.yaml", false); err == nil {
			t.Error("Load() expected error for missing file, got nil")
		}
	})

	t.Run("optional file falls back to env", func(t *testing.T) {
		t.Setenv("JWT_SECRET", validJWTSecret)
		cfg, err := Load("/nonexistent/path/config.yaml", true)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Security.JWT.Secret != validJWTSecret {
			t.Error("JWT secret not taken from environment")
		}
	})
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "invalid: [yaml: content")

	if _, err := Load(path, false); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
`)

	_, err := Load(path, false)
	if err == nil {
		t.Fatal("Load() expected validation error for missing jwt secret, got nil")
	}
	if !strings.Contains(err.Error(), "jwt.secret") {
		t.Errorf("error = %v, want mention of jwt.secret", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "unknown environment", mutate: func(c *Config) { c.Environment = "staging" }, wantErr: true},
		{name: "empty database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "port zero", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "short secret", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Security.JWT.TokenTTL = 0 }, wantErr: true},
		{name: "missing audience", mutate: func(c *Config) { c.Security.JWT.Audience = "" }, wantErr: true},
		{name: "bcrypt cost too low", mutate: func(c *Config) { c.Security.Password.BcryptCost = 4 }, wantErr: true},
		{name: "rate limit without window", mutate: func(c *Config) { c.RateLimit.Auth.WindowSeconds = 0 }, wantErr: true},
		{name: "disabled rate limit ignores window", mutate: func(c *Config) {
			c.RateLimit.Products.Enabled = false
			c.RateLimit.Products.WindowSeconds = 0
		}},
		{name: "threshold out of range", mutate: func(c *Config) { c.Devices.LowBatteryThreshold = 101 }, wantErr: true},
		{name: "mqtt bad qos", mutate: func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.QoS = 3
		}, wantErr: true},
		{name: "mqtt disabled ignores qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }},
		{name: "influx without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "influx zero batch", mutate: func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://localhost:8086"
			c.InfluxDB.BatchSize = 0
		}, wantErr: true},
		{name: "influx zero connect timeout", mutate: func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://localhost:8086"
			c.InfluxDB.ConnectTimeout = 0
		}, wantErr: true},
		{name: "influx enabled with defaults", mutate: func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://localhost:8086"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = validJWTSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NODE_ENV", "Production")
	t.Setenv("PORT", "7000")
	t.Setenv("FRONTEND_URL", "https://a.example.com, https://b.example.com")
	t.Setenv("JWT_SECRET", validJWTSecret)
	t.Setenv("JWT_EXPIRES_IN", "2d")
	t.Setenv("DATABASE_PATH", "/var/lib/customo.db")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "60000")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "5")

	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Environment != EnvProduction {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.API.Port != 7000 {
		t.Errorf("API.Port = %d", cfg.API.Port)
	}
	if len(cfg.API.CORS.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.API.CORS.AllowedOrigins)
	}
	if cfg.GetTokenTTL() != 48*time.Hour {
		t.Errorf("GetTokenTTL() = %v, want 48h", cfg.GetTokenTTL())
	}
	if cfg.Database.Path != "/var/lib/customo.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.RateLimit.Auth.Window() != time.Minute || cfg.RateLimit.Products.MaxRequests != 5 {
		t.Errorf("rate limits = %+v", cfg.RateLimit)
	}

	t.Run("prefixed variable wins", func(t *testing.T) {
		t.Setenv("CUSTOMO_API_PORT", "7100")
		cfg := defaultConfig()
		if err := applyEnvOverrides(cfg); err != nil {
			t.Fatalf("applyEnvOverrides() error = %v", err)
		}
		if cfg.API.Port != 7100 {
			t.Errorf("API.Port = %d, want 7100", cfg.API.Port)
		}
	})

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("CUSTOMO_API_PORT", "http")
		if err := applyEnvOverrides(defaultConfig()); err == nil {
			t.Error("expected error for non-numeric port")
		}
	})
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"7d", 7 * 24 * 60, false},
		{"168h", 7 * 24 * 60, false},
		{"90m", 90, false},
		{"soon", 0, true},
		{"xd", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTTL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTTL(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseTTL(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.GetTokenTTL() != 7*24*time.Hour {
		t.Errorf("default token TTL = %v, want 7 days", cfg.GetTokenTTL())
	}
	if cfg.Devices.LowBatteryThreshold != 20 {
		t.Errorf("LowBatteryThreshold = %d, want 20", cfg.Devices.LowBatteryThreshold)
	}
	if cfg.Addr() != "0.0.0.0:5000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.GetReadTimeout() != 30*time.Second || cfg.GetIdleTimeout() != 120*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.GetReadTimeout(), cfg.GetIdleTimeout())
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("optional integrations should be disabled by default")
	}
}
