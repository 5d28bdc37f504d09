package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"inpatient-hub/backend/internal/access"
	"inpatient-hub/backend/pkg/models"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Port            int           `mapstructure:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	App struct {
		DefaultVersion string `mapstructure:"default_version"`
		SitePassword   string `mapstructure:"site_password"`
	} `mapstructure:"app"`
	Storage struct {
		Driver string `mapstructure:"driver"`
	} `mapstructure:"storage"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Session struct {
		Store string        `mapstructure:"store"`
		TTL   time.Duration `mapstructure:"ttl"`
	} `mapstructure:"session"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"redis"`
	Auth struct {
		Mode            string `mapstructure:"mode"`
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	Seed struct {
		File string `mapstructure:"file"`
	} `mapstructure:"seed"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

const (
	EnvPrefix = "INPATIENT_HUB"

	DefaultPort            = 8080
	DefaultTLSPort         = 8443
	DefaultShutdownTimeout = 30 * time.Second
	DefaultLogLevel        = "info"
	DefaultVersion         = string(models.VersionMax)
	DefaultSessionTTL      = 12 * time.Hour
	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisPrefix     = "inpatient-hub"
	MaxTCPPort             = 65535

	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	AuthModeRoster = "roster"
	AuthModeOIDC   = "oidc"
)

var (
	ErrInvalidPort           = errors.New("invalid server port")
	ErrInvalidDefaultVersion = errors.New("unknown default app version")
	ErrInvalidStorageDriver  = errors.New("unknown storage driver")
	ErrInvalidSessionStore   = errors.New("unknown session store")
	ErrInvalidSessionTTL     = errors.New("session ttl must be positive")
	ErrInvalidAuthMode       = errors.New("unknown auth mode")
	ErrIncompleteOIDC        = errors.New("oidc auth configuration is incomplete")
	ErrIncompleteTLS         = errors.New("tls enabled but cert/key file not provided")
)

// LoadConfig loads the configuration from a file and the environment. An
// empty path searches for config.yaml in . and ./config; a missing file is
// not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "PROD")
	v.SetDefault("dev_mode_bypass", false)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("app.default_version", DefaultVersion)
	v.SetDefault("app.site_password", "")
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "inpatient_hub")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("session.store", DriverMemory)
	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", DefaultRedisPrefix)
	v.SetDefault("auth.mode", AuthModeRoster)
	v.SetDefault("auth.okta_domain", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.redirect_url", "")
	v.SetDefault("auth.swagger_client_id", "")
	v.SetDefault("seed.file", "")
	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
}

// Validate checks that the configuration can start a server
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}
	if _, ok := access.ParseVersion(c.App.DefaultVersion); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDefaultVersion, c.App.DefaultVersion)
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStorageDriver, c.Storage.Driver)
	}
	switch c.Session.Store {
	case DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSessionStore, c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return ErrInvalidSessionTTL
	}
	switch c.Auth.Mode {
	case AuthModeRoster:
	case AuthModeOIDC:
		if !c.AuthBypass() && (c.Auth.OktaDomain == "" || c.Auth.ClientID == "" ||
			c.Auth.ClientSecret == "" || c.Auth.RedirectURL == "") {
			return ErrIncompleteOIDC
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAuthMode, c.Auth.Mode)
	}
	if c.TLS.Enable && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return ErrIncompleteTLS
	}
	return nil
}

// IsDev reports whether the service runs in the development environment
func (c *Config) IsDev() bool {
	return strings.ToUpper(c.Environment) == "DEV"
}

// AuthBypass reports whether requests skip authentication entirely
func (c *Config) AuthBypass() bool {
	return c.IsDev() && c.DevModeBypass
}

// DefaultAppVersion returns the configured default tier
func (c *Config) DefaultAppVersion() models.AppVersion {
	return models.AppVersion(c.App.DefaultVersion)
}

// DSN returns the PostgreSQL connection string
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

// ListenAddr returns the address the HTTP server binds to
func (c *Config) ListenAddr() string {
	if c.TLS.Enable && c.Server.Port == DefaultPort {
		return fmt.Sprintf(":%d", DefaultTLSPort)
	}
	return fmt.Sprintf(":%d", c.Server.Port)
}

// normalizeOktaIssuer ensures the provided Okta issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
