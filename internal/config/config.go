package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "PODIUM"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "podium.db"
	defaultLogLevel          = "info"
	defaultCookieName        = "podium_session"
	defaultIssuer            = "podium-auth"
	defaultSyncTimeoutSecond = 30
	defaultSyncWorkers       = 4
	defaultSyncRatePerMinute = 6
)

// AppConfig captures runtime configuration for the API server and CLI commands.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	LogLevel          string
	AuthSigningSecret string
	AuthIssuer        string
	AuthCookieName    string
	SyncTimeout       time.Duration
	SyncWorkers       int
	SyncRatePerMinute int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultIssuer)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("sync.timeout_seconds", defaultSyncTimeoutSecond)
	configViper.SetDefault("sync.workers", defaultSyncWorkers)
	configViper.SetDefault("sync.rate_per_minute", defaultSyncRatePerMinute)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		AuthSigningSecret: configViper.GetString("auth.signing_secret"),
		AuthIssuer:        configViper.GetString("auth.issuer"),
		AuthCookieName:    configViper.GetString("auth.cookie_name"),
		SyncTimeout:       time.Duration(configViper.GetInt("sync.timeout_seconds")) * time.Second,
		SyncWorkers:       configViper.GetInt("sync.workers"),
		SyncRatePerMinute: configViper.GetInt("sync.rate_per_minute"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AuthIssuer) == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if strings.TrimSpace(c.AuthCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.SyncTimeout < 0 {
		return fmt.Errorf("sync.timeout_seconds must not be negative")
	}
	if c.SyncWorkers <= 0 {
		return fmt.Errorf("sync.workers must be positive")
	}
	if c.SyncRatePerMinute <= 0 {
		return fmt.Errorf("sync.rate_per_minute must be positive")
	}
	return nil
}
