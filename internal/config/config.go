// Package config loads client settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/erazemk/izposoja/internal/guard"
	"github.com/erazemk/izposoja/internal/logger"
	"github.com/erazemk/izposoja/internal/tokenstore"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "IZPOSOJA"

// Token store backends.
const (
	TokenStoreSQLite = "sqlite"
	TokenStoreRedis  = "redis"
)

// ConfigurationError reports a missing or invalid setting. It is fatal at
// startup.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s_%s %s", EnvPrefix, strings.ToUpper(e.Key), e.Reason)
}

// Config holds every client setting.
type Config struct {
	APIBaseURL     string
	ItemsPerPage   int
	RequestTimeout time.Duration

	TokenStore string
	TokenDB    string
	RedisAddr  string
	TokenKey   string

	Locale        language.Tag
	SessionExpiry guard.ExpiryPolicy

	Log logger.Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("items_per_page", "10")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("token_store", TokenStoreSQLite)
	v.SetDefault("token_db", defaultTokenDB())
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("token_key", tokenstore.DefaultKey)
	v.SetDefault("locale", "en")
	v.SetDefault("session_expiry", string(guard.ExpiryLazy))
	v.SetDefault("log_level", logger.DefaultConfig().Level)
	v.SetDefault("log_format", logger.DefaultConfig().Format)
}

func defaultTokenDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "izposoja.db"
	}
	return filepath.Join(dir, "izposoja", "state.db")
}

// Load reads the configuration. The given .env files (".env" when none are
// given) are loaded first if they exist; variables already set in the
// environment take precedence over them.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		TokenStore: strings.ToLower(v.GetString("token_store")),
		TokenDB:    v.GetString("token_db"),
		RedisAddr:  v.GetString("redis_addr"),
		TokenKey:   v.GetString("token_key"),
		Log: logger.Config{
			Level:  v.GetString("log_level"),
			Format: strings.ToLower(v.GetString("log_format")),
		},
	}

	cfg.APIBaseURL = strings.TrimSpace(v.GetString("api_base_url"))
	if cfg.APIBaseURL == "" {
		return nil, &ConfigurationError{Key: "api_base_url", Reason: "is required"}
	}
	if u, err := url.Parse(cfg.APIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ConfigurationError{Key: "api_base_url", Reason: "must be an http or https URL"}
	}

	n, err := strconv.Atoi(v.GetString("items_per_page"))
	if err != nil || n < 1 {
		return nil, &ConfigurationError{Key: "items_per_page", Reason: "must be a positive integer"}
	}
	cfg.ItemsPerPage = n

	d, err := time.ParseDuration(v.GetString("request_timeout"))
	if err != nil || d <= 0 {
		return nil, &ConfigurationError{Key: "request_timeout", Reason: "must be a positive duration"}
	}
	cfg.RequestTimeout = d

	switch cfg.TokenStore {
	case TokenStoreSQLite:
		if cfg.TokenDB == "" {
			return nil, &ConfigurationError{Key: "token_db", Reason: "is required for the sqlite token store"}
		}
	case TokenStoreRedis:
		if cfg.RedisAddr == "" {
			return nil, &ConfigurationError{Key: "redis_addr", Reason: "is required for the redis token store"}
		}
	default:
		return nil, &ConfigurationError{Key: "token_store", Reason: "must be sqlite or redis"}
	}
	if cfg.TokenKey == "" {
		return nil, &ConfigurationError{Key: "token_key", Reason: "must not be empty"}
	}

	tag, err := language.Parse(v.GetString("locale"))
	if err != nil {
		return nil, &ConfigurationError{Key: "locale", Reason: "must be a BCP 47 language tag"}
	}
	cfg.Locale = tag

	policy, err := guard.ParseExpiryPolicy(strings.ToLower(v.GetString("session_expiry")))
	if err != nil {
		return nil, &ConfigurationError{Key: "session_expiry", Reason: "must be lazy or reactive"}
	}
	cfg.SessionExpiry = policy

	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return nil, &ConfigurationError{Key: "log_level", Reason: "must be debug, info, warn or error"}
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return nil, &ConfigurationError{Key: "log_format", Reason: "must be text or json"}
	}

	return cfg, nil
}
