package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/erazemk/izposoja/internal/guard"
)

// noEnvFile points Load at a file that does not exist so a stray .env in the
// working directory cannot leak into tests.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("IZPOSOJA_API_BASE_URL", "https://items.example.com/api/v1")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "https://items.example.com/api/v1", cfg.APIBaseURL)
	assert.Equal(t, 10, cfg.ItemsPerPage)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, TokenStoreSQLite, cfg.TokenStore)
	assert.NotEmpty(t, cfg.TokenDB)
	assert.Equal(t, "accessToken", cfg.TokenKey)
	assert.Equal(t, language.English, cfg.Locale)
	assert.Equal(t, guard.ExpiryLazy, cfg.SessionExpiry)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_MissingBaseURL(t *testing.T) {
	t.Setenv("IZPOSOJA_API_BASE_URL", "")

	_, err := Load(noEnvFile(t))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "api_base_url", cfgErr.Key)
	assert.Contains(t, err.Error(), "IZPOSOJA_API_BASE_URL")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("IZPOSOJA_API_BASE_URL", "http://localhost:8080/api/v1")
	t.Setenv("IZPOSOJA_ITEMS_PER_PAGE", "25")
	t.Setenv("IZPOSOJA_REQUEST_TIMEOUT", "3s")
	t.Setenv("IZPOSOJA_TOKEN_STORE", "redis")
	t.Setenv("IZPOSOJA_REDIS_ADDR", "cache:6379")
	t.Setenv("IZPOSOJA_LOCALE", "ja")
	t.Setenv("IZPOSOJA_SESSION_EXPIRY", "reactive")
	t.Setenv("IZPOSOJA_LOG_LEVEL", "debug")
	t.Setenv("IZPOSOJA_LOG_FORMAT", "json")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.ItemsPerPage)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, TokenStoreRedis, cfg.TokenStore)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, language.Japanese, cfg.Locale)
	assert.Equal(t, guard.ExpiryReactive, cfg.SessionExpiry)
	assert.True(t, cfg.Log.IsJSON())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"IZPOSOJA_API_BASE_URL", "not a url"},
		{"IZPOSOJA_ITEMS_PER_PAGE", "0"},
		{"IZPOSOJA_ITEMS_PER_PAGE", "ten"},
		{"IZPOSOJA_REQUEST_TIMEOUT", "soon"},
		{"IZPOSOJA_TOKEN_STORE", "etcd"},
		{"IZPOSOJA_SESSION_EXPIRY", "eager"},
		{"IZPOSOJA_LOG_LEVEL", "loud"},
		{"IZPOSOJA_LOG_FORMAT", "xml"},
		{"IZPOSOJA_LOCALE", "!!"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("IZPOSOJA_API_BASE_URL", "https://items.example.com")
			t.Setenv(tt.key, tt.value)

			_, err := Load(noEnvFile(t))
			var cfgErr *ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	// Unset first so godotenv, which never overrides, can supply the value.
	t.Setenv("IZPOSOJA_API_BASE_URL", "")
	os.Unsetenv("IZPOSOJA_API_BASE_URL")
	t.Setenv("IZPOSOJA_ITEMS_PER_PAGE", "7")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("IZPOSOJA_API_BASE_URL=https://from-file.example.com\nIZPOSOJA_ITEMS_PER_PAGE=99\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("IZPOSOJA_API_BASE_URL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-file.example.com", cfg.APIBaseURL)
	assert.Equal(t, 7, cfg.ItemsPerPage, "environment wins over the file")
}
