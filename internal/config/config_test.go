package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "ALLOWED_ORIGINS", "STRIPE_SECRET_KEY", "OPENAI_API_KEY", "CHAT_REPLY_DELAY_MIN", "CHAT_REPLY_DELAY_MAX", "LOG_FORMAT", "SITE_URL", "STRIPE_MAX_RETRIES"} {
		// Setenv restores the original value after the test.
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Second, cfg.ReplyDelayMin)
	assert.Equal(t, 2*time.Second, cfg.ReplyDelayMax)
	assert.Equal(t, 1000, cfg.MaxSessions)
	assert.Equal(t, 20*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, int64(2), cfg.StripeMaxRetries)
	assert.Equal(t, "whisper-1", cfg.STTModel)
	assert.Equal(t, "http://localhost:3000", cfg.SiteURL)
	assert.Len(t, cfg.Warnings(), 2)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("SITE_URL", "https://site.example/")
	t.Setenv("STRIPE_SECRET_KEY", " sk_test_1 ")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("CHAT_REPLY_DELAY_MIN", "0s")
	t.Setenv("CHAT_REPLY_DELAY_MAX", "0s")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://site.example", cfg.SiteURL)
	assert.Equal(t, "sk_test_1", cfg.StripeSecretKey)
	assert.Equal(t, time.Duration(0), cfg.ReplyDelayMax)
	assert.Empty(t, cfg.Warnings())
}

func TestValidate(t *testing.T) {
	base := Config{ReplyDelayMin: time.Second, ReplyDelayMax: 2 * time.Second, MaxSessions: 1, LogFormat: "console", TraceSamplingRate: 1}
	require.NoError(t, base.Validate())

	bad := base
	bad.ReplyDelayMax = 500 * time.Millisecond
	assert.Error(t, bad.Validate())

	bad = base
	bad.MaxSessions = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.LogFormat = "xml"
	assert.Error(t, bad.Validate())

	bad = base
	bad.TraceSamplingRate = 2
	assert.Error(t, bad.Validate())

	bad = base
	bad.AllowedOrigins = []string{"https://site.example", "*"}
	assert.Error(t, bad.Validate())
}

func TestLoadRejectsWildcardOrigin(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "*")

	_, err := Load()
	assert.ErrorContains(t, err, "ALLOWED_ORIGINS")
}

func TestAddrAcceptsHostPort(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", Config{Port: "127.0.0.1:8080"}.Addr())
}
