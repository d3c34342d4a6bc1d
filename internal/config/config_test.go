package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dealdesk")
	t.Setenv("AUTH0_DOMAIN", "dealdesk.eu.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "https://api.dealdesk.app")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.MembershipCacheTTL)
	assert.Equal(t, 20, cfg.InviteRateLimit)
	assert.Equal(t, StorageDriverNone, cfg.StorageDriver)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("MEMBERSHIP_CACHE_TTL", "30s")
	t.Setenv("INVITE_RATE_LIMIT", "5")
	t.Setenv("STORAGE_DRIVER", "MinIO")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.MembershipCacheTTL)
	assert.Equal(t, 5, cfg.InviteRateLimit)
	assert.Equal(t, StorageDriverMinIO, cfg.StorageDriver)
	assert.True(t, cfg.MinIO.UseSSL)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH0_DOMAIN", "x")
	t.Setenv("AUTH0_AUDIENCE", "y")

	_, err := Load()

	assert.EqualError(t, err, "DATABASE_URL is required")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad ttl", "MEMBERSHIP_CACHE_TTL", "soon"},
		{"bad rate", "INVITE_RATE_LIMIT", "many"},
		{"zero rate", "INVITE_RATE_LIMIT", "0"},
		{"unknown storage", "STORAGE_DRIVER", "ftp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
