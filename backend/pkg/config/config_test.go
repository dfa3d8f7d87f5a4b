package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aurora/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, StoreNeo4j, cfg.StoreBackend)
	assert.Equal(t, "dev-secret", cfg.JWTSecret)
	assert.Equal(t, 300*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 20, cfg.FeedWindow)
	assert.False(t, cfg.EnforceRealmQuota)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ENFORCE_REALM_QUOTA", "true")
	t.Setenv("FEED_WINDOW", "5")
	t.Setenv("UPLOAD_URL_TTL_SECONDS", "60")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.True(t, cfg.EnforceRealmQuota)
	assert.Equal(t, 5, cfg.FeedWindow)
	assert.Equal(t, time.Minute, cfg.UploadURLTTL)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreBackend:   StoreNeo4j,
		Neo4jURI:       "bolt://localhost:7687",
		Neo4jUser:      "neo4j",
		Neo4jPassword:  "password",
		JWTSecret:      "x",
		FeedWindow:     20,
		ChatSendBuffer: 16,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing uri", mutate: func(c *Config) { c.Neo4jURI = "" }, wantErr: true},
		{name: "memory ignores neo4j", mutate: func(c *Config) { c.StoreBackend = StoreMemory; c.Neo4jURI = "" }},
		{name: "unknown backend", mutate: func(c *Config) { c.StoreBackend = "sqlite" }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.FeedWindow = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
