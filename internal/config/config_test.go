package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseAndSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/cloudmigrate")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "too-short")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 20 characters")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/cloudmigrate")
	t.Setenv("JWT_SECRET", "a-secret-of-sufficient-length")
	t.Setenv("PORT", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())

	t.Setenv("ENVIRONMENT", "production")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
