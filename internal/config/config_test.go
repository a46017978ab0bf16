package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.ErrorIs(t, err, ErrMissingMongoURI)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("SMTP_USER", "sender@example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.App.Port)
	assert.Equal(t, "primetrade", cfg.Mongo.Database)
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL)
	assert.Equal(t, time.Minute, cfg.OTP.ResendCooldown)
	assert.Equal(t, "sender@example.com", cfg.Email.From)
	assert.False(t, cfg.Email.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("PORT", "9090")
	t.Setenv("OTP_TTL", "2m")
	t.Setenv("SMTP_PASS", "secret")
	t.Setenv("SMTP_USER", "sender@example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 2*time.Minute, cfg.OTP.TTL)
	assert.True(t, cfg.Email.Enabled())
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	os.Unsetenv("MONGO_URI")
	t.Setenv("MONGO_DB", "")
	os.Unsetenv("MONGO_DB")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MONGO_URI=mongodb://file:27017\nMONGO_DB=fromfile\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("MONGO_URI")
		os.Unsetenv("MONGO_DB")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://file:27017", cfg.Mongo.URI)
	assert.Equal(t, "fromfile", cfg.Mongo.Database)
}
