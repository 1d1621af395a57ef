package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "mysql", cfg.StoreDriver)
	assert.Equal(t, "local", cfg.ImageStore)
	assert.True(t, cfg.RequireFriendship)
	assert.Equal(t, 168*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("REQUIRE_FRIENDSHIP", "false")
	t.Setenv("TOKEN_TTL", "1h")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.False(t, cfg.RequireFriendship)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER=memory\nUPLOAD_DIR=/tmp/pc\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "/tmp/pc", cfg.UploadDir)
}

func TestLoadMissingEnvFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.StoreDriver)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{StoreDriver: "memory", ImageStore: "local", TokenTTL: time.Hour, JWTSecret: "s"}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.StoreDriver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.ImageStore = "s3"
	assert.Error(t, cfg.Validate())
	cfg.S3Bucket = "images"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Env = "production"
	cfg.JWTSecret = defaultJWTSecret
	assert.Error(t, cfg.Validate())
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: " http://a.test , ,http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
}
