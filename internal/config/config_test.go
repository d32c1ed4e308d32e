package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, int64(5<<20), cfg.MaxFileSize)
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/webp"}, cfg.AllowedTypes)
	assert.Equal(t, 24*time.Hour, cfg.SignedURLTTL)
	assert.Equal(t, 60*time.Second, cfg.UploadTimeout)
	assert.Equal(t, 10*time.Second, cfg.RoleLookupTimeout)
	assert.Equal(t, "http://localhost:9000", cfg.PublicBaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GALLERY_ADDRESS", ":9999")
	t.Setenv("GALLERY_MAX_FILE_BYTES", "1048576")
	t.Setenv("GALLERY_ALLOWED_TYPES", "image/png, image/webp")
	t.Setenv("GALLERY_SIGNED_TTL", "1h")
	t.Setenv("GALLERY_S3_USE_SSL", "true")
	t.Setenv("GALLERY_S3_ENDPOINT", "media.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Address)
	assert.Equal(t, int64(1<<20), cfg.MaxFileSize)
	assert.Equal(t, []string{"image/png", "image/webp"}, cfg.AllowedTypes)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
	assert.Equal(t, "https://media.example.com", cfg.PublicBaseURL)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("GALLERY_MAX_FILE_BYTES", "not-a-number")
	t.Setenv("GALLERY_SIGNED_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(5<<20), cfg.MaxFileSize)
	assert.Equal(t, 24*time.Hour, cfg.SignedURLTTL)
}
