package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.NotEmpty(t, cfg.DBPath)
	assert.NotEmpty(t, cfg.StorageBucket)
	assert.Equal(t, 5, cfg.AttachmentLimit)
	assert.Equal(t, 5*time.Minute, cfg.IDTokenTTL)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("CWC_LISTEN_ADDR", ":9000")
	t.Setenv("CWC_DB_PATH", "/custom/db.sqlite")
	t.Setenv("CWC_API_BASE_URL", "https://api.example.edu")
	t.Setenv("CWC_DRAFT_TTL", "30m")
	t.Setenv("CWC_ATTACHMENT_LIMIT", "3")
	t.Setenv("CWC_DEV_API", "1")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/custom/db.sqlite", cfg.DBPath)
	assert.Equal(t, "https://api.example.edu", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Minute, cfg.DraftTTL)
	assert.Equal(t, 3, cfg.AttachmentLimit)
	assert.True(t, cfg.DevAPI)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CWC_SESSION_TTL", "forever")
	t.Setenv("CWC_ATTACHMENT_LIMIT", "-2")

	cfg := Load()

	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5, cfg.AttachmentLimit)
}

func TestLoadClampsResolverMaxAge(t *testing.T) {
	t.Setenv("CWC_DOWNLOAD_URL_TTL", "10m")

	cfg := Load()

	assert.Less(t, cfg.ResolverMaxAge, cfg.DownloadURLTTL)
	assert.Equal(t, 500*time.Second, cfg.ResolverMaxAge)
}

func TestLoadKeepsShorterResolverMaxAge(t *testing.T) {
	t.Setenv("CWC_DOWNLOAD_URL_TTL", "2h")
	t.Setenv("CWC_RESOLVER_MAX_AGE", "30m")

	cfg := Load()

	assert.Equal(t, 30*time.Minute, cfg.ResolverMaxAge)
}
