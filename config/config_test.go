package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AWS_S3_FILES_BUCKET", "acme-files")
	t.Setenv("FILES_URL_RESOLVE_CONCURRENCY", "3")
	t.Setenv("PURGE_INTERVAL_MINUTES", "5")
	t.Setenv("PURGE_CONCURRENCY", "not-a-number")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_NAME", "drive_test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "acme-files", cfg.AWS.FilesBucket)
	assert.Equal(t, 3, cfg.Files.URLResolveConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.Purge.Interval())
	assert.Equal(t, 4, cfg.Purge.Concurrency)
	assert.Contains(t, cfg.Database.DSN(), "/drive_test?sslmode=")
}

func TestLoadRejectsNegativeInterval(t *testing.T) {
	t.Setenv("PURGE_INTERVAL_MINUTES", "-1")
	_, err := Load()
	assert.Error(t, err)
}
