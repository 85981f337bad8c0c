package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadSQLite(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/openwifi_test.db")
	t.Setenv("APP_TEST_MODE", "true")

	cfg := Load()
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "/tmp/openwifi_test.db", cfg.DatasetName())
	assert.True(t, cfg.TestMode)
}

func TestLoadIngestConfigDefaults(t *testing.T) {
	t.Setenv("INGEST_BATCH_POLICY", "whatever")
	cfg := LoadIngestConfig()
	assert.Equal(t, 100.0, cfg.MaxAccuracy)
	assert.Equal(t, BatchAtomic, cfg.BatchPolicy)
	assert.Equal(t, 128, cfg.MaxPageSize)

	t.Setenv("INGEST_BATCH_POLICY", "Best_Effort")
	t.Setenv("SYNC_MAX_PAGE_SIZE", "0")
	cfg = LoadIngestConfig()
	assert.Equal(t, BatchBestEffort, cfg.BatchPolicy)
	assert.Equal(t, 128, cfg.MaxPageSize)
}

func TestLoadAuthConfig(t *testing.T) {
	t.Setenv("AUTH_VERIFIER", "JWT")
	t.Setenv("AUTH_JWKS_URLS", " https://a/jwks , ,https://b/jwks")
	t.Setenv("AUTH_VERIFY_TIMEOUT", "750ms")

	cfg := LoadAuthConfig()
	assert.Equal(t, "jwt", cfg.Verifier)
	assert.Equal(t, []string{"https://a/jwks", "https://b/jwks"}, cfg.JWKSURLs)
	assert.Equal(t, 750*time.Millisecond, cfg.VerifyTimeout)
}

func TestLoadRetentionConfigClampsKeep(t *testing.T) {
	t.Setenv("RETENTION_KEEP", "-3")
	assert.Equal(t, 1, LoadRetentionConfig().Keep)
}

func TestParseMethods(t *testing.T) {
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, parseMethods(" get, head ,"))
}
