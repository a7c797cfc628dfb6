package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.SyncWindowDays)
	assert.Equal(t, 100, cfg.SyncMaxResults)
	assert.Equal(t, 10, cfg.MimeMaxDepth)
	assert.Equal(t, 1, cfg.SyncFetchConcurrency)
	assert.Equal(t, ClassifyErrorSkip, cfg.IngestOnClassifyError)
	assert.Equal(t, 24*time.Hour, cfg.ClassifyCacheTTL)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYNC_WINDOW_DAYS", "3")
	t.Setenv("MIME_MAX_DEPTH", "4")
	t.Setenv("INGEST_ON_CLASSIFY_ERROR", "ABORT")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.SyncWindowDays)
	assert.Equal(t, 4, cfg.MimeMaxDepth)
	assert.Equal(t, ClassifyErrorAbort, cfg.IngestOnClassifyError)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero window", env: map[string]string{"SYNC_WINDOW_DAYS": "0"}},
		{name: "negative depth", env: map[string]string{"MIME_MAX_DEPTH": "-1"}},
		{name: "unknown policy", env: map[string]string{"INGEST_ON_CLASSIFY_ERROR": "retry"}},
		{name: "production without mongo", env: map[string]string{"ENV": "production", "MONGODB_URL": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
