package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gpt-5-mini", cfg.LLM.IntakeModel)
	assert.Equal(t, "gpt-5.1-2025-11-13", cfg.LLM.GenerateModel)
	assert.InDelta(t, 0.3, float64(cfg.LLM.Temperature), 1e-6)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 120*time.Second, cfg.LLM.GenerateTimeout())
	assert.Equal(t, "dir", cfg.KB.Source)
	assert.Equal(t, 4, cfg.KB.Limit)
	assert.False(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Download.MockAllow)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LLM_API_BASE", "http://llm.internal")
	t.Setenv("LLM_API_KEY", "secret")
	t.Setenv("LLM_GENERATE_TIMEOUT_MS", "90000")
	t.Setenv("MOCK_ALLOW_DOWNLOAD", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://llm.internal", cfg.LLM.APIBase)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.Equal(t, 90*time.Second, cfg.LLM.GenerateTimeout())
	assert.True(t, cfg.Download.MockAllow)
}

func TestLoad_PrefixedEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AGREEMENT_KB_LIMIT", "6")
	t.Setenv("AGREEMENT_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.KB.Limit)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_RejectsS3WithoutBucket(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AGREEMENT_KB_SOURCE", "s3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3Bucket")
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
