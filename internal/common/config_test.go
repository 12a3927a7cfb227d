package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaultsFileAndEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("LLM_MODEL", "")
	path := writeConfig(t, `
pipeline:
  concurrency: 7
  output: out/invoices.csv
llm:
  timeout: 30s
source:
  missing_tenant_policy: skip
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 7, cfg.Pipeline.Concurrency)
	assert.Equal(t, "out/invoices.csv", cfg.Pipeline.Output)
	assert.Equal(t, 2, cfg.Extract.MaxAttempts)
	assert.Equal(t, "skip", cfg.Source.MissingTenantPolicy)
	assert.Equal(t, "abort", cfg.Source.LoadFailurePolicy)
	assert.Equal(t, []string{"pdf", "txt"}, cfg.Source.Extensions)
}

func TestValidateRequiresProviderCredentials(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_VERTEX_PROJECT", "")
	t.Setenv("PROJECT_ID", "")

	cfg, err := LoadConfig(writeConfig(t, "log:\n  level: info\n"))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	cfg.LLM.Provider = "vertex"
	require.Error(t, cfg.Validate())
	cfg.LLM.VertexProject = "proj"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := LoadConfig(writeConfig(t, "pipeline:\n  concurrency: 0\n"))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("config.loaded", "key", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"config.loaded"`)
}
