package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-core/internal/config"
)

func withConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	configDir = dir
	t.Cleanup(func() { configDir = "" })
	return dir
}

func TestConfigShowCmd_PrintsDefaults(t *testing.T) {
	withConfigDir(t)

	out, err := execute("config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "[embedding]")
	assert.Contains(t, out, "provider: ollama")
	assert.Contains(t, out, "[retrieval]")
	assert.Contains(t, out, "match_count: 5")
}

func TestConfigShowCmd_ReportsAPIKeyStatus(t *testing.T) {
	dir := withConfigDir(t)

	cfg := config.Default()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKeyEnv = "TEST_SERCHA_KEY"
	require.NoError(t, config.Save(dir, cfg))

	t.Setenv("TEST_SERCHA_KEY", "secret")
	out, err := execute("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "TEST_SERCHA_KEY (set)")

	t.Setenv("TEST_SERCHA_KEY", "")
	out, err = execute("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "TEST_SERCHA_KEY (not set)")
}

func TestConfigInitCmd_WritesFile(t *testing.T) {
	dir := withConfigDir(t)

	out, err := execute("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default configuration")

	_, err = os.Stat(filepath.Join(dir, config.DefaultFileName))
	assert.NoError(t, err)
}

func TestConfigInitCmd_RefusesOverwrite(t *testing.T) {
	dir := withConfigDir(t)
	require.NoError(t, config.Save(dir, config.Default()))

	_, err := execute("config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}
