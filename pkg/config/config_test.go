package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points UPKEEP_HOME at a scratch directory and clears every
// UPKEEP_* variable so host configuration cannot leak into assertions.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("UPKEEP_HOME", home)
	for _, kv := range os.Environ() {
		key := strings.SplitN(kv, "=", 2)[0]
		if strings.HasPrefix(key, "UPKEEP_") && key != "UPKEEP_HOME" {
			t.Setenv(key, "")
		}
	}
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRegistry, cfg.Registry)
	assert.Equal(t, "stable", cfg.Channel)
	assert.False(t, cfg.Backup.Disabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("UPKEEP_REGISTRY", "https://mirror.internal")
	t.Setenv("UPKEEP_CHANNEL", "beta")
	t.Setenv("UPKEEP_BACKUP_DISABLED", "true")
	t.Setenv("UPKEEP_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.internal", cfg.Registry)
	assert.Equal(t, "beta", cfg.Channel)
	assert.True(t, cfg.Backup.Disabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadGlobalConfigFile(t *testing.T) {
	home := isolate(t)
	content := "registry: https://corp.example.com\nlog:\n  level: warn\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://corp.example.com", cfg.Registry)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "stable", cfg.Channel)
}

func TestEnvBeatsGlobalFile(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"),
		[]byte("registry: https://from-file.example.com\n"), 0o644))
	t.Setenv("UPKEEP_REGISTRY", "https://from-env.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://from-env.example.com", cfg.Registry)
}

func TestLoadForDestLocalOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("UPKEEP_REGISTRY", "https://from-env.example.com")

	dest := t.TempDir()
	local := `registry = "https://pinned.example.com"

[backup]
disabled = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dest, LocalFilename), []byte(local), 0o644))

	cfg, err := LoadForDest(dest)
	require.NoError(t, err)
	assert.Equal(t, "https://pinned.example.com", cfg.Registry)
	assert.True(t, cfg.Backup.Disabled)
	assert.Equal(t, "stable", cfg.Channel)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadForDestPartialOverride(t *testing.T) {
	isolate(t)
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, LocalFilename),
		[]byte("[log]\nlevel = \"trace\"\n"), 0o644))

	cfg, err := LoadForDest(dest)
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, DefaultRegistry, cfg.Registry)
}

func TestLoadForDestMissingLocalFile(t *testing.T) {
	isolate(t)

	cfg, err := LoadForDest(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultRegistry, cfg.Registry)
}

func TestLoadForDestMalformedLocalFile(t *testing.T) {
	isolate(t)
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, LocalFilename),
		[]byte("registry = [broken"), 0o644))

	_, err := LoadForDest(dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), LocalFilename)
}

func TestHomeRespectsEnv(t *testing.T) {
	home := isolate(t)

	got, err := Home()
	require.NoError(t, err)
	assert.Equal(t, home, got)
}

func TestCacheDirUnderHome(t *testing.T) {
	home := isolate(t)

	cache, err := CacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cache"), cache)

	info, err := os.Stat(cache)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStagingDirIsFresh(t *testing.T) {
	isolate(t)

	first, err := StagingDir()
	require.NoError(t, err)
	second, err := StagingDir()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	for _, dir := range []string{first, second} {
		info, statErr := os.Stat(dir)
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	}
}
