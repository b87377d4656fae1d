package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("vault", "", "")

	cfg, err := Load(flags)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, cfg.VaultPath, "vault path falls back to the working directory")

	assert.Equal(t, 500, cfg.ContentCacheSize)
	assert.Equal(t, 5000, cfg.FileCacheSize)
	assert.Equal(t, 1000, cfg.FolderCacheSize)
	assert.Equal(t, 2000, cfg.ParentPathCacheSize)
	assert.Equal(t, 30*time.Second, cfg.SearchCacheTTL)
	assert.Equal(t, 64, cfg.SearchCacheEntries)
	assert.Equal(t, 200*time.Millisecond, cfg.DebounceWindow)
	assert.Equal(t, ":8123", cfg.HTTPAddr)
}

func TestLoadVaultFromEnv(t *testing.T) {
	t.Setenv("OBSIDIAN_VAULT", "/srv/notes")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("vault", "", "")

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "/srv/notes", cfg.VaultPath)
}

func TestFlagBeatsEnv(t *testing.T) {
	t.Setenv("OBSIDIAN_VAULT", "/srv/notes")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("vault", "", "")
	require.NoError(t, flags.Set("vault", "/home/me/vault"))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "/home/me/vault", cfg.VaultPath)
}

func TestEnvOverridesSettings(t *testing.T) {
	t.Setenv("VAULTKIT_HTTP_ADDR", ":9000")
	t.Setenv("VAULTKIT_SEARCH_CACHE_TTL", "5s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.SearchCacheTTL)
}
