// Package config resolves runtime settings from flags, environment and
// defaults, in that order.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	VaultPath string

	ContentCacheSize    int
	FileCacheSize       int
	FolderCacheSize     int
	ParentPathCacheSize int

	SearchCacheTTL     time.Duration
	SearchCacheEntries int

	DebounceWindow time.Duration
	HTTPAddr       string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.content", 500)
	v.SetDefault("cache.files", 5000)
	v.SetDefault("cache.folders", 1000)
	v.SetDefault("cache.parents", 2000)
	v.SetDefault("search.cache_ttl", 30*time.Second)
	v.SetDefault("search.cache_entries", 64)
	v.SetDefault("watch.debounce", 200*time.Millisecond)
	v.SetDefault("http.addr", ":8123")
}

// Load builds the configuration. The vault path resolves from the --vault
// flag, then the OBSIDIAN_VAULT environment variable, then the working
// directory. Other settings come from VAULTKIT_* environment variables or
// their defaults.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VAULTKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("vault", "OBSIDIAN_VAULT"); err != nil {
		return nil, err
	}
	if flag := flags.Lookup("vault"); flag != nil {
		if err := v.BindPFlag("vault", flag); err != nil {
			return nil, err
		}
	}

	vaultPath := v.GetString("vault")
	if vaultPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		vaultPath = cwd
	}

	return &Config{
		VaultPath:           vaultPath,
		ContentCacheSize:    v.GetInt("cache.content"),
		FileCacheSize:       v.GetInt("cache.files"),
		FolderCacheSize:     v.GetInt("cache.folders"),
		ParentPathCacheSize: v.GetInt("cache.parents"),
		SearchCacheTTL:      v.GetDuration("search.cache_ttl"),
		SearchCacheEntries:  v.GetInt("search.cache_entries"),
		DebounceWindow:      v.GetDuration("watch.debounce"),
		HTTPAddr:            v.GetString("http.addr"),
	}, nil
}
