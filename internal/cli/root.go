// Package cli implements the vaultkit command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mkarlsen/vaultkit/internal/backend"
	"github.com/mkarlsen/vaultkit/internal/client"
	"github.com/mkarlsen/vaultkit/internal/config"
	"github.com/mkarlsen/vaultkit/internal/search"
	"github.com/mkarlsen/vaultkit/internal/vault"
)

var (
	flagVault   string
	flagJSON    bool
	flagVerbose bool

	cfg     *config.Config
	log     zerolog.Logger
	vaultFS *backend.FS
	cl      *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "vaultkit",
	Short: "Query and edit a markdown vault from the command line",
	Long: `vaultkit indexes a folder of markdown notes and answers search,
link-graph and tag queries over it. It can also serve the vault to
agents over MCP (stdio) or to other tools over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load(cmd.Flags())
		if err != nil {
			return err
		}

		level := zerolog.InfoLevel
		if flagVerbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()

		vaultFS, err = backend.NewFS(cfg.VaultPath)
		if err != nil {
			return fmt.Errorf("open vault %s: %w", cfg.VaultPath, err)
		}

		cl, err = client.New(vaultFS, client.Options{
			Logger: log,
			VaultOptions: []vault.Option{
				vault.WithContentCacheSize(cfg.ContentCacheSize),
				vault.WithFileCacheSize(cfg.FileCacheSize),
				vault.WithFolderCacheSize(cfg.FolderCacheSize),
				vault.WithParentCacheSize(cfg.ParentPathCacheSize),
			},
			SearchOptions: []search.Option{
				search.WithCacheTTL(cfg.SearchCacheTTL),
				search.WithCacheEntries(cfg.SearchCacheEntries),
			},
		})
		if err != nil {
			return err
		}
		return cl.Open(cmd.Context())
	},
}

// Execute runs the command tree, printing errors to stderr.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagVault, "vault", "", "path to the vault (default: $OBSIDIAN_VAULT or cwd)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit JSON instead of human-readable output")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
