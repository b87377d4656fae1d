package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/vaultkit/internal/server"
)

var mcpWatch bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the vault to agents over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if mcpWatch {
			w, err := startWatcher(ctx)
			if err != nil {
				return err
			}
			defer w.Close()
		}

		log.Info().Str("vault", cfg.VaultPath).Msg("mcp server on stdio")
		return server.RunStdio(ctx, server.NewMCPServer(cl, version))
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpWatch, "watch", false, "pick up external file changes while serving")
	rootCmd.AddCommand(mcpCmd)
}
