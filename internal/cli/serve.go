package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/vaultkit/internal/server"
	"github.com/mkarlsen/vaultkit/internal/vault"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the vault over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if serveWatch {
			w, err := startWatcher(ctx)
			if err != nil {
				return err
			}
			defer w.Close()
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}
		srv := &http.Server{
			Addr:    addr,
			Handler: server.NewHTTPServer(cl, log).Handler(),
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		log.Info().Str("addr", addr).Str("vault", cfg.VaultPath).Msg("http server listening")

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// startWatcher mirrors external edits into the vault while serving.
func startWatcher(ctx context.Context) (*vault.Watcher, error) {
	w, err := vault.NewWatcher(cl.Vault(), vaultFS, cfg.DebounceWindow, log)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: $VAULTKIT_HTTP_ADDR or :8123)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "pick up external file changes while serving")
	rootCmd.AddCommand(serveCmd)
}
