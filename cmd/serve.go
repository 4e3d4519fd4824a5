package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HaiFongPan/dermascan-cli/internal/server"
	"github.com/HaiFongPan/dermascan-cli/internal/store"
)

var (
	serveAddr    string
	serveStorage string
	serveDir     string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local stand-in analysis service",
	Long: `Run an HTTP service that speaks the same /upload and /analyze contract as
the real lesion analysis service. Its classifier is a deterministic colour
heuristic meant for trying the client end to end, not for diagnosis.

Examples:
  dermascan serve                          # Listen on server.addr from config
  dermascan serve --addr :8080             # Listen on another address
  dermascan serve --storage r2             # Store uploads in the R2 bucket`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveStorage, "storage", "", "storage backend: local or r2 (overrides config)")
	serveCmd.Flags().StringVar(&serveDir, "dir", "", "upload directory for local storage (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logToStderr()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveStorage != "" {
		cfg.Server.Storage = serveStorage
	}
	if serveDir != "" {
		cfg.Server.StorageDir = serveDir
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.FromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"storage": cfg.Server.Storage,
		"addr":    cfg.Server.Addr,
	}).Info("starting analysis service")

	return server.New(cfg.Server, st).Run(ctx)
}
