package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/azad25/admin-ai-sub003/internal/database"
	"github.com/azad25/admin-ai-sub003/internal/metrics"
	"github.com/azad25/admin-ai-sub003/internal/server"
	"github.com/azad25/admin-ai-sub003/internal/version"
)

// NewServeCommand runs the credential status server.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the credential status server",
		Long: `Serve exposes health probes, Prometheus metrics, and a masked
credential status endpoint per account. Decrypted API keys never leave
the process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			key, err := cfg.LoadKey()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.RunMigrations(ctx, pool); err != nil {
				return err
			}

			info := version.Get()
			metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.BuildTime, info.GoVersion).Set(1)

			repo := database.NewAccountRepo(pool)
			srv := server.New(cfg.Port, repo, pool, key)

			done := runGracefulShutdown(srv)

			slog.Info("Server starting", "port", cfg.Port, "env", cfg.AppEnv, "version", info.Version)
			if err := srv.Start(); err != nil {
				return err
			}

			<-done
			slog.Info("Shutdown complete")
			return nil
		},
	}
}

func runGracefulShutdown(srv *server.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}
