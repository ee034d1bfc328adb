package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alphabot-ai/newsroom/internal/auth"
	httpapp "github.com/alphabot-ai/newsroom/internal/http"
	"github.com/alphabot-ai/newsroom/internal/rate"
	"github.com/alphabot-ai/newsroom/internal/reaction"
	"github.com/alphabot-ai/newsroom/internal/store/sqlite"
	"github.com/spf13/cobra"
)

const tokenPurgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the Newsroom server",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	added, err := reaction.SeedStatuses(ctx, store, cfg.DefaultStatuses)
	if err != nil {
		return err
	}
	if added > 0 {
		logger.Info("seeded status catalog", "count", added)
	}

	limiter := rate.NewMemory()
	authSvc := auth.NewService(store, cfg.TokenTTL, cfg.ChallengeTTL)
	server := httpapp.NewServer(store, authSvc, limiter, cfg, logger)

	go purgeTokens(ctx, authSvc, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("newsroom listening", "addr", cfg.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func purgeTokens(ctx context.Context, authSvc *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		n, err := authSvc.PurgeExpiredTokens(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("purge expired tokens", "err", err)
		case n > 0:
			logger.Info("purged expired tokens", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
