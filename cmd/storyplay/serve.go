package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mystira/storyplay/internal/platform/config"
	"github.com/mystira/storyplay/internal/platform/otel"
	"github.com/mystira/storyplay/internal/sessionstore/api"
	"github.com/mystira/storyplay/internal/sessionstore/service"
	"github.com/mystira/storyplay/internal/sessionstore/storage"
	"github.com/mystira/storyplay/internal/sessionstore/storage/postgres"
	"github.com/mystira/storyplay/internal/sessionstore/storage/sqlite"
)

type serveEnv struct {
	Addr        string `env:"MYSTIRA_SESSION_ADDR" envDefault:":8080"`
	SQLitePath  string `env:"MYSTIRA_SESSION_SQLITE" envDefault:"sessions.db"`
	PostgresURL string `env:"MYSTIRA_SESSION_POSTGRES_URL"`
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session-store HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg serveEnv
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}

	shutdownTracing, err := otel.Setup(ctx, "storyplay-session-store")
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("shutdown tracing: %v", err)
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.NewServer(service.New(store), log.Default()).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("session store listening on %s", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg serveEnv) (storage.SessionStore, error) {
	if cfg.PostgresURL != "" {
		return postgres.Open(ctx, cfg.PostgresURL)
	}
	return sqlite.Open(cfg.SQLitePath)
}
