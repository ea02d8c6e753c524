package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/davoli/bussola/internal/agent"
	"github.com/davoli/bussola/internal/api"
	"github.com/davoli/bussola/internal/config"
	"github.com/davoli/bussola/internal/gemini"
	"github.com/davoli/bussola/internal/search"
	"github.com/davoli/bussola/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bussola server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func openStore(cfg config.Config) (session.Store, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return session.OpenSQLite(cfg.Storage.DataDir)
	case "memory", "":
		ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
		return session.NewMemoryStore(ttl), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want memory or sqlite)", cfg.Storage.Backend)
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "bussola version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open session storage.
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
			}
		}()
	}
	slog.Info("session storage ready", "backend", cfg.Storage.Backend)

	// The generation backend is optional: without an API key the agent
	// still serves chats, answering with the fixed degraded message.
	var gen agent.Generator
	if cfg.Gemini.APIKey != "" {
		gen = gemini.New(cfg.Gemini.APIKey, cfg.Gemini.Model)
		slog.Info("generation backend configured", "model", cfg.Gemini.Model)
	} else {
		slog.Warn("no Gemini API key configured, starting in degraded mode",
			"hint", "set BUSSOLA_GEMINI_API_KEY")
	}

	var enricher agent.Enricher
	var recommender api.Recommender
	if cfg.Search.Enabled {
		searcher := search.New(search.NewDuckDuckGo())
		enricher = searcher
		recommender = searcher
		slog.Info("web search enabled")
	}

	ag := agent.New(store, gen, enricher)

	handler := api.NewHandler(api.Deps{
		Agent:      ag,
		Store:      store,
		Recommends: recommender,
		Origins:    cfg.Server.Origins,
		Version:    version,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Agent:      ag,
		Recommends: recommender,
		Version:    version,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "bussola listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
