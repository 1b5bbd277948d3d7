package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/kalambet/artisan/internal/api"
	"github.com/kalambet/artisan/internal/catalog"
	"github.com/kalambet/artisan/internal/config"
	"github.com/kalambet/artisan/internal/engine"
	"github.com/kalambet/artisan/internal/pipeline"
	"github.com/kalambet/artisan/internal/retrieval"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the catalog index and serve the HTTP API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Build the catalog index and serve MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

// loadManifest returns the configured manifest, or the built-in one, with
// the configured fallback values applied.
func loadManifest(cfg config.Config) (catalog.Manifest, error) {
	m := catalog.DefaultManifest()
	if cfg.Catalog.Manifest != "" {
		var err error
		m, err = catalog.LoadManifest(cfg.Catalog.Manifest)
		if err != nil {
			return catalog.Manifest{}, err
		}
	}
	return m.WithFallbacks(cfg.Catalog.Sentinel, cfg.Catalog.CertificationDefault), nil
}

// buildService assembles the catalog assistant. Configuration problems that
// prevent even selecting an engine are returned; everything after that is
// reported through an unavailable Service.
func buildService(ctx context.Context, cfg config.Config, progress io.Writer) (*pipeline.Service, error) {
	m, err := loadManifest(cfg)
	if err != nil {
		return nil, fmt.Errorf("loading catalog manifest: %w", err)
	}

	eng, err := engine.Detect(engine.DetectConfig{
		Backend:       cfg.Engine.Backend,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIAPIKey:  cfg.OpenAI.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting inference engine: %w", err)
	}

	return pipeline.Build(ctx, pipeline.Options{
		Engine:     eng,
		ChatModel:  cfg.ChatModel(),
		EmbedModel: cfg.EmbedModel(),
		AutoPull:   cfg.AutoPull(),
		Manifest:   m,
		DataDir:    cfg.Catalog.DataDir,
		Embedding: retrieval.EmbedderConfig{
			BatchSize:    cfg.Embedding.BatchSize,
			BatchDelay:   cfg.Embedding.BatchDelay,
			Timeout:      cfg.Embedding.Timeout,
			MaxRetries:   cfg.Embedding.MaxRetries,
			RetryBackoff: cfg.Embedding.RetryBackoff,
		},
		IndexBackend:      cfg.Retrieval.Backend,
		TopK:              cfg.Retrieval.TopK,
		MaxContextTokens:  cfg.Generation.MaxContextTokens,
		Temperature:       cfg.Generation.Temperature,
		GenerationTimeout: cfg.Generation.Timeout,
		RenderHTML:        cfg.Answer.RenderHTML,
		Progress:          progress,
	}), nil
}

// catalogReader returns the service store as an api.CatalogReader, or nil
// when the build stopped before the catalog was stored.
func catalogReader(svc *pipeline.Service) api.CatalogReader {
	if st := svc.Store(); st != nil {
		return st
	}
	return nil
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "artisan version %s\n", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildService(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Warn("closing catalog store", "error", err)
		}
	}()
	if !svc.Ready() {
		// Keep serving: /ask answers with the uninitialized message and
		// /status carries the cause.
		printWarning("catalog assistant unavailable: %v", svc.Err())
	}

	handler := api.NewHandler(api.Deps{
		Assistant: svc,
		Catalog:   catalogReader(svc),
		Token:     cfg.Server.APIToken,
		AskRate:   cfg.Server.AskRate,
		AskBurst:  cfg.Server.AskBurst,
	})

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}
	if cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	}

	slog.Info("artisan listening", "addr", ln.Addr().String(), "max_conns", cfg.Server.MaxConns)
	return serve(ctx, handler, ln, 5*time.Second)
}

// serve runs an HTTP server on ln until ctx is done, then drains in-flight
// requests for up to grace. Request contexts do not derive from ctx, so a
// signal lets running answers finish.
func serve(ctx context.Context, handler http.Handler, ln net.Listener, grace time.Duration) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stdout carries the protocol; progress goes to stderr.
	svc, err := buildService(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer svc.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Assistant: svc,
		Catalog:   catalogReader(svc),
		Version:   version,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	slog.Info("MCP server started (stdio transport)", "ready", svc.Ready())
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}
