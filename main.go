package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franktheglock/openllm/config"
	"github.com/franktheglock/openllm/conversation"
	"github.com/franktheglock/openllm/gateway"
	"github.com/franktheglock/openllm/mcp"
	"github.com/franktheglock/openllm/model"
	"github.com/franktheglock/openllm/orchestrator"
	"github.com/franktheglock/openllm/provider"
	"github.com/franktheglock/openllm/storage"
	"github.com/franktheglock/openllm/tools"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCloser := config.InitLogging(cfg.DataDir())
	defer logCloser.Close()

	slog.Info("starting openllm", "component", "main", "version", Version, "license", License,
		"default_provider", cfg.LLM.DefaultProvider, "default_model", cfg.LLM.DefaultModel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers := provider.InitializeProviders(cfg)
	go logProbes(ctx, providers)

	registry := newToolRegistry(cfg)

	mcpManager := mcp.NewManager()
	for id, err := range mcpManager.StartAll(ctx, cfg.MCPServers) {
		slog.Warn("MCP server unavailable", "component", "main", "server", id, "error", err)
	}
	if n := mcp.RegisterTools(registry, mcpManager); n > 0 {
		slog.Info("registered MCP tools", "component", "main", "count", n)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mcpManager.Shutdown(shutdownCtx); err != nil {
			slog.Warn("MCP shutdown incomplete", "component", "main", "error", err)
		}
	}()

	audit, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer audit.Close()

	conversations := conversation.NewManager(conversation.Config{
		MaxContextTokens: cfg.LLM.MaxContextTokens,
		ReserveTokens:    cfg.LLM.ReserveTokens,
		MinMessages:      cfg.LLM.MinMessages,
	})

	engine := orchestrator.NewEngine(orchestrator.EngineConfig{
		Config:        cfg,
		Providers:     providers,
		Conversations: conversations,
		Tools:         registry,
		Audit:         audit,
	})

	server := &http.Server{
		Addr: cfg.Server.Listen,
		Handler: gateway.NewRouter(gateway.Deps{
			Engine:           engine,
			Providers:        providers,
			Audit:            audit,
			MaxMessageLength: cfg.Bot.MaxMessageLength,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "component", "main", "addr", server.Addr, "tools", registry.Names())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("gateway failed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("received shutdown signal", "component", "main")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("gateway shutdown error", "component", "main", "error", err)
	}
	slog.Info("openllm stopped", "component", "main")
	return nil
}

// newToolRegistry registers the built-in tools.
func newToolRegistry(cfg *config.Config) *tools.Registry {
	reg := tools.NewRegistry(cfg.LLM.ToolTimeout())
	ws := cfg.Tools.WebSearch
	builtins := []tools.Tool{
		tools.NewCalculator(),
		tools.NewUUIDGenerator(),
		tools.NewWebSearch(tools.WebSearchConfig{
			Provider:          ws.Provider,
			BaseURL:           ws.BaseURL,
			BraveAPIKey:       ws.BraveAPIKey,
			GoogleAPIKey:      ws.GoogleAPIKey,
			GoogleCSEID:       ws.GoogleCSEID,
			RequestsPerSecond: ws.RequestsPerSecond,
		}),
	}
	for _, t := range builtins {
		if err := reg.Register(t); err != nil {
			slog.Warn("failed to register tool", "component", "main", "tool", t.Definition().Name, "error", err)
		}
	}
	return reg
}

// logProbes reports which providers answer at startup.
func logProbes(ctx context.Context, providers map[string]model.Provider) {
	for _, r := range provider.ProbeAll(ctx, providers) {
		if r.Valid {
			slog.Info("provider reachable", "component", "main", "provider", r.Provider, "models", r.Models)
		}
	}
}
