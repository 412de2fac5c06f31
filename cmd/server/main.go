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

	"github.com/gorilla/mux"
	"github.com/volcengine/veadk-go/apps"
	"github.com/volcengine/veadk-go/apps/a2a_app"
	"google.golang.org/adk/agent"

	"github.com/zhengjr9/agent-studio/internal/a2a"
	"github.com/zhengjr9/agent-studio/internal/adapter/anthropic"
	"github.com/zhengjr9/agent-studio/internal/adapter/ollama"
	"github.com/zhengjr9/agent-studio/internal/chat"
	"github.com/zhengjr9/agent-studio/internal/config"
	"github.com/zhengjr9/agent-studio/internal/credential"
	"github.com/zhengjr9/agent-studio/internal/gateway"
	"github.com/zhengjr9/agent-studio/internal/httputil"
	"github.com/zhengjr9/agent-studio/internal/logging"
	"github.com/zhengjr9/agent-studio/internal/proxy"
)

func main() {
	cfg := config.Load()

	_, logCloser := logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Debug: cfg.Debug})
	defer logCloser.Close()

	hosted := anthropic.NewClient(cfg.AnthropicBaseURL, cfg.ChatTimeout, cfg.StreamTimeout)
	if err := hosted.SetProxy(cfg.ProxyURL); err != nil {
		slog.Error("invalid proxy url", "error", err)
		os.Exit(1)
	}
	local := ollama.NewClient(cfg.OllamaHost, cfg.LocalTimeout)
	defer local.Close()

	dispatcher := gateway.New(hosted, local, gateway.Options{
		Defaults:      chat.Defaults{Model: cfg.DefaultModel, MaxTokens: cfg.MaxTokens},
		LocalModel:    cfg.LocalModel,
		DefaultAPIKey: cfg.AnthropicAPIKey,
		AuxTimeout:    cfg.AuxTimeout,
	})

	slog.Info("starting agent-studio",
		"version", config.Version,
		"listen", cfg.ListenAddr,
		"model", cfg.DefaultModel,
		"ollama", cfg.OllamaHost,
		"api_key", credential.Mask(cfg.AnthropicAPIKey),
		"a2a_enabled", cfg.A2AEnabled,
	)
	if !credential.IsValid(cfg.AnthropicAPIKey) {
		slog.Warn("no default API key configured; callers must send api_key or X-Api-Key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Always start the gateway server.
	srv := proxy.New(cfg, dispatcher)
	proxyErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			proxyErr <- err
		}
	}()

	// Optionally start the A2A server.
	a2aErr := make(chan error, 1)
	if cfg.A2AEnabled {
		studioAgent, err := a2a.New(a2a.AgentConfig{
			Name:        cfg.AgentName,
			Description: cfg.AgentDesc,
			Dispatcher:  dispatcher,
		})
		if err != nil {
			slog.Error("failed to create A2A agent", "error", err)
			os.Exit(1)
		}

		slog.Info("starting A2A server", "port", cfg.A2APort, "agent_name", cfg.AgentName)

		// Wrap the standard A2A app so that the caller's Bearer token reaches
		// the agent through the request context.
		inner := a2a_app.NewAgentkitA2AServerApp(
			apps.DefaultApiConfig().SetPort(cfg.A2APort),
		)
		wrapped := &authMiddlewareApp{BasicApp: inner}

		go func() {
			if err := wrapped.Run(ctx, &apps.RunConfig{
				AgentLoader: agent.NewSingleLoader(studioAgent),
			}); err != nil {
				a2aErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("gateway shutdown error", "error", err)
		}
	case err := <-proxyErr:
		slog.Error("gateway server error", "error", err)
		os.Exit(1)
	case err := <-a2aErr:
		slog.Error("A2A server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// authMiddlewareApp wraps a BasicApp and installs an HTTP middleware on the
// Gorilla mux router that injects the caller's Bearer token into the request
// context via a2a.ContextWithAPIKey.
type authMiddlewareApp struct {
	apps.BasicApp
}

// Run overrides the embedded Run so that apps.Run receives `w` as the app
// argument. Without this, apps.Run would invoke SetupRouters on the inner app
// and the middleware would never be registered.
func (w *authMiddlewareApp) Run(ctx context.Context, config *apps.RunConfig) error {
	return apps.Run(ctx, config, w)
}

func (w *authMiddlewareApp) SetupRouters(router *mux.Router, config *apps.RunConfig) error {
	if err := w.BasicApp.SetupRouters(router, config); err != nil {
		return err
	}
	router.Use(bearerTokenMiddleware)
	return nil
}

// bearerTokenMiddleware stores "Authorization: Bearer <token>" or the
// X-Api-Key header in the request context.
func bearerTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := httputil.BearerToken(r)
		if token == "" {
			token = r.Header.Get(credential.HeaderName)
		}
		if token != "" {
			r = r.WithContext(a2a.ContextWithAPIKey(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}
