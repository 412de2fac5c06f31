package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/zhengjr9/agent-studio/internal/config"
	"github.com/zhengjr9/agent-studio/internal/credential"
)

// ModelInfo describes one selectable model.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Ctx      int    `json:"ctx"`
}

// localContextWindow is reported for every daemon model; the daemon does not
// expose it through /api/tags.
const localContextWindow = 8192

var hostedModels = []ModelInfo{
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Provider: "anthropic", Ctx: 200000},
	{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", Provider: "anthropic", Ctx: 200000},
	{ID: "claude-haiku-4-5-20251001", Name: "Claude Haiku 4.5", Provider: "anthropic", Ctx: 200000},
}

// ListKnownModels returns the hosted catalogue followed by the daemon's
// installed models when it is reachable.
func (d *Dispatcher) ListKnownModels(ctx context.Context) []ModelInfo {
	models := make([]ModelInfo, len(hostedModels))
	copy(models, hostedModels)

	local, err := d.local.ListModels(ctx)
	if err != nil {
		slog.Debug("local models unavailable", "error", err)
		return models
	}
	for _, m := range local {
		models = append(models, ModelInfo{ID: m.Name, Name: m.Name, Provider: "ollama", Ctx: localContextWindow})
	}
	return models
}

// Health is the body of GET /api/health.
type Health struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	APIKey    string `json:"api_key"`
	Models    int    `json:"models"`
	Ollama    string `json:"ollama"`
}

// Health reports whether a default key is configured and pings the daemon.
func (d *Dispatcher) Health(ctx context.Context) Health {
	keyState := "missing"
	if credential.IsValid(d.opts.DefaultAPIKey) {
		keyState = "configured"
	}
	return Health{
		Status:    "ok",
		Version:   config.Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		APIKey:    keyState,
		Models:    len(hostedModels),
		Ollama:    d.local.Ping(ctx),
	}
}
