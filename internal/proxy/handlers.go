package proxy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zhengjr9/agent-studio/internal/chat"
	"github.com/zhengjr9/agent-studio/internal/config"
	"github.com/zhengjr9/agent-studio/internal/credential"
	apierrors "github.com/zhengjr9/agent-studio/internal/errors"
	"github.com/zhengjr9/agent-studio/internal/gateway"
	"github.com/zhengjr9/agent-studio/internal/httputil"
)

// handlers adapts the dispatcher to the browser client's JSON API.
type handlers struct {
	d   *gateway.Dispatcher
	cfg *config.Config
}

// decode reads a JSON body into v. A malformed body maps to 400.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", apierrors.ErrMalformedBody, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

// POST /api/chat
func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := decode(r, &req); err != nil {
		apierrors.WriteError(w, err)
		return
	}
	apiKey := credential.FromRequest(r, req.TakeCredential(), h.d.DefaultAPIKey())

	res, err := h.d.Chat(r.Context(), &req, apiKey)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/stream
//
// The response is always 200 text/event-stream; failures travel in-band as
// an error frame followed by the terminator.
func (h *handlers) stream(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	decodeErr := decode(r, &req)
	apiKey := credential.FromRequest(r, req.TakeCredential(), h.d.DefaultAPIKey())

	httputil.SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	sw := newFrameWriter(w)

	if decodeErr != nil {
		_ = sw.WriteEvent(chat.ErrorEvent(apierrors.ErrMalformedBody.Error()))
		_ = sw.WriteEvent(chat.Done())
		return
	}

	for ev := range h.d.Stream(r.Context(), &req, apiKey) {
		if err := sw.WriteEvent(ev); err != nil {
			slog.Debug("client write failed, abandoning stream", "error", err)
			return
		}
	}
}

// POST /api/enhance
func (h *handlers) enhance(w http.ResponseWriter, r *http.Request) {
	var req gateway.EnhanceRequest
	if err := decode(r, &req); err != nil {
		apierrors.WriteError(w, err)
		return
	}
	apiKey := credential.FromRequest(r, req.APIKey, h.d.DefaultAPIKey())
	req.APIKey = ""

	res, err := h.d.Enhance(r.Context(), req, apiKey)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/review
func (h *handlers) review(w http.ResponseWriter, r *http.Request) {
	var req gateway.ReviewRequest
	if err := decode(r, &req); err != nil {
		apierrors.WriteError(w, err)
		return
	}
	apiKey := credential.FromRequest(r, req.APIKey, h.d.DefaultAPIKey())
	req.APIKey = ""

	res, err := h.d.Review(r.Context(), req, apiKey)
	if err != nil {
		apierrors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/models
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": h.d.ListKnownModels(r.Context())})
}

// GET /api/health
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.d.Health(r.Context()))
}

type publicConfig struct {
	Model      string `json:"model"`
	MaxTokens  int    `json:"max_tokens"`
	OllamaHost string `json:"ollama_host"`
	Debug      bool   `json:"debug"`
	APIKeySet  bool   `json:"api_key_set"`
	Version    string `json:"version"`
}

// GET /api/config
func (h *handlers) config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, publicConfig{
		Model:      h.cfg.DefaultModel,
		MaxTokens:  h.cfg.MaxTokens,
		OllamaHost: h.cfg.OllamaHost,
		Debug:      h.cfg.Debug,
		APIKeySet:  credential.IsValid(h.cfg.AnthropicAPIKey),
		Version:    config.Version,
	})
}
