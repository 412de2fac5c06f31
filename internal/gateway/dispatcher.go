// Package gateway selects a backend for each chat request and maps backend
// results and failures onto the client-facing contract.
package gateway

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/zhengjr9/agent-studio/internal/adapter"
	"github.com/zhengjr9/agent-studio/internal/adapter/anthropic"
	"github.com/zhengjr9/agent-studio/internal/adapter/ollama"
	"github.com/zhengjr9/agent-studio/internal/chat"
	"github.com/zhengjr9/agent-studio/internal/credential"
	apierrors "github.com/zhengjr9/agent-studio/internal/errors"
)

// HostedModelPrefix is the naming convention of hosted-provider models.
const HostedModelPrefix = "claude"

// HostedBackend is the hosted provider: blocking and streaming.
type HostedBackend interface {
	adapter.Backend
	adapter.Streamer
}

// LocalBackend is the local daemon.
type LocalBackend interface {
	adapter.Backend
	ListModels(ctx context.Context) ([]ollama.Model, error)
	Ping(ctx context.Context) string
}

// Options is the read-only configuration of a Dispatcher.
type Options struct {
	// Defaults fill absent fields of hosted requests.
	Defaults chat.Defaults
	// LocalModel replaces an absent model on requests routed to the daemon.
	LocalModel string
	// DefaultAPIKey is used when the caller supplies no credential.
	DefaultAPIKey string
	// AuxTimeout bounds the enhance and review calls.
	AuxTimeout time.Duration
}

// Dispatcher routes requests to the hosted provider or the local daemon.
// It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	hosted HostedBackend
	local  LocalBackend
	opts   Options
}

// New constructs a Dispatcher.
func New(hosted HostedBackend, local LocalBackend, opts Options) *Dispatcher {
	if opts.LocalModel == "" {
		opts.LocalModel = "llama3.2"
	}
	if opts.AuxTimeout <= 0 {
		opts.AuxTimeout = 60 * time.Second
	}
	return &Dispatcher{hosted: hosted, local: local, opts: opts}
}

// DefaultAPIKey returns the process-wide credential.
func (d *Dispatcher) DefaultAPIKey() string { return d.opts.DefaultAPIKey }

// IsLocal reports whether req goes to the local daemon: the caller asked for
// it, or the model does not follow the hosted naming convention.
func (d *Dispatcher) IsLocal(req *chat.Request) bool {
	if req.Provider.Normalize() == chat.ProviderLocal {
		return true
	}
	model := req.Model
	if model == "" {
		model = d.opts.Defaults.Model
	}
	return !strings.HasPrefix(model, HostedModelPrefix)
}

// Route returns the backend serving req.
func (d *Dispatcher) Route(req *chat.Request) adapter.Backend {
	if d.IsLocal(req) {
		return d.local
	}
	return d.hosted
}

// Authorize fails fast when apiKey cannot be a hosted-provider key.
func (d *Dispatcher) Authorize(apiKey string) error {
	if !credential.IsValid(apiKey) {
		return &apierrors.AuthError{}
	}
	return nil
}

// prepare checks the credential, then validates req, picks the backend and builds its
// payload.
func (d *Dispatcher) prepare(endpoint string, req *chat.Request, apiKey string, streaming bool) (adapter.Backend, chat.Payload, error) {
	if err := d.Authorize(apiKey); err != nil {
		return nil, chat.Payload{}, err
	}
	if err := req.Validate(); err != nil {
		return nil, chat.Payload{}, &apierrors.ValidationError{Err: err}
	}
	var (
		backend  adapter.Backend = d.hosted
		defaults                 = d.opts.Defaults
	)
	if d.IsLocal(req) {
		backend = d.local
		defaults.Model = d.opts.LocalModel
	}
	p := chat.Build(req, defaults, streaming)
	logRequest(endpoint, backend.Name(), p, apiKey)
	return backend, p, nil
}

// Chat performs a blocking completion.
func (d *Dispatcher) Chat(ctx context.Context, req *chat.Request, apiKey string) (*chat.Result, error) {
	backend, p, err := d.prepare("chat", req, apiKey, false)
	if err != nil {
		return nil, err
	}
	res, err := backend.SendChat(ctx, p, apiKey)
	if err != nil {
		slog.Error("chat failed", "backend", backend.Name(), "model", p.Model, "error", err)
		return nil, err
	}
	return res, nil
}

// Stream yields the normalized event stream for req. Every path, failures
// included, ends with exactly one Done; a failure is announced by one Error
// right before it. When the consumer stops early the upstream body is closed
// before Stream returns.
func (d *Dispatcher) Stream(ctx context.Context, req *chat.Request, apiKey string) iter.Seq[chat.StreamEvent] {
	return func(yield func(chat.StreamEvent) bool) {
		fail := func(err error) {
			if yield(chat.ErrorEvent(StreamErrorMessage(err))) {
				yield(chat.Done())
			}
		}

		backend, p, err := d.prepare("stream", req, apiKey, true)
		if err != nil {
			fail(err)
			return
		}

		streamer, ok := backend.(adapter.Streamer)
		if !ok {
			// The daemon has no incremental interface: one blocking call
			// delivered as a single token.
			res, err := backend.SendChat(ctx, p, apiKey)
			if err != nil {
				fail(err)
				return
			}
			for _, ev := range []chat.StreamEvent{chat.Token(res.Content), chat.UsageEvent(res.Usage), chat.Done()} {
				if !yield(ev) {
					return
				}
			}
			return
		}

		body, err := streamer.StreamChat(ctx, p, apiKey)
		if err != nil {
			slog.Error("stream handshake failed", "backend", backend.Name(), "error", err)
			fail(err)
			return
		}
		defer body.Close()

		for ev := range anthropic.Translate(body) {
			if ev.Kind == chat.EventError {
				slog.Warn("stream terminated with error", "backend", backend.Name(), "error", ev.Message)
			}
			if !yield(ev) {
				slog.Debug("client went away, closing upstream stream", "backend", backend.Name())
				return
			}
		}
	}
}

// StreamErrorMessage is the text of the Error frame sent for err.
func StreamErrorMessage(err error) string {
	var upErr *apierrors.UpstreamError
	switch {
	case errors.As(err, &upErr):
		return upErr.Error()
	case apierrors.IsTimeout(err):
		return "Timeout"
	}
	return err.Error()
}

func logRequest(endpoint, backend string, p chat.Payload, apiKey string) {
	approxTokens := 0
	for _, m := range p.Messages {
		approxTokens += len(m.Content) / 4
	}
	slog.Info("chat request",
		"endpoint", endpoint,
		"backend", backend,
		"model", p.Model,
		"msgs", len(p.Messages),
		"approx_tokens", approxTokens,
		"api_key", credential.Mask(apiKey),
	)
}
