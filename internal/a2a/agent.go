package a2a

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/zhengjr9/agent-studio/internal/chat"
	"github.com/zhengjr9/agent-studio/internal/gateway"
)

// apiKeyContextKey is the context key used to propagate the caller's API key
// from the HTTP layer into the agent's Run function.
type apiKeyContextKey struct{}

// ContextWithAPIKey returns a new context carrying the given hosted-provider key.
// Call this in an HTTP middleware before the request reaches the A2A handler.
func ContextWithAPIKey(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, apiKeyContextKey{}, apiKey)
}

// apiKeyFromContext retrieves the API key injected by the HTTP middleware.
// Returns ("", false) when no key was injected.
func apiKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(apiKeyContextKey{}).(string)
	return v, ok && v != ""
}

// AgentConfig holds the configuration for the gateway-backed A2A agent.
type AgentConfig struct {
	// Name is the agent name exposed via A2A AgentCard.
	Name string
	// Description is exposed via A2A AgentCard.
	Description string
	// Dispatcher serves every invocation.
	Dispatcher *gateway.Dispatcher
	// Model is passed through to the dispatcher; empty selects the default.
	Model string
}

// New returns an agent.Agent whose Run logic streams the user's message
// through the dispatcher and converts the normalized events into
// session.Events that the ADK runner understands.
func New(cfg AgentConfig) (agent.Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("a2a agent: Name must not be empty")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("a2a agent: Dispatcher must not be nil")
	}

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		Run:         runFunc(cfg),
	})
}

// runFunc returns the Run closure that drives one agent invocation.
func runFunc(cfg AgentConfig) func(agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
		return func(yield func(*session.Event, error) bool) {
			// Per-request key first, then the server-side default.
			apiKey, ok := apiKeyFromContext(ctx)
			if !ok {
				apiKey = cfg.Dispatcher.DefaultAPIKey()
			}

			query := extractQuery(ctx.UserContent())
			if query == "" {
				ev := session.NewEvent(ctx.InvocationID())
				ev.Author = cfg.Name
				ev.LLMResponse = model.LLMResponse{
					Content: textContent("(empty input)"),
				}
				yield(ev, nil)
				return
			}

			// Only the current message is forwarded; earlier turns of the A2A
			// context are not replayed, so every invocation stands alone.
			req := &chat.Request{
				Model:    cfg.Model,
				Messages: []chat.Message{{Role: "user", Content: query}},
			}

			var fullText strings.Builder
			for ev := range cfg.Dispatcher.Stream(ctx, req, apiKey) {
				switch ev.Kind {
				case chat.EventError:
					yield(nil, errors.New(ev.Message))
					return
				case chat.EventToken:
					fullText.WriteString(ev.Text)

					// Partial events let streaming A2A clients see tokens as they arrive.
					partialEv := session.NewEvent(ctx.InvocationID())
					partialEv.Author = cfg.Name
					partialEv.Branch = ctx.Branch()
					partialEv.LLMResponse = model.LLMResponse{
						Content: textContent(ev.Text),
						Partial: true,
					}
					if !yield(partialEv, nil) {
						return
					}
				}
			}

			// The final non-partial event makes IsFinalResponse() true so the
			// runner closes the invocation.
			finalEv := session.NewEvent(ctx.InvocationID())
			finalEv.Author = cfg.Name
			finalEv.Branch = ctx.Branch()
			finalEv.LLMResponse = model.LLMResponse{
				Content: textContent(fullText.String()),
				Partial: false,
			}
			yield(finalEv, nil)
		}
	}
}

// extractQuery pulls the plain-text content from the genai.Content that ADK
// puts in the InvocationContext when the caller sends a message.
func extractQuery(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// textContent wraps a string into a *genai.Content.
func textContent(text string) *genai.Content {
	return &genai.Content{
		Role:  genai.RoleModel,
		Parts: []*genai.Part{{Text: text}},
	}
}
