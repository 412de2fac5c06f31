package adapter

import (
	"context"
	"io"

	"github.com/zhengjr9/agent-studio/internal/chat"
)

// Backend is one upstream chat service.
type Backend interface {
	// Name identifies the backend in logs and model listings.
	Name() string

	// SendChat performs a blocking completion. apiKey is ignored by
	// backends that do not authenticate.
	SendChat(ctx context.Context, p chat.Payload, apiKey string) (*chat.Result, error)
}

// Streamer is implemented by backends that expose an incremental interface.
type Streamer interface {
	// StreamChat opens the upstream stream and returns its raw body. The
	// caller must close it on every exit path.
	StreamChat(ctx context.Context, p chat.Payload, apiKey string) (io.ReadCloser, error)
}
