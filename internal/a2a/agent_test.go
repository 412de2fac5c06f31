package a2a

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"github.com/zhengjr9/agent-studio/internal/gateway"
)

func TestExtractQuery(t *testing.T) {
	assert.Empty(t, extractQuery(nil))
	assert.Equal(t, "hello world", extractQuery(&genai.Content{Parts: []*genai.Part{
		{Text: "  hello"},
		{},
		{Text: " world "},
	}}))
}

func TestAPIKeyContext(t *testing.T) {
	_, ok := apiKeyFromContext(context.Background())
	assert.False(t, ok)

	_, ok = apiKeyFromContext(ContextWithAPIKey(context.Background(), ""))
	assert.False(t, ok)

	key, ok := apiKeyFromContext(ContextWithAPIKey(context.Background(), "sk-ant-xyz"))
	assert.True(t, ok)
	assert.Equal(t, "sk-ant-xyz", key)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(AgentConfig{Dispatcher: &gateway.Dispatcher{}})
	assert.Error(t, err)

	_, err = New(AgentConfig{Name: "agent-studio"})
	assert.Error(t, err)
}
