package ollama

import "github.com/zhengjr9/agent-studio/internal/chat"

// ChatRequest is sent to POST /api/chat.
type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []chat.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

// ChatResponse is the non-streaming /api/chat answer.
type ChatResponse struct {
	Model           string       `json:"model"`
	Message         chat.Message `json:"message"`
	Done            bool         `json:"done"`
	DoneReason      string       `json:"done_reason,omitempty"`
	PromptEvalCount int          `json:"prompt_eval_count,omitempty"`
	EvalCount       int          `json:"eval_count,omitempty"`
}

// TagsResponse is the GET /api/tags answer.
type TagsResponse struct {
	Models []Model `json:"models"`
}

// Model is one installed model.
type Model struct {
	Name  string `json:"name"`
	Model string `json:"model,omitempty"`
	Size  int64  `json:"size,omitempty"`
}
