package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/zhengjr9/agent-studio/internal/chat"
	apierrors "github.com/zhengjr9/agent-studio/internal/errors"
)

// assistMaxTokens bounds the enhance and review answers.
const assistMaxTokens = 1024

const enhanceSystemPrompt = "You are an expert in prompt engineering. " +
	"Your task: rewrite the user's prompt to make it clearer, more specific " +
	"and more effective for a language model. " +
	"Reply ONLY with the improved prompt, without explanations or prefixes."

const reviewSystemPrompt = `You are an expert code reviewer. Analyze the following output and reply ONLY with JSON:
{
  "scores": {
    "completeness": 0-100,
    "security": 0-100,
    "performance": 0-100,
    "errorHandling": 0-100,
    "codeQuality": 0-100
  },
  "issues": [{"severity": "critical|warning|info", "message": "..."}],
  "summary": "short summary",
  "autofix": "main improvement suggestion"
}`

// EnhanceRequest is the body of POST /api/enhance.
type EnhanceRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	APIKey string `json:"api_key,omitempty"`
}

// EnhanceResult is the answer of POST /api/enhance.
type EnhanceResult struct {
	Original string     `json:"original"`
	Enhanced string     `json:"enhanced"`
	Usage    chat.Usage `json:"usage"`
}

// ReviewRequest is the body of POST /api/review.
type ReviewRequest struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
}

// ReviewResult is the answer of POST /api/review. Raw is set only when the
// model's answer could not be parsed and Review holds the fallback.
type ReviewResult struct {
	Review any         `json:"review"`
	Usage  *chat.Usage `json:"usage,omitempty"`
	Raw    string      `json:"raw,omitempty"`
}

// Enhance rewrites a prompt with a fixed prompt-engineering instruction.
func (d *Dispatcher) Enhance(ctx context.Context, req EnhanceRequest, apiKey string) (*EnhanceResult, error) {
	res, err := d.assist(ctx, "enhance", req.Prompt, apierrors.ErrEmptyPrompt, enhanceSystemPrompt, req.Model, apiKey)
	if err != nil {
		return nil, err
	}
	return &EnhanceResult{Original: req.Prompt, Enhanced: res.Content, Usage: res.Usage}, nil
}

// Review asks the model for a structured self-review of content. An answer
// that does not parse as JSON is returned as a summary-only review.
func (d *Dispatcher) Review(ctx context.Context, req ReviewRequest, apiKey string) (*ReviewResult, error) {
	res, err := d.assist(ctx, "review", req.Content, apierrors.ErrEmptyContent, reviewSystemPrompt, req.Model, apiKey)
	if err != nil {
		return nil, err
	}
	if review, ok := ParseReview(res.Content); ok {
		return &ReviewResult{Review: review, Usage: &res.Usage}, nil
	}
	return &ReviewResult{
		Review: map[string]any{
			"summary": res.Content,
			"scores":  map[string]any{},
			"issues":  []any{},
		},
		Raw: res.Content,
	}, nil
}

// assist is a single blocking hosted call with a fixed system instruction.
func (d *Dispatcher) assist(ctx context.Context, endpoint, input string, emptyErr error, system, model, apiKey string) (*chat.Result, error) {
	if err := d.Authorize(apiKey); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input) == "" {
		return nil, &apierrors.ValidationError{Err: emptyErr}
	}

	req := &chat.Request{
		Model:     model,
		MaxTokens: assistMaxTokens,
		System:    system,
		Messages:  []chat.Message{{Role: "user", Content: input}},
	}
	p := chat.Build(req, d.opts.Defaults, false)
	logRequest(endpoint, d.hosted.Name(), p, apiKey)

	ctx, cancel := context.WithTimeout(ctx, d.opts.AuxTimeout)
	defer cancel()
	return d.hosted.SendChat(ctx, p, apiKey)
}

// StripFences removes one leading ```json or ``` marker and one trailing ```
// marker. Nested or other language-tagged fences are left alone.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, "```json"); ok {
		s = rest
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseReview decodes the model's review text. Strict JSON is tried first,
// then a repaired form, which is accepted only when it yields an object.
func ParseReview(raw string) (any, bool) {
	clean := StripFences(raw)

	var review any
	if err := json.Unmarshal([]byte(clean), &review); err == nil {
		return review, true
	}

	repaired, err := jsonrepair.JSONRepair(clean)
	if err != nil {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
