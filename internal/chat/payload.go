package chat

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// DefaultTemperature applies when the request does not set one.
const DefaultTemperature = 0.7

// Defaults are the process-wide fallbacks used by Build.
type Defaults struct {
	Model     string
	MaxTokens int
}

// Payload is the provider request body. It is built once per request and
// not modified afterwards.
type Payload struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// Build maps req onto a provider payload, filling absent fields from d.
func Build(req *Request, d Defaults, streaming bool) Payload {
	p := Payload{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Messages:    slices.Clone(req.Messages),
		System:      req.System,
		Temperature: DefaultTemperature,
		Stream:      streaming,
	}
	if p.Model == "" {
		p.Model = d.Model
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = d.MaxTokens
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if p.Messages == nil {
		p.Messages = []Message{}
	}
	return p
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges. An empty message list is accepted.
func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid field %s: failed %q", fe.Namespace(), fe.Tag())
		}
		return err
	}
	return nil
}
