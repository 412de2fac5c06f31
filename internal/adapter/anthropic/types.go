package anthropic

// MessagesResponse is the blocking Messages API response.
type MessagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        Usage          `json:"usage"`
}

// ContentBlock is one block of a response. Only "text" blocks carry Text.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage carries token counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// APIError is the error object of an error response or "error" stream event.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Event is one decoded SSE data payload. The concrete types are
// ContentBlockDelta, MessageDelta, MessageStop, StreamError and
// UnknownEvent.
type Event interface {
	EventType() string
}

// ContentBlockDelta carries an incremental piece of a content block.
type ContentBlockDelta struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`
}

// Delta is the inner delta of a content_block_delta event. Text is set for
// "text_delta"; other delta kinds (e.g. "input_json_delta") are ignored.
type Delta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessageDelta carries top-level message changes and cumulative usage.
type MessageDelta struct {
	Delta struct {
		StopReason string `json:"stop_reason,omitempty"`
	} `json:"delta"`
	Usage Usage `json:"usage"`
}

// MessageStop ends the message.
type MessageStop struct{}

// StreamError is an error reported in-band by the provider.
type StreamError struct {
	Error APIError `json:"error"`
}

// UnknownEvent is any event kind the gateway does not act on
// (message_start, content_block_start, ping, ...).
type UnknownEvent struct {
	Type string
}

func (ContentBlockDelta) EventType() string { return "content_block_delta" }
func (MessageDelta) EventType() string      { return "message_delta" }
func (MessageStop) EventType() string       { return "message_stop" }
func (StreamError) EventType() string       { return "error" }
func (e UnknownEvent) EventType() string    { return e.Type }
