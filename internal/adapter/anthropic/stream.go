package anthropic

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/zhengjr9/agent-studio/internal/chat"
	apierrors "github.com/zhengjr9/agent-studio/internal/errors"
)

// maxLineSize bounds a single SSE line; larger lines end the stream.
const maxLineSize = 1 << 20

// doneSentinel is the legacy end-of-stream marker some relays send.
const doneSentinel = "[DONE]"

// ParseEvent decodes one SSE data payload into its typed variant. Kinds the
// gateway does not act on come back as UnknownEvent.
func ParseEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "content_block_delta":
		var ev ContentBlockDelta
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "message_delta":
		var ev MessageDelta
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case "message_stop":
		return MessageStop{}, nil
	case "error":
		var ev StreamError
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	}
	return UnknownEvent{Type: head.Type}, nil
}

// State is the translator's position in the line protocol.
type State int

const (
	// StateAwaitingLine waits for the next line of the upstream body.
	StateAwaitingLine State = iota
	// StateEmitting holds while a parsed line is turned into events.
	StateEmitting
	// StateClosed is terminal: Done has been produced.
	StateClosed
)

// Translator turns the provider's SSE lines into normalized stream events.
// Once Done has been produced it ignores further input, so exactly one Done
// is ever emitted and it is always last.
type Translator struct {
	state State
}

// State reports the current state.
func (t *Translator) State() State { return t.state }

// Feed consumes one line (without its trailing newline) and returns the
// events it produces, possibly none.
func (t *Translator) Feed(line []byte) []chat.StreamEvent {
	if t.state == StateClosed {
		return nil
	}
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return nil
	}
	data, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		// event:, id:, retry: and ": keep-alive" comments.
		return nil
	}
	data = bytes.TrimPrefix(data, []byte(" "))
	if string(data) == doneSentinel {
		return t.close()
	}

	ev, err := ParseEvent(data)
	if err != nil {
		return nil
	}

	t.state = StateEmitting
	defer func() {
		if t.state == StateEmitting {
			t.state = StateAwaitingLine
		}
	}()

	switch ev := ev.(type) {
	case ContentBlockDelta:
		if ev.Delta.Type == "text_delta" {
			return []chat.StreamEvent{chat.Token(ev.Delta.Text)}
		}
	case MessageDelta:
		return []chat.StreamEvent{chat.UsageEvent(chat.Usage{
			InputTokens:  ev.Usage.InputTokens,
			OutputTokens: ev.Usage.OutputTokens,
		})}
	case MessageStop:
		return t.close()
	case StreamError:
		msg := ev.Error.Message
		if msg == "" {
			msg = ev.Error.Type
		}
		return t.close(chat.ErrorEvent(msg))
	}
	return nil
}

// Fail terminates the stream after a transport fault, a timeout or an end of
// input that arrived before any terminal frame. err may be nil for the last
// case.
func (t *Translator) Fail(err error) []chat.StreamEvent {
	if t.state == StateClosed {
		return nil
	}
	msg := "stream ended before completion"
	switch {
	case apierrors.IsTimeout(err):
		msg = "Timeout"
	case err != nil:
		msg = err.Error()
	}
	return t.close(chat.ErrorEvent(msg))
}

func (t *Translator) close(events ...chat.StreamEvent) []chat.StreamEvent {
	t.state = StateClosed
	return append(events, chat.Done())
}

// Translate reads r line by line and yields normalized events. The sequence
// always ends with exactly one Done unless the consumer stops early. Reading
// stops as soon as the stream is closed; the caller owns r.
func Translate(r io.Reader) iter.Seq[chat.StreamEvent] {
	return func(yield func(chat.StreamEvent) bool) {
		var t Translator
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for t.State() != StateClosed && sc.Scan() {
			for _, ev := range t.Feed(sc.Bytes()) {
				if !yield(ev) {
					return
				}
			}
		}
		err := sc.Err()
		if errors.Is(err, bufio.ErrTooLong) {
			err = fmt.Errorf("upstream line exceeds %d bytes", maxLineSize)
		}
		for _, ev := range t.Fail(err) {
			if !yield(ev) {
				return
			}
		}
	}
}
