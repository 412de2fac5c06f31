package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/zhengjr9/agent-studio/internal/chat"
)

// doneFrame terminates every stream.
const doneFrame = "data: [DONE]\n\n"

// frameWriter serializes normalized stream events as client SSE frames and
// flushes after each one. Flushing is a no-op when the underlying writer does
// not implement http.Flusher.
type frameWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newFrameWriter(w http.ResponseWriter) *frameWriter {
	fw := &frameWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		fw.flusher = f
	}
	return fw
}

type tokenFrame struct {
	Token string `json:"token"`
}

type usageFrame struct {
	Usage chat.Usage `json:"usage"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// WriteEvent writes one frame for ev.
func (fw *frameWriter) WriteEvent(ev chat.StreamEvent) error {
	var err error
	switch ev.Kind {
	case chat.EventToken:
		err = fw.writeData(tokenFrame{Token: ev.Text})
	case chat.EventUsage:
		err = fw.writeData(usageFrame{Usage: ev.Usage})
	case chat.EventError:
		err = fw.writeData(errorFrame{Error: ev.Message})
	case chat.EventDone:
		_, err = io.WriteString(fw.w, doneFrame)
	default:
		return fmt.Errorf("unknown stream event kind %d", ev.Kind)
	}
	if err != nil {
		return err
	}
	fw.Flush()
	return nil
}

func (fw *frameWriter) writeData(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	_, err = fmt.Fprintf(fw.w, "data: %s\n\n", data)
	return err
}

func (fw *frameWriter) Flush() {
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
}
