package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrMissingAPIKey = errors.New("API key not configured: set ANTHROPIC_API_KEY in .env or send api_key")
	ErrMalformedBody = errors.New("malformed request body")
	ErrEmptyPrompt   = errors.New("prompt must not be empty")
	ErrEmptyContent  = errors.New("content must not be empty")
)

// AuthError reports a missing or malformed credential. The upstream call is
// never attempted when one is returned.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return ErrMissingAPIKey.Error()
	}
	return e.Reason
}

func (e *AuthError) Unwrap() error { return ErrMissingAPIKey }

// UpstreamError means the backend was reachable but rejected the request.
// Local marks failures of the local daemon, whose detail is not structured.
type UpstreamError struct {
	StatusCode int
	Body       string
	Local      bool
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Local && e.Err != nil:
		return fmt.Sprintf("local daemon: %v", e.Err)
	case e.Local:
		return fmt.Sprintf("local daemon error (status %d)", e.StatusCode)
	default:
		return fmt.Sprintf("API error %d", e.StatusCode)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TimeoutError means the backend did not answer within the operation's bound.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Op == "" {
		return "timeout"
	}
	return e.Op + ": timeout"
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ProtocolError means the backend answered with bytes that do not parse as
// its declared format.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol error: %v", e.Err) }

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError rejects a client request before any backend is selected.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// StatusFor maps an error from the gateway core to the HTTP status returned
// by the non-streaming endpoints.
func StatusFor(err error) int {
	var (
		authErr       *AuthError
		upstreamErr   *UpstreamError
		validationErr *ValidationError
		protocolErr   *ProtocolError
	)
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &validationErr), errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest
	case errors.As(err, &upstreamErr):
		if upstreamErr.Local || upstreamErr.StatusCode < 400 || upstreamErr.StatusCode > 599 {
			return http.StatusBadGateway
		}
		return upstreamErr.StatusCode
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.As(err, &protocolErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing value for err. Upstream rejections carry
// the upstream body, decoded when it is JSON.
func Message(err error) any {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		if upstreamErr.Local || upstreamErr.Body == "" {
			return upstreamErr.Error()
		}
		var body any
		if json.Unmarshal([]byte(upstreamErr.Body), &body) == nil {
			return body
		}
		return upstreamErr.Body
	}
	if IsTimeout(err) {
		var te *TimeoutError
		if errors.As(err, &te) {
			return te.Error()
		}
		return "timeout"
	}
	return err.Error()
}

type jsonError struct {
	Error any `json:"error"`
}

// WriteJSONError writes {"error": message} with the given status.
func WriteJSONError(w http.ResponseWriter, statusCode int, message any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message})
}

// WriteError classifies err and writes it as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSONError(w, StatusFor(err), Message(err))
}
