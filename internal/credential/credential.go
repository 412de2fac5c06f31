// Package credential resolves the caller's hosted-provider API key.
package credential

import (
	"net/http"
	"strings"
)

// KeyPrefix is the literal prefix of every hosted-provider key.
const KeyPrefix = "sk-ant"

// HeaderName carries the key when the client does not send it in the body.
const HeaderName = "X-Api-Key"

// Resolve picks the credential for one request using the following priority:
//
//  1. api_key field of the request body
//  2. X-Api-Key header
//  3. the process-wide default configured at startup
//
// The result may be empty; callers must check IsValid.
func Resolve(inline, header, processDefault string) string {
	if k := strings.TrimSpace(inline); k != "" {
		return k
	}
	if k := strings.TrimSpace(header); k != "" {
		return k
	}
	return strings.TrimSpace(processDefault)
}

// FromRequest is Resolve with the header read from r.
func FromRequest(r *http.Request, inline, processDefault string) string {
	return Resolve(inline, r.Header.Get(HeaderName), processDefault)
}

// IsValid checks presence and the key prefix. The key is not verified
// against the provider; a bad key only shows up as an upstream 401.
func IsValid(key string) bool {
	return key != "" && strings.HasPrefix(key, KeyPrefix)
}

// Mask returns a form of key that is safe to log.
func Mask(key string) string {
	switch {
	case key == "":
		return "<none>"
	case len(key) <= 12:
		return "***"
	default:
		return key[:6] + "…" + key[len(key)-4:]
	}
}
