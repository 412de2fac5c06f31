package proxy

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengjr9/agent-studio/internal/chat"
	"github.com/zhengjr9/agent-studio/internal/config"
	"github.com/zhengjr9/agent-studio/internal/gateway"
)

func TestFrameWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	fw := newFrameWriter(rec)

	require.NoError(t, fw.WriteEvent(chat.Token("Hi \"there\"")))
	require.NoError(t, fw.WriteEvent(chat.UsageEvent(chat.Usage{InputTokens: 3, OutputTokens: 5})))
	require.NoError(t, fw.WriteEvent(chat.ErrorEvent("API error 500")))
	require.NoError(t, fw.WriteEvent(chat.Done()))
	assert.Error(t, fw.WriteEvent(chat.StreamEvent{}))

	assert.Equal(t,
		`data: {"token":"Hi \"there\""}`+"\n\n"+
			`data: {"usage":{"input_tokens":3,"output_tokens":5}}`+"\n\n"+
			`data: {"error":"API error 500"}`+"\n\n"+
			"data: [DONE]\n\n",
		rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		corsMiddleware([]string{"http://localhost:3000"})(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		corsMiddleware([]string{"http://localhost:3000"})(next).ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/stream", nil)
		req.Header.Set("Origin", "http://anywhere")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		corsMiddleware([]string{"*"})(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Api-Key")
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRoutesWithStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>studio</html>"), 0o644))
	h := New(&config.Config{StaticDir: dir}, gateway.New(nil, nil, gateway.Options{})).Handler()

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/api/chat", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/models", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/nope", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}
