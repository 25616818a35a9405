package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/camloop/internal/apl"
	"github.com/thruflo/camloop/internal/auth"
	"github.com/thruflo/camloop/internal/logging"
	"github.com/thruflo/camloop/internal/loop"
	"github.com/thruflo/camloop/internal/skill"
	"github.com/thruflo/camloop/internal/testutil"
)

const testToken = "test-skill-token-123"

// recordingHandler answers every request with the same envelope and keeps
// what it received.
type recordingHandler struct {
	mu       sync.Mutex
	requests []*skill.RequestEnvelope
}

func (h *recordingHandler) Handle(_ context.Context, req *skill.RequestEnvelope) *skill.ResponseEnvelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, req)
	return &skill.ResponseEnvelope{Version: "1.0", SessionAttributes: map[string]any{"gen": 1}}
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

var (
	hashOnce   sync.Once
	cachedHash string
)

// testTokenHash hashes testToken once per test binary; argon2 is slow.
func testTokenHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := auth.HashToken(testToken)
		if err != nil {
			panic(err)
		}
		cachedHash = h
	})
	return cachedHash
}

func quietLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logging.New()
	l.SetOutput(log.New(&buf, "", 0))
	return l, &buf
}

func createTestServer(t *testing.T, tokenHash string) (*Server, *recordingHandler, *testutil.Clock) {
	t.Helper()

	handler := &recordingHandler{}
	clock := testutil.NewClock(testutil.Epoch)
	logger, _ := quietLogger()
	s, err := NewServer(&Config{
		TokenHash: tokenHash,
		Handler:   handler,
		Targets:   3,
		Logger:    logger,
		RateLimit: RateLimitConfig{MaxFailures: 3, Window: time.Minute, BlockAfter: 10, BlockTime: time.Minute},
		Now:       clock.Now,
	})
	require.NoError(t, err)
	return s, handler, clock
}

func postSkill(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/skill", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.9:40000"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const launchBody = `{"version":"1.0","session":{"new":true,"sessionId":"s-1"},"request":{"type":"LaunchRequest","requestId":"r-1"}}`

func TestNewServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil config", nil, "config is required"},
		{"no handler", &Config{Port: 8080}, "skill handler is required"},
		{"bad token hash", &Config{Handler: &recordingHandler{}, TokenHash: "plain"}, "invalid token hash"},
		{"without auth", &Config{Port: 8080, Handler: &recordingHandler{}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewServer(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Port, s.Port())
			assert.False(t, s.AuthEnabled())
		})
	}
}

func TestNewServerFromConfig(t *testing.T) {
	t.Parallel()

	_, err := NewServerFromConfig(nil, &recordingHandler{}, nil)
	require.Error(t, err)

	cfg := testutil.SampleConfig()
	cfg.Server.Port = 8374
	cfg.Server.TokenHash = testTokenHash(t)
	s, err := NewServerFromConfig(cfg, &recordingHandler{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8374, s.Port())
	assert.True(t, s.AuthEnabled())
	assert.Equal(t, 3, s.targets)
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	s, _, _ := createTestServer(t, "")
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","targets":3}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleSkill(t *testing.T) {
	t.Parallel()

	t.Run("valid envelope", func(t *testing.T) {
		s, handler, _ := createTestServer(t, "")
		rec := postSkill(t, s.Handler(), launchBody, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"version":"1.0","sessionAttributes":{"gen":1},"response":{}}`, rec.Body.String())
		require.Equal(t, 1, handler.count())
		assert.Equal(t, skill.RequestLaunch, handler.requests[0].Request.Type)
		assert.Equal(t, "s-1", handler.requests[0].Session.SessionID)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		s, handler, _ := createTestServer(t, "")
		rec := postSkill(t, s.Handler(), `{"version":`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, handler.count())
	})

	t.Run("body too large", func(t *testing.T) {
		s, handler, _ := createTestServer(t, "")
		big := fmt.Sprintf(`{"version":"%s"}`, strings.Repeat("x", maxBodyBytes))
		rec := postSkill(t, s.Handler(), big, nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, 0, handler.count())
	})

	t.Run("wrong method", func(t *testing.T) {
		s, _, _ := createTestServer(t, "")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/skill", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     map[string]string
		wantStatus int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"wrong scheme", map[string]string{"Authorization": "Basic " + testToken}, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"valid token", map[string]string{"Authorization": "Bearer " + testToken}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, handler, _ := createTestServer(t, testTokenHash(t))
			rec := postSkill(t, s.Handler(), launchBody, tt.header)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, 1, handler.count())
			} else {
				assert.Equal(t, 0, handler.count())
			}
		})
	}
}

func TestAuthMiddleware_RateLimitsFailures(t *testing.T) {
	t.Parallel()
	s, handler, clock := createTestServer(t, testTokenHash(t))
	h := s.Handler()
	bad := map[string]string{"Authorization": "Bearer wrong"}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, postSkill(t, h, launchBody, bad).Code)
	}

	rec := postSkill(t, h, launchBody, map[string]string{"Authorization": "Bearer " + testToken})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, 0, handler.count())

	clock.Advance(time.Minute + time.Second)
	rec = postSkill(t, h, launchBody, map[string]string{"Authorization": "Bearer " + testToken})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestValidateToken_Caches(t *testing.T) {
	t.Parallel()
	s, _, clock := createTestServer(t, testTokenHash(t))

	assert.False(t, s.ValidateToken(""))
	assert.False(t, s.ValidateToken("wrong"))
	assert.Empty(t, s.tokens)

	assert.True(t, s.ValidateToken(testToken))
	require.Len(t, s.tokens, 1)
	assert.Equal(t, clock.Now().Add(tokenExpiry), s.tokens[digest(testToken)])
	_, rawKept := s.tokens[testToken]
	assert.False(t, rawKept)

	assert.True(t, s.ValidateToken(testToken))

	clock.Advance(tokenExpiry + time.Minute)
	s.purgeExpired()
	assert.Empty(t, s.tokens)

	// Expired entries are re-verified against the hash.
	assert.True(t, s.ValidateToken(testToken))
}

func TestValidateToken_NoHash(t *testing.T) {
	t.Parallel()
	s, _, _ := createTestServer(t, "")
	assert.False(t, s.ValidateToken(testToken))
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 30, retryAfterSeconds(30*time.Second))
	assert.Equal(t, 31, retryAfterSeconds(30*time.Second+time.Millisecond))
}

func TestServerStartStop(t *testing.T) {
	t.Parallel()
	s, _, _ := createTestServer(t, "")

	ctx, cancel := testutil.ShortOperationContext(t)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.ListenAddr() != "" }, 2*time.Second, 10*time.Millisecond)

	_, port, err := net.SplitHostPort(s.ListenAddr())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","targets":3}`, string(body))

	require.NoError(t, s.Stop())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	s, _, _ := createTestServer(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()
	require.Eventually(t, func() bool { return s.ListenAddr() != "" }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
	assert.NoError(t, s.Stop())
}

func TestServerDoubleStart(t *testing.T) {
	t.Parallel()
	s, _, _ := createTestServer(t, "")

	ctx, cancel := testutil.ShortOperationContext(t)
	defer cancel()
	go func() { _ = s.Start(ctx) }()
	require.Eventually(t, func() bool { return s.ListenAddr() != "" }, 2*time.Second, 10*time.Millisecond)
	defer s.Stop()

	err := s.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already started")
}

func TestServerStopNotStarted(t *testing.T) {
	t.Parallel()
	s, _, _ := createTestServer(t, "")
	assert.NoError(t, s.Stop())
	assert.Equal(t, "", s.ListenAddr())
}

func TestSkillEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testutil.SampleConfig()
	logger, _ := quietLogger()
	doc, err := apl.DefaultDocument()
	require.NoError(t, err)
	ctrl, err := loop.New(loop.Options{
		Config:   cfg,
		Builder:  apl.NewBuilder(cfg, testutil.NewScriptedResolver(), logger),
		Document: doc,
		Logger:   logger,
	})
	require.NoError(t, err)

	s, err := NewServerFromConfig(cfg, skill.NewHandler(cfg, ctrl, logger), logger)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/skill", "application/json", strings.NewReader(launchBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, map[string]any{"gen": float64(1)}, out["sessionAttributes"])
	directives := out["response"].(map[string]any)["directives"].([]any)
	require.Len(t, directives, 2)
	assert.Equal(t, apl.DirectiveRenderDocument, directives[0].(map[string]any)["type"])
	assert.Equal(t, apl.DirectiveExecuteCommands, directives[1].(map[string]any)["type"])
}
