package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/thruflo/camloop/internal/auth"
	"github.com/thruflo/camloop/internal/config"
	"github.com/thruflo/camloop/internal/logging"
	"github.com/thruflo/camloop/internal/skill"
)

const (
	// maxBodyBytes caps the request envelope size.
	maxBodyBytes = 1 << 20

	// tokenExpiry is how long a verified token stays cached.
	tokenExpiry = 24 * time.Hour

	// cleanupInterval is how often expired tokens and rate limit entries are
	// purged.
	cleanupInterval = time.Hour

	shutdownTimeout = 5 * time.Second
)

// SkillHandler processes one decoded request envelope.
type SkillHandler interface {
	Handle(ctx context.Context, req *skill.RequestEnvelope) *skill.ResponseEnvelope
}

// Server exposes the skill over HTTP.
type Server struct {
	port      int
	tokenHash string
	handler   SkillHandler
	targets   int
	log       *logging.Logger
	limiter   *rateLimiter
	now       func() time.Time

	// HTTP server
	server   *http.Server
	listener net.Listener

	// Verified tokens, keyed by SHA-256 digest so the raw token is not kept.
	mu     sync.RWMutex
	tokens map[string]time.Time // digest -> expiry time

	// Lifecycle
	started bool
}

// Config holds server configuration options.
type Config struct {
	Port      int
	TokenHash string // Optional: argon2id hash of the bearer token
	Handler   SkillHandler
	Targets   int // Reported by /health
	Logger    *logging.Logger
	RateLimit RateLimitConfig
	Now       func() time.Time // Optional: for deterministic time-based testing
}

// NewServer creates a new Server instance.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("skill handler is required")
	}
	if cfg.TokenHash != "" {
		if err := auth.ValidateHash(cfg.TokenHash); err != nil {
			return nil, fmt.Errorf("invalid token hash: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Server{
		port:      cfg.Port,
		tokenHash: cfg.TokenHash,
		handler:   cfg.Handler,
		targets:   cfg.Targets,
		log:       logger,
		limiter:   newRateLimiter(cfg.RateLimit, now, logger),
		now:       now,
		tokens:    make(map[string]time.Time),
	}, nil
}

// NewServerFromConfig creates a Server from the application config.
func NewServerFromConfig(cfg *config.Config, handler SkillHandler, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return NewServer(&Config{
		Port:      cfg.Server.Port,
		TokenHash: cfg.Server.TokenHash,
		Handler:   handler,
		Targets:   len(cfg.Targets),
		Logger:    logger,
		RateLimit: DefaultRateLimitConfig(),
	})
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// AuthEnabled reports whether /skill requires a bearer token.
func (s *Server) AuthEnabled() bool {
	return s.tokenHash != ""
}

// Handler returns the instrumented HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/skill", s.withAuth(s.handleSkill))
	mux.HandleFunc("/health", s.handleHealth)
	return otelhttp.NewHandler(mux, "camloop")
}

// Start starts the HTTP server.
// The server runs until ctx is cancelled or Stop is called; cancelling ctx
// shuts it down the same way Stop does.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.started = true
	s.mu.Unlock()

	s.log.Info("server listening", "addr", listener.Addr().String(), "auth", s.AuthEnabled())

	go s.cleanupLoop(ctx)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if err := s.Stop(); err != nil {
				s.log.Warn("shutdown after cancel failed", "error", err)
			}
		case <-done:
		}
	}()

	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.started = false
	return nil
}

// ListenAddr returns the actual address the server is listening on.
// Useful when port 0 is used to get an available port.
// Returns empty string if not started.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withAuth requires a valid bearer token when a token hash is configured.
// Failed attempts count against the client's rate limit.
func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.AuthEnabled() {
			handler(w, r)
			return
		}

		ip := extractIP(r)
		if res := s.limiter.check(ip); !res.Allowed {
			s.log.Warn("rejecting client", "ip", ip, "reason", res.Reason, "retry_after", res.RetryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
			http.Error(w, res.Reason, http.StatusTooManyRequests)
			return
		}

		const bearerPrefix = "Bearer "
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			s.limiter.recordFailure(ip)
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}

		if !s.ValidateToken(strings.TrimPrefix(authHeader, bearerPrefix)) {
			s.limiter.recordFailure(ip)
			s.log.Warn("invalid bearer token", "ip", ip)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		s.limiter.recordSuccess(ip)
		handler(w, r)
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// ValidateToken reports whether token matches the configured hash. Verified
// tokens are cached for tokenExpiry so argon2 runs once per token rather than
// once per request.
func (s *Server) ValidateToken(token string) bool {
	if token == "" || s.tokenHash == "" {
		return false
	}

	key := digest(token)
	now := s.now()

	s.mu.RLock()
	expiry, cached := s.tokens[key]
	s.mu.RUnlock()
	if cached && now.Before(expiry) {
		return true
	}

	ok, err := auth.VerifyToken(token, s.tokenHash)
	if err != nil {
		s.log.Error("token verification failed", "error", err)
		return false
	}
	if !ok {
		return false
	}

	s.mu.Lock()
	s.tokens[key] = now.Add(tokenExpiry)
	s.mu.Unlock()
	return true
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// purgeExpired removes expired tokens and stale rate limit entries.
func (s *Server) purgeExpired() {
	now := s.now()
	s.mu.Lock()
	for key, expiry := range s.tokens {
		if now.After(expiry) {
			delete(s.tokens, key)
		}
	}
	s.mu.Unlock()

	s.limiter.cleanup()
}

func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

// handleSkill handles POST /skill.
func (s *Server) handleSkill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req skill.RequestEnvelope
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.log.Warn("invalid request envelope", "error", err)
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	s.log.Debug("skill request", "type", req.Request.Type, "session", req.Session.SessionID)
	resp := s.handler.Handle(r.Context(), &req)
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status  string `json:"status"`
	Targets int    `json:"targets"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Targets: s.targets})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
