package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wordclash-backend/internal/config"
	"wordclash-backend/internal/logging"
)

const (
	apiRateLimitWindow          = time.Minute
	apiRateLimitCleanupInterval = 5 * time.Minute
	staleIPAge                  = time.Hour

	// maxRequestSize bounds REST bodies. The API is read-only, so anything
	// beyond a trivial size is abuse.
	maxRequestSize = 1 << 20
)

// ipRateLimit tracks the sliding request window for one IP.
type ipRateLimit struct {
	requests    []time.Time
	lastRequest time.Time
	violations  int
}

// APIMiddleware wraps the REST endpoints with CORS, security headers,
// per-IP rate limiting, request logging and panic recovery.
type APIMiddleware struct {
	requestsPerWindow int
	allowedOrigins    map[string]bool
	allowedMethods    string
	allowedHeaders    string
	logger            *logging.Logger

	mu       sync.Mutex
	requests map[string]*ipRateLimit

	stop     chan struct{}
	stopOnce sync.Once
}

func NewAPIMiddleware(cors config.CORSConfig, rate config.RateLimitConfig) *APIMiddleware {
	origins := make(map[string]bool, len(cors.AllowedOrigins))
	for _, origin := range cors.AllowedOrigins {
		origins[strings.ToLower(origin)] = true
	}

	am := &APIMiddleware{
		requestsPerWindow: rate.APIRequestsPerMinute,
		allowedOrigins:    origins,
		allowedMethods:    strings.Join(cors.AllowedMethods, ", "),
		allowedHeaders:    strings.Join(cors.AllowedHeaders, ", "),
		logger:            logging.CreateLogger("api.middleware"),
		requests:          make(map[string]*ipRateLimit),
		stop:              make(chan struct{}),
	}
	go am.cleanupLoop()
	return am
}

// Apply wraps handler with the full middleware chain, outermost first.
func (am *APIMiddleware) Apply(handler http.Handler) http.Handler {
	handler = am.RecoveryMiddleware(handler)
	handler = am.LoggingMiddleware(handler)
	handler = am.SecurityHeadersMiddleware(handler)
	handler = am.ValidationMiddleware(handler)
	handler = am.RateLimitMiddleware(handler)
	handler = am.CORSMiddleware(handler)
	handler = am.RequestContextMiddleware(handler)
	return handler
}

// RequestContextMiddleware stamps every request with an id and the resolved
// client IP for downstream logging.
func (am *APIMiddleware) RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), requestIDKey, uuid.NewString())
		ctx = context.WithValue(ctx, clientIPKey, am.clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORSMiddleware reflects allowed origins and answers preflight requests.
func (am *APIMiddleware) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && am.allowedOrigins[strings.ToLower(origin)] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", am.allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", am.allowedHeaders)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeadersMiddleware sets the standard browser hardening headers.
func (am *APIMiddleware) SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// RateLimitMiddleware enforces the per-IP sliding request window.
func (am *APIMiddleware) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := am.clientIP(r)

		remaining, allowed := am.admit(clientIP)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(am.requestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			am.logger.Warn("api rate limit exceeded", "clientIp", clientIP, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ValidationMiddleware rejects oversized bodies and non-JSON content.
func (am *APIMiddleware) ValidationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxRequestSize {
			writeError(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "request body too large")
			return
		}
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
				writeError(w, http.StatusUnsupportedMediaType, "INVALID_CONTENT_TYPE", "expected application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs one line per request with status and duration.
func (am *APIMiddleware) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		requestID, _ := r.Context().Value(requestIDKey).(string)
		am.logger.Info("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"durationMs", time.Since(start).Milliseconds(),
			"clientIp", am.clientIP(r),
			"requestId", requestID,
		)
	})
}

// RecoveryMiddleware turns handler panics into 500 responses and reports
// them instead of killing the connection.
func (am *APIMiddleware) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic serving %s: %v", r.URL.Path, rec)
				am.logger.Error("handler panic", "path", r.URL.Path, "panic", fmt.Sprintf("%v", rec))
				logging.CaptureError(r.Context(), err,
					map[string]string{"component": "api"},
					map[string]interface{}{"path": r.URL.Path, "method": r.Method})
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// admit records one request for ip and reports the remaining budget.
func (am *APIMiddleware) admit(ip string) (remaining int, allowed bool) {
	am.mu.Lock()
	defer am.mu.Unlock()

	limit, ok := am.requests[ip]
	if !ok {
		limit = &ipRateLimit{requests: make([]time.Time, 0, am.requestsPerWindow)}
		am.requests[ip] = limit
	}

	now := time.Now()
	cutoff := now.Add(-apiRateLimitWindow)
	kept := limit.requests[:0]
	for _, t := range limit.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	limit.requests = kept

	if len(limit.requests) >= am.requestsPerWindow {
		limit.violations++
		return 0, false
	}
	limit.requests = append(limit.requests, now)
	limit.lastRequest = now
	return am.requestsPerWindow - len(limit.requests), true
}

func (am *APIMiddleware) clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Stop ends the background cleanup loop.
func (am *APIMiddleware) Stop() {
	am.stopOnce.Do(func() { close(am.stop) })
}

func (am *APIMiddleware) cleanupLoop() {
	ticker := time.NewTicker(apiRateLimitCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-am.stop:
			return
		case <-ticker.C:
			am.dropStaleIPs()
		}
	}
}

func (am *APIMiddleware) dropStaleIPs() {
	cutoff := time.Now().Add(-staleIPAge)
	am.mu.Lock()
	defer am.mu.Unlock()
	dropped := 0
	for ip, limit := range am.requests {
		if limit.lastRequest.Before(cutoff) {
			delete(am.requests, ip)
			dropped++
		}
	}
	if dropped > 0 {
		am.logger.Info("dropped stale api rate limiters", "count", dropped)
	}
}

// Stats snapshots the middleware counters.
func (am *APIMiddleware) Stats() APIStats {
	am.mu.Lock()
	defer am.mu.Unlock()

	violations := 0
	for _, limit := range am.requests {
		violations += limit.violations
	}
	return APIStats{
		TrackedIPs:      len(am.requests),
		TotalViolations: violations,
		AllowedOrigins:  len(am.allowedOrigins),
	}
}

type APIStats struct {
	TrackedIPs      int `json:"trackedIps"`
	TotalViolations int `json:"totalViolations"`
	AllowedOrigins  int `json:"allowedOrigins"`
}

// statusWriter captures the status code for request logging.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}

type contextKey string

const (
	requestIDKey contextKey = "requestId"
	clientIPKey  contextKey = "clientIp"
)
