package ws

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"wordclash-backend/internal/config"
	"wordclash-backend/internal/logging"
)

const (
	// maxConcurrentConnections caps the whole process; per-IP and rate
	// limits are configuration.
	maxConcurrentConnections = 1000

	rateLimitWindow          = time.Minute
	rateLimitCleanupInterval = 5 * time.Minute
	staleLimiterAge          = time.Hour
)

// connectionLimit tracks the sliding message window for one connection.
type connectionLimit struct {
	messages    []time.Time
	lastMessage time.Time
	ipAddress   string
}

// SecurityMiddleware guards the WebSocket endpoint: origin allow-list,
// per-IP and global connection caps, and a per-connection message rate
// limit checked on every read.
type SecurityMiddleware struct {
	messagesPerWindow int
	maxPerIP          int
	maxMessageSize    int64
	validateOrigin    bool
	allowedOrigins    map[string]bool
	logger            *logging.Logger

	mu          sync.Mutex
	connections map[string]*connectionLimit
	perIP       map[string]int
	total       int

	stop     chan struct{}
	stopOnce sync.Once
}

func NewSecurityMiddleware(security config.SecurityConfig, rate config.RateLimitConfig, allowedOrigins []string) *SecurityMiddleware {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[strings.ToLower(origin)] = true
	}

	sm := &SecurityMiddleware{
		messagesPerWindow: rate.WebSocketMessagesPerMinute,
		maxPerIP:          rate.MaxConnectionsPerIP,
		maxMessageSize:    security.MaxMessageSize,
		validateOrigin:    security.ValidateOrigin,
		allowedOrigins:    origins,
		logger:            logging.CreateLogger("ws.security"),
		connections:       make(map[string]*connectionLimit),
		perIP:             make(map[string]int),
		stop:              make(chan struct{}),
	}
	go sm.cleanupLoop()
	return sm
}

// ValidateConnection admits or rejects an upgrade request. An admitted
// connection is counted immediately; the caller must pair every admit
// with OnConnectionClosed.
func (sm *SecurityMiddleware) ValidateConnection(r *http.Request, connID string) error {
	if err := sm.checkOrigin(r); err != nil {
		sm.logger.Warn("origin rejected", "connId", connID,
			"origin", r.Header.Get("Origin"), "remoteAddr", r.RemoteAddr)
		return err
	}
	clientIP := sm.ClientIP(r)

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.total >= maxConcurrentConnections {
		sm.logger.Warn("global connection limit hit", "connId", connID, "total", sm.total)
		return ErrServerOverloaded
	}
	if sm.perIP[clientIP] >= sm.maxPerIP {
		sm.logger.Warn("per-ip connection limit hit", "connId", connID, "clientIp", clientIP)
		return ErrTooManyConnections
	}
	sm.total++
	sm.perIP[clientIP]++
	sm.connections[connID] = &connectionLimit{
		messages:    make([]time.Time, 0, sm.messagesPerWindow),
		lastMessage: time.Now(),
		ipAddress:   clientIP,
	}
	return nil
}

// CheckMessageRate enforces the size cap and the sliding-window rate limit
// for one inbound message.
func (sm *SecurityMiddleware) CheckMessageRate(connID string, size int) error {
	if int64(size) > sm.maxMessageSize {
		return ErrMessageTooLarge
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	limit, ok := sm.connections[connID]
	if !ok {
		return ErrConnectionUnknown
	}

	now := time.Now()
	cutoff := now.Add(-rateLimitWindow)
	kept := limit.messages[:0]
	for _, t := range limit.messages {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	limit.messages = kept

	if len(limit.messages) >= sm.messagesPerWindow {
		return ErrRateLimited
	}
	limit.messages = append(limit.messages, now)
	limit.lastMessage = now
	return nil
}

// OnConnectionClosed releases the counters held by a connection.
func (sm *SecurityMiddleware) OnConnectionClosed(connID, clientIP string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.connections[connID]; !ok {
		return
	}
	delete(sm.connections, connID)
	sm.total--
	if n := sm.perIP[clientIP]; n <= 1 {
		delete(sm.perIP, clientIP)
	} else {
		sm.perIP[clientIP] = n - 1
	}
}

// CheckOrigin is the gorilla upgrader hook.
func (sm *SecurityMiddleware) CheckOrigin(r *http.Request) bool {
	return sm.checkOrigin(r) == nil
}

func (sm *SecurityMiddleware) checkOrigin(r *http.Request) error {
	if !sm.validateOrigin {
		return nil
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients carry no Origin header; the allow-list
		// exists to stop cross-site browser connections.
		return nil
	}
	if sm.allowedOrigins[strings.ToLower(origin)] {
		return nil
	}
	return ErrInvalidOrigin
}

// ClientIP resolves the requesting IP through common proxy headers.
func (sm *SecurityMiddleware) ClientIP(r *http.Request) string {
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
func (sm *SecurityMiddleware) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

func (sm *SecurityMiddleware) cleanupLoop() {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
			sm.dropStaleLimiters()
		}
	}
}

// dropStaleLimiters removes rate-limit state for connections whose close
// notification never arrived.
func (sm *SecurityMiddleware) dropStaleLimiters() {
	cutoff := time.Now().Add(-staleLimiterAge)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	dropped := 0
	for connID, limit := range sm.connections {
		if limit.lastMessage.Before(cutoff) {
			delete(sm.connections, connID)
			sm.total--
			if n := sm.perIP[limit.ipAddress]; n <= 1 {
				delete(sm.perIP, limit.ipAddress)
			} else {
				sm.perIP[limit.ipAddress] = n - 1
			}
			dropped++
		}
	}
	if dropped > 0 {
		sm.logger.Info("dropped stale rate limiters", "count", dropped)
	}
}

// Stats snapshots the middleware counters for the health endpoint.
func (sm *SecurityMiddleware) Stats() SecurityStats {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return SecurityStats{
		TrackedConnections: sm.total,
		UniqueIPs:          len(sm.perIP),
		AllowedOrigins:     len(sm.allowedOrigins),
	}
}

type SecurityStats struct {
	TrackedConnections int `json:"trackedConnections"`
	UniqueIPs          int `json:"uniqueIps"`
	AllowedOrigins     int `json:"allowedOrigins"`
}
