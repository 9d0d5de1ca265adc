package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"wordclash-backend/internal/game"
	"wordclash-backend/internal/logging"
	"wordclash-backend/internal/room"
)

const (
	serverVersion    = "1.0.0"
	storePingTimeout = 2 * time.Second
)

// Pinger is the slice of the store the health handler needs. A nil Pinger
// means the server runs without persistence and the store check is skipped.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health and probe endpoints.
type HealthHandler struct {
	manager   *room.Manager
	dict      *game.Dictionary
	db        Pinger
	logger    *logging.Logger
	startTime time.Time
}

func NewHealthHandler(manager *room.Manager, dict *game.Dictionary, db Pinger) *HealthHandler {
	return &HealthHandler{
		manager:   manager,
		dict:      dict,
		db:        db,
		logger:    logging.CreateLogger("api.health"),
		startTime: time.Now(),
	}
}

// HealthStatus grades a component or the whole server.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       HealthStatus                `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version"`
	Uptime       string                      `json:"uptime"`
	System       SystemMetrics               `json:"system"`
	Application  ApplicationMetrics          `json:"application"`
	Dependencies map[string]DependencyHealth `json:"dependencies"`
}

type SystemMetrics struct {
	Memory     MemoryMetrics `json:"memory"`
	Goroutines int           `json:"goroutines"`
	CPUCount   int           `json:"cpuCount"`
}

type MemoryMetrics struct {
	Allocated   uint64 `json:"allocated"`
	TotalAlloc  uint64 `json:"totalAlloc"`
	Sys         uint64 `json:"sys"`
	NumGC       uint32 `json:"numGC"`
	HeapAlloc   uint64 `json:"heapAlloc"`
	HeapObjects uint64 `json:"heapObjects"`
}

type ApplicationMetrics struct {
	Rooms        RoomMetrics `json:"rooms"`
	BoundPlayers int         `json:"boundPlayers"`
}

// RoomMetrics breaks the live room population down by lifecycle state.
type RoomMetrics struct {
	Total        int `json:"total"`
	Waiting      int `json:"waiting"`
	Selecting    int `json:"selecting"`
	Playing      int `json:"playing"`
	Finished     int `json:"finished"`
	TotalPlayers int `json:"totalPlayers"`
}

type DependencyHealth struct {
	Status       HealthStatus `json:"status"`
	Message      string       `json:"message,omitempty"`
	CheckedAt    time.Time    `json:"checkedAt"`
	ResponseTime string       `json:"responseTime,omitempty"`
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	dependencies := h.checkDependencies(r.Context())
	system := collectSystemMetrics()
	status := overallHealth(system, dependencies)

	response := HealthResponse{
		Status:       status,
		Timestamp:    time.Now(),
		Version:      serverVersion,
		Uptime:       time.Since(h.startTime).String(),
		System:       system,
		Application:  h.collectApplicationMetrics(),
		Dependencies: dependencies,
	}

	statusCode := http.StatusOK
	if status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, response)

	if d := time.Since(start); d > 100*time.Millisecond {
		h.logger.Warn("slow health check", "durationMs", d.Milliseconds())
	}
}

// LivenessProbe handles GET /health/liveness. It only proves the process
// serves requests.
func (h *HealthHandler) LivenessProbe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// ReadinessProbe handles GET /health/readiness. The server is not ready
// while any dependency is unhealthy.
func (h *HealthHandler) ReadinessProbe(w http.ResponseWriter, r *http.Request) {
	dependencies := h.checkDependencies(r.Context())

	status, statusCode := "ready", http.StatusOK
	for _, dep := range dependencies {
		if dep.Status == HealthStatusUnhealthy {
			status, statusCode = "not_ready", http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":       status,
		"timestamp":    time.Now(),
		"dependencies": dependencies,
	})
}

// RegisterRoutes attaches the health endpoints to the router.
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/health/liveness", h.LivenessProbe).Methods("GET")
	router.HandleFunc("/health/readiness", h.ReadinessProbe).Methods("GET")
}

func collectSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		Memory: MemoryMetrics{
			Allocated:   m.Alloc,
			TotalAlloc:  m.TotalAlloc,
			Sys:         m.Sys,
			NumGC:       m.NumGC,
			HeapAlloc:   m.HeapAlloc,
			HeapObjects: m.HeapObjects,
		},
		Goroutines: runtime.NumGoroutine(),
		CPUCount:   runtime.NumCPU(),
	}
}

func (h *HealthHandler) collectApplicationMetrics() ApplicationMetrics {
	metrics := RoomMetrics{}
	for _, r := range h.manager.Rooms() {
		summary, ok := r.Summary()
		if !ok {
			continue
		}
		metrics.Total++
		metrics.TotalPlayers += summary.PlayerCount
		switch summary.State {
		case game.StateWaiting:
			metrics.Waiting++
		case game.StateSelecting:
			metrics.Selecting++
		case game.StatePlaying:
			metrics.Playing++
		case game.StateFinished:
			metrics.Finished++
		}
	}

	return ApplicationMetrics{
		Rooms:        metrics,
		BoundPlayers: h.manager.BoundPlayerCount(),
	}
}

func (h *HealthHandler) checkDependencies(ctx context.Context) map[string]DependencyHealth {
	dependencies := map[string]DependencyHealth{
		"dictionary": h.checkDictionary(),
	}
	if h.db != nil {
		dependencies["store"] = h.checkStore(ctx)
	}
	return dependencies
}

func (h *HealthHandler) checkDictionary() DependencyHealth {
	start := time.Now()

	if h.dict == nil {
		return DependencyHealth{
			Status:    HealthStatusUnhealthy,
			Message:   "dictionary not initialized",
			CheckedAt: time.Now(),
		}
	}

	// "about" sits in the answer list; a miss means the word lists failed
	// to load.
	if !h.dict.IsValidGuess("about") {
		return DependencyHealth{
			Status:       HealthStatusDegraded,
			Message:      "dictionary lookup failed",
			CheckedAt:    time.Now(),
			ResponseTime: time.Since(start).String(),
		}
	}

	return DependencyHealth{
		Status: HealthStatusHealthy,
		Message: fmt.Sprintf("%d answers, %d guessable words",
			h.dict.AnswerCount(), h.dict.ValidWordCount()),
		CheckedAt:    time.Now(),
		ResponseTime: time.Since(start).String(),
	}
}

func (h *HealthHandler) checkStore(ctx context.Context) DependencyHealth {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return DependencyHealth{
			Status:       HealthStatusUnhealthy,
			Message:      fmt.Sprintf("ping failed: %v", err),
			CheckedAt:    time.Now(),
			ResponseTime: time.Since(start).String(),
		}
	}

	return DependencyHealth{
		Status:       HealthStatusHealthy,
		Message:      "connected",
		CheckedAt:    time.Now(),
		ResponseTime: time.Since(start).String(),
	}
}

func overallHealth(system SystemMetrics, deps map[string]DependencyHealth) HealthStatus {
	degraded := false
	for _, dep := range deps {
		switch dep.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			degraded = true
		}
	}
	if degraded || system.Goroutines > 10000 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
