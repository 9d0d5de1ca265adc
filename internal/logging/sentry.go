package logging

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

func InitSentry(config SentryConfig) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		TracesSampleRate: config.TracesSampleRate,
		Debug:            config.Debug,
		EnableLogs:       true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			event.ServerName = "wordclash-backend"
			return event
		},
		AttachStacktrace: true,
		Transport: &sentry.HTTPTransport{
			Timeout: 5 * time.Second,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	return nil
}

func SentryHTTPMiddleware() func(http.Handler) http.Handler {
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic:         false,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
	return sentryHandler.Handle
}

// hubFor returns the request-scoped hub when the sentryhttp middleware put
// one on the context, otherwise the process-wide hub.
func hubFor(ctx context.Context) *sentry.Hub {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

func CaptureError(ctx context.Context, err error, tags map[string]string, extra map[string]interface{}) {
	hub := hubFor(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extra {
			scope.SetExtra(k, v)
		}
		scope.SetLevel(sentry.LevelError)
		hub.CaptureException(err)
	})
}

func CaptureMessage(ctx context.Context, message string, level sentry.Level, tags map[string]string, extra map[string]interface{}) {
	hub := hubFor(ctx)
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extra {
			scope.SetExtra(k, v)
		}
		scope.SetLevel(level)
		hub.CaptureMessage(message)
	})
}

func SetTag(ctx context.Context, key, value string) {
	hubFor(ctx).ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag(key, value)
	})
}

func AddBreadcrumb(ctx context.Context, category, message string, data map[string]interface{}) {
	hubFor(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
		Data:      data,
	}, nil)
}

func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}

// PerformanceMetrics is the periodic load snapshot the hub reports.
type PerformanceMetrics struct {
	ActiveConnections int64
	ActiveRooms       int64
	ActivePlayers     int64
	LobbySubscribers  int64
	MemoryUsageMB     float64
}

func RecordPerformanceMetrics(ctx context.Context, metrics PerformanceMetrics) {
	tags := map[string]string{
		"component": "performance_metrics",
	}
	extra := map[string]interface{}{
		"active_connections": metrics.ActiveConnections,
		"active_rooms":       metrics.ActiveRooms,
		"active_players":     metrics.ActivePlayers,
		"lobby_subscribers":  metrics.LobbySubscribers,
		"memory_usage_mb":    metrics.MemoryUsageMB,
	}

	CaptureMessage(ctx, "Performance metrics snapshot", sentry.LevelInfo, tags, extra)
}
