package logging

import (
	"context"
	"fmt"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

// Logger wraps a sentry.Logger with component scoping. All methods are
// nil-safe so packages can log unconditionally.
type Logger struct {
	logger    sentry.Logger
	component string
	fields    map[string]interface{}
}

var (
	globalLogger *Logger
	globalMutex  sync.RWMutex
)

type LogConfig struct {
	Level       string
	Environment string
	Service     string
	AddSource   bool
}

func NewLogger(config LogConfig) (*Logger, error) {
	sentryLogger := sentry.NewLogger(context.Background())
	sentryLogger.SetAttributes(
		attribute.String("service", config.Service),
		attribute.String("environment", config.Environment),
	)

	return &Logger{
		logger: sentryLogger,
		fields: map[string]interface{}{
			"service":     config.Service,
			"environment": config.Environment,
		},
	}, nil
}

// SetGlobalLogger installs the logger CreateLogger derives component
// loggers from.
func SetGlobalLogger(logger *Logger) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalLogger = logger
}

// CreateLogger returns a logger scoped to one component, carrying the
// global service attributes plus any additional key-value pairs.
func CreateLogger(component string, additionalFields ...interface{}) *Logger {
	globalMutex.RLock()
	defer globalMutex.RUnlock()

	componentLogger := sentry.NewLogger(context.Background())

	attributes := []attribute.Builder{attribute.String("component", component)}
	fields := map[string]interface{}{"component": component}

	if globalLogger != nil {
		if service, ok := globalLogger.fields["service"].(string); ok {
			attributes = append(attributes, attribute.String("service", service))
		}
		if env, ok := globalLogger.fields["environment"].(string); ok {
			attributes = append(attributes, attribute.String("environment", env))
		}
	}

	for i := 0; i+1 < len(additionalFields); i += 2 {
		key := fmt.Sprintf("%v", additionalFields[i])
		value := additionalFields[i+1]
		fields[key] = value
		attributes = append(attributes, buildAttribute(key, value))
	}

	componentLogger.SetAttributes(attributes...)

	return &Logger{
		logger:    componentLogger,
		component: component,
		fields:    fields,
	}
}

func buildAttribute(key string, value interface{}) attribute.Builder {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if l == nil {
		return
	}
	entry := l.logger.Debug()
	addAttributes(entry, keysAndValues...)
	entry.Emit(msg)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	if l == nil {
		return
	}
	entry := l.logger.Info()
	addAttributes(entry, keysAndValues...)
	entry.Emit(msg)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	if l == nil {
		return
	}
	entry := l.logger.Warn()
	addAttributes(entry, keysAndValues...)
	entry.Emit(msg)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	if l == nil {
		return
	}
	entry := l.logger.Error()
	addAttributes(entry, keysAndValues...)
	entry.Emit(msg)
}

func addAttributes(entry sentry.LogEntry, keysAndValues ...interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])

		switch v := keysAndValues[i+1].(type) {
		case string:
			entry.String(key, v)
		case int:
			entry.Int(key, v)
		case int64:
			entry.Int64(key, v)
		case bool:
			entry.Bool(key, v)
		case float64:
			entry.Float64(key, v)
		default:
			entry.String(key, fmt.Sprintf("%v", v))
		}
	}
}
