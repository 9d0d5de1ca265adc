package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if int64Value, err := strconv.ParseInt(value, 10, 64); err == nil {
			return int64Value
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func validate(config *Config) error {
	if err := validateServerConfig(config.Server); err != nil {
		return err
	}
	if err := validateCORSConfig(config.CORS); err != nil {
		return err
	}
	if err := validateRateLimitConfig(config.Rate); err != nil {
		return err
	}
	if err := validateRoomConfig(config.Room); err != nil {
		return err
	}
	if err := validateGameConfig(config.Game); err != nil {
		return err
	}
	if err := validateSecurityConfig(config.Security); err != nil {
		return err
	}
	if err := validateStoreConfig(config.Store); err != nil {
		return err
	}
	if err := validateLoggingConfig(config.Logging); err != nil {
		return err
	}
	if err := validateSentryConfig(config.Sentry); err != nil {
		return err
	}
	return nil
}

func validateServerConfig(config ServerConfig) error {
	if config.Port == "" {
		return errors.New("server port cannot be empty")
	}

	if portNum, err := strconv.Atoi(config.Port); err != nil || portNum < 1 || portNum > 65535 {
		return errors.New("server port must be a valid number between 1 and 65535")
	}

	if config.Host == "" {
		return errors.New("server host cannot be empty")
	}

	if config.ReadTimeout <= 0 || config.WriteTimeout <= 0 || config.IdleTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}

	if config.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	return nil
}

func validateCORSConfig(config CORSConfig) error {
	if len(config.AllowedOrigins) == 0 {
		return errors.New("at least one allowed origin must be specified")
	}

	if len(config.AllowedMethods) == 0 {
		return errors.New("at least one allowed method must be specified")
	}

	return nil
}

func validateRateLimitConfig(config RateLimitConfig) error {
	if config.WebSocketMessagesPerMinute <= 0 {
		return errors.New("WebSocket messages per minute must be positive")
	}

	if config.APIRequestsPerMinute <= 0 {
		return errors.New("API requests per minute must be positive")
	}

	if config.MaxConnectionsPerIP <= 0 {
		return errors.New("max connections per IP must be positive")
	}

	return nil
}

func validateRoomConfig(config RoomConfig) error {
	if config.MaxConcurrentRooms <= 0 {
		return errors.New("max concurrent rooms must be positive")
	}

	// Sabotage word assignment needs at least two players; opponent board
	// layouts cap the room at four.
	if config.MaxPlayersPerRoom < 2 || config.MaxPlayersPerRoom > 4 {
		return errors.New("max players per room must be between 2 and 4")
	}

	if config.InactiveTimeout <= 0 {
		return errors.New("room inactive timeout must be positive")
	}

	if config.FinishedTimeout <= 0 {
		return errors.New("finished room timeout must be positive")
	}

	if config.CleanupInterval <= 0 {
		return errors.New("cleanup interval must be positive")
	}

	return nil
}

func validateGameConfig(config GameConfig) error {
	if config.CountdownSeconds < 1 || config.CountdownSeconds > 10 {
		return errors.New("countdown must be between 1 and 10 seconds")
	}

	if config.SelectionTimeout <= 0 {
		return errors.New("selection timeout must be positive")
	}

	if config.ReconnectGrace <= 0 {
		return errors.New("reconnect grace must be positive")
	}

	if config.SoloStartDelay <= 0 {
		return errors.New("solo start delay must be positive")
	}

	if config.TimerSyncInterval <= 0 {
		return errors.New("timer sync interval must be positive")
	}

	return nil
}

func validateSecurityConfig(config SecurityConfig) error {
	if config.MaxMessageSize <= 0 {
		return errors.New("max message size must be positive")
	}

	if config.MaxMessageSize > 10*1024 {
		return errors.New("max message size cannot exceed 10KB")
	}

	if config.ConnectionTimeout <= 0 {
		return errors.New("connection timeout must be positive")
	}

	return nil
}

func validateStoreConfig(config StoreConfig) error {
	if config.MaxConns <= 0 {
		return errors.New("database max connections must be positive")
	}

	if config.ConnectTimeout <= 0 {
		return errors.New("database connect timeout must be positive")
	}

	if config.WriteQueueSize <= 0 {
		return errors.New("database write queue size must be positive")
	}

	if config.WriteWorkers <= 0 {
		return errors.New("database write workers must be positive")
	}

	return nil
}

func validateLoggingConfig(config LoggingConfig) error {
	switch config.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("log level must be one of: debug, info, warn, error")
	}

	if config.Service == "" {
		return errors.New("service name cannot be empty")
	}

	if config.Environment == "" {
		return errors.New("environment cannot be empty")
	}

	return nil
}

func validateSentryConfig(config SentryConfig) error {
	if config.TracesSampleRate < 0 || config.TracesSampleRate > 1.0 {
		return errors.New("Sentry traces sample rate must be between 0 and 1.0")
	}

	if config.Environment == "" {
		return errors.New("Sentry environment cannot be empty")
	}

	if config.Release == "" {
		return errors.New("Sentry release cannot be empty")
	}

	return nil
}
