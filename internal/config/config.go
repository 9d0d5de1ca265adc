package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server   ServerConfig
	CORS     CORSConfig
	Rate     RateLimitConfig
	Room     RoomConfig
	Game     GameConfig
	Security SecurityConfig
	Store    StoreConfig
	Dev      DevConfig
	Logging  LoggingConfig
	Sentry   SentryConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	WebSocketMessagesPerMinute int
	APIRequestsPerMinute       int
	MaxConnectionsPerIP        int
}

type RoomConfig struct {
	MaxConcurrentRooms int
	MaxPlayersPerRoom  int
	InactiveTimeout    time.Duration
	FinishedTimeout    time.Duration
	CleanupInterval    time.Duration
}

// GameConfig holds the tunable timings of a match. Word length and guess
// limits are fixed rules, not configuration.
type GameConfig struct {
	CountdownSeconds  int
	SelectionTimeout  time.Duration
	ReconnectGrace    time.Duration
	SoloStartDelay    time.Duration
	TimerSyncInterval time.Duration
}

type SecurityConfig struct {
	ValidateOrigin    bool
	MaxMessageSize    int64
	ConnectionTimeout time.Duration
}

// StoreConfig configures result persistence. An empty DatabaseURL disables
// the database entirely; the server then runs memory-only.
type StoreConfig struct {
	DatabaseURL    string
	MaxConns       int
	ConnectTimeout time.Duration
	WriteQueueSize int
	WriteWorkers   int
	ForcedWordLog  string
}

type DevConfig struct {
	DebugMode bool
	TestMode  bool
}

type LoggingConfig struct {
	Level       string
	Environment string
	Service     string
	AddSource   bool
}

type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

func Load() (*Config, error) {
	config := &Config{
		Server:   loadServerConfig(),
		CORS:     loadCORSConfig(),
		Rate:     loadRateLimitConfig(),
		Room:     loadRoomConfig(),
		Game:     loadGameConfig(),
		Security: loadSecurityConfig(),
		Store:    loadStoreConfig(),
		Dev:      loadDevConfig(),
		Logging:  loadLoggingConfig(),
		Sentry:   loadSentryConfig(),
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvString("PORT", "8080"),
		Host:            getEnvString("HOST", "0.0.0.0"),
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 10*time.Second),
		IdleTimeout:     getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadCORSConfig() CORSConfig {
	defaultOrigins := []string{"http://localhost:3000", "http://localhost:5173"}

	return CORSConfig{
		AllowedOrigins: getEnvStringSlice("ALLOWED_ORIGINS", defaultOrigins),
		AllowedMethods: getEnvStringSlice("ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		AllowedHeaders: getEnvStringSlice("ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		WebSocketMessagesPerMinute: getEnvInt("WS_RATE_LIMIT", 120),
		APIRequestsPerMinute:       getEnvInt("API_RATE_LIMIT", 100),
		MaxConnectionsPerIP:        getEnvInt("MAX_CONNECTIONS_PER_IP", 10),
	}
}

func loadRoomConfig() RoomConfig {
	return RoomConfig{
		MaxConcurrentRooms: getEnvInt("MAX_CONCURRENT_ROOMS", 1000),
		MaxPlayersPerRoom:  getEnvInt("MAX_PLAYERS_PER_ROOM", 4),
		InactiveTimeout:    getEnvDuration("ROOM_INACTIVE_TIMEOUT", 30*time.Minute),
		FinishedTimeout:    getEnvDuration("FINISHED_ROOM_TIMEOUT", 10*time.Minute),
		CleanupInterval:    getEnvDuration("CLEANUP_INTERVAL", time.Minute),
	}
}

func loadGameConfig() GameConfig {
	return GameConfig{
		CountdownSeconds:  getEnvInt("COUNTDOWN_SECONDS", 3),
		SelectionTimeout:  getEnvDuration("SELECTION_TIMEOUT", 30*time.Second),
		ReconnectGrace:    getEnvDuration("RECONNECT_GRACE", 120*time.Second),
		SoloStartDelay:    getEnvDuration("SOLO_START_DELAY", 150*time.Millisecond),
		TimerSyncInterval: getEnvDuration("TIMER_SYNC_INTERVAL", time.Second),
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		ValidateOrigin:    getEnvBool("VALIDATE_ORIGIN", true),
		MaxMessageSize:    getEnvInt64("MAX_MESSAGE_SIZE", 2048),
		ConnectionTimeout: getEnvDuration("CONNECTION_TIMEOUT", 30*time.Second),
	}
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		DatabaseURL:    getEnvString("DATABASE_URL", ""),
		MaxConns:       getEnvInt("DB_MAX_CONNS", 4),
		ConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		WriteQueueSize: getEnvInt("DB_WRITE_QUEUE_SIZE", 256),
		WriteWorkers:   getEnvInt("DB_WRITE_WORKERS", 2),
		ForcedWordLog:  getEnvString("FORCED_WORD_LOG", "forced_words.ndjson"),
	}
}

func loadDevConfig() DevConfig {
	return DevConfig{
		DebugMode: getEnvBool("DEBUG_MODE", false),
		TestMode:  getEnvBool("TEST_MODE", false),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:       getEnvString("LOG_LEVEL", "info"),
		Environment: getEnvString("ENVIRONMENT", "development"),
		Service:     getEnvString("SERVICE_NAME", "wordclash-backend"),
		AddSource:   getEnvBool("LOG_ADD_SOURCE", false),
	}
}

func loadSentryConfig() SentryConfig {
	return SentryConfig{
		DSN:              getEnvString("SENTRY_DSN", ""),
		Environment:      getEnvString("SENTRY_ENVIRONMENT", "development"),
		Release:          getEnvString("SENTRY_RELEASE", "1.0.0"),
		TracesSampleRate: getEnvFloat64("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		Debug:            getEnvBool("SENTRY_DEBUG", false),
	}
}
