package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the dialogue health service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	WindowSize     int
	FragmentTurns  int
	FragmentMaxGap time.Duration
	FragmentMaxLen int
	CoherenceTurns int
	QALowWater     float64

	EmbedProvider  string
	OllamaEndpoint string
	OllamaModel    string
	GenAIAPIKey    string
	GenAIModel     string

	DatabaseURL string
	SQLitePath  string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "convopulse"),
		AllowAnyOrigin:           false,
		WindowSize:               10,
		FragmentTurns:            5,
		FragmentMaxGap:           5 * time.Second,
		FragmentMaxLen:           160,
		CoherenceTurns:           3,
		QALowWater:               0.3,
		EmbedProvider:            envOrDefault("EMBED_PROVIDER", "auto"),
		OllamaEndpoint:           envOrDefault("OLLAMA_ENDPOINT", "http://localhost:11434"),
		OllamaModel:              envOrDefault("OLLAMA_MODEL", "nomic-embed-text"),
		GenAIAPIKey:              trimmedEnv("GENAI_API_KEY"),
		GenAIModel:               envOrDefault("GENAI_MODEL", "gemini-embedding-001"),
		DatabaseURL:              trimmedEnv("DATABASE_URL"),
		SQLitePath:               trimmedEnv("SQLITE_PATH"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.WindowSize, err = intFromEnv("TRACKER_WINDOW_SIZE", cfg.WindowSize)
	if err != nil {
		return Config{}, err
	}
	cfg.FragmentTurns, err = intFromEnv("TRACKER_FRAGMENT_TURNS", cfg.FragmentTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.FragmentMaxGap, err = durationFromEnv("TRACKER_FRAGMENT_MAX_GAP", cfg.FragmentMaxGap)
	if err != nil {
		return Config{}, err
	}
	cfg.FragmentMaxLen, err = intFromEnv("TRACKER_FRAGMENT_MAX_LEN", cfg.FragmentMaxLen)
	if err != nil {
		return Config{}, err
	}
	cfg.CoherenceTurns, err = intFromEnv("TRACKER_COHERENCE_TURNS", cfg.CoherenceTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.QALowWater, err = floatFromEnv("TRACKER_QA_LOW_WATER", cfg.QALowWater)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.WindowSize < 3 {
		return Config{}, fmt.Errorf("TRACKER_WINDOW_SIZE must be at least 3")
	}
	if cfg.FragmentTurns < 2 {
		return Config{}, fmt.Errorf("TRACKER_FRAGMENT_TURNS must be at least 2")
	}
	if cfg.FragmentMaxGap <= 0 {
		return Config{}, fmt.Errorf("TRACKER_FRAGMENT_MAX_GAP must be positive")
	}
	if cfg.FragmentMaxLen <= 0 {
		return Config{}, fmt.Errorf("TRACKER_FRAGMENT_MAX_LEN must be positive")
	}
	if cfg.CoherenceTurns < 2 {
		return Config{}, fmt.Errorf("TRACKER_COHERENCE_TURNS must be at least 2")
	}
	if cfg.QALowWater <= 0 || cfg.QALowWater > 1 {
		return Config{}, fmt.Errorf("TRACKER_QA_LOW_WATER must be in (0, 1]")
	}
	if cfg.DatabaseURL != "" && cfg.SQLitePath != "" {
		return Config{}, fmt.Errorf("DATABASE_URL and SQLITE_PATH are mutually exclusive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
