package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Backend
	BackendURL     string
	RequestTimeout time.Duration
	HealthAttempts int
	HealthDelay    time.Duration

	// Settings (mode flags) storage
	SettingsDir string

	// SurrealDB report store; empty URL disables the durable store
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Sample backend
	ServerAddr string
	ServerLLM  bool
	OllamaHost string
	LLMModel   string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		BackendURL:     getEnv("ASKDATA_BACKEND_URL", "http://localhost:8090"),
		RequestTimeout: parseDuration(getEnv("ASKDATA_REQUEST_TIMEOUT", "2m")),
		HealthAttempts: parseInt(getEnv("ASKDATA_HEALTH_ATTEMPTS", "3")),
		HealthDelay:    parseDuration(getEnv("ASKDATA_HEALTH_DELAY", "2s")),

		SettingsDir: getEnv("ASKDATA_SETTINGS_DIR", defaultSettingsDir()),

		SurrealDBURL:       getEnv("SURREALDB_URL", ""),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "askdata"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "reports"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		ServerAddr: getEnv("ASKDATA_SERVER_ADDR", ":8090"),
		ServerLLM:  getEnv("ASKDATA_SERVER_LLM", "") == "1",
		OllamaHost: getEnv("OLLAMA_HOST", "http://localhost:11434"),
		LLMModel:   getEnv("ASKDATA_LLM_MODEL", "llama3.2"),

		LogFile:  getEnv("ASKDATA_LOG_FILE", "/tmp/askdata.log"),
		LogLevel: parseLogLevel(getEnv("ASKDATA_LOG_LEVEL", "INFO")),
	}
}

// defaultSettingsDir resolves the per-user settings directory, honoring
// XDG_CONFIG_HOME.
func defaultSettingsDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "askdata")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "askdata")
	}
	return filepath.Join(home, ".config", "askdata")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
