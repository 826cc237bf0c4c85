// internal/config/config.go
package config

import (
	"os"
	"path/filepath"
)

// Config collects the environment-driven settings for the client.
// Environment variables:
//   - PRESIDENTS_API_URL (default "http://127.0.0.1:8080")
//   - PRESIDENTS_WS_URL (default "ws://127.0.0.1:8080/ws")
//   - PRESIDENTS_AUTH_TOKEN (optional, opaque bearer token)
//   - PRESIDENTS_STATE_FILE (default "$HOME/.config/presidents/identity")
//   - PRESIDENTS_LOG_LEVEL (default "info")
type Config struct {
	APIBaseURL string
	WSURL      string
	AuthToken  string
	StateFile  string
	LogLevel   string
}

// Load reads the configuration from the environment. Callers that want
// dotenv support import godotenv/autoload in main.
func Load() Config {
	return Config{
		APIBaseURL: getEnv("PRESIDENTS_API_URL", "http://127.0.0.1:8080"),
		WSURL:      getEnv("PRESIDENTS_WS_URL", "ws://127.0.0.1:8080/ws"),
		AuthToken:  os.Getenv("PRESIDENTS_AUTH_TOKEN"),
		StateFile:  getEnv("PRESIDENTS_STATE_FILE", defaultStateFile()),
		LogLevel:   getEnv("PRESIDENTS_LOG_LEVEL", "info"),
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "presidents-identity"
	}
	return filepath.Join(dir, "presidents", "identity")
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
