package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverNone     = "none"
)

// Load reads the .env file specified by HOLMES_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("HOLMES_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// SQLitePath returns the SQLite database file.
// Defaults to "hyperholmes.db" if not set.
func SQLitePath() string {
	p := os.Getenv("SQLITE_PATH")
	if p == "" {
		return "hyperholmes.db"
	}
	return p
}

// StoreDriver returns the snapshot store backend.
// Defaults to "postgres" when DATABASE_URL is set, otherwise "none".
// Valid values: postgres, sqlite, none
func StoreDriver() string {
	d := os.Getenv("STORE_DRIVER")
	if d != "" {
		return d
	}
	if DatabaseURL() != "" {
		return StoreDriverPostgres
	}
	return StoreDriverNone
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// MaxInferenceIterations caps forward chaining when a caller passes no limit.
// Defaults to 10 if not set.
func MaxInferenceIterations() int {
	n, err := strconv.Atoi(os.Getenv("MAX_INFERENCE_ITERATIONS"))
	if err != nil || n <= 0 {
		return 10
	}
	return n
}

// TemporalWindow is the span within which events count as one burst.
// Defaults to 168h if not set.
func TemporalWindow() time.Duration {
	d, err := time.ParseDuration(os.Getenv("TEMPORAL_WINDOW"))
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "hash" if not set.
// Valid values: hash, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "hash"
	}
	return p
}

// EmbeddingDim returns the embedding dimension.
// Defaults to 128 if not set.
func EmbeddingDim() int {
	n, err := strconv.Atoi(os.Getenv("EMBEDDING_DIM"))
	if err != nil || n <= 0 {
		return 128
	}
	return n
}

// CentralityMinEvents is the event count at which an entity is treated as central.
// Defaults to 3 if not set.
func CentralityMinEvents() int {
	n, err := strconv.Atoi(os.Getenv("CENTRALITY_MIN_EVENTS"))
	if err != nil || n <= 0 {
		return 3
	}
	return n
}

// IntrospectionExpectations reads INTROSPECTION_EXPECTATIONS as comma-separated
// TYPE=count pairs, e.g. "ENTITY=3,EVIDENCE=2". Returns nil when unset or
// malformed, which keeps the trainer defaults.
func IntrospectionExpectations() map[string]int {
	raw := strings.TrimSpace(os.Getenv("INTROSPECTION_EXPECTATIONS"))
	if raw == "" {
		return nil
	}
	out := make(map[string]int)
	for _, part := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if !found || strings.TrimSpace(key) == "" || err != nil || n < 0 {
			return nil
		}
		out[strings.TrimSpace(key)] = n
	}
	return out
}

// RulesPath points at an optional YAML file of extra inference rules.
func RulesPath() string {
	return os.Getenv("RULES_PATH")
}

// ExportDir is where knowledge base exports are written.
// Defaults to "exports" if not set.
func ExportDir() string {
	d := os.Getenv("EXPORT_DIR")
	if d == "" {
		return "exports"
	}
	return d
}

// APIKey is the bearer token required on /v1 routes. Empty disables auth.
func APIKey() string {
	return os.Getenv("API_KEY")
}

// PersistInterval is how often open cases are snapshotted.
// Defaults to 5m if not set.
func PersistInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("PERSIST_INTERVAL"))
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}
