package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_PORT", "STORE_DRIVER", "DATABASE_URL", "MAX_INFERENCE_ITERATIONS", "EMBEDDING_DIM", "EMBEDDING_PROVIDER", "CENTRALITY_MIN_EVENTS", "TEMPORAL_WINDOW"} {
		t.Setenv(key, "")
	}

	if got := ServerPort(); got != 8080 {
		t.Errorf("ServerPort() = %d, want 8080", got)
	}
	if got := StoreDriver(); got != StoreDriverNone {
		t.Errorf("StoreDriver() = %q, want %q", got, StoreDriverNone)
	}
	if got := MaxInferenceIterations(); got != 10 {
		t.Errorf("MaxInferenceIterations() = %d, want 10", got)
	}
	if got := EmbeddingDim(); got != 128 {
		t.Errorf("EmbeddingDim() = %d, want 128", got)
	}
	if got := EmbeddingProvider(); got != "hash" {
		t.Errorf("EmbeddingProvider() = %q, want hash", got)
	}
	if got := CentralityMinEvents(); got != 3 {
		t.Errorf("CentralityMinEvents() = %d, want 3", got)
	}
	if got := TemporalWindow(); got != 7*24*time.Hour {
		t.Errorf("TemporalWindow() = %v, want 168h", got)
	}
}

func TestStoreDriverFollowsDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/holmes")
	if got := StoreDriver(); got != StoreDriverPostgres {
		t.Errorf("StoreDriver() = %q, want %q", got, StoreDriverPostgres)
	}

	t.Setenv("STORE_DRIVER", StoreDriverSQLite)
	if got := StoreDriver(); got != StoreDriverSQLite {
		t.Errorf("StoreDriver() = %q, want %q", got, StoreDriverSQLite)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "-4")
	t.Setenv("MAX_INFERENCE_ITERATIONS", "lots")
	if got := EmbeddingDim(); got != 128 {
		t.Errorf("EmbeddingDim() = %d, want 128", got)
	}
	if got := MaxInferenceIterations(); got != 10 {
		t.Errorf("MaxInferenceIterations() = %d, want 10", got)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CENTRALITY_MIN_EVENTS=7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOLMES_ENV", path)
	t.Setenv("CENTRALITY_MIN_EVENTS", "")
	os.Unsetenv("CENTRALITY_MIN_EVENTS")

	if err := Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := CentralityMinEvents(); got != 7 {
		t.Errorf("CentralityMinEvents() = %d, want 7", got)
	}
}

func TestPersistInterval(t *testing.T) {
	t.Setenv("PERSIST_INTERVAL", "")
	if got := PersistInterval(); got != 5*time.Minute {
		t.Errorf("PersistInterval() = %v, want 5m", got)
	}
	t.Setenv("PERSIST_INTERVAL", "30s")
	if got := PersistInterval(); got != 30*time.Second {
		t.Errorf("PersistInterval() = %v, want 30s", got)
	}
	t.Setenv("PERSIST_INTERVAL", "bogus")
	if got := PersistInterval(); got != 5*time.Minute {
		t.Errorf("PersistInterval() = %v, want 5m fallback", got)
	}
}

func TestIntrospectionExpectations(t *testing.T) {
	t.Setenv("INTROSPECTION_EXPECTATIONS", "")
	if got := IntrospectionExpectations(); got != nil {
		t.Errorf("IntrospectionExpectations() = %v, want nil when unset", got)
	}

	t.Setenv("INTROSPECTION_EXPECTATIONS", "ENTITY=3, evidence=2")
	got := IntrospectionExpectations()
	if got["ENTITY"] != 3 || got["evidence"] != 2 || len(got) != 2 {
		t.Errorf("IntrospectionExpectations() = %v, want ENTITY=3 evidence=2", got)
	}

	t.Setenv("INTROSPECTION_EXPECTATIONS", "ENTITY=many")
	if got := IntrospectionExpectations(); got != nil {
		t.Errorf("IntrospectionExpectations() = %v, want nil for malformed input", got)
	}
}
