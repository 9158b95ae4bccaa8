package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("RAG_TOP_K", "")
	t.Setenv("MAX_NEW_TOKENS", "")
	t.Setenv("TEMPERATURE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 1000 {
		t.Fatalf("expected default chunk size 1000, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 200 {
		t.Fatalf("expected default chunk overlap 200, got %d", cfg.ChunkOverlap)
	}
	if cfg.RAGTopK != 3 {
		t.Fatalf("expected default top k 3, got %d", cfg.RAGTopK)
	}
	if cfg.MaxNewTokens != 1024 {
		t.Fatalf("expected default token budget 1024, got %d", cfg.MaxNewTokens)
	}
	if cfg.Temperature != 0.7 {
		t.Fatalf("expected default temperature 0.7, got %v", cfg.Temperature)
	}
	if cfg.VectorBackend != "memory" {
		t.Fatalf("expected default vector backend memory, got %q", cfg.VectorBackend)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("RAG_TOP_K", "7")
	t.Setenv("TEMPERATURE", "0.2")
	t.Setenv("VECTOR_BACKEND", "qdrant")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 500 {
		t.Fatalf("expected chunk size 500, got %d", cfg.ChunkSize)
	}
	if cfg.RAGTopK != 7 {
		t.Fatalf("expected top k 7, got %d", cfg.RAGTopK)
	}
	if cfg.Temperature != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", cfg.Temperature)
	}
	if cfg.VectorBackend != "qdrant" {
		t.Fatalf("expected qdrant backend, got %q", cfg.VectorBackend)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
}

func TestLoadIgnoresMalformedNumericEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CHUNK_SIZE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 1000 {
		t.Fatalf("malformed env must fall back to default, got %d", cfg.ChunkSize)
	}
}

func TestConfigFileOverridesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("chunk_size: 800\nollama_gen_model: llama3.1:8b\ntemperature: 0.5\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHUNK_SIZE", "1200")
	t.Setenv("CHUNK_OVERLAP", "111")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 800 {
		t.Fatalf("file override must win, got chunk size %d", cfg.ChunkSize)
	}
	if cfg.OllamaGenModel != "llama3.1:8b" {
		t.Fatalf("file override missing, got model %q", cfg.OllamaGenModel)
	}
	if cfg.Temperature != 0.5 {
		t.Fatalf("file override missing, got temperature %v", cfg.Temperature)
	}
	if cfg.ChunkOverlap != 111 {
		t.Fatalf("keys absent from the file must keep env values, got %d", cfg.ChunkOverlap)
	}
}

func TestLoadFailsOnMalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: [broken"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}
