package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Processor.TokenType != "token" {
		t.Errorf("TokenType = %q", cfg.Processor.TokenType)
	}
	if !cfg.Processor.Rules.Deduplicate || !cfg.Processor.Rules.Align {
		t.Error("rules must be enabled by default")
	}
	if cfg.Kafka.Topics.AnnotatedDocuments == "" || cfg.Kafka.Topics.SpanResults == "" {
		t.Error("topics must have defaults")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
processor:
  workers: 2
  entityTypes: [gene, disease]
  prefixLength: 4
  rules:
    condense: false
redis:
  cacheTTL: 30s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SI_PROCESSOR_WORKERS", "8")
	t.Setenv("SI_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Processor.Workers != 8 {
		t.Errorf("Workers = %d, want env override 8", cfg.Processor.Workers)
	}
	if !slices.Equal(cfg.Processor.EntityTypes, []string{"gene", "disease"}) {
		t.Errorf("EntityTypes = %v", cfg.Processor.EntityTypes)
	}
	if cfg.Processor.PrefixLength != 4 {
		t.Errorf("PrefixLength = %d", cfg.Processor.PrefixLength)
	}
	if cfg.Processor.Rules.Condense {
		t.Error("condense should be disabled by the file")
	}
	if cfg.Redis.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v", cfg.Redis.CacheTTL)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("processor:\n  workers: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for zero workers")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
