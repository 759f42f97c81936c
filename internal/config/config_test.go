package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default HTTPAddr, got %q", cfg.HTTPAddr)
	}
	if cfg.Chunk.Size != 1000 || cfg.Chunk.Overlap != 200 {
		t.Fatalf("unexpected chunk defaults: %+v", cfg.Chunk)
	}
	if cfg.Obs.ServiceName != "ragforge" {
		t.Fatalf("expected default obs service name, got %q", cfg.Obs.ServiceName)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error for missing file: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected defaults to apply when file is missing, got %+v", cfg)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := "http_addr: \":9090\"\nchunk:\n  size: 500\n  overlap: 50\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected YAML override, got %q", cfg.HTTPAddr)
	}
	if cfg.Chunk.Size != 500 || cfg.Chunk.Overlap != 50 {
		t.Fatalf("unexpected chunk config: %+v", cfg.Chunk)
	}
	// Fields absent from the YAML keep their defaults.
	if cfg.Retrieval.KRecall != 40 {
		t.Fatalf("expected untouched default to survive partial YAML, got %d", cfg.Retrieval.KRecall)
	}
}

func TestLoad_MalformedYAMLIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("not: valid: yaml: ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for malformed YAML")
	}
}

func TestApplyEnvOverrides_WinsOverYAMLAndDefaults(t *testing.T) {
	t.Setenv("RAGFORGE_HTTP_ADDR", ":7070")
	t.Setenv("RAGFORGE_CHUNK_SIZE", "777")
	t.Setenv("RAGFORGE_GENERATOR_TEMPERATURE", "0.5")
	t.Setenv("RAGFORGE_AUTH_ALLOWED_DOMAINS", "a.com, b.com ,c.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("expected env override, got %q", cfg.HTTPAddr)
	}
	if cfg.Chunk.Size != 777 {
		t.Fatalf("expected env override for chunk size, got %d", cfg.Chunk.Size)
	}
	if cfg.Generator.Temperature != 0.5 {
		t.Fatalf("expected env override for temperature, got %v", cfg.Generator.Temperature)
	}
	want := []string{"a.com", "b.com", "c.com"}
	if len(cfg.Auth.AllowedDomains) != len(want) {
		t.Fatalf("unexpected allowed domains: %v", cfg.Auth.AllowedDomains)
	}
	for i, d := range want {
		if cfg.Auth.AllowedDomains[i] != d {
			t.Fatalf("unexpected allowed domains: %v", cfg.Auth.AllowedDomains)
		}
	}
}

func TestApplyEnvOverrides_InvalidNumericIsIgnored(t *testing.T) {
	t.Setenv("RAGFORGE_CHUNK_SIZE", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunk.Size != 1000 {
		t.Fatalf("expected default to survive an unparsable override, got %d", cfg.Chunk.Size)
	}
}

func TestSplitCSV(t *testing.T) {
	t.Parallel()
	got := splitCSV(" a , b,,c ")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitCSV() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitCSV() = %v, want %v", got, want)
		}
	}
}
