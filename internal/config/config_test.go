package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults to load, got %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Inference.Model != "llama3.2-vision" {
		t.Fatalf("unexpected model %q", cfg.Inference.Model)
	}
	if cfg.Inference.BaseURL != "http://localhost:11434" {
		t.Fatalf("unexpected base url %q", cfg.Inference.BaseURL)
	}
	if cfg.Inference.Timeout != 180*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Inference.Timeout)
	}
	if cfg.Inference.MaxConcurrent != 1 {
		t.Fatalf("unexpected max concurrent %d", cfg.Inference.MaxConcurrent)
	}
	if cfg.Server.MaxUploadBytes != 10<<20 {
		t.Fatalf("unexpected max upload %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.UI.ShowErrorDetails {
		t.Fatal("error details should be hidden by default")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISHQA_INFERENCE_MODEL", "llava")
	t.Setenv("DISHQA_INFERENCE_BASE_URL", "http://ollama:11434/")
	t.Setenv("DISHQA_INFERENCE_TIMEOUT", "30s")
	t.Setenv("DISHQA_UI_SHOW_ERROR_DETAILS", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Inference.Model != "llava" {
		t.Fatalf("unexpected model %q", cfg.Inference.Model)
	}
	if cfg.Inference.BaseURL != "http://ollama:11434" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Inference.BaseURL)
	}
	if cfg.Inference.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Inference.Timeout)
	}
	if !cfg.UI.ShowErrorDetails {
		t.Fatal("expected error details enabled")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "dish.yaml")
	content := []byte("server:\n  addr: \":9090\"\ninference:\n  max_concurrent: 0\nlog:\n  format: console\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Inference.MaxConcurrent != 1 {
		t.Fatalf("expected max_concurrent clamped to 1, got %d", cfg.Inference.MaxConcurrent)
	}
	if cfg.Log.Format != "console" {
		t.Fatalf("unexpected format %q", cfg.Log.Format)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Addr: ":8080", Mode: "release", MaxUploadBytes: 1},
			Log:       LogConfig{Level: "info", Format: "json"},
			Inference: InferenceConfig{BaseURL: "http://localhost:11434", Model: "m", MaxConcurrent: 1},
			Staging:   StagingConfig{Dir: "/tmp/x"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"no base url", func(c *Config) { c.Inference.BaseURL = "" }},
		{"non http base url", func(c *Config) { c.Inference.BaseURL = "ftp://x" }},
		{"no model", func(c *Config) { c.Inference.Model = "" }},
		{"negative timeout", func(c *Config) { c.Inference.Timeout = -time.Second }},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadBytes = 0 }},
		{"no staging dir", func(c *Config) { c.Staging.Dir = "" }},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
