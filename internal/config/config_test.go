package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formwizard.yaml")
	data := "listen_addr: \":9000\"\nsink_url: https://quotes.example.com\nallowed_origins:\n  - https://agency.example.com\nforms_dir: ./forms\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FORMWIZARD_LOG_LEVEL", "debug")
	t.Setenv("FORMWIZARD_SINK_URL", "http://localhost:9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &Config{
		ListenAddr:     ":9000",
		SinkURL:        "http://localhost:9999",
		LogLevel:       "debug",
		AllowedOrigins: []string{"https://agency.example.com"},
		FormsDir:       "./forms",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCommaSeparatedOrigins(t *testing.T) {
	t.Setenv("FORMWIZARD_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins); diff != "" {
		t.Fatalf("origins mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadRejectsEmptyListenAddr(t *testing.T) {
	t.Setenv("FORMWIZARD_LISTEN_ADDR", " ")

	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "listen_addr") {
		t.Fatalf("err = %v, want listen_addr error", err)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "formwizard.yaml")
	in := Config{
		ListenAddr:     ":8181",
		SinkURL:        "http://sink.test",
		DatabaseURL:    "postgres://localhost/quotes",
		LogLevel:       "warn",
		AllowedOrigins: []string{"http://a.test"},
	}
	if err := Write(path, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(&in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
