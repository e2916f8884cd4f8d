package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/entryhub/internal/config"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Panel.Name != "front-door" {
		t.Errorf("panel.name = %q", cfg.Panel.Name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`
panel:
  name: front-door
  log_levl: info
providers:
  transcriber:
    name: openai
`))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "log_levl") {
		t.Errorf("error %q does not name the unknown key", err)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("panel: [unclosed"))
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
