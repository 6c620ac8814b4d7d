package config

import (
	"os"
	"path/filepath"
	"testing"

	"speech-orchestrator/internal/domain"
)

// TestLoadCatalogMissingFileReturnsEmpty verifies first-launch behavior.
func TestLoadCatalogMissingFileReturnsEmpty(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join(t.TempDir(), "models.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := len(catalog.Descriptors()); got != 0 {
		t.Fatalf("descriptors = %d, want 0", got)
	}
	if catalog.DefaultModel() != "" {
		t.Fatalf("default = %q, want empty", catalog.DefaultModel())
	}
}

// TestLoadCatalogParsesDescriptors verifies the on-disk catalog shape.
func TestLoadCatalogParsesDescriptors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	raw := `{
  "default": "vosk-ru-small",
  "models": [
    {
      "name": "vosk-ru-small",
      "kind": "kaldi",
      "path": "/opt/models/vosk-ru-small",
      "enabled": true
    },
    {
      "name": "zipformer-ru",
      "kind": "transducer",
      "path": "/opt/models/zipformer-ru",
      "enabled": false,
      "params": {"quantized": true, "versionTag": "2023-06-26"}
    }
  ]
}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if catalog.DefaultModel() != "vosk-ru-small" {
		t.Fatalf("default = %q", catalog.DefaultModel())
	}

	desc, ok := catalog.Descriptor("zipformer-ru")
	if !ok {
		t.Fatal("zipformer-ru not found")
	}
	if desc.Kind != domain.KindTransducer {
		t.Fatalf("kind = %s, want transducer", desc.Kind)
	}
	if !desc.Params.Quantized || desc.Params.VersionTag != "2023-06-26" {
		t.Fatalf("params = %+v", desc.Params)
	}
	if desc.Enabled {
		t.Fatal("expected zipformer-ru to be disabled")
	}
}

// TestLoadCatalogRejectsUnnamedDescriptor verifies validation on load.
func TestLoadCatalogRejectsUnnamedDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	raw := `{"models": [{"kind": "kaldi", "path": "/opt/models/x"}]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadCatalog(path); err == nil {
		t.Fatal("expected error for descriptor without a name")
	}
}
