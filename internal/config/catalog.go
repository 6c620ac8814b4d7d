package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"speech-orchestrator/internal/domain"
)

// Catalog provides read-only access to the installed model descriptors.
type Catalog interface {
	// Descriptor returns the descriptor registered under name.
	Descriptor(name string) (domain.ModelDescriptor, bool)
	// Descriptors returns all registered descriptors keyed by name.
	Descriptors() map[string]domain.ModelDescriptor
	// DefaultModel returns the name to load when no model was requested.
	DefaultModel() string
}

// catalogFile is the on-disk shape of the model catalog.
type catalogFile struct {
	Default string                   `json:"default"`
	Models  []domain.ModelDescriptor `json:"models"`
}

// JSONCatalog is a Catalog backed by one JSON file, loaded once.
type JSONCatalog struct {
	defaultModel string
	models       map[string]domain.ModelDescriptor
}

// LoadCatalog reads the model catalog from path. A missing file yields an
// empty catalog, matching the settings store's first-launch behavior.
func LoadCatalog(path string) (*JSONCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &JSONCatalog{models: map[string]domain.ModelDescriptor{}}, nil
		}

		return nil, err
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse model catalog %s: %w", path, err)
	}

	models := make(map[string]domain.ModelDescriptor, len(file.Models))
	for _, desc := range file.Models {
		if desc.Name == "" {
			return nil, fmt.Errorf("model catalog %s: descriptor without a name", path)
		}
		models[desc.Name] = desc
	}

	return &JSONCatalog{defaultModel: file.Default, models: models}, nil
}

// Descriptor returns the descriptor registered under name.
func (c *JSONCatalog) Descriptor(name string) (domain.ModelDescriptor, bool) {
	desc, ok := c.models[name]
	return desc, ok
}

// Descriptors returns a copy of all registered descriptors keyed by name.
func (c *JSONCatalog) Descriptors() map[string]domain.ModelDescriptor {
	out := make(map[string]domain.ModelDescriptor, len(c.models))
	for name, desc := range c.models {
		out[name] = desc
	}
	return out
}

// DefaultModel returns the configured default model name.
func (c *JSONCatalog) DefaultModel() string {
	return c.defaultModel
}
