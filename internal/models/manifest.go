// Package models manages local ggml model files: a built-in manifest of known
// variants, resolution against a managed directory, and verified downloads.
package models

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var manifestYAML []byte

// Variant describes one known ggml model build.
type Variant struct {
	Filename string `yaml:"filename"`
	URL      string `yaml:"url"`
	// SHA256 pins the expected content hash. Empty means the download is
	// accepted unverified, with a warning.
	SHA256 string `yaml:"sha256,omitempty"`
}

// Manifest maps variant ids (tiny.en, base, ...) to their descriptors.
type Manifest struct {
	Variants map[string]Variant `yaml:"variants"`
}

// DefaultManifest parses the manifest compiled into the binary.
func DefaultManifest() (*Manifest, error) {
	return ParseManifest(manifestYAML)
}

func ParseManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("models: parse manifest: %w", err)
	}
	if len(m.Variants) == 0 {
		return nil, fmt.Errorf("models: manifest lists no variants")
	}
	for id, v := range m.Variants {
		if v.Filename == "" {
			return nil, fmt.Errorf("models: variant %q has no filename", id)
		}
	}
	return &m, nil
}

// Variant looks up one descriptor by id.
func (m *Manifest) Variant(id string) (Variant, bool) {
	v, ok := m.Variants[id]
	return v, ok
}

// IDs returns the known variant ids, sorted.
func (m *Manifest) IDs() []string {
	ids := make([]string, 0, len(m.Variants))
	for id := range m.Variants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
