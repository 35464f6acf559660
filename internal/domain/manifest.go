// internal/domain/manifest.go
package domain

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the descriptor snapshot written into generated projects.
const ManifestFile = "apigen.schema.yaml"

// Manifest is the persisted form of an introspection result.
type Manifest struct {
	Dialect string            `yaml:"dialect"`
	Tables  []TableDescriptor `yaml:"tables"`
}

// Encode renders the manifest as YAML.
func (m Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode schema manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode schema manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeManifest parses a manifest and validates every table in it.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode schema manifest: %w", err)
	}
	if m.Dialect == "" {
		return nil, fmt.Errorf("decode schema manifest: missing dialect")
	}
	for _, t := range m.Tables {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("decode schema manifest: %w", err)
		}
	}
	return &m, nil
}

// LoadManifest reads and decodes a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema manifest: %w", err)
	}
	return DecodeManifest(data)
}
