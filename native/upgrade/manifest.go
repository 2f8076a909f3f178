package upgrade

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML description of a logic version's persisted layout:
//
//	logic: tax-token/v2
//	version: 2
//	reserved: 46
//	fields: [metadata, supply, balances, ...]
type Manifest struct {
	Logic  string `yaml:"logic"`
	Layout `yaml:",inline"`
}

// ParseManifest decodes and validates a manifest. Unknown keys are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var manifest Manifest
	if err := dec.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	manifest.Logic = strings.TrimSpace(manifest.Logic)
	if manifest.Logic == "" {
		return nil, fmt.Errorf("%w: manifest logic reference required", ErrInvalidLayout)
	}
	for i := range manifest.Fields {
		manifest.Fields[i] = strings.TrimSpace(manifest.Fields[i])
	}
	if err := manifest.Layout.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// LoadManifest reads a manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}
