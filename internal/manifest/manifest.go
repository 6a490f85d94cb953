// Package manifest reads and writes the JSON version manifests of a
// Relay plugin checkout. A manifest is a flat JSON object carrying at
// least a "version" field; all other fields are preserved across a
// rewrite (key order may change, output is 2-space indented).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"

	"github.com/no-instructions/relay-tools/internal/bump"
)

// versionKey is the manifest field holding the semantic version.
const versionKey = "version"

// Manifest is a loaded manifest file.
type Manifest struct {
	path   string
	fields map[string]any
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %q: %w", path, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", path, err)
	}

	return &Manifest{path: path, fields: fields}, nil
}

// Path returns the file path the manifest was loaded from.
func (m *Manifest) Path() string { return m.path }

// Version parses the manifest's version field as a strict
// MAJOR.MINOR.PATCH version.
func (m *Manifest) Version() (*semver.Version, error) {
	raw, ok := m.fields[versionKey]
	if !ok {
		return nil, fmt.Errorf("manifest %q has no version field", m.path)
	}

	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("manifest %q version field is not a string", m.path)
	}

	v, err := bump.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("manifest %q: %w", m.path, err)
	}

	return v, nil
}

// SetVersion overwrites the manifest's version field.
func (m *Manifest) SetVersion(version string) {
	m.fields[versionKey] = version
}

// Render serializes the manifest with 2-space indentation and a
// trailing newline.
func (m *Manifest) Render() ([]byte, error) {
	data, err := json.MarshalIndent(m.fields, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing manifest %q: %w", m.path, err)
	}

	return append(data, '\n'), nil
}

// Save rewrites the manifest file in place.
func (m *Manifest) Save() error {
	data, err := m.Render()
	if err != nil {
		return err
	}

	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %q: %w", m.path, err)
	}

	return nil
}
