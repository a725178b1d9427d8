package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dshills/mailhook/internal/module"
)

// Manifest describes a plugin's metadata. The kind is optional here: the Lua
// declaration is authoritative, and a manifest kind only serves as a
// cross-check at load time.
type Manifest struct {
	Name        string `json:"name"`        // Unique identifier (e.g., "rspamd-check")
	Version     string `json:"version"`     // Semver (e.g., "1.2.0")
	Kind        string `json:"kind"`        // "validation" or "event", optional
	Description string `json:"description"` // Short description
	Author      string `json:"author"`      // Author name or org

	// Main is the relative path to the entry point (default: "init.lua").
	Main string `json:"main"`

	// Internal: path to the plugin directory.
	path string
}

// Validation errors.
var (
	ErrMissingName    = errors.New("manifest: name is required")
	ErrInvalidName    = errors.New("manifest: name must be alphanumeric with hyphens")
	ErrInvalidVersion = errors.New("manifest: version must be valid semver")
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file")
	ErrInvalidKind    = errors.New("manifest: kind must be validation or event")
)

// namePattern validates plugin names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest loads and validates a plugin manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.path = filepath.Dir(path)
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFromDir loads plugin.json from a plugin directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, "plugin.json"))
}

// NewManifestMinimal creates a minimal manifest for single-file plugins.
func NewManifestMinimal(name, path string) *Manifest {
	return &Manifest{
		Name:    name,
		Version: "0.0.0",
		Main:    "init.lua",
		path:    path,
	}
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.Main == "" {
		m.Main = "init.lua"
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}
}

// Validate checks that the manifest is valid.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, m.Name)
	}

	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}

	if m.Main != "" && filepath.Ext(m.Main) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}

	if m.Kind != "" {
		if _, err := module.ParseKind(m.Kind); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidKind, m.Kind)
		}
	}

	return nil
}

// Path returns the path to the plugin directory.
func (m *Manifest) Path() string {
	return m.path
}

// MainPath returns the full path to the entry point script.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.path, m.Main)
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s v%s", m.Name, m.Version)
}
