// Package devseed loads the seed files used to populate the sandbox.
package devseed

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry describes one file or folder to create. Content and Base64 are
// mutually exclusive; folders carry neither.
type Entry struct {
	Path    string `json:"path" yaml:"path"`
	Folder  bool   `json:"folder,omitempty" yaml:"folder,omitempty"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	Base64  string `json:"base64,omitempty" yaml:"base64,omitempty"`
}

// Data returns the file bytes of the entry.
func (e Entry) Data() ([]byte, error) {
	if e.Base64 == "" {
		return []byte(e.Content), nil
	}
	data, err := base64.StdEncoding.DecodeString(e.Base64)
	if err != nil {
		return nil, fmt.Errorf("devseed: %s: decode base64: %w", e.Path, err)
	}
	return data, nil
}

// Validate checks a single entry.
func (e Entry) Validate() error {
	if !strings.HasPrefix(e.Path, "/") || e.Path == "/" {
		return fmt.Errorf("devseed: entry path %q must be absolute and not the root", e.Path)
	}
	if e.Folder && (e.Content != "" || e.Base64 != "") {
		return fmt.Errorf("devseed: folder %s cannot have content", e.Path)
	}
	if e.Content != "" && e.Base64 != "" {
		return fmt.Errorf("devseed: %s sets both content and base64", e.Path)
	}
	return nil
}

// Load reads a seed file. Files ending in .yaml or .yml are parsed as YAML,
// anything else as JSON. The document is a list of entries.
func Load(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	return Parse(raw, filepath.Ext(path))
}

// Parse decodes seed entries; ext selects the format as in Load.
func Parse(raw []byte, ext string) ([]Entry, error) {
	var entries []Entry
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("devseed: decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("devseed: decode json: %w", err)
		}
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}
