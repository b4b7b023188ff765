// Package manifest loads the list of images a batch run works through.
//
// A manifest is a JSON (or YAML) document of the form
//
//	{ "files": [ { "src": "in/a.png", "dst": "out/a.json" }, ... ] }
//
// Entries keep their order of appearance. A missing "dst" means the caller
// picks a default destination.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one manifest record.
type Entry struct {
	Src string
	Dst string
}

// Error kinds reported by Load. Match with errors.Is.
var (
	ErrNotFound   = errors.New("manifest not found")
	ErrUnreadable = errors.New("manifest unreadable")
	ErrMalformed  = errors.New("manifest malformed")
)

// LoadError describes why a manifest could not be loaded.
type LoadError struct {
	Path string
	Kind error
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type record struct {
	Src *string `json:"src" yaml:"src"`
	Dst string  `json:"dst" yaml:"dst"`
}

type document struct {
	Files []record `json:"files" yaml:"files"`
}

// Load reads and parses the manifest at path. Files ending in .yaml or .yml
// are parsed as YAML; everything else as JSON.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path is user supplied
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Kind: ErrNotFound, Err: err}
		}
		return nil, &LoadError{Path: path, Kind: ErrUnreadable, Err: err}
	}

	var doc document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &doc)
	default:
		err = decodeJSON(data, &doc)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Kind: ErrMalformed, Err: err}
	}

	entries := make([]Entry, 0, len(doc.Files))
	for i, r := range doc.Files {
		if r.Src == nil || *r.Src == "" {
			return nil, &LoadError{Path: path, Kind: ErrMalformed, Err: fmt.Errorf("files[%d]: missing src", i)}
		}
		entries = append(entries, Entry{Src: *r.Src, Dst: r.Dst})
	}
	return entries, nil
}

func decodeJSON(data []byte, doc *document) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("top level must be an object")
	}
	return json.Unmarshal(trimmed, doc)
}

func decodeYAML(data []byte, doc *document) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return errors.New("top level must be a mapping")
	}
	return root.Content[0].Decode(doc)
}
