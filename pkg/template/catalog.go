// Package template loads SQL templates from a catalogue and renders them with
// validated parameter values.
package template

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nnnkkk7/agriqa/pkg/apperrors"
	"github.com/nnnkkk7/agriqa/pkg/params"
)

// ManifestFile is the catalogue manifest name inside a template directory.
const ManifestFile = "catalog.yaml"

//go:embed catalog/catalog.yaml catalog/*.sql
var embedded embed.FS

// Entry describes one catalogue template.
type Entry struct {
	ID          string                  `yaml:"id" json:"id"`
	File        string                  `yaml:"file" json:"file"`
	Description string                  `yaml:"description" json:"description"`
	Params      map[string]params.Class `yaml:"params" json:"params,omitempty"`
}

// Template is a catalogue entry together with its raw SQL text.
type Template struct {
	Entry
	Text string
}

type manifest struct {
	Version   int     `yaml:"version"`
	Templates []Entry `yaml:"templates"`
}

// Catalog resolves template ids and file names to SQL text.
type Catalog struct {
	fsys    fs.FS
	entries map[string]Entry
	byFile  map[string]string
}

// Default returns the catalogue compiled into the binary.
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "catalog")
	if err != nil {
		return nil, fmt.Errorf("open embedded catalog: %w", err)
	}
	return New(sub)
}

// New reads the catalogue manifest at the root of fsys.
// A directory without a manifest exposes every .sql file under its base name.
func New(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		fsys:    fsys,
		entries: make(map[string]Entry),
		byFile:  make(map[string]string),
	}

	data, err := fs.ReadFile(fsys, ManifestFile)
	switch {
	case err == nil:
		var m manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
		}
		for _, e := range m.Templates {
			if err := c.add(e); err != nil {
				return nil, err
			}
		}
	case errors.Is(err, fs.ErrNotExist):
		files, err := fs.Glob(fsys, "*.sql")
		if err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		for _, f := range files {
			if err := c.add(Entry{ID: strings.TrimSuffix(f, ".sql"), File: f}); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("read %s: %w", ManifestFile, err)
	}

	return c, nil
}

func (c *Catalog) add(e Entry) error {
	if e.ID == "" || e.File == "" {
		return fmt.Errorf("catalog entry %q: id and file are required", e.ID)
	}
	if path.Ext(e.File) != ".sql" {
		return fmt.Errorf("catalog entry %q: %s is not a .sql file", e.ID, e.File)
	}
	if _, dup := c.entries[e.ID]; dup {
		return fmt.Errorf("catalog entry %q: duplicate id", e.ID)
	}
	if _, err := fs.Stat(c.fsys, e.File); err != nil {
		return fmt.Errorf("catalog entry %q: %w", e.ID, err)
	}
	c.entries[e.ID] = e
	c.byFile[e.File] = e.ID
	return nil
}

// Load returns the template registered under key, which may be an id or a
// file name such as "q1_avg_rain_top_crops.sql".
func (c *Catalog) Load(key string) (*Template, error) {
	e, ok := c.entries[key]
	if !ok {
		id, byFile := c.byFile[key]
		if !byFile {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrTemplateNotFound, key)
		}
		e = c.entries[id]
	}

	data, err := fs.ReadFile(c.fsys, e.File)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", e.File, err)
	}
	return &Template{Entry: e, Text: string(data)}, nil
}

// List returns all entries sorted by id.
func (c *Catalog) List() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Has reports whether key names a template.
func (c *Catalog) Has(key string) bool {
	if _, ok := c.entries[key]; ok {
		return true
	}
	_, ok := c.byFile[key]
	return ok
}
