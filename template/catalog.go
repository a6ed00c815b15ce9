package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openlis/astmsim/logger"
)

// Catalog maps analyzer types to their templates. A catalog is built once,
// read-only afterwards, and safe for concurrent readers.
type Catalog struct {
	templates map[string]*Template
	log       logger.Logger
}

// Builtins returns a catalog holding only the builtin analyzer templates.
func Builtins() *Catalog {
	c := &Catalog{
		templates: make(map[string]*Template),
		log:       logger.GetLogger(),
	}
	for _, tpl := range builtinTemplates() {
		c.templates[tpl.Type()] = tpl
	}

	return c
}

// Load builds a catalog from the builtin templates plus every *.json file in
// dir; a file replaces the builtin of the same analyzer type. The type key
// comes from the template's analyzer.type, or from the file name without its
// extension when the template does not set one. schema.json is skipped.
//
// An empty or missing directory is not an error; the builtin catalog is
// returned unchanged.
func Load(dir string) (*Catalog, error) {
	c := Builtins()
	if dir == "" {
		return c, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.log.Debug("template directory does not exist, using builtin templates", "dir", dir)
			return c, nil
		}

		return nil, fmt.Errorf("template: read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || name == "schema.json" {
			continue
		}

		tpl, err := loadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		key := tpl.Type()
		if key == "" {
			key = strings.ToUpper(strings.TrimSuffix(name, ".json"))
			tpl.Analyzer.Type = key
		}
		c.templates[key] = tpl
		c.log.Debug("loaded analyzer template",
			"file", name, "type", key, "analyzer", tpl.Analyzer.Name, "fields", len(tpl.Fields))
	}

	return c, nil
}

func loadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("template: read %s: %w", path, err)
	}

	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("template: parse %s: %w", filepath.Base(path), err)
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("template: %s: %w", filepath.Base(path), err)
	}

	return &tpl, nil
}

// Get returns the template for the given analyzer type, case-insensitively.
// An unknown type falls back to the first known type in sorted order with a
// logged warning, so a misconfigured bridge still gets answers.
func (c *Catalog) Get(analyzerType string) *Template {
	if tpl, ok := c.templates[strings.ToUpper(analyzerType)]; ok {
		return tpl
	}

	types := c.Types()
	if len(types) == 0 {
		return nil
	}

	c.log.Warn("unknown analyzer type, falling back to first available",
		"requested", analyzerType, "using", types[0])

	return c.templates[types[0]]
}

// Types returns the known analyzer types in sorted order.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.templates))
	for key := range c.templates {
		types = append(types, key)
	}
	sort.Strings(types)

	return types
}

// Len returns the number of templates in the catalog.
func (c *Catalog) Len() int {
	return len(c.templates)
}
