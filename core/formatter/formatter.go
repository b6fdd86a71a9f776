// Package formatter renders command output as a table, JSON or YAML.
package formatter

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
)

// Resource describes what is being printed.
type Resource struct {
	// Name labels the output ("history", "config").
	Name string

	// Columns is the default column order. Empty means every key, sorted.
	Columns []string
}

// Formatter converts records to one output format.
type Formatter interface {
	// Name returns the formatter name ("table", "json", "yaml").
	Name() string

	// FormatList formats a list of records.
	FormatList(w io.Writer, res Resource, records []map[string]any, opts Options) error

	// FormatRecord formats a single record.
	FormatRecord(w io.Writer, res Resource, record map[string]any, opts Options) error
}

// Options configures formatting behavior.
type Options struct {
	// Columns overrides Resource.Columns.
	Columns []string

	// NoHeader disables the header row for tables.
	NoHeader bool

	// Compact minimizes whitespace (json).
	Compact bool

	// MaxWidth truncates long table cells (0 = no limit).
	MaxWidth int
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
	defaultFmt string
}

// NewRegistry creates an empty registry whose default is "table".
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
		defaultFmt: "table",
	}
}

// Register adds a formatter.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}
	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name. An empty name selects the default.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultFmt
	}
	f, ok := r.formatters[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %v)", name, r.namesLocked())
	}
	return f, nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	return slices.Sorted(maps.Keys(r.formatters))
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// List returns the formatter names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}

func init() {
	for _, f := range []Formatter{NewTableFormatter(), NewJSONFormatter(), NewYAMLFormatter()} {
		if err := DefaultRegistry.Register(f); err != nil {
			panic(err)
		}
	}
}

// columns picks the columns to print: explicit options, then the resource
// default, then every key seen across records.
func columns(res Resource, opts Options, records ...map[string]any) []string {
	if len(opts.Columns) > 0 {
		return opts.Columns
	}
	if len(res.Columns) > 0 {
		return res.Columns
	}
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// project keeps only cols from record. Columns missing from the record are skipped.
func project(record map[string]any, cols []string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := record[c]; ok {
			out[c] = v
		}
	}
	return out
}
