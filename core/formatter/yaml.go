package formatter

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter prints YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Name returns "yaml".
func (f *YAMLFormatter) Name() string {
	return "yaml"
}

// FormatList wraps the records like the JSON formatter does.
func (f *YAMLFormatter) FormatList(w io.Writer, res Resource, records []map[string]any, opts Options) error {
	cols := columns(res, opts, records...)
	data := make([]map[string]any, len(records))
	for i, r := range records {
		data[i] = project(r, cols)
	}

	return f.encode(w, map[string]any{
		"resource": res.Name,
		"count":    len(data),
		"data":     data,
	})
}

// FormatRecord prints the record as a YAML document.
func (f *YAMLFormatter) FormatRecord(w io.Writer, res Resource, record map[string]any, opts Options) error {
	if record == nil {
		return f.encode(w, nil)
	}
	return f.encode(w, project(record, columns(res, opts, record)))
}

func (f *YAMLFormatter) encode(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
