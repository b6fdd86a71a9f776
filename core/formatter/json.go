package formatter

import (
	"encoding/json"
	"io"
)

// JSONFormatter prints JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns "json".
func (f *JSONFormatter) Name() string {
	return "json"
}

// FormatList wraps the records in {"resource", "count", "data"}.
func (f *JSONFormatter) FormatList(w io.Writer, res Resource, records []map[string]any, opts Options) error {
	cols := columns(res, opts, records...)
	data := make([]map[string]any, len(records))
	for i, r := range records {
		data[i] = project(r, cols)
	}

	return f.encode(w, map[string]any{
		"resource": res.Name,
		"count":    len(data),
		"data":     data,
	}, opts.Compact)
}

// FormatRecord prints the record itself.
func (f *JSONFormatter) FormatRecord(w io.Writer, res Resource, record map[string]any, opts Options) error {
	if record == nil {
		return f.encode(w, nil, opts.Compact)
	}
	return f.encode(w, project(record, columns(res, opts, record)), opts.Compact)
}

func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}
