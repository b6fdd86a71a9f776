package params

// Schema renders the field as a JSON-schema style property.
// Extra attributes are copied verbatim; explicitly set title, description
// and default take precedence over extras with the same key.
// Dependencies have no schema and return nil.
func (f *FieldInfo) Schema() map[string]any {
	if f.kind == KindDepend {
		return nil
	}

	out := make(map[string]any, len(f.extra)+4)
	for k, v := range f.extra {
		out[k] = v
	}

	out["in"] = string(f.kind)
	if f.title != "" {
		out["title"] = f.title
	}
	if f.description != "" {
		out["description"] = f.description
	}
	// A factory default is computed per request and is not a stable schema value.
	if f.hasDefault {
		out["default"] = f.def
	}
	if f.exclusive {
		out["exclusive"] = true
	}
	return out
}
