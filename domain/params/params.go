package params

import (
	"errors"
	"fmt"
	"maps"
)

// Kind identifies where a parameter value is extracted from.
type Kind string

const (
	KindPath        Kind = "path"
	KindQuery       Kind = "query"
	KindHeader      Kind = "header"
	KindCookie      Kind = "cookie"
	KindBody        Kind = "body"
	KindRequestAttr Kind = "request_attr"
	KindDepend      Kind = "depend"
)

// Declaration errors.
var (
	ErrDefaultConflict   = errors.New("cannot specify both default and default_factory")
	ErrUnsupportedOption = errors.New("option not supported for this parameter kind")
	ErrUnknownKind       = errors.New("unknown parameter kind")
	ErrNilProvider       = errors.New("dependency provider is nil")
	ErrNilDefaultFactory = errors.New("default factory is nil")
)

// Factory produces a fresh default value each time one is needed.
type Factory func() any

// FieldInfo is immutable parameter metadata. Construct it with New or one of
// the per-source helpers; the zero value is not useful.
type FieldInfo struct {
	kind Kind

	def        any
	hasDefault bool
	factory    Factory
	factorySet bool

	alias       string
	title       string
	description string
	exclusive   bool
	extra       map[string]any

	provider Provider
	cache    bool

	// descriptive records whether any of title/description/exclusive/extra was set.
	descriptive bool
}

// Option configures a FieldInfo during construction.
type Option func(*FieldInfo)

// Default sets a concrete default value. The field becomes optional.
func Default(v any) Option {
	return func(f *FieldInfo) {
		f.def = v
		f.hasDefault = true
	}
}

// DefaultFactory sets a function producing the default value.
// The field becomes optional.
func DefaultFactory(fn Factory) Option {
	return func(f *FieldInfo) {
		f.factory = fn
		f.factorySet = true
	}
}

// Alias sets the public name of the field.
func Alias(name string) Option {
	return func(f *FieldInfo) { f.alias = name }
}

// Title sets the schema title.
func Title(s string) Option {
	return func(f *FieldInfo) {
		f.title = s
		f.descriptive = true
	}
}

// Description sets the schema description.
func Description(s string) Option {
	return func(f *FieldInfo) {
		f.description = s
		f.descriptive = true
	}
}

// Exclusive makes the field receive the entire source (e.g. every query
// parameter) instead of a single named value.
func Exclusive() Option {
	return func(f *FieldInfo) {
		f.exclusive = true
		f.descriptive = true
	}
}

// Extra adds a schema attribute that is passed through verbatim.
func Extra(key string, value any) Option {
	return func(f *FieldInfo) {
		if f.extra == nil {
			f.extra = make(map[string]any)
		}
		f.extra[key] = value
		f.descriptive = true
	}
}

// New builds and validates a FieldInfo for one of the extraction sources.
// Dependencies are declared with Depends instead.
func New(kind Kind, opts ...Option) (*FieldInfo, error) {
	switch kind {
	case KindPath, KindQuery, KindHeader, KindCookie, KindBody:
	case KindRequestAttr:
		return RequestAttr(opts...)
	case KindDepend:
		return nil, fmt.Errorf("%w: use Depends for %s", ErrUnsupportedOption, kind)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	f := &FieldInfo{kind: kind}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path declares a value captured from the route pattern.
func Path(opts ...Option) (*FieldInfo, error) { return New(KindPath, opts...) }

// Query declares a query-string value.
func Query(opts ...Option) (*FieldInfo, error) { return New(KindQuery, opts...) }

// Header declares a request header value.
func Header(opts ...Option) (*FieldInfo, error) { return New(KindHeader, opts...) }

// Cookie declares a cookie value.
func Cookie(opts ...Option) (*FieldInfo, error) { return New(KindCookie, opts...) }

// Body declares a field of the decoded request body.
func Body(opts ...Option) (*FieldInfo, error) { return New(KindBody, opts...) }

// RequestAttr declares a value stored on the request by earlier middleware.
// Only Default, DefaultFactory and Alias are accepted.
func RequestAttr(opts ...Option) (*FieldInfo, error) {
	f := &FieldInfo{kind: KindRequestAttr}
	for _, opt := range opts {
		opt(f)
	}
	if f.hasDefault && f.factorySet {
		return nil, ErrDefaultConflict
	}
	if f.factorySet && f.factory == nil {
		return nil, ErrNilDefaultFactory
	}
	if f.descriptive {
		return nil, fmt.Errorf("%w: request_attr accepts only default, default_factory and alias", ErrUnsupportedOption)
	}
	return f, nil
}

// Depends declares a value produced by calling provider. With cache set the
// provider runs at most once per Scope.
func Depends(provider Provider, cache bool) *FieldInfo {
	return &FieldInfo{
		kind:     KindDepend,
		provider: provider,
		cache:    cache,
	}
}

// Validate checks the declaration. It is called by New.
func (f *FieldInfo) Validate() error {
	if f.hasDefault && f.factorySet {
		return ErrDefaultConflict
	}
	if f.factorySet && f.factory == nil {
		return ErrNilDefaultFactory
	}
	if f.kind == KindDepend && f.provider == nil {
		return ErrNilProvider
	}
	return nil
}

// Kind returns the extraction source.
func (f *FieldInfo) Kind() Kind { return f.kind }

// Alias returns the public name, or "" when the declared name is used.
func (f *FieldInfo) Alias() string { return f.alias }

// Name returns the alias if set, otherwise declared.
func (f *FieldInfo) Name(declared string) string {
	if f.alias != "" {
		return f.alias
	}
	return declared
}

// Title returns the schema title.
func (f *FieldInfo) Title() string { return f.title }

// Description returns the schema description.
func (f *FieldInfo) Description() string { return f.description }

// Exclusive reports whether the field receives the whole source.
func (f *FieldInfo) Exclusive() bool { return f.exclusive }

// Extra returns a copy of the extra schema attributes.
func (f *FieldInfo) Extra() map[string]any {
	if f.extra == nil {
		return nil
	}
	return maps.Clone(f.extra)
}

// HasDefault reports whether a concrete default value was given.
func (f *FieldInfo) HasDefault() bool { return f.hasDefault }

// HasDefaultFactory reports whether a default factory was given.
func (f *FieldInfo) HasDefaultFactory() bool { return f.factory != nil }

// Required reports whether the value must be present in the request.
// Dependencies are never required: they are always produced.
func (f *FieldInfo) Required() bool {
	if f.kind == KindDepend {
		return false
	}
	return !f.hasDefault && f.factory == nil
}

// DefaultValue returns the default, calling the factory if one is set.
// ok is false for required fields.
func (f *FieldInfo) DefaultValue() (v any, ok bool) {
	switch {
	case f.factory != nil:
		return f.factory(), true
	case f.hasDefault:
		return f.def, true
	default:
		return nil, false
	}
}

// Provider returns the dependency provider (nil for non-dependency fields).
func (f *FieldInfo) Provider() Provider { return f.provider }

// Cache reports whether a dependency result is reused within a Scope.
func (f *FieldInfo) Cache() bool { return f.cache }

// String implements fmt.Stringer.
func (f *FieldInfo) String() string {
	if f.alias != "" {
		return fmt.Sprintf("%s(%s)", f.kind, f.alias)
	}
	return string(f.kind)
}
