// Package collection holds per-collection settings: default language,
// search index identity and the default field visibility of API output.
package collection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/popolodex/internal/domain/entity"
	"github.com/kailas-cloud/popolodex/internal/domain/entity/fields"
)

// Known Popolo collections served when no configuration overrides them.
var Known = []string{"persons", "organizations", "memberships", "posts"}

// Collection is the settings value object of one collection (immutable).
type Collection struct {
	name            string
	defaultLanguage string
	index           string
	typ             string
	fields          fields.Spec
}

// Option customizes a Collection.
type Option func(*Collection)

// WithDefaultLanguage sets the language used when no requested one matches.
func WithDefaultLanguage(lang string) Option {
	return func(c *Collection) { c.defaultLanguage = lang }
}

// WithIndex overrides the search index identity.
func WithIndex(index, typ string) Option {
	return func(c *Collection) {
		c.index = index
		c.typ = typ
	}
}

// WithFields sets the default field visibility for API output.
func WithFields(spec fields.Spec) Option {
	return func(c *Collection) { c.fields = spec }
}

// New validates name and creates a Collection.
func New(name string, opts ...Option) (Collection, error) {
	if err := entity.ValidateCollection(name); err != nil {
		return Collection{}, err
	}
	c := Collection{name: name}
	for _, opt := range opts {
		opt(&c)
	}
	if (c.index == "") != (c.typ == "") {
		return Collection{}, fmt.Errorf("collection %s: index and type must be set together", name)
	}
	return c, nil
}

// Default returns settings with no overrides. name is not validated.
func Default(name string) Collection {
	return Collection{name: name}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// DefaultLanguage returns the configured default language, possibly empty.
func (c Collection) DefaultLanguage() string { return c.defaultLanguage }

// Fields returns a copy of the default field visibility.
func (c Collection) Fields() fields.Spec {
	return c.fields.Merge(nil)
}

// Identity returns the (index, type) pair the collection is indexed under:
// the configured override, or the lowercase database and collection names.
func (c Collection) Identity(database string) (index, typ string) {
	if c.index != "" {
		return c.index, c.typ
	}
	return strings.ToLower(database), strings.ToLower(c.name)
}

// Registry resolves collections by name.
type Registry struct {
	byName map[string]Collection
}

// NewRegistry builds a registry. Known collections missing from cols are
// added with default settings.
func NewRegistry(cols ...Collection) *Registry {
	r := &Registry{byName: make(map[string]Collection, len(cols)+len(Known))}
	for _, name := range Known {
		r.byName[name] = Default(name)
	}
	for _, c := range cols {
		r.byName[c.name] = c
	}
	return r
}

// Get returns the collection settings, or false when the name is unknown.
func (r *Registry) Get(name string) (Collection, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
