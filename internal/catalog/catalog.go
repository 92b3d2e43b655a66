// Package catalog holds the immutable set of challenge templates.
//
// Templates are validated and normalized once when they enter the catalog.
// Lookups hand out deep copies so a challenge can snapshot its template
// without sharing slices with the catalog.
package catalog

import (
	"fmt"
	"slices"

	"github.com/roach88/stride/internal/challenge"
)

// Catalog is a read-only template registry. Safe for concurrent use.
type Catalog struct {
	templates map[string]challenge.Template
	ids       []string // sorted
}

// New builds a catalog from templates. Every template must validate and ids
// must be unique.
func New(templates ...challenge.Template) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]challenge.Template, len(templates))}
	for _, t := range templates {
		t = t.Clone()
		t.Normalize()
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.templates[t.ID]; dup {
			return nil, challenge.Validation(fmt.Sprintf("template %q defined twice", t.ID))
		}
		c.templates[t.ID] = t
		c.ids = append(c.ids, t.ID)
	}
	slices.Sort(c.ids)
	return c, nil
}

// MustNew is New that panics on error. For static template sets.
func MustNew(templates ...challenge.Template) *Catalog {
	c, err := New(templates...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns a copy of the template with the given id.
// An unknown id is a validation error: callers name templates as input.
func (c *Catalog) Get(id string) (challenge.Template, error) {
	t, ok := c.templates[id]
	if !ok {
		return challenge.Template{}, challenge.Validation(fmt.Sprintf("unknown template %q", id)).With("template", id)
	}
	return t.Clone(), nil
}

// List returns copies of every template ordered by id.
func (c *Catalog) List() []challenge.Template {
	out := make([]challenge.Template, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.templates[id].Clone())
	}
	return out
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// Merge returns a catalog holding the templates of c and other. Templates in
// other replace those of c with the same id.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	merged := &Catalog{templates: make(map[string]challenge.Template, len(c.templates)+len(other.templates))}
	for id, t := range c.templates {
		merged.templates[id] = t
	}
	for id, t := range other.templates {
		merged.templates[id] = t
	}
	for id := range merged.templates {
		merged.ids = append(merged.ids, id)
	}
	slices.Sort(merged.ids)
	return merged
}
