// Package catalog loads the category catalog that tells the compatibility
// matcher which names are interchangeable and how their orientation is
// compared.
//
// A catalog is a CUE package:
//
//	category: "transport-belt": {
//		members: ["transport-belt", "fast-transport-belt"]
//		orientation: "opposite"
//	}
//
// Every member belongs to exactly one category. Orientation is one of
// "exact", "opposite" or "any" and defaults to "exact". Categories marked
// exact_identity (vehicles, for instance) are only ever matched through the
// live handle registry:
//
//	category: wagon: {
//		members: ["cargo-wagon", "locomotive"]
//		exact_identity: true
//	}
package catalog

import (
	"cmp"
	"maps"
	"slices"

	"github.com/roach88/staged/internal/compat"
)

// Entry is one category.
type Entry struct {
	Category    compat.Category
	Members     []string
	Orientation compat.OrientationPolicy
	// ExactIdentity disables positional matching for the category.
	ExactIdentity bool
}

// Catalog implements compat.Classifier.
type Catalog struct {
	entries map[compat.Category]Entry
	byName  map[string]compat.Category
}

var _ compat.Classifier = (*Catalog)(nil)

// New builds a catalog from entries. Entries are assumed valid; use Compile
// or Load for untrusted input.
func New(entries ...Entry) *Catalog {
	c := &Catalog{
		entries: make(map[compat.Category]Entry, len(entries)),
		byName:  make(map[string]compat.Category),
	}
	for _, e := range entries {
		c.entries[e.Category] = e
		for _, m := range e.Members {
			c.byName[m] = e.Category
		}
	}
	return c
}

// CategoryOf implements compat.Classifier.
func (c *Catalog) CategoryOf(name string) (compat.Category, bool) {
	cat, ok := c.byName[name]
	return cat, ok
}

// OrientationPolicy implements compat.Classifier. Unknown categories are
// exact.
func (c *Catalog) OrientationPolicy(cat compat.Category) compat.OrientationPolicy {
	return c.entries[cat].Orientation
}

// ExactIdentity implements compat.Classifier.
func (c *Catalog) ExactIdentity(cat compat.Category) bool {
	return c.entries[cat].ExactIdentity
}

// Entries returns all categories ordered by name.
func (c *Catalog) Entries() []Entry {
	return slices.SortedFunc(maps.Values(c.entries), func(a, b Entry) int {
		return cmp.Compare(a.Category, b.Category)
	})
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	return len(c.entries)
}
