package compat

import "fmt"

// Category is an opaque equivalence class of interchangeable names.
type Category string

// OrientationPolicy says which stored orientations a query orientation
// accepts.
type OrientationPolicy uint8

const (
	// OrientationExact accepts only the same orientation.
	OrientationExact OrientationPolicy = iota
	// OrientationOppositeToo also accepts the opposite orientation.
	OrientationOppositeToo
	// OrientationAny accepts every orientation.
	OrientationAny
)

var policyNames = map[OrientationPolicy]string{
	OrientationExact:       "exact",
	OrientationOppositeToo: "opposite",
	OrientationAny:         "any",
}

func (p OrientationPolicy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("OrientationPolicy(%d)", uint8(p))
}

// ParseOrientationPolicy parses "exact", "opposite" or "any". An empty
// string means exact.
func ParseOrientationPolicy(s string) (OrientationPolicy, error) {
	if s == "" {
		return OrientationExact, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return OrientationExact, fmt.Errorf("unknown orientation policy %q: must be exact, opposite or any", s)
}

// Classifier resolves names to categories and categories to orientation
// policies.
type Classifier interface {
	CategoryOf(name string) (Category, bool)
	OrientationPolicy(c Category) OrientationPolicy
	// ExactIdentity reports whether objects of c are matched through the
	// identity registry only, never by position.
	ExactIdentity(c Category) bool
}

// StaticClassifier is a map-backed Classifier.
type StaticClassifier struct {
	Categories map[string]Category
	Policies   map[Category]OrientationPolicy
	Exact      map[Category]bool
}

// CategoryOf implements Classifier.
func (c StaticClassifier) CategoryOf(name string) (Category, bool) {
	cat, ok := c.Categories[name]
	return cat, ok
}

// OrientationPolicy implements Classifier. Unknown categories are exact.
func (c StaticClassifier) OrientationPolicy(cat Category) OrientationPolicy {
	return c.Policies[cat]
}

// ExactIdentity implements Classifier.
func (c StaticClassifier) ExactIdentity(cat Category) bool {
	return c.Exact[cat]
}
