package model

import (
	"encoding/json"
	"fmt"
	"slices"
)

// FieldState distinguishes the three states a property can have in a patch.
type FieldState uint8

const (
	// Unset means the patch says nothing about the property.
	Unset FieldState = iota
	// Present means the patch sets the property to a value.
	Present
	// Removed means the patch explicitly deletes the property.
	Removed
)

func (s FieldState) String() string {
	switch s {
	case Present:
		return "present"
	case Removed:
		return "removed"
	default:
		return "unset"
	}
}

// Field is a single patch entry: Present(value), Removed, or Unset.
// The zero Field is Unset.
type Field struct {
	state FieldState
	value Value
}

// Set returns a Present field holding v.
func Set(v Value) Field {
	return Field{state: Present, value: v}
}

// Remove returns a Removed field.
func Remove() Field {
	return Field{state: Removed}
}

// State returns the field state.
func (f Field) State() FieldState { return f.state }

// IsPresent reports whether the field sets a value.
func (f Field) IsPresent() bool { return f.state == Present }

// IsRemoved reports whether the field explicitly deletes the property.
func (f Field) IsRemoved() bool { return f.state == Removed }

// IsUnset reports whether the field carries no information.
func (f Field) IsUnset() bool { return f.state == Unset }

// Value returns the value of a Present field.
func (f Field) Value() (Value, bool) {
	if f.state != Present {
		return nil, false
	}
	return f.value, true
}

// Equal reports whether two fields have the same state and value.
func (f Field) Equal(g Field) bool {
	if f.state != g.state {
		return false
	}
	if f.state == Present {
		return Equal(f.value, g.value)
	}
	return true
}

// Matches reports whether applying f to a property currently holding cur
// (exists=false when absent) would leave it unchanged.
func (f Field) Matches(cur Value, exists bool) bool {
	switch f.state {
	case Present:
		return exists && Equal(f.value, cur)
	case Removed:
		return !exists
	default:
		return true
	}
}

func (f Field) String() string {
	if f.state == Present {
		b, err := MarshalValue(f.value)
		if err != nil {
			return fmt.Sprintf("present(%T)", f.value)
		}
		return string(b)
	}
	return f.state.String()
}

// Patch is a partial entity value. Only Present and Removed fields are
// stored; a missing key means Unset.
type Patch map[string]Field

// NewPatch returns an empty patch.
func NewPatch() Patch {
	return Patch{}
}

// PatchOf returns a patch that sets every property of obj.
func PatchOf(obj Object) Patch {
	p := make(Patch, len(obj))
	for k, v := range obj {
		p[k] = Set(Clone(v))
	}
	return p
}

// With sets key to v and returns the patch for chaining.
func (p Patch) With(key string, v Value) Patch {
	p[key] = Set(v)
	return p
}

// Without marks key as removed and returns the patch for chaining.
func (p Patch) Without(key string) Patch {
	p[key] = Remove()
	return p
}

// Get returns the field for key; Unset when absent.
func (p Patch) Get(key string) Field {
	return p[key]
}

// Keys returns the patch keys in canonical order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k, f := range p {
		if f.state != Unset {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Empty reports whether the patch carries no Present or Removed fields.
func (p Patch) Empty() bool {
	for _, f := range p {
		if f.state != Unset {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the patch, dropping Unset entries.
func (p Patch) Clone() Patch {
	if p == nil {
		return nil
	}
	out := make(Patch, len(p))
	for k, f := range p {
		switch f.state {
		case Present:
			out[k] = Set(Clone(f.value))
		case Removed:
			out[k] = f
		}
	}
	return out
}

// Merge writes every Present or Removed field of other into p.
// Fields from other overwrite fields already in p.
func (p Patch) Merge(other Patch) {
	for k, f := range other {
		switch f.state {
		case Present:
			p[k] = Set(Clone(f.value))
		case Removed:
			p[k] = f
		}
	}
}

// Equal reports whether both patches hold the same fields.
func (p Patch) Equal(other Patch) bool {
	pk, ok := p.Keys(), other.Keys()
	if !slices.Equal(pk, ok) {
		return false
	}
	for _, k := range pk {
		if !p[k].Equal(other[k]) {
			return false
		}
	}
	return true
}

// ApplyTo applies the patch to obj in place.
func (p Patch) ApplyTo(obj Object) {
	for k, f := range p {
		switch f.state {
		case Present:
			obj[k] = Clone(f.value)
		case Removed:
			delete(obj, k)
		}
	}
}

// DiffObjects returns the minimal patch turning from into to.
func DiffObjects(from, to Object) Patch {
	p := Patch{}
	for k, v := range to {
		if cur, ok := from[k]; !ok || !Equal(cur, v) {
			p[k] = Set(Clone(v))
		}
	}
	for k := range from {
		if _, ok := to[k]; !ok {
			p[k] = Remove()
		}
	}
	return p
}

// patchJSON is the wire form of a Patch. Removed keys are listed
// separately so they never collide with a stored null.
type patchJSON struct {
	Set     Object   `json:"set,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

func (p Patch) wire() map[string]any {
	set := Object{}
	removed := []any{}
	for _, k := range p.Keys() {
		f := p[k]
		if f.state == Present {
			set[k] = f.value
		} else {
			removed = append(removed, k)
		}
	}
	out := map[string]any{}
	if len(set) > 0 {
		out["set"] = set
	}
	if len(removed) > 0 {
		out["removed"] = removed
	}
	return out
}

// MarshalJSON encodes the patch as {"set":{...},"removed":[...]} in
// canonical form.
func (p Patch) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(p.wire())
}

// UnmarshalJSON implements json.Unmarshaler for Patch.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw patchJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}
	out := make(Patch, len(raw.Set)+len(raw.Removed))
	for k, v := range raw.Set {
		out[k] = Set(v)
	}
	for _, k := range raw.Removed {
		if _, dup := out[k]; dup {
			return fmt.Errorf("unmarshal patch: key %q is both set and removed", k)
		}
		out[k] = Remove()
	}
	*p = out
	return nil
}

// ToCanonical returns the patch in its wire shape for canonical snapshots.
func (p Patch) ToCanonical() map[string]any {
	return p.wire()
}
