package catalog

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/staged/internal/compat"
)

// schema constrains the shape of a catalog before semantic checks run.
const schema = `
#Catalog: {
	category?: [string]: {
		members: [...string]
		orientation?: "exact" | "opposite" | "any"
		exact_identity?: bool
	}
	...
}
`

// CompileError is a semantic or structural error in a catalog.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile builds a catalog from a CUE value holding a top-level
// "category" struct. All errors are collected.
//
//	ctx := cuecontext.New()
//	cat, errs := Compile(ctx.CompileString(src))
func Compile(v cue.Value) (*Catalog, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	s := v.Context().CompileString(schema).LookupPath(cue.ParsePath("#Catalog"))
	checked := s.Unify(v)
	if err := checked.Validate(cue.Concrete(true)); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	categories := v.LookupPath(cue.ParsePath("category"))
	if !categories.Exists() {
		return New(), nil
	}
	iter, err := categories.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		entries []Entry
		errs    []error
		owner   = make(map[string]compat.Category)
	)
	for iter.Next() {
		entry, err := CompileCategory(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, m := range entry.Members {
			if prev, dup := owner[m]; dup {
				errs = append(errs, &CompileError{
					Field:   "members",
					Message: fmt.Sprintf("%q is in both %q and %q", m, prev, entry.Category),
					Pos:     iter.Value().LookupPath(cue.ParsePath("members")).Pos(),
				})
				continue
			}
			owner[m] = entry.Category
		}
		entries = append(entries, *entry)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return New(entries...), nil
}

// CompileCategory parses one category struct. The category name is the
// struct's label.
func CompileCategory(v cue.Value) (*Entry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entry := &Entry{}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		entry.Category = compat.Category(sels[len(sels)-1].Unquoted())
	}

	membersVal := v.LookupPath(cue.ParsePath("members"))
	if !membersVal.Exists() {
		return nil, &CompileError{Field: "members", Message: "members is required", Pos: v.Pos()}
	}
	if err := membersVal.Decode(&entry.Members); err != nil {
		return nil, formatCUEError(err)
	}
	if len(entry.Members) == 0 {
		return nil, &CompileError{
			Field:   "members",
			Message: fmt.Sprintf("category %q needs at least one member", entry.Category),
			Pos:     membersVal.Pos(),
		}
	}
	sorted := slices.Sorted(slices.Values(entry.Members))
	if i := firstDuplicate(sorted); i >= 0 {
		return nil, &CompileError{
			Field:   "members",
			Message: fmt.Sprintf("category %q lists %q twice", entry.Category, sorted[i]),
			Pos:     membersVal.Pos(),
		}
	}

	if o := v.LookupPath(cue.ParsePath("orientation")); o.Exists() {
		s, err := o.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		policy, err := compat.ParseOrientationPolicy(s)
		if err != nil {
			return nil, &CompileError{Field: "orientation", Message: err.Error(), Pos: o.Pos()}
		}
		entry.Orientation = policy
	}
	if x := v.LookupPath(cue.ParsePath("exact_identity")); x.Exists() {
		b, err := x.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		entry.ExactIdentity = b
	}
	return entry, nil
}

func firstDuplicate(sorted []string) int {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return i
		}
	}
	return -1
}

// formatCUEError wraps the first CUE error, keeping its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	ce := &CompileError{Field: "cue", Message: err.Error()}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return ce
	}
	first := errs[0]
	ce.Message = first.Error()
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
