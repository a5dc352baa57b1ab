package catalog

import (
	"errors"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/staged/internal/compat"
)

func compileString(t *testing.T, src string) (*Catalog, []error) {
	t.Helper()
	return Compile(cuecontext.New().CompileString(src))
}

func TestCompileBasic(t *testing.T) {
	cat, errs := compileString(t, `
		category: belt: {
			members: ["transport-belt", "fast-transport-belt"]
			orientation: "opposite"
		}
		category: chest: members: ["wooden-chest", "iron-chest"]
	`)
	require.Empty(t, errs)
	require.Equal(t, 2, cat.Len())

	got, ok := cat.CategoryOf("fast-transport-belt")
	require.True(t, ok)
	assert.Equal(t, compat.Category("belt"), got)
	assert.Equal(t, compat.OrientationOppositeToo, cat.OrientationPolicy("belt"))
	assert.Equal(t, compat.OrientationExact, cat.OrientationPolicy("chest"))

	_, ok = cat.CategoryOf("pipe")
	assert.False(t, ok)

	entries := cat.Entries()
	assert.Equal(t, compat.Category("belt"), entries[0].Category)
	assert.Equal(t, []string{"wooden-chest", "iron-chest"}, entries[1].Members)
}

func TestCompileExactIdentity(t *testing.T) {
	cat, errs := compileString(t, `
		category: wagon: {
			members: ["cargo-wagon", "locomotive"]
			exact_identity: true
		}
		category: chest: members: ["wooden-chest"]
	`)
	require.Empty(t, errs)
	assert.True(t, cat.ExactIdentity("wagon"))
	assert.False(t, cat.ExactIdentity("chest"))
	assert.False(t, cat.ExactIdentity("unknown"))

	_, errs = compileString(t, `category: wagon: {
		members: ["locomotive"]
		exact_identity: "yes"
	}`)
	assert.NotEmpty(t, errs)
}

func TestCompileEmptyCatalog(t *testing.T) {
	cat, errs := compileString(t, `other: 1`)
	require.Empty(t, errs)
	assert.Equal(t, 0, cat.Len())
}

func TestCompileRejectsUnknownOrientation(t *testing.T) {
	_, errs := compileString(t, `category: belt: { members: ["a"], orientation: "sideways" }`)
	require.Len(t, errs, 1)
	var ce *CompileError
	require.True(t, errors.As(errs[0], &ce))
	assert.Equal(t, "cue", ce.Field)
}

func TestCompileRejectsUnknownField(t *testing.T) {
	_, errs := compileString(t, `category: belt: { members: ["a"], colour: "red" }`)
	assert.Len(t, errs, 1)
}

func TestCompileCollectsMemberErrors(t *testing.T) {
	_, errs := compileString(t, `
		category: a: members: ["x", "y"]
		category: b: members: ["y"]
		category: c: members: []
		category: d: members: ["z", "z"]
	`)
	require.Len(t, errs, 3)
	for _, err := range errs {
		var ce *CompileError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "members", ce.Field)
	}
}

func TestLoadValidDir(t *testing.T) {
	cat, errs := Load("testdata/valid")
	require.Empty(t, errs)
	assert.Equal(t, 3, cat.Len())
	assert.Equal(t, compat.OrientationAny, cat.OrientationPolicy("assembler"))

	m := compat.NewMatcher(nil, cat)
	assert.True(t, m.SameCategory("inserter", "long-handed-inserter"))
	assert.False(t, m.SameCategory("inserter", "transport-belt"))
}

func TestLoadInvalidDir(t *testing.T) {
	_, errs := Load("testdata/invalid")
	require.Len(t, errs, 2)
	for _, err := range errs {
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, ErrCodeMembers, le.Code)
	}
}

func TestLoadMissingDir(t *testing.T) {
	_, errs := Load("testdata/nope")
	require.Len(t, errs, 1)
	var le *LoadError
	require.True(t, errors.As(errs[0], &le))
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoadDirWithoutCUE(t *testing.T) {
	_, errs := Load(t.TempDir())
	require.Len(t, errs, 1)
	var le *LoadError
	require.True(t, errors.As(errs[0], &le))
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}
