// Package model provides the foundational types shared by every other
// staged package.
//
// model imports nothing internal. Entity values, diff patches, stage numbers,
// coordinates and orientations live here so that the diff chain, the spatial
// index and the connection graphs agree on a single vocabulary.
//
// Key design constraints:
//   - Entity values are sealed Value trees; NO float types (use Int)
//   - A Patch distinguishes "explicitly removed" from "not mentioned"
//     through Field, never through a sentinel value
//   - Object keys are iterated in canonical (UTF-16) order when serialized
//   - Stage numbers start at 1
package model
