// Package compat decides whether a live-world object corresponds to a stored
// entity.
//
// A candidate matches an entity at the same coordinate when:
//
//  1. the entity exists at the candidate's reference stage (if given),
//  2. the names are equal or resolve to the same category, and
//  3. the orientations agree under the category's OrientationPolicy.
//
// Category membership and orientation policy come from a Classifier
// supplied by the caller; the matcher never derives them itself. Object kinds
// that must never be confused with an identical sibling are resolved through
// an identity Registry instead of by position.
package compat
