// Package diffchain stores an entity's configuration across stages as a base
// value plus sparse stage-keyed patches.
//
// The effective value at stage s is the base value with every patch whose
// key is <= s applied in ascending order. A Removed field deletes the
// property from the running value; a Present field overwrites it.
//
// # Invariants
//
//   - firstStage >= 1
//   - lastStage, when set, is >= firstStage
//   - every patch key k satisfies firstStage < k <= lastStage
//   - the "name" property can never be removed
//
// Stage insertion and deletion renumber every key after the affected stage
// so that the chain stays aligned with the project's stage list.
package diffchain
