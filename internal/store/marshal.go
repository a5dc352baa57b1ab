package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/staged/internal/model"
)

// marshalObject converts an Object to canonical JSON TEXT for storage.
func marshalObject(obj model.Object) (string, error) {
	data, err := model.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// marshalPatch converts a Patch to canonical JSON TEXT. Removed fields are
// listed under "removed" so they survive a round trip.
func marshalPatch(p model.Patch) (string, error) {
	data, err := p.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal patch: %w", err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT. Large integers keep full
// precision via model.Object.UnmarshalJSON.
func unmarshalObject(data string) (model.Object, error) {
	var obj model.Object
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return obj, nil
}

func unmarshalPatch(data string) (model.Patch, error) {
	var p model.Patch
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal patch: %w", err)
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
