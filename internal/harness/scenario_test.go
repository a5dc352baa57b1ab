package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
name: minimal
description: smallest valid scenario
entities:
  - id: b1
    name: belt
    first_stage: 1
assertions:
  - type: entity_count
    count: 1
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Entities, 1)
	assert.Equal(t, 1, *s.Assertions[0].Count)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimal + "bogus: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nentities: [{id: a, name: belt, first_stage: 1}]\nassertions: [{type: entity_count, count: 1}]\n",
			want: "name is required",
		},
		{
			name: "duplicate entity",
			yaml: "name: n\ndescription: d\nentities: [{id: a, name: belt, first_stage: 1}, {id: a, name: belt, first_stage: 1}]\nassertions: [{type: entity_count, count: 1}]\n",
			want: `duplicate id "a"`,
		},
		{
			name: "stage zero",
			yaml: "name: n\ndescription: d\nentities: [{id: a, name: belt, first_stage: 0}]\nassertions: [{type: entity_count, count: 1}]\n",
			want: "first_stage must be >= 1",
		},
		{
			name: "unknown op",
			yaml: "name: n\ndescription: d\nentities: [{id: a, name: belt, first_stage: 1}]\nsteps: [{op: explode}]\nassertions: [{type: entity_count, count: 1}]\n",
			want: `unknown op "explode"`,
		},
		{
			name: "reconcile without mode",
			yaml: "name: n\ndescription: d\nentities: [{id: a, name: belt, first_stage: 1}]\nsteps: [{op: reconcile, stage: 1}]\nassertions: [{type: entity_count, count: 1}]\n",
			want: "mode must be apply or save",
		},
		{
			name: "circuit without channel",
			yaml: "name: n\ndescription: d\nentities: [{id: a, name: belt, first_stage: 1}]\nsteps: [{op: connect_circuit, from: a, to: a}]\nassertions: [{type: entity_count, count: 1}]\n",
			want: "channel is required",
		},
		{
			name: "value_at without expect",
			yaml: "name: n\ndescription: d\nentities: [{id: a, name: belt, first_stage: 1}]\nassertions: [{type: value_at, entity: a, stage: 1}]\n",
			want: "expect or absent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
