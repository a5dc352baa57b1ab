package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_All(t *testing.T) {
	db := createProject(t)

	out, err := executeRoot(t, "inspect", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "4 entities, 1 circuit edges, 1 cables")
	assert.Contains(t, out, "comb combinator at (0, 0) facing east [1, ∞]")
	assert.Contains(t, out, "lamp lamp at (2, 0) facing east [2, ∞]")
}

func TestInspect_Stage(t *testing.T) {
	db := createProject(t)

	out, err := executeRoot(t, "--format", "json", "inspect", "--db", db, "--stage", "1")
	require.NoError(t, err)

	var response struct {
		Data struct {
			Stage    int `json:"stage"`
			Entities []struct {
				ID    string         `json:"id"`
				Value map[string]any `json:"value"`
			} `json:"entities"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, 1, response.Data.Stage)

	ids := make([]string, 0, len(response.Data.Entities))
	for _, e := range response.Data.Entities {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"comb", "pole-a", "pole-b"}, ids)
	assert.Equal(t, map[string]any{"name": "combinator"}, response.Data.Entities[0].Value)
}

func TestInspect_EntityDetail(t *testing.T) {
	db := createProject(t)

	out, err := executeRoot(t, "inspect", "--db", db, "--entity", "comb", "--stage", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `value: {"name":"combinator","threshold":5}`)
	assert.Contains(t, out, `stage 3: {"set":{"threshold":5}}`)
	assert.Contains(t, out, "circuit comb:2 -green- lamp:1")
}

func TestInspect_EntityNotFound(t *testing.T) {
	db := createProject(t)

	out, err := executeRoot(t, "inspect", "--db", db, "--entity", "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E302]: entity not found: ghost")
}

func TestInspect_MissingDB(t *testing.T) {
	_, err := executeRoot(t, "inspect", "--db", "/nonexistent/project.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")

	_, err = executeRoot(t, "inspect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--db is required")
}
