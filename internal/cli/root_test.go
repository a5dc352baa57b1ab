package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "staged", cmd.Use)
	assert.Contains(t, cmd.Long, "live")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	paths := [][]string{
		{"catalog", "validate"},
		{"test"},
		{"inspect"},
		{"stage", "insert"},
		{"stage", "delete"},
	}

	for _, path := range paths {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestProjectFlags(t *testing.T) {
	cmd := NewRootCommand()

	inspectCmd, _, err := cmd.Find([]string{"inspect"})
	require.NoError(t, err)
	for _, name := range []string{"db", "catalog", "stage", "entity"} {
		assert.NotNil(t, inspectCmd.Flags().Lookup(name), name)
	}

	stageCmd, _, err := cmd.Find([]string{"stage"})
	require.NoError(t, err)
	assert.NotNil(t, stageCmd.PersistentFlags().Lookup("db"))
	assert.NotNil(t, stageCmd.PersistentFlags().Lookup("catalog"))
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "test", t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}
