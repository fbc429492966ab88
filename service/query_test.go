package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrepareQuery(t *testing.T) {
	q := PrepareQuery("SELECT * FROM t WHERE d = ':day' AND n > :n AND m = :n", map[string]any{
		"day": "2024-01-01",
		"n":   5,
	})
	require.Equal(t, "SELECT * FROM t WHERE d = '2024-01-01' AND n > 5 AND m = 5", q)
	require.Equal(t, "SELECT 1", PrepareQuery("SELECT 1", nil))

	q = PrepareQuery("SELECT ':day', ':dayname', ':d'", map[string]any{
		"d":       "x",
		"day":     "2024-02-01",
		"dayname": "Thursday",
	})
	require.Equal(t, "SELECT '2024-02-01', 'Thursday', 'x'", q)
}

func TestLoadCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(file, []byte("SELECT 2"), 0o644))

	cmd, err := LoadCommand(Params{Command: "SELECT 1", CommandFile: file})
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", cmd)

	cmd, err = LoadCommand(Params{CommandFile: file})
	require.NoError(t, err)
	require.Equal(t, "SELECT 2", cmd)

	_, err = LoadCommand(Params{CommandFile: filepath.Join(dir, "missing.sql")})
	require.ErrorIs(t, err, ErrCommandFile)
	require.Contains(t, err.Error(), "Load SQLFile")

	_, err = LoadCommand(Params{})
	require.ErrorIs(t, err, ErrMissingCommand)
	require.Equal(t, missingCommandMessage, err.Error())
}
