package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadParams_Layers(t *testing.T) {
	t.Setenv("JOB_COMMAND", "SELECT 0")
	t.Setenv("SNOWFLAKE_ACCOUNT", "env-account")
	t.Setenv("WAREHOUSE_TIMEOUT_MS", "2500")

	file := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
command: SELECT * FROM t WHERE d = ':day'
user: svc
args:
  day: "2024-01-01"
csvFileExport: /tmp/out.csv
csvOptions:
  delimiter: ";"
  headers: false
`), 0o644))

	p, err := loadParams(jobFlags{
		paramsFile: file,
		args:       map[string]string{"region": "eu"},
		driver:     "bigquery",
		noStream:   true,
	})
	require.NoError(t, err)

	require.Equal(t, "SELECT * FROM t WHERE d = ':day'", p.Command)
	require.Equal(t, "env-account", p.Account)
	require.Equal(t, 2500, p.Timeout)
	require.Equal(t, "svc", p.User)
	require.Equal(t, map[string]any{"day": "2024-01-01", "region": "eu"}, p.Args)
	require.Equal(t, "bigquery", p.Driver)
	require.Equal(t, "/tmp/out.csv", p.CSVFileExport)
	require.Equal(t, ";", p.CSVOptions["delimiter"])
	require.Equal(t, false, p.CSVOptions["headers"])
	require.False(t, p.Streaming())
}

func TestLoadParams_FlagsOverride(t *testing.T) {
	t.Setenv("JOB_COMMAND", "SELECT 0")

	p, err := loadParams(jobFlags{command: "SELECT 1", jsonFile: "/tmp/a.json"})
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", p.Command)
	require.Equal(t, "/tmp/a.json", p.JSONFileExport)
	require.True(t, p.Streaming())
}

func TestLoadParams_BadFile(t *testing.T) {
	_, err := loadParams(jobFlags{paramsFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("command: [unterminated"), 0o644))
	_, err = loadParams(jobFlags{paramsFile: file})
	require.ErrorContains(t, err, "failed to parse params file")
}
