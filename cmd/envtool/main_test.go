package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestSetDBURLWarnsOnMultipleAt(t *testing.T) {
	dir := t.TempDir()
	_, stderr, err := execute(t, "--dir", dir, "set-db-url", "postgresql://u:p@ss@host/db")
	require.NoError(t, err)
	assert.Contains(t, stderr, "more than one '@'")

	vars, err := godotenv.Read(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "postgresql://u:p@ss@host/db", vars["DATABASE_URL"])
}

func TestDBURLPrintsEscaped(t *testing.T) {
	out, _, err := execute(t, "db-url", "--password", "a#b", "--host", "db", "--name", "prefs")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://postgres:a%23b@db:5432/prefs", strings.TrimSpace(out))
}

func TestCheckFailsOnPlaceholders(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("DATABASE_URL=your-db\nSESSION_SECRET=replace-with-a-strong-random-string\n"), 0o600))

	out, _, err := execute(t, "--dir", dir, "check")
	assert.Error(t, err)
	assert.Contains(t, out, "DATABASE_URL")

	_, _, err = execute(t, "--dir", dir, "secret", "--write")
	require.NoError(t, err)
	_, _, err = execute(t, "--dir", dir, "set-db-url", "postgres://localhost/prefs")
	require.NoError(t, err)

	out, _, err = execute(t, "--dir", dir, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "all required environment variables are set")
}

func TestTokenRequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	_, _, err := execute(t, "token", "--sub", "u1")
	assert.Error(t, err)

	out, _, err := execute(t, "token", "--sub", "u1", "--secret", "s")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out), "."))
}
