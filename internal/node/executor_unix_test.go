//go:build !windows

package node

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScripts creates a script directory with the given executable scripts.
func writeScripts(t *testing.T, scripts map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "minima")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range scripts {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	}
	return dir
}

func TestRealScript_JSONStatus(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		CLIScript: `echo '{"status":true,"response":{"synced":true}}'`,
	})
	e := New(Config{ScriptDir: dir})

	res := e.Execute(context.Background(), "status")

	assert.True(t, res.Status)
	assert.Equal(t, map[string]any{"synced": true}, res.Response)
}

func TestRealScript_ArgumentsAndWorkDir(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		CLIScript: `echo "$(pwd)|$#|$1|$2"`,
	})
	e := New(Config{ScriptDir: dir})

	res := e.Execute(context.Background(), "maxima action:info")

	require.True(t, res.Status)
	wd, err := filepath.EvalSymlinks(filepath.Dir(dir))
	require.NoError(t, err)
	got, _ := res.Response.(string)
	assert.Contains(t, []string{
		filepath.Dir(dir) + "|2|maxima|action:info\n",
		wd + "|2|maxima|action:info\n",
	}, got)
}

func TestRealScript_NonZeroExitUsesStderr(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		CLIScript: `echo "out"; echo "boom" >&2; exit 3`,
	})

	res := New(Config{ScriptDir: dir}).Execute(context.Background(), "network")

	assert.Equal(t, Fail("boom\n"), res)
}

func TestRealScript_MissingScript(t *testing.T) {
	dir := writeScripts(t, nil)

	res := New(Config{ScriptDir: dir}).Execute(context.Background(), "balance")

	assert.False(t, res.Status)
	assert.NotEmpty(t, res.Error)
}

func TestRealScript_TimeoutKillsProcessGroup(t *testing.T) {
	// The background sleep keeps stdout open; without killing the whole group
	// Wait would block until the child exits.
	dir := writeScripts(t, map[string]string{
		CLIScript: "sleep 30 &\nsleep 30",
	})
	e := New(Config{ScriptDir: dir, Timeout: 200 * time.Millisecond})

	start := time.Now()
	res := e.Execute(context.Background(), "vault")

	assert.Equal(t, Fail(ErrMsgTimeout), res)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestCheckScripts(t *testing.T) {
	dir := writeScripts(t, map[string]string{CLIScript: "exit 0"})
	assert.NoError(t, New(Config{ScriptDir: dir}).CheckScripts())

	assert.Error(t, New(Config{ScriptDir: t.TempDir()}).CheckScripts())

	nonExec := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(nonExec, CLIScript), []byte("#!/bin/sh\n"), 0o644))
	assert.Error(t, New(Config{ScriptDir: nonExec}).CheckScripts())
}
