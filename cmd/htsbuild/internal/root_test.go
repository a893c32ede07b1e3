// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package internal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/htsengine/internal/source"
)

// run executes the root command with fresh flag values.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	envFile, verbose = "", false
	buildOutput, buildPackage, buildFormat = "", "engine", "env"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestURLCommand(t *testing.T) {
	out, err := run(t, "url")
	require.NoError(t, err)
	d := source.Default()
	assert.Equal(t, d.URL()+"\nsha256 "+d.SHA256+"\n", out)
}

func TestInfoCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OUT_DIR", dir)
	t.Setenv("HTSBUILD_LOG_LEVEL", "error")

	_, err := run(t, "info")
	assert.ErrorContains(t, err, "no build recorded")

	record := `{
  "version": "1.10",
  "sha256": "e2132be5860d8fb4a460be766454cfd7c3e21cf67b509c48e1804feab14968f7",
  "install_dir": "` + filepath.ToSlash(filepath.Join(dir, "installed")) + `",
  "tree_hash": "h1:Zm9v",
  "package": "engine",
  "jobs": 4,
  "build_time": "2026-01-02T03:04:05Z"
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "htsbuild.json"), []byte(record), 0o644))

	out, err := run(t, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "version:")
	assert.Contains(t, out, "1.10")
	assert.Contains(t, out, "h1:Zm9v")
	assert.Contains(t, out, "2026-01-02T03:04:05Z")
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	t.Setenv("OUT_DIR", t.TempDir())
	t.Setenv("HTSBUILD_LOG_LEVEL", "error")
	_, err := run(t, "--format", "cargo")
	assert.ErrorContains(t, err, `unknown format "cargo"`)
}

func TestRootRejectsBadEnvironment(t *testing.T) {
	t.Setenv("OUT_DIR", t.TempDir())
	t.Setenv("NUM_JOBS", "0")
	_, err := run(t)
	assert.ErrorContains(t, err, "NUM_JOBS")
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OUT_DIR", dir)
	t.Setenv("HTSBUILD_LOG_LEVEL", "error")

	_, err := run(t, "--env-file", filepath.Join(dir, "missing.env"), "url")
	require.NoError(t, err, "url does not read the environment")

	_, err = run(t, "--env-file", filepath.Join(dir, "missing.env"), "info")
	assert.ErrorContains(t, err, "missing.env")

	envPath := filepath.Join(dir, "build.env")
	require.NoError(t, os.WriteFile(envPath, []byte("NUM_JOBS=0\n"), 0o644))
	t.Setenv("NUM_JOBS", "")
	os.Unsetenv("NUM_JOBS")
	_, err = run(t, "--env-file", envPath, "info")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "NUM_JOBS"), err.Error())
}

func TestRootRejectsArgs(t *testing.T) {
	_, err := run(t, "extra")
	assert.Error(t, err)
}
