package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/oriumgames/pipeline"
	"github.com/oriumgames/pipeline/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_PrintsPlan(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, "render.hcl", `
pipeline "render" {
  system "GBufferPass" {
    requires = ["Camera.Updated"]
    produces = ["GBuffer.Written"]
  }
  system "CameraUpdate" {
    produces = ["Camera.Updated"]
  }
}
`)
	var out, logs bytes.Buffer
	require.NoError(t, run(&out, &logs, []string{path}))
	assert.Contains(t, out.String(), "pipeline render")
	assert.Contains(t, out.String(), "stage 0: CameraUpdate\nstage 1: GBufferPass")
}

func TestRun_BuildError(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, "broken.yaml", `
name: broken
systems:
  - name: Lighting
    requires: [GBuffer.Written]
`)
	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrUnsatisfiable))

	var exitErr *cli.ExitError
	assert.False(t, errors.As(err, &exitErr), "build errors exit with code 1")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, run(&out, &bytes.Buffer{}, []string{"-h"}))
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_FlagError(t *testing.T) {
	t.Parallel()

	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"-log-format", "xml", "x.yaml"})
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}
