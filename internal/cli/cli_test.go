package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-log-level", "DEBUG", "-log-format", "json", "-color", "render.yaml"}, &out)
	require.NoError(t, err)
	assert.False(t, exit)
	assert.Equal(t, &Config{
		ManifestPath: "render.yaml",
		LogLevel:     "debug",
		LogFormat:    "json",
		Color:        true,
	}, cfg)
}

func TestParse_Defaults(t *testing.T) {
	cfg, _, err := Parse([]string{"render.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.Color)
	assert.False(t, cfg.NoHazardSplit)
}

func TestParse_ShouldExit(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {}} {
		var out bytes.Buffer
		cfg, exit, err := Parse(args, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"-nope", "x.yaml"}, "not defined"},
		{"bad format", []string{"-log-format", "xml", "x.yaml"}, "invalid log-format"},
		{"bad level", []string{"-log-level", "loud", "x.yaml"}, "invalid log-level"},
		{"two manifests", []string{"a.yaml", "b.yaml"}, "exactly one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.args, &bytes.Buffer{})
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	logger.Warn("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "v", rec["k"])

	buf.Reset()
	NewLogger("debug", "text", &buf).Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}
