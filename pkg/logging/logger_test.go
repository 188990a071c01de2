// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_YAML(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("level: warn\nformat: json\n"), &cfg))
	assert.Equal(t, LevelWarn, cfg.Level)

	out, err := yaml.Marshal(Config{Level: LevelDebug})
	require.NoError(t, err)
	assert.Contains(t, string(out), "level: debug")

	assert.Error(t, yaml.Unmarshal([]byte("level: loud\n"), &cfg))
}

func TestNew_Formats(t *testing.T) {
	t.Run("json to a non-terminal writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Output: &buf, Service: "gridsim"})
		require.NoError(t, err)
		logger.Slog().Info("hello", "n", 3)

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "hello", rec["msg"])
		assert.Equal(t, "gridsim", rec["service"])
		assert.Equal(t, float64(3), rec["n"])
	})

	t.Run("forced text", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Output: &buf, Format: FormatText})
		require.NoError(t, err)
		logger.Slog().Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("level filter", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Output: &buf, Level: LevelWarn})
		require.NoError(t, err)
		logger.Slog().Info("dropped")
		logger.Slog().Warn("kept")
		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("quiet", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Output: &buf, Quiet: true})
		require.NoError(t, err)
		logger.Slog().Error("nothing")
		assert.Empty(t, buf.String())
	})
}

func TestNew_LogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger, err := New(Config{Output: &buf, LogDir: dir, Service: "unit"})
	require.NoError(t, err)

	child := logger.With("request_id", "r1")
	child.Slog().Info("to both")
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "unit_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request_id":"r1"`)
	assert.Contains(t, buf.String(), "to both")
}

func TestNew_LogDirUnwritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := New(Config{LogDir: filepath.Join(file, "logs"), Quiet: true})
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}
