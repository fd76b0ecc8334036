package config

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"prefetchml/internal/bitfield"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "prefetchml.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "PREFETCH_TRAIN", cfg.Sentinel)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, 0.5, cfg.Threshold)
	policy, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, bitfield.PolicyReject, policy)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
overflow_policy: saturate
max_iterations: 250
workers: 3
filter: "access_type == 1"
model:
  url: http://localhost:8501
  timeout: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "PREFETCH_TRAIN", cfg.Sentinel, "missing keys keep defaults")
	assert.Equal(t, "saturate", cfg.OverflowPolicy)
	assert.Equal(t, 250, cfg.MaxIterations)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "access_type == 1", cfg.Filter)
	assert.Equal(t, "http://localhost:8501", cfg.Model.URL)
	assert.Equal(t, "prefetch", cfg.Model.Name)
	assert.Equal(t, 2*time.Second, cfg.Model.Timeout)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown key", content: "sentinels: FOO\n"},
		{name: "bad policy", content: "overflow_policy: widen\n"},
		{name: "negative iterations", content: "max_iterations: -1\n"},
		{name: "threshold out of range", content: "threshold: 1.5\n"},
		{name: "zero workers", content: "workers: 0\n"},
		{name: "not yaml", content: "::\n\t- ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
