package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/config"
	"prefetchml/internal/progress"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineOptions(t *testing.T) {
	cfg := config.Default()
	cfg.OverflowPolicy = "saturate"
	cfg.Filter = "access_type == 1"
	cfg.Workers = 3
	opts, err := PipelineOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, bitfield.PolicySaturate, opts.Policy)
	assert.Equal(t, cfg.Sentinel, opts.Sentinel)
	assert.Equal(t, 3, opts.Workers)
	require.NotNil(t, opts.Filter)

	cfg.Filter = ""
	opts, err = PipelineOptions(cfg)
	require.NoError(t, err)
	assert.Nil(t, opts.Filter)

	cfg.OverflowPolicy = "wrap"
	_, err = PipelineOptions(cfg)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Filter = "access_type =="
	_, err = PipelineOptions(cfg)
	assert.Error(t, err)
}

func TestGetAppContext(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	child := &cobra.Command{Use: "child"}
	root.AddCommand(child)

	// no context set yet
	appContext := GetAppContext(child)
	assert.Equal(t, config.Default().Sentinel, appContext.Config.Sentinel)

	root.SetContext(context.WithValue(context.Background(), AppContext{}, AppContext{OutputDir: "/tmp/out", Version: "1.2.3"}))
	appContext = GetAppContext(child)
	assert.Equal(t, "/tmp/out", appContext.OutputDir)
	assert.Equal(t, "1.2.3", appContext.Version)
}

func TestFileCommandProcess(t *testing.T) {
	inputs := []string{"a.txt", "b.txt", "c.txt", "d.txt"}
	var mu sync.Mutex
	var seen []string
	fc := &FileCommand{
		Cmd:     &cobra.Command{Use: "test"},
		Inputs:  inputs,
		Workers: 2,
		Func: func(ctx context.Context, appContext AppContext, input string, status progress.MultiSpinnerUpdateFunc) ([]string, error) {
			mu.Lock()
			seen = append(seen, input)
			mu.Unlock()
			if input == "c.txt" {
				return nil, errors.New("boom")
			}
			return []string{input + ".out"}, nil
		},
	}
	status := func(label, status string) error { return nil }
	outputs, errs := fc.process(context.Background(), AppContext{}, status)
	require.Len(t, outputs, 4)
	require.Len(t, errs, 4)
	assert.ElementsMatch(t, inputs, seen)
	assert.Equal(t, []string{"a.txt.out"}, outputs[0])
	assert.Equal(t, []string{"d.txt.out"}, outputs[3])
	assert.Nil(t, outputs[2])
	assert.EqualError(t, errs[2], "boom")
	assert.NoError(t, errs[0])
}

func TestFileCommandProcessCancelled(t *testing.T) {
	called := false
	fc := &FileCommand{
		Cmd:     &cobra.Command{Use: "test"},
		Inputs:  []string{"a.txt"},
		Workers: 4,
		Func: func(ctx context.Context, appContext AppContext, input string, status progress.MultiSpinnerUpdateFunc) ([]string, error) {
			called = true
			return nil, nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, errs := fc.process(ctx, AppContext{}, func(string, string) error { return nil })
	assert.False(t, called)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestUsageFunc(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd := &cobra.Command{Use: "child", Example: "  $ root child", Run: func(*cobra.Command, []string) {}}
	cmd.Flags().String("format", "txt", "")
	root.AddCommand(cmd)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	usage := UsageFunc(func() []FlagGroup {
		return []FlagGroup{{GroupName: "Output Options", Flags: []Flag{{Name: "format", Help: "output format"}}}}
	})
	require.NoError(t, usage(cmd))
	out := buf.String()
	assert.Contains(t, out, "Output Options:")
	assert.Contains(t, out, fmt.Sprintf("    --%-20s %s%s\n", "format", "output format", " (default: txt)"))
	assert.Contains(t, out, "Global Flags:")
	assert.Contains(t, out, "--debug")
}

func TestApplyPipelineFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	AddPipelineFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--overflow-policy", "truncate", "--workers", "2"}))
	require.NoError(t, ValidatePipelineFlags(cmd))

	cfg := config.Default()
	cfg.Filter = "access_type == 0"
	cfg = ApplyPipelineFlags(cmd, cfg)
	assert.Equal(t, "truncate", cfg.OverflowPolicy)
	assert.Equal(t, 2, cfg.Workers)
	// flags that were not set keep the configured values
	assert.Equal(t, "access_type == 0", cfg.Filter)
	assert.Equal(t, config.Default().Sentinel, cfg.Sentinel)
}

func TestValidatePipelineFlags(t *testing.T) {
	tests := []struct {
		args []string
		ok   bool
	}{
		{[]string{"--overflow-policy", "saturate"}, true},
		{[]string{"--overflow-policy", "wrap"}, false},
		{[]string{"--workers", "0"}, false},
		{[]string{"--filter", "page_offset > 10"}, true},
		{[]string{"--filter", "pc > 10"}, false},
		{[]string{"--sentinel", " "}, false},
	}
	for _, test := range tests {
		cmd := &cobra.Command{Use: "test"}
		cmd.SetErr(&bytes.Buffer{})
		AddPipelineFlags(cmd)
		require.NoError(t, cmd.ParseFlags(test.args))
		err := ValidatePipelineFlags(cmd)
		if test.ok {
			assert.NoError(t, err, test.args)
		} else {
			assert.Error(t, err, test.args)
		}
	}
}

func TestCreateOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "run1")
	require.NoError(t, CreateOutputDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	// existing directory is fine
	require.NoError(t, CreateOutputDir(dir))

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0600))
	assert.Error(t, CreateOutputDir(file))
}
