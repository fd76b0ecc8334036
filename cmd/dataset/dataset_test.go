package dataset

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prefetchml/internal/pipeline"
	"prefetchml/internal/window"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawTrace = "PREFETCH_TRAIN 4096 .. .. .. 0 100\n" +
	"PREFETCH_TRAIN 8192 .. .. .. 1 150\n" +
	"PREFETCH_TRAIN 4097 .. .. .. 0 200\n" +
	"PREFETCH_TRAIN 4098 .. .. .. 0 210\n"

const postprocessed = "1 0 0 0\n10 0 110010 1\n1 1 110010 0\n1 10 1010 0\n"

func noStatus(string, string) error { return nil }

func TestDatasetFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "trace_processed.txt")
	require.NoError(t, os.WriteFile(input, []byte(postprocessed), 0600))

	outputs, err := datasetFile(context.Background(), dir, input, false, []string{window.FormatTxt, window.FormatCSV}, pipeline.Options{}, noStatus)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "trace_processed_dataset.txt"),
		filepath.Join(dir, "trace_processed_dataset.csv"),
	}, outputs)

	txt, err := os.ReadFile(outputs[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(txt)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], " 000000000001"))
	assert.True(t, strings.HasSuffix(lines[1], " 000000000010"))

	csvData, err := os.ReadFile(outputs[1])
	require.NoError(t, err)
	// header plus one row per sample
	assert.Len(t, strings.Split(strings.TrimSpace(string(csvData)), "\n"), 3)
}

func TestDatasetFileRawMatchesPostprocessed(t *testing.T) {
	dir := t.TempDir()
	rawInput := filepath.Join(dir, "raw.txt")
	processedInput := filepath.Join(dir, "processed.txt")
	require.NoError(t, os.WriteFile(rawInput, []byte(rawTrace), 0600))
	require.NoError(t, os.WriteFile(processedInput, []byte(postprocessed), 0600))

	rawOutputs, err := datasetFile(context.Background(), dir, rawInput, true, []string{window.FormatTxt}, pipeline.Options{Workers: 2}, noStatus)
	require.NoError(t, err)
	processedOutputs, err := datasetFile(context.Background(), dir, processedInput, false, []string{window.FormatTxt}, pipeline.Options{}, noStatus)
	require.NoError(t, err)

	fromRaw, err := os.ReadFile(rawOutputs[0])
	require.NoError(t, err)
	fromProcessed, err := os.ReadFile(processedOutputs[0])
	require.NoError(t, err)
	assert.Equal(t, string(fromProcessed), string(fromRaw))
}

func TestWriteSamplesCancelled(t *testing.T) {
	entries, _, err := pipeline.ReadEntries(context.Background(), strings.NewReader(postprocessed))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	count, err := writeSamples(ctx, filepath.Join(t.TempDir(), "out.txt"), window.FormatTxt, entries)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, count)
}

func TestValidateFlagsRejectsSameNamedInputs(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, run := range []string{"run1", "run2"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, run), 0755))
		input := filepath.Join(dir, run, "trace_processed.txt")
		require.NoError(t, os.WriteFile(input, []byte(postprocessed), 0600))
		inputs = append(inputs, input)
	}
	assert.Error(t, validateFlags(Cmd, inputs))
	assert.NoError(t, validateFlags(Cmd, inputs[:1]))
}
