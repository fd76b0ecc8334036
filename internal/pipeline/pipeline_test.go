package pipeline

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/trace"
	"prefetchml/internal/window"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioTrace = strings.Join([]string{
	"PREFETCH_TRAIN 4096 .. .. .. 0 100",
	"PREFETCH_TRAIN 8192 .. .. .. 1 150",
	"PREFETCH_TRAIN 4097 .. .. .. 0 200",
}, "\n") + "\n"

func defaultOptions() Options {
	return Options{Sentinel: trace.DefaultSentinel, Policy: bitfield.PolicyReject, Workers: 4}
}

func TestPreprocessScenario(t *testing.T) {
	var out bytes.Buffer
	stats, err := Preprocess(context.Background(), strings.NewReader("# header\n"+scenarioTrace), &out, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Stats{Lines: 4, Records: 3, Ignored: 1, Written: 3}, stats)
	assert.Equal(t, "1 0 0 0\n10 0 110010 1\n1 1 110010 0\n", out.String())
}

func TestPreprocessThenWindow(t *testing.T) {
	var out bytes.Buffer
	_, err := Preprocess(context.Background(), strings.NewReader(scenarioTrace), &out, defaultOptions())
	require.NoError(t, err)
	entries, stats, err := ReadEntries(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Records)
	samples := window.Collect(entries)
	require.Len(t, samples, 1)
	assert.Equal(t, "000000000001", samples[0].Label.String())
	assert.Equal(t, entries[0].Record.String()+entries[1].Record.String(), samples[0].Window.String())
}

func TestPreprocessNegativeDelta(t *testing.T) {
	input := "PREFETCH_TRAIN 4096 a b c 0 100\nPREFETCH_TRAIN 4096 a b c 0 90\n"
	var out bytes.Buffer
	_, err := Preprocess(context.Background(), strings.NewReader(input), &out, defaultOptions())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[1], "-")
	rec, err := bitfield.ParseLine(lines[1])
	require.NoError(t, err)
	assert.Equal(t, int64(-10), rec.CycleDelta())
}

func TestPreprocessOverflowLeavesGap(t *testing.T) {
	bigPage := uint64(1<<bitfield.PageNumberWidth) << trace.PageShift
	input := fmt.Sprintf("PREFETCH_TRAIN 4096 a b c 0 100\nPREFETCH_TRAIN %d a b c 0 110\nPREFETCH_TRAIN 4096 a b c 0 130\n", bigPage)

	var out bytes.Buffer
	stats, err := Preprocess(context.Background(), strings.NewReader(input), &out, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Overflow)
	assert.Equal(t, "1 0 0 0\n\n1 0 10100 0\n", out.String(), "delta is taken to the rejected record")

	opts := defaultOptions()
	opts.Policy = bitfield.PolicyTruncate
	out.Reset()
	stats, err = Preprocess(context.Background(), strings.NewReader(input), &out, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Overflow)
	assert.Equal(t, "1 0 0 0\n0 0 1010 0\n1 0 10100 0\n", out.String())
}

func TestPreprocessFilter(t *testing.T) {
	opts := defaultOptions()
	filter, err := NewFilter("access_type == 0")
	require.NoError(t, err)
	opts.Filter = filter
	var out bytes.Buffer
	stats, err := Preprocess(context.Background(), strings.NewReader(scenarioTrace), &out, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Filtered)
	assert.Equal(t, "1 0 0 0\n1 1 110010 0\n", out.String(), "filtered records still advance the delta")
}

func TestPreprocessMalformed(t *testing.T) {
	input := "PREFETCH_TRAIN 4096\nPREFETCH_TRAIN x a b c 0 1\n" + scenarioTrace
	var out bytes.Buffer
	stats, err := Preprocess(context.Background(), strings.NewReader(input), &out, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 3, stats.Written)
}

func TestPreprocessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Preprocess(ctx, strings.NewReader(scenarioTrace), &bytes.Buffer{}, defaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreprocessProgress(t *testing.T) {
	opts := defaultOptions()
	var calls []Stats
	opts.Progress = func(s Stats) { calls = append(calls, s) }
	_, err := Preprocess(context.Background(), strings.NewReader(scenarioTrace), &bytes.Buffer{}, opts)
	require.NoError(t, err)
	require.NotEmpty(t, calls)
	assert.Equal(t, 3, calls[len(calls)-1].Written)
}

func TestReadEntries(t *testing.T) {
	input := strings.Join([]string{
		"1 0 0 0",
		"10 0 -110010 1", // sign character from the old format
		"1 1 110010 0",
		"1 1",
		"111111111111111 1 0 0",
		"10 11 1 1",
		"1 1 1 1",
		"11 0 0 0",
	}, "\n")
	entries, stats, err := ReadEntries(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 8)
	assert.Equal(t, 1, stats.Corrupt)
	assert.Equal(t, 1, stats.Malformed)
	assert.Equal(t, 1, stats.Overflow)
	assert.Equal(t, 5, stats.Records)
	valid := []bool{true, false, true, false, false, true, true, true}
	for i, e := range entries {
		assert.Equal(t, valid[i], e.Valid, "entry %d", i)
	}
	var indexes []int
	for s := range window.Samples(entries) {
		indexes = append(indexes, s.Index)
	}
	assert.Equal(t, []int{6}, indexes)
}

func TestMalformedLineNeverCrashes(t *testing.T) {
	entries, _, err := ReadEntries(context.Background(), strings.NewReader("garbage\n1 0 0 0\n10 0 110010 1\n"))
	require.NoError(t, err)
	assert.Empty(t, window.Collect(entries))
}

func TestEntriesFromRawMatchesSequential(t *testing.T) {
	var sb strings.Builder
	cycle := int64(1000)
	for i := range 10_000 {
		cycle += int64(i%7) - 2
		fmt.Fprintf(&sb, "PREFETCH_TRAIN %d a b c %d %d\n", uint64(i%5000)*4096+uint64(i%4096), i%2, cycle)
		if i%1000 == 0 {
			sb.WriteString("noise line\n")
		}
	}
	input := sb.String()

	opts := defaultOptions()
	opts.Workers = 8
	parallel, stats, err := EntriesFromRaw(context.Background(), strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Equal(t, 10_000, stats.Records)
	assert.Equal(t, 10, stats.Ignored)

	var out bytes.Buffer
	_, err = Preprocess(context.Background(), strings.NewReader(input), &out, opts)
	require.NoError(t, err)
	sequential, _, err := ReadEntries(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, sequential, parallel)
}

func TestEncodeParallelErrorsInPlace(t *testing.T) {
	accesses := []trace.Access{{Address: 4096}, {Address: 1 << 40}, {Address: 8192}}
	deltas := []int64{0, 5, 10}
	entries, errs := EncodeParallel(accesses, deltas, 3, bitfield.NewEncoder(bitfield.PolicyReject))
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Valid)
	assert.False(t, entries[1].Valid)
	assert.ErrorIs(t, errs[1], bitfield.ErrFieldOverflow)
	assert.True(t, entries[2].Valid)
	assert.Equal(t, int64(10), entries[2].Record.CycleDelta())
}

func TestFilter(t *testing.T) {
	f, err := NewFilter("page_number == 1 && cycle_delta >= 0")
	require.NoError(t, err)
	match, err := f.Match(trace.Access{Address: 4097, Cycle: 1}, 3)
	require.NoError(t, err)
	assert.True(t, match)
	match, err = f.Match(trace.Access{Address: 8192, Cycle: 1}, 3)
	require.NoError(t, err)
	assert.False(t, match)

	var none *Filter
	match, err = none.Match(trace.Access{}, 0)
	require.NoError(t, err)
	assert.True(t, match)

	f, err = NewFilter("   ")
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = NewFilter("pc > 3")
	assert.Error(t, err)
	_, err = NewFilter("page_number >")
	assert.Error(t, err)

	f, err = NewFilter("page_number + 1")
	require.NoError(t, err)
	_, err = f.Match(trace.Access{}, 0)
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	bigPage := uint64(1<<bitfield.PageNumberWidth) << trace.PageShift
	input := scenarioTrace + fmt.Sprintf("PREFETCH_TRAIN %d a b c 1 100\nnoise\nPREFETCH_TRAIN 1\n", bigPage)
	summary, err := Summarize(context.Background(), "trace.txt", strings.NewReader(input), defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "trace.txt", summary.Name)
	assert.Equal(t, 6, summary.Lines)
	assert.Equal(t, 4, summary.Records)
	assert.Equal(t, 1, summary.Ignored)
	assert.Equal(t, 1, summary.Malformed)
	assert.Equal(t, 2, summary.Reads)
	assert.Equal(t, 2, summary.Writes)
	assert.Equal(t, 3, summary.DistinctPages)
	assert.Equal(t, 2, summary.DistinctOffsets)
	assert.Equal(t, uint64(1<<bitfield.PageNumberWidth), summary.MaxPageNumber)
	assert.Equal(t, 15, summary.PageNumberBits)
	assert.Equal(t, 1, summary.PageNumberOverflows)
	assert.Equal(t, int64(-100), summary.MinCycleDelta)
	assert.Equal(t, int64(50), summary.MaxCycleDelta)
	assert.Equal(t, 1, summary.NegativeDeltas)
	assert.Equal(t, 0, summary.CycleDeltaOverflows)
	assert.Equal(t, 1, summary.ExpectedSamples)
	assert.Equal(t, 0, summary.Filtered)
}

func TestSummarizeExpectedSamplesWithFilter(t *testing.T) {
	input := scenarioTrace + "PREFETCH_TRAIN 4098 .. .. .. 0 210\nPREFETCH_TRAIN 4099 .. .. .. 0 220\n"
	opts := defaultOptions()
	unfiltered, err := Summarize(context.Background(), "trace.txt", strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, unfiltered.ExpectedSamples)

	opts.Filter, err = NewFilter("access_type == 0")
	require.NoError(t, err)
	filtered, err := Summarize(context.Background(), "trace.txt", strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Filtered)
	assert.Equal(t, 5, filtered.Records)

	// the count must match what the dataset pass produces with the same options
	entries, _, err := EntriesFromRaw(context.Background(), strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Len(t, window.Collect(entries), filtered.ExpectedSamples)
	assert.Equal(t, 2, filtered.ExpectedSamples)
}
