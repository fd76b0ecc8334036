package pipeline

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/metrics"
	"prefetchml/internal/trace"
	"prefetchml/internal/window"

	"github.com/pkg/errors"
)

// ReadEntries turns every postprocessed line of r into a window entry. Lines that can't be
// decoded become invalid entries in place so their neighbors are not windowed together.
func ReadEntries(ctx context.Context, r io.Reader) ([]window.Entry, Stats, error) {
	var stats Stats
	var entries []window.Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return entries, stats, err
		}
		stats.Lines++
		metrics.LinesTotal.WithLabelValues(metrics.StagePostprocessed).Inc()
		rec, err := bitfield.ParseLine(scanner.Text())
		if err != nil {
			switch {
			case errors.Is(err, bitfield.ErrDataCorruption):
				stats.Corrupt++
				metrics.Skipped(metrics.StagePostprocessed, metrics.ReasonCorrupt)
			case errors.Is(err, bitfield.ErrFieldOverflow):
				stats.Overflow++
				metrics.Skipped(metrics.StagePostprocessed, metrics.ReasonOverflow)
			default:
				stats.Malformed++
				metrics.Skipped(metrics.StagePostprocessed, metrics.ReasonMalformed)
			}
			slog.Debug("invalid postprocessed line", slog.Int("line", stats.Lines), slog.String("error", err.Error()))
			entries = append(entries, window.Entry{})
			continue
		}
		stats.Records++
		stats.Written++
		entries = append(entries, window.Entry{Record: rec, Valid: true})
	}
	if err := scanner.Err(); err != nil {
		return entries, stats, errors.Wrapf(err, "failed to read postprocessed input after line %d", stats.Lines)
	}
	return entries, stats, nil
}

// EntriesFromRaw builds window entries straight from a raw trace with the two phase
// encoder: a sequential scan parses records and computes deltas, then the records are
// encoded in parallel. Filtered records are removed, rejected records leave invalid entries.
func EntriesFromRaw(ctx context.Context, r io.Reader, opts Options) ([]window.Entry, Stats, error) {
	var stats Stats
	var accesses []trace.Access
	var cycles []int64
	err := trace.NewParser(opts.Sentinel).Scan(r, func(lineNum int, line string, access trace.Access, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		stats.Lines++
		metrics.LinesTotal.WithLabelValues(metrics.StageRaw).Inc()
		defer func() { opts.progress(stats, false) }()
		if err != nil {
			countParseError(&stats, lineNum, err)
			return nil
		}
		stats.Records++
		accesses = append(accesses, access)
		cycles = append(cycles, access.Cycle)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	deltas := trace.Deltas(cycles)
	if opts.Filter != nil {
		kept := 0
		for i, access := range accesses {
			match, err := opts.Filter.Match(access, deltas[i])
			if err != nil {
				return nil, stats, err
			}
			if !match {
				stats.Filtered++
				metrics.Skipped(metrics.StageRaw, metrics.ReasonFiltered)
				continue
			}
			accesses[kept] = access
			deltas[kept] = deltas[i]
			kept++
		}
		accesses = accesses[:kept]
		deltas = deltas[:kept]
	}
	entries, errs := EncodeParallel(accesses, deltas, opts.Workers, opts.encoder())
	for i, err := range errs {
		if err != nil {
			stats.Overflow++
			metrics.Skipped(metrics.StageRaw, metrics.ReasonOverflow)
			slog.Debug("rejecting record", slog.Int("record", i), slog.String("error", err.Error()))
			continue
		}
		stats.Written++
	}
	opts.progress(stats, true)
	return entries, stats, nil
}

// minChunk keeps tiny inputs from being split across many goroutines
const minChunk = 4096

// EncodeParallel encodes accesses whose deltas are already known. Each worker owns a
// contiguous range of indexes and writes only its own slots of the result slices.
func EncodeParallel(accesses []trace.Access, deltas []int64, workers int, enc *bitfield.Encoder) ([]window.Entry, []error) {
	entries := make([]window.Entry, len(accesses))
	errs := make([]error, len(accesses))
	encodeRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			rec, err := enc.EncodeAccess(accesses[i], deltas[i])
			if err != nil {
				errs[i] = err
				continue
			}
			entries[i] = window.Entry{Record: rec, Valid: true}
		}
	}
	if workers < 1 {
		workers = 1
	}
	chunk := max((len(accesses)+workers-1)/workers, minChunk)
	if chunk >= len(accesses) {
		encodeRange(0, len(accesses))
		return entries, errs
	}
	var wg sync.WaitGroup
	for lo := 0; lo < len(accesses); lo += chunk {
		hi := min(lo+chunk, len(accesses))
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			encodeRange(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
	return entries, errs
}
