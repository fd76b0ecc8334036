/*
Package pipeline wires the trace parser, delta tracker, bit-field encoder and windower into
the passes run by the commands: preprocessing raw traces, loading encoded records for
windowing, and summarizing traces.
*/
package pipeline

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/metrics"
	"prefetchml/internal/trace"
)

// Options control a pass over a raw trace
type Options struct {
	Sentinel string
	Policy   bitfield.OverflowPolicy
	Filter   *Filter
	// Workers is the phase 2 parallelism of EncodeParallel, 1 if not set
	Workers int
	// Progress, if set, is called every ProgressInterval lines and once at the end
	Progress func(Stats)
}

// ProgressInterval is the number of lines between Progress calls
const ProgressInterval = 100_000

// Stats counts what happened to the lines of one pass
type Stats struct {
	Lines     int // lines read
	Records   int // sentinel lines parsed successfully
	Ignored   int // lines without the sentinel tag
	Malformed int // sentinel lines that failed to parse, or postprocessed lines with too few tokens
	Corrupt   int // postprocessed lines with non-binary characters
	Overflow  int // records rejected by the overflow policy
	Filtered  int // records removed by the filter expression
	Written   int // records written or kept
}

func (o Options) encoder() *bitfield.Encoder {
	enc := bitfield.NewEncoder(o.Policy)
	enc.OnClip = func(f bitfield.Field) {
		metrics.FieldClippedTotal.WithLabelValues(f.String()).Inc()
	}
	return enc
}

func (o Options) progress(stats Stats, force bool) {
	if o.Progress != nil && (force || stats.Lines%ProgressInterval == 0) {
		o.Progress(stats)
	}
}

// countParseError files a raw parse error under the right counter
func countParseError(stats *Stats, lineNum int, err error) {
	if errors.Is(err, trace.ErrNotSentinel) {
		stats.Ignored++
		return
	}
	stats.Malformed++
	metrics.Skipped(metrics.StageRaw, metrics.ReasonMalformed)
	slog.Debug("skipping malformed trace line", slog.Int("line", lineNum), slog.String("error", err.Error()))
}

// Preprocess reads raw trace lines from r and writes one postprocessed line per record to
// w. A record rejected by the overflow policy is written as an empty line so that readers
// do not build a window across it; records removed by the filter are not written at all.
// The delta tracker sees every record, including those that are dropped.
func Preprocess(ctx context.Context, r io.Reader, w io.Writer, opts Options) (Stats, error) {
	var stats Stats
	var tracker trace.DeltaTracker
	enc := opts.encoder()
	out := bufio.NewWriter(w)
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
		delta := tracker.Next(access.Cycle)
		match, err := opts.Filter.Match(access, delta)
		if err != nil {
			return err
		}
		if !match {
			stats.Filtered++
			metrics.Skipped(metrics.StageRaw, metrics.ReasonFiltered)
			return nil
		}
		rec, err := enc.EncodeAccess(access, delta)
		if err != nil {
			stats.Overflow++
			metrics.Skipped(metrics.StageRaw, metrics.ReasonOverflow)
			slog.Debug("rejecting record", slog.Int("line", lineNum), slog.String("error", err.Error()))
			_, err = out.WriteString("\n")
			return err
		}
		stats.Written++
		if _, err := out.WriteString(bitfield.FormatLine(rec)); err != nil {
			return err
		}
		return out.WriteByte('\n')
	})
	opts.progress(stats, true)
	if err != nil {
		return stats, err
	}
	return stats, out.Flush()
}
