package pipeline

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"io"
	"math"
	"math/bits"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/trace"

	mapset "github.com/deckarep/golang-set/v2"
)

// Summary describes a raw trace and how well its fields fit the record widths. The
// statistics cover every record; Filtered and ExpectedSamples apply the filter of the
// options, so ExpectedSamples matches what the dataset pass produces with the same options.
type Summary struct {
	Name                string  `json:"name"`
	Lines               int     `json:"lines"`
	Records             int     `json:"records"`
	Ignored             int     `json:"ignored"`
	Malformed           int     `json:"malformed"`
	Filtered            int     `json:"filtered"`
	Reads               int     `json:"reads"`
	Writes              int     `json:"writes"`
	DistinctPages       int     `json:"distinct_pages"`
	DistinctOffsets     int     `json:"distinct_offsets"`
	MaxPageNumber       uint64  `json:"max_page_number"`
	PageNumberBits      int     `json:"page_number_bits"`
	PageNumberOverflows int     `json:"page_number_overflows"`
	MinCycleDelta       int64   `json:"min_cycle_delta"`
	MaxCycleDelta       int64   `json:"max_cycle_delta"`
	MeanCycleDelta      float64 `json:"mean_cycle_delta"`
	NegativeDeltas      int     `json:"negative_deltas"`
	CycleDeltaOverflows int     `json:"cycle_delta_overflows"`
	ExpectedSamples     int     `json:"expected_samples"`
}

// Summarize scans a raw trace once and collects its statistics
func Summarize(ctx context.Context, name string, r io.Reader, opts Options) (Summary, error) {
	summary := Summary{Name: name}
	var stats Stats
	var tracker trace.DeltaTracker
	pages := mapset.NewThreadUnsafeSet[uint64]()
	offsets := mapset.NewThreadUnsafeSet[uint64]()
	var deltaSum float64
	deltaLo := int64(math.MaxInt64)
	deltaHi := int64(math.MinInt64)
	// a record overflowing any field breaks the windows around it
	var validRun, expectedSamples int
	err := trace.NewParser(opts.Sentinel).Scan(r, func(lineNum int, line string, access trace.Access, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		stats.Lines++
		if err != nil {
			countParseError(&stats, lineNum, err)
			return nil
		}
		stats.Records++
		if access.Type == trace.AccessWrite {
			summary.Writes++
		} else {
			summary.Reads++
		}
		addr := trace.Decompose(access.Address)
		pages.Add(addr.PageNumber)
		offsets.Add(addr.PageOffset)
		summary.MaxPageNumber = max(summary.MaxPageNumber, addr.PageNumber)
		fits := true
		if bits.Len64(addr.PageNumber) > bitfield.PageNumberWidth {
			summary.PageNumberOverflows++
			fits = false
		}
		delta := tracker.Next(access.Cycle)
		deltaSum += float64(delta)
		deltaLo = min(deltaLo, delta)
		deltaHi = max(deltaHi, delta)
		if delta < 0 {
			summary.NegativeDeltas++
		}
		if _, _, err := bitfield.FitSigned(delta, bitfield.CycleDeltaWidth, bitfield.PolicyReject); err != nil {
			summary.CycleDeltaOverflows++
			fits = false
		}
		// filtered records leave no gap, they just don't take part in windows
		match, err := opts.Filter.Match(access, delta)
		if err != nil {
			return err
		}
		if !match {
			summary.Filtered++
			return nil
		}
		if fits || opts.Policy != bitfield.PolicyReject {
			validRun++
			if validRun >= 3 {
				expectedSamples++
			}
		} else {
			validRun = 0
		}
		return nil
	})
	summary.Lines = stats.Lines
	summary.Records = stats.Records
	summary.Ignored = stats.Ignored
	summary.Malformed = stats.Malformed
	summary.DistinctPages = pages.Cardinality()
	summary.DistinctOffsets = offsets.Cardinality()
	summary.PageNumberBits = bits.Len64(summary.MaxPageNumber)
	summary.ExpectedSamples = expectedSamples
	if stats.Records > 0 {
		summary.MinCycleDelta = deltaLo
		summary.MaxCycleDelta = deltaHi
		summary.MeanCycleDelta = deltaSum / float64(stats.Records)
	}
	return summary, err
}
