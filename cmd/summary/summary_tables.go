package summary

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"strconv"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/pipeline"
	"prefetchml/internal/report"
)

const (
	TraceTableName  = "Trace Summary"
	FitTableName    = "Field Fit"
	LayoutTableName = "Record Layout"
)

// summaryTables builds the report tables, one row per trace
func summaryTables(summaries []pipeline.Summary) []report.TableValues {
	return []report.TableValues{
		traceTable(summaries),
		fitTable(summaries),
		layoutTable(),
	}
}

// column collects the values of one field across all traces
func column(name string, summaries []pipeline.Summary, value func(pipeline.Summary) string) report.Field {
	field := report.Field{Name: name}
	for _, s := range summaries {
		field.Values = append(field.Values, value(s))
	}
	return field
}

func itoa(i int) string { return strconv.Itoa(i) }

func traceTable(summaries []pipeline.Summary) report.TableValues {
	return report.TableValues{
		Name:    TraceTableName,
		HasRows: true,
		Fields: []report.Field{
			column("Trace", summaries, func(s pipeline.Summary) string { return s.Name }),
			column("Lines", summaries, func(s pipeline.Summary) string { return itoa(s.Lines) }),
			column("Records", summaries, func(s pipeline.Summary) string { return itoa(s.Records) }),
			column("Ignored", summaries, func(s pipeline.Summary) string { return itoa(s.Ignored) }),
			column("Malformed", summaries, func(s pipeline.Summary) string { return itoa(s.Malformed) }),
			column("Reads", summaries, func(s pipeline.Summary) string { return itoa(s.Reads) }),
			column("Writes", summaries, func(s pipeline.Summary) string { return itoa(s.Writes) }),
			column("Filtered", summaries, func(s pipeline.Summary) string { return itoa(s.Filtered) }),
			column("Expected Samples", summaries, func(s pipeline.Summary) string { return itoa(s.ExpectedSamples) }),
		},
	}
}

func fitTable(summaries []pipeline.Summary) report.TableValues {
	return report.TableValues{
		Name:    FitTableName,
		HasRows: true,
		Fields: []report.Field{
			column("Trace", summaries, func(s pipeline.Summary) string { return s.Name }),
			column("Distinct Pages", summaries, func(s pipeline.Summary) string { return itoa(s.DistinctPages) }),
			column("Max Page Number", summaries, func(s pipeline.Summary) string { return strconv.FormatUint(s.MaxPageNumber, 10) }),
			column("Page Number Bits", summaries, func(s pipeline.Summary) string { return itoa(s.PageNumberBits) }),
			column("Page Number Overflows", summaries, func(s pipeline.Summary) string { return itoa(s.PageNumberOverflows) }),
			column("Distinct Offsets", summaries, func(s pipeline.Summary) string { return itoa(s.DistinctOffsets) }),
			column("Min Cycle Delta", summaries, func(s pipeline.Summary) string { return strconv.FormatInt(s.MinCycleDelta, 10) }),
			column("Max Cycle Delta", summaries, func(s pipeline.Summary) string { return strconv.FormatInt(s.MaxCycleDelta, 10) }),
			column("Mean Cycle Delta", summaries, func(s pipeline.Summary) string { return strconv.FormatFloat(s.MeanCycleDelta, 'f', 2, 64) }),
			column("Negative Deltas", summaries, func(s pipeline.Summary) string { return itoa(s.NegativeDeltas) }),
			column("Cycle Delta Overflows", summaries, func(s pipeline.Summary) string { return itoa(s.CycleDeltaOverflows) }),
		},
	}
}

// layoutTable describes the encoded record, most significant field first
func layoutTable() report.TableValues {
	table := report.TableValues{
		Name:    LayoutTableName,
		HasRows: true,
		Fields: []report.Field{
			{Name: "Field"},
			{Name: "Width"},
			{Name: "Signed"},
		},
	}
	for _, f := range bitfield.Fields {
		table.Fields[0].Values = append(table.Fields[0].Values, f.String())
		table.Fields[1].Values = append(table.Fields[1].Values, itoa(f.Width()))
		table.Fields[2].Values = append(table.Fields[2].Values, strconv.FormatBool(f.Signed()))
	}
	return table
}
