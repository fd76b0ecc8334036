package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// humanize adds thousands separators to integer values, e.g., 1234567 -> 1,234,567
func humanize(p *message.Printer, value string) string {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return p.Sprintf("%d", i)
	}
	return value
}

func createTextReport(allTableValues []TableValues) (out []byte, err error) {
	p := message.NewPrinter(language.English)
	var sb strings.Builder
	for _, tableValues := range allTableValues {
		sb.WriteString(fmt.Sprintf("%s\n", tableValues.Name))
		sb.WriteString(strings.Repeat("=", len(tableValues.Name)))
		sb.WriteString("\n")
		if !hasData(tableValues) {
			sb.WriteString(noDataMessage(tableValues) + "\n\n")
			continue
		}
		sb.WriteString(renderTextTable(p, tableValues))
		sb.WriteString("\n")
	}
	out = []byte(sb.String())
	return
}

func renderTextTable(p *message.Printer, tableValues TableValues) string {
	var sb strings.Builder
	if tableValues.HasRows { // field names as column headings
		widths := make([]int, len(tableValues.Fields))
		for i, field := range tableValues.Fields {
			widths[i] = len(field.Name)
			for _, val := range field.Values {
				widths[i] = max(widths[i], len(humanize(p, val)))
			}
		}
		columnSpacing := 3
		for i, field := range tableValues.Fields {
			sb.WriteString(fmt.Sprintf("%-*s", widths[i]+columnSpacing, field.Name))
		}
		sb.WriteString("\n")
		for i := range tableValues.Fields {
			sb.WriteString(fmt.Sprintf("%-*s", widths[i]+columnSpacing, strings.Repeat("-", widths[i])))
		}
		sb.WriteString("\n")
		for row := range len(tableValues.Fields[0].Values) {
			for i, field := range tableValues.Fields {
				sb.WriteString(fmt.Sprintf("%-*s", widths[i]+columnSpacing, humanize(p, field.Values[row])))
			}
			sb.WriteString("\n")
		}
		return sb.String()
	}
	// field name: value, one per line, names aligned
	maxNameLen := 0
	for _, field := range tableValues.Fields {
		maxNameLen = max(maxNameLen, len(field.Name))
	}
	for _, field := range tableValues.Fields {
		sb.WriteString(fmt.Sprintf("%-*s %s\n", maxNameLen+1, field.Name+":", humanize(p, field.Values[0])))
	}
	return sb.String()
}
