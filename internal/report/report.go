// Package report renders tables of values as txt, json or xlsx documents.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"
)

const (
	FormatXlsx = "xlsx"
	FormatJson = "json"
	FormatTxt  = "txt"
)

const NoDataFound = "No data found."

var FormatOptions = []string{FormatTxt, FormatJson, FormatXlsx}

// Field is one named column of a table
type Field struct {
	Name   string
	Values []string
}

// TableValues is a named table. When HasRows is false the table is rendered as a list of
// field name/value pairs using the first value of each field.
type TableValues struct {
	Name        string
	HasRows     bool
	NoDataFound string
	Fields      []Field
}

// Create renders the tables in format. All fields of a table must hold the same number of
// values.
func Create(format string, allTableValues []TableValues) (out []byte, err error) {
	for _, tableValue := range allTableValues {
		numRows := -1
		for _, fieldValues := range tableValue.Fields {
			if numRows == -1 {
				numRows = len(fieldValues.Values)
				continue
			}
			if len(fieldValues.Values) != numRows {
				return nil, fmt.Errorf("table %s: expected %d value(s) for field %s, found %d", tableValue.Name, numRows, fieldValues.Name, len(fieldValues.Values))
			}
		}
	}
	switch format {
	case FormatTxt:
		return createTextReport(allTableValues)
	case FormatJson:
		return createJsonReport(allTableValues)
	case FormatXlsx:
		return createXlsxReport(allTableValues)
	}
	return nil, fmt.Errorf("expected one of %s, got %s", strings.Join(FormatOptions, ", "), format)
}

func hasData(tableValues TableValues) bool {
	return len(tableValues.Fields) > 0 && len(tableValues.Fields[0].Values) > 0
}

func noDataMessage(tableValues TableValues) string {
	if tableValues.NoDataFound != "" {
		return tableValues.NoDataFound
	}
	return NoDataFound
}
