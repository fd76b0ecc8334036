package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const XlsxPrimarySheetName = "Summary"

func cellName(col int, row int) (name string) {
	columnName, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return
	}
	name, err = excelize.JoinCellName(columnName, row)
	if err != nil {
		return
	}
	return
}

// getValueForCell stores numbers as numbers so spreadsheet formulas work on them
func getValueForCell(value string) (val any) {
	if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
		return intValue
	}
	if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
		return floatValue
	}
	return value
}

func renderXlsxTable(tableValues TableValues, f *excelize.File, sheetName string, row *int) {
	tableNameStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 14,
		},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	})
	alignLeft, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "left",
		},
	})
	_ = f.SetCellValue(sheetName, cellName(1, *row), tableValues.Name)
	_ = f.SetCellStyle(sheetName, cellName(1, *row), cellName(1, *row), tableNameStyle)
	*row++
	if !hasData(tableValues) {
		_ = f.SetCellValue(sheetName, cellName(2, *row), noDataMessage(tableValues))
		*row += 2
		return
	}
	if tableValues.HasRows {
		col := 2
		for _, field := range tableValues.Fields {
			_ = f.SetCellValue(sheetName, cellName(col, *row), field.Name)
			_ = f.SetCellStyle(sheetName, cellName(col, *row), cellName(col, *row), headerStyle)
			col++
		}
		*row++
		for tableRow := range len(tableValues.Fields[0].Values) {
			col = 2
			for _, field := range tableValues.Fields {
				_ = f.SetCellValue(sheetName, cellName(col, *row), getValueForCell(field.Values[tableRow]))
				_ = f.SetCellStyle(sheetName, cellName(col, *row), cellName(col, *row), alignLeft)
				col++
			}
			*row++
		}
	} else {
		for _, field := range tableValues.Fields {
			_ = f.SetCellValue(sheetName, cellName(1, *row), field.Name)
			_ = f.SetCellValue(sheetName, cellName(2, *row), getValueForCell(field.Values[0]))
			_ = f.SetCellStyle(sheetName, cellName(2, *row), cellName(2, *row), alignLeft)
			*row++
		}
	}
	*row++
}

func createXlsxReport(allTableValues []TableValues) (out []byte, err error) {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := XlsxPrimarySheetName
	_ = f.SetSheetName("Sheet1", sheetName)
	_ = f.SetColWidth(sheetName, "A", "A", 25)
	_ = f.SetColWidth(sheetName, "B", "L", 20)
	row := 1
	for _, tableValues := range allTableValues {
		renderXlsxTable(tableValues, f, sheetName, &row)
	}
	var buf bytes.Buffer
	if _, err = f.WriteTo(&buf); err != nil {
		err = fmt.Errorf("failed to write xlsx report to buffer: %v", err)
		return
	}
	out = buf.Bytes()
	return
}
