package window

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"prefetchml/internal/bitfield"
)

const (
	FormatTxt  = "txt"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// FormatOptions lists the sample output formats
var FormatOptions = []string{FormatTxt, FormatCSV, FormatJSON}

// Writer writes samples in one output format. Close flushes buffered output but does not
// close the underlying io.Writer.
type Writer interface {
	Write(Sample) error
	Close() error
}

// NewWriter returns a Writer for format
func NewWriter(w io.Writer, format string) (Writer, error) {
	switch format {
	case FormatTxt:
		return &txtWriter{w: bufio.NewWriter(w)}, nil
	case FormatCSV:
		return &csvWriter{w: csv.NewWriter(w)}, nil
	case FormatJSON:
		return &jsonWriter{w: bufio.NewWriter(w)}, nil
	}
	return nil, fmt.Errorf("unsupported sample format: %s, valid options are: %s", format, strings.Join(FormatOptions, ", "))
}

// txtWriter writes the 98 feature digits and the 12 label digits of a sample per line
type txtWriter struct {
	w *bufio.Writer
}

func (t *txtWriter) Write(s Sample) error {
	_, err := fmt.Fprintf(t.w, "%s %s\n", s.Window.String(), s.Label.String())
	return err
}

func (t *txtWriter) Close() error {
	return t.w.Flush()
}

type csvWriter struct {
	w             *csv.Writer
	headerWritten bool
}

func csvHeader() []string {
	header := []string{"index"}
	for step := range Timesteps {
		for i := range bitfield.RecordWidth {
			header = append(header, fmt.Sprintf("t%d_b%d", step, i))
		}
	}
	for i := range bitfield.LabelWidth {
		header = append(header, fmt.Sprintf("label_b%d", i))
	}
	return header
}

func (c *csvWriter) Write(s Sample) error {
	if !c.headerWritten {
		if err := c.w.Write(csvHeader()); err != nil {
			return err
		}
		c.headerWritten = true
	}
	row := make([]string, 0, 1+FeatureWidth+bitfield.LabelWidth)
	row = append(row, strconv.Itoa(s.Index))
	for _, b := range s.Window.Features() {
		row = append(row, strconv.Itoa(int(b)))
	}
	for _, b := range s.Label.Bits() {
		row = append(row, strconv.Itoa(int(b)))
	}
	return c.w.Write(row)
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

// jsonSample uses []int so digits are rendered as numbers, []uint8 would become base64
type jsonSample struct {
	Index    int   `json:"index"`
	Features []int `json:"features"`
	Label    []int `json:"label"`
}

func digits(bits []uint8) []int {
	out := make([]int, len(bits))
	for i, b := range bits {
		out[i] = int(b)
	}
	return out
}

// jsonWriter streams a JSON array, one sample object per element
type jsonWriter struct {
	w     *bufio.Writer
	count int
}

func (j *jsonWriter) Write(s Sample) error {
	features := s.Window.Features()
	label := s.Label.Bits()
	out, err := json.Marshal(jsonSample{Index: s.Index, Features: digits(features[:]), Label: digits(label[:])})
	if err != nil {
		return err
	}
	sep := ",\n"
	if j.count == 0 {
		sep = "[\n"
	}
	j.count++
	if _, err := j.w.WriteString(sep); err != nil {
		return err
	}
	_, err = j.w.Write(out)
	return err
}

func (j *jsonWriter) Close() error {
	closing := "\n]\n"
	if j.count == 0 {
		closing = "[]\n"
	}
	if _, err := j.w.WriteString(closing); err != nil {
		return err
	}
	return j.w.Flush()
}
