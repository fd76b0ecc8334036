package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// maxLineLength bounds a single trace line, perf-style logs can carry long trailers
const maxLineLength = 1024 * 1024

// ScanFunc receives every input line in order. lineNum is 1-based. When err is non-nil
// the line could not be parsed; returning a non-nil error from ScanFunc stops the scan.
type ScanFunc func(lineNum int, line string, access Access, err error) error

// Parser reads raw trace lines from a stream
type Parser struct {
	Sentinel string
}

// NewParser returns a Parser for the given sentinel tag, DefaultSentinel if empty
func NewParser(sentinel string) *Parser {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	return &Parser{Sentinel: sentinel}
}

// Scan parses each line of r and hands it to fn. Malformed lines are passed to fn with an
// error and do not stop the scan. Only a read failure or an error returned by fn ends it.
func (p *Parser) Scan(r io.Reader, fn ScanFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineLength)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		access, err := ParseLine(line, p.Sentinel)
		if cbErr := fn(lineNum, line, access, err); cbErr != nil {
			return cbErr
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "failed to read trace after line %d", lineNum)
	}
	return nil
}
