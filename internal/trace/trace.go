/*
Package trace parses raw memory-access trace lines and derives the per-record values
(page number, page offset, cycle delta) that feed the bit-field encoder.
*/
package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultSentinel is the first token of the trace lines emitted by the L2 prefetcher hook
const DefaultSentinel = "PREFETCH_TRAIN"

// minTokens is the smallest token count of a recognized trace line
const minTokens = 6

var (
	// ErrMalformedLine is returned for lines that can't be turned into an Access
	ErrMalformedLine = errors.New("malformed trace line")
	// ErrNotSentinel is returned for lines that don't start with the sentinel tag.
	// These lines are ignored by callers, not counted as broken.
	ErrNotSentinel = notSentinelError{}
)

type notSentinelError struct{}

func (notSentinelError) Error() string { return "line does not start with sentinel tag" }

// Is lets errors.Is(ErrNotSentinel, ErrMalformedLine) succeed
func (notSentinelError) Is(target error) bool { return target == ErrMalformedLine }

const (
	AccessRead  uint8 = 0
	AccessWrite uint8 = 1
)

// Access is one parsed memory access
type Access struct {
	Address uint64
	Type    uint8 // AccessRead or AccessWrite
	Cycle   int64
}

// ParseLine extracts an Access from a raw trace line. The line must have at least six
// whitespace separated tokens and its first token must equal sentinel. The address is
// token 1, the access type is the second to last token and the cycle is the last token.
func ParseLine(line string, sentinel string) (Access, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != sentinel {
		return Access{}, ErrNotSentinel
	}
	if len(parts) < minTokens {
		return Access{}, errors.Wrapf(ErrMalformedLine, "expected at least %d tokens, found %d", minTokens, len(parts))
	}
	address, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return Access{}, errors.Wrapf(ErrMalformedLine, "address %q: %v", parts[1], err)
	}
	accessType, err := strconv.ParseUint(parts[len(parts)-2], 10, 8)
	if err != nil || accessType > uint64(AccessWrite) {
		return Access{}, errors.Wrapf(ErrMalformedLine, "access type %q is not 0 or 1", parts[len(parts)-2])
	}
	cycle, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return Access{}, errors.Wrapf(ErrMalformedLine, "cycle %q: %v", parts[len(parts)-1], err)
	}
	return Access{Address: address, Type: uint8(accessType), Cycle: cycle}, nil
}

const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// DecomposedAddress is an address split at the 4 KiB page boundary
type DecomposedAddress struct {
	PageNumber uint64
	PageOffset uint64
}

// Decompose splits address into page number and page offset. The page number is not
// clamped to any encoding width.
func Decompose(address uint64) DecomposedAddress {
	return DecomposedAddress{
		PageNumber: address >> PageShift,
		PageOffset: address & (PageSize - 1),
	}
}

// Address reassembles the original address
func (d DecomposedAddress) Address() uint64 {
	return d.PageNumber<<PageShift | d.PageOffset
}
