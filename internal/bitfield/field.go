/*
Package bitfield packs access record fields into fixed-width binary vectors and decodes them
again. A Record always holds exactly RecordWidth bits.
*/
package bitfield

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrDataCorruption is returned when a bit string contains anything other than '0' and '1'
	ErrDataCorruption = errors.New("data corruption")
	// ErrFieldOverflow is returned when a value doesn't fit its field width under PolicyReject
	ErrFieldOverflow = errors.New("field overflow")
	// ErrShapeMismatch is returned when a bit vector doesn't have the expected length
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Field identifies one of the packed fields of a Record
type Field int

const (
	FieldPageNumber Field = iota
	FieldPageOffset
	FieldCycleDelta
	FieldAccessType
)

// field widths in bits, in record order
const (
	PageNumberWidth = 14
	PageOffsetWidth = 12
	CycleDeltaWidth = 22
	AccessTypeWidth = 1
	RecordWidth     = PageNumberWidth + PageOffsetWidth + CycleDeltaWidth + AccessTypeWidth
	LabelWidth      = PageOffsetWidth
)

// Fields lists the record fields from most to least significant
var Fields = []Field{FieldPageNumber, FieldPageOffset, FieldCycleDelta, FieldAccessType}

func (f Field) String() string {
	switch f {
	case FieldPageNumber:
		return "page_number"
	case FieldPageOffset:
		return "page_offset"
	case FieldCycleDelta:
		return "cycle_delta"
	case FieldAccessType:
		return "access_type"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Width returns the number of bits allotted to the field
func (f Field) Width() int {
	switch f {
	case FieldPageNumber:
		return PageNumberWidth
	case FieldPageOffset:
		return PageOffsetWidth
	case FieldCycleDelta:
		return CycleDeltaWidth
	case FieldAccessType:
		return AccessTypeWidth
	}
	return 0
}

// Signed reports whether the field is stored as two's complement
func (f Field) Signed() bool {
	return f == FieldCycleDelta
}

// OverflowPolicy decides what happens to a value wider than its field
type OverflowPolicy int

const (
	// PolicyReject fails the encode with ErrFieldOverflow
	PolicyReject OverflowPolicy = iota
	// PolicyTruncate keeps the low bits of the value
	PolicyTruncate
	// PolicySaturate clamps the value to the largest (or smallest) representable value
	PolicySaturate
)

var policyNames = []string{"reject", "truncate", "saturate"}

// PolicyNames returns the accepted names for ParsePolicy
func PolicyNames() []string {
	return append([]string{}, policyNames...)
}

func (p OverflowPolicy) String() string {
	if int(p) >= 0 && int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy converts a policy name to an OverflowPolicy
func ParsePolicy(name string) (OverflowPolicy, error) {
	for i, n := range policyNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return OverflowPolicy(i), nil
		}
	}
	return PolicyReject, fmt.Errorf("unknown overflow policy %q, valid options are: %s", name, strings.Join(policyNames, ", "))
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return uint64(1)<<width - 1
}

// FitUnsigned fits v into width bits. clipped is true when the policy changed the value.
func FitUnsigned(v uint64, width int, policy OverflowPolicy) (fitted uint64, clipped bool, err error) {
	if bits.Len64(v) <= width {
		return v, false, nil
	}
	switch policy {
	case PolicyTruncate:
		return v & mask(width), true, nil
	case PolicySaturate:
		return mask(width), true, nil
	default:
		return 0, false, errors.Wrapf(ErrFieldOverflow, "value %d needs %d bits, only %d available", v, bits.Len64(v), width)
	}
}

// FitSigned fits v into a width bit two's complement field and returns the raw field bits
func FitSigned(v int64, width int, policy OverflowPolicy) (fitted uint64, clipped bool, err error) {
	lo := -(int64(1) << (width - 1))
	hi := int64(1)<<(width-1) - 1
	if v < lo || v > hi {
		switch policy {
		case PolicyTruncate:
			clipped = true
		case PolicySaturate:
			clipped = true
			if v < lo {
				v = lo
			} else {
				v = hi
			}
		default:
			return 0, false, errors.Wrapf(ErrFieldOverflow, "value %d outside of [%d, %d]", v, lo, hi)
		}
	}
	return uint64(v) & mask(width), clipped, nil
}

// SignExtend interprets the low width bits of raw as a two's complement number
func SignExtend(raw uint64, width int) int64 {
	shift := 64 - width
	return int64(raw<<shift) >> shift
}

// FormatBits renders v as binary, left padded with zeros to width characters. A value
// needing more than width bits is an ErrFieldOverflow, it is never rendered wider.
func FormatBits(v uint64, width int) (string, error) {
	if bits.Len64(v) > width {
		return "", errors.Wrapf(ErrFieldOverflow, "value %d needs %d bits, only %d available", v, bits.Len64(v), width)
	}
	s := strconv.FormatUint(v, 2)
	if len(s) >= width {
		return s, nil
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}

// Decode splits a bit string into one integer per character
func Decode(bitString string) ([]uint8, error) {
	out := make([]uint8, len(bitString))
	for i := 0; i < len(bitString); i++ {
		switch bitString[i] {
		case '0':
		case '1':
			out[i] = 1
		default:
			return nil, errors.Wrapf(ErrDataCorruption, "character %q at position %d of %q", bitString[i], i, bitString)
		}
	}
	return out, nil
}

// ParseField reads an unpadded binary token of the given field and returns its raw bits
func ParseField(token string, field Field) (uint64, error) {
	digits, err := Decode(token)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", field)
	}
	if len(digits) == 0 {
		return 0, errors.Wrapf(ErrDataCorruption, "%s is empty", field)
	}
	// leading zeros don't count against the width
	significant := strings.TrimLeft(token, "0")
	if len(significant) > field.Width() {
		return 0, errors.Wrapf(ErrFieldOverflow, "%s token %q is wider than %d bits", field, token, field.Width())
	}
	var v uint64
	for _, d := range digits {
		v = v<<1 | uint64(d)
	}
	return v, nil
}
