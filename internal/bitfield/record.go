package bitfield

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"log/slog"
	"strconv"
	"strings"

	"prefetchml/internal/trace"

	"github.com/pkg/errors"
)

// bit offsets of each field inside a Record, access type is the least significant bit
const (
	accessTypeShift = 0
	cycleDeltaShift = accessTypeShift + AccessTypeWidth
	pageOffsetShift = cycleDeltaShift + CycleDeltaWidth
	pageNumberShift = pageOffsetShift + PageOffsetWidth
)

// Record is one encoded access: page number, page offset, cycle delta and access type
// packed into the low RecordWidth bits of a uint64, page number most significant.
type Record uint64

func (r Record) field(shift, width int) uint64 {
	return uint64(r) >> shift & mask(width)
}

func (r Record) PageNumber() uint64 { return r.field(pageNumberShift, PageNumberWidth) }
func (r Record) PageOffset() uint64 { return r.field(pageOffsetShift, PageOffsetWidth) }
func (r Record) AccessType() uint8  { return uint8(r.field(accessTypeShift, AccessTypeWidth)) }

// CycleDelta returns the sign extended delta
func (r Record) CycleDelta() int64 {
	return SignExtend(r.CycleDeltaBits(), CycleDeltaWidth)
}

// CycleDeltaBits returns the raw two's complement bits of the delta field
func (r Record) CycleDeltaBits() uint64 { return r.field(cycleDeltaShift, CycleDeltaWidth) }

// Field returns the raw bits of f
func (r Record) Field(f Field) uint64 {
	switch f {
	case FieldPageNumber:
		return r.PageNumber()
	case FieldPageOffset:
		return r.PageOffset()
	case FieldCycleDelta:
		return r.CycleDeltaBits()
	case FieldAccessType:
		return uint64(r.AccessType())
	}
	return 0
}

// Bits returns the record as RecordWidth digits, most significant first
func (r Record) Bits() [RecordWidth]uint8 {
	var out [RecordWidth]uint8
	for i := range out {
		out[i] = uint8(uint64(r) >> (RecordWidth - 1 - i) & 1)
	}
	return out
}

// String returns the record as exactly RecordWidth '0'/'1' characters
func (r Record) String() string {
	var sb strings.Builder
	sb.Grow(RecordWidth)
	for _, b := range r.Bits() {
		sb.WriteByte('0' + b)
	}
	return sb.String()
}

// pack assembles a record from raw field bits that already fit their widths
func pack(pageNumber, pageOffset, cycleDeltaBits, accessType uint64) Record {
	return Record(pageNumber&mask(PageNumberWidth)<<pageNumberShift |
		pageOffset&mask(PageOffsetWidth)<<pageOffsetShift |
		cycleDeltaBits&mask(CycleDeltaWidth)<<cycleDeltaShift |
		accessType&mask(AccessTypeWidth)<<accessTypeShift)
}

// RecordFromBits builds a record from RecordWidth digits
func RecordFromBits(digits []uint8) (Record, error) {
	if len(digits) != RecordWidth {
		return 0, errors.Wrapf(ErrShapeMismatch, "record has %d bits, expected %d", len(digits), RecordWidth)
	}
	var v uint64
	for i, d := range digits {
		if d > 1 {
			return 0, errors.Wrapf(ErrDataCorruption, "digit %d at position %d", d, i)
		}
		v = v<<1 | uint64(d)
	}
	return Record(v), nil
}

// Encoder turns decomposed accesses into Records according to an overflow policy
type Encoder struct {
	Policy OverflowPolicy
	// OnClip, if set, is called for every field changed by PolicyTruncate or PolicySaturate
	OnClip func(Field)
}

// NewEncoder returns an Encoder using policy
func NewEncoder(policy OverflowPolicy) *Encoder {
	return &Encoder{Policy: policy}
}

func (e *Encoder) clipped(f Field, value int64) {
	slog.Debug("field clipped", slog.String("field", f.String()), slog.Int64("value", value), slog.String("policy", e.Policy.String()))
	if e.OnClip != nil {
		e.OnClip(f)
	}
}

// Encode packs the fields of one access. With PolicyReject an oversized field fails the
// whole record with ErrFieldOverflow.
func (e *Encoder) Encode(addr trace.DecomposedAddress, cycleDelta int64, accessType uint8) (Record, error) {
	pageNumber, clipped, err := FitUnsigned(addr.PageNumber, PageNumberWidth, e.Policy)
	if err != nil {
		return 0, errors.Wrap(err, FieldPageNumber.String())
	}
	if clipped {
		e.clipped(FieldPageNumber, int64(addr.PageNumber))
	}
	pageOffset, clipped, err := FitUnsigned(addr.PageOffset, PageOffsetWidth, e.Policy)
	if err != nil {
		return 0, errors.Wrap(err, FieldPageOffset.String())
	}
	if clipped {
		e.clipped(FieldPageOffset, int64(addr.PageOffset))
	}
	deltaBits, clipped, err := FitSigned(cycleDelta, CycleDeltaWidth, e.Policy)
	if err != nil {
		return 0, errors.Wrap(err, FieldCycleDelta.String())
	}
	if clipped {
		e.clipped(FieldCycleDelta, cycleDelta)
	}
	accessBits, clipped, err := FitUnsigned(uint64(accessType), AccessTypeWidth, e.Policy)
	if err != nil {
		return 0, errors.Wrap(err, FieldAccessType.String())
	}
	if clipped {
		e.clipped(FieldAccessType, int64(accessType))
	}
	return pack(pageNumber, pageOffset, deltaBits, accessBits), nil
}

// EncodeAccess decomposes and encodes a parsed access with its delta
func (e *Encoder) EncodeAccess(access trace.Access, cycleDelta int64) (Record, error) {
	return e.Encode(trace.Decompose(access.Address), cycleDelta, access.Type)
}

// postprocessedTokens is the number of tokens of a postprocessed line
const postprocessedTokens = 4

// FormatLine renders the record as a postprocessed line: the four fields as unpadded
// binary, space separated. Negative deltas keep their two's complement bits.
func FormatLine(r Record) string {
	parts := make([]string, 0, postprocessedTokens)
	for _, f := range Fields {
		parts = append(parts, strconv.FormatUint(r.Field(f), 2))
	}
	return strings.Join(parts, " ")
}

// ParseLine reads a postprocessed line back into a Record. Lines with fewer than four
// tokens wrap trace.ErrMalformedLine, non-binary tokens wrap ErrDataCorruption and tokens
// wider than their field wrap ErrFieldOverflow.
func ParseLine(line string) (Record, error) {
	parts := strings.Fields(line)
	if len(parts) < postprocessedTokens {
		return 0, errors.Wrapf(trace.ErrMalformedLine, "expected %d tokens, found %d", postprocessedTokens, len(parts))
	}
	var values [postprocessedTokens]uint64
	for i, f := range Fields {
		v, err := ParseField(parts[i], f)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	return pack(values[0], values[1], values[2], values[3]), nil
}
