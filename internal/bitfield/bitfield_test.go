package bitfield

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"prefetchml/internal/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBits(t *testing.T) {
	tests := []struct {
		value    uint64
		width    int
		expected string
	}{
		{0, 1, "0"},
		{1, 1, "1"},
		{1, 12, "000000000001"},
		{4095, 12, "111111111111"},
		{5, 14, "00000000000101"},
		{0, 22, "0000000000000000000000"},
	}
	for _, tt := range tests {
		s, err := FormatBits(tt.value, tt.width)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, s)
		assert.Len(t, s, tt.width)
	}
}

func TestFormatBitsOverflow(t *testing.T) {
	_, err := FormatBits(4096, 12)
	assert.True(t, errors.Is(err, ErrFieldOverflow))
	_, err = FormatBits(2, 1)
	assert.True(t, errors.Is(err, ErrFieldOverflow))
}

func TestDecodeRoundTrip(t *testing.T) {
	for _, width := range []int{1, 12, 14, 22} {
		for _, v := range []uint64{0, 1, 2, 3, 1<<width - 1, (1<<width - 1) / 3} {
			if v >= 1<<width {
				continue
			}
			s, err := FormatBits(v, width)
			require.NoError(t, err)
			digits, err := Decode(s)
			require.NoError(t, err)
			expected := strconv.FormatUint(v, 2)
			expected = strings.Repeat("0", width-len(expected)) + expected
			require.Len(t, digits, width)
			for i, d := range digits {
				assert.Equal(t, expected[i]-'0', d, "width %d value %d digit %d", width, v, i)
			}
		}
	}
}

func TestDecodeCorruption(t *testing.T) {
	for _, s := range []string{"-101", "10 1", "012", "abc"} {
		_, err := Decode(s)
		assert.True(t, errors.Is(err, ErrDataCorruption), "input %q", s)
	}
	digits, err := Decode("")
	require.NoError(t, err)
	assert.Empty(t, digits)
}

func TestFitUnsigned(t *testing.T) {
	v, clipped, err := FitUnsigned(16383, PageNumberWidth, PolicyReject)
	require.NoError(t, err)
	assert.False(t, clipped)
	assert.Equal(t, uint64(16383), v)

	_, _, err = FitUnsigned(16384, PageNumberWidth, PolicyReject)
	assert.True(t, errors.Is(err, ErrFieldOverflow))

	v, clipped, err = FitUnsigned(16384+5, PageNumberWidth, PolicyTruncate)
	require.NoError(t, err)
	assert.True(t, clipped)
	assert.Equal(t, uint64(5), v)

	v, clipped, err = FitUnsigned(1<<40, PageNumberWidth, PolicySaturate)
	require.NoError(t, err)
	assert.True(t, clipped)
	assert.Equal(t, uint64(16383), v)
}

func TestFitSigned(t *testing.T) {
	tests := []struct {
		name     string
		value    int64
		policy   OverflowPolicy
		expected int64
		clipped  bool
		err      error
	}{
		{name: "zero", value: 0, expected: 0},
		{name: "positive", value: 50, expected: 50},
		{name: "negative", value: -30, expected: -30},
		{name: "min", value: -2097152, expected: -2097152},
		{name: "max", value: 2097151, expected: 2097151},
		{name: "reject high", value: 2097152, err: ErrFieldOverflow},
		{name: "reject low", value: -2097153, err: ErrFieldOverflow},
		{name: "saturate high", value: 1 << 30, policy: PolicySaturate, expected: 2097151, clipped: true},
		{name: "saturate low", value: -(1 << 30), policy: PolicySaturate, expected: -2097152, clipped: true},
		{name: "truncate high", value: 2097152 + 7, policy: PolicyTruncate, expected: -2097152 + 7, clipped: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, clipped, err := FitSigned(tt.value, CycleDeltaWidth, tt.policy)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.clipped, clipped)
			assert.Less(t, raw, uint64(1)<<CycleDeltaWidth)
			assert.Equal(t, tt.expected, SignExtend(raw, CycleDeltaWidth))
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for i, name := range PolicyNames() {
		p, err := ParsePolicy(strings.ToUpper(name))
		require.NoError(t, err)
		assert.Equal(t, OverflowPolicy(i), p)
		assert.Equal(t, name, p.String())
	}
	_, err := ParsePolicy("widen")
	assert.Error(t, err)
}

func TestRecordWidth(t *testing.T) {
	assert.Equal(t, 49, RecordWidth)
	assert.Equal(t, 12, LabelWidth)
}

func TestEncodeScenario(t *testing.T) {
	enc := NewEncoder(PolicyReject)
	accesses := []trace.Access{
		{Address: 4096, Type: 0, Cycle: 100},
		{Address: 8192, Type: 1, Cycle: 150},
		{Address: 4097, Type: 0, Cycle: 200},
	}
	expected := []struct {
		pageNumber, pageOffset uint64
		delta                  int64
		accessType             uint8
	}{
		{1, 0, 0, 0},
		{2, 0, 50, 1},
		{1, 1, 50, 0},
	}
	var tracker trace.DeltaTracker
	for i, a := range accesses {
		rec, err := enc.EncodeAccess(a, tracker.Next(a.Cycle))
		require.NoError(t, err)
		assert.Equal(t, expected[i].pageNumber, rec.PageNumber())
		assert.Equal(t, expected[i].pageOffset, rec.PageOffset())
		assert.Equal(t, expected[i].delta, rec.CycleDelta())
		assert.Equal(t, expected[i].accessType, rec.AccessType())
		s := rec.String()
		assert.Len(t, s, RecordWidth)
		assert.Equal(t, strings.Count(s, "0")+strings.Count(s, "1"), RecordWidth)
	}
	rec, err := enc.EncodeAccess(accesses[1], 50)
	require.NoError(t, err)
	assert.Equal(t, "00000000000010"+"000000000000"+"0000000000000000110010"+"1", rec.String())
}

func TestEncodeNegativeDelta(t *testing.T) {
	rec, err := NewEncoder(PolicyReject).Encode(trace.DecomposedAddress{PageNumber: 3, PageOffset: 7}, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), rec.CycleDelta())
	assert.Equal(t, "00000000000011"+"000000000111"+strings.Repeat("1", 22)+"1", rec.String())
	assert.NotContains(t, rec.String(), "-")
}

func TestEncodeOverflowPolicies(t *testing.T) {
	addr := trace.Decompose(uint64(16384+2)<<12 | 9)

	_, err := NewEncoder(PolicyReject).Encode(addr, 0, 0)
	assert.True(t, errors.Is(err, ErrFieldOverflow))

	var clips []Field
	enc := &Encoder{Policy: PolicyTruncate, OnClip: func(f Field) { clips = append(clips, f) }}
	rec, err := enc.Encode(addr, 1<<22, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rec.PageNumber())
	assert.Equal(t, uint64(9), rec.PageOffset())
	assert.Equal(t, int64(0), rec.CycleDelta())
	assert.Equal(t, []Field{FieldPageNumber, FieldCycleDelta}, clips)

	rec, err = NewEncoder(PolicySaturate).Encode(addr, -(1 << 30), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(16383), rec.PageNumber())
	assert.Equal(t, int64(-2097152), rec.CycleDelta())
	assert.Len(t, rec.String(), RecordWidth)
}

func TestRecordFromBits(t *testing.T) {
	rec, err := NewEncoder(PolicyReject).Encode(trace.DecomposedAddress{PageNumber: 1234, PageOffset: 4000}, -77, 1)
	require.NoError(t, err)
	bits := rec.Bits()
	back, err := RecordFromBits(bits[:])
	require.NoError(t, err)
	assert.Equal(t, rec, back)

	_, err = RecordFromBits(bits[:48])
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	bits[3] = 2
	_, err = RecordFromBits(bits[:])
	assert.True(t, errors.Is(err, ErrDataCorruption))
}

func TestPostprocessedLine(t *testing.T) {
	enc := NewEncoder(PolicyReject)
	rec, err := enc.Encode(trace.DecomposedAddress{PageNumber: 2, PageOffset: 0}, 50, 1)
	require.NoError(t, err)
	assert.Equal(t, "10 0 110010 1", FormatLine(rec))

	neg, err := enc.Encode(trace.DecomposedAddress{PageNumber: 1, PageOffset: 1}, -2, 0)
	require.NoError(t, err)
	line := FormatLine(neg)
	assert.Equal(t, "1 1 "+strings.Repeat("1", 21)+"0 0", line)

	for _, r := range []Record{rec, neg} {
		back, err := ParseLine(FormatLine(r))
		require.NoError(t, err)
		assert.Equal(t, r, back)
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		line string
		err  error
	}{
		{"1 0 110010", trace.ErrMalformedLine},
		{"", trace.ErrMalformedLine},
		{"1 0 -110010 1", ErrDataCorruption},
		{"1 0 110010 x", ErrDataCorruption},
		{"111111111111111 0 0 1", ErrFieldOverflow},
		{"1 1000000000000 0 1", ErrFieldOverflow},
		{"1 0 0 10", ErrFieldOverflow},
	}
	for _, tt := range tests {
		_, err := ParseLine(tt.line)
		assert.True(t, errors.Is(err, tt.err), "line %q: %v", tt.line, err)
	}
	rec, err := ParseLine("0000000000001 000000000001 0 0")
	require.NoError(t, err, "leading zeros don't count against the width")
	assert.Equal(t, uint64(1), rec.PageNumber())
}

func TestLabel(t *testing.T) {
	rec, err := NewEncoder(PolicyReject).Encode(trace.Decompose(4097), 50, 0)
	require.NoError(t, err)
	label := LabelOf(rec)
	assert.Equal(t, "000000000001", label.String())
	bits := label.Bits()
	back, err := LabelFromBits(bits[:])
	require.NoError(t, err)
	assert.Equal(t, label, back)
	_, err = LabelFromBits(bits[:11])
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}
