package bitfield

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"strings"

	"github.com/pkg/errors"
)

// Label is the page offset of the record that follows a window
type Label uint16

// LabelOf returns the label for the record r
func LabelOf(r Record) Label {
	return Label(r.PageOffset())
}

// Bits returns the label as LabelWidth digits, most significant first
func (l Label) Bits() [LabelWidth]uint8 {
	var out [LabelWidth]uint8
	for i := range out {
		out[i] = uint8(uint16(l) >> (LabelWidth - 1 - i) & 1)
	}
	return out
}

func (l Label) String() string {
	var sb strings.Builder
	for _, b := range l.Bits() {
		sb.WriteByte('0' + b)
	}
	return sb.String()
}

// LabelFromBits builds a label from LabelWidth digits
func LabelFromBits(digits []uint8) (Label, error) {
	if len(digits) != LabelWidth {
		return 0, errors.Wrapf(ErrShapeMismatch, "label has %d bits, expected %d", len(digits), LabelWidth)
	}
	var v uint16
	for i, d := range digits {
		if d > 1 {
			return 0, errors.Wrapf(ErrDataCorruption, "digit %d at position %d", d, i)
		}
		v = v<<1 | uint16(d)
	}
	return Label(v), nil
}
