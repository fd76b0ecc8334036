// Package window slides a two-record window over encoded records and produces
// (features, label) training samples.
package window

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"iter"
	"strings"

	"prefetchml/internal/bitfield"
)

const (
	// Timesteps is the number of records in one window
	Timesteps = 2
	// FeatureWidth is the flattened length of a window
	FeatureWidth = Timesteps * bitfield.RecordWidth
)

// Entry is one input position. Invalid entries keep their position so that no window is
// built across them.
type Entry struct {
	Record bitfield.Record
	Valid  bool
}

// Window is two consecutive records, oldest first
type Window [Timesteps]bitfield.Record

// Tensor is a window shaped as timesteps x features for the model boundary
type Tensor [Timesteps][bitfield.RecordWidth]float32

// Features returns the window flattened to FeatureWidth digits
func (w Window) Features() [FeatureWidth]uint8 {
	var out [FeatureWidth]uint8
	for step, rec := range w {
		bits := rec.Bits()
		copy(out[step*bitfield.RecordWidth:], bits[:])
	}
	return out
}

// Tensor returns the window as float inputs
func (w Window) Tensor() Tensor {
	var t Tensor
	for step, rec := range w {
		for i, b := range rec.Bits() {
			t[step][i] = float32(b)
		}
	}
	return t
}

func (w Window) String() string {
	var sb strings.Builder
	sb.Grow(FeatureWidth)
	for _, rec := range w {
		sb.WriteString(rec.String())
	}
	return sb.String()
}

// Sample is one training example. Index is the position of the window's second record.
type Sample struct {
	Index  int
	Window Window
	Label  bitfield.Label
}

// Samples yields a sample for every index i in [1, n-2] where entries i-1, i and i+1 are
// all valid. The window is (i-1, i) and the label is the page offset of entry i+1. The
// returned sequence reads entries lazily and can be ranged over more than once.
func Samples(entries []Entry) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for i := 1; i < len(entries)-1; i++ {
			prev, curr, next := entries[i-1], entries[i], entries[i+1]
			if !prev.Valid || !curr.Valid || !next.Valid {
				continue
			}
			sample := Sample{
				Index:  i,
				Window: Window{prev.Record, curr.Record},
				Label:  bitfield.LabelOf(next.Record),
			}
			if !yield(sample) {
				return
			}
		}
	}
}

// Collect materializes the samples of entries
func Collect(entries []Entry) []Sample {
	samples := make([]Sample, 0, max(len(entries)-2, 0))
	for s := range Samples(entries) {
		samples = append(samples, s)
	}
	return samples
}
