// Package predict runs encoded records through an external sequence model one record at a
// time and turns its probabilities into predicted page offsets.
package predict

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"math"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/window"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is reported for lines that can't be decoded into a record
	ErrInvalidInput = errors.New("invalid input")
	// ErrModelOutput is returned when the model answers with values outside [0, 1]
	ErrModelOutput = errors.New("invalid model output")
)

// Model is the external predictor. It receives a batch of windows shaped
// (batch, window.Timesteps, bitfield.RecordWidth) and returns, per window,
// bitfield.LabelWidth probabilities in [0, 1].
type Model interface {
	Predict(ctx context.Context, batch []window.Tensor) ([][]float32, error)
}

// ValidateBatch checks that every input value is a bit. The tensor type fixes the shape.
func ValidateBatch(batch []window.Tensor) error {
	for i, t := range batch {
		for step := range t {
			for j, v := range t[step] {
				if v != 0 && v != 1 {
					return errors.Wrapf(bitfield.ErrDataCorruption, "batch %d timestep %d feature %d is %v", i, step, j, v)
				}
			}
		}
	}
	return nil
}

// Threshold converts LabelWidth probabilities into a label, a bit is set when its
// probability is strictly greater than threshold.
func Threshold(probabilities []float32, threshold float64) (bitfield.Label, error) {
	if len(probabilities) != bitfield.LabelWidth {
		return 0, errors.Wrapf(bitfield.ErrShapeMismatch, "model returned %d values, expected %d", len(probabilities), bitfield.LabelWidth)
	}
	bits := make([]uint8, bitfield.LabelWidth)
	for i, p := range probabilities {
		if math.IsNaN(float64(p)) || p < 0 || p > 1 {
			return 0, errors.Wrapf(ErrModelOutput, "probability %d is %v", i, p)
		}
		if float64(p) > threshold {
			bits[i] = 1
		}
	}
	return bitfield.LabelFromBits(bits)
}

// PrefetchAddress combines the page of the current access with a predicted page offset
func PrefetchAddress(current bitfield.Record, predicted bitfield.Label) uint64 {
	return current.PageNumber()<<12 | uint64(predicted)
}
