package predict

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/window"
)

// LastOffsetModel predicts that the next access hits the same page offset as the most
// recent one. It needs no external service and gives a floor to compare trained models to.
type LastOffsetModel struct{}

// offset bits start after the page number in every timestep
const offsetStart = bitfield.PageNumberWidth

func (LastOffsetModel) Predict(ctx context.Context, batch []window.Tensor) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i, t := range batch {
		last := t[window.Timesteps-1]
		probabilities := make([]float32, bitfield.LabelWidth)
		copy(probabilities, last[offsetStart:offsetStart+bitfield.PageOffsetWidth])
		out[i] = probabilities
	}
	return out, ctx.Err()
}
