package predict

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/metrics"
	"prefetchml/internal/window"

	"github.com/pkg/errors"
)

// Prediction is the outcome of one streaming step
type Prediction struct {
	Iteration int
	Line      string
	// Warmup is true when the record was valid but there was no previous record to pair it with
	Warmup          bool
	Probabilities   []float32
	Label           bitfield.Label
	PrefetchAddress uint64
	Err             error
}

// Adapter keeps one record of lookback and asks the model for a prediction for every new
// record. It is not safe for concurrent use; each stream needs its own Adapter.
type Adapter struct {
	Model Model
	// MaxIterations bounds Run, 0 means no bound
	MaxIterations int
	Threshold     float64

	previous *bitfield.Record
}

// NewAdapter returns an Adapter with an empty lookback slot
func NewAdapter(model Model, maxIterations int, threshold float64) *Adapter {
	return &Adapter{Model: model, MaxIterations: maxIterations, Threshold: threshold}
}

// Reset clears the lookback slot
func (a *Adapter) Reset() {
	a.previous = nil
}

// Step handles one postprocessed line. An undecodable line is reported through
// Prediction.Err wrapping ErrInvalidInput and leaves the lookback slot as it was.
func (a *Adapter) Step(ctx context.Context, line string) Prediction {
	p := Prediction{Line: line}
	current, err := bitfield.ParseLine(line)
	if err != nil {
		p.Err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return p
	}
	previous := a.previous
	a.previous = &current
	if previous == nil {
		p.Warmup = true
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeWarmup).Inc()
		return p
	}
	batch := []window.Tensor{window.Window{*previous, current}.Tensor()}
	if err := ValidateBatch(batch); err != nil {
		return failed(p, err)
	}
	outputs, err := a.Model.Predict(ctx, batch)
	if err == nil && len(outputs) != len(batch) {
		err = errors.Wrapf(bitfield.ErrShapeMismatch, "model returned %d rows for %d windows", len(outputs), len(batch))
	}
	if err != nil {
		return failed(p, err)
	}
	p.Probabilities = outputs[0]
	if p.Label, err = Threshold(outputs[0], a.Threshold); err != nil {
		return failed(p, err)
	}
	p.PrefetchAddress = PrefetchAddress(current, p.Label)
	metrics.PredictionsTotal.WithLabelValues(metrics.OutcomePredicted).Inc()
	return p
}

// failed records a step error. Model answers of the wrong shape or range are also
// counted as skipped.
func failed(p Prediction, err error) Prediction {
	p.Err = err
	metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
	if errors.Is(err, bitfield.ErrShapeMismatch) || errors.Is(err, ErrModelOutput) {
		metrics.Skipped(metrics.StagePredict, metrics.ReasonShape)
	}
	return p
}

// Run steps through the lines of r, handing every result to fn, until the input ends,
// MaxIterations lines have been handled or ctx is done. It returns the number of lines
// handled. Per-line failures are reported to fn and never end the run.
func (a *Adapter) Run(ctx context.Context, r io.Reader, fn func(Prediction)) (int, error) {
	scanner := bufio.NewScanner(r)
	iteration := 0
	for {
		if a.MaxIterations > 0 && iteration >= a.MaxIterations {
			slog.Info("reached the maximum number of iterations", slog.Int("iterations", iteration))
			return iteration, nil
		}
		if err := ctx.Err(); err != nil {
			return iteration, err
		}
		if !scanner.Scan() {
			break
		}
		metrics.LinesTotal.WithLabelValues(metrics.StagePredict).Inc()
		p := a.Step(ctx, scanner.Text())
		p.Iteration = iteration
		if p.Err != nil {
			slog.Debug("prediction step failed", slog.Int("iteration", iteration), slog.String("error", p.Err.Error()))
		}
		fn(p)
		iteration++
	}
	if err := scanner.Err(); err != nil {
		return iteration, errors.Wrap(err, "failed to read input")
	}
	return iteration, nil
}
