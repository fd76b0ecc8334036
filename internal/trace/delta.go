package trace

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// DeltaTracker carries the cycle of the previous record through one ordered pass. The zero
// value is ready to use. A tracker belongs to exactly one stream.
type DeltaTracker struct {
	previous int64
	seen     bool
}

// Next returns the cycle delta to the previous record, 0 for the first record, and stores
// cycle for the next call. The stored value is updated even if the caller later drops the
// record.
func (t *DeltaTracker) Next(cycle int64) int64 {
	var delta int64
	if t.seen {
		delta = cycle - t.previous
	}
	t.previous = cycle
	t.seen = true
	return delta
}

// Reset returns the tracker to its empty state
func (t *DeltaTracker) Reset() {
	*t = DeltaTracker{}
}

// Deltas computes the delta of every cycle in order with a fresh tracker
func Deltas(cycles []int64) []int64 {
	var tracker DeltaTracker
	deltas := make([]int64, len(cycles))
	for i, cycle := range cycles {
		deltas[i] = tracker.Next(cycle)
	}
	return deltas
}
