package pipeline

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"slices"
	"strings"

	"prefetchml/internal/trace"

	"github.com/casbin/govaluate"
)

// FilterVariables are the names a filter expression can refer to
var FilterVariables = []string{"address", "page_number", "page_offset", "cycle", "cycle_delta", "access_type"}

// Filter keeps the records for which a boolean expression is true, e.g.
// "access_type == 0 && page_offset < 2048"
type Filter struct {
	Expression string
	evaluable  *govaluate.EvaluableExpression
}

// NewFilter parses expression once. An empty expression returns a nil Filter, which
// matches every record.
func NewFilter(expression string) (*Filter, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}
	evaluable, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to parse filter expression %q: %v", expression, err)
	}
	for _, v := range evaluable.Vars() {
		if !slices.Contains(FilterVariables, v) {
			return nil, fmt.Errorf("unknown variable %q in filter expression, valid variables are: %s", v, strings.Join(FilterVariables, ", "))
		}
	}
	return &Filter{Expression: expression, evaluable: evaluable}, nil
}

// Match evaluates the filter for one access and its delta
func (f *Filter) Match(access trace.Access, delta int64) (bool, error) {
	if f == nil {
		return true, nil
	}
	addr := trace.Decompose(access.Address)
	result, err := f.evaluable.Evaluate(map[string]any{
		"address":     float64(access.Address),
		"page_number": float64(addr.PageNumber),
		"page_offset": float64(addr.PageOffset),
		"cycle":       float64(access.Cycle),
		"cycle_delta": float64(delta),
		"access_type": float64(access.Type),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter expression %q: %v", f.Expression, err)
	}
	match, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter expression %q does not evaluate to a boolean", f.Expression)
	}
	return match, nil
}
