package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/config"
	"prefetchml/internal/pipeline"

	"github.com/spf13/cobra"
)

// pipeline flags override the values loaded from --config
var (
	flagSentinel string
	flagPolicy   string
	flagFilter   string
	flagWorkers  int
)

const (
	flagSentinelName = "sentinel"
	flagPolicyName   = "overflow-policy"
	flagFilterName   = "filter"
	flagWorkersName  = "workers"
)

var pipelineFlags = []Flag{
	{Name: flagSentinelName, Help: "first token of the trace lines to parse"},
	{Name: flagPolicyName, Help: fmt.Sprintf("handling of values too wide for their field, choose from: %s", strings.Join(bitfield.PolicyNames(), ", "))},
	{Name: flagFilterName, Help: fmt.Sprintf("keep only records for which this expression is true, variables: %s", strings.Join(pipeline.FilterVariables, ", "))},
	{Name: flagWorkersName, Help: "number of files or chunks processed in parallel"},
}

// AddPipelineFlags adds the flags that override the pipeline settings to cmd
func AddPipelineFlags(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().StringVar(&flagSentinel, flagSentinelName, defaults.Sentinel, "")
	cmd.Flags().StringVar(&flagPolicy, flagPolicyName, defaults.OverflowPolicy, "")
	cmd.Flags().StringVar(&flagFilter, flagFilterName, "", "")
	cmd.Flags().IntVar(&flagWorkers, flagWorkersName, defaults.Workers, "")
}

// GetPipelineFlagGroup returns the pipeline flags for a command's usage output
func GetPipelineFlagGroup() FlagGroup {
	return FlagGroup{
		GroupName: "Pipeline Options",
		Flags:     pipelineFlags,
	}
}

// ValidatePipelineFlags checks the pipeline flags that were set on the command line
func ValidatePipelineFlags(cmd *cobra.Command) error {
	if cmd.Flags().Changed(flagSentinelName) && strings.TrimSpace(flagSentinel) == "" {
		return FlagValidationError(cmd, "sentinel must not be empty")
	}
	if cmd.Flags().Changed(flagPolicyName) {
		if _, err := bitfield.ParsePolicy(flagPolicy); err != nil {
			return FlagValidationError(cmd, err.Error())
		}
	}
	if cmd.Flags().Changed(flagFilterName) {
		if _, err := pipeline.NewFilter(flagFilter); err != nil {
			return FlagValidationError(cmd, err.Error())
		}
	}
	if cmd.Flags().Changed(flagWorkersName) && flagWorkers < 1 {
		return FlagValidationError(cmd, "workers must be at least 1")
	}
	return nil
}

// ApplyPipelineFlags returns cfg with the values of the pipeline flags that were set
// on the command line
func ApplyPipelineFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	if cmd.Flags().Changed(flagSentinelName) {
		cfg.Sentinel = flagSentinel
	}
	if cmd.Flags().Changed(flagPolicyName) {
		cfg.OverflowPolicy = flagPolicy
	}
	if cmd.Flags().Changed(flagFilterName) {
		cfg.Filter = flagFilter
	}
	if cmd.Flags().Changed(flagWorkersName) {
		cfg.Workers = flagWorkers
	}
	return cfg
}
