// Package preprocess is a subcommand of the root command. It converts raw memory access
// traces into postprocessed bit-field records.
package preprocess

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"prefetchml/internal/common"
	"prefetchml/internal/pipeline"
	"prefetchml/internal/progress"
	"prefetchml/internal/util"

	"github.com/spf13/cobra"
)

const cmdName = "preprocess"

// outputSuffix is appended to the input file name to name the postprocessed file
const outputSuffix = "_processed"

var examples = []string{
	fmt.Sprintf("  Preprocess one trace:                 $ %s %s trace.txt", common.AppName, cmdName),
	fmt.Sprintf("  Preprocess traces into a directory:   $ %s --output ./out %s trace1.txt trace2.txt", common.AppName, cmdName),
	fmt.Sprintf("  Keep only reads, clip wide fields:    $ %s %s --filter \"access_type == 0\" --overflow-policy saturate trace.txt", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName + " [flags] file...",
	Short:         "Convert raw trace file(s) to postprocessed bit-field records",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
}

func init() {
	common.AddPipelineFlags(Cmd)
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	return []common.FlagGroup{common.GetPipelineFlagGroup()}
}

func validateFlags(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		if arg == util.StdioName {
			continue
		}
		exists, err := util.FileExists(arg)
		if err != nil {
			return common.FlagValidationError(cmd, err.Error())
		}
		if !exists {
			return common.FlagValidationError(cmd, fmt.Sprintf("input file not found: %s", arg))
		}
	}
	if err := util.CheckOutputCollisions(args, outputSuffix, ""); err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	return common.ValidatePipelineFlags(cmd)
}

func runCmd(cmd *cobra.Command, args []string) error {
	appContext := common.GetAppContext(cmd)
	appContext.Config = common.ApplyPipelineFlags(cmd, appContext.Config)
	opts, err := common.PipelineOptions(appContext.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	var inputs []string
	for _, arg := range args {
		inputs = util.UniqueAppend(inputs, arg)
	}
	fc := common.FileCommand{
		Cmd:     cmd,
		Inputs:  inputs,
		Workers: appContext.Config.Workers,
		Func: func(ctx context.Context, appContext common.AppContext, input string, status progress.MultiSpinnerUpdateFunc) ([]string, error) {
			return preprocessFile(ctx, appContext.OutputDir, input, opts, status)
		},
	}
	return fc.Run()
}

// preprocessFile writes the postprocessed form of input to the output directory
func preprocessFile(ctx context.Context, outputDir string, input string, opts pipeline.Options, status progress.MultiSpinnerUpdateFunc) ([]string, error) {
	_ = status(input, "preprocessing")
	r, err := util.OpenInput(input)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	outputPath := util.OutputPath(outputDir, input, outputSuffix, ".txt")
	f, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	opts.Progress = func(stats pipeline.Stats) {
		_ = status(input, fmt.Sprintf("%d lines, %d records", stats.Lines, stats.Written))
	}
	stats, err := pipeline.Preprocess(ctx, r, f, opts)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, err
	}
	slog.Info("preprocessed trace", slog.String("input", input), slog.String("output", outputPath),
		slog.Int("lines", stats.Lines), slog.Int("records", stats.Records), slog.Int("written", stats.Written),
		slog.Int("ignored", stats.Ignored), slog.Int("malformed", stats.Malformed),
		slog.Int("overflow", stats.Overflow), slog.Int("filtered", stats.Filtered))
	_ = status(input, fmt.Sprintf("done, %d of %d records written", stats.Written, stats.Records))
	return []string{outputPath}, nil
}
