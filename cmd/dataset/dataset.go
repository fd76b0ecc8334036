// Package dataset is a subcommand of the root command. It builds windowed training
// samples from postprocessed or raw trace files.
package dataset

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"prefetchml/internal/common"
	"prefetchml/internal/metrics"
	"prefetchml/internal/pipeline"
	"prefetchml/internal/progress"
	"prefetchml/internal/util"
	"prefetchml/internal/window"

	"github.com/spf13/cobra"
)

const cmdName = "dataset"

const outputSuffix = "_dataset"

var examples = []string{
	fmt.Sprintf("  Samples from a postprocessed file:     $ %s %s out/trace_processed.txt", common.AppName, cmdName),
	fmt.Sprintf("  Samples straight from a raw trace:     $ %s %s --raw --format csv,json trace.txt", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName + " [flags] file...",
	Short:         "Build (input, label) training samples from trace file(s)",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
}

var (
	flagRaw    bool
	flagFormat []string
)

const (
	flagRawName    = "raw"
	flagFormatName = "format"
)

func init() {
	Cmd.Flags().BoolVar(&flagRaw, flagRawName, false, "")
	Cmd.Flags().StringSliceVar(&flagFormat, flagFormatName, []string{window.FormatTxt}, "")
	common.AddPipelineFlags(Cmd)
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagRawName,
			Help: "inputs are raw traces, encode them in memory instead of reading postprocessed records",
		},
		{
			Name: flagFormatName,
			Help: fmt.Sprintf("choose output format(s) from: %s", strings.Join(window.FormatOptions, ", ")),
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Dataset Options",
		Flags:     flags,
	})
	pipelineGroup := common.GetPipelineFlagGroup()
	pipelineGroup.GroupName = "Pipeline Options (with --raw)"
	groups = append(groups, pipelineGroup)
	return groups
}

func validateFlags(cmd *cobra.Command, args []string) error {
	for _, format := range flagFormat {
		if !slices.Contains(window.FormatOptions, format) {
			return common.FlagValidationError(cmd, fmt.Sprintf("format options are: %s", strings.Join(window.FormatOptions, ", ")))
		}
	}
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
	var formats []string
	for _, format := range flagFormat {
		formats = util.UniqueAppend(formats, format)
	}
	fc := common.FileCommand{
		Cmd:     cmd,
		Inputs:  inputs,
		Workers: appContext.Config.Workers,
		Func: func(ctx context.Context, appContext common.AppContext, input string, status progress.MultiSpinnerUpdateFunc) ([]string, error) {
			return datasetFile(ctx, appContext.OutputDir, input, flagRaw, formats, opts, status)
		},
	}
	return fc.Run()
}

// readEntries loads the window entries of one input
func readEntries(ctx context.Context, r io.Reader, raw bool, opts pipeline.Options) ([]window.Entry, pipeline.Stats, error) {
	if raw {
		return pipeline.EntriesFromRaw(ctx, r, opts)
	}
	return pipeline.ReadEntries(ctx, r)
}

// datasetFile writes the samples of input in each of the formats
func datasetFile(ctx context.Context, outputDir string, input string, raw bool, formats []string, opts pipeline.Options, status progress.MultiSpinnerUpdateFunc) ([]string, error) {
	_ = status(input, "reading records")
	r, err := util.OpenInput(input)
	if err != nil {
		return nil, err
	}
	entries, stats, err := readEntries(ctx, r, raw, opts)
	r.Close()
	if err != nil {
		return nil, err
	}
	var outputPaths []string
	var count int
	for i, format := range formats {
		_ = status(input, fmt.Sprintf("writing %s samples", format))
		outputPath := util.OutputPath(outputDir, input, outputSuffix, "."+format)
		count, err = writeSamples(ctx, outputPath, format, entries)
		if err != nil {
			return outputPaths, err
		}
		if i == 0 {
			metrics.SamplesTotal.Add(float64(count))
		}
		outputPaths = append(outputPaths, outputPath)
	}
	slog.Info("wrote samples", slog.String("input", input), slog.Int("lines", stats.Lines),
		slog.Int("records", stats.Records), slog.Int("samples", count), slog.Any("formats", formats))
	_ = status(input, fmt.Sprintf("done, %d samples from %d records", count, stats.Records))
	return outputPaths, nil
}

// writeSamples writes every sample of entries to outputPath and returns the count
func writeSamples(ctx context.Context, outputPath string, format string, entries []window.Entry) (count int, err error) {
	f, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	sw, err := window.NewWriter(f, format)
	if err != nil {
		return 0, err
	}
	for sample := range window.Samples(entries) {
		if err = ctx.Err(); err != nil {
			return count, err
		}
		if err = sw.Write(sample); err != nil {
			return count, err
		}
		count++
	}
	err = sw.Close()
	return count, err
}
