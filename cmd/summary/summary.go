// Package summary is a subcommand of the root command. It reports statistics about raw
// trace files and how well their values fit the record layout.
package summary

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"prefetchml/internal/common"
	"prefetchml/internal/pipeline"
	"prefetchml/internal/progress"
	"prefetchml/internal/report"
	"prefetchml/internal/util"

	"github.com/spf13/cobra"
)

const cmdName = "summary"

var examples = []string{
	fmt.Sprintf("  Summarize a trace:                    $ %s %s trace.txt", common.AppName, cmdName),
	fmt.Sprintf("  Compare traces in a spreadsheet:      $ %s %s --format xlsx trace1.txt trace2.txt", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName + " [flags] file...",
	Short:         "Report statistics of raw trace file(s)",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
}

var flagFormat []string

const flagFormatName = "format"

const reportName = "summary"

func init() {
	Cmd.Flags().StringSliceVar(&flagFormat, flagFormatName, []string{report.FormatTxt}, "")
	common.AddPipelineFlags(Cmd)
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagFormatName,
			Help: fmt.Sprintf("choose output format(s) from: %s", strings.Join(report.FormatOptions, ", ")),
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Output Options",
		Flags:     flags,
	})
	groups = append(groups, common.GetPipelineFlagGroup())
	return groups
}

func validateFlags(cmd *cobra.Command, args []string) error {
	for _, format := range flagFormat {
		if !slices.Contains(report.FormatOptions, format) {
			return common.FlagValidationError(cmd, fmt.Sprintf("format options are: %s", strings.Join(report.FormatOptions, ", ")))
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
	summaries := make(map[string]pipeline.Summary)
	var mu sync.Mutex
	fc := common.FileCommand{
		Cmd:     cmd,
		Inputs:  inputs,
		Workers: appContext.Config.Workers,
		Func: func(ctx context.Context, appContext common.AppContext, input string, status progress.MultiSpinnerUpdateFunc) ([]string, error) {
			summary, err := summarizeFile(ctx, input, opts, status)
			if err != nil {
				return nil, err
			}
			mu.Lock()
			summaries[input] = summary
			mu.Unlock()
			return nil, nil
		},
	}
	runErr := fc.Run()
	// report whatever was summarized, in input order
	var ordered []pipeline.Summary
	for _, input := range inputs {
		if summary, ok := summaries[input]; ok {
			ordered = append(ordered, summary)
		}
	}
	if len(ordered) == 0 {
		return runErr
	}
	var formats []string
	for _, format := range flagFormat {
		formats = util.UniqueAppend(formats, format)
	}
	reportFilePaths, err := writeReports(appContext.OutputDir, formats, summaryTables(ordered))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	if len(reportFilePaths) > 0 {
		fmt.Println("Report files:")
	}
	for _, reportFilePath := range reportFilePaths {
		fmt.Printf("  %s\n", reportFilePath)
	}
	return runErr
}

func summarizeFile(ctx context.Context, input string, opts pipeline.Options, status progress.MultiSpinnerUpdateFunc) (pipeline.Summary, error) {
	_ = status(input, "summarizing")
	r, err := util.OpenInput(input)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer r.Close()
	name := filepath.Base(input)
	if input == util.StdioName {
		name = "stdin"
	}
	summary, err := pipeline.Summarize(ctx, name, r, opts)
	if err != nil {
		return summary, err
	}
	_ = status(input, fmt.Sprintf("done, %d records", summary.Records))
	return summary, nil
}

// writeReports renders the tables in each format to the output directory
func writeReports(outputDir string, formats []string, tables []report.TableValues) ([]string, error) {
	var reportFilePaths []string
	for _, format := range formats {
		reportBytes, err := report.Create(format, tables)
		if err != nil {
			return reportFilePaths, fmt.Errorf("failed to create %s report: %w", format, err)
		}
		reportPath := filepath.Join(outputDir, reportName+"."+format)
		if err := os.WriteFile(reportPath, reportBytes, 0644); err != nil { // #nosec G306
			return reportFilePaths, fmt.Errorf("failed to write report file: %w", err)
		}
		reportFilePaths = append(reportFilePaths, reportPath)
	}
	return reportFilePaths, nil
}
