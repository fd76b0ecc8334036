// Package predict is a subcommand of the root command. It streams postprocessed records
// through a sequence model and prints the predicted page offsets.
package predict

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
	"time"

	"prefetchml/internal/common"
	"prefetchml/internal/config"
	"prefetchml/internal/predict"
	"prefetchml/internal/util"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const cmdName = "predict"

const (
	modelServing    = "serving"
	modelLastOffset = "last-offset"
)

var modelOptions = []string{modelServing, modelLastOffset}

var examples = []string{
	fmt.Sprintf("  Predict with a model server:        $ %s %s --model-url http://localhost:8501 out/trace_processed.txt", common.AppName, cmdName),
	fmt.Sprintf("  Predict the whole file:             $ %s %s --model-url http://localhost:8501 --max-iterations 0 out/trace_processed.txt", common.AppName, cmdName),
	fmt.Sprintf("  Baseline without a model server:    $ %s %s --model last-offset out/trace_processed.txt", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName + " [flags] file",
	Short:         "Run streaming inference over a postprocessed file",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
}

var (
	flagModelType     string
	flagModelURL      string
	flagModelName     string
	flagModelTimeout  time.Duration
	flagMaxIterations int
	flagThreshold     float64
)

const (
	flagModelTypeName     = "model"
	flagModelURLName      = "model-url"
	flagModelNameName     = "model-name"
	flagModelTimeoutName  = "model-timeout"
	flagMaxIterationsName = "max-iterations"
	flagThresholdName     = "threshold"
)

func init() {
	defaults := config.Default()
	Cmd.Flags().StringVar(&flagModelType, flagModelTypeName, modelServing, "")
	Cmd.Flags().StringVar(&flagModelURL, flagModelURLName, "", "")
	Cmd.Flags().StringVar(&flagModelName, flagModelNameName, defaults.Model.Name, "")
	Cmd.Flags().DurationVar(&flagModelTimeout, flagModelTimeoutName, defaults.Model.Timeout, "")
	Cmd.Flags().IntVar(&flagMaxIterations, flagMaxIterationsName, defaults.MaxIterations, "")
	Cmd.Flags().Float64Var(&flagThreshold, flagThresholdName, defaults.Threshold, "")
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagModelTypeName,
			Help: fmt.Sprintf("choose the model from: %s", strings.Join(modelOptions, ", ")),
		},
		{
			Name: flagModelURLName,
			Help: "base URL of a TensorFlow Serving compatible REST endpoint",
		},
		{
			Name: flagModelNameName,
			Help: "name of the served model",
		},
		{
			Name: flagModelTimeoutName,
			Help: "timeout of one model request",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Model Options",
		Flags:     flags,
	})
	flags = []common.Flag{
		{
			Name: flagMaxIterationsName,
			Help: "stop after this many input lines, 0 reads the whole input",
		},
		{
			Name: flagThresholdName,
			Help: "probability above which a predicted bit is set",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Inference Options",
		Flags:     flags,
	})
	return groups
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if !slices.Contains(modelOptions, flagModelType) {
		return common.FlagValidationError(cmd, fmt.Sprintf("model options are: %s", strings.Join(modelOptions, ", ")))
	}
	if cmd.Flags().Changed(flagMaxIterationsName) && flagMaxIterations < 0 {
		return common.FlagValidationError(cmd, "max-iterations must be 0 (unbounded) or a positive integer")
	}
	if cmd.Flags().Changed(flagThresholdName) && (flagThreshold < 0 || flagThreshold > 1) {
		return common.FlagValidationError(cmd, "threshold must be in [0, 1]")
	}
	if cmd.Flags().Changed(flagModelTimeoutName) && flagModelTimeout <= 0 {
		return common.FlagValidationError(cmd, "model-timeout must be positive")
	}
	if args[0] != util.StdioName {
		exists, err := util.FileExists(args[0])
		if err != nil {
			return common.FlagValidationError(cmd, err.Error())
		}
		if !exists {
			return common.FlagValidationError(cmd, fmt.Sprintf("input file not found: %s", args[0]))
		}
	}
	return nil
}

// applyFlags returns cfg with the values of the flags that were set on the command line
func applyFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	if cmd.Flags().Changed(flagModelURLName) {
		cfg.Model.URL = flagModelURL
	}
	if cmd.Flags().Changed(flagModelNameName) {
		cfg.Model.Name = flagModelName
	}
	if cmd.Flags().Changed(flagModelTimeoutName) {
		cfg.Model.Timeout = flagModelTimeout
	}
	if cmd.Flags().Changed(flagMaxIterationsName) {
		cfg.MaxIterations = flagMaxIterations
	}
	if cmd.Flags().Changed(flagThresholdName) {
		cfg.Threshold = flagThreshold
	}
	return cfg
}

// newModel builds the model selected by --model
func newModel(model string, cfg config.Model) (predict.Model, error) {
	switch model {
	case modelLastOffset:
		return predict.LastOffsetModel{}, nil
	case modelServing:
		if cfg.URL == "" {
			return nil, fmt.Errorf("the %s model needs --%s or model.url in the config file", modelServing, flagModelURLName)
		}
		return predict.NewServingModel(cfg.URL, cfg.Name, cfg.Timeout)
	}
	return nil, fmt.Errorf("unknown model: %s", model)
}

func runCmd(cmd *cobra.Command, args []string) error {
	appContext := common.GetAppContext(cmd)
	cfg := applyFlags(cmd, appContext.Config)
	model, err := newModel(flagModelType, cfg.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	r, err := util.OpenInput(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	defer r.Close()
	ctx, cancel := common.SignalContext(context.Background())
	defer cancel()
	slog.Info("starting inference", slog.String("input", args[0]), slog.String("model", flagModelType),
		slog.Int("maxIterations", cfg.MaxIterations), slog.Float64("threshold", cfg.Threshold))
	adapter := predict.NewAdapter(model, cfg.MaxIterations, cfg.Threshold)
	var counts tally
	iterations, err := adapter.Run(ctx, r, func(p predict.Prediction) {
		counts.add(p)
		printPrediction(cmd.OutOrStdout(), p)
	})
	slog.Info("inference finished", slog.Int("iterations", iterations), slog.Int("predicted", counts.predicted),
		slog.Int("invalid", counts.invalid), slog.Int("failed", counts.failed))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d lines, %d predictions, %d invalid, %d failed\n", iterations, counts.predicted, counts.invalid, counts.failed)
	return nil
}

type tally struct {
	predicted int
	invalid   int
	failed    int
}

func (t *tally) add(p predict.Prediction) {
	switch {
	case p.Err == nil && !p.Warmup:
		t.predicted++
	case p.Err != nil && isInvalid(p.Err):
		t.invalid++
	case p.Err != nil:
		t.failed++
	}
}

func isInvalid(err error) bool {
	return errors.Is(err, predict.ErrInvalidInput)
}

// printPrediction writes one line per streaming step
func printPrediction(w io.Writer, p predict.Prediction) {
	switch {
	case p.Err != nil && isInvalid(p.Err):
		fmt.Fprintf(w, "[%d] Invalid input: %v\n", p.Iteration, p.Err)
	case p.Err != nil:
		fmt.Fprintf(w, "[%d] Error: %v\n", p.Iteration, p.Err)
	case p.Warmup:
		fmt.Fprintf(w, "[%d] First record stored, waiting for the next one\n", p.Iteration)
	default:
		fmt.Fprintf(w, "[%d] Predicted output (binary): %s  prefetch address: 0x%x\n", p.Iteration, p.Label.String(), p.PrefetchAddress)
	}
}
