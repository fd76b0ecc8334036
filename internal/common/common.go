// Package common defines data structures and functions that are used by multiple
// application commands, e.g., preprocess, dataset, predict, summary.
package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"prefetchml/internal/config"
	"prefetchml/internal/pipeline"
	"prefetchml/internal/progress"
	"prefetchml/internal/util"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var AppName = filepath.Base(os.Args[0])

// AppContext represents the application context that can be accessed from all commands.
type AppContext struct {
	Timestamp   string        // Timestamp is the application startup time.
	OutputDir   string        // OutputDir is the directory where the application will write output files.
	LogFilePath string        // LogFilePath is the path to the log file, empty when logging elsewhere.
	Version     string        // Version is the version of the application.
	Debug       bool          // Debug is true when debug logging was requested.
	Config      config.Config // Config holds the pipeline settings loaded from --config.
}

type Flag struct {
	Name string
	Help string
}
type FlagGroup struct {
	GroupName string
	Flags     []Flag
}

// GetAppContext returns the application context stored on the root command
func GetAppContext(cmd *cobra.Command) AppContext {
	root := cmd.Root()
	if root.Context() == nil {
		return AppContext{Config: config.Default()}
	}
	if appContext, ok := root.Context().Value(AppContext{}).(AppContext); ok {
		return appContext
	}
	return AppContext{Config: config.Default()}
}

// PipelineOptions converts the loaded configuration into pipeline options
func PipelineOptions(cfg config.Config) (pipeline.Options, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return pipeline.Options{}, err
	}
	filter, err := pipeline.NewFilter(cfg.Filter)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Sentinel: cfg.Sentinel,
		Policy:   policy,
		Filter:   filter,
		Workers:  cfg.Workers,
	}, nil
}

// UsageFunc returns a cobra usage function that prints the command's flags in the given groups
func UsageFunc(getFlagGroups func() []FlagGroup) func(cmd *cobra.Command) error {
	return func(cmd *cobra.Command) error {
		cmd.Printf("Usage: %s\n\n", cmd.UseLine())
		cmd.Printf("Examples:\n%s\n\n", cmd.Example)
		cmd.Println("Flags:")
		for _, group := range getFlagGroups() {
			cmd.Printf("  %s:\n", group.GroupName)
			for _, flag := range group.Flags {
				flagDefault := ""
				if cmd.Flags().Lookup(flag.Name).DefValue != "" {
					flagDefault = fmt.Sprintf(" (default: %s)", cmd.Flags().Lookup(flag.Name).DefValue)
				}
				cmd.Printf("    --%-20s %s%s\n", flag.Name, flag.Help, flagDefault)
			}
		}
		cmd.Println("\nGlobal Flags:")
		cmd.Root().PersistentFlags().VisitAll(func(pf *pflag.Flag) {
			flagDefault := ""
			if pf.DefValue != "" {
				flagDefault = fmt.Sprintf(" (default: %s)", pf.DefValue)
			}
			cmd.Printf("  --%-20s %s%s\n", pf.Name, pf.Usage, flagDefault)
		})
		return nil
	}
}

// FlagValidationError is used to report an error with a flag
func FlagValidationError(cmd *cobra.Command, msg string) error {
	err := errors.New(msg)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	fmt.Fprintf(os.Stderr, "See '%s --help' for usage details.\n", cmd.CommandPath())
	cmd.SilenceUsage = true
	return err
}

// CreateOutputDir creates the output directory if it does not exist
func CreateOutputDir(outputDir string) error {
	exists, err := util.DirectoryExists(outputDir)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if exists {
		return nil
	}
	return util.CreateDirectoryIfNotExists(outputDir, 0755) // #nosec G301
}

// SignalContext returns a context that is cancelled when SIGINT or SIGTERM is received
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChannel:
			slog.Info("received signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigChannel)
		cancel()
	}
}

// FileFunc processes one input file and returns the paths of the files it wrote.
// Progress is reported through status, keyed by the input path.
type FileFunc func(ctx context.Context, appContext AppContext, input string, status progress.MultiSpinnerUpdateFunc) ([]string, error)

// FileCommand is the common flow for commands that process a list of input files
// independently, i.e., 'preprocess', 'dataset', 'summary'. Files are processed
// concurrently by a bounded pool of workers.
type FileCommand struct {
	Cmd     *cobra.Command
	Inputs  []string
	Workers int
	Func    FileFunc
}

// Run processes every input with fc.Func and prints the list of output files
func (fc *FileCommand) Run() error {
	appContext := GetAppContext(fc.Cmd)
	ctx, cancel := SignalContext(context.Background())
	defer cancel()
	if err := CreateOutputDir(appContext.OutputDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		fc.Cmd.SilenceUsage = true
		return err
	}
	multiSpinner := progress.NewMultiSpinner()
	for _, input := range fc.Inputs {
		if err := multiSpinner.AddSpinner(input); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			fc.Cmd.SilenceUsage = true
			return err
		}
	}
	multiSpinner.Start()
	outputs, errs := fc.process(ctx, appContext, multiSpinner.Status)
	multiSpinner.Finish()
	fmt.Println()
	var outputFilePaths []string
	var failed int
	for i, input := range fc.Inputs {
		if errs[i] != nil {
			failed++
			slog.Error("failed to process input", slog.String("input", input), slog.String("error", errs[i].Error()))
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", input, errs[i])
			continue
		}
		outputFilePaths = append(outputFilePaths, outputs[i]...)
	}
	if len(outputFilePaths) > 0 {
		fmt.Println("Output files:")
	}
	for _, outputFilePath := range outputFilePaths {
		fmt.Printf("  %s\n", outputFilePath)
	}
	if failed > 0 {
		err := fmt.Errorf("%d of %d input files failed", failed, len(fc.Inputs))
		slog.Error(err.Error())
		fc.Cmd.SilenceUsage = true
		return err
	}
	return nil
}

// process fans the inputs out to the workers; results keep the input order
func (fc *FileCommand) process(ctx context.Context, appContext AppContext, status progress.MultiSpinnerUpdateFunc) ([][]string, []error) {
	outputs := make([][]string, len(fc.Inputs))
	errs := make([]error, len(fc.Inputs))
	workers := max(1, min(fc.Workers, len(fc.Inputs)))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				input := fc.Inputs[i]
				if err := ctx.Err(); err != nil {
					errs[i] = err
					_ = status(input, "cancelled")
					continue
				}
				outputs[i], errs[i] = fc.Func(ctx, appContext, input, status)
				if errs[i] != nil {
					_ = status(input, fmt.Sprintf("Error: %v", errs[i]))
				}
			}
		}()
	}
	for i := range fc.Inputs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return outputs, errs
}
