// Package cmd provides the command line interface for the application.
package cmd

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"log/slog"
	"log/syslog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"prefetchml/cmd/dataset"
	"prefetchml/cmd/predict"
	"prefetchml/cmd/preprocess"
	"prefetchml/cmd/summary"
	"prefetchml/internal/common"
	"prefetchml/internal/config"
	"prefetchml/internal/metrics"
	"prefetchml/internal/util"

	"github.com/spf13/cobra"
)

var gLogFile *os.File
var gMetricsServer *http.Server
var gVersion = "9.9.9" // overwritten by ldflags in Makefile

const (
	// LongAppName is the name of the application
	LongAppName = "PrefetchML"
)

var examples = []string{
	fmt.Sprintf("  Convert a raw trace to postprocessed records:  $ %s preprocess trace.txt", common.AppName),
	fmt.Sprintf("  Build a training dataset:                      $ %s dataset --format csv out/trace_processed.txt", common.AppName),
	fmt.Sprintf("  Run streaming inference:                       $ %s predict --model-url http://localhost:8501 out/trace_processed.txt", common.AppName),
	fmt.Sprintf("  Summarize traces:                              $ %s summary --format txt,xlsx trace1.txt trace2.txt", common.AppName),
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:                common.AppName,
	Short:              common.AppName,
	Long:               fmt.Sprintf(`%s (%s) turns memory access traces into bit-vector samples for learned prefetchers and drives a model over them.`, LongAppName, common.AppName),
	Example:            strings.Join(examples, "\n"),
	PersistentPreRunE:  initializeApplication, // will only be run if command has a 'Run' function
	PersistentPostRunE: terminateApplication,  // ...
	Version:            gVersion,
}

var (
	// logging
	flagDebug     bool
	flagSyslog    bool
	flagLogStdOut bool
	// output
	flagOutputDir string
	// settings
	flagConfigFile  string
	flagMetricsAddr string
)

const (
	flagDebugName       = "debug"
	flagSyslogName      = "syslog"
	flagLogStdOutName   = "log-stdout"
	flagOutputDirName   = "output"
	flagConfigFileName  = "config"
	flagMetricsAddrName = "metrics-addr"
)

func init() {
	rootCmd.SetUsageTemplate(`Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command] [flags]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}
`)
	rootCmd.SetHelpCommand(&cobra.Command{}) // block the help command
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.AddGroup([]*cobra.Group{{ID: "primary", Title: "Commands:"}}...)
	rootCmd.AddCommand(preprocess.Cmd)
	rootCmd.AddCommand(dataset.Cmd)
	rootCmd.AddCommand(predict.Cmd)
	rootCmd.AddCommand(summary.Cmd)
	// Global (persistent) flags
	rootCmd.PersistentFlags().BoolVar(&flagDebug, flagDebugName, false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagSyslog, flagSyslogName, false, "write logs to syslog instead of a file")
	rootCmd.PersistentFlags().BoolVar(&flagLogStdOut, flagLogStdOutName, false, "write logs to stdout")
	rootCmd.PersistentFlags().StringVar(&flagOutputDir, flagOutputDirName, "", "override the output directory")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, flagConfigFileName, "", "YAML file with pipeline settings")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, flagMetricsAddrName, "", "serve Prometheus metrics at this address, e.g., :9090")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.EnableCommandSorting = false
	cobra.EnableCaseInsensitive = true
	err := rootCmd.Execute()
	if err != nil {
		terminateErr := terminateApplication(rootCmd, os.Args)
		if terminateErr != nil {
			slog.Error("Error terminating application", slog.String("error", terminateErr.Error()))
			fmt.Printf("Error: %v\n", terminateErr)
		}
		os.Exit(1)
	}
}

func initializeApplication(cmd *cobra.Command, args []string) error {
	timestamp := time.Now().Local().Format("2006-01-02_15-04-05") // app startup time
	// verify requested output directory exists or choose an output directory
	var outputDir string
	if flagOutputDir != "" {
		var err error
		outputDir, err = util.AbsPath(flagOutputDir)
		if err != nil {
			fmt.Printf("Error: failed to expand output dir %v\n", err)
			os.Exit(1)
		}
		exists, err := util.DirectoryExists(outputDir)
		if err != nil {
			fmt.Printf("Error: failed to determine if output dir exists: %v\n", err)
			os.Exit(1)
		}
		if !exists {
			fmt.Printf("Error: requested output dir, %s, does not exist\n", outputDir)
			os.Exit(1)
		}
	} else {
		// set output dir path to app name + timestamp (don't create the directory)
		outputDirName := common.AppName + "_" + timestamp
		var err error
		// outputDir will be in current working directory
		outputDir, err = util.AbsPath(outputDirName)
		if err != nil {
			fmt.Printf("Error: failed to expand output dir %v\n", err)
			os.Exit(1)
		}
	}
	// configure logging
	var logOpts slog.HandlerOptions
	if flagDebug {
		logOpts.Level = slog.LevelDebug
		logOpts.AddSource = true
	} else {
		logOpts.Level = slog.LevelInfo
		logOpts.AddSource = false
	}
	if flagSyslog && flagLogStdOut {
		fmt.Println("Error: both syslog handler and stdout output specified. Please pick one only.")
		os.Exit(1)
	} else if flagSyslog { // log to syslog
		handler, err := NewSyslogHandler(&logOpts)
		if err != nil {
			fmt.Printf("Error: failed to create syslog handler: %v\n", err)
			os.Exit(1)
		}
		slog.SetDefault(slog.New(handler))
	} else if flagLogStdOut {
		handler := slog.NewJSONHandler(os.Stdout, &logOpts)
		slog.SetDefault(slog.New(handler))
	} else { // log to file
		// open log file in current directory
		var err error
		gLogFile, err = os.OpenFile(common.AppName+".log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) // #nosec G302
		if err != nil {
			fmt.Printf("Error: failed to open log file: %v\n", err)
			os.Exit(1)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(gLogFile, &logOpts)))
	}
	slog.Info("Starting up", slog.String("app", common.AppName), slog.String("version", gVersion), slog.Int("PID", os.Getpid()), slog.String("arguments", strings.Join(os.Args, " ")))
	// load pipeline settings
	cfg := config.Default()
	if flagConfigFile != "" {
		path, err := util.AbsPath(flagConfigFile)
		if err != nil {
			fmt.Printf("Error: failed to expand config file path %v\n", err)
			os.Exit(1)
		}
		cfg, err = config.Load(path)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			slog.Error("failed to load config", slog.String("path", path), slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("Loaded config", slog.String("path", path))
	}
	// metrics
	metrics.Register()
	if flagMetricsAddr != "" {
		gMetricsServer = metrics.StartServer(flagMetricsAddr)
	}
	var logFilePath string
	if gLogFile != nil {
		logFilePath = gLogFile.Name()
	}
	// set app context
	cmd.Root().SetContext(
		context.WithValue(
			context.Background(),
			common.AppContext{},
			common.AppContext{
				Timestamp:   timestamp,
				OutputDir:   outputDir,
				LogFilePath: logFilePath,
				Version:     gVersion,
				Debug:       flagDebug,
				Config:      cfg},
		),
	)
	return nil
}

// terminateApplication stops the metrics server and closes the log file
func terminateApplication(cmd *cobra.Command, args []string) error {
	ctx := cmd.Root().Context()
	if ctx == nil {
		return nil
	}
	if _, ok := ctx.Value(common.AppContext{}).(common.AppContext); !ok {
		return nil
	}
	if gMetricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := gMetricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error stopping metrics server", slog.String("error", err.Error()))
		}
		gMetricsServer = nil
	}
	slog.Info("Shutting down", slog.String("app", common.AppName), slog.String("version", gVersion), slog.Int("PID", os.Getpid()), slog.String("arguments", strings.Join(os.Args, " ")))
	if gLogFile != nil {
		err := gLogFile.Close()
		gLogFile = nil
		if err != nil {
			slog.Error("error closing log file", slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}

// SyslogHandler is a slog.Handler that logs to syslog.
type SyslogHandler struct {
	writer     *syslog.Writer
	logLeveler slog.Leveler
	addSource  bool
}

func NewSyslogHandler(logOpts *slog.HandlerOptions) (*SyslogHandler, error) {
	writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, filepath.Base(os.Args[0]))
	if err != nil {
		return nil, err
	}
	return &SyslogHandler{writer: writer, logLeveler: logOpts.Level, addSource: logOpts.AddSource}, nil
}

func (h *SyslogHandler) Handle(ctx context.Context, r slog.Record) error {
	var msg string
	if r.PC != 0 && h.addSource {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		// get the file name with path relative to the current working directory + the last directory in the working directory
		filePath := f.File
		if strings.HasPrefix(filePath, "/") {
			wd, err := os.Getwd()
			if err == nil {
				filePath, err = filepath.Rel(wd, filePath)
				if err == nil {
					// last path element in working directory
					_, lastWd := filepath.Split(wd)
					filePath = filepath.Join(lastWd, filePath)
				} else {
					filePath = f.File
				}
			}
		}
		msg = fmt.Sprintf("level=%s source=%s:%d msg=\"%s\"", r.Level.String(), filePath, f.Line, r.Message)
	} else {
		msg = fmt.Sprintf("level=%s msg=\"%s\"", r.Level.String(), r.Message)
	}
	r.Attrs(func(attr slog.Attr) bool {
		msg += fmt.Sprintf(" %s=\"%s\"", attr.Key, attr.Value)
		return true
	})
	switch r.Level {
	case slog.LevelDebug:
		return h.writer.Debug(msg)
	case slog.LevelInfo:
		return h.writer.Info(msg)
	case slog.LevelWarn:
		return h.writer.Warning(msg)
	case slog.LevelError:
		return h.writer.Err(msg)
	default:
		return h.writer.Info(msg)
	}
}

func (h *SyslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SyslogHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *SyslogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.logLeveler.Level()
}
