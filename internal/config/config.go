/*
Package config loads the pipeline settings from a YAML file. Command line flags override
the values read here.
*/
package config

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"prefetchml/internal/bitfield"
	"prefetchml/internal/trace"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DefaultMaxIterations bounds a streaming inference run when nothing else is configured
const DefaultMaxIterations = 10

// DefaultThreshold turns model probabilities into bits
const DefaultThreshold = 0.5

// Model holds the connection details of the external model
type Model struct {
	URL     string        `yaml:"url"`
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
}

// Config is the full set of pipeline settings
type Config struct {
	Sentinel       string  `yaml:"sentinel"`
	OverflowPolicy string  `yaml:"overflow_policy"`
	MaxIterations  int     `yaml:"max_iterations"`
	Threshold      float64 `yaml:"threshold"`
	Workers        int     `yaml:"workers"`
	Filter         string  `yaml:"filter"`
	Model          Model   `yaml:"model"`
}

// Default returns the settings used when no file is given
func Default() Config {
	return Config{
		Sentinel:       trace.DefaultSentinel,
		OverflowPolicy: bitfield.PolicyReject.String(),
		MaxIterations:  DefaultMaxIterations,
		Threshold:      DefaultThreshold,
		Workers:        runtime.NumCPU(),
		Model: Model{
			Name:    "prefetch",
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads path on top of the defaults. Keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config file %s", path)
	}
	return cfg, nil
}

// Policy returns the parsed overflow policy
func (c Config) Policy() (bitfield.OverflowPolicy, error) {
	return bitfield.ParsePolicy(c.OverflowPolicy)
}

// Validate checks value ranges
func (c Config) Validate() error {
	if c.Sentinel == "" {
		return fmt.Errorf("sentinel must not be empty")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be 0 (unbounded) or a positive integer")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be a positive integer")
	}
	if c.Model.Timeout < 0 {
		return fmt.Errorf("model timeout must not be negative")
	}
	return nil
}
