/*
Package util includes utility/helper functions that may be useful to other modules.
*/
package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// StdioName is the path that selects stdin or stdout instead of a file
const StdioName = "-"

// ExpandUser expands '~' to user's home directory, if found, otherwise returns original path
func ExpandUser(path string) string {
	usr, err := user.Current()
	if err != nil {
		return path
	}
	if path == "~" {
		return usr.HomeDir
	} else if strings.HasPrefix(path, "~"+string(os.PathSeparator)) {
		return filepath.Join(usr.HomeDir, path[2:])
	} else {
		return path
	}
}

// AbsPath returns absolute path after expanding '~' to user's home dir
// Use everywhere in place of filepath.Abs()
func AbsPath(path string) (string, error) {
	return filepath.Abs(ExpandUser(path))
}

// FileExists checks if a file exists at the given path.
// It returns a boolean indicating whether the file exists, and an error if the
// path refers to a non-regular file, e.g., a directory.
func FileExists(path string) (exists bool, err error) {
	var fileInfo fs.FileInfo
	fileInfo, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			exists = false
			err = nil
			return
		}
		return
	}
	if !fileInfo.Mode().IsRegular() {
		err = fmt.Errorf("%s not a file", path)
		return
	}
	exists = true
	return
}

// DirectoryExists checks if the specified directory exists.
// It returns a boolean indicating whether the directory exists and an error if the
// path refers to anything other than a directory, e.g., a regular file.
func DirectoryExists(path string) (exists bool, err error) {
	var fileInfo fs.FileInfo
	fileInfo, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			exists = false
			err = nil
			return
		}
		return
	}
	if !fileInfo.Mode().IsDir() {
		err = fmt.Errorf("%s not a directory", path)
		return
	}
	exists = true
	return
}

// FileOrDirectoryExists checks if a file or directory exists at the given file path.
func FileOrDirectoryExists(filePath string) bool {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return false
	}
	return true
}

// CreateDirectoryIfNotExists creates a directory at the specified path if it does not already exist.
func CreateDirectoryIfNotExists(dir string, perm os.FileMode) error {
	if FileOrDirectoryExists(dir) {
		return nil
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("failed to create directory: '%s', error: '%s'", dir, err.Error())
	}
	return nil
}

// UniqueAppend appends an item to a slice if it is not already present
func UniqueAppend[T comparable](slice []T, item T) []T {
	for _, s := range slice {
		if s == item {
			return slice
		}
	}
	return append(slice, item)
}

// OpenInput opens the named trace file for reading. StdioName selects stdin,
// which is returned wrapped so that closing it is a no-op.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == StdioName {
		return io.NopCloser(os.Stdin), nil
	}
	path, err := AbsPath(path)
	if err != nil {
		return nil, err
	}
	exists, err := FileExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("input file not found: %s", path)
	}
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	return f, nil
}

// OutputPath derives the name of a file written to outputDir from an input
// file name. The input's extension is replaced by suffix + ext, e.g.,
// "trace.txt" with suffix "_processed" and ext ".txt" becomes
// "<outputDir>/trace_processed.txt".
func OutputPath(outputDir, input, suffix, ext string) string {
	base := filepath.Base(input)
	if input == StdioName || base == "." || base == string(os.PathSeparator) {
		base = "stdin"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, base+suffix+ext)
}

// CheckOutputCollisions returns an error when two different inputs would be written to the
// same file by OutputPath, e.g., "run1/trace.txt" and "run2/trace.txt". Repeated
// occurrences of the same input are not collisions.
func CheckOutputCollisions(inputs []string, suffix, ext string) error {
	seen := make(map[string]string)
	for _, input := range inputs {
		key := input
		if input != StdioName {
			if abs, err := AbsPath(input); err == nil {
				key = abs
			}
		}
		output := OutputPath("", input, suffix, ext)
		if other, ok := seen[output]; ok && other != key {
			return fmt.Errorf("inputs %s and %s would both be written to %s, rename one or run them separately", other, input, output)
		}
		seen[output] = key
	}
	return nil
}
