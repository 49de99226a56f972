// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clangutil provides utilities to ask clang for the compilation
// database entry of a command line.
package clangutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"go.chromium.org/infra/build/fakecc/compdb"
)

const (
	// CompileFlag is the flag to only run preprocess, compile and assemble steps.
	CompileFlag = "-c"

	// DriverOnlyFlag makes clang only run the driver, so no output is
	// produced but the -MJ entry is written.
	DriverOnlyFlag = "-fdriver-only"

	// CompDBFlag is the flag to write a compilation database entry.
	// The filename follows without separator.
	CompDBFlag = "-MJ"
)

// IsCompile reports whether args is a compile-only command line.
// Command lines without -c (link steps, `clang x.c`, `clang -v`)
// are not considered.
func IsCompile(args []string) bool {
	for _, arg := range args {
		if arg == CompileFlag {
			return true
		}
	}
	return false
}

// ProbeArgs returns a clang command line to run driver with args,
// writing the compilation database entry to entryFile.
// If driverOnly is true, clang won't compile.
func ProbeArgs(driver, entryFile string, args []string, driverOnly bool) []string {
	pargs := make([]string, 0, len(args)+3)
	pargs = append(pargs, driver, CompDBFlag+entryFile)
	if driverOnly {
		pargs = append(pargs, DriverOnlyFlag)
	}
	return append(pargs, args...)
}

// ParseEntry parses the entry written by clang -MJ.
// clang writes the entry as an element of a JSON array,
// i.e. followed by ",\n".
// If driverOnly is true, -fdriver-only added by ProbeArgs is removed
// from the arguments, since it was not in the original command line.
func ParseEntry(buf []byte, driverOnly bool) (compdb.Entry, error) {
	buf = bytes.TrimRight(buf, ", \n")
	var e compdb.Entry
	err := json.Unmarshal(buf, &e)
	if err != nil {
		return compdb.Entry{}, fmt.Errorf("failed to parse compdb entry %q: %w", buf, err)
	}
	if e.File == "" {
		return compdb.Entry{}, errors.New("no file in compdb entry")
	}
	if driverOnly {
		for i, arg := range e.Arguments {
			if arg == DriverOnlyFlag {
				e.Arguments = append(e.Arguments[:i:i], e.Arguments[i+1:]...)
				break
			}
		}
	}
	return e, nil
}
