// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compdb provides the compilation database entry and file format.
// https://clang.llvm.org/docs/JSONCompilationDatabase.html
package compdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Entry is a compilation database entry for one translation unit.
type Entry struct {
	// Arguments is the argument vector used to compile, argv[0] included.
	Arguments []string `json:"arguments"`
	// Directory is the working directory of the compilation.
	Directory string `json:"directory"`
	// File is the main translation unit source.
	File string `json:"file"`
	// Output is the name of the output created by this compilation step.
	Output string `json:"output"`
}

// Marshal returns entries as an indented JSON array.
// It returns `[]` for no entries.
func Marshal(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	buf, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// WriteFile writes entries to fname.
// It writes to a temporary file in the same directory and renames it,
// so readers never see a partially written database.
func WriteFile(fname string, entries []Entry) error {
	buf, err := Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal compdb: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(fname), "."+filepath.Base(fname)+".*")
	if err != nil {
		return err
	}
	tmpname := f.Name()
	_, err = f.Write(buf)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpname, 0644)
	}
	if err == nil {
		err = os.Rename(tmpname, fname)
	}
	if err != nil {
		_ = os.Remove(tmpname)
		return fmt.Errorf("failed to write %s: %w", fname, err)
	}
	return nil
}

// ReadFile reads a compilation database from fname.
func ReadFile(fname string) ([]Entry, error) {
	buf, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = json.Unmarshal(buf, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fname, err)
	}
	return entries, nil
}
