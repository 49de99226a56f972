// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package localexec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by LookPath when no executable is found.
var ErrNotFound = errors.New("executable file not found")

// SkipFunc reports whether the executable found at fname should be skipped.
type SkipFunc func(fname string) bool

// LookPath searches an executable named file in the directories of
// pathList (PATH format), not in the current process's PATH, since
// commands are usually run with a modified environment.
// If file contains a slash, it is returned without searching.
// Candidates for which skip returns true are ignored.
func LookPath(file, pathList string, skip SkipFunc) (string, error) {
	if strings.Contains(file, "/") {
		return file, nil
	}
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		fname := filepath.Join(dir, file)
		if !isExecutable(fname) {
			continue
		}
		if skip != nil && skip(fname) {
			continue
		}
		return fname, nil
	}
	return "", fmt.Errorf("%s: %w", file, ErrNotFound)
}

// SkipDirs returns SkipFunc to skip executables in dirs, and
// executables resolving to one of exes (e.g. the running binary itself).
func SkipDirs(dirs []string, exes []string) SkipFunc {
	var rdirs, rexes []string
	for _, d := range dirs {
		if d == "" {
			continue
		}
		rdirs = append(rdirs, realPath(d))
	}
	for _, e := range exes {
		if e == "" {
			continue
		}
		rexes = append(rexes, realPath(e))
	}
	return func(fname string) bool {
		dir := realPath(filepath.Dir(fname))
		for _, d := range rdirs {
			if dir == d {
				return true
			}
		}
		if len(rexes) == 0 {
			return false
		}
		exe := realPath(fname)
		for _, e := range rexes {
			if exe == e {
				return true
			}
		}
		return false
	}
}

func realPath(name string) string {
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	if r, err := filepath.EvalSymlinks(name); err == nil {
		return r
	}
	return filepath.Clean(name)
}

func isExecutable(fname string) bool {
	fi, err := os.Stat(fname)
	if err != nil {
		return false
	}
	m := fi.Mode()
	return !m.IsDir() && m&fs.ModePerm&0111 != 0
}
