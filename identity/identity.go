// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package identity resolves which tool a fakecc process was invoked as.
//
// A single fakecc binary is linked into the shim directory under many
// names, and behaves according to the name in argv[0].
package identity

import (
	"path/filepath"
	"slices"
)

// Identity is a kind of the program identity.
type Identity int

const (
	// Unknown is an unrecognized program name.
	Unknown Identity = iota
	// Compiler is a compiler shim (cc, clang, clang++).
	Compiler
	// Noop is a no-op tool shim (ar, ld, objcopy, objtool).
	Noop
	// Manager is the fakecc management command.
	Manager
)

func (i Identity) String() string {
	switch i {
	case Compiler:
		return "compiler"
	case Noop:
		return "noop"
	case Manager:
		return "manager"
	}
	return "unknown"
}

// ManagerName is the name of the management command.
const ManagerName = "fakecc"

var (
	compilerNames = []string{"cc", "clang", "clang++"}
	noopNames     = []string{"ar", "ld", "objcopy", "objtool"}

	// real driver name for the compiler shim name.
	// cc is clang, since only clang supports -MJ.
	drivers = map[string]string{
		"cc":      "clang",
		"clang":   "clang",
		"clang++": "clang++",
	}
)

// Name returns the program name of argv0.
func Name(argv0 string) string {
	return filepath.Base(argv0)
}

// Resolve returns the identity of the program name.
func Resolve(name string) Identity {
	switch {
	case name == ManagerName:
		return Manager
	case slices.Contains(compilerNames, name):
		return Compiler
	case slices.Contains(noopNames, name):
		return Noop
	}
	return Unknown
}

// ShimNames returns all names to install in the shim directory.
func ShimNames() []string {
	names := make([]string, 0, len(compilerNames)+len(noopNames))
	names = append(names, compilerNames...)
	return append(names, noopNames...)
}

// Driver returns the name of the real compiler driver for the compiler
// shim name, or empty if name is not a compiler.
func Driver(name string) string {
	return drivers[name]
}
