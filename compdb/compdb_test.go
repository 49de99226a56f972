// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package compdb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "compile_commands.json")
	entries := []Entry{
		{
			Arguments: []string{"/usr/bin/clang", "-c", "a.c", "-o", "a.o"},
			Directory: dir,
			File:      "a.c",
			Output:    "a.o",
		},
		{
			Arguments: []string{"/usr/bin/clang++", "-c", "b.cc", "-o", "b.o"},
			Directory: dir,
			File:      "b.cc",
			Output:    "b.o",
		},
	}
	err := WriteFile(fname, entries)
	if err != nil {
		t.Fatalf("WriteFile(%q)=%v; want nil error", fname, err)
	}
	got, err := ReadFile(fname)
	if err != nil {
		t.Fatalf("ReadFile(%q)=%v; want nil error", fname, err)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("ReadFile(%q) diff -want +got:\n%s", fname, diff)
	}

	// no temporary file left.
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 1 {
		var names []string
		for _, e := range ents {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries=%q; want only compile_commands.json", names)
	}
}

func TestWriteFileEmpty(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "compile_commands.json")
	err := WriteFile(fname, nil)
	if err != nil {
		t.Fatalf("WriteFile(%q, nil)=%v; want nil error", fname, err)
	}
	buf, err := os.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(buf), "[]\n"; got != want {
		t.Errorf("WriteFile(nil) wrote %q; want %q", got, want)
	}
}

func TestEntryKeys(t *testing.T) {
	buf, err := json.Marshal(Entry{})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	err = json.Unmarshal(buf, &m)
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	want := []string{"arguments", "directory", "file", "output"}
	if diff := cmp.Diff(want, keys, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("keys diff -want +got:\n%s", diff)
	}
}
