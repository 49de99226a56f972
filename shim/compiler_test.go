// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shim

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/fakecc/compdb"
	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/toolsupport/clangutil/clangtest"
)

type fakeSender struct {
	entries []compdb.Entry
	err     error
}

func (s *fakeSender) Cap(ctx context.Context, e compdb.Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

// setup installs a fake clang and changes to a work directory.
// It returns the real path of the work directory and the clang path.
func setup(t *testing.T) (string, string) {
	t.Helper()
	tmp := t.TempDir()
	clangDir := clangtest.Install(t, filepath.Join(tmp, "real"))
	wd := filepath.Join(tmp, "work")
	err := os.Mkdir(wd, 0755)
	if err != nil {
		t.Fatal(err)
	}
	wd, err = filepath.EvalSymlinks(wd)
	if err != nil {
		t.Fatal(err)
	}
	t.Chdir(wd)
	return wd, filepath.Join(clangDir, "clang")
}

// outputOf returns the -o value in args.
func outputOf(args []string) string {
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func exists(fname string) bool {
	_, err := os.Stat(fname)
	return err == nil
}

func TestCompilerRun(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name     string
		args     []string
		patterns Patterns
		sendErr  error
		wantCode int
		// wantFile is the captured file, or empty if not captured.
		wantFile string
		// wantOut is true if the output is produced.
		wantOut bool
	}{
		{
			name:     "capture",
			args:     []string{"-o", "f.o", "-c", "f.c"},
			wantFile: "f.c",
		},
		{
			name:     "pass-rec",
			args:     []string{"-o", "f.o", "-c", "f.c"},
			patterns: Patterns{PassRec: []string{"f.*"}},
			wantFile: "f.c",
			wantOut:  true,
		},
		{
			name:     "pass",
			args:     []string{"-o", "f.o", "-c", "f.c"},
			patterns: Patterns{Pass: []string{"g.c", "*.c"}, PassRec: []string{"*"}},
			wantOut:  true,
		},
		{
			name:     "pass-unmatched",
			args:     []string{"-o", "f.o", "-c", "f.c"},
			patterns: Patterns{Pass: []string{"g.c"}},
			wantFile: "f.c",
		},
		{
			name:    "dev-null",
			args:    []string{"-o", "f.o", "-c", "/dev/null"},
			wantOut: true,
		},
		{
			name:    "link",
			args:    []string{"-o", "f.o", "x.o"},
			wantOut: false,
		},
		{
			name:     "probe-failure",
			args:     []string{"-fno-such-flag", "-o", "f.o", "-c", "f.c"},
			wantCode: 1,
		},
		{
			name:    "send-failure",
			args:    []string{"-o", "f.o", "-c", "f.c"},
			sendErr: errors.New("daemon is not running"),
			wantOut: true,
		},
		{
			name:     "compile-error",
			args:     []string{"-o", "bad.o", "-c", "bad.c"},
			patterns: Patterns{PassRec: []string{"bad.c"}},
			wantCode: 1,
			wantFile: "bad.c",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			wd, clang := setup(t)
			sender := &fakeSender{err: tc.sendErr}
			var stderr bytes.Buffer
			c := &Compiler{
				Driver:   clang,
				Patterns: tc.patterns,
				Sender:   sender,
				Env:      append(os.Environ(), config.EnvMarker+"=yes"),
				Stdout:   &stderr,
				Stderr:   &stderr,
			}
			code, err := c.Run(ctx, tc.args)
			if err != nil {
				t.Fatalf("Run(%q)=%d, %v; want nil error", tc.args, code, err)
			}
			if code != tc.wantCode {
				t.Errorf("Run(%q)=%d; want %d\nstderr:%s", tc.args, code, tc.wantCode, stderr.String())
			}
			var files []string
			for _, e := range sender.entries {
				files = append(files, e.File)
				if e.Directory != wd {
					t.Errorf("entry directory=%q; want %q", e.Directory, wd)
				}
			}
			var wantFiles []string
			if tc.wantFile != "" {
				wantFiles = []string{tc.wantFile}
			}
			if diff := cmp.Diff(wantFiles, files); diff != "" {
				t.Errorf("captured files diff -want +got:\n%s", diff)
			}
			obj := outputOf(tc.args)
			if got := exists(obj); got != tc.wantOut {
				t.Errorf("%s exists=%t; want %t", obj, got, tc.wantOut)
			}
		})
	}
}

func TestCompilerRunCapturedArguments(t *testing.T) {
	ctx := context.Background()
	wd, clang := setup(t)
	sender := &fakeSender{}
	c := &Compiler{
		Driver: clang,
		Sender: sender,
		Env:    os.Environ(),
	}
	code, err := c.Run(ctx, []string{"-o", "f.o", "-c", "f.c"})
	if code != 0 || err != nil {
		t.Fatalf("Run()=%d, %v; want 0, nil error", code, err)
	}
	want := []compdb.Entry{
		{
			Arguments: []string{clang, "-o", "f.o", "-c", "f.c"},
			Directory: wd,
			File:      "f.c",
			Output:    "f.o",
		},
	}
	if diff := cmp.Diff(want, sender.entries); diff != "" {
		t.Errorf("captured diff -want +got:\n%s", diff)
	}
}

func TestCompilerProbe(t *testing.T) {
	ctx := context.Background()
	wd, clang := setup(t)
	c := &Compiler{
		Driver: clang,
		Env:    os.Environ(),
	}
	args := []string{"-o", "f.o", "-c", "f.c"}

	got, err := c.Probe(ctx, args, false)
	if err != nil {
		t.Fatalf("Probe(compile)=%v; want nil error", err)
	}
	want := compdb.Entry{
		Arguments: []string{clang, "-o", "f.o", "-c", "f.c"},
		Directory: wd,
		File:      "f.c",
		Output:    "f.o",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Probe(compile) diff -want +got:\n%s", diff)
	}
	if !exists("f.o") {
		t.Errorf("f.o doesn't exist after Probe(compile)")
	}

	_, err = c.Probe(ctx, []string{"-o", "f.o", "f.c"}, true)
	if err == nil {
		t.Errorf("Probe(link)=nil error; want error")
	}
}

func TestCompilerRunMarker(t *testing.T) {
	ctx := context.Background()
	wd, _ := setup(t)
	envFile := filepath.Join(wd, "env.txt")
	// a driver that records its environment.
	driver := clangtest.WriteTool(t, filepath.Join(wd, "bin"), "clang", "env > "+envFile)
	c := &Compiler{
		Driver: driver,
		Sender: &fakeSender{},
		Env:    []string{"PATH=/usr/bin:/bin", config.EnvMarker + "=yes"},
	}
	code, err := c.Run(ctx, []string{"-v"})
	if code != 0 || err != nil {
		t.Fatalf("Run()=%d, %v; want 0, nil error", code, err)
	}
	buf, err := os.ReadFile(envFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(buf), config.EnvMarker+"=") {
		t.Errorf("env of real compiler has %s:\n%s", config.EnvMarker, buf)
	}
}

func TestFindDriver(t *testing.T) {
	tmp := t.TempDir()
	realDir := clangtest.Install(t, filepath.Join(tmp, "real"))
	shimDir := filepath.Join(tmp, "shim")
	clangtest.Install(t, shimDir)
	pathList := shimDir + string(filepath.ListSeparator) + realDir

	got, err := FindDriver("cc", "", pathList, shimDir, "")
	if err != nil {
		t.Fatalf("FindDriver(cc)=%v; want nil error", err)
	}
	if want := filepath.Join(realDir, "clang"); got != want {
		t.Errorf("FindDriver(cc)=%q; want %q", got, want)
	}

	got, err = FindDriver("clang++", "/opt/llvm/bin", pathList, shimDir, "")
	if err != nil {
		t.Fatalf("FindDriver(clang++)=%v; want nil error", err)
	}
	if want := "/opt/llvm/bin/clang++"; got != want {
		t.Errorf("FindDriver(clang++)=%q; want %q", got, want)
	}

	_, err = FindDriver("clang", "", shimDir, shimDir, "")
	if !errors.Is(err, ErrNoClang) {
		t.Errorf("FindDriver(clang) in shim only=%v; want %v", err, ErrNoClang)
	}

	_, err = FindDriver("ld", "", pathList, shimDir, "")
	if err == nil {
		t.Errorf("FindDriver(ld)=nil error; want error")
	}
}
