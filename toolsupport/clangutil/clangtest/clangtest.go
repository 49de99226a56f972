// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clangtest provides a fake clang for tests.
//
// The fake clang understands -c, -o, -MJ, -fdriver-only and -v:
//   - with -MJ<file> and -c, it writes a compdb entry for the source to <file>.
//   - with -fno-such-flag, it fails as an unknown argument.
//   - with -fdriver-only, it exits 0 without producing the output.
//   - otherwise it creates an empty output file, or fails with a
//     compile error if the source base name starts with "bad".
//
// If FAKECLANG_LOG is set, each invocation's arguments are appended to it.
package clangtest

import (
	"os"
	"path/filepath"
	"testing"
)

const script = `#!/bin/sh
record=""
out=""
src=""
compile=""
driver_only=""
unknown=""
prev=""
json="\"$0\""
for a in "$@"; do
  case "$a" in
  -MJ*)
    record="${a#-MJ}"
    continue
    ;;
  esac
  json="$json, \"$a\""
  case "$a" in
  -c) compile=1 ;;
  -fdriver-only) driver_only=1 ;;
  -v) echo "clang version 0.0.0-fake" >&2 ;;
  -fno-such-flag) unknown="$a" ;;
  -*) ;;
  *)
    if [ "$prev" = "-o" ]; then
      out="$a"
    else
      src="$a"
    fi
    ;;
  esac
  prev="$a"
done
if [ -n "$FAKECLANG_LOG" ]; then
  echo "$*" >> "$FAKECLANG_LOG"
fi
if [ -n "$unknown" ]; then
  echo "clang: error: unknown argument: '$unknown'" >&2
  exit 1
fi
if [ -n "$record" ] && [ -n "$compile" ] && [ -n "$src" ]; then
  printf '{ "directory": "%s", "file": "%s", "output": "%s", "arguments": [%s]},\n' "$(pwd -P)" "$src" "$out" "$json" > "$record"
fi
if [ "$src" = "/dev/null" ]; then
  src=""
fi
if [ -n "$driver_only" ]; then
  exit 0
fi
if [ -n "$src" ]; then
  case "$(basename "$src")" in
  bad*)
    echo "$src:1:1: error: expected identifier" >&2
    exit 1
    ;;
  esac
fi
if [ -n "$compile" ] && [ -n "$out" ]; then
  : > "$out"
fi
exit 0
`

// Install writes fake clang and clang++ in dir, and returns dir.
func Install(t testing.TB, dir string) string {
	t.Helper()
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"clang", "clang++"} {
		err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0755)
		if err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// WriteTool writes an executable shell script named name in dir,
// and returns its path.
func WriteTool(t testing.TB, dir, name, body string) string {
	t.Helper()
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		t.Fatal(err)
	}
	fname := filepath.Join(dir, name)
	err = os.WriteFile(fname, []byte("#!/bin/sh\n"+body+"\n"), 0755)
	if err != nil {
		t.Fatal(err)
	}
	return fname
}
