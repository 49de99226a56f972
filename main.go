// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// fakecc generates a compilation database (compile_commands.json) by
// intercepting compiler invocations of a build.
//
// The fakecc binary is installed in a shim directory as cc, clang,
// clang++, ar, ld, objcopy and objtool, and behaves as the tool it is
// invoked as. Invoked as fakecc, it manages the capture session.
package main

import (
	"os"

	"go.chromium.org/infra/build/fakecc/dispatch"
)

func main() {
	os.Exit(dispatch.Main(os.Args))
}
