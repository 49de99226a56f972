// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shim

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.chromium.org/infra/build/fakecc/execute/localexec"
	"go.chromium.org/infra/build/fakecc/o11y/clog"
)

// Noop is the shim of a tool that is not needed to capture
// compile commands, such as a linker or archiver.
type Noop struct {
	// Name is the tool name.
	Name string

	// Skip is true if the tool should exit without doing anything.
	Skip bool

	// Path is the search path of the real tool.
	Path string

	// SkipFunc reports whether a candidate of the real tool is a shim.
	SkipFunc localexec.SkipFunc

	// Env is the environment of the real tool.
	// If nil, the current process's environment is used.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run runs the noop shim with args (without argv[0]), and returns
// the exit code.
func (n *Noop) Run(ctx context.Context, args []string) (int, error) {
	if n.Skip {
		clog.Debugf(ctx, "skip %s", n.Name)
		return 0, nil
	}
	fname, err := localexec.LookPath(n.Name, n.Path, n.SkipFunc)
	if errors.Is(err, localexec.ErrNotFound) {
		return 1, fmt.Errorf("not found: %s", n.Name)
	}
	if err != nil {
		return 1, err
	}
	return localexec.Run(ctx, &localexec.Cmd{
		Args:   append([]string{fname}, args...),
		Env:    toolEnv(n.Env),
		Stdin:  n.Stdin,
		Stdout: n.Stdout,
		Stderr: n.Stderr,
	})
}
