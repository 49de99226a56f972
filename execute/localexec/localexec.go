// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package localexec implements local command execution.
package localexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"go.chromium.org/infra/build/fakecc/o11y/clog"
	"go.chromium.org/infra/build/fakecc/toolsupport/shutil"
)

// Cmd is a command to run locally.
type Cmd struct {
	// Args is the command line. Args[0] must be a path to the executable;
	// it is not searched in PATH. Use LookPath to resolve it.
	Args []string

	// Env is the environment of the command.
	// If nil, the current process's environment is used.
	Env []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run runs cmd and waits for it to exit.
// It returns the exit code of the command. err is non-nil only when
// the command couldn't be run, e.g. executable not found.
func Run(ctx context.Context, cmd *Cmd) (int, error) {
	if len(cmd.Args) == 0 {
		return 1, errors.New("no arguments in the command")
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	s := time.Now()
	err := c.Start()
	if err != nil {
		return 1, fmt.Errorf("failed to start %q: %w", cmd.Args[0], err)
	}
	err = c.Wait()
	code := exitCode(err)
	clog.Debugf(ctx, "exit=%d %s: %s", code, time.Since(s), shutil.Join(cmd.Args))
	return code, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exec.ExitError
	if !errors.As(err, &eerr) {
		return 1
	}
	if w, ok := eerr.ProcessState.Sys().(syscall.WaitStatus); ok {
		if w.Signaled() {
			return 128 + int(w.Signal())
		}
		return w.ExitStatus()
	}
	return 1
}
