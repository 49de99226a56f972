// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shim implements the tools that fakecc pretends to be.
package shim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/fakecc/compdb"
	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/execute/localexec"
	"go.chromium.org/infra/build/fakecc/identity"
	"go.chromium.org/infra/build/fakecc/o11y/clog"
	"go.chromium.org/infra/build/fakecc/toolsupport/clangutil"
	"go.chromium.org/infra/build/fakecc/toolsupport/shutil"
)

// ErrNoClang is returned when the real clang is not found.
var ErrNoClang = errors.New("no real clang found")

// devNull is the source clang uses to probe compiler features.
const devNull = "/dev/null"

// Sender sends captured entries to the daemon.
type Sender interface {
	Cap(ctx context.Context, e compdb.Entry) error
}

// Compiler is the compiler shim.
type Compiler struct {
	// Driver is the path of the real compiler driver.
	Driver string

	Patterns Patterns
	Sender   Sender

	// Env is the environment for the real compiler.
	// If nil, the current process's environment is used.
	// The recursion marker is removed.
	Env []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// FindDriver finds the real driver for the compiler shim name.
// It uses clangPath if set. Otherwise it searches pathList, skipping
// the shim directory binPath and the fakecc executable self.
func FindDriver(name, clangPath, pathList, binPath, self string) (string, error) {
	driver := identity.Driver(name)
	if driver == "" {
		return "", fmt.Errorf("%s is not a compiler", name)
	}
	if clangPath != "" {
		return filepath.Join(clangPath, driver), nil
	}
	fname, err := localexec.LookPath(driver, pathList, localexec.SkipDirs([]string{binPath}, []string{self}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoClang, err)
	}
	return fname, nil
}

// Run runs the compiler shim with args (without argv[0]), and returns
// the exit code.
//
// A compile command is captured and not compiled, unless the source
// matches a pass-and-record pattern. Any other command, or a command
// that can't be captured, is passed through to the real compiler.
func (c *Compiler) Run(ctx context.Context, args []string) (int, error) {
	// TODO: capture `clang x.c`, which compiles and links in one step.
	if !clangutil.IsCompile(args) {
		clog.Debugf(ctx, "not compile")
		return c.passthrough(ctx, args)
	}
	e, err := c.Probe(ctx, args, true)
	if err != nil {
		clog.Infof(ctx, "probe failed: %v", err)
		return c.passthrough(ctx, args)
	}
	if e.File == devNull {
		clog.Debugf(ctx, "probe compile of %s", devNull)
		return c.passthrough(ctx, args)
	}
	if c.Patterns.IsPass(e.File) {
		clog.Debugf(ctx, "pass %s", e.File)
		return c.passthrough(ctx, args)
	}
	err = c.Sender.Cap(ctx, e)
	if err != nil {
		clog.Warningf(ctx, "failed to capture %s: %v", e.File, err)
		return c.passthrough(ctx, args)
	}
	if c.Patterns.IsPassRec(e.File) {
		clog.Debugf(ctx, "record and pass %s", e.File)
		return c.passthrough(ctx, args)
	}
	clog.Debugf(ctx, "captured %s", e.File)
	return 0, nil
}

// Probe runs the real compiler with -MJ to get the compdb entry of args.
// If driverOnly is true, the compiler only runs the driver and the
// entry's arguments are the same as args. Otherwise, the compiler also
// compiles.
// The output of the compiler is logged, not shown.
func (c *Compiler) Probe(ctx context.Context, args []string, driverOnly bool) (compdb.Entry, error) {
	tmpdir, err := os.MkdirTemp("", "fakecc-")
	if err != nil {
		return compdb.Entry{}, err
	}
	defer os.RemoveAll(tmpdir)
	entryFile := filepath.Join(tmpdir, "cc.json")

	var out bytes.Buffer
	cmd := &localexec.Cmd{
		Args:   clangutil.ProbeArgs(c.Driver, entryFile, args, driverOnly),
		Env:    toolEnv(c.Env),
		Stdout: &out,
		Stderr: &out,
	}
	code, err := localexec.Run(ctx, cmd)
	if err != nil {
		return compdb.Entry{}, err
	}
	if code != 0 || clog.FromContext(ctx).Enabled(log.DebugLevel) {
		clog.Infof(ctx, "probe exit=%d %s\n%s", code, shutil.Join(cmd.Args), out.String())
	}
	if code != 0 {
		return compdb.Entry{}, fmt.Errorf("probe exit=%d", code)
	}
	buf, err := os.ReadFile(entryFile)
	if err != nil {
		return compdb.Entry{}, fmt.Errorf("no compdb entry: %w", err)
	}
	return clangutil.ParseEntry(buf, driverOnly)
}

func (c *Compiler) passthrough(ctx context.Context, args []string) (int, error) {
	cmdArgs := append([]string{c.Driver}, args...)
	return localexec.Run(ctx, &localexec.Cmd{
		Args:   cmdArgs,
		Env:    toolEnv(c.Env),
		Stdin:  c.Stdin,
		Stdout: c.Stdout,
		Stderr: c.Stderr,
	})
}

// toolEnv returns the environment to run a real tool.
func toolEnv(env []string) []string {
	if env == nil {
		env = os.Environ()
	}
	return config.StripEnv(env, config.EnvMarker)
}
