// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/fakecc/capture"
	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/daemon"
	"go.chromium.org/infra/build/fakecc/execute/localexec"
	"go.chromium.org/infra/build/fakecc/o11y/clog"
	"go.chromium.org/infra/build/fakecc/toolsupport/shutil"
)

// DefaultOutput is the compilation database written by Run.
const DefaultOutput = "compile_commands.json"

// Options is options of a capture session.
type Options struct {
	// Self is the path of the fakecc executable.
	Self string

	// SockPath is the absolute path of the daemon socket.
	SockPath string

	// Env is the environment of the session.
	Env []string

	// Output is the compilation database to write.
	// Empty means DefaultOutput in the current directory.
	Output string

	// DaemonLog is a file to append daemon logs, or empty to inherit stderr.
	DaemonLog string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run runs the command args with the shims installed and the daemon
// running, writes the captured compilation database, and returns the
// exit code of the command.
// The shim directory is removed and the daemon is stopped when Run returns.
func Run(ctx context.Context, opts Options, args []string) (code int, err error) {
	if len(args) == 0 {
		return 1, errors.New("no command to run")
	}
	output := opts.Output
	if output == "" {
		output = DefaultOutput
	}
	defer logInterrupts(ctx, args[0])()

	shims, err := Install(opts.Self)
	if err != nil {
		return 1, err
	}
	defer func() {
		rerr := shims.Remove()
		if rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to remove shims: %w", rerr))
		}
	}()
	env := config.ChildEnv(opts.Env, shims.Dir, opts.SockPath)

	err = daemon.Start(ctx, daemon.Options{
		Self:     opts.Self,
		SockPath: opts.SockPath,
		Env:      env,
		LogFile:  opts.DaemonLog,
	})
	if err != nil {
		return 1, err
	}

	code, err = runCommand(ctx, env, opts, args)
	if err != nil {
		code = 1
	} else {
		err = capture.NewClient(opts.SockPath).Dump(ctx, output)
		if err != nil {
			code = 1
			err = fmt.Errorf("failed to dump: %w", err)
		}
	}
	serr := daemon.Stop(ctx, opts.SockPath, 0)
	if serr != nil {
		code = 1
		err = errors.Join(err, fmt.Errorf("failed to stop daemon: %w", serr))
	}
	return code, err
}

func runCommand(ctx context.Context, env []string, opts Options, args []string) (int, error) {
	pathList, _ := config.LookupEnv(env, "PATH")
	fname, err := localexec.LookPath(args[0], pathList, nil)
	if err != nil {
		return 1, err
	}
	clog.Infof(ctx, "run %s", shutil.Join(args))
	return localexec.Run(ctx, &localexec.Cmd{
		Args:   append([]string{fname}, args[1:]...),
		Env:    env,
		Stdin:  opts.Stdin,
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
	})
}

// logInterrupts logs interrupt signals until the returned func is called.
// Unlike signals.HandleInterrupt, it never exits on a second signal:
// Run stops the daemon and removes the shims on every path.
// The command gets the interrupt from the terminal too, and decides
// how to exit.
func logInterrupts(ctx context.Context, name string) (stop func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, signals.Interrupts()...)
	go func() {
		for sig := range ch {
			clog.Warningf(ctx, "%v: waiting for %s to exit", sig, name)
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
