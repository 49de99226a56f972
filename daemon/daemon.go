// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package daemon starts, stops and runs the capture daemon.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"syscall"
	"time"

	lucierrors "go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/retry"
	"go.chromium.org/luci/common/retry/transient"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/fakecc/capture"
	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/identity"
	"go.chromium.org/infra/build/fakecc/o11y/clog"
)

// ErrTimeout is returned when the daemon didn't start or stop in time.
var ErrTimeout = errors.New("timed out")

const (
	// DefaultStartTimeout is the time to wait for the daemon socket to appear.
	DefaultStartTimeout = 10 * time.Second

	// DefaultStopTimeout is the time to wait for the daemon socket to go away.
	DefaultStopTimeout = 4 * time.Second

	pollInterval = 10 * time.Millisecond
)

// Options is options to start the daemon.
type Options struct {
	// Self is the path of the fakecc executable.
	Self string

	// SockPath is the daemon socket.
	SockPath string

	// Env is the environment of the daemon. The recursion marker is removed.
	Env []string

	// LogFile is a file to append daemon logs.
	// If empty, the daemon inherits stderr.
	LogFile string

	// Timeout is the time to wait for the daemon to listen.
	// Zero means DefaultStartTimeout.
	Timeout time.Duration
}

// Start starts the daemon in background, and waits until it listens
// on the socket.
func Start(ctx context.Context, opts Options) error {
	_, err := os.Lstat(opts.SockPath)
	if err == nil {
		return fmt.Errorf("%w: %s", capture.ErrSocketExists, opts.SockPath)
	}
	out := os.Stderr
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open daemon log: %w", err)
		}
		defer f.Close()
		out = f
	}
	env := config.StripEnv(opts.Env, config.EnvMarker)
	env = config.SetEnv(env, config.EnvSock, opts.SockPath)
	cmd := &exec.Cmd{
		Path:   opts.Self,
		Args:   []string{identity.ManagerName, "daemon"},
		Env:    env,
		Stdout: out,
		Stderr: out,
		// detach from the terminal and the process group of the build,
		// so ^C to the build doesn't kill the daemon before the dump.
		SysProcAttr: &syscall.SysProcAttr{Setsid: true},
	}
	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	clog.Infof(ctx, "waiting for daemon pid=%d to start...", cmd.Process.Pid)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		if err == nil {
			err = errors.New("exit status 0")
		}
		cancel(fmt.Errorf("daemon exited: %w", err))
		close(exited)
	}()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultStartTimeout
	}
	err = poll(ctx, timeout, func() bool {
		return isSocket(opts.SockPath)
	})
	if err != nil {
		select {
		case <-exited:
			return context.Cause(ctx)
		default:
		}
		// it must not start listening after Start failed.
		if kerr := cmd.Process.Kill(); kerr != nil {
			clog.Warningf(ctx, "failed to kill daemon pid=%d: %v", cmd.Process.Pid, kerr)
		}
		<-exited
		return fmt.Errorf("daemon didn't listen on %s: %w", opts.SockPath, err)
	}
	clog.Infof(ctx, "daemon pid=%d started", cmd.Process.Pid)
	return nil
}

// Stop requests the daemon to stop, and waits until the socket is removed.
func Stop(ctx context.Context, sockPath string, timeout time.Duration) error {
	err := capture.NewClient(sockPath).Stop(ctx)
	if err != nil {
		return err
	}
	if timeout == 0 {
		timeout = DefaultStopTimeout
	}
	err = poll(ctx, timeout, func() bool {
		_, err := os.Lstat(sockPath)
		return errors.Is(err, fs.ErrNotExist)
	})
	if err != nil {
		return fmt.Errorf("daemon didn't remove %s: %w", sockPath, err)
	}
	return nil
}

// Serve runs the daemon in the foreground until it receives a stop
// message or an interrupt.
func Serve(ctx context.Context, sockPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer signals.HandleInterrupt(func() {
		clog.Infof(ctx, "interrupted")
		cancel()
	})()

	s := capture.NewServer(sockPath)
	err := s.Listen(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx)
}

var errNotReady = errors.New("not ready")

// poll calls ready every pollInterval until it returns true.
// It returns ErrTimeout if ready is not true after timeout.
func poll(ctx context.Context, timeout time.Duration, ready func() bool) error {
	started := time.Now()
	err := retry.Retry(ctx, transient.Only(func() retry.Iterator {
		return &retry.Limited{
			Delay:    pollInterval,
			Retries:  -1,
			MaxTotal: timeout,
		}
	}), func() error {
		if ready() {
			return nil
		}
		return lucierrors.Annotate(errNotReady, "after %s", time.Since(started)).Tag(transient.Tag).Err()
	}, nil)
	if err == nil {
		return nil
	}
	if cerr := context.Cause(ctx); cerr != nil {
		return cerr
	}
	return fmt.Errorf("%w after %s", ErrTimeout, timeout)
}

func isSocket(fname string) bool {
	fi, err := os.Lstat(fname)
	if err != nil {
		return false
	}
	return fi.Mode()&fs.ModeSocket != 0
}
