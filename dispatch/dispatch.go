// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package dispatch is the entry point of fakecc.
// It runs the tool that the process was invoked as.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/google/uuid"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/fakecc/capture"
	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/execute/localexec"
	"go.chromium.org/infra/build/fakecc/identity"
	"go.chromium.org/infra/build/fakecc/o11y/clog"
	"go.chromium.org/infra/build/fakecc/shim"
	"go.chromium.org/infra/build/fakecc/subcmd/daemoncmd"
	"go.chromium.org/infra/build/fakecc/subcmd/dump"
	"go.chromium.org/infra/build/fakecc/subcmd/help"
	"go.chromium.org/infra/build/fakecc/subcmd/install"
	"go.chromium.org/infra/build/fakecc/subcmd/run"
	"go.chromium.org/infra/build/fakecc/subcmd/start"
	"go.chromium.org/infra/build/fakecc/subcmd/stop"
	"go.chromium.org/infra/build/fakecc/subcmd/version"
)

// Version is the fakecc version.
const Version = "0.1"

// Main runs fakecc with args (os.Args), and returns the exit code.
func Main(args []string) int {
	if len(args) == 0 {
		args = []string{identity.ManagerName}
	}
	name := identity.Name(args[0])
	if _, ok := os.LookupEnv(config.EnvMarker); ok {
		fmt.Fprintf(os.Stderr, "%s: recursive call\n", name)
		return 1
	}
	// processes started from here must not come back as fakecc,
	// except through the environments that remove the marker.
	os.Setenv(config.EnvMarker, "yes")

	id := identity.Resolve(name)
	if id == identity.Unknown {
		fmt.Fprintf(os.Stderr, "%s: unrecognized program name: %s\n", identity.ManagerName, name)
		return 1
	}
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return 1
	}
	cfg, err := config.Load(os.LookupEnv, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return 1
	}
	self, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return 1
	}
	logger := clog.New(os.Stderr, name, cfg.LogLevel)
	ctx := clog.NewContext(context.Background(), logger)

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			clog.Errorf(ctx, "panic: %v\n%s", r, buf)
			os.Exit(1)
		}
	}()

	switch id {
	case identity.Compiler:
		ctx = clog.NewSpan(ctx, uuid.NewString(), map[string]string{"tool": name})
		return runTool(ctx, name, compiler(cfg, name, self), args[1:])
	case identity.Noop:
		ctx = clog.NewSpan(ctx, uuid.NewString(), map[string]string{"tool": name})
		return runTool(ctx, name, noop(cfg, name, self), args[1:])
	}
	return subcommands.Run(app(ctx, cfg, self), args[1:])
}

type tool interface {
	Run(ctx context.Context, args []string) (int, error)
}

// failedTool fails with err.
type failedTool struct {
	err error
}

func (t failedTool) Run(context.Context, []string) (int, error) {
	return 1, t.err
}

func runTool(ctx context.Context, name string, t tool, args []string) int {
	code, err := t.Run(ctx, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
	}
	return code
}

func compiler(cfg *config.Config, name, self string) tool {
	driver, err := shim.FindDriver(name, cfg.ClangPath, cfg.Path, cfg.BinPath, self)
	if err != nil {
		return failedTool{err: err}
	}
	return &shim.Compiler{
		Driver: driver,
		Patterns: shim.Patterns{
			Pass:    cfg.Pass,
			PassRec: cfg.PassRec,
		},
		Sender: capture.NewClient(cfg.SockPath),
		Env:    os.Environ(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func noop(cfg *config.Config, name, self string) tool {
	return &shim.Noop{
		Name:     name,
		Skip:     cfg.IsNoop(name),
		Path:     cfg.Path,
		SkipFunc: localexec.SkipDirs([]string{cfg.BinPath}, []string{self}),
		Env:      os.Environ(),
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

func app(ctx context.Context, cfg *config.Config, self string) *cli.Application {
	return &cli.Application{
		Name:  identity.ManagerName,
		Title: "Compilation database generator by compiler interception.",
		Context: func(context.Context) context.Context {
			return ctx
		},
		Commands: []*subcommands.Command{
			install.Cmd(cfg, self),
			start.Cmd(cfg, self),
			stop.Cmd(cfg),
			dump.Cmd(cfg),
			run.Cmd(cfg, self),
			daemoncmd.Cmd(cfg),
			version.Cmd(Version),
			help.Cmd(),
		},
		EnvVars: map[string]subcommands.EnvVarDefinition{
			config.EnvSock: {
				ShortDesc: "path of the daemon socket",
				Default:   config.DefaultSockName,
			},
			config.EnvBinPath: {
				ShortDesc: "shim directory, set by install and run",
			},
			config.EnvClangPath: {
				ShortDesc: "directory of the real clang. If unset, clang is searched in PATH",
			},
			config.EnvPass: {
				ShortDesc: "comma separated glob patterns of sources to compile without capture",
			},
			config.EnvPassRec: {
				ShortDesc: "comma separated glob patterns of sources to capture and compile",
			},
			config.EnvNoopProgs: {
				ShortDesc: "comma separated no-op tools (ar, ld, objcopy, objtool) to skip",
			},
			config.EnvLogLevel: {
				ShortDesc: "log level: debug, info, warn or error",
				Default:   "warn",
			},
			config.EnvDaemonLog: {
				Advanced:  true,
				ShortDesc: "file to write daemon logs. If unset, the daemon writes to stderr",
			},
		},
	}
}
