// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package run provides run subcommand.
package run

import (
	"fmt"
	"os"

	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/session"
)

// Cmd returns the Command for the `run` subcommand.
func Cmd(cfg *config.Config, self string) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "run [-o path] <command> [args...]",
		ShortDesc: "runs a build and writes compile_commands.json",
		LongDesc: `Runs a build command with the shims, and writes the captured compile commands.

 $ fakecc run make -j8

Compile steps are not compiled, so the build may fail after compiles
unless the needed objects are compiled with FAKECC_PASS or FAKECC_PASS_REC.
It exits with the exit code of the command.`,
		CommandRun: func() subcommands.CommandRun {
			r := &runRun{cfg: cfg, self: self}
			r.Flags.StringVar(&r.output, "o", session.DefaultOutput, "compilation database to write")
			return r
		},
	}
}

type runRun struct {
	subcommands.CommandRunBase
	cfg    *config.Config
	self   string
	output string
}

func (c *runRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if len(args) == 0 {
		fmt.Fprintf(a.GetErr(), "%s: no command to run\n", a.GetName())
		return 1
	}
	code, err := session.Run(ctx, session.Options{
		Self:      c.self,
		SockPath:  c.cfg.SockPath,
		Env:       os.Environ(),
		Output:    c.output,
		DaemonLog: c.cfg.DaemonLog,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}, args)
	if err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %v\n", a.GetName(), err)
	}
	return code
}
