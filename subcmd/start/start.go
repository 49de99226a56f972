// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package start provides start subcommand.
package start

import (
	"fmt"
	"os"

	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/daemon"
)

// Cmd returns the Command for the `start` subcommand.
func Cmd(cfg *config.Config, self string) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "start [-timeout duration]",
		ShortDesc: "starts the daemon in background",
		LongDesc:  "Starts the capture daemon in background, listening on $FAKECC_SOCK.",
		CommandRun: func() subcommands.CommandRun {
			r := &run{cfg: cfg, self: self}
			r.init()
			return r
		},
	}
}

type run struct {
	subcommands.CommandRunBase
	cfg  *config.Config
	self string

	opts daemon.Options
}

func (c *run) init() {
	c.Flags.DurationVar(&c.opts.Timeout, "timeout", daemon.DefaultStartTimeout, "time to wait for the daemon to start")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 1
	}
	c.opts.Self = c.self
	c.opts.SockPath = c.cfg.SockPath
	c.opts.Env = os.Environ()
	c.opts.LogFile = c.cfg.DaemonLog
	err := daemon.Start(ctx, c.opts)
	if err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %v\n", a.GetName(), err)
		return 1
	}
	return 0
}
