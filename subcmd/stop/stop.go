// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stop provides stop subcommand.
package stop

import (
	"fmt"
	"time"

	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/daemon"
)

// Cmd returns the Command for the `stop` subcommand.
func Cmd(cfg *config.Config) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "stop [-timeout duration]",
		ShortDesc: "stops the daemon",
		LongDesc:  "Stops the capture daemon, and waits until it removes the socket. Captured entries not dumped are lost.",
		CommandRun: func() subcommands.CommandRun {
			r := &run{cfg: cfg}
			r.Flags.DurationVar(&r.timeout, "timeout", daemon.DefaultStopTimeout, "time to wait for the daemon to stop")
			return r
		},
	}
}

type run struct {
	subcommands.CommandRunBase
	cfg     *config.Config
	timeout time.Duration
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 1
	}
	err := daemon.Stop(ctx, c.cfg.SockPath, c.timeout)
	if err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %v\n", a.GetName(), err)
		return 1
	}
	return 0
}
