// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package daemoncmd provides daemon subcommand.
package daemoncmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/daemon"
	"go.chromium.org/infra/build/fakecc/o11y/clog"
)

// Cmd returns the Command for the `daemon` subcommand.
func Cmd(cfg *config.Config) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "daemon",
		ShortDesc: "runs the daemon in foreground",
		LongDesc:  "Runs the capture daemon in foreground until `fakecc stop` or an interrupt. `fakecc start` runs this in background.",
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			return &run{cfg: cfg}
		},
	}
}

type run struct {
	subcommands.CommandRunBase
	cfg *config.Config
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 1
	}
	// the daemon log is its only output.
	if logger := clog.FromContext(ctx); !logger.Enabled(log.InfoLevel) {
		logger.SetLevel(log.InfoLevel)
	}
	err := daemon.Serve(ctx, c.cfg.SockPath)
	if err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %v\n", a.GetName(), err)
		return 1
	}
	return 0
}
