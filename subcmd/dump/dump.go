// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package dump provides dump subcommand.
package dump

import (
	"fmt"

	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/fakecc/capture"
	"go.chromium.org/infra/build/fakecc/config"
)

// Cmd returns the Command for the `dump` subcommand.
func Cmd(cfg *config.Config) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "dump <path>",
		ShortDesc: "writes captured entries to a file",
		LongDesc: `Writes the compile commands captured so far to <path> as a compilation database.

The daemon keeps the entries, so dump may be called more than once.`,
		CommandRun: func() subcommands.CommandRun {
			r := &run{cfg: cfg}
			r.Flags.DurationVar(&r.client.DumpTimeout, "timeout", capture.DefaultDumpTimeout, "time to wait for the daemon to write the file")
			return r
		},
	}
}

type run struct {
	subcommands.CommandRunBase
	cfg    *config.Config
	client capture.Client
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if len(args) != 1 {
		fmt.Fprintf(a.GetErr(), "%s: dump needs exactly one path\n", a.GetName())
		return 1
	}
	c.client.SockPath = c.cfg.SockPath
	err := c.client.Dump(ctx, args[0])
	if err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %v\n", a.GetName(), err)
		return 1
	}
	return 0
}
