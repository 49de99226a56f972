// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package install provides install subcommand.
package install

import (
	"fmt"

	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/fakecc/config"
	"go.chromium.org/infra/build/fakecc/o11y/clog"
	"go.chromium.org/infra/build/fakecc/session"
)

// Cmd returns the Command for the `install` subcommand.
func Cmd(cfg *config.Config, self string) *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "install",
		ShortDesc: "installs the shims in a new directory",
		LongDesc: `Installs the shims in a new temporary directory, and prints shell commands to use them.

 $ eval "$(fakecc install)"
 $ fakecc start
 $ make
 $ fakecc dump compile_commands.json
 $ fakecc stop
`,
		CommandRun: func() subcommands.CommandRun {
			return &run{cfg: cfg, self: self}
		},
	}
}

type run struct {
	subcommands.CommandRunBase
	cfg  *config.Config
	self string
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 1
	}
	shims, err := session.Install(c.self)
	if err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %v\n", a.GetName(), err)
		return 1
	}
	clog.Infof(ctx, "installed shims in %s", shims.Dir)
	err = shims.WriteExports(a.GetOut(), c.cfg.SockPath)
	if err != nil {
		fmt.Fprintf(a.GetErr(), "%s: %v\n", a.GetName(), err)
		return 1
	}
	return 0
}
