// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/kidneyos-dev/kidneyos/internal/klog"
	"github.com/kidneyos-dev/kidneyos/pkg/kernelcfg"
)

// inspectCommand implements subcommands.Command for "inspect": boots a
// Runtime, creates a handful of worker threads that each block, and prints a
// table of the resulting Thread Table contents -- a read-only diagnostic,
// never part of the core's own operation set (§4.F).
type inspectCommand struct {
	workers int
}

func (*inspectCommand) Name() string     { return "inspect" }
func (*inspectCommand) Synopsis() string { return "boot the thread core and print the Thread Table" }
func (*inspectCommand) Usage() string {
	return "inspect [-workers N] - create N threads (each blocks) and print their Thread Table entries\n"
}

func (c *inspectCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.workers, "workers", 3, "number of worker threads to create before inspecting")
}

func (c *inspectCommand) Execute(_ context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	cfg := args[0].(kernelcfg.Config)
	log := args[1].(*klog.Logger)

	rt, tracker := boot(cfg, log)

	for i := 0; i < c.workers; i++ {
		_, err := createWithPriority(rt, tracker, func(any) int {
			rt.Block()
			return 0
		}, nil, 10+i)
		if err != nil {
			log.Panicf("inspect: create worker %d: %v", i, err)
		}
	}
	// Give every worker a chance to actually reach Block() so the table
	// reflects Blocked rather than Ready entries.
	for i := 0; i < c.workers; i++ {
		rt.YieldToReady()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TID\tSTATUS\tPRIORITY\tROLE")
	for _, t := range rt.Inspect() {
		role := "thread"
		switch {
		case t.IsKernel:
			role = "kernel"
		case t.IsIdle:
			role = "idle"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", t.ID, t.Status, t.Priority, role)
	}
	w.Flush()

	return subcommands.ExitSuccess
}
