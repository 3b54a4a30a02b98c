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

	"github.com/google/subcommands"

	"github.com/kidneyos-dev/kidneyos/internal/klog"
	"github.com/kidneyos-dev/kidneyos/pkg/hostio"
	"github.com/kidneyos-dev/kidneyos/pkg/kernelcfg"
)

// runCommand implements subcommands.Command for "run": boots a Runtime and
// drives n worker threads, each yielding for a number of quanta before
// exiting, through a RoundRobinTicker standing in for the bootloader's
// timer interrupt (§6).
type runCommand struct {
	workers int
	slices  int
}

func (*runCommand) Name() string     { return "run" }
func (*runCommand) Synopsis() string { return "boot the thread core and run a batch of worker threads" }
func (*runCommand) Usage() string {
	return "run [-workers N] [-slices N] - create N worker threads and drive them to completion\n"
}

func (c *runCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.workers, "workers", 4, "number of worker threads to create")
	f.IntVar(&c.slices, "slices", 3, "number of yields each worker performs before exiting")
}

func (c *runCommand) Execute(_ context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	cfg := args[0].(kernelcfg.Config)
	log := args[1].(*klog.Logger)

	rt, tracker := boot(cfg, log)

	results := make(chan int, c.workers)
	for i := 0; i < c.workers; i++ {
		worker := i
		_, err := createWithPriority(rt, tracker, func(arg any) int {
			for s := 0; s < c.slices; s++ {
				rt.YieldToReady()
			}
			results <- worker
			return worker
		}, nil, 10)
		if err != nil {
			log.Panicf("run: create worker %d: %v", worker, err)
		}
	}

	// A RoundRobinTicker, fed by a synthetic tick loop here, stands in for
	// the bootloader's timer interrupt handler (§6): every QuantumTicks
	// ticks it yields the calling (bootstrap) thread, giving the ready
	// queue's workers their turn. The bound below is generous enough for
	// every worker to exhaust its slices under FIFO or priority ordering.
	ticker := &hostio.RoundRobinTicker{Quantum: cfg.QuantumTicks, Yielder: rt}
	completed := 0
	const maxTicks = 1_000_000
	for i := 0; i < maxTicks && completed < c.workers; i++ {
		ticker.Tick()
		select {
		case <-results:
			completed++
		default:
		}
	}
	if completed < c.workers {
		log.Panicf("run: only %d/%d workers completed after %d ticks", completed, c.workers, maxTicks)
	}

	fmt.Printf("run: %d workers completed\n", c.workers)
	return subcommands.ExitSuccess
}
