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
	"github.com/kidneyos-dev/kidneyos/pkg/kernelcfg"
)

// scenarioCommand implements subcommands.Command for "scenario": it drives
// one of the named scenarios from §8 against a freshly booted Runtime and
// reports the outcome, the same scenarios pkg/kernel/scenario_test.go
// checks under go test, exposed here for a human to run ad hoc.
type scenarioCommand struct {
	name string
}

func (*scenarioCommand) Name() string     { return "scenario" }
func (*scenarioCommand) Synopsis() string { return "run one of the named thread-core scenarios" }
func (*scenarioCommand) Usage() string {
	return "scenario -name <s1|s2|s3|s4|s5> - run a named scenario against a fresh Runtime\n"
}

func (c *scenarioCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "s1", "scenario to run: s1 (create/exit/join/reuse), s2 (fifo interleave), s3 (block/wake/join), s4 (join-after-reap), s5 (drain-to-idle)")
}

func (c *scenarioCommand) Execute(_ context.Context, _ *flag.FlagSet, args ...any) subcommands.ExitStatus {
	cfg := args[0].(kernelcfg.Config)
	log := args[1].(*klog.Logger)

	rt, tracker := boot(cfg, log)

	switch c.name {
	case "s1":
		a, err := createWithPriority(rt, tracker, func(any) int { return 7 }, nil, 10)
		if err != nil {
			log.Panicf("scenario s1: create: %v", err)
		}
		status, err := rt.Join(a)
		if err != nil {
			log.Panicf("scenario s1: join: %v", err)
		}
		fmt.Printf("s1: thread %d exited %d\n", a, status)

	case "s2":
		trace := make([]string, 0, 9)
		done := make(chan struct{}, 2)
		mk := func(who string) func(any) int {
			return func(any) int {
				for i := 0; i < 3; i++ {
					trace = append(trace, who)
					rt.YieldToReady()
				}
				done <- struct{}{}
				return 0
			}
		}
		if _, err := createWithPriority(rt, tracker, mk("A"), nil, 10); err != nil {
			log.Panicf("scenario s2: create A: %v", err)
		}
		if _, err := createWithPriority(rt, tracker, mk("B"), nil, 10); err != nil {
			log.Panicf("scenario s2: create B: %v", err)
		}
		for i := 0; i < 3; i++ {
			trace = append(trace, "main")
			rt.YieldToReady()
		}
		// A and B are still Ready inside their last yield; give them the CPU
		// so they can finish before waiting on done.
		rt.YieldToReady()
		<-done
		<-done
		fmt.Printf("s2: trace = %v\n", trace)

	case "s3":
		a, err := createWithPriority(rt, tracker, func(any) int {
			rt.Block()
			return 0
		}, nil, 10)
		if err != nil {
			log.Panicf("scenario s3: create: %v", err)
		}
		rt.YieldToReady()
		if err := rt.Wake(a); err != nil {
			log.Panicf("scenario s3: wake: %v", err)
		}
		rt.YieldToReady()
		status, err := rt.Join(a)
		if err != nil {
			log.Panicf("scenario s3: join: %v", err)
		}
		fmt.Printf("s3: thread %d exited %d after block/wake\n", a, status)

	case "s4":
		a, err := createWithPriority(rt, tracker, func(any) int { return 42 }, nil, 10)
		if err != nil {
			log.Panicf("scenario s4: create: %v", err)
		}
		rt.YieldToReady()
		rt.YieldToReady()
		_, err = rt.Join(a)
		fmt.Printf("s4: join of reaped thread %d returned error: %v\n", a, err)

	case "s5":
		const n = 127
		for round := 0; round < 2; round++ {
			for i := 0; i < n; i++ {
				id, err := createWithPriority(rt, tracker, func(any) int { return 0 }, nil, 10)
				if err != nil {
					log.Panicf("scenario s5: round %d create %d: %v", round, i, err)
				}
				if _, err := rt.Join(id); err != nil {
					log.Panicf("scenario s5: round %d join %d: %v", round, i, err)
				}
			}
		}
		fmt.Printf("s5: drained two batches of %d threads, ids fully reused\n", n)

	default:
		fmt.Printf("scenario: unknown scenario %q\n", c.name)
		return subcommands.ExitUsageError
	}

	return subcommands.ExitSuccess
}
