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

// Command kidneyosctl drives the thread core from an ordinary hosted Go
// process, standing in for the bootloader environment the core is
// otherwise built to run under (§1). It boots a Runtime over the sim
// Context Switcher backend, then hands off to one of the run, scenario, or
// inspect subcommands.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/kidneyos-dev/kidneyos/internal/klog"
	"github.com/kidneyos-dev/kidneyos/pkg/kernelcfg"
)

var configPath = flag.String("config", "", "path to a kidneyosctl TOML configuration file; if unset, built-in defaults are used")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCommand{}, "")
	subcommands.Register(&scenarioCommand{}, "")
	subcommands.Register(&inspectCommand{}, "")

	flag.Parse()

	log := klog.New()

	cfg := kernelcfg.Default()
	if *configPath != "" {
		loaded, err := kernelcfg.Load(*configPath)
		if err != nil {
			log.Panicf("loading config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		log.Panicf("invalid config: %v", err)
	}

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx, cfg, log)))
}
