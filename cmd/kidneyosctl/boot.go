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
	"github.com/kidneyos-dev/kidneyos/internal/klog"
	"github.com/kidneyos-dev/kidneyos/pkg/kernel"
	"github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"
	"github.com/kidneyos-dev/kidneyos/pkg/kernel/sched"
	"github.com/kidneyos-dev/kidneyos/pkg/kernelcfg"
)

// priorityTracker records the priority each created thread was given, for
// the sched.Priority policy's lookup closure to consult. The core itself
// does not expose the Thread Table outside package kernel, so a harness
// that opts into priority scheduling keeps its own copy of what it passed
// to Create, exactly the way the runtime_test.go suite's
// TestPriorityPolicyRunsHighestPriorityFirst does.
type priorityTracker struct {
	priorities map[idset.ID]int
}

func newPriorityTracker() *priorityTracker {
	return &priorityTracker{priorities: make(map[idset.ID]int)}
}

func (p *priorityTracker) set(id idset.ID, priority int) {
	p.priorities[id] = priority
}

func (p *priorityTracker) lookup(id idset.ID) int {
	return p.priorities[id]
}

// boot constructs a Runtime over the hosted sim Context Switcher backend
// from a kernelcfg.Config. The returned priorityTracker is non-nil iff the
// configured policy is priority-based; callers must register each
// subsequently created thread's priority with it via set.
func boot(cfg kernelcfg.Config, log *klog.Logger) (*kernel.Runtime, *priorityTracker) {
	starter := kernel.NewSimStarter()

	var policy sched.Policy
	var tracker *priorityTracker
	switch cfg.Policy {
	case kernelcfg.PolicyPriority:
		tracker = newPriorityTracker()
		policy = sched.NewPriority(tracker.lookup)
	default:
		policy = sched.NewFIFO()
	}

	rt := kernel.NewRuntime(kernel.RuntimeConfig{
		IDCapacity: cfg.IDCapacity,
		StackSize:  uintptr(cfg.StackSize),
		Policy:     policy,
		Switch:     starter.Switcher.Switch,
		Starter:    starter,
		Log:        log,
	})
	return rt, tracker
}

// createWithPriority creates a thread and, if tracker is non-nil,
// registers its priority for the Priority policy's lookup.
func createWithPriority(rt *kernel.Runtime, tracker *priorityTracker, entry kernel.EntryFunc, arg any, priority int) (idset.ID, error) {
	id, err := rt.Create(entry, arg, priority)
	if err != nil {
		return 0, err
	}
	if tracker != nil {
		tracker.set(id, priority)
	}
	return id, nil
}
