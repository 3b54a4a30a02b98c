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

// Package kernel implements KidneyOS's threading core: the thread control
// record, the table that owns it, the scheduler-facing borrow protocol,
// and the runtime that composes them into create/yield/block/wake/exit/
// kill/join.
package kernel

import "github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"

// Status is a thread's position in the lifecycle described by §3/§4.F.
type Status int

// The four states a thread control record can be in. A Dying thread is
// terminal; it is destroyed (reaped) by a different thread than itself.
const (
	Ready Status = iota
	Running
	Blocked
	Dying
)

// String implements fmt.Stringer for diagnostics and logging.
func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Dying:
		return "dying"
	default:
		return "unknown"
	}
}

// EntryFunc is the body of a thread created via Runtime.Create. It returns
// the value later observed by Join, mirroring §8 property 5: "create(f);
// join(id) yields exactly the code returned by f."
type EntryFunc func(arg any) int

// ThreadControlRecord is the authoritative per-thread datum described in
// §3. StackPointer must remain the first field: the rest of the module
// relies on a TCR's address being interchangeable with the address of its
// stack_pointer slot (the struct-layout invariant the Context Switcher
// depends on). Go's field-offset-zero guarantee for a struct's first field
// makes this automatic; there is no compiler layout pass to defeat it the
// way there might be in a language with reorderable struct layout.
type ThreadControlRecord struct {
	StackPointer uintptr

	ID         idset.ID
	StackBase  uintptr
	StackSize  uintptr
	Status     Status
	Priority   int
	ExitStatus *int
	OwnsStack  bool
	ParentID   *idset.ID
	Waiters    []idset.ID

	// mem is the backing memory for [StackBase, StackBase+StackSize),
	// retained so Create can write the stack image into it with
	// arch.BuildStack and the stack allocator can free it, without real
	// MMU-backed addressing. The sim switcher never reads it; the i386
	// Context Switcher dereferences StackPointer directly.
	mem []byte

	// entry and arg are what Runtime.runThread calls when the thread first
	// runs: a real 32-bit context switch resumes by popping an instruction
	// pointer out of the stack image built by arch.BuildStack, but a hosted
	// Go process cannot safely jump to an arbitrary address, so the sim
	// backend instead hosts each thread's execution in its own goroutine
	// and recovers the entry point and argument from here. exitCh carries
	// the exit status to Join.
	entry  EntryFunc
	arg    any
	exitCh chan int
}
