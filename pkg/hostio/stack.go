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

// Package hostio collects the external collaborators the thread core
// depends on but does not own: stack memory, interrupt control, and the
// timer tick. None of these are part of the core itself; they exist so the
// core can be exercised from an ordinary hosted Go process (this package)
// as well as from a freestanding kernel (which would supply its own
// implementations wired to the same interfaces).
package hostio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// StackAllocator allocates and frees the backing memory for thread stacks.
// Regions are not required to be zeroed beyond what the Stack Builder
// itself writes.
type StackAllocator interface {
	// AllocStack returns size bytes of memory, or an error if none is
	// available. The returned slice aliases the live backing memory; Base
	// is its low address for bookkeeping (invariant iv of the thread
	// control record).
	AllocStack(size uintptr) (mem []byte, base uintptr, err error)

	// FreeStack releases a region previously returned by AllocStack.
	FreeStack(mem []byte, base uintptr, size uintptr)
}

// ErrStackAllocFailed is returned by a StackAllocator when it cannot
// satisfy an allocation request.
var ErrStackAllocFailed = fmt.Errorf("hostio: stack allocation failed")

// MmapStackAllocator allocates thread stacks via anonymous mmap, suitable
// for running the thread core as a hosted harness (cmd/kidneyosctl) rather
// than bare metal.
type MmapStackAllocator struct{}

// AllocStack implements StackAllocator.
func (MmapStackAllocator) AllocStack(size uintptr) ([]byte, uintptr, error) {
	mem, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_STACK)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStackAllocFailed, err)
	}
	return mem, sliceAddr(mem), nil
}

// FreeStack implements StackAllocator.
func (MmapStackAllocator) FreeStack(mem []byte, _ uintptr, _ uintptr) {
	if err := unix.Munmap(mem); err != nil {
		// Releasing the stack of a thread that can no longer run it is not
		// recoverable; it indicates the host environment is in a bad state.
		panic(fmt.Sprintf("hostio: munmap failed: %v", err))
	}
}

// ByteSliceStackAllocator allocates stacks from the Go heap. It is used by
// the test suite and the arch.sim backend, where the "stack" is never
// actually executed by the host CPU and a real mmap is unnecessary
// overhead.
type ByteSliceStackAllocator struct{}

// AllocStack implements StackAllocator.
func (ByteSliceStackAllocator) AllocStack(size uintptr) ([]byte, uintptr, error) {
	mem := make([]byte, size)
	return mem, sliceAddr(mem), nil
}

// FreeStack implements StackAllocator.
func (ByteSliceStackAllocator) FreeStack(_ []byte, _ uintptr, _ uintptr) {
	// Left to the garbage collector; nothing to release explicitly.
}
