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

// Package arch builds the initial stack image of a freshly created thread
// and declares the context-switch contract the rest of the thread core
// depends on. It knows nothing about the Thread Table or the scheduler;
// it only deals in raw addresses, matching the layering of the teacher's
// own pkg/sentry/arch, which is likewise ignorant of kernel.Task.
package arch

import (
	"encoding/binary"
	"fmt"
)

// WordSize is the machine word size the stack image is built for: four
// bytes, matching the spec's 32-bit x86 target and the four callee-saved
// general registers (ebp, ebx, esi, edi) the Switcher preserves.
const WordSize = 4

// FrameWords is the total size, in words, of the Run, Prepare, and Switcher
// frames BuildStack writes: entry, arg, retaddr=0 (Run, 3 words) +
// runThread (Prepare, 1 word) + prepareThread, edi, esi, ebx, ebp
// (Switcher, 5 words).
const FrameWords = 9

var byteOrder = binary.LittleEndian

// Trampolines names the two fixed entry points a built stack resumes into.
// PrepareThreadAddr fills the Switcher frame's instruction-pointer slot:
// it is the address the Switcher's own final pop+ret resumes into on a
// thread's first run. RunThreadAddr fills the Prepare frame's single slot
// and is reached when Prepare Thread returns.
type Trampolines struct {
	PrepareThreadAddr uint32
	RunThreadAddr     uint32
}

// BuildStack lays out the Run, Prepare, and Switcher frames described in
// §4.C, from high address to low, into mem (which must alias the memory at
// [base, base+len(mem))). It returns the stack pointer to store in the new
// thread's TCR: the lowest address of the image.
//
// entryAddr and argAddr are opaque words as far as this package is
// concerned. Package kernel's Create passes the new thread's id as
// entryAddr and zero as argAddr; its runThread takes the entry function and
// argument from the thread control record, not from these words.
func BuildStack(mem []byte, base uintptr, entryAddr, argAddr uint32, tr Trampolines) uintptr {
	if len(mem) < FrameWords*WordSize {
		panic(fmt.Sprintf("arch: stack region of %d bytes too small for a %d-word initial image", len(mem), FrameWords))
	}
	top := len(mem)

	// Run frame, high to low: entry function, its argument, a zero return
	// address so an accidental return out of the entry function traps
	// rather than running into whatever follows on the stack.
	top -= WordSize
	putWord(mem, top, entryAddr)
	top -= WordSize
	putWord(mem, top, argAddr)
	top -= WordSize
	putWord(mem, top, 0)

	// Prepare frame: the single instruction pointer slot Run Thread is
	// reached through.
	top -= WordSize
	putWord(mem, top, tr.RunThreadAddr)

	// Switcher frame: instruction pointer highest (read last, by the
	// Switcher's ret, once the four callee-saved registers below it have
	// been popped), then the four callee-saved registers, zeroed so the
	// first resume restores a clean register file. The returned stack
	// pointer is the lowest address in this frame -- the first word
	// Switch's POPL DI reads -- matching the order Switch itself pops
	// them in (DI, SI, BX, BP) before its final RET.
	top -= WordSize
	putWord(mem, top, tr.PrepareThreadAddr)
	for i := 0; i < 4; i++ { // popped DI, SI, BX, BP, in that order
		top -= WordSize
		putWord(mem, top, 0)
	}

	return base + uintptr(top)
}

func putWord(mem []byte, offset int, v uint32) {
	byteOrder.PutUint32(mem[offset:offset+WordSize], v)
}

func getWord(mem []byte, offset int) uint32 {
	return byteOrder.Uint32(mem[offset : offset+WordSize])
}

// SwitcherFrame is the decoded form of the lowest frame of a stack image,
// as the Switcher itself would observe it on a thread's first resume.
type SwitcherFrame struct {
	PrepareThreadAddr uint32
	CalleeSaved       [4]uint32 // edi, esi, ebx, ebp, in pop order
}

// ReadSwitcherFrame decodes the Switcher frame at the top of a stack image
// built by BuildStack, for use by tests that verify the frame layout
// without a real CPU (§8 scenario S6: "verifiable by a mocked switcher
// that replays the pop sequence"). stackPointer is the lowest address of
// the frame -- the first word Switch's POPL DI would read.
func ReadSwitcherFrame(mem []byte, stackPointer, base uintptr) SwitcherFrame {
	off := int(stackPointer - base)
	var f SwitcherFrame
	for i := 0; i < 4; i++ {
		f.CalleeSaved[i] = getWord(mem, off+i*WordSize)
	}
	f.PrepareThreadAddr = getWord(mem, off+4*WordSize)
	return f
}

// ReadRunFrame decodes the Run frame that sits just above the Prepare
// frame, for the same test-only purpose as ReadSwitcherFrame.
func ReadRunFrame(mem []byte, stackPointer, base uintptr) (entryAddr, argAddr uint32) {
	off := int(stackPointer-base) + 4*WordSize /* callee-saved */ + WordSize /* PrepareThreadAddr */ + WordSize /* RunThreadAddr */ + WordSize /* retaddr=0 */
	argAddr = getWord(mem, off)
	entryAddr = getWord(mem, off+WordSize)
	return
}
