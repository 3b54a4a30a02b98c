package arch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBuildStackSwitcherFrameReplaysIntoPrepareThread is scenario S6: the
// Stack Builder produces an image such that a Context Switcher invoked
// with a zeroed callee-saved set returns into Prepare Thread. This mocks
// the pop sequence the real asm Switcher performs (POPL DI, SI, BX, BP,
// then RET) without a CPU: decode the frame and assert the four
// callee-saved words are zero and the word RET would consume next is the
// Prepare Thread address.
func TestBuildStackSwitcherFrameReplaysIntoPrepareThread(t *testing.T) {
	mem := make([]byte, 256)
	base := uintptr(0x1000)
	tr := Trampolines{PrepareThreadAddr: 0xdeadbeef, RunThreadAddr: 0xcafef00d}

	sp := BuildStack(mem, base, 0x1111, 0x2222, tr)

	frame := ReadSwitcherFrame(mem, sp, base)
	require.Equal(t, [4]uint32{0, 0, 0, 0}, frame.CalleeSaved, "a fresh thread's callee-saved registers must be zeroed")
	require.Equal(t, tr.PrepareThreadAddr, frame.PrepareThreadAddr, "RET must land in Prepare Thread after the four pops")
}

func TestBuildStackRunFrameCarriesEntryAndArg(t *testing.T) {
	mem := make([]byte, 256)
	base := uintptr(0x2000)
	tr := Trampolines{PrepareThreadAddr: 1, RunThreadAddr: 2}

	sp := BuildStack(mem, base, 0xaaaa, 0xbbbb, tr)

	entryAddr, argAddr := ReadRunFrame(mem, sp, base)
	require.Equal(t, uint32(0xaaaa), entryAddr)
	require.Equal(t, uint32(0xbbbb), argAddr)
}

func TestBuildStackReturnsLowestAddressOfImage(t *testing.T) {
	mem := make([]byte, FrameWords*WordSize)
	base := uintptr(0x4000)

	sp := BuildStack(mem, base, 0, 0, Trampolines{})

	require.Equal(t, base, sp, "a fully packed image's stack pointer must be the region's base address")
}

func TestBuildStackPanicsOnUndersizedRegion(t *testing.T) {
	mem := make([]byte, FrameWords*WordSize-1)
	require.Panics(t, func() {
		BuildStack(mem, 0, 0, 0, Trampolines{})
	})
}
