//go:build 386
// +build 386

package kernel

import (
	"github.com/kidneyos-dev/kidneyos/pkg/arch"
	"github.com/kidneyos-dev/kidneyos/pkg/arch/i386"
)

// NullStarter is the ThreadStarter for the bare-metal i386 backend: the
// stack image built by BuildStack already holds the i386 trampoline
// addresses a fresh thread's first resume pops through, so there is
// nothing further to arrange at Create time. Those trampolines are
// RET-only stubs in this module; nothing on this backend calls
// Runtime.runThread. Kept
// in package kernel, rather than package i386, so it can name
// *ThreadControlRecord and *Runtime directly without an import cycle.
type NullStarter struct{}

// Trampolines implements ThreadStarter.
func (NullStarter) Trampolines() arch.Trampolines {
	return i386.Trampolines()
}

// Launch implements ThreadStarter.
func (NullStarter) Launch(*Runtime, *ThreadControlRecord) {}
