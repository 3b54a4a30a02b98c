package kernel

import (
	"github.com/kidneyos-dev/kidneyos/pkg/arch"
	"github.com/kidneyos-dev/kidneyos/pkg/arch/sim"
)

// SimStarter is the ThreadStarter for a Runtime driven by an
// arch/sim.Switcher: each thread is hosted on its own goroutine, gated by
// the Switcher so that exactly one is ever unblocked at a time, preserving
// the single-logical-processor model of §5 even though the host process
// itself is a full multi-goroutine Go runtime.
type SimStarter struct {
	Switcher *sim.Switcher
}

// NewSimStarter returns a SimStarter over a fresh sim.Switcher, suitable
// for passing both as RuntimeConfig.Switch (via Switcher.Switch) and as
// RuntimeConfig.Starter.
func NewSimStarter() *SimStarter {
	return &SimStarter{Switcher: sim.New()}
}

// Trampolines implements ThreadStarter. The sim backend never interprets
// the built stack image's bytes -- only the gate identity (the address of
// tcr.StackPointer) matters -- so it returns zero for both addresses.
func (s *SimStarter) Trampolines() arch.Trampolines {
	return arch.Trampolines{}
}

// Launch implements ThreadStarter: it registers tcr's gate with the
// Switcher and spawns the goroutine that will host its execution once
// some thread's yield() names it as the switch target.
func (s *SimStarter) Launch(rt *Runtime, tcr *ThreadControlRecord) {
	gate := s.Switcher.Register(&tcr.StackPointer)
	go func() {
		<-gate
		rt.runThread(tcr)
	}()
}
