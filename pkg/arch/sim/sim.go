// Package sim provides a Switcher for running the thread core inside an
// ordinary hosted Go process (tests, cmd/kidneyosctl) rather than on bare
// metal. A real 32-bit context switch cannot safely hijack a goroutine's
// own stack, so this backend realizes the same cooperative handoff
// contract — exactly one logical thread runs at a time, switches are
// synchronous rendezvous points — with a gate channel per stack-pointer
// slot instead of a raw esp swap. It is the hosted analogue of the
// teacher's own pattern of giving a single contract (platform.Platform)
// more than one backend (ptrace, systrap, kvm) for different execution
// environments.
package sim

import "sync"

// Switcher implements arch.SwitchFunc via goroutine rendezvous.
type Switcher struct {
	mu    sync.Mutex
	gates map[*uintptr]chan struct{}
}

// New returns a ready Switcher.
func New() *Switcher {
	return &Switcher{gates: make(map[*uintptr]chan struct{})}
}

// Switch blocks the calling goroutine (standing in for the outgoing
// thread) until it is woken by a later Switch call that names its slot as
// the incoming ("to") side, and first wakes the goroutine waiting on slot
// to's gate. It has the same signature as arch.SwitchFunc so it can be plugged
// directly into kernel.NewRuntime.
func (s *Switcher) Switch(from, to *uintptr) {
	toGate := s.gate(to)
	fromGate := s.gate(from)

	// Hand control to the incoming thread's goroutine.
	toGate <- struct{}{}
	// Block until some later switch hands control back to us.
	<-fromGate
}

// Register creates (or resets) the gate for slot, to be called once when a
// thread is created so its first Switch-in has a listener already waiting.
// The caller must arrange for a goroutine to receive from the returned
// channel before any Switch names slot as the "to" side.
func (s *Switcher) Register(slot *uintptr) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[slot] = ch
	return ch
}

// Forget releases the gate for slot once its thread has been reaped.
func (s *Switcher) Forget(slot *uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.gates, slot)
}

func (s *Switcher) gate(slot *uintptr) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.gates[slot]
	if !ok {
		ch = make(chan struct{})
		s.gates[slot] = ch
	}
	return ch
}
