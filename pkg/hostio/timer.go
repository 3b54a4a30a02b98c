package hostio

// Ticker is installed by higher layers (outside the thread core, per §1's
// Non-goals on preemption policy) to receive the timer tick and decide
// whether to end the current thread's slice.
type Ticker interface {
	// Tick is called from the timer interrupt handler. A policy that
	// wants to preempt the running thread calls Yielder.YieldToReady from
	// within this method.
	Tick()
}

// Yielder is the minimal surface a Ticker needs from the thread core; it is
// satisfied by *kernel.Runtime. Kept separate from kernel.Runtime's full
// interface so a Ticker implementation does not need to import the kernel
// package's internals beyond this one method.
type Yielder interface {
	YieldToReady()
}

// RoundRobinTicker calls YieldToReady every N ticks, a minimal end-of-slice
// policy built on top of the core's yield primitive -- not itself part of
// the core (§1 Non-goals: "preemption policy").
type RoundRobinTicker struct {
	Quantum int
	Yielder Yielder

	count int
}

// Tick implements Ticker.
func (r *RoundRobinTicker) Tick() {
	r.count++
	if r.count < r.Quantum {
		return
	}
	r.count = 0
	r.Yielder.YieldToReady()
}
