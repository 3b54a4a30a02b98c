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

package kernel

import (
	"fmt"

	"github.com/kidneyos-dev/kidneyos/internal/klog"
	"github.com/kidneyos-dev/kidneyos/pkg/arch"
	"github.com/kidneyos-dev/kidneyos/pkg/hostio"
	"github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"
	"github.com/kidneyos-dev/kidneyos/pkg/kernel/sched"
)

// ThreadStarter adapts the Runtime to a Context Switcher backend. On the
// sim backend a fresh thread's first run reaches Runtime.runThread from
// the goroutine SimStarter.Launch starts. A bare-metal resume instead pops
// through the fixed trampoline addresses BuildStack wires into the stack
// image (§4.C); the i386 trampolines in this module are RET-only stubs and
// do not call Runtime.runThread.
type ThreadStarter interface {
	// Trampolines returns the fixed addresses BuildStack wires into a new
	// thread's initial stack image.
	Trampolines() arch.Trampolines

	// Launch arranges for tcr's entry function to actually begin running
	// once the scheduler first switches into it. Called once, from
	// Create, after tcr's stack image has been built and it has been
	// installed in the Table.
	Launch(rt *Runtime, tcr *ThreadControlRecord)
}

// switchRecord names the thread most recently switched away from, and the
// status it was switched away into, so the thread that eventually resumes
// can finish that thread's bookkeeping (§5's ordering guarantee). It is
// not the "to" side of whichever switch happens to resume us: arbitrarily
// many further switches can occur between a yield() call and its return,
// so only a runtime-global record -- not a caller's stale local variable
// -- can name the right thread.
type switchRecord struct {
	id     idset.ID
	status Status
	valid  bool
}

// RuntimeConfig configures a Runtime. Fields left zero take the defaults
// noted below, matching kernelcfg.Default's choices.
type RuntimeConfig struct {
	// IDCapacity bounds the number of simultaneously live threads.
	// Defaults to idset.DefaultCapacity.
	IDCapacity int

	// StackSize is the byte size allocated for each thread's stack.
	// Defaults to 4096.
	StackSize uintptr

	// Policy is the scheduler policy. Defaults to sched.NewFIFO().
	Policy sched.Policy

	// Switch performs the raw context switch. Required.
	Switch arch.SwitchFunc

	// Starter adapts thread creation to the Switch backend. Required.
	Starter ThreadStarter

	// StackAlloc allocates thread stack memory. Defaults to
	// hostio.ByteSliceStackAllocator{}.
	StackAlloc hostio.StackAllocator

	// IRQ models interrupt disable/enable. Defaults to hostio.NewSim().
	IRQ hostio.IRQ

	// Log receives structured diagnostics. Defaults to klog.New().
	Log *klog.Logger
}

// Runtime composes the Thread Table, a Scheduler policy, the Stack Builder,
// and a Context Switcher backend into create/yield/block/wake/exit/kill/
// join (§4.F). A Runtime is not safe for use from more than one OS thread
// concurrently: the single-processor cooperative model of §5 is exactly
// what lets its methods skip a mutex of their own, since the gate
// discipline of whichever Switcher backend is in use already guarantees
// only one logical thread's Go code runs at a time.
type Runtime struct {
	table      *Table
	policy     sched.Policy
	switchFunc arch.SwitchFunc
	starter    ThreadStarter
	stackAlloc hostio.StackAllocator
	irq        hostio.IRQ
	stackSize  uintptr
	log        *klog.Logger

	runningID idset.ID
	idleID    idset.ID

	lastSwitch switchRecord
}

// NewRuntime constructs the bootstrap thread (representing the calling
// goroutine's own execution, per the Design Notes' "kernel thread" -- it
// has no built stack of its own, since it is already running) and an idle
// thread, then returns a Runtime ready to Create further threads.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg.IDCapacity == 0 {
		cfg.IDCapacity = idset.DefaultCapacity
	}
	if cfg.StackSize == 0 {
		cfg.StackSize = 4096
	}
	if cfg.Policy == nil {
		cfg.Policy = sched.NewFIFO()
	}
	if cfg.Switch == nil {
		panic("kernel: RuntimeConfig.Switch is required")
	}
	if cfg.Starter == nil {
		panic("kernel: RuntimeConfig.Starter is required")
	}
	if cfg.StackAlloc == nil {
		cfg.StackAlloc = hostio.ByteSliceStackAllocator{}
	}
	if cfg.IRQ == nil {
		cfg.IRQ = hostio.NewSim()
	}
	if cfg.Log == nil {
		cfg.Log = klog.New()
	}

	rt := &Runtime{
		table:      NewTable(cfg.IDCapacity, cfg.Log),
		policy:     cfg.Policy,
		switchFunc: cfg.Switch,
		starter:    cfg.Starter,
		stackAlloc: cfg.StackAlloc,
		irq:        cfg.IRQ,
		stackSize:  cfg.StackSize,
		log:        cfg.Log,
	}

	kernelTCR := &ThreadControlRecord{
		Status:  Running,
		exitCh:  make(chan int, 1),
		OwnsStack: false,
	}
	kernelID, err := rt.table.Add(kernelTCR)
	if err != nil {
		rt.log.Panicf("kernel: bootstrap thread could not be registered: %v", err)
	}
	rt.runningID = kernelID

	idleID, err := rt.Create(idleEntry, rt, sched.NumPriorities-1)
	if err != nil {
		rt.log.Panicf("kernel: idle thread could not be created: %v", err)
	}
	// Idle never competes for the ready queue; yield's fallback path
	// selects it directly whenever nothing else is Ready.
	rt.policy.Remove(idleID)
	rt.idleID = idleID

	rt.log.Debugf("runtime initialized: kernel=%d idle=%d capacity=%d", kernelID, idleID, cfg.IDCapacity)
	return rt
}

// idleEntry is the idle thread's body: it has nothing of its own to do and
// simply yields the CPU back whenever it is run, standing in for a real
// kernel's HLT-until-interrupt loop (§9 Design Notes).
func idleEntry(arg any) int {
	rt := arg.(*Runtime)
	for {
		rt.YieldToReady()
	}
}

// RunningID returns the id of the currently running thread.
func (rt *Runtime) RunningID() idset.ID {
	return rt.runningID
}

// IdleID returns the id of the runtime's idle thread.
func (rt *Runtime) IdleID() idset.ID {
	return rt.idleID
}

// Create builds a new thread running entry(arg) at the given priority and
// makes it Ready, per §4.C/§4.F. The returned id is valid until the
// thread has exited and been reaped by the next thread to run, or until
// Kill releases it.
func (rt *Runtime) Create(entry EntryFunc, arg any, priority int) (idset.ID, error) {
	mem, base, err := rt.stackAlloc.AllocStack(rt.stackSize)
	if err != nil {
		return 0, fmt.Errorf("kernel: create: %w", err)
	}

	tcr := &ThreadControlRecord{
		StackBase: base,
		StackSize: rt.stackSize,
		Status:    Ready,
		Priority:  priority,
		OwnsStack: true,
		mem:       mem,
		entry:     entry,
		arg:       arg,
		exitCh:    make(chan int, 1),
	}

	id, err := rt.table.Add(tcr)
	if err != nil {
		rt.stackAlloc.FreeStack(mem, base, rt.stackSize)
		return 0, err
	}

	tr := rt.starter.Trampolines()
	tcr.StackPointer = arch.BuildStack(mem, base, uint32(id), 0, tr)

	rt.starter.Launch(rt, tcr)
	rt.policy.Push(id)

	rt.log.Debugf("create: tid=%d priority=%d", id, priority)
	return id, nil
}

// runThread is reached once per thread, from the goroutine the sim
// backend's SimStarter.Launch starts; the i386 trampolines do not call
// it. It finishes the bookkeeping for whichever thread most recently
// switched away to make room for this one, runs the thread's entry
// function, and passes its result to exit, after which the next thread to
// run reaps it.
func (rt *Runtime) runThread(tcr *ThreadControlRecord) {
	rt.afterSwitch()
	result := tcr.entry(tcr.arg)
	rt.exit(result)
}

// afterSwitch finishes the bookkeeping for whichever thread most recently
// switched away: restoring its borrowed Table slot if it is still live, or
// releasing its id entirely if it switched away Dying (§4.B/§5).
func (rt *Runtime) afterSwitch() {
	rec := rt.lastSwitch
	if !rec.valid {
		return
	}
	rt.lastSwitch.valid = false

	if rec.status == Dying {
		rt.reap(rec.id)
		return
	}
	rt.table.Restore(rec.id)
}

// reap finishes destroying a Dying thread: wakes any joiners with its
// exit status and releases its id and stack. id's record was already
// borrowed by the yield() call that switched away from it.
func (rt *Runtime) reap(id idset.ID) {
	tcr := rt.table.peekBorrowed(id)

	status := 0
	if tcr.ExitStatus != nil {
		status = *tcr.ExitStatus
	}
	// exitCh is buffered one-deep and drained by Join before re-sending,
	// so this never blocks regardless of how many joiners have already
	// read a previous value.
	select {
	case tcr.exitCh <- status:
	default:
	}

	rt.wakeWaiters(tcr)

	if tcr.OwnsStack {
		rt.stackAlloc.FreeStack(tcr.mem, tcr.StackBase, tcr.StackSize)
	}
	rt.table.ReleaseReserved(id)
	rt.log.Debugf("reaped: tid=%d status=%d", id, status)
}

// wakeWaiters transitions every thread blocked in Join on tcr back to
// Ready. Best-effort: a waiter that somehow is no longer Blocked (e.g. it
// was independently killed) is simply skipped.
func (rt *Runtime) wakeWaiters(tcr *ThreadControlRecord) {
	for _, w := range tcr.Waiters {
		_ = rt.Wake(w)
	}
	tcr.Waiters = nil
}

// yield is the shared engine behind YieldToReady, Block, and Exit: it
// flips the calling (running) thread's status to next, optionally makes it
// Ready again, picks the next thread to run, and performs the switch.
func (rt *Runtime) yield(next Status) {
	wasEnabled := rt.irq.SaveAndDisable()
	defer rt.irq.Restore(wasEnabled)

	fromID := rt.runningID
	fromTCR, err := rt.table.Get(fromID)
	if err != nil {
		rt.log.Panicf("kernel: running thread id %d not in table: %v", fromID, err)
	}
	fromTCR.Status = next
	if next == Ready && fromID != rt.idleID {
		// The idle thread is never itself a scheduling candidate; it is
		// yield's fallback when the policy has nothing else ready, not an
		// entry competing for a turn in it.
		rt.policy.Push(fromID)
	}

	toID, ok := rt.policy.Pop()
	if !ok {
		toID = rt.idleID
	}

	if toID == fromID {
		// Nothing else is Ready; undo the status flip we just made and
		// keep running, matching §8's "yield with an empty ready queue is
		// a no-op" property.
		fromTCR.Status = Running
		return
	}

	toTCR, err := rt.table.Get(toID)
	if err != nil {
		rt.log.Panicf("kernel: scheduled thread id %d not in table: %v", toID, err)
	}
	if toTCR.Status != Ready {
		rt.log.Panicf("kernel: switch to thread id %d in status %v, not ready", toID, toTCR.Status)
	}

	if _, err := rt.table.Borrow(fromID); err != nil {
		rt.log.Panicf("kernel: %v", err)
	}
	toTCR.Status = Running
	rt.runningID = toID
	rt.lastSwitch = switchRecord{id: fromID, status: next, valid: true}

	rt.switchFunc(&fromTCR.StackPointer, &toTCR.StackPointer)

	// We have been resumed. rt.runningID already names us: whichever
	// thread switched into us set it to our id immediately before calling
	// switchFunc. Finish bookkeeping for whoever switched away most
	// recently -- not necessarily toTCR above, since other switches may
	// have happened in the interim.
	rt.afterSwitch()
}

// YieldToReady voluntarily gives up the CPU without blocking: the calling
// thread is pushed back onto the ready queue (§4.F).
func (rt *Runtime) YieldToReady() {
	rt.yield(Ready)
}

// Block transitions the calling thread to Blocked. It does not return
// until some other thread calls Wake with this thread's id.
func (rt *Runtime) Block() {
	rt.yield(Blocked)
}

// Wake transitions a Blocked thread back to Ready and enqueues it.
// Returns ErrUnknownID if id does not name a live thread, ErrNotBlocked if
// it is not currently Blocked.
func (rt *Runtime) Wake(id idset.ID) error {
	wasEnabled := rt.irq.SaveAndDisable()
	defer rt.irq.Restore(wasEnabled)

	tcr, err := rt.table.Get(id)
	if err != nil {
		return err
	}
	if tcr.Status != Blocked {
		return ErrNotBlocked
	}
	tcr.Status = Ready
	rt.policy.Push(id)
	rt.log.Debugf("wake: tid=%d", id)
	return nil
}

// exit is the shared tail of Exit and a thread's natural return from its
// entry function: record the exit status, transition to Dying, and switch
// away for the last time.
func (rt *Runtime) exit(status int) {
	tcr, err := rt.table.Get(rt.runningID)
	if err != nil {
		rt.log.Panicf("kernel: exit of unknown running thread id %d: %v", rt.runningID, err)
	}
	s := status
	tcr.ExitStatus = &s
	rt.log.Debugf("exit: tid=%d status=%d", rt.runningID, status)
	rt.yield(Dying)
	rt.log.Panicf("kernel: a dying thread resumed after switching away for the last time")
}

// Exit terminates the calling thread with the given status, observable by
// a later Join. It never returns.
func (rt *Runtime) Exit(status int) {
	rt.exit(status)
}

// Kill forcibly terminates the thread named by id, which must not be the
// calling thread (use Exit for self-termination). A Ready thread is
// removed from the scheduler; a Blocked thread is simply transitioned;
// either way it becomes Dying with exit status 0, threads already waiting
// in Join are woken, and its stack and id are released before Kill
// returns, since the target is not running.
func (rt *Runtime) Kill(id idset.ID) error {
	if id == rt.runningID {
		return ErrCannotKillSelf
	}

	wasEnabled := rt.irq.SaveAndDisable()
	defer rt.irq.Restore(wasEnabled)

	tcr, err := rt.table.Get(id)
	if err != nil {
		return err
	}

	switch tcr.Status {
	case Ready:
		rt.policy.Remove(id)
	case Blocked:
	case Dying:
		return nil
	case Running:
		rt.log.Panicf("kernel: kill of the running thread should be unreachable (running == rt.runningID)")
	}

	killed := 0
	tcr.ExitStatus = &killed
	tcr.Status = Dying
	select {
	case tcr.exitCh <- killed:
	default:
	}
	rt.wakeWaiters(tcr)

	if tcr.OwnsStack {
		rt.stackAlloc.FreeStack(tcr.mem, tcr.StackBase, tcr.StackSize)
	}
	if _, err := rt.table.Borrow(id); err != nil {
		rt.log.Panicf("kernel: %v", err)
	}
	rt.table.ReleaseReserved(id)
	rt.log.Debugf("kill: tid=%d", id)
	return nil
}

// Join blocks the calling thread until id exits (naturally or via Kill),
// then returns its exit status. Join may be called more than once, and
// from more than one thread, for the same id: every caller observes the
// same status. Returns ErrUnknownID if id was never created or has
// already been reaped with no joiner ever having started waiting on it.
//
// A target that has not yet exited is not waited for by blocking the host
// goroutine outright (§5's single-processor model means nothing else
// would ever get a chance to run): the calling thread registers itself in
// the target's Waiters and calls Block, the same primitive any other
// blocking operation uses, so the scheduler keeps making progress while
// the wait is outstanding.
func (rt *Runtime) Join(id idset.ID) (int, error) {
	tcr, err := rt.table.Get(id)
	if err != nil {
		return 0, err
	}
	for {
		select {
		case status := <-tcr.exitCh:
			// Leave a copy behind for any other joiner racing us.
			select {
			case tcr.exitCh <- status:
			default:
			}
			rt.log.Debugf("join: tid=%d status=%d", id, status)
			return status, nil
		default:
		}
		tcr.Waiters = append(tcr.Waiters, rt.runningID)
		rt.Block()
	}
}

// ThreadSnapshot is a point-in-time diagnostic view of one thread, returned
// by Inspect for cmd/kidneyosctl's inspect subcommand.
type ThreadSnapshot struct {
	ID       idset.ID
	Status   Status
	Priority int
	IsIdle   bool
	IsKernel bool
}

// Inspect returns a snapshot of every live thread, for diagnostics only.
// Like Table.Snapshot, it must only be called between switches, never from
// inside one.
func (rt *Runtime) Inspect() []ThreadSnapshot {
	records := rt.table.Snapshot()
	out := make([]ThreadSnapshot, 0, len(records))
	for _, tcr := range records {
		out = append(out, ThreadSnapshot{
			ID:       tcr.ID,
			Status:   tcr.Status,
			Priority: tcr.Priority,
			IsIdle:   tcr.ID == rt.idleID,
			IsKernel: !tcr.OwnsStack,
		})
	}
	return out
}

// FinishBoot retires the bootstrap thread (the Runtime constructor's own
// caller) the way the literal design intends: it calls Exit and never
// returns. Callers that still have other host-process work to do after
// boot (the test suite, a hosted harness driving several scenarios from
// one goroutine) simply never call this and keep using the bootstrap
// thread's id as an ordinary thread; FinishBoot exists only for a harness
// that wants the one-shot "kernel thread is reaped after its first yield"
// behavior literally.
func (rt *Runtime) FinishBoot() {
	rt.Exit(0)
}
