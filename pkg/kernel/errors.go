package kernel

import "errors"

// Sentinel errors returned by the core. Per §7, these cover resource
// exhaustion and absent-operand conditions; contract violations (double
// reap, switch to a non-Ready thread, borrow re-entry, an unknown id out of
// the scheduler) are fatal assertions (panics) instead, since they cannot
// occur without a bug in a caller.
var (
	// ErrNoFreeID is returned by Create when the id allocator is full.
	ErrNoFreeID = errors.New("kernel: no free thread id available")

	// ErrUnknownID is returned by Join, Wake, and Kill for an id that does
	// not currently name a live thread (never created, or already
	// reaped).
	ErrUnknownID = errors.New("kernel: unknown thread id")

	// ErrNotBlocked is returned by Wake when the target thread is not
	// currently Blocked.
	ErrNotBlocked = errors.New("kernel: wake of a thread that is not blocked")

	// ErrCannotKillSelf is returned by Kill when asked to kill the calling
	// thread; Exit is the self-termination path.
	ErrCannotKillSelf = errors.New("kernel: a thread cannot kill itself, call Exit instead")
)
