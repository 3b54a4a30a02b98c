// Package sched implements the ready-queue policies the Thread Runtime
// consults on every yield: push the outgoing thread (if still runnable),
// pop the next one to run. The package knows nothing about thread control
// records or the Table; it deals purely in ids, the same separation the
// teacher keeps between its scheduling domain and task bookkeeping.
package sched

import "github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"

// Policy decides run order among Ready threads (§4.E).
type Policy interface {
	// Push makes id eligible to run.
	Push(id idset.ID)

	// Pop removes and returns the next id to run, or false if no thread is
	// Ready.
	Pop() (idset.ID, bool)

	// Remove drops id from the ready set without running it, used when a
	// thread is killed while still Ready.
	Remove(id idset.ID)
}
