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
	"github.com/kidneyos-dev/kidneyos/internal/klog"
	"github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"
)

// slotState tracks what a Table may currently do with a given id. Go's
// garbage collector means the Table never truly has to give up the
// backing *ThreadControlRecord the way an unsafe-pointer implementation
// would; borrow/restore here is kept as a pure state-machine discipline so
// the contract violations §7 calls out (double borrow, restore without a
// matching borrow) are still caught by assertion, without requiring unsafe
// aliasing tricks to get the scoped-lend semantics §4.B describes.
type slotState int

const (
	slotFree slotState = iota
	slotOwned
	slotBorrowed
)

// Table is the sole owner of every live thread control record (§3). The
// scheduler never stores TCRs directly; it only ever sees ids and asks the
// Table to look them up.
type Table struct {
	ids   *idset.Set
	slots []*ThreadControlRecord
	state []slotState
	log   *klog.Logger
}

// NewTable returns an empty Table that can hold up to capacity threads
// simultaneously. log receives the same Panicf treatment as every other
// contract violation in this module (§7); it must not be nil.
func NewTable(capacity int, log *klog.Logger) *Table {
	return &Table{
		ids:   idset.New(capacity),
		slots: make([]*ThreadControlRecord, capacity),
		state: make([]slotState, capacity),
		log:   log,
	}
}

// Capacity returns the maximum number of simultaneously live threads.
func (t *Table) Capacity() int {
	return len(t.slots)
}

// Add allocates an id, installs tcr under it, and returns the id. Any id
// already set on tcr is overwritten.
func (t *Table) Add(tcr *ThreadControlRecord) (idset.ID, error) {
	id, ok := t.ids.Allocate()
	if !ok {
		return 0, ErrNoFreeID
	}
	tcr.ID = id
	t.slots[id] = tcr
	t.state[id] = slotOwned
	return id, nil
}

// Remove detaches and returns the record stored under id, releasing the id
// back to the allocator. It panics if id is currently borrowed: removal
// during a context switch is always a bug, never a legitimate race, since
// the core is single-processor and cooperative.
func (t *Table) Remove(id idset.ID) (*ThreadControlRecord, error) {
	tcr, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	if t.state[id] == slotBorrowed {
		t.log.Panicf("kernel: remove of a borrowed thread control record")
	}
	t.slots[id] = nil
	t.state[id] = slotFree
	t.ids.Release(id)
	return tcr, nil
}

// Get returns the record stored under id without changing its borrow
// state. It is the ordinary access path used for status flips, priority
// reads, and waiter bookkeeping; Borrow/Restore exist solely for the
// context-switch envelope and no other caller should use them (§4.B).
func (t *Table) Get(id idset.ID) (*ThreadControlRecord, error) {
	tcr, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	if t.state[id] == slotBorrowed {
		t.log.Panicf("kernel: access to a thread control record borrowed by the context switcher")
	}
	return tcr, nil
}

// Borrow lends out the record stored under id for the duration of a
// context switch. It panics on borrow re-entry (§7: a contract violation,
// not a runtime condition).
func (t *Table) Borrow(id idset.ID) (*ThreadControlRecord, error) {
	tcr, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	if t.state[id] == slotBorrowed {
		t.log.Panicf("kernel: borrow re-entry on an already-borrowed thread control record")
	}
	t.state[id] = slotBorrowed
	return tcr, nil
}

// Restore ends a borrow started by Borrow, returning the slot to owned.
// It panics if id was not borrowed.
func (t *Table) Restore(id idset.ID) {
	if int(id) >= len(t.slots) || t.state[id] != slotBorrowed {
		t.log.Panicf("kernel: restore without a matching borrow")
	}
	t.state[id] = slotOwned
}

// ReleaseReserved frees an id whose record was borrowed out and will never
// be restored: the outgoing side of a switch into a thread that is Dying,
// which by construction never calls switch again to return here (§4.B).
func (t *Table) ReleaseReserved(id idset.ID) {
	if int(id) >= len(t.slots) || t.state[id] != slotBorrowed {
		t.log.Panicf("kernel: release-reserved without a matching borrow")
	}
	t.slots[id] = nil
	t.state[id] = slotFree
	t.ids.Release(id)
}

// peekBorrowed returns the record stored under an id that the caller
// already knows to be borrowed (it borrowed it itself before a context
// switch), without disturbing that borrow state. It exists only for the
// Runtime's own post-switch bookkeeping, which must inspect the outgoing
// thread's record before deciding whether to Restore or ReleaseReserved
// it -- a second Borrow call would panic on the re-entry check.
func (t *Table) peekBorrowed(id idset.ID) *ThreadControlRecord {
	if int(id) >= len(t.slots) || t.state[id] != slotBorrowed {
		t.log.Panicf("kernel: peekBorrowed of an id that is not currently borrowed")
	}
	return t.slots[id]
}

// Snapshot returns every currently owned (i.e. not mid-switch) thread
// control record, for diagnostic use by cmd/kidneyosctl's inspect
// subcommand. It is not part of the core's own operation set (§4.F) and
// must never be called from inside a switch envelope.
func (t *Table) Snapshot() []*ThreadControlRecord {
	var out []*ThreadControlRecord
	for id, state := range t.state {
		if state == slotOwned {
			out = append(out, t.slots[id])
		}
	}
	return out
}

func (t *Table) lookup(id idset.ID) (*ThreadControlRecord, error) {
	if int(id) >= len(t.slots) || t.state[id] == slotFree {
		return nil, ErrUnknownID
	}
	return t.slots[id], nil
}
