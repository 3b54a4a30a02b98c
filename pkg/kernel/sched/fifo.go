package sched

import (
	"container/list"

	"github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"
)

// FIFO is the default Policy: a plain run queue, first ready, first run.
type FIFO struct {
	l         *list.List
	positions map[idset.ID]*list.Element
}

// NewFIFO returns an empty FIFO policy.
func NewFIFO() *FIFO {
	return &FIFO{
		l:         list.New(),
		positions: make(map[idset.ID]*list.Element),
	}
}

// Push implements Policy.
func (f *FIFO) Push(id idset.ID) {
	if _, ok := f.positions[id]; ok {
		panic("sched: push of an id already in the FIFO ready queue")
	}
	f.positions[id] = f.l.PushBack(id)
}

// Pop implements Policy.
func (f *FIFO) Pop() (idset.ID, bool) {
	front := f.l.Front()
	if front == nil {
		return 0, false
	}
	f.l.Remove(front)
	id := front.Value.(idset.ID)
	delete(f.positions, id)
	return id, true
}

// Remove implements Policy.
func (f *FIFO) Remove(id idset.ID) {
	elem, ok := f.positions[id]
	if !ok {
		return
	}
	f.l.Remove(elem)
	delete(f.positions, id)
}
