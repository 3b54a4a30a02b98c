package sched

import "github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"

// NumPriorities bounds the priority domain a Priority policy accepts,
// matching the small fixed-size priority classes the teacher's CPU/cgroup
// scheduling domains use rather than an unbounded integer range.
const NumPriorities = 64

// PriorityLookup returns the current priority (0 highest .. NumPriorities-1
// lowest) of a thread id, so the policy itself never needs to know the
// Thread Table's shape. The caller supplies it to NewPriority; the
// Runtime does not pass the priority given to Create through to it.
type PriorityLookup func(id idset.ID) int

// Priority is a bucket-array policy: FIFO within each of NumPriorities
// buckets, buckets consulted highest-priority (lowest number) first.
// Resolves the distillation's dropped "richer scheduling policy" open
// question: opt in via kernelcfg, FIFO remains the default.
type Priority struct {
	lookup  PriorityLookup
	buckets [NumPriorities]*FIFO
}

// NewPriority returns an empty Priority policy that consults lookup to
// place (but not re-evaluate) an id's bucket at Push time.
func NewPriority(lookup PriorityLookup) *Priority {
	p := &Priority{lookup: lookup}
	for i := range p.buckets {
		p.buckets[i] = NewFIFO()
	}
	return p
}

func (p *Priority) bucketOf(prio int) int {
	if prio < 0 {
		return 0
	}
	if prio >= NumPriorities {
		return NumPriorities - 1
	}
	return prio
}

// Push implements Policy.
func (p *Priority) Push(id idset.ID) {
	b := p.bucketOf(p.lookup(id))
	p.buckets[b].Push(id)
}

// Pop implements Policy.
func (p *Priority) Pop() (idset.ID, bool) {
	for _, bucket := range p.buckets {
		if id, ok := bucket.Pop(); ok {
			return id, true
		}
	}
	return 0, false
}

// Remove implements Policy. Since the id's priority may have changed since
// it was pushed, every bucket is checked.
func (p *Priority) Remove(id idset.ID) {
	for _, bucket := range p.buckets {
		bucket.Remove(id)
	}
}
