package arch

// SwitchFunc performs a context switch per §4.D: it saves the caller's
// stack pointer into *from and resumes execution with the stack pointer
// loaded from *to. from and to point at the stack_pointer field of a
// thread control record; by the struct-layout invariant in §3, that field
// address is also the record's own address, so this package never needs to
// know the record's shape.
//
// Preconditions (caller's responsibility, not this package's): both
// pointers are valid for the call's duration, interrupts are disabled at
// entry, and the outgoing/incoming thread's status was already updated
// before the call.
type SwitchFunc func(from, to *uintptr)
