package sched

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"
)

func TestFIFOOrder(t *testing.T) {
	f := NewFIFO()
	f.Push(idset.ID(1))
	f.Push(idset.ID(2))
	f.Push(idset.ID(3))

	id, ok := f.Pop()
	require.True(t, ok)
	require.Equal(t, idset.ID(1), id)

	id, ok = f.Pop()
	require.True(t, ok)
	require.Equal(t, idset.ID(2), id)

	f.Push(idset.ID(4))

	id, ok = f.Pop()
	require.True(t, ok)
	require.Equal(t, idset.ID(3), id)

	id, ok = f.Pop()
	require.True(t, ok)
	require.Equal(t, idset.ID(4), id)

	_, ok = f.Pop()
	require.False(t, ok)
}

func TestFIFORemove(t *testing.T) {
	f := NewFIFO()
	f.Push(idset.ID(1))
	f.Push(idset.ID(2))
	f.Push(idset.ID(3))

	f.Remove(idset.ID(2))

	id, ok := f.Pop()
	require.True(t, ok)
	require.Equal(t, idset.ID(1), id)

	id, ok = f.Pop()
	require.True(t, ok)
	require.Equal(t, idset.ID(3), id)

	_, ok = f.Pop()
	require.False(t, ok)
}

func TestFIFORemoveOfUnqueuedIDIsNoop(t *testing.T) {
	f := NewFIFO()
	require.NotPanics(t, func() { f.Remove(idset.ID(42)) })
}

func TestFIFOPushOfAlreadyQueuedIDPanics(t *testing.T) {
	f := NewFIFO()
	f.Push(idset.ID(1))
	require.Panics(t, func() { f.Push(idset.ID(1)) })
}
