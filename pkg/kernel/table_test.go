package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kidneyos-dev/kidneyos/internal/klog"
)

func TestTableAddGetRemove(t *testing.T) {
	tbl := NewTable(4, klog.New())

	tcr := &ThreadControlRecord{Status: Ready}
	id, err := tbl.Add(tcr)
	require.NoError(t, err)
	require.Equal(t, id, tcr.ID)

	got, err := tbl.Get(id)
	require.NoError(t, err)
	require.Same(t, tcr, got)

	removed, err := tbl.Remove(id)
	require.NoError(t, err)
	require.Same(t, tcr, removed)

	_, err = tbl.Get(id)
	require.ErrorIs(t, err, ErrUnknownID)
}

func TestTableAddFailsWhenFull(t *testing.T) {
	tbl := NewTable(1, klog.New())
	_, err := tbl.Add(&ThreadControlRecord{})
	require.NoError(t, err)

	_, err = tbl.Add(&ThreadControlRecord{})
	require.ErrorIs(t, err, ErrNoFreeID)
}

func TestTableGetUnknownID(t *testing.T) {
	tbl := NewTable(4, klog.New())
	_, err := tbl.Get(3)
	require.ErrorIs(t, err, ErrUnknownID)
}

func TestTableBorrowRestoreRoundTrip(t *testing.T) {
	tbl := NewTable(4, klog.New())
	tcr := &ThreadControlRecord{}
	id, err := tbl.Add(tcr)
	require.NoError(t, err)

	borrowed, err := tbl.Borrow(id)
	require.NoError(t, err)
	require.Same(t, tcr, borrowed)

	require.Panics(t, func() { tbl.Get(id) })
	require.Panics(t, func() { tbl.Borrow(id) })

	tbl.Restore(id)

	got, err := tbl.Get(id)
	require.NoError(t, err)
	require.Same(t, tcr, got)
}

func TestTableRestoreWithoutBorrowPanics(t *testing.T) {
	tbl := NewTable(4, klog.New())
	id, err := tbl.Add(&ThreadControlRecord{})
	require.NoError(t, err)
	require.Panics(t, func() { tbl.Restore(id) })
}

func TestTableReleaseReserved(t *testing.T) {
	tbl := NewTable(4, klog.New())
	id, err := tbl.Add(&ThreadControlRecord{})
	require.NoError(t, err)

	_, err = tbl.Borrow(id)
	require.NoError(t, err)

	tbl.ReleaseReserved(id)

	_, err = tbl.Get(id)
	require.ErrorIs(t, err, ErrUnknownID)

	// id should be reusable after release.
	id2, err := tbl.Add(&ThreadControlRecord{})
	require.NoError(t, err)
	require.Equal(t, id, id2)
}

func TestTableRemoveOfBorrowedPanics(t *testing.T) {
	tbl := NewTable(4, klog.New())
	id, err := tbl.Add(&ThreadControlRecord{})
	require.NoError(t, err)

	_, err = tbl.Borrow(id)
	require.NoError(t, err)

	require.Panics(t, func() { tbl.Remove(id) })
}

func TestTableCapacity(t *testing.T) {
	tbl := NewTable(7, klog.New())
	require.Equal(t, 7, tbl.Capacity())
}
