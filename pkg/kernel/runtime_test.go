package kernel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"
	"github.com/kidneyos-dev/kidneyos/pkg/kernel/sched"
)

// newTestRuntime returns a Runtime wired to the hosted sim backend, the
// configuration every test in this file and in scenario_test.go shares.
func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	starter := NewSimStarter()
	return NewRuntime(RuntimeConfig{
		IDCapacity: 32,
		StackSize:  4096,
		Switch:     starter.Switcher.Switch,
		Starter:    starter,
	})
}

func TestCreateAndJoinReturnsExitStatus(t *testing.T) {
	rt := newTestRuntime(t)

	id, err := rt.Create(func(arg any) int {
		return 42
	}, nil, 10)
	require.NoError(t, err)

	status, err := rt.Join(id)
	require.NoError(t, err)
	require.Equal(t, 42, status)
}

// TestJoinIsRepeatableAndMultiReader exercises several waiters on the same
// target id. Joiners are themselves kernel threads (created via Create),
// not raw host goroutines: the single-processor model means only a
// legitimate kernel thread is allowed to call Runtime methods at all.
func TestJoinIsRepeatableAndMultiReader(t *testing.T) {
	rt := newTestRuntime(t)

	id, err := rt.Create(func(arg any) int { return 7 }, nil, 10)
	require.NoError(t, err)

	const numJoiners = 4
	results := make(chan int, numJoiners)
	joinerIDs := make([]idset.ID, numJoiners)
	for i := 0; i < numJoiners; i++ {
		jid, err := rt.Create(func(arg any) int {
			status, err := rt.Join(id)
			require.NoError(t, err)
			results <- status
			return status
		}, nil, 10)
		require.NoError(t, err)
		joinerIDs[i] = jid
	}

	rt.YieldToReady()

	for i := 0; i < numJoiners; i++ {
		require.Equal(t, 7, <-results)
	}
	for _, jid := range joinerIDs {
		_, err := rt.Join(jid)
		require.NoError(t, err)
	}
}

func TestJoinUnknownIDReturnsError(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Join(999)
	require.ErrorIs(t, err, ErrUnknownID)
}

func TestYieldToReadyRunsReadyThreads(t *testing.T) {
	rt := newTestRuntime(t)

	var order []int
	var mu sync.Mutex
	record := func(n int) {
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
	}

	done := make(chan struct{}, 2)
	mk := func(n int) EntryFunc {
		return func(arg any) int {
			record(n)
			done <- struct{}{}
			return n
		}
	}

	id1, err := rt.Create(mk(1), nil, 10)
	require.NoError(t, err)
	id2, err := rt.Create(mk(2), nil, 10)
	require.NoError(t, err)

	rt.YieldToReady()
	<-done
	<-done

	s1, err := rt.Join(id1)
	require.NoError(t, err)
	require.Equal(t, 1, s1)
	s2, err := rt.Join(id2)
	require.NoError(t, err)
	require.Equal(t, 2, s2)

	require.ElementsMatch(t, []int{1, 2}, order)
}

func TestBlockAndWake(t *testing.T) {
	rt := newTestRuntime(t)

	woke := make(chan struct{})
	id, err := rt.Create(func(arg any) int {
		rt.Block()
		close(woke)
		return 5
	}, nil, 10)
	require.NoError(t, err)

	// Give the blocked thread a chance to actually reach Block() by
	// yielding to it once; it will not complete until woken.
	rt.YieldToReady()

	select {
	case <-woke:
		t.Fatal("thread ran past Block before being woken")
	default:
	}

	require.NoError(t, rt.Wake(id))

	status, err := rt.Join(id)
	require.NoError(t, err)
	require.Equal(t, 5, status)

	select {
	case <-woke:
	default:
		t.Fatal("woken thread never completed")
	}
}

func TestWakeOfReapedThreadReturnsUnknownID(t *testing.T) {
	rt := newTestRuntime(t)

	id, err := rt.Create(func(arg any) int {
		return 0
	}, nil, 10)
	require.NoError(t, err)
	_, _ = rt.Join(id)

	err = rt.Wake(id)
	require.ErrorIs(t, err, ErrUnknownID)
}

// TestWakeOfReadyThreadReturnsNotBlocked exercises the ErrNotBlocked branch
// of Wake (§7): the target is genuinely live and Ready, never having
// called Block, so the state check -- not the table lookup -- is what
// rejects it.
func TestWakeOfReadyThreadReturnsNotBlocked(t *testing.T) {
	rt := newTestRuntime(t)

	release := make(chan struct{})
	id, err := rt.Create(func(arg any) int {
		<-release
		return 0
	}, nil, 10)
	require.NoError(t, err)

	err = rt.Wake(id)
	require.ErrorIs(t, err, ErrNotBlocked)

	close(release)
	rt.YieldToReady()
	_, err = rt.Join(id)
	require.NoError(t, err)
}

func TestWakeUnknownIDReturnsError(t *testing.T) {
	rt := newTestRuntime(t)
	err := rt.Wake(777)
	require.ErrorIs(t, err, ErrUnknownID)
}

func TestKillReadyThread(t *testing.T) {
	rt := newTestRuntime(t)

	started := make(chan struct{})
	blockForever := make(chan struct{})
	id, err := rt.Create(func(arg any) int {
		close(started)
		<-blockForever
		return 0
	}, nil, 10)
	require.NoError(t, err)

	require.NoError(t, rt.Kill(id))

	select {
	case <-started:
		t.Fatal("killed thread should never have run")
	case <-time.After(10 * time.Millisecond):
	}

	status, err := rt.Join(id)
	require.NoError(t, err)
	require.Equal(t, 0, status)
}

func TestKillSelfReturnsError(t *testing.T) {
	rt := newTestRuntime(t)
	err := rt.Kill(rt.RunningID())
	require.ErrorIs(t, err, ErrCannotKillSelf)
}

func TestKillUnknownIDReturnsError(t *testing.T) {
	rt := newTestRuntime(t)
	err := rt.Kill(888)
	require.ErrorIs(t, err, ErrUnknownID)
}

func TestPriorityPolicyRunsHighestPriorityFirst(t *testing.T) {
	starter := NewSimStarter()
	priorities := make(map[idset.ID]int)
	lookup := func(id idset.ID) int { return priorities[id] }

	rt := NewRuntime(RuntimeConfig{
		IDCapacity: 32,
		StackSize:  4096,
		Switch:     starter.Switcher.Switch,
		Starter:    starter,
		Policy:     sched.NewPriority(lookup),
	})

	var mu sync.Mutex
	var order []int
	done := make(chan struct{}, 2)
	mk := func(label, prio int) EntryFunc {
		return func(arg any) int {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			done <- struct{}{}
			return label
		}
	}

	lowID, err := rt.Create(mk(1, 50), nil, 50)
	require.NoError(t, err)
	priorities[lowID] = 50

	highID, err := rt.Create(mk(2, 1), nil, 1)
	require.NoError(t, err)
	priorities[highID] = 1

	rt.YieldToReady()
	<-done
	<-done

	_, err = rt.Join(lowID)
	require.NoError(t, err)
	_, err = rt.Join(highID)
	require.NoError(t, err)

	require.Equal(t, []int{2, 1}, order)
}

// TestLiveThreadCountMatchesNonKernelNonIdleSnapshot checks §8 invariant 4
// for the threads a test creates: the live records other than the kernel
// (bootstrap) thread and the idle thread (which owns a stack but never
// exits) number exactly the created threads not yet reaped, before and
// after a batch of threads runs to completion and is reaped.
func TestLiveThreadCountMatchesNonKernelNonIdleSnapshot(t *testing.T) {
	rt := newTestRuntime(t)

	countOwnedStacks := func() int {
		n := 0
		for _, snap := range rt.Inspect() {
			if !snap.IsKernel && !snap.IsIdle {
				n++
			}
		}
		return n
	}

	require.Equal(t, 0, countOwnedStacks())

	const n = 5
	ids := make([]idset.ID, n)
	for i := range ids {
		id, err := rt.Create(func(arg any) int {
			rt.Block()
			return 0
		}, nil, 10)
		require.NoError(t, err)
		ids[i] = id
	}
	for range ids {
		rt.YieldToReady()
	}
	require.Equal(t, n, countOwnedStacks())

	for _, id := range ids {
		require.NoError(t, rt.Wake(id))
		_, err := rt.Join(id)
		require.NoError(t, err)
	}
	require.Equal(t, 0, countOwnedStacks())
}
