package txn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("node-1", t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func TestCreateTransactionAssignsIncreasingIDs(t *testing.T) {
	m := newTestManager(t)

	tx1, err := m.CreateTransaction(Options{Type: Short})
	require.NoError(t, err)
	tx2, err := m.CreateTransaction(Options{Type: Long})
	require.NoError(t, err)

	assert.Less(t, tx1.ID(), tx2.ID())
	assert.Equal(t, StateActive, tx1.State())
}

func TestCommitRunsCallbackStagesInOrder(t *testing.T) {
	m := newTestManager(t)
	tx, err := m.CreateTransaction(Options{Type: Short})
	require.NoError(t, err)

	var kinds []CommitCallbackKind
	done := make(chan struct{})
	m.Commit(tx, CommitOptions{}, func(kind CommitCallbackKind, err error) {
		require.NoError(t, err)
		kinds = append(kinds, kind)
		if kind == Propagated {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("commit did not complete in time")
	}

	assert.Equal(t, []CommitCallbackKind{Accepted, Available, Stored, Propagated}, kinds)
	assert.Equal(t, StateCommitted, tx.State())
}

func TestBeginTaskRejectedAfterAbort(t *testing.T) {
	m := newTestManager(t)
	tx, err := m.CreateTransaction(Options{Type: Short})
	require.NoError(t, err)

	require.NoError(t, tx.BeginTask())
	m.AbortTransaction(tx)
	assert.Equal(t, StateGoingToAbort, tx.State())

	err = tx.BeginTask()
	assert.Error(t, err)

	tx.EndTask()
	assert.Equal(t, StateAborted, tx.State())
}

func TestAbortWithNoOutstandingTasksFinalizesImmediately(t *testing.T) {
	m := newTestManager(t)
	tx, err := m.CreateTransaction(Options{Type: ReadOnly})
	require.NoError(t, err)

	m.AbortTransaction(tx)
	assert.Equal(t, StateAborted, tx.State())
}

func TestBindStickyFirstCallWinsAndEnforcesLater(t *testing.T) {
	m := newTestManager(t)
	tx, err := m.CreateTransaction(Options{Type: Short})
	require.NoError(t, err)

	bound, enforced := tx.BindSticky(3)
	assert.Equal(t, 3, bound)
	assert.False(t, enforced)

	bound, enforced = tx.BindSticky(5)
	assert.Equal(t, 3, bound)
	assert.True(t, enforced)
	assert.EqualValues(t, 1, tx.EnforcedCount())

	bound, enforced = tx.BindSticky(3)
	assert.Equal(t, 3, bound)
	assert.False(t, enforced)
}
