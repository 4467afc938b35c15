package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskCountingAndQuiescence(t *testing.T) {
	j := New(1, -1, nil, nil)
	assert.True(t, j.Quiesced())

	j.IncTaskCount()
	j.IncTaskCount()
	assert.False(t, j.Quiesced())
	assert.EqualValues(t, 2, j.TaskCount())

	j.DecTaskCount()
	j.DecTaskCount()
	assert.True(t, j.Quiesced())
}

func TestBeginCompletingOnlyOnce(t *testing.T) {
	j := New(1, -1, nil, nil)
	assert.True(t, j.BeginCompleting())
	assert.False(t, j.BeginCompleting())
}

func TestReadinessGatesFinish(t *testing.T) {
	ready := false
	j := New(1, -1, func() bool { return ready }, nil)
	assert.False(t, j.Ready())
	ready = true
	assert.True(t, j.Ready())
}

func TestFinishInvokesCallbackAndReleasesLatch(t *testing.T) {
	var called bool
	j := New(1, -1, nil, func(jj *Job) { called = true })

	go j.Finish()

	select {
	case <-j.Done():
	case <-time.After(time.Second):
		t.Fatal("job did not finish in time")
	}
	j.Wait()
	require.True(t, called)
}

func TestMarkStartedOnlyFirstTimeTrue(t *testing.T) {
	j := New(1, -1, nil, nil)
	assert.True(t, j.MarkStarted())
	assert.False(t, j.MarkStarted())
}

func TestDiagnosticsAccumulatesCounters(t *testing.T) {
	j := New(5, 2, nil, nil)
	j.AddTaskDuration(10 * time.Millisecond)
	j.AddTaskDuration(5 * time.Millisecond)
	j.IncStickyTaskCount()
	j.IncStealingCount()
	j.IncStickyWorkerEnforced()
	j.IncStickyWorkerEnforced()

	d := j.Diagnostics()
	assert.EqualValues(t, 5, d.ID)
	assert.Equal(t, 2, d.PreferredWorkerIndex)
	assert.Equal(t, 15*time.Millisecond, d.TaskDuration)
	assert.EqualValues(t, 1, d.StickyTaskCount)
	assert.EqualValues(t, 1, d.TaskStealingCount)
	assert.EqualValues(t, 2, d.StickyWorkerEnforcedCount)
}
