package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	var out []ProgressUpdate
	for {
		select {
		case u := <-ch:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestProgressLifecycle(t *testing.T) {
	svc := NewProgressService()
	ch := svc.Subscribe("s1")
	defer svc.Unsubscribe("s1", ch)

	tr := svc.Start("s1", "task-1")
	tr.UpdateProgress(33, "screenplay", "Generating Screenplay...")
	tr.UpdateProgress(10, "", "") // never goes backwards
	tr.Complete("")

	updates := drain(ch)
	require.Len(t, updates, 4)
	assert.Equal(t, StatusRunning, updates[0].Status)
	assert.Equal(t, 33, updates[2].Progress)
	assert.Equal(t, StatusCompleted, updates[3].Status)
	assert.Equal(t, 100, updates[3].Progress)
	assert.Equal(t, "task-1", updates[3].TaskID)

	tr.Fail("late failure ignored")
	snap, ok := svc.Get("s1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, snap.Status)
}

func TestProgressSubscribeReceivesCurrentState(t *testing.T) {
	svc := NewProgressService()
	tr := svc.Start("s1", "task-1")
	tr.Fail("HTTP 500")

	ch := svc.Subscribe("s1")
	defer svc.Unsubscribe("s1", ch)

	u := <-ch
	assert.Equal(t, StatusFailed, u.Status)
	assert.Contains(t, u.Message, "HTTP 500")
}

func TestProgressIsScopedByKey(t *testing.T) {
	svc := NewProgressService()
	other := svc.Subscribe("s2")
	defer svc.Unsubscribe("s2", other)

	svc.Start("s1", "task-1").Complete("")

	assert.Empty(t, drain(other))
	_, ok := svc.Get("s2")
	assert.False(t, ok)
}

func TestProgressUnsubscribeClosesChannel(t *testing.T) {
	svc := NewProgressService()
	ch := svc.Subscribe("s1")
	svc.Unsubscribe("s1", ch)

	_, open := <-ch
	assert.False(t, open)

	// second unsubscribe is a no-op
	svc.Unsubscribe("s1", ch)
}

func TestProgressCleanupCompletedTasks(t *testing.T) {
	svc := NewProgressService()
	svc.Start("done", "t1").Complete("")
	svc.Start("running", "t2")

	assert.Equal(t, 0, svc.CleanupCompletedTasks(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, svc.CleanupCompletedTasks(time.Millisecond))

	_, ok := svc.Get("done")
	assert.False(t, ok)
	_, ok = svc.Get("running")
	assert.True(t, ok)
}
