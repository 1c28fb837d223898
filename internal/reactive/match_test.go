package reactive

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchAllBranches(t *testing.T) {
	rt := New()
	okTask := NewTask(rt, "ok", func(tc *TaskCtx) (int, error) { return 1, nil })
	okTask2 := NewTask(rt, "ok2", func(tc *TaskCtx) (int, error) { return 2, nil })
	errTask := NewTask(rt, "bad", func(tc *TaskCtx) (int, error) {
		return 0, errors.New("nope")
	})
	awaitQuiet(t, rt)

	var got []int
	MatchAll([]*Task[int]{okTask, okTask2}, GroupHandlers[int]{
		Ok: func(values []int) { got = values },
	})
	assert.Equal(t, []int{1, 2}, got)

	var gotErr error
	MatchAll([]*Task[int]{okTask, errTask}, GroupHandlers[int]{
		Ok:  func([]int) { t.Fatal("ok branch must not run") },
		Err: func(err error) { gotErr = err },
	})
	assert.EqualError(t, gotErr, "nope")
}

func TestMatchAllPendingWinsOverOk(t *testing.T) {
	rt := New()
	hold := make(chan struct{})
	defer close(hold)

	okTask := NewTask(rt, "ok", func(tc *TaskCtx) (int, error) { return 1, nil })
	slow := NewTask(rt, "slow", func(tc *TaskCtx) (int, error) {
		<-hold
		return 2, nil
	})

	// wait for okTask alone; slow stays pending
	require.Eventually(t, func() bool {
		return okTask.Result().State == TaskOk
	}, 5*time.Second, time.Millisecond)

	ran := ""
	MatchAll([]*Task[int]{okTask, slow}, GroupHandlers[int]{
		Ok:      func([]int) { ran = "ok" },
		Err:     func(error) { ran = "err" },
		Pending: func() { ran = "pending" },
	})
	assert.Equal(t, "pending", ran)
}

func TestMatchTracksTaskInEveryBranch(t *testing.T) {
	rt := New()
	log := &eventLog{}
	hold := make(chan struct{})

	task := NewTask(rt, "slow", func(tc *TaskCtx) (string, error) {
		<-hold
		return "v", nil
	})

	// the effect's only read of the task happens through Match while the
	// task is Pending; it must still re-run on settlement
	NewEffect(rt, "dispatcher", func() {
		Match(task, TaskHandlers[string]{
			Ok:      func(v string) { log.add("ok %s", v) },
			Pending: func() { log.add("pending") },
		})
	})

	close(hold)
	awaitQuiet(t, rt)
	assert.Equal(t, []string{"pending", "ok v"}, log.snapshot())
}

func TestMatchErrDoesNotBlockSiblingDelivery(t *testing.T) {
	rt := New()
	delivered := &eventLog{}

	src := NewKeyedCollection[string](rt, "src")
	require.NoError(t, src.Add("good", "fine"))
	require.NoError(t, src.Add("bad", "broken"))
	require.NoError(t, src.Add("also-good", "fine"))

	derived := Derive(src, "check", func(tc *TaskCtx, key, v string) (string, error) {
		if v == "broken" {
			return "", errors.New("transform failed: " + key)
		}
		return v, nil
	})

	NewEffect(rt, "consumer", func() {
		for _, entry := range derived.Entries() {
			Match(entry.Value, TaskHandlers[string]{
				Ok:  func(v string) { delivered.add("ok %s", entry.Key) },
				Err: func(err error) { delivered.add("err %s", entry.Key) },
			})
		}
	})

	awaitQuiet(t, rt)
	assert.Equal(t, 1, delivered.count("ok good"))
	assert.Equal(t, 1, delivered.count("ok also-good"))
	assert.Equal(t, 1, delivered.count("err bad"))
}
