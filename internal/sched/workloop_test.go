package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MauricioAndrades/react/internal/testutil"
)

func TestWorkLoop_FoldsUpdatesLeftToRight(t *testing.T) {
	s, host, _ := newTestScheduler(t)
	require.NoError(t, s.Render("app", "base", nil))

	_, err := s.RunBatched(func() any {
		require.NoError(t, s.Dispatch("app", appendUpdate("+1"), nil))
		require.NoError(t, s.Dispatch("app", appendUpdate("+2"), nil))
		require.NoError(t, s.Dispatch("app", appendUpdate("+3"), nil))
		return nil
	})
	require.NoError(t, err)

	state, _ := host.Rendered("app")
	assert.Equal(t, "base+1+2+3", state, "fold order is request order")
}

func TestWorkLoop_MixedClassPassTakesHighestClass(t *testing.T) {
	rec := &captureRecorder{}
	host := testutil.NewRecordingHost()
	s := New(host,
		WithDeferred(&testutil.ManualDeferred{}),
		WithRecorder(rec),
	)
	require.NoError(t, s.Render("app", "base", nil))
	rec.recs = nil

	// Queue one sync and one async update, then flush everything at once.
	err := s.FlushSync(func() {
		require.NoError(t, s.Dispatch("app", appendUpdate("+sync"), nil))
		s.InAsyncZone(func() {
			require.NoError(t, s.Dispatch("app", appendUpdate("+async"), nil))
		})
	})
	require.NoError(t, err)

	require.Len(t, rec.recs, 1, "one pass covers both classes")
	assert.Equal(t, "sync", rec.recs[0].Priority)
	assert.Equal(t, 2, rec.recs[0].UpdateCount)

	state, _ := host.Rendered("app")
	assert.Equal(t, "base+sync+async", state, "sync updates fold before async ones")
}

func TestWorkLoop_FailedReconcileDoesNotCommit(t *testing.T) {
	s, host, _ := newTestScheduler(t)
	require.NoError(t, s.Render("app", "good", nil))

	host.FailReconcile = func(container string, state any) error {
		return assert.AnError
	}

	doneRan := false
	err := s.Dispatch("app", appendUpdate("+bad"), func() { doneRan = true })
	require.Error(t, err)

	var pe *PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseReconcile, pe.Phase)
	assert.Equal(t, "app", pe.Container)

	state, _ := host.Rendered("app")
	assert.Equal(t, "good", state)
	assert.False(t, doneRan, "done callbacks only run for committed passes")
	root := s.registry.Lookup("app")
	assert.Equal(t, "good", root.State(), "internal state matches the last commit")
	assert.Equal(t, 0, root.PendingUpdates(), "failed updates are consumed, not retried")
}

func TestWorkLoop_FailedEffectsDoesNotCommit(t *testing.T) {
	s, host, _ := newTestScheduler(t)

	host.FailEffects = func(container string, state any) error {
		return assert.AnError
	}

	err := s.Render("app", "first", nil)
	require.Error(t, err)

	var pe *PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, PhaseEffects, pe.Phase)
	assert.False(t, s.Mounted("app"), "a root only mounts on a committed pass")
}

func TestWorkLoop_DoneCallbacksAfterCommitInOrder(t *testing.T) {
	s, host, _ := newTestScheduler(t)
	require.NoError(t, s.Render("app", "base", nil))

	var order []string
	_, err := s.RunBatched(func() any {
		require.NoError(t, s.Dispatch("app", appendUpdate("+a"), func() {
			state, _ := host.Rendered("app")
			assert.Equal(t, "base+a+b", state)
			order = append(order, "a")
		}))
		require.NoError(t, s.Dispatch("app", appendUpdate("+b"), func() {
			order = append(order, "b")
		}))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestWorkLoop_DoneDispatchRunsInFollowupPass(t *testing.T) {
	s, host, _ := newTestScheduler(t)
	require.NoError(t, s.Render("app", "base", nil))
	before := host.PassCount()

	// A done callback scheduling more sync work extends the same flush
	// boundary with an extra pass.
	require.NoError(t, s.Dispatch("app", appendUpdate("+first"), func() {
		require.NoError(t, s.Dispatch("app", appendUpdate("+followup"), nil))
	}))

	state, _ := host.Rendered("app")
	assert.Equal(t, "base+first+followup", state)
	assert.Equal(t, before+2, host.PassCount())
}

func TestWorkLoop_CascadeQuotaAcrossPasses(t *testing.T) {
	host := testutil.NewRecordingHost()
	s := New(host,
		WithDeferred(&testutil.ManualDeferred{}),
		WithMaxNestedPasses(4),
	)
	require.NoError(t, s.Render("app", "base", nil))

	var cascade func()
	cascade = func() {
		_ = s.Dispatch("app", appendUpdate("+more"), cascade)
	}

	err := s.Dispatch("app", appendUpdate("+start"), cascade)
	require.Error(t, err)
	assert.True(t, IsUpdateDepthExceeded(err))
}

func TestWorkLoop_UnbatchedMountDoesNotFlushOtherRoots(t *testing.T) {
	s, host, _ := newTestScheduler(t)
	require.NoError(t, s.Render("a", "base", nil))

	_, err := s.RunBatched(func() any {
		require.NoError(t, s.Dispatch("a", appendUpdate("+batched"), nil))

		// Mounting a fresh legacy root mid-batch paints that root only.
		require.NoError(t, s.Render("b", "mounted", nil))

		stateB, ok := host.Rendered("b")
		require.True(t, ok)
		assert.Equal(t, "mounted", stateB)

		stateA, _ := host.Rendered("a")
		assert.Equal(t, "base", stateA, "the open batch's work must stay queued")
		return nil
	})
	require.NoError(t, err)

	stateA, _ := host.Rendered("a")
	assert.Equal(t, "base+batched", stateA)
}

func TestWorkLoop_SyncBeforeAsyncAcrossRoots(t *testing.T) {
	s, host, deferred := newTestScheduler(t)
	s.Attach("async", RootModeAsync)
	require.NoError(t, s.Render("legacy", "mounted", nil))
	require.NoError(t, s.Render("async", "pending", nil))

	_, err := s.RunBatched(func() any {
		require.NoError(t, s.Dispatch("legacy", appendUpdate("+sync"), nil))
		return nil
	})
	require.NoError(t, err)

	// Sync work applied at the batch boundary; async work still waits.
	state, _ := host.Rendered("legacy")
	assert.Equal(t, "mounted+sync", state)
	_, ok := host.Rendered("async")
	assert.False(t, ok)

	deferred.FireAll()
	state, ok = host.Rendered("async")
	require.True(t, ok)
	assert.Equal(t, "pending", state)
}

func TestWorkLoop_LifecycleDispatchFromHostCommit(t *testing.T) {
	host := testutil.NewRecordingHost()
	s := New(host, WithDeferred(&testutil.ManualDeferred{}))

	// Effect application schedules one follow-up, like a mount effect
	// setting initial derived state.
	adjusted := false
	host.OnCommit = func(container string, state any) {
		if !adjusted {
			adjusted = true
			_ = s.Dispatch(container, appendUpdate("+effect"), nil)
		}
	}

	require.NoError(t, s.Render("app", "base", nil))

	state, _ := host.Rendered("app")
	assert.Equal(t, "base+effect", state)
	assert.Equal(t, 2, host.PassCount())
}
