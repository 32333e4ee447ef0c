package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_NilScenario(t *testing.T) {
	_, err := Run(nil)
	require.Error(t, err)
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no roots")
}

func TestRun_SimpleRender(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "simple",
		Roots: []RootDecl{{Container: "app", Mode: "legacy"}},
		Steps: []Step{
			{Render: &RenderStep{Container: "app", Value: "hello"}},
		},
		Expect: map[string]any{"app": "hello"},
	})
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "pass", result.Trace[0].Type)
	assert.Equal(t, "app", result.Trace[0].Container)
	assert.Equal(t, "sync", result.Trace[0].Priority)
	assert.Equal(t, "hello", result.Trace[0].State)
	assert.Equal(t, "hello", result.Final["app"])
}

func TestRun_BatchFoldsDispatches(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "fold",
		Roots: []RootDecl{{Container: "app", Mode: "legacy"}},
		Steps: []Step{
			{Render: &RenderStep{Container: "app", Value: "base"}},
			{Batch: []Step{
				{Dispatch: &DispatchStep{Container: "app", Append: "+a"}},
				{Dispatch: &DispatchStep{Container: "app", Append: "+b"}},
			}},
		},
		Expect: map[string]any{"app": "base+a+b"},
	})
	require.NoError(t, err)

	assert.True(t, result.Pass)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, 2, result.Trace[1].Updates, "the batch commits as one pass")
}

func TestRun_AsyncRootNeedsFireDeferred(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "stuck",
		Roots: []RootDecl{{Container: "panel", Mode: "async"}},
		Steps: []Step{
			{Render: &RenderStep{Container: "panel", Value: "hello"}},
		},
		Expect: map[string]any{"panel": "hello"},
	})
	require.NoError(t, err)

	// Without fire_deferred the async work never applies, so the
	// expectation fails rather than errors.
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "never rendered")
	assert.Empty(t, result.Trace)
}

func TestRun_FireDeferredAppearsInTrace(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "deferred",
		Roots: []RootDecl{{Container: "panel", Mode: "async"}},
		Steps: []Step{
			{Render: &RenderStep{Container: "panel", Value: "hello"}},
			{FireDeferred: true},
		},
		Expect: map[string]any{"panel": "hello"},
	})
	require.NoError(t, err)

	assert.True(t, result.Pass)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "fire_deferred", result.Trace[0].Type)
	assert.Equal(t, "pass", result.Trace[1].Type)
	assert.Equal(t, "async", result.Trace[1].Priority)
}

func TestRun_DispatchWithoutRootFailsStep(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "unmounted",
		Roots: []RootDecl{{Container: "app", Mode: "legacy"}},
		Steps: []Step{
			{Render: &RenderStep{Container: "app", Value: "x"}},
			{Unmount: "app"},
			{Dispatch: &DispatchStep{Container: "app", Append: "+late"}},
		},
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "dispatch app")
}

func TestRun_ExpectMismatchReportsBothValues(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "mismatch",
		Roots: []RootDecl{{Container: "app", Mode: "legacy"}},
		Steps: []Step{
			{Render: &RenderStep{Container: "app", Value: "actual"}},
		},
		Expect: map[string]any{"app": "wanted"},
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "actual")
	assert.Contains(t, result.Errors[0], "wanted")
}

func TestRun_TraceSeqsAreStrictlyIncreasing(t *testing.T) {
	result, err := Run(&Scenario{
		Name:  "seqs",
		Roots: []RootDecl{{Container: "app", Mode: "legacy"}},
		Steps: []Step{
			{Render: &RenderStep{Container: "app", Value: "v1"}},
			{Render: &RenderStep{Container: "app", Value: "v2"}},
			{Render: &RenderStep{Container: "app", Value: "v3"}},
		},
	})
	require.NoError(t, err)

	var prev int64
	for _, ev := range result.Trace {
		assert.Greater(t, ev.Seq, prev)
		prev = ev.Seq
	}
}
