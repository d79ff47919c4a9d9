package report_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framecheck/framecheck/internal/engine"
	"github.com/framecheck/framecheck/internal/lockstep"
	"github.com/framecheck/framecheck/internal/report"
	"github.com/framecheck/framecheck/internal/value"
)

func sampleTrace() *engine.Trace {
	return &engine.Trace{
		Status:    engine.StatusCompleted,
		FramesRun: 3,
		Snapshots: []engine.Snapshot{{
			Frame: 1,
			Pre: map[string]value.Value{
				"grounded": value.Bool(true),
				"player_x": value.Int(0),
			},
			Post: map[string]value.Value{
				"grounded": value.Bool(true),
				"player_x": value.Int(64),
			},
			Delta: map[string]value.Value{
				"grounded": value.Bool(false),
				"player_x": value.Int(64),
			},
		}},
		Assertions: []engine.AssertionResult{{
			Frame:    2,
			Expr:     "$player_x > 100",
			Passed:   false,
			Actual:   value.Int(64),
			Op:       ">",
			Expected: value.Int(100),
		}},
	}
}

func sampleSync() []lockstep.Result {
	return []lockstep.Result{
		{Frame: 0, Checksums: []string{"0a0a", "0a0a"}, Diverged: false},
		{Frame: 1, Checksums: []string{"0a0a", "0b0b"}, Diverged: true},
	}
}

func TestBuild_StatusRules(t *testing.T) {
	t.Run("pass when everything held", func(t *testing.T) {
		trace := &engine.Trace{
			Status:     engine.StatusCompleted,
			FramesRun:  1,
			Assertions: []engine.AssertionResult{{Frame: 0, Passed: true}},
		}
		r := report.Build(trace, nil)
		assert.Equal(t, report.StatusPass, r.Summary.Status)
		assert.True(t, r.Passed())
	})

	t.Run("fail on failed assertion", func(t *testing.T) {
		r := report.Build(sampleTrace(), nil)
		assert.Equal(t, report.StatusFail, r.Summary.Status)
		assert.Equal(t, 1, r.Summary.AssertionsFailed)
	})

	t.Run("fail on divergence alone", func(t *testing.T) {
		trace := &engine.Trace{Status: engine.StatusCompleted, FramesRun: 2}
		r := report.Build(trace, sampleSync())
		assert.Equal(t, report.StatusFail, r.Summary.Status)
		require.NotNil(t, r.Summary.FirstDivergence)
		assert.Equal(t, 1, *r.Summary.FirstDivergence)
	})

	t.Run("fail on eval error", func(t *testing.T) {
		trace := &engine.Trace{
			Status:     engine.StatusCompleted,
			FramesRun:  1,
			EvalErrors: []engine.EvalError{{Frame: 0, Expr: "$hp > 1", Msg: "kind mismatch"}},
		}
		r := report.Build(trace, nil)
		assert.Equal(t, report.StatusFail, r.Summary.Status)
	})

	t.Run("aborted wins over everything", func(t *testing.T) {
		trace := sampleTrace()
		trace.Status = engine.StatusAborted
		trace.Abort = &engine.AbortInfo{Frame: 2, Reason: "simulation panic: boom"}
		r := report.Build(trace, nil)
		assert.Equal(t, report.StatusAborted, r.Summary.Status)
		require.NotNil(t, r.Abort)
		assert.Equal(t, 2, r.Abort.FrameNumber)
	})
}

func TestBuild_Deterministic(t *testing.T) {
	a := report.Build(sampleTrace(), sampleSync())
	b := report.Build(sampleTrace(), sampleSync())
	assert.Equal(t, a, b)

	ja, err := a.EncodeJSON()
	require.NoError(t, err)
	jb, err := b.EncodeJSON()
	require.NoError(t, err)
	assert.Equal(t, ja, jb)
}

func TestBuild_SyncOmittedWhenAbsent(t *testing.T) {
	r := report.Build(sampleTrace(), nil)
	assert.Nil(t, r.Sync)
	assert.Nil(t, r.Summary.FirstDivergence)

	data, err := r.EncodeJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"sync"`)
	assert.NotContains(t, string(data), `"first_divergence"`)
}

func TestEncodeJSON_Golden(t *testing.T) {
	r := report.Build(sampleTrace(), sampleSync())
	data, err := r.EncodeJSON()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report", data)
}
