package report

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.cctests/pkg/condition"
)

func makeTestRun() *Run {
	rec := NewRecorder()
	rec.Start("demo", false)
	rec.BeginGroup("arith", true)
	rec.AddTest(TestRecord{
		Name: "add", Outcome: "succeeded", Passed: true,
		Duration: 2 * time.Millisecond,
	})
	rec.AddTest(TestRecord{
		Name: "div", Outcome: "failed", Kind: "assertion",
		Message:  "Assertion failed: b != 0",
		Location: &condition.Location{File: "arith.go", Func: "div", Line: 12},
	})
	rec.AddTest(TestRecord{Name: "mod", Outcome: OutcomeSkipped, Passed: true})
	rec.EndGroup()
	rec.BeginGroup("io", false)
	rec.EndGroup()
	return rec.Finish(1)
}

func TestRecorder_BuildsRun(t *testing.T) {
	run := makeTestRun()

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "demo", run.Program)
	assert.False(t, run.Passed)
	assert.Equal(t, 1, run.ExitCode)
	require.Len(t, run.Groups, 2)
	assert.False(t, run.Groups[0].Passed)
	assert.Len(t, run.Groups[0].Tests, 3)
	assert.True(t, run.Groups[1].Skipped)
	assert.True(t, run.Groups[1].Passed)
	assert.False(t, run.EndTime.Before(run.StartTime))
}

func TestRecorder_UniqueIDs(t *testing.T) {
	assert.NotEqual(t, NewRecorder().Run().ID, NewRecorder().Run().ID)
}

func TestRecorder_TestOutsideGroup(t *testing.T) {
	rec := NewRecorder()
	rec.Start("p", false)
	rec.AddTest(TestRecord{Name: "orphan", Outcome: "failed"})
	run := rec.Finish(1)

	require.Len(t, run.Groups, 1)
	assert.Empty(t, run.Groups[0].Name)
	assert.False(t, run.Passed)
}

func TestRecorder_FinishWithoutStart(t *testing.T) {
	run := NewRecorder().Finish(0)
	assert.Equal(t, time.Duration(0), run.Duration)
	assert.True(t, run.Passed)
}

func TestRecorder_Concurrent(t *testing.T) {
	rec := NewRecorder()
	rec.BeginGroup("g", true)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.AddTest(TestRecord{Name: "t", Passed: true})
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Run().Groups[0].Tests, 50)
}

func TestRun_Counts(t *testing.T) {
	c := makeTestRun().Counts()
	assert.Equal(t, Counts{Total: 3, Passed: 1, Failed: 1, Skipped: 1}, c)
}
