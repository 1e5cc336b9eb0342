package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dmut/internal/runner"
)

func textfile(t *testing.T, m *Metrics) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dmut.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRecordRun_Committed(t *testing.T) {
	m := New()
	m.RecordRun(&runner.Result{
		Applied:   []string{"m:a", "m:b"},
		Tested:    []string{"m:a", "m:b"},
		Retracted: []string{"m:c"},
		Committed: true,
	}, 50*time.Millisecond, nil)

	out := textfile(t, m)
	assert.Contains(t, out, `dmut_runs_total{outcome="committed"} 1`)
	assert.Contains(t, out, `dmut_units_total{phase="apply"} 2`)
	assert.Contains(t, out, `dmut_units_total{phase="retract"} 1`)
	assert.Contains(t, out, `dmut_run_duration_seconds_count 1`)
	assert.Contains(t, out, `dmut_last_run_timestamp_seconds`)
	assert.NotContains(t, out, `dmut_failures_total{`)
}

func TestRecordRun_DryRunCountsAsRolledBack(t *testing.T) {
	m := New()
	m.RecordRun(&runner.Result{Applied: []string{"m:a"}}, time.Millisecond, nil)

	assert.Contains(t, textfile(t, m), `dmut_runs_total{outcome="rolled_back"} 1`)
}

func TestRecordRun_ReversibilityFailures(t *testing.T) {
	m := New()
	err := errors.Join(
		&runner.RunError{Code: runner.ErrCodeReversibilityFailed, Unit: "m:a"},
		&runner.RunError{Code: runner.ErrCodeReversibilityFailed, Unit: "m:b"},
	)
	m.RecordRun(&runner.Result{}, time.Millisecond, err)

	out := textfile(t, m)
	assert.Contains(t, out, `dmut_runs_total{outcome="failed"} 1`)
	assert.Contains(t, out, `dmut_failures_total{code="REVERSIBILITY_FAILED"} 2`)
}

func TestRecordRun_ExecutionFailure(t *testing.T) {
	m := New()
	m.RecordRun(&runner.Result{}, time.Millisecond, &runner.RunError{Code: runner.ErrCodeExecutionFailed})

	assert.Contains(t, textfile(t, m), `dmut_failures_total{code="EXECUTION_FAILED"} 1`)
}

func TestRecordRun_NilResult(t *testing.T) {
	m := New()
	m.RecordRun(nil, 0, runner.ErrPlanHasErrors)

	assert.Contains(t, textfile(t, m), `dmut_failures_total{code="OTHER"} 1`)
}
