package conformance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/slvr-lang/slvr/conformance"
)

func TestConformance(t *testing.T) {
	tests, err := LoadDir(TestPath)
	require.NoError(t, err)
	require.NotEmpty(t, tests)

	results := NewRunner(context.Background(), nil).RunAll(tests)
	stats := ComputeStats(results)

	fileGroups := make(map[string][]TestResult)
	for _, result := range results {
		fileGroups[result.Test.File] = append(fileGroups[result.Test.File], result)
	}
	for file, fileResults := range fileGroups {
		t.Run(file, func(t *testing.T) {
			for _, result := range fileResults {
				result := result
				t.Run(result.Test.Test.Name+"/"+result.Engine, func(t *testing.T) {
					if result.Skipped {
						t.Skipf("Skipped: %s", result.SkipReason)
					}
					require.True(t, result.Passed, "%v", result.Error)
				})
			}
		})
	}
	t.Logf("\n=== Summary ===\n%s", FormatStats(stats))
	require.Zero(t, stats.Failed)
}

func TestParse(t *testing.T) {
	tests, err := Parse([]byte(`
name: sample
fuel: 10
setup: "defconst one:integer = 1"
tests:
  - name: skipped
    skip: not ready
    code: "1"
    expect: {value: 1}
  - name: evaluator only
    engines: [evaluator]
    code: "one + 1"
    expect: {value: 2}
  - name: big
    code: "170141183460469231731687303715884105727"
    expect: {value: 170141183460469231731687303715884105727}
  - name: wrong
    code: "1"
    expect: {value: "1"}
  - name: null result
    code: '{a: null}.a'
    expect: {value: null}
  - name: store
    code: 'write "t" "k" [1, 2.5, "s", true, null]'
    expect:
      store:
        "t:k": [1, 2.5, s, true, null]
`))
	require.NoError(t, err)
	require.Len(t, tests, 6)
	require.Equal(t, "sample", tests[0].Suite.Name)
	require.Equal(t, uint64(10), tests[0].Suite.Fuel)

	skipped, reason := tests[0].Test.IsSkipped()
	require.True(t, skipped)
	require.Equal(t, "not ready", reason)
	require.False(t, tests[1].Test.RunsOn(EngineVM))
	require.True(t, tests[1].Test.RunsOn(EngineEvaluator))

	runner := NewRunner(context.Background(), nil)
	res := runner.Run(tests[0])
	require.Len(t, res, len(Engines))
	require.True(t, res[0].Skipped)

	res = runner.Run(tests[1])
	require.Len(t, res, 1)
	require.True(t, res[0].Passed, "%v", res[0].Error)

	for _, i := range []int{2, 4} {
		for _, r := range runner.Run(tests[i]) {
			require.True(t, r.Passed, "%s: %v", r.Engine, r.Error)
		}
	}

	// the value and the type must both match
	for _, r := range runner.Run(tests[3]) {
		require.False(t, r.Passed)
		require.EqualError(t, r.Error,
			`expected "1" (string), got 1 (integer)`)
	}

	// the fuel of the suite is too small for a write
	for _, r := range runner.Run(tests[5]) {
		require.False(t, r.Passed)
		require.Contains(t, r.Error.Error(), "FuelExceededError")
	}
	tests[5].Test.Fuel = 1000
	for _, r := range runner.Run(tests[5]) {
		require.True(t, r.Passed, "%s: %v", r.Engine, r.Error)
	}

	stats := ComputeStats(runner.RunAll(tests[:2]))
	require.Equal(t, SummaryStats{Total: 4, Passed: 1, Skipped: 3}, stats)
	require.Equal(t, "1 passed, 0 failed, 3 skipped (4 total)", FormatStats(stats))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`tests: []`))
	require.EqualError(t, err, "suite has no name")

	_, err = Parse([]byte(`
name: s
tests:
  - name: a
    code: "1"
  - name: a
    code: "2"
`))
	require.EqualError(t, err, "suite s: duplicate test a")

	_, err = Parse([]byte(`
name: s
tests:
  - name: a
    engines: [jit]
`))
	require.EqualError(t, err, "suite s: test a: unknown engine jit")

	_, err = Parse([]byte(`name: [`))
	require.Error(t, err)

	_, err = LoadFile("testdata/missing.yaml")
	require.Error(t, err)
}

func TestRunnerContext(t *testing.T) {
	tests, err := Parse([]byte(`
name: s
tests:
  - name: a
    code: "1"
    expect: {value: 1}
`))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, r := range NewRunner(ctx, nil).Run(tests[0]) {
		require.False(t, r.Passed)
		require.ErrorIs(t, r.Error, context.Canceled)
	}
}
