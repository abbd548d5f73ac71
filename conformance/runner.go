// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package conformance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/inconshreveable/log15"
	"gopkg.in/yaml.v3"

	"github.com/slvr-lang/slvr"
)

// DefaultFuel is the budget of tests which set none.
const DefaultFuel uint64 = 1_000_000

// Engines.
const (
	EngineVM            = "vm"
	EngineVMUnoptimized = "vm-unoptimized"
	EngineEvaluator     = "evaluator"
)

// Engines lists every engine in run order.
var Engines = []string{EngineVM, EngineVMUnoptimized, EngineEvaluator}

func isEngine(name string) bool {
	for _, e := range Engines {
		if e == name {
			return true
		}
	}
	return false
}

// errorNames maps expectation error names to the errors they match.
var errorNames = map[string]error{
	"LexerError":                  slvr.ErrLexer,
	"ParseError":                  slvr.ErrParse,
	"TypeError":                   slvr.ErrType,
	"RuntimeError":                slvr.ErrRuntime,
	"FuelExceededError":           slvr.ErrFuelExceeded,
	"RecursionDepthExceededError": slvr.ErrRecursionDepthExceeded,
	"DivisionByZeroError":         slvr.ErrDivisionByZero,
	"IndexOutOfBoundsError":       slvr.ErrIndexOutOfBounds,
	"KeyNotFoundError":            slvr.ErrKeyNotFound,
	"UndefinedVariableError":      slvr.ErrUndefinedVariable,
	"UndefinedFunctionError":      slvr.ErrUndefinedFunction,
	"UnknownSchemaError":          slvr.ErrUnknownSchema,
	"TypeMismatchError":           slvr.ErrTypeMismatch,
	"InvalidArgumentError":        slvr.ErrInvalidArgument,
	"CompilationError":            slvr.ErrCompilation,
	"ThrownError":                 slvr.ErrThrown,
}

// TestResult represents the outcome of running a single test on an engine.
type TestResult struct {
	Test       LoadedTest
	Engine     string
	Passed     bool
	Skipped    bool
	SkipReason string
	FuelUsed   uint64
	Error      error
}

// Runner executes conformance tests.
type Runner struct {
	ctx    context.Context
	logger log.Logger
}

// NewRunner creates a new test runner.
func NewRunner(ctx context.Context, logger log.Logger) *Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = log.New()
		logger.SetHandler(log.DiscardHandler())
	}
	return &Runner{ctx: ctx, logger: logger}
}

// Run executes a single test case on every engine it runs on.
func (r *Runner) Run(test LoadedTest) []TestResult {
	results := make([]TestResult, 0, len(Engines))
	for _, engine := range Engines {
		if !test.Test.RunsOn(engine) {
			continue
		}
		result := r.RunEngine(test, engine)
		r.logger.Debug("conformance test", "file", test.File,
			"test", test.Test.Name, "engine", engine,
			"passed", result.Passed, "skipped", result.Skipped,
			"fuel", result.FuelUsed)
		results = append(results, result)
	}
	return results
}

// RunAll executes all loaded tests.
func (r *Runner) RunAll(tests []LoadedTest) []TestResult {
	var results []TestResult
	for _, test := range tests {
		results = append(results, r.Run(test)...)
	}
	return results
}

// RunEngine executes a test on the named engine.
func (r *Runner) RunEngine(test LoadedTest, engine string) TestResult {
	result := TestResult{Test: test, Engine: engine}
	if skipped, reason := test.Test.IsSkipped(); skipped {
		result.Skipped = true
		result.SkipReason = reason
		return result
	}
	if err := r.ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	fuel := test.Test.Fuel
	if fuel == 0 {
		fuel = test.Suite.Fuel
	}
	if fuel == 0 {
		fuel = DefaultFuel
	}
	src := test.Test.Code
	if test.Suite.Setup != "" {
		src = test.Suite.Setup + "\n" + src
	}

	rt := slvr.NewRuntime(fuel)
	var (
		ret slvr.Value
		err error
	)
	switch engine {
	case EngineVM, EngineVMUnoptimized:
		opts := slvr.CompilerOptions{Optimize: engine == EngineVM}
		ret, _, err = slvr.Run(r.ctx, []byte(src), rt, opts)
	case EngineEvaluator:
		ret, err = slvr.EvalSource([]byte(src), rt)
	default:
		result.Error = fmt.Errorf("unknown engine: %s", engine)
		return result
	}
	result.FuelUsed = rt.FuelUsed()

	if err = checkExpectation(test.Test.Expect, engine, rt, ret, err); err != nil {
		result.Error = err
		return result
	}
	result.Passed = true
	return result
}

// checkExpectation checks if the result matches the expected outcome.
func checkExpectation(expect Expectation, engine string, rt *slvr.Runtime,
	ret slvr.Value, runErr error) error {

	if expect.Error != "" {
		target, ok := errorNames[expect.Error]
		if !ok {
			return fmt.Errorf("unknown error name: %s", expect.Error)
		}
		if runErr == nil {
			return fmt.Errorf("expected error %s, got value: %v",
				expect.Error, ret)
		}
		if !errors.Is(runErr, target) {
			return fmt.Errorf("expected error %s, got %v", expect.Error, runErr)
		}
		if expect.Contains != "" &&
			!strings.Contains(runErr.Error(), expect.Contains) {
			return fmt.Errorf("expected error containing %q, got %v",
				expect.Contains, runErr)
		}
	} else {
		if runErr != nil {
			return fmt.Errorf("unexpected error: %w", runErr)
		}
		if err := checkValue(expect, ret); err != nil {
			return err
		}
	}

	if expect.FuelUsed > 0 && engine != EngineEvaluator &&
		rt.FuelUsed() != expect.FuelUsed {
		return fmt.Errorf("expected fuel %d, used %d",
			expect.FuelUsed, rt.FuelUsed())
	}
	for key, node := range expect.Store {
		node := node
		want, err := convertNode(&node)
		if err != nil {
			return fmt.Errorf("store %s: %w", key, err)
		}
		got, ok := rt.Read(key)
		if !ok {
			return fmt.Errorf("store %s: key not found", key)
		}
		if !want.Equal(got) || want.TypeName() != got.TypeName() {
			return fmt.Errorf("store %s: expected %v, got %v", key, want, got)
		}
	}
	for _, key := range expect.Absent {
		if rt.Exists(key) {
			return fmt.Errorf("store %s: expected no entry", key)
		}
	}
	return nil
}

func checkValue(expect Expectation, ret slvr.Value) error {
	if ret == nil {
		return errors.New("no result")
	}
	if expect.hasValue() {
		want, err := convertNode(&expect.Value)
		if err != nil {
			return fmt.Errorf("failed to convert expected value: %w", err)
		}
		if !want.Equal(ret) || want.TypeName() != ret.TypeName() {
			return fmt.Errorf("expected %v (%s), got %v (%s)",
				want, want.TypeName(), ret, ret.TypeName())
		}
	}
	if expect.Unit && ret.TypeName() != slvr.Unit.TypeName() {
		return fmt.Errorf("expected (), got %v", ret)
	}
	if expect.Type != "" && ret.TypeName() != expect.Type {
		return fmt.Errorf("expected type %s, got %s", expect.Type, ret.TypeName())
	}
	if expect.Contains != "" && !strings.Contains(ret.String(), expect.Contains) {
		return fmt.Errorf("expected result containing %q, got %v",
			expect.Contains, ret)
	}
	return nil
}

// convertNode converts a YAML node to a Value. Integers keep 128-bit
// precision.
func convertNode(n *yaml.Node) (slvr.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 1 {
			return convertNode(n.Content[0])
		}
	case yaml.AliasNode:
		return convertNode(n.Alias)
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return slvr.Null, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, err
			}
			return slvr.Boolean(b), nil
		case "!!int":
			v, err := slvr.ParseInt128(strings.ReplaceAll(n.Value, "_", ""))
			if err != nil {
				var i int64
				if derr := n.Decode(&i); derr != nil {
					return nil, err
				}
				return slvr.Int(i), nil
			}
			return slvr.Integer(v), nil
		case "!!float":
			// integers beyond 64 bits resolve as floats
			if isIntLiteral(n.Value) {
				v, err := slvr.ParseInt128(n.Value)
				if err != nil {
					return nil, err
				}
				return slvr.Integer(v), nil
			}
			var f float64
			if err := n.Decode(&f); err != nil {
				return nil, err
			}
			return slvr.Decimal(f), nil
		case "!!str":
			return slvr.String(n.Value), nil
		}
	case yaml.SequenceNode:
		list := make(slvr.List, len(n.Content))
		for i, item := range n.Content {
			v, err := convertNode(item)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	case yaml.MappingNode:
		obj := make(slvr.Object, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := convertNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj[n.Content[i].Value] = v
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported YAML node %s at line %d",
		n.ShortTag(), n.Line)
}

func isIntLiteral(s string) bool {
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SummaryStats computes statistics from test results.
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats generates statistics from test results.
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Skipped:
			stats.Skipped++
		case r.Passed:
			stats.Passed++
		default:
			stats.Failed++
		}
	}
	return stats
}

// FormatStats returns a human-readable summary.
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		stats.Passed, stats.Failed, stats.Skipped, stats.Total)
}
