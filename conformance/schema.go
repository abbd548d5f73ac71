// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package conformance

import "gopkg.in/yaml.v3"

// TestSuite represents a complete YAML test file.
type TestSuite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Fuel is the default budget of the tests.
	Fuel uint64 `yaml:"fuel,omitempty"`
	// Setup is prepended to the code of every test.
	Setup string     `yaml:"setup,omitempty"`
	Tests []TestCase `yaml:"tests"`
}

// TestCase represents a single test within a suite.
type TestCase struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        interface{} `yaml:"skip,omitempty"` // bool or string
	Code        string      `yaml:"code"`
	Fuel        uint64      `yaml:"fuel,omitempty"`
	// Engines limits the engines which run the test, all by default.
	Engines []string    `yaml:"engines,omitempty"`
	Expect  Expectation `yaml:"expect"`
}

// Expectation defines what result is expected from a test.
type Expectation struct {
	Value yaml.Node `yaml:"value,omitempty"` // exact match, null included
	Unit  bool      `yaml:"unit,omitempty"`  // result is ()
	Error string    `yaml:"error,omitempty"` // DivisionByZeroError etc.
	Type  string    `yaml:"type,omitempty"`  // integer, string, list etc.
	// Contains is a substring of the result or error string.
	Contains string `yaml:"contains,omitempty"`
	// FuelUsed is checked for VM engines only.
	FuelUsed uint64               `yaml:"fuel_used,omitempty"`
	Store    map[string]yaml.Node `yaml:"store,omitempty"`
	// Absent lists store keys which must not exist.
	Absent []string `yaml:"absent,omitempty"`
}

// IsSkipped returns true if this test should be skipped.
func (tc *TestCase) IsSkipped() (bool, string) {
	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
	case string:
		if v != "" {
			return true, v
		}
	}
	return false, ""
}

// RunsOn reports whether the test runs on given engine.
func (tc *TestCase) RunsOn(engine string) bool {
	if len(tc.Engines) == 0 {
		return true
	}
	for _, e := range tc.Engines {
		if e == engine {
			return true
		}
	}
	return false
}

func (e *Expectation) hasValue() bool {
	return e.Value.Kind != 0
}
