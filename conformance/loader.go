// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package conformance runs YAML test suites against the VM and the
// reference Evaluator.
package conformance

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TestPath is the directory of the bundled suites.
const TestPath = "testdata"

// LoadedTest represents a test with its source file path.
type LoadedTest struct {
	File  string
	Suite *TestSuite
	Test  TestCase
}

// LoadDir walks dir and loads every .yaml and .yml file in lexical order.
func LoadDir(dir string) ([]LoadedTest, error) {
	var loaded []LoadedTest
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(path); info.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}

		tests, err := LoadFile(path)
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			relPath = path
		}
		for i := range tests {
			tests[i].File = relPath
		}
		loaded = append(loaded, tests...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

// LoadFile parses a single YAML file and returns all test cases.
func LoadFile(path string) ([]LoadedTest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tests, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range tests {
		tests[i].File = path
	}
	return tests, nil
}

// Parse parses a YAML suite.
func Parse(data []byte) ([]LoadedTest, error) {
	var suite TestSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, err
	}
	if suite.Name == "" {
		return nil, fmt.Errorf("suite has no name")
	}

	tests := make([]LoadedTest, 0, len(suite.Tests))
	seen := make(map[string]bool, len(suite.Tests))
	for _, test := range suite.Tests {
		if test.Name == "" {
			return nil, fmt.Errorf("suite %s: test without name", suite.Name)
		}
		if seen[test.Name] {
			return nil, fmt.Errorf("suite %s: duplicate test %s",
				suite.Name, test.Name)
		}
		seen[test.Name] = true
		for _, e := range test.Engines {
			if !isEngine(e) {
				return nil, fmt.Errorf("suite %s: test %s: unknown engine %s",
					suite.Name, test.Name, e)
			}
		}
		tests = append(tests, LoadedTest{Suite: &suite, Test: test})
	}
	return tests, nil
}
