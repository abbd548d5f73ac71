// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"

	"github.com/slvr-lang/slvr"
	"github.com/slvr-lang/slvr/conformance"
	"github.com/slvr-lang/slvr/encoder"
	"github.com/slvr-lang/slvr/parser"
	"github.com/slvr-lang/slvr/storage"
)

const bytecodeExt = ".slvrc"

func (a *app) readSource(path string) (modulePath string, src []byte, err error) {
	if path == "-" {
		src, err = io.ReadAll(a.stdin)
		return "(stdin)", src, err
	}
	src, err = os.ReadFile(path)
	return path, src, err
}

func (a *app) compile(path string) (*slvr.Bytecode, error) {
	modulePath, src, err := a.readSource(path)
	if err != nil {
		return nil, err
	}
	return slvr.Compile(src, a.cfg.compilerOptions(modulePath, a.stdout))
}

func (a *app) openStore() (*storage.SQLiteStore, error) {
	if a.cfg.DB == "" {
		return nil, nil
	}
	return storage.Open(a.cfg.DB)
}

// execute runs bc against a new Runtime. The store is loaded from and saved
// to the database if one is configured. A failed run saves nothing.
func (a *app) execute(bc *slvr.Bytecode) error {
	rt := a.cfg.newRuntime()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		ok, err := store.LoadRuntime(a.ctx, a.cfg.Snapshot, rt)
		if err != nil {
			return err
		}
		a.logger.Debug("store loaded", "db", a.cfg.DB,
			"snapshot", a.cfg.Snapshot, "found", ok, "keys", rt.Size())
	}

	vm := slvr.NewVM(bc, rt).SetLogger(a.logger)
	ret, err := vm.RunContext(a.ctx)
	a.printStats(rt)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.stdout, ret.String())

	if store != nil {
		if err := store.SaveRuntime(a.ctx, a.cfg.Snapshot, rt); err != nil {
			return err
		}
		a.logger.Info("store saved", "db", a.cfg.DB,
			"snapshot", a.cfg.Snapshot, "keys", rt.Size())
	}
	return nil
}

func (a *app) printStats(rt *slvr.Runtime) {
	st := rt.Stats()
	_, _ = fmt.Fprintf(a.stderr, "fuel: %s / %s (%.2f%%)\n",
		humanize.Comma(int64(st.FuelUsed)), humanize.Comma(int64(st.FuelTotal)),
		rt.FuelPercentage())
	_, _ = fmt.Fprintf(a.stderr, "keys: %s, time: %s, tx: %s\n",
		humanize.Comma(int64(st.StateSize)), st.ExecutionTime, st.TxID)
}

func (a *app) cmdRun(args []string) error {
	bc, err := a.compile(args[0])
	if err != nil {
		return err
	}
	return a.execute(bc)
}

func (a *app) cmdDisasm(args []string) error {
	bc, err := a.compile(args[0])
	if err != nil {
		return err
	}
	bc.Fprint(a.stdout)
	return nil
}

func (a *app) cmdCompile(args []string) error {
	path := args[0]
	out := a.cfg.Output
	if out == "" {
		if path == "-" {
			return errors.New("compile: output file is required for stdin")
		}
		out = strings.TrimSuffix(path, filepath.Ext(path)) + bytecodeExt
	}

	bc, err := a.compile(path)
	if err != nil {
		return err
	}
	var data []byte
	if a.cfg.Compress {
		data, err = encoder.CompressBytecode(bc)
	} else {
		data, err = encoder.MarshalBytecode(bc)
	}
	if err != nil {
		return err
	}
	if err = os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	a.logger.Info("compiled", "file", out,
		"size", humanize.Bytes(uint64(len(data))), "compressed", a.cfg.Compress)
	return nil
}

func (a *app) cmdExec(args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	bc, err := encoder.LoadBytecode(data)
	if err != nil {
		return err
	}
	return a.execute(bc)
}

type outcome struct {
	value slvr.Value
	err   error
	store slvr.Snapshot
}

func (o outcome) String() string {
	if o.err != nil {
		return errorName(o.err)
	}
	return fmt.Sprintf("%s (%s)", o.value, o.value.TypeName())
}

func (o outcome) equal(other outcome) bool {
	if (o.err == nil) != (other.err == nil) {
		return false
	}
	if o.err != nil {
		return errorName(o.err) == errorName(other.err)
	}
	return o.value.TypeName() == other.value.TypeName() &&
		o.value.Equal(other.value) && o.store.Equal(other.store)
}

// errorName returns the name of the sentinel err wraps.
func errorName(err error) string {
	switch {
	case errors.Is(err, slvr.ErrLexer):
		return "LexerError"
	case errors.Is(err, slvr.ErrParse):
		return "ParseError"
	}
	var e *slvr.Error
	if errors.As(err, &e) {
		return e.Name
	}
	return "Error"
}

func (a *app) cmdCheck(args []string) error {
	modulePath, src, err := a.readSource(args[0])
	if err != nil {
		return err
	}

	var vmOut outcome
	rt := a.cfg.newRuntime()
	bc, err := slvr.Compile(src, a.cfg.compilerOptions(modulePath, a.stdout))
	if err == nil {
		vmOut.value, err = slvr.NewVM(bc, rt).SetLogger(a.logger).RunContext(a.ctx)
	}
	vmOut.err = err
	vmOut.store = rt.Snapshot()

	var evalOut outcome
	rt = a.cfg.newRuntime()
	file, err := parser.Parse(modulePath, src, nil)
	if err == nil {
		evalOut.value, err = slvr.NewEvaluator(rt).SetLogger(a.logger).EvalFile(file)
	}
	evalOut.err = err
	evalOut.store = rt.Snapshot()

	if !vmOut.equal(evalOut) {
		return fmt.Errorf("engines differ:\n\tvm:        %s\n\tevaluator: %s",
			vmOut, evalOut)
	}
	_, _ = fmt.Fprintf(a.stdout, "ok: %s\n", vmOut)
	return nil
}

func (a *app) cmdTest(args []string) error {
	dir := conformance.TestPath
	if len(args) > 0 {
		dir = args[0]
	}
	tests, err := conformance.LoadDir(dir)
	if err != nil {
		return err
	}

	results := conformance.NewRunner(a.ctx, a.logger).RunAll(tests)
	for _, r := range results {
		if r.Passed || r.Skipped {
			continue
		}
		_, _ = fmt.Fprintf(a.stdout, "FAIL %s: %s [%s]: %v\n",
			r.Test.File, r.Test.Test.Name, r.Engine, r.Error)
	}
	stats := conformance.ComputeStats(results)
	_, _ = fmt.Fprintln(a.stdout, conformance.FormatStats(stats))
	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d conformance tests failed",
			stats.Failed, stats.Total)
	}
	return nil
}

// cmdWatch runs the script, then runs it again after every write until the
// context is done. The directory is watched, so editors replacing the file
// are seen too.
func (a *app) cmdWatch(args []string) error {
	const debounce = 100 * time.Millisecond

	path := filepath.Clean(args[0])
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	a.logger.Info("watching", "file", path)
	a.runWatched(path)

	var lastChange time.Time
	for {
		select {
		case <-a.ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if time.Since(lastChange) < debounce {
				continue
			}
			lastChange = time.Now()
			a.logger.Info("file changed", "file", path)
			a.runWatched(path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Error("watcher error", "err", err)
		}
	}
}

func (a *app) runWatched(path string) {
	bc, err := a.compile(path)
	if err == nil {
		err = a.execute(bc)
	}
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "%+v\n", err)
	}
}
