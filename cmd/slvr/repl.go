// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/inconshreveable/log15"
	"github.com/peterh/liner"

	"github.com/slvr-lang/slvr"
	"github.com/slvr-lang/slvr/token"
)

const (
	title         = "slvr"
	promptPrefix  = ">>> "
	promptPrefix2 = "... "
)

// Sentinel errors for repl.
var (
	errExit  = errors.New("exit")
	errReset = errors.New("reset")
)

type suggest struct {
	text        string
	description string
	typ         string
}

var commandSuggestions = []suggest{
	{text: ".commands", description: "Print REPL commands"},
	{text: ".keywords", description: "Print Keywords"},
	{text: ".bytecode", description: "Print Bytecode of the last run"},
	{text: ".globals", description: "Print Constants"},
	{text: ".functions", description: "Print Functions"},
	{text: ".store", description: "Print Store"},
	{text: ".fuel", description: "Print Fuel"},
	{text: ".return", description: "Print Last Return Result (verbose)"},
	{text: ".reset", description: "Reset"},
	{text: ".exit", description: "Exit"},
}

type repl struct {
	ctx          context.Context
	eval         *slvr.Eval
	out          io.Writer
	commands     map[string]func(string) error
	suggestions  []suggest
	script       *bytes.Buffer
	lastBytecode *slvr.Bytecode
	lastResult   slvr.Value
	isMultiline  bool
}

func newREPL(ctx context.Context, cfg *config, logger log.Logger,
	stdout io.Writer) *repl {

	if stdout == nil {
		stdout = os.Stdout
	}

	opts := cfg.compilerOptions("(repl)", stdout)
	eval := slvr.NewEval(opts, cfg.newRuntime())
	eval.VMOpts.Logger = logger

	r := &repl{
		ctx:    ctx,
		eval:   eval,
		out:    stdout,
		script: bytes.NewBuffer(nil),
	}
	r.setSuggestions()

	r.commands = map[string]func(string) error{
		".commands":  r.cmdCommands,
		".keywords":  r.cmdKeywords,
		".bytecode":  r.cmdBytecode,
		".globals":   r.cmdGlobals,
		".functions": r.cmdFunctions,
		".store":     r.cmdStore,
		".fuel":      r.cmdFuel,
		".return":    r.cmdReturn,
		".reset":     func(string) error { return errReset },
		".exit":      func(string) error { return errExit },
	}
	return r
}

func (r *repl) cmdCommands(_ string) error {
	r.printSuggestions(func(s suggest) bool { return s.typ == "" })
	return nil
}

func (r *repl) cmdKeywords(_ string) error {
	r.printSuggestions(func(s suggest) bool { return s.typ == "keyword" })
	return nil
}

func (r *repl) printSuggestions(filter func(suggest) bool) {
	var suggs []suggest
	var maxtext int
	for _, v := range r.suggestions {
		if !filter(v) {
			continue
		}
		suggs = append(suggs, v)
		if maxtext < len(v.text) {
			maxtext = len(v.text)
		}
	}
	for _, s := range suggs {
		if s.description == "" {
			_, _ = fmt.Fprintln(r.out, s.text)
			continue
		}
		_, _ = fmt.Fprintf(r.out, "%-*s\t%s\n", maxtext, s.text, s.description)
	}
}

func (r *repl) cmdBytecode(_ string) error {
	if r.lastBytecode == nil {
		_, _ = fmt.Fprintln(r.out, "<nil>")
		return nil
	}
	r.lastBytecode.Fprint(r.out)
	return nil
}

func (r *repl) cmdGlobals(_ string) error {
	names := make([]string, 0, len(r.eval.Globals))
	for name := range r.eval.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := r.eval.Globals[name]
		_, _ = fmt.Fprintf(r.out, "%s:%s = %s\n", name, v.TypeName(), v)
	}
	return nil
}

func (r *repl) cmdFunctions(_ string) error {
	names := make([]string, 0, len(r.eval.Functions))
	for name := range r.eval.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintln(r.out, r.eval.Functions[name].Signature())
	}
	return nil
}

func (r *repl) cmdStore(_ string) error {
	for _, e := range r.eval.Runtime.Snapshot() {
		_, _ = fmt.Fprintf(r.out, "%s = %s\n", e.Key, e.Value)
	}
	return nil
}

func (r *repl) cmdFuel(_ string) error {
	rt := r.eval.Runtime
	_, _ = fmt.Fprintf(r.out, "used: %s remaining: %s (%.2f%%)\n",
		humanize.Comma(int64(rt.FuelUsed())),
		humanize.Comma(int64(rt.RemainingFuel())),
		rt.FuelPercentage())
	return nil
}

func (r *repl) cmdReturn(_ string) error {
	if r.lastResult != nil {
		_, _ = fmt.Fprintf(r.out,
			"GoType:%[1]T, TypeName:%[2]s, Value:%[1]s\n",
			r.lastResult, r.lastResult.TypeName())
	} else {
		_, _ = fmt.Fprintln(r.out, "<nil>")
	}
	return nil
}

func (r *repl) writeString(msg string) {
	_, _ = fmt.Fprint(r.out, msg)
	_, _ = fmt.Fprintln(r.out)
}

func (r *repl) execute(line string) error {
	switch {
	case !r.isMultiline && line == "":
		return nil
	case !r.isMultiline && len(line) > 0 && line[0] == '.':
		cmd := strings.Fields(line)[0]
		if fn, ok := r.commands[cmd]; ok {
			return fn(line)
		}
	case strings.HasSuffix(line, "\\"):
		r.isMultiline = true
		r.script.WriteString(line[:len(line)-1])
		r.script.WriteString("\n")
		return nil
	}

	r.script.WriteString(line)

	r.executeScript()

	r.isMultiline = false
	r.setSuggestions()
	r.script.Reset()
	return nil
}

func (r *repl) executeScript() {
	var (
		ret slvr.Value
		bc  *slvr.Bytecode
		err error
	)
	ret, bc, err = r.eval.Run(r.ctx, r.script.Bytes())
	if bc != nil {
		r.lastBytecode = bc
	}
	if err != nil {
		r.writeString(fmt.Sprintf("\n!   %+v", err))
		return
	}
	r.lastResult = ret
	r.writeString(fmt.Sprintf("\n⇦   %s", ret))
}

// setSuggestions refreshes completions with the commands, keywords, and the
// constants and functions of the session.
func (r *repl) setSuggestions() {
	r.suggestions = append(r.suggestions[:0], commandSuggestions...)
	for _, kw := range token.Keywords() {
		r.suggestions = append(r.suggestions, suggest{text: kw, typ: "keyword"})
	}
	for name, v := range r.eval.Globals {
		r.suggestions = append(r.suggestions,
			suggest{text: name, description: v.TypeName(), typ: "symbol"})
	}
	for name := range r.eval.Functions {
		r.suggestions = append(r.suggestions,
			suggest{text: name, description: "function", typ: "symbol"})
	}
}

func (r *repl) complete(line string) (completions []string) {
	var contains []string
	for _, v := range r.suggestions {
		if strings.HasPrefix(v.text, line) {
			completions = append(completions, v.text)
		} else if strings.Contains(v.text, line) {
			contains = append(contains, v.text)
		}
	}
	completions = append(completions, contains...)
	return
}

func (r *repl) prefix() string {
	if r.isMultiline {
		return promptPrefix2
	}
	return promptPrefix
}

func (r *repl) printInfo() {
	_, _ = fmt.Fprintln(r.out, "Copyright (c) 2020-2023 Ozan Hacıbekiroğlu")
	_, _ = fmt.Fprintln(r.out, "License: MIT",
		"Build:", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintln(r.out, "Write .commands to list available commands")
	_, _ = fmt.Fprintln(r.out, "Press Ctrl+D or write .exit command to exit")
	_, _ = fmt.Fprintln(r.out)
}

func (r *repl) run(history io.Reader) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetMultiLineMode(true)
	line.SetCtrlCAborts(true)
	line.SetCompleter(r.complete)
	_, err := line.ReadHistory(history)
	if err != nil {
		return slvr.ErrIO.NewError("failed history read: " + err.Error())
	}
	r.printInfo()

	var str string

	for err == nil {
		str, err = line.Prompt(r.prefix())
		if err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			if err == liner.ErrPromptAborted {
				// Ctrl+C drops the pending input
				r.isMultiline = false
				r.script.Reset()
				err = nil
				continue
			}
			err = slvr.ErrIO.NewError("prompt error: " + err.Error())
			break
		}
		err = r.execute(str)
		if err == nil {
			if !r.isMultiline && len(str) > 0 {
				if v := strings.TrimSpace(str); len(v) > 0 {
					line.AppendHistory(v)
				}
			}
		}
	}
	return err
}

func setTerminalTitle(title string) {
	if runtime.GOOS == "windows" {
		return
	}

	titleBytes := bytes.ReplaceAll([]byte(title), []byte{0x13}, []byte{})
	titleBytes = bytes.ReplaceAll(titleBytes, []byte{0x07}, []byte{})

	_, _ = os.Stdout.Write([]byte{0x1b, ']', '2', ';'})
	_, _ = os.Stdout.Write(titleBytes)
	_, _ = os.Stdout.Write([]byte{0x07})
}

const history = "1 + 2 * 3\n" +
	"defconst rate:decimal = 0.25\n" +
	"defun double(x:integer) -> integer x * 2\n" +
	"let x = double(2) if x > 1 then \"big\" else \"small\"\n" +
	"write \"accounts\" \"alice\" {balance: 100}\n" +
	"update \"accounts\" \"alice\" {balance: 90}\n" +
	"read \"accounts\" \"alice\"\n"

func (a *app) cmdREPL(_ []string) error {
	if !hasMode(os.Stdout, os.ModeCharDevice) {
		return errors.New("not a terminal")
	}
	setTerminalTitle(title)

	for {
		err := newREPL(a.ctx, a.cfg, a.logger, a.stdout).run(strings.NewReader(history))
		switch err {
		case errReset:
			continue
		case errExit:
			return nil
		}
		return err
	}
}
