// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Command slvr compiles and runs slvr scripts, and starts a REPL when no
// command is given.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/spf13/pflag"
)

type command struct {
	usage       string
	description string
	minArgs     int
	maxArgs     int
	run         func(a *app, args []string) error
}

var commands = map[string]command{
	"run": {
		usage:       "run [flags] <file|->",
		description: "Compile and run a script and print the result",
		minArgs:     1, maxArgs: 1,
		run: (*app).cmdRun,
	},
	"disasm": {
		usage:       "disasm [flags] <file>",
		description: "Print the bytecode of a script",
		minArgs:     1, maxArgs: 1,
		run: (*app).cmdDisasm,
	},
	"compile": {
		usage:       "compile [flags] <file> [-o out.slvrc]",
		description: "Encode the bytecode of a script to a file",
		minArgs:     1, maxArgs: 1,
		run: (*app).cmdCompile,
	},
	"exec": {
		usage:       "exec [flags] <file.slvrc>",
		description: "Run encoded bytecode",
		minArgs:     1, maxArgs: 1,
		run: (*app).cmdExec,
	},
	"check": {
		usage:       "check [flags] <file>",
		description: "Run a script with the VM and the Evaluator and compare",
		minArgs:     1, maxArgs: 1,
		run: (*app).cmdCheck,
	},
	"test": {
		usage:       "test [flags] [dir]",
		description: "Run YAML conformance suites",
		minArgs:     0, maxArgs: 1,
		run: (*app).cmdTest,
	},
	"watch": {
		usage:       "watch [flags] <file>",
		description: "Run a script again whenever it changes",
		minArgs:     1, maxArgs: 1,
		run: (*app).cmdWatch,
	},
	"repl": {
		usage:       "repl [flags]",
		description: "Start the interactive terminal",
		minArgs:     0, maxArgs: 0,
		run: (*app).cmdREPL,
	},
}

type app struct {
	ctx    context.Context
	cfg    *config
	logger log.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprint(w, "Usage: slvr <command> [flags] [args]\n\n",
		"If no command is given, REPL terminal application is started\n",
		"or the script is read from stdin\n\nCommands:\n")
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].description)
	}
}

func runCommand(ctx context.Context, args []string,
	stdin io.Reader, stdout, stderr io.Writer) error {

	if len(args) == 0 {
		usage(stderr)
		return errors.New("no command")
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		usage(stderr)
		return fmt.Errorf("unknown command: %s", name)
	}

	fs := buildFlagSet("slvr " + name)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: slvr %s\n\n%s\n\nFlags:\n",
			cmd.usage, cmd.description)
		fs.PrintDefaults()
	}
	v, err := getViper(fs, args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	if n := fs.NArg(); n < cmd.minArgs || n > cmd.maxArgs {
		fs.Usage()
		return fmt.Errorf("%s: wrong number of arguments", name)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	a := &app{
		ctx:    ctx,
		cfg:    cfg,
		logger: cfg.newLogger(stderr),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	return cmd.run(a, fs.Args())
}

func hasMode(f *os.File, m os.FileMode) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&m == m
}

func hasInputRedirection() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeNamedPipe == os.ModeNamedPipe ||
		info.Size() > 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args[1:]
	if len(args) == 0 {
		if hasInputRedirection() {
			args = []string{"run", "-"}
		} else {
			args = []string{"repl"}
		}
	}

	start := time.Now()
	err := runCommand(ctx, args, os.Stdin, os.Stdout, os.Stderr)
	log.Debug("command finished", "command", args[0],
		"elapsed", time.Since(start))
	checkErr(err, stop)
}

func checkErr(err error, fn func()) {
	if err == nil {
		return
	}

	defer os.Exit(1)
	_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
	if fn != nil {
		fn()
	}
}
