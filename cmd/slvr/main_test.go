package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slvr-lang/slvr"
	"github.com/slvr-lang/slvr/encoder"
)

func TestREPL(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stdout := bytes.NewBuffer(nil)
	cfg := &config{Fuel: defaultFuel, LogLevel: defaultLogLevel,
		Context: slvr.DefaultExecutionContext()}
	logger := log.New()
	logger.SetHandler(log.DiscardHandler())
	r := newREPL(ctx, cfg, logger, stdout)

	r.execute(".bytecode")
	require.Equal(t, "<nil>\n", testConsume(stdout))
	r.execute(".return")
	require.Equal(t, "<nil>\n", testConsume(stdout))

	r.execute("test")
	testHasPrefix(t, testConsume(stdout), "\n!   ")

	r.execute("1 + 2")
	require.Equal(t, "\n⇦   3\n", testConsume(stdout))

	r.execute(".bytecode")
	testHasPrefix(t, testConsume(stdout), "Bytecode\n")

	r.execute(".return")
	testHasPrefix(t, testConsume(stdout), "GoType:slvr.Integer, TypeName:integer, Value:3")

	r.execute("defconst rate:decimal = 0.25")
	testHasPrefix(t, testConsume(stdout), "\n⇦   ")
	r.execute(".globals")
	require.Equal(t, "rate:decimal = 0.25\n", testConsume(stdout))

	r.execute("defun double(x:integer) -> integer x * 2")
	testHasPrefix(t, testConsume(stdout), "\n⇦   ")
	r.execute(".functions")
	testHasPrefix(t, testConsume(stdout), "double(")

	// constants and functions of previous runs are visible
	r.execute("double(21)")
	require.Equal(t, "\n⇦   42\n", testConsume(stdout))

	r.execute("1 +\\")
	require.Empty(t, testConsume(stdout))
	require.Equal(t, promptPrefix2, r.prefix())
	r.execute("2")
	require.Equal(t, "\n⇦   3\n", testConsume(stdout))
	require.Equal(t, promptPrefix, r.prefix())

	r.execute(`write "t" "k" 1`)
	testConsume(stdout)
	r.execute(".store")
	require.Equal(t, "t:k = 1\n", testConsume(stdout))

	r.execute(".fuel")
	testHasPrefix(t, testConsume(stdout), "used: ")

	r.execute(".commands")
	testHasPrefix(t, testConsume(stdout), ".commands")
	r.execute(".keywords")
	require.Contains(t, testConsume(stdout), "defun\n")

	require.Contains(t, r.complete("dou"), "double")
	require.Contains(t, r.complete(".glo"), ".globals")

	require.Equal(t, errReset, r.execute(".reset"))
	require.Equal(t, errExit, r.execute(".exit"))
	require.Empty(t, testConsume(stdout))
}

func TestConfig(t *testing.T) {
	v, err := getViper(buildFlagSet("test"), nil)
	require.NoError(t, err)
	cfg, err := loadConfig(v)
	require.NoError(t, err)
	require.Equal(t, defaultFuel, cfg.Fuel)
	require.Equal(t, defaultLogLevel, cfg.LogLevel)
	require.Equal(t, defaultSnapshot, cfg.Snapshot)
	require.Equal(t, slvr.DefaultExecutionContext(), cfg.Context)
	require.True(t, cfg.compilerOptions("x", nil).Optimize)

	path := filepath.Join(t.TempDir(), "slvr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"fuel: 42\nlog-level: debug\ncaller: bob\nblock-height: 7\n"), 0o644))

	v, err = getViper(buildFlagSet("test"), []string{"--config", path})
	require.NoError(t, err)
	cfg, err = loadConfig(v)
	require.NoError(t, err)
	require.Equal(t, uint64(42), cfg.Fuel)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "bob", cfg.Context.Caller)
	require.Equal(t, uint64(7), cfg.Context.BlockHeight)
	require.Equal(t, "0x0", cfg.Context.TxHash)

	// flags override environment which overrides the config file
	t.Setenv("SLVR_FUEL", "500")
	t.Setenv("SLVR_TX_HASH", "0xabc")
	v, err = getViper(buildFlagSet("test"), []string{"--config", path})
	require.NoError(t, err)
	cfg, err = loadConfig(v)
	require.NoError(t, err)
	require.Equal(t, uint64(500), cfg.Fuel)
	require.Equal(t, "0xabc", cfg.Context.TxHash)

	v, err = getViper(buildFlagSet("test"), []string{"--config", path,
		"--fuel", "9", "--no-optimizer", "--trace", "parser,compiler"})
	require.NoError(t, err)
	cfg, err = loadConfig(v)
	require.NoError(t, err)
	require.Equal(t, uint64(9), cfg.Fuel)
	opts := cfg.compilerOptions("x", os.Stdout)
	require.False(t, opts.Optimize)
	require.True(t, opts.TraceParser)
	require.True(t, opts.TraceCompiler)
	require.False(t, opts.TraceOptimizer)
	require.Equal(t, os.Stdout, opts.Trace)

	v, err = getViper(buildFlagSet("test"), []string{"--trace", "lexer"})
	require.NoError(t, err)
	_, err = loadConfig(v)
	require.EqualError(t, err, "unknown trace unit: lexer")

	v, err = getViper(buildFlagSet("test"), []string{"--log-level", "loud"})
	require.NoError(t, err)
	_, err = loadConfig(v)
	require.Error(t, err)

	_, err = getViper(buildFlagSet("test"),
		[]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	_, err = getViper(buildFlagSet("test"), []string{"--fuel", "x"})
	require.Error(t, err)
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	script := testWriteFile(t, dir, "sum.slvr", "1 + 2")

	out, errOut, err := testRun(t, nil, "run", script, "--fuel", "1000")
	require.NoError(t, err)
	require.Equal(t, "3\n", out)
	require.Contains(t, errOut, "fuel: 3 / 1,000 (0.30%)")

	out, _, err = testRun(t, strings.NewReader("2 * 4"), "run", "-")
	require.NoError(t, err)
	require.Equal(t, "8\n", out)

	_, _, err = testRun(t, nil, "run", script, "--fuel", "1")
	require.True(t, errors.Is(err, slvr.ErrFuelExceeded), "%v", err)

	out, _, err = testRun(t, nil, "disasm", script)
	require.NoError(t, err)
	testHasPrefix(t, out, "Bytecode\n")

	out, _, err = testRun(t, nil, "check", script)
	require.NoError(t, err)
	require.Equal(t, "ok: 3 (integer)\n", out)

	div := testWriteFile(t, dir, "div.slvr", `
defun div(a:integer, b:integer) -> integer a / b
div(1, 0)`)
	out, _, err = testRun(t, nil, "check", div)
	require.NoError(t, err)
	require.Equal(t, "ok: DivisionByZeroError\n", out)

	_, _, err = testRun(t, nil, "run", div)
	require.True(t, errors.Is(err, slvr.ErrDivisionByZero), "%v", err)

	out, _, err = testRun(t, nil, "test", filepath.Join("..", "..", "conformance", "testdata"))
	require.NoError(t, err)
	require.Contains(t, out, " 0 failed")

	_, _, err = testRun(t, nil, "run", filepath.Join(dir, "missing.slvr"))
	require.Error(t, err)
}

func TestCommandsCompile(t *testing.T) {
	dir := t.TempDir()
	script := testWriteFile(t, dir, "fib.slvr", `
defun fib(n:integer) -> integer if n < 2 then n else fib(n - 1) + fib(n - 2)
fib(10)`)

	_, _, err := testRun(t, nil, "compile", script)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "fib"+bytecodeExt))
	require.NoError(t, err)
	require.False(t, encoder.IsCompressed(data))

	out, _, err := testRun(t, nil, "exec", filepath.Join(dir, "fib"+bytecodeExt))
	require.NoError(t, err)
	require.Equal(t, "55\n", out)

	compressed := filepath.Join(dir, "fib.zst")
	_, _, err = testRun(t, nil, "compile", script, "--compress", "-o", compressed)
	require.NoError(t, err)
	data, err = os.ReadFile(compressed)
	require.NoError(t, err)
	require.True(t, encoder.IsCompressed(data))

	out, _, err = testRun(t, nil, "exec", compressed)
	require.NoError(t, err)
	require.Equal(t, "55\n", out)

	_, _, err = testRun(t, strings.NewReader("1"), "compile", "-")
	require.Error(t, err)

	bad := testWriteFile(t, dir, "bad"+bytecodeExt, "not bytecode")
	_, _, err = testRun(t, nil, "exec", bad)
	require.Error(t, err)
}

func TestCommandsDB(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "state.db")
	initScript := testWriteFile(t, dir, "init.slvr", `write "c" "n" {v: 1}`)
	incScript := testWriteFile(t, dir, "inc.slvr", `
let n = read "c" "n"
update "c" "n" {v: n.v + 1}`)

	_, _, err := testRun(t, nil, "run", initScript, "--db", db)
	require.NoError(t, err)

	for i := 2; i <= 3; i++ {
		out, _, err := testRun(t, nil, "run", incScript, "--db", db)
		require.NoError(t, err)
		want := slvr.Object{"v": slvr.Int(int64(i))}
		require.Equal(t, want.String()+"\n", out)
	}

	// another snapshot of the same database starts empty
	readScript := testWriteFile(t, dir, "read.slvr", `read "c" "n"`)
	out, _, err := testRun(t, nil, "run", readScript, "--db", db,
		"--snapshot", "other")
	require.NoError(t, err)
	require.Equal(t, "null\n", out)

	resetScript := testWriteFile(t, dir, "reset.slvr", `update "c" "n" {v: 0}`)
	_, _, err = testRun(t, nil, "run", resetScript, "--db", db,
		"--snapshot", "other")
	require.NoError(t, err)
	out, _, err = testRun(t, nil, "run", readScript, "--db", db,
		"--snapshot", "other")
	require.NoError(t, err)
	require.Equal(t, `{"v": 0}`+"\n", out)
	out, _, err = testRun(t, nil, "run", readScript, "--db", db)
	require.NoError(t, err)
	require.Equal(t, `{"v": 3}`+"\n", out)
}

func TestCommandErrors(t *testing.T) {
	_, errOut, err := testRun(t, nil)
	require.EqualError(t, err, "no command")
	require.Contains(t, errOut, "Usage: slvr")

	_, _, err = testRun(t, nil, "fly")
	require.EqualError(t, err, "unknown command: fly")

	_, errOut, err = testRun(t, nil, "run")
	require.EqualError(t, err, "run: wrong number of arguments")
	require.Contains(t, errOut, "Usage: slvr run")

	_, _, err = testRun(t, nil, "repl", "x")
	require.Error(t, err)

	_, errOut, err = testRun(t, nil, "run", "--help")
	require.NoError(t, err)
	require.Contains(t, errOut, "--fuel")

	_, _, err = testRun(t, nil, "run", "--log-level", "loud", "x")
	require.Error(t, err)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	script := testWriteFile(t, dir, "w.slvr", "1 + 1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var stdout, stderr syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- runCommand(ctx, []string{"watch", script}, nil, &stdout, &stderr)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "2\n")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(script, []byte("40 + 2"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "42\n")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func testRun(t *testing.T, stdin *strings.Reader, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	var in = strings.NewReader("")
	if stdin != nil {
		in = stdin
	}
	err := runCommand(context.Background(), args, in, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func testWriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testHasPrefix(t *testing.T, s, pref string) {
	t.Helper()
	v := strings.HasPrefix(s, pref)
	if !assert.True(t, v) {
		t.Fatalf("input: %q\nprefix: %q", s, pref)
	}
}

func testConsume(b *bytes.Buffer) string {
	s := b.String()
	b.Reset()
	return s
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
