// Copyright (c) 2020 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"

	"github.com/slvr-lang/slvr/parser"
)

// CompilerOptions represents customizable options for Compile().
type CompilerOptions struct {
	ModulePath     string
	// Globals are the variables provided by the host, like the constants of
	// a previous run.
	Globals        map[string]Type
	// Functions are compiled functions callable by name, like the functions
	// of a previous run.
	Functions      map[string]*FunctionDef
	Trace          io.Writer
	TraceParser    bool
	TraceCompiler  bool
	TraceOptimizer bool
	Optimize       bool
}

var (
	// DefaultCompilerOptions holds default Compiler options.
	DefaultCompilerOptions = CompilerOptions{
		Optimize: true,
	}
	// TraceCompilerOptions holds Compiler options to print trace output
	// to stdout for Parser, Optimizer, Compiler.
	TraceCompilerOptions = CompilerOptions{
		Trace:          os.Stdout,
		TraceParser:    true,
		TraceCompiler:  true,
		TraceOptimizer: true,
		Optimize:       true,
	}
)

// CompilerError represents a compiler error.
type CompilerError struct {
	FileSet *parser.SourceFileSet
	Node    parser.Node
	Err     error
}

func (e *CompilerError) Error() string {
	filePos := e.FileSet.Position(e.Node.Pos())
	return fmt.Sprintf("Compile Error: %s\n\tat %s", e.Err.Error(), filePos)
}

func (e *CompilerError) Unwrap() error {
	return e.Err
}

// Compiler compiles the AST into a bytecode.
type Compiler struct {
	file      *parser.SourceFile
	env       *TypeEnv
	opts      CompilerOptions
	trace     io.Writer
	indent    int
	insts     []Instruction
	main      []Instruction
	numLocals int
	functions map[string]*FunctionDef
	// open counts emitted jump placeholders which are not patched yet.
	open int
}

// NewCompiler creates a new Compiler object.
func NewCompiler(file *parser.SourceFile, opts CompilerOptions) *Compiler {
	var trace io.Writer
	if opts.TraceCompiler {
		trace = opts.Trace
	}
	env := NewTypeEnv()
	names := make([]string, 0, len(opts.Globals))
	for name := range opts.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env.DefineVar(name, opts.Globals[name])
	}
	for _, fn := range opts.Functions {
		_ = env.DefineFunc(fn.Name, &FuncSig{
			Name:   fn.Name,
			Params: fn.Params,
			Ret:    fn.Ret,
			Doc:    fn.Doc,
		})
	}
	return &Compiler{
		file:      file,
		env:       env,
		opts:      opts,
		trace:     trace,
		functions: make(map[string]*FunctionDef),
	}
}

// Compile compiles given script to Bytecode.
func Compile(script []byte, opts CompilerOptions) (*Bytecode, error) {
	fileSet := parser.NewFileSet()
	moduleName := opts.ModulePath
	if moduleName == "" {
		moduleName = "(main)"
	}
	srcFile := fileSet.AddFile(moduleName, -1, len(script))
	var trace io.Writer
	if opts.TraceParser {
		trace = opts.Trace
	}
	p := parser.NewParser(srcFile, script, trace)
	pf, err := p.ParseFile()
	if err != nil {
		return nil, err
	}

	compiler := NewCompiler(srcFile, opts)
	if err := compiler.Compile(pf); err != nil {
		return nil, err
	}
	bc := compiler.Bytecode()
	if opts.Optimize {
		var trace io.Writer
		if opts.TraceOptimizer {
			trace = opts.Trace
		}
		OptimizeBytecode(bc, trace)
	}
	return bc, nil
}

// TypeEnv returns the type environment of the compiler.
func (c *Compiler) TypeEnv() *TypeEnv {
	return c.env
}

// Bytecode returns compiled Bytecode ready to run in VM.
func (c *Compiler) Bytecode() *Bytecode {
	var tables map[string]map[string]Type
	if s := c.env.TableSchemas(); len(s) > 0 {
		tables = s
	}
	return &Bytecode{
		FileSet:   c.file.Set(),
		Main:      c.main,
		NumLocals: c.numLocals,
		Functions: c.functions,
		Tables:    tables,
	}
}

// Compile compiles a file in two passes. The first pass declares every
// definition so forward references are legal, the second emits code.
func (c *Compiler) Compile(file *parser.File) error {
	if c.trace != nil {
		defer untracec(tracec(c, "File"))
	}
	if err := c.declare(file); err != nil {
		return err
	}

	var err error
	file.Walk(func(def parser.Def, _ *parser.ModuleDef) {
		if fn, ok := def.(*parser.FuncDef); ok && err == nil {
			err = c.compileFuncDef(fn)
		}
	})
	if err != nil {
		return err
	}

	c.insts = nil
	c.env.ResetLocals()
	var pending bool
	file.Walk(func(def parser.Def, _ *parser.ModuleDef) {
		if err != nil {
			return
		}
		switch def := def.(type) {
		case *parser.ExprDef:
			if pending {
				c.emit(def, OpPop)
			}
			_, err = c.compileExpr(def.Expr)
			pending = true
		case *parser.ConstDef:
			err = c.compileConstDef(def)
		case *parser.BadDef:
			err = c.errorf(def, "bad definition")
		}
	})
	if err != nil {
		return err
	}
	c.main = c.insts
	c.numLocals = c.env.MaxLocals()
	c.insts = nil
	return nil
}

// declare registers schemas, tables, functions and constants.
func (c *Compiler) declare(file *parser.File) error {
	var schemas []*parser.SchemaDef
	var tables []*parser.TableDef
	var funcs []*parser.FuncDef
	var consts []*parser.ConstDef
	file.Walk(func(def parser.Def, _ *parser.ModuleDef) {
		switch def := def.(type) {
		case *parser.SchemaDef:
			schemas = append(schemas, def)
		case *parser.TableDef:
			tables = append(tables, def)
		case *parser.FuncDef:
			funcs = append(funcs, def)
		case *parser.ConstDef:
			consts = append(consts, def)
		}
	})

	for _, def := range schemas {
		if err := c.env.DefineSchema(def.Name.Name, nil); err != nil {
			return c.error(def, err)
		}
	}
	// Field types are resolved after all schema names are known, so
	// references between schemas stay by name.
	for _, def := range schemas {
		s, _ := c.env.LookupSchema(def.Name.Name)
		for _, f := range def.Fields {
			if _, ok := s.Fields[f.Name.Name]; ok {
				return c.errorf(f, "duplicate field '%s' in schema '%s'",
					f.Name.Name, def.Name.Name)
			}
			t, err := c.resolveType(f.Type, true)
			if err != nil {
				return err
			}
			s.Fields[f.Name.Name] = t
		}
	}

	for _, def := range tables {
		if err := c.env.DefineTable(def.Name.Name, def.Schema.Name); err != nil {
			return c.error(def, err)
		}
	}

	for _, def := range funcs {
		sig := &FuncSig{Name: def.Name.Name, Doc: docOf(def.Doc)}
		seen := make(map[string]struct{}, len(def.Params))
		for _, p := range def.Params {
			if _, ok := seen[p.Name.Name]; ok {
				return c.errorf(p, "duplicate parameter '%s'", p.Name.Name)
			}
			seen[p.Name.Name] = struct{}{}
			t, err := c.resolveType(p.Type, false)
			if err != nil {
				return err
			}
			sig.Params = append(sig.Params, Param{Name: p.Name.Name, Type: t})
		}
		ret, err := c.resolveType(def.Ret, false)
		if err != nil {
			return err
		}
		sig.Ret = ret
		if err := c.env.DefineFunc(sig.Name, sig); err != nil {
			return c.error(def, err)
		}
	}

	for _, def := range consts {
		if _, ok := c.env.Resolve(def.Name.Name); ok {
			return c.error(def, ErrCompilation.NewError(
				"constant '"+def.Name.Name+"' redeclared"))
		}
		t, err := c.resolveType(def.Type, false)
		if err != nil {
			return err
		}
		c.env.DefineVar(def.Name.Name, t)
	}
	return nil
}

// resolveType converts a type annotation. Schema names resolve to the
// registered schema, or to a CustomType inside schema fields.
func (c *Compiler) resolveType(expr parser.TypeExpr, inSchema bool) (Type, error) {
	switch expr := expr.(type) {
	case *parser.NamedType:
		if t, ok := BasicTypeByName(expr.Name); ok {
			return t, nil
		}
		s, ok := c.env.LookupSchema(expr.Name)
		if !ok {
			return nil, c.error(expr, ErrUnknownSchema.NewError(
				"unknown type '"+expr.Name+"'"))
		}
		if inSchema {
			return &CustomType{Name: s.Name}, nil
		}
		return s, nil
	case *parser.ListType:
		elem, err := c.resolveType(expr.Elem, inSchema)
		if err != nil {
			return nil, err
		}
		return &ListType{Elem: elem}, nil
	case *parser.ObjectType:
		fields := make(map[string]Type, len(expr.Fields))
		for _, f := range expr.Fields {
			t, err := c.resolveType(f.Type, inSchema)
			if err != nil {
				return nil, err
			}
			fields[f.Name.Name] = t
		}
		return &ObjectType{Fields: fields}, nil
	case nil:
		return TAny, nil
	}
	return nil, c.errorf(expr, "invalid type %s", expr)
}

func (c *Compiler) compileFuncDef(def *parser.FuncDef) error {
	if c.trace != nil {
		defer untracec(tracec(c, "Function "+def.Name.Name))
	}
	sig, _ := c.env.LookupFunc(def.Name.Name)

	c.insts = nil
	c.env.ResetLocals()
	c.env.PushScope()
	for _, p := range sig.Params {
		c.env.DefineVar(p.Name, p.Type)
	}
	typ, err := c.compileExpr(def.Body)
	if err != nil {
		return err
	}
	if !typ.CompatibleWith(sig.Ret) {
		return c.error(def.Body, &TypeMismatchError{
			Expected: sig.Ret.String(),
			Actual:   typ.String(),
		})
	}
	c.emit(def, OpReturn)
	if err := c.env.PopScope(); err != nil {
		return c.error(def, err)
	}

	c.functions[sig.Name] = &FunctionDef{
		Name:         sig.Name,
		Params:       sig.Params,
		Ret:          sig.Ret,
		NumLocals:    c.env.MaxLocals(),
		Instructions: c.insts,
		Doc:          sig.Doc,
	}
	c.insts = nil
	return nil
}

func (c *Compiler) compileConstDef(def *parser.ConstDef) error {
	declared, _ := c.env.LookupVar(def.Name.Name)
	typ, err := c.compileExpr(def.Value)
	if err != nil {
		return err
	}
	if !typ.CompatibleWith(declared) {
		return c.error(def.Value, &TypeMismatchError{
			Expected: declared.String(),
			Actual:   typ.String(),
		})
	}
	if !typ.Equal(declared) {
		c.emit(def, OpCast, declared)
	}
	c.emit(def, OpStoreGlobal, def.Name.Name)
	return nil
}

func docOf(doc *parser.StringLit) string {
	if doc == nil {
		return ""
	}
	return doc.Value
}

func (c *Compiler) emit(node parser.Node, op Opcode, operands ...interface{}) int {
	inst, err := MakeInstruction(op, operands...)
	if err != nil {
		panic(err)
	}
	pos := len(c.insts)
	c.insts = append(c.insts, inst)

	if c.trace != nil {
		c.printTrace(fmt.Sprintf("EMIT  %s", FormatInstructions(
			c.insts[pos:], pos)[0]))
	}
	return pos
}

// emitJump emits a jump with a placeholder target which must be resolved
// with patchJump before the node being compiled returns.
func (c *Compiler) emitJump(node parser.Node, op Opcode) int {
	c.open++
	return c.emit(node, op, -1)
}

// patchJump sets the target of the jump at pos to the current position.
func (c *Compiler) patchJump(pos int) {
	c.insts[pos].N = len(c.insts)
	c.open--
	if c.trace != nil {
		c.printTrace(fmt.Sprintf("REPLC %s", FormatInstructions(
			c.insts[pos:], pos)[0]))
	}
}

func (c *Compiler) error(node parser.Node, err error) error {
	if _, ok := err.(*CompilerError); ok {
		return err
	}
	return &CompilerError{
		FileSet: c.file.Set(),
		Node:    node,
		Err:     err,
	}
}

func (c *Compiler) errorf(node parser.Node,
	format string, args ...interface{}) error {

	return &CompilerError{
		FileSet: c.file.Set(),
		Node:    node,
		Err:     ErrCompilation.NewError(fmt.Sprintf(format, args...)),
	}
}

func (c *Compiler) printTrace(a ...interface{}) {
	const (
		dots = ". . . . . . . . . . . . . . . . . . . . . . . . . . . . . . . "
		n    = len(dots)
	)

	i := 2 * c.indent
	for i > n {
		_, _ = fmt.Fprint(c.trace, dots)
		i -= n
	}
	_, _ = fmt.Fprint(c.trace, dots[0:i])
	_, _ = fmt.Fprintln(c.trace, a...)
}

func tracec(c *Compiler, msg string) *Compiler {
	c.printTrace(msg, "{")
	c.indent++
	return c
}

func untracec(c *Compiler) {
	c.indent--
	c.printTrace("}")
}

func nodeName(node parser.Node) string {
	if node == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s)", node.String(),
		reflect.TypeOf(node).Elem().Name())
}
