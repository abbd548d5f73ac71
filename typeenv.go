// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"fmt"
	"sort"
)

// SymbolScope represents a symbol scope.
type SymbolScope string

// List of symbol scopes
const (
	ScopeGlobal SymbolScope = "GLOBAL"
	ScopeLocal  SymbolScope = "LOCAL"
)

// Symbol represents a variable in the type environment.
type Symbol struct {
	Name  string
	Type  Type
	Index int
	Scope SymbolScope
}

func (s *Symbol) String() string {
	return fmt.Sprintf("Symbol{Name:%s Type:%s Index:%d Scope:%s}",
		s.Name, s.Type, s.Index, s.Scope)
}

// Param is a named and typed function parameter.
type Param struct {
	Name string
	Type Type
}

func (p Param) String() string {
	return p.Name + ":" + p.Type.String()
}

// FuncSig is the signature of a declared function.
type FuncSig struct {
	Name   string
	Params []Param
	Ret    Type
	Doc    string
}

// Type returns the function type of the signature.
func (s *FuncSig) Type() *FunctionType {
	args := make([]Type, len(s.Params))
	for i := range s.Params {
		args[i] = s.Params[i].Type
	}
	return &FunctionType{Args: args, Ret: s.Ret}
}

type scope struct {
	symbols map[string]*Symbol
	base    int
}

// TypeEnv is a stack of variable scopes and flat tables of functions,
// schemas and tables. The bottom scope is the global scope. Variables of
// other scopes are allocated local slots which are reused after their scope
// is popped.
type TypeEnv struct {
	scopes    []scope
	funcs     map[string]*FuncSig
	schemas   map[string]*SchemaType
	tables    map[string]*TableType
	nextLocal int
	maxLocals int
}

// NewTypeEnv creates a new type environment with an empty global scope.
func NewTypeEnv() *TypeEnv {
	return &TypeEnv{
		scopes:  []scope{{symbols: make(map[string]*Symbol)}},
		funcs:   make(map[string]*FuncSig),
		schemas: make(map[string]*SchemaType),
		tables:  make(map[string]*TableType),
	}
}

// PushScope pushes a new local scope.
func (env *TypeEnv) PushScope() {
	env.scopes = append(env.scopes, scope{
		symbols: make(map[string]*Symbol),
		base:    env.nextLocal,
	})
}

// PopScope pops the innermost scope and releases its local slots.
func (env *TypeEnv) PopScope() error {
	if len(env.scopes) <= 1 {
		return ErrInternal.NewError("cannot pop global scope")
	}
	top := env.scopes[len(env.scopes)-1]
	env.scopes = env.scopes[:len(env.scopes)-1]
	env.nextLocal = top.base
	return nil
}

// Depth returns the number of scopes including the global scope.
func (env *TypeEnv) Depth() int {
	return len(env.scopes)
}

// DefineVar defines a variable in the innermost scope. A variable of the
// same name in the scope or in an outer scope is shadowed.
func (env *TypeEnv) DefineVar(name string, typ Type) *Symbol {
	if typ == nil {
		typ = TAny
	}
	top := &env.scopes[len(env.scopes)-1]
	sym := &Symbol{Name: name, Type: typ, Index: -1, Scope: ScopeGlobal}
	if len(env.scopes) > 1 {
		sym.Scope = ScopeLocal
		sym.Index = env.nextLocal
		env.nextLocal++
		if env.nextLocal > env.maxLocals {
			env.maxLocals = env.nextLocal
		}
	}
	top.symbols[name] = sym
	return sym
}

// Resolve finds the innermost symbol of the name.
func (env *TypeEnv) Resolve(name string) (*Symbol, bool) {
	for i := len(env.scopes) - 1; i >= 0; i-- {
		if sym, ok := env.scopes[i].symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupVar returns the type of the innermost variable of the name.
func (env *TypeEnv) LookupVar(name string) (Type, bool) {
	sym, ok := env.Resolve(name)
	if !ok {
		return nil, false
	}
	return sym.Type, true
}

// ResetLocals starts a new local slot allocation for a function body.
func (env *TypeEnv) ResetLocals() {
	env.nextLocal = 0
	env.maxLocals = 0
}

// MaxLocals returns the largest number of local slots in use at once since
// the last ResetLocals.
func (env *TypeEnv) MaxLocals() int {
	return env.maxLocals
}

// DefineFunc registers a function signature.
func (env *TypeEnv) DefineFunc(name string, sig *FuncSig) error {
	if _, ok := env.funcs[name]; ok {
		return ErrCompilation.NewError("function '" + name + "' redeclared")
	}
	env.funcs[name] = sig
	return nil
}

// LookupFunc returns the signature of a function.
func (env *TypeEnv) LookupFunc(name string) (*FuncSig, bool) {
	sig, ok := env.funcs[name]
	return sig, ok
}

// FuncNames returns sorted names of the registered functions.
func (env *TypeEnv) FuncNames() []string {
	names := make([]string, 0, len(env.funcs))
	for k := range env.funcs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DefineSchema registers a schema.
func (env *TypeEnv) DefineSchema(name string, fields map[string]Type) error {
	if _, ok := env.schemas[name]; ok {
		return ErrCompilation.NewError("schema '" + name + "' redeclared")
	}
	if fields == nil {
		fields = map[string]Type{}
	}
	env.schemas[name] = &SchemaType{Name: name, Fields: fields}
	return nil
}

// LookupSchema returns a registered schema.
func (env *TypeEnv) LookupSchema(name string) (*SchemaType, bool) {
	s, ok := env.schemas[name]
	return s, ok
}

// DefineTable registers a table bound to a registered schema.
func (env *TypeEnv) DefineTable(name, schemaName string) error {
	s, ok := env.schemas[schemaName]
	if !ok {
		return ErrUnknownSchema.NewError("schema '" + schemaName +
			"' of table '" + name + "' is not defined")
	}
	if _, ok := env.tables[name]; ok {
		return ErrCompilation.NewError("table '" + name + "' redeclared")
	}
	env.tables[name] = &TableType{Schema: s}
	return nil
}

// LookupTable returns the type of a registered table.
func (env *TypeEnv) LookupTable(name string) (*TableType, bool) {
	t, ok := env.tables[name]
	return t, ok
}

// TableSchemas returns the fields of every registered table.
func (env *TypeEnv) TableSchemas() map[string]map[string]Type {
	out := make(map[string]map[string]Type, len(env.tables))
	for name, t := range env.tables {
		out[name] = t.Schema.(*SchemaType).Fields
	}
	return out
}
