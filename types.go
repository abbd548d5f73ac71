// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package slvr

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the kind of a Type.
type Kind int

// List of type kinds.
const (
	KindInvalid Kind = iota
	KindInteger
	KindDecimal
	KindString
	KindBoolean
	KindUnit
	KindAny
	KindList
	KindObject
	KindFunction
	KindCustom
	KindTable
	KindSchema
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindInteger:  "integer",
	KindDecimal:  "decimal",
	KindString:   "string",
	KindBoolean:  "boolean",
	KindUnit:     "unit",
	KindAny:      "any",
	KindList:     "list",
	KindObject:   "object",
	KindFunction: "function",
	KindCustom:   "custom",
	KindTable:    "table",
	KindSchema:   "schema",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Type is a static type of the language.
type Type interface {
	Kind() Kind
	String() string
	// Equal reports structural equality.
	Equal(other Type) bool
	// CompatibleWith is true if a value of this type can be used where other
	// is expected.
	CompatibleWith(other Type) bool
}

// BasicType is a type without parameters.
type BasicType Kind

// Builtin types.
var (
	TInteger Type = BasicType(KindInteger)
	TDecimal Type = BasicType(KindDecimal)
	TString  Type = BasicType(KindString)
	TBoolean Type = BasicType(KindBoolean)
	TUnit    Type = BasicType(KindUnit)
	TAny     Type = BasicType(KindAny)
)

// Kind implements Type interface.
func (t BasicType) Kind() Kind { return Kind(t) }

func (t BasicType) String() string { return Kind(t).String() }

// Equal implements Type interface.
func (t BasicType) Equal(other Type) bool {
	o, ok := other.(BasicType)
	return ok && o == t
}

// CompatibleWith implements Type interface.
func (t BasicType) CompatibleWith(other Type) bool {
	return compatible(t, other)
}

// ListType is a list of Elem.
type ListType struct {
	Elem Type
}

// Kind implements Type interface.
func (*ListType) Kind() Kind { return KindList }

func (t *ListType) String() string { return "[" + t.Elem.String() + "]" }

// Equal implements Type interface.
func (t *ListType) Equal(other Type) bool {
	o, ok := other.(*ListType)
	return ok && t.Elem.Equal(o.Elem)
}

// CompatibleWith implements Type interface.
func (t *ListType) CompatibleWith(other Type) bool {
	if o, ok := other.(*ListType); ok {
		return t.Elem.CompatibleWith(o.Elem)
	}
	return compatible(t, other)
}

// ObjectType is an object with typed fields. Nil Fields is an open object
// which accepts any fields.
type ObjectType struct {
	Fields map[string]Type
}

// Kind implements Type interface.
func (*ObjectType) Kind() Kind { return KindObject }

func (t *ObjectType) String() string {
	if t.Fields == nil {
		return "object"
	}
	return "object{" + formatFields(t.Fields) + "}"
}

// Equal implements Type interface.
func (t *ObjectType) Equal(other Type) bool {
	o, ok := other.(*ObjectType)
	return ok && (t.Fields == nil) == (o.Fields == nil) &&
		fieldsEqual(t.Fields, o.Fields)
}

// CompatibleWith implements Type interface.
func (t *ObjectType) CompatibleWith(other Type) bool {
	switch o := other.(type) {
	case *ObjectType:
		if o.Fields == nil || t.Fields == nil {
			return true
		}
		return fieldsCompatible(t.Fields, o.Fields)
	case *SchemaType:
		if t.Fields == nil {
			return true
		}
		return fieldsCompatible(t.Fields, o.Fields)
	case *CustomType:
		return true
	}
	return compatible(t, other)
}

// FunctionType is the type of a function.
type FunctionType struct {
	Args []Type
	Ret  Type
}

// Kind implements Type interface.
func (*FunctionType) Kind() Kind { return KindFunction }

func (t *FunctionType) String() string {
	args := make([]string, len(t.Args))
	for i := range t.Args {
		args[i] = t.Args[i].String()
	}
	return "fn(" + strings.Join(args, ", ") + ") -> " + t.Ret.String()
}

// Equal implements Type interface.
func (t *FunctionType) Equal(other Type) bool {
	o, ok := other.(*FunctionType)
	if !ok || len(o.Args) != len(t.Args) || !t.Ret.Equal(o.Ret) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// CompatibleWith implements Type interface.
func (t *FunctionType) CompatibleWith(other Type) bool {
	return compatible(t, other)
}

// CustomType is a reference to a named schema.
type CustomType struct {
	Name string
}

// Kind implements Type interface.
func (*CustomType) Kind() Kind { return KindCustom }

func (t *CustomType) String() string { return t.Name }

// Equal implements Type interface.
func (t *CustomType) Equal(other Type) bool {
	o, ok := other.(*CustomType)
	return ok && o.Name == t.Name
}

// CompatibleWith implements Type interface. A custom type is compatible with
// open objects and with the schema of the same name.
func (t *CustomType) CompatibleWith(other Type) bool {
	switch o := other.(type) {
	case *ObjectType:
		return o.Fields == nil
	case *SchemaType:
		return o.Name == t.Name
	}
	return compatible(t, other)
}

// TableType is a table of Schema rows.
type TableType struct {
	Schema Type
}

// Kind implements Type interface.
func (*TableType) Kind() Kind { return KindTable }

func (t *TableType) String() string { return "table<" + t.Schema.String() + ">" }

// Equal implements Type interface.
func (t *TableType) Equal(other Type) bool {
	o, ok := other.(*TableType)
	return ok && t.Schema.Equal(o.Schema)
}

// CompatibleWith implements Type interface.
func (t *TableType) CompatibleWith(other Type) bool {
	return compatible(t, other)
}

// SchemaType is a resolved schema. Name is informational and ignored by
// Equal.
type SchemaType struct {
	Name   string
	Fields map[string]Type
}

// Kind implements Type interface.
func (*SchemaType) Kind() Kind { return KindSchema }

func (t *SchemaType) String() string {
	return "schema{" + formatFields(t.Fields) + "}"
}

// Equal implements Type interface.
func (t *SchemaType) Equal(other Type) bool {
	o, ok := other.(*SchemaType)
	return ok && fieldsEqual(t.Fields, o.Fields)
}

// CompatibleWith implements Type interface.
func (t *SchemaType) CompatibleWith(other Type) bool {
	switch o := other.(type) {
	case *ObjectType:
		return o.Fields == nil || fieldsCompatible(t.Fields, o.Fields)
	case *CustomType:
		return o.Name == t.Name
	}
	return compatible(t, other)
}

func compatible(t, other Type) bool {
	if t.Kind() == KindAny || other.Kind() == KindAny {
		return true
	}
	return t.Equal(other)
}

func formatFields(fields map[string]Type) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = k + ":" + fields[k].String()
	}
	return strings.Join(s, ", ")
}

func fieldsEqual(a, b map[string]Type) bool {
	if len(a) != len(b) {
		return false
	}
	for k, t := range a {
		o, ok := b[k]
		if !ok || !t.Equal(o) {
			return false
		}
	}
	return true
}

// fieldsCompatible reports whether every field of want is present in have
// with a compatible type.
func fieldsCompatible(have, want map[string]Type) bool {
	for k, t := range want {
		o, ok := have[k]
		if !ok || !o.CompatibleWith(t) {
			return false
		}
	}
	return true
}

// BasicTypeByName returns the builtin type of a name.
func BasicTypeByName(name string) (Type, bool) {
	switch name {
	case "integer":
		return TInteger, true
	case "decimal":
		return TDecimal, true
	case "string":
		return TString, true
	case "boolean":
		return TBoolean, true
	case "unit":
		return TUnit, true
	case "any":
		return TAny, true
	case "object":
		return &ObjectType{}, true
	}
	return nil, false
}

// TypeOfValue returns the static type describing v. Lists whose elements
// differ are typed [any].
func TypeOfValue(v Value) Type {
	switch v := v.(type) {
	case Integer:
		return TInteger
	case Decimal:
		return TDecimal
	case String:
		return TString
	case Boolean:
		return TBoolean
	case UnitType:
		return TUnit
	case List:
		var elem Type = TAny
		for i := range v {
			t := TypeOfValue(v[i])
			if i == 0 {
				elem = t
			} else if !elem.Equal(t) {
				elem = TAny
				break
			}
		}
		return &ListType{Elem: elem}
	case Object:
		fields := make(map[string]Type, len(v))
		for k, x := range v {
			fields[k] = TypeOfValue(x)
		}
		return &ObjectType{Fields: fields}
	}
	return TAny
}

// Conforms reports whether v is a value of type t. Objects may carry extra
// fields. Custom types are not resolved and accept any object.
func Conforms(v Value, t Type) bool {
	switch t := t.(type) {
	case BasicType:
		switch Kind(t) {
		case KindAny:
			return true
		case KindInteger:
			_, ok := v.(Integer)
			return ok
		case KindDecimal:
			_, ok := v.(Decimal)
			return ok
		case KindString:
			_, ok := v.(String)
			return ok
		case KindBoolean:
			_, ok := v.(Boolean)
			return ok
		case KindUnit:
			_, ok := v.(UnitType)
			return ok
		}
	case *ListType:
		l, ok := v.(List)
		if !ok {
			return false
		}
		for i := range l {
			if !Conforms(l[i], t.Elem) {
				return false
			}
		}
		return true
	case *ObjectType:
		o, ok := v.(Object)
		if !ok {
			return false
		}
		return t.Fields == nil || ValidateFields(o, t.Fields) == nil
	case *SchemaType:
		o, ok := v.(Object)
		return ok && ValidateFields(o, t.Fields) == nil
	case *CustomType:
		_, ok := v.(Object)
		return ok
	}
	return false
}

// ValidateFields checks that every field is present in o with a conforming
// value.
func ValidateFields(o Object, fields map[string]Type) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f, ok := o[k]
		if !ok {
			return &TypeMismatchError{
				Expected: "field " + k + ":" + fields[k].String(),
				Actual:   "missing field",
			}
		}
		if !Conforms(f, fields[k]) {
			return &TypeMismatchError{
				Expected: "field " + k + ":" + fields[k].String(),
				Actual:   TypeOfValue(f).String(),
			}
		}
	}
	return nil
}

// ValidateRow checks v against the fields of a table schema.
func ValidateRow(v Value, fields map[string]Type) error {
	o, ok := v.(Object)
	if !ok {
		return &TypeMismatchError{
			Expected: "schema{" + formatFields(fields) + "}",
			Actual:   v.TypeName(),
		}
	}
	return ValidateFields(o, fields)
}
