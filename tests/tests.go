// Package tests provides helpers to print values in test failure messages.
package tests

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Sdump returns a multi line dump of value with its Go types. Map keys are
// sorted and scalar values implementing fmt.Stringer are printed with String,
// so dumps of the same value are identical.
func Sdump(value interface{}) string {
	var sb strings.Builder
	sdump("", &sb, value)
	return sb.String()
}

func sdump(prefix string, sb *strings.Builder, value interface{}) {
	const indent = "  "
	if value == nil {
		sb.WriteString(fmt.Sprintf("(%[1]T) %[1]v\n", value))
		return
	}
	typ := reflect.TypeOf(value)
	switch typ.Kind() {
	case reflect.Slice:
		val := reflect.ValueOf(value)
		if val.IsNil() {
			sb.WriteString(fmt.Sprintf("(%+v nil)\n", typ))
			return
		}
		sb.WriteString(fmt.Sprintf("(%+v len=%d) {", typ, val.Len()))
		sz := val.Len()
		if sz == 0 {
			sb.WriteString("}\n")
			return
		}
		sb.WriteString("\n")
		for i := 0; i < sz; i++ {
			sb.WriteString(prefix + indent + "#")
			sb.WriteString(strconv.Itoa(i))
			sb.WriteString(" ")
			sdump(prefix+indent, sb, elemOf(val.Index(i)))
		}
		sb.WriteString(prefix + "}\n")
	case reflect.Map:
		val := reflect.ValueOf(value)
		if val.IsNil() {
			sb.WriteString(fmt.Sprintf("(%+v nil)\n", typ))
			return
		}
		keys := val.MapKeys()
		fmt.Fprintf(sb, "(%+v len=%d) {", typ, len(keys))
		if len(keys) == 0 {
			sb.WriteString("}\n")
			return
		}
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		sb.WriteString("\n")
		for _, k := range keys {
			sb.WriteString(prefix + indent + fmt.Sprintf("%#v: ", k.Interface()))
			sdump(prefix+indent, sb, elemOf(val.MapIndex(k)))
		}
		sb.WriteString(prefix + "}\n")
	case reflect.Struct:
		if s, ok := value.(fmt.Stringer); ok {
			fmt.Fprintf(sb, "(%+v) %s\n", typ, s.String())
			return
		}
		val := reflect.ValueOf(value)
		fmt.Fprintf(sb, "(%+v) {\n", typ)
		for i := 0; i < typ.NumField(); i++ {
			if !typ.Field(i).IsExported() {
				continue
			}
			sb.WriteString(prefix + indent + typ.Field(i).Name + ": ")
			sdump(prefix+indent, sb, elemOf(val.Field(i)))
		}
		sb.WriteString(prefix + "}\n")
	default:
		if s, ok := value.(fmt.Stringer); ok {
			fmt.Fprintf(sb, "(%+v) %s\n", typ, s.String())
			return
		}
		fmt.Fprintf(sb, "(%+v) %+v\n", typ, value)
	}
}

func elemOf(v reflect.Value) interface{} {
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Interface {
			v = v.Elem()
		}
	}
	if v.IsValid() && v.CanInterface() {
		return v.Interface()
	}
	return nil
}
