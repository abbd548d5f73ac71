// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"strings"
)

// File represents a file unit, the Program of a compilation.
type File struct {
	InputFile *SourceFile
	Defs      []Def
	Comments  []*Comment
}

// Pos returns the position of first character belonging to the node.
func (n *File) Pos() Pos {
	return Pos(n.InputFile.Base)
}

// End returns the position of first character immediately after the node.
func (n *File) End() Pos {
	return Pos(n.InputFile.Base + n.InputFile.Size)
}

func (n *File) String() string {
	var defs []string
	for _, d := range n.Defs {
		defs = append(defs, d.String())
	}
	return strings.Join(defs, "; ")
}

// Walk calls fn for every definition of the file in source order, entering
// module bodies. The module itself is visited before its body.
func (n *File) Walk(fn func(def Def, module *ModuleDef)) {
	walkDefs(n.Defs, nil, fn)
}

func walkDefs(defs []Def, module *ModuleDef, fn func(Def, *ModuleDef)) {
	for _, d := range defs {
		fn(d, module)
		if m, ok := d.(*ModuleDef); ok {
			walkDefs(m.Body, m, fn)
		}
	}
}

// Comment node represents a single ';' line comment.
type Comment struct {
	Semi Pos
	Text string
}

// Pos returns the position of first character belonging to the node.
func (c *Comment) Pos() Pos {
	return c.Semi
}

// End returns the position of first character immediately after the node.
func (c *Comment) End() Pos {
	return Pos(int(c.Semi) + len(c.Text))
}

func (c *Comment) String() string {
	return c.Text
}
