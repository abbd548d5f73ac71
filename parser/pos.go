// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"fmt"
	"sort"
)

// Pos represents a position in the file set. It is the file base plus the
// byte offset, so the zero value is never a valid position.
type Pos int

// NoPos represents an invalid position.
const NoPos Pos = 0

// IsValid returns true if the position is valid.
func (p Pos) IsValid() bool {
	return p != NoPos
}

// SourceFilePos represents a position information in the file.
type SourceFilePos struct {
	Filename string
	Offset   int // offset, starting at 0
	Line     int // line number, starting at 1
	Column   int // column number, starting at 1 (byte count)
}

// IsValid returns true if the position is valid.
func (p SourceFilePos) IsValid() bool {
	return p.Line > 0
}

// String returns a string in one of several forms:
//
//	file:line:column    valid position with file name
//	line:column         valid position without file name
//	file                invalid position with file name
//	-                   invalid position without file name
func (p SourceFilePos) String() string {
	s := p.Filename
	if p.IsValid() {
		if s != "" {
			s += ":"
		}
		s += fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	if s == "" {
		s = "-"
	}
	return s
}

// SourceFileSet represents a set of source files.
type SourceFileSet struct {
	Base     int
	Files    []*SourceFile
	LastFile *SourceFile
}

// NewFileSet creates a new file set.
func NewFileSet() *SourceFileSet {
	return &SourceFileSet{
		Base: 1, // 0 == NoPos
	}
}

// AddFile adds a new file in the file set. A negative base uses the next
// free base of the set.
func (s *SourceFileSet) AddFile(filename string, base, size int) *SourceFile {
	if base < 0 {
		base = s.Base
	}
	if base < s.Base || size < 0 {
		panic("illegal base or size")
	}
	f := &SourceFile{
		set:   s,
		Name:  filename,
		Base:  base,
		Size:  size,
		Lines: []int{0},
	}
	base += size + 1 // +1 because EOF also has a position
	if base < 0 {
		panic("offset overflow (> 2G of source code in file set)")
	}

	s.Base = base
	s.Files = append(s.Files, f)
	s.LastFile = f
	return f
}

// File returns the file that contains the position p. If no such file is
// found, the result is nil.
func (s *SourceFileSet) File(p Pos) *SourceFile {
	if p == NoPos {
		return nil
	}
	if f := s.LastFile; f != nil && f.Base <= int(p) && int(p) <= f.Base+f.Size {
		return f
	}
	for _, f := range s.Files {
		if f.Base <= int(p) && int(p) <= f.Base+f.Size {
			s.LastFile = f
			return f
		}
	}
	return nil
}

// Position converts a Pos in the file set into a SourceFilePos.
func (s *SourceFileSet) Position(p Pos) SourceFilePos {
	if p == NoPos {
		return SourceFilePos{}
	}
	f := s.File(p)
	if f == nil {
		return SourceFilePos{}
	}
	return f.Position(p)
}

// SourceFile represents a source file.
type SourceFile struct {
	set   *SourceFileSet
	Name  string
	Base  int
	Size  int
	Lines []int // line start offsets
}

// Set returns SourceFileSet.
func (f *SourceFile) Set() *SourceFileSet {
	return f.set
}

// LineCount returns the current number of lines.
func (f *SourceFile) LineCount() int {
	return len(f.Lines)
}

// AddLine adds a new line offset. Offsets must be increasing and smaller
// than the file size, others are ignored.
func (f *SourceFile) AddLine(offset int) {
	i := len(f.Lines)
	if (i == 0 || f.Lines[i-1] < offset) && offset < f.Size {
		f.Lines = append(f.Lines, offset)
	}
}

// Pos returns the Pos value for the given file offset.
func (f *SourceFile) Pos(offset int) Pos {
	if offset > f.Size {
		panic("illegal file offset")
	}
	return Pos(f.Base + offset)
}

// Offset translates the file set position into the file offset.
func (f *SourceFile) Offset(p Pos) int {
	if int(p) < f.Base || int(p) > f.Base+f.Size {
		panic("illegal Pos value")
	}
	return int(p) - f.Base
}

// Line returns the line of given position.
func (f *SourceFile) Line(p Pos) int {
	return f.Position(p).Line
}

// Position translates the file set position into the file position.
func (f *SourceFile) Position(p Pos) SourceFilePos {
	if p == NoPos {
		return SourceFilePos{}
	}
	offset := f.Offset(p)
	i := sort.Search(len(f.Lines), func(i int) bool {
		return f.Lines[i] > offset
	}) - 1
	if i < 0 {
		i = 0
	}
	return SourceFilePos{
		Filename: f.Name,
		Offset:   offset,
		Line:     i + 1,
		Column:   offset - f.Lines[i] + 1,
	}
}
