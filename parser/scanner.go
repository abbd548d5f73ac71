// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package parser

import (
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/slvr-lang/slvr/token"
)

// byte order mark, only permitted as very first character
const bom = 0xFEFF

// maxIntMagnitude is 2^127, the magnitude of the smallest 128-bit integer.
// Unsigned literals may reach it so that a negated literal can express the
// minimum value.
var maxIntMagnitude = new(big.Int).Lsh(big.NewInt(1), 127)

// ScannerErrorHandler is an error handler for the scanner.
type ScannerErrorHandler func(pos SourceFilePos, msg string)

// ScanMode represents a scanner mode.
type ScanMode int

// List of scanner modes.
const (
	ScanComments ScanMode = 1 << iota
)

// Scanner reads the slvr source text. Whitespace and ';' line comments are
// skipped unless ScanComments is set.
type Scanner struct {
	file         *SourceFile
	src          []byte
	ch           rune
	offset       int
	readOffset   int
	lineOffset   int
	errorHandler ScannerErrorHandler
	errorCount   int
	mode         ScanMode
}

// NewScanner creates a Scanner.
func NewScanner(
	file *SourceFile,
	src []byte,
	errorHandler ScannerErrorHandler,
	mode ScanMode,
) *Scanner {
	if file.Size != len(src) {
		panic(fmt.Sprintf("file size (%d) does not match src len (%d)",
			file.Size, len(src)))
	}

	s := &Scanner{
		file:         file,
		src:          src,
		errorHandler: errorHandler,
		ch:           ' ',
		mode:         mode,
	}

	s.next()
	if s.ch == bom {
		s.next() // ignore BOM at file beginning
	}
	return s
}

// ErrorCount returns the number of errors.
func (s *Scanner) ErrorCount() int {
	return s.errorCount
}

// Scan returns a token, token literal and its position.
func (s *Scanner) Scan() (tok token.Token, literal string, pos Pos) {
	s.skipWhitespace()

	pos = s.file.Pos(s.offset)

	switch ch := s.ch; {
	case isLetter(ch):
		literal = s.scanIdentifier()
		tok = token.Lookup(literal)
	case isDigit(ch):
		tok, literal = s.scanNumber()
	default:
		s.next() // always make progress

		switch ch {
		case -1: // EOF
			tok = token.EOF
		case '"':
			tok = token.String
			literal = s.scanString()
		case ';':
			// reached only in ScanComments mode
			tok = token.Comment
			literal = s.scanComment()
		case ':':
			tok = token.Colon
		case '.':
			tok = token.Period
		case ',':
			tok = token.Comma
		case '(':
			tok = token.LParen
		case ')':
			tok = token.RParen
		case '[':
			tok = token.LBrack
		case ']':
			tok = token.RBrack
		case '{':
			tok = token.LBrace
		case '}':
			tok = token.RBrace
		case '+':
			tok = s.switch2(token.Add, token.Concat, '+')
		case '-':
			tok = s.switch2(token.Sub, token.Arrow, '>')
		case '*':
			tok = token.Mul
		case '/':
			tok = token.Quo
		case '%':
			tok = token.Rem
		case '^':
			tok = token.Pow
		case '<':
			tok = s.switch2(token.Less, token.LessEq, '=')
		case '>':
			tok = s.switch2(token.Greater, token.GreaterEq, '=')
		case '=':
			tok = s.switch2(token.Assign, token.Equal, '=')
		case '!':
			tok = s.switch2(token.Not, token.NotEqual, '=')
		case '&':
			if s.ch == '&' {
				s.next()
				tok = token.LAnd
			} else {
				s.error(s.file.Offset(pos), "unexpected character '&'")
				tok = token.Illegal
				literal = "&"
			}
		case '|':
			if s.ch == '|' {
				s.next()
				tok = token.LOr
			} else {
				s.error(s.file.Offset(pos), "unexpected character '|'")
				tok = token.Illegal
				literal = "|"
			}
		default:
			s.error(s.file.Offset(pos),
				fmt.Sprintf("unexpected character %#U", ch))
			tok = token.Illegal
			literal = string(ch)
		}
	}
	return
}

func (s *Scanner) next() {
	if s.readOffset < len(s.src) {
		s.offset = s.readOffset
		if s.ch == '\n' {
			s.lineOffset = s.offset
			s.file.AddLine(s.offset)
		}
		r, w := rune(s.src[s.readOffset]), 1
		switch {
		case r == 0:
			s.error(s.offset, "illegal character NUL")
		case r >= utf8.RuneSelf: // not ASCII
			r, w = utf8.DecodeRune(s.src[s.readOffset:])
			if r == utf8.RuneError && w == 1 {
				s.error(s.offset, "illegal UTF-8 encoding")
			} else if r == bom && s.offset > 0 {
				s.error(s.offset, "illegal byte order mark")
			}
		}
		s.readOffset += w
		s.ch = r
	} else {
		s.offset = len(s.src)
		if s.ch == '\n' {
			s.lineOffset = s.offset
			s.file.AddLine(s.offset)
		}
		s.ch = -1 // eof
	}
}

func (s *Scanner) peek() byte {
	if s.readOffset < len(s.src) {
		return s.src[s.readOffset]
	}
	return 0
}

func (s *Scanner) error(offset int, msg string) {
	if s.errorHandler != nil {
		s.errorHandler(s.file.Position(s.file.Pos(offset)), msg)
	}
	s.errorCount++
}

func (s *Scanner) skipWhitespace() {
	for {
		switch s.ch {
		case ' ', '\t', '\n', '\r':
			s.next()
		case ';':
			if s.mode&ScanComments != 0 {
				return
			}
			for s.ch != '\n' && s.ch >= 0 {
				s.next()
			}
		default:
			return
		}
	}
}

func (s *Scanner) scanComment() string {
	// initial ';' already consumed
	offs := s.offset - 1
	for s.ch != '\n' && s.ch >= 0 {
		s.next()
	}
	lit := s.src[offs:s.offset]
	if len(lit) > 0 && lit[len(lit)-1] == '\r' {
		lit = lit[:len(lit)-1]
	}
	return string(lit)
}

func (s *Scanner) scanIdentifier() string {
	offs := s.offset
	for isLetter(s.ch) || isDigit(s.ch) || s.ch == '-' {
		s.next()
	}
	return string(s.src[offs:s.offset])
}

func (s *Scanner) scanDigits() {
	for isDigit(s.ch) {
		s.next()
	}
}

func (s *Scanner) scanNumber() (token.Token, string) {
	offs := s.offset
	tok := token.Int

	s.scanDigits()
	if s.ch == '.' && isDigit(rune(s.peek())) {
		tok = token.Decimal
		s.next()
		s.scanDigits()
		if s.ch == '.' && isDigit(rune(s.peek())) {
			for s.ch == '.' || isDigit(s.ch) {
				s.next()
			}
			lit := string(s.src[offs:s.offset])
			s.error(offs, "invalid numeric literal '"+lit+"'")
			return token.Illegal, lit
		}
	}
	if isLetter(s.ch) {
		for isLetter(s.ch) || isDigit(s.ch) {
			s.next()
		}
		lit := string(s.src[offs:s.offset])
		s.error(offs, "invalid numeric literal '"+lit+"'")
		return token.Illegal, lit
	}

	lit := string(s.src[offs:s.offset])
	if tok == token.Int {
		v, ok := new(big.Int).SetString(lit, 10)
		if !ok || v.Cmp(maxIntMagnitude) > 0 {
			s.error(offs, "invalid numeric literal '"+lit+
				"': out of 128-bit integer range")
			return token.Illegal, lit
		}
	}
	return tok, lit
}

// scanString returns the unescaped string value between the quotes.
func (s *Scanner) scanString() string {
	offs := s.offset - 1 // opening quote
	var buf []byte
	for {
		ch := s.ch
		if ch < 0 {
			s.error(offs, "unterminated string")
			break
		}
		s.next()
		if ch == '"' {
			break
		}
		if ch == '\\' {
			esc := s.ch
			if esc < 0 {
				s.error(offs, "unterminated string")
				break
			}
			s.next()
			switch esc {
			case 'n':
				buf = append(buf, '\n')
			case 't':
				buf = append(buf, '\t')
			case 'r':
				buf = append(buf, '\r')
			default:
				buf = utf8.AppendRune(buf, esc)
			}
			continue
		}
		buf = utf8.AppendRune(buf, ch)
	}
	return string(buf)
}

func (s *Scanner) switch2(tok0, tok1 token.Token, ch1 rune) token.Token {
	if s.ch == ch1 {
		s.next()
		return tok1
	}
	return tok0
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

// Token is a scanned token with its line and column.
type Token struct {
	Kind    token.Token
	Literal string
	Line    int
	Column  int
}

func (t Token) String() string {
	if t.Kind.IsLiteral() {
		return fmt.Sprintf("%d:%d %s %q", t.Line, t.Column, t.Kind, t.Literal)
	}
	return fmt.Sprintf("%d:%d %s", t.Line, t.Column, t.Kind)
}

// Tokenize scans the whole source and returns its tokens ending with an EOF
// token. Lexical errors are collected and returned as an ErrorList.
func Tokenize(filename string, src []byte) ([]Token, error) {
	fileSet := NewFileSet()
	file := fileSet.AddFile(filename, -1, len(src))

	var errs ErrorList
	s := NewScanner(file, src, func(pos SourceFilePos, msg string) {
		errs.Add(pos, msg, KindLexical)
	}, 0)

	var out []Token
	for {
		tok, lit, pos := s.Scan()
		fp := file.Position(pos)
		out = append(out, Token{
			Kind:    tok,
			Literal: lit,
			Line:    fp.Line,
			Column:  fp.Column,
		})
		if tok == token.EOF {
			break
		}
	}
	errs.Sort()
	return out, errs.Err()
}
