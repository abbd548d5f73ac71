// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Package token defines the lexical tokens of the slvr language.
package token

import "strconv"

var keywords map[string]Token

// Token represents a token.
type Token int

// List of tokens
const (
	Illegal Token = iota
	EOF
	Comment
	_literalBeg
	Ident
	Int
	Decimal
	String
	_literalEnd
	_operatorBeg
	Add       // +
	Sub       // -
	Mul       // *
	Quo       // /
	Rem       // %
	Pow       // ^
	Concat    // ++
	LAnd      // &&
	LOr       // ||
	Equal     // ==
	NotEqual  // !=
	Less      // <
	Greater   // >
	LessEq    // <=
	GreaterEq // >=
	Not       // !
	Assign    // =
	Arrow     // ->
	LParen    // (
	RParen    // )
	LBrack    // [
	RBrack    // ]
	LBrace    // {
	RBrace    // }
	Comma     // ,
	Colon     // :
	Period    // .
	_operatorEnd
	_keywordBeg
	Module
	Defun
	Defschema
	Deftable
	Defconst
	If
	Let
	Read
	Write
	Update
	Delete
	True
	False
	Null
	_keywordEnd
)

var tokens = [...]string{
	Illegal:   "ILLEGAL",
	EOF:       "EOF",
	Comment:   "COMMENT",
	Ident:     "IDENT",
	Int:       "INT",
	Decimal:   "DECIMAL",
	String:    "STRING",
	Add:       "+",
	Sub:       "-",
	Mul:       "*",
	Quo:       "/",
	Rem:       "%",
	Pow:       "^",
	Concat:    "++",
	LAnd:      "&&",
	LOr:       "||",
	Equal:     "==",
	NotEqual:  "!=",
	Less:      "<",
	Greater:   ">",
	LessEq:    "<=",
	GreaterEq: ">=",
	Not:       "!",
	Assign:    "=",
	Arrow:     "->",
	LParen:    "(",
	RParen:    ")",
	LBrack:    "[",
	RBrack:    "]",
	LBrace:    "{",
	RBrace:    "}",
	Comma:     ",",
	Colon:     ":",
	Period:    ".",
	Module:    "module",
	Defun:     "defun",
	Defschema: "defschema",
	Deftable:  "deftable",
	Defconst:  "defconst",
	If:        "if",
	Let:       "let",
	Read:      "read",
	Write:     "write",
	Update:    "update",
	Delete:    "delete",
	True:      "true",
	False:     "false",
	Null:      "null",
}

func (tok Token) String() string {
	s := ""

	if 0 <= tok && tok < Token(len(tokens)) {
		s = tokens[tok]
	}

	if s == "" {
		s = "token(" + strconv.Itoa(int(tok)) + ")"
	}
	return s
}

// LowestPrec represents lowest operator precedence.
const LowestPrec = 0

// Precedence returns the binary precedence of the operator token. Power is
// handled separately by the parser because it is right associative.
func (tok Token) Precedence() int {
	switch tok {
	case LOr:
		return 1
	case LAnd:
		return 2
	case Equal, NotEqual, Less, LessEq, Greater, GreaterEq:
		return 3
	case Add, Sub, Concat:
		return 4
	case Mul, Quo, Rem:
		return 5
	case Pow:
		return 6
	}
	return LowestPrec
}

// IsLiteral returns true if the token is a literal.
func (tok Token) IsLiteral() bool {
	return _literalBeg < tok && tok < _literalEnd
}

// IsOperator returns true if the token is an operator.
func (tok Token) IsOperator() bool {
	return _operatorBeg < tok && tok < _operatorEnd
}

// IsKeyword returns true if the token is a keyword.
func (tok Token) IsKeyword() bool {
	return _keywordBeg < tok && tok < _keywordEnd
}

// IsDefinition reports whether the token starts a top level definition.
func (tok Token) IsDefinition() bool {
	switch tok {
	case Module, Defun, Defschema, Deftable, Defconst:
		return true
	}
	return false
}

// Keywords returns the keyword spellings in declaration order.
func Keywords() []string {
	out := make([]string, 0, _keywordEnd-_keywordBeg-1)
	for tok := _keywordBeg + 1; tok < _keywordEnd; tok++ {
		out = append(out, tokens[tok])
	}
	return out
}

// Lookup returns corresponding keyword if ident is a keyword.
func Lookup(ident string) Token {
	if tok, isKeyword := keywords[ident]; isKeyword {
		return tok
	}
	return Ident
}

func init() {
	keywords = make(map[string]Token)
	for i := _keywordBeg + 1; i < _keywordEnd; i++ {
		keywords[tokens[i]] = i
	}
}
