// A modified version Go and Tengo parsers.

// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

// Copyright (c) 2019 Daniel Kang.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE.tengo file.

// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.golang file.

package parser

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strconv"

	"github.com/slvr-lang/slvr/token"
)

// Mode value is a set of flags for parser.
type Mode int

const (
	// ParseComments parses comments and add them to AST
	ParseComments Mode = 1 << iota
)

type bailout struct{}

var defStart = map[token.Token]bool{
	token.Module:    true,
	token.Defun:     true,
	token.Defschema: true,
	token.Deftable:  true,
	token.Defconst:  true,
}

// Error sentinels matched by errors.Is on any parser Error.
var (
	ErrLexical = errors.New("lexical error")
	ErrSyntax  = errors.New("syntax error")
)

// ErrorKind classifies a parser error.
type ErrorKind int

// Error kinds.
const (
	KindSyntax ErrorKind = iota
	KindLexical
)

// Error represents a lexer or parser error.
type Error struct {
	Pos  SourceFilePos
	Msg  string
	Kind ErrorKind
}

func (e Error) Error() string {
	prefix := "Parse Error"
	if e.Kind == KindLexical {
		prefix = "Lexer Error"
	}
	if e.Pos.Filename != "" || e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s\n\tat %s", prefix, e.Msg, e.Pos)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

// Unwrap returns ErrLexical or ErrSyntax.
func (e Error) Unwrap() error {
	if e.Kind == KindLexical {
		return ErrLexical
	}
	return ErrSyntax
}

// ErrorList is a collection of parser errors.
type ErrorList []*Error

// Add adds a new parser error to the collection.
func (p *ErrorList) Add(pos SourceFilePos, msg string, kind ErrorKind) {
	*p = append(*p, &Error{Pos: pos, Msg: msg, Kind: kind})
}

// Len returns the number of elements in the collection.
func (p ErrorList) Len() int {
	return len(p)
}

func (p ErrorList) Swap(i, j int) {
	p[i], p[j] = p[j], p[i]
}

func (p ErrorList) Less(i, j int) bool {
	e := &p[i].Pos
	f := &p[j].Pos

	if e.Filename != f.Filename {
		return e.Filename < f.Filename
	}
	if e.Line != f.Line {
		return e.Line < f.Line
	}
	if e.Column != f.Column {
		return e.Column < f.Column
	}
	return p[i].Msg < p[j].Msg
}

// Sort sorts the collection.
func (p ErrorList) Sort() {
	sort.Stable(p)
}

func (p ErrorList) Error() string {
	switch len(p) {
	case 0:
		return "no errors"
	case 1:
		return p[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", p[0], len(p)-1)
}

// Unwrap returns the collected errors.
func (p ErrorList) Unwrap() []error {
	errs := make([]error, len(p))
	for i, e := range p {
		errs[i] = *e
	}
	return errs
}

// Err returns an error.
func (p ErrorList) Err() error {
	if len(p) == 0 {
		return nil
	}
	return p
}

// Parser parses slvr source files.
type Parser struct {
	file      *SourceFile
	errors    ErrorList
	scanner   *Scanner
	pos       Pos
	token     token.Token
	tokenLit  string
	tokenEnd  Pos
	prevEnd   Pos // end of the previous non-comment token
	negLit    bool // next integer literal is the operand of a unary minus
	syncPos   Pos  // last sync position
	syncCount int  // number of advance calls without progress
	trace     bool
	indent    int
	mode      Mode
	traceOut  io.Writer
	comments  []*Comment
}

// NewParser creates a Parser.
func NewParser(file *SourceFile, src []byte, trace io.Writer) *Parser {
	return NewParserWithMode(file, src, trace, 0)
}

// NewParserWithMode creates a Parser with parser mode flags.
func NewParserWithMode(
	file *SourceFile,
	src []byte,
	trace io.Writer,
	mode Mode,
) *Parser {
	p := &Parser{
		file:     file,
		trace:    trace != nil,
		traceOut: trace,
		mode:     mode,
	}
	var m ScanMode
	if mode&ParseComments != 0 {
		m = ScanComments
	}
	p.scanner = NewScanner(p.file, src,
		func(pos SourceFilePos, msg string) {
			p.errors.Add(pos, msg, KindLexical)
		}, m)
	p.next()
	return p
}

// ParseFile parses the source and returns an AST file unit.
func (p *Parser) ParseFile() (file *File, err error) {
	defer func() {
		if e := recover(); e != nil {
			if _, ok := e.(bailout); !ok {
				panic(e)
			}
		}

		p.errors.Sort()
		err = p.errors.Err()
		if err != nil {
			file = nil
		}
	}()

	if p.trace {
		defer untracep(tracep(p, "File"))
	}

	if p.errors.Len() > 0 {
		return nil, p.errors.Err()
	}

	var defs []Def
	for p.token != token.EOF {
		defs = append(defs, p.parseDef())
	}
	if p.errors.Len() > 0 {
		return nil, p.errors.Err()
	}

	file = &File{
		InputFile: p.file,
		Defs:      defs,
		Comments:  p.comments,
	}
	return
}

func (p *Parser) parseDef() Def {
	if p.trace {
		defer untracep(tracep(p, "Definition"))
	}

	switch p.token {
	case token.Module:
		return p.parseModuleDef()
	case token.Defun:
		return p.parseFuncDef()
	case token.Defschema:
		return p.parseSchemaDef()
	case token.Deftable:
		return p.parseTableDef()
	case token.Defconst:
		return p.parseConstDef()
	case token.RBrace, token.RParen, token.RBrack:
		pos := p.pos
		p.errorExpected(pos, "definition or expression")
		p.next()
		return &BadDef{From: pos, To: p.pos}
	}
	return &ExprDef{Expr: p.parseExpr()}
}

func (p *Parser) parseModuleDef() Def {
	if p.trace {
		defer untracep(tracep(p, "ModuleDef"))
	}

	pos := p.expect(token.Module)
	name := p.parseIdent()
	doc := p.parseDoc()
	lbrace := p.expect(token.LBrace)

	var body []Def
	for p.token != token.RBrace && p.token != token.EOF {
		body = append(body, p.parseDef())
	}

	rbrace := p.expect(token.RBrace)
	return &ModuleDef{
		ModulePos: pos,
		Name:      name,
		Doc:       doc,
		LBrace:    lbrace,
		Body:      body,
		RBrace:    rbrace,
	}
}

func (p *Parser) parseFuncDef() Def {
	if p.trace {
		defer untracep(tracep(p, "FuncDef"))
	}

	pos := p.expect(token.Defun)
	name := p.parseIdent()
	doc := p.parseDoc()
	lparen := p.expect(token.LParen)

	var params []*Param
	for p.token != token.RParen && p.token != token.EOF {
		params = append(params, p.parseParam())
		if !p.atComma("parameter list", token.RParen) {
			break
		}
		p.next()
	}

	rparen := p.expect(token.RParen)
	p.expect(token.Arrow)
	// a '{' after a bare "object" return type starts the body
	ret := p.parseTypeFields(false)
	body := p.parseExpr()
	return &FuncDef{
		DefunPos: pos,
		Name:     name,
		Doc:      doc,
		LParen:   lparen,
		Params:   params,
		RParen:   rparen,
		Ret:      ret,
		Body:     body,
	}
}

func (p *Parser) parseSchemaDef() Def {
	if p.trace {
		defer untracep(tracep(p, "SchemaDef"))
	}

	pos := p.expect(token.Defschema)
	name := p.parseIdent()
	doc := p.parseDoc()
	lbrace, fields, rbrace := p.parseFieldList()
	return &SchemaDef{
		DefPos: pos,
		Name:   name,
		Doc:    doc,
		LBrace: lbrace,
		Fields: fields,
		RBrace: rbrace,
	}
}

func (p *Parser) parseTableDef() Def {
	if p.trace {
		defer untracep(tracep(p, "TableDef"))
	}

	pos := p.expect(token.Deftable)
	name := p.parseIdent()
	p.expect(token.Colon)
	schema := p.parseIdent()
	doc := p.parseDoc()
	return &TableDef{
		DefPos: pos,
		Name:   name,
		Schema: schema,
		Doc:    doc,
	}
}

func (p *Parser) parseConstDef() Def {
	if p.trace {
		defer untracep(tracep(p, "ConstDef"))
	}

	pos := p.expect(token.Defconst)
	name := p.parseIdent()
	p.expect(token.Colon)
	typ := p.parseType()
	p.expect(token.Assign)
	value := p.parseExpr()
	return &ConstDef{
		DefPos: pos,
		Name:   name,
		Type:   typ,
		Value:  value,
	}
}

func (p *Parser) parseDoc() *StringLit {
	if p.token != token.String {
		return nil
	}
	return p.parseStringLit()
}

func (p *Parser) parseParam() *Param {
	name := p.parseIdent()
	p.expect(token.Colon)
	return &Param{Name: name, Type: p.parseType()}
}

// parseFieldList parses "{ name:type, ... }" where commas are optional.
func (p *Parser) parseFieldList() (lbrace Pos, fields []*Param, rbrace Pos) {
	lbrace = p.expect(token.LBrace)
	for p.token != token.RBrace && p.token != token.EOF {
		fields = append(fields, p.parseParam())
		if p.token == token.Comma {
			p.next()
		}
	}
	rbrace = p.expect(token.RBrace)
	return
}

func (p *Parser) parseType() TypeExpr {
	return p.parseTypeFields(true)
}

func (p *Parser) parseTypeFields(allowFields bool) TypeExpr {
	if p.trace {
		defer untracep(tracep(p, "Type"))
	}

	switch p.token {
	case token.Ident:
		name, pos := p.tokenLit, p.pos
		p.next()
		if name == "object" && allowFields && p.token == token.LBrace {
			lbrace, fields, rbrace := p.parseFieldList()
			return &ObjectType{
				ObjectPos: pos,
				LBrace:    lbrace,
				Fields:    fields,
				RBrace:    rbrace,
			}
		}
		return &NamedType{Name: name, NamePos: pos}
	case token.LBrack:
		lbrack := p.pos
		p.next()
		elem := p.parseType()
		rbrack := p.expect(token.RBrack)
		return &ListType{LBrack: lbrack, Elem: elem, RBrack: rbrack}
	}

	pos := p.pos
	p.errorExpected(pos, "type")
	p.advance(defStart)
	return &NamedType{Name: "any", NamePos: pos}
}

func (p *Parser) parseExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "Expression"))
	}

	return p.parseBinaryExpr(token.LowestPrec + 1)
}

func (p *Parser) parseBinaryExpr(prec1 int) Expr {
	if p.trace {
		defer untracep(tracep(p, "BinaryExpression"))
	}

	x := p.parseUnaryExpr()

	for {
		op, prec := p.token, p.token.Precedence()
		if prec < prec1 {
			return x
		}

		pos := p.expect(op)

		var y Expr
		if op == token.Pow {
			// right associative
			y = p.parseBinaryExpr(prec)
		} else {
			y = p.parseBinaryExpr(prec + 1)
		}

		x = &BinaryExpr{
			LHS:      x,
			RHS:      y,
			Token:    op,
			TokenPos: pos,
		}
	}
}

func (p *Parser) parseUnaryExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "UnaryExpression"))
	}

	switch p.token {
	case token.Sub, token.Not:
		pos, op := p.pos, p.token
		p.next()
		if op == token.Sub && p.token == token.Int {
			p.negLit = true
		}
		x := p.parseUnaryExpr()
		return &UnaryExpr{
			Token:    op,
			TokenPos: pos,
			Expr:     x,
		}
	}
	return p.parsePrimaryExpr()
}

func (p *Parser) parsePrimaryExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "PrimaryExpression"))
	}

	x := p.parseOperand()

L:
	for {
		switch p.token {
		case token.Period:
			p.next()

			switch p.token {
			case token.Ident:
				x = &FieldExpr{Expr: x, Field: p.parseIdent()}
			default:
				pos := p.pos
				p.errorExpected(pos, "field name")
				p.advance(defStart)
				return &BadExpr{From: pos, To: p.pos}
			}
		case token.LBrack, token.LParen:
			// operands are juxtaposed, so only an adjacent bracket is a
			// postfix index or call
			if p.pos != p.prevEnd {
				break L
			}
			if p.token == token.LBrack {
				x = p.parseIndex(x)
			} else {
				x = p.parseCall(x)
			}
		default:
			break L
		}
	}
	return x
}

func (p *Parser) parseCall(x Expr) *CallExpr {
	if p.trace {
		defer untracep(tracep(p, "Call"))
	}

	lparen := p.expect(token.LParen)

	var list []Expr
	for p.token != token.RParen && p.token != token.EOF {
		list = append(list, p.parseExpr())
		if !p.atComma("argument list", token.RParen) {
			break
		}
		p.next()
	}

	rparen := p.expect(token.RParen)
	return &CallExpr{
		Func:   x,
		LParen: lparen,
		RParen: rparen,
		Args:   list,
	}
}

func (p *Parser) atComma(context string, follow token.Token) bool {
	if p.token == token.Comma {
		return true
	}
	if p.token != follow {
		p.error(p.pos, "missing ',' in "+context)
		return true // "insert" comma and continue
	}
	return false
}

func (p *Parser) parseIndex(x Expr) Expr {
	if p.trace {
		defer untracep(tracep(p, "Index"))
	}

	lbrack := p.expect(token.LBrack)
	index := p.parseExpr()
	rbrack := p.expect(token.RBrack)
	return &IndexExpr{
		Expr:   x,
		LBrack: lbrack,
		RBrack: rbrack,
		Index:  index,
	}
}

func (p *Parser) parseOperand() Expr {
	if p.trace {
		defer untracep(tracep(p, "Operand"))
	}

	negated := p.negLit
	p.negLit = false

	switch p.token {
	case token.Ident:
		return p.parseIdent()
	case token.Int:
		v, _ := new(big.Int).SetString(p.tokenLit, 10)
		x := &IntLit{
			Value:    v,
			ValuePos: p.pos,
			Literal:  p.tokenLit,
		}
		if !negated && v != nil && v.Cmp(maxIntMagnitude) == 0 {
			p.error(p.pos, "integer literal "+p.tokenLit+
				" is out of 128-bit integer range")
		}
		p.next()
		return x
	case token.Decimal:
		v, _ := strconv.ParseFloat(p.tokenLit, 64)
		x := &DecimalLit{
			Value:    v,
			ValuePos: p.pos,
			Literal:  p.tokenLit,
		}
		p.next()
		return x
	case token.String:
		return p.parseStringLit()
	case token.True, token.False:
		x := &BoolLit{
			Value:    p.token == token.True,
			ValuePos: p.pos,
			Literal:  p.tokenLit,
		}
		p.next()
		return x
	case token.Null:
		x := &NullLit{TokenPos: p.pos}
		p.next()
		return x
	case token.LParen:
		lparen := p.pos
		p.next()
		if p.token == token.RParen {
			rparen := p.pos
			p.next()
			return &UnitLit{LParen: lparen, RParen: rparen}
		}
		x := p.parseExpr()
		rparen := p.expect(token.RParen)
		return &ParenExpr{
			LParen: lparen,
			Expr:   x,
			RParen: rparen,
		}
	case token.LBrack:
		return p.parseListLit()
	case token.LBrace:
		if p.isObjectStart() {
			return p.parseObjectLit()
		}
		return p.parseBlockExpr()
	case token.If:
		return p.parseIfExpr()
	case token.Let:
		return p.parseLetExpr()
	case token.Read, token.Write, token.Update, token.Delete:
		return p.parseTableExpr()
	}

	pos := p.pos
	p.errorExpected(pos, "operand")
	p.advance(defStart)
	return &BadExpr{From: pos, To: p.pos}
}

// isObjectStart reports whether the current '{' opens an object literal.
func (p *Parser) isObjectStart() bool {
	tok, _ := p.peek(1)
	if tok == token.RBrace {
		return true
	}
	if tok != token.Ident && tok != token.String {
		return false
	}
	tok, _ = p.peek(2)
	return tok == token.Colon
}

func (p *Parser) parseStringLit() *StringLit {
	x := &StringLit{
		Value:    p.tokenLit,
		ValuePos: p.pos,
		EndPos:   p.tokenEnd,
	}
	p.expect(token.String)
	return x
}

func (p *Parser) parseListLit() Expr {
	if p.trace {
		defer untracep(tracep(p, "ListLit"))
	}

	lbrack := p.expect(token.LBrack)

	var elements []Expr
	for p.token != token.RBrack && p.token != token.EOF {
		elements = append(elements, p.parseExpr())

		if !p.atComma("list literal", token.RBrack) {
			break
		}
		p.next()
	}

	rbrack := p.expect(token.RBrack)
	return &ListLit{
		Elements: elements,
		LBrack:   lbrack,
		RBrack:   rbrack,
	}
}

func (p *Parser) parseObjectElementLit() *ObjectElementLit {
	if p.trace {
		defer untracep(tracep(p, "ObjectElementLit"))
	}

	pos := p.pos
	name := "_"
	if p.token == token.Ident || p.token == token.String {
		name = p.tokenLit
	} else {
		p.errorExpected(pos, "object key")
	}
	p.next()
	colonPos := p.expect(token.Colon)
	valueExpr := p.parseExpr()
	return &ObjectElementLit{
		Key:      name,
		KeyPos:   pos,
		ColonPos: colonPos,
		Value:    valueExpr,
	}
}

func (p *Parser) parseObjectLit() *ObjectLit {
	if p.trace {
		defer untracep(tracep(p, "ObjectLit"))
	}

	lbrace := p.expect(token.LBrace)

	var elements []*ObjectElementLit
	for p.token != token.RBrace && p.token != token.EOF {
		elements = append(elements, p.parseObjectElementLit())

		if !p.atComma("object literal", token.RBrace) {
			break
		}
		p.next()
	}

	rbrace := p.expect(token.RBrace)
	return &ObjectLit{
		LBrace:   lbrace,
		RBrace:   rbrace,
		Elements: elements,
	}
}

func (p *Parser) parseBlockExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "BlockExpr"))
	}

	lbrace := p.expect(token.LBrace)

	var list []Expr
	for p.token != token.RBrace && p.token != token.EOF {
		list = append(list, p.parseExpr())
	}

	rbrace := p.expect(token.RBrace)
	if len(list) == 0 {
		// "{}" is an empty object, reaching here means a malformed block
		p.error(rbrace, "empty block")
	}
	return &BlockExpr{
		LBrace: lbrace,
		Exprs:  list,
		RBrace: rbrace,
	}
}

func (p *Parser) parseIfExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "IfExpr"))
	}

	pos := p.expect(token.If)
	cond := p.parseExpr()
	if p.isContextual("then") {
		p.next()
	}
	then := p.parseExpr()

	var elseExpr Expr
	if p.isContextual("else") {
		p.next()
		elseExpr = p.parseExpr()
	}
	return &IfExpr{
		IfPos: pos,
		Cond:  cond,
		Then:  then,
		Else:  elseExpr,
	}
}

func (p *Parser) isContextual(word string) bool {
	return p.token == token.Ident && p.tokenLit == word
}

func (p *Parser) parseLetExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "LetExpr"))
	}

	pos := p.expect(token.Let)
	name := p.parseIdent()
	p.expect(token.Assign)
	value := p.parseExpr()
	body := p.parseExpr()
	return &LetExpr{
		LetPos: pos,
		Name:   name,
		Value:  value,
		Body:   body,
	}
}

// parseTableExpr parses read, write, update and delete in both the
// juxtaposed form "write t k v" and the call form "write(t, k, v)".
func (p *Parser) parseTableExpr() Expr {
	if p.trace {
		defer untracep(tracep(p, "TableExpr("+p.token.String()+")"))
	}

	op, pos := p.token, p.pos
	p.next()

	paren := p.token == token.LParen
	if paren {
		p.next()
	}
	sep := func() {
		if paren {
			p.expect(token.Comma)
		}
	}

	table := p.parseTableName()
	sep()
	key := p.parseExpr()

	var x Expr
	switch op {
	case token.Read:
		x = &ReadExpr{TokenPos: pos, Table: table, Key: key}
	case token.Delete:
		x = &DeleteExpr{TokenPos: pos, Table: table, Key: key}
	case token.Write:
		sep()
		x = &WriteExpr{TokenPos: pos, Table: table, Key: key,
			Value: p.parseExpr()}
	case token.Update:
		sep()
		x = &UpdateExpr{TokenPos: pos, Table: table, Key: key,
			Fields: p.parseObjectLit()}
	}
	if paren {
		p.expect(token.RParen)
	}
	return x
}

func (p *Parser) parseTableName() *TableName {
	pos := p.pos
	switch p.token {
	case token.Ident:
		name := p.tokenLit
		p.next()
		return &TableName{Name: name, NamePos: pos}
	case token.String:
		name := p.tokenLit
		p.next()
		return &TableName{Name: name, NamePos: pos, Quoted: true}
	}
	p.errorExpected(pos, "table name")
	return &TableName{Name: "_", NamePos: pos}
}

func (p *Parser) parseIdent() *Ident {
	pos := p.pos
	name := "_"

	if p.token == token.Ident {
		name = p.tokenLit
		p.next()
	} else {
		p.expect(token.Ident)
	}
	return &Ident{
		NamePos: pos,
		Name:    name,
	}
}

func (p *Parser) expect(token token.Token) Pos {
	pos := p.pos

	if p.token != token {
		p.errorExpected(pos, "'"+token.String()+"'")
	}
	p.next()
	return pos
}

func (p *Parser) advance(to map[token.Token]bool) {
	for ; p.token != token.EOF; p.next() {
		if to[p.token] {
			if p.pos == p.syncPos && p.syncCount < 10 {
				p.syncCount++
				return
			}
			if p.pos > p.syncPos {
				p.syncPos = p.pos
				p.syncCount = 0
				return
			}
		}
	}
}

func (p *Parser) error(pos Pos, msg string) {
	filePos := p.file.Position(pos)

	n := len(p.errors)
	if n > 0 && p.errors[n-1].Pos.Line == filePos.Line {
		// discard errors reported on the same line
		return
	}
	if n > 10 {
		// too many errors; terminate early
		panic(bailout{})
	}
	p.errors.Add(filePos, msg, KindSyntax)
}

func (p *Parser) errorExpected(pos Pos, msg string) {
	msg = "expected " + msg
	if pos == p.pos {
		// error happened at the current position: provide more specific
		switch {
		case p.token == token.EOF:
			msg += ", found end of input"
		case p.token.IsLiteral():
			msg += ", found " + p.tokenLit
		default:
			msg += ", found '" + p.token.String() + "'"
		}
	}
	p.error(pos, msg)
}

// peek scans n tokens ahead without moving the parser.
func (p *Parser) peek(n int) (tok token.Token, lit string) {
	saved := *p.scanner
	p.scanner.errorHandler = nil
	for i := 0; i < n; i++ {
		for {
			tok, lit, _ = p.scanner.Scan()
			if tok != token.Comment {
				break
			}
		}
	}
	*p.scanner = saved
	return
}

func (p *Parser) next0() {
	if p.trace && p.pos.IsValid() {
		s := p.token.String()
		switch {
		case p.token.IsLiteral():
			p.printTrace(s, p.tokenLit)
		case p.token.IsOperator(), p.token.IsKeyword():
			p.printTrace(`"` + s + `"`)
		default:
			p.printTrace(s)
		}
	}
	p.token, p.tokenLit, p.pos = p.scanner.Scan()
	p.tokenEnd = p.file.Pos(p.scanner.offset)
}

func (p *Parser) next() {
	p.prevEnd = p.tokenEnd
	p.next0()
	for p.token == token.Comment {
		p.comments = append(p.comments, &Comment{Semi: p.pos, Text: p.tokenLit})
		p.next0()
	}
}

func (p *Parser) printTrace(a ...interface{}) {
	const (
		dots = ". . . . . . . . . . . . . . . . . . . . . . . . . . . . . . . "
		n    = len(dots)
	)

	filePos := p.file.Position(p.pos)
	_, _ = fmt.Fprintf(p.traceOut, "%5d: %5d:%3d: ", p.pos, filePos.Line,
		filePos.Column)
	i := 2 * p.indent
	for i > n {
		_, _ = fmt.Fprint(p.traceOut, dots)
		i -= n
	}
	_, _ = fmt.Fprint(p.traceOut, dots[0:i])
	_, _ = fmt.Fprintln(p.traceOut, a...)
}

func tracep(p *Parser, msg string) *Parser {
	p.printTrace(msg, "(")
	p.indent++
	return p
}

func untracep(p *Parser) {
	p.indent--
	p.printTrace(")")
}

// Parse parses src as a single file named filename.
func Parse(filename string, src []byte, trace io.Writer) (*File, error) {
	fileSet := NewFileSet()
	file := fileSet.AddFile(filename, -1, len(src))
	return NewParser(file, src, trace).ParseFile()
}
