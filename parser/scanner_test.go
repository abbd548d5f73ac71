package parser_test

import (
	"math/big"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/slvr-lang/slvr/parser"
	"github.com/slvr-lang/slvr/token"
)

type scanResult struct {
	Kind    token.Token
	Literal string
	Line    int
	Column  int
}

func TestScanner_Scan(t *testing.T) {
	testCases := []struct {
		input    string
		expected []scanResult
	}{
		{"", nil},
		{"  \t\n", nil},
		{"; a comment\n1", []scanResult{{token.Int, "1", 2, 1}}},
		{"foo my-var _x1", []scanResult{
			{token.Ident, "foo", 1, 1},
			{token.Ident, "my-var", 1, 5},
			{token.Ident, "_x1", 1, 12},
		}},
		{"1 1.5 10.0", []scanResult{
			{token.Int, "1", 1, 1},
			{token.Decimal, "1.5", 1, 3},
			{token.Decimal, "10.0", 1, 7},
		}},
		{"1.foo", []scanResult{
			{token.Int, "1", 1, 1},
			{token.Period, "", 1, 2},
			{token.Ident, "foo", 1, 3},
		}},
		{`"a\"b" "x\ny" "\q"`, []scanResult{
			{token.String, `a"b`, 1, 1},
			{token.String, "x\ny", 1, 8},
			{token.String, "q", 1, 15},
		}},
		{"+ ++ - -> * / % ^", []scanResult{
			{token.Add, "", 1, 1},
			{token.Concat, "", 1, 3},
			{token.Sub, "", 1, 6},
			{token.Arrow, "", 1, 8},
			{token.Mul, "", 1, 11},
			{token.Quo, "", 1, 13},
			{token.Rem, "", 1, 15},
			{token.Pow, "", 1, 17},
		}},
		{"= == ! != < <= > >= && ||", []scanResult{
			{token.Assign, "", 1, 1},
			{token.Equal, "", 1, 3},
			{token.Not, "", 1, 6},
			{token.NotEqual, "", 1, 8},
			{token.Less, "", 1, 11},
			{token.LessEq, "", 1, 13},
			{token.Greater, "", 1, 16},
			{token.GreaterEq, "", 1, 18},
			{token.LAnd, "", 1, 21},
			{token.LOr, "", 1, 24},
		}},
		{"()[]{},:.", []scanResult{
			{token.LParen, "", 1, 1},
			{token.RParen, "", 1, 2},
			{token.LBrack, "", 1, 3},
			{token.RBrack, "", 1, 4},
			{token.LBrace, "", 1, 5},
			{token.RBrace, "", 1, 6},
			{token.Comma, "", 1, 7},
			{token.Colon, "", 1, 8},
			{token.Period, "", 1, 9},
		}},
		{"module defun defschema deftable defconst", []scanResult{
			{token.Module, "module", 1, 1},
			{token.Defun, "defun", 1, 8},
			{token.Defschema, "defschema", 1, 14},
			{token.Deftable, "deftable", 1, 24},
			{token.Defconst, "defconst", 1, 33},
		}},
		{"if then else let\nread write update delete true false null",
			[]scanResult{
				{token.If, "if", 1, 1},
				{token.Ident, "then", 1, 4},
				{token.Ident, "else", 1, 9},
				{token.Let, "let", 1, 14},
				{token.Read, "read", 2, 1},
				{token.Write, "write", 2, 6},
				{token.Update, "update", 2, 12},
				{token.Delete, "delete", 2, 19},
				{token.True, "true", 2, 26},
				{token.False, "false", 2, 31},
				{token.Null, "null", 2, 37},
			}},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			toks, err := Tokenize("test", []byte(tc.input))
			require.NoError(t, err)
			require.NotEmpty(t, toks)
			require.Equal(t, token.EOF, toks[len(toks)-1].Kind)

			var actual []scanResult
			for _, tok := range toks[:len(toks)-1] {
				r := scanResult{tok.Kind, "", tok.Line, tok.Column}
				if tok.Kind.IsLiteral() || tok.Kind.IsKeyword() {
					r.Literal = tok.Literal
				}
				actual = append(actual, r)
			}
			require.Equal(t, tc.expected, actual)
		})
	}
}

func TestScanner_Errors(t *testing.T) {
	testCases := []struct {
		input  string
		msg    string
		line   int
		column int
	}{
		{`x "abc`, "unterminated string", 1, 3},
		{"1\n  \"ab\\", "unterminated string", 2, 3},
		{"1.2.3", "invalid numeric literal '1.2.3'", 1, 1},
		{"a 12ab", "invalid numeric literal '12ab'", 1, 3},
		{"a & b", "unexpected character '&'", 1, 3},
		{"a | b", "unexpected character '|'", 1, 3},
		{"a # b", "unexpected character U+0023 '#'", 1, 3},
		{"170141183460469231731687303715884105729",
			"out of 128-bit integer range", 1, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			_, err := Tokenize("test", []byte(tc.input))
			require.Error(t, err)
			require.ErrorIs(t, err, ErrLexical)

			list, ok := err.(ErrorList)
			require.True(t, ok)
			require.Equal(t, KindLexical, list[0].Kind)
			require.Contains(t, list[0].Msg, tc.msg)
			require.Equal(t, tc.line, list[0].Pos.Line)
			require.Equal(t, tc.column, list[0].Pos.Column)
			require.Contains(t, list[0].Error(), "Lexer Error: ")
		})
	}
}

func TestScanner_MaxMagnitude(t *testing.T) {
	// 2^127 scans so that a negated literal reaches the minimum value
	toks, err := Tokenize("test",
		[]byte("170141183460469231731687303715884105728"))
	require.NoError(t, err)
	require.Equal(t, token.Int, toks[0].Kind)
}

func TestScanner_Comments(t *testing.T) {
	src := []byte("1 ; first\n; second\n2")
	fileSet := NewFileSet()
	file := fileSet.AddFile("test", -1, len(src))
	s := NewScanner(file, src, nil, ScanComments)

	var kinds []token.Token
	var comments []string
	for {
		tok, lit, _ := s.Scan()
		if tok == token.EOF {
			break
		}
		kinds = append(kinds, tok)
		if tok == token.Comment {
			comments = append(comments, lit)
		}
	}
	require.Equal(t, []token.Token{
		token.Int, token.Comment, token.Comment, token.Int,
	}, kinds)
	require.Equal(t, []string{"; first", "; second"}, comments)
	require.Equal(t, 0, s.ErrorCount())
}

// Printing a literal and scanning it again yields the same literal.
func TestScanner_LiteralRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	scanOne := func(t *testing.T, src string) []Token {
		t.Helper()
		toks, err := Tokenize("test", []byte(src))
		require.NoError(t, err, src)
		return toks[:len(toks)-1]
	}

	t.Run("integer", func(t *testing.T) {
		limit := new(big.Int).Lsh(big.NewInt(1), 127)
		values := []*big.Int{
			big.NewInt(0), big.NewInt(1), big.NewInt(-1),
			new(big.Int).Sub(limit, big.NewInt(1)),
			new(big.Int).Neg(limit),
		}
		for i := 0; i < 200; i++ {
			v := new(big.Int).Rand(rng, limit)
			if rng.Intn(2) == 0 {
				v.Neg(v)
			}
			values = append(values, v)
		}
		for _, v := range values {
			toks := scanOne(t, v.String())
			mag := new(big.Int).Abs(v)
			if v.Sign() < 0 {
				require.Len(t, toks, 2)
				require.Equal(t, token.Sub, toks[0].Kind)
				toks = toks[1:]
			} else {
				require.Len(t, toks, 1)
			}
			require.Equal(t, token.Int, toks[0].Kind)
			got, ok := new(big.Int).SetString(toks[0].Literal, 10)
			require.True(t, ok)
			require.Zero(t, mag.Cmp(got), v.String())
		}
	})

	t.Run("decimal", func(t *testing.T) {
		values := []float64{0, 0.5, 1, 10, 123.456, 1e-9, 98765.4321}
		for i := 0; i < 200; i++ {
			values = append(values, rng.Float64()*1e6)
		}
		for _, v := range values {
			s := strconv.FormatFloat(v, 'f', -1, 64)
			if !strings.Contains(s, ".") {
				s += ".0"
			}
			toks := scanOne(t, s)
			require.Len(t, toks, 1)
			require.Equal(t, token.Decimal, toks[0].Kind, s)
			got, err := strconv.ParseFloat(toks[0].Literal, 64)
			require.NoError(t, err)
			require.Equal(t, v, got)
		}
	})

	t.Run("string", func(t *testing.T) {
		const alphabet = "ab \"\\\n\t\rçz;{}"
		values := []string{"", "plain", `with "quotes"`, `back\slash`}
		for i := 0; i < 200; i++ {
			var sb strings.Builder
			runes := []rune(alphabet)
			for n := rng.Intn(12); n > 0; n-- {
				sb.WriteRune(runes[rng.Intn(len(runes))])
			}
			values = append(values, sb.String())
		}
		for _, v := range values {
			toks := scanOne(t, quote(v))
			require.Len(t, toks, 1)
			require.Equal(t, token.String, toks[0].Kind)
			require.Equal(t, v, toks[0].Literal)
		}
	})
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`,
		"\r", `\r`)
	return `"` + r.Replace(s) + `"`
}
