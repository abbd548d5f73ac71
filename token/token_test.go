package token_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slvr-lang/slvr/token"
)

func TestLookup(t *testing.T) {
	for _, kw := range token.Keywords() {
		tok := token.Lookup(kw)
		require.True(t, tok.IsKeyword(), kw)
		require.Equal(t, kw, tok.String())
	}
	require.Equal(t, token.Ident, token.Lookup("then"))
	require.Equal(t, token.Ident, token.Lookup("else"))
	require.Equal(t, token.Ident, token.Lookup("my-var"))
}

func TestKinds(t *testing.T) {
	require.True(t, token.Int.IsLiteral())
	require.True(t, token.String.IsLiteral())
	require.False(t, token.Module.IsLiteral())
	require.True(t, token.Concat.IsOperator())
	require.True(t, token.Arrow.IsOperator())
	require.True(t, token.Defun.IsDefinition())
	require.False(t, token.If.IsDefinition())
	require.Equal(t, "token(999)", token.Token(999).String())
}

func TestPrecedence(t *testing.T) {
	require.Less(t, token.LOr.Precedence(), token.LAnd.Precedence())
	require.Less(t, token.LAnd.Precedence(), token.Equal.Precedence())
	require.Less(t, token.Less.Precedence(), token.Add.Precedence())
	require.Equal(t, token.Add.Precedence(), token.Concat.Precedence())
	require.Less(t, token.Sub.Precedence(), token.Mul.Precedence())
	require.Less(t, token.Rem.Precedence(), token.Pow.Precedence())
	require.Equal(t, token.LowestPrec, token.Comma.Precedence())
}
