package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(source string) []Token {
	s := New(source)
	var toks []Token
	for {
		tok := s.ScanToken()
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks
		}
	}
}

func TestScansArithmeticExpression(t *testing.T) {
	toks := collect("(1 + 2) * 3 - 4 / 2;")
	types := make([]TokenType, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		LeftParen, Number, Plus, Number, RightParen, Star, Number, Minus,
		Number, Slash, Number, Semicolon, EOF,
	}, types)
}

func TestNumberRequiresDigitsAfterDot(t *testing.T) {
	toks := collect("1.")
	require.Len(t, toks, 3)
	assert.Equal(t, Number, toks[0].Type)
	assert.Equal(t, "1", toks[0].Lexeme("1."))
	assert.Equal(t, Dot, toks[1].Type)
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := collect("var x = forest;")
	assert.Equal(t, Var, toks[0].Type)
	assert.Equal(t, Identifier, toks[1].Type)
	assert.Equal(t, Identifier, toks[3].Type) // "forest" is not the keyword "for"
}

func TestUnterminatedStringIsErrorToken(t *testing.T) {
	source := `"abc`
	s := New(source)
	tok := s.ScanToken()
	require.Equal(t, Error, tok.Type)
	assert.Equal(t, "Unterminated string.", tok.Lexeme(source))
}

func TestStringSpansNewlines(t *testing.T) {
	source := "\"a\nb\""
	s := New(source)
	tok := s.ScanToken()
	require.Equal(t, String, tok.Type)
	assert.Equal(t, source, tok.Lexeme(source))
	next := s.ScanToken()
	assert.Equal(t, EOF, next.Type)
	assert.Equal(t, 2, next.Line)
}

func TestLineCommentsSkipped(t *testing.T) {
	toks := collect("1 // comment\n2")
	require.Len(t, toks, 3)
	assert.Equal(t, Number, toks[0].Type)
	assert.Equal(t, Number, toks[1].Type)
	assert.Equal(t, 2, toks[1].Line)
}
