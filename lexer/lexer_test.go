package lexer

import (
	"testing"

	"evalscript/token"
)

func tokenTypes(t *testing.T, toks []token.Token) []token.TokenType {
	t.Helper()
	out := make([]token.TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func assertTypes(t *testing.T, src string, want []token.TokenType) {
	t.Helper()
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	got := tokenTypes(t, toks)
	if len(got) != len(want) {
		t.Fatalf("Tokenize(%q) = %v, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokenize(%q)[%d] = %v, want %v", src, i, got[i], want[i])
		}
	}
}

func TestOperators(t *testing.T) {
	assertTypes(t, "==!=<=>=..=>", []token.TokenType{
		token.EQ_EQ, token.BANG_EQ, token.LT_EQ, token.GT_EQ, token.DOTDOT, token.ARROW, token.EOF,
	})
}

func TestDelimiters(t *testing.T) {
	assertTypes(t, "(){}[],;:.", []token.TokenType{
		token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE, token.LBRACKET, token.RBRACKET,
		token.COMMA, token.SEMI, token.COLON, token.DOT, token.EOF,
	})
}

func TestKeywordsVsIdentifiers(t *testing.T) {
	assertTypes(t, "fn memoized for while in total", []token.TokenType{
		token.FN, token.MEMOIZED, token.FOR, token.WHILE, token.IN, token.IDENTIFIER, token.EOF,
	})
}

func TestIntAndFloatLiterals(t *testing.T) {
	toks, err := Tokenize("42 3.5")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if toks[0].Type != token.INT || toks[0].Literal != int64(42) {
		t.Errorf("got %+v, want INT 42", toks[0])
	}
	if toks[1].Type != token.FLOAT || toks[1].Literal != 3.5 {
		t.Errorf("got %+v, want FLOAT 3.5", toks[1])
	}
}

func TestStringLiteralWithEscapes(t *testing.T) {
	toks, err := Tokenize(`"a\nb\"c"`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if toks[0].Type != token.STRING || toks[0].Literal != "a\nb\"c" {
		t.Errorf("got %+v", toks[0])
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	assertTypes(t, "1 # a comment\n+ 2", []token.TokenType{
		token.INT, token.PLUS, token.INT, token.EOF,
	})
}

func TestUnterminatedStringIsAnError(t *testing.T) {
	if _, err := Tokenize(`"abc`); err == nil {
		t.Fatal("expected an unterminated-string error")
	}
}

func TestUnexpectedCharacterIsAnError(t *testing.T) {
	if _, err := Tokenize("@"); err == nil {
		t.Fatal("expected an unexpected-character error")
	}
}
