package token

import "testing"

func TestKeyWordsMapsReservedWordsOnly(t *testing.T) {
	cases := map[string]TokenType{
		"fn":       FN,
		"memoized": MEMOIZED,
		"and":      AND,
		"or":       OR,
		"not":      NOT,
		"match":    MATCH,
		"null":     NULL,
	}
	for word, want := range cases {
		got, ok := KeyWords[word]
		if !ok {
			t.Errorf("KeyWords[%q] missing", word)
			continue
		}
		if got != want {
			t.Errorf("KeyWords[%q] = %v, want %v", word, got, want)
		}
	}
	if _, ok := KeyWords["foo"]; ok {
		t.Errorf("KeyWords should not contain non-reserved word %q", "foo")
	}
}

func TestNewLiteralCarriesPayload(t *testing.T) {
	tok := NewLiteral(INT, int64(42), "42", 0, 2, 1, 0)
	if tok.Type != INT || tok.Literal != int64(42) || tok.Lexeme != "42" {
		t.Errorf("got %+v", tok)
	}
}

func TestStringFormatsTypeAndLexeme(t *testing.T) {
	tok := New(PLUS, "+", 0, 1, 1, 0)
	want := `Token {Type: +, Value: "+"}`
	if got := tok.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
