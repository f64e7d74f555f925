package cel

import "testing"

func TestLexer_Tokens(t *testing.T) {
	l := NewLexer(`a.b >= 1.5 && !false || "x" != 'y'`)
	var kinds []TokenKind
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("unexpected lex error: %v", err)
		}
		kinds = append(kinds, tok.Kind)
		if tok.Kind == TokEOF {
			break
		}
	}
	want := []TokenKind{
		TokIdent, TokDot, TokIdent, TokGte, TokNumber, TokAnd, TokNot, TokFalse,
		TokOr, TokString, TokNeq, TokString, TokEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestLexer_NullInTernaryAndBrackets(t *testing.T) {
	l := NewLexer(`x in [1, 2] ? null : {"k": 1}`)
	var kinds []TokenKind
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("unexpected lex error: %v", err)
		}
		kinds = append(kinds, tok.Kind)
		if tok.Kind == TokEOF {
			break
		}
	}
	want := []TokenKind{
		TokIdent, TokIn, TokLBracket, TokNumber, TokComma, TokNumber, TokRBracket,
		TokQuestion, TokNull, TokColon, TokLBrace, TokString, TokColon, TokNumber, TokRBrace,
		TokEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestLexer_UnterminatedString(t *testing.T) {
	l := NewLexer(`"abc`)
	if _, err := l.Next(); err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestLexer_InvalidSingleEquals(t *testing.T) {
	l := NewLexer(`a = b`)
	l.Next() // ident a
	if _, err := l.Next(); err == nil {
		t.Fatal("expected error for single '='")
	}
}
