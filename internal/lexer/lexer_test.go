package lexer

import "testing"

func TestTokenizeBasics(t *testing.T) {
	tests := []struct {
		src  string
		want []TokenType
	}{
		{`echo 1 + 2 * 3;`, []TokenType{IDENT, INT, PLUS, INT, STAR, INT, SEMICOLON, EOF}},
		{`$x = "hi";`, []TokenType{VARIABLE, ASSIGN, STRING_INTERP, SEMICOLON, EOF}},
		{`$a <=> $b`, []TokenType{VARIABLE, SPACESHIP, VARIABLE, EOF}},
		{`$o?->p`, []TokenType{VARIABLE, NULLSAFE, IDENT, EOF}},
		{`fn($x) => $x`, []TokenType{IDENT, LPAREN, VARIABLE, RPAREN, DOUBLE_ARROW, VARIABLE, EOF}},
		{`E::from(2)`, []TokenType{IDENT, DOUBLE_COLON, IDENT, LPAREN, INT, RPAREN, EOF}},
		{`#[Override]`, []TokenType{ATTRIBUTE, IDENT, RBRACKET, EOF}},
		{`f(...$args)`, []TokenType{IDENT, LPAREN, ELLIPSIS, VARIABLE, RPAREN, EOF}},
	}
	for _, tt := range tests {
		toks, err := Tokenize(tt.src)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", tt.src, err)
		}
		if len(toks) != len(tt.want) {
			t.Fatalf("Tokenize(%q) = %d tokens, want %d: %v", tt.src, len(toks), len(tt.want), toks)
		}
		for i, want := range tt.want {
			if toks[i].Type != want {
				t.Errorf("Tokenize(%q)[%d] = %s, want %s", tt.src, i, toks[i].Type, want)
			}
		}
	}
}

func TestTokenizeOpenTag(t *testing.T) {
	toks, err := Tokenize("<?php echo 1;")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Type != IDENT || toks[0].Value != "echo" {
		t.Fatalf("open tag not skipped: %v", toks[0])
	}
}

func TestTokenizeStrings(t *testing.T) {
	toks, err := Tokenize(`'it\'s' "v=$x\n"`)
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].Type != STRING || toks[0].Value != "it's" {
		t.Errorf("single-quoted = %q", toks[0].Value)
	}
	if toks[1].Type != STRING_INTERP || toks[1].Value != "v=$x\n" {
		t.Errorf("double-quoted = %q", toks[1].Value)
	}
}

func TestTokenizeNumbers(t *testing.T) {
	toks, err := Tokenize("42 3.14 1e3 0xff 1_000")
	if err != nil {
		t.Fatal(err)
	}
	wantTypes := []TokenType{INT, FLOAT, FLOAT, INT, INT}
	wantVals := []string{"42", "3.14", "1e3", "0xff", "1000"}
	for i := range wantTypes {
		if toks[i].Type != wantTypes[i] || toks[i].Value != wantVals[i] {
			t.Errorf("token %d = %s %q, want %s %q", i, toks[i].Type, toks[i].Value, wantTypes[i], wantVals[i])
		}
	}
}

func TestTokenizeComments(t *testing.T) {
	toks, err := Tokenize("1 // c\n# c2\n/* c3\nc4 */ 2")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 3 || toks[0].Value != "1" || toks[1].Value != "2" {
		t.Fatalf("comments not skipped: %v", toks)
	}
	if toks[1].Line != 4 {
		t.Errorf("line tracking through comments = %d, want 4", toks[1].Line)
	}
}
