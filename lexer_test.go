package jinja

import "testing"

func lexAll(t *testing.T, src string) []Token {
	l := NewLexer(src, "<test>", DefaultLexerConfig())
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("lex error: %v", err)
		}
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			break
		}
	}
	return toks
}

func TestLexerDataAndVariable(t *testing.T) {
	toks := lexAll(t, "Hello {{ name }}!")
	kinds := make([]TokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	want := []TokenKind{TokData, TokVariableBegin, TokName, TokVariableEnd, TokData, TokEOF}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(kinds), toks, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v (%+v)", i, kinds[i], want[i], toks[i])
		}
	}
}

func TestLexerNumberLiterals(t *testing.T) {
	tests := []struct {
		src  string
		kind TokenKind
		val  string
	}{
		{"{{ 42 }}", TokInteger, "42"},
		{"{{ 1_000 }}", TokInteger, "1000"},
		{"{{ 3.14 }}", TokFloat, "3.14"},
		{"{{ 1e10 }}", TokFloat, "1e10"},
	}
	for _, tt := range tests {
		toks := lexAll(t, tt.src)
		if len(toks) < 2 || toks[1].Kind != tt.kind || toks[1].Value != tt.val {
			t.Errorf("lexAll(%q) = %v, want kind %v value %q", tt.src, toks, tt.kind, tt.val)
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	toks := lexAll(t, `{{ "a\nb" }}`)
	if len(toks) < 2 || toks[1].Kind != TokString || toks[1].Value != "a\nb" {
		t.Errorf("got %v, want string token with value %q", toks, "a\nb")
	}
}

func TestLexerRawBlockIsOpaque(t *testing.T) {
	toks := lexAll(t, "{% raw %}{{ not a var }}{% endraw %}")
	var dataCount int
	for _, tok := range toks {
		if tok.Kind == TokData && tok.Value == "{{ not a var }}" {
			dataCount++
		}
	}
	if dataCount != 1 {
		t.Errorf("expected raw block contents to lex as one literal TokData, got tokens: %v", toks)
	}
}

func TestLexerCommentIsSkippedByParser(t *testing.T) {
	out, err := TemplateString("a{# this is a comment #}b", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ab" {
		t.Errorf("got %q, want %q", out, "ab")
	}
}

func TestLexerTrimBlocks(t *testing.T) {
	env := NewEnvironment(WithTrimBlocks(true))
	tmpl, err := env.FromString("{% if true %}\nX{% endif %}\n")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "X" {
		t.Errorf("got %q, want %q", out, "X")
	}
}

func TestLexerLineStatement(t *testing.T) {
	env := NewEnvironment(WithLineStatementPrefix("#"))
	tmpl, err := env.FromString("# for x in items\n{{ x }}\n# endfor")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out, err := tmpl.Render(map[string]interface{}{"items": []interface{}{1, 2, 3}})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "1\n2\n3\n" {
		t.Errorf("got %q, want %q", out, "1\n2\n3\n")
	}
}

func TestLexerLineStatementIndented(t *testing.T) {
	env := NewEnvironment(WithLineStatementPrefix("%"))
	tmpl, err := env.FromString("  % if flag\nyes\n  % endif")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out, err := tmpl.Render(map[string]interface{}{"flag": true})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "yes\n" {
		t.Errorf("got %q, want %q", out, "yes\n")
	}
}

func TestLexerLineComment(t *testing.T) {
	env := NewEnvironment(WithLineStatementPrefix("#"), WithLineCommentPrefix("##"))
	tmpl, err := env.FromString("a\n## this whole line is dropped\nb")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "a\nb" {
		t.Errorf("got %q, want %q", out, "a\nb")
	}
}

func TestLexerLineCommentTrailsContentOnSameLine(t *testing.T) {
	// unlike line statements, a line comment need not start the line.
	env := NewEnvironment(WithLineCommentPrefix("##"))
	tmpl, err := env.FromString("x ## trailing note\ny")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "x y" {
		t.Errorf("got %q, want %q", out, "x y")
	}
}

func TestLexerLineCommentPrefersLongerMatchOverStatement(t *testing.T) {
	// "##" is configured as the comment prefix and "#" as the statement
	// prefix; a line starting with "##" must be recognized as a comment,
	// not as a statement whose body happens to start with "#".
	env := NewEnvironment(WithLineStatementPrefix("#"), WithLineCommentPrefix("##"))
	tmpl, err := env.FromString("## endfor would be a syntax error if parsed as a statement\nok")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "ok" {
		t.Errorf("got %q, want %q", out, "ok")
	}
}
