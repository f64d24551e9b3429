package jinja

import "testing"

func TestInheritanceWithSuper(t *testing.T) {
	env := NewEnvironment(WithLoader(mapLoader{
		"base.html":  `[{% block x %}B{% endblock %}]`,
		"child.html": `{% extends "base.html" %}{% block x %}{{ super() }}C{% endblock %}`,
	}))
	tmpl, err := env.GetTemplate("child.html")
	if err != nil {
		t.Fatalf("GetTemplate error: %v", err)
	}
	got, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if got != "[BC]" {
		t.Errorf("got %q, want %q", got, "[BC]")
	}
}

func TestLoopLookaheadTriggers(t *testing.T) {
	got, err := TemplateString(
		"{% for i in seq %}{{ loop.index }}/{{ loop.length }};{% endfor %}",
		map[string]interface{}{"seq": []interface{}{"a", "b", "c"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1/3;2/3;3/3;" {
		t.Errorf("got %q, want %q", got, "1/3;2/3;3/3;")
	}
}

func TestLoopFirstLast(t *testing.T) {
	tmpl := "{% for i in seq %}{% if loop.first %}[{% endif %}{{ i }}{% if not loop.last %},{% endif %}{% if loop.last %}]{% endif %}{% endfor %}"
	got, err := TemplateString(tmpl, map[string]interface{}{"seq": []interface{}{1, 2, 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[1,2,3]" {
		t.Errorf("got %q, want %q", got, "[1,2,3]")
	}
}

func TestAutoescapeBoundary(t *testing.T) {
	env := NewEnvironment(WithAutoescape(func(string) bool { return true }))
	tmpl, err := env.FromString("{{ s }}|{{ t }}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.Render(map[string]interface{}{"s": "<b>hi</b>", "t": Safe("<b>hi</b>")})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	want := "&lt;b&gt;hi&lt;/b&gt;|<b>hi</b>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConcatSafePrefixPlainSuffixUnderAutoescape(t *testing.T) {
	env := NewEnvironment(WithAutoescape(func(string) bool { return true }))
	tmpl, err := env.FromString(`{{ safe ~ raw }}`)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.Render(map[string]interface{}{"safe": Safe("<b>"), "raw": "<i>"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	want := "<b>&lt;i&gt;"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConcatBothSafeStaysSafeUnderAutoescape(t *testing.T) {
	env := NewEnvironment(WithAutoescape(func(string) bool { return true }))
	tmpl, err := env.FromString(`{{ (a ~ b) }}`)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.Render(map[string]interface{}{"a": Safe("<b>"), "b": Safe("</b>")})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	// a ~ b produces Safe("<b></b>"); the outer {{ }} escaping must be a
	// no-op on an already-safe value, so no entities should appear.
	want := "<b></b>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConcatChainChangesNothingUnderPlainRendering(t *testing.T) {
	got, err := TemplateString(`{{ "a" ~ 1 ~ true ~ none }}`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a1TrueNone" {
		t.Errorf("got %q, want %q", got, "a1TrueNone")
	}
}

func TestLenientUndefinedPropagatesThroughAddSub(t *testing.T) {
	got, err := TemplateString(`{{ missing + 1 }}/{{ 5 - missing }}`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1/5" {
		t.Errorf("got %q, want %q", got, "1/5")
	}
}

func TestLenientUndefinedCollapsesMultiplyDivide(t *testing.T) {
	got, err := TemplateString(`{{ (missing * 3) is undefined }}/{{ (4 / missing) is undefined }}`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "True/True" {
		t.Errorf("got %q, want %q", got, "True/True")
	}
}

func TestStrictUndefinedStillRaisesOnArithmetic(t *testing.T) {
	env := NewEnvironment(WithUndefined(StrictUndefined))
	tmpl, err := env.FromString(`{{ missing + 1 }}`)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, err := tmpl.Render(nil); err == nil {
		t.Errorf("expected an error rendering arithmetic on a strict undefined")
	}
}

func TestBreakContinue(t *testing.T) {
	tmpl := "{% for i in items %}{% if i == 2 %}{% continue %}{% endif %}{% if i == 4 %}{% break %}{% endif %}{{ i }}{% endfor %}"
	got, err := TemplateString(tmpl, map[string]interface{}{"items": []interface{}{1, 2, 3, 4, 5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "13" {
		t.Errorf("got %q, want %q", got, "13")
	}
}

func TestWithStatementScoping(t *testing.T) {
	got, err := TemplateString("{% with x = 1 %}{{ x }}{% endwith %}{{ x }}", map[string]interface{}{"x": "outer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1outer" {
		t.Errorf("got %q, want %q", got, "1outer")
	}
}

func TestNamespaceCrossScopeWrite(t *testing.T) {
	tmpl := "{% set ns = namespace(count=0) %}{% for i in items %}{% set ns.count = ns.count + 1 %}{% endfor %}{{ ns.count }}"
	got, err := TemplateString(tmpl, map[string]interface{}{"items": []interface{}{1, 2, 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "3" {
		t.Errorf("got %q, want %q", got, "3")
	}
}

func TestFilterBlock(t *testing.T) {
	got, err := TemplateString("{% filter upper %}hello{% endfilter %}", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "HELLO" {
		t.Errorf("got %q, want %q", got, "HELLO")
	}
}

func TestMacroVarargsAndKwargs(t *testing.T) {
	tmpl := `{% macro f() %}{{ varargs|join(",") }}|{{ kwargs.extra }}{% endmacro %}{{ f(1, 2, 3, extra="x") }}`
	got, err := TemplateString(tmpl, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1,2,3|x" {
		t.Errorf("got %q, want %q", got, "1,2,3|x")
	}
}

func TestIncludeWithContext(t *testing.T) {
	env := NewEnvironment(WithLoader(mapLoader{
		"partial.html": "Hello {{ name }}",
	}))
	tmpl, err := env.FromString(`{% include "partial.html" %}`)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.Render(map[string]interface{}{"name": "World"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != "Hello World" {
		t.Errorf("got %q, want %q", got, "Hello World")
	}
}

func TestImportMacroModule(t *testing.T) {
	env := NewEnvironment(WithLoader(mapLoader{
		"macros.html": `{% macro hello(name) %}Hello {{ name }}{% endmacro %}`,
	}))
	tmpl, err := env.FromString(`{% import "macros.html" as m %}{{ m.hello("World") }}`)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != "Hello World" {
		t.Errorf("got %q, want %q", got, "Hello World")
	}
}

// mapLoader is a minimal in-test Loader that reports a missing name as
// *TemplateNotFound.
type mapLoader map[string]string

func (m mapLoader) Load(name string) (string, func() bool, error) {
	src, ok := m[name]
	if !ok {
		return "", nil, &TemplateNotFound{Name: name}
	}
	return src, func() bool { return true }, nil
}
