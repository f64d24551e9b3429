package jinja

import "testing"

type sandboxed struct {
	Visible string
	hidden  string
}

func TestSandboxDeniesUnderscoreAttr(t *testing.T) {
	env := NewEnvironment(WithSandbox(DefaultSandbox()))
	tmpl, err := env.FromString("{{ obj._secret }}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	_, err = tmpl.Render(map[string]interface{}{"obj": map[string]interface{}{"_secret": "nope"}})
	if err == nil {
		t.Fatal("expected a security error for an underscore-prefixed attribute")
	}
	if _, ok := err.(*SecurityError); !ok {
		t.Errorf("expected *SecurityError, got %T: %v", err, err)
	}
}

func TestSandboxAllowsPlainAttr(t *testing.T) {
	env := NewEnvironment(WithSandbox(DefaultSandbox()))
	tmpl, err := env.FromString("{{ obj.name }}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.Render(map[string]interface{}{"obj": map[string]interface{}{"name": "ok"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
}

func TestSandboxDeniesFilter(t *testing.T) {
	sb := DefaultSandbox()
	sb.DeniedFilters["upper"] = true
	env := NewEnvironment(WithSandbox(sb))
	tmpl, err := env.FromString(`{{ "x"|upper }}`)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	_, err = tmpl.Render(nil)
	if err == nil {
		t.Fatal("expected a security error for a denied filter")
	}
	if _, ok := err.(*SecurityError); !ok {
		t.Errorf("expected *SecurityError, got %T: %v", err, err)
	}
}

func TestSandboxCheckFormatStringFieldLimit(t *testing.T) {
	sb := &Sandbox{MaxFormatArgs: 1}
	if err := sb.CheckFormatString("{0}{1}"); err == nil {
		t.Fatal("expected too-many-fields error")
	}
	if err := sb.CheckFormatString("{0}"); err != nil {
		t.Errorf("unexpected error for a single field: %v", err)
	}
}

func TestNoSandboxAllowsUnderscoreAttr(t *testing.T) {
	got, err := TemplateString("{{ obj._secret }}", map[string]interface{}{
		"obj": map[string]interface{}{"_secret": "visible without a sandbox"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "visible without a sandbox" {
		t.Errorf("got %q, want the value to pass through with no sandbox configured", got)
	}
}
