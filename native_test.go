package jinja

import (
	"reflect"
	"testing"
)

func TestRenderNativeSingleChunkKeepsType(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.FromString("{{ 41 }}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.RenderNative(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != int64(41) {
		t.Errorf("got %#v (%T), want int64(41)", got, got)
	}
}

func TestRenderNativeSingleChunkList(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.FromString("{{ items }}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.RenderNative(map[string]interface{}{"items": []interface{}{int64(1), int64(2)}})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	want := []interface{}{int64(1), int64(2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestRenderNativeMultiChunkReparsesAsLiteral(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.FromString("{% for i in items %}{{ i }}{% endfor %}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.RenderNative(map[string]interface{}{"items": []interface{}{int64(1), int64(2), int64(3)}})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != int64(123) {
		t.Errorf("got %#v (%T), want int64(123)", got, got)
	}
}

func TestRenderNativeMultiChunkFallsBackToString(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.FromString("x={{ v }}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.RenderNative(map[string]interface{}{"v": int64(1)})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != "x=1" {
		t.Errorf("got %#v, want %q", got, "x=1")
	}
}

func TestRenderNativeEmptyTemplate(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.FromString("")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.RenderNative(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != "" {
		t.Errorf("got %#v, want an empty string", got)
	}
}

func TestParseLiteralHelper(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
		ok   bool
	}{
		{"42", int64(42), true},
		{"3.5", 3.5, true},
		{"True", true, true},
		{"None", nil, true},
		{"not a literal", nil, false},
	}
	for _, tt := range tests {
		got, ok := parseLiteral(tt.in)
		if ok != tt.ok {
			t.Errorf("parseLiteral(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("parseLiteral(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
