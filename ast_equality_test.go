package jinja

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Parsing the same source twice must yield structurally identical ASTs —
// the half of the round-trip law in spec.md §8 that doesn't depend on a
// pretty-printer (see DESIGN.md for why the print leg is out of scope).
// cache.go's singleflight dedup, keyed by template name, relies on this holding.
func TestParseIsDeterministic(t *testing.T) {
	sources := []string{
		`{% if x == 1 %}one{% elif x == 2 %}two{% else %}other{% endif %}`,
		`{% for i in items %}{{ i|upper }}{% endfor %}`,
		`{% macro greet(name, greeting="Hi") %}{{ greeting }}, {{ name }}!{% endmacro %}`,
		`{% extends "base.html" %}{% block body %}{{ super() }}{% endblock %}`,
		`{{ (1 + 2) * 3 if flag else [1, 2, 3]|join(",") }}`,
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			env := NewEnvironment()
			p1, err := NewParser(src, "<test>", env.LexerConfig)
			if err != nil {
				t.Fatalf("NewParser: %v", err)
			}
			t1, err := p1.ParseTemplate()
			if err != nil {
				t.Fatalf("ParseTemplate (1st): %v", err)
			}
			p2, err := NewParser(src, "<test>", env.LexerConfig)
			if err != nil {
				t.Fatalf("NewParser: %v", err)
			}
			t2, err := p2.ParseTemplate()
			if err != nil {
				t.Fatalf("ParseTemplate (2nd): %v", err)
			}
			exportAll := cmp.Exporter(func(reflect.Type) bool { return true })
			if diff := cmp.Diff(Optimize(t1), Optimize(t2), exportAll); diff != "" {
				t.Errorf("two parses of the same source produced different ASTs:\n%s", diff)
			}
		})
	}
}
