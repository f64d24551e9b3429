package jinja

import "testing"

func TestBuiltinIsTests(t *testing.T) {
	tests := []struct {
		name     string
		template string
		context  map[string]interface{}
		want     string
	}{
		{"defined true", "{{ v is defined }}", map[string]interface{}{"v": 1}, "True"},
		{"defined false", "{{ missing is defined }}", nil, "False"},
		{"none", "{{ v is none }}", map[string]interface{}{"v": nil}, "True"},
		{"string", `{{ "x" is string }}`, nil, "True"},
		{"number on int", "{{ 3 is number }}", nil, "True"},
		{"number excludes bool", "{{ true is number }}", nil, "False"},
		{"integer", "{{ 3 is integer }}", nil, "True"},
		{"float", "{{ 3.5 is float }}", nil, "True"},
		{"mapping", "{{ v is mapping }}", map[string]interface{}{"v": map[string]interface{}{}}, "True"},
		{"sequence on list", "{{ v is sequence }}", map[string]interface{}{"v": []interface{}{1, 2}}, "True"},
		{"iterable on string", `{{ "abc" is iterable }}`, nil, "True"},
		{"even", "{{ 4 is even }}", nil, "True"},
		{"odd", "{{ 3 is odd }}", nil, "True"},
		{"divisibleby", "{{ 9 is divisibleby(3) }}", nil, "True"},
		{"not divisibleby", "{{ 9 is divisibleby(2) }}", nil, "False"},
		{"lower", `{{ "abc" is lower }}`, nil, "True"},
		{"upper", `{{ "ABC" is upper }}`, nil, "True"},
		{"eq", "{{ 3 is eq(3) }}", nil, "True"},
		{"ne", "{{ 3 is ne(4) }}", nil, "True"},
		{"lt", "{{ 2 is lt(3) }}", nil, "True"},
		{"gt", "{{ 3 is gt(2) }}", nil, "True"},
		{"in", "{{ 2 is in(items) }}", map[string]interface{}{"items": []interface{}{1, 2, 3}}, "True"},
		{"not in", "{{ 9 is in(items) }}", map[string]interface{}{"items": []interface{}{1, 2, 3}}, "False"},
		{"negated test", "{{ 3 is not even }}", nil, "True"},
		{"!= operator alias", `{{ items|select("!=", 2)|list|join(",") }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "1,3"},
		{"< operator alias", `{{ items|select("<", 2)|list|join(",") }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "1"},
		{"<= operator alias", `{{ items|select("<=", 2)|list|join(",") }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "1,2"},
		{"> operator alias", `{{ items|select(">", 2)|list|join(",") }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "3"},
		{">= operator alias", `{{ items|select(">=", 2)|list|join(",") }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "2,3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TemplateString(tt.template, tt.context)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapedTest(t *testing.T) {
	env := NewEnvironment(WithAutoescape(func(string) bool { return true }))
	tmpl, err := env.FromString(`{{ "<b>"|safe is escaped }}`)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != "True" {
		t.Errorf("got %q, want %q", got, "True")
	}
}
