package jinja

import "testing"

func TestBuiltinFilters(t *testing.T) {
	tests := []struct {
		name     string
		template string
		context  map[string]interface{}
		want     string
	}{
		{"default on undefined", "{{ missing|default('x') }}", nil, "x"},
		{"default leaves defined value", "{{ v|default('x') }}", map[string]interface{}{"v": "y"}, "y"},
		{"join", `{{ items|join(", ") }}`, map[string]interface{}{"items": []interface{}{"a", "b", "c"}}, "a, b, c"},
		{"upper", `{{ "abc"|upper }}`, nil, "ABC"},
		{"lower", `{{ "ABC"|lower }}`, nil, "abc"},
		{"capitalize", `{{ "hello world"|capitalize }}`, nil, "Hello world"},
		{"title", `{{ "hello world"|title }}`, nil, "Hello World"},
		{"replace", `{{ "hello"|replace("l", "L") }}`, nil, "heLLo"},
		{"trim", `{{ "  hi  "|trim }}`, nil, "hi"},
		{"length of string", `{{ "hello"|length }}`, nil, "5"},
		{"length of list", `{{ items|length }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "3"},
		{"first", `{{ items|first }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "1"},
		{"last", `{{ items|last }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "3"},
		{"sort", `{{ items|sort|join(",") }}`, map[string]interface{}{"items": []interface{}{3, 1, 2}}, "1,2,3"},
		{"reverse list", `{{ items|reverse|join(",") }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "3,2,1"},
		{"unique", `{{ items|unique|join(",") }}`, map[string]interface{}{"items": []interface{}{1, 1, 2, 2, 3}}, "1,2,3"},
		{"sum", `{{ items|sum }}`, map[string]interface{}{"items": []interface{}{1, 2, 3}}, "6"},
		{"min", `{{ items|min }}`, map[string]interface{}{"items": []interface{}{3, 1, 2}}, "1"},
		{"max", `{{ items|max }}`, map[string]interface{}{"items": []interface{}{3, 1, 2}}, "3"},
		{"abs", `{{ (-5)|abs }}`, nil, "5"},
		{"round", `{{ 3.456|round(2) }}`, nil, "3.46"},
		{"int", `{{ "42"|int }}`, nil, "42"},
		{"float", `{{ "3.5"|float }}`, nil, "3.5"},
		{"truncate", `{{ "hello world"|truncate(5, true, "") }}`, nil, "hello"},
		{"wordcount", `{{ "one two three"|wordcount }}`, nil, "3"},
		{"striptags", `{{ "<b>hi</b>"|striptags }}`, nil, "hi"},
		{"center", `{{ "hi"|center(6) }}`, nil, "  hi  "},
		{"batch", `{% for row in items|batch(2) %}{{ row|join(",") }};{% endfor %}`, map[string]interface{}{"items": []interface{}{1, 2, 3, 4, 5}}, "1,2;3,4;5;"},
		{"map with filter name", `{{ items|map("upper")|join(",") }}`, map[string]interface{}{"items": []interface{}{"a", "b"}}, "A,B"},
		{"select with test name", `{{ items|select("even")|list|join(",") }}`, map[string]interface{}{"items": []interface{}{1, 2, 3, 4}}, "2,4"},
		{"reject with test name", `{{ items|reject("even")|list|join(",") }}`, map[string]interface{}{"items": []interface{}{1, 2, 3, 4}}, "1,3"},
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

func TestDictsortFilter(t *testing.T) {
	tmpl := `{% for k, v in d|dictsort %}{{ k }}={{ v }};{% endfor %}`
	got, err := TemplateString(tmpl, map[string]interface{}{"d": map[string]interface{}{"b": 2, "a": 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a=1;b=2;" {
		t.Errorf("got %q, want %q", got, "a=1;b=2;")
	}
}

func TestForceescapeReescapesSafeValue(t *testing.T) {
	env := NewEnvironment(WithAutoescape(func(string) bool { return true }))
	tmpl, err := env.FromString(`{{ ("<b>"|safe)|forceescape }}`)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	got, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != "&lt;b&gt;" {
		t.Errorf("got %q, want %q", got, "&lt;b&gt;")
	}
}

func TestRandomFilterPicksFromSequence(t *testing.T) {
	got, err := TemplateString(`{{ items|random in items }}`, map[string]interface{}{
		"items": []interface{}{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "True" {
		t.Errorf("got %q, want %q (random must pick an element of the sequence)", got, "True")
	}
}

func TestRandomFilterOnEmptySequenceIsUndefined(t *testing.T) {
	tmpl := `{% set r = items|random %}{{ r is undefined }}`
	got, err := TemplateString(tmpl, map[string]interface{}{
		"items": []interface{}{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "True" {
		t.Errorf("got %q, want %q", got, "True")
	}
}

func TestTojsonFilter(t *testing.T) {
	got, err := TemplateString(`{{ v|tojson }}`, map[string]interface{}{"v": map[string]interface{}{"a": 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("got %q, want %q", got, `{"a":1}`)
	}
}
