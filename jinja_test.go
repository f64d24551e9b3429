package jinja

import "testing"

func TestTemplateString(t *testing.T) {
	tests := []struct {
		name     string
		template string
		context  map[string]interface{}
		want     string
		wantErr  bool
	}{
		{
			name:     "empty template",
			template: "",
			context:  map[string]interface{}{"name": "World"},
			want:     "",
		},
		{
			name:     "no variables",
			template: "Hello World!",
			context:  map[string]interface{}{},
			want:     "Hello World!",
		},
		{
			name:     "simple variable substitution",
			template: "Hello {{ name }}!",
			context:  map[string]interface{}{"name": "Jinja"},
			want:     "Hello Jinja!",
		},
		{
			name:     "variable with leading/trailing spaces in tag",
			template: "Hello {{  name  }}!",
			context:  map[string]interface{}{"name": "Jinja"},
			want:     "Hello Jinja!",
		},
		{
			name:     "multiple variables",
			template: "{{ greeting }} {{ name }}! Age: {{ age }}",
			context:  map[string]interface{}{"greeting": "Hi", "name": "Alex", "age": 30},
			want:     "Hi Alex! Age: 30",
		},
		{
			name:     "variable not in context renders empty",
			template: "Hello {{ name }}! Your city is {{ city }}.",
			context:  map[string]interface{}{"name": "User"},
			want:     "Hello User! Your city is .",
		},
		{
			name:     "if/else",
			template: "{% if loggedin %}Welcome{% else %}Please log in{% endif %}",
			context:  map[string]interface{}{"loggedin": false},
			want:     "Please log in",
		},
		{
			name:     "for loop",
			template: "{% for x in items %}{{ x }},{% endfor %}",
			context:  map[string]interface{}{"items": []interface{}{1, 2, 3}},
			want:     "1,2,3,",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TemplateString(tt.template, tt.context)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TemplateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TemplateString() = %q, want %q", got, tt.want)
			}
		})
	}
}
