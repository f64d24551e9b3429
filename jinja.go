// Package jinja implements a Jinja2-compatible template engine: lexer,
// parser, optimizer, compiler, and a tree-walking runtime evaluator, with
// the filter/test/global registries, autoescaping, sandboxing, and a
// bounded compiled-template cache described alongside it.
package jinja

// defaultEnv is the package-level Environment TemplateString/Render use
// for one-off rendering when a caller does not need loader/cache control.
var defaultEnv = NewEnvironment()

// TemplateString compiles and renders source against vars using a shared
// default Environment, the convenience entry point for a single render.
func TemplateString(source string, vars map[string]interface{}) (string, error) {
	tmpl, err := defaultEnv.FromString(source)
	if err != nil {
		return "", err
	}
	return tmpl.Render(vars)
}
