package jinja

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// TemplateError is the common ancestor of every error this module raises
// for template-author-visible failures.
type TemplateError struct {
	Message string
	Name    string
}

func (e *TemplateError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: template %q", e.Message, e.Name)
	}
	return e.Message
}

// TemplateSyntaxError is raised by the lexer and parser on malformed source.
// It is never recovered from: the lexer/parser stop at the first one.
type TemplateSyntaxError struct {
	Message string
	Line    int
	Name    string
}

func (e *TemplateSyntaxError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: line %d, template %q", e.Message, e.Line, e.Name)
	}
	return fmt.Sprintf("%s: line %d", e.Message, e.Line)
}

// TemplateAssertionError is the error type for statically detectable misuse
// of a template. The parser and compiler do not return it: a `break` or
// `continue` outside a loop is not rejected when the template is compiled.
type TemplateAssertionError struct {
	Message string
	Line    int
	Name    string
}

func (e *TemplateAssertionError) Error() string {
	return fmt.Sprintf("%s: line %d, template %q", e.Message, e.Line, e.Name)
}

// TemplateRuntimeError is raised by the evaluator for failures only
// detectable while rendering (calling a non-callable, bad filter arity).
type TemplateRuntimeError struct {
	Message string
	Cause   error
}

func (e *TemplateRuntimeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TemplateRuntimeError) Unwrap() error { return e.Cause }

// UndefinedError is raised when a StrictUndefined value is used in an
// operation that requires a concrete value.
type UndefinedError struct {
	Message string
}

func (e *UndefinedError) Error() string { return e.Message }

// TemplateNotFound is raised by a Loader when the named template does not
// exist.
type TemplateNotFound struct {
	Name string
}

func (e *TemplateNotFound) Error() string {
	return fmt.Sprintf("template not found: %q", e.Name)
}

// TemplatesNotFound is raised when none of a list of candidate names (as
// passed to {% include %} with a list) exist.
type TemplatesNotFound struct {
	Names []string
}

func (e *TemplatesNotFound) Error() string {
	return fmt.Sprintf("none of the templates %v could be found", e.Names)
}

// SecurityError is raised by the sandbox when a template attempts an
// operation its policy denies.
type SecurityError struct {
	Message string
}

func (e *SecurityError) Error() string { return e.Message }

// wrapInternal annotates a compiler-internal invariant violation with a
// captured stack trace, for failures that should never be visible to
// template authors but need debugging context when they are.
func wrapInternal(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}

func newInternal(msg string) error {
	return pkgerrors.New(msg)
}
