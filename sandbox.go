package jinja

import (
	"fmt"
	"reflect"
	"strings"
)

// Sandbox implements spec.md §4.8's interception policy: attribute access,
// calls, item access, and filter dispatch all pass through a Sandbox (when
// one is configured on the Environment) before the evaluator acts on them.
type Sandbox struct {
	// DeniedAttrPrefixes blocks any attribute/method starting with one of
	// these (default: "_", matching the convention that a leading
	// underscore marks an implementation detail in both Go and Python).
	DeniedAttrPrefixes []string
	DeniedFilters      map[string]bool
	DeniedTypes        []reflect.Type
	MaxFormatArgs      int
}

// DefaultSandbox returns the conservative policy spec.md §4.8 recommends:
// deny underscore-prefixed attributes and nothing else by default.
func DefaultSandbox() *Sandbox {
	return &Sandbox{DeniedAttrPrefixes: []string{"_"}, DeniedFilters: map[string]bool{}}
}

func (s *Sandbox) CheckAttr(base interface{}, attr string) error {
	for _, p := range s.DeniedAttrPrefixes {
		if strings.HasPrefix(attr, p) {
			return &SecurityError{Message: fmt.Sprintf("access to attribute %q is blocked", attr)}
		}
	}
	for _, t := range s.DeniedTypes {
		if reflect.TypeOf(base) == t {
			return &SecurityError{Message: fmt.Sprintf("access to type %s is blocked", t)}
		}
	}
	return nil
}

func (s *Sandbox) CheckItem(base interface{}, key interface{}) error {
	if ks, ok := key.(string); ok {
		return s.CheckAttr(base, ks)
	}
	return nil
}

func (s *Sandbox) CheckCall(fn interface{}) error {
	rv := reflect.ValueOf(fn)
	if rv.Kind() == reflect.Func {
		return nil
	}
	switch fn.(type) {
	case FuncValue, *Macro:
		return nil
	}
	return &SecurityError{Message: fmt.Sprintf("calling %T is blocked by the sandbox", fn)}
}

func (s *Sandbox) CheckFilter(name string) error {
	if s.DeniedFilters[name] {
		return &SecurityError{Message: fmt.Sprintf("filter %q is blocked by the sandbox", name)}
	}
	return nil
}

// CheckFormatString guards against the str.format()-style attacks the
// original sandbox module defends against: a format string with more
// substitution fields than MaxFormatArgs (0 disables the check) is denied,
// since unbounded attribute-traversal specs like "{0.__class__}" are the
// classic sandbox escape vector.
func (s *Sandbox) CheckFormatString(format string) error {
	if s.MaxFormatArgs <= 0 {
		return nil
	}
	count := strings.Count(format, "{")
	if count > s.MaxFormatArgs {
		return &SecurityError{Message: "format string has too many substitution fields"}
	}
	return nil
}
