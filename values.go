package jinja

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// UndefinedKind selects the tolerance rules an Undefined value enforces.
type UndefinedKind int

const (
	// LenientUndefined renders as empty string, is falsy, supports
	// iteration (zero items) and equality, but errors on most other ops.
	LenientUndefined UndefinedKind = iota
	// ChainableUndefined additionally tolerates attribute/item access,
	// returning another ChainableUndefined, so a.b.c never panics on a
	// missing `a`.
	ChainableUndefined
	// StrictUndefined raises UndefinedError on every operation, including
	// string conversion and truthiness.
	StrictUndefined
	// DebugUndefined renders as a human-readable placeholder describing
	// what was undefined, useful while authoring templates.
	DebugUndefined
)

// Undefined is the sentinel produced when a name, attribute, or item
// lookup fails. Its Kind determines how tolerant it is of further use.
type Undefined struct {
	Kind   UndefinedKind
	Name   string // the name/attribute/item that was missing
	Hint   string
}

func (u *Undefined) Error() string {
	if u.Hint != "" {
		return u.Hint
	}
	if u.Name != "" {
		return fmt.Sprintf("%q is undefined", u.Name)
	}
	return "value is undefined"
}

func (u *Undefined) String() string {
	switch u.Kind {
	case DebugUndefined:
		if u.Name != "" {
			return fmt.Sprintf("{{ undefined value printed: %s }}", u.Name)
		}
		return "{{ undefined value printed }}"
	default:
		return ""
	}
}

func (u *Undefined) mustBeStrict() error {
	if u.Kind == StrictUndefined {
		return &UndefinedError{Message: u.Error()}
	}
	return nil
}

// Safe wraps a string that is known not to need HTML-escaping, implementing
// spec.md's safe-string type. Concatenating a Safe with a plain string
// escapes the plain operand but keeps the result Safe (spec.md §4.7's law).
type Safe string

// Namespace is the cross-scope write escape hatch: namespace().attr = x
// mutates the same backing map seen through every alias of the namespace
// value, unlike a {% set %} assignment which always creates a new binding.
type Namespace struct {
	Attrs map[string]interface{}
}

func NewNamespace(initial map[string]interface{}) *Namespace {
	n := &Namespace{Attrs: map[string]interface{}{}}
	for k, v := range initial {
		n.Attrs[k] = v
	}
	return n
}

// Macro is the runtime representation of a {% macro %} or {% call %}
// block: a callable closure carrying its own parameter defaults and the
// context it was defined in (for non-varargs lookups of outer names).
type Macro struct {
	Name     string
	Params   []string
	Defaults []Expr
	Body     []Stmt
	Env      *Environment
	DefCtx   *Context
	CallerFn func(args []interface{}, kwargs map[string]interface{}) (interface{}, error)
}

// IsTruthy implements the spec's truthiness rule: false/nil/zero-valued
// numerics/empty strings/empty collections/Undefined are falsy.
func IsTruthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case *Undefined:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case Safe:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() != 0
	case reflect.Ptr:
		if rv.IsNil() {
			return false
		}
		return true
	}
	return true
}

// ToFloat coerces a value to float64 for arithmetic, following spec.md's
// numeric-tower rule (bool counts as 0/1, numeric strings are NOT coerced).
func ToFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isInt(v interface{}) bool {
	switch v.(type) {
	case int, int64:
		return true
	}
	return false
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	}
	return 0
}

// ToString renders any supported value the way text output does (no
// escaping applied here; that is the caller's job via Escape).
func ToString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case *Undefined:
		return t.String()
	case string:
		return t
	case Safe:
		return string(t)
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []interface{}:
		return sliceRepr(t)
	case map[string]interface{}:
		return mapRepr(t)
	case *Namespace:
		return mapRepr(t.Attrs)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}

func sliceRepr(s []interface{}) string {
	out := "["
	for i, v := range s {
		if i > 0 {
			out += ", "
		}
		out += reprValue(v)
	}
	return out + "]"
}

func mapRepr(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q: %s", k, reprValue(m[k]))
	}
	return out + "}"
}

func reprValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return ToString(v)
}

// ToSlice generalizes teacher's convertToSlice: accepts []interface{} as-is,
// and reflect-converts any other slice/array kind into one.
func ToSlice(v interface{}) ([]interface{}, bool) {
	if s, ok := v.([]interface{}); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.String:
		runes := []rune(rv.String())
		out := make([]interface{}, len(runes))
		for i, r := range runes {
			out[i] = string(r)
		}
		return out, true
	}
	return nil, false
}

// ToMap generalizes teacher's convertToMap similarly.
func ToMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case *Namespace:
		return t.Attrs, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map {
		out := map[string]interface{}{}
		for _, k := range rv.MapKeys() {
			out[fmt.Sprintf("%v", k.Interface())] = rv.MapIndex(k).Interface()
		}
		return out, true
	}
	return nil, false
}

// GetAttr resolves attribute access (`.name`) per spec.md §5: map key first,
// then exported struct field, then zero-arg method, else Undefined.
func GetAttr(v interface{}, name string, env *Environment) interface{} {
	if u, ok := v.(*Undefined); ok {
		if u.Kind == ChainableUndefined {
			return &Undefined{Kind: ChainableUndefined, Name: name}
		}
		return env.undefinedFor(name, fmt.Sprintf("%q has no attribute %q", u.Name, name))
	}
	if m, ok := ToMap(v); ok {
		if val, ok := m[name]; ok {
			return val
		}
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			break
		}
		rv = rv.Elem()
	}
	if rv.IsValid() {
		if rv.Kind() == reflect.Struct {
			if f := rv.FieldByName(name); f.IsValid() && f.CanInterface() {
				return f.Interface()
			}
		}
		if m := reflect.ValueOf(v).MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 {
			res := m.Call(nil)
			if len(res) == 1 {
				return res[0].Interface()
			}
		}
	}
	return env.undefinedFor(name, fmt.Sprintf("object has no attribute %q", name))
}

// GetItem resolves subscript access (`[expr]`) per spec.md §5.
func GetItem(v interface{}, key interface{}, env *Environment) interface{} {
	if u, ok := v.(*Undefined); ok {
		if u.Kind == ChainableUndefined {
			return &Undefined{Kind: ChainableUndefined}
		}
		return env.undefinedFor("", u.Error())
	}
	switch k := key.(type) {
	case string:
		if m, ok := ToMap(v); ok {
			if val, ok := m[k]; ok {
				return val
			}
			return env.undefinedFor(k, fmt.Sprintf("key %q not found", k))
		}
	}
	if idx, ok := ToFloat(key); ok {
		if s, ok := ToSlice(v); ok {
			i := int(idx)
			if i < 0 {
				i += len(s)
			}
			if i >= 0 && i < len(s) {
				return s[i]
			}
			return env.undefinedFor("", "index out of range")
		}
		if str, ok := v.(string); ok {
			runes := []rune(str)
			i := int(idx)
			if i < 0 {
				i += len(runes)
			}
			if i >= 0 && i < len(runes) {
				return string(runes[i])
			}
			return env.undefinedFor("", "index out of range")
		}
	}
	// fall back to attribute-style access for Getattr-as-Getitem parity.
	if name, ok := key.(string); ok {
		return GetAttr(v, name, env)
	}
	return env.undefinedFor("", "item not found")
}

// Equal implements value equality with the numeric-tower rule (1 == 1.0 ==
// True) and recursive list/map comparison.
func Equal(a, b interface{}) bool {
	if af, aok := ToFloat(a); aok {
		if bf, bok := ToFloat(b); bok {
			return af == bf
		}
	}
	as, aIsStr := stringLike(a)
	bs, bIsStr := stringLike(b)
	if aIsStr && bIsStr {
		return as == bs
	}
	if al, ok := ToSlice(a); ok {
		if bl, ok := ToSlice(b); ok {
			if len(al) != len(bl) {
				return false
			}
			for i := range al {
				if !Equal(al[i], bl[i]) {
					return false
				}
			}
			return true
		}
	}
	if _, aUndef := a.(*Undefined); aUndef {
		_, bUndef := b.(*Undefined)
		return bUndef
	}
	return reflect.DeepEqual(a, b)
}

func stringLike(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case Safe:
		return string(t), true
	}
	return "", false
}
