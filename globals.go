package jinja

import "fmt"

// registerBuiltinGlobals replaces the teacher's Ansible-specific lookup()
// global with the generic callables spec.md §4.5 names: range, namespace,
// cycler, joiner, and dict.
func registerBuiltinGlobals(env *Environment) {
	env.Globals["range"] = FuncValue(globalRange)
	env.Globals["namespace"] = FuncValue(globalNamespace)
	env.Globals["cycler"] = FuncValue(globalCycler)
	env.Globals["joiner"] = FuncValue(globalJoiner)
	env.Globals["dict"] = FuncValue(globalDict)
}

func globalRange(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	var start, stop, step int64
	step = 1
	switch len(args) {
	case 1:
		stop = toInt64(args[0])
	case 2:
		start, stop = toInt64(args[0]), toInt64(args[1])
	case 3:
		start, stop, step = toInt64(args[0]), toInt64(args[1]), toInt64(args[2])
	default:
		return nil, fmt.Errorf("range expects 1 to 3 arguments, got %d", len(args))
	}
	if step == 0 {
		return nil, fmt.Errorf("range step must not be zero")
	}
	var out []interface{}
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out, nil
}

func globalNamespace(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	return NewNamespace(kwargs), nil
}

// cyclerState backs the cycler() global: a stateful cursor over a fixed
// sequence of values, exposing .next()/.current/.reset() to templates.
type cyclerState struct {
	items []interface{}
	pos   int
}

func globalCycler(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	c := &cyclerState{items: append([]interface{}{}, args...)}
	return map[string]interface{}{
		"next": FuncValue(func(_ []interface{}, _ map[string]interface{}) (interface{}, error) {
			if len(c.items) == 0 {
				return nil, nil
			}
			v := c.items[c.pos%len(c.items)]
			c.pos++
			return v, nil
		}),
		"reset": FuncValue(func(_ []interface{}, _ map[string]interface{}) (interface{}, error) {
			c.pos = 0
			return nil, nil
		}),
		"current": func() interface{} {
			if len(c.items) == 0 {
				return nil
			}
			return c.items[c.pos%len(c.items)]
		}(),
	}, nil
}

// joiner() returns a callable that yields "" the first time and the
// separator on every subsequent call, the idiom Jinja uses to comma-join
// items emitted across separate {% if %} branches inside a loop.
func globalJoiner(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	sep := ", "
	if len(args) > 0 {
		sep = ToString(args[0])
	}
	used := false
	return FuncValue(func(_ []interface{}, _ map[string]interface{}) (interface{}, error) {
		if !used {
			used = true
			return "", nil
		}
		return sep, nil
	}), nil
}

func globalDict(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	out := map[string]interface{}{}
	for k, v := range kwargs {
		out[k] = v
	}
	return out, nil
}
