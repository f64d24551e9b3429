package jinja

import (
	"fmt"
	"strings"
)

func (ev *evaluator) evalExpr(ctx *Context, e Expr) (interface{}, error) {
	switch n := e.(type) {
	case *LiteralExpr:
		return n.Value, nil
	case *NameExpr:
		switch n.Name {
		case "true", "True":
			return true, nil
		case "false", "False":
			return false, nil
		case "none", "None":
			return nil, nil
		}
		return ctx.Lookup(n.Name), nil
	case *TupleExpr:
		return ev.evalList(ctx, n.Items)
	case *ListExpr:
		return ev.evalList(ctx, n.Items)
	case *DictExpr:
		m := map[string]interface{}{}
		for _, pair := range n.Pairs {
			k, err := ev.evalExpr(ctx, pair.Key)
			if err != nil {
				return nil, err
			}
			v, err := ev.evalExpr(ctx, pair.Value)
			if err != nil {
				return nil, err
			}
			m[ToString(k)] = v
		}
		return m, nil
	case *UnaryOpExpr:
		return ev.evalUnary(ctx, n)
	case *BinaryOpExpr:
		return ev.evalBinary(ctx, n)
	case *CompareExpr:
		return ev.evalCompare(ctx, n)
	case *CondExpr:
		t, err := ev.evalExpr(ctx, n.Test)
		if err != nil {
			return nil, err
		}
		if IsTruthy(t) {
			return ev.evalExpr(ctx, n.True)
		}
		if n.False == nil {
			return &Undefined{Kind: ev.env.Undefined}, nil
		}
		return ev.evalExpr(ctx, n.False)
	case *GetattrExpr:
		base, err := ev.evalExpr(ctx, n.Node)
		if err != nil {
			return nil, err
		}
		if ev.env.Sandbox != nil {
			if err := ev.env.Sandbox.CheckAttr(base, n.Attr); err != nil {
				return nil, err
			}
		}
		return GetAttr(base, n.Attr, ev.env), nil
	case *GetitemExpr:
		return ev.evalGetitem(ctx, n)
	case *ConcatExpr:
		parts := make([]interface{}, len(n.Parts))
		for i, p := range n.Parts {
			v, err := ev.evalExpr(ctx, p)
			if err != nil {
				return nil, err
			}
			parts[i] = v
		}
		return ConcatAutoescape(ctx.autoescape, parts...), nil
	case *MarkSafeExpr:
		v, err := ev.evalExpr(ctx, n.Inner)
		if err != nil {
			return nil, err
		}
		return MarkSafe(v), nil
	case *FilterExpr:
		return ev.evalFilterExpr(ctx, n)
	case *TestExpr:
		return ev.evalTestExpr(ctx, n)
	case *CallExpr:
		return ev.evalCall(ctx, n)
	}
	return nil, fmt.Errorf("unhandled expression %T", e)
}

func (ev *evaluator) evalList(ctx *Context, items []Expr) ([]interface{}, error) {
	out := make([]interface{}, len(items))
	for i, it := range items {
		v, err := ev.evalExpr(ctx, it)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (ev *evaluator) evalUnary(ctx *Context, n *UnaryOpExpr) (interface{}, error) {
	v, err := ev.evalExpr(ctx, n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "not":
		return !IsTruthy(v), nil
	case "-":
		f, ok := ToFloat(v)
		if !ok {
			return nil, &TemplateRuntimeError{Message: fmt.Sprintf("unary '-' not supported on %T", v)}
		}
		if isInt(v) {
			return -toInt64(v), nil
		}
		return -f, nil
	case "+":
		return v, nil
	}
	return nil, fmt.Errorf("unknown unary operator %q", n.Op)
}

func (ev *evaluator) evalBinary(ctx *Context, n *BinaryOpExpr) (interface{}, error) {
	if n.Op == "and" {
		l, err := ev.evalExpr(ctx, n.Left)
		if err != nil {
			return nil, err
		}
		if !IsTruthy(l) {
			return l, nil
		}
		return ev.evalExpr(ctx, n.Right)
	}
	if n.Op == "or" {
		l, err := ev.evalExpr(ctx, n.Left)
		if err != nil {
			return nil, err
		}
		if IsTruthy(l) {
			return l, nil
		}
		return ev.evalExpr(ctx, n.Right)
	}
	l, err := ev.evalExpr(ctx, n.Left)
	if err != nil {
		return nil, err
	}
	r, err := ev.evalExpr(ctx, n.Right)
	if err != nil {
		return nil, err
	}
	if v, ok := foldBinary(n.Op, l, r); ok {
		return v, nil
	}
	if v, handled, err := ev.undefinedArith(n.Op, l, r); handled {
		return v, err
	}
	if n.Op == "+" {
		if ls, ok := ToSlice(l); ok {
			if rs, ok := ToSlice(r); ok {
				return append(append([]interface{}{}, ls...), rs...), nil
			}
		}
	}
	return nil, &TemplateRuntimeError{Message: fmt.Sprintf("unsupported operand types for %s: %T and %T", n.Op, l, r)}
}

// undefinedArith implements spec §4.5's undefined-arithmetic rule: a strict
// undefined raises immediately; any other undefined kind propagates through
// add/sub by yielding the other operand unchanged, and collapses the result
// of every other arithmetic operator to a fresh undefined.
func (ev *evaluator) undefinedArith(op string, l, r interface{}) (interface{}, bool, error) {
	lu, lok := l.(*Undefined)
	ru, rok := r.(*Undefined)
	if !lok && !rok {
		return nil, false, nil
	}
	if lok {
		if err := lu.mustBeStrict(); err != nil {
			return nil, true, err
		}
	}
	if rok {
		if err := ru.mustBeStrict(); err != nil {
			return nil, true, err
		}
	}
	switch op {
	case "+", "-":
		if lok && !rok {
			return r, true, nil
		}
		if rok && !lok {
			return l, true, nil
		}
		return &Undefined{Kind: ev.env.Undefined}, true, nil
	case "*", "/", "//", "%", "**":
		return &Undefined{Kind: ev.env.Undefined}, true, nil
	}
	return nil, false, nil
}

func (ev *evaluator) evalCompare(ctx *Context, n *CompareExpr) (interface{}, error) {
	left, err := ev.evalExpr(ctx, n.Left)
	if err != nil {
		return nil, err
	}
	for i, op := range n.Ops {
		right, err := ev.evalExpr(ctx, n.Comparators[i])
		if err != nil {
			return nil, err
		}
		var ok bool
		switch op {
		case "in", "not in":
			ok = containsValue(right, left)
			if op == "not in" {
				ok = !ok
			}
		default:
			var supported bool
			ok, supported = compareOne(op, left, right)
			if !supported {
				return nil, &TemplateRuntimeError{Message: fmt.Sprintf("cannot compare %T %s %T", left, op, right)}
			}
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func containsValue(container, item interface{}) bool {
	if m, ok := ToMap(container); ok {
		_, found := m[ToString(item)]
		return found
	}
	if s, ok := ToSlice(container); ok {
		for _, v := range s {
			if Equal(v, item) {
				return true
			}
		}
		return false
	}
	if str, ok := container.(string); ok {
		return stringsContains(str, ToString(item))
	}
	return false
}

func stringsContains(haystack, needle string) bool {
	return len(needle) == 0 || indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func (ev *evaluator) evalGetitem(ctx *Context, n *GetitemExpr) (interface{}, error) {
	base, err := ev.evalExpr(ctx, n.Node)
	if err != nil {
		return nil, err
	}
	if sl, ok := n.Item.(*SliceExpr); ok {
		return ev.evalSlice(ctx, base, sl)
	}
	key, err := ev.evalExpr(ctx, n.Item)
	if err != nil {
		return nil, err
	}
	if ev.env.Sandbox != nil {
		if err := ev.env.Sandbox.CheckItem(base, key); err != nil {
			return nil, err
		}
	}
	return GetItem(base, key, ev.env), nil
}

func (ev *evaluator) evalSlice(ctx *Context, base interface{}, sl *SliceExpr) (interface{}, error) {
	items, isSlice := ToSlice(base)
	str, isStr := base.(string)
	var runes []rune
	n := 0
	if isSlice {
		n = len(items)
	} else if isStr {
		runes = []rune(str)
		n = len(runes)
	} else {
		return nil, &TemplateRuntimeError{Message: fmt.Sprintf("%T is not sliceable", base)}
	}
	start, stop, step, err := ev.resolveSlice(ctx, sl, n)
	if err != nil {
		return nil, err
	}
	var outIdx []int
	if step > 0 {
		for i := start; i < stop; i += step {
			outIdx = append(outIdx, i)
		}
	} else {
		for i := start; i > stop; i += step {
			outIdx = append(outIdx, i)
		}
	}
	if isStr {
		var sb []rune
		for _, i := range outIdx {
			if i >= 0 && i < n {
				sb = append(sb, runes[i])
			}
		}
		return string(sb), nil
	}
	out := make([]interface{}, 0, len(outIdx))
	for _, i := range outIdx {
		if i >= 0 && i < n {
			out = append(out, items[i])
		}
	}
	return out, nil
}

func (ev *evaluator) resolveSlice(ctx *Context, sl *SliceExpr, n int) (start, stop, step int, err error) {
	step = 1
	if sl.Step != nil {
		v, err := ev.evalExpr(ctx, sl.Step)
		if err != nil {
			return 0, 0, 0, err
		}
		step = int(toInt64(v))
		if step == 0 {
			step = 1
		}
	}
	if step > 0 {
		start, stop = 0, n
	} else {
		start, stop = n-1, -1
	}
	if sl.Start != nil {
		v, err := ev.evalExpr(ctx, sl.Start)
		if err != nil {
			return 0, 0, 0, err
		}
		start = normalizeIndex(int(toInt64(v)), n)
	}
	if sl.Stop != nil {
		v, err := ev.evalExpr(ctx, sl.Stop)
		if err != nil {
			return 0, 0, 0, err
		}
		stop = normalizeIndex(int(toInt64(v)), n)
	}
	return start, stop, step, nil
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	return i
}

func (ev *evaluator) evalArgs(ctx *Context, argExprs []Expr, kwargExprs []Argument) ([]interface{}, map[string]interface{}, error) {
	args := make([]interface{}, len(argExprs))
	for i, a := range argExprs {
		v, err := ev.evalExpr(ctx, a)
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	kwargs := map[string]interface{}{}
	for _, k := range kwargExprs {
		v, err := ev.evalExpr(ctx, k.Value)
		if err != nil {
			return nil, nil, err
		}
		kwargs[k.Name] = v
	}
	return args, kwargs, nil
}

func (ev *evaluator) evalCall(ctx *Context, n *CallExpr) (interface{}, error) {
	fnVal, err := ev.evalExpr(ctx, n.Func)
	if err != nil {
		return nil, err
	}
	args, kwargs, err := ev.evalArgs(ctx, n.Args, n.Kwargs)
	if err != nil {
		return nil, err
	}
	if ev.env.Sandbox != nil {
		if err := ev.env.Sandbox.CheckCall(fnVal); err != nil {
			return nil, err
		}
	}
	switch f := fnVal.(type) {
	case FuncValue:
		return f(args, kwargs)
	case *Macro:
		return ev.invokeMacro(f, args, kwargs, nil)
	case *Undefined:
		return nil, &UndefinedError{Message: f.Error()}
	}
	return nil, &TemplateRuntimeError{Message: fmt.Sprintf("%T is not callable", fnVal)}
}

func (ev *evaluator) evalFilterExpr(ctx *Context, n *FilterExpr) (interface{}, error) {
	v, err := ev.evalExpr(ctx, n.Node)
	if err != nil {
		return nil, err
	}
	args, kwargs, err := ev.evalArgs(ctx, n.Args, n.Kwargs)
	if err != nil {
		return nil, err
	}
	return ev.applyFilterValues(ctx, n.Name, v, args, kwargs)
}

func (ev *evaluator) applyFilter(ctx *Context, name string, v interface{}, argExprs []Expr, kwargExprs []Argument) (interface{}, error) {
	args, kwargs, err := ev.evalArgs(ctx, argExprs, kwargExprs)
	if err != nil {
		return nil, err
	}
	return ev.applyFilterValues(ctx, name, v, args, kwargs)
}

func (ev *evaluator) applyFilterValues(ctx *Context, name string, v interface{}, args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	fn, ok := ev.env.Filters[name]
	if !ok {
		return nil, &TemplateRuntimeError{Message: fmt.Sprintf("no filter named %q", name)}
	}
	if ev.env.Sandbox != nil {
		if err := ev.env.Sandbox.CheckFilter(name); err != nil {
			return nil, err
		}
	}
	return fn(v, args, kwargs, &FilterContext{Env: ev.env, Autoescape: ctx.autoescape})
}

func (ev *evaluator) evalTestExpr(ctx *Context, n *TestExpr) (interface{}, error) {
	v, err := ev.evalExpr(ctx, n.Node)
	if err != nil {
		return nil, err
	}
	args, kwargs, err := ev.evalArgs(ctx, n.Args, n.Kwargs)
	if err != nil {
		return nil, err
	}
	fn, ok := ev.env.Tests[n.Name]
	if !ok {
		return nil, &TemplateRuntimeError{Message: fmt.Sprintf("no test named %q", n.Name)}
	}
	result, err := fn(v, args, kwargs)
	if err != nil {
		return nil, err
	}
	if n.Not {
		return !result, nil
	}
	return result, nil
}

// ---- Macros -------------------------------------------------------

func (ev *evaluator) makeMacro(defCtx *Context, name string, params []string, defaults []Expr, body []Stmt) *Macro {
	return &Macro{Name: name, Params: params, Defaults: defaults, Body: body, Env: ev.env, DefCtx: defCtx}
}

func (ev *evaluator) invokeMacro(m *Macro, args []interface{}, kwargs map[string]interface{}, caller func([]interface{}, map[string]interface{}) (interface{}, error)) (interface{}, error) {
	callCtx := m.DefCtx.Child()
	extra := map[string]interface{}{}
	for i, p := range m.Params {
		if i < len(args) {
			callCtx.Set(p, args[i])
			continue
		}
		if v, ok := kwargs[p]; ok {
			if p == "caller" && m.Defaults[i] == nil {
				return nil, &TemplateRuntimeError{Message: fmt.Sprintf("macro %q does not accept caller as a keyword argument", m.Name)}
			}
			callCtx.Set(p, v)
			continue
		}
		if p == "caller" && caller != nil {
			callCtx.Set(p, FuncValue(caller))
			continue
		}
		if m.Defaults[i] != nil {
			v, err := ev.evalExpr(m.DefCtx, m.Defaults[i])
			if err != nil {
				return nil, err
			}
			callCtx.Set(p, v)
			continue
		}
		callCtx.Set(p, ev.env.undefinedFor(p, fmt.Sprintf("macro %q missing required argument %q", m.Name, p)))
	}
	if len(args) > len(m.Params) {
		extra["varargs"] = args[len(m.Params):]
	} else {
		extra["varargs"] = []interface{}{}
	}
	kwExtra := map[string]interface{}{}
	for k, v := range kwargs {
		found := false
		for _, p := range m.Params {
			if p == k {
				found = true
				break
			}
		}
		if !found {
			if k == "caller" {
				return nil, &TemplateRuntimeError{Message: fmt.Sprintf("macro %q does not accept caller as a keyword argument", m.Name)}
			}
			kwExtra[k] = v
		}
	}
	extra["kwargs"] = kwExtra
	callCtx.Set("varargs", extra["varargs"])
	callCtx.Set("kwargs", kwExtra)
	var sb strings.Builder
	if err := ev.renderBody(callCtx, m.Body, nil, &sb); err != nil {
		return nil, err
	}
	return Safe(sb.String()), nil
}
