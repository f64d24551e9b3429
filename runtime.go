package jinja

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

var errBreak = fmt.Errorf("break")
var errContinue = fmt.Errorf("continue")

// evaluator walks a resolved template body, writing rendered output and
// evaluating expressions against a Context. It is stateless beyond the
// environment it was built from, so one evaluator may render nested
// includes/imports/macro calls by recursing into itself.
type evaluator struct {
	env *Environment
}

// Render compiles (if needed) and renders t against vars.
func (t *Template) Render(vars map[string]interface{}) (string, error) {
	ev := &evaluator{env: t.Env}
	autoescape := t.Env.AutoescapeFn(t.Name)
	ctx := NewContext(t.Env, t.Name, vars, autoescape)
	body, chain, err := resolveChain(ev, ctx, t, 0)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := ev.renderBody(ctx, body, chain, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (ev *evaluator) renderBody(ctx *Context, body []Stmt, chain blockChain, w io.Writer) error {
	for _, s := range body {
		if err := ev.renderStmt(ctx, s, chain, w); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) renderStmt(ctx *Context, s Stmt, chain blockChain, w io.Writer) error {
	switch n := s.(type) {
	case *DataStmt:
		_, err := io.WriteString(w, n.Text)
		return err
	case *OutputStmt:
		v, err := ev.evalExpr(ctx, n.Expr)
		if err != nil {
			return err
		}
		return ev.writeValue(ctx, w, v)
	case *IfStmt:
		return ev.renderIf(ctx, n, chain, w)
	case *ForStmt:
		return ev.renderFor(ctx, n, chain, w)
	case *BlockStmt:
		return ev.renderBlockByName(ctx, n.Name, 0, chain, w)
	case *MacroStmt:
		ctx.Set(n.Name, ev.makeMacro(ctx, n.Name, n.Params, n.Defaults, n.Body))
		return nil
	case *CallBlockStmt:
		return ev.renderCallBlock(ctx, n, chain, w)
	case *FilterBlockStmt:
		return ev.renderFilterBlock(ctx, n, chain, w)
	case *AssignStmt:
		return ev.renderAssign(ctx, n)
	case *AssignBlockStmt:
		return ev.renderAssignBlock(ctx, n, chain)
	case *ExtendsStmt:
		return nil // consumed by resolveChain; emits nothing
	case *IncludeStmt:
		return ev.renderInclude(ctx, n, w)
	case *ImportStmt:
		return ev.renderImport(ctx, n)
	case *FromImportStmt:
		return ev.renderFromImport(ctx, n)
	case *WithStmt:
		return ev.renderWith(ctx, n, chain, w)
	case *AutoescapeStmt:
		return ev.renderAutoescape(ctx, n, chain, w)
	case *BreakStmt:
		return errBreak
	case *ContinueStmt:
		return errContinue
	case *DoStmt:
		_, err := ev.evalExpr(ctx, n.Expr)
		return err
	case *TransStmt:
		return ev.renderTrans(ctx, n, w)
	}
	return fmt.Errorf("unhandled statement %T", s)
}

func (ev *evaluator) writeValue(ctx *Context, w io.Writer, v interface{}) error {
	if u, ok := v.(*Undefined); ok {
		if err := u.mustBeStrict(); err != nil {
			return err
		}
	}
	if ev.env.Finalize != nil {
		v = ev.env.Finalize(v)
	}
	if nw, ok := w.(*nativeWriter); ok {
		nw.chunks = append(nw.chunks, v)
		return nil
	}
	if ctx.autoescape {
		_, err := io.WriteString(w, string(Escape(v)))
		return err
	}
	_, err := io.WriteString(w, ToString(v))
	return err
}

func (ev *evaluator) renderIf(ctx *Context, n *IfStmt, chain blockChain, w io.Writer) error {
	test, err := ev.evalExpr(ctx, n.Test)
	if err != nil {
		return err
	}
	if IsTruthy(test) {
		return ev.renderBody(ctx, n.Body, chain, w)
	}
	for _, e := range n.Elif {
		t, err := ev.evalExpr(ctx, e.Test)
		if err != nil {
			return err
		}
		if IsTruthy(t) {
			return ev.renderBody(ctx, e.Body, chain, w)
		}
	}
	return ev.renderBody(ctx, n.Else, chain, w)
}

func (ev *evaluator) renderFor(ctx *Context, n *ForStmt, chain blockChain, w io.Writer) error {
	return ev.renderForDepth(ctx, n, chain, w, 0)
}

func (ev *evaluator) renderForDepth(ctx *Context, n *ForStmt, chain blockChain, w io.Writer, depth int) error {
	iterVal, err := ev.evalExpr(ctx, n.Iter)
	if err != nil {
		return err
	}
	items, ok := iterableItems(iterVal)
	if !ok {
		return &TemplateRuntimeError{Message: fmt.Sprintf("%T is not iterable", iterVal)}
	}

	if n.Test != nil {
		filtered := make([]interface{}, 0, len(items))
		for _, item := range items {
			itemCtx := ctx.Child()
			bindTarget(itemCtx, n.Target, item)
			ok, err := ev.evalExpr(itemCtx, n.Test)
			if err != nil {
				return err
			}
			if IsTruthy(ok) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	if len(items) == 0 {
		return ev.renderBody(ctx, n.Else, chain, w)
	}

	var recurseFn func([]interface{}) (string, error)
	loop := newLoopInfo(items, depth, nil)
	if n.Recursive {
		recurseFn = func(sub []interface{}) (string, error) {
			var sb strings.Builder
			subCtx := ctx.Child()
			subCtx.Set("loop", loop.ToMap())
			subFor := &ForStmt{Target: n.Target, Iter: &LiteralExpr{Value: sub}, Body: n.Body, Test: n.Test, Recursive: true}
			if err := ev.renderForDepth(subCtx, subFor, chain, &sb, depth+1); err != nil {
				return "", err
			}
			return sb.String(), nil
		}
		loop.recurse = recurseFn
	}

	var prev interface{}
	hasPrev := false
	for i, item := range items {
		loop.advance(prev, hasPrev)
		prev = item
		hasPrev = true

		itemCtx := ctx.Child()
		bindTarget(itemCtx, n.Target, item)
		loopMap := loop.ToMap()
		if n.Recursive {
			loopMap["__call__"] = FuncValue(func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
				if len(args) == 0 {
					return "", nil
				}
				sub, _ := ToSlice(args[0])
				s, err := recurseFn(sub)
				return Safe(s), err
			})
		}
		itemCtx.Set("loop", loopMap)
		if err := ev.renderBody(itemCtx, n.Body, chain, w); err != nil {
			if err == errContinue {
				continue
			}
			if err == errBreak {
				return nil
			}
			return err
		}
		_ = i
	}
	return nil
}

func iterableItems(v interface{}) ([]interface{}, bool) {
	if m, ok := v.(map[string]interface{}); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, true
	}
	if u, ok := v.(*Undefined); ok {
		if u.Kind == StrictUndefined {
			return nil, false
		}
		return []interface{}{}, true
	}
	return ToSlice(v)
}

func bindTarget(ctx *Context, target Expr, value interface{}) {
	switch t := target.(type) {
	case *NameExpr:
		ctx.Set(t.Name, value)
	case *TupleExpr:
		items, _ := ToSlice(value)
		for i, sub := range t.Items {
			var v interface{}
			if i < len(items) {
				v = items[i]
			}
			bindTarget(ctx, sub, v)
		}
	}
}

func (ev *evaluator) renderBlockByName(ctx *Context, name string, idx int, chain blockChain, w io.Writer) error {
	defs := chain[name]
	if idx >= len(defs) {
		return &TemplateRuntimeError{Message: fmt.Sprintf("block %q has no definition at depth %d", name, idx)}
	}
	blk := defs[idx]
	bodyCtx := ctx
	if blk.Scoped {
		bodyCtx = ctx.Child()
	}
	bodyCtx.Set("super", FuncValue(func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		var sb strings.Builder
		if idx+1 >= len(defs) {
			return Safe(""), nil
		}
		if err := ev.renderBlockByName(ctx, name, idx+1, chain, &sb); err != nil {
			return nil, err
		}
		return Safe(sb.String()), nil
	}))
	return ev.renderBody(bodyCtx, blk.Body, chain, w)
}

func (ev *evaluator) renderWith(ctx *Context, n *WithStmt, chain blockChain, w io.Writer) error {
	childCtx := ctx.Child()
	for i, target := range n.Targets {
		v, err := ev.evalExpr(ctx, n.Values[i])
		if err != nil {
			return err
		}
		bindTarget(childCtx, target, v)
	}
	return ev.renderBody(childCtx, n.Body, chain, w)
}

func (ev *evaluator) renderAutoescape(ctx *Context, n *AutoescapeStmt, chain blockChain, w io.Writer) error {
	v, err := ev.evalExpr(ctx, n.Value)
	if err != nil {
		return err
	}
	childCtx := ctx.Child()
	childCtx.autoescape = IsTruthy(v)
	return ev.renderBody(childCtx, n.Body, chain, w)
}

func (ev *evaluator) renderAssign(ctx *Context, n *AssignStmt) error {
	v, err := ev.evalExpr(ctx, n.Value)
	if err != nil {
		return err
	}
	return ev.assignTo(ctx, n.Target, v)
}

func (ev *evaluator) assignTo(ctx *Context, target Expr, v interface{}) error {
	switch t := target.(type) {
	case *NameExpr:
		ctx.SetOuter(t.Name, v)
		return nil
	case *TupleExpr:
		items, ok := ToSlice(v)
		if !ok {
			return &TemplateRuntimeError{Message: "cannot unpack non-iterable value"}
		}
		if len(items) != len(t.Items) {
			return &TemplateRuntimeError{Message: fmt.Sprintf("cannot unpack %d values into %d targets", len(items), len(t.Items))}
		}
		for i, sub := range t.Items {
			if err := ev.assignTo(ctx, sub, items[i]); err != nil {
				return err
			}
		}
		return nil
	case *GetattrExpr:
		base, err := ev.evalExpr(ctx, t.Node)
		if err != nil {
			return err
		}
		ns, ok := base.(*Namespace)
		if !ok {
			return &TemplateRuntimeError{Message: "cannot assign to an attribute of a non-namespace value"}
		}
		ns.Attrs[t.Attr] = v
		return nil
	}
	return &TemplateRuntimeError{Message: "invalid assignment target"}
}

func (ev *evaluator) renderAssignBlock(ctx *Context, n *AssignBlockStmt, chain blockChain) error {
	var sb strings.Builder
	if err := ev.renderBody(ctx, n.Body, chain, &sb); err != nil {
		return err
	}
	var v interface{} = sb.String()
	for _, f := range n.Filters {
		var err error
		v, err = ev.applyFilter(ctx, f.Name, v, f.Args, f.Kwargs)
		if err != nil {
			return err
		}
	}
	return ev.assignTo(ctx, n.Target, v)
}

func (ev *evaluator) renderFilterBlock(ctx *Context, n *FilterBlockStmt, chain blockChain, w io.Writer) error {
	var sb strings.Builder
	if err := ev.renderBody(ctx, n.Body, chain, &sb); err != nil {
		return err
	}
	var v interface{} = sb.String()
	for _, f := range n.Filters {
		var err error
		v, err = ev.applyFilter(ctx, f.Name, v, f.Args, f.Kwargs)
		if err != nil {
			return err
		}
	}
	return ev.writeValue(ctx, w, v)
}

func (ev *evaluator) renderCallBlock(ctx *Context, n *CallBlockStmt, chain blockChain, w io.Writer) error {
	macroVal, err := ev.evalExpr(ctx, n.Call.Func)
	if err != nil {
		return err
	}
	macro, ok := macroVal.(*Macro)
	if !ok {
		return &TemplateRuntimeError{Message: "{% call %} target is not a macro"}
	}
	args, kwargs, err := ev.evalArgs(ctx, n.Call.Args, n.Call.Kwargs)
	if err != nil {
		return err
	}
	caller := func(cargs []interface{}, ckwargs map[string]interface{}) (interface{}, error) {
		callerCtx := ctx.Child()
		for i, p := range n.Params {
			var v interface{}
			if i < len(cargs) {
				v = cargs[i]
			} else if cv, ok := ckwargs[p]; ok {
				v = cv
			}
			callerCtx.Set(p, v)
		}
		var sb strings.Builder
		if err := ev.renderBody(callerCtx, n.Body, chain, &sb); err != nil {
			return nil, err
		}
		return Safe(sb.String()), nil
	}
	res, err := ev.invokeMacro(macro, args, kwargs, caller)
	if err != nil {
		return err
	}
	return ev.writeValue(ctx, w, res)
}

func (ev *evaluator) renderInclude(ctx *Context, n *IncludeStmt, w io.Writer) error {
	nameVal, err := ev.evalExpr(ctx, n.Template)
	if err != nil {
		return err
	}
	var tmpl *Template
	if _, isStr := stringLike(nameVal); isStr {
		tmpl, err = ev.env.GetTemplate(ToString(nameVal))
	} else if names, ok := ToSlice(nameVal); ok {
		var strs []string
		for _, nm := range names {
			strs = append(strs, ToString(nm))
		}
		tmpl, err = ev.env.SelectTemplate(strs)
	} else {
		tmpl, err = ev.env.GetTemplate(ToString(nameVal))
	}
	if err != nil {
		if n.IgnoreMissing {
			return nil
		}
		return err
	}
	includeCtx := ctx
	if !n.WithContext || n.Only {
		includeCtx = NewContext(ev.env, tmpl.Name, map[string]interface{}{}, ctx.autoescape)
		if n.WithContext {
			for k, v := range ctx.vars {
				includeCtx.Set(k, v)
			}
		}
	}
	body, chain, err := resolveChain(ev, includeCtx, tmpl, 0)
	if err != nil {
		return err
	}
	return ev.renderBody(includeCtx, body, chain, w)
}

func (ev *evaluator) loadModule(ctx *Context, tmplExpr Expr, withContext bool) (*Context, error) {
	nameVal, err := ev.evalExpr(ctx, tmplExpr)
	if err != nil {
		return nil, err
	}
	tmpl, err := ev.env.GetTemplate(ToString(nameVal))
	if err != nil {
		return nil, err
	}
	modCtx := NewContext(ev.env, tmpl.Name, map[string]interface{}{}, ctx.autoescape)
	if withContext {
		for k, v := range ctx.vars {
			modCtx.Set(k, v)
		}
	}
	body, chain, err := resolveChain(ev, modCtx, tmpl, 0)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	if err := ev.renderBody(modCtx, body, chain, &sb); err != nil {
		return nil, err
	}
	return modCtx, nil
}

func (ev *evaluator) renderImport(ctx *Context, n *ImportStmt) error {
	modCtx, err := ev.loadModule(ctx, n.Template, n.WithContext)
	if err != nil {
		return err
	}
	ctx.SetOuter(n.Target, NewNamespace(modCtx.vars))
	return nil
}

func (ev *evaluator) renderFromImport(ctx *Context, n *FromImportStmt) error {
	modCtx, err := ev.loadModule(ctx, n.Template, n.WithContext)
	if err != nil {
		return err
	}
	for _, fi := range n.Names {
		v, ok := modCtx.Get(fi.Name)
		if !ok {
			v = ev.env.undefinedFor(fi.Name, fmt.Sprintf("cannot import %q", fi.Name))
		}
		target := fi.Alias
		if target == "" {
			target = fi.Name
		}
		ctx.SetOuter(target, v)
	}
	return nil
}

func (ev *evaluator) renderTrans(ctx *Context, n *TransStmt, w io.Writer) error {
	for i, name := range n.Vars {
		if n.VarExprs[i] == nil {
			continue
		}
		v, err := ev.evalExpr(ctx, n.VarExprs[i])
		if err != nil {
			return err
		}
		ctx.Set(name, v)
	}
	body := n.Singular
	if n.Count != nil && len(n.Plural) > 0 {
		cv, err := ev.evalExpr(ctx, n.Count)
		if err != nil {
			return err
		}
		if f, ok := ToFloat(cv); ok && f != 1 {
			body = n.Plural
		}
	}
	return ev.renderBody(ctx, body, nil, w)
}
