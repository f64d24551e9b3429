package jinja

// Context is the layered namespace a template renders against: environment
// globals sit at the bottom, then template-level globals, then the values
// passed to Render, then any dynamic frames pushed by {% for %}/{% with %}/
// macro calls. Lookups walk from the innermost frame outward, matching
// spec.md §3's scoping invariant.
type Context struct {
	env        *Environment
	parent     *Context
	vars       map[string]interface{}
	autoescape bool
	tmplName   string
}

// NewContext builds the root context for a render: env globals merged
// under the caller-supplied vars.
func NewContext(env *Environment, tmplName string, vars map[string]interface{}, autoescape bool) *Context {
	merged := map[string]interface{}{}
	for k, v := range env.Globals {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return &Context{env: env, vars: merged, autoescape: autoescape, tmplName: tmplName}
}

// Child pushes a new frame (for-loop body, with-block, macro call) that
// shadows but does not mutate the parent's bindings.
func (c *Context) Child() *Context {
	return &Context{env: c.env, parent: c, vars: map[string]interface{}{}, autoescape: c.autoescape, tmplName: c.tmplName}
}

func (c *Context) Get(name string) (interface{}, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set binds name in the current (innermost) frame only, the semantics
// {% set %} requires: it never reaches through to mutate an outer frame.
func (c *Context) Set(name string, v interface{}) {
	c.vars[name] = v
}

// SetOuter rebinds name in the nearest frame that already defines it, or
// the current frame if none does; used by {% set %} at template top level
// where "current frame" and "outer frame" coincide.
func (c *Context) SetOuter(name string, v interface{}) {
	for cur := c; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return
		}
	}
	c.vars[name] = v
}

func (c *Context) Lookup(name string) interface{} {
	if v, ok := c.Get(name); ok {
		return v
	}
	return c.env.undefinedFor(name, "")
}
