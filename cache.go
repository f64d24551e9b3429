package jinja

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Template is a compiled, optimized AST plus the name it was compiled
// under, ready to render against any Context.
type Template struct {
	Name string
	AST  *TemplateNode
	Env  *Environment
}

func compileTemplate(env *Environment, name, source string) (*Template, error) {
	p, err := NewParser(source, name, env.LexerConfig)
	if err != nil {
		return nil, err
	}
	tree, err := p.ParseTemplate()
	if err != nil {
		return nil, err
	}
	tree = Optimize(tree)
	if err := checkExtendsPlacement(tree, env, name); err != nil {
		return nil, err
	}
	return &Template{Name: name, AST: tree, Env: env}, nil
}

// checkExtendsPlacement implements the Open Question decision recorded in
// DESIGN.md: content emitted before a top-level {% extends %} is dropped
// at render time, but logged here as a diagnostic rather than rejected.
func checkExtendsPlacement(t *TemplateNode, env *Environment, name string) error {
	extendsIdx := -1
	for i, s := range t.Body {
		if _, ok := s.(*ExtendsStmt); ok {
			extendsIdx = i
			break
		}
	}
	if extendsIdx <= 0 {
		return nil
	}
	for _, s := range t.Body[:extendsIdx] {
		if d, ok := s.(*DataStmt); ok && isBlank(d.Text) {
			continue
		}
		env.Logger.WithField("template", name).Warn("content before {% extends %} will be discarded at render time")
		break
	}
	return nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

type cacheEntry struct {
	name string
	tmpl *Template
	uptodate func() bool
}

// TemplateCache is a bounded LRU cache of compiled templates, keyed by
// name, filled through singleflight so concurrent Render calls for a
// template that isn't cached yet compile it exactly once.
type TemplateCache struct {
	env   *Environment
	max   int
	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
	group singleflight.Group
}

func NewTemplateCache(max int, env *Environment) *TemplateCache {
	return &TemplateCache{env: env, max: max, ll: list.New(), items: map[string]*list.Element{}}
}

func (c *TemplateCache) GetOrCompile(name string) (*Template, error) {
	if t, ok := c.lookup(name); ok {
		return t, nil
	}
	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		if t, ok := c.lookup(name); ok {
			return t, nil
		}
		src, uptodate, err := c.env.Loader.Load(name)
		if err != nil {
			c.env.Logger.WithField("template", name).WithError(err).Warn("template load failed")
			return nil, &TemplateNotFound{Name: name}
		}
		tmpl, err := compileTemplate(c.env, name, src)
		if err != nil {
			return nil, err
		}
		c.env.Logger.WithField("template", name).Debug("template compiled")
		c.store(name, tmpl, uptodate)
		return tmpl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

func (c *TemplateCache) lookup(name string) (*Template, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[name]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if entry.uptodate != nil && !entry.uptodate() {
		c.env.Logger.WithField("template", name).Debug("cache entry stale, evicting")
		c.ll.Remove(el)
		delete(c.items, name)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return entry.tmpl, true
}

func (c *TemplateCache) store(name string, tmpl *Template, uptodate func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[name]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*cacheEntry).tmpl = tmpl
		el.Value.(*cacheEntry).uptodate = uptodate
		return
	}
	el := c.ll.PushFront(&cacheEntry{name: name, tmpl: tmpl, uptodate: uptodate})
	c.items[name] = el
	for c.ll.Len() > c.max {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).name)
		c.env.Logger.Debug("cache evicted oldest entry")
	}
}
