package jinja

import "fmt"

// blockChain maps a block name to its definitions ordered most-derived
// first, so super() is simply "render index+1 of this slice". Building it
// is the inheritance-lowering step spec.md's semantic-analyzer module
// describes; this module resolves it per render rather than once at
// compile time, since {% extends %} may name a template computed from the
// render context (the supplemented feature documented in SPEC_FULL.md §4).
type blockChain map[string][]*BlockStmt

// resolveChain walks the extends graph starting at tmpl, collecting every
// level's block definitions, and returns the body of the base (non-
// extending) template along with the merged block chain.
func resolveChain(ev *evaluator, ctx *Context, tmpl *Template, depth int) ([]Stmt, blockChain, error) {
	if depth > 32 {
		return nil, nil, &TemplateRuntimeError{Message: "template inheritance chain too deep (possible cycle)"}
	}
	chain := blockChain{}
	collectBlocks(tmpl.AST.Body, chain)

	var extendsStmt *ExtendsStmt
	for _, s := range tmpl.AST.Body {
		if e, ok := s.(*ExtendsStmt); ok {
			extendsStmt = e
			break
		}
	}
	if extendsStmt == nil {
		return tmpl.AST.Body, chain, nil
	}

	nameVal, err := ev.evalExpr(ctx, extendsStmt.Template)
	if err != nil {
		return nil, nil, err
	}
	parentName, ok := nameVal.(string)
	if !ok {
		return nil, nil, &TemplateRuntimeError{Message: fmt.Sprintf("extends target must be a string, got %T", nameVal)}
	}
	parentTmpl, err := ev.env.GetTemplate(parentName)
	if err != nil {
		return nil, nil, err
	}
	parentBody, parentChain, err := resolveChain(ev, ctx, parentTmpl, depth+1)
	if err != nil {
		return nil, nil, err
	}
	for name, defs := range chain {
		parentChain[name] = append(defs, parentChain[name]...)
	}
	for name, defs := range parentChain {
		if _, ok := chain[name]; !ok {
			chain[name] = defs
		}
	}
	return parentBody, parentChain, nil
}

func collectBlocks(stmts []Stmt, chain blockChain) {
	for _, s := range stmts {
		switch n := s.(type) {
		case *BlockStmt:
			chain[n.Name] = append(chain[n.Name], n)
			collectBlocks(n.Body, chain)
		case *IfStmt:
			collectBlocks(n.Body, chain)
			for _, e := range n.Elif {
				collectBlocks(e.Body, chain)
			}
			collectBlocks(n.Else, chain)
		case *ForStmt:
			collectBlocks(n.Body, chain)
			collectBlocks(n.Else, chain)
		case *WithStmt:
			collectBlocks(n.Body, chain)
		case *AutoescapeStmt:
			collectBlocks(n.Body, chain)
		case *FilterBlockStmt:
			collectBlocks(n.Body, chain)
		}
	}
}
