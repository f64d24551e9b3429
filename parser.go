package jinja

import (
	"strconv"
)

// Parser turns a token stream from a Lexer into a TemplateNode. It buffers
// a single token of lookahead, matching the teacher's ParseNext/ParseAll
// advancing style but operating on the new token-level lexer instead of
// re-scanning substrings.
type Parser struct {
	lex  *Lexer
	name string
	cur  Token
	err  error
}

func NewParser(src, name string, cfg LexerConfig) (*Parser, error) {
	p := &Parser{lex: NewLexer(src, name, cfg), name: name}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *Parser) errf(msg string) error {
	return &TemplateSyntaxError{Message: msg, Line: p.cur.Line, Name: p.name}
}

func (p *Parser) expect(k TokenKind) (Token, error) {
	if p.cur.Kind != k {
		return Token{}, p.errf("unexpected token " + p.cur.String())
	}
	t := p.cur
	err := p.advance()
	return t, err
}

func (p *Parser) isName(word string) bool {
	return p.cur.Kind == TokName && p.cur.Value == word
}

func (p *Parser) skipName(word string) (bool, error) {
	if p.isName(word) {
		return true, p.advance()
	}
	return false, nil
}

func (p *Parser) expectName(word string) error {
	if !p.isName(word) {
		return p.errf("expected '" + word + "'")
	}
	return p.advance()
}

// ParseTemplate consumes the entire token stream and returns the root node.
func (p *Parser) ParseTemplate() (*TemplateNode, error) {
	body, err := p.parseStmts(nil)
	if err != nil {
		return nil, err
	}
	return &TemplateNode{Body: body}, nil
}

// parseStmts parses statements until EOF or one of the given end keywords
// is seen as the tag name (the end tag itself is NOT consumed).
func (p *Parser) parseStmts(end []string) ([]Stmt, error) {
	var out []Stmt
	for {
		if p.cur.Kind == TokEOF {
			return out, nil
		}
		if p.cur.Kind == TokBlockBegin {
			if name, ok := p.peekBlockName(); ok {
				for _, e := range end {
					if name == e {
						return out, nil
					}
				}
			}
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
}

// peekBlockName reads the tag keyword following a TokBlockBegin without
// consuming the tag (used to detect end-keywords before parseStmt commits).
func (p *Parser) peekBlockName() (string, bool) {
	save := *p.lex
	savedCur := p.cur
	if err := p.advance(); err != nil {
		*p.lex = save
		p.cur = savedCur
		return "", false
	}
	name := ""
	if p.cur.Kind == TokName {
		name = p.cur.Value
	}
	*p.lex = save
	p.cur = savedCur
	return name, true
}

func (p *Parser) parseStmt() (Stmt, error) {
	switch p.cur.Kind {
	case TokData:
		d := &DataStmt{stmtBase: stmtBase{base{p.cur.Line}}, Text: p.cur.Value}
		return d, p.advance()
	case TokVariableBegin:
		return p.parseOutput()
	case TokCommentBegin, TokCommentEnd:
		return p.parseCommentToken()
	case TokBlockBegin:
		return p.parseTag()
	default:
		return nil, p.errf("unexpected token " + p.cur.String())
	}
}

func (p *Parser) parseCommentToken() (Stmt, error) {
	// comments produce TokCommentBegin then TokCommentEnd with body in Value
	if p.cur.Kind == TokCommentBegin {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.cur.Kind == TokCommentEnd {
		return nil, p.advance()
	}
	return nil, p.errf("malformed comment")
}

func (p *Parser) parseOutput() (Stmt, error) {
	line := p.cur.Line
	if err := p.advance(); err != nil { // consume {{
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokVariableEnd); err != nil {
		return nil, err
	}
	return &OutputStmt{stmtBase: stmtBase{base{line}}, Expr: expr}, nil
}

func (p *Parser) parseTag() (Stmt, error) {
	line := p.cur.Line
	if err := p.advance(); err != nil { // consume {%
		return nil, err
	}
	if p.cur.Kind != TokName {
		return nil, p.errf("expected tag name")
	}
	keyword := p.cur.Value
	switch keyword {
	case "if":
		return p.parseIf(line)
	case "for":
		return p.parseFor(line)
	case "block":
		return p.parseBlock(line)
	case "extends":
		return p.parseExtends(line)
	case "include":
		return p.parseInclude(line)
	case "import":
		return p.parseImport(line)
	case "from":
		return p.parseFromImport(line)
	case "set":
		return p.parseSet(line)
	case "macro":
		return p.parseMacro(line)
	case "call":
		return p.parseCallBlock(line)
	case "filter":
		return p.parseFilterBlock(line)
	case "with":
		return p.parseWith(line)
	case "autoescape":
		return p.parseAutoescape(line)
	case "trans":
		return p.parseTrans(line)
	case "do":
		return p.parseDo(line)
	case "break":
		if err := p.advance(); err != nil {
			return nil, err
		}
		_, err := p.expect(TokBlockEnd)
		return &BreakStmt{stmtBase{base{line}}}, err
	case "continue":
		if err := p.advance(); err != nil {
			return nil, err
		}
		_, err := p.expect(TokBlockEnd)
		return &ContinueStmt{stmtBase{base{line}}}, err
	case "raw":
		return p.parseRaw(line)
	default:
		return nil, p.errf("unknown tag '" + keyword + "'")
	}
}

func (p *Parser) parseRaw(line int) (Stmt, error) {
	if err := p.advance(); err != nil { // consume "raw"
		return nil, err
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	text := ""
	if p.cur.Kind == TokData {
		text = p.cur.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expectName("endraw"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	return &DataStmt{stmtBase: stmtBase{base{line}}, Text: text}, nil
}

func (p *Parser) parseIf(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	test, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseStmts([]string{"elif", "else", "endif"})
	if err != nil {
		return nil, err
	}
	node := &IfStmt{stmtBase: stmtBase{base{line}}, Test: test, Body: body}

	for {
		if err := p.expectBlockEnter(); err != nil {
			return nil, err
		}
		if p.isName("elif") {
			elifLine := p.cur.Line
			if err := p.advance(); err != nil {
				return nil, err
			}
			elifTest, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokBlockEnd); err != nil {
				return nil, err
			}
			elifBody, err := p.parseStmts([]string{"elif", "else", "endif"})
			if err != nil {
				return nil, err
			}
			node.Elif = append(node.Elif, &IfStmt{stmtBase: stmtBase{base{elifLine}}, Test: elifTest, Body: elifBody})
			continue
		}
		if p.isName("else") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if _, err := p.expect(TokBlockEnd); err != nil {
				return nil, err
			}
			elseBody, err := p.parseStmts([]string{"endif"})
			if err != nil {
				return nil, err
			}
			node.Else = elseBody
			if err := p.expectBlockEnter(); err != nil {
				return nil, err
			}
		}
		if err := p.expectName("endif"); err != nil {
			return nil, err
		}
		_, err := p.expect(TokBlockEnd)
		return node, err
	}
}

// expectBlockEnter consumes a TokBlockBegin, used when parseStmts returned
// because it saw an end-keyword tag that still needs to be entered.
func (p *Parser) expectBlockEnter() error {
	if p.cur.Kind != TokBlockBegin {
		return p.errf("expected a tag")
	}
	return p.advance()
}

func (p *Parser) parseFor(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	target, err := p.parseAssignTarget()
	if err != nil {
		return nil, err
	}
	if err := p.expectName("in"); err != nil {
		return nil, err
	}
	iter, err := p.parseOrExpr()
	if err != nil {
		return nil, err
	}
	var cond Expr
	if ok, err := p.skipName("if"); err != nil {
		return nil, err
	} else if ok {
		cond, err = p.parseOrExpr()
		if err != nil {
			return nil, err
		}
	}
	recursive := false
	if ok, err := p.skipName("recursive"); err != nil {
		return nil, err
	} else if ok {
		recursive = true
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseStmts([]string{"else", "endfor"})
	if err != nil {
		return nil, err
	}
	node := &ForStmt{stmtBase: stmtBase{base{line}}, Target: target, Iter: iter, Body: body, Test: cond, Recursive: recursive}
	if err := p.expectBlockEnter(); err != nil {
		return nil, err
	}
	if p.isName("else") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokBlockEnd); err != nil {
			return nil, err
		}
		elseBody, err := p.parseStmts([]string{"endfor"})
		if err != nil {
			return nil, err
		}
		node.Else = elseBody
		if err := p.expectBlockEnter(); err != nil {
			return nil, err
		}
	}
	if err := p.expectName("endfor"); err != nil {
		return nil, err
	}
	_, err = p.expect(TokBlockEnd)
	return node, err
}

func (p *Parser) parseAssignTarget() (Expr, error) {
	first, err := p.parseNameTarget()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokComma {
		return first, nil
	}
	items := []Expr{first}
	for p.cur.Kind == TokComma {
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseNameTarget()
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return &TupleExpr{exprBase: exprBase{base{first.pos()}}, Items: items}, nil
}

func (p *Parser) parseNameTarget() (Expr, error) {
	if p.cur.Kind != TokName {
		return nil, p.errf("expected a name")
	}
	n := &NameExpr{exprBase: exprBase{base{p.cur.Line}}, Name: p.cur.Value, Ctx: "store"}
	return n, p.advance()
}

func (p *Parser) parseBlock(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind != TokName {
		return nil, p.errf("expected block name")
	}
	name := p.cur.Value
	if err := p.advance(); err != nil {
		return nil, err
	}
	scoped := false
	required := false
	for p.isName("scoped") || p.isName("required") {
		if p.isName("scoped") {
			scoped = true
		} else {
			required = true
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseStmts([]string{"endblock"})
	if err != nil {
		return nil, err
	}
	if err := p.expectBlockEnter(); err != nil {
		return nil, err
	}
	if err := p.expectName("endblock"); err != nil {
		return nil, err
	}
	if p.cur.Kind == TokName && p.cur.Value == name {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	_, err = p.expect(TokBlockEnd)
	return &BlockStmt{stmtBase: stmtBase{base{line}}, Name: name, Body: body, Scoped: scoped, Required: required}, err
}

func (p *Parser) parseExtends(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	tmpl, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	return &ExtendsStmt{stmtBase: stmtBase{base{line}}, Template: tmpl}, nil
}

func (p *Parser) parseInclude(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	tmpl, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	ignoreMissing := false
	withContext := true
	only := false
	if ok, err := p.skipName("ignore"); err != nil {
		return nil, err
	} else if ok {
		if err := p.expectName("missing"); err != nil {
			return nil, err
		}
		ignoreMissing = true
	}
	if p.isName("with") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectName("context"); err != nil {
			return nil, err
		}
	} else if p.isName("without") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectName("context"); err != nil {
			return nil, err
		}
		withContext = false
	}
	if ok, err := p.skipName("only"); err != nil {
		return nil, err
	} else if ok {
		only = true
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	return &IncludeStmt{stmtBase: stmtBase{base{line}}, Template: tmpl, IgnoreMissing: ignoreMissing, WithContext: withContext, Only: only}, nil
}

func (p *Parser) parseImport(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	tmpl, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectName("as"); err != nil {
		return nil, err
	}
	if p.cur.Kind != TokName {
		return nil, p.errf("expected name after 'as'")
	}
	target := p.cur.Value
	if err := p.advance(); err != nil {
		return nil, err
	}
	withContext := false
	if p.isName("with") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectName("context"); err != nil {
			return nil, err
		}
		withContext = true
	} else if ok, err := p.skipName("without"); err != nil {
		return nil, err
	} else if ok {
		if err := p.expectName("context"); err != nil {
			return nil, err
		}
	}
	_, err = p.expect(TokBlockEnd)
	return &ImportStmt{stmtBase: stmtBase{base{line}}, Template: tmpl, Target: target, WithContext: withContext}, err
}

func (p *Parser) parseFromImport(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	tmpl, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectName("import"); err != nil {
		return nil, err
	}
	var names []FromImportName
	for {
		if p.cur.Kind != TokName {
			return nil, p.errf("expected imported name")
		}
		n := FromImportName{Name: p.cur.Value}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if ok, err := p.skipName("as"); err != nil {
			return nil, err
		} else if ok {
			if p.cur.Kind != TokName {
				return nil, p.errf("expected alias")
			}
			n.Alias = p.cur.Value
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		names = append(names, n)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	withContext := false
	if p.isName("with") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectName("context"); err != nil {
			return nil, err
		}
		withContext = true
	} else if ok, err := p.skipName("without"); err != nil {
		return nil, err
	} else if ok {
		if err := p.expectName("context"); err != nil {
			return nil, err
		}
	}
	_, err = p.expect(TokBlockEnd)
	return &FromImportStmt{stmtBase: stmtBase{base{line}}, Template: tmpl, Names: names, WithContext: withContext}, err
}

func (p *Parser) parseSet(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	target, err := p.parseSetTarget()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == TokAssign {
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind == TokComma {
			items := []Expr{val}
			for p.cur.Kind == TokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				item, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			val = &TupleExpr{exprBase: exprBase{base{val.pos()}}, Items: items}
		}
		_, err = p.expect(TokBlockEnd)
		return &AssignStmt{stmtBase: stmtBase{base{line}}, Target: target, Value: val}, err
	}
	// {% set x %}...{% endset %}, optionally with filters
	var filters []FilterExpr
	for p.cur.Kind == TokPipe {
		if err := p.advance(); err != nil {
			return nil, err
		}
		fe, err := p.parseFilterTail()
		if err != nil {
			return nil, err
		}
		filters = append(filters, fe)
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseStmts([]string{"endset"})
	if err != nil {
		return nil, err
	}
	if err := p.expectBlockEnter(); err != nil {
		return nil, err
	}
	if err := p.expectName("endset"); err != nil {
		return nil, err
	}
	_, err = p.expect(TokBlockEnd)
	return &AssignBlockStmt{stmtBase: stmtBase{base{line}}, Target: target, Filters: filters, Body: body}, err
}

func (p *Parser) parseSetTarget() (Expr, error) {
	if p.cur.Kind != TokName {
		return nil, p.errf("expected name in set target")
	}
	n := &NameExpr{exprBase: exprBase{base{p.cur.Line}}, Name: p.cur.Value, Ctx: "store"}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var expr Expr = n
	for p.cur.Kind == TokDot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind != TokName {
			return nil, p.errf("expected attribute name")
		}
		expr = &GetattrExpr{exprBase: exprBase{base{p.cur.Line}}, Node: expr, Attr: p.cur.Value}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.cur.Kind == TokComma {
		items := []Expr{expr}
		for p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			nxt, err := p.parseSetTarget()
			if err != nil {
				return nil, err
			}
			items = append(items, nxt)
		}
		return &TupleExpr{exprBase: exprBase{base{expr.pos()}}, Items: items}, nil
	}
	return expr, nil
}

func (p *Parser) parseMacro(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind != TokName {
		return nil, p.errf("expected macro name")
	}
	name := p.cur.Value
	if err := p.advance(); err != nil {
		return nil, err
	}
	params, defaults, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseStmts([]string{"endmacro"})
	if err != nil {
		return nil, err
	}
	if err := p.expectBlockEnter(); err != nil {
		return nil, err
	}
	if err := p.expectName("endmacro"); err != nil {
		return nil, err
	}
	_, err = p.expect(TokBlockEnd)
	return &MacroStmt{stmtBase: stmtBase{base{line}}, Name: name, Params: params, Defaults: defaults, Body: body}, err
}

func (p *Parser) parseParamList() ([]string, []Expr, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return nil, nil, err
	}
	var names []string
	var defaults []Expr
	for p.cur.Kind != TokRParen {
		if p.cur.Kind != TokName {
			return nil, nil, p.errf("expected parameter name")
		}
		names = append(names, p.cur.Value)
		if err := p.advance(); err != nil {
			return nil, nil, err
		}
		if p.cur.Kind == TokAssign {
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
			d, err := p.parseOrExpr()
			if err != nil {
				return nil, nil, err
			}
			defaults = append(defaults, d)
		} else {
			defaults = append(defaults, nil)
		}
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
			continue
		}
		break
	}
	_, err := p.expect(TokRParen)
	return names, defaults, err
}

func (p *Parser) parseCallBlock(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var callerParams []string
	if p.cur.Kind == TokLParen {
		names, _, err := p.parseParamList()
		if err != nil {
			return nil, err
		}
		callerParams = names
	}
	callExpr, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	ce, ok := callExpr.(*CallExpr)
	if !ok {
		return nil, p.errf("expected a macro call after 'call'")
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseStmts([]string{"endcall"})
	if err != nil {
		return nil, err
	}
	if err := p.expectBlockEnter(); err != nil {
		return nil, err
	}
	if err := p.expectName("endcall"); err != nil {
		return nil, err
	}
	_, err = p.expect(TokBlockEnd)
	return &CallBlockStmt{stmtBase: stmtBase{base{line}}, Call: ce, Params: callerParams, Body: body}, err
}

func (p *Parser) parseFilterBlock(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var filters []FilterExpr
	for {
		fe, err := p.parseFilterTail()
		if err != nil {
			return nil, err
		}
		filters = append(filters, fe)
		if p.cur.Kind == TokPipe {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseStmts([]string{"endfilter"})
	if err != nil {
		return nil, err
	}
	if err := p.expectBlockEnter(); err != nil {
		return nil, err
	}
	if err := p.expectName("endfilter"); err != nil {
		return nil, err
	}
	_, err = p.expect(TokBlockEnd)
	return &FilterBlockStmt{stmtBase: stmtBase{base{line}}, Filters: filters, Body: body}, err
}

// parseFilterTail parses a bare "name(args)" filter reference, used after
// consuming the leading '|' (shared by FilterExpr-in-expression and the
// filter/set-block forms where no left-hand node exists yet).
func (p *Parser) parseFilterTail() (FilterExpr, error) {
	if p.cur.Kind != TokName {
		return FilterExpr{}, p.errf("expected filter name")
	}
	name := p.cur.Value
	line := p.cur.Line
	if err := p.advance(); err != nil {
		return FilterExpr{}, err
	}
	var args []Expr
	var kwargs []Argument
	if p.cur.Kind == TokLParen {
		var err error
		args, kwargs, err = p.parseCallArgs()
		if err != nil {
			return FilterExpr{}, err
		}
	}
	return FilterExpr{exprBase: exprBase{base{line}}, Name: name, Args: args, Kwargs: kwargs}, nil
}

func (p *Parser) parseWith(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var targets []Expr
	var values []Expr
	if p.cur.Kind != TokBlockEnd {
		for {
			t, err := p.parseNameTarget()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokAssign); err != nil {
				return nil, err
			}
			v, err := p.parseOrExpr()
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
			values = append(values, v)
			if p.cur.Kind == TokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseStmts([]string{"endwith"})
	if err != nil {
		return nil, err
	}
	if err := p.expectBlockEnter(); err != nil {
		return nil, err
	}
	if err := p.expectName("endwith"); err != nil {
		return nil, err
	}
	_, err = p.expect(TokBlockEnd)
	return &WithStmt{stmtBase: stmtBase{base{line}}, Targets: targets, Values: values, Body: body}, err
}

func (p *Parser) parseAutoescape(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	val, err := p.parseOrExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	body, err := p.parseStmts([]string{"endautoescape"})
	if err != nil {
		return nil, err
	}
	if err := p.expectBlockEnter(); err != nil {
		return nil, err
	}
	if err := p.expectName("endautoescape"); err != nil {
		return nil, err
	}
	_, err = p.expect(TokBlockEnd)
	return &AutoescapeStmt{stmtBase: stmtBase{base{line}}, Value: val, Body: body}, err
}

func (p *Parser) parseDo(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	_, err = p.expect(TokBlockEnd)
	return &DoStmt{stmtBase: stmtBase{base{line}}, Expr: e}, err
}

func (p *Parser) parseTrans(line int) (Stmt, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var names []string
	var exprs []Expr
	var count Expr
	for p.cur.Kind == TokName {
		n := p.cur.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
		var e Expr
		if p.cur.Kind == TokAssign {
			if err := p.advance(); err != nil {
				return nil, err
			}
			var err error
			e, err = p.parseOrExpr()
			if err != nil {
				return nil, err
			}
		}
		if n == "count" {
			count = e
		}
		names = append(names, n)
		exprs = append(exprs, e)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokBlockEnd); err != nil {
		return nil, err
	}
	singular, err := p.parseStmts([]string{"pluralize", "endtrans"})
	if err != nil {
		return nil, err
	}
	node := &TransStmt{stmtBase: stmtBase{base{line}}, Vars: names, VarExprs: exprs, Count: count, Singular: singular}
	if err := p.expectBlockEnter(); err != nil {
		return nil, err
	}
	if p.isName("pluralize") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind != TokBlockEnd {
			c, err := p.parseOrExpr()
			if err != nil {
				return nil, err
			}
			node.Count = c
		}
		if _, err := p.expect(TokBlockEnd); err != nil {
			return nil, err
		}
		plural, err := p.parseStmts([]string{"endtrans"})
		if err != nil {
			return nil, err
		}
		node.Plural = plural
		if err := p.expectBlockEnter(); err != nil {
			return nil, err
		}
	}
	if err := p.expectName("endtrans"); err != nil {
		return nil, err
	}
	_, err = p.expect(TokBlockEnd)
	return node, err
}

// ---- Expression parsing (Pratt-style precedence climb) ---------------

func (p *Parser) parseExpression() (Expr, error) {
	return p.parseCondExpr()
}

func (p *Parser) parseCondExpr() (Expr, error) {
	expr, err := p.parseOrExpr()
	if err != nil {
		return nil, err
	}
	if ok, err := p.skipName("if"); err != nil {
		return nil, err
	} else if ok {
		test, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		var elseExpr Expr
		if ok, err := p.skipName("else"); err != nil {
			return nil, err
		} else if ok {
			elseExpr, err = p.parseCondExpr()
			if err != nil {
				return nil, err
			}
		}
		return &CondExpr{exprBase: exprBase{base{expr.pos()}}, Test: test, True: expr, False: elseExpr}, nil
	}
	return expr, nil
}

func (p *Parser) parseOrExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.isName("or") {
		line := p.cur.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpExpr{exprBase: exprBase{base{line}}, Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (Expr, error) {
	left, err := p.parseNotExpr()
	if err != nil {
		return nil, err
	}
	for p.isName("and") {
		line := p.cur.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpExpr{exprBase: exprBase{base{line}}, Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNotExpr() (Expr, error) {
	if p.isName("not") {
		line := p.cur.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNotExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryOpExpr{exprBase: exprBase{base{line}}, Op: "not", Operand: operand}, nil
	}
	return p.parseCompare()
}

func (p *Parser) parseCompare() (Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	var ops []string
	var comps []Expr
	for {
		op, ok, err := p.peekCompareOp()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		comps = append(comps, right)
	}
	if len(ops) == 0 {
		return left, nil
	}
	return &CompareExpr{exprBase: exprBase{base{left.pos()}}, Left: left, Ops: ops, Comparators: comps}, nil
}

func (p *Parser) peekCompareOp() (string, bool, error) {
	switch p.cur.Kind {
	case TokEq:
		return "==", true, p.advance()
	case TokNe:
		return "!=", true, p.advance()
	case TokLt:
		return "<", true, p.advance()
	case TokLe:
		return "<=", true, p.advance()
	case TokGt:
		return ">", true, p.advance()
	case TokGe:
		return ">=", true, p.advance()
	}
	if p.isName("in") {
		return "in", true, p.advance()
	}
	if p.isName("not") {
		save := *p.lex
		savedCur := p.cur
		if err := p.advance(); err != nil {
			return "", false, err
		}
		if p.isName("in") {
			if err := p.advance(); err != nil {
				return "", false, err
			}
			return "not in", true, nil
		}
		*p.lex = save
		p.cur = savedCur
		return "", false, nil
	}
	return "", false, nil
}

func (p *Parser) parseAdd() (Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokPlus || p.cur.Kind == TokMinus || p.cur.Kind == TokTilde {
		op := map[TokenKind]string{TokPlus: "+", TokMinus: "-", TokTilde: "~"}[p.cur.Kind]
		line := p.cur.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		// "~" lowers to a Concat node rather than a binary op so the
		// evaluator can join an arbitrary-length chain (a ~ b ~ c) at once
		// with safe-string-aware semantics instead of nesting string ops.
		if op == "~" {
			if c, ok := left.(*ConcatExpr); ok {
				c.Parts = append(c.Parts, right)
				left = c
			} else {
				left = &ConcatExpr{exprBase: exprBase{base{line}}, Parts: []Expr{left, right}}
			}
			continue
		}
		left = &BinaryOpExpr{exprBase: exprBase{base{line}}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMul() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokMul || p.cur.Kind == TokDiv || p.cur.Kind == TokFloorDiv || p.cur.Kind == TokMod {
		op := map[TokenKind]string{TokMul: "*", TokDiv: "/", TokFloorDiv: "//", TokMod: "%"}[p.cur.Kind]
		line := p.cur.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpExpr{exprBase: exprBase{base{line}}, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.cur.Kind == TokMinus || p.cur.Kind == TokPlus {
		op := "-"
		if p.cur.Kind == TokPlus {
			op = "+"
		}
		line := p.cur.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOpExpr{exprBase: exprBase{base{line}}, Op: op, Operand: operand}, nil
	}
	return p.parsePow()
}

func (p *Parser) parsePow() (Expr, error) {
	left, err := p.parseFilterChain()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == TokPow {
		line := p.cur.Line
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &BinaryOpExpr{exprBase: exprBase{base{line}}, Op: "**", Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseFilterChain() (Expr, error) {
	node, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	for {
		if p.cur.Kind == TokPipe {
			if err := p.advance(); err != nil {
				return nil, err
			}
			fe, err := p.parseFilterTail()
			if err != nil {
				return nil, err
			}
			fe.Node = node
			node = &fe
		} else if p.isName("is") {
			te, err := p.parseTestTail(node)
			if err != nil {
				return nil, err
			}
			node = te
		} else {
			break
		}
	}
	return node, nil
}

func (p *Parser) parsePostfix() (Expr, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur.Kind {
		case TokDot:
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.Kind != TokName {
				return nil, p.errf("expected attribute name after '.'")
			}
			node = &GetattrExpr{exprBase: exprBase{base{p.cur.Line}}, Node: node, Attr: p.cur.Value}
			if err := p.advance(); err != nil {
				return nil, err
			}
		case TokLBracket:
			line := p.cur.Line
			if err := p.advance(); err != nil {
				return nil, err
			}
			item, err := p.parseSubscript()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokRBracket); err != nil {
				return nil, err
			}
			if sl, ok := item.(*SliceExpr); ok {
				node = &GetitemExpr{exprBase: exprBase{base{line}}, Node: node, Item: sl}
			} else {
				node = &GetitemExpr{exprBase: exprBase{base{line}}, Node: node, Item: item}
			}
		case TokLParen:
			args, kwargs, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			node = &CallExpr{exprBase: exprBase{base{node.pos()}}, Func: node, Args: args, Kwargs: kwargs}
		default:
			if p.isName("is") {
				te, err := p.parseTestTail(node)
				if err != nil {
					return nil, err
				}
				node = te
				continue
			}
			return node, nil
		}
	}
}

func (p *Parser) parseSubscript() (Expr, error) {
	var start, stop, step Expr
	var err error
	if p.cur.Kind != TokColon {
		start, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind != TokColon {
			return start, nil
		}
	}
	// slice
	if err := p.advance(); err != nil { // consume ':'
		return nil, err
	}
	if p.cur.Kind != TokColon && p.cur.Kind != TokRBracket {
		stop, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if p.cur.Kind == TokColon {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind != TokRBracket {
			step, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
	}
	return &SliceExpr{Start: start, Stop: stop, Step: step}, nil
}

func (p *Parser) parseTestTail(node Expr) (Expr, error) {
	line := p.cur.Line
	if err := p.advance(); err != nil { // consume "is"
		return nil, err
	}
	not := false
	if ok, err := p.skipName("not"); err != nil {
		return nil, err
	} else if ok {
		not = true
	}
	if p.cur.Kind != TokName {
		return nil, p.errf("expected test name after 'is'")
	}
	name := p.cur.Value
	if err := p.advance(); err != nil {
		return nil, err
	}
	var args []Expr
	var kwargs []Argument
	if p.cur.Kind == TokLParen {
		var err error
		args, kwargs, err = p.parseCallArgs()
		if err != nil {
			return nil, err
		}
	} else if canStartExpr(p.cur) && !p.isName("and") && !p.isName("or") && !p.isName("if") && !p.isName("else") {
		a, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return &TestExpr{exprBase: exprBase{base{line}}, Node: node, Name: name, Not: not, Args: args, Kwargs: kwargs}, nil
}

func canStartExpr(t Token) bool {
	switch t.Kind {
	case TokName, TokString, TokInteger, TokFloat, TokLParen, TokLBracket, TokLBrace, TokMinus, TokPlus:
		return true
	}
	return false
}

func (p *Parser) parseCallArgs() ([]Expr, []Argument, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return nil, nil, err
	}
	var args []Expr
	var kwargs []Argument
	for p.cur.Kind != TokRParen {
		if p.cur.Kind == TokName {
			save := *p.lex
			savedCur := p.cur
			name := p.cur.Value
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
			if p.cur.Kind == TokAssign {
				if err := p.advance(); err != nil {
					return nil, nil, err
				}
				v, err := p.parseExpression()
				if err != nil {
					return nil, nil, err
				}
				kwargs = append(kwargs, Argument{Name: name, Value: v})
				if p.cur.Kind == TokComma {
					if err := p.advance(); err != nil {
						return nil, nil, err
					}
					continue
				}
				break
			}
			*p.lex = save
			p.cur = savedCur
		}
		a, err := p.parseExpression()
		if err != nil {
			return nil, nil, err
		}
		args = append(args, a)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, nil, err
			}
			continue
		}
		break
	}
	_, err := p.expect(TokRParen)
	return args, kwargs, err
}

func (p *Parser) parsePrimary() (Expr, error) {
	line := p.cur.Line
	switch p.cur.Kind {
	case TokInteger:
		v, err := strconv.ParseInt(p.cur.Value, 10, 64)
		if err != nil {
			return nil, p.errf("invalid integer literal")
		}
		lit := &LiteralExpr{exprBase: exprBase{base{line}}, Value: v}
		return lit, p.advance()
	case TokFloat:
		v, err := strconv.ParseFloat(p.cur.Value, 64)
		if err != nil {
			return nil, p.errf("invalid float literal")
		}
		lit := &LiteralExpr{exprBase: exprBase{base{line}}, Value: v}
		return lit, p.advance()
	case TokString:
		s := p.cur.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
		for p.cur.Kind == TokString { // adjacent string literal concatenation
			s += p.cur.Value
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return &LiteralExpr{exprBase: exprBase{base{line}}, Value: s}, nil
	case TokName:
		switch p.cur.Value {
		case "true", "True":
			return &LiteralExpr{exprBase: exprBase{base{line}}, Value: true}, p.advance()
		case "false", "False":
			return &LiteralExpr{exprBase: exprBase{base{line}}, Value: false}, p.advance()
		case "none", "None":
			return &LiteralExpr{exprBase: exprBase{base{line}}, Value: nil}, p.advance()
		}
		name := p.cur.Value
		return &NameExpr{exprBase: exprBase{base{line}}, Name: name, Ctx: "load"}, p.advance()
	case TokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == TokRParen {
			return &TupleExpr{exprBase: exprBase{base{line}}}, p.advance()
		}
		first, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if p.cur.Kind == TokComma {
			items := []Expr{first}
			for p.cur.Kind == TokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				if p.cur.Kind == TokRParen {
					break
				}
				nxt, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				items = append(items, nxt)
			}
			_, err := p.expect(TokRParen)
			return &TupleExpr{exprBase: exprBase{base{line}}, Items: items}, err
		}
		_, err = p.expect(TokRParen)
		return first, err
	case TokLBracket:
		if err := p.advance(); err != nil {
			return nil, err
		}
		var items []Expr
		for p.cur.Kind != TokRBracket {
			it, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			items = append(items, it)
			if p.cur.Kind == TokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		_, err := p.expect(TokRBracket)
		return &ListExpr{exprBase: exprBase{base{line}}, Items: items}, err
	case TokLBrace:
		if err := p.advance(); err != nil {
			return nil, err
		}
		var pairs []DictPair
		for p.cur.Kind != TokRBrace {
			k, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokColon); err != nil {
				return nil, err
			}
			v, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, DictPair{Key: k, Value: v})
			if p.cur.Kind == TokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		_, err := p.expect(TokRBrace)
		return &DictExpr{exprBase: exprBase{base{line}}, Pairs: pairs}, err
	}
	return nil, p.errf("unexpected token " + p.cur.String())
}
