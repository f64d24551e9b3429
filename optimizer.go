package jinja

// Optimize performs a bottom-up constant-folding pass over a parsed
// template (operands are folded before the node that holds them): literal arithmetic, chained comparisons, and logical
// short-circuiting collapse to a single LiteralExpr whenever every operand
// is already a LiteralExpr. Calls are never folded, since a global name
// (even one bound to a constant-looking value at compile time) may be
// rebound or side-effecting by render time.
func Optimize(t *TemplateNode) *TemplateNode {
	t.Body = optimizeStmts(t.Body)
	return t
}

func optimizeStmts(stmts []Stmt) []Stmt {
	for i, s := range stmts {
		stmts[i] = optimizeStmt(s)
	}
	return stmts
}

func optimizeStmt(s Stmt) Stmt {
	switch n := s.(type) {
	case *OutputStmt:
		n.Expr = optimizeExpr(n.Expr)
	case *IfStmt:
		n.Test = optimizeExpr(n.Test)
		n.Body = optimizeStmts(n.Body)
		for _, e := range n.Elif {
			optimizeStmt(e)
		}
		n.Else = optimizeStmts(n.Else)
	case *ForStmt:
		n.Iter = optimizeExpr(n.Iter)
		if n.Test != nil {
			n.Test = optimizeExpr(n.Test)
		}
		n.Body = optimizeStmts(n.Body)
		n.Else = optimizeStmts(n.Else)
	case *MacroStmt:
		for i, d := range n.Defaults {
			if d != nil {
				n.Defaults[i] = optimizeExpr(d)
			}
		}
		n.Body = optimizeStmts(n.Body)
	case *CallBlockStmt:
		n.Body = optimizeStmts(n.Body)
	case *FilterBlockStmt:
		n.Body = optimizeStmts(n.Body)
	case *AssignStmt:
		n.Value = optimizeExpr(n.Value)
	case *AssignBlockStmt:
		n.Body = optimizeStmts(n.Body)
	case *BlockStmt:
		n.Body = optimizeStmts(n.Body)
	case *WithStmt:
		for i, v := range n.Values {
			n.Values[i] = optimizeExpr(v)
		}
		n.Body = optimizeStmts(n.Body)
	case *AutoescapeStmt:
		n.Body = optimizeStmts(n.Body)
	case *DoStmt:
		n.Expr = optimizeExpr(n.Expr)
	case *TransStmt:
		n.Singular = optimizeStmts(n.Singular)
		n.Plural = optimizeStmts(n.Plural)
	}
	return s
}

func optimizeExpr(e Expr) Expr {
	switch n := e.(type) {
	case *UnaryOpExpr:
		n.Operand = optimizeExpr(n.Operand)
		if lit, ok := n.Operand.(*LiteralExpr); ok {
			if v, ok := foldUnary(n.Op, lit.Value); ok {
				return &LiteralExpr{exprBase: n.exprBase, Value: v}
			}
		}
		return n
	case *BinaryOpExpr:
		n.Left = optimizeExpr(n.Left)
		n.Right = optimizeExpr(n.Right)
		ll, lok := n.Left.(*LiteralExpr)
		rl, rok := n.Right.(*LiteralExpr)
		if lok && rok {
			if v, ok := foldBinary(n.Op, ll.Value, rl.Value); ok {
				return &LiteralExpr{exprBase: n.exprBase, Value: v}
			}
		}
		return n
	case *CompareExpr:
		n.Left = optimizeExpr(n.Left)
		allLit := true
		if _, ok := n.Left.(*LiteralExpr); !ok {
			allLit = false
		}
		for i := range n.Comparators {
			n.Comparators[i] = optimizeExpr(n.Comparators[i])
			if _, ok := n.Comparators[i].(*LiteralExpr); !ok {
				allLit = false
			}
		}
		if allLit {
			if v, ok := foldCompare(n); ok {
				return &LiteralExpr{exprBase: n.exprBase, Value: v}
			}
		}
		return n
	case *CondExpr:
		n.Test = optimizeExpr(n.Test)
		n.True = optimizeExpr(n.True)
		if n.False != nil {
			n.False = optimizeExpr(n.False)
		}
		if lit, ok := n.Test.(*LiteralExpr); ok {
			if IsTruthy(lit.Value) {
				return n.True
			}
			if n.False != nil {
				return n.False
			}
		}
		return n
	case *TupleExpr:
		optimizeExprList(n.Items)
		return n
	case *ListExpr:
		optimizeExprList(n.Items)
		return n
	case *DictExpr:
		for i := range n.Pairs {
			n.Pairs[i].Key = optimizeExpr(n.Pairs[i].Key)
			n.Pairs[i].Value = optimizeExpr(n.Pairs[i].Value)
		}
		return n
	case *GetattrExpr:
		n.Node = optimizeExpr(n.Node)
		return n
	case *GetitemExpr:
		n.Node = optimizeExpr(n.Node)
		n.Item = optimizeExpr(n.Item)
		return n
	case *FilterExpr:
		n.Node = optimizeExpr(n.Node)
		optimizeExprList(n.Args)
		return n
	case *TestExpr:
		n.Node = optimizeExpr(n.Node)
		optimizeExprList(n.Args)
		return n
	case *CallExpr:
		n.Func = optimizeExpr(n.Func)
		optimizeExprList(n.Args)
		return n
	case *ConcatExpr:
		optimizeExprList(n.Parts)
		return n
	}
	return e
}

func optimizeExprList(list []Expr) {
	for i, e := range list {
		list[i] = optimizeExpr(e)
	}
}

func foldUnary(op string, v interface{}) (interface{}, bool) {
	switch op {
	case "not":
		return !IsTruthy(v), true
	case "-":
		if f, ok := ToFloat(v); ok {
			if isInt(v) {
				return -toInt64(v), true
			}
			return -f, true
		}
	case "+":
		if _, ok := ToFloat(v); ok {
			return v, true
		}
	}
	return nil, false
}

func foldBinary(op string, l, r interface{}) (interface{}, bool) {
	switch op {
	case "and":
		if !IsTruthy(l) {
			return l, true
		}
		return r, true
	case "or":
		if IsTruthy(l) {
			return l, true
		}
		return r, true
	}
	lf, lok := ToFloat(l)
	rf, rok := ToFloat(r)
	if !lok || !rok {
		if op == "+" {
			if ls, ok := l.(string); ok {
				if rs, ok := r.(string); ok {
					return ls + rs, true
				}
			}
		}
		return nil, false
	}
	bothInt := isInt(l) && isInt(r)
	switch op {
	case "+":
		if bothInt {
			return toInt64(l) + toInt64(r), true
		}
		return lf + rf, true
	case "-":
		if bothInt {
			return toInt64(l) - toInt64(r), true
		}
		return lf - rf, true
	case "*":
		if bothInt {
			return toInt64(l) * toInt64(r), true
		}
		return lf * rf, true
	case "/":
		if rf == 0 {
			return nil, false
		}
		return lf / rf, true
	case "//":
		if rf == 0 {
			return nil, false
		}
		q := int64(lf) / int64(rf)
		if (lf < 0) != (rf < 0) && float64(int64(lf)) != lf {
			q--
		}
		return q, true
	case "%":
		if rf == 0 {
			return nil, false
		}
		if bothInt {
			m := toInt64(l) % toInt64(r)
			if m != 0 && (m < 0) != (toInt64(r) < 0) {
				m += toInt64(r)
			}
			return m, true
		}
		return nil, false
	case "**":
		res := 1.0
		n := rf
		base := lf
		for i := 0.0; i < n; i++ {
			res *= base
		}
		if bothInt && rf >= 0 {
			return int64(res), true
		}
		return res, true
	}
	return nil, false
}

func foldCompare(c *CompareExpr) (interface{}, bool) {
	left := c.Left.(*LiteralExpr).Value
	for i, op := range c.Ops {
		right := c.Comparators[i].(*LiteralExpr).Value
		ok, supported := compareOne(op, left, right)
		if !supported {
			return nil, false
		}
		if !ok {
			return false, true
		}
		left = right
	}
	return true, true
}

func compareOne(op string, l, r interface{}) (result bool, supported bool) {
	switch op {
	case "==":
		return Equal(l, r), true
	case "!=":
		return !Equal(l, r), true
	}
	lf, lok := ToFloat(l)
	rf, rok := ToFloat(r)
	if lok && rok {
		switch op {
		case "<":
			return lf < rf, true
		case "<=":
			return lf <= rf, true
		case ">":
			return lf > rf, true
		case ">=":
			return lf >= rf, true
		}
	}
	ls, lIsStr := stringLike(l)
	rs, rIsStr := stringLike(r)
	if lIsStr && rIsStr {
		switch op {
		case "<":
			return ls < rs, true
		case "<=":
			return ls <= rs, true
		case ">":
			return ls > rs, true
		case ">=":
			return ls >= rs, true
		}
	}
	return false, false
}
