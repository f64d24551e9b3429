package jinja

import "testing"

func TestOptimizerFoldsConstantArithmetic(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.FromString("{{ 1 + 2 * 3 }}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out, ok := tmpl.AST.Body[0].(*OutputStmt)
	if !ok {
		t.Fatalf("expected a single OutputStmt, got %T", tmpl.AST.Body[0])
	}
	lit, ok := out.Expr.(*LiteralExpr)
	if !ok {
		t.Fatalf("expected the expression to fold to *LiteralExpr, got %T", out.Expr)
	}
	if lit.Value != int64(7) {
		t.Errorf("got %v, want 7", lit.Value)
	}
}

func TestOptimizerFoldsChainedComparison(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.FromString("{{ 1 < 2 < 3 }}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out := tmpl.AST.Body[0].(*OutputStmt)
	lit, ok := out.Expr.(*LiteralExpr)
	if !ok {
		t.Fatalf("expected the chained comparison to fold to *LiteralExpr, got %T", out.Expr)
	}
	if lit.Value != true {
		t.Errorf("got %v, want true", lit.Value)
	}
}

func TestOptimizerDoesNotFoldCalls(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.FromString("{{ range(3) }}")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out := tmpl.AST.Body[0].(*OutputStmt)
	if _, ok := out.Expr.(*LiteralExpr); ok {
		t.Errorf("a call expression must never be folded at compile time, got %T", out.Expr)
	}
}

func TestOptimizerFoldsCondExprBranch(t *testing.T) {
	env := NewEnvironment()
	tmpl, err := env.FromString(`{{ "a" if true else "b" }}`)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	out := tmpl.AST.Body[0].(*OutputStmt)
	lit, ok := out.Expr.(*LiteralExpr)
	if !ok {
		t.Fatalf("expected constant-test conditional to fold to its true branch, got %T", out.Expr)
	}
	if lit.Value != "a" {
		t.Errorf("got %v, want %q", lit.Value, "a")
	}
}
