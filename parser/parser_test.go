package parser

import (
	"testing"

	"evalscript/ast"
	"evalscript/lexer"
)

func parseSource(t *testing.T, src string) ast.Expr {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", src, err)
	}
	expr, err := Parse(toks)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return expr
}

func TestParseBinaryPrecedence(t *testing.T) {
	expr := parseSource(t, "1 + 2 * 3")
	bin, ok := expr.(ast.Binary)
	if !ok {
		t.Fatalf("got %T, want ast.Binary", expr)
	}
	if bin.Op != "+" {
		t.Fatalf("top-level op = %q, want +", bin.Op)
	}
	right, ok := bin.Right.(ast.Binary)
	if !ok || right.Op != "*" {
		t.Fatalf("right operand = %#v, want a * binary", bin.Right)
	}
}

func TestParseAssignmentToIdentPattern(t *testing.T) {
	expr := parseSource(t, "x = 5")
	assign, ok := expr.(ast.Assign)
	if !ok {
		t.Fatalf("got %T, want ast.Assign", expr)
	}
	if _, ok := assign.Target.(ast.IdentPattern); !ok {
		t.Fatalf("target = %#v, want IdentPattern", assign.Target)
	}
}

func TestParseIndexAssignment(t *testing.T) {
	expr := parseSource(t, "xs[0] = 1")
	assign, ok := expr.(ast.Assign)
	if !ok {
		t.Fatalf("got %T, want ast.Assign", expr)
	}
	if _, ok := assign.Target.(ast.IndexPattern); !ok {
		t.Fatalf("target = %#v, want IndexPattern", assign.Target)
	}
}

func TestParseFuncLitWithMemoized(t *testing.T) {
	expr := parseSource(t, "memoized fn(n) { n }")
	fn, ok := expr.(ast.FuncLit)
	if !ok {
		t.Fatalf("got %T, want ast.FuncLit", expr)
	}
	if !fn.Memoized {
		t.Error("expected Memoized = true")
	}
	if len(fn.Params) != 1 || fn.Params[0] != "n" {
		t.Errorf("params = %v, want [n]", fn.Params)
	}
}

func TestParseIfElse(t *testing.T) {
	expr := parseSource(t, "if x { 1 } else { 2 }")
	ifExpr, ok := expr.(ast.If)
	if !ok {
		t.Fatalf("got %T, want ast.If", expr)
	}
	if ifExpr.Else == nil {
		t.Error("expected a non-nil Else branch")
	}
}

func TestParseForLoop(t *testing.T) {
	expr := parseSource(t, "for x in xs { x }")
	forExpr, ok := expr.(ast.For)
	if !ok {
		t.Fatalf("got %T, want ast.For", expr)
	}
	if _, ok := forExpr.Pattern.(ast.IdentPattern); !ok {
		t.Errorf("pattern = %#v, want IdentPattern", forExpr.Pattern)
	}
}

func TestParseMatchWithLiteralArm(t *testing.T) {
	expr := parseSource(t, "match x { 1 => true, _ => false }")
	m, ok := expr.(ast.Match)
	if !ok {
		t.Fatalf("got %T, want ast.Match", expr)
	}
	if len(m.Arms) != 2 {
		t.Fatalf("got %d arms, want 2", len(m.Arms))
	}
	if _, ok := m.Arms[0].Pattern.(ast.LiteralPattern); !ok {
		t.Errorf("first arm pattern = %#v, want LiteralPattern", m.Arms[0].Pattern)
	}
}

func TestParseSequenceOfTopLevelExprs(t *testing.T) {
	expr := parseSource(t, "1; 2; 3")
	seq, ok := expr.(ast.Sequence)
	if !ok {
		t.Fatalf("got %T, want ast.Sequence", expr)
	}
	if len(seq.Exprs) != 3 {
		t.Errorf("got %d exprs, want 3", len(seq.Exprs))
	}
}

func TestParseTrailingInputIsASyntaxError(t *testing.T) {
	toks, err := lexer.Tokenize("1 2")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if _, err := Parse(toks); err == nil {
		t.Fatal("expected a trailing-input syntax error")
	}
}
