package parser

import (
	"encoding/json"
	"ksx/internal/ast"
	"ksx/internal/lexer"
	"ksx/internal/token"
	"math/big"
	"strings"
	"testing"
)

func parseOrFail(t *testing.T, input string) *ast.Program {
	t.Helper()
	program, err := Parse(input)
	if err != nil {
		t.Fatalf("parse of %q failed: %v", input, err)
	}
	return program
}

func parseExpr(t *testing.T, input string) ast.Expression {
	t.Helper()
	p := New(lexer.New(input), input)
	expr := p.ParseExpression()
	if expr == nil {
		t.Fatalf("parse of %q failed: %v", input, p.Errors())
	}
	return expr
}

func TestLetStatement(t *testing.T) {
	program := parseOrFail(t, "let a = 1, b = 2;")
	if len(program.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(program.Statements))
	}
	let, ok := program.Statements[0].(*ast.LetStatement)
	if !ok {
		t.Fatalf("expected *ast.LetStatement, got %T", program.Statements[0])
	}
	expected := []struct {
		id    string
		value float64
	}{{"a", 1}, {"b", 2}}
	if len(let.Declarations) != len(expected) {
		t.Fatalf("expected %d declarations, got %d", len(expected), len(let.Declarations))
	}
	for i, tt := range expected {
		decl := let.Declarations[i]
		if decl.ID != tt.id {
			t.Errorf("declaration %d: id = %q, want %q", i, decl.ID, tt.id)
		}
		lit, ok := decl.Expression.(*ast.Literal)
		if !ok || lit.Value != tt.value {
			t.Errorf("declaration %d: unexpected initializer %s", i, decl.Expression)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		code  ErrorCode
	}{
		{"let [a, b];", DestructureNeedsInit},
		{"const a;", UnexpectedToken},
		{"let 3 = 4;", IdentifierExpected},
		{"(a + 1) => a", InvalidParameterList},
		{"((a)) => a", InvalidParameterList},
		{"for (let i; i < 3; i++) {}", ForLetNeedsInit},
		{"try x = 1", LBraceExpected},
		{"try { }", CatchOrFinallyExpected},
		{"switch (x) { default: default: }", DuplicateDefault},
		{"switch (x) { x: }", CaseOrDefaultExpected},
		{"export let a = 1", InvalidExport},
		{"import { a, a } from 'm'", DuplicateImport},
		{"import { a } 'm'", FromExpected},
		{"import { a } from m", ModuleNameExpected},
		{"if (x) a = 1 else a = 2", UnexpectedToken},
		{"{ a = 1", RBraceExpected},
		{"x = (1 + 2", RParenExpected},
		{"x = [1, 2", RSquareExpected},
		{"x = a ? 1", ColonExpected},
		{"x = {[1]: 2}", InvalidPropertyName},
		{"x = a.(b)", IdentifierExpected},
		{"let x = ;", ExpressionExpected},
		{"x = /(/", UnexpectedToken},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p := New(lexer.New(tt.input), tt.input)
			if program := p.ParseProgram(); program != nil {
				t.Fatalf("expected an error, got %d statements", len(program.Statements))
			}
			if len(p.Errors()) != 1 {
				t.Fatalf("expected exactly one error, got %v", p.Errors())
			}
			if got := p.Errors()[0].Code; got != tt.code {
				t.Errorf("error code = %s, want %s (%v)", got, tt.code, p.Errors()[0])
			}
		})
	}
}

func TestErrorPosition(t *testing.T) {
	_, err := Parse("let a = 1;\nlet [x];")
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Line != 2 || perr.Column != 8 {
		t.Errorf("error at %d:%d, want 2:8", perr.Line, perr.Column)
	}
	if perr.Code != DestructureNeedsInit {
		t.Errorf("error code = %s, want %s", perr.Code, DestructureNeedsInit)
	}
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		operator token.TokenType
		leftLit  bool
		rightLit bool
	}{
		{"2 + 3 * 4", token.Plus, true, false},
		{"2 * 3 + 4", token.Plus, false, true},
		{"2 ** 3 ** 2", token.Exponent, true, false},
		{"a ?? b || c", token.NullCoalesce, false, false},
		{"1 << 2 < 3", token.LessThan, false, true},
		{"a === 1 && b", token.LogicalAnd, false, false},
	}
	for _, tt := range tests {
		expr, ok := parseExpr(t, tt.input).(*ast.BinaryExpression)
		if !ok {
			t.Fatalf("%q: expected a binary expression", tt.input)
		}
		if expr.Operator != tt.operator {
			t.Errorf("%q: root operator = %s, want %s", tt.input, expr.Operator, tt.operator)
		}
		if _, isLit := expr.Left.(*ast.Literal); isLit != tt.leftLit {
			t.Errorf("%q: unexpected left operand %s", tt.input, expr.Left)
		}
		if _, isLit := expr.Right.(*ast.Literal); isLit != tt.rightLit {
			t.Errorf("%q: unexpected right operand %s", tt.input, expr.Right)
		}
	}
}

func TestExponentIsRightAssociative(t *testing.T) {
	expr := parseExpr(t, "1 ** 2 ** 3 ** 4").(*ast.BinaryExpression)
	depth := 0
	for {
		if lit, ok := expr.Left.(*ast.Literal); !ok || lit.Value != float64(depth+1) {
			t.Fatalf("level %d: unexpected left operand %s", depth, expr.Left)
		}
		depth++
		next, ok := expr.Right.(*ast.BinaryExpression)
		if !ok {
			break
		}
		expr = next
	}
	if depth != 3 {
		t.Errorf("expected 3 nested exponent nodes, got %d", depth)
	}
}

func TestArrowParameters(t *testing.T) {
	arrow, ok := parseExpr(t, "({a, b: [c, d]}, e) => a + e").(*ast.ArrowExpression)
	if !ok {
		t.Fatalf("expected an arrow expression")
	}
	if len(arrow.Args) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(arrow.Args))
	}
	obj, ok := arrow.Args[0].(*ast.ObjectDestructure)
	if !ok {
		t.Fatalf("expected object destructure, got %T", arrow.Args[0])
	}
	names := ast.DestructuredNames(nil, obj)
	if len(names) != 3 || names[0] != "a" || names[1] != "c" || names[2] != "d" {
		t.Errorf("unexpected bound names %v", names)
	}
	if id, ok := arrow.Args[1].(*ast.Identifier); !ok || id.Name != "e" {
		t.Errorf("unexpected second parameter %s", arrow.Args[1])
	}
	if _, ok := arrow.Statement.(*ast.ExpressionStatement); !ok {
		t.Errorf("expected an expression body, got %T", arrow.Statement)
	}

	noArgs := parseExpr(t, "() => { return 1 }").(*ast.ArrowExpression)
	if len(noArgs.Args) != 0 {
		t.Errorf("expected no parameters")
	}
	if _, ok := noArgs.Statement.(*ast.BlockStatement); !ok {
		t.Errorf("expected a block body, got %T", noArgs.Statement)
	}
}

func TestDestructuringAssignment(t *testing.T) {
	asgn, ok := parseExpr(t, "[a, , b] = [b, 0, a]").(*ast.AssignmentExpression)
	if !ok {
		t.Fatalf("expected an assignment")
	}
	arr, ok := asgn.Leftvalue.(*ast.ArrayDestructure)
	if !ok {
		t.Fatalf("expected array destructure, got %T", asgn.Leftvalue)
	}
	if len(arr.Items) != 3 || arr.Items[1].BoundName() != "" {
		t.Errorf("unexpected items %v", arr.Items)
	}
}

func TestDestructuringDeclaration(t *testing.T) {
	program := parseOrFail(t, "const {a: {b, c: cC}, d: [e,, f]} = x;")
	decl := program.Statements[0].(*ast.ConstStatement).Declarations[0]
	names := ast.DestructuredNames(decl.ArrayDestruct, decl.ObjectDestruct)
	want := []string{"b", "cC", "e", "f"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestIfElseNeedsTerminator(t *testing.T) {
	program := parseOrFail(t, "if (x) a = 1; else a = 2")
	stmt := program.Statements[0].(*ast.IfStatement)
	if stmt.ElseBranch == nil {
		t.Errorf("expected an else branch")
	}

	program = parseOrFail(t, "if (x) { a = 1 } else { a = 2 }")
	if program.Statements[0].(*ast.IfStatement).ElseBranch == nil {
		t.Errorf("expected an else branch after a block")
	}
}

func TestForLoops(t *testing.T) {
	tests := []struct {
		input   string
		check   func(ast.Statement) bool
		comment string
	}{
		{"for (const k in obj) {}", func(s ast.Statement) bool {
			f, ok := s.(*ast.ForInStatement)
			return ok && f.VarBinding == ast.BindConst && f.ID == "k"
		}, "for-in with const"},
		{"for (x of xs) ;", func(s ast.Statement) bool {
			f, ok := s.(*ast.ForOfStatement)
			return ok && f.VarBinding == ast.BindNone && f.ID == "x"
		}, "for-of without binding"},
		{"for (let i = 0; i < 3; i++) {}", func(s ast.Statement) bool {
			f, ok := s.(*ast.ForStatement)
			return ok && f.Init != nil && f.Condition != nil && f.Update != nil
		}, "three clause loop"},
		{"for (;;) break", func(s ast.Statement) bool {
			f, ok := s.(*ast.ForStatement)
			return ok && f.Init == nil && f.Condition == nil && f.Update == nil
		}, "empty clauses"},
	}
	for _, tt := range tests {
		program := parseOrFail(t, tt.input)
		if !tt.check(program.Statements[0]) {
			t.Errorf("%s: unexpected statement %T", tt.comment, program.Statements[0])
		}
	}
}

func TestRegExpLiteral(t *testing.T) {
	lit, ok := parseExpr(t, "/ab+c/gi").(*ast.RegExpLiteral)
	if !ok {
		t.Fatalf("expected a regex literal")
	}
	if lit.Pattern != "ab+c" || lit.Flags != "gi" {
		t.Errorf("got /%s/%s", lit.Pattern, lit.Flags)
	}

	call, ok := parseExpr(t, "/a+/.test(x)").(*ast.FunctionInvocation)
	if !ok {
		t.Fatalf("expected an invocation")
	}
	if m, ok := call.Object.(*ast.MemberAccess); !ok || m.Member != "test" {
		t.Errorf("unexpected callee %s", call.Object)
	}

	div, ok := parseExpr(t, "a / b / c").(*ast.BinaryExpression)
	if !ok || div.Operator != token.Divide {
		t.Errorf("expected division")
	}
}

func TestNumberLiterals(t *testing.T) {
	tests := []struct {
		input    string
		expected any
	}{
		{"0xFF", float64(255)},
		{"0b1010", float64(10)},
		{"1_000", float64(1000)},
		{"1.5e3", float64(1500)},
	}
	for _, tt := range tests {
		lit := parseExpr(t, tt.input).(*ast.Literal)
		if lit.Value != tt.expected {
			t.Errorf("%s = %v, want %v", tt.input, lit.Value, tt.expected)
		}
	}

	lit := parseExpr(t, "9007199254740993").(*ast.Literal)
	b, ok := lit.BigInt()
	if !ok {
		t.Fatalf("expected a big integer, got %T", lit.Value)
	}
	want, _ := new(big.Int).SetString("9007199254740993", 10)
	if b.Cmp(want) != 0 {
		t.Errorf("big literal = %s", b)
	}
}

func TestStringEscapes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"a\tb"`, "a\tb"},
		{`'\x41B\u{43}'`, "ABC"},
		{`"\q"`, `\q`},
		{`"it\'s"`, "it's"},
	}
	for _, tt := range tests {
		lit := parseExpr(t, tt.input).(*ast.Literal)
		if lit.Value != tt.expected {
			t.Errorf("%s = %q, want %q", tt.input, lit.Value, tt.expected)
		}
	}
}

func TestImportDeclaration(t *testing.T) {
	program := parseOrFail(t, `import { a, b as c } from "./lib"`)
	imp := program.Statements[0].(*ast.ImportDeclaration)
	if imp.ModuleFile != "./lib" {
		t.Errorf("module = %q", imp.ModuleFile)
	}
	if len(imp.Imports) != 2 || imp.Imports[1].Name != "b" || imp.Imports[1].Alias != "c" {
		t.Errorf("unexpected imports %v", imp.Imports)
	}
}

func TestExports(t *testing.T) {
	program := parseOrFail(t, "export const a = 1; export function f(x) { return x }")
	if c := program.Statements[0].(*ast.ConstStatement); !c.IsExported {
		t.Errorf("const should be exported")
	}
	f := program.Statements[1].(*ast.FunctionDeclaration)
	if !f.IsExported || f.Name != "f" || len(f.Args) != 1 {
		t.Errorf("unexpected function declaration %s", f)
	}
}

func TestNodeSpans(t *testing.T) {
	program := parseOrFail(t, "let a = 1;\n  foo(a)")
	span := program.Statements[1].Base().Span
	if span.StartLine != 2 || span.StartColumn != 3 {
		t.Errorf("statement starts at %d:%d, want 2:3", span.StartLine, span.StartColumn)
	}
	if span.Source != "foo(a)" {
		t.Errorf("source = %q", span.Source)
	}
	if program.Statements[0].Base().ID == program.Statements[1].Base().ID {
		t.Errorf("statements share an id")
	}
}

func TestOptionalChain(t *testing.T) {
	m, ok := parseExpr(t, "a?.b").(*ast.MemberAccess)
	if !ok || !m.IsOptional || m.Member != "b" {
		t.Errorf("expected optional member access")
	}
	cond, ok := parseExpr(t, "a?.5:1").(*ast.ConditionalExpression)
	if !ok {
		t.Fatalf("expected a conditional")
	}
	if lit := cond.Consequent.(*ast.Literal); lit.Value != 0.5 {
		t.Errorf("consequent = %v", lit.Value)
	}
}

func TestRenderASTAsJSON(t *testing.T) {
	program := parseOrFail(t, "let a = 1 + 2;")
	out, err := RenderASTAsJSON(program)
	if err != nil {
		t.Fatal(err)
	}

	var tree struct {
		Type       string `json:"type"`
		Statements []struct {
			Type         string `json:"type"`
			Position     string `json:"position"`
			Declarations []struct {
				ID         string `json:"id"`
				Expression struct {
					Type   string `json:"type"`
					Source string `json:"source"`
				} `json:"expression"`
			} `json:"declarations"`
		} `json:"statements"`
	}
	if err := json.Unmarshal([]byte(out), &tree); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if tree.Type != "Program" || len(tree.Statements) != 1 {
		t.Fatalf("unexpected tree: %s", out)
	}
	stmt := tree.Statements[0]
	if stmt.Type != "LetStatement" || !strings.HasPrefix(stmt.Position, "1:1-") {
		t.Errorf("statement %+v", stmt)
	}
	if len(stmt.Declarations) != 1 || stmt.Declarations[0].ID != "a" {
		t.Fatalf("declarations %+v", stmt.Declarations)
	}
	if src := stmt.Declarations[0].Expression.Source; src != "1 + 2" {
		t.Errorf("expression source %q", src)
	}
}
