package module

import (
	"errors"
	"ksx/internal/evaluator"
	"ksx/internal/object"
	"ksx/internal/parser"
	"strings"
	"testing"
)

const rootModule = "test"

func parseWith(source string, modules map[string]string) (*Module, error) {
	return Parse(rootModule, source, func(name string) (string, bool) {
		src, ok := modules[name]
		return src, ok
	}, nil)
}

func mustParse(t *testing.T, source string, modules map[string]string) *Module {
	t.Helper()
	m, err := parseWith(source, modules)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return m
}

func TestModuleFunctions(t *testing.T) {
	m := mustParse(t, `
		const a = 1;
		function func1() {}
		function func2() {}
	`, nil)

	if len(m.Statements) != 3 {
		t.Errorf("got %d statements, want 3", len(m.Statements))
	}
	if len(m.Functions) != 2 || m.Functions["func1"] == nil || m.Functions["func2"] == nil {
		t.Errorf("functions not hoisted: %v", m.Functions)
	}
}

func TestExportedNames(t *testing.T) {
	tests := []struct {
		source   string
		expected []string
	}{
		{"", nil},
		{"const a = 1; export function func1() {} function func2() {}", []string{"func1"}},
		{"export function func1() {} export function func2() {}", []string{"func1", "func2"}},
		{"export const {} = expr;", nil},
		{"export const {a} = expr;", []string{"a"}},
		{"export const {a, b, } = expr;", []string{"a", "b"}},
		{"export const {a: aA, b: bB} = expr;", []string{"aA", "bB"}},
		{"export const {a: {b, c: cC}} = expr;", []string{"b", "cC"}},
		{"export const [a, , b] = expr;", []string{"a", "b"}},
		{"export const [a, [b]] = expr;", []string{"a", "b"}},
		{"export const [{a}, b] = expr;", []string{"a", "b"}},
		{"export const x = 1, y = 2;", []string{"x", "y"}},
	}

	for _, tt := range tests {
		m := mustParse(t, tt.source, nil)
		got := m.Exports.Keys()
		if strings.Join(got, ",") != strings.Join(tt.expected, ",") {
			t.Errorf("%q exports %v, want %v", tt.source, got, tt.expected)
		}
	}
}

func TestModuleErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		modules map[string]string
		module  string
		code    parser.ErrorCode
		text    string
	}{
		{"parse error", "const;", nil, rootModule, parser.IdentifierExpected, ""},
		{"duplicate const export", "export const a = 1;\nexport const a = 2;", nil, rootModule, parser.DuplicateExport, "'a'"},
		{"const and function export", "export const a = 1;\nexport function a() {}", nil, rootModule, parser.DuplicateExport, "'a'"},
		{"duplicate function", "function f() {}\nfunction f() {}", nil, rootModule, parser.DuplicateFunction, "'f'"},
		{"missing module", `import { a } from "nowhere";`, nil, rootModule, parser.ModuleNotFound, "'nowhere'"},
		{"not exported", `import { b } from "m1";`, map[string]string{"m1": "export const a = 1;"}, rootModule, parser.NotExported, "'b' is not exported by module 'm1'"},
		{"broken import", `import { a } from "m1";`, map[string]string{"m1": "export const a = ;"}, rootModule, parser.ImportedModuleHasProblems, "'m1'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWith(tt.source, tt.modules)
			var errs ErrorsByModule
			if !errors.As(err, &errs) {
				t.Fatalf("expected ErrorsByModule, got %v", err)
			}
			list := errs[tt.module]
			if len(list) != 1 {
				t.Fatalf("got %d errors for %s: %v", len(list), tt.module, errs)
			}
			if tt.code != parser.IdentifierExpected && list[0].Code != tt.code {
				t.Errorf("code %s, want %s", list[0].Code, tt.code)
			}
			if !strings.Contains(list[0].Text, tt.text) {
				t.Errorf("text %q does not contain %q", list[0].Text, tt.text)
			}
		})
	}
}

func TestBrokenImportReportsBothModules(t *testing.T) {
	_, err := parseWith(`import { a } from "m1";`, map[string]string{"m1": "export const a = ;"})
	var errs ErrorsByModule
	if !errors.As(err, &errs) {
		t.Fatalf("expected ErrorsByModule, got %v", err)
	}
	if len(errs) != 2 {
		t.Errorf("errors for %d modules, want 2", len(errs))
	}
	if !strings.Contains(errs.Error(), "(m1:1:") {
		t.Errorf("rendered errors %q lack the module position", errs.Error())
	}
}

func TestImportModule(t *testing.T) {
	m := mustParse(t, `import { a } from "module1";`, map[string]string{
		"module1": "export const a = 1;",
	})
	if m.Name != rootModule {
		t.Errorf("name %s", m.Name)
	}
	if len(m.ImportedModules) != 1 || m.ImportedModules[0].Name != "module1" {
		t.Errorf("imported modules: %v", m.ImportedModules)
	}
}

func TestCyclicImportsParseOnce(t *testing.T) {
	calls := map[string]int{}
	modules := map[string]string{
		"a": `import { fromB } from "b"; export const fromA = 1;`,
		"b": `import { fromA } from "a"; export const fromB = 2;`,
	}
	m, err := Parse("a", modules["a"], func(name string) (string, bool) {
		calls[name]++
		src, ok := modules[name]
		return src, ok
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if calls["b"] != 1 || calls["a"] != 0 {
		t.Errorf("resolver calls %v", calls)
	}
	b := m.ImportedModules[0]
	if b.ImportedModules[0] != m {
		t.Errorf("cycle resolved to a different module object")
	}
}

func run(t *testing.T, m *Module) *evaluator.EvaluationContext {
	t.Helper()
	ctx := evaluator.NewEvaluationContext(nil)
	if err := Execute(m, ctx); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	return ctx
}

func numberOf(t *testing.T, v object.Object) float64 {
	t.Helper()
	n, ok := v.(*object.Number)
	if !ok {
		t.Fatalf("expected a number, got %s", v.Inspect())
	}
	return n.Value
}

func TestExecuteImportsAndExports(t *testing.T) {
	m := mustParse(t, `
		import { square, base as b } from "lib";
		const result = square(b) + twice(1);
		function twice(x) { return x * 2 }
	`, map[string]string{
		"lib": `
			export const base = 3;
			export const {k, nested: {deep}} = {k: 1, nested: {deep: 2}};
			export function square(x) { return x * x }
		`,
	})

	ctx := run(t, m)
	val, ok := ctx.Lookup("result")
	if !ok {
		t.Fatal("result not bound")
	}
	if got := numberOf(t, val); got != 11 {
		t.Errorf("result = %v, want 11", got)
	}

	lib := m.ImportedModules[0]
	if !lib.Executed() {
		t.Error("imported module did not run")
	}
	for name, want := range map[string]float64{"base": 3, "k": 1, "deep": 2} {
		v, _ := lib.Exports.Get(name)
		if got := numberOf(t, v); got != want {
			t.Errorf("export %s = %v, want %v", name, got, want)
		}
	}
	if _, ok := m.Imports["b"]; !ok {
		t.Errorf("imports table lacks the alias: %v", m.Imports)
	}
}

func TestImportedNamesAreConst(t *testing.T) {
	m := mustParse(t, `import { a } from "m1"; a = 2;`, map[string]string{"m1": "export const a = 1;"})
	err := Execute(m, evaluator.NewEvaluationContext(nil))
	if !errors.Is(err, object.ErrConstAssignment) {
		t.Errorf("expected const violation, got %v", err)
	}
}

func TestImportFromPackage(t *testing.T) {
	pkg := object.NewMap()
	pkg.Set("answer", object.NewNumber(42))
	m, err := Parse(rootModule, `import { answer } from "host"; const x = answer;`, nil,
		func(name string) *object.Map {
			if name == "host" {
				return pkg
			}
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	ctx := run(t, m)
	x, _ := ctx.Lookup("x")
	if got := numberOf(t, x); got != 42 {
		t.Errorf("x = %v", got)
	}
}

func TestCyclicImportsExecute(t *testing.T) {
	modules := map[string]string{
		"a": `import { fromB } from "b"; export const fromA = 1; const seen = fromB;`,
		"b": `import { fromA } from "a"; export const fromB = 2; const early = fromA;`,
	}
	m, err := Parse("a", modules["a"], func(name string) (string, bool) {
		src, ok := modules[name]
		return src, ok
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := run(t, m)
	seen, _ := ctx.Lookup("seen")
	if got := numberOf(t, seen); got != 2 {
		t.Errorf("seen = %v, want 2", got)
	}
	// a had not run its statements when b imported from it
	if v, _ := m.ImportedModules[0].Imports["fromA"]; v != object.UNDEFINED {
		t.Errorf("early import = %s, want undefined", v.Inspect())
	}
	// the shared export table shows the final value
	if v, _ := m.Exports.Get("fromA"); numberOf(t, v) != 1 {
		t.Errorf("fromA export = %s", v.Inspect())
	}
}

func TestExecuteOnce(t *testing.T) {
	m := mustParse(t, "let n = 0; n++;", nil)
	ctx := run(t, m)
	if err := Execute(m, ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := ctx.Lookup("n")
	if got := numberOf(t, n); got != 1 {
		t.Errorf("n = %v, module ran more than once", got)
	}
}

func TestRuntimeErrorStopsExecution(t *testing.T) {
	m := mustParse(t, "export const a = nope;", nil)
	err := Execute(m, evaluator.NewEvaluationContext(nil))
	if err == nil || !strings.Contains(err.Error(), "nope is not defined") {
		t.Errorf("got %v", err)
	}
}
