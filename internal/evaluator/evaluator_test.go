package evaluator

import (
	"context"
	"errors"
	"ksx/internal/ast"
	"ksx/internal/object"
	"ksx/internal/output"
	"ksx/internal/parser"
	"strings"
	"testing"
	"time"
)

func newContext() *EvaluationContext {
	return NewEvaluationContext(NewCancellationToken(context.Background()))
}

func runIn(t *testing.T, ctx *EvaluationContext, input string) (object.Object, error) {
	t.Helper()
	program, err := parser.Parse(input)
	if err != nil {
		t.Fatalf("parse of %q failed: %v", input, err)
	}
	val, _, err := ctx.Run(program.Statements)
	return val, err
}

func testEval(t *testing.T, input string) object.Object {
	t.Helper()
	val, err := runIn(t, newContext(), input)
	if err != nil {
		t.Fatalf("%q failed: %v", input, err)
	}
	return val
}

func checkValue(t *testing.T, input string, got object.Object, want interface{}) {
	t.Helper()
	switch want := want.(type) {
	case float64:
		n, ok := got.(*object.Number)
		if !ok || n.Value != want {
			t.Errorf("%q = %s, want %v", input, got.Inspect(), want)
		}
	case string:
		s, ok := got.(*object.String)
		if !ok || s.Value != want {
			t.Errorf("%q = %s, want %q", input, got.Inspect(), want)
		}
	case bool:
		b, ok := got.(*object.Boolean)
		if !ok || b.Value != want {
			t.Errorf("%q = %s, want %v", input, got.Inspect(), want)
		}
	case nil:
		if got != object.UNDEFINED {
			t.Errorf("%q = %s, want undefined", input, got.Inspect())
		}
	}
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"2 + 3 * 4", 14.0},
		{"2 ** 3 ** 2", 512.0},
		{"(2 + 3) * 4", 20.0},
		{"null ?? 5", 5.0},
		{"0 ?? 5", 0.0},
		{"7 % 3", 1.0},
		{"-7 >> 1", -4.0},
		{"-1 >>> 28", 15.0},
		{"5 & 3", 1.0},
		{"5 | 3", 7.0},
		{"5 ^ 3", 6.0},
		{"~5", -6.0},
		{"1 << 4", 16.0},
		{"'a' + 1", "a1"},
		{"1 + true", 2.0},
		{"1 < 2", true},
		{"'b' > 'a'", true},
		{"1 == '1'", true},
		{"1 === '1'", false},
		{"null == undefined", true},
		{"null === undefined", false},
		{"!0", true},
		{"typeof nope", "undefined"},
		{"typeof (() => 1)", "function"},
		{"typeof 'x'", "string"},
		{"1 > 2 ? 'a' : 'b'", "b"},
		{"'a' in {a: 1}", true},
		{"1 in [5, 6]", true},
		{"let x; x ??= 4; x", 4.0},
		{"let y = 3; y ??= 4; y", 3.0},
		{"let z = 0; z ||= 7; z", 7.0},
		{"let w = 2; w &&= 9; w", 9.0},
		{"let v = 10; v -= 4; v *= 2; v", 12.0},
		{"let n = 0; false && n++; true || n++; n", 0.0},
		{"let i = 5; i++", 5.0},
		{"let i = 5; ++i", 6.0},
		{"const o = null; o?.x", nil},
		{"const o = null; o.x", nil},
		{"undefined", nil},
	}

	for _, tt := range tests {
		checkValue(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestStatements(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"let s = 0; for (let i = 0; i < 5; i++) { s += i }; s", 10.0},
		{"let i = 0; while (true) { i++; if (i == 3) break; }; i", 3.0},
		{"let s = 0; for (let i = 0; i < 5; i++) { if (i % 2) continue; s += i }; s", 6.0},
		{"let i = 0; do { i++ } while (i < 3); i", 3.0},
		{"let i = 10; do { i++ } while (i < 3); i", 11.0},
		{"let s = ''; for (const k in {a: 1, b: 2}) { s += k }; s", "ab"},
		{"let s = ''; for (let k in [4, 5, 6]) s += k; s", "012"},
		{"let s = 0; for (const v of [1, 2, 3]) s += v; s", 6.0},
		{"let s = ''; for (const c of 'xyz') { s = c + s }; s", "zyx"},
		{"let k; let s = ''; for (k of ['a', 'b']) s += k; s + k", "abb"},
		{"let r = ''; switch (2) { case 1: r += 'a'; case 2: r += 'b'; case 3: r += 'c'; break; default: r += 'd' }; r", "bc"},
		{"let r = ''; switch (9) { case 1: r = 'a'; break; default: r = 'd' }; r", "d"},
		{"let r = ''; switch (9) { case 1: r = 'a' }; r", ""},
		{"let n = 0; for (let i = 0; i < 3; i++) { switch (i) { case 1: continue; default: n++ } }; n", 2.0},
		{"let x = 1; { let x = 2 }; x", 1.0},
		{"let a = 1; if (a > 0) { a = 5 } else { a = 6 }; a", 5.0},
		{"let s = 0; for (let i = 0; i < 3; i++) { for (let j = 0; j < 3; j++) { if (j == 1) break; s++ } }; s", 3.0},
	}

	for _, tt := range tests {
		checkValue(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestLetDeclarationsBindInOrder(t *testing.T) {
	ctx := newContext()
	if _, err := runIn(t, ctx, "let a = 1, b = a + 1;"); err != nil {
		t.Fatal(err)
	}
	for name, want := range map[string]float64{"a": 1, "b": 2} {
		v, ok := ctx.TopScope().Get(name)
		if !ok {
			t.Fatalf("%s not bound", name)
		}
		if n := v.(*object.Number).Value; n != want {
			t.Errorf("%s = %v, want %v", name, n, want)
		}
	}
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"const add = (a) => (b) => a + b; add(2)(3)", 5.0},
		{"const mk = () => { let c = 0; return () => { c++; return c } }; const f = mk(); f(); f()", 2.0},
		{"function fact(n) { if (n <= 1) return 1; return n * fact(n - 1) }; fact(5)", 120.0},
		{"const f = ({a, b}) => a - b; f({a: 5, b: 3})", 2.0},
		{"const f = ([a, b]) => a * b; f([4, 5])", 20.0},
		{"const f = (a, b) => b; f(1)", nil},
		{"const f = () => { 1 }; f()", nil},
		{"const f = x => x * 2; f(21)", 42.0},
		{"const xs = [1, 2]; const f = (a, b, c) => a + b + c; f(...xs, 3)", 6.0},
		{"const o = {n: 1, inc: (x) => x + 1}; o.inc(o.n)", 2.0},
		{"const o = {}; o.missing()", nil},
	}

	for _, tt := range tests {
		checkValue(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestDestructuring(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"const [a, , b] = [1, 2, 3]; const {x, y: z} = {x: 4, y: 5}; a + b + x + z", 13.0},
		{"let a = 1, b = 2; [a, b] = [b, a]; a * 10 + b", 21.0},
		{"let p, q; ({p, q} = {p: 'l', q: 'r'}); p + q", "lr"},
		{"const {a: {b}} = {a: {b: 7}}; b", 7.0},
		{"const [m, [n]] = [1, [2]]; m + n", 3.0},
		{"const [c] = 'hi'; c", "h"},
		{"const {length} = 'four'; length", 4.0},
	}

	for _, tt := range tests {
		checkValue(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestBuiltinMethods(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"const xs = [1, 2]; const ys = [...xs, 3]; ys.length", 3.0},
		{"[1, 2, 3].map((x) => x * 2).join('-')", "2-4-6"},
		{"[1, 2, 3, 4].filter(x => x % 2 == 0).reduce((a, b) => a + b, 0)", 6.0},
		{"[3, 1, 2].sort().join()", "1,2,3"},
		{"[3, 1, 10].sort((a, b) => b - a).join()", "10,3,1"},
		{"const a = [1]; a.push(2, 3); a.length", 3.0},
		{"[1, 2, 3].find(x => x > 1)", 2.0},
		{"[1, 2, 3].some(x => x > 2)", true},
		{"[1, 2, 3].every(x => x > 2)", false},
		{"[1, 2, 3, 4].slice(1, -1).join()", "2,3"},
		{"'Hello'.toUpperCase()", "HELLO"},
		{"'a,b,c'.split(',').length", 3.0},
		{"'  x '.trim()", "x"},
		{"'abcdef'.slice(-2)", "ef"},
		{"'abc'.indexOf('c')", 2.0},
		{"'5'.padStart(3, '0')", "005"},
		{"'ab'.repeat(2)", "abab"},
		{"'abc'[1]", "b"},
		{"/b+/.test('abbc')", true},
		{"'a1b22'.replace(/[0-9]+/g, '#')", "a#b#"},
		{"'a1b22'.replace(/[0-9]+/g, (m) => m.length)", "a1b2"},
		{"'x-y'.replace('-', '+')", "x+y"},
		{"'a1b22'.match(/[0-9]+/g).join('|')", "1|22"},
		{"/(\\d+)-(\\d+)/.exec('10-20')[2]", "20"},
		{"(255).toString(16)", "ff"},
		{"(1.005).toFixed(1)", "1.0"},
		{"const o = {a: 1}; o.b = 2; Object.keys(o).join(',')", "a,b"},
		{"const a = []; a[2] = 1; a.length", 3.0},
		{"const o = {a: 1}; delete o.a; 'a' in o", false},
		{"Math.max(1, 5, 3)", 5.0},
		{"Math.floor(2.7)", 2.0},
		{"Math.round(2.5)", 3.0},
		{"parseInt('42px')", 42.0},
		{"parseInt('ff', 16)", 255.0},
		{"parseFloat('3.5e1x')", 35.0},
		{"isNaN(Number('x'))", true},
		{"String(12)", "12"},
		{"Array.isArray([])", true},
		{`JSON.stringify({a: [1, 'x'], b: null, c: undefined})`, `{"a":[1,"x"],"b":null}`},
		{`JSON.parse('{"a": 2}').a`, 2.0},
		{"function g() {}; g.name", "g"},
	}

	for _, tt := range tests {
		checkValue(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestStringsCountCodeUnits(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{`'\u{1F600}'.length`, 2.0},
		{`'\u{E9}'.length`, 1.0},
		{`'a\u{1F600}b'.indexOf('b')`, 3.0},
		{`'a\u{1F600}b'.lastIndexOf('b')`, 3.0},
		{`'a\u{1F600}b'.charCodeAt(1)`, 55357.0},
		{`'a\u{1F600}b'.slice(1, 3)`, "\U0001F600"},
		{`'a\u{1F600}b'.substring(3)`, "b"},
		{`'a\u{1F600}b'[3]`, "b"},
		{`'x'.padStart(3, '\u{1F600}')`, "\U0001F600x"},
		{`let n = 0; for (const c of '\u{1F600}x') n++; n`, 2.0},
		{`let k = ''; for (const i in 'a\u{1F600}') k += i; k`, "012"},
	}

	for _, tt := range tests {
		checkValue(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestBigInt(t *testing.T) {
	val := testEval(t, "BigInt(2) ** BigInt(64)")
	b, ok := val.(*object.BigInt)
	if !ok {
		t.Fatalf("expected BigInt, got %s", val.Inspect())
	}
	if got := b.Value.String(); got != "18446744073709551616" {
		t.Errorf("got %s", got)
	}

	_, err := runIn(t, newContext(), "BigInt(1) + 1")
	if err == nil || !strings.Contains(err.Error(), "Cannot mix BigInt and other types") {
		t.Errorf("expected mix error, got %v", err)
	}
}

func TestTryCatch(t *testing.T) {
	tests := []struct {
		input    string
		expected interface{}
	}{
		{"let r; try { throw 'boom' } catch (e) { r = e }; r", "boom"},
		{"let r; try { nope + 1 } catch (e) { r = e.message }; r", "nope is not defined"},
		{"let r; try { throw Error('bad') } catch (e) { r = e.message }; r", "bad"},
		{"let r = 0; try { r = 1 } catch (e) { r = 2 }; r", 1.0},
		{"let r = ''; try { try { throw 'in' } finally { r += 'f' } } catch (e) { r += e }; r", "fin"},
		{"let r = ''; try { try { throw 'a' } catch (e) { throw 'b' } } catch (e) { r = e }; r", "b"},
		{"const g = () => { try { throw 1 } finally { return 3 } }; g()", 3.0},
		{"const g = () => { try { return 1 } finally { throw 'x' } }; let r; try { g() } catch (e) { r = e }; r", "x"},
		{"let r = 0; const g = () => { throw 'deep' }; try { g() } catch (e) { r = e }; r", "deep"},
	}

	for _, tt := range tests {
		checkValue(t, tt.input, testEval(t, tt.input), tt.expected)
	}
}

func TestFinallyRunsOnce(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"throw", "let f = 0; let c = 0; try { throw 1 } catch (e) { c++ } finally { f++ }; f * 10 + c", 11},
		{"return", "let f = 0; const g = () => { try { return 5 } finally { f++ } }; const r = g(); f * 10 + r", 15},
		{"break", "let f = 0; let i = 0; while (true) { i++; try { break } finally { f++ } }; f * 10 + i", 11},
		{"normal", "let f = 0; try { 1 } finally { f++ }; f", 1},
		{"continue", "let f = 0; let s = 0; for (let i = 0; i < 3; i++) { try { if (i == 1) continue; s += i } finally { f++ } }; f * 10 + s", 32},
		{"return from catch", "let f = 0; const g = () => { try { throw 1 } catch (e) { return 2 } finally { f++ } }; const r = g(); f * 10 + r", 12},
		{"nested break", "let f = 0; for (;;) { try { try { break } finally { f++ } } finally { f += 10 } }; f", 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValue(t, tt.input, testEval(t, tt.input), tt.expected)
		})
	}
}

func TestUncaughtErrorRunsFinally(t *testing.T) {
	ctx := newContext()
	_, err := runIn(t, ctx, "let f = 0; try { throw 'x' } finally { f++ }")
	var te *ThrowError
	if !errors.As(err, &te) {
		t.Fatalf("expected ThrowError, got %v", err)
	}
	if te.Error() != "x" {
		t.Errorf("thrown %q", te.Error())
	}
	f, _ := ctx.TopScope().Get("f")
	if f.(*object.Number).Value != 1 {
		t.Errorf("finally ran %s times", f.Inspect())
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
	}{
		{"nope", "nope is not defined"},
		{"let x = 1; let x = 2", "Variable x is already declared in the current scope."},
		{"break", "Missing loop scope"},
		{"for (const v of 5) {}", "Object in for..of is not iterable"},
		{"const f = () => f(); f()", "Maximum call stack size exceeded"},
		{"const x = 5; x()", "x is not a function"},
	}

	for _, tt := range tests {
		_, err := runIn(t, newContext(), tt.input)
		if err == nil {
			t.Errorf("%q: expected error", tt.input)
			continue
		}
		if !strings.Contains(err.Error(), tt.message) {
			t.Errorf("%q: error %q does not contain %q", tt.input, err.Error(), tt.message)
		}
	}
}

func TestConstAssignment(t *testing.T) {
	_, err := runIn(t, newContext(), "const c = 1; c = 2")
	if !errors.Is(err, object.ErrConstAssignment) {
		t.Errorf("expected const violation, got %v", err)
	}
	_, err = runIn(t, newContext(), "const c = 1; c++")
	if !errors.Is(err, object.ErrConstAssignment) {
		t.Errorf("expected const violation for ++, got %v", err)
	}
	if _, err := runIn(t, newContext(), "let c = 1; c = 2"); err != nil {
		t.Errorf("let assignment failed: %v", err)
	}
}

func TestRuntimeErrorPosition(t *testing.T) {
	_, err := runIn(t, newContext(), "let a = 1;\n  a = nope")
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("expected RuntimeError, got %v", err)
	}
	if rt.Line != 2 || rt.Column != 3 {
		t.Errorf("position %d:%d, want 2:3", rt.Line, rt.Column)
	}
}

func TestCancellation(t *testing.T) {
	ctx := newContext()
	ctx.AppContext = object.NewMap()
	ctx.AppContext.Set("stop", &object.Builtin{
		Name: "stop",
		Fn: func(object.CallContext, ...object.Object) (object.Object, error) {
			ctx.Token.Cancel()
			return object.UNDEFINED, nil
		},
	})

	_, err := runIn(t, ctx, "let i = 0; while (true) { i++; if (i == 10) stop() }")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	i, _ := ctx.TopScope().Get("i")
	if i.(*object.Number).Value != 10 {
		t.Errorf("loop ran to %s", i.Inspect())
	}
}

func TestCancellationNotCaught(t *testing.T) {
	ctx := newContext()
	ctx.Token.Cancel()
	_, err := runIn(t, ctx, "try { 1 } catch (e) { 2 }")
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestDelayIsCancellable(t *testing.T) {
	ctx := newContext()
	ctx.AppContext = NewAppContext(nil)
	go func() {
		time.Sleep(20 * time.Millisecond)
		ctx.Token.Cancel()
	}()

	start := time.Now()
	_, err := runIn(t, ctx, "let r; try { delay(10000) } catch (e) { r = e }")
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("delay was not interrupted")
	}
}

func TestOutputAndConsole(t *testing.T) {
	sink := output.NewBuffer()
	ctx := newContext()
	ctx.AppContext = NewAppContext(sink)
	ctx.GlobalScope = NewGlobalScope(sink)

	_, err := runIn(t, ctx, "Output.write('a'); Output.writeLine('b', 1); console.log('x', 1, [1, 2])")
	if err != nil {
		t.Fatal(err)
	}
	want := "ab1\nx 1 [1, 2]\n"
	if got := sink.String(); got != want {
		t.Errorf("output %q, want %q", got, want)
	}
}

func TestBannedFunction(t *testing.T) {
	ctx := newContext()
	ctx.AppContext = NewAppContext(nil)
	_, err := runIn(t, ctx, "exit()")
	if err == nil || !strings.Contains(err.Error(), "Function exit is not allowed to call.") {
		t.Errorf("got %v", err)
	}
}

func TestScopeLayers(t *testing.T) {
	ctx := newContext()
	ctx.LocalContext = object.NewMap()
	ctx.LocalContext.Set("who", object.NewString("local"))
	ctx.AppContext = object.NewMap()
	ctx.AppContext.Set("who", object.NewString("app"))
	ctx.AppContext.Set("app", object.NewString("app"))
	ctx.GlobalScope.Set("who", object.NewString("global"))

	tests := []struct {
		input    string
		expected string
	}{
		{"who", "local"},
		{"app", "app"},
		{"::who", "global"},
		{"{ let who = 'block'; who }", ""},
	}
	for _, tt := range tests {
		val, err := runIn(t, ctx, tt.input)
		if err != nil {
			t.Fatalf("%q: %v", tt.input, err)
		}
		if tt.expected != "" {
			checkValue(t, tt.input, val, tt.expected)
		}
	}
}

func TestSandboxedGlobals(t *testing.T) {
	ctx := newContext()
	ctx.GlobalScope = nil
	_, err := runIn(t, ctx, "Math.floor(1.5)")
	if err == nil || !strings.Contains(err.Error(), "Math is not defined") {
		t.Errorf("got %v", err)
	}
}

func TestRunArrowWithEventArgs(t *testing.T) {
	ctx := newContext()
	if _, err := runIn(t, ctx, "let seen = 0; const h = (e) => { seen = e; return e * 2 }"); err != nil {
		t.Fatal(err)
	}
	h, ok := ctx.Lookup("h")
	if !ok {
		t.Fatal("h not found")
	}
	ctx.EventArgs = []object.Object{object.NewNumber(21)}
	val, err := ctx.RunArrow(h)
	if err != nil {
		t.Fatal(err)
	}
	checkValue(t, "h(21)", val, 42.0)
	seen, _ := ctx.Lookup("seen")
	checkValue(t, "seen", seen, 21.0)
}

func TestThreadsAreReleased(t *testing.T) {
	ctx := newContext()
	if _, err := runIn(t, ctx, "const f = (n) => n <= 0 ? 0 : f(n - 1); f(20); [1, 2].map(x => x)"); err != nil {
		t.Fatal(err)
	}
	if n := ctx.threads.live(); n != 1 {
		t.Errorf("%d live threads, want 1", n)
	}
}

func TestQueueInfoAndHook(t *testing.T) {
	ctx := newContext()
	completed := 0
	ctx.OnStatementCompleted = func(*EvaluationContext, ast.Statement) { completed++ }

	program, err := parser.Parse("let a = 1; a = 2; if (a) { a = 3 }")
	if err != nil {
		t.Fatal(err)
	}
	_, info, err := ctx.Run(program.Statements)
	if err != nil {
		t.Fatal(err)
	}
	// let, assignment, if, block, assignment in the block
	if completed != 5 {
		t.Errorf("hook called %d times, want 5", completed)
	}
	if info.MaxBlocks != 2 {
		t.Errorf("MaxBlocks = %d, want 2", info.MaxBlocks)
	}
	if info.ProcessedStatements != 6 {
		t.Errorf("ProcessedStatements = %d, want 6", info.ProcessedStatements)
	}
}

func TestBindFunctionHoisting(t *testing.T) {
	program, err := parser.Parse("const r = twice(4); function twice(n) { return n * 2 }; r")
	if err != nil {
		t.Fatal(err)
	}
	ctx := newContext()
	for _, stmt := range program.Statements {
		if fn, ok := stmt.(*ast.FunctionDeclaration); ok {
			if err := ctx.BindFunction(fn); err != nil {
				t.Fatal(err)
			}
		}
	}
	val, _, err := ctx.Run(program.Statements)
	if err != nil {
		t.Fatal(err)
	}
	checkValue(t, "r", val, 8.0)
}

func TestRunArrowInterleavesWithRun(t *testing.T) {
	ctx := newContext()
	if _, err := runIn(t, ctx, "let i = 0; let k = 0; const o = {}; const h = () => { k++; o['h' + k] = k }"); err != nil {
		t.Fatal(err)
	}
	h, _ := ctx.Lookup("h")
	program, err := parser.Parse("while (i < 20000) { i++; o['m' + i] = i }")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := ctx.Run(program.Statements)
		done <- err
	}()
	const handlers = 2000
	for n := 0; n < handlers; n++ {
		if _, err := ctx.RunArrow(h); err != nil {
			t.Fatal(err)
		}
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	k, _ := ctx.Lookup("k")
	checkValue(t, "k", k, float64(handlers))
	n, err := runIn(t, ctx, "Object.keys(o).length")
	if err != nil {
		t.Fatal(err)
	}
	checkValue(t, "Object.keys(o).length", n, float64(20000+handlers))
}

func TestDelayLetsHandlersRun(t *testing.T) {
	ctx := newContext()
	ctx.AppContext = NewAppContext(nil)
	if _, err := runIn(t, ctx, "let r = 0; let k = 0; const h = () => { k++ }"); err != nil {
		t.Fatal(err)
	}
	h, _ := ctx.Lookup("h")
	program, err := parser.Parse("delay(300); r = k")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := ctx.Run(program.Statements)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	if _, err := ctx.RunArrow(h); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
		t.Fatal("handler waited for the delay to finish")
	default:
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	r, _ := ctx.Lookup("r")
	checkValue(t, "r", r, 1.0)
}
