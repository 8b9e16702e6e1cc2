package repl

import (
	"context"
	"errors"
	"ksx/internal/evaluator"
	"ksx/internal/object"
	"ksx/internal/output"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIncomplete(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"", false},
		{"let x = 1;", false},
		{"1 +", true},
		{"function f() {", true},
		{"if (x) {\n  y();", true},
		{"[1, 2", true},
		{"foo(", true},
		{"let = 1;", false},
		{"function f() {\n  return 1;\n}", false},
	}
	for _, tt := range tests {
		if got := Incomplete(tt.input); got != tt.expected {
			t.Errorf("Incomplete(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func eval(t *testing.T, s *Session, src string) object.Object {
	t.Helper()
	val, err := s.Eval(context.Background(), src)
	if err != nil {
		t.Fatalf("%q: %v", src, err)
	}
	return val
}

func TestSessionKeepsBindings(t *testing.T) {
	s := NewSession(output.NewBuffer(), t.TempDir(), nil)

	tests := []struct {
		input    string
		expected string
	}{
		{"let x = 20;", "undefined"},
		{"x + 1", "21"},
		{"function dbl(n) { return n * 2; }", "undefined"},
		{"dbl(x)", "40"},
		{"x = 3; x * x", "9"},
		{"let y = 2;", "undefined"},
	}
	for _, tt := range tests {
		if got := eval(t, s, tt.input).Inspect(); got != tt.expected {
			t.Errorf("%q = %s, want %s", tt.input, got, tt.expected)
		}
	}
	if y, ok := s.Lookup("y"); !ok || y.Inspect() != "2" {
		t.Errorf("y = %v", y)
	}
}

func TestSessionImportsFromRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.ksx"), []byte("export const base = 10;"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewSession(output.NewBuffer(), dir, nil)
	eval(t, s, "import { base } from 'lib';")
	if got := eval(t, s, "base + 1").Inspect(); got != "11" {
		t.Errorf("base + 1 = %s", got)
	}
}

func TestSessionExtensions(t *testing.T) {
	ext := object.NewMap()
	ext.Set("answer", object.NewNumber(42))
	s := NewSession(output.NewBuffer(), t.TempDir(), map[string]object.Object{"Host": ext})
	if got := eval(t, s, "Host.answer").Inspect(); got != "42" {
		t.Errorf("Host.answer = %s", got)
	}
}

func TestRun(t *testing.T) {
	buf := output.NewBuffer()
	s := NewSession(buf, t.TempDir(), nil)
	ctx := context.Background()

	if !s.Run(ctx, "Output.writeLine('hi'); 1 + 2") {
		t.Fatal("session ended")
	}
	if !s.Run(ctx, "nope") {
		t.Fatal("session ended on error")
	}
	if !s.Run(ctx, ":help") {
		t.Fatal("session ended on :help")
	}
	if s.Run(ctx, ":quit") {
		t.Error(":quit did not end the session")
	}

	lines := buf.Lines()
	if len(lines) < 4 || lines[0] != "hi" || lines[1] != "3" {
		t.Fatalf("output %q", lines)
	}
	if !strings.Contains(buf.String(), "^ nope is not defined") {
		t.Errorf("error not shown: %q", buf.String())
	}
}

func TestEvalCancelled(t *testing.T) {
	s := NewSession(output.NewBuffer(), t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Eval(ctx, "let z = 1;"); !errors.Is(err, evaluator.ErrCancelled) {
		t.Fatalf("err = %v", err)
	}
	if got := eval(t, s, "1 + 1").Inspect(); got != "2" {
		t.Errorf("after cancel got %s", got)
	}
}

func TestDescribe(t *testing.T) {
	s := NewSession(output.NewBuffer(), t.TempDir(), nil)

	src := "let a = 1;\nmissing + a;"
	_, err := s.Eval(context.Background(), src)
	if err == nil {
		t.Fatal("expected an error")
	}
	got := Describe(src, err)
	if !strings.Contains(got, "  2 | missing + a;") || !strings.Contains(got, "^ missing is not defined") {
		t.Errorf("runtime error rendered as %q", got)
	}

	src = "import { x } from 'nowhere';"
	_, err = s.Eval(context.Background(), src)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if got := Describe(src, err); !strings.Contains(got, "^ K025") {
		t.Errorf("compile error rendered as %q", got)
	}
}
