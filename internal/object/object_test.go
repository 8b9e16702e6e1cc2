package object

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/big"
	"testing"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{14, "14"},
		{-3, "-3"},
		{0.5, "0.5"},
		{1e21, "1e+21"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.input); got != tt.expected {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		input    Object
		expected bool
	}{
		{UNDEFINED, false},
		{NULL, false},
		{NewNumber(0), false},
		{NewNumber(math.NaN()), false},
		{NewNumber(2), true},
		{NewString(""), false},
		{NewString("a"), true},
		{&BigInt{Value: big.NewInt(0)}, false},
		{NewMap(), true},
		{&Array{}, true},
	}
	for _, tt := range tests {
		if got := IsTruthy(tt.input); got != tt.expected {
			t.Errorf("IsTruthy(%s) = %v, want %v", tt.input.Inspect(), got, tt.expected)
		}
	}
}

func TestEquality(t *testing.T) {
	arr := &Array{}
	tests := []struct {
		a, b   Object
		strict bool
		loose  bool
	}{
		{NewNumber(1), NewNumber(1), true, true},
		{NewNumber(1), NewString("1"), false, true},
		{NULL, UNDEFINED, false, true},
		{NewNumber(0), NULL, false, false},
		{TRUE, NewNumber(1), false, true},
		{arr, arr, true, true},
		{arr, &Array{}, false, false},
		{NewNumber(math.NaN()), NewNumber(math.NaN()), false, false},
		{&BigInt{Value: big.NewInt(5)}, NewNumber(5), false, true},
	}
	for _, tt := range tests {
		if got := StrictEquals(tt.a, tt.b); got != tt.strict {
			t.Errorf("StrictEquals(%s, %s) = %v", tt.a.Inspect(), tt.b.Inspect(), got)
		}
		if got := LooseEquals(tt.a, tt.b); got != tt.loose {
			t.Errorf("LooseEquals(%s, %s) = %v", tt.a.Inspect(), tt.b.Inspect(), got)
		}
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"", 0},
		{" 12 ", 12},
		{"0x10", 16},
		{"1.5e2", 150},
		{"-Infinity", math.Inf(-1)},
	}
	for _, tt := range tests {
		if got := ToNumber(NewString(tt.input)); got != tt.expected {
			t.Errorf("ToNumber(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
	if !math.IsNaN(ToNumber(NewString("abc"))) {
		t.Errorf("ToNumber(\"abc\") should be NaN")
	}
}

func TestToInt32(t *testing.T) {
	if got := ToInt32(NewNumber(4294967295)); got != -1 {
		t.Errorf("ToInt32(2^32-1) = %d, want -1", got)
	}
	if got := ToInt32(NewNumber(-5.7)); got != -5 {
		t.Errorf("ToInt32(-5.7) = %d, want -5", got)
	}
}

func TestMapKeepsInsertionOrder(t *testing.T) {
	m := NewMap()
	m.Set("b", NewNumber(1))
	m.Set("a", NewNumber(2))
	m.Set("b", NewNumber(3))
	if m.Inspect() != "{b: 3, a: 2}" {
		t.Errorf("unexpected map: %s", m.Inspect())
	}
	m.Delete("b")
	if keys := m.Keys(); len(keys) != 1 || keys[0] != "a" {
		t.Errorf("unexpected keys after delete: %v", keys)
	}
}

func TestBlockScope(t *testing.T) {
	b := NewBlockScope()
	if err := b.Declare("x", NewNumber(1), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Declare("x", NewNumber(2), false); err == nil {
		t.Errorf("expected redeclaration error")
	}
	if err := b.Declare("c", NewNumber(1), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Assign("x", NewNumber(5)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := b.Assign("c", NewNumber(5)); !errors.Is(err, ErrConstAssignment) {
		t.Errorf("expected const error, got %v", err)
	}
	if v, _ := b.Get("x"); ToNumber(v) != 5 {
		t.Errorf("x = %s, want 5", v.Inspect())
	}
}

func TestRegExp(t *testing.T) {
	re, err := NewRegExp("a(b+)", "g")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !re.Test("xabbby") {
		t.Errorf("expected a match")
	}
	if re.LastIndex != 5 {
		t.Errorf("LastIndex = %d, want 5", re.LastIndex)
	}
	if re.Test("xabbby") {
		t.Errorf("global search should continue after the last match")
	}
	if got := re.Replace("ab-abb", "<$1>"); got != "<b>-<bb>" {
		t.Errorf("Replace = %q", got)
	}

	ci, _ := NewRegExp("abc", "i")
	if got := ci.Replace("xABCabc", "-"); got != "x-abc" {
		t.Errorf("Replace = %q", got)
	}

	if _, err := CompileRegExp("(", ""); err == nil {
		t.Errorf("expected compile error")
	}
}

func TestFromGoRoundTrip(t *testing.T) {
	v := FromGo(map[string]any{"b": []any{1, "x"}, "a": true})
	m, ok := v.(*Map)
	if !ok {
		t.Fatalf("expected map, got %T", v)
	}
	if m.Inspect() != `{a: true, b: [1, "x"]}` {
		t.Errorf("unexpected value: %s", m.Inspect())
	}
	back := ToGo(m).(map[string]any)
	if back["a"] != true {
		t.Errorf("unexpected round trip: %v", back)
	}
}

func TestBindingDoesNotLog(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	b := NewBlockScope()
	for i := 0; i < 100; i++ {
		b.Bind("i", NewNumber(float64(i)), false)
	}
	if err := b.Declare("c", NewString("x"), true); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Get("i"); v.(*Number).Value != 99 {
		t.Errorf("i = %s", v.Inspect())
	}
	if logs.Len() != 0 {
		t.Errorf("binding wrote logs: %s", logs.String())
	}
}
