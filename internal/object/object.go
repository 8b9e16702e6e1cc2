package object

import (
	"context"
	"fmt"
	"ksx/internal/ast"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/coregx/coregex"
)

const (
	UNDEFINED_OBJ = "undefined"
	NULL_OBJ      = "null"
	NUMBER_OBJ    = "number"
	BIGINT_OBJ    = "bigint"
	STRING_OBJ    = "string"
	BOOLEAN_OBJ   = "boolean"
	MAP_OBJ       = "object"
	ARRAY_OBJ     = "array"
	FUNCTION_OBJ  = "function"
	BUILTIN_OBJ   = "builtin"
	REGEXP_OBJ    = "regexp"
	ERROR_OBJ     = "error"
)

var (
	UNDEFINED = &Undefined{}
	NULL      = &Null{}
	TRUE      = &Boolean{Value: true}
	FALSE     = &Boolean{Value: false}
)

type ObjectType string

type Object interface {
	Type() ObjectType
	Inspect() string
}

// CallContext is the bridge native functions use to reach the running
// evaluation, such as invoking a script callback.
type CallContext interface {
	Context() context.Context
	Call(fn Object, args ...Object) (Object, error)
}

type BuiltinFunction func(ctx CallContext, args ...Object) (Object, error)

type Undefined struct{}

func (u *Undefined) Type() ObjectType { return UNDEFINED_OBJ }
func (u *Undefined) Inspect() string  { return "undefined" }

type Null struct{}

func (n *Null) Type() ObjectType { return NULL_OBJ }
func (n *Null) Inspect() string  { return "null" }

type Number struct {
	Value float64
}

func (n *Number) Type() ObjectType { return NUMBER_OBJ }
func (n *Number) Inspect() string  { return FormatNumber(n.Value) }

type BigInt struct {
	Value *big.Int
}

func (b *BigInt) Type() ObjectType { return BIGINT_OBJ }
func (b *BigInt) Inspect() string  { return b.Value.String() + "n" }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return strconv.Quote(s.Value) }

// Map is a script object. Keys keep their insertion order.
type Map struct {
	keys   []string
	values map[string]Object
}

func NewMap() *Map {
	return &Map{values: map[string]Object{}}
}

func (m *Map) Type() ObjectType { return MAP_OBJ }
func (m *Map) Inspect() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range m.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(m.values[k].Inspect())
	}
	sb.WriteString("}")
	return sb.String()
}

func (m *Map) Get(key string) (Object, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

func (m *Map) Set(key string, value Object) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Map) Delete(key string) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *Map) Len() int { return len(m.keys) }

type Array struct {
	Elements []Object
}

func (a *Array) Type() ObjectType { return ARRAY_OBJ }
func (a *Array) Inspect() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Function is an arrow function value bound to the scopes visible where it
// was created.
type Function struct {
	Name     string
	Arrow    *ast.ArrowExpression
	Closures []*BlockScope
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }
func (f *Function) Inspect() string {
	if f.Name != "" {
		return fmt.Sprintf("[function %s]", f.Name)
	}
	return "[function]"
}

// Builtin is a function implemented by the host. A banned builtin cannot be
// called by scripts; Help tells the user what to use instead.
type Builtin struct {
	Name   string
	Fn     BuiltinFunction
	Banned bool
	Help   string
}

func (b *Builtin) Type() ObjectType { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string  { return fmt.Sprintf("[native %s]", b.Name) }

type RegExp struct {
	Source    string
	Flags     string
	Re        *coregex.Regexp
	LastIndex int
}

func (r *RegExp) Type() ObjectType { return REGEXP_OBJ }
func (r *RegExp) Inspect() string  { return "/" + r.Source + "/" + r.Flags }

func (r *RegExp) Global() bool { return strings.ContainsRune(r.Flags, 'g') }

// Error is the value a catch clause receives for a runtime fault.
type Error struct {
	Message string
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }
func (e *Error) Inspect() string  { return "Error: " + e.Message }

func NativeBool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

func NewNumber(f float64) *Number { return &Number{Value: f} }

func NewString(s string) *String { return &String{Value: s} }

// FormatNumber renders a float the way scripts print numbers.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
