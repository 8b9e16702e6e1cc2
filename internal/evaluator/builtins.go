package evaluator

import (
	"bytes"
	"encoding/json"
	"ksx/internal/object"
	"ksx/internal/output"
	"maps"
	"math"
	"math/big"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"time"
)

var builtins = map[string]*object.Builtin{
	"parseInt":   funcParseInt(),
	"parseFloat": funcParseFloat(),
	"isNaN":      funcIsNaN(),
	"isFinite":   funcIsFinite(),

	// conversions
	"String":  funcString(),
	"Number":  funcNumber(),
	"Boolean": funcBoolean(),
	"BigInt":  funcBigInt(),
	"Error":   funcError(),
}

// NewGlobalScope builds the last-resort scope layer: the builtin functions
// plus fresh Math, JSON, Object, Array and console objects. console writes
// to sink.
func NewGlobalScope(sink output.Sink) *object.Map {
	if sink == nil {
		sink = output.Discard
	}
	g := object.NewMap()
	for _, name := range slices.Sorted(maps.Keys(builtins)) {
		g.Set(name, builtins[name])
	}
	g.Set("Math", mathObject())
	g.Set("JSON", jsonObject())
	g.Set("Object", objectObject())
	g.Set("Array", arrayObject())
	g.Set("console", consoleObject(sink))
	return g
}

func newObject(fns map[string]*object.Builtin) *object.Map {
	m := object.NewMap()
	for _, name := range slices.Sorted(maps.Keys(fns)) {
		fn := fns[name]
		if fn.Name == "" {
			fn.Name = name
		}
		m.Set(name, fn)
	}
	return m
}

func funcParseInt() *object.Builtin {
	return &object.Builtin{
		Name: "parseInt",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			if len(args) < 1 {
				return nil, newError("wrong number of arguments. got=%d, want=1+",
					len(args))
			}
			s := strings.TrimSpace(object.ToString(args[0]))
			base := intArg(args, 1, 0)
			sign := ""
			if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
				sign, s = s[:1], s[1:]
			}
			lower := strings.ToLower(s)
			if (base == 0 || base == 16) && strings.HasPrefix(lower, "0x") {
				s, base = s[2:], 16
			}
			if base == 0 {
				base = 10
			}
			if base < 2 || base > 36 {
				return object.NewNumber(math.NaN()), nil
			}
			end := 0
			for end < len(s) {
				d := digitValue(s[end])
				if d < 0 || d >= base {
					break
				}
				end++
			}
			if end == 0 {
				return object.NewNumber(math.NaN()), nil
			}
			v, ok := new(big.Int).SetString(sign+s[:end], base)
			if !ok {
				return object.NewNumber(math.NaN()), nil
			}
			f, _ := new(big.Float).SetInt(v).Float64()
			return object.NewNumber(f), nil
		},
	}
}

func digitValue(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'z':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'Z':
		return int(c-'A') + 10
	}
	return -1
}

func funcParseFloat() *object.Builtin {
	return &object.Builtin{
		Name: "parseFloat",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			if len(args) != 1 {
				return nil, newError("wrong number of arguments. got=%d, want=1",
					len(args))
			}
			s := strings.TrimSpace(object.ToString(args[0]))
			// longest prefix that parses
			for end := len(s); end > 0; end-- {
				prefix := s[:end]
				if strings.ContainsAny(prefix, "xXnN_") {
					continue
				}
				if f, err := strconv.ParseFloat(prefix, 64); err == nil {
					return object.NewNumber(f), nil
				}
			}
			return object.NewNumber(math.NaN()), nil
		},
	}
}

func funcIsNaN() *object.Builtin {
	return &object.Builtin{
		Name: "isNaN",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NativeBool(math.IsNaN(object.ToNumber(argAt(args, 0)))), nil
		},
	}
}

func funcIsFinite() *object.Builtin {
	return &object.Builtin{
		Name: "isFinite",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			f := object.ToNumber(argAt(args, 0))
			return object.NativeBool(!math.IsNaN(f) && !math.IsInf(f, 0)), nil
		},
	}
}

func funcString() *object.Builtin {
	return &object.Builtin{
		Name: "String",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			if len(args) == 0 {
				return object.NewString(""), nil
			}
			return object.NewString(object.ToString(args[0])), nil
		},
	}
}

func funcNumber() *object.Builtin {
	return &object.Builtin{
		Name: "Number",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			if len(args) == 0 {
				return object.NewNumber(0), nil
			}
			return object.NewNumber(object.ToNumber(args[0])), nil
		},
	}
}

func funcBoolean() *object.Builtin {
	return &object.Builtin{
		Name: "Boolean",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NativeBool(object.IsTruthy(argAt(args, 0))), nil
		},
	}
}

func funcBigInt() *object.Builtin {
	return &object.Builtin{
		Name: "BigInt",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			if len(args) != 1 {
				return nil, newError("wrong number of arguments. got=%d, want=1",
					len(args))
			}
			switch a := args[0].(type) {
			case *object.BigInt:
				return a, nil
			case *object.Number:
				if a.Value != math.Trunc(a.Value) || math.IsInf(a.Value, 0) {
					return nil, newError("The number %s cannot be converted to a BigInt because it is not an integer",
						object.FormatNumber(a.Value))
				}
				v, _ := big.NewFloat(a.Value).Int(nil)
				return &object.BigInt{Value: v}, nil
			case *object.Boolean:
				if a.Value {
					return &object.BigInt{Value: big.NewInt(1)}, nil
				}
				return &object.BigInt{Value: big.NewInt(0)}, nil
			case *object.String:
				v, ok := new(big.Int).SetString(strings.TrimSpace(a.Value), 0)
				if !ok {
					return nil, newError("Cannot convert %s to a BigInt", a.Value)
				}
				return &object.BigInt{Value: v}, nil
			}
			return nil, newError("Cannot convert %s to a BigInt", args[0].Inspect())
		},
	}
}

func funcError() *object.Builtin {
	return &object.Builtin{
		Name: "Error",
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			msg := ""
			if len(args) > 0 && args[0] != object.UNDEFINED {
				msg = object.ToString(args[0])
			}
			return &object.Error{Message: msg}, nil
		},
	}
}

// numberFunc wraps a float function of one argument.
func numberFunc(f func(float64) float64) *object.Builtin {
	return &object.Builtin{
		Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NewNumber(f(object.ToNumber(argAt(args, 0)))), nil
		},
	}
}

func mathObject() *object.Map {
	m := newObject(map[string]*object.Builtin{
		"abs":   numberFunc(math.Abs),
		"floor": numberFunc(math.Floor),
		"ceil":  numberFunc(math.Ceil),
		"trunc": numberFunc(math.Trunc),
		"sqrt":  numberFunc(math.Sqrt),
		"cbrt":  numberFunc(math.Cbrt),
		"sin":   numberFunc(math.Sin),
		"cos":   numberFunc(math.Cos),
		"tan":   numberFunc(math.Tan),
		"atan":  numberFunc(math.Atan),
		"exp":   numberFunc(math.Exp),
		"log":   numberFunc(math.Log),
		"log2":  numberFunc(math.Log2),
		"log10": numberFunc(math.Log10),
		"sign": numberFunc(func(f float64) float64 {
			switch {
			case f > 0:
				return 1
			case f < 0:
				return -1
			}
			return f
		}),
		// halves round towards +Infinity
		"round": numberFunc(func(f float64) float64 { return math.Floor(f + 0.5) }),
		"pow": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				return object.NewNumber(pow(object.ToNumber(argAt(args, 0)), object.ToNumber(argAt(args, 1)))), nil
			},
		},
		"atan2": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				return object.NewNumber(math.Atan2(object.ToNumber(argAt(args, 0)), object.ToNumber(argAt(args, 1)))), nil
			},
		},
		"min": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				return object.NewNumber(extremum(args, math.Inf(1), math.Min)), nil
			},
		},
		"max": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				return object.NewNumber(extremum(args, math.Inf(-1), math.Max)), nil
			},
		},
		"random": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				return object.NewNumber(rand.Float64()), nil
			},
		},
	})
	m.Set("PI", object.NewNumber(math.Pi))
	m.Set("E", object.NewNumber(math.E))
	return m
}

func extremum(args []object.Object, start float64, pick func(a, b float64) float64) float64 {
	r := start
	for _, a := range args {
		f := object.ToNumber(a)
		if math.IsNaN(f) {
			return f
		}
		r = pick(r, f)
	}
	return r
}

func objectObject() *object.Map {
	return newObject(map[string]*object.Builtin{
		"keys": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				keys := ownKeys(argAt(args, 0))
				elements := make([]object.Object, len(keys))
				for i, k := range keys {
					elements[i] = object.NewString(k)
				}
				return &object.Array{Elements: elements}, nil
			},
		},
		"values": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				m, ok := argAt(args, 0).(*object.Map)
				if !ok {
					return &object.Array{}, nil
				}
				var elements []object.Object
				for _, k := range m.Keys() {
					v, _ := m.Get(k)
					elements = append(elements, v)
				}
				return &object.Array{Elements: elements}, nil
			},
		},
		"entries": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				m, ok := argAt(args, 0).(*object.Map)
				if !ok {
					return &object.Array{}, nil
				}
				var elements []object.Object
				for _, k := range m.Keys() {
					v, _ := m.Get(k)
					elements = append(elements, &object.Array{Elements: []object.Object{object.NewString(k), v}})
				}
				return &object.Array{Elements: elements}, nil
			},
		},
		"assign": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				target, ok := argAt(args, 0).(*object.Map)
				if !ok {
					return nil, newError("Object.assign target must be an object")
				}
				for _, src := range args[1:] {
					if m, ok := src.(*object.Map); ok {
						for _, k := range m.Keys() {
							v, _ := m.Get(k)
							target.Set(k, v)
						}
					}
				}
				return target, nil
			},
		},
	})
}

func ownKeys(obj object.Object) []string {
	switch o := obj.(type) {
	case *object.Map:
		return o.Keys()
	case *object.Array:
		keys := make([]string, len(o.Elements))
		for i := range o.Elements {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}
	return nil
}

func arrayObject() *object.Map {
	return newObject(map[string]*object.Builtin{
		"isArray": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				_, ok := argAt(args, 0).(*object.Array)
				return object.NativeBool(ok), nil
			},
		},
		"of": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				return &object.Array{Elements: append([]object.Object{}, args...)}, nil
			},
		},
	})
}

func jsonObject() *object.Map {
	return newObject(map[string]*object.Builtin{
		"parse": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				if len(args) < 1 {
					return nil, newError("wrong number of arguments. got=%d, want=1",
						len(args))
				}
				dec := json.NewDecoder(strings.NewReader(object.ToString(args[0])))
				var v any
				if err := dec.Decode(&v); err != nil {
					return nil, newError("JSON.parse: %s", err)
				}
				return object.FromGo(v), nil
			},
		},
		"stringify": {
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				indent := ""
				switch sp := argAt(args, 2).(type) {
				case *object.Number:
					indent = strings.Repeat(" ", max(0, min(int(sp.Value), 10)))
				case *object.String:
					indent = sp.Value
				}
				var buf bytes.Buffer
				if !writeJSON(&buf, argAt(args, 0), indent, "") {
					return object.UNDEFINED, nil
				}
				return object.NewString(buf.String()), nil
			},
		},
	})
}

// writeJSON encodes obj keeping object key order. It reports false for
// values JSON cannot represent at the top level.
func writeJSON(buf *bytes.Buffer, obj object.Object, indent, prefix string) bool {
	newline := func(p string) {
		if indent != "" {
			buf.WriteByte('\n')
			buf.WriteString(p)
		}
	}
	switch o := obj.(type) {
	case *object.Null:
		buf.WriteString("null")
	case *object.Boolean:
		buf.WriteString(strconv.FormatBool(o.Value))
	case *object.Number:
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			buf.WriteString("null")
		} else {
			buf.WriteString(object.FormatNumber(o.Value))
		}
	case *object.String:
		b, _ := json.Marshal(o.Value)
		buf.Write(b)
	case *object.Array:
		buf.WriteByte('[')
		for i, el := range o.Elements {
			if i > 0 {
				buf.WriteByte(',')
			}
			newline(prefix + indent)
			if !writeJSON(buf, el, indent, prefix+indent) {
				buf.WriteString("null")
			}
		}
		if len(o.Elements) > 0 {
			newline(prefix)
		}
		buf.WriteByte(']')
	case *object.Map:
		buf.WriteByte('{')
		n := 0
		for _, k := range o.Keys() {
			v, _ := o.Get(k)
			switch v.(type) {
			case *object.Undefined, *object.Function, *object.Builtin:
				continue
			}
			if n > 0 {
				buf.WriteByte(',')
			}
			newline(prefix + indent)
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			if indent != "" {
				buf.WriteByte(' ')
			}
			writeJSON(buf, v, indent, prefix+indent)
			n++
		}
		if n > 0 {
			newline(prefix)
		}
		buf.WriteByte('}')
	case *object.Error:
		buf.WriteString("{}")
	case *object.BigInt:
		buf.WriteString(o.Value.String())
	default:
		return false
	}
	return true
}

// consoleObject writes its arguments, separated by blanks, to sink.
func consoleObject(sink output.Sink) *object.Map {
	line := func(color string) *object.Builtin {
		return &object.Builtin{
			Fn: func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				parts := make([]string, len(args))
				for i, a := range args {
					parts[i] = displayString(a)
				}
				if color == "" {
					sink.WriteLine(strings.Join(parts, " "))
					return object.UNDEFINED, nil
				}
				sink.PushStyle()
				sink.Color(color)
				sink.WriteLine(strings.Join(parts, " "))
				sink.PopStyle()
				return object.UNDEFINED, nil
			},
		}
	}
	return newObject(map[string]*object.Builtin{
		"log":   line(""),
		"info":  line(""),
		"debug": line("gray"),
		"warn":  line("yellow"),
		"error": line("red"),
	})
}

// displayString shows strings raw and everything else in its inspected
// form.
func displayString(obj object.Object) string {
	if s, ok := obj.(*object.String); ok {
		return s.Value
	}
	return obj.Inspect()
}

// sleep pauses for ms milliseconds or until ctx is cancelled.
func sleep(ctx object.CallContext, ms float64) error {
	if math.IsNaN(ms) || ms <= 0 {
		return nil
	}
	if ev, ok := ctx.(*Evaluator); ok {
		resume := ev.suspend()
		defer resume()
	}
	timer := time.NewTimer(time.Duration(ms * float64(time.Millisecond)))
	defer timer.Stop()
	select {
	case <-ctx.Context().Done():
		return ErrCancelled
	case <-timer.C:
		return nil
	}
}
