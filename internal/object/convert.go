package object

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

func IsTruthy(obj Object) bool {
	switch obj := obj.(type) {
	case nil, *Undefined, *Null:
		return false
	case *Boolean:
		return obj.Value
	case *Number:
		return obj.Value != 0 && !math.IsNaN(obj.Value)
	case *BigInt:
		return obj.Value.Sign() != 0
	case *String:
		return obj.Value != ""
	default:
		return true
	}
}

// IsNullish reports whether obj is null or undefined.
func IsNullish(obj Object) bool {
	switch obj.(type) {
	case nil, *Undefined, *Null:
		return true
	}
	return false
}

// TypeOf returns the name the typeof operator yields.
func TypeOf(obj Object) string {
	switch obj.(type) {
	case nil, *Undefined:
		return "undefined"
	case *Number:
		return "number"
	case *BigInt:
		return "bigint"
	case *String:
		return "string"
	case *Boolean:
		return "boolean"
	case *Function, *Builtin:
		return "function"
	default:
		return "object"
	}
}

// StrictEquals compares without conversion. Reference values are equal only
// when they are the same instance.
func StrictEquals(a, b Object) bool {
	if a == nil {
		a = UNDEFINED
	}
	if b == nil {
		b = UNDEFINED
	}
	switch a := a.(type) {
	case *Undefined:
		_, ok := b.(*Undefined)
		return ok
	case *Null:
		_, ok := b.(*Null)
		return ok
	case *Number:
		bn, ok := b.(*Number)
		return ok && a.Value == bn.Value
	case *BigInt:
		bb, ok := b.(*BigInt)
		return ok && a.Value.Cmp(bb.Value) == 0
	case *String:
		bs, ok := b.(*String)
		return ok && a.Value == bs.Value
	case *Boolean:
		bb, ok := b.(*Boolean)
		return ok && a.Value == bb.Value
	}
	return a == b
}

// LooseEquals compares with the usual conversions: null equals undefined,
// booleans and strings compare as numbers against numbers.
func LooseEquals(a, b Object) bool {
	if IsNullish(a) || IsNullish(b) {
		return IsNullish(a) && IsNullish(b)
	}
	if a.Type() == b.Type() {
		return StrictEquals(a, b)
	}
	if ab, ok := a.(*Boolean); ok {
		return LooseEquals(NewNumber(boolToFloat(ab.Value)), b)
	}
	if bb, ok := b.(*Boolean); ok {
		return LooseEquals(a, NewNumber(boolToFloat(bb.Value)))
	}
	switch a := a.(type) {
	case *Number:
		switch b := b.(type) {
		case *String:
			return a.Value == ToNumber(b)
		case *BigInt:
			return bigEqualsFloat(b.Value, a.Value)
		}
	case *String:
		switch b := b.(type) {
		case *Number:
			return ToNumber(a) == b.Value
		case *BigInt:
			v, ok := new(big.Int).SetString(strings.TrimSpace(a.Value), 10)
			return ok && v.Cmp(b.Value) == 0
		}
	case *BigInt:
		switch b := b.(type) {
		case *Number:
			return bigEqualsFloat(a.Value, b.Value)
		case *String:
			return LooseEquals(b, a)
		}
	}
	switch b.(type) {
	case *Number, *String, *BigInt:
		if _, ok := a.(*Array); ok {
			return LooseEquals(NewString(ToString(a)), b)
		}
	}
	switch a.(type) {
	case *Number, *String, *BigInt:
		if _, ok := b.(*Array); ok {
			return LooseEquals(a, NewString(ToString(b)))
		}
	}
	return false
}

func bigEqualsFloat(b *big.Int, f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return false
	}
	bf, _ := new(big.Float).SetInt(b).Float64()
	return bf == f
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ToString converts a value to its string form as string concatenation
// sees it.
func ToString(obj Object) string {
	switch obj := obj.(type) {
	case nil, *Undefined:
		return "undefined"
	case *Null:
		return "null"
	case *String:
		return obj.Value
	case *Number:
		return FormatNumber(obj.Value)
	case *BigInt:
		return obj.Value.String()
	case *Boolean:
		return strconv.FormatBool(obj.Value)
	case *Array:
		parts := make([]string, len(obj.Elements))
		for i, e := range obj.Elements {
			if !IsNullish(e) {
				parts[i] = ToString(e)
			}
		}
		return strings.Join(parts, ",")
	case *Map:
		return "[object Object]"
	case *Error:
		return "Error: " + obj.Message
	default:
		return obj.Inspect()
	}
}

// ToNumber converts a value to a float the way arithmetic operators do.
func ToNumber(obj Object) float64 {
	switch obj := obj.(type) {
	case nil, *Undefined:
		return math.NaN()
	case *Null:
		return 0
	case *Boolean:
		return boolToFloat(obj.Value)
	case *Number:
		return obj.Value
	case *BigInt:
		f, _ := new(big.Float).SetInt(obj.Value).Float64()
		return f
	case *String:
		return parseNumber(obj.Value)
	case *Array:
		switch len(obj.Elements) {
		case 0:
			return 0
		case 1:
			return ToNumber(NewString(ToString(obj.Elements[0])))
		}
	}
	return math.NaN()
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	lower := strings.ToLower(s)
	for prefix, base := range map[string]int{"0x": 16, "0b": 2, "0o": 8} {
		if strings.HasPrefix(lower, prefix) {
			v, ok := new(big.Int).SetString(s[2:], base)
			if !ok {
				return math.NaN()
			}
			f, _ := new(big.Float).SetInt(v).Float64()
			return f
		}
	}
	if strings.ContainsAny(lower, "xn_") || strings.HasPrefix(lower, "inf") ||
		strings.HasPrefix(lower, "+inf") || strings.HasPrefix(lower, "-inf") {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ToInt32 wraps a number into the signed 32-bit range used by bitwise
// operators.
func ToInt32(obj Object) int32 {
	return int32(ToUint32(obj))
}

func ToUint32(obj Object) uint32 {
	f := ToNumber(obj)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	f = math.Mod(f, 1<<32)
	if f < 0 {
		f += 1 << 32
	}
	return uint32(f)
}

// FromGo wraps a host value as a script value.
func FromGo(v any) Object {
	switch v := v.(type) {
	case nil:
		return NULL
	case Object:
		return v
	case bool:
		return NativeBool(v)
	case int:
		return NewNumber(float64(v))
	case int32:
		return NewNumber(float64(v))
	case int64:
		return NewNumber(float64(v))
	case uint8:
		return NewNumber(float64(v))
	case uint16:
		return NewNumber(float64(v))
	case uint32:
		return NewNumber(float64(v))
	case uint64:
		return NewNumber(float64(v))
	case float32:
		return NewNumber(float64(v))
	case float64:
		return NewNumber(v)
	case *big.Int:
		return &BigInt{Value: v}
	case string:
		return NewString(v)
	case []string:
		arr := &Array{Elements: make([]Object, len(v))}
		for i, s := range v {
			arr.Elements[i] = NewString(s)
		}
		return arr
	case []any:
		arr := &Array{Elements: make([]Object, len(v))}
		for i, e := range v {
			arr.Elements[i] = FromGo(e)
		}
		return arr
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, FromGo(v[k]))
		}
		return m
	case error:
		return &Error{Message: v.Error()}
	default:
		return NewString(fmt.Sprint(v))
	}
}

// ToGo unwraps a script value into plain Go data: float64, *big.Int,
// string, bool, nil, []any and map[string]any.
func ToGo(obj Object) any {
	switch obj := obj.(type) {
	case nil, *Undefined, *Null:
		return nil
	case *Number:
		return obj.Value
	case *BigInt:
		return obj.Value
	case *String:
		return obj.Value
	case *Boolean:
		return obj.Value
	case *Array:
		out := make([]any, len(obj.Elements))
		for i, e := range obj.Elements {
			out[i] = ToGo(e)
		}
		return out
	case *Map:
		out := make(map[string]any, obj.Len())
		for _, k := range obj.Keys() {
			v, _ := obj.Get(k)
			out[k] = ToGo(v)
		}
		return out
	case *Error:
		return obj.Message
	default:
		return obj.Inspect()
	}
}
