package evaluator

import (
	"ksx/internal/object"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// getMember reads a property of obj. The reference is nil when the
// property cannot be assigned to.
func (e *Evaluator) getMember(obj object.Object, key string, optional bool) (object.Object, *reference, error) {
	if object.IsNullish(obj) {
		if optional || e.ctx.Options.DefaultToOptionalMemberAccess {
			return object.UNDEFINED, nil, nil
		}
		return nil, nil, newError("Cannot read properties of %s (reading '%s')", obj.Inspect(), key)
	}

	switch o := obj.(type) {
	case *object.Map:
		ref := &reference{kind: refProperty, props: o, key: key}
		if o.Has(key) {
			return ref.get(), ref, nil
		}
		if m := mapMethod(o, key); m != nil {
			return m, ref, nil
		}
		return object.UNDEFINED, ref, nil

	case *object.Array:
		if idx, err := strconv.Atoi(key); err == nil && idx >= 0 {
			ref := &reference{kind: refElement, array: o, index: idx}
			return ref.get(), ref, nil
		}
		if key == "length" {
			return object.NewNumber(float64(len(o.Elements))), nil, nil
		}
		return orUndefined(arrayMethod(o, key)), nil, nil

	case *object.String:
		if idx, err := strconv.Atoi(key); err == nil {
			units := toUnits(o.Value)
			if idx >= 0 && idx < len(units) {
				return object.NewString(fromUnits(units[idx : idx+1])), nil, nil
			}
			return object.UNDEFINED, nil, nil
		}
		if key == "length" {
			return object.NewNumber(float64(unitLength(o.Value))), nil, nil
		}
		return orUndefined(stringMethod(o.Value, key)), nil, nil

	case *object.RegExp:
		switch key {
		case "source":
			return object.NewString(o.Source), nil, nil
		case "flags":
			return object.NewString(o.Flags), nil, nil
		case "global":
			return object.NativeBool(o.Global()), nil, nil
		case "lastIndex":
			return object.NewNumber(float64(o.LastIndex)), nil, nil
		}
		return orUndefined(regexpMethod(o, key)), nil, nil

	case *object.Error:
		switch key {
		case "message":
			return object.NewString(o.Message), nil, nil
		case "name":
			return object.NewString("Error"), nil, nil
		case "toString":
			return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				return object.NewString(object.ToString(o)), nil
			}), nil, nil
		}

	case *object.Number:
		return orUndefined(numberMethod(o.Value, key)), nil, nil

	case *object.BigInt:
		if key == "toString" {
			return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
				base := radixArg(args)
				return object.NewString(o.Value.Text(base)), nil
			}), nil, nil
		}

	case *object.Function:
		if key == "name" {
			return object.NewString(o.Name), nil, nil
		}

	case *object.Builtin:
		if key == "name" {
			return object.NewString(o.Name), nil, nil
		}
	}
	return object.UNDEFINED, nil, nil
}

func method(name string, fn object.BuiltinFunction) *object.Builtin {
	return &object.Builtin{Name: name, Fn: fn}
}

func orUndefined(b *object.Builtin) object.Object {
	if b == nil {
		return object.UNDEFINED
	}
	return b
}

func argAt(args []object.Object, i int) object.Object {
	if i < len(args) {
		return args[i]
	}
	return object.UNDEFINED
}

// intArg reads an integer argument; undefined yields def.
func intArg(args []object.Object, i, def int) int {
	a := argAt(args, i)
	if a == object.UNDEFINED {
		return def
	}
	f := object.ToNumber(a)
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1) || f > math.MaxInt32:
		return math.MaxInt32
	case math.IsInf(f, -1) || f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func radixArg(args []object.Object) int {
	base := intArg(args, 0, 10)
	if base < 2 || base > 36 {
		return 10
	}
	return base
}

// relativeIndex clamps a possibly negative index into [0, n].
func relativeIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			return 0
		}
	}
	if i > n {
		return n
	}
	return i
}

func mapMethod(m *object.Map, key string) *object.Builtin {
	if key != "hasOwnProperty" {
		return nil
	}
	return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
		return object.NativeBool(m.Has(object.ToString(argAt(args, 0)))), nil
	})
}

func numberMethod(n float64, key string) *object.Builtin {
	switch key {
	case "toString":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			base := radixArg(args)
			if base == 10 || n != math.Trunc(n) || math.IsInf(n, 0) {
				return object.NewString(object.FormatNumber(n)), nil
			}
			return object.NewString(strconv.FormatInt(int64(n), base)), nil
		})
	case "toFixed":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			digits := intArg(args, 0, 0)
			if digits < 0 || digits > 100 {
				return nil, newError("toFixed() digits argument must be between 0 and 100")
			}
			return object.NewString(strconv.FormatFloat(n, 'f', digits, 64)), nil
		})
	}
	return nil
}

// Strings are indexed and measured in UTF-16 code units, so a character
// outside the BMP counts twice. A lone surrogate taken out of a pair reads
// back as U+FFFD.

func toUnits(s string) []uint16 { return utf16.Encode([]rune(s)) }

func fromUnits(u []uint16) string { return string(utf16.Decode(u)) }

func unitLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// unitIndex converts a byte offset of s into a code unit index.
func unitIndex(s string, byteOffset int) int {
	if byteOffset < 0 {
		return -1
	}
	return unitLength(s[:byteOffset])
}

// byteOffset converts a code unit index of s into a byte offset. An index
// inside a surrogate pair moves past the pair.
func byteOffset(s string, unit int) int {
	n := 0
	for i, r := range s {
		if n >= unit {
			return i
		}
		n += utf16.RuneLen(r)
	}
	return len(s)
}

func stringMethod(s string, key string) *object.Builtin {
	str := func(f func(args []object.Object) string) *object.Builtin {
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NewString(f(args)), nil
		})
	}
	units := toUnits(s)

	switch key {
	case "toUpperCase":
		return str(func([]object.Object) string { return strings.ToUpper(s) })
	case "toLowerCase":
		return str(func([]object.Object) string { return strings.ToLower(s) })
	case "trim":
		return str(func([]object.Object) string { return strings.TrimSpace(s) })
	case "trimStart":
		return str(func([]object.Object) string { return strings.TrimLeft(s, " \t\r\n\v\f") })
	case "trimEnd":
		return str(func([]object.Object) string { return strings.TrimRight(s, " \t\r\n\v\f") })
	case "toString":
		return str(func([]object.Object) string { return s })
	case "charAt":
		return str(func(args []object.Object) string {
			i := intArg(args, 0, 0)
			if i < 0 || i >= len(units) {
				return ""
			}
			return fromUnits(units[i : i+1])
		})
	case "at":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			i := intArg(args, 0, 0)
			if i < 0 {
				i += len(units)
			}
			if i < 0 || i >= len(units) {
				return object.UNDEFINED, nil
			}
			return object.NewString(fromUnits(units[i : i+1])), nil
		})
	case "charCodeAt":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			i := intArg(args, 0, 0)
			if i < 0 || i >= len(units) {
				return object.NewNumber(math.NaN()), nil
			}
			return object.NewNumber(float64(units[i])), nil
		})
	case "indexOf":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			offset := byteOffset(s, relativeIndex(intArg(args, 1, 0), len(units)))
			i := strings.Index(s[offset:], object.ToString(argAt(args, 0)))
			if i < 0 {
				return object.NewNumber(-1), nil
			}
			return object.NewNumber(float64(unitIndex(s, offset+i))), nil
		})
	case "lastIndexOf":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NewNumber(float64(unitIndex(s, strings.LastIndex(s, object.ToString(argAt(args, 0)))))), nil
		})
	case "includes":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NativeBool(strings.Contains(s, object.ToString(argAt(args, 0)))), nil
		})
	case "startsWith":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NativeBool(strings.HasPrefix(s, object.ToString(argAt(args, 0)))), nil
		})
	case "endsWith":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NativeBool(strings.HasSuffix(s, object.ToString(argAt(args, 0)))), nil
		})
	case "slice":
		return str(func(args []object.Object) string {
			start := relativeIndex(intArg(args, 0, 0), len(units))
			end := relativeIndex(intArg(args, 1, len(units)), len(units))
			if start >= end {
				return ""
			}
			return fromUnits(units[start:end])
		})
	case "substring":
		return str(func(args []object.Object) string {
			clamp := func(i int) int { return max(0, min(i, len(units))) }
			start, end := clamp(intArg(args, 0, 0)), clamp(intArg(args, 1, len(units)))
			if start > end {
				start, end = end, start
			}
			return fromUnits(units[start:end])
		})
	case "padStart", "padEnd":
		return str(func(args []object.Object) string {
			width := intArg(args, 0, 0)
			fill := " "
			if f := argAt(args, 1); f != object.UNDEFINED {
				fill = object.ToString(f)
			}
			missing := width - len(units)
			if missing <= 0 || fill == "" {
				return s
			}
			pad := fromUnits(toUnits(strings.Repeat(fill, missing/unitLength(fill)+1))[:missing])
			if key == "padStart" {
				return pad + s
			}
			return s + pad
		})
	case "repeat":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			n := intArg(args, 0, 0)
			if n < 0 {
				return nil, newError("Invalid count value: %d", n)
			}
			return object.NewString(strings.Repeat(s, n)), nil
		})
	case "concat":
		return str(func(args []object.Object) string {
			var sb strings.Builder
			sb.WriteString(s)
			for _, a := range args {
				sb.WriteString(object.ToString(a))
			}
			return sb.String()
		})
	case "split":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			var parts []string
			switch sep := argAt(args, 0).(type) {
			case *object.Undefined:
				parts = []string{s}
			case *object.RegExp:
				parts = sep.Split(s)
			default:
				parts = strings.Split(s, object.ToString(sep))
			}
			if limit := intArg(args, 1, -1); limit >= 0 && limit < len(parts) {
				parts = parts[:limit]
			}
			elements := make([]object.Object, len(parts))
			for i, p := range parts {
				elements[i] = object.NewString(p)
			}
			return &object.Array{Elements: elements}, nil
		})
	case "replace", "replaceAll":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return replaceString(ctx, s, argAt(args, 0), argAt(args, 1), key == "replaceAll")
		})
	case "match":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			re, ok := argAt(args, 0).(*object.RegExp)
			if !ok {
				var err error
				if re, err = object.NewRegExp(object.ToString(argAt(args, 0)), ""); err != nil {
					return nil, err
				}
			}
			if !re.Global() {
				return re.Exec(s), nil
			}
			matches := re.MatchAll(s)
			if len(matches) == 0 {
				return object.NULL, nil
			}
			elements := make([]object.Object, len(matches))
			for i, m := range matches {
				elements[i] = object.NewString(m)
			}
			return &object.Array{Elements: elements}, nil
		})
	}
	return nil
}

func replaceString(ctx object.CallContext, s string, pattern, replacement object.Object, all bool) (object.Object, error) {
	fn, isFn := replacement.(*object.Function)
	if re, ok := pattern.(*object.RegExp); ok {
		if !isFn {
			return object.NewString(re.Replace(s, object.ToString(replacement))), nil
		}
		out, err := re.ReplaceFunc(s, func(match string) (string, error) {
			res, err := ctx.Call(fn, object.NewString(match))
			if err != nil {
				return "", err
			}
			return object.ToString(res), nil
		})
		if err != nil {
			return nil, err
		}
		return object.NewString(out), nil
	}

	needle := object.ToString(pattern)
	n := 1
	if all {
		n = -1
	}
	if !isFn {
		return object.NewString(strings.Replace(s, needle, object.ToString(replacement), n)), nil
	}
	res, err := ctx.Call(fn, object.NewString(needle))
	if err != nil {
		return nil, err
	}
	return object.NewString(strings.Replace(s, needle, object.ToString(res), n)), nil
}

func regexpMethod(re *object.RegExp, key string) *object.Builtin {
	switch key {
	case "test":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NativeBool(re.Test(object.ToString(argAt(args, 0)))), nil
		})
	case "exec":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return re.Exec(object.ToString(argAt(args, 0))), nil
		})
	case "toString":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.NewString(re.Inspect()), nil
		})
	}
	return nil
}

func arrayMethod(arr *object.Array, key string) *object.Builtin {
	// each calls fn with (element, index, array) and stops when visit says so
	each := func(ctx object.CallContext, fn object.Object, visit func(i int, el, res object.Object) bool) error {
		for i := 0; i < len(arr.Elements); i++ {
			el := arr.Elements[i]
			res, err := ctx.Call(fn, el, object.NewNumber(float64(i)), arr)
			if err != nil {
				return err
			}
			if !visit(i, el, res) {
				return nil
			}
		}
		return nil
	}

	switch key {
	case "push":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			arr.Elements = append(arr.Elements, args...)
			return object.NewNumber(float64(len(arr.Elements))), nil
		})
	case "pop":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			n := len(arr.Elements)
			if n == 0 {
				return object.UNDEFINED, nil
			}
			last := arr.Elements[n-1]
			arr.Elements = arr.Elements[:n-1]
			return last, nil
		})
	case "shift":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			if len(arr.Elements) == 0 {
				return object.UNDEFINED, nil
			}
			first := arr.Elements[0]
			arr.Elements = arr.Elements[1:]
			return first, nil
		})
	case "unshift":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			arr.Elements = append(append([]object.Object{}, args...), arr.Elements...)
			return object.NewNumber(float64(len(arr.Elements))), nil
		})
	case "slice":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			n := len(arr.Elements)
			start := relativeIndex(intArg(args, 0, 0), n)
			end := relativeIndex(intArg(args, 1, n), n)
			out := []object.Object{}
			if start < end {
				out = append(out, arr.Elements[start:end]...)
			}
			return &object.Array{Elements: out}, nil
		})
	case "splice":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			n := len(arr.Elements)
			start := relativeIndex(intArg(args, 0, 0), n)
			count := max(0, min(intArg(args, 1, n-start), n-start))
			removed := append([]object.Object{}, arr.Elements[start:start+count]...)
			var items []object.Object
			if len(args) > 2 {
				items = args[2:]
			}
			rest := append(append([]object.Object{}, items...), arr.Elements[start+count:]...)
			arr.Elements = append(arr.Elements[:start], rest...)
			return &object.Array{Elements: removed}, nil
		})
	case "indexOf", "includes":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			needle := argAt(args, 0)
			found := -1
			for i, el := range arr.Elements {
				if object.StrictEquals(el, needle) {
					found = i
					break
				}
			}
			if key == "includes" {
				return object.NativeBool(found >= 0), nil
			}
			return object.NewNumber(float64(found)), nil
		})
	case "join":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			sep := ","
			if a := argAt(args, 0); a != object.UNDEFINED {
				sep = object.ToString(a)
			}
			parts := make([]string, len(arr.Elements))
			for i, el := range arr.Elements {
				if !object.IsNullish(el) {
					parts[i] = object.ToString(el)
				}
			}
			return object.NewString(strings.Join(parts, sep)), nil
		})
	case "concat":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			out := append([]object.Object{}, arr.Elements...)
			for _, a := range args {
				if other, ok := a.(*object.Array); ok {
					out = append(out, other.Elements...)
				} else {
					out = append(out, a)
				}
			}
			return &object.Array{Elements: out}, nil
		})
	case "reverse":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			for i, j := 0, len(arr.Elements)-1; i < j; i, j = i+1, j-1 {
				arr.Elements[i], arr.Elements[j] = arr.Elements[j], arr.Elements[i]
			}
			return arr, nil
		})
	case "at":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			i := intArg(args, 0, 0)
			if i < 0 {
				i += len(arr.Elements)
			}
			if i < 0 || i >= len(arr.Elements) {
				return object.UNDEFINED, nil
			}
			return arr.Elements[i], nil
		})
	case "forEach":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return object.UNDEFINED, each(ctx, argAt(args, 0), func(int, object.Object, object.Object) bool { return true })
		})
	case "map":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			out := make([]object.Object, 0, len(arr.Elements))
			err := each(ctx, argAt(args, 0), func(_ int, _, res object.Object) bool {
				out = append(out, res)
				return true
			})
			return &object.Array{Elements: out}, err
		})
	case "filter":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			out := []object.Object{}
			err := each(ctx, argAt(args, 0), func(_ int, el, res object.Object) bool {
				if object.IsTruthy(res) {
					out = append(out, el)
				}
				return true
			})
			return &object.Array{Elements: out}, err
		})
	case "find", "findIndex":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			var found object.Object = object.UNDEFINED
			index := -1
			err := each(ctx, argAt(args, 0), func(i int, el, res object.Object) bool {
				if object.IsTruthy(res) {
					found, index = el, i
					return false
				}
				return true
			})
			if key == "findIndex" {
				return object.NewNumber(float64(index)), err
			}
			return found, err
		})
	case "some", "every":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			want := key == "some"
			result := !want
			err := each(ctx, argAt(args, 0), func(_ int, _, res object.Object) bool {
				if object.IsTruthy(res) == want {
					result = want
					return false
				}
				return true
			})
			return object.NativeBool(result), err
		})
	case "reduce":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			fn := argAt(args, 0)
			start := 0
			var acc object.Object
			if len(args) > 1 {
				acc = args[1]
			} else {
				if len(arr.Elements) == 0 {
					return nil, newError("Reduce of empty array with no initial value")
				}
				acc, start = arr.Elements[0], 1
			}
			for i := start; i < len(arr.Elements); i++ {
				res, err := ctx.Call(fn, acc, arr.Elements[i], object.NewNumber(float64(i)), arr)
				if err != nil {
					return nil, err
				}
				acc = res
			}
			return acc, nil
		})
	case "sort":
		return method(key, func(ctx object.CallContext, args ...object.Object) (object.Object, error) {
			return arr, sortArray(ctx, arr, argAt(args, 0))
		})
	}
	return nil
}

// sortArray sorts in place by the comparator, or by string form when none
// is given. Undefined elements go last.
func sortArray(ctx object.CallContext, arr *object.Array, cmp object.Object) error {
	var err error
	less := func(a, b object.Object) bool {
		if a == object.UNDEFINED || b == object.UNDEFINED {
			return b == object.UNDEFINED && a != object.UNDEFINED
		}
		if object.IsNullish(cmp) {
			return object.ToString(a) < object.ToString(b)
		}
		if err != nil {
			return false
		}
		res, callErr := ctx.Call(cmp, a, b)
		if callErr != nil {
			err = callErr
			return false
		}
		return object.ToNumber(res) < 0
	}
	sort.SliceStable(arr.Elements, func(i, j int) bool {
		return less(arr.Elements[i], arr.Elements[j])
	})
	return err
}
