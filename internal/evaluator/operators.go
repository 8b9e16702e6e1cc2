package evaluator

import (
	"ksx/internal/ast"
	"ksx/internal/object"
	"ksx/internal/token"
	"math"
	"math/big"
	"strconv"
)

var compoundOperators = map[token.TokenType]token.TokenType{
	token.AddAssignment:              token.Plus,
	token.SubtractAssignment:         token.Minus,
	token.MultiplyAssignment:         token.Multiply,
	token.DivideAssignment:           token.Divide,
	token.RemainderAssignment:        token.Remainder,
	token.ExponentAssignment:         token.Exponent,
	token.LeftShiftAssignment:        token.LeftShift,
	token.SignedShiftRightAssignment: token.SignedShiftRight,
	token.ShiftRightAssignment:       token.ShiftRight,
	token.BinaryAndAssignment:        token.BinaryAnd,
	token.BinaryOrAssignment:         token.BinaryOr,
	token.BinaryXorAssignment:        token.Xor,
}

var errMixBigInt = newError("Cannot mix BigInt and other types, use explicit conversions")

func (e *Evaluator) evalBinary(node *ast.BinaryExpression) (object.Object, error) {
	left, err := e.eval(node.Left)
	if err != nil {
		return nil, err
	}
	switch node.Operator {
	case token.LogicalAnd:
		if !object.IsTruthy(left) {
			return left, nil
		}
		return e.eval(node.Right)
	case token.LogicalOr:
		if object.IsTruthy(left) {
			return left, nil
		}
		return e.eval(node.Right)
	case token.NullCoalesce:
		if !object.IsNullish(left) {
			return left, nil
		}
		return e.eval(node.Right)
	}

	right, err := e.eval(node.Right)
	if err != nil {
		return nil, err
	}
	return binaryOp(node.Operator, left, right)
}

func binaryOp(op token.TokenType, left, right object.Object) (object.Object, error) {
	switch op {
	case token.StrictEqual:
		return object.NativeBool(object.StrictEquals(left, right)), nil
	case token.StrictNotEqual:
		return object.NativeBool(!object.StrictEquals(left, right)), nil
	case token.Equal:
		return object.NativeBool(object.LooseEquals(left, right)), nil
	case token.NotEqual:
		return object.NativeBool(!object.LooseEquals(left, right)), nil
	case token.In:
		return inOperator(left, right)
	case token.LessThan, token.LessThanOrEqual, token.GreaterThan, token.GreaterThanOrEqual:
		return compare(op, left, right), nil
	case token.Plus:
		if isStringLike(left) || isStringLike(right) {
			return object.NewString(object.ToString(left) + object.ToString(right)), nil
		}
	}

	lb, lok := left.(*object.BigInt)
	rb, rok := right.(*object.BigInt)
	switch {
	case lok && rok:
		return bigIntOp(op, lb.Value, rb.Value)
	case lok || rok:
		return nil, errMixBigInt
	}
	return numberOp(op, object.ToNumber(left), object.ToNumber(right))
}

func isStringLike(obj object.Object) bool {
	switch obj.(type) {
	case *object.String, *object.Array, *object.Map, *object.Error, *object.RegExp:
		return true
	}
	return false
}

func numberOp(op token.TokenType, a, b float64) (object.Object, error) {
	switch op {
	case token.Plus:
		return object.NewNumber(a + b), nil
	case token.Minus:
		return object.NewNumber(a - b), nil
	case token.Multiply:
		return object.NewNumber(a * b), nil
	case token.Divide:
		return object.NewNumber(a / b), nil
	case token.Remainder:
		return object.NewNumber(math.Mod(a, b)), nil
	case token.Exponent:
		return object.NewNumber(pow(a, b)), nil
	case token.BinaryAnd:
		return object.NewNumber(float64(toInt32(a) & toInt32(b))), nil
	case token.BinaryOr:
		return object.NewNumber(float64(toInt32(a) | toInt32(b))), nil
	case token.Xor:
		return object.NewNumber(float64(toInt32(a) ^ toInt32(b))), nil
	case token.LeftShift:
		return object.NewNumber(float64(toInt32(a) << (toUint32(b) & 31))), nil
	case token.SignedShiftRight:
		return object.NewNumber(float64(toInt32(a) >> (toUint32(b) & 31))), nil
	case token.ShiftRight:
		return object.NewNumber(float64(toUint32(a) >> (toUint32(b) & 31))), nil
	}
	return nil, newError("unknown operator: %s", op)
}

func toInt32(f float64) int32   { return object.ToInt32(object.NewNumber(f)) }
func toUint32(f float64) uint32 { return object.ToUint32(object.NewNumber(f)) }

// pow follows the exponent rules of the language rather than math.Pow for
// NaN exponents and a base of magnitude one.
func pow(a, b float64) float64 {
	if math.IsNaN(b) || (math.IsInf(b, 0) && math.Abs(a) == 1) {
		return math.NaN()
	}
	return math.Pow(a, b)
}

func bigIntOp(op token.TokenType, a, b *big.Int) (object.Object, error) {
	r := new(big.Int)
	switch op {
	case token.Plus:
		r.Add(a, b)
	case token.Minus:
		r.Sub(a, b)
	case token.Multiply:
		r.Mul(a, b)
	case token.Divide:
		if b.Sign() == 0 {
			return nil, newError("Division by zero")
		}
		r.Quo(a, b)
	case token.Remainder:
		if b.Sign() == 0 {
			return nil, newError("Division by zero")
		}
		r.Rem(a, b)
	case token.Exponent:
		if b.Sign() < 0 {
			return nil, newError("Exponent must be non-negative")
		}
		r.Exp(a, b, nil)
	case token.BinaryAnd:
		r.And(a, b)
	case token.BinaryOr:
		r.Or(a, b)
	case token.Xor:
		r.Xor(a, b)
	case token.LeftShift:
		r.Lsh(a, uint(b.Uint64()))
	case token.SignedShiftRight:
		r.Rsh(a, uint(b.Uint64()))
	case token.ShiftRight:
		return nil, newError("BigInts have no unsigned right shift, use >> instead")
	default:
		return nil, newError("unknown operator: %s", op)
	}
	return &object.BigInt{Value: r}, nil
}

func compare(op token.TokenType, left, right object.Object) object.Object {
	var c int
	ls, lok := left.(*object.String)
	rs, rok := right.(*object.String)
	switch {
	case lok && rok:
		switch {
		case ls.Value < rs.Value:
			c = -1
		case ls.Value > rs.Value:
			c = 1
		}
	default:
		x, xok := toBigFloat(left)
		y, yok := toBigFloat(right)
		if !xok || !yok {
			return object.FALSE
		}
		c = x.Cmp(y)
	}

	switch op {
	case token.LessThan:
		return object.NativeBool(c < 0)
	case token.LessThanOrEqual:
		return object.NativeBool(c <= 0)
	case token.GreaterThan:
		return object.NativeBool(c > 0)
	}
	return object.NativeBool(c >= 0)
}

// toBigFloat converts a comparison operand; NaN is not comparable.
func toBigFloat(obj object.Object) (*big.Float, bool) {
	if b, ok := obj.(*object.BigInt); ok {
		return new(big.Float).SetInt(b.Value), true
	}
	f := object.ToNumber(obj)
	if math.IsNaN(f) {
		return nil, false
	}
	return new(big.Float).SetFloat64(f), true
}

func inOperator(key, container object.Object) (object.Object, error) {
	name := object.ToString(key)
	switch c := container.(type) {
	case *object.Map:
		return object.NativeBool(c.Has(name)), nil
	case *object.Array:
		if name == "length" {
			return object.TRUE, nil
		}
		i, err := strconv.Atoi(name)
		return object.NativeBool(err == nil && i >= 0 && i < len(c.Elements)), nil
	}
	return nil, newError("Cannot use 'in' operator to search for '%s' in %s", name, container.Inspect())
}

func (e *Evaluator) evalUnary(node *ast.UnaryExpression) (object.Object, error) {
	switch node.Operator {
	case token.Typeof:
		if id, ok := node.Operand.(*ast.Identifier); ok {
			ref, err := e.resolveIdentifier(id.Name, id.IsGlobal)
			if err != nil {
				return nil, err
			}
			if ref == nil {
				return object.NewString("undefined"), nil
			}
		}
		val, err := e.eval(node.Operand)
		if err != nil {
			return nil, err
		}
		return object.NewString(object.TypeOf(val)), nil
	case token.Delete:
		return e.evalDelete(node.Operand)
	}

	val, err := e.eval(node.Operand)
	if err != nil {
		return nil, err
	}
	switch node.Operator {
	case token.LogicalNot:
		return object.NativeBool(!object.IsTruthy(val)), nil
	case token.Minus:
		if b, ok := val.(*object.BigInt); ok {
			return &object.BigInt{Value: new(big.Int).Neg(b.Value)}, nil
		}
		return object.NewNumber(-object.ToNumber(val)), nil
	case token.Plus:
		if _, ok := val.(*object.BigInt); ok {
			return nil, newError("Cannot convert a BigInt value to a number")
		}
		return object.NewNumber(object.ToNumber(val)), nil
	case token.BinaryNot:
		if b, ok := val.(*object.BigInt); ok {
			return &object.BigInt{Value: new(big.Int).Not(b.Value)}, nil
		}
		return object.NewNumber(float64(^object.ToInt32(val))), nil
	}
	return nil, newError("unknown operator: %s", node.Operator)
}

func (e *Evaluator) evalDelete(operand ast.Expression) (object.Object, error) {
	var objExpr ast.Expression
	var key object.Object
	switch o := operand.(type) {
	case *ast.MemberAccess:
		objExpr, key = o.Object, object.NewString(o.Member)
	case *ast.CalculatedMemberAccess:
		k, err := e.eval(o.Member)
		if err != nil {
			return nil, err
		}
		objExpr, key = o.Object, k
	default:
		return object.FALSE, nil
	}

	obj, err := e.eval(objExpr)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *object.Map:
		o.Delete(object.ToString(key))
	case *object.Array:
		if n, ok := key.(*object.Number); ok {
			if i := int(n.Value); float64(i) == n.Value && i >= 0 && i < len(o.Elements) {
				o.Elements[i] = object.UNDEFINED
			}
		}
	}
	return object.TRUE, nil
}
