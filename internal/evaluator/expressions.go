package evaluator

import (
	"ksx/internal/ast"
	"ksx/internal/object"
	"ksx/internal/token"
	"math/big"
	"strconv"
)

type referenceKind int

const (
	refScope referenceKind = iota
	refProperty
	refElement
)

// reference is the resolution annotation of an identifier or member
// access: the place its value was read from, where an assignment or an
// increment that follows writes back to.
type reference struct {
	kind  referenceKind
	block *object.BlockScope
	props *object.Map
	array *object.Array
	key   string
	index int
}

func (r *reference) get() object.Object {
	var val object.Object
	switch r.kind {
	case refScope:
		val, _ = r.block.Get(r.key)
	case refProperty:
		val, _ = r.props.Get(r.key)
	case refElement:
		if r.index < len(r.array.Elements) {
			val = r.array.Elements[r.index]
		}
	}
	if val == nil {
		return object.UNDEFINED
	}
	return val
}

func (r *reference) set(val object.Object) error {
	switch r.kind {
	case refScope:
		return r.block.Assign(r.key, val)
	case refProperty:
		r.props.Set(r.key, val)
	case refElement:
		for len(r.array.Elements) <= r.index {
			r.array.Elements = append(r.array.Elements, object.UNDEFINED)
		}
		r.array.Elements[r.index] = val
	}
	return nil
}

func (e *Evaluator) annotate(expr ast.Expression, ref *reference) {
	if ref == nil {
		delete(e.thread.annotations, expr)
		return
	}
	e.thread.annotations[expr] = ref
}

func (e *Evaluator) eval(expr ast.Expression) (object.Object, error) {
	switch node := expr.(type) {
	case *ast.Literal:
		return literalValue(node.Value), nil

	case *ast.RegExpLiteral:
		re, err := object.NewRegExp(node.Pattern, node.Flags)
		if err != nil {
			return nil, err
		}
		return re, nil

	case *ast.Identifier:
		ref, err := e.resolveIdentifier(node.Name, node.IsGlobal)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			return nil, newError("%s is not defined", node.Name)
		}
		e.annotate(node, ref)
		return ref.get(), nil

	case *ast.NoArgExpression:
		return object.UNDEFINED, nil

	case *ast.ArrayLiteral:
		elements, err := e.evalList(node.Items)
		if err != nil {
			return nil, err
		}
		return &object.Array{Elements: elements}, nil

	case *ast.ObjectLiteral:
		return e.evalObjectLiteral(node)

	case *ast.SequenceExpression:
		var result object.Object = object.UNDEFINED
		for _, item := range node.Expressions {
			val, err := e.eval(item)
			if err != nil {
				return nil, err
			}
			result = val
		}
		return result, nil

	case *ast.ConditionalExpression:
		cond, err := e.eval(node.Condition)
		if err != nil {
			return nil, err
		}
		if object.IsTruthy(cond) {
			return e.eval(node.Consequent)
		}
		return e.eval(node.Alternate)

	case *ast.UnaryExpression:
		return e.evalUnary(node)

	case *ast.BinaryExpression:
		return e.evalBinary(node)

	case *ast.AssignmentExpression:
		return e.evalAssignment(node)

	case *ast.PrefixOpExpression:
		return e.evalIncrement(node.Operator, node.Operand, true)

	case *ast.PostfixOpExpression:
		return e.evalIncrement(node.Operator, node.Operand, false)

	case *ast.MemberAccess:
		obj, err := e.eval(node.Object)
		if err != nil {
			return nil, err
		}
		val, ref, err := e.getMember(obj, node.Member, node.IsOptional)
		if err != nil {
			return nil, err
		}
		e.annotate(node, ref)
		return val, nil

	case *ast.CalculatedMemberAccess:
		return e.evalCalculatedMember(node)

	case *ast.FunctionInvocation:
		return e.evalInvocation(node)

	case *ast.ArrowExpression:
		return &object.Function{
			Name:     node.Name,
			Arrow:    node,
			Closures: e.closureChain(),
		}, nil

	case *ast.SpreadExpression:
		return nil, newError("Unexpected spread %s", node.String())

	case *ast.ArrayDestructure, *ast.ObjectDestructure:
		return nil, newError("Unexpected destructuring pattern %s", expr.String())
	}
	return nil, newError("unknown expression: %T", expr)
}

func literalValue(v any) object.Object {
	switch val := v.(type) {
	case float64:
		return object.NewNumber(val)
	case *big.Int:
		return &object.BigInt{Value: val}
	case string:
		return object.NewString(val)
	case bool:
		return object.NativeBool(val)
	case ast.UndefinedValue:
		return object.UNDEFINED
	}
	return object.NULL
}

// evalList evaluates call arguments or array items, expanding spreads.
func (e *Evaluator) evalList(exprs []ast.Expression) ([]object.Object, error) {
	out := make([]object.Object, 0, len(exprs))
	for _, expr := range exprs {
		if spread, ok := expr.(*ast.SpreadExpression); ok {
			val, err := e.eval(spread.Operand)
			if err != nil {
				return nil, err
			}
			switch v := val.(type) {
			case *object.Array:
				out = append(out, v.Elements...)
			case *object.String:
				for _, r := range v.Value {
					out = append(out, object.NewString(string(r)))
				}
			default:
				return nil, newError("%s is not iterable", spread.Operand.String())
			}
			continue
		}
		val, err := e.eval(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}

func (e *Evaluator) evalObjectLiteral(node *ast.ObjectLiteral) (object.Object, error) {
	m := object.NewMap()
	for _, prop := range node.Props {
		if spread, ok := prop.Value.(*ast.SpreadExpression); ok && prop.Key == nil {
			val, err := e.eval(spread.Operand)
			if err != nil {
				return nil, err
			}
			switch v := val.(type) {
			case *object.Map:
				for _, k := range v.Keys() {
					pv, _ := v.Get(k)
					m.Set(k, pv)
				}
			case *object.Array:
				for i, el := range v.Elements {
					m.Set(strconv.Itoa(i), el)
				}
			}
			continue
		}

		var key string
		switch k := prop.Key.(type) {
		case *ast.Identifier:
			key = k.Name
		case *ast.Literal:
			key = object.ToString(literalValue(k.Value))
		default:
			return nil, newError("invalid property name %s", prop.Key.String())
		}
		val, err := e.eval(prop.Value)
		if err != nil {
			return nil, err
		}
		m.Set(key, val)
	}
	return m, nil
}

// resolveIdentifier finds the scope layer holding name. A nil reference
// means the name is unbound.
func (e *Evaluator) resolveIdentifier(name string, isGlobal bool) (*reference, error) {
	if !isGlobal {
		for t := e.thread; t != nil; t = e.ctx.threads.parentOf(t) {
			for _, b := range t.scopes() {
				if b.Has(name) {
					return &reference{kind: refScope, block: b, key: name}, nil
				}
			}
		}
		if m := e.ctx.LocalContext; m != nil && m.Has(name) {
			return &reference{kind: refProperty, props: m, key: name}, nil
		}
		if m := e.ctx.AppContext; m != nil {
			if v, ok := m.Get(name); ok && v != object.UNDEFINED {
				return &reference{kind: refProperty, props: m, key: name}, nil
			}
		}
	}
	if m := e.ctx.GlobalScope; m != nil && m.Has(name) {
		return &reference{kind: refProperty, props: m, key: name}, nil
	}
	return nil, nil
}

func (e *Evaluator) evalCalculatedMember(node *ast.CalculatedMemberAccess) (object.Object, error) {
	obj, err := e.eval(node.Object)
	if err != nil {
		return nil, err
	}
	key, err := e.eval(node.Member)
	if err != nil {
		return nil, err
	}

	if arr, ok := obj.(*object.Array); ok {
		if n, ok := key.(*object.Number); ok {
			idx := int(n.Value)
			if float64(idx) != n.Value || idx < 0 {
				e.annotate(node, nil)
				return object.UNDEFINED, nil
			}
			ref := &reference{kind: refElement, array: arr, index: idx}
			e.annotate(node, ref)
			return ref.get(), nil
		}
	}
	val, ref, err := e.getMember(obj, object.ToString(key), false)
	if err != nil {
		return nil, err
	}
	e.annotate(node, ref)
	return val, nil
}

func (e *Evaluator) evalAssignment(node *ast.AssignmentExpression) (object.Object, error) {
	switch left := node.Leftvalue.(type) {
	case *ast.ArrayDestructure:
		val, err := e.eval(node.Operand)
		if err != nil {
			return nil, err
		}
		return val, e.destructureArray(left, val, e.assignName)
	case *ast.ObjectDestructure:
		val, err := e.eval(node.Operand)
		if err != nil {
			return nil, err
		}
		return val, e.destructureObject(left, val, e.assignName)
	}

	current, err := e.eval(node.Leftvalue)
	if err != nil {
		return nil, err
	}
	ref := e.thread.annotations[node.Leftvalue]
	if ref == nil {
		return nil, newError("Evaluation of %s requires a left-hand value.", node.Operator)
	}

	var val object.Object
	switch node.Operator {
	case token.AndAssignment:
		if !object.IsTruthy(current) {
			return current, nil
		}
	case token.OrAssignment:
		if object.IsTruthy(current) {
			return current, nil
		}
	case token.NullCoalesceAssignment:
		if !object.IsNullish(current) {
			return current, nil
		}
	}

	operand, err := e.eval(node.Operand)
	if err != nil {
		return nil, err
	}
	if op, ok := compoundOperators[node.Operator]; ok {
		val, err = binaryOp(op, current, operand)
		if err != nil {
			return nil, err
		}
	} else {
		val = operand
	}

	if err := ref.set(val); err != nil {
		return nil, err
	}
	return val, nil
}

func (e *Evaluator) evalIncrement(op token.TokenType, operand ast.Expression, prefix bool) (object.Object, error) {
	current, err := e.eval(operand)
	if err != nil {
		return nil, err
	}
	ref := e.thread.annotations[operand]
	if ref == nil {
		return nil, newError("Evaluation of %s requires a left-hand value.", op)
	}

	var old, updated object.Object
	if b, ok := current.(*object.BigInt); ok {
		old = b
		delta := big.NewInt(1)
		if op == token.DecOp {
			delta.Neg(delta)
		}
		updated = &object.BigInt{Value: new(big.Int).Add(b.Value, delta)}
	} else {
		n := object.ToNumber(current)
		old = object.NewNumber(n)
		if op == token.DecOp {
			updated = object.NewNumber(n - 1)
		} else {
			updated = object.NewNumber(n + 1)
		}
	}

	if err := ref.set(updated); err != nil {
		return nil, err
	}
	if prefix {
		return updated, nil
	}
	return old, nil
}
