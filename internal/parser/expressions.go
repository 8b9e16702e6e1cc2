package parser

import (
	"ksx/internal/ast"
	"ksx/internal/object"
	"ksx/internal/token"
	"math"
	"slices"
)

// binaryLevels lists left-associative binary operators from the loosest to
// the tightest binding level. Exponentiation sits below the last level.
var binaryLevels = [][]token.TokenType{
	{token.NullCoalesce},
	{token.LogicalOr},
	{token.LogicalAnd},
	{token.BinaryOr},
	{token.Xor},
	{token.BinaryAnd},
	{token.Equal, token.NotEqual, token.StrictEqual, token.StrictNotEqual},
	{token.LessThan, token.LessThanOrEqual, token.GreaterThan, token.GreaterThanOrEqual, token.In},
	{token.LeftShift, token.SignedShiftRight, token.ShiftRight},
	{token.Plus, token.Minus},
	{token.Multiply, token.Divide, token.Remainder},
}

// getExpression fails when no expression starts at the current token.
func (p *Parser) getExpression(allowSequence bool) ast.Expression {
	var expr ast.Expression
	if allowSequence {
		expr = p.parseSequence()
	} else {
		expr = p.parseCondOrSpreadOrAsgnOrArrow()
	}
	if expr == nil {
		p.fail(ExpressionExpected, p.peek())
	}
	return expr
}

// parseSequence reads "a, b, c". Two adjacent commas leave a NoArgExpression
// hole and mark the sequence loose.
func (p *Parser) parseSequence() ast.Expression {
	start := p.peek()
	left := p.parseCondOrSpreadOrAsgnOrArrow()
	if left == nil {
		return nil
	}
	if p.peek().Type != token.Comma {
		return left
	}

	seq := &ast.SequenceExpression{Expressions: []ast.Expression{left}}
	for p.skip(token.Comma) {
		if next := p.peek(); next.Type == token.Comma {
			seq.Loose = true
			hole := &ast.NoArgExpression{}
			p.stamp(hole, next)
			seq.Expressions = append(seq.Expressions, hole)
			continue
		}
		expr := p.parseCondOrSpreadOrAsgnOrArrow()
		if expr == nil {
			break
		}
		seq.Expressions = append(seq.Expressions, expr)
	}
	p.stamp(seq, start)
	return seq
}

func (p *Parser) parseCondOrSpreadOrAsgnOrArrow() ast.Expression {
	start := p.peek()
	if start.Type == token.Spread {
		p.next()
		operand := p.parseNullCoalescing()
		if operand == nil {
			p.fail(ExpressionExpected, p.peek())
		}
		spread := &ast.SpreadExpression{Operand: operand}
		p.stamp(spread, start)
		return spread
	}

	left := p.parseNullCoalescing()
	if left == nil {
		return nil
	}

	next := p.peek()
	switch {
	case next.Type == token.Arrow:
		return p.parseArrowExpression(start, left)

	case next.Type == token.QuestionMark:
		p.next()
		cond := &ast.ConditionalExpression{Condition: left}
		cond.Consequent = p.getExpression(false)
		p.expect(token.Colon, ColonExpected)
		cond.Alternate = p.getExpression(false)
		p.stamp(cond, start)
		return cond

	case token.IsAssignment(next.Type):
		p.next()
		if next.Type == token.Assignment && left.Parens() == 0 {
			switch lit := left.(type) {
			case *ast.ArrayLiteral:
				left = p.toArrayDestructure(lit.Items, lit)
			case *ast.ObjectLiteral:
				left = p.toObjectDestructure(lit)
			}
		}
		asgn := &ast.AssignmentExpression{
			Operator:  next.Type,
			Leftvalue: left,
			Operand:   p.getExpression(false),
		}
		p.stamp(asgn, start)
		return asgn
	}
	return left
}

func (p *Parser) parseArrowExpression(start token.Token, left ast.Expression) ast.Expression {
	params := p.toParams(left, start)
	p.next()
	arrow := &ast.ArrowExpression{
		Args:      params,
		Statement: p.parseStatement(false),
	}
	p.stamp(arrow, start)
	return arrow
}

// toParams reinterprets a parenthesized expression list as a parameter list.
func (p *Parser) toParams(expr ast.Expression, start token.Token) []ast.Expression {
	invalid := func() { p.fail(InvalidParameterList, start) }
	var params []ast.Expression
	switch e := expr.(type) {
	case *ast.NoArgExpression:
	case *ast.Identifier:
		if e.Parenthesized > 1 {
			invalid()
		}
		params = append(params, e)
	case *ast.SequenceExpression:
		if e.Parenthesized != 1 {
			invalid()
		}
		for _, item := range e.Expressions {
			if item.Parens() != 0 {
				invalid()
			}
			switch it := item.(type) {
			case *ast.Identifier:
				params = append(params, it)
			case *ast.ObjectLiteral:
				params = append(params, p.toObjectDestructure(it))
			case *ast.ArrayLiteral:
				params = append(params, p.toArrayDestructure(it.Items, it))
			default:
				invalid()
			}
		}
	case *ast.ObjectLiteral:
		if e.Parenthesized != 1 {
			invalid()
		}
		params = append(params, p.toObjectDestructure(e))
	case *ast.ArrayLiteral:
		if e.Parenthesized != 1 {
			invalid()
		}
		params = append(params, p.toArrayDestructure(e.Items, e))
	default:
		invalid()
	}
	return params
}

func (p *Parser) toArrayDestructure(items []ast.Expression, from ast.Node) *ast.ArrayDestructure {
	d := &ast.ArrayDestructure{}
	for _, item := range items {
		var di *ast.DestructureItem
		switch e := item.(type) {
		case *ast.NoArgExpression:
			di = &ast.DestructureItem{}
		case *ast.Identifier:
			di = &ast.DestructureItem{ID: e.Name}
		case *ast.ArrayDestructure:
			di = &ast.DestructureItem{ArrayDestruct: e}
		case *ast.ArrayLiteral:
			di = &ast.DestructureItem{ArrayDestruct: p.toArrayDestructure(e.Items, e)}
		case *ast.ObjectDestructure:
			di = &ast.DestructureItem{ObjectDestruct: e}
		case *ast.ObjectLiteral:
			di = &ast.DestructureItem{ObjectDestruct: p.toObjectDestructure(e)}
		default:
			p.fail(InvalidArrayDestructure, item.Base().Token)
		}
		d.Items = append(d.Items, di)
	}
	p.restamp(d, from)
	return d
}

func (p *Parser) toObjectDestructure(lit *ast.ObjectLiteral) *ast.ObjectDestructure {
	d := &ast.ObjectDestructure{}
	for _, prop := range lit.Props {
		key, ok := prop.Key.(*ast.Identifier)
		if !ok {
			p.fail(InvalidObjectDestructure, lit.Token)
		}
		di := &ast.DestructureItem{ID: key.Name}
		switch v := prop.Value.(type) {
		case *ast.Identifier:
			if v.Name != key.Name {
				di.Alias = v.Name
			}
		case *ast.ArrayDestructure:
			di.ArrayDestruct = v
		case *ast.ArrayLiteral:
			di.ArrayDestruct = p.toArrayDestructure(v.Items, v)
		case *ast.ObjectDestructure:
			di.ObjectDestruct = v
		case *ast.ObjectLiteral:
			di.ObjectDestruct = p.toObjectDestructure(v)
		default:
			p.fail(InvalidObjectDestructure, prop.Value.Base().Token)
		}
		d.Items = append(d.Items, di)
	}
	p.restamp(d, lit)
	return d
}

func (p *Parser) parseNullCoalescing() ast.Expression {
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(level int) ast.Expression {
	if level >= len(binaryLevels) {
		return p.parseExponential()
	}
	start := p.peek()
	left := p.parseBinary(level + 1)
	if left == nil {
		return nil
	}
	for {
		op := p.peek()
		if !slices.Contains(binaryLevels[level], op.Type) {
			return left
		}
		p.next()
		right := p.parseBinary(level + 1)
		if right == nil {
			p.fail(ExpressionExpected, p.peek())
		}
		bin := &ast.BinaryExpression{Operator: op.Type, Left: left, Right: right}
		p.stamp(bin, start)
		left = bin
	}
}

// parseExponential folds "a ** b ** c" from the right.
func (p *Parser) parseExponential() ast.Expression {
	start := p.peek()
	left := p.parseUnaryOrPrefix()
	if left == nil {
		return nil
	}
	if p.peek().Type != token.Exponent {
		return left
	}

	operands := []ast.Expression{left}
	starts := []token.Token{start}
	for p.skip(token.Exponent) {
		s := p.peek()
		right := p.parseUnaryOrPrefix()
		if right == nil {
			p.fail(ExpressionExpected, p.peek())
		}
		operands = append(operands, right)
		starts = append(starts, s)
	}
	result := operands[len(operands)-1]
	for i := len(operands) - 2; i >= 0; i-- {
		bin := &ast.BinaryExpression{Operator: token.Exponent, Left: operands[i], Right: result}
		p.stamp(bin, starts[i])
		result = bin
	}
	return result
}

func (p *Parser) parseUnaryOrPrefix() ast.Expression {
	start := p.peek()
	switch start.Type {
	case token.Typeof, token.Delete, token.Plus, token.Minus, token.BinaryNot, token.LogicalNot:
		p.next()
		operand := p.parseUnaryOrPrefix()
		if operand == nil {
			p.fail(ExpressionExpected, p.peek())
		}
		unary := &ast.UnaryExpression{Operator: start.Type, Operand: operand}
		p.stamp(unary, start)
		return unary
	case token.IncOp, token.DecOp:
		p.next()
		operand := p.parseMemberOrInvocation()
		if operand == nil {
			p.fail(ExpressionExpected, p.peek())
		}
		prefix := &ast.PrefixOpExpression{Operator: start.Type, Operand: operand}
		p.stamp(prefix, start)
		return prefix
	}
	return p.parseMemberOrInvocation()
}

// parseMemberOrInvocation reads a primary followed by any run of calls,
// member accesses and indexers, then an optional postfix operator.
func (p *Parser) parseMemberOrInvocation() ast.Expression {
	start := p.peek()
	primary := p.parsePrimary()
	if primary == nil {
		return nil
	}

loop:
	for {
		switch current := p.peek(); current.Type {
		case token.LPar:
			p.next()
			var args []ast.Expression
			if p.peek().Type != token.RPar {
				args = p.expressionList()
			}
			p.expect(token.RPar, RParenExpected)
			call := &ast.FunctionInvocation{Object: primary, Arguments: args}
			p.stamp(call, start)
			primary = call

		case token.Dot, token.OptionalChaining:
			p.next()
			member := p.next()
			if !token.IsKeywordLike(member.Type) {
				p.fail(IdentifierExpected, member)
			}
			access := &ast.MemberAccess{
				Object:     primary,
				Member:     member.Text,
				IsOptional: current.Type == token.OptionalChaining,
			}
			p.stamp(access, start)
			primary = access

		case token.LSBrac:
			p.next()
			index := p.getExpression(true)
			p.expect(token.RSBrac, RSquareExpected)
			access := &ast.CalculatedMemberAccess{Object: primary, Member: index}
			p.stamp(access, start)
			primary = access

		default:
			break loop
		}
	}

	if next := p.peek(); next.Type == token.IncOp || next.Type == token.DecOp {
		p.next()
		postfix := &ast.PostfixOpExpression{Operator: next.Type, Operand: primary}
		p.stamp(postfix, start)
		return postfix
	}
	return primary
}

// expressionList reads comma separated items, flattening an unparenthesized
// sequence into its elements.
func (p *Parser) expressionList() []ast.Expression {
	expr := p.getExpression(true)
	if seq, ok := expr.(*ast.SequenceExpression); ok && seq.Parenthesized == 0 {
		return seq.Expressions
	}
	return []ast.Expression{expr}
}

func (p *Parser) parsePrimary() ast.Expression {
	start := p.peek()
	switch start.Type {
	case token.LPar:
		p.next()
		if p.peek().Type == token.RPar {
			p.next()
			noArg := &ast.NoArgExpression{}
			p.stamp(noArg, start)
			return noArg
		}
		expr := p.getExpression(true)
		p.expect(token.RPar, RParenExpected)
		expr.Parenthesize()
		b := expr.Base()
		b.Span = p.spanFrom(start)
		return expr

	case token.Identifier:
		p.next()
		id := &ast.Identifier{Name: start.Text}
		p.stamp(id, start)
		return id

	case token.DoubleColon:
		p.next()
		name := p.next()
		if name.Type != token.Identifier {
			p.fail(IdentifierExpected, name)
		}
		id := &ast.Identifier{Name: name.Text, IsGlobal: true}
		p.stamp(id, start)
		return id

	case token.True, token.False:
		p.next()
		return p.literal(start.Type == token.True, start)

	case token.DecLiteral, token.HexLiteral, token.BinLiteral, token.RealLiteral:
		p.next()
		value, ok := decodeNumber(start)
		if !ok {
			p.fail(UnexpectedToken, start, start.Text)
		}
		return p.literal(value, start)

	case token.StringLiteral:
		p.next()
		return p.literal(decodeString(start.Text), start)

	case token.Infinity:
		p.next()
		return p.literal(math.Inf(1), start)

	case token.NaN:
		p.next()
		return p.literal(math.NaN(), start)

	case token.Null:
		p.next()
		return p.literal(nil, start)

	case token.Undefined:
		p.next()
		return p.literal(ast.UndefinedValue{}, start)

	case token.LSBrac:
		return p.parseArrayLiteral()

	case token.LBrace:
		return p.parseObjectLiteral()

	case token.Divide, token.DivideAssignment:
		return p.parseRegExpLiteral()
	}
	return nil
}

func (p *Parser) literal(value any, start token.Token) *ast.Literal {
	lit := &ast.Literal{Value: value}
	p.stamp(lit, start)
	return lit
}

func (p *Parser) parseArrayLiteral() *ast.ArrayLiteral {
	start := p.next()
	arr := &ast.ArrayLiteral{}
	if p.peek().Type != token.RSBrac {
		arr.Items = p.expressionList()
	}
	p.expect(token.RSBrac, RSquareExpected)
	p.stamp(arr, start)
	return arr
}

func (p *Parser) parseObjectLiteral() *ast.ObjectLiteral {
	start := p.next()
	obj := &ast.ObjectLiteral{}
	for p.peek().Type != token.RBrace {
		next := p.peek()
		var key ast.Expression
		switch follower := p.ahead(1).Type; {
		case token.IsKeywordLike(next.Type) &&
			(follower == token.Colon || follower == token.Comma || follower == token.RBrace):
			p.next()
			id := &ast.Identifier{Name: next.Text}
			p.stamp(id, next)
			key = id
		case token.IsExpressionStart(next.Type):
			key = p.getExpression(false)
		default:
			p.fail(ExpressionExpected, next)
		}

		if spread, ok := key.(*ast.SpreadExpression); ok {
			obj.Props = append(obj.Props, ast.Property{Value: spread})
		} else {
			switch k := key.(type) {
			case *ast.Identifier:
			case *ast.Literal:
				switch k.Value.(type) {
				case float64, string:
				default:
					p.fail(InvalidPropertyName, p.peek())
				}
			default:
				p.fail(InvalidPropertyName, p.peek())
			}

			var value ast.Expression
			if id, ok := key.(*ast.Identifier); ok {
				if f := p.peek().Type; f == token.Comma || f == token.RBrace {
					value = id
				}
			}
			if value == nil {
				p.expect(token.Colon, ColonExpected)
				value = p.getExpression(false)
			}
			obj.Props = append(obj.Props, ast.Property{Key: key, Value: value})
		}

		if !p.skip(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, RBraceExpected)
	p.stamp(obj, start)
	return obj
}

func (p *Parser) parseRegExpLiteral() *ast.RegExpLiteral {
	start := p.peek()
	res := p.l.LexRegex()
	if !res.Success {
		p.fail(UnexpectedToken, start, start.Text)
	}
	if _, err := object.CompileRegExp(res.Pattern, res.Flags); err != nil {
		p.fail(UnexpectedToken, start, res.Pattern)
	}
	p.last = res.Token
	lit := &ast.RegExpLiteral{Pattern: res.Pattern, Flags: res.Flags}
	p.stamp(lit, start)
	return lit
}
