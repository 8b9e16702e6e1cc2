package parser

import (
	"ksx/internal/ast"
	"ksx/internal/lexer"
	"ksx/internal/token"
)

// bailout unwinds the parser to its entry point after the first error.
type bailout struct{}

type Parser struct {
	l      *lexer.Lexer
	src    string // source code here
	errors []*Error

	last   token.Token // last consumed token
	nextID int
}

func New(l *lexer.Lexer, source string) *Parser {
	return &Parser{
		l:      l,
		src:    source,
		errors: []*Error{},
	}
}

// Parse parses a whole program and returns the first error, if any.
func Parse(source string) (*ast.Program, error) {
	p := New(lexer.New(source), source)
	program := p.ParseProgram()
	if program == nil {
		return nil, p.errors[0]
	}
	return program, nil
}

func (p *Parser) Errors() []*Error {
	return p.errors
}

// ParseProgram returns nil when the source has an error. Parsing stops at the
// first error, so Errors holds a single entry.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	ok := true
	func() {
		defer p.guard(&ok)
		for p.peek().Type != token.Eof {
			stmt := p.parseStatement(true)
			program.Statements = append(program.Statements, stmt)
			if _, empty := stmt.(*ast.EmptyStatement); !empty {
				p.skip(token.Semicolon)
			}
		}
	}()
	if !ok {
		return nil
	}
	return program
}

// ParseExpression parses source that holds exactly one expression.
func (p *Parser) ParseExpression() ast.Expression {
	var expr ast.Expression
	ok := true
	func() {
		defer p.guard(&ok)
		expr = p.getExpression(true)
		if next := p.peek(); next.Type != token.Eof {
			p.fail(UnexpectedToken, next, next.Text)
		}
	}()
	if !ok {
		return nil
	}
	return expr
}

func (p *Parser) guard(ok *bool) {
	if r := recover(); r != nil {
		if _, isBailout := r.(bailout); !isBailout {
			panic(r)
		}
		*ok = false
	}
}

// ----------------------------------------------------------------------------
// Token helpers

func (p *Parser) peek() token.Token {
	return p.l.Peek()
}

func (p *Parser) ahead(n int) token.Token {
	return p.l.Ahead(n)
}

func (p *Parser) next() token.Token {
	t := p.l.Next()
	p.last = t
	return t
}

func (p *Parser) skip(t token.TokenType) bool {
	if p.peek().Type == t {
		p.next()
		return true
	}
	return false
}

// expect consumes the next token if it has type t, otherwise it fails with
// code, or with UnexpectedToken when code is empty.
func (p *Parser) expect(t token.TokenType, code ErrorCode) token.Token {
	next := p.peek()
	if next.Type == t {
		return p.next()
	}
	if code == "" {
		p.fail(UnexpectedToken, next, next.Text)
	}
	p.fail(code, next)
	return next
}

func (p *Parser) fail(code ErrorCode, at token.Token, args ...any) {
	p.errors = append(p.errors, NewError(code, at.Location.Line, at.Location.StartColumn, at.Location.StartPosition, args...))
	panic(bailout{})
}

// stamp assigns a node its identity and the span from start to the last
// consumed token.
func (p *Parser) stamp(node ast.Node, start token.Token) {
	b := node.Base()
	p.nextID++
	b.ID = p.nextID
	b.Token = start
	b.Span = p.spanFrom(start)
}

// restamp gives a converted node the position of the node it replaces.
func (p *Parser) restamp(node ast.Node, from ast.Node) {
	b := node.Base()
	p.nextID++
	b.ID = p.nextID
	b.Token = from.Base().Token
	b.Span = from.Base().Span
}

func (p *Parser) spanFrom(start token.Token) ast.Span {
	end := p.last.Location
	if end.EndPosition <= start.Location.StartPosition {
		end = token.Location{
			StartPosition: start.Location.StartPosition,
			EndPosition:   start.Location.StartPosition,
			Line:          start.Location.Line,
			EndColumn:     start.Location.StartColumn,
		}
	}
	return ast.Span{
		StartPosition: start.Location.StartPosition,
		EndPosition:   end.EndPosition,
		StartLine:     start.Location.Line,
		StartColumn:   start.Location.StartColumn,
		EndLine:       end.Line,
		EndColumn:     end.EndColumn,
		Source:        p.src[start.Location.StartPosition:end.EndPosition],
	}
}

// ----------------------------------------------------------------------------
// Statements

func (p *Parser) parseStatement(allowSequence bool) ast.Statement {
	start := p.peek()
	switch start.Type {
	case token.Semicolon:
		p.next()
		stmt := &ast.EmptyStatement{}
		p.stamp(stmt, start)
		return stmt
	case token.Let:
		return p.parseLetStatement()
	case token.Const:
		return p.parseConstStatement()
	case token.LBrace:
		return p.parseBlockStatement()
	case token.If:
		return p.parseIfStatement()
	case token.Do:
		return p.parseDoWhileStatement()
	case token.While:
		return p.parseWhileStatement()
	case token.Return:
		return p.parseReturnStatement()
	case token.Break:
		p.next()
		stmt := &ast.BreakStatement{}
		p.stamp(stmt, start)
		return stmt
	case token.Continue:
		p.next()
		stmt := &ast.ContinueStatement{}
		p.stamp(stmt, start)
		return stmt
	case token.For:
		return p.parseForStatement()
	case token.Throw:
		return p.parseThrowStatement()
	case token.Try:
		return p.parseTryStatement()
	case token.Switch:
		return p.parseSwitchStatement()
	case token.Function:
		return p.parseFunctionDeclaration()
	case token.Export:
		return p.parseExport()
	case token.Import:
		return p.parseImport()
	}
	if !token.IsExpressionStart(start.Type) {
		p.fail(UnexpectedToken, start, start.Text)
	}
	return p.parseExpressionStatement(allowSequence)
}

func (p *Parser) parseExpressionStatement(allowSequence bool) *ast.ExpressionStatement {
	start := p.peek()
	stmt := &ast.ExpressionStatement{Expression: p.getExpression(allowSequence)}
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseLetStatement() *ast.LetStatement {
	start := p.next()
	stmt := &ast.LetStatement{Declarations: p.parseDeclarations(false)}
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseConstStatement() *ast.ConstStatement {
	start := p.next()
	stmt := &ast.ConstStatement{Declarations: p.parseDeclarations(true)}
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseDeclarations(requireInit bool) []*ast.VarDeclaration {
	var decls []*ast.VarDeclaration
	for {
		start := p.peek()
		decl := &ast.VarDeclaration{}
		switch start.Type {
		case token.LBrace:
			decl.ObjectDestruct = p.parseObjectDestructure()
		case token.LSBrac:
			decl.ArrayDestruct = p.parseArrayDestructure()
		case token.Identifier:
			decl.ID = p.next().Text
		default:
			p.fail(IdentifierExpected, start)
		}

		if requireInit {
			p.expect(token.Assignment, "")
			decl.Expression = p.getExpression(false)
		} else if p.skip(token.Assignment) {
			decl.Expression = p.getExpression(false)
		} else if decl.ID == "" {
			p.fail(DestructureNeedsInit, p.peek())
		}

		p.stamp(decl, start)
		decls = append(decls, decl)
		if !p.skip(token.Comma) {
			return decls
		}
	}
}

func (p *Parser) parseObjectDestructure() *ast.ObjectDestructure {
	start := p.next()
	d := &ast.ObjectDestructure{}
	for p.peek().Type == token.Identifier {
		item := &ast.DestructureItem{ID: p.next().Text}
		if p.skip(token.Colon) {
			switch next := p.peek(); next.Type {
			case token.Identifier:
				item.Alias = p.next().Text
			case token.LSBrac:
				item.ArrayDestruct = p.parseArrayDestructure()
			case token.LBrace:
				item.ObjectDestruct = p.parseObjectDestructure()
			default:
				p.fail(IdentifierExpected, next)
			}
		}
		d.Items = append(d.Items, item)
		if !p.skip(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace, RBraceExpected)
	p.stamp(d, start)
	return d
}

func (p *Parser) parseArrayDestructure() *ast.ArrayDestructure {
	start := p.next()
	d := &ast.ArrayDestructure{}
	for {
		item := &ast.DestructureItem{}
		switch p.peek().Type {
		case token.Identifier:
			item.ID = p.next().Text
		case token.LSBrac:
			item.ArrayDestruct = p.parseArrayDestructure()
		case token.LBrace:
			item.ObjectDestruct = p.parseObjectDestructure()
		}

		next := p.peek()
		if next.Type == token.Comma {
			d.Items = append(d.Items, item)
			p.next()
			continue
		}
		if next.Type == token.RSBrac {
			if item.ID != "" || item.ArrayDestruct != nil || item.ObjectDestruct != nil {
				d.Items = append(d.Items, item)
			}
			break
		}
		p.fail(UnexpectedToken, next, next.Text)
	}
	p.expect(token.RSBrac, RSquareExpected)
	p.stamp(d, start)
	return d
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	start := p.next()
	block := &ast.BlockStatement{}
	for p.peek().Type != token.RBrace {
		if next := p.peek(); next.Type == token.Eof {
			p.fail(RBraceExpected, next)
		}
		stmt := p.parseStatement(true)
		block.Statements = append(block.Statements, stmt)
		if _, empty := stmt.(*ast.EmptyStatement); !empty {
			p.skip(token.Semicolon)
		}
	}
	p.next()
	p.stamp(block, start)
	return block
}

// parseIfStatement requires a ';' between a non-block then branch and 'else'.
func (p *Parser) parseIfStatement() *ast.IfStatement {
	start := p.next()
	stmt := &ast.IfStatement{}
	p.expect(token.LPar, LParenExpected)
	stmt.Condition = p.getExpression(true)
	p.expect(token.RPar, RParenExpected)
	stmt.ThenBranch = p.parseStatement(true)

	elseCanFollow := true
	if _, isBlock := stmt.ThenBranch.(*ast.BlockStatement); !isBlock {
		elseCanFollow = p.skip(token.Semicolon)
	}
	if elseCanFollow && p.skip(token.Else) {
		stmt.ElseBranch = p.parseStatement(true)
	}
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	start := p.next()
	stmt := &ast.WhileStatement{}
	p.expect(token.LPar, LParenExpected)
	stmt.Condition = p.getExpression(true)
	p.expect(token.RPar, RParenExpected)
	stmt.Body = p.parseStatement(true)
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseDoWhileStatement() *ast.DoWhileStatement {
	start := p.next()
	stmt := &ast.DoWhileStatement{Body: p.parseStatement(true)}
	switch stmt.Body.(type) {
	case *ast.BlockStatement, *ast.EmptyStatement:
	default:
		p.expect(token.Semicolon, "")
	}
	p.expect(token.While, "")
	p.expect(token.LPar, LParenExpected)
	stmt.Condition = p.getExpression(true)
	p.expect(token.RPar, RParenExpected)
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	start := p.next()
	stmt := &ast.ReturnStatement{}
	if token.IsExpressionStart(p.peek().Type) {
		stmt.Expression = p.getExpression(true)
	}
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseThrowStatement() *ast.ThrowStatement {
	start := p.next()
	stmt := &ast.ThrowStatement{Expression: p.getExpression(true)}
	p.stamp(stmt, start)
	return stmt
}

// parseForStatement looks past an optional let/const to tell for-in and
// for-of loops from the three-clause form.
func (p *Parser) parseForStatement() ast.Statement {
	start := p.next()
	p.expect(token.LPar, LParenExpected)

	switch next := p.peek(); next.Type {
	case token.Identifier:
		if kind := p.ahead(1).Type; kind == token.In || kind == token.Of {
			return p.parseForInOfStatement(start, ast.BindNone, next.Text, kind)
		}
	case token.Let, token.Const:
		if id := p.ahead(1); id.Type == token.Identifier {
			if kind := p.ahead(2).Type; kind == token.In || kind == token.Of {
				binding := ast.BindLet
				if next.Type == token.Const {
					binding = ast.BindConst
				}
				return p.parseForInOfStatement(start, binding, id.Text, kind)
			}
		}
	}

	stmt := &ast.ForStatement{}
	switch next := p.peek(); {
	case next.Type == token.Semicolon:
		p.next()
	case next.Type == token.Let:
		init := p.parseLetStatement()
		for _, decl := range init.Declarations {
			if decl.Expression == nil {
				p.fail(ForLetNeedsInit, next)
			}
		}
		stmt.Init = init
		p.expect(token.Semicolon, "")
	case token.IsExpressionStart(next.Type):
		stmt.Init = p.parseExpressionStatement(true)
		p.expect(token.Semicolon, "")
	}

	if !p.skip(token.Semicolon) {
		stmt.Condition = p.getExpression(true)
		p.expect(token.Semicolon, "")
	}
	if p.peek().Type != token.RPar {
		stmt.Update = p.getExpression(true)
	}
	p.expect(token.RPar, RParenExpected)
	stmt.Body = p.parseStatement(true)
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseForInOfStatement(start token.Token, binding ast.VarBinding, id string, kind token.TokenType) ast.Statement {
	if binding != ast.BindNone {
		p.next()
	}
	p.next()
	p.next()
	expr := p.getExpression(true)
	p.expect(token.RPar, RParenExpected)
	body := p.parseStatement(true)

	if kind == token.In {
		stmt := &ast.ForInStatement{VarBinding: binding, ID: id, Expression: expr, Body: body}
		p.stamp(stmt, start)
		return stmt
	}
	stmt := &ast.ForOfStatement{VarBinding: binding, ID: id, Expression: expr, Body: body}
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseTryStatement() *ast.TryStatement {
	start := p.next()
	stmt := &ast.TryStatement{TryBlock: p.requireBlock()}

	switch next := p.peek(); next.Type {
	case token.Catch:
		p.next()
		if p.skip(token.LPar) {
			id := p.peek()
			if id.Type != token.Identifier {
				p.fail(IdentifierExpected, id)
			}
			stmt.CatchVariable = p.next().Text
			p.expect(token.RPar, RParenExpected)
		}
		stmt.CatchBlock = p.requireBlock()
		if p.skip(token.Finally) {
			stmt.FinallyBlock = p.requireBlock()
		}
	case token.Finally:
		p.next()
		stmt.FinallyBlock = p.requireBlock()
	default:
		p.fail(CatchOrFinallyExpected, next)
	}
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) requireBlock() *ast.BlockStatement {
	if next := p.peek(); next.Type != token.LBrace {
		p.fail(LBraceExpected, next)
	}
	return p.parseBlockStatement()
}

func (p *Parser) parseSwitchStatement() *ast.SwitchStatement {
	start := p.next()
	stmt := &ast.SwitchStatement{}
	p.expect(token.LPar, LParenExpected)
	stmt.Expression = p.getExpression(true)
	p.expect(token.RPar, RParenExpected)
	p.expect(token.LBrace, LBraceExpected)

	defaultFound := false
	for {
		caseStart := p.peek()
		c := &ast.SwitchCase{}
		switch caseStart.Type {
		case token.Case:
			p.next()
			c.Expression = p.getExpression(true)
		case token.Default:
			if defaultFound {
				p.fail(DuplicateDefault, caseStart)
			}
			defaultFound = true
			p.next()
		case token.RBrace:
			p.next()
			p.stamp(stmt, start)
			return stmt
		default:
			p.fail(CaseOrDefaultExpected, caseStart)
		}
		p.expect(token.Colon, ColonExpected)

	collect:
		for {
			switch p.peek().Type {
			case token.Case, token.Default, token.RBrace:
				break collect
			case token.Eof:
				p.fail(RBraceExpected, p.peek())
			}
			s := p.parseStatement(true)
			c.Statements = append(c.Statements, s)
			if _, empty := s.(*ast.EmptyStatement); !empty {
				p.skip(token.Semicolon)
			}
		}
		p.stamp(c, caseStart)
		stmt.Cases = append(stmt.Cases, c)
	}
}

func (p *Parser) parseFunctionDeclaration() *ast.FunctionDeclaration {
	start := p.next()
	name := p.peek()
	if name.Type != token.Identifier {
		p.fail(IdentifierExpected, name)
	}
	p.next()
	if next := p.peek(); next.Type != token.LPar {
		p.fail(LParenExpected, next)
	}
	params := p.toParams(p.getExpression(true), start)
	stmt := &ast.FunctionDeclaration{
		Name: name.Text,
		Args: params,
		Body: p.requireBlock(),
	}
	p.stamp(stmt, start)
	return stmt
}

func (p *Parser) parseExport() ast.Statement {
	p.next()
	switch next := p.peek(); next.Type {
	case token.Const:
		stmt := p.parseConstStatement()
		stmt.IsExported = true
		return stmt
	case token.Function:
		stmt := p.parseFunctionDeclaration()
		stmt.IsExported = true
		return stmt
	default:
		p.fail(InvalidExport, next)
	}
	return nil
}

func (p *Parser) parseImport() *ast.ImportDeclaration {
	start := p.next()
	p.expect(token.LBrace, LBraceExpected)
	stmt := &ast.ImportDeclaration{}
	seen := map[string]bool{}
	for p.peek().Type != token.RBrace {
		id := p.peek()
		if id.Type != token.Identifier {
			p.fail(IdentifierExpected, id)
		}
		p.next()
		spec := ast.ImportSpec{Name: id.Text, Alias: id.Text}
		aliasToken := id
		if p.skip(token.As) {
			aliasToken = p.peek()
			if aliasToken.Type != token.Identifier {
				p.fail(IdentifierExpected, aliasToken)
			}
			p.next()
			spec.Alias = aliasToken.Text
		}
		if seen[spec.Alias] {
			p.fail(DuplicateImport, aliasToken, spec.Alias)
		}
		seen[spec.Alias] = true
		stmt.Imports = append(stmt.Imports, spec)
		p.skip(token.Comma)
	}
	p.next()
	p.expect(token.From, FromExpected)

	moduleToken := p.peek()
	if moduleToken.Type != token.StringLiteral {
		p.fail(ModuleNameExpected, moduleToken)
	}
	p.next()
	stmt.ModuleFile = decodeString(moduleToken.Text)
	p.stamp(stmt, start)
	return stmt
}
