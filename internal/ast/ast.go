package ast

import (
	"ksx/internal/token"
	"math/big"
)

// Span is the source range a node was parsed from. Lines and columns are 1-based.
type Span struct {
	StartPosition int
	EndPosition   int
	StartLine     int
	StartColumn   int
	EndLine       int
	EndColumn     int
	Source        string
}

// The base Node interface
type Node interface {
	TokenLiteral() string
	String() string
	Base() *NodeBase
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
	Parens() int
	Parenthesize()
}

// NodeBase carries the data every node has. ID is unique within one parse and
// keys evaluation-time annotations.
type NodeBase struct {
	ID    int
	Token token.Token // first token of the node
	Span  Span
}

func (n *NodeBase) Base() *NodeBase      { return n }
func (n *NodeBase) TokenLiteral() string { return n.Token.Text }
func (n *NodeBase) String() string       { return n.Span.Source }

type ExprBase struct {
	NodeBase
	Parenthesized int
}

func (e *ExprBase) expressionNode() {}
func (e *ExprBase) Parens() int     { return e.Parenthesized }
func (e *ExprBase) Parenthesize()   { e.Parenthesized++ }

type StmtBase struct {
	NodeBase
}

func (s *StmtBase) statementNode() {}

type Program struct {
	Statements []Statement
}

// ----------------------------------------------------------------------------
// Statements

type EmptyStatement struct{ StmtBase }

type ExpressionStatement struct {
	StmtBase
	Expression Expression
}

// VarDeclaration binds one name or one destructure pattern.
type VarDeclaration struct {
	StmtBase
	ID             string
	ArrayDestruct  *ArrayDestructure
	ObjectDestruct *ObjectDestructure
	Expression     Expression
}

type LetStatement struct {
	StmtBase
	Declarations []*VarDeclaration
}

type ConstStatement struct {
	StmtBase
	Declarations []*VarDeclaration
	IsExported   bool
}

type BlockStatement struct {
	StmtBase
	Statements []Statement
}

type IfStatement struct {
	StmtBase
	Condition  Expression
	ThenBranch Statement
	ElseBranch Statement
}

type WhileStatement struct {
	StmtBase
	Condition Expression
	Body      Statement
}

type DoWhileStatement struct {
	StmtBase
	Condition Expression
	Body      Statement
}

type ReturnStatement struct {
	StmtBase
	Expression Expression
}

type BreakStatement struct{ StmtBase }

type ContinueStatement struct{ StmtBase }

type ThrowStatement struct {
	StmtBase
	Expression Expression
}

type ForStatement struct {
	StmtBase
	Init      Statement
	Condition Expression
	Update    Expression
	Body      Statement
}

// VarBinding tells how a for-in/for-of loop binds its variable.
type VarBinding int

const (
	BindNone VarBinding = iota
	BindLet
	BindConst
)

func (v VarBinding) String() string {
	switch v {
	case BindLet:
		return "let"
	case BindConst:
		return "const"
	}
	return "none"
}

type ForInStatement struct {
	StmtBase
	VarBinding VarBinding
	ID         string
	Expression Expression
	Body       Statement
}

type ForOfStatement struct {
	StmtBase
	VarBinding VarBinding
	ID         string
	Expression Expression
	Body       Statement
}

type TryStatement struct {
	StmtBase
	TryBlock      *BlockStatement
	CatchVariable string
	CatchBlock    *BlockStatement
	FinallyBlock  *BlockStatement
}

// SwitchCase is a default clause when Expression is nil.
type SwitchCase struct {
	NodeBase
	Expression Expression
	Statements []Statement
}

type SwitchStatement struct {
	StmtBase
	Expression Expression
	Cases      []*SwitchCase
}

type FunctionDeclaration struct {
	StmtBase
	Name       string
	Args       []Expression
	Body       *BlockStatement
	IsExported bool
}

type ImportSpec struct {
	Name  string // name exported by the module
	Alias string // local name, equals Name without "as"
}

type ImportDeclaration struct {
	StmtBase
	Imports    []ImportSpec
	ModuleFile string
}

// ----------------------------------------------------------------------------
// Expressions

type UnaryExpression struct {
	ExprBase
	Operator token.TokenType
	Operand  Expression
}

type BinaryExpression struct {
	ExprBase
	Operator token.TokenType
	Left     Expression
	Right    Expression
}

// SequenceExpression is "a, b, c". Loose marks an elided element such as
// "[a,, b]" flattened into a sequence.
type SequenceExpression struct {
	ExprBase
	Expressions []Expression
	Loose       bool
}

type ConditionalExpression struct {
	ExprBase
	Condition  Expression
	Consequent Expression
	Alternate  Expression
}

type FunctionInvocation struct {
	ExprBase
	Object    Expression
	Arguments []Expression
}

type MemberAccess struct {
	ExprBase
	Object     Expression
	Member     string
	IsOptional bool
}

type CalculatedMemberAccess struct {
	ExprBase
	Object Expression
	Member Expression
}

type Identifier struct {
	ExprBase
	Name     string
	IsGlobal bool
}

// UndefinedValue marks a Literal of undefined.
type UndefinedValue struct{}

// Literal holds float64, *big.Int, string, bool, nil (null) or UndefinedValue.
type Literal struct {
	ExprBase
	Value any
}

func (l *Literal) BigInt() (*big.Int, bool) {
	b, ok := l.Value.(*big.Int)
	return b, ok
}

type RegExpLiteral struct {
	ExprBase
	Pattern string
	Flags   string
}

type ArrayLiteral struct {
	ExprBase
	Items []Expression
}

// Property is an object literal entry. A spread entry has no Key and a
// SpreadExpression Value.
type Property struct {
	Key   Expression
	Value Expression
}

type ObjectLiteral struct {
	ExprBase
	Props []Property
}

type SpreadExpression struct {
	ExprBase
	Operand Expression
}

type ArrowExpression struct {
	ExprBase
	Name      string // set for hoisted function declarations
	Args      []Expression
	Statement Statement
}

type AssignmentExpression struct {
	ExprBase
	Operator  token.TokenType
	Leftvalue Expression
	Operand   Expression
}

type PrefixOpExpression struct {
	ExprBase
	Operator token.TokenType
	Operand  Expression
}

type PostfixOpExpression struct {
	ExprBase
	Operator token.TokenType
	Operand  Expression
}

// NoArgExpression is the empty parameter list "()".
type NoArgExpression struct{ ExprBase }

// DestructureItem is one entry of a destructure pattern. An array pattern
// hole has an empty ID and no nested pattern.
type DestructureItem struct {
	ID             string
	Alias          string
	ArrayDestruct  *ArrayDestructure
	ObjectDestruct *ObjectDestructure
}

// BoundName is the variable an item binds, if any.
func (d *DestructureItem) BoundName() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.ID
}

type ArrayDestructure struct {
	ExprBase
	Items []*DestructureItem
}

type ObjectDestructure struct {
	ExprBase
	Items []*DestructureItem
}

// DestructuredNames lists every variable name a pattern binds, in order.
func DestructuredNames(array *ArrayDestructure, object *ObjectDestructure) []string {
	var names []string
	var items []*DestructureItem
	if array != nil {
		items = array.Items
	} else if object != nil {
		items = object.Items
	}
	for _, item := range items {
		switch {
		case item.ArrayDestruct != nil || item.ObjectDestruct != nil:
			names = append(names, DestructuredNames(item.ArrayDestruct, item.ObjectDestruct)...)
		case item.BoundName() != "":
			names = append(names, item.BoundName())
		}
	}
	return names
}
