package token

import "fmt"

// TokenType is ordinal; whitespace and comments sort lowest so callers can
// drop trivia with a single comparison against Ws.
type TokenType int

const (
	EolComment TokenType = iota
	BlockComment
	Ws

	Eof
	Unknown

	// Operators and delimiters
	Divide
	Multiply
	Remainder
	Plus
	Minus
	Xor
	BinaryOr
	BinaryAnd
	QuestionMark
	Semicolon
	Comma
	LPar
	RPar
	Colon
	DoubleColon
	LSBrac
	RSBrac
	BinaryNot
	LBrace
	RBrace
	Assignment
	Equal
	StrictEqual
	Arrow
	LogicalNot
	NotEqual
	StrictNotEqual
	LessThan
	LessThanOrEqual
	LeftShift
	LeftShiftAssignment
	GreaterThan
	GreaterThanOrEqual
	SignedShiftRight
	SignedShiftRightAssignment
	ShiftRight
	ShiftRightAssignment
	Exponent
	ExponentAssignment
	IncOp
	DecOp
	AddAssignment
	SubtractAssignment
	MultiplyAssignment
	DivideAssignment
	RemainderAssignment
	BinaryAndAssignment
	BinaryOrAssignment
	BinaryXorAssignment
	AndAssignment
	OrAssignment
	NullCoalesceAssignment
	LogicalAnd
	LogicalOr
	NullCoalesce
	OptionalChaining
	Dot
	Spread

	// Literals
	Identifier
	DecLiteral
	HexLiteral
	BinLiteral
	RealLiteral
	StringLiteral

	// Keywords
	Typeof
	Infinity
	NaN
	True
	False
	Undefined
	Null
	In
	Let
	Const
	If
	Else
	Return
	Break
	Continue
	Do
	While
	For
	Of
	Try
	Catch
	Finally
	Throw
	Switch
	Case
	Default
	Delete
	Function
	Export
	Import
	As
	From
)

var names = map[TokenType]string{
	EolComment: "EolComment", BlockComment: "BlockComment", Ws: "Ws",
	Eof: "Eof", Unknown: "Unknown",
	Divide: "/", Multiply: "*", Remainder: "%", Plus: "+", Minus: "-", Xor: "^",
	BinaryOr: "|", BinaryAnd: "&", QuestionMark: "?", Semicolon: ";", Comma: ",",
	LPar: "(", RPar: ")", Colon: ":", DoubleColon: "::", LSBrac: "[", RSBrac: "]",
	BinaryNot: "~", LBrace: "{", RBrace: "}", Assignment: "=", Equal: "==",
	StrictEqual: "===", Arrow: "=>", LogicalNot: "!", NotEqual: "!=", StrictNotEqual: "!==",
	LessThan: "<", LessThanOrEqual: "<=", LeftShift: "<<", LeftShiftAssignment: "<<=",
	GreaterThan: ">", GreaterThanOrEqual: ">=", SignedShiftRight: ">>",
	SignedShiftRightAssignment: ">>=", ShiftRight: ">>>", ShiftRightAssignment: ">>>=",
	Exponent: "**", ExponentAssignment: "**=", IncOp: "++", DecOp: "--",
	AddAssignment: "+=", SubtractAssignment: "-=", MultiplyAssignment: "*=",
	DivideAssignment: "/=", RemainderAssignment: "%=", BinaryAndAssignment: "&=",
	BinaryOrAssignment: "|=", BinaryXorAssignment: "^=", AndAssignment: "&&=",
	OrAssignment: "||=", NullCoalesceAssignment: "??=", LogicalAnd: "&&", LogicalOr: "||",
	NullCoalesce: "??", OptionalChaining: "?.", Dot: ".", Spread: "...",
	Identifier: "Identifier", DecLiteral: "DecLiteral", HexLiteral: "HexLiteral",
	BinLiteral: "BinLiteral", RealLiteral: "RealLiteral", StringLiteral: "StringLiteral",
}

var keywords = map[string]TokenType{
	"typeof":    Typeof,
	"Infinity":  Infinity,
	"NaN":       NaN,
	"true":      True,
	"false":     False,
	"undefined": Undefined,
	"null":      Null,
	"in":        In,
	"let":       Let,
	"const":     Const,
	"if":        If,
	"else":      Else,
	"return":    Return,
	"break":     Break,
	"continue":  Continue,
	"do":        Do,
	"while":     While,
	"for":       For,
	"of":        Of,
	"try":       Try,
	"catch":     Catch,
	"finally":   Finally,
	"throw":     Throw,
	"switch":    Switch,
	"case":      Case,
	"default":   Default,
	"delete":    Delete,
	"function":  Function,
	"export":    Export,
	"import":    Import,
	"as":        As,
	"from":      From,
}

func init() {
	for word, t := range keywords {
		names[t] = word
	}
}

func (t TokenType) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// IsTrivia reports whether the token is whitespace or a comment.
func (t TokenType) IsTrivia() bool { return t <= Ws }

// Location is the span of a token in its source.
type Location struct {
	StartPosition int // byte offset of the first character
	EndPosition   int // byte offset one past the last character
	Line          int // 1-based line of the first character
	StartColumn   int // 1-based column of the first character
	EndColumn     int // 1-based column one past the last character
}

type Token struct {
	Text     string
	Type     TokenType
	Location Location
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q @%d:%d", t.Type, t.Text, t.Location.Line, t.Location.StartColumn)
}

func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return Identifier
}

// IsKeywordLike reports whether the token may act as an identifier after a
// member access dot or as an object literal key.
func IsKeywordLike(t TokenType) bool {
	return t == Identifier || t >= Typeof
}

// IsExpressionStart reports whether a token can begin an expression.
func IsExpressionStart(t TokenType) bool {
	switch t {
	case Identifier, DoubleColon, True, False, DecLiteral, HexLiteral, BinLiteral, RealLiteral,
		StringLiteral, Infinity, NaN, Null, Undefined, LPar, LSBrac, LBrace, Divide,
		Typeof, Delete, Plus, Minus, BinaryNot, LogicalNot, IncOp, DecOp, Spread:
		return true
	}
	return false
}

// IsAssignment reports whether the token is a plain or compound assignment.
func IsAssignment(t TokenType) bool {
	switch t {
	case Assignment, AddAssignment, SubtractAssignment, MultiplyAssignment, DivideAssignment,
		RemainderAssignment, ExponentAssignment, LeftShiftAssignment, SignedShiftRightAssignment,
		ShiftRightAssignment, BinaryAndAssignment, BinaryOrAssignment, BinaryXorAssignment,
		AndAssignment, OrAssignment, NullCoalesceAssignment:
		return true
	}
	return false
}
