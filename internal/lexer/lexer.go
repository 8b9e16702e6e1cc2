package lexer

import (
	"errors"
	"ksx/internal/token"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxLookahead is the deepest token Ahead may inspect.
const MaxLookahead = 16

var ErrLookahead = errors.New("lexer: lookahead is limited to 16 tokens")

type operator struct {
	text string
	typ  token.TokenType
}

// operators is ordered longest text first so the scan takes the longest match.
var operators []operator

func init() {
	for t := token.Divide; t <= token.Spread; t++ {
		operators = append(operators, operator{text: t.String(), typ: t})
	}
	sort.SliceStable(operators, func(i, j int) bool {
		return len(operators[i].text) > len(operators[j].text)
	})
}

type Lexer struct {
	input      *Input
	keepTrivia bool
	ahead      []token.Token
}

// New creates a lexer that skips whitespace and comments.
func New(source string) *Lexer {
	return &Lexer{input: NewInput(source)}
}

// NewWithTrivia creates a lexer that also emits whitespace and comment tokens.
func NewWithTrivia(source string) *Lexer {
	return &Lexer{input: NewInput(source), keepTrivia: true}
}

func (l *Lexer) Input() *Input { return l.input }

// Next consumes and returns the next token. Once the input is exhausted every
// call returns an Eof token.
func (l *Lexer) Next() token.Token {
	if len(l.ahead) > 0 {
		t := l.ahead[0]
		l.ahead = l.ahead[1:]
		return t
	}
	return l.fetch()
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() token.Token {
	return l.Ahead(0)
}

// Ahead returns the token n positions ahead without consuming anything.
// It panics with ErrLookahead when n exceeds MaxLookahead.
func (l *Lexer) Ahead(n int) token.Token {
	if n < 0 || n > MaxLookahead {
		panic(ErrLookahead)
	}
	for len(l.ahead) <= n {
		l.ahead = append(l.ahead, l.fetch())
	}
	return l.ahead[n]
}

// Tail returns the unconsumed source starting at the next token.
func (l *Lexer) Tail() string {
	if len(l.ahead) > 0 {
		return l.input.Tail(l.ahead[0].Location.StartPosition)
	}
	return l.input.Tail(l.input.Position())
}

// LexRegex re-lexes the source from the next token as a regular expression
// literal. On success the literal is consumed and lexing resumes after it.
func (l *Lexer) LexRegex() RegexResult {
	start := l.Peek()
	tail := l.input.Tail(start.Location.StartPosition)
	res := ScanRegex(tail)
	if !res.Success {
		return res
	}
	text := tail[:res.Length]
	res.Token = token.Token{
		Text: text,
		Type: start.Type,
		Location: token.Location{
			StartPosition: start.Location.StartPosition,
			EndPosition:   start.Location.StartPosition + res.Length,
			Line:          start.Location.Line,
			StartColumn:   start.Location.StartColumn,
			EndColumn:     start.Location.StartColumn + utf8.RuneCountInString(text),
		},
	}
	l.ahead = l.ahead[:0]
	l.input.Seek(res.Token.Location.EndPosition, res.Token.Location.Line, res.Token.Location.EndColumn)
	return res
}

func (l *Lexer) fetch() token.Token {
	for {
		t := l.scan()
		if l.keepTrivia || !t.Type.IsTrivia() {
			return t
		}
	}
}

func (l *Lexer) scan() token.Token {
	in := l.input
	start, line, col := in.Position(), in.Line(), in.Column()
	typ := l.scanToken()
	text := in.source[start:in.Position()]
	return token.Token{
		Text: text,
		Type: typ,
		Location: token.Location{
			StartPosition: start,
			EndPosition:   in.Position(),
			Line:          line,
			StartColumn:   col,
			EndColumn:     col + utf8.RuneCountInString(text),
		},
	}
}

func (l *Lexer) scanToken() token.TokenType {
	in := l.input
	ch := in.Peek()
	switch {
	case ch == EOF:
		return token.Eof
	case isWhitespace(ch):
		for isWhitespace(in.Peek()) {
			in.Advance()
		}
		return token.Ws
	case ch == '/' && in.PeekNext() == '/':
		for {
			c := in.Advance()
			if c == '\n' || c == EOF {
				return token.EolComment
			}
		}
	case ch == '/' && in.PeekNext() == '*':
		return l.scanBlockComment()
	case isIdentStart(ch):
		start := in.Position()
		for isIdentPart(in.Peek()) {
			in.Advance()
		}
		return token.LookupIdent(in.source[start:in.Position()])
	case isDecimalDigit(ch):
		return l.scanNumber()
	case ch == '.' && isDecimalDigit(in.PeekNext()):
		in.Advance()
		l.acceptRun(isDecimalDigitOrSeparator)
		return l.scanExponent(token.RealLiteral)
	case ch == '"' || ch == '\'':
		return l.scanString(ch)
	}
	if t, ok := l.scanOperator(); ok {
		return t
	}
	in.Advance()
	return token.Unknown
}

func (l *Lexer) scanBlockComment() token.TokenType {
	in := l.input
	in.Advance()
	in.Advance()
	for {
		switch in.Advance() {
		case EOF:
			return token.Unknown
		case '*':
			if in.Peek() == '/' {
				in.Advance()
				return token.BlockComment
			}
		}
	}
}

func (l *Lexer) scanOperator() (token.TokenType, bool) {
	tail := l.input.Tail(l.input.Position())
	for _, op := range operators {
		if !strings.HasPrefix(tail, op.text) {
			continue
		}
		// "a?.5:1" is a conditional, not an optional chain
		if op.typ == token.OptionalChaining && len(tail) > 2 && isDecimalDigit(rune(tail[2])) {
			continue
		}
		for range op.text {
			l.input.Advance()
		}
		return op.typ, true
	}
	return token.Unknown, false
}

func (l *Lexer) scanNumber() token.TokenType {
	in := l.input
	if in.Peek() == '0' {
		switch in.PeekNext() {
		case 'x', 'X':
			in.Advance()
			in.Advance()
			if !l.acceptRun(isHexDigitOrSeparator) {
				return token.Unknown
			}
			return token.HexLiteral
		case 'b', 'B':
			in.Advance()
			in.Advance()
			if !l.acceptRun(isBinDigitOrSeparator) {
				return token.Unknown
			}
			return token.BinLiteral
		}
	}
	l.acceptRun(isDecimalDigitOrSeparator)
	typ := token.DecLiteral
	if in.Peek() == '.' {
		if next := in.PeekNext(); isDecimalDigit(next) || next == EOF {
			in.Advance()
			l.acceptRun(isDecimalDigitOrSeparator)
			typ = token.RealLiteral
		}
	}
	return l.scanExponent(typ)
}

func (l *Lexer) scanExponent(typ token.TokenType) token.TokenType {
	in := l.input
	if c := in.Peek(); c != 'e' && c != 'E' {
		return typ
	}
	in.Advance()
	if c := in.Peek(); c == '+' || c == '-' {
		in.Advance()
	}
	if !l.acceptRun(isDecimalDigit) {
		return token.Unknown
	}
	return token.RealLiteral
}

func (l *Lexer) scanString(quote rune) token.TokenType {
	in := l.input
	in.Advance()
	for {
		switch ch := in.Peek(); {
		case ch == EOF || ch == '\n' || ch == '\r':
			return token.Unknown
		case ch == quote:
			in.Advance()
			return token.StringLiteral
		case ch == '\\':
			in.Advance()
			if !l.scanEscape() {
				return token.Unknown
			}
		default:
			in.Advance()
		}
	}
}

// scanEscape consumes the part of an escape sequence after the backslash.
func (l *Lexer) scanEscape() bool {
	in := l.input
	switch in.Peek() {
	case EOF:
		return false
	case 'x':
		in.Advance()
		return l.acceptHex(2)
	case 'u':
		in.Advance()
		if in.Peek() != '{' {
			return l.acceptHex(4)
		}
		in.Advance()
		n := 0
		for isHexDigit(in.Peek()) && n < 6 {
			in.Advance()
			n++
		}
		if n == 0 || in.Peek() != '}' {
			return false
		}
		in.Advance()
		return true
	default:
		in.Advance()
		return true
	}
}

func (l *Lexer) acceptHex(n int) bool {
	for i := 0; i < n; i++ {
		if !isHexDigit(l.input.Peek()) {
			return false
		}
		l.input.Advance()
	}
	return true
}

func (l *Lexer) acceptRun(valid func(rune) bool) bool {
	n := 0
	for valid(l.input.Peek()) {
		l.input.Advance()
		n++
	}
	return n > 0
}

func isWhitespace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || ch == '$' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || isDecimalDigit(ch)
}

func isDecimalDigit(ch rune) bool { return '0' <= ch && ch <= '9' }

func isDecimalDigitOrSeparator(ch rune) bool { return isDecimalDigit(ch) || ch == '_' }

func isHexDigit(ch rune) bool {
	return isDecimalDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
}

func isHexDigitOrSeparator(ch rune) bool { return isHexDigit(ch) || ch == '_' }

func isBinDigitOrSeparator(ch rune) bool { return ch == '0' || ch == '1' || ch == '_' }
