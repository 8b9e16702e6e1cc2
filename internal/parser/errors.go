package parser

import (
	"fmt"
	"strings"
)

// ErrorCode identifies a parse or module resolution error.
type ErrorCode string

const (
	ExpressionExpected        ErrorCode = "K001"
	UnexpectedToken           ErrorCode = "K002"
	IdentifierExpected        ErrorCode = "K003"
	RBraceExpected            ErrorCode = "K004"
	RSquareExpected           ErrorCode = "K005"
	RParenExpected            ErrorCode = "K006"
	InvalidPropertyName       ErrorCode = "K007"
	ColonExpected             ErrorCode = "K008"
	DestructureNeedsInit      ErrorCode = "K009"
	InvalidParameterList      ErrorCode = "K010"
	ForLetNeedsInit           ErrorCode = "K011"
	LBraceExpected            ErrorCode = "K012"
	CatchOrFinallyExpected    ErrorCode = "K013"
	LParenExpected            ErrorCode = "K014"
	CaseOrDefaultExpected     ErrorCode = "K015"
	DuplicateDefault          ErrorCode = "K016"
	InvalidArrayDestructure   ErrorCode = "K017"
	InvalidObjectDestructure  ErrorCode = "K018"
	InvalidExport             ErrorCode = "K019"
	FromExpected              ErrorCode = "K020"
	ModuleNameExpected        ErrorCode = "K021"
	DuplicateImport           ErrorCode = "K022"
	DuplicateFunction         ErrorCode = "K023"
	DuplicateExport           ErrorCode = "K024"
	ModuleNotFound            ErrorCode = "K025"
	NotExported               ErrorCode = "K026"
	ImportedModuleHasProblems ErrorCode = "K027"
)

var messages = map[ErrorCode]string{
	ExpressionExpected:        "An expression expected",
	UnexpectedToken:           "Unexpected token: '{0}'",
	IdentifierExpected:        "An identifier expected",
	RBraceExpected:            "'}' expected",
	RSquareExpected:           "']' expected",
	RParenExpected:            "')' expected",
	InvalidPropertyName:       "Invalid object property name, '}' expected",
	ColonExpected:             "':' expected",
	DestructureNeedsInit:      "A destructure declaration must be initialized",
	InvalidParameterList:      "Invalid function parameter list",
	ForLetNeedsInit:           "A for-loop 'let' declaration must be initialized",
	LBraceExpected:            "'{' expected",
	CatchOrFinallyExpected:    "'catch' or 'finally' expected",
	LParenExpected:            "'(' expected",
	CaseOrDefaultExpected:     "'case' or 'default' expected",
	DuplicateDefault:          "A switch statement can have only one 'default' clause",
	InvalidArrayDestructure:   "Invalid array destructure",
	InvalidObjectDestructure:  "Invalid object destructure",
	InvalidExport:             "Only 'const' and 'function' declarations can be exported",
	FromExpected:              "'from' expected",
	ModuleNameExpected:        "A module name string expected",
	DuplicateImport:           "Duplicated import name: '{0}'",
	DuplicateFunction:         "Duplicated function declaration: '{0}'",
	DuplicateExport:           "Duplicated export: '{0}'",
	ModuleNotFound:            "Module '{0}' not found",
	NotExported:               "'{0}' is not exported by module '{1}'",
	ImportedModuleHasProblems: "Imported module '{0}' has errors",
}

// Error is a positioned diagnostic. Line and Column are 1-based, Position is
// the byte offset in the source.
type Error struct {
	Code     ErrorCode
	Text     string
	Line     int
	Column   int
	Position int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d:%d)", e.Code, e.Text, e.Line, e.Column)
}

// NewError formats the message of code with the given arguments.
func NewError(code ErrorCode, line, column, position int, args ...any) *Error {
	return &Error{
		Code:     code,
		Text:     FormatMessage(code, args...),
		Line:     line,
		Column:   column,
		Position: position,
	}
}

// FormatMessage substitutes {0}, {1}, ... in the message template of code.
func FormatMessage(code ErrorCode, args ...any) string {
	text, ok := messages[code]
	if !ok {
		return "Unknown error"
	}
	for i, arg := range args {
		text = strings.ReplaceAll(text, fmt.Sprintf("{%d}", i), fmt.Sprint(arg))
	}
	return text
}
