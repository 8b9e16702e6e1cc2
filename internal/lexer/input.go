package lexer

import "unicode/utf8"

// EOF is returned by Input.Peek when the cursor is past the last rune.
const EOF rune = -1

// Input is a rune cursor over a source string that tracks byte offset,
// 1-based line and 1-based column.
type Input struct {
	source   string
	position int
	line     int
	column   int
}

func NewInput(source string) *Input {
	return &Input{source: source, line: 1, column: 1}
}

func (in *Input) Position() int { return in.position }
func (in *Input) Line() int     { return in.line }
func (in *Input) Column() int   { return in.column }
func (in *Input) Source() string {
	return in.source
}

func (in *Input) Eof() bool { return in.position >= len(in.source) }

// Peek returns the rune under the cursor without consuming it.
func (in *Input) Peek() rune {
	if in.position >= len(in.source) {
		return EOF
	}
	r, _ := utf8.DecodeRuneInString(in.source[in.position:])
	return r
}

// PeekNext returns the rune after the one under the cursor.
func (in *Input) PeekNext() rune {
	if in.position >= len(in.source) {
		return EOF
	}
	_, size := utf8.DecodeRuneInString(in.source[in.position:])
	next := in.position + size
	if next >= len(in.source) {
		return EOF
	}
	r, _ := utf8.DecodeRuneInString(in.source[next:])
	return r
}

// Advance consumes one rune and returns it.
func (in *Input) Advance() rune {
	if in.position >= len(in.source) {
		return EOF
	}
	r, size := utf8.DecodeRuneInString(in.source[in.position:])
	in.position += size
	if r == '\n' {
		in.line++
		in.column = 1
	} else {
		in.column++
	}
	return r
}

// Tail returns the unread source starting at the given byte offset.
func (in *Input) Tail(offset int) string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(in.source) {
		return ""
	}
	return in.source[offset:]
}

// Seek repositions the cursor. The caller supplies line and column so the
// cursor does not rescan the source.
func (in *Input) Seek(offset, line, column int) {
	in.position = offset
	in.line = line
	in.column = column
}
