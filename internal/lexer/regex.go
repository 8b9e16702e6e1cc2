package lexer

import (
	"ksx/internal/token"
	"strings"
)

// RegexFlags lists the flag characters accepted after a regex literal.
const RegexFlags = "dgimsuy"

type RegexResult struct {
	Success bool
	Pattern string
	Flags   string
	Length  int // byte length of the literal including slashes and flags
	Token   token.Token
}

// ScanRegex reads a /pattern/flags literal from the start of tail. The body
// may contain escapes and [...] classes and never spans a line break.
func ScanRegex(tail string) RegexResult {
	if len(tail) < 2 || tail[0] != '/' {
		return RegexResult{}
	}
	i := 1
	inClass := false
body:
	for {
		if i >= len(tail) {
			return RegexResult{}
		}
		switch tail[i] {
		case '\n', '\r':
			return RegexResult{}
		case '\\':
			if i+1 >= len(tail) || tail[i+1] == '\n' || tail[i+1] == '\r' {
				return RegexResult{}
			}
			i += 2
			continue
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if !inClass {
				break body
			}
		}
		i++
	}
	if i == 1 {
		return RegexResult{}
	}
	pattern := tail[1:i]
	i++
	flagStart := i
	for i < len(tail) && strings.IndexByte(RegexFlags, tail[i]) >= 0 {
		if strings.IndexByte(tail[flagStart:i], tail[i]) >= 0 {
			return RegexResult{}
		}
		i++
	}
	return RegexResult{
		Success: true,
		Pattern: pattern,
		Flags:   tail[flagStart:i],
		Length:  i,
	}
}
