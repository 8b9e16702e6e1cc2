package parser

import (
	"errors"
	"ksx/internal/token"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxSafeInteger is the largest integer a float64 holds exactly.
var maxSafeInteger = big.NewInt(1<<53 - 1)

// decodeNumber turns a numeric token into float64, or *big.Int when an
// integer literal is beyond the safe integer range.
func decodeNumber(tok token.Token) (any, bool) {
	text := strings.ReplaceAll(tok.Text, "_", "")
	switch tok.Type {
	case token.RealLiteral:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, false
		}
		return f, true
	case token.HexLiteral:
		return integerLiteral(text[2:], 16)
	case token.BinLiteral:
		return integerLiteral(text[2:], 2)
	default:
		return integerLiteral(text, 10)
	}
}

func integerLiteral(digits string, base int) (any, bool) {
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, false
	}
	if v.CmpAbs(maxSafeInteger) > 0 {
		return v, true
	}
	return float64(v.Int64()), true
}

// decodeString strips the quotes of a string token and resolves its escapes.
// Unknown escapes keep their backslash.
func decodeString(text string) string {
	if len(text) < 2 {
		return ""
	}
	s := text[1 : len(text)-1]
	var sb strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r != '\\' || i >= len(s) {
			sb.WriteRune(r)
			continue
		}

		c, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch c {
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case 'S':
			sb.WriteRune('\u00a0')
		case '0':
			sb.WriteByte(0)
		case '\'', '"', '`', '\\':
			sb.WriteRune(c)
		case 'x':
			if i+2 <= len(s) {
				if v, err := strconv.ParseUint(s[i:i+2], 16, 8); err == nil {
					sb.WriteRune(rune(v))
					i += 2
					continue
				}
			}
			sb.WriteByte('x')
		case 'u':
			if n, consumed := unicodeEscape(s[i:]); consumed > 0 {
				sb.WriteRune(n)
				i += consumed
				continue
			}
			sb.WriteByte('u')
		default:
			sb.WriteByte('\\')
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// unicodeEscape reads HHHH or {H..HHHHHH} after "\u".
func unicodeEscape(s string) (rune, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 || end > 7 {
			return 0, 0
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || !utf8.ValidRune(rune(v)) {
			return 0, 0
		}
		return rune(v), end + 1
	}
	if len(s) < 4 {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, 0
	}
	return rune(v), 4
}
