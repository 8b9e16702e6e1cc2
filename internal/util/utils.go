package util

import (
	"bytes"
	"fmt"
	"strings"
)

// GetContextLines renders the error line of src with up to two lines before
// it and a caret under errorCol followed by message. Lines and columns are
// 1-based.
func GetContextLines(src string, errorLine, errorCol int, message string) string {
	var result bytes.Buffer
	lines := strings.Split(src, "\n")

	startLine := max(errorLine-2, 1)
	for i := startLine; i <= errorLine && i <= len(lines); i++ {
		lineContent := strings.TrimSuffix(lines[i-1], "\r")
		if i != errorLine {
			result.WriteString(fmt.Sprintf("     %3d | %s\n", i, lineContent))
			continue
		}
		margin := fmt.Sprintf("  >  %3d | ", i)
		result.WriteString(margin + lineContent + "\n")
		col := min(max(errorCol-1, 0), len(lineContent))
		result.WriteString(replaceVisibleWithSpaces(margin+lineContent[:col]) + "^ " + message)
	}
	return result.String()
}

// replaceVisibleWithSpaces replaces all non-whitespace characters with spaces
// while preserving tabs for correct alignment.
func replaceVisibleWithSpaces(s string) string {
	var buf bytes.Buffer
	for _, c := range s {
		if c == '\t' {
			buf.WriteRune('\t')
		} else {
			buf.WriteRune(' ')
		}
	}
	return buf.String()
}
