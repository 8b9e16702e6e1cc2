package output

import (
	"strings"
	"sync"
)

// Buffer collects plain text in memory and drops styling. Tests and the
// script history use it.
type Buffer struct {
	styleStack
	mu sync.Mutex
	sb strings.Builder
}

func NewBuffer() *Buffer {
	return &Buffer{styleStack: newStyleStack()}
}

func (b *Buffer) Write(text string) {
	b.mu.Lock()
	b.sb.WriteString(text)
	b.mu.Unlock()
}

func (b *Buffer) WriteLine(text string) {
	b.Write(text + "\n")
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

// Lines returns the complete lines written so far.
func (b *Buffer) Lines() []string {
	s := strings.TrimSuffix(b.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Style exposes the current style for inspection.
func (b *Buffer) Style() Style { return b.style() }

// Discard drops everything written to it.
var Discard Sink = &discard{styleStack: newStyleStack()}

type discard struct{ styleStack }

func (*discard) Write(string)     {}
func (*discard) WriteLine(string) {}
