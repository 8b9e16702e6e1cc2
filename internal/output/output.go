// Package output defines the styled text sink scripts and the script
// manager write to, with a terminal and an in-memory implementation.
package output

import (
	"strings"
	"sync"
)

// Sink receives styled text. Style changes apply to text written after
// them until the style is reset or popped.
type Sink interface {
	Write(text string)
	WriteLine(text string)
	Color(name string)
	Background(name string)
	Bold(on bool)
	Italic(on bool)
	Underline(on bool)
	Strike(on bool)
	PushStyle()
	PopStyle()
	ResetStyle()
}

// Style is the text attribute state of a sink. Colours are CGA indexes,
// -1 meaning the terminal default.
type Style struct {
	Foreground int
	Background int
	Bold       bool
	Italic     bool
	Underline  bool
	Strike     bool
}

func DefaultStyle() Style {
	return Style{Foreground: -1, Background: -1}
}

// ParseColor converts a colour name or a number 0-15 to a CGA index.
// Unknown names give -1.
func ParseColor(name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	if n, ok := colorNumbers[name]; ok {
		return n
	}
	switch name {
	case "black":
		return 0
	case "blue":
		return 1
	case "green":
		return 2
	case "cyan", "teal":
		return 3
	case "red":
		return 4
	case "magenta", "purple":
		return 5
	case "brown", "orange", "dark yellow":
		return 6
	case "gray", "grey", "silver":
		return 7
	case "dark gray", "dark grey", "bright black":
		return 8
	case "bright blue", "light blue":
		return 9
	case "bright green", "light green":
		return 10
	case "bright cyan", "light cyan", "aqua":
		return 11
	case "bright red", "light red":
		return 12
	case "bright magenta", "light magenta", "pink":
		return 13
	case "yellow", "bright yellow":
		return 14
	case "white", "bright white":
		return 15
	}
	return -1
}

var colorNumbers = map[string]int{
	"0": 0, "1": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7,
	"8": 8, "9": 9, "10": 10, "11": 11, "12": 12, "13": 13, "14": 14, "15": 15,
}

// styleStack implements the style half of a Sink.
type styleStack struct {
	mu      sync.Mutex
	current Style
	saved   []Style
}

func newStyleStack() styleStack {
	return styleStack{current: DefaultStyle()}
}

func (s *styleStack) update(f func(*Style)) {
	s.mu.Lock()
	f(&s.current)
	s.mu.Unlock()
}

func (s *styleStack) style() Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *styleStack) Color(name string) {
	s.update(func(st *Style) { st.Foreground = ParseColor(name) })
}

func (s *styleStack) Background(name string) {
	s.update(func(st *Style) { st.Background = ParseColor(name) })
}

func (s *styleStack) Bold(on bool)      { s.update(func(st *Style) { st.Bold = on }) }
func (s *styleStack) Italic(on bool)    { s.update(func(st *Style) { st.Italic = on }) }
func (s *styleStack) Underline(on bool) { s.update(func(st *Style) { st.Underline = on }) }
func (s *styleStack) Strike(on bool)    { s.update(func(st *Style) { st.Strike = on }) }

func (s *styleStack) PushStyle() {
	s.mu.Lock()
	s.saved = append(s.saved, s.current)
	s.mu.Unlock()
}

// PopStyle restores the last pushed style; with nothing pushed it resets.
func (s *styleStack) PopStyle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.saved); n > 0 {
		s.current = s.saved[n-1]
		s.saved = s.saved[:n-1]
		return
	}
	s.current = DefaultStyle()
}

func (s *styleStack) ResetStyle() {
	s.mu.Lock()
	s.current = DefaultStyle()
	s.saved = nil
	s.mu.Unlock()
}

// Prefixed writes every line to sink behind a fixed prefix, such as the
// id of the script producing it.
type Prefixed struct {
	Sink
	Prefix string

	mu          sync.Mutex
	atLineStart bool
}

func NewPrefixed(sink Sink, prefix string) *Prefixed {
	return &Prefixed{Sink: sink, Prefix: prefix, atLineStart: true}
}

func (p *Prefixed) Write(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if text == "" {
		return
	}
	if p.atLineStart {
		p.Sink.Write(p.Prefix)
	}
	p.Sink.Write(text)
	p.atLineStart = strings.HasSuffix(text, "\n")
}

func (p *Prefixed) WriteLine(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.atLineStart {
		p.Sink.Write(p.Prefix)
	}
	p.Sink.WriteLine(text)
	p.atLineStart = true
}
