package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ColorMode selects when a terminal sink emits ANSI escapes.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Terminal writes text to a stream, styled with ANSI escape sequences when
// colour is enabled.
type Terminal struct {
	styleStack
	w     io.Writer
	ansi  bool
	wlock sync.Mutex
}

// NewTerminal creates a sink for w. In auto mode escapes are used only
// when w is a terminal and TERM is not "dumb".
func NewTerminal(w io.Writer, mode ColorMode) *Terminal {
	ansi := false
	switch mode {
	case ColorAlways:
		ansi = true
	case ColorNever:
	default:
		if f, ok := w.(*os.File); ok {
			ansi = term.IsTerminal(int(f.Fd())) && os.Getenv("TERM") != "dumb"
		}
	}
	return &Terminal{styleStack: newStyleStack(), w: w, ansi: ansi}
}

// Stdout is a terminal sink on standard output in auto colour mode.
func Stdout() *Terminal { return NewTerminal(os.Stdout, ColorAuto) }

func (t *Terminal) Write(text string) {
	t.wlock.Lock()
	defer t.wlock.Unlock()
	if !t.ansi {
		io.WriteString(t.w, text)
		return
	}
	if seq := ansiStyle(t.style()); seq != "" {
		io.WriteString(t.w, seq+text+ansiReset)
		return
	}
	io.WriteString(t.w, text)
}

func (t *Terminal) WriteLine(text string) {
	t.Write(text)
	t.wlock.Lock()
	io.WriteString(t.w, "\n")
	t.wlock.Unlock()
}

const ansiReset = "\x1b[0m"

func ansiStyle(s Style) string {
	var codes []string
	if s.Bold {
		codes = append(codes, "1")
	}
	if s.Italic {
		codes = append(codes, "3")
	}
	if s.Underline {
		codes = append(codes, "4")
	}
	if s.Strike {
		codes = append(codes, "9")
	}
	if s.Foreground >= 0 {
		codes = append(codes, fmt.Sprint(cgaToANSI(s.Foreground, 30)))
	}
	if s.Background >= 0 {
		codes = append(codes, fmt.Sprint(cgaToANSI(s.Background, 40)))
	}
	if len(codes) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

// cgaToANSI maps a CGA colour index to the ANSI code based at base (30 for
// foreground, 40 for background). Bright colours use the 90/100 range.
func cgaToANSI(cga, base int) int {
	order := []int{0, 4, 2, 6, 1, 5, 3, 7}
	if cga < 8 {
		return base + order[cga]
	}
	return base + 60 + order[cga-8]
}
