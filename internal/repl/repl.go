// Package repl runs ksx statements typed at an interactive prompt.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"ksx/internal/evaluator"
	"ksx/internal/module"
	"ksx/internal/object"
	"ksx/internal/output"
	"ksx/internal/parser"
	"ksx/internal/script"
	"ksx/internal/util"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

const (
	PROMPT      = "ksx> "
	contPrompt  = "...  "
	historyFile = ".ksx_history"
	moduleName  = "<repl>"
)

// Session evaluates successive inputs in one persistent context, so names
// declared by one input are visible to the next.
type Session struct {
	Output output.Sink
	// Packages resolves imports that name no module file.
	Packages module.ResolvePackageFunc

	ctx           *evaluator.EvaluationContext
	resolveModule module.ResolveModuleFunc
}

// NewSession creates a session whose imports are read from rootPath.
func NewSession(sink output.Sink, rootPath string, extensions map[string]object.Object) *Session {
	if sink == nil {
		sink = output.Discard
	}
	ctx := evaluator.NewEvaluationContext(nil)
	ctx.AppContext = evaluator.NewAppContext(sink)
	ctx.GlobalScope = evaluator.NewGlobalScope(sink)
	for name, ext := range extensions {
		ctx.AppContext.Set(name, ext)
	}
	return &Session{
		Output:        sink,
		ctx:           ctx,
		resolveModule: script.ModuleResolver(filepath.Join(rootPath, moduleName)),
	}
}

// Eval runs src and returns the value of its last expression statement, or
// undefined. Cancelling parent stops the input at its next statement.
func (s *Session) Eval(parent context.Context, src string) (object.Object, error) {
	mod, err := module.Parse(moduleName, src, s.resolveModule, s.Packages)
	if err != nil {
		return nil, err
	}
	s.ctx.Token = evaluator.NewCancellationToken(parent)
	s.ctx.TopScope().SetReturnValue(nil)
	if err := module.Execute(mod, s.ctx); err != nil {
		return nil, err
	}
	val := s.ctx.TopScope().ReturnValue()
	if val == nil {
		val = object.UNDEFINED
	}
	return val, nil
}

// Lookup resolves name in the session.
func (s *Session) Lookup(name string) (object.Object, bool) {
	return s.ctx.Lookup(name)
}

// Incomplete reports whether src ends before its statements do, so the
// prompt should ask for another line.
func Incomplete(src string) bool {
	if strings.TrimSpace(src) == "" {
		return false
	}
	_, err := parser.Parse(src)
	var perr *parser.Error
	if !errors.As(err, &perr) {
		return false
	}
	return perr.Position >= len(src)
}

// Describe renders an evaluation error with the offending source line when
// the position is known.
func Describe(src string, err error) string {
	var rt *evaluator.RuntimeError
	if errors.As(err, &rt) && rt.Line > 0 {
		return util.GetContextLines(src, rt.Line, rt.Column, rt.Err.Error())
	}
	var problems module.ErrorsByModule
	if errors.As(err, &problems) {
		if errs := problems[moduleName]; len(problems) == 1 && len(errs) == 1 {
			e := errs[0]
			return util.GetContextLines(src, e.Line, e.Column, fmt.Sprintf("%s: %s", e.Code, e.Text))
		}
	}
	return err.Error()
}

func (s *Session) show(val object.Object) {
	if val == object.UNDEFINED {
		return
	}
	s.Output.PushStyle()
	s.Output.Color("cyan")
	s.Output.WriteLine(val.Inspect())
	s.Output.PopStyle()
}

func (s *Session) fail(src string, err error) {
	s.Output.PushStyle()
	s.Output.Color("red")
	s.Output.WriteLine(Describe(src, err))
	s.Output.PopStyle()
}

// Run handles one complete input: a command starting with ':' or source.
// It returns false when the session should end.
func (s *Session) Run(ctx context.Context, input string) bool {
	trimmed := strings.TrimSpace(input)
	switch {
	case trimmed == "":
		return true
	case trimmed == ":quit" || trimmed == ":q":
		return false
	case trimmed == ":help":
		s.Output.WriteLine("Type statements to run them. Unfinished input continues on the next line.")
		s.Output.WriteLine(":help shows this text, :quit leaves.")
		return true
	case strings.HasPrefix(trimmed, ":"):
		s.Output.WriteLine("unknown command. Type :quit to exit.")
		return true
	}

	val, err := s.Eval(ctx, input)
	if errors.Is(err, evaluator.ErrCancelled) {
		s.Output.WriteLine("interrupted")
		return true
	}
	if err != nil {
		s.fail(input, err)
		return true
	}
	s.show(val)
	return true
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFile)
}

// Start reads input until end of file or :quit. Ctrl-C at the prompt drops
// the current input; while a statement runs it interrupts it.
func Start(rootPath string, out io.Writer, color output.ColorMode, extensions map[string]object.Object) error {
	s := NewSession(output.NewTerminal(out, color), rootPath, extensions)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetMultiLineMode(true)

	histPath := historyPath()
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			ln.ReadHistory(f)
			f.Close()
		}
		defer func() {
			f, err := os.Create(histPath)
			if err != nil {
				slog.Warn("could not save repl history", slog.Any("error", err))
				return
			}
			ln.WriteHistory(f)
			f.Close()
		}()
	}

	for {
		src, ok := readInput(ln)
		if !ok {
			fmt.Fprintln(out)
			return nil
		}
		if src == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		more := s.Run(ctx, src)
		stop()
		if !more {
			return nil
		}
	}
}

// readInput prompts until the collected lines parse or fail before their
// end. ok is false at end of input.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := PROMPT
		if b.Len() > 0 {
			prompt = contPrompt
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !Incomplete(b.String()) {
			return b.String(), true
		}
	}
}
