// Package script runs script files and keeps a bounded history of the runs.
package script

import (
	"errors"
	"fmt"
	"ksx/internal/ast"
	"ksx/internal/evaluator"
	"ksx/internal/module"
	"ksx/internal/object"
	"ksx/internal/output"
	"ksx/internal/parser"
	"ksx/internal/util/future"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxHistory is the default number of runs the manager keeps.
const MaxHistory = 128

// EmuPragma as the first statement of a script marks it to run in the
// emulator instead of the manager.
const EmuPragma = "emu"

// ModuleExtension is appended to module names that have no extension.
const ModuleExtension = ".ksx"

// ErrCompile is returned when a script or one of its modules has errors.
var ErrCompile = errors.New("running script failed")

type Status string

const (
	Pending      Status = "pending"
	Running      Status = "running"
	Completed    Status = "completed"
	Stopped      Status = "stopped"
	CompileError Status = "compileError"
	ExecError    Status = "execError"
)

// Terminal reports whether a run in this status has finished.
func (s Status) Terminal() bool {
	switch s {
	case Completed, Stopped, CompileError, ExecError:
		return true
	}
	return false
}

// RunInfo describes one run of a script.
type RunInfo struct {
	ID        int
	File      string
	Status    Status
	RunsInEmu bool
	StartTime time.Time
	EndTime   time.Time
	StopTime  time.Time
	Error     string
}

// StatusListener is told about every status change of a run.
type StatusListener interface {
	StatusChanged(info RunInfo)
}

type execution struct {
	info  RunInfo
	token *evaluator.CancellationToken
	ctx   *evaluator.EvaluationContext
	// ready is closed once RunScript has decided how the run proceeds and
	// done is set.
	ready chan struct{}
	done  *future.Future[RunInfo]
}

// Manager starts, stops and awaits script runs.
type Manager struct {
	// Output receives the manager's messages and, prefixed with the run id,
	// the script console.
	Output     output.Sink
	Listener   StatusListener
	MaxHistory int
	// Packages resolves imports that name no module file.
	Packages module.ResolvePackageFunc
	// DebugAST writes each parsed script as JSON next to the file.
	DebugAST bool
	// Extensions are added to the app context of every run.
	Extensions map[string]object.Object

	mu      sync.Mutex
	scripts []*execution
	lastID  int
}

func NewManager(sink output.Sink) *Manager {
	if sink == nil {
		sink = output.Discard
	}
	return &Manager{Output: sink, MaxHistory: MaxHistory}
}

func (m *Manager) message(color, text string) {
	m.Output.PushStyle()
	if color != "" {
		m.Output.Color(color)
	}
	m.Output.WriteLine(text)
	m.Output.PopStyle()
}

func (m *Manager) publish(info RunInfo) {
	slog.Debug("script status changed",
		slog.Int("script", info.ID),
		slog.String("file", info.File),
		slog.String("status", string(info.Status)))
	if m.Listener != nil {
		m.Listener.StatusChanged(info)
	}
}

// evict removes the oldest finished run once the history is full. Running
// scripts are never removed, so the history may grow past the bound.
func (m *Manager) evict() {
	if len(m.scripts) < m.MaxHistory {
		return
	}
	for i, s := range m.scripts {
		if s.info.Status.Terminal() {
			m.scripts = append(m.scripts[:i], m.scripts[i+1:]...)
			return
		}
	}
}

// RunScript starts file without waiting for it. When the file is already
// running, the negated id of that run is returned. A compile error returns
// the id of the failed run together with ErrCompile.
func (m *Manager) RunScript(file string) (int, error) {
	m.mu.Lock()
	for _, s := range m.scripts {
		if s.info.File == file && !s.info.Status.Terminal() {
			m.mu.Unlock()
			m.message("yellow", fmt.Sprintf("Script %s is already running.", file))
			return -s.info.ID, nil
		}
	}
	m.evict()
	m.lastID++
	id := m.lastID
	ex := &execution{
		info:  RunInfo{ID: id, File: file, Status: Pending, StartTime: time.Now()},
		token: evaluator.NewCancellationToken(nil),
		ready: make(chan struct{}),
	}
	defer close(ex.ready)
	m.scripts = append(m.scripts, ex)
	m.mu.Unlock()

	m.message("", fmt.Sprintf("Starting script %s...", file))
	slog.Info("starting script", slog.Int("script", id), slog.String("file", file))

	mod, err := m.prepare(file)
	if err != nil {
		m.mu.Lock()
		ex.info.Status = CompileError
		ex.info.Error = err.Error()
		ex.info.EndTime = time.Now()
		info := ex.info
		ex.done = future.Rejected[RunInfo](err)
		m.mu.Unlock()
		m.publish(info)
		return id, err
	}

	console := output.NewPrefixed(m.Output, fmt.Sprintf("[%d] ", id))
	ex.ctx = evaluator.NewEvaluationContext(ex.token)
	ex.ctx.AppContext = evaluator.NewAppContext(console)
	ex.ctx.GlobalScope = evaluator.NewGlobalScope(console)
	for name, ext := range m.Extensions {
		ex.ctx.AppContext.Set(name, ext)
	}

	m.mu.Lock()
	if isEmuTargeted(mod) {
		ex.info.RunsInEmu = true
		info := ex.info
		ex.done = future.Resolved(info)
		m.mu.Unlock()
		m.publish(info)
		return id, nil
	}
	ex.info.Status = Running
	info := ex.info
	m.mu.Unlock()

	// listeners see running before the goroutine can report the end
	m.publish(info)
	m.message("green", "Script started")

	m.mu.Lock()
	ex.done = future.New(func() (info RunInfo, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("internal error: %v", r)
				info = m.finish(ex, err)
			}
		}()
		err = module.Execute(mod, ex.ctx)
		return m.finish(ex, err), err
	})
	m.mu.Unlock()
	return id, nil
}

// prepare reads and parses file with the modules it imports.
func (m *Manager) prepare(file string) (*module.Module, error) {
	source, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read script file: %w", err)
	}
	mod, err := module.Parse(file, string(source), ModuleResolver(file), m.Packages)
	if err != nil {
		var errs module.ErrorsByModule
		if !errors.As(err, &errs) {
			return nil, err
		}
		for name, list := range errs {
			for _, e := range list {
				m.message("bright red", module.FormatError(name, e))
			}
		}
		return nil, ErrCompile
	}
	if m.DebugAST {
		jsonPath := file + ".ast.json"
		if err := parser.WriteASTToJSON(&ast.Program{Statements: mod.Statements}, jsonPath); err != nil {
			slog.Error("failed to write AST as JSON",
				slog.String("file", jsonPath),
				slog.Any("error", err))
		}
	}
	return mod, nil
}

func isEmuTargeted(mod *module.Module) bool {
	if len(mod.Statements) == 0 {
		return false
	}
	stmt, ok := mod.Statements[0].(*ast.ExpressionStatement)
	if !ok {
		return false
	}
	lit, ok := stmt.Expression.(*ast.Literal)
	if !ok {
		return false
	}
	s, ok := lit.Value.(string)
	return ok && s == EmuPragma
}

// finish records how a run ended and reports it.
func (m *Manager) finish(ex *execution, err error) RunInfo {
	m.mu.Lock()
	now := time.Now()
	ex.info.EndTime = now
	switch {
	case errors.Is(err, evaluator.ErrCancelled), err == nil && ex.token.Cancelled():
		ex.info.Status = Stopped
		ex.info.StopTime = now
	case err != nil:
		ex.info.Status = ExecError
		ex.info.Error = err.Error()
	default:
		ex.info.Status = Completed
	}
	info := ex.info
	m.mu.Unlock()

	elapsed := info.EndTime.Sub(info.StartTime).Milliseconds()
	switch info.Status {
	case Completed:
		m.message("green", fmt.Sprintf("Script %s with ID %d completed in %dms.", info.File, info.ID, elapsed))
	case Stopped:
		m.message("yellow", fmt.Sprintf("Script %s with ID %d stopped in %dms.", info.File, info.ID, elapsed))
	case ExecError:
		m.message("red", fmt.Sprintf("Script %s with ID %d failed in %dms.", info.File, info.ID, elapsed))
		m.message("bright red", info.Error)
	}
	slog.Info("script finished",
		slog.Int("script", info.ID),
		slog.String("status", string(info.Status)),
		slog.Int64("elapsedMs", elapsed))
	m.publish(info)
	return info
}

func (m *Manager) find(id int) *execution {
	for _, s := range m.scripts {
		if s.info.ID == id {
			return s
		}
	}
	return nil
}

func (m *Manager) findLatest(file string) *execution {
	for i := len(m.scripts) - 1; i >= 0; i-- {
		if m.scripts[i].info.File == file {
			return m.scripts[i]
		}
	}
	return nil
}

// StopScript cancels the run with id and waits until it has ended. It
// returns false when there is no such run in progress.
func (m *Manager) StopScript(id int) (bool, error) {
	m.mu.Lock()
	ex := m.find(id)
	m.mu.Unlock()
	return m.stop(ex)
}

// StopScriptFile stops the latest run of file.
func (m *Manager) StopScriptFile(file string) (bool, error) {
	m.mu.Lock()
	ex := m.findLatest(file)
	m.mu.Unlock()
	return m.stop(ex)
}

func (m *Manager) stop(ex *execution) (bool, error) {
	if ex == nil {
		return false, nil
	}
	m.mu.Lock()
	if ex.info.Status.Terminal() {
		m.mu.Unlock()
		return false, nil
	}
	file := ex.info.File
	m.mu.Unlock()

	m.message("", fmt.Sprintf("Stopping script %s...", file))
	ex.token.Cancel()
	<-ex.ready

	m.mu.Lock()
	if ex.info.RunsInEmu && !ex.info.Status.Terminal() {
		now := time.Now()
		ex.info.Status = Stopped
		ex.info.EndTime = now
		ex.info.StopTime = now
		info := ex.info
		m.mu.Unlock()
		m.publish(info)
		return true, nil
	}
	done := ex.done
	m.mu.Unlock()

	_, err := done.Await()
	if err != nil && !errors.Is(err, evaluator.ErrCancelled) {
		m.mu.Lock()
		elapsed := ex.info.EndTime.Sub(ex.info.StartTime).Milliseconds()
		m.mu.Unlock()
		m.message("bright red", fmt.Sprintf("Script raised an error when stopped after %dms. Error: %s", elapsed, err))
		return true, err
	}
	return true, nil
}

// CompleteScript waits for the run with id to end without restarting it.
func (m *Manager) CompleteScript(id int) (RunInfo, error) {
	m.mu.Lock()
	ex := m.find(id)
	m.mu.Unlock()
	if ex == nil {
		return RunInfo{}, fmt.Errorf("unknown script id %d", id)
	}
	<-ex.ready

	m.mu.Lock()
	if ex.info.Status.Terminal() || ex.info.RunsInEmu {
		info := ex.info
		m.mu.Unlock()
		return info, nil
	}
	done := ex.done
	m.mu.Unlock()

	info, err := done.Await()
	if errors.Is(err, evaluator.ErrCancelled) {
		err = nil
	}
	return info, err
}

// CloseScript records the final state of a run that ended elsewhere, such as
// one executed by the emulator.
func (m *Manager) CloseScript(info RunInfo) {
	m.mu.Lock()
	ex := m.find(info.ID)
	if ex == nil {
		m.mu.Unlock()
		return
	}
	ex.info.Status = info.Status
	ex.info.Error = info.Error
	ex.info.EndTime = info.EndTime
	ex.info.StopTime = info.StopTime
	updated := ex.info
	m.mu.Unlock()
	m.publish(updated)
}

// Status returns a snapshot of the history, oldest run first.
func (m *Manager) Status() []RunInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunInfo, len(m.scripts))
	for i, s := range m.scripts {
		out[i] = s.info
	}
	return out
}

// StopAll stops every run in progress concurrently.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	var running []*execution
	for _, s := range m.scripts {
		if !s.info.Status.Terminal() && !s.info.RunsInEmu {
			running = append(running, s)
		}
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, ex := range running {
		g.Go(func() error {
			_, err := m.stop(ex)
			return err
		})
	}
	return g.Wait()
}

// ModuleResolver loads modules from the directory of scriptFile. Names
// without an extension get ModuleExtension. A file that cannot be read is
// reported as a missing module.
func ModuleResolver(scriptFile string) module.ResolveModuleFunc {
	baseDir := filepath.Dir(scriptFile)
	return func(name string) (string, bool) {
		if filepath.Ext(name) == "" {
			name += ModuleExtension
		}
		fullPath := filepath.Join(baseDir, name)
		source, err := os.ReadFile(fullPath)
		if err != nil {
			slog.Debug("module not readable",
				slog.String("path", fullPath),
				slog.Any("error", err))
			return "", false
		}
		return string(source), true
	}
}

// Lookup returns the value name has in the top scope of a run, for hosts
// inspecting a finished script.
func (m *Manager) Lookup(id int, name string) (object.Object, bool) {
	m.mu.Lock()
	ex := m.find(id)
	m.mu.Unlock()
	if ex == nil {
		return nil, false
	}
	<-ex.ready
	if ex.ctx == nil {
		return nil, false
	}
	return ex.ctx.Lookup(name)
}
