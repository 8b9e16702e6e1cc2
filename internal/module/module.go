package module

import (
	"fmt"
	"ksx/internal/ast"
	"ksx/internal/evaluator"
	"ksx/internal/object"
	"ksx/internal/parser"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// ResolveModuleFunc returns the source of a module, or false when there is
// no such module.
type ResolveModuleFunc func(name string) (string, bool)

// ResolvePackageFunc returns the values a host package provides, or nil.
type ResolvePackageFunc func(name string) *object.Map

// Module is one parsed source unit. A module is executed at most once;
// importers read its exports after that.
type Module struct {
	Name       string
	Statements []ast.Statement
	// Functions holds the hoisted function declarations.
	Functions map[string]*ast.FunctionDeclaration
	// Exports maps exported names to their values. Names are present from
	// parse time with undefined values until the module has executed.
	Exports *object.Map
	// Imports holds the values bound by the module's import statements.
	Imports         map[string]object.Object
	ImportedModules []*Module

	exportDecls map[string]ast.Statement
	targets     map[*ast.ImportDeclaration]importTarget
	executed    bool
}

type importTarget struct {
	module  *Module
	pkg     *object.Map
	modName string
}

func newModule(name string, statements []ast.Statement) *Module {
	return &Module{
		Name:        name,
		Statements:  statements,
		Functions:   make(map[string]*ast.FunctionDeclaration),
		Exports:     object.NewMap(),
		Imports:     make(map[string]object.Object),
		exportDecls: make(map[string]ast.Statement),
		targets:     make(map[*ast.ImportDeclaration]importTarget),
	}
}

func (m *Module) Executed() bool { return m.executed }

// ExportDeclaration returns the statement that exports name.
func (m *Module) ExportDeclaration(name string) (ast.Statement, bool) {
	decl, ok := m.exportDecls[name]
	return decl, ok
}

// ErrorsByModule collects the problems found while parsing a module and the
// modules it imports, keyed by module name.
type ErrorsByModule map[string][]*parser.Error

func (e ErrorsByModule) Error() string {
	var sb strings.Builder
	for i, name := range slices.Sorted(maps.Keys(e)) {
		for j, err := range e[name] {
			if i > 0 || j > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(FormatError(name, err))
		}
	}
	return sb.String()
}

// FormatError renders err the way script diagnostics show it.
func FormatError(moduleName string, err *parser.Error) string {
	return fmt.Sprintf("%s: %s (%s:%d:%d)", err.Code, err.Text, moduleName, err.Line, err.Column)
}

type loader struct {
	memo           map[string]*Module
	errors         ErrorsByModule
	resolveModule  ResolveModuleFunc
	resolvePackage ResolvePackageFunc
}

// Parse parses source as the module name together with every module it
// imports. A module imported more than once, including through a cycle, is
// parsed once. The error is an ErrorsByModule.
func Parse(name, source string, resolveModule ResolveModuleFunc, resolvePackage ResolvePackageFunc) (*Module, error) {
	l := &loader{
		memo:           make(map[string]*Module),
		errors:         make(ErrorsByModule),
		resolveModule:  resolveModule,
		resolvePackage: resolvePackage,
	}
	m := l.parse(name, source)
	if len(l.errors) > 0 {
		return nil, l.errors
	}
	return m, nil
}

func (l *loader) fail(moduleName string, stmt ast.Statement, code parser.ErrorCode, args ...any) {
	span := stmt.Base().Span
	err := parser.NewError(code, span.StartLine, span.StartColumn, span.StartPosition, args...)
	l.errors[moduleName] = append(l.errors[moduleName], err)
}

func (l *loader) parse(name, source string) *Module {
	program, err := parser.Parse(source)
	if err != nil {
		var perr *parser.Error
		if pe, ok := err.(*parser.Error); ok {
			perr = pe
		} else {
			perr = &parser.Error{Code: parser.UnexpectedToken, Text: err.Error()}
		}
		l.errors[name] = append(l.errors[name], perr)
		slog.Warn("error parsing module",
			slog.String("module", name),
			slog.Any("error", err))
		return nil
	}

	m := newModule(name, program.Statements)
	for _, stmt := range program.Statements {
		switch s := stmt.(type) {
		case *ast.FunctionDeclaration:
			if _, ok := m.Functions[s.Name]; ok {
				l.fail(name, s, parser.DuplicateFunction, s.Name)
				continue
			}
			m.Functions[s.Name] = s
			if s.IsExported {
				l.export(m, s, s.Name)
			}
		case *ast.ConstStatement:
			if !s.IsExported {
				continue
			}
			for _, decl := range s.Declarations {
				if decl.ID != "" {
					l.export(m, s, decl.ID)
					continue
				}
				for _, id := range ast.DestructuredNames(decl.ArrayDestruct, decl.ObjectDestruct) {
					l.export(m, s, id)
				}
			}
		}
	}

	// registered before the imports are followed so a cycle ends here
	l.memo[name] = m
	slog.Debug("module registered", slog.String("module", name))

	for _, stmt := range program.Statements {
		if s, ok := stmt.(*ast.ImportDeclaration); ok {
			l.resolveImport(m, s)
		}
	}

	if len(l.errors[name]) > 0 {
		return nil
	}
	return m
}

func (l *loader) export(m *Module, stmt ast.Statement, id string) {
	if _, ok := m.exportDecls[id]; ok {
		l.fail(m.Name, stmt, parser.DuplicateExport, id)
		return
	}
	m.exportDecls[id] = stmt
	m.Exports.Set(id, object.UNDEFINED)
}

func (l *loader) resolveImport(m *Module, s *ast.ImportDeclaration) {
	target := s.ModuleFile
	if imported, ok := l.memo[target]; ok {
		l.bindImport(m, s, imported)
		return
	}

	if l.resolveModule != nil {
		if source, ok := l.resolveModule(target); ok {
			imported := l.parse(target, source)
			if imported == nil {
				l.fail(m.Name, s, parser.ImportedModuleHasProblems, target)
				return
			}
			l.bindImport(m, s, imported)
			return
		}
	}

	if l.resolvePackage != nil {
		if pkg := l.resolvePackage(target); pkg != nil {
			for _, spec := range s.Imports {
				if !pkg.Has(spec.Name) {
					l.fail(m.Name, s, parser.NotExported, spec.Name, target)
				}
			}
			m.targets[s] = importTarget{pkg: pkg, modName: target}
			return
		}
	}

	l.fail(m.Name, s, parser.ModuleNotFound, target)
}

func (l *loader) bindImport(m *Module, s *ast.ImportDeclaration, imported *Module) {
	for _, spec := range s.Imports {
		if _, ok := imported.exportDecls[spec.Name]; !ok {
			l.fail(m.Name, s, parser.NotExported, spec.Name, imported.Name)
		}
	}
	m.targets[s] = importTarget{module: imported, modName: imported.Name}
	if !slices.Contains(m.ImportedModules, imported) {
		m.ImportedModules = append(m.ImportedModules, imported)
	}
}

// Execute runs the module's top-level statements in ctx. Hoisted functions
// are bound first, so statements may call functions declared after them.
// Imported modules run on demand, each in its own context sharing ctx's
// cancellation token and host scopes. Running an already executed module
// does nothing.
func Execute(m *Module, ctx *evaluator.EvaluationContext) error {
	if m.executed {
		return nil
	}
	m.executed = true

	for _, name := range slices.Sorted(maps.Keys(m.Functions)) {
		if err := ctx.BindFunction(m.Functions[name]); err != nil {
			return err
		}
	}

	ctx.Import = func(ic *evaluator.EvaluationContext, decl *ast.ImportDeclaration) (map[string]object.Object, error) {
		return m.importValues(ic, decl)
	}

	_, info, err := ctx.Run(m.Statements)
	slog.Debug("module executed",
		slog.String("module", m.Name),
		slog.Int("statements", info.ProcessedStatements),
		slog.Int("maxBlocks", info.MaxBlocks),
		slog.Int("maxLoops", info.MaxLoops))
	if err != nil {
		return err
	}

	for _, name := range m.Exports.Keys() {
		val, ok := ctx.TopScope().Get(name)
		if !ok {
			return fmt.Errorf("exported name %s is not bound in module %s", name, m.Name)
		}
		m.Exports.Set(name, val)
	}
	return nil
}

func (m *Module) importValues(ctx *evaluator.EvaluationContext, decl *ast.ImportDeclaration) (map[string]object.Object, error) {
	target, ok := m.targets[decl]
	if !ok {
		return nil, fmt.Errorf("module %s is not resolved", decl.ModuleFile)
	}

	source := target.pkg
	if target.module != nil {
		if err := Execute(target.module, childContext(ctx)); err != nil {
			return nil, fmt.Errorf("module %s: %w", target.modName, err)
		}
		source = target.module.Exports
	}

	values := make(map[string]object.Object, len(decl.Imports))
	for _, spec := range decl.Imports {
		val, ok := source.Get(spec.Name)
		if !ok {
			return nil, fmt.Errorf("'%s' is not exported by module '%s'", spec.Name, target.modName)
		}
		values[spec.Alias] = val
		m.Imports[spec.Alias] = val
	}
	return values, nil
}

// childContext builds the context an imported module runs in.
func childContext(parent *evaluator.EvaluationContext) *evaluator.EvaluationContext {
	ctx := evaluator.NewEvaluationContext(parent.Token)
	ctx.Options = parent.Options
	ctx.LocalContext = parent.LocalContext
	ctx.AppContext = parent.AppContext
	ctx.GlobalScope = parent.GlobalScope
	ctx.OnStatementCompleted = parent.OnStatementCompleted
	return ctx
}
