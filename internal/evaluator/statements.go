package evaluator

import (
	"ksx/internal/ast"
	"ksx/internal/object"
	"strconv"
)

// processStatement runs one statement and tells the queue what comes next.
// Compound statements never recurse: their bodies are unshifted onto the
// queue together with guard steps that decide how to continue.
func (e *Evaluator) processStatement(stmt ast.Statement) (outcome, error) {
	t := e.thread
	switch s := stmt.(type) {
	case *ast.EmptyStatement:
		return outcome{}, nil

	case *ast.BlockStatement:
		if len(s.Statements) == 0 {
			return outcome{}, nil
		}
		t.pushBlock()
		return outcome{toUnshift: e.blockItems(s.Statements)}, nil

	case *ast.ExpressionStatement:
		val, err := e.eval(s.Expression)
		if err != nil {
			return outcome{}, err
		}
		if b := t.innermostBlock(); b != nil {
			b.SetReturnValue(val)
		}
		return outcome{}, nil

	case *ast.LetStatement:
		return outcome{}, e.declareAll(s.Declarations, false)

	case *ast.ConstStatement:
		return outcome{}, e.declareAll(s.Declarations, true)

	case *ast.FunctionDeclaration:
		return outcome{}, e.declareFunction(s)

	case *ast.IfStatement:
		cond, err := e.eval(s.Condition)
		if err != nil {
			return outcome{}, err
		}
		if object.IsTruthy(cond) {
			return outcome{toUnshift: []queueItem{e.queue.newItem(s.ThenBranch)}}, nil
		}
		if s.ElseBranch != nil {
			return outcome{toUnshift: []queueItem{e.queue.newItem(s.ElseBranch)}}, nil
		}
		return outcome{}, nil

	case *ast.ReturnStatement:
		var val object.Object = object.UNDEFINED
		if s.Expression != nil {
			v, err := e.eval(s.Expression)
			if err != nil {
				return outcome{}, err
			}
			val = v
		}
		t.returnValue = val
		return e.exitReturn(), nil

	case *ast.BreakStatement:
		return e.exitBreak()

	case *ast.ContinueStatement:
		return e.exitContinue()

	case *ast.ThrowStatement:
		val, err := e.eval(s.Expression)
		if err != nil {
			return outcome{}, err
		}
		return outcome{}, &ThrowError{Value: val}

	case *ast.WhileStatement:
		loop := t.createLoopScope(0)
		return e.whileGuard(s, loop)

	case *ast.DoWhileStatement:
		loop := t.createLoopScope(0)
		return e.loopIteration(s, s.Body, loop, func() (outcome, error) {
			return e.doWhileGuard(s, loop)
		}), nil

	case *ast.ForStatement:
		loop := t.createLoopScope(1)
		t.pushBlock()
		guard := e.queue.newStep(s, func() (outcome, error) { return e.forGuard(s, loop) })
		if s.Init == nil {
			return outcome{toUnshift: []queueItem{guard}}, nil
		}
		return outcome{toUnshift: []queueItem{e.queue.newItem(s.Init), guard}}, nil

	case *ast.ForInStatement:
		return e.forIn(s)

	case *ast.ForOfStatement:
		return e.forOf(s)

	case *ast.SwitchStatement:
		return e.switchStatement(s)

	case *ast.TryStatement:
		ts := &TryScope{
			statement:  s,
			phase:      phaseTry,
			blockDepth: t.blockDepth(),
			loopDepth:  len(t.loops),
		}
		t.tryBlocks = append(t.tryBlocks, ts)
		return e.enterTryPhase(ts, s.TryBlock, nil), nil

	case *ast.ImportDeclaration:
		return outcome{}, e.importNames(s)
	}
	return outcome{}, newError("unknown statement: %T", stmt)
}

// blockItems queues statements of a block followed by the item that closes
// it.
func (e *Evaluator) blockItems(stmts []ast.Statement) []queueItem {
	items := e.queue.newItems(stmts)
	closer := e.queue.newItem(nil)
	closer.closesBlock = true
	return append(items, closer)
}

// loopIteration queues one pass of body followed by guard and points the
// loop's labels at them.
func (e *Evaluator) loopIteration(owner, body ast.Statement, loop *LoopScope, guard stepFunc) outcome {
	bodyItem := e.queue.newItem(body)
	guardItem := e.queue.newStep(owner, guard)
	loop.continueLabel = guardItem.label
	loop.breakLabel = e.thread.breakLabel
	return outcome{toUnshift: []queueItem{bodyItem, guardItem}}
}

func (e *Evaluator) whileGuard(s *ast.WhileStatement, loop *LoopScope) (outcome, error) {
	cond, err := e.eval(s.Condition)
	if err != nil {
		return outcome{}, err
	}
	if !object.IsTruthy(cond) {
		e.thread.releaseLoopScope(false)
		return outcome{}, nil
	}
	return e.loopIteration(s, s.Body, loop, func() (outcome, error) {
		return e.whileGuard(s, loop)
	}), nil
}

func (e *Evaluator) doWhileGuard(s *ast.DoWhileStatement, loop *LoopScope) (outcome, error) {
	cond, err := e.eval(s.Condition)
	if err != nil {
		return outcome{}, err
	}
	if !object.IsTruthy(cond) {
		e.thread.releaseLoopScope(false)
		return outcome{}, nil
	}
	return e.loopIteration(s, s.Body, loop, func() (outcome, error) {
		return e.doWhileGuard(s, loop)
	}), nil
}

func (e *Evaluator) forGuard(s *ast.ForStatement, loop *LoopScope) (outcome, error) {
	if s.Condition != nil {
		cond, err := e.eval(s.Condition)
		if err != nil {
			return outcome{}, err
		}
		if !object.IsTruthy(cond) {
			e.thread.releaseLoopScope(false)
			return outcome{}, nil
		}
	}

	body := e.queue.newItem(s.Body)
	update := e.queue.newStep(s, func() (outcome, error) {
		if s.Update == nil {
			return outcome{}, nil
		}
		_, err := e.eval(s.Update)
		return outcome{}, err
	})
	guard := e.queue.newStep(s, func() (outcome, error) { return e.forGuard(s, loop) })
	loop.continueLabel = update.label
	loop.breakLabel = e.thread.breakLabel
	return outcome{toUnshift: []queueItem{body, update, guard}}, nil
}

// iterate drives a for-in or for-of loop over values produced by next.
func (e *Evaluator) iterate(owner, body ast.Statement, binding ast.VarBinding, name string, next func() (object.Object, bool)) outcome {
	t := e.thread
	loop := t.createLoopScope(1)
	t.pushBlock()

	var guard stepFunc
	guard = func() (outcome, error) {
		val, ok := next()
		if !ok {
			t.releaseLoopScope(false)
			return outcome{}, nil
		}
		if err := e.bindLoopVariable(binding, name, val); err != nil {
			return outcome{}, err
		}
		return e.loopIteration(owner, body, loop, guard), nil
	}
	return outcome{toUnshift: []queueItem{e.queue.newStep(owner, guard)}}
}

func (e *Evaluator) bindLoopVariable(binding ast.VarBinding, name string, val object.Object) error {
	switch binding {
	case ast.BindLet:
		e.thread.innermostBlock().Bind(name, val, false)
		return nil
	case ast.BindConst:
		e.thread.innermostBlock().Bind(name, val, true)
		return nil
	}
	return e.assignName(name, val)
}

func (e *Evaluator) forIn(s *ast.ForInStatement) (outcome, error) {
	obj, err := e.eval(s.Expression)
	if err != nil {
		return outcome{}, err
	}
	var keys []string
	switch o := obj.(type) {
	case *object.Map:
		keys = o.Keys()
	case *object.Array:
		for i := range o.Elements {
			keys = append(keys, strconv.Itoa(i))
		}
	case *object.String:
		for i := range unitLength(o.Value) {
			keys = append(keys, strconv.Itoa(i))
		}
	default:
		return outcome{}, nil
	}

	i := 0
	return e.iterate(s, s.Body, s.VarBinding, s.ID, func() (object.Object, bool) {
		if i >= len(keys) {
			return nil, false
		}
		key := keys[i]
		i++
		return object.NewString(key), true
	}), nil
}

func (e *Evaluator) forOf(s *ast.ForOfStatement) (outcome, error) {
	obj, err := e.eval(s.Expression)
	if err != nil {
		return outcome{}, err
	}
	var next func() (object.Object, bool)
	i := 0
	switch o := obj.(type) {
	case *object.Array:
		// the body may grow or shrink the array
		next = func() (object.Object, bool) {
			if i >= len(o.Elements) {
				return nil, false
			}
			val := o.Elements[i]
			i++
			return val, true
		}
	case *object.String:
		runes := []rune(o.Value)
		next = func() (object.Object, bool) {
			if i >= len(runes) {
				return nil, false
			}
			val := object.NewString(string(runes[i]))
			i++
			return val, true
		}
	default:
		return outcome{}, newError("Object in for..of is not iterable")
	}
	return e.iterate(s, s.Body, s.VarBinding, s.ID, next), nil
}

// switchStatement runs the statements of the first matching case, falling
// through the later cases until a break. Default runs when no case matches.
func (e *Evaluator) switchStatement(s *ast.SwitchStatement) (outcome, error) {
	val, err := e.eval(s.Expression)
	if err != nil {
		return outcome{}, err
	}
	match, def := -1, -1
	for i, c := range s.Cases {
		if c.Expression == nil {
			def = i
			continue
		}
		cv, err := e.eval(c.Expression)
		if err != nil {
			return outcome{}, err
		}
		if object.StrictEquals(val, cv) {
			match = i
			break
		}
	}
	if match < 0 {
		match = def
	}
	if match < 0 {
		return outcome{}, nil
	}

	t := e.thread
	loop := t.createLoopScope(0)
	loop.isSwitch = true
	t.pushBlock()

	var stmts []ast.Statement
	for _, c := range s.Cases[match:] {
		stmts = append(stmts, c.Statements...)
	}
	items := e.queue.newItems(stmts)
	guard := e.queue.newStep(s, func() (outcome, error) {
		t.releaseLoopScope(false)
		return outcome{}, nil
	})
	loop.breakLabel = guard.label
	return outcome{toUnshift: append(items, guard)}, nil
}

// exitReturn unwinds to the innermost try statement, which resumes the
// return once its finally block ran, or ends the queue.
func (e *Evaluator) exitReturn() outcome {
	if ts := e.thread.innermostTry(); ts != nil {
		ts.setExit(exitReturn)
		return outcome{clearToLabel: ts.label}
	}
	return outcome{clearToLabel: clearAll}
}

func (e *Evaluator) exitBreak() (outcome, error) {
	t := e.thread
	loop := t.innermostLoop()
	if loop == nil {
		return outcome{}, newError("Missing loop scope")
	}
	if len(t.tryBlocks) > loop.tryBlockDepth {
		ts := t.innermostTry()
		ts.setExit(exitBreak)
		return outcome{clearToLabel: ts.label}, nil
	}
	if loop.isSwitch {
		// the switch guard releases the scope
		return outcome{clearToLabel: loop.breakLabel}, nil
	}
	t.releaseLoopScope(false)
	return outcome{clearToLabel: loop.breakLabel}, nil
}

func (e *Evaluator) exitContinue() (outcome, error) {
	t := e.thread
	for {
		loop := t.innermostLoop()
		if loop == nil {
			return outcome{}, newError("Missing loop scope")
		}
		if !loop.isSwitch {
			break
		}
		t.releaseLoopScope(false)
	}
	loop := t.innermostLoop()
	if len(t.tryBlocks) > loop.tryBlockDepth {
		ts := t.innermostTry()
		ts.setExit(exitContinue)
		return outcome{clearToLabel: ts.label}, nil
	}
	t.releaseLoopScope(true)
	return outcome{clearToLabel: loop.continueLabel}, nil
}

// setExit records a pending break, continue or return. It replaces an error
// still waiting for the finally block to end.
func (ts *TryScope) setExit(exit exitType) {
	ts.exitType = exit
	ts.errorToThrow = nil
}

// enterTryPhase queues one of the blocks of a try statement followed by the
// guard that moves the statement to its next phase.
func (e *Evaluator) enterTryPhase(ts *TryScope, block *ast.BlockStatement, bind func(*object.BlockScope)) outcome {
	b := e.thread.pushBlock()
	if bind != nil {
		bind(b)
	}
	items := e.queue.newItems(block.Statements)
	guard := e.queue.newStep(ts.statement, func() (outcome, error) { return e.tryGuard(ts) })
	ts.label = guard.label
	return outcome{toUnshift: append(items, guard)}
}

func (e *Evaluator) tryGuard(ts *TryScope) (outcome, error) {
	t := e.thread
	t.truncateBlocks(ts.blockDepth)
	if len(t.loops) > ts.loopDepth {
		t.loops = t.loops[:ts.loopDepth]
	}

	s := ts.statement
	switch ts.phase {
	case phaseError:
		switch ts.errorSource {
		case phaseTry:
			if s.CatchBlock == nil {
				return e.enterFinally(ts)
			}
			val := errorValue(ts.errorToThrow)
			ts.errorToThrow = nil
			ts.phase = phaseCatch
			return e.enterTryPhase(ts, s.CatchBlock, func(b *object.BlockScope) {
				if s.CatchVariable != "" {
					b.Bind(s.CatchVariable, val, false)
				}
			}), nil
		case phaseCatch:
			return e.enterFinally(ts)
		}
		return e.completeTry(ts)
	case phaseTry, phaseCatch:
		return e.enterFinally(ts)
	}
	return e.completeTry(ts)
}

func (e *Evaluator) enterFinally(ts *TryScope) (outcome, error) {
	if ts.statement.FinallyBlock == nil {
		return e.completeTry(ts)
	}
	ts.phase = phaseFinally
	return e.enterTryPhase(ts, ts.statement.FinallyBlock, nil), nil
}

// completeTry pops the try scope, then rethrows an unhandled error or
// resumes the exit captured while the statement ran.
func (e *Evaluator) completeTry(ts *TryScope) (outcome, error) {
	t := e.thread
	for i := len(t.tryBlocks) - 1; i >= 0; i-- {
		if t.tryBlocks[i] == ts {
			t.tryBlocks = t.tryBlocks[:i]
			break
		}
	}
	ts.phase = phasePostFinally

	if ts.errorToThrow != nil {
		return outcome{}, ts.errorToThrow
	}
	switch ts.exitType {
	case exitBreak:
		return e.exitBreak()
	case exitContinue:
		return e.exitContinue()
	case exitReturn:
		return e.exitReturn(), nil
	}
	return outcome{}, nil
}

func (e *Evaluator) declareFunction(s *ast.FunctionDeclaration) error {
	b := e.thread.innermostBlock()
	if existing, ok := b.Get(s.Name); ok {
		// hoisted by the module loader
		if fn, ok := existing.(*object.Function); ok && fn.Arrow.Statement == ast.Statement(s.Body) {
			return nil
		}
	}
	return b.Declare(s.Name, e.functionFromDeclaration(s), true)
}

func (e *Evaluator) importNames(s *ast.ImportDeclaration) error {
	if e.ctx.Import == nil {
		return newError("Cannot import from %s: imports are not available", s.ModuleFile)
	}
	values, err := e.ctx.Import(e.ctx, s)
	if err != nil {
		return err
	}
	top := e.ctx.TopScope()
	for _, spec := range s.Imports {
		if top.Has(spec.Alias) {
			return newError("Import %s already exists", spec.Alias)
		}
		val, ok := values[spec.Alias]
		if !ok {
			val = object.UNDEFINED
		}
		top.Bind(spec.Alias, val, true)
	}
	return nil
}
