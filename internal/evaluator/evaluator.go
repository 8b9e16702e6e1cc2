package evaluator

import (
	"ksx/internal/ast"
	"ksx/internal/object"
)

// Evaluator runs statements and expressions on one logical thread.
type Evaluator struct {
	ctx    *EvaluationContext
	thread *LogicalThread
	queue  *statementQueue
}

func newEvaluator(ctx *EvaluationContext, thread *LogicalThread) *Evaluator {
	return &Evaluator{ctx: ctx, thread: thread, queue: &statementQueue{}}
}

// closureChain collects the block scopes visible from the current thread,
// outermost first: those of the ancestors, then the thread's own closures
// and blocks.
func (e *Evaluator) closureChain() []*object.BlockScope {
	var threads []*LogicalThread
	for t := e.thread; t != nil; t = e.ctx.threads.parentOf(t) {
		threads = append(threads, t)
	}
	var chain []*object.BlockScope
	for i := len(threads) - 1; i >= 0; i-- {
		t := threads[i]
		t.mu.RLock()
		chain = append(chain, t.closures...)
		chain = append(chain, t.blocks...)
		t.mu.RUnlock()
	}
	return chain
}

func (e *Evaluator) functionFromDeclaration(decl *ast.FunctionDeclaration) *object.Function {
	arrow := &ast.ArrowExpression{
		Name:      decl.Name,
		Args:      decl.Args,
		Statement: decl.Body,
	}
	arrow.NodeBase = decl.NodeBase
	return &object.Function{
		Name:     decl.Name,
		Arrow:    arrow,
		Closures: e.closureChain(),
	}
}

// BindFunction binds a hoisted function declaration as a constant of the
// top scope.
func (c *EvaluationContext) BindFunction(decl *ast.FunctionDeclaration) error {
	e := newEvaluator(c, c.mainThread)
	return c.TopScope().Declare(decl.Name, e.functionFromDeclaration(decl), true)
}

// Bind declares a variable of the top scope.
func (c *EvaluationContext) Bind(name string, value object.Object, isConst bool) error {
	return c.TopScope().Declare(name, value, isConst)
}

// Lookup resolves a name the way an identifier of the main thread would.
// It waits for the running thread to reach a statement boundary.
func (c *EvaluationContext) Lookup(name string) (object.Object, bool) {
	c.turn.Lock()
	defer c.turn.Unlock()
	ref, err := newEvaluator(c, c.mainThread).resolveIdentifier(name, false)
	if err != nil || ref == nil {
		return nil, false
	}
	return ref.get(), true
}
