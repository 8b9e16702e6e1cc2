package evaluator

import (
	"context"
	"ksx/internal/ast"
	"ksx/internal/object"
	"sync"
)

// CancellationToken signals a running script to stop at its next statement
// boundary.
type CancellationToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewCancellationToken(parent context.Context) *CancellationToken {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &CancellationToken{ctx: ctx, cancel: cancel}
}

func (t *CancellationToken) Cancel() { t.cancel() }

func (t *CancellationToken) Cancelled() bool { return t.ctx.Err() != nil }

// Context is cancelled together with the token. Blocking builtins such as
// delay select on it.
func (t *CancellationToken) Context() context.Context { return t.ctx }

type Options struct {
	// DefaultToOptionalMemberAccess makes every member access behave like
	// ?. so reading through null or undefined yields undefined.
	DefaultToOptionalMemberAccess bool
}

func DefaultOptions() Options {
	return Options{DefaultToOptionalMemberAccess: true}
}

// StatementCompletedFunc is called after each processed statement.
type StatementCompletedFunc func(ctx *EvaluationContext, stmt ast.Statement)

// ImportFunc resolves an import declaration to the values it binds, keyed
// by local name.
type ImportFunc func(ctx *EvaluationContext, decl *ast.ImportDeclaration) (map[string]object.Object, error)

// QueueInfo describes one run of a statement queue.
type QueueInfo struct {
	ProcessedStatements int
	MaxQueueLength      int
	UnshiftedItems      int
	ClearToLabels       int
	MaxBlocks           int
	MaxLoops            int
}

// EvaluationContext is the state of one script run: its root logical
// thread, its cancellation token and the scope layers provided by the host.
type EvaluationContext struct {
	Token   *CancellationToken
	Options Options

	// Name resolution falls back to these after the thread scopes, in order.
	// GlobalScope starts as NewGlobalScope(nil); hosts may replace it or set
	// it to nil to sandbox scripts.
	LocalContext *object.Map
	AppContext   *object.Map
	GlobalScope  *object.Map

	EventArgs            []object.Object
	OnStatementCompleted StatementCompletedFunc
	Import               ImportFunc

	threads    threadArena
	mainThread *LogicalThread

	// turn is held by the goroutine whose logical thread is running. It is
	// given up only at statement boundaries and while a builtin blocks, so
	// threads of one context never run at the same time.
	turn sync.Mutex
}

func NewEvaluationContext(token *CancellationToken) *EvaluationContext {
	if token == nil {
		token = NewCancellationToken(context.Background())
	}
	c := &EvaluationContext{
		Token:       token,
		Options:     DefaultOptions(),
		GlobalScope: NewGlobalScope(nil),
	}
	c.mainThread = c.threads.spawn(nil, nil)
	c.mainThread.blocks = []*object.BlockScope{object.NewBlockScope()}
	return c
}

// MainThread returns the root logical thread of the run.
func (c *EvaluationContext) MainThread() *LogicalThread { return c.mainThread }

// TopScope is the outermost block scope of the run; module top-level
// bindings and imports live here.
func (c *EvaluationContext) TopScope() *object.BlockScope {
	return c.mainThread.blocks[0]
}

func (c *EvaluationContext) Context() context.Context { return c.Token.Context() }

// Run executes statements on the main thread and returns the value of the
// last expression statement of the top scope.
func (c *EvaluationContext) Run(statements []ast.Statement) (object.Object, QueueInfo, error) {
	c.turn.Lock()
	defer c.turn.Unlock()
	e := newEvaluator(c, c.mainThread)
	info, err := e.runQueue(statements)
	result := c.TopScope().ReturnValue()
	if result == nil {
		result = object.UNDEFINED
	}
	return result, info, err
}

// Eval evaluates a single expression on the main thread.
func (c *EvaluationContext) Eval(expr ast.Expression) (object.Object, error) {
	c.turn.Lock()
	defer c.turn.Unlock()
	return newEvaluator(c, c.mainThread).eval(expr)
}

// RunArrow invokes fn on a new child of the main thread, passing EventArgs.
// Hosts use it to run event handlers from their own goroutines; the handler
// waits for the running thread to reach a statement boundary and the two
// then interleave statement by statement. It must not be called from a
// builtin of the same context.
func (c *EvaluationContext) RunArrow(fn object.Object) (object.Object, error) {
	c.turn.Lock()
	defer c.turn.Unlock()
	return newEvaluator(c, c.mainThread).call(fn, c.EventArgs)
}

// suspend gives up the turn while a builtin blocks. The returned function
// takes it back.
func (e *Evaluator) suspend() (resume func()) {
	e.ctx.turn.Unlock()
	return e.ctx.turn.Lock
}
