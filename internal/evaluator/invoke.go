package evaluator

import (
	"context"
	"ksx/internal/ast"
	"ksx/internal/object"
	"log/slog"
)

// MaxCallDepth bounds nested arrow invocations.
const MaxCallDepth = 4096

func (e *Evaluator) evalInvocation(node *ast.FunctionInvocation) (object.Object, error) {
	callee, err := e.eval(node.Object)
	if err != nil {
		return nil, err
	}
	if object.IsNullish(callee) {
		if isOptionalChain(node.Object) || e.ctx.Options.DefaultToOptionalMemberAccess {
			return object.UNDEFINED, nil
		}
		return nil, newError("%s is not a function", node.Object.String())
	}
	switch callee.(type) {
	case *object.Function, *object.Builtin:
	default:
		return nil, newError("%s is not a function", node.Object.String())
	}

	args, err := e.evalList(node.Arguments)
	if err != nil {
		return nil, err
	}
	return e.call(callee, args)
}

func isOptionalChain(expr ast.Expression) bool {
	m, ok := expr.(*ast.MemberAccess)
	return ok && m.IsOptional
}

// call invokes a function value with evaluated arguments.
func (e *Evaluator) call(fn object.Object, args []object.Object) (object.Object, error) {
	switch f := fn.(type) {
	case *object.Builtin:
		if f.Banned {
			return nil, newError("Function %s is not allowed to call. %s", f.Name, f.Help)
		}
		res, err := f.Fn(e, args...)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return object.UNDEFINED, nil
		}
		return res, nil
	case *object.Function:
		return e.invoke(f, args)
	}
	return nil, newError("%s is not a function", fn.Inspect())
}

// invoke runs an arrow function on a child thread that sees the closures
// captured when the arrow was built. The child has its own annotations, so
// the same arrow may run on several threads at once.
func (e *Evaluator) invoke(fn *object.Function, args []object.Object) (object.Object, error) {
	if e.thread.depth >= MaxCallDepth {
		return nil, newError("Maximum call stack size exceeded")
	}
	child := e.ctx.threads.spawn(e.thread, fn.Closures)
	defer e.ctx.threads.release(child)

	ce := newEvaluator(e.ctx, child)
	block := child.pushBlock()
	if err := ce.bindParameters(block, fn.Arrow.Args, args); err != nil {
		return nil, err
	}

	if _, err := ce.runQueue(functionBody(fn.Arrow)); err != nil {
		slog.Debug("function failed",
			slog.String("function", fn.Name),
			slog.Int("thread", child.index),
			slog.Any("error", err))
		return nil, err
	}
	if child.returnValue == nil {
		return object.UNDEFINED, nil
	}
	return child.returnValue, nil
}

// functionBody returns the statements an invocation runs. An expression
// body returns its value.
func functionBody(arrow *ast.ArrowExpression) []ast.Statement {
	switch body := arrow.Statement.(type) {
	case *ast.BlockStatement:
		return body.Statements
	case *ast.ExpressionStatement:
		ret := &ast.ReturnStatement{Expression: body.Expression}
		ret.NodeBase = body.NodeBase
		return []ast.Statement{ret}
	case nil:
		return nil
	}
	return []ast.Statement{arrow.Statement}
}

// Context implements object.CallContext.
func (e *Evaluator) Context() context.Context { return e.ctx.Context() }

// Call implements object.CallContext; builtins use it to run callbacks.
func (e *Evaluator) Call(fn object.Object, args ...object.Object) (object.Object, error) {
	return e.call(fn, args)
}
