package evaluator

import (
	"ksx/internal/ast"
	"log/slog"
	"runtime"
)

const (
	noLabel  = 0
	clearAll = -1

	// yieldEvery is the number of statements processed between explicit
	// yields of the goroutine.
	yieldEvery = 1000
)

// queueItem is a labelled entry of a statement queue. Items with a step
// run an internal continuation of stmt, such as a loop guard.
type queueItem struct {
	label int
	stmt  ast.Statement
	step  stepFunc
	// closes the innermost block scope after it is processed
	closesBlock bool
}

type stepFunc func() (outcome, error)

// outcome tells the executor how to rewrite the queue after an item.
type outcome struct {
	toUnshift    []queueItem
	clearToLabel int
}

type statementQueue struct {
	items     []queueItem
	nextLabel int
}

func (q *statementQueue) newItem(stmt ast.Statement) queueItem {
	q.nextLabel++
	return queueItem{label: q.nextLabel, stmt: stmt}
}

func (q *statementQueue) newStep(owner ast.Statement, step stepFunc) queueItem {
	item := q.newItem(owner)
	item.step = step
	return item
}

func (q *statementQueue) newItems(stmts []ast.Statement) []queueItem {
	items := make([]queueItem, 0, len(stmts))
	for _, s := range stmts {
		items = append(items, q.newItem(s))
	}
	return items
}

func (q *statementQueue) unshift(items []queueItem) {
	q.items = append(append(make([]queueItem, 0, len(items)+len(q.items)), items...), q.items...)
}

func (q *statementQueue) dequeue() queueItem {
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

func (q *statementQueue) peekLabel() int {
	if len(q.items) == 0 {
		return clearAll
	}
	return q.items[0].label
}

// clearToLabel drops items until the one carrying label is at the front.
// clearAll, or a label no longer queued, empties the queue.
func (q *statementQueue) clearToLabel(label int) {
	if label == clearAll {
		q.items = q.items[:0]
		return
	}
	for i, item := range q.items {
		if item.label == label {
			q.items = q.items[i:]
			return
		}
	}
	q.items = q.items[:0]
}

// runQueue executes statements on the evaluator's thread. Cancellation is
// checked before every item; an error is routed to the innermost try scope
// of the thread or returned.
func (e *Evaluator) runQueue(statements []ast.Statement) (QueueInfo, error) {
	q := &statementQueue{}
	saved := e.queue
	e.queue = q
	defer func() { e.queue = saved }()

	q.items = q.newItems(statements)
	info := QueueInfo{MaxQueueLength: len(q.items)}
	t := e.thread
	count := 0

	blocks, loops, tries := t.blockDepth(), len(t.loops), len(t.tryBlocks)
	defer func() {
		t.truncateBlocks(blocks)
		if len(t.loops) > loops {
			t.loops = t.loops[:loops]
		}
		if len(t.tryBlocks) > tries {
			t.tryBlocks = t.tryBlocks[:tries]
		}
	}()

	for len(q.items) > 0 {
		// suspension point: other threads of the context may run here
		e.ctx.turn.Unlock()
		count++
		if count >= yieldEvery {
			runtime.Gosched()
			count = 0
		}
		e.ctx.turn.Lock()
		if e.ctx.Token.Cancelled() {
			return info, ErrCancelled
		}

		item := q.dequeue()
		t.breakLabel = q.peekLabel()

		out, err := e.processItem(item)
		if err != nil {
			if isCancellation(err) {
				return info, ErrCancelled
			}
			ts := t.innermostTry()
			if ts == nil {
				slog.Debug("uncaught error",
					slog.Int("thread", t.index),
					slog.Any("error", err))
				return info, wrapStatementError(err, item.stmt)
			}
			ts.errorToThrow = wrapStatementError(err, item.stmt)
			ts.errorSource = ts.phase
			ts.phase = phaseError
			ts.exitType = exitNone
			out = outcome{clearToLabel: ts.label}
		}

		if len(out.toUnshift) > 0 {
			q.unshift(out.toUnshift)
			info.UnshiftedItems += len(out.toUnshift)
		}
		if out.clearToLabel != noLabel {
			q.clearToLabel(out.clearToLabel)
			info.ClearToLabels++
		}

		if item.stmt != nil && e.ctx.OnStatementCompleted != nil {
			e.ctx.OnStatementCompleted(e.ctx, item.stmt)
		}

		if len(q.items) > info.MaxQueueLength {
			info.MaxQueueLength = len(q.items)
		}
		if d := t.blockDepth(); d > info.MaxBlocks {
			info.MaxBlocks = d
		}
		if len(t.loops) > info.MaxLoops {
			info.MaxLoops = len(t.loops)
		}
		info.ProcessedStatements++
	}
	return info, nil
}

func (e *Evaluator) processItem(item queueItem) (outcome, error) {
	var out outcome
	var err error
	switch {
	case item.step != nil:
		out, err = item.step()
	case item.stmt != nil:
		out, err = e.processStatement(item.stmt)
	}
	if item.closesBlock {
		e.thread.popBlock()
	}
	return out, err
}
