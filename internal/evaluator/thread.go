package evaluator

import (
	"ksx/internal/ast"
	"ksx/internal/object"
	"sync"
)

// LogicalThread is one independently scheduled evaluation. Threads form a
// tree; each is addressed by its index in the context's arena and refers to
// its parent by index.
type LogicalThread struct {
	index    int
	parent   int // -1 for the main thread
	children []int
	depth    int

	closures  []*object.BlockScope
	blocks    []*object.BlockScope
	loops     []*LoopScope
	tryBlocks []*TryScope

	breakLabel  int
	returnValue object.Object

	// resolution annotations of this evaluation pass
	annotations map[ast.Expression]*reference

	// guards blocks and closures, which child threads read
	mu sync.RWMutex
}

func (t *LogicalThread) Index() int { return t.index }

func (t *LogicalThread) pushBlock() *object.BlockScope {
	b := object.NewBlockScope()
	t.mu.Lock()
	t.blocks = append(t.blocks, b)
	t.mu.Unlock()
	return b
}

func (t *LogicalThread) popBlock() {
	t.mu.Lock()
	if len(t.blocks) > 0 {
		t.blocks = t.blocks[:len(t.blocks)-1]
	}
	t.mu.Unlock()
}

// truncateBlocks drops block scopes above depth.
func (t *LogicalThread) truncateBlocks(depth int) {
	t.mu.Lock()
	if depth < len(t.blocks) {
		t.blocks = t.blocks[:depth]
	}
	t.mu.Unlock()
}

func (t *LogicalThread) blockDepth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.blocks)
}

func (t *LogicalThread) innermostBlock() *object.BlockScope {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.blocks) == 0 {
		return nil
	}
	return t.blocks[len(t.blocks)-1]
}

// scopes returns the block scopes and closures of the thread, innermost
// first.
func (t *LogicalThread) scopes() []*object.BlockScope {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*object.BlockScope, 0, len(t.blocks)+len(t.closures))
	for i := len(t.blocks) - 1; i >= 0; i-- {
		out = append(out, t.blocks[i])
	}
	for i := len(t.closures) - 1; i >= 0; i-- {
		out = append(out, t.closures[i])
	}
	return out
}

func (t *LogicalThread) innermostLoop() *LoopScope {
	if len(t.loops) == 0 {
		return nil
	}
	return t.loops[len(t.loops)-1]
}

func (t *LogicalThread) innermostTry() *TryScope {
	if len(t.tryBlocks) == 0 {
		return nil
	}
	return t.tryBlocks[len(t.tryBlocks)-1]
}

// LoopScope records the queue labels and scope depths a loop or switch
// unwinds to on break and continue.
type LoopScope struct {
	continueLabel      int
	breakLabel         int
	continueBlockDepth int
	breakBlockDepth    int
	tryBlockDepth      int
	isSwitch           bool
}

func (t *LogicalThread) createLoopScope(extraBlocks int) *LoopScope {
	depth := t.blockDepth()
	loop := &LoopScope{
		continueLabel:      noLabel,
		breakLabel:         noLabel,
		breakBlockDepth:    depth,
		continueBlockDepth: depth + extraBlocks,
		tryBlockDepth:      len(t.tryBlocks),
	}
	t.loops = append(t.loops, loop)
	return loop
}

// releaseLoopScope pops the innermost loop and the blocks it owns. With
// keep set the loop survives and only the iteration's blocks go.
func (t *LogicalThread) releaseLoopScope(keep bool) {
	loop := t.innermostLoop()
	if loop == nil {
		return
	}
	if keep {
		t.truncateBlocks(loop.continueBlockDepth)
		return
	}
	t.truncateBlocks(loop.breakBlockDepth)
	t.loops = t.loops[:len(t.loops)-1]
}

type tryPhase int

const (
	phaseTry tryPhase = iota
	phaseCatch
	phaseFinally
	phaseError
	phasePostFinally
)

type exitType int

const (
	exitNone exitType = iota
	exitBreak
	exitContinue
	exitReturn
)

// TryScope drives one active try statement through its phases.
type TryScope struct {
	statement    *ast.TryStatement
	label        int
	phase        tryPhase
	exitType     exitType
	errorToThrow error
	errorSource  tryPhase
	blockDepth   int
	loopDepth    int
}

// threadArena owns every logical thread of a run.
type threadArena struct {
	mu      sync.Mutex
	threads []*LogicalThread
	free    []int
}

func (a *threadArena) spawn(parent *LogicalThread, closures []*object.BlockScope) *LogicalThread {
	a.mu.Lock()
	defer a.mu.Unlock()
	t := &LogicalThread{
		parent:      -1,
		closures:    closures,
		breakLabel:  clearAll,
		annotations: make(map[ast.Expression]*reference),
	}
	if n := len(a.free); n > 0 {
		t.index = a.free[n-1]
		a.free = a.free[:n-1]
		a.threads[t.index] = t
	} else {
		t.index = len(a.threads)
		a.threads = append(a.threads, t)
	}
	if parent != nil {
		t.parent = parent.index
		t.depth = parent.depth + 1
		parent.mu.Lock()
		parent.children = append(parent.children, t.index)
		parent.mu.Unlock()
	}
	return t
}

func (a *threadArena) release(t *LogicalThread) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t.parent >= 0 {
		if parent := a.threads[t.parent]; parent != nil {
			parent.mu.Lock()
			for i, c := range parent.children {
				if c == t.index {
					parent.children = append(parent.children[:i], parent.children[i+1:]...)
					break
				}
			}
			parent.mu.Unlock()
		}
	}
	a.threads[t.index] = nil
	a.free = append(a.free, t.index)
}

func (a *threadArena) parentOf(t *LogicalThread) *LogicalThread {
	if t.parent < 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.threads[t.parent]
}

// live counts threads that have not been released.
func (a *threadArena) live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.threads) - len(a.free)
}
