package object

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrConstAssignment = errors.New("A const variable cannot be modified")

// BlockScope holds the variables of one {...} region, a function body or a
// module top level. Scopes captured by closures are shared between logical
// threads and hosts read them between statements, so every access goes
// through the lock.
type BlockScope struct {
	vars        map[string]Object
	constVars   map[string]bool
	returnValue Object

	mu sync.RWMutex
}

func NewBlockScope() *BlockScope {
	return &BlockScope{
		vars:      make(map[string]Object),
		constVars: make(map[string]bool),
	}
}

func (b *BlockScope) Get(name string) (Object, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.vars[name]
	return v, ok
}

func (b *BlockScope) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.vars[name]
	return ok
}

func (b *BlockScope) IsConst(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.constVars[name]
}

// Declare binds a new name. Redeclaring a name of the same scope fails.
func (b *BlockScope) Declare(name string, val Object, isConst bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.vars[name]; exists {
		return fmt.Errorf("Variable %s is already declared in the current scope.", name)
	}
	b.bind(name, val, isConst)
	return nil
}

// Bind sets a name unconditionally, replacing an earlier binding. Loop
// variables use it to rebind on every iteration.
func (b *BlockScope) Bind(name string, val Object, isConst bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bind(name, val, isConst)
}

func (b *BlockScope) bind(name string, val Object, isConst bool) {
	if val == nil {
		val = UNDEFINED
	}
	b.vars[name] = val
	if isConst {
		b.constVars[name] = true
	} else {
		delete(b.constVars, name)
	}
}

// Assign updates an existing binding of this scope.
func (b *BlockScope) Assign(name string, val Object) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.constVars[name] {
		return ErrConstAssignment
	}
	if _, exists := b.vars[name]; !exists {
		return fmt.Errorf("%s is not defined", name)
	}
	b.vars[name] = val
	return nil
}

func (b *BlockScope) Delete(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.vars[name]; !exists || b.constVars[name] {
		return false
	}
	delete(b.vars, name)
	return true
}

// Names returns the bound names in sorted order.
func (b *BlockScope) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.vars))
	for k := range b.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ReturnValue is the value of the last expression statement run in the scope.
func (b *BlockScope) ReturnValue() Object {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.returnValue
}

func (b *BlockScope) SetReturnValue(val Object) {
	b.mu.Lock()
	b.returnValue = val
	b.mu.Unlock()
}
