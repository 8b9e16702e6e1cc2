package evaluator

import (
	"ksx/internal/ast"
	"ksx/internal/object"
	"strconv"
)

// binder stores one name produced by a declaration or destructuring pattern.
type binder func(name string, val object.Object) error

func (e *Evaluator) declareAll(decls []*ast.VarDeclaration, isConst bool) error {
	b := e.thread.innermostBlock()
	declare := func(name string, val object.Object) error {
		return b.Declare(name, val, isConst)
	}
	for _, d := range decls {
		var val object.Object = object.UNDEFINED
		if d.Expression != nil {
			v, err := e.eval(d.Expression)
			if err != nil {
				return err
			}
			val = v
		}
		if err := e.destructure(d.ID, d.ArrayDestruct, d.ObjectDestruct, val, declare); err != nil {
			return err
		}
	}
	return nil
}

// destructure binds val to a plain name or spreads it over a pattern.
func (e *Evaluator) destructure(name string, array *ast.ArrayDestructure, obj *ast.ObjectDestructure, val object.Object, bind binder) error {
	switch {
	case array != nil:
		return e.destructureArray(array, val, bind)
	case obj != nil:
		return e.destructureObject(obj, val, bind)
	case name != "":
		return bind(name, val)
	}
	return nil
}

func (e *Evaluator) destructureArray(d *ast.ArrayDestructure, val object.Object, bind binder) error {
	var elements []object.Object
	switch v := val.(type) {
	case *object.Array:
		elements = v.Elements
	case *object.String:
		for _, r := range v.Value {
			elements = append(elements, object.NewString(string(r)))
		}
	default:
		if object.IsNullish(val) {
			return newError("Cannot destructure %s as it is %s.", val.Inspect(), val.Inspect())
		}
		return newError("%s is not iterable", val.Inspect())
	}

	for i, item := range d.Items {
		var elem object.Object = object.UNDEFINED
		if i < len(elements) {
			elem = elements[i]
		}
		if err := e.destructure(item.BoundName(), item.ArrayDestruct, item.ObjectDestruct, elem, bind); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) destructureObject(d *ast.ObjectDestructure, val object.Object, bind binder) error {
	if object.IsNullish(val) {
		return newError("Cannot destructure %s as it is %s.", val.Inspect(), val.Inspect())
	}
	for _, item := range d.Items {
		prop, _, err := e.getMember(val, item.ID, true)
		if err != nil {
			return err
		}
		if err := e.destructure(item.BoundName(), item.ArrayDestruct, item.ObjectDestruct, prop, bind); err != nil {
			return err
		}
	}
	return nil
}

// assignName stores val in the scope layer that already holds name.
func (e *Evaluator) assignName(name string, val object.Object) error {
	ref, err := e.resolveIdentifier(name, false)
	if err != nil {
		return err
	}
	if ref == nil {
		return newError("%s is not defined", name)
	}
	return ref.set(val)
}

// bindParameters declares the parameters of an arrow function in its
// argument block. Missing arguments are undefined.
func (e *Evaluator) bindParameters(b *object.BlockScope, params []ast.Expression, args []object.Object) error {
	declare := func(name string, val object.Object) error {
		b.Bind(name, val, false)
		return nil
	}
	for i, param := range params {
		var arg object.Object = object.UNDEFINED
		if i < len(args) {
			arg = args[i]
		}
		var err error
		switch p := param.(type) {
		case *ast.Identifier:
			err = declare(p.Name, arg)
		case *ast.ArrayDestructure:
			err = e.destructureArray(p, arg, declare)
		case *ast.ObjectDestructure:
			err = e.destructureObject(p, arg, declare)
		default:
			err = newError("invalid parameter %s", strconv.Quote(param.String()))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
