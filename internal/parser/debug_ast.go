package parser

import (
	"encoding/json"
	"fmt"
	"ksx/internal/ast"
	"math/big"
	"os"
	"reflect"
)

// WalkAST recursively traverses an AST and serializes it into a map structure for JSON output.
func WalkAST(node ast.Node) interface{} {
	if node == nil || (reflect.ValueOf(node).Kind() == reflect.Ptr && reflect.ValueOf(node).IsNil()) {
		return nil
	}

	switch n := node.(type) {
	case *ast.EmptyStatement:
		return walkNode("EmptyStatement", n, nil)
	case *ast.ExpressionStatement:
		return walkNode("ExpressionStatement", n, map[string]interface{}{
			"expression": WalkAST(n.Expression),
		})
	case *ast.LetStatement:
		return walkNode("LetStatement", n, map[string]interface{}{
			"declarations": walkDeclarations(n.Declarations),
		})
	case *ast.ConstStatement:
		return walkNode("ConstStatement", n, map[string]interface{}{
			"declarations": walkDeclarations(n.Declarations),
			"isExported":   n.IsExported,
		})
	case *ast.VarDeclaration:
		return walkNode("VarDeclaration", n, map[string]interface{}{
			"id":             n.ID,
			"arrayDestruct":  WalkAST(n.ArrayDestruct),
			"objectDestruct": WalkAST(n.ObjectDestruct),
			"expression":     WalkAST(n.Expression),
		})
	case *ast.BlockStatement:
		return walkNode("BlockStatement", n, map[string]interface{}{
			"statements": walkStatements(n.Statements),
		})
	case *ast.IfStatement:
		return walkNode("IfStatement", n, map[string]interface{}{
			"condition":  WalkAST(n.Condition),
			"thenBranch": WalkAST(n.ThenBranch),
			"elseBranch": WalkAST(n.ElseBranch),
		})
	case *ast.WhileStatement:
		return walkNode("WhileStatement", n, map[string]interface{}{
			"condition": WalkAST(n.Condition),
			"body":      WalkAST(n.Body),
		})
	case *ast.DoWhileStatement:
		return walkNode("DoWhileStatement", n, map[string]interface{}{
			"condition": WalkAST(n.Condition),
			"body":      WalkAST(n.Body),
		})
	case *ast.ReturnStatement:
		return walkNode("ReturnStatement", n, map[string]interface{}{
			"expression": WalkAST(n.Expression),
		})
	case *ast.BreakStatement:
		return walkNode("BreakStatement", n, nil)
	case *ast.ContinueStatement:
		return walkNode("ContinueStatement", n, nil)
	case *ast.ThrowStatement:
		return walkNode("ThrowStatement", n, map[string]interface{}{
			"expression": WalkAST(n.Expression),
		})
	case *ast.ForStatement:
		return walkNode("ForStatement", n, map[string]interface{}{
			"init":      WalkAST(n.Init),
			"condition": WalkAST(n.Condition),
			"update":    WalkAST(n.Update),
			"body":      WalkAST(n.Body),
		})
	case *ast.ForInStatement:
		return walkNode("ForInStatement", n, map[string]interface{}{
			"varBinding": n.VarBinding.String(),
			"id":         n.ID,
			"expression": WalkAST(n.Expression),
			"body":       WalkAST(n.Body),
		})
	case *ast.ForOfStatement:
		return walkNode("ForOfStatement", n, map[string]interface{}{
			"varBinding": n.VarBinding.String(),
			"id":         n.ID,
			"expression": WalkAST(n.Expression),
			"body":       WalkAST(n.Body),
		})
	case *ast.TryStatement:
		return walkNode("TryStatement", n, map[string]interface{}{
			"tryBlock":      WalkAST(n.TryBlock),
			"catchVariable": n.CatchVariable,
			"catchBlock":    WalkAST(n.CatchBlock),
			"finallyBlock":  WalkAST(n.FinallyBlock),
		})
	case *ast.SwitchStatement:
		cases := make([]interface{}, len(n.Cases))
		for i, c := range n.Cases {
			cases[i] = walkNode("SwitchCase", c, map[string]interface{}{
				"caseExpression": WalkAST(c.Expression),
				"statements":     walkStatements(c.Statements),
			})
		}
		return walkNode("SwitchStatement", n, map[string]interface{}{
			"expression": WalkAST(n.Expression),
			"cases":      cases,
		})
	case *ast.FunctionDeclaration:
		return walkNode("FunctionDeclaration", n, map[string]interface{}{
			"name":       n.Name,
			"args":       walkExpressions(n.Args),
			"body":       WalkAST(n.Body),
			"isExported": n.IsExported,
		})
	case *ast.ImportDeclaration:
		imports := make([]interface{}, len(n.Imports))
		for i, spec := range n.Imports {
			imports[i] = map[string]interface{}{"name": spec.Name, "alias": spec.Alias}
		}
		return walkNode("ImportDeclaration", n, map[string]interface{}{
			"imports":    imports,
			"moduleFile": n.ModuleFile,
		})

	case *ast.UnaryExpression:
		return walkNode("UnaryExpression", n, map[string]interface{}{
			"operator": n.Operator.String(),
			"operand":  WalkAST(n.Operand),
		})
	case *ast.BinaryExpression:
		return walkNode("BinaryExpression", n, map[string]interface{}{
			"operator": n.Operator.String(),
			"left":     WalkAST(n.Left),
			"right":    WalkAST(n.Right),
		})
	case *ast.SequenceExpression:
		return walkNode("SequenceExpression", n, map[string]interface{}{
			"expressions": walkExpressions(n.Expressions),
			"loose":       n.Loose,
		})
	case *ast.ConditionalExpression:
		return walkNode("ConditionalExpression", n, map[string]interface{}{
			"condition":  WalkAST(n.Condition),
			"consequent": WalkAST(n.Consequent),
			"alternate":  WalkAST(n.Alternate),
		})
	case *ast.FunctionInvocation:
		return walkNode("FunctionInvocation", n, map[string]interface{}{
			"object":    WalkAST(n.Object),
			"arguments": walkExpressions(n.Arguments),
		})
	case *ast.MemberAccess:
		return walkNode("MemberAccess", n, map[string]interface{}{
			"object":     WalkAST(n.Object),
			"member":     n.Member,
			"isOptional": n.IsOptional,
		})
	case *ast.CalculatedMemberAccess:
		return walkNode("CalculatedMemberAccess", n, map[string]interface{}{
			"object": WalkAST(n.Object),
			"member": WalkAST(n.Member),
		})
	case *ast.Identifier:
		return walkNode("Identifier", n, map[string]interface{}{
			"name":     n.Name,
			"isGlobal": n.IsGlobal,
		})
	case *ast.Literal:
		return walkNode("Literal", n, map[string]interface{}{
			"value": literalValue(n.Value),
		})
	case *ast.RegExpLiteral:
		return walkNode("RegExpLiteral", n, map[string]interface{}{
			"pattern": n.Pattern,
			"flags":   n.Flags,
		})
	case *ast.ArrayLiteral:
		return walkNode("ArrayLiteral", n, map[string]interface{}{
			"items": walkExpressions(n.Items),
		})
	case *ast.ObjectLiteral:
		props := make([]interface{}, len(n.Props))
		for i, prop := range n.Props {
			props[i] = map[string]interface{}{
				"key":   WalkAST(prop.Key),
				"value": WalkAST(prop.Value),
			}
		}
		return walkNode("ObjectLiteral", n, map[string]interface{}{
			"props": props,
		})
	case *ast.SpreadExpression:
		return walkNode("SpreadExpression", n, map[string]interface{}{
			"operand": WalkAST(n.Operand),
		})
	case *ast.ArrowExpression:
		return walkNode("ArrowExpression", n, map[string]interface{}{
			"args":      walkExpressions(n.Args),
			"statement": WalkAST(n.Statement),
		})
	case *ast.AssignmentExpression:
		return walkNode("AssignmentExpression", n, map[string]interface{}{
			"operator":  n.Operator.String(),
			"leftValue": WalkAST(n.Leftvalue),
			"operand":   WalkAST(n.Operand),
		})
	case *ast.PrefixOpExpression:
		return walkNode("PrefixOpExpression", n, map[string]interface{}{
			"operator": n.Operator.String(),
			"operand":  WalkAST(n.Operand),
		})
	case *ast.PostfixOpExpression:
		return walkNode("PostfixOpExpression", n, map[string]interface{}{
			"operator": n.Operator.String(),
			"operand":  WalkAST(n.Operand),
		})
	case *ast.NoArgExpression:
		return walkNode("NoArgExpression", n, nil)
	case *ast.ArrayDestructure:
		return walkNode("ArrayDestructure", n, map[string]interface{}{
			"items": walkDestructureItems(n.Items),
		})
	case *ast.ObjectDestructure:
		return walkNode("ObjectDestructure", n, map[string]interface{}{
			"items": walkDestructureItems(n.Items),
		})

	default:
		return map[string]interface{}{
			"type": "Unknown: " + n.String(),
		}
	}
}

// WalkProgram serializes the statements of a program.
func WalkProgram(program *ast.Program) interface{} {
	return map[string]interface{}{
		"type":       "Program",
		"statements": walkStatements(program.Statements),
	}
}

func walkNode(typ string, n ast.Node, fields map[string]interface{}) map[string]interface{} {
	b := n.Base()
	out := map[string]interface{}{
		"type":     typ,
		"nodeId":   b.ID,
		"position": fmt.Sprintf("%d:%d-%d:%d", b.Span.StartLine, b.Span.StartColumn, b.Span.EndLine, b.Span.EndColumn),
		"source":   b.Span.Source,
	}
	if e, ok := n.(ast.Expression); ok && e.Parens() > 0 {
		out["parenthesized"] = e.Parens()
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func walkStatements(stmts []ast.Statement) []interface{} {
	out := make([]interface{}, len(stmts))
	for i, s := range stmts {
		out[i] = WalkAST(s)
	}
	return out
}

func walkExpressions(exprs []ast.Expression) []interface{} {
	out := make([]interface{}, len(exprs))
	for i, e := range exprs {
		out[i] = WalkAST(e)
	}
	return out
}

func walkDeclarations(decls []*ast.VarDeclaration) []interface{} {
	out := make([]interface{}, len(decls))
	for i, d := range decls {
		out[i] = WalkAST(d)
	}
	return out
}

func walkDestructureItems(items []*ast.DestructureItem) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = map[string]interface{}{
			"id":             item.ID,
			"alias":          item.Alias,
			"arrayDestruct":  WalkAST(item.ArrayDestruct),
			"objectDestruct": WalkAST(item.ObjectDestruct),
		}
	}
	return out
}

func literalValue(v any) interface{} {
	switch val := v.(type) {
	case ast.UndefinedValue:
		return "undefined"
	case *big.Int:
		return val.String() + "n"
	case float64:
		return fmt.Sprint(val)
	default:
		return val
	}
}

// RenderASTAsJSON renders a program as indented JSON.
func RenderASTAsJSON(program *ast.Program) (string, error) {
	out, err := json.MarshalIndent(WalkProgram(program), "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// WriteASTToJSON takes a parsed program and writes it to a JSON file.
func WriteASTToJSON(program *ast.Program, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")  // Pretty-print the JSON
	encoder.SetEscapeHTML(false) // Disable escaping of characters like <, >, &

	if err := encoder.Encode(WalkProgram(program)); err != nil {
		return fmt.Errorf("failed to write JSON: %v", err)
	}
	return nil
}
