// printer.go renders an AST back to canonical Z source. The output is what
// --parse-only shows, and it re-parses to an equivalent tree: nested BinOp
// operands are parenthesized so the printed text carries the same shape the
// shunting-yard pass derived.

package parser

import (
	"fmt"
	"strings"

	"zlang/ast"
)

const indentStep = "    "

// Print renders a whole module as canonical Z source text.
func Print(module ast.Module) string {
	var out strings.Builder
	for i, node := range module.Body {
		if i > 0 {
			out.WriteString("\n")
		}
		printNode(&out, node, "")
		out.WriteString("\n")
	}
	return out.String()
}

func printNode(out *strings.Builder, node ast.Node, indent string) {
	switch n := node.(type) {
	case ast.FunctionDef:
		out.WriteString(indent)
		out.WriteString("fun ")
		out.WriteString(n.Name)
		out.WriteString("(")
		for i, arg := range n.Args {
			if i > 0 {
				out.WriteString(", ")
			}
			out.WriteString(arg.Name)
			out.WriteString(": ")
			out.WriteString(exprString(arg.Annotation))
		}
		out.WriteString(")")
		if name, ok := n.Returns.(ast.Name); ok {
			out.WriteString(" -> ")
			out.WriteString(name.ID)
		}
		out.WriteString(" {\n")
		printBody(out, n.Body, indent+indentStep)
		out.WriteString(indent)
		out.WriteString("}")

	case ast.VariableDef:
		out.WriteString(indent)
		out.WriteString("var ")
		if n.Mutable {
			out.WriteString("mut ")
		}
		out.WriteString(n.Name)
		if _, none := n.Value.(ast.None); !none {
			out.WriteString(" = ")
			out.WriteString(exprString(n.Value))
		}

	case ast.Assign:
		out.WriteString(indent)
		out.WriteString(n.Target)
		out.WriteString(" = ")
		out.WriteString(exprString(n.Value))

	case ast.If:
		out.WriteString(indent)
		out.WriteString("if ")
		out.WriteString(exprString(n.Test))
		out.WriteString(" {\n")
		printBody(out, n.Run.Body, indent+indentStep)
		out.WriteString(indent)
		out.WriteString("}")
		printOrelse(out, n.Orelse, indent)

	case ast.Loop:
		out.WriteString(indent)
		out.WriteString("loop {\n")
		printBody(out, n.Body.Body, indent+indentStep)
		out.WriteString(indent)
		out.WriteString("}")

	case ast.Scope:
		out.WriteString(indent)
		out.WriteString("{\n")
		printBody(out, n.Body, indent+indentStep)
		out.WriteString(indent)
		out.WriteString("}")

	case ast.Return:
		out.WriteString(indent)
		out.WriteString("return")
		if _, none := n.Value.(ast.None); !none {
			out.WriteString(" ")
			out.WriteString(exprString(n.Value))
		}

	case ast.Break:
		out.WriteString(indent)
		out.WriteString("break")

	case ast.None:
		// nothing to print

	default:
		out.WriteString(indent)
		out.WriteString(exprString(node))
	}
}

func printBody(out *strings.Builder, body []ast.Node, indent string) {
	for _, node := range body {
		printNode(out, node, indent)
		out.WriteString("\n")
	}
}

// printOrelse continues an if statement with its else branch; an else-if
// chain stays on one line.
func printOrelse(out *strings.Builder, orelse ast.Node, indent string) {
	switch n := orelse.(type) {
	case ast.None:
	case ast.If:
		out.WriteString(" else ")
		var chained strings.Builder
		printNode(&chained, n, indent)
		out.WriteString(strings.TrimPrefix(chained.String(), indent))
	case ast.Scope:
		out.WriteString(" else {\n")
		printBody(out, n.Body, indent+indentStep)
		out.WriteString(indent)
		out.WriteString("}")
	}
}

// exprString renders an expression node on a single line.
func exprString(node ast.Node) string {
	switch n := node.(type) {
	case ast.Constant:
		if n.Value.Kind == ast.KindStr {
			return quote(n.Value.Str)
		}
		return n.Value.String()

	case ast.BinOp:
		return fmt.Sprintf("%s %s %s", operandString(n.Left), n.Op, operandString(n.Right))

	case ast.Name:
		return n.ID

	case ast.Call:
		args := make([]string, 0, len(n.Args))
		for _, arg := range n.Args {
			args = append(args, exprString(arg))
		}
		return fmt.Sprintf("%s(%s)", n.Func.ID, strings.Join(args, ", "))

	case ast.List:
		elements := make([]string, 0, len(n.Elements))
		for _, element := range n.Elements {
			elements = append(elements, exprString(element))
		}
		return fmt.Sprintf("[%s]", strings.Join(elements, ", "))

	case ast.None:
		return ""

	default:
		return fmt.Sprintf("%v", node)
	}
}

// operandString parenthesizes nested BinOp operands so the printed
// expression re-parses to the same tree regardless of precedence.
func operandString(node ast.Node) string {
	if _, ok := node.(ast.BinOp); ok {
		return "(" + exprString(node) + ")"
	}
	return exprString(node)
}

// quote renders a string literal with the escapes the lexer recognizes.
func quote(s string) string {
	var out strings.Builder
	out.WriteString(`"`)
	for _, r := range s {
		switch r {
		case '\\':
			out.WriteString(`\\`)
		case '"':
			out.WriteString(`\"`)
		case '\n':
			out.WriteString(`\n`)
		default:
			out.WriteRune(r)
		}
	}
	out.WriteString(`"`)
	return out.String()
}
