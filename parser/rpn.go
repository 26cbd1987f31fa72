// rpn.go implements the expression parser: a flat collection of expression
// parts is reordered into Reverse Polish Notation with Dijkstra's
// shunting-yard algorithm and folded into a left-leaning BinOp tree.

package parser

import (
	"zlang/ast"
	"zlang/token"
	"zlang/zerror"
)

type exprPartKind int

const (
	partOperator exprPartKind = iota
	partOperand
	partLpar
	partRpar
)

// exprPart is one element of a flat, unordered expression: an operator, an
// operand node (constant, name, call or nested BinOp), or a parenthesis.
type exprPart struct {
	kind    exprPartKind
	op      token.Operator
	operand ast.Node
}

// buildBinOp collects expression parts starting at start until a
// terminator: newline, comma, brace, a closing parenthesis that belongs to
// the caller, or the end of the stream. The caller may seed the collection
// with an extra operand, which is how a call on the left-hand side of an
// operator joins the expression. Without a seed, start has already been
// consumed by the caller; with one, start is the next, still unconsumed
// token and is consumed here.
func (parser *Parser) buildBinOp(start token.Token, extra *exprPart) (ast.Node, error) {
	var parts []exprPart
	if extra != nil {
		parts = append(parts, *extra)
	}

	needClosing := 0
	current := start

collect:
	for {
		var part exprPart

		switch {
		case token.IsOperator(current.TokenType):
			if len(parts) > 0 {
				if _, err := parser.next(); err != nil {
					return nil, err
				}
			}
			op, _ := token.AsOperator(current.TokenType)
			part = exprPart{kind: partOperator, op: op}

		case current.TokenType == token.INT || current.TokenType == token.FLOAT || current.TokenType == token.STRING:
			if len(parts) > 0 {
				if _, err := parser.next(); err != nil {
					return nil, err
				}
			}
			constant, err := parser.buildConstant(current)
			if err != nil {
				return nil, err
			}
			part = exprPart{kind: partOperand, operand: constant}

		case current.TokenType == token.IDENTIFIER:
			if len(parts) > 0 {
				if _, err := parser.next(); err != nil {
					return nil, err
				}
			}
			// A call contributes a single operand; descend into its
			// argument list before resuming collection. Anything else the
			// identifier could start (assignment, another expression) has
			// no place inside an expression, so a bare name is the only
			// alternative.
			var operand ast.Node
			if parser.peek().TokenType == token.LPA {
				if _, err := parser.next(); err != nil {
					return nil, err
				}
				call, err := parser.buildFcall(current)
				if err != nil {
					return nil, err
				}
				operand = call
			} else {
				operand = ast.Name{ID: current.Lexeme, Pos: current.Pos()}
			}
			part = exprPart{kind: partOperand, operand: operand}

		case current.TokenType == token.LPA:
			if len(parts) > 0 {
				if _, err := parser.next(); err != nil {
					return nil, err
				}
			}
			needClosing++
			part = exprPart{kind: partLpar}

		case current.TokenType == token.RPA:
			if needClosing == 0 {
				// this closing parenthesis terminates the expression and
				// belongs to the caller (a call argument list)
				break collect
			}
			if len(parts) > 0 {
				if _, err := parser.next(); err != nil {
					return nil, err
				}
			}
			needClosing--
			part = exprPart{kind: partRpar}

		case current.TokenType == token.NEWLINE:
			if _, err := parser.next(); err != nil {
				return nil, err
			}
			break collect

		case current.TokenType == token.COMMA || current.TokenType == token.RCUR ||
			current.TokenType == token.LCUR || current.TokenType == token.EOF:
			break collect

		default:
			return nil, throw(current, "Unexpected token in binop.")
		}

		parts = append(parts, part)
		current = parser.peek()
	}

	ordered, err := shuntingYard(parts)
	if err != nil {
		return nil, err
	}

	// Fold the RPN sequence into a tree; operands stack up and each
	// operator takes the two topmost.
	var stack []ast.Node
	for _, part := range ordered {
		switch part.kind {
		case partOperator:
			if len(stack) < 2 {
				return nil, throw(start, "Invalid expression.")
			}
			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, ast.BinOp{Left: left, Op: part.op, Right: right})
		case partOperand:
			stack = append(stack, part.operand)
		default:
			return nil, throw(start, "Invalid expression.")
		}
	}

	if len(stack) != 1 {
		return nil, throw(start, "Invalid expression.")
	}
	return stack[0], nil
}

// shuntingYard reorders a flat expression into Reverse Polish Notation.
// All operators are left-associative: an operator on the stack with equal
// or higher precedence is emitted before the incoming one is pushed.
func shuntingYard(parts []exprPart) ([]exprPart, error) {
	var output []exprPart
	var operatorStack []exprPart

	for _, part := range parts {
		switch part.kind {
		case partOperator:
			for len(operatorStack) > 0 {
				top := operatorStack[len(operatorStack)-1]
				if top.kind == partLpar {
					break
				}
				if top.op.Precedence() < part.op.Precedence() {
					break
				}
				output = append(output, top)
				operatorStack = operatorStack[:len(operatorStack)-1]
			}
			operatorStack = append(operatorStack, part)

		case partOperand:
			output = append(output, part)

		case partLpar:
			operatorStack = append(operatorStack, part)

		case partRpar:
			for {
				if len(operatorStack) == 0 {
					return nil, zerror.New(0, 0, 1, "Mismatched parentheses.")
				}
				top := operatorStack[len(operatorStack)-1]
				if top.kind == partLpar {
					operatorStack = operatorStack[:len(operatorStack)-1]
					break
				}
				output = append(output, top)
				operatorStack = operatorStack[:len(operatorStack)-1]
			}
		}
	}

	for i := len(operatorStack) - 1; i >= 0; i-- {
		output = append(output, operatorStack[i])
	}

	return output, nil
}
