// statements.go holds the per-statement builders. Each builder is entered
// with the introducing token already consumed and leaves the stream
// positioned after the construct it parsed.

package parser

import (
	"fmt"

	"zlang/ast"
	"zlang/token"
)

// parseNode parses one statement or expression starting at tok, which the
// caller has already consumed. Dispatch follows the first token; an
// IDENTIFIER is disambiguated by the token after it (call, assignment,
// binary expression, or bare reference).
func (parser *Parser) parseNode(tok token.Token) (ast.Node, error) {
	prevType := parser.prev.TokenType
	parser.prev = tok

	switch tok.TokenType {
	case token.INT, token.FLOAT, token.STRING:
		if token.IsOperator(parser.peek().TokenType) {
			return parser.buildBinOp(tok, nil)
		}
		return parser.buildConstant(tok)

	case token.TRUE, token.FALSE:
		return parser.buildConstant(tok)

	case token.FUN:
		return parser.buildFun()
	case token.VAR:
		return parser.buildVar()
	case token.IF:
		return parser.buildIf()
	case token.LOOP:
		return parser.buildLoop()
	case token.BREAK:
		return ast.Break{Pos: tok.Pos()}, nil
	case token.RETURN:
		return parser.buildReturn()

	case token.IDENTIFIER:
		switch {
		case parser.peek().TokenType == token.LPA:
			if _, err := parser.next(); err != nil {
				return nil, err
			}
			call, err := parser.buildFcall(tok)
			if err != nil {
				return nil, err
			}
			if token.IsOperator(parser.peek().TokenType) {
				opTok := parser.peek()
				return parser.buildBinOp(opTok, &exprPart{kind: partOperand, operand: call})
			}
			return call, nil

		case parser.peek().TokenType == token.ASSIGN:
			if _, err := parser.next(); err != nil {
				return nil, err
			}
			return parser.buildAssign(tok)

		case token.IsOperator(parser.peek().TokenType) && !token.IsOperator(prevType):
			return parser.buildBinOp(tok, nil)

		default:
			return ast.Name{ID: tok.Lexeme, Pos: tok.Pos()}, nil
		}

	case token.LCUR:
		scope, err := parser.buildScope()
		if err != nil {
			return nil, err
		}
		return scope, nil

	case token.LBRACKET:
		return parser.buildList()

	case token.LPA:
		return parser.buildBinOp(tok, nil)

	case token.NEWLINE:
		next, err := parser.next()
		if err != nil {
			return nil, err
		}
		return parser.parseNode(next)

	default:
		return nil, throw(tok, fmt.Sprintf("Unexpected token: %s", tok))
	}
}

// buildConstant converts a primitive or boolean keyword token into a
// Constant node.
func (parser *Parser) buildConstant(tok token.Token) (ast.Node, error) {
	switch tok.TokenType {
	case token.INT:
		return ast.Constant{Value: ast.IntValue(tok.Literal.(int32))}, nil
	case token.FLOAT:
		return ast.Constant{Value: ast.FloatValue(tok.Literal.(float32))}, nil
	case token.STRING:
		return ast.Constant{Value: ast.StrValue(tok.Literal.(string))}, nil
	case token.TRUE:
		return ast.Constant{Value: ast.BoolValue(true)}, nil
	case token.FALSE:
		return ast.Constant{Value: ast.BoolValue(false)}, nil
	default:
		return nil, throw(tok, "Not yet implemented!")
	}
}

// buildFun parses `fun NAME ( arg_list ) ( -> TYPE )? { body }`.
func (parser *Parser) buildFun() (ast.Node, error) {
	current, err := parser.next()
	if err != nil {
		return nil, err
	}
	if current.TokenType != token.IDENTIFIER {
		return nil, throw(current, "Function name should be a word.")
	}
	name := current.Lexeme

	current, err = parser.next()
	if err != nil {
		return nil, err
	}
	if current.TokenType != token.LPA {
		return nil, throw(current, "Expected a LParen token.")
	}

	var args []ast.Arg
	current, err = parser.next()
	if err != nil {
		return nil, err
	}
	for current.TokenType != token.RPA {
		if current.TokenType == token.COMMA {
			current, err = parser.next()
			if err != nil {
				return nil, err
			}
			continue
		}

		if current.TokenType != token.IDENTIFIER {
			return nil, throw(current, "Argument name should be a word.")
		}
		argName := current.Lexeme

		current, err = parser.next()
		if err != nil {
			return nil, err
		}
		if current.TokenType != token.COLON {
			return nil, throw(current, "Expected ':' after argument name.")
		}

		current, err = parser.next()
		if err != nil {
			return nil, err
		}
		if current.TokenType != token.IDENTIFIER {
			return nil, throw(current, "Argument type should be a word.")
		}
		annotation, err := parser.parseNode(current)
		if err != nil {
			return nil, err
		}

		args = append(args, ast.Arg{Name: argName, Annotation: annotation})

		current, err = parser.next()
		if err != nil {
			return nil, err
		}
	}

	current, err = parser.next()
	if err != nil {
		return nil, err
	}

	var returns ast.Node = ast.None{}
	if current.TokenType == token.ARROW {
		current, err = parser.next()
		if err != nil {
			return nil, err
		}
		if current.TokenType != token.IDENTIFIER {
			return nil, throw(current, "Function return type should be a word.")
		}
		block, err := parser.next()
		if err != nil {
			return nil, err
		}
		if block.TokenType != token.LCUR {
			return nil, throw(block, "Expected a code block.")
		}
		returns, err = parser.parseNode(current)
		if err != nil {
			return nil, err
		}
	} else if current.TokenType != token.LCUR {
		return nil, throw(current, "Expected a code block.")
	}

	var body []ast.Node
	current, err = parser.next()
	if err != nil {
		return nil, err
	}
	for current.TokenType != token.RCUR {
		if current.TokenType != token.NEWLINE {
			parsed, err := parser.parseNode(current)
			if err != nil {
				return nil, err
			}
			body = append(body, parsed)
		}
		current, err = parser.next()
		if err != nil {
			return nil, err
		}
	}

	return ast.FunctionDef{
		Name:    name,
		Args:    args,
		Body:    body,
		Returns: returns,
	}, nil
}

// buildFcall parses a call's argument list; the callee name token and the
// opening parenthesis have already been consumed.
func (parser *Parser) buildFcall(name token.Token) (ast.Node, error) {
	var args []ast.Node

	current, err := parser.next()
	if err != nil {
		return nil, err
	}
	for current.TokenType != token.RPA {
		if current.TokenType == token.COMMA {
			current, err = parser.next()
			if err != nil {
				return nil, err
			}
			continue
		}

		if current.TokenType != token.NEWLINE {
			arg, err := parser.parseNode(current)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		current, err = parser.next()
		if err != nil {
			return nil, err
		}
	}

	return ast.Call{
		Func: ast.Name{ID: name.Lexeme, Pos: name.Pos()},
		Args: args,
	}, nil
}

// buildVar parses `var [mut] NAME [= expr]`. Immutable variables must be
// initialized.
func (parser *Parser) buildVar() (ast.Node, error) {
	mutable := false
	current, err := parser.next()
	if err != nil {
		return nil, err
	}

	if current.TokenType == token.MUT {
		mutable = true
		current, err = parser.next()
		if err != nil {
			return nil, err
		}
	}

	if current.TokenType != token.IDENTIFIER {
		return nil, throw(current, "Variable name should be a word!")
	}
	name := current.Lexeme

	current, err = parser.next()
	if err != nil {
		return nil, err
	}

	assigning := current.TokenType == token.ASSIGN
	if !assigning && !mutable {
		return nil, throw(current, "Immutable variables have to be assigned at declaration.")
	}

	var value ast.Node = ast.None{}
	if assigning {
		current, err = parser.next()
		if err != nil {
			return nil, err
		}
		if current.TokenType == token.NEWLINE {
			return nil, throw(current, "Expected a value!")
		}
		value, err = parser.parseNode(current)
		if err != nil {
			return nil, err
		}
	}

	return ast.VariableDef{
		Name:    name,
		Mutable: mutable,
		Value:   value,
	}, nil
}

// buildAssign parses the value of `NAME = expr`; the target name token and
// the equals sign have already been consumed.
func (parser *Parser) buildAssign(name token.Token) (ast.Node, error) {
	current, err := parser.next()
	if err != nil {
		return nil, err
	}
	if current.TokenType == token.NEWLINE {
		return nil, throw(current, "Expected a value.")
	}

	value, err := parser.parseNode(current)
	if err != nil {
		return nil, err
	}

	return ast.Assign{
		Target: name.Lexeme,
		Value:  value,
		Pos:    name.Pos(),
	}, nil
}

// buildIf parses `if expr { body }` and an optional else branch, which is
// either another if (chaining) or a scope.
func (parser *Parser) buildIf() (ast.Node, error) {
	current, err := parser.next()
	if err != nil {
		return nil, err
	}

	test, err := parser.parseNode(current)
	if err != nil {
		return nil, err
	}

	current, err = parser.next()
	if err != nil {
		return nil, err
	}
	if current.TokenType != token.LCUR {
		return nil, throw(current, "Expected a code block.")
	}

	run, err := parser.buildScope()
	if err != nil {
		return nil, err
	}

	// An else may sit on the next line; look past blank lines without
	// committing to anything.
	for parser.peek().TokenType == token.NEWLINE {
		if _, err := parser.next(); err != nil {
			return nil, err
		}
	}

	var orelse ast.Node = ast.None{}
	if parser.peek().TokenType == token.ELSE {
		if _, err := parser.next(); err != nil {
			return nil, err
		}
		current, err = parser.next()
		if err != nil {
			return nil, err
		}
		orelse, err = parser.parseNode(current)
		if err != nil {
			return nil, err
		}
	}

	return ast.If{
		Test:   test,
		Run:    run,
		Orelse: orelse,
	}, nil
}

// buildScope parses statements up to the matching closing brace. It accepts
// being entered either right after the opening brace or right before it.
func (parser *Parser) buildScope() (ast.Scope, error) {
	var body []ast.Node

	current, err := parser.next()
	if err != nil {
		return ast.Scope{}, err
	}
	if current.TokenType == token.LCUR {
		current, err = parser.next()
		if err != nil {
			return ast.Scope{}, err
		}
	}

	for current.TokenType != token.RCUR {
		if current.TokenType != token.NEWLINE {
			parsed, err := parser.parseNode(current)
			if err != nil {
				return ast.Scope{}, err
			}
			body = append(body, parsed)
		}
		current, err = parser.next()
		if err != nil {
			return ast.Scope{}, err
		}
	}

	return ast.Scope{Body: body}, nil
}

// buildLoop parses `loop { body }`.
func (parser *Parser) buildLoop() (ast.Node, error) {
	body, err := parser.buildScope()
	if err != nil {
		return nil, err
	}
	return ast.Loop{Body: body}, nil
}

// buildReturn parses `return expr?`.
func (parser *Parser) buildReturn() (ast.Node, error) {
	current, err := parser.next()
	if err != nil {
		return nil, err
	}

	var value ast.Node = ast.None{}
	if current.TokenType != token.NEWLINE {
		value, err = parser.parseNode(current)
		if err != nil {
			return nil, err
		}
	}

	return ast.Return{Value: value}, nil
}

// buildList parses a bracketed list literal. The grammar reserves lists;
// the emitters reject them.
func (parser *Parser) buildList() (ast.Node, error) {
	var elements []ast.Node

	current, err := parser.next()
	if err != nil {
		return nil, err
	}
	for current.TokenType != token.RBRACKET {
		if current.TokenType != token.COMMA {
			node, err := parser.parseNode(current)
			if err != nil {
				return nil, err
			}
			elements = append(elements, node)
		}
		current, err = parser.next()
		if err != nil {
			return nil, err
		}
	}

	return ast.List{Elements: elements}, nil
}
