// Recursive descent parser
// https://en.wikipedia.org/wiki/Recursive_descent_parser
//
// A recursive descent parser is a top-down parser because it starts from the
// top grammar rule and works its way down into the nested sub-expressions
// before reaching the leaves of the syntax tree (terminal rules).
//
// Statements are parsed by a per-keyword builder; binary expressions go
// through the shunting-yard pass in rpn.go.
package parser

import (
	"zlang/ast"
	"zlang/token"
	"zlang/zerror"
)

type Parser struct {
	tokens   []token.Token
	position int

	// The token handed to the previous parseNode call. Statement dispatch
	// needs it to tell a binary expression continuation from a fresh
	// operand (see the IDENTIFIER case in parseNode).
	prev token.Token
}

// NOTE: The parser's position is always one unit ahead of the
// current token.

// Make initializes and returns a new Parser instance over the tokens
// created by the lexer. The token slice must end with an EOF token.
func Make(tokens []token.Token) *Parser {
	return &Parser{
		tokens:   tokens,
		position: 0,
		prev:     token.CreateToken(token.NEWLINE, 1, 1),
	}
}

// Parse parses the entire token stream into a Module. Parsing stops at the
// first error, which is returned as a zerror.CompilerError carrying the
// offending token's position.
func (parser *Parser) Parse() (ast.Module, error) {
	module := ast.Module{}

	for !parser.isFinished() {
		current := parser.advance()
		if current.TokenType == token.NEWLINE {
			continue
		}
		node, err := parser.parseNode(current)
		if err != nil {
			return module, err
		}
		module.Body = append(module.Body, node)
	}

	return module, nil
}

// Peeks the token at the parser's current position,
// without advancing the parser's position.
func (parser *Parser) peek() token.Token {
	return parser.tokens[parser.position]
}

// Retrieves the token at the parser's previous position
// (position -1).
func (parser *Parser) previous() token.Token {
	return parser.tokens[parser.position-1]
}

// Increments the parser's position by one unit and
// consumes the current token.
func (parser *Parser) advance() token.Token {
	if !parser.isFinished() {
		parser.position++
	}
	return parser.previous()
}

// Determines if the parser has consumed all meaningful tokens.
func (parser *Parser) isFinished() bool {
	return parser.peek().TokenType == token.EOF
}

// next consumes and returns the current token, or fails with a syntax error
// at the previously consumed token when the stream is exhausted.
func (parser *Parser) next() (token.Token, error) {
	if parser.isFinished() {
		return parser.peek(), zerror.New(parser.prev.Line, parser.prev.Column, 1, "invalid syntax")
	}
	return parser.advance(), nil
}

// throw builds a syntax error anchored at the given token.
func throw(tok token.Token, message string) error {
	return zerror.New(tok.Line, tok.Column, 1, message)
}
