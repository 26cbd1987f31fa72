package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/google/subcommands"

	"zlang/lexer"
	"zlang/parser"
	"zlang/token"
)

// replCmd is an interactive front-end explorer: every complete input is
// lexed, parsed and printed back in canonical form.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive AST explorer" }
func (*replCmd) Usage() string {
	return `z repl
`
}

func (*replCmd) SetFlags(f *flag.FlagSet) {}

func (cmd *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	color.New(color.FgCyan, color.Bold).Println("\nWelcome to the Z programming language!")
	fmt.Println(`Type Z code to see its canonical parse; "exit" leaves.`)
	fmt.Println()

	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start readline: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	var buffer strings.Builder

	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buffer.Reset()
			continue
		}
		if err == io.EOF {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		lex := lexer.New(source)
		tokens, err := lex.Scan()
		if err != nil {
			reportError(err, source)
			buffer.Reset()
			continue
		}

		if !isInputReady(tokens) {
			continue
		}

		module, err := parser.Make(tokens).Parse()
		if err != nil {
			reportError(err, source)
			buffer.Reset()
			continue
		}

		fmt.Print(parser.Print(module))
		buffer.Reset()
	}
}

// isInputReady checks if the buffered input forms a complete statement. It
// checks for balanced braces and whether the last meaningful token expects
// a continuation, so a half-typed `fun main() {` keeps the REPL collecting
// lines.
func isInputReady(tokens []token.Token) bool {
	braceBalance := 0
	for _, tok := range tokens {
		switch tok.TokenType {
		case token.LCUR:
			braceBalance++
		case token.RCUR:
			braceBalance--
		}
	}

	if braceBalance > 0 {
		return false
	}

	last := lastMeaningful(tokens)
	if last == nil {
		return true
	}

	if token.IsOperator(last.TokenType) {
		return false
	}

	switch last.TokenType {
	case token.ASSIGN,
		token.ARROW,
		token.COLON,
		token.COMMA,
		token.LPA,
		token.LCUR,
		token.FUN,
		token.VAR,
		token.MUT,
		token.IF,
		token.ELSE,
		token.RETURN:
		return false
	}

	return true
}

// lastMeaningful returns the last token that is neither EOF nor a newline,
// or nil when there is none.
func lastMeaningful(tokens []token.Token) *token.Token {
	for i := len(tokens) - 1; i >= 0; i-- {
		switch tokens[i].TokenType {
		case token.EOF, token.NEWLINE:
			continue
		default:
			return &tokens[i]
		}
	}
	return nil
}
