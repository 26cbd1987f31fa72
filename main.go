package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"zlang/ast"
	"zlang/lexer"
	"zlang/parser"
	"zlang/zerror"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&buildCmd{}, "")
	subcommands.Register(&nativeCmd{}, "")
	subcommands.Register(&replCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// frontend runs the shared lex + parse pipeline on a source string.
func frontend(source string) (ast.Module, error) {
	lex := lexer.New(source)
	tokens, err := lex.Scan()
	if err != nil {
		return ast.Module{}, err
	}
	return parser.Make(tokens).Parse()
}

// reportError renders a compiler diagnostic with its source context, or
// falls back to the bare message for plain errors.
func reportError(err error, source string) {
	var compileErr zerror.CompilerError
	if errors.As(err, &compileErr) {
		compileErr.Display(os.Stderr, source)
		return
	}
	fmt.Fprintln(os.Stderr, err)
}
