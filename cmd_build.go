package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"zlang/compiler"
	"zlang/parser"
)

// buildCmd compiles a Z source file to stack VM bytecode.
type buildCmd struct {
	parseOnly   bool
	dryRun      bool
	disassemble bool
	out         string
}

func (*buildCmd) Name() string { return "build" }
func (*buildCmd) Synopsis() string {
	return "Compile a Z source file to stack VM bytecode"
}
func (*buildCmd) Usage() string {
	return `z build <file>
`
}

func (cmd *buildCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.parseOnly, "parse-only", false, "Print the AST and exit without compiling.")
	f.BoolVar(&cmd.dryRun, "dry-run", false, "Run the full pipeline but do not write output.")
	f.BoolVar(&cmd.disassemble, "disassemble", false, "Print the emitted program as mnemonics.")
	f.StringVar(&cmd.out, "o", "main.o", "Path to the output file.")
	f.StringVar(&cmd.out, "out", "main.o", "Path to the output file.")
}

func (cmd *buildCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "File not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}
	source := string(data)

	module, err := frontend(source)
	if err != nil {
		reportError(err, source)
		return subcommands.ExitFailure
	}

	if cmd.parseOnly {
		fmt.Print(parser.Print(module))
		return subcommands.ExitSuccess
	}

	comp := compiler.New()
	bytes, err := comp.Compile(module)
	if err != nil {
		reportError(err, source)
		return subcommands.ExitFailure
	}

	if cmd.disassemble {
		fmt.Print(compiler.Disassemble(compiler.ProgramText(bytes), comp.Constants()))
	}

	if cmd.dryRun {
		return subcommands.ExitSuccess
	}

	if err := os.WriteFile(cmd.out, bytes, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
