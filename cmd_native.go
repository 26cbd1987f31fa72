package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"zlang/asm"
	"zlang/parser"
)

// nativeCmd compiles a Z source file to NASM x86-64 assembly source.
// Assembling and linking the result (nasm, ld) happens outside the
// compiler.
type nativeCmd struct {
	parseOnly bool
	dryRun    bool
	out       string
	asmPath   string
}

func (*nativeCmd) Name() string { return "native" }
func (*nativeCmd) Synopsis() string {
	return "Compile a Z source file to x86-64 NASM assembly"
}
func (*nativeCmd) Usage() string {
	return `z native <file>
`
}

func (cmd *nativeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&cmd.parseOnly, "parse-only", false, "Print the AST and exit without compiling.")
	f.BoolVar(&cmd.dryRun, "dry-run", false, "Run the full pipeline but do not write output.")
	f.StringVar(&cmd.out, "o", "main.o", "Path for the object file handed to the assembler.")
	f.StringVar(&cmd.out, "out", "main.o", "Path for the object file handed to the assembler.")
	f.StringVar(&cmd.asmPath, "asm", "", "Path for the intermediate NASM source; empty means out.asm.")
}

func (cmd *nativeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	output, err := asm.New().Compile(module)
	if err != nil {
		reportError(err, source)
		return subcommands.ExitFailure
	}

	if cmd.dryRun {
		return subcommands.ExitSuccess
	}

	asmPath := cmd.asmPath
	if asmPath == "" {
		asmPath = "out.asm"
	}
	if err := output.WriteToFile(asmPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
