package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// emitBytecodeCmd compiles a source file and writes its disassembly to
// stdout (or, with -out, to a file), without executing it.
type emitBytecodeCmd struct {
	out string
}

func (*emitBytecodeCmd) Name() string { return "emit" }
func (*emitBytecodeCmd) Synopsis() string {
	return "Emit the disassembled bytecode for a source file"
}
func (*emitBytecodeCmd) Usage() string {
	return `emit <file>:
  Compile a source file and print its disassembled bytecode.
`
}

func (cmd *emitBytecodeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.out, "out", "", "write the disassembly to this file instead of stdout")
}

func (cmd *emitBytecodeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 file not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	prog, err := compileOnly(string(data))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return subcommands.ExitFailure
	}

	text := disassemble(prog)
	if cmd.out == "" {
		fmt.Print(text)
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(cmd.out, []byte(text), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "💥 failed to write disassembly: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
