package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"

	"evalscript/vm"
)

// replCmd starts an interactive session: each line is lexed, parsed,
// compiled and run as its own independent program, and its value printed.
// Variables and memoized functions do not persist across lines — each line
// is a fresh program, the simplest faithful reading of an expression-
// oriented language with no statement-level REPL binding in spec.md.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive REPL session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive REPL session.
`
}
func (r *replCmd) SetFlags(f *flag.FlagSet) {}

func replLoop(in io.Reader, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      ">>> ",
		HistoryFile: os.TempDir() + "/evalscript_history",
		Stdin:       io.NopCloser(in),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return nil
		}
		if strings.TrimSpace(line) == "exit" {
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		result, err := run(line, in, out)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			continue
		}
		if result.Kind != vm.VNull {
			fmt.Fprintln(out, vm.Repr(result))
		}
	}
}

func (r *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Fprintln(os.Stdout, "\nWelcome to evalscript!")
	if err := replLoop(os.Stdin, os.Stdout); err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintln(os.Stderr, err.Error())
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
