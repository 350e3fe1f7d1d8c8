package main

import (
	"fmt"
	"io"

	"evalscript/compiler"
	"evalscript/lexer"
	"evalscript/parser"
	"evalscript/vm"
)

// run lexes, parses, compiles and executes source, writing print() output to
// stdout and reading input() lines from stdin. It returns the program's
// final value, or the first error any pipeline stage produced.
func run(source string, stdin io.Reader, stdout io.Writer) (vm.Value, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return vm.Value{}, err
	}

	tree, err := parser.Parse(tokens)
	if err != nil {
		return vm.Value{}, err
	}

	prog, err := compiler.Compile(tree)
	if err != nil {
		return vm.Value{}, err
	}

	bytecode, err := vm.ResolveLabels(prog)
	if err != nil {
		return vm.Value{}, err
	}

	machine := vm.New(stdout, stdin)
	return machine.Run(bytecode)
}

// compileOnly runs the lex/parse/compile/resolve pipeline without executing
// the result, for the `emit` command's disassembly.
func compileOnly(source string) (*compiler.Program[vm.Bytecode], error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	tree, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	prog, err := compiler.Compile(tree)
	if err != nil {
		return nil, err
	}
	return vm.ResolveLabels(prog)
}

// disassemble renders a resolved bytecode program as one line per
// instruction, address-prefixed, for the `emit` command.
func disassemble(prog *compiler.Program[vm.Bytecode]) string {
	out := ""
	for i, bc := range prog.Instructions {
		out += fmt.Sprintf("%04d  %s\n", i, describeOp(bc))
	}
	return out
}

func describeOp(bc vm.Bytecode) string {
	switch bc.Op {
	case compiler.OpGoto, compiler.OpIfTrue, compiler.OpIfFalse:
		return fmt.Sprintf("%-14s -> %d", opName(bc.Op), bc.Addr)
	case compiler.OpValue:
		return fmt.Sprintf("%-14s %s", opName(bc.Op), vm.Repr(bc.Value))
	case compiler.OpConstantInt, compiler.OpSetRegister, compiler.OpGetRegister,
		compiler.OpCall, compiler.OpCreateTuple:
		return fmt.Sprintf("%-14s %d", opName(bc.Op), bc.Int)
	case compiler.OpRuntimeError:
		return fmt.Sprintf("%-14s %q", opName(bc.Op), bc.Msg)
	case compiler.OpStdlibCall:
		return fmt.Sprintf("%-14s fn=%d argc=%d", opName(bc.Op), bc.StdlibFn, bc.Int)
	case compiler.OpMethodCall:
		return fmt.Sprintf("%-14s m=%d argc=%d", opName(bc.Op), bc.Method, bc.Int)
	}
	return opName(bc.Op)
}

func opName(op compiler.Opcode) string {
	names := map[compiler.Opcode]string{
		compiler.OpLoad: "Load", compiler.OpStore: "Store", compiler.OpGetBasePtr: "GetBasePtr",
		compiler.OpPop: "Pop", compiler.OpRemoveIndex: "RemoveIndex", compiler.OpSwap: "Swap",
		compiler.OpDup: "Dup", compiler.OpGetStackPtr: "GetStackPtr", compiler.OpSetStackPtr: "SetStackPtr",
		compiler.OpSetRegister: "SetRegister", compiler.OpGetRegister: "GetRegister",
		compiler.OpValue: "Value", compiler.OpConstantInt: "ConstantInt",
		compiler.OpAdd: "Add", compiler.OpSub: "Sub", compiler.OpMul: "Mul", compiler.OpDiv: "Div",
		compiler.OpDivFloor: "DivFloor", compiler.OpMod: "Mod", compiler.OpPow: "Pow",
		compiler.OpXor: "Xor", compiler.OpBitwiseAnd: "BitwiseAnd", compiler.OpNot: "Not",
		compiler.OpEq: "Eq", compiler.OpNotEq: "NotEq", compiler.OpLess: "Less", compiler.OpLessEq: "LessEq",
		compiler.OpGreater: "Greater", compiler.OpGreaterEq: "GreaterEq", compiler.OpRange: "Range",
		compiler.OpIsIn: "IsIn", compiler.OpGoto: "Goto", compiler.OpIfTrue: "IfTrue",
		compiler.OpIfFalse: "IfFalse", compiler.OpStop: "Stop", compiler.OpRuntimeError: "RuntimeError",
		compiler.OpCall: "Call", compiler.OpReturn: "Return", compiler.OpIndex: "Index",
		compiler.OpSetIndex: "SetIndex", compiler.OpNextIter: "NextIter", compiler.OpToIter: "ToIter",
		compiler.OpCreateTuple: "CreateTuple", compiler.OpStdlibCall: "StdlibCall", compiler.OpMethodCall: "MethodCall",
	}
	if n, ok := names[op]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", op)
}
