package vm

import (
	"bytes"
	"strings"
	"testing"

	"evalscript/ast"
	"evalscript/compiler"
)

func runProgram(t *testing.T, instrs []compiler.Instruction) (Value, string) {
	t.Helper()
	prog := compiler.NewProgram[compiler.Instruction]()
	for _, instr := range instrs {
		prog.Add(instr, ast.Span{})
	}
	resolved, err := ResolveLabels(prog)
	if err != nil {
		t.Fatalf("ResolveLabels: %v", err)
	}
	var out bytes.Buffer
	machine := New(&out, strings.NewReader(""))
	v, err := machine.Run(resolved)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return v, out.String()
}

func TestArithmeticAddition(t *testing.T) {
	v, _ := runProgram(t, []compiler.Instruction{
		compiler.ValueInstr(compiler.IntValue(5)),
		compiler.ValueInstr(compiler.IntValue(1)),
		compiler.Simple(compiler.OpAdd),
		compiler.Simple(compiler.OpStop),
	})
	if v.Kind != VNum || v.Num.String() != "6" {
		t.Errorf("got %v, want 6", v)
	}
}

func TestStoreLoadRoundtrip(t *testing.T) {
	v, _ := runProgram(t, []compiler.Instruction{
		compiler.ValueInstr(compiler.UninitValue()), // local 0
		compiler.ValueInstr(compiler.IntValue(42)),
		compiler.Simple(compiler.OpGetBasePtr),
		compiler.ConstantInt(0),
		compiler.Simple(compiler.OpAdd),
		compiler.Simple(compiler.OpStore),
		compiler.Simple(compiler.OpPop),
		compiler.Simple(compiler.OpGetBasePtr),
		compiler.ConstantInt(0),
		compiler.Simple(compiler.OpAdd),
		compiler.Simple(compiler.OpLoad),
		compiler.Simple(compiler.OpStop),
	})
	if v.Kind != VNum || v.Num.String() != "42" {
		t.Errorf("got %v, want 42", v)
	}
}

func TestOverflowPromotesToBigInt(t *testing.T) {
	v, _ := runProgram(t, []compiler.Instruction{
		compiler.ValueInstr(compiler.IntValue(9223372036854775807)),
		compiler.ValueInstr(compiler.IntValue(1)),
		compiler.Simple(compiler.OpAdd),
		compiler.Simple(compiler.OpStop),
	})
	if v.Num.Kind != NumBig {
		t.Fatalf("expected promotion to big int, got %v", v.Num)
	}
	if v.Num.String() != "9223372036854775808" {
		t.Errorf("got %s", v.Num.String())
	}
}

func TestFunctionCallAndReturn(t *testing.T) {
	// fn(x) = x + 1; call fn(41)
	bodyLabel := compiler.Label(1)
	endLabel := compiler.Label(2)
	v, _ := runProgram(t, []compiler.Instruction{
		compiler.ValueInstr(compiler.FunctionValue(compiler.IrFunction{Location: bodyLabel, Arity: 1})),
		compiler.Goto(endLabel),
		compiler.LabelInstr(bodyLabel),
		compiler.Simple(compiler.OpGetBasePtr),
		compiler.ConstantInt(0),
		compiler.Simple(compiler.OpAdd),
		compiler.Simple(compiler.OpLoad),
		compiler.ValueInstr(compiler.IntValue(1)),
		compiler.Simple(compiler.OpAdd),
		compiler.Simple(compiler.OpReturn),
		compiler.LabelInstr(endLabel),
		compiler.ValueInstr(compiler.IntValue(41)),
		compiler.Call(1),
		compiler.Simple(compiler.OpStop),
	})
	if v.Kind != VNum || v.Num.String() != "42" {
		t.Errorf("got %v, want 42", v)
	}
}

func TestMemoizedFunctionCachesResult(t *testing.T) {
	bodyLabel := compiler.Label(1)
	endLabel := compiler.Label(2)
	prog := compiler.NewProgram[compiler.Instruction]()
	instrs := []compiler.Instruction{
		compiler.ValueInstr(compiler.FunctionValue(compiler.IrFunction{Location: bodyLabel, Arity: 1, Memoized: true})),
		compiler.Goto(endLabel),
		compiler.LabelInstr(bodyLabel),
		compiler.Simple(compiler.OpGetBasePtr),
		compiler.ConstantInt(0),
		compiler.Simple(compiler.OpAdd),
		compiler.Simple(compiler.OpLoad),
		compiler.Simple(compiler.OpReturn),
		compiler.LabelInstr(endLabel),
		// call twice with the same argument
		compiler.Simple(compiler.OpDup),
		compiler.ValueInstr(compiler.IntValue(7)),
		compiler.Call(1),
		compiler.Simple(compiler.OpSwap),
		compiler.ValueInstr(compiler.IntValue(7)),
		compiler.Call(1),
		compiler.Simple(compiler.OpAdd),
		compiler.Simple(compiler.OpStop),
	}
	for _, instr := range instrs {
		prog.Add(instr, ast.Span{})
	}
	resolved, err := ResolveLabels(prog)
	if err != nil {
		t.Fatalf("ResolveLabels: %v", err)
	}
	var out bytes.Buffer
	machine := New(&out, strings.NewReader(""))
	v, err := machine.Run(resolved)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.Kind != VNum || v.Num.String() != "14" {
		t.Errorf("got %v, want 14", v)
	}
}

func TestPrintWritesToStdout(t *testing.T) {
	_, out := runProgram(t, []compiler.Instruction{
		compiler.ValueInstr(compiler.StrValue("hello")),
		compiler.StdlibCall(compiler.StdlibPrint, 1),
		compiler.Simple(compiler.OpStop),
	})
	if out != "hello\n" {
		t.Errorf("got %q", out)
	}
}

func TestIndexListOutOfBounds(t *testing.T) {
	list := compiler.ListValue([]compiler.IrValue{compiler.IntValue(1), compiler.IntValue(2)})
	prog := compiler.NewProgram[compiler.Instruction]()
	for _, instr := range []compiler.Instruction{
		compiler.ValueInstr(list),
		compiler.ValueInstr(compiler.IntValue(5)),
		compiler.Simple(compiler.OpIndex),
		compiler.Simple(compiler.OpStop),
	} {
		prog.Add(instr, ast.Span{})
	}
	resolved, err := ResolveLabels(prog)
	if err != nil {
		t.Fatalf("ResolveLabels: %v", err)
	}
	machine := New(&bytes.Buffer{}, strings.NewReader(""))
	_, err = machine.Run(resolved)
	if err == nil {
		t.Fatal("expected an out-of-bounds RuntimeError")
	}
	if _, ok := err.(RuntimeError); !ok {
		t.Errorf("expected RuntimeError, got %T", err)
	}
}

func TestNegativeIndexWrapsFromEnd(t *testing.T) {
	list := compiler.ListValue([]compiler.IrValue{compiler.IntValue(1), compiler.IntValue(2), compiler.IntValue(3)})
	v, _ := runProgram(t, []compiler.Instruction{
		compiler.ValueInstr(list),
		compiler.ValueInstr(compiler.IntValue(-1)),
		compiler.Simple(compiler.OpIndex),
		compiler.Simple(compiler.OpStop),
	})
	if v.Kind != VNum || v.Num.String() != "3" {
		t.Errorf("got %v, want 3", v)
	}
}
