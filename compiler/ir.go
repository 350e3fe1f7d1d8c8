// Package compiler lowers an ast.Expr into a label-addressed instruction
// program (Program[Instruction]); label resolution into concrete bytecode
// happens in package vm, which imports the types defined here (mirroring how
// the original source's vm::bytecode module depends on its compiler module).
package compiler

import "evalscript/ast"

// Label is an opaque identifier for a jump target; it is erased during
// label resolution.
type Label int

// Opcode identifies the operation an Instruction performs. Instructions
// carry only the operand fields their opcode actually uses.
type Opcode int

const (
	OpLabel Opcode = iota

	// Memory
	OpLoad
	OpStore
	OpGetBasePtr

	// Stack manipulation
	OpPop
	OpRemoveIndex
	OpSwap
	OpDup
	OpGetStackPtr
	OpSetStackPtr

	// Register manipulation
	OpSetRegister
	OpGetRegister

	// Values
	OpValue
	OpConstantInt

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpDivFloor
	OpMod
	OpPow
	OpXor
	OpBitwiseAnd
	OpNot

	// Comparison
	OpEq
	OpNotEq
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpRange
	OpIsIn

	// Control flow
	OpGoto
	OpIfTrue
	OpIfFalse
	OpStop
	OpRuntimeError

	// Functions
	OpCall
	OpReturn

	// Collections
	OpIndex
	OpSetIndex
	OpNextIter
	OpToIter
	OpCreateTuple

	// Builtins
	OpStdlibCall
	OpMethodCall
)

// Instruction is one entry in a label-addressed Program. Only the fields
// relevant to Op are populated; the rest are zero.
type Instruction struct {
	Op       Opcode
	Label    Label    // OpLabel's own id, or the jump target of OpGoto/OpIfTrue/OpIfFalse
	Int      int      // register id / argument count / constant int, depending on Op
	Value    IrValue  // OpValue
	Msg      string   // OpRuntimeError
	StdlibFn StdlibFn // OpStdlibCall
	Method   Method   // OpMethodCall
}

func LabelInstr(l Label) Instruction                 { return Instruction{Op: OpLabel, Label: l} }
func Goto(l Label) Instruction                        { return Instruction{Op: OpGoto, Label: l} }
func IfTrue(l Label) Instruction                      { return Instruction{Op: OpIfTrue, Label: l} }
func IfFalse(l Label) Instruction                     { return Instruction{Op: OpIfFalse, Label: l} }
func ValueInstr(v IrValue) Instruction                { return Instruction{Op: OpValue, Value: v} }
func ConstantInt(n int) Instruction                   { return Instruction{Op: OpConstantInt, Int: n} }
func SetRegister(r int) Instruction                   { return Instruction{Op: OpSetRegister, Int: r} }
func GetRegister(r int) Instruction                   { return Instruction{Op: OpGetRegister, Int: r} }
func Call(n int) Instruction                          { return Instruction{Op: OpCall, Int: n} }
func CreateTuple(n int) Instruction                   { return Instruction{Op: OpCreateTuple, Int: n} }
func ToSetN(n int) Instruction                        { return Instruction{Op: OpStdlibCall, StdlibFn: StdlibToSet, Int: n} }
func RuntimeErrorInstr(msg string) Instruction        { return Instruction{Op: OpRuntimeError, Msg: msg} }
func StdlibCall(fn StdlibFn, n int) Instruction       { return Instruction{Op: OpStdlibCall, StdlibFn: fn, Int: n} }
func MethodCall(m Method, n int) Instruction          { return Instruction{Op: OpMethodCall, Method: m, Int: n} }
func Simple(op Opcode) Instruction                    { return Instruction{Op: op} }

// Program is a pair of parallel slices: Instructions[i] and SourceMap[i].
// Their lengths always match.
type Program[T any] struct {
	Instructions []T
	SourceMap    []ast.Span
}

func NewProgram[T any]() *Program[T] { return &Program[T]{} }

func (p *Program[T]) Add(instr T, span ast.Span) {
	p.Instructions = append(p.Instructions, instr)
	p.SourceMap = append(p.SourceMap, span)
}

func (p *Program[T]) Append(other *Program[T]) {
	p.Instructions = append(p.Instructions, other.Instructions...)
	p.SourceMap = append(p.SourceMap, other.SourceMap...)
}

func (p *Program[T]) Len() int { return len(p.Instructions) }

// IrValue is a compile-time literal value, produced by constant folding and
// by function/regex literals. Label resolution (package vm) translates each
// IrValue into a vm.RuntimeValue, compiling regexes and allocating fresh
// collection owners at that point.
type IrValue struct {
	Kind    IrKind
	Bool    bool
	Int     int64
	Float   float64
	Str     string
	Elems   []IrValue   // List, Tuple, Set
	Entries []IrMapEntry // Map
	Func    IrFunction   // Function
	Regex   IrRegex      // Regex
}

type IrKind int

const (
	IrNull IrKind = iota
	IrUninit
	IrBool
	IrInt   // NumInt: a dynamic integer number literal
	IrFloat // NumFloat: a dynamic float number literal
	IrStr
	IrList
	IrTuple
	IrSet
	IrMap
	IrFunction_
	IrRegex_
)

type IrMapEntry struct {
	Key   IrValue
	Value IrValue
}

type IrFunction struct {
	Location Label
	Arity    int
	Memoized bool
}

type IrRegex struct {
	Pattern string
	Flags   string
}

func NullValue() IrValue          { return IrValue{Kind: IrNull} }
func UninitValue() IrValue        { return IrValue{Kind: IrUninit} }
func BoolValue(b bool) IrValue    { return IrValue{Kind: IrBool, Bool: b} }
func IntValue(i int64) IrValue    { return IrValue{Kind: IrInt, Int: i} }
func FloatValue(f float64) IrValue { return IrValue{Kind: IrFloat, Float: f} }
func StrValue(s string) IrValue   { return IrValue{Kind: IrStr, Str: s} }
func ListValue(xs []IrValue) IrValue  { return IrValue{Kind: IrList, Elems: xs} }
func TupleValue(xs []IrValue) IrValue { return IrValue{Kind: IrTuple, Elems: xs} }
func SetValue(xs []IrValue) IrValue   { return IrValue{Kind: IrSet, Elems: xs} }
func MapValue(entries []IrMapEntry) IrValue { return IrValue{Kind: IrMap, Entries: entries} }
func FunctionValue(f IrFunction) IrValue { return IrValue{Kind: IrFunction_, Func: f} }
func RegexValue(pattern, flags string) IrValue { return IrValue{Kind: IrRegex_, Regex: IrRegex{Pattern: pattern, Flags: flags}} }
