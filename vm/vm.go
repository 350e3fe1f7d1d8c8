// Package vm executes label-resolved bytecode (see bytecode.go) against a
// flat value stack, the way informatter-nilan's own vm package walked its
// byte-encoded instruction stream — generalized here to a struct-slice
// program and a tagged-union Value instead of raw bytes and `any`.
package vm

import (
	"bufio"
	"io"

	"evalscript/compiler"
)

// registerCount bounds the scalar register file OpSetRegister/OpGetRegister
// address; grounded on compiler.RegisterManager's default pool size.
const registerCount = 64

// callFrame is pushed by execCall and popped by execReturn: enough state to
// resume the caller, plus (for a memoized function) where to file the
// result once the callee returns.
type callFrame struct {
	returnPC int
	savedBP  int64
	isMemo   bool
	memoFn   *FunctionObj
	memoKey  string
}

// VM holds the entire mutable state of one program execution: the operand
// stack, the base/program counters, a bounded register file, and the call
// stack that Call/Return thread frames through.
type VM struct {
	stack     Stack
	registers []Value
	bp        int64
	pc        int
	callStack []callFrame
	instrs    []Bytecode

	stdout io.Writer
	stdin  *bufio.Reader
}

// New builds a VM wired to the given I/O streams (print() writes to stdout,
// input() reads a line from stdin), mirroring how nilan's interpreter took
// an explicit io.Writer instead of writing to os.Stdout directly.
func New(stdout io.Writer, stdin io.Reader) *VM {
	return &VM{
		registers: make([]Value, registerCount),
		stdout:    stdout,
		stdin:     bufio.NewReader(stdin),
	}
}

// Run executes prog from its first instruction and returns the value left
// on top of the stack by the terminating OpStop (an expression-oriented
// program's overall result).
func (vm *VM) Run(prog *compiler.Program[Bytecode]) (Value, error) {
	vm.instrs = prog.Instructions
	vm.pc = 0
	for {
		if vm.pc < 0 || vm.pc >= len(vm.instrs) {
			return Value{}, intErr("program counter %d out of bounds (len %d)", vm.pc, len(vm.instrs))
		}
		bc := vm.instrs[vm.pc]
		if bc.Op == compiler.OpStop {
			v, ok := vm.stack.Peek()
			if !ok {
				return Null(), nil
			}
			return v, nil
		}
		if err := vm.step(bc); err != nil {
			return Value{}, err
		}
	}
}

// step executes a single non-Stop instruction, advancing pc (or jumping, for
// control-flow ops) as a side effect. Shared between the top-level Run loop
// and callValue's re-entrant call, so a stdlib method (e.g. sort()'s key
// function) can drive a nested function call to completion using the exact
// same dispatch as ordinary program execution.
func (vm *VM) step(bc Bytecode) error {
	switch bc.Op {
	case compiler.OpValue:
		vm.stack.Push(DeepClone(bc.Value))
		vm.pc++
	case compiler.OpConstantInt:
		vm.stack.Push(Addr(int64(bc.Int)))
		vm.pc++
	case compiler.OpGetBasePtr:
		vm.stack.Push(Addr(vm.bp))
		vm.pc++

	case compiler.OpPop:
		if _, ok := vm.stack.Pop(); !ok {
			return intErr("stack underflow on Pop")
		}
		vm.pc++
	case compiler.OpSwap:
		if !vm.stack.Swap() {
			return intErr("stack underflow on Swap")
		}
		vm.pc++
	case compiler.OpDup:
		if !vm.stack.Dup() {
			return intErr("stack underflow on Dup")
		}
		vm.pc++
	case compiler.OpRemoveIndex:
		addrV, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on RemoveIndex")
		}
		if _, ok := vm.stack.RemoveIndex(addrV.Int); !ok {
			return intErr("RemoveIndex: invalid address %d", addrV.Int)
		}
		vm.pc++
	case compiler.OpGetStackPtr:
		vm.stack.Push(Addr(vm.stack.Ptr()))
		vm.pc++
	case compiler.OpSetStackPtr:
		addrV, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on SetStackPtr")
		}
		if addrV.Int+1 < 0 || int(addrV.Int+1) > len(vm.stack) {
			return intErr("SetStackPtr: invalid address %d", addrV.Int)
		}
		vm.stack.Truncate(addrV.Int + 1)
		vm.pc++

	case compiler.OpSetRegister:
		v, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on SetRegister")
		}
		if bc.Int < 0 || bc.Int >= len(vm.registers) {
			return intErr("register %d out of range", bc.Int)
		}
		vm.registers[bc.Int] = v
		vm.pc++
	case compiler.OpGetRegister:
		if bc.Int < 0 || bc.Int >= len(vm.registers) {
			return intErr("register %d out of range", bc.Int)
		}
		vm.stack.Push(vm.registers[bc.Int])
		vm.pc++

	case compiler.OpLoad:
		addrV, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on Load")
		}
		if addrV.Int < 0 || int(addrV.Int) >= len(vm.stack) {
			return intErr("Load: invalid address %d", addrV.Int)
		}
		vm.stack.Push(vm.stack[addrV.Int])
		vm.pc++
	case compiler.OpStore:
		addrV, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on Store (address)")
		}
		val, ok := vm.stack.Peek()
		if !ok {
			return intErr("stack underflow on Store (value)")
		}
		if addrV.Int < 0 || int(addrV.Int) >= len(vm.stack) {
			return intErr("Store: invalid address %d", addrV.Int)
		}
		vm.stack[addrV.Int] = val
		vm.pc++

	case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv, compiler.OpDivFloor,
		compiler.OpMod, compiler.OpPow, compiler.OpXor, compiler.OpBitwiseAnd,
		compiler.OpEq, compiler.OpNotEq, compiler.OpLess, compiler.OpLessEq,
		compiler.OpGreater, compiler.OpGreaterEq, compiler.OpRange, compiler.OpIsIn:
		b, ok1 := vm.stack.Pop()
		a, ok2 := vm.stack.Pop()
		if !ok1 || !ok2 {
			return intErr("stack underflow on binary op")
		}
		res, err := execBinary(bc.Op, a, b)
		if err != nil {
			return err
		}
		vm.stack.Push(res)
		vm.pc++
	case compiler.OpNot:
		a, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on Not")
		}
		vm.stack.Push(Bool(!a.Truthy()))
		vm.pc++

	case compiler.OpGoto:
		vm.pc = bc.Addr
	case compiler.OpIfTrue:
		v, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on IfTrue")
		}
		if v.Truthy() {
			vm.pc = bc.Addr
		} else {
			vm.pc++
		}
	case compiler.OpIfFalse:
		v, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on IfFalse")
		}
		if !v.Truthy() {
			vm.pc = bc.Addr
		} else {
			vm.pc++
		}
	case compiler.OpRuntimeError:
		return rtErr("%s", bc.Msg)

	case compiler.OpIndex:
		idx, ok1 := vm.stack.Pop()
		target, ok2 := vm.stack.Pop()
		if !ok1 || !ok2 {
			return intErr("stack underflow on Index")
		}
		res, err := execIndex(target, idx)
		if err != nil {
			return err
		}
		vm.stack.Push(res)
		vm.pc++
	case compiler.OpSetIndex:
		idx, ok1 := vm.stack.Pop()
		target, ok2 := vm.stack.Pop()
		value, ok3 := vm.stack.Pop()
		if !ok1 || !ok2 || !ok3 {
			return intErr("stack underflow on SetIndex")
		}
		res, err := execSetIndex(target, idx, value)
		if err != nil {
			return err
		}
		vm.stack.Push(res)
		vm.pc++

	case compiler.OpToIter:
		v, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on ToIter")
		}
		it, err := ToIter(v)
		if err != nil {
			return err
		}
		vm.stack.Push(Value{Kind: VIterator, Iterator: it})
		vm.pc++
	case compiler.OpNextIter:
		v, ok := vm.stack.Pop()
		if !ok {
			return intErr("stack underflow on NextIter")
		}
		if v.Kind != VIterator {
			return intErr("NextIter expects an iterator, got %s", v.Kind)
		}
		item, more := NextIter(v.Iterator)
		if more {
			vm.stack.Push(item)
		}
		vm.stack.Push(Bool(more))
		vm.pc++

	case compiler.OpCreateTuple:
		n := bc.Int
		if len(vm.stack) < n {
			return intErr("stack underflow on CreateTuple")
		}
		elems := make([]Value, n)
		copy(elems, vm.stack[len(vm.stack)-n:])
		vm.stack.Truncate(int64(len(vm.stack) - n))
		vm.stack.Push(Value{Kind: VTuple, Tuple: elems})
		vm.pc++

	case compiler.OpCall:
		if err := vm.execCall(bc.Int); err != nil {
			return err
		}
	case compiler.OpReturn:
		if err := vm.execReturn(); err != nil {
			return err
		}

	case compiler.OpStdlibCall:
		if err := vm.execStdlibCall(bc.StdlibFn, bc.Int); err != nil {
			return err
		}
		vm.pc++
	case compiler.OpMethodCall:
		if err := vm.execMethodCall(bc.Method, bc.Int); err != nil {
			return err
		}
		vm.pc++

	default:
		return intErr("unhandled opcode %d", bc.Op)
	}
	return nil
}

// popN pops the top n stack values and returns them in their original
// (bottom-to-top, i.e. push order) arrangement.
func (vm *VM) popN(n int) ([]Value, error) {
	if len(vm.stack) < n {
		return nil, intErr("stack underflow popping %d value(s)", n)
	}
	out := make([]Value, n)
	copy(out, vm.stack[len(vm.stack)-n:])
	vm.stack.Truncate(int64(len(vm.stack) - n))
	return out, nil
}

// execCall pops a callee function and its argc arguments off the stack and
// either serves a memoized result immediately or sets up a new frame: bp
// moves to where the first argument now sits (the callee's own body
// addresses locals relative to that), a frame records how to resume the
// caller, and pc jumps to the function's body.
func (vm *VM) execCall(argc int) error {
	if len(vm.stack) < argc+1 {
		return intErr("stack underflow on Call")
	}
	calleeIdx := len(vm.stack) - argc - 1
	callee := vm.stack[calleeIdx]
	if callee.Kind != VFunction {
		return rtErr("value of type %s is not callable", callee.Kind)
	}
	fn := callee.Function
	if argc != fn.Arity {
		return rtErr("function expects %d argument(s), got %d", fn.Arity, argc)
	}

	if fn.Memoized {
		args := make([]Value, argc)
		copy(args, vm.stack[calleeIdx+1:])
		key := memoKey(args)
		if v, ok := fn.MemoTable[key]; ok {
			vm.stack.Truncate(int64(calleeIdx))
			vm.stack.Push(v)
			vm.pc++
			return nil
		}
		vm.callStack = append(vm.callStack, callFrame{
			returnPC: vm.pc + 1, savedBP: vm.bp,
			isMemo: true, memoFn: fn, memoKey: key,
		})
	} else {
		vm.callStack = append(vm.callStack, callFrame{returnPC: vm.pc + 1, savedBP: vm.bp})
	}

	if _, ok := vm.stack.RemoveIndex(int64(calleeIdx)); !ok {
		return intErr("Call: failed to remove callee at %d", calleeIdx)
	}
	vm.bp = int64(calleeIdx)
	vm.pc = fn.Location
	return nil
}

// execReturn pops the returned value, discards everything the callee's
// frame accumulated (args and locals, from bp up), restores the caller's bp
// and pc, pushes the return value back, and files it in the memo table if
// the just-finished call was memoized.
func (vm *VM) execReturn() error {
	retval, ok := vm.stack.Pop()
	if !ok {
		return intErr("stack underflow on Return")
	}
	if len(vm.callStack) == 0 {
		return intErr("Return with no active call frame")
	}
	frame := vm.callStack[len(vm.callStack)-1]
	vm.callStack = vm.callStack[:len(vm.callStack)-1]

	vm.stack.Truncate(vm.bp)
	vm.bp = frame.savedBP
	vm.pc = frame.returnPC
	vm.stack.Push(retval)

	if frame.isMemo {
		frame.memoFn.MemoTable[frame.memoKey] = retval
		delete(frame.memoFn.Pending, frame.memoKey)
	}
	return nil
}

func memoKey(args []Value) string {
	return Repr(Value{Kind: VTuple, Tuple: args})
}

// callValue re-enters the VM to run a function to completion from inside a
// stdlib method implementation (currently: sort()'s key-function argument),
// mirroring the original source's `sort_by_key(vm, func.as_ref())` calling
// back into its own interpreter rather than evaluating the key function in
// some separate, detached environment. It pushes fn and args, drives
// execCall exactly as OpCall does, then keeps stepping the shared
// instruction stream until the call stack has unwound back past the new
// frame (or, for a memoized hit, not grown at all), and returns the value
// execReturn left on top of the stack.
func (vm *VM) callValue(fn Value, args []Value) (Value, error) {
	if fn.Kind != VFunction {
		return Value{}, rtErr("value of type %s is not callable", fn.Kind)
	}
	depth := len(vm.callStack)
	callerPC := vm.pc
	defer func() { vm.pc = callerPC }()
	vm.stack.Push(fn)
	for _, a := range args {
		vm.stack.Push(a)
	}
	if err := vm.execCall(len(args)); err != nil {
		return Value{}, err
	}
	for len(vm.callStack) > depth {
		if vm.pc < 0 || vm.pc >= len(vm.instrs) {
			return Value{}, intErr("program counter %d out of bounds (len %d) in re-entrant call", vm.pc, len(vm.instrs))
		}
		bc := vm.instrs[vm.pc]
		if bc.Op == compiler.OpStop {
			return Value{}, intErr("unexpected Stop while re-entering the VM for a call")
		}
		if err := vm.step(bc); err != nil {
			return Value{}, err
		}
	}
	v, ok := vm.stack.Pop()
	if !ok {
		return Value{}, intErr("stack underflow after re-entrant call")
	}
	return v, nil
}
