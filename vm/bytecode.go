package vm

import "evalscript/compiler"

// Bytecode is one label-resolved instruction: the same shape as
// compiler.Instruction, except jump targets are concrete stream indices
// (Addr) instead of opaque Label ids, and literal values are already
// vm.Value (regexes compiled, functions pointing at a resolved address).
type Bytecode struct {
	Op       compiler.Opcode
	Addr     int
	Int      int
	Value    Value
	Msg      string
	StdlibFn compiler.StdlibFn
	Method   compiler.Method
}

// ResolveLabels performs the two-pass label resolution spec.md describes:
// first it maps every Label to the stream index its following instruction
// will occupy (Label instructions themselves are erased and contribute no
// entry), then it translates each remaining Instruction into a Bytecode,
// resolving jump targets and compiling any embedded IrValue (including
// function literals' body labels and regex patterns).
func ResolveLabels(prog *compiler.Program[compiler.Instruction]) (*compiler.Program[Bytecode], error) {
	labelAddr := make(map[compiler.Label]int)
	addr := 0
	for _, instr := range prog.Instructions {
		if instr.Op == compiler.OpLabel {
			labelAddr[instr.Label] = addr
			continue
		}
		addr++
	}

	out := compiler.NewProgram[Bytecode]()
	for i, instr := range prog.Instructions {
		if instr.Op == compiler.OpLabel {
			continue
		}
		bc, err := translate(instr, labelAddr)
		if err != nil {
			return nil, err
		}
		out.Add(bc, prog.SourceMap[i])
	}
	return out, nil
}

func translate(instr compiler.Instruction, labelAddr map[compiler.Label]int) (Bytecode, error) {
	bc := Bytecode{Op: instr.Op, Int: instr.Int, Msg: instr.Msg, StdlibFn: instr.StdlibFn, Method: instr.Method}
	switch instr.Op {
	case compiler.OpGoto, compiler.OpIfTrue, compiler.OpIfFalse:
		target, ok := labelAddr[instr.Label]
		if !ok {
			return Bytecode{}, intErr("unresolved label %d", instr.Label)
		}
		bc.Addr = target
	case compiler.OpValue:
		v, err := ConvertIrValue(instr.Value, labelAddr)
		if err != nil {
			return Bytecode{}, err
		}
		bc.Value = v
	}
	return bc, nil
}

// ConvertIrValue lowers a compile-time IrValue into a runtime Value: lists,
// tuples, sets and maps convert element-wise; a function's body Label
// resolves to its final stream address; a regex compiles eagerly so later
// DeepClone calls never need to touch regexp.Compile again.
func ConvertIrValue(iv compiler.IrValue, labelAddr map[compiler.Label]int) (Value, error) {
	switch iv.Kind {
	case compiler.IrNull:
		return Null(), nil
	case compiler.IrUninit:
		return Uninit(), nil
	case compiler.IrBool:
		return Bool(iv.Bool), nil
	case compiler.IrInt:
		return SmallInt(iv.Int), nil
	case compiler.IrFloat:
		return FloatNum(iv.Float), nil
	case compiler.IrStr:
		return Str(iv.Str), nil
	case compiler.IrList:
		elems, err := convertIrValues(iv.Elems, labelAddr)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: VList, List: &ListObj{Elems: elems}}, nil
	case compiler.IrTuple:
		elems, err := convertIrValues(iv.Elems, labelAddr)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: VTuple, Tuple: elems}, nil
	case compiler.IrSet:
		elems, err := convertIrValues(iv.Elems, labelAddr)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: VSet, Set: &SetObj{Elems: elems}}, nil
	case compiler.IrMap:
		keys := make([]Value, len(iv.Entries))
		vals := make([]Value, len(iv.Entries))
		for i, e := range iv.Entries {
			k, err := ConvertIrValue(e.Key, labelAddr)
			if err != nil {
				return Value{}, err
			}
			v, err := ConvertIrValue(e.Value, labelAddr)
			if err != nil {
				return Value{}, err
			}
			keys[i], vals[i] = k, v
		}
		return Value{Kind: VMap, Map: &MapObj{Keys: keys, Vals: vals}}, nil
	case compiler.IrFunction_:
		addr, ok := labelAddr[iv.Func.Location]
		if !ok {
			return Value{}, intErr("unresolved function body label %d", iv.Func.Location)
		}
		return Value{Kind: VFunction, Function: &FunctionObj{
			Location:  addr,
			Arity:     iv.Func.Arity,
			Memoized:  iv.Func.Memoized,
			MemoTable: map[string]Value{},
			Pending:   map[string]bool{},
		}}, nil
	case compiler.IrRegex_:
		re, err := CompileRegex(iv.Regex.Pattern, iv.Regex.Flags)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: VRegex, Regex: re}, nil
	}
	return Value{}, intErr("unhandled IrValue kind %d", iv.Kind)
}

func convertIrValues(ivs []compiler.IrValue, labelAddr map[compiler.Label]int) ([]Value, error) {
	out := make([]Value, len(ivs))
	for i, iv := range ivs {
		v, err := ConvertIrValue(iv, labelAddr)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
