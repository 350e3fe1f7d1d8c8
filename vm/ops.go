package vm

import (
	"math/big"

	"evalscript/compiler"
)

// execBinary implements every two-operand opcode. Grounded on the original
// source's binary-op dispatch: arithmetic stays within
// Number, Add/Sub/Mul overload onto strings, lists, tuples and sets the way
// a dynamically-typed scripting language's `+`/`-`/`*` commonly do.
func execBinary(op compiler.Opcode, a, b Value) (Value, error) {
	switch op {
	case compiler.OpAdd:
		return execAdd(a, b)
	case compiler.OpSub:
		return execSub(a, b)
	case compiler.OpMul:
		return execMul(a, b)
	case compiler.OpDiv:
		return numOp(a, b, "/", NumDiv)
	case compiler.OpDivFloor:
		return numOp(a, b, "//", NumDivFloor)
	case compiler.OpMod:
		return numOp(a, b, "%", NumMod)
	case compiler.OpPow:
		return numOp(a, b, "^", NumPow)
	case compiler.OpBitwiseAnd:
		return execBitwiseAnd(a, b)
	case compiler.OpXor:
		return execXor(a, b)
	case compiler.OpEq:
		return Bool(ValueEqual(a, b)), nil
	case compiler.OpNotEq:
		return Bool(!ValueEqual(a, b)), nil
	case compiler.OpLess:
		less, err := ValueLess(a, b)
		return Bool(less), err
	case compiler.OpLessEq:
		less, err := ValueLess(b, a)
		return Bool(!less), err
	case compiler.OpGreater:
		less, err := ValueLess(b, a)
		return Bool(less), err
	case compiler.OpGreaterEq:
		less, err := ValueLess(a, b)
		return Bool(!less), err
	case compiler.OpRange:
		return execRange(a, b)
	case compiler.OpIsIn:
		return execIsIn(a, b)
	}
	return Value{}, intErr("unhandled binary opcode %d", op)
}

func execAdd(a, b Value) (Value, error) {
	switch {
	case a.Kind == VInt && b.Kind == VInt:
		return Addr(a.Int + b.Int), nil
	case a.Kind == VNum && b.Kind == VNum:
		return NumVal(NumAdd(a.Num, b.Num)), nil
	case a.Kind == VStr && b.Kind == VStr:
		return Str(a.Str + b.Str), nil
	case a.Kind == VList && b.Kind == VList:
		elems := append(append([]Value{}, a.List.Elems...), b.List.Elems...)
		return Value{Kind: VList, List: &ListObj{Elems: elems}}, nil
	case a.Kind == VTuple && b.Kind == VTuple:
		elems := append(append([]Value{}, a.Tuple...), b.Tuple...)
		return Value{Kind: VTuple, Tuple: elems}, nil
	case a.Kind == VSet && b.Kind == VSet:
		return execSetOp(a, b, true), nil
	}
	return Value{}, rtErr("unsupported operand types for +: %s and %s", a.Kind, b.Kind)
}

func execSub(a, b Value) (Value, error) {
	if a.Kind == VNum && b.Kind == VNum {
		return NumVal(NumSub(a.Num, b.Num)), nil
	}
	if a.Kind == VSet && b.Kind == VSet {
		var elems []Value
		for _, x := range a.Set.Elems {
			if !containsValue(b.Set.Elems, x) {
				elems = append(elems, x)
			}
		}
		return Value{Kind: VSet, Set: &SetObj{Elems: elems}}, nil
	}
	return Value{}, rtErr("unsupported operand types for -: %s and %s", a.Kind, b.Kind)
}

func execMul(a, b Value) (Value, error) {
	switch {
	case a.Kind == VNum && b.Kind == VNum:
		return NumVal(NumMul(a.Num, b.Num)), nil
	case a.Kind == VStr && b.Kind == VNum:
		return Str(repeatStr(a.Str, b.Num)), nil
	case a.Kind == VList && b.Kind == VNum:
		n := b.Num.AsBig().Int64()
		var elems []Value
		for i := int64(0); i < n; i++ {
			elems = append(elems, a.List.Elems...)
		}
		return Value{Kind: VList, List: &ListObj{Elems: elems}}, nil
	}
	return Value{}, rtErr("unsupported operand types for *: %s and %s", a.Kind, b.Kind)
}

func repeatStr(s string, n Number) string {
	count := n.AsBig().Int64()
	out := ""
	for i := int64(0); i < count; i++ {
		out += s
	}
	return out
}

func numOp(a, b Value, sym string, f func(Number, Number) (Number, error)) (Value, error) {
	if a.Kind != VNum || b.Kind != VNum {
		return Value{}, rtErr("unsupported operand types for %s: %s and %s", sym, a.Kind, b.Kind)
	}
	n, err := f(a.Num, b.Num)
	if err != nil {
		return Value{}, err
	}
	return NumVal(n), nil
}

func execBitwiseAnd(a, b Value) (Value, error) {
	if a.Kind == VSet && b.Kind == VSet {
		return execSetOp(a, b, false), nil
	}
	if a.Kind == VNum && b.Kind == VNum {
		return BigIntNum(new(big.Int).And(a.Num.AsBig(), b.Num.AsBig())), nil
	}
	return Value{}, rtErr("unsupported operand types for &: %s and %s", a.Kind, b.Kind)
}

func execXor(a, b Value) (Value, error) {
	if a.Kind == VSet && b.Kind == VSet {
		var elems []Value
		for _, x := range a.Set.Elems {
			if !containsValue(b.Set.Elems, x) {
				elems = append(elems, x)
			}
		}
		for _, x := range b.Set.Elems {
			if !containsValue(a.Set.Elems, x) {
				elems = append(elems, x)
			}
		}
		return Value{Kind: VSet, Set: &SetObj{Elems: elems}}, nil
	}
	if a.Kind == VNum && b.Kind == VNum {
		return BigIntNum(new(big.Int).Xor(a.Num.AsBig(), b.Num.AsBig())), nil
	}
	return Value{}, rtErr("unsupported operand types for ^^: %s and %s", a.Kind, b.Kind)
}

// execSetOp builds a set union (union=true) or intersection (union=false).
func execSetOp(a, b Value, union bool) Value {
	var elems []Value
	if union {
		elems = append(elems, a.Set.Elems...)
		for _, x := range b.Set.Elems {
			if !containsValue(elems, x) {
				elems = append(elems, x)
			}
		}
	} else {
		for _, x := range a.Set.Elems {
			if containsValue(b.Set.Elems, x) {
				elems = append(elems, x)
			}
		}
	}
	return Value{Kind: VSet, Set: &SetObj{Elems: elems}}
}

// execRange builds a range value from two optional bounds (compileRange
// pushes Null for an omitted `..5`/`5..` bound). When both bounds are known,
// Step is inferred from their relative order so a descending range (e.g.
// `5..0`) iterates 5,4,3,2,1 instead of producing zero iterations; an open
// bound defaults Step to ascending, matching how ToIter resolves an omitted
// start to 0.
func execRange(a, b Value) (Value, error) {
	start, err := rangeBound(a)
	if err != nil {
		return Value{}, err
	}
	stop, err := rangeBound(b)
	if err != nil {
		return Value{}, err
	}
	step := int64(1)
	if start != nil && stop != nil && *start > *stop {
		step = -1
	}
	return Value{Kind: VRange, Range: RangeVal{Start: start, Stop: stop, Step: step}}, nil
}

// rangeBound converts one range operand: Null means the bound was omitted
// in source, anything else must be a number.
func rangeBound(v Value) (*int64, error) {
	if v.Kind == VNull {
		return nil, nil
	}
	if v.Kind != VNum {
		return nil, rtErr("range bounds must be numbers, got %s", v.Kind)
	}
	i := v.Num.AsBig().Int64()
	return &i, nil
}

func execIsIn(a, b Value) (Value, error) {
	switch b.Kind {
	case VList:
		return Bool(containsValue(b.List.Elems, a)), nil
	case VTuple:
		return Bool(containsValue(b.Tuple, a)), nil
	case VSet:
		return Bool(containsValue(b.Set.Elems, a)), nil
	case VMap:
		return Bool(indexOfValue(b.Map.Keys, a) >= 0), nil
	case VCounter:
		return Bool(indexOfValue(b.Counter.Keys, a) >= 0), nil
	case VStr:
		if a.Kind != VStr {
			return Value{}, rtErr("'in' requires a string left operand for a string, got %s", a.Kind)
		}
		return Bool(containsSubstring(b.Str, a.Str)), nil
	}
	return Value{}, rtErr("'in' not supported on %s", b.Kind)
}

func containsSubstring(haystack, needle string) bool {
	return len(needle) == 0 || indexOfString(haystack, needle) >= 0
}

func indexOfString(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}

// ---- indexing ----

func execIndex(target, idx Value) (Value, error) {
	switch target.Kind {
	case VList:
		return indexSeq(target.List.Elems, idx, func(vs []Value) Value { return Value{Kind: VList, List: &ListObj{Elems: vs}} })
	case VTuple:
		return indexSeq(target.Tuple, idx, func(vs []Value) Value { return Value{Kind: VTuple, Tuple: vs} })
	case VStr:
		return indexStr(target.Str, idx)
	case VMap:
		i := indexOfValue(target.Map.Keys, idx)
		if i >= 0 {
			return target.Map.Vals[i], nil
		}
		if target.Map.Default != nil {
			v := DeepClone(*target.Map.Default)
			target.Map.Keys = append(target.Map.Keys, idx)
			target.Map.Vals = append(target.Map.Vals, v)
			return v, nil
		}
		return Value{}, rtErr("key %s not found", Repr(idx))
	case VCounter:
		i := indexOfValue(target.Counter.Keys, idx)
		if i >= 0 {
			return SmallInt(target.Counter.Counts[i]), nil
		}
		return SmallInt(0), nil
	}
	return Value{}, rtErr("value of type %s is not indexable", target.Kind)
}

func indexSeq(elems []Value, idx Value, wrap func([]Value) Value) (Value, error) {
	if idx.Kind == VRange {
		return wrap(sliceRange(elems, idx.Range)), nil
	}
	if idx.Kind != VNum {
		return Value{}, rtErr("index must be a number, got %s", idx.Kind)
	}
	n := int64(len(elems))
	i := idx.Num.AsBig().Int64()
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return Value{}, rtErr("index %d out of bounds (len %d)", i, n)
	}
	return elems[i], nil
}

func indexStr(s string, idx Value) (Value, error) {
	runes := []rune(s)
	n := int64(len(runes))
	if idx.Kind == VRange {
		return Str(string(sliceRunes(runes, idx.Range))), nil
	}
	if idx.Kind != VNum {
		return Value{}, rtErr("index must be a number, got %s", idx.Kind)
	}
	i := idx.Num.AsBig().Int64()
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return Value{}, rtErr("index %d out of bounds (len %d)", i, n)
	}
	return Str(string(runes[i])), nil
}

func sliceRange(elems []Value, r RangeVal) []Value {
	n := int64(len(elems))
	start, stop, step := resolveSliceBounds(r, n)
	var out []Value
	if step > 0 {
		for i := start; i < stop && i < n; i += step {
			if i >= 0 {
				out = append(out, elems[i])
			}
		}
	} else {
		for i := start; i > stop && i >= 0; i += step {
			if i < n {
				out = append(out, elems[i])
			}
		}
	}
	return out
}

func sliceRunes(runes []rune, r RangeVal) []rune {
	n := int64(len(runes))
	start, stop, step := resolveSliceBounds(r, n)
	var out []rune
	if step > 0 {
		for i := start; i < stop && i < n; i += step {
			if i >= 0 {
				out = append(out, runes[i])
			}
		}
	} else {
		for i := start; i > stop && i >= 0; i += step {
			if i < n {
				out = append(out, runes[i])
			}
		}
	}
	return out
}

// resolveSliceBounds fills in an omitted Start/Stop against the concrete
// length n of the sequence actually being sliced: an open start means "from
// the beginning" (0 ascending, n-1 descending) and an open stop means "to
// the end" (n ascending, -1 descending) — resolved here rather than at
// execRange time, since n isn't known until the range is indexed.
func resolveSliceBounds(r RangeVal, n int64) (start, stop, step int64) {
	step = r.Step
	if step == 0 {
		step = 1
	}
	if step > 0 {
		start, stop = 0, n
	} else {
		start, stop = n-1, -1
	}
	if r.Start != nil {
		start = normalizeIdx(*r.Start, n)
	}
	if r.Stop != nil {
		stop = normalizeIdx(*r.Stop, n)
	}
	return start, stop, step
}

func normalizeIdx(i, n int64) int64 {
	if i < 0 {
		return i + n
	}
	return i
}

func execSetIndex(target, idx, value Value) (Value, error) {
	switch target.Kind {
	case VList:
		if idx.Kind != VNum {
			return Value{}, rtErr("index must be a number, got %s", idx.Kind)
		}
		n := int64(len(target.List.Elems))
		i := idx.Num.AsBig().Int64()
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return Value{}, rtErr("index %d out of bounds (len %d)", i, n)
		}
		target.List.Elems[i] = value
		return value, nil
	case VMap:
		i := indexOfValue(target.Map.Keys, idx)
		if i >= 0 {
			target.Map.Vals[i] = value
		} else {
			target.Map.Keys = append(target.Map.Keys, idx)
			target.Map.Vals = append(target.Map.Vals, value)
		}
		return value, nil
	case VCounter:
		if value.Kind != VNum {
			return Value{}, rtErr("counter values must be numbers")
		}
		cnt := value.Num.AsBig().Int64()
		i := indexOfValue(target.Counter.Keys, idx)
		if i >= 0 {
			target.Counter.Counts[i] = cnt
		} else {
			target.Counter.Keys = append(target.Counter.Keys, idx)
			target.Counter.Counts = append(target.Counter.Counts, cnt)
		}
		return value, nil
	}
	return Value{}, rtErr("value of type %s does not support index assignment", target.Kind)
}
