package vm

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"evalscript/compiler"
)

// execStdlibCall implements every free-function builtin (spec.md §4.2 plus
// the supplemented `mod_inv`/`manhattan` pair described in SPEC_FULL.md
// §12.3; `rot`/`binary` are receiver methods, not free functions — see
// execMethodCall). argc is the bytecode operand: for the variadic-wrapped
// functions (product, sum, all, any, max, min) the compiler always emits 1
// regardless of surface arg count, since multi-arg calls are packed into a
// tuple before the call; `set` and `print` pass argc straight through.
func (vm *VM) execStdlibCall(fn compiler.StdlibFn, argc int) error {
	switch fn {
	case compiler.StdlibPrint:
		args, err := vm.popN(argc)
		if err != nil {
			return err
		}
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = DisplayString(a)
		}
		fmt.Fprintln(vm.stdout, strings.Join(parts, " "))
		vm.stack.Push(Null())
	case compiler.StdlibInput:
		line, _ := vm.stdin.ReadString('\n')
		vm.stack.Push(Str(strings.TrimRight(line, "\r\n")))
	case compiler.StdlibParseInt:
		args, err := vm.popN(1)
		if err != nil {
			return err
		}
		if args[0].Kind != VStr {
			return rtErr("int() expects a string, got %s", args[0].Kind)
		}
		n, perr := strconv.ParseInt(strings.TrimSpace(args[0].Str), 10, 64)
		if perr != nil {
			return rtErr("invalid integer literal: %q", args[0].Str)
		}
		vm.stack.Push(SmallInt(n))
	case compiler.StdlibToList:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		vm.stack.Push(Value{Kind: VList, List: &ListObj{Elems: elems}})
	case compiler.StdlibToTuple:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		vm.stack.Push(Value{Kind: VTuple, Tuple: elems})
	case compiler.StdlibToMap:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		var keys, vals []Value
		for _, e := range elems {
			if e.Kind != VTuple || len(e.Tuple) != 2 {
				return rtErr("map() expects an iterable of (key, value) pairs")
			}
			keys = append(keys, e.Tuple[0])
			vals = append(vals, e.Tuple[1])
		}
		vm.stack.Push(Value{Kind: VMap, Map: &MapObj{Keys: keys, Vals: vals}})
	case compiler.StdlibMapWithDefault:
		args, err := vm.popN(1)
		if err != nil {
			return err
		}
		def := args[0]
		vm.stack.Push(Value{Kind: VMap, Map: &MapObj{Default: &def}})
	case compiler.StdlibToSet:
		args, err := vm.popN(argc)
		if err != nil {
			return err
		}
		var elems []Value
		for _, a := range args {
			if !containsValue(elems, a) {
				elems = append(elems, a)
			}
		}
		vm.stack.Push(Value{Kind: VSet, Set: &SetObj{Elems: elems}})
	case compiler.StdlibToCounter:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		c := &CounterObj{}
		for _, v := range elems {
			i := indexOfValue(c.Keys, v)
			if i >= 0 {
				c.Counts[i]++
			} else {
				c.Keys = append(c.Keys, v)
				c.Counts = append(c.Counts, 1)
			}
		}
		vm.stack.Push(Value{Kind: VCounter, Counter: c})
	case compiler.StdlibRepr:
		args, err := vm.popN(1)
		if err != nil {
			return err
		}
		vm.stack.Push(Str(Repr(args[0])))
	case compiler.StdlibProduct:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		acc := Number{Kind: NumSmall, Small: 1}
		for _, v := range elems {
			if v.Kind != VNum {
				return rtErr("product() expects numbers, got %s", v.Kind)
			}
			acc = NumMul(acc, v.Num)
		}
		vm.stack.Push(NumVal(acc))
	case compiler.StdlibSum:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		acc := Number{Kind: NumSmall, Small: 0}
		for _, v := range elems {
			if v.Kind != VNum {
				return rtErr("sum() expects numbers, got %s", v.Kind)
			}
			acc = NumAdd(acc, v.Num)
		}
		vm.stack.Push(NumVal(acc))
	case compiler.StdlibAll:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		res := true
		for _, v := range elems {
			if !v.Truthy() {
				res = false
				break
			}
		}
		vm.stack.Push(Bool(res))
	case compiler.StdlibAny:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		res := false
		for _, v := range elems {
			if v.Truthy() {
				res = true
				break
			}
		}
		vm.stack.Push(Bool(res))
	case compiler.StdlibMax:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		best, ok, err := extreme(elems, false)
		if err != nil {
			return err
		}
		if !ok {
			return rtErr("max() of an empty sequence")
		}
		vm.stack.Push(best)
	case compiler.StdlibMin:
		elems, err := vm.drainIterable(1)
		if err != nil {
			return err
		}
		best, ok, err := extreme(elems, true)
		if err != nil {
			return err
		}
		if !ok {
			return rtErr("min() of an empty sequence")
		}
		vm.stack.Push(best)
	case compiler.StdlibModInv:
		args, err := vm.popN(2)
		if err != nil {
			return err
		}
		a, m := args[0], args[1]
		if a.Kind != VNum || m.Kind != VNum {
			return rtErr("mod_inv() expects numbers")
		}
		inv := new(big.Int).ModInverse(a.Num.AsBig(), m.Num.AsBig())
		if inv == nil {
			return rtErr("no modular inverse of %s modulo %s exists", a.Num.String(), m.Num.String())
		}
		vm.stack.Push(BigIntNum(inv))
	case compiler.StdlibManhattan:
		args, err := vm.popN(2)
		if err != nil {
			return err
		}
		d, derr := manhattanDistance(args[0], args[1])
		if derr != nil {
			return derr
		}
		vm.stack.Push(SmallInt(d))
	default:
		return intErr("unhandled stdlib function %d", fn)
	}
	return nil
}

// drainIterable pops n values (n is almost always 1, the single already-
// packed argument every variadic-wrapped stdlib call reduces to), converts
// the last one to an iterator and collects every item it yields.
func (vm *VM) drainIterable(n int) ([]Value, error) {
	args, err := vm.popN(n)
	if err != nil {
		return nil, err
	}
	it, ierr := ToIter(args[len(args)-1])
	if ierr != nil {
		return nil, ierr
	}
	var elems []Value
	for {
		v, more := NextIter(it)
		if !more {
			break
		}
		elems = append(elems, v)
	}
	return elems, nil
}

func extreme(elems []Value, wantMin bool) (Value, bool, error) {
	var best Value
	has := false
	for _, v := range elems {
		if !has {
			best, has = v, true
			continue
		}
		less, err := ValueLess(v, best)
		if err != nil {
			return Value{}, false, err
		}
		if less == wantMin {
			best = v
		}
	}
	return best, has, nil
}

// execRot implements the supplemented `rot` builtin: a 90° turn
// `(x, y) -> (-y, x)` of a 2-tuple of numbers, a Caesar/ROT13-style cipher
// on strings, and a left rotation by one position on lists (SPEC_FULL.md
// §12.3).
func execRot(v Value) (Value, error) {
	switch v.Kind {
	case VTuple:
		if len(v.Tuple) != 2 || v.Tuple[0].Kind != VNum || v.Tuple[1].Kind != VNum {
			return Value{}, rtErr("rot() expects a 2-tuple of numbers")
		}
		negY := NumSub(Number{Kind: NumSmall}, v.Tuple[1].Num)
		return Value{Kind: VTuple, Tuple: []Value{NumVal(negY), v.Tuple[0]}}, nil
	case VStr:
		var b strings.Builder
		for _, r := range v.Str {
			b.WriteRune(rot13(r))
		}
		return Str(b.String()), nil
	case VList:
		if len(v.List.Elems) == 0 {
			return v, nil
		}
		rotated := append(append([]Value{}, v.List.Elems[1:]...), v.List.Elems[0])
		return Value{Kind: VList, List: &ListObj{Elems: rotated}}, nil
	}
	return Value{}, rtErr("rot() not supported on %s", v.Kind)
}

func rot13(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z':
		return 'a' + (r-'a'+13)%26
	case r >= 'A' && r <= 'Z':
		return 'A' + (r-'A'+13)%26
	}
	return r
}

func manhattanDistance(a, b Value) (int64, error) {
	as, aerr := numSeq(a)
	if aerr != nil {
		return 0, aerr
	}
	bs, berr := numSeq(b)
	if berr != nil {
		return 0, berr
	}
	if len(as) != len(bs) {
		return 0, rtErr("manhattan() expects equal-length coordinates, got %d and %d", len(as), len(bs))
	}
	var total int64
	for i := range as {
		d := as[i] - bs[i]
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total, nil
}

func numSeq(v Value) ([]int64, error) {
	var elems []Value
	switch v.Kind {
	case VList:
		elems = v.List.Elems
	case VTuple:
		elems = v.Tuple
	default:
		return nil, rtErr("manhattan() expects list or tuple coordinates, got %s", v.Kind)
	}
	out := make([]int64, len(elems))
	for i, e := range elems {
		if e.Kind != VNum {
			return nil, rtErr("manhattan() coordinates must be numbers")
		}
		out[i] = e.Num.AsBig().Int64()
	}
	return out, nil
}

// execMethodCall implements every receiver method (spec.md §4.2's
// "Methods"). The stack holds the receiver followed by its arguments, in
// that order, pushed left to right.
func (vm *VM) execMethodCall(m compiler.Method, argc int) error {
	vals, err := vm.popN(argc + 1)
	if err != nil {
		return err
	}
	receiver, args := vals[0], vals[1:]

	switch m {
	case compiler.MethodAppend:
		if receiver.Kind != VList {
			return rtErr("append() expects a list receiver, got %s", receiver.Kind)
		}
		receiver.List.Elems = append(receiver.List.Elems, args[0])
		vm.stack.Push(receiver)
	case compiler.MethodToUpperCase:
		if receiver.Kind != VStr {
			return rtErr("to_upper() expects a string receiver, got %s", receiver.Kind)
		}
		vm.stack.Push(Str(strings.ToUpper(receiver.Str)))
	case compiler.MethodToLowerCase:
		if receiver.Kind != VStr {
			return rtErr("to_lower() expects a string receiver, got %s", receiver.Kind)
		}
		vm.stack.Push(Str(strings.ToLower(receiver.Str)))
	case compiler.MethodSplit:
		if receiver.Kind != VStr {
			return rtErr("split() expects a string receiver, got %s", receiver.Kind)
		}
		var parts []string
		if len(args) == 0 {
			parts = strings.Fields(receiver.Str)
		} else {
			if args[0].Kind != VStr {
				return rtErr("split() separator must be a string")
			}
			parts = strings.Split(receiver.Str, args[0].Str)
		}
		vm.stack.Push(Value{Kind: VList, List: &ListObj{Elems: strSlice(parts)}})
	case compiler.MethodSplitLines:
		if receiver.Kind != VStr {
			return rtErr("splitlines() expects a string receiver, got %s", receiver.Kind)
		}
		vm.stack.Push(Value{Kind: VList, List: &ListObj{Elems: strSlice(strings.Split(receiver.Str, "\n"))}})
	case compiler.MethodJoin:
		elems, jerr := joinableElems(receiver)
		if jerr != nil {
			return jerr
		}
		if args[0].Kind != VStr {
			return rtErr("join() separator must be a string")
		}
		parts := make([]string, len(elems))
		for i, e := range elems {
			if e.Kind != VStr {
				return rtErr("join() elements must be strings, got %s", e.Kind)
			}
			parts[i] = e.Str
		}
		vm.stack.Push(Str(strings.Join(parts, args[0].Str)))
	case compiler.MethodLength:
		n, lerr := lengthOf(receiver)
		if lerr != nil {
			return lerr
		}
		vm.stack.Push(SmallInt(int64(n)))
	case compiler.MethodCount:
		n, cerr := countOf(receiver, args[0])
		if cerr != nil {
			return cerr
		}
		vm.stack.Push(SmallInt(int64(n)))
	case compiler.MethodFindAll:
		re, subj, rerr := regexArgs(receiver, args)
		if rerr != nil {
			return rerr
		}
		groups := re.Re.FindAllStringSubmatch(subj, -1)
		matches := make([]Value, len(groups))
		for i, g := range groups {
			matches[i] = regexMatchTuple(re, g)
		}
		vm.stack.Push(Value{Kind: VList, List: &ListObj{Elems: matches}})
	case compiler.MethodFind:
		re, subj, rerr := regexArgs(receiver, args)
		if rerr != nil {
			return rerr
		}
		g := re.Re.FindStringSubmatch(subj)
		if g == nil {
			vm.stack.Push(Null())
		} else {
			vm.stack.Push(regexMatchTuple(re, g))
		}
	case compiler.MethodIsMatch:
		re, subj, rerr := regexArgs(receiver, args)
		if rerr != nil {
			return rerr
		}
		vm.stack.Push(Bool(re.Re.MatchString(subj)))
	case compiler.MethodContains:
		res, cerr := containsMethod(receiver, args[0])
		if cerr != nil {
			return cerr
		}
		vm.stack.Push(Bool(res))
	case compiler.MethodSort:
		elems, eerr := elemsOf(receiver)
		if eerr != nil {
			return eerr
		}
		var keyFn *Value
		if len(args) == 1 {
			if args[0].Kind != VFunction {
				return rtErr("sort() key argument must be a function, got %s", args[0].Kind)
			}
			keyFn = &args[0]
		}
		sorted, serr := vm.sortByKey(elems, keyFn)
		if serr != nil {
			return serr
		}
		vm.stack.Push(Value{Kind: VList, List: &ListObj{Elems: sorted}})
	case compiler.MethodEnumerate:
		inner, ierr := ToIter(receiver)
		if ierr != nil {
			return ierr
		}
		vm.stack.Push(Value{Kind: VIterator, Iterator: &IteratorObj{Kind: IterEnumerated, Inner: inner}})
	case compiler.MethodRot:
		v, rerr := execRot(receiver)
		if rerr != nil {
			return rerr
		}
		vm.stack.Push(v)
	case compiler.MethodBinary:
		if receiver.Kind != VNum {
			return rtErr("binary() expects a number receiver, got %s", receiver.Kind)
		}
		b := receiver.Num.AsBig()
		sign := ""
		if b.Sign() < 0 {
			sign = "-"
			b = new(big.Int).Neg(b)
		}
		vm.stack.Push(Str(sign + b.Text(2)))
	default:
		return intErr("unhandled method %d", m)
	}
	return nil
}

func strSlice(ss []string) []Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = Str(s)
	}
	return out
}

func joinableElems(v Value) ([]Value, error) {
	switch v.Kind {
	case VList:
		return v.List.Elems, nil
	case VTuple:
		return v.Tuple, nil
	}
	return nil, rtErr("join() expects a list or tuple receiver, got %s", v.Kind)
}

func lengthOf(v Value) (int, error) {
	switch v.Kind {
	case VList:
		return len(v.List.Elems), nil
	case VTuple:
		return len(v.Tuple), nil
	case VSet:
		return len(v.Set.Elems), nil
	case VMap:
		return len(v.Map.Keys), nil
	case VCounter:
		return len(v.Counter.Keys), nil
	case VStr:
		return len([]rune(v.Str)), nil
	}
	return 0, rtErr("len() not supported on %s", v.Kind)
}

func countOf(receiver, needle Value) (int, error) {
	switch receiver.Kind {
	case VList:
		n := 0
		for _, e := range receiver.List.Elems {
			if ValueEqual(e, needle) {
				n++
			}
		}
		return n, nil
	case VTuple:
		n := 0
		for _, e := range receiver.Tuple {
			if ValueEqual(e, needle) {
				n++
			}
		}
		return n, nil
	case VStr:
		if needle.Kind != VStr {
			return 0, rtErr("count() expects a string argument")
		}
		return strings.Count(receiver.Str, needle.Str), nil
	}
	return 0, rtErr("count() not supported on %s", receiver.Kind)
}

// sortByKey sorts a copy of elems. With no key function it defers entirely
// to SortValues. With one, it re-enters the VM (vm.callValue) once per
// element to compute that element's key — the original source's
// `sort_by_key(vm, func.as_ref())` — then sorts (key, element) pairs by
// comparing keys, never the elements themselves, with ValueLess.
func (vm *VM) sortByKey(elems []Value, keyFn *Value) ([]Value, error) {
	if keyFn == nil {
		return SortValues(elems)
	}
	type keyed struct {
		key Value
		val Value
	}
	pairs := make([]keyed, len(elems))
	for i, e := range elems {
		k, err := vm.callValue(*keyFn, []Value{e})
		if err != nil {
			return nil, err
		}
		pairs[i] = keyed{key: k, val: e}
	}
	var sortErr error
	sort.SliceStable(pairs, func(i, j int) bool {
		less, err := ValueLess(pairs[i].key, pairs[j].key)
		if err != nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	out := make([]Value, len(pairs))
	for i, p := range pairs {
		out[i] = p.val
	}
	return out, nil
}

// regexMatchTuple builds one match's result value from FindStringSubmatch's
// output (groups[0] is the whole match, groups[1:] the capture groups):
// spec.md §6 requires the full match moved to the end of a tuple of group
// values, with the "n" flag coercing numeric-looking groups to VNum.
func regexMatchTuple(re *RegexObj, groups []string) Value {
	n := len(groups)
	tuple := make([]Value, n)
	for i, g := range groups[1:] {
		tuple[i] = regexGroupValue(re, g)
	}
	tuple[n-1] = Str(groups[0])
	return Value{Kind: VTuple, Tuple: tuple}
}

func regexGroupValue(re *RegexObj, g string) Value {
	if strings.Contains(re.Flags, "n") {
		if i, err := strconv.ParseInt(g, 10, 64); err == nil {
			return SmallInt(i)
		}
	}
	return Str(g)
}

func regexArgs(receiver Value, args []Value) (*RegexObj, string, error) {
	if receiver.Kind != VRegex {
		return nil, "", rtErr("this method expects a regex receiver, got %s", receiver.Kind)
	}
	if args[0].Kind != VStr {
		return nil, "", rtErr("this method expects a string argument, got %s", args[0].Kind)
	}
	return receiver.Regex, args[0].Str, nil
}

func containsMethod(receiver, needle Value) (bool, error) {
	switch receiver.Kind {
	case VList:
		return containsValue(receiver.List.Elems, needle), nil
	case VTuple:
		return containsValue(receiver.Tuple, needle), nil
	case VSet:
		return containsValue(receiver.Set.Elems, needle), nil
	case VMap:
		return indexOfValue(receiver.Map.Keys, needle) >= 0, nil
	case VCounter:
		return indexOfValue(receiver.Counter.Keys, needle) >= 0, nil
	case VStr:
		if needle.Kind != VStr {
			return false, rtErr("contains() expects a string argument")
		}
		return strings.Contains(receiver.Str, needle.Str), nil
	}
	return false, rtErr("contains() not supported on %s", receiver.Kind)
}

func elemsOf(v Value) ([]Value, error) {
	switch v.Kind {
	case VList:
		return v.List.Elems, nil
	case VTuple:
		return v.Tuple, nil
	case VSet:
		return v.Set.Elems, nil
	}
	return nil, rtErr("sort() not supported on %s", v.Kind)
}
