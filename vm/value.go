package vm

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ValueKind tags the dynamic variant a Value currently holds.
type ValueKind int

const (
	VNull ValueKind = iota
	VUninit
	VBool
	VInt // machine-signed integer: addresses, PC, BP bookkeeping only, never literal-producible
	VNum // a dynamic number: SmallInt, BigInt or Float (see NumKind)
	VStr
	VRegex
	VList
	VTuple
	VSet
	VMap
	VCounter
	VFunction
	VRange
	VIterator
)

func (k ValueKind) String() string {
	switch k {
	case VNull:
		return "null"
	case VUninit:
		return "uninit"
	case VBool:
		return "bool"
	case VInt:
		return "int"
	case VNum:
		return "num"
	case VStr:
		return "str"
	case VRegex:
		return "regex"
	case VList:
		return "list"
	case VTuple:
		return "tuple"
	case VSet:
		return "set"
	case VMap:
		return "map"
	case VCounter:
		return "counter"
	case VFunction:
		return "function"
	case VRange:
		return "range"
	case VIterator:
		return "iterator"
	}
	return "?"
}

// Value is the VM's tagged-union runtime representation. Only the fields
// relevant to Kind are populated.
type Value struct {
	Kind     ValueKind
	Bool     bool
	Int      int64
	Num      Number
	Str      string
	Regex    *RegexObj
	List     *ListObj
	Tuple    []Value
	Set      *SetObj
	Map      *MapObj
	Counter  *CounterObj
	Function *FunctionObj
	Range    RangeVal
	Iterator *IteratorObj
}

func Null() Value    { return Value{Kind: VNull} }
func Uninit() Value  { return Value{Kind: VUninit} }
func Bool(b bool) Value { return Value{Kind: VBool, Bool: b} }
func Addr(i int64) Value { return Value{Kind: VInt, Int: i} }
func SmallInt(i int64) Value { return Value{Kind: VNum, Num: Number{Kind: NumSmall, Small: i}} }
func FloatNum(f float64) Value { return Value{Kind: VNum, Num: Number{Kind: NumFloat, Float: f}} }
func BigIntNum(b *big.Int) Value { return Value{Kind: VNum, Num: normalizeBig(b)} }
func Str(s string) Value     { return Value{Kind: VStr, Str: s} }

func NumVal(n Number) Value { return Value{Kind: VNum, Num: n} }

func (v Value) Truthy() bool {
	switch v.Kind {
	case VNull, VUninit:
		return false
	case VBool:
		return v.Bool
	case VNum:
		return !v.Num.IsZero()
	case VStr:
		return v.Str != ""
	case VList:
		return len(v.List.Elems) > 0
	case VTuple:
		return len(v.Tuple) > 0
	case VSet:
		return len(v.Set.Elems) > 0
	case VMap:
		return len(v.Map.Keys) > 0
	case VCounter:
		return len(v.Counter.Keys) > 0
	default:
		return true
	}
}

// ---- Number: a dynamic number, one of small machine int, arbitrary
// precision int (math/big, promoted to on overflow), or float64. ----

type NumKind int

const (
	NumSmall NumKind = iota
	NumBig
	NumFloat
)

type Number struct {
	Kind  NumKind
	Small int64
	Big   *big.Int
	Float float64
}

func (n Number) IsZero() bool {
	switch n.Kind {
	case NumSmall:
		return n.Small == 0
	case NumBig:
		return n.Big.Sign() == 0
	default:
		return n.Float == 0
	}
}

func (n Number) AsFloat() float64 {
	switch n.Kind {
	case NumSmall:
		return float64(n.Small)
	case NumBig:
		f, _ := new(big.Float).SetInt(n.Big).Float64()
		return f
	default:
		return n.Float
	}
}

func (n Number) AsBig() *big.Int {
	switch n.Kind {
	case NumSmall:
		return big.NewInt(n.Small)
	case NumBig:
		return n.Big
	default:
		bi, _ := big.NewFloat(n.Float).Int(nil)
		return bi
	}
}

// normalizeBig demotes a big.Int back to a small int when it fits, keeping
// the common case cheap (per spec.md's "promotes ... on overflow" wording:
// promotion is one-directional during arithmetic, but literal/demotion
// normalization keeps representations minimal).
func normalizeBig(b *big.Int) Number {
	if b.IsInt64() {
		return Number{Kind: NumSmall, Small: b.Int64()}
	}
	return Number{Kind: NumBig, Big: b}
}

func (n Number) String() string {
	switch n.Kind {
	case NumSmall:
		return strconv.FormatInt(n.Small, 10)
	case NumBig:
		return n.Big.String()
	default:
		return strconv.FormatFloat(n.Float, 'g', -1, 64)
	}
}

func addOverflows(a, b int64) bool {
	s := a + b
	return (b > 0 && s < a) || (b < 0 && s > a)
}

func subOverflows(a, b int64) bool {
	s := a - b
	return (b < 0 && s < a) || (b > 0 && s > a)
}

func mulOverflows(a, b int64) bool {
	if a == 0 || b == 0 {
		return false
	}
	c := a * b
	return c/b != a
}

// NumAdd, NumSub, NumMul implement the spec's 3-way promotion: small+small
// stays small unless it overflows, in which case it promotes to big; any
// operand already float makes the result float; any operand already big
// keeps it big (normalized back down if it now fits).
func NumAdd(a, b Number) Number {
	if a.Kind == NumFloat || b.Kind == NumFloat {
		return Number{Kind: NumFloat, Float: a.AsFloat() + b.AsFloat()}
	}
	if a.Kind == NumSmall && b.Kind == NumSmall {
		if !addOverflows(a.Small, b.Small) {
			return Number{Kind: NumSmall, Small: a.Small + b.Small}
		}
	}
	return normalizeBig(new(big.Int).Add(a.AsBig(), b.AsBig()))
}

func NumSub(a, b Number) Number {
	if a.Kind == NumFloat || b.Kind == NumFloat {
		return Number{Kind: NumFloat, Float: a.AsFloat() - b.AsFloat()}
	}
	if a.Kind == NumSmall && b.Kind == NumSmall {
		if !subOverflows(a.Small, b.Small) {
			return Number{Kind: NumSmall, Small: a.Small - b.Small}
		}
	}
	return normalizeBig(new(big.Int).Sub(a.AsBig(), b.AsBig()))
}

func NumMul(a, b Number) Number {
	if a.Kind == NumFloat || b.Kind == NumFloat {
		return Number{Kind: NumFloat, Float: a.AsFloat() * b.AsFloat()}
	}
	if a.Kind == NumSmall && b.Kind == NumSmall {
		if !mulOverflows(a.Small, b.Small) {
			return Number{Kind: NumSmall, Small: a.Small * b.Small}
		}
	}
	return normalizeBig(new(big.Int).Mul(a.AsBig(), b.AsBig()))
}

func NumDiv(a, b Number) (Number, error) {
	if a.Kind == NumFloat || b.Kind == NumFloat {
		if b.AsFloat() == 0 {
			return Number{}, rtErr("division by zero")
		}
		return Number{Kind: NumFloat, Float: a.AsFloat() / b.AsFloat()}, nil
	}
	if b.IsZero() {
		return Number{}, rtErr("division by zero")
	}
	af, bf := a.AsBig(), b.AsBig()
	q, r := new(big.Int), new(big.Int)
	q.QuoRem(af, bf, r)
	if r.Sign() == 0 {
		return normalizeBig(q), nil
	}
	return Number{Kind: NumFloat, Float: a.AsFloat() / b.AsFloat()}, nil
}

func NumDivFloor(a, b Number) (Number, error) {
	if a.Kind == NumFloat || b.Kind == NumFloat {
		if b.AsFloat() == 0 {
			return Number{}, rtErr("division by zero")
		}
		return Number{Kind: NumFloat, Float: math.Floor(a.AsFloat() / b.AsFloat())}, nil
	}
	if b.IsZero() {
		return Number{}, rtErr("division by zero")
	}
	q := new(big.Int)
	m := new(big.Int)
	q.DivMod(a.AsBig(), b.AsBig(), m) // Euclidean; adjust to floor semantics below
	af, bf := a.AsBig(), b.AsBig()
	q2, r2 := new(big.Int), new(big.Int)
	q2.QuoRem(af, bf, r2)
	if r2.Sign() != 0 && (r2.Sign() < 0) != (bf.Sign() < 0) {
		q2.Sub(q2, big.NewInt(1))
	}
	return normalizeBig(q2), nil
}

func NumMod(a, b Number) (Number, error) {
	if a.Kind == NumFloat || b.Kind == NumFloat {
		if b.AsFloat() == 0 {
			return Number{}, rtErr("division by zero")
		}
		return Number{Kind: NumFloat, Float: math.Mod(a.AsFloat(), b.AsFloat())}, nil
	}
	if b.IsZero() {
		return Number{}, rtErr("division by zero")
	}
	af, bf := a.AsBig(), b.AsBig()
	r := new(big.Int).Mod(af, bf) // math/big Mod is Euclidean, always non-negative for bf>0
	if bf.Sign() < 0 && r.Sign() != 0 {
		r.Add(r, bf)
	}
	return normalizeBig(r), nil
}

func NumPow(a, b Number) (Number, error) {
	if a.Kind == NumFloat || b.Kind == NumFloat {
		return Number{Kind: NumFloat, Float: math.Pow(a.AsFloat(), b.AsFloat())}, nil
	}
	if b.AsBig().Sign() < 0 {
		return Number{Kind: NumFloat, Float: math.Pow(a.AsFloat(), b.AsFloat())}, nil
	}
	return normalizeBig(new(big.Int).Exp(a.AsBig(), b.AsBig(), nil)), nil
}

func NumCompare(a, b Number) int {
	if a.Kind == NumFloat || b.Kind == NumFloat {
		af, bf := a.AsFloat(), b.AsFloat()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return a.AsBig().Cmp(b.AsBig())
}

// ---- containers ----

type ListObj struct{ Elems []Value }

type SetObj struct{ Elems []Value }

// MapObj is a simple association list: lookups are linear, matching the
// scale a scripting-language test program needs. Default is non-nil only
// for maps created via defaultmap(...).
type MapObj struct {
	Keys    []Value
	Vals    []Value
	Default *Value
}

type CounterObj struct {
	Keys   []Value
	Counts []int64
}

type FunctionObj struct {
	Location  int
	Arity     int
	Memoized  bool
	MemoTable map[string]Value
	Pending   map[string]bool
}

// RangeVal is `a..b`/`..b`/`a..`: Start/Stop are nil when the bound was
// omitted in source, resolved against a concrete sequence length at the
// point of use (ToIter, sliceRange, sliceRunes) rather than eagerly here.
// Step's sign is inferred from Start/Stop at construction (execRange) when
// both bounds are known; it drives a descending range's iteration order.
type RangeVal struct {
	Start, Stop *int64
	Step        int64
}

type RegexObj struct {
	Re      *regexp.Regexp
	Pattern string
	Flags   string
}

// CompileRegex compiles pattern/flags ("i" case-insensitive) into a
// *regexp.Regexp, per SPEC_FULL.md's DOMAIN STACK section (no pack example
// ships a third-party regex engine, so this is one of the two deliberate
// standard-library-only domain concerns). The "n" flag (spec.md §6: "parse
// integer groups as numbers rather than strings") carries no meaning for
// Go's regexp.Compile itself — it's read back off Flags at match time in
// vm/builtins.go's find()/find_all(), not applied here.
func CompileRegex(pattern, flags string) (*RegexObj, error) {
	pat := pattern
	if strings.Contains(flags, "i") {
		pat = "(?i)" + pattern
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, rtErr("invalid regex %q: %s", pattern, err)
	}
	return &RegexObj{Re: re, Pattern: pattern, Flags: flags}, nil
}

// ---- iterator protocol ----

type IterKind int

const (
	IterList IterKind = iota
	IterRange
	IterMap
	IterString
	IterEnumerated
	IterEmpty
)

type IteratorObj struct {
	Kind  IterKind
	Elems []Value // IterList
	Idx   int

	RangeCur  int64 // IterRange
	RangeStop int64
	RangeStep int64

	MapObj *MapObj // IterMap

	Runes []rune // IterString
	RIdx  int

	Inner   *IteratorObj // IterEnumerated
	EnumIdx int64
}

// ToIter converts a value into an iterator, per spec.md's ToIter
// instruction. An existing Iterator value passes through unchanged.
func ToIter(v Value) (*IteratorObj, error) {
	switch v.Kind {
	case VList:
		return &IteratorObj{Kind: IterList, Elems: v.List.Elems}, nil
	case VTuple:
		return &IteratorObj{Kind: IterList, Elems: v.Tuple}, nil
	case VSet:
		return &IteratorObj{Kind: IterList, Elems: v.Set.Elems}, nil
	case VRange:
		if v.Range.Stop == nil {
			return nil, rtErr("range must have an end to be iterated")
		}
		start := int64(0)
		if v.Range.Start != nil {
			start = *v.Range.Start
		}
		return &IteratorObj{Kind: IterRange, RangeCur: start, RangeStop: *v.Range.Stop, RangeStep: v.Range.Step}, nil
	case VMap:
		return &IteratorObj{Kind: IterMap, MapObj: v.Map}, nil
	case VCounter:
		pairs := make([]Value, len(v.Counter.Keys))
		for i, k := range v.Counter.Keys {
			pairs[i] = Value{Kind: VTuple, Tuple: []Value{k, SmallInt(v.Counter.Counts[i])}}
		}
		return &IteratorObj{Kind: IterList, Elems: pairs}, nil
	case VStr:
		return &IteratorObj{Kind: IterString, Runes: []rune(v.Str)}, nil
	case VIterator:
		return v.Iterator, nil
	default:
		return nil, rtErr("value of type %s is not iterable", v.Kind)
	}
}

// NextIter advances it, matching the NextIter instruction's two outcomes:
// (value, true) if an item remains, or (Null, false) once exhausted.
func NextIter(it *IteratorObj) (Value, bool) {
	switch it.Kind {
	case IterList:
		if it.Idx >= len(it.Elems) {
			return Null(), false
		}
		v := it.Elems[it.Idx]
		it.Idx++
		return v, true
	case IterRange:
		if it.RangeStep > 0 && it.RangeCur >= it.RangeStop {
			return Null(), false
		}
		if it.RangeStep < 0 && it.RangeCur <= it.RangeStop {
			return Null(), false
		}
		if it.RangeStep == 0 {
			return Null(), false
		}
		v := SmallInt(it.RangeCur)
		it.RangeCur += it.RangeStep
		return v, true
	case IterMap:
		if it.Idx >= len(it.MapObj.Keys) {
			return Null(), false
		}
		pair := Value{Kind: VTuple, Tuple: []Value{it.MapObj.Keys[it.Idx], it.MapObj.Vals[it.Idx]}}
		it.Idx++
		return pair, true
	case IterString:
		if it.RIdx >= len(it.Runes) {
			return Null(), false
		}
		v := Str(string(it.Runes[it.RIdx]))
		it.RIdx++
		return v, true
	case IterEnumerated:
		inner, ok := NextIter(it.Inner)
		if !ok {
			return Null(), false
		}
		pair := Value{Kind: VTuple, Tuple: []Value{SmallInt(it.EnumIdx), inner}}
		it.EnumIdx++
		return pair, true
	default: // IterEmpty
		return Null(), false
	}
}

// ---- equality, comparison, display ----

func ValueEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		if a.Kind == VNum && b.Kind == VNum {
			return NumCompare(a.Num, b.Num) == 0
		}
		return false
	}
	switch a.Kind {
	case VNull, VUninit:
		return true
	case VBool:
		return a.Bool == b.Bool
	case VInt:
		return a.Int == b.Int
	case VNum:
		return NumCompare(a.Num, b.Num) == 0
	case VStr:
		return a.Str == b.Str
	case VList:
		return valuesEqual(a.List.Elems, b.List.Elems)
	case VTuple:
		return valuesEqual(a.Tuple, b.Tuple)
	case VSet:
		if len(a.Set.Elems) != len(b.Set.Elems) {
			return false
		}
		for _, x := range a.Set.Elems {
			if !containsValue(b.Set.Elems, x) {
				return false
			}
		}
		return true
	case VMap:
		if len(a.Map.Keys) != len(b.Map.Keys) {
			return false
		}
		for i, k := range a.Map.Keys {
			idx := indexOfValue(b.Map.Keys, k)
			if idx < 0 || !ValueEqual(a.Map.Vals[i], b.Map.Vals[idx]) {
				return false
			}
		}
		return true
	case VRange:
		return rangeEqual(a.Range, b.Range)
	default:
		return false
	}
}

func rangeEqual(a, b RangeVal) bool {
	return optInt64Equal(a.Start, b.Start) && optInt64Equal(a.Stop, b.Stop) && a.Step == b.Step
}

func optInt64Equal(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func valuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ValueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func containsValue(xs []Value, v Value) bool { return indexOfValue(xs, v) >= 0 }

func indexOfValue(xs []Value, v Value) int {
	for i, x := range xs {
		if ValueEqual(x, v) {
			return i
		}
	}
	return -1
}

// ValueLess reports a < b for the ordered types (Num, Str); other types
// report an error since they have no total order.
func ValueLess(a, b Value) (bool, error) {
	if a.Kind == VNum && b.Kind == VNum {
		return NumCompare(a.Num, b.Num) < 0, nil
	}
	if a.Kind == VStr && b.Kind == VStr {
		return a.Str < b.Str, nil
	}
	return false, rtErr("'<' not supported between %s and %s", a.Kind, b.Kind)
}

// Repr renders v the way the repr() builtin and print() do.
func Repr(v Value) string {
	switch v.Kind {
	case VNull:
		return "null"
	case VUninit:
		return "uninit"
	case VBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case VInt:
		return strconv.FormatInt(v.Int, 10)
	case VNum:
		return v.Num.String()
	case VStr:
		return strconv.Quote(v.Str)
	case VRegex:
		return fmt.Sprintf("re\"%s\"%s", v.Regex.Pattern, v.Regex.Flags)
	case VList:
		return "[" + joinRepr(v.List.Elems) + "]"
	case VTuple:
		return "(" + joinRepr(v.Tuple) + ")"
	case VSet:
		if len(v.Set.Elems) == 0 {
			return "{}"
		}
		return "{" + joinRepr(v.Set.Elems) + "}"
	case VMap:
		parts := make([]string, len(v.Map.Keys))
		for i := range v.Map.Keys {
			parts[i] = Repr(v.Map.Keys[i]) + ": " + Repr(v.Map.Vals[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case VCounter:
		parts := make([]string, len(v.Counter.Keys))
		for i := range v.Counter.Keys {
			parts[i] = fmt.Sprintf("%s: %d", Repr(v.Counter.Keys[i]), v.Counter.Counts[i])
		}
		return "Counter{" + strings.Join(parts, ", ") + "}"
	case VFunction:
		return fmt.Sprintf("<function @%d/%d>", v.Function.Location, v.Function.Arity)
	case VRange:
		return reprRange(v.Range)
	case VIterator:
		return "<iterator>"
	}
	return "?"
}

// DisplayString renders v the way print() writes it: like Repr, except a
// bare string prints without surrounding quotes.
func DisplayString(v Value) string {
	if v.Kind == VStr {
		return v.Str
	}
	return Repr(v)
}

func joinRepr(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = Repr(v)
	}
	return strings.Join(parts, ", ")
}

// DeepClone copies v the way a Value instruction must when it pushes a
// literal from the instruction stream, so repeated execution (inside a
// loop, or a re-invoked function) never lets two activations alias the
// same underlying container. Includes the Set case, absent from the
// original source's deep_clone (SPEC_FULL.md §12.4).
func DeepClone(v Value) Value {
	switch v.Kind {
	case VList:
		elems := make([]Value, len(v.List.Elems))
		for i, e := range v.List.Elems {
			elems[i] = DeepClone(e)
		}
		return Value{Kind: VList, List: &ListObj{Elems: elems}}
	case VTuple:
		elems := make([]Value, len(v.Tuple))
		for i, e := range v.Tuple {
			elems[i] = DeepClone(e)
		}
		return Value{Kind: VTuple, Tuple: elems}
	case VSet:
		elems := make([]Value, len(v.Set.Elems))
		for i, e := range v.Set.Elems {
			elems[i] = DeepClone(e)
		}
		return Value{Kind: VSet, Set: &SetObj{Elems: elems}}
	case VMap:
		keys := make([]Value, len(v.Map.Keys))
		vals := make([]Value, len(v.Map.Vals))
		for i := range keys {
			keys[i] = DeepClone(v.Map.Keys[i])
			vals[i] = DeepClone(v.Map.Vals[i])
		}
		var def *Value
		if v.Map.Default != nil {
			d := DeepClone(*v.Map.Default)
			def = &d
		}
		return Value{Kind: VMap, Map: &MapObj{Keys: keys, Vals: vals, Default: def}}
	case VCounter:
		keys := make([]Value, len(v.Counter.Keys))
		counts := make([]int64, len(v.Counter.Counts))
		copy(counts, v.Counter.Counts)
		for i := range keys {
			keys[i] = DeepClone(v.Counter.Keys[i])
		}
		return Value{Kind: VCounter, Counter: &CounterObj{Keys: keys, Counts: counts}}
	default:
		return v
	}
}

// reprRange renders a range the way it was spelled: both bounds, an open
// start (`..5`), an open end (`5..`), or fully open (`..`).
func reprRange(r RangeVal) string {
	start, stop := "", ""
	if r.Start != nil {
		start = fmt.Sprintf("%d", *r.Start)
	}
	if r.Stop != nil {
		stop = fmt.Sprintf("%d", *r.Stop)
	}
	return start + ".." + stop
}

// SortValues sorts a copy of vs ascending by ValueLess. It never sees a key
// function: sort()'s key-function form is handled entirely by
// (*VM).sortByKey in vm/builtins.go, which only falls back to SortValues
// when no key function was given; with one, it re-enters the VM to compute
// each element's key and sorts element pairs by comparing keys directly.
func SortValues(vs []Value) ([]Value, error) {
	out := make([]Value, len(vs))
	copy(out, vs)
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		less, err := ValueLess(out[i], out[j])
		if err != nil {
			sortErr = err
		}
		return less
	})
	return out, sortErr
}
