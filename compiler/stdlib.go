package compiler

// StdlibFn identifies a call-by-name free function (`print(...)`,
// `int(...)`, etc). When the compiler sees a Call whose callee is a bare
// identifier matching one of these names, it emits StdlibCall directly
// instead of resolving the name as a variable (spec.md §4.2).
type StdlibFn int

const (
	StdlibPrint StdlibFn = iota
	StdlibInput
	StdlibParseInt
	StdlibToList
	StdlibToTuple
	StdlibToMap
	StdlibMapWithDefault
	StdlibToSet
	StdlibToCounter
	StdlibRepr
	StdlibProduct
	StdlibSum
	StdlibAll
	StdlibAny
	StdlibMax
	StdlibMin
	StdlibModInv
	StdlibManhattan
)

// StdlibArity is the inclusive [min, max] argument count the compiler
// validates; -1 for Max means unbounded (variadic).
type StdlibArity struct{ Min, Max int }

var stdlib = map[string]struct {
	Fn    StdlibFn
	Arity StdlibArity
}{
	"print":      {StdlibPrint, StdlibArity{0, -1}},
	"input":      {StdlibInput, StdlibArity{0, 0}},
	"int":        {StdlibParseInt, StdlibArity{1, 1}},
	"list":       {StdlibToList, StdlibArity{1, 1}},
	"tuple":      {StdlibToTuple, StdlibArity{1, 1}},
	"map":        {StdlibToMap, StdlibArity{1, 1}},
	"defaultmap": {StdlibMapWithDefault, StdlibArity{1, 1}},
	"set":        {StdlibToSet, StdlibArity{0, -1}},
	"counter":    {StdlibToCounter, StdlibArity{1, 1}},
	"repr":       {StdlibRepr, StdlibArity{1, 1}},
	"product":    {StdlibProduct, StdlibArity{1, -1}},
	"sum":        {StdlibSum, StdlibArity{1, -1}},
	"all":        {StdlibAll, StdlibArity{1, 1}},
	"any":        {StdlibAny, StdlibArity{1, 1}},
	"max":        {StdlibMax, StdlibArity{1, -1}},
	"min":        {StdlibMin, StdlibArity{1, -1}},
	"mod_inv":    {StdlibModInv, StdlibArity{2, 2}},
	"manhattan":  {StdlibManhattan, StdlibArity{2, 2}},
}

// LookupStdlib resolves a bare call-target name to its StdlibFn id and
// declared arity range, or reports ok=false if the name is not a stdlib
// function (and should be compiled as an ordinary variable call instead).
func LookupStdlib(name string) (fn StdlibFn, arity StdlibArity, ok bool) {
	entry, ok := stdlib[name]
	return entry.Fn, entry.Arity, ok
}
