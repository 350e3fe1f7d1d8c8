package compiler

// Method identifies a receiver method call (`receiver.name(args)`). Grounded
// on the original source's Method enum (see SPEC_FULL.md §12.2); names and
// arities are taken from there.
type Method int

const (
	MethodAppend Method = iota
	MethodToUpperCase
	MethodToLowerCase
	MethodSplit
	MethodSplitLines
	MethodJoin
	MethodLength
	MethodCount
	MethodFindAll
	MethodFind
	MethodIsMatch
	MethodContains
	MethodSort
	MethodEnumerate
	MethodRot
	MethodBinary
)

// MethodArity is the inclusive [min, max] argument count the compiler
// validates at the call site (spec.md §4.2's "Methods").
type MethodArity struct{ Min, Max int }

var methods = map[string]struct {
	Method Method
	Arity  MethodArity
}{
	"append":     {MethodAppend, MethodArity{1, 1}},
	"add":        {MethodAppend, MethodArity{1, 1}},
	"to_upper":   {MethodToUpperCase, MethodArity{0, 0}},
	"to_lower":   {MethodToLowerCase, MethodArity{0, 0}},
	"split":      {MethodSplit, MethodArity{0, 1}},
	"splitlines": {MethodSplitLines, MethodArity{0, 0}},
	"join":       {MethodJoin, MethodArity{1, 1}},
	"len":        {MethodLength, MethodArity{0, 0}},
	"count":      {MethodCount, MethodArity{1, 1}},
	"find_all":   {MethodFindAll, MethodArity{1, 1}},
	"find":       {MethodFind, MethodArity{1, 1}},
	"is_match":   {MethodIsMatch, MethodArity{1, 1}},
	"contains":   {MethodContains, MethodArity{1, 1}},
	"sort":       {MethodSort, MethodArity{0, 1}},
	"enumerate":  {MethodEnumerate, MethodArity{0, 0}},
	"rot":        {MethodRot, MethodArity{0, 0}},
	"binary":     {MethodBinary, MethodArity{0, 0}},
}

// LookupMethod resolves a method call name to its Method id and declared
// arity range, or reports ok=false if the name is not a known method.
func LookupMethod(name string) (m Method, arity MethodArity, ok bool) {
	entry, ok := methods[name]
	return entry.Method, entry.Arity, ok
}
