package compiler

import (
	"fmt"

	"evalscript/ast"
)

// loopCtx records the bookkeeping a loop body needs to compile break and
// continue: where they jump to, and which local slot holds the stack
// pointer captured at loop entry.
type loopCtx struct {
	continueLabel Label
	endLabel      Label
	spOffset      int
}

// Compiler lowers one function body (or the top-level program) into a
// label-addressed Program[Instruction]. Nested function literals get their
// own Compiler (spawnChild): variables don't close over an enclosing
// function's frame, only the label counter and register file are shared,
// since both must stay globally unique across the whole emitted program.
type Compiler struct {
	vars       *ScopedMap[string, int]
	nextOffset int
	loopStack  []loopCtx
	labelSeq   *int
	registers  *RegisterManager
}

// NewCompiler creates the top-level compiler instance.
func NewCompiler() *Compiler {
	seq := 0
	return &Compiler{
		vars:      NewScopedMap[string, int](),
		labelSeq:  &seq,
		registers: NewRegisterManager(64),
	}
}

func (c *Compiler) spawnChild() *Compiler {
	return &Compiler{vars: NewScopedMap[string, int](), labelSeq: c.labelSeq, registers: c.registers}
}

func (c *Compiler) newLabel() Label {
	*c.labelSeq++
	return Label(*c.labelSeq)
}

// Compile lowers a full program into a label-addressed instruction stream
// terminated by Stop. Internal compile errors (undefined variables, bad
// arities, break/continue outside a loop, unknown operators) are raised
// as typed panics (*SemanticError, *DeveloperError) and recovered here,
// mirroring informatter-nilan's own compile-time panic/recover discipline.
func Compile(expr ast.Expr) (prog *Program[Instruction], err error) {
	c := NewCompiler()
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *SemanticError:
				err = e
			case *DeveloperError:
				err = e
			default:
				panic(r)
			}
		}
	}()

	prelude := c.allocateLocals(expr)
	prog = NewProgram[Instruction]()
	prog.Append(prelude)
	prog.Append(c.compileExpr(expr))
	prog.Add(Simple(OpStop), expr.Span())
	return prog, nil
}

// allocateLocals runs the variable pre-pass over body: every assignment
// target (including loop-synthesised slots) not already bound in this
// compiler's scope is given the next bp-relative offset and an Uninit slot.
func (c *Compiler) allocateLocals(body ast.Expr) *Program[Instruction] {
	var names []string
	c.collectAssignedNames(body, &names)

	prelude := NewProgram[Instruction]()
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, exists := c.vars.Get(name); exists {
			continue
		}
		c.vars.SetLocal(name, c.nextOffset)
		prelude.Add(ValueInstr(UninitValue()), body.Span())
		c.nextOffset++
	}
	return prelude
}

func loopSPName(sp ast.Span) string   { return fmt.Sprintf("!loop_%d_%d_sp", sp.Start, sp.End) }
func loopIterName(sp ast.Span) string { return fmt.Sprintf("!loop_%d_%d_iter", sp.Start, sp.End) }

// collectAssignedNames walks body collecting every name that needs a local
// slot: assignment targets, for/list-comprehension pattern bindings, and the
// synthetic stack-pointer/iterator slots loops need for break and continue.
// It never descends into a nested FuncLit's body, which gets its own
// independent pre-pass when that function is compiled.
func (c *Compiler) collectAssignedNames(e ast.Expr, out *[]string) {
	if e == nil {
		return
	}
	switch n := e.(type) {
	case ast.Assign:
		c.collectPatternNames(n.Target, out)
		c.collectAssignedNames(n.Value, out)
	case ast.Unary:
		c.collectAssignedNames(n.Operand, out)
	case ast.Binary:
		c.collectAssignedNames(n.Left, out)
		c.collectAssignedNames(n.Right, out)
	case ast.Call:
		c.collectAssignedNames(n.Callee, out)
		for _, a := range n.Args {
			c.collectAssignedNames(a, out)
		}
	case ast.MethodCall:
		c.collectAssignedNames(n.Receiver, out)
		for _, a := range n.Args {
			c.collectAssignedNames(a, out)
		}
	case ast.If:
		c.collectAssignedNames(n.Cond, out)
		c.collectAssignedNames(n.Then, out)
		c.collectAssignedNames(n.Else, out)
	case ast.While:
		*out = append(*out, loopSPName(n.Span()))
		c.collectAssignedNames(n.Cond, out)
		c.collectAssignedNames(n.Body, out)
	case ast.For:
		*out = append(*out, loopSPName(n.Span()), loopIterName(n.Span()))
		c.collectPatternNames(n.Pattern, out)
		c.collectAssignedNames(n.Iterable, out)
		c.collectAssignedNames(n.Body, out)
	case ast.Break:
		c.collectAssignedNames(n.Value, out)
	case ast.Return:
		c.collectAssignedNames(n.Value, out)
	case ast.ListComp:
		*out = append(*out, loopSPName(n.Span()), loopIterName(n.Span()))
		c.collectPatternNames(n.Pattern, out)
		c.collectAssignedNames(n.Iterable, out)
		c.collectAssignedNames(n.Filter, out)
		c.collectAssignedNames(n.Body, out)
	case ast.Match:
		c.collectAssignedNames(n.Value, out)
		for _, arm := range n.Arms {
			c.collectAssignedNames(arm.Body, out)
		}
	case ast.Block:
		c.collectAssignedNames(n.Inner, out)
	case ast.Sequence:
		for _, x := range n.Exprs {
			c.collectAssignedNames(x, out)
		}
	case ast.Index:
		c.collectAssignedNames(n.Target, out)
		c.collectAssignedNames(n.Index, out)
	case ast.ListLit:
		for _, x := range n.Elems {
			c.collectAssignedNames(x, out)
		}
	case ast.TupleLit:
		for _, x := range n.Elems {
			c.collectAssignedNames(x, out)
		}
	case ast.SetLit:
		for _, x := range n.Elems {
			c.collectAssignedNames(x, out)
		}
	case ast.MapLit:
		for _, k := range n.Keys {
			c.collectAssignedNames(k, out)
		}
		for _, v := range n.Values {
			c.collectAssignedNames(v, out)
		}
	case ast.FuncLit:
		// Own frame; nothing here belongs to the enclosing function.
	}
}

func (c *Compiler) collectPatternNames(p ast.Pattern, out *[]string) {
	if p == nil {
		return
	}
	switch pt := p.(type) {
	case ast.IdentPattern:
		*out = append(*out, pt.Name)
	case ast.SeqPattern:
		for _, child := range pt.Elems {
			c.collectPatternNames(child, out)
		}
	case ast.IndexPattern:
		c.collectAssignedNames(pt.Target, out)
		c.collectAssignedNames(pt.Index, out)
	case ast.LiteralPattern:
		c.collectAssignedNames(pt.Value, out)
	}
}

// evalSimpleConstant folds an expression to a compile-time IrValue when
// possible: literals, lists/tuples/sets/maps of constants, single-element
// sequences, and bare blocks wrapping a constant.
func evalSimpleConstant(e ast.Expr) (IrValue, bool) {
	switch n := e.(type) {
	case ast.NullLit:
		return NullValue(), true
	case ast.BoolLit:
		return BoolValue(n.Value), true
	case ast.IntLit:
		return IntValue(n.Value), true
	case ast.FloatLit:
		return FloatValue(n.Value), true
	case ast.StringLit:
		return StrValue(n.Value), true
	case ast.RegexLit:
		return RegexValue(n.Pattern, n.Flags), true
	case ast.ListLit:
		vals, ok := evalSimpleConstants(n.Elems)
		if !ok {
			return IrValue{}, false
		}
		return ListValue(vals), true
	case ast.TupleLit:
		vals, ok := evalSimpleConstants(n.Elems)
		if !ok {
			return IrValue{}, false
		}
		return TupleValue(vals), true
	case ast.SetLit:
		vals, ok := evalSimpleConstants(n.Elems)
		if !ok {
			return IrValue{}, false
		}
		return SetValue(vals), true
	case ast.MapLit:
		entries := make([]IrMapEntry, 0, len(n.Keys))
		for i := range n.Keys {
			k, ok := evalSimpleConstant(n.Keys[i])
			if !ok {
				return IrValue{}, false
			}
			v, ok := evalSimpleConstant(n.Values[i])
			if !ok {
				return IrValue{}, false
			}
			entries = append(entries, IrMapEntry{Key: k, Value: v})
		}
		return MapValue(entries), true
	case ast.Sequence:
		if len(n.Exprs) == 1 {
			return evalSimpleConstant(n.Exprs[0])
		}
		return IrValue{}, false
	case ast.Block:
		return evalSimpleConstant(n.Inner)
	}
	return IrValue{}, false
}

func evalSimpleConstants(es []ast.Expr) ([]IrValue, bool) {
	out := make([]IrValue, 0, len(es))
	for _, e := range es {
		v, ok := evalSimpleConstant(e)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func (c *Compiler) mustOffset(name string, sp ast.Span) int {
	off, ok := c.vars.Get(name)
	if !ok {
		panic(&SemanticError{Message: fmt.Sprintf("undefined variable %q", name), Span: spanPtr(sp)})
	}
	return off
}

func spanPtr(sp ast.Span) *ast.Span { return &sp }

func (c *Compiler) emitAddr(prog *Program[Instruction], offset int, sp ast.Span) {
	prog.Add(Simple(OpGetBasePtr), sp)
	prog.Add(ConstantInt(offset), sp)
	prog.Add(Simple(OpAdd), sp)
}

func arityDesc(min, max int) string {
	if max < 0 {
		return fmt.Sprintf("at least %d argument(s)", min)
	}
	if min == max {
		return fmt.Sprintf("%d argument(s)", min)
	}
	return fmt.Sprintf("between %d and %d arguments", min, max)
}

// compileExpr lowers one expression. Every case leaves exactly one value on
// the stack, per the language's expression-oriented evaluation model.
func (c *Compiler) compileExpr(e ast.Expr) *Program[Instruction] {
	if v, ok := evalSimpleConstant(e); ok {
		prog := NewProgram[Instruction]()
		prog.Add(ValueInstr(v), e.Span())
		return prog
	}

	prog := NewProgram[Instruction]()
	switch n := e.(type) {
	case ast.Ident:
		off := c.mustOffset(n.Name, n.Span())
		c.emitAddr(prog, off, n.Span())
		prog.Add(Simple(OpLoad), n.Span())
	case ast.Assign:
		prog.Append(c.compileExpr(n.Value))
		prog.Append(c.compilePatternStore(n.Target))
	case ast.Unary:
		switch n.Op {
		case "not", "!":
			prog.Append(c.compileExpr(n.Operand))
			prog.Add(Simple(OpNot), n.Span())
		case "-":
			prog.Add(ValueInstr(IntValue(0)), n.Span())
			prog.Append(c.compileExpr(n.Operand))
			prog.Add(Simple(OpSub), n.Span())
		default:
			panic(&DeveloperError{Message: fmt.Sprintf("unknown unary operator %q", n.Op)})
		}
	case ast.Binary:
		prog.Append(c.compileBinary(n))
	case ast.Range:
		prog.Append(c.compileRange(n))
	case ast.Call:
		prog.Append(c.compileCall(n))
	case ast.MethodCall:
		prog.Append(c.compileMethodCall(n))
	case ast.If:
		prog.Append(c.compileIf(n))
	case ast.While:
		prog.Append(c.compileWhile(n))
	case ast.For:
		prog.Append(c.compileFor(n))
	case ast.Break:
		prog.Append(c.compileBreak(n))
	case ast.Continue:
		prog.Append(c.compileContinue(n))
	case ast.Return:
		if n.Value != nil {
			prog.Append(c.compileExpr(n.Value))
		} else {
			prog.Add(ValueInstr(NullValue()), n.Span())
		}
		prog.Add(Simple(OpReturn), n.Span())
	case ast.ListComp:
		prog.Append(c.compileListComp(n))
	case ast.Match:
		prog.Append(c.compileMatch(n))
	case ast.Block:
		prog.Append(c.compileExpr(n.Inner))
	case ast.Sequence:
		for i, sub := range n.Exprs {
			prog.Append(c.compileExpr(sub))
			if i != len(n.Exprs)-1 {
				prog.Add(Simple(OpPop), sub.Span())
			}
		}
	case ast.Index:
		prog.Append(c.compileExpr(n.Target))
		prog.Append(c.compileExpr(n.Index))
		prog.Add(Simple(OpIndex), n.Span())
	case ast.FuncLit:
		prog.Append(c.compileFuncLit(n))
	case ast.ListLit:
		prog.Append(c.compileListLit(n))
	case ast.TupleLit:
		for _, el := range n.Elems {
			prog.Append(c.compileExpr(el))
		}
		prog.Add(CreateTuple(len(n.Elems)), n.Span())
	case ast.SetLit:
		for _, el := range n.Elems {
			prog.Append(c.compileExpr(el))
		}
		prog.Add(ToSetN(len(n.Elems)), n.Span())
	case ast.MapLit:
		prog.Append(c.compileMapLit(n))
	case ast.ParseError:
		panic(&SemanticError{Message: n.Message, Span: spanPtr(n.Span())})
	default:
		panic(&DeveloperError{Message: fmt.Sprintf("compiler: unhandled expression node %T", e)})
	}
	return prog
}

// compilePatternStore assumes the value to store already sits on top of the
// stack and lowers target per spec.md's pattern-assignment rules: identifier
// (store into its slot), sequence (index each child out, recurse, discard),
// index target (evaluate target/index, SetIndex). A literal pattern is only
// legal inside match and is rejected here.
func (c *Compiler) compilePatternStore(p ast.Pattern) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	switch pt := p.(type) {
	case ast.IdentPattern:
		off := c.mustOffset(pt.Name, pt.Span())
		c.emitAddr(prog, off, pt.Span())
		prog.Add(Simple(OpStore), pt.Span())
	case ast.SeqPattern:
		for i, child := range pt.Elems {
			prog.Add(Simple(OpDup), pt.Span())
			prog.Add(ValueInstr(IntValue(int64(i))), pt.Span())
			prog.Add(Simple(OpIndex), pt.Span())
			prog.Append(c.compilePatternStore(child))
			prog.Add(Simple(OpPop), pt.Span())
		}
	case ast.IndexPattern:
		prog.Append(c.compileExpr(pt.Target))
		prog.Append(c.compileExpr(pt.Index))
		prog.Add(Simple(OpSetIndex), pt.Span())
	case ast.LiteralPattern:
		panic(&SemanticError{Message: "a literal pattern cannot be an assignment target", Span: spanPtr(pt.Span())})
	default:
		panic(&DeveloperError{Message: fmt.Sprintf("compiler: unhandled pattern node %T", p)})
	}
	return prog
}

var binaryOpcodes = map[string]Opcode{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "//": OpDivFloor, "%": OpMod, "^": OpPow,
	"==": OpEq, "!=": OpNotEq, "<": OpLess, "<=": OpLessEq, ">": OpGreater, ">=": OpGreaterEq,
	"in": OpIsIn, "&": OpBitwiseAnd,
}

// compileRange lowers `a..b`/`..b`/`a..` to OpRange over two operands, a
// missing bound becoming an explicit Null so the VM's execRange can tell
// "bound omitted" apart from any ordinary number (spec.md §3's "optional
// start, optional end").
func (c *Compiler) compileRange(n ast.Range) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	if n.Start != nil {
		prog.Append(c.compileExpr(n.Start))
	} else {
		prog.Add(ValueInstr(NullValue()), n.Span())
	}
	if n.End != nil {
		prog.Append(c.compileExpr(n.End))
	} else {
		prog.Add(ValueInstr(NullValue()), n.Span())
	}
	prog.Add(Simple(OpRange), n.Span())
	return prog
}

func (c *Compiler) compileBinary(n ast.Binary) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	switch n.Op {
	case "and":
		endLabel := c.newLabel()
		prog.Append(c.compileExpr(n.Left))
		prog.Add(Simple(OpDup), n.Span())
		prog.Add(IfFalse(endLabel), n.Span())
		prog.Add(Simple(OpPop), n.Span())
		prog.Append(c.compileExpr(n.Right))
		prog.Add(LabelInstr(endLabel), n.Span())
		return prog
	case "or":
		endLabel := c.newLabel()
		prog.Append(c.compileExpr(n.Left))
		prog.Add(Simple(OpDup), n.Span())
		prog.Add(IfTrue(endLabel), n.Span())
		prog.Add(Simple(OpPop), n.Span())
		prog.Append(c.compileExpr(n.Right))
		prog.Add(LabelInstr(endLabel), n.Span())
		return prog
	}
	prog.Append(c.compileExpr(n.Left))
	prog.Append(c.compileExpr(n.Right))
	op, ok := binaryOpcodes[n.Op]
	if !ok {
		panic(&DeveloperError{Message: fmt.Sprintf("unknown binary operator %q", n.Op)})
	}
	prog.Add(Simple(op), n.Span())
	return prog
}

func (c *Compiler) compileCall(n ast.Call) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	if ident, ok := n.Callee.(ast.Ident); ok {
		if fn, arity, ok := LookupStdlib(ident.Name); ok {
			argc := len(n.Args)
			if argc < arity.Min || (arity.Max >= 0 && argc > arity.Max) {
				panic(&SemanticError{
					Message: fmt.Sprintf("%s expects %s, got %d", ident.Name, arityDesc(arity.Min, arity.Max), argc),
					Span:    spanPtr(n.Span()),
				})
			}
			switch fn {
			case StdlibAll, StdlibAny, StdlibMax, StdlibMin, StdlibSum, StdlibProduct:
				if argc == 1 {
					prog.Append(c.compileExpr(n.Args[0]))
				} else {
					for _, a := range n.Args {
						prog.Append(c.compileExpr(a))
					}
					prog.Add(CreateTuple(argc), n.Span())
				}
				prog.Add(StdlibCall(fn, 1), n.Span())
			default:
				for _, a := range n.Args {
					prog.Append(c.compileExpr(a))
				}
				prog.Add(StdlibCall(fn, argc), n.Span())
			}
			return prog
		}
	}
	prog.Append(c.compileExpr(n.Callee))
	for _, a := range n.Args {
		prog.Append(c.compileExpr(a))
	}
	prog.Add(Call(len(n.Args)), n.Span())
	return prog
}

func (c *Compiler) compileMethodCall(n ast.MethodCall) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	m, arity, ok := LookupMethod(n.Name)
	if !ok {
		panic(&SemanticError{Message: fmt.Sprintf("unknown method %q", n.Name), Span: spanPtr(n.Span())})
	}
	argc := len(n.Args)
	if argc < arity.Min || argc > arity.Max {
		panic(&SemanticError{
			Message: fmt.Sprintf("%s expects %s, got %d", n.Name, arityDesc(arity.Min, arity.Max), argc),
			Span:    spanPtr(n.Span()),
		})
	}
	prog.Append(c.compileExpr(n.Receiver))
	for _, a := range n.Args {
		prog.Append(c.compileExpr(a))
	}
	prog.Add(MethodCall(m, argc), n.Span())
	return prog
}

func (c *Compiler) compileIf(n ast.If) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	elseLabel := c.newLabel()
	endLabel := c.newLabel()
	prog.Append(c.compileExpr(n.Cond))
	prog.Add(IfFalse(elseLabel), n.Span())
	prog.Append(c.compileExpr(n.Then))
	prog.Add(Goto(endLabel), n.Span())
	prog.Add(LabelInstr(elseLabel), n.Span())
	if n.Else != nil {
		prog.Append(c.compileExpr(n.Else))
	} else {
		prog.Add(ValueInstr(NullValue()), n.Span())
	}
	prog.Add(LabelInstr(endLabel), n.Span())
	return prog
}

// compileWhile and compileFor implement the loop stack-layout protocol: a
// synthetic local captures the stack pointer one-past-loop-entry (OLD_SP),
// a sentinel result value is pushed, and each iteration's body value
// replaces the sentinel in place (Swap;Pop). break/continue truncate the
// stack back to the sentinel via SetStackPtr before jumping.
func (c *Compiler) compileWhile(n ast.While) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	spOff := c.mustOffset(loopSPName(n.Span()), n.Span())
	condLabel := c.newLabel()
	endLabel := c.newLabel()

	prog.Add(Simple(OpGetStackPtr), n.Span())
	prog.Add(ConstantInt(1), n.Span())
	prog.Add(Simple(OpAdd), n.Span())
	c.emitAddr(prog, spOff, n.Span())
	prog.Add(Simple(OpStore), n.Span())
	prog.Add(Simple(OpPop), n.Span())

	prog.Add(ValueInstr(NullValue()), n.Span())

	prog.Add(LabelInstr(condLabel), n.Span())
	prog.Append(c.compileExpr(n.Cond))
	prog.Add(IfFalse(endLabel), n.Span())

	c.loopStack = append(c.loopStack, loopCtx{continueLabel: condLabel, endLabel: endLabel, spOffset: spOff})
	prog.Append(c.compileExpr(n.Body))
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	prog.Add(Simple(OpSwap), n.Span())
	prog.Add(Simple(OpPop), n.Span())

	prog.Add(Goto(condLabel), n.Span())
	prog.Add(LabelInstr(endLabel), n.Span())
	return prog
}

func (c *Compiler) compileFor(n ast.For) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	iterOff := c.mustOffset(loopIterName(n.Span()), n.Span())
	spOff := c.mustOffset(loopSPName(n.Span()), n.Span())
	condLabel := c.newLabel()
	endLabel := c.newLabel()

	prog.Append(c.compileExpr(n.Iterable))
	prog.Add(Simple(OpToIter), n.Span())
	c.emitAddr(prog, iterOff, n.Span())
	prog.Add(Simple(OpStore), n.Span())
	prog.Add(Simple(OpPop), n.Span())

	prog.Add(Simple(OpGetStackPtr), n.Span())
	prog.Add(ConstantInt(1), n.Span())
	prog.Add(Simple(OpAdd), n.Span())
	c.emitAddr(prog, spOff, n.Span())
	prog.Add(Simple(OpStore), n.Span())
	prog.Add(Simple(OpPop), n.Span())

	prog.Add(ValueInstr(NullValue()), n.Span())

	prog.Add(LabelInstr(condLabel), n.Span())
	c.emitAddr(prog, iterOff, n.Span())
	prog.Add(Simple(OpLoad), n.Span())
	prog.Add(Simple(OpNextIter), n.Span())
	prog.Add(IfFalse(endLabel), n.Span())

	prog.Append(c.compilePatternStore(n.Pattern))
	prog.Add(Simple(OpPop), n.Span())

	c.loopStack = append(c.loopStack, loopCtx{continueLabel: condLabel, endLabel: endLabel, spOffset: spOff})
	prog.Append(c.compileExpr(n.Body))
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	prog.Add(Simple(OpSwap), n.Span())
	prog.Add(Simple(OpPop), n.Span())

	prog.Add(Goto(condLabel), n.Span())
	prog.Add(LabelInstr(endLabel), n.Span())
	return prog
}

// compileListComp mirrors compileFor but accumulates into a list sentinel
// via MethodCall(Append) instead of replacing it, and supports the
// supplemented filter clause (SPEC_FULL.md §12.1) by skipping the append
// when the filter is falsy.
func (c *Compiler) compileListComp(n ast.ListComp) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	iterOff := c.mustOffset(loopIterName(n.Span()), n.Span())
	spOff := c.mustOffset(loopSPName(n.Span()), n.Span())
	condLabel := c.newLabel()
	endLabel := c.newLabel()
	skipLabel := c.newLabel()

	prog.Append(c.compileExpr(n.Iterable))
	prog.Add(Simple(OpToIter), n.Span())
	c.emitAddr(prog, iterOff, n.Span())
	prog.Add(Simple(OpStore), n.Span())
	prog.Add(Simple(OpPop), n.Span())

	prog.Add(Simple(OpGetStackPtr), n.Span())
	prog.Add(ConstantInt(1), n.Span())
	prog.Add(Simple(OpAdd), n.Span())
	c.emitAddr(prog, spOff, n.Span())
	prog.Add(Simple(OpStore), n.Span())
	prog.Add(Simple(OpPop), n.Span())

	prog.Add(ValueInstr(ListValue(nil)), n.Span())

	prog.Add(LabelInstr(condLabel), n.Span())
	c.emitAddr(prog, iterOff, n.Span())
	prog.Add(Simple(OpLoad), n.Span())
	prog.Add(Simple(OpNextIter), n.Span())
	prog.Add(IfFalse(endLabel), n.Span())

	prog.Append(c.compilePatternStore(n.Pattern))
	prog.Add(Simple(OpPop), n.Span())

	c.loopStack = append(c.loopStack, loopCtx{continueLabel: condLabel, endLabel: endLabel, spOffset: spOff})
	if n.Filter != nil {
		prog.Append(c.compileExpr(n.Filter))
		prog.Add(IfFalse(skipLabel), n.Span())
	}
	prog.Append(c.compileExpr(n.Body))
	prog.Add(MethodCall(MethodAppend, 1), n.Span())
	if n.Filter != nil {
		prog.Add(LabelInstr(skipLabel), n.Span())
	}
	c.loopStack = c.loopStack[:len(c.loopStack)-1]

	prog.Add(Goto(condLabel), n.Span())
	prog.Add(LabelInstr(endLabel), n.Span())
	return prog
}

func (c *Compiler) compileBreak(n ast.Break) *Program[Instruction] {
	if len(c.loopStack) == 0 {
		panic(&SemanticError{Message: "break outside of a loop", Span: spanPtr(n.Span())})
	}
	top := c.loopStack[len(c.loopStack)-1]
	prog := NewProgram[Instruction]()
	c.emitAddr(prog, top.spOffset, n.Span())
	prog.Add(Simple(OpLoad), n.Span())
	prog.Add(Simple(OpSetStackPtr), n.Span())
	if n.Value != nil {
		prog.Append(c.compileExpr(n.Value))
		prog.Add(Simple(OpSwap), n.Span())
		prog.Add(Simple(OpPop), n.Span())
	}
	prog.Add(Goto(top.endLabel), n.Span())
	return prog
}

func (c *Compiler) compileContinue(n ast.Continue) *Program[Instruction] {
	if len(c.loopStack) == 0 {
		panic(&SemanticError{Message: "continue outside of a loop", Span: spanPtr(n.Span())})
	}
	top := c.loopStack[len(c.loopStack)-1]
	prog := NewProgram[Instruction]()
	c.emitAddr(prog, top.spOffset, n.Span())
	prog.Add(Simple(OpLoad), n.Span())
	prog.Add(Simple(OpSetStackPtr), n.Span())
	prog.Add(Goto(top.continueLabel), n.Span())
	return prog
}

// compileMatch supports constant-pattern arms only (spec.md §9's documented
// limitation): each arm's pattern must fold to a compile-time constant, and
// a value reaching no arm raises a runtime error.
func (c *Compiler) compileMatch(n ast.Match) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	prog.Append(c.compileExpr(n.Value))

	endLabel := c.newLabel()
	noMatchLabel := c.newLabel()
	armLabels := make([]Label, len(n.Arms))
	for i := range n.Arms {
		armLabels[i] = c.newLabel()
	}

	for i, arm := range n.Arms {
		lit, ok := arm.Pattern.(ast.LiteralPattern)
		if !ok {
			panic(&SemanticError{Message: "match arms support literal patterns only", Span: spanPtr(arm.Pattern.Span())})
		}
		patVal, ok := evalSimpleConstant(lit.Value)
		if !ok {
			panic(&SemanticError{Message: "match arm pattern must be a constant", Span: spanPtr(lit.Span())})
		}
		prog.Add(Simple(OpDup), arm.Pattern.Span())
		prog.Add(ValueInstr(patVal), arm.Pattern.Span())
		prog.Add(Simple(OpEq), arm.Pattern.Span())
		prog.Add(IfTrue(armLabels[i]), arm.Pattern.Span())
	}
	prog.Add(Goto(noMatchLabel), n.Span())

	for i, arm := range n.Arms {
		prog.Add(LabelInstr(armLabels[i]), arm.Body.Span())
		prog.Add(Simple(OpPop), arm.Body.Span())
		prog.Append(c.compileExpr(arm.Body))
		prog.Add(Goto(endLabel), arm.Body.Span())
	}

	prog.Add(LabelInstr(noMatchLabel), n.Span())
	prog.Add(RuntimeErrorInstr("No arm matched the value"), n.Span())

	prog.Add(LabelInstr(endLabel), n.Span())
	return prog
}

// compileFuncLit emits: push a Function IR value (arity, memoized flag,
// body label), jump over the body, then compile the body in a brand new
// child frame whose own pre-pass reserves its parameters at offsets
// 0..arity and its locals above them.
func (c *Compiler) compileFuncLit(n ast.FuncLit) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	bodyLabel := c.newLabel()
	endLabel := c.newLabel()

	prog.Add(ValueInstr(FunctionValue(IrFunction{
		Location: bodyLabel,
		Arity:    len(n.Params),
		Memoized: n.Memoized,
	})), n.Span())
	prog.Add(Goto(endLabel), n.Span())

	prog.Add(LabelInstr(bodyLabel), n.Span())
	child := c.spawnChild()
	for i, p := range n.Params {
		child.vars.SetLocal(p, i)
	}
	child.nextOffset = len(n.Params)
	prog.Append(child.allocateLocals(n.Body))
	prog.Append(child.compileExpr(n.Body))
	prog.Add(Simple(OpReturn), n.Span())

	prog.Add(LabelInstr(endLabel), n.Span())
	return prog
}

// compileListLit builds a list of possibly-non-constant elements by packing
// them into a tuple and converting: there is no dedicated CreateList
// instruction, only CreateTuple and the ToList stdlib conversion.
func (c *Compiler) compileListLit(n ast.ListLit) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	for _, el := range n.Elems {
		prog.Append(c.compileExpr(el))
	}
	prog.Add(CreateTuple(len(n.Elems)), n.Span())
	prog.Add(StdlibCall(StdlibToList, 1), n.Span())
	return prog
}

// compileMapLit packs each key/value pair into a 2-tuple, packs those pairs
// into an outer tuple, and converts via ToMap, reusing CreateTuple rather
// than introducing a dedicated map-literal instruction.
func (c *Compiler) compileMapLit(n ast.MapLit) *Program[Instruction] {
	prog := NewProgram[Instruction]()
	for i := range n.Keys {
		prog.Append(c.compileExpr(n.Keys[i]))
		prog.Append(c.compileExpr(n.Values[i]))
		prog.Add(CreateTuple(2), n.Span())
	}
	prog.Add(CreateTuple(len(n.Keys)), n.Span())
	prog.Add(StdlibCall(StdlibToMap, 1), n.Span())
	return prog
}
