package gofj

import "fmt"

// builtinEntry describes one catalog entry (spec §4.6). Types are taken
// verbatim from original_source/zig-compiler/src/shared.c's
// embedded_names/embedded_return_types/embedded_parameters tables.
type builtinEntry struct {
	Name   string
	Return Type
	Params []Type
	Emit   func(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError
}

func (b builtinEntry) symbol() *FunctionSymbol {
	params := make([]*VariableSymbol, len(b.Params))
	for i, t := range b.Params {
		params[i] = &VariableSymbol{Name: fmt.Sprintf("p%d", i), Type: t, Defined: true, Used: true, IsParam: true}
	}

	return &FunctionSymbol{Name: b.Name, ReturnType: b.Return, Params: params, Builtin: true, ReturnSeen: true}
}

var builtinCatalog = []builtinEntry{
	{Name: "readstr", Return: TypeNullableString, Emit: emitRead(TypeNullableString)},
	{Name: "readi32", Return: TypeNullableInt, Emit: emitRead(TypeNullableInt)},
	{Name: "readf64", Return: TypeNullableFloat, Emit: emitRead(TypeNullableFloat)},
	{Name: "write", Return: TypeVoid, Params: []Type{TypeTerm}, Emit: emitWrite},
	{Name: "i2f", Return: TypeFloat, Params: []Type{TypeInt}, Emit: emitI2F},
	{Name: "f2i", Return: TypeInt, Params: []Type{TypeFloat}, Emit: emitF2I},
	{Name: "string", Return: TypeString, Params: []Type{TypeTerm}, Emit: emitString},
	{Name: "length", Return: TypeInt, Params: []Type{TypeString}, Emit: emitLength},
	{Name: "concat", Return: TypeString, Params: []Type{TypeString, TypeString}, Emit: emitConcat},
	{Name: "substring", Return: TypeNullableString, Params: []Type{TypeString, TypeInt, TypeInt}, Emit: emitSubstring},
	{Name: "strcmp", Return: TypeInt, Params: []Type{TypeString, TypeString}, Emit: emitStrcmp},
	{Name: "ord", Return: TypeInt, Params: []Type{TypeString, TypeInt}, Emit: emitOrd},
	{Name: "chr", Return: TypeString, Params: []Type{TypeInt}, Emit: emitChr},
}

func lookupBuiltin(name string) (builtinEntry, bool) {
	for _, b := range builtinCatalog {
		if b.Name == name {
			return b, true
		}
	}

	return builtinEntry{}, false
}

// builtinArgCompatible implements spec §4.6's strict arity+type check: no
// nullable promotion beyond what the catalog demands. TypeTerm accepts any
// primitive, nullable or not, and the bare null literal.
func builtinArgCompatible(param, arg Type) bool {
	if param == TypeTerm {
		switch arg {
		case TypeInt, TypeFloat, TypeString,
			TypeNullableInt, TypeNullableFloat, TypeNullableString,
			TypeNull:
			return true
		default:
			return false
		}
	}

	return param == arg
}

// builtinCodegen threads the emitter and the per-built-in monotonic label
// counters (spec §4.6/§9: substring, strcmp and ord each carry their own
// counter so inline expansions across multiple call sites never collide).
type builtinCodegen struct {
	e         *Emitter
	substring int
	strcmp    int
	ord       int
	scratch   int // unique suffix for boolExpr's temporary-frame booleans
}

func newBuiltinCodegen(e *Emitter) *builtinCodegen {
	return &builtinCodegen{e: e}
}

// scratchReg returns one of the four pre-declared global result registers
// to use as a destination when a builtin's result is discarded
// (`_ = ifj...`) rather than assigned to a named variable.
func scratchReg(t Type) Operand {
	switch base(t) {
	case TypeInt:
		return Var(GlobalFrame, "$R0", t)
	case TypeFloat:
		return Var(GlobalFrame, "$F0", t)
	case TypeString:
		return Var(GlobalFrame, "$S0", t)
	default:
		return Var(GlobalFrame, "$B0", t)
	}
}

func base(t Type) Type {
	if t.IsNullable() {
		return t.Denullify()
	}

	return t
}

func destOf(dst *Operand, t Type) Operand {
	if dst != nil {
		return *dst
	}

	return scratchReg(t)
}

// EmitBuiltinCall emits the instruction sequence for one call to a
// cataloged built-in. args must already have passed builtinArgCompatible
// checks for every parameter position. dst is nil when the result is
// discarded (bare statement or `_ = ...`).
//
// Register clobbers, resolving spec §9's open question: every helper below
// writes only to the requested destination and, for the inlined ord,
// strcmp and substring expansions, to TF@ temporaries ($ord_len, $cmp_*,
// $sub_*, $bxN). None of them writes a GF@ register (the operand registers
// $R1/$R2/$F1/$F2/$B1/$B2/$S1/$S2 are never touched) unless a result
// register ($R0/$F0/$B0/$S0) is itself the destination (the discard case
// above).
func EmitBuiltinCall(bc *builtinCodegen, name string, args []Operand, dst *Operand) (Type, *CompileError) {
	entry, ok := lookupBuiltin(name)
	if !ok {
		return 0, errf(ExitUndefined, 0, "undefined built-in function %q", name)
	}

	if len(args) != len(entry.Params) {
		return 0, errf(ExitArity, 0, "ifj.%s expects %d argument(s), got %d", name, len(entry.Params), len(args))
	}

	for i, p := range entry.Params {
		if !builtinArgCompatible(p, args[i].Type()) {
			return 0, errf(ExitTypeMismatch, 0, "ifj.%s argument %d: cannot use %s as %s", name, i+1, args[i].Type(), p)
		}
	}

	if err := entry.Emit(bc, args, dst); err != nil {
		return 0, err
	}

	return entry.Return, nil
}

// emitRead builds the emission routine of one read built-in; typ is that
// built-in's own nullable return type and selects READ's type operand.
func emitRead(typ Type) func(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	return func(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
		d := destOf(dst, typ)
		bc.e.Read(d.frame, d.name, typ)
		return nil
	}
}

func emitWrite(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	bc.e.Write(args[0])
	return nil
}

func emitI2F(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	d := destOf(dst, TypeFloat)
	bc.e.Int2Float(d.frame, d.name, args[0])
	return nil
}

func emitF2I(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	d := destOf(dst, TypeInt)
	bc.e.Float2Int(d.frame, d.name, args[0])
	return nil
}

func emitString(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	d := destOf(dst, TypeString)
	bc.e.Move(d.frame, d.name, args[0])
	return nil
}

func emitLength(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	d := destOf(dst, TypeInt)
	bc.e.StrLen(d.frame, d.name, args[0])
	return nil
}

func emitConcat(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	d := destOf(dst, TypeString)
	bc.e.Concat(d.frame, d.name, args[0], args[1])
	return nil
}

func emitChr(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	d := destOf(dst, TypeString)
	bc.e.Int2Char(d.frame, d.name, args[0])
	return nil
}

// boolExpr pushes a two-operand relational comparison, applies op (one of
// the emitter's *S relational mnemonics, possibly composed with NOTS for
// >=/<=), and pops the single resulting boolean into a fresh
// temporary-frame variable. It exists so the guard clauses in emitSubstring
// and emitOrd read as a sequence of named conditions instead of manual
// stack juggling repeated at every call site.
func (bc *builtinCodegen) boolExpr(a, b Operand, op func()) Operand {
	bc.scratch++
	name := fmt.Sprintf("$bx%d", bc.scratch)
	bc.e.DefVar(TemporaryFrame, name)
	bc.e.PushS(a)
	bc.e.PushS(b)
	op()
	bc.e.PopS(TemporaryFrame, name)
	return Var(TemporaryFrame, name, TypeBool)
}

func (bc *builtinCodegen) lt(a, b Operand) Operand  { return bc.boolExpr(a, b, bc.e.LtS) }
func (bc *builtinCodegen) gt(a, b Operand) Operand  { return bc.boolExpr(a, b, bc.e.GtS) }
func (bc *builtinCodegen) eq(a, b Operand) Operand  { return bc.boolExpr(a, b, bc.e.EqS) }
func (bc *builtinCodegen) geq(a, b Operand) Operand {
	return bc.boolExpr(a, b, func() { bc.e.LtS(); bc.e.NotS() })
}

// emitOrd inlines bounds-checked character-ordinal lookup: ord(s, k) with
// k out of range ([0, length(s))) yields 0 rather than faulting, per
// spec §8.
func emitOrd(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	bc.ord++
	n := bc.ord
	e := bc.e
	d := destOf(dst, TypeInt)

	str, pos := args[0], args[1]

	outOfRange := fmt.Sprintf("ord$oor$%d", n)
	done := fmt.Sprintf("ord$done$%d", n)

	e.Comment("ord inline #%d", n)
	e.DefVar(TemporaryFrame, "$ord_len")
	e.StrLen(TemporaryFrame, "$ord_len", str)

	e.JumpIfEq(outOfRange, bc.lt(pos, IntOperand(0)), BoolOperand(true))
	e.JumpIfEq(outOfRange, bc.geq(pos, Var(TemporaryFrame, "$ord_len", TypeInt)), BoolOperand(true))

	e.Stri2Int(d.frame, d.name, str, pos)
	e.Jump(done)

	e.Label(outOfRange)
	e.Move(d.frame, d.name, IntOperand(0))

	e.Label(done)
	return nil
}

// emitStrcmp inlines a lexicographic byte-wise comparison returning -1, 0
// or 1, the IFJcode24 convention for strcmp's result.
func emitStrcmp(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	bc.strcmp++
	n := bc.strcmp
	e := bc.e
	d := destOf(dst, TypeInt)

	a, b := args[0], args[1]

	loop := fmt.Sprintf("strcmp$loop$%d", n)
	aExhausted := fmt.Sprintf("strcmp$aexh$%d", n)
	bExhaustedOrGreater := fmt.Sprintf("strcmp$bexh$%d", n)
	neq := fmt.Sprintf("strcmp$neq$%d", n)
	done := fmt.Sprintf("strcmp$done$%d", n)

	e.Comment("strcmp inline #%d", n)
	e.DefVar(TemporaryFrame, "$cmp_i")
	e.DefVar(TemporaryFrame, "$cmp_la")
	e.DefVar(TemporaryFrame, "$cmp_lb")
	e.DefVar(TemporaryFrame, "$cmp_ca")
	e.DefVar(TemporaryFrame, "$cmp_cb")
	e.Move(TemporaryFrame, "$cmp_i", IntOperand(0))
	e.StrLen(TemporaryFrame, "$cmp_la", a)
	e.StrLen(TemporaryFrame, "$cmp_lb", b)

	e.Label(loop)
	e.JumpIfEq(aExhausted, bc.geq(Var(TemporaryFrame, "$cmp_i", TypeInt), Var(TemporaryFrame, "$cmp_la", TypeInt)), BoolOperand(true))
	e.JumpIfEq(bExhaustedOrGreater, bc.geq(Var(TemporaryFrame, "$cmp_i", TypeInt), Var(TemporaryFrame, "$cmp_lb", TypeInt)), BoolOperand(true))

	e.GetChar(TemporaryFrame, "$cmp_ca", a, Var(TemporaryFrame, "$cmp_i", TypeInt))
	e.GetChar(TemporaryFrame, "$cmp_cb", b, Var(TemporaryFrame, "$cmp_i", TypeInt))
	e.JumpIfNeq(neq, Var(TemporaryFrame, "$cmp_ca", TypeString), Var(TemporaryFrame, "$cmp_cb", TypeString))

	e.PushS(Var(TemporaryFrame, "$cmp_i", TypeInt))
	e.PushS(IntOperand(1))
	e.AddS()
	e.PopS(TemporaryFrame, "$cmp_i")
	e.Jump(loop)

	e.Label(neq)
	e.JumpIfEq(bExhaustedOrGreater, bc.gt(Var(TemporaryFrame, "$cmp_ca", TypeString), Var(TemporaryFrame, "$cmp_cb", TypeString)), BoolOperand(true))
	e.Move(d.frame, d.name, IntOperand(-1))
	e.Jump(done)

	e.Label(bExhaustedOrGreater)
	e.Move(d.frame, d.name, IntOperand(1))
	e.Jump(done)

	e.Label(aExhausted)
	e.Move(d.frame, d.name, IntOperand(0))
	e.JumpIfEq(done, bc.eq(Var(TemporaryFrame, "$cmp_la", TypeInt), Var(TemporaryFrame, "$cmp_lb", TypeInt)), BoolOperand(true))
	e.Move(d.frame, d.name, IntOperand(-1))

	e.Label(done)
	return nil
}

// emitSubstring inlines bounds validation (null on start<0, end<0,
// start>end, start>=length or end>length), an empty-range shortcut
// (start==end), and a character-by-character copy loop otherwise, per
// spec §4.6/§8.
func emitSubstring(bc *builtinCodegen, args []Operand, dst *Operand) *CompileError {
	bc.substring++
	n := bc.substring
	e := bc.e
	d := destOf(dst, TypeNullableString)

	str, start, end := args[0], args[1], args[2]

	null := fmt.Sprintf("substring$null$%d", n)
	empty := fmt.Sprintf("substring$empty$%d", n)
	loop := fmt.Sprintf("substring$loop$%d", n)
	copyDone := fmt.Sprintf("substring$copydone$%d", n)
	fin := fmt.Sprintf("substring$fin$%d", n)

	e.Comment("substring inline #%d", n)
	e.DefVar(TemporaryFrame, "$sub_len")
	e.StrLen(TemporaryFrame, "$sub_len", str)

	e.JumpIfEq(null, bc.lt(start, IntOperand(0)), BoolOperand(true))
	e.JumpIfEq(null, bc.lt(end, IntOperand(0)), BoolOperand(true))
	e.JumpIfEq(null, bc.gt(start, end), BoolOperand(true))
	e.JumpIfEq(null, bc.geq(start, Var(TemporaryFrame, "$sub_len", TypeInt)), BoolOperand(true))
	e.JumpIfEq(null, bc.gt(end, Var(TemporaryFrame, "$sub_len", TypeInt)), BoolOperand(true))

	e.JumpIfEq(empty, bc.eq(start, end), BoolOperand(true))

	e.DefVar(TemporaryFrame, "$sub_i")
	e.DefVar(TemporaryFrame, "$sub_acc")
	e.DefVar(TemporaryFrame, "$sub_c")
	e.Move(TemporaryFrame, "$sub_i", start)
	e.Move(TemporaryFrame, "$sub_acc", StringOperand(""))

	e.Label(loop)
	e.JumpIfEq(copyDone, bc.geq(Var(TemporaryFrame, "$sub_i", TypeInt), end), BoolOperand(true))
	e.GetChar(TemporaryFrame, "$sub_c", str, Var(TemporaryFrame, "$sub_i", TypeInt))
	e.Concat(TemporaryFrame, "$sub_acc", Var(TemporaryFrame, "$sub_acc", TypeString), Var(TemporaryFrame, "$sub_c", TypeString))
	e.PushS(Var(TemporaryFrame, "$sub_i", TypeInt))
	e.PushS(IntOperand(1))
	e.AddS()
	e.PopS(TemporaryFrame, "$sub_i")
	e.Jump(loop)

	e.Label(copyDone)
	e.Move(d.frame, d.name, Var(TemporaryFrame, "$sub_acc", TypeString))
	e.Jump(fin)

	e.Label(empty)
	e.Move(d.frame, d.name, StringOperand(""))
	e.Jump(fin)

	e.Label(null)
	e.Move(d.frame, d.name, NilOperand())

	e.Label(fin)
	return nil
}
