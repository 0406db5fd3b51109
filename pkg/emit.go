package gofj

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Frame is one of the IR's three variable storage areas (spec §4.7,
// GLOSSARY).
type Frame string

const (
	GlobalFrame    Frame = "GF"
	LocalFrame     Frame = "LF"
	TemporaryFrame Frame = "TF"
)

// Operand is anything that can sit on the right-hand side of a MOVE,
// PUSHS or built-in call: either a frame-qualified variable or a typed
// literal already rendered to its `kind@value` textual form.
type Operand struct {
	typ     Type
	varRef  bool
	frame   Frame
	name    string
	literal string
}

// Var builds an operand referencing a frame-qualified variable.
func Var(frame Frame, name string, typ Type) Operand {
	return Operand{typ: typ, varRef: true, frame: frame, name: name}
}

// IntOperand, FloatOperand, StringOperand, BoolOperand and NilOperand build
// literal operands of their respective IR encodings.
func IntOperand(v int64) Operand {
	return Operand{typ: TypeInt, literal: fmt.Sprintf("int@%d", v)}
}

func FloatOperand(v float64) Operand {
	return Operand{typ: TypeFloat, literal: fmt.Sprintf("float@%s", FormatHexFloat(v))}
}

func StringOperand(s string) Operand {
	return Operand{typ: TypeString, literal: fmt.Sprintf("string@%s", EscapeIRString(s))}
}

func BoolOperand(v bool) Operand {
	return Operand{typ: TypeBool, literal: fmt.Sprintf("bool@%t", v)}
}

func NilOperand() Operand {
	return Operand{typ: TypeNull, literal: "nil@nil"}
}

func (o Operand) Type() Type { return o.typ }

// IR renders the operand's textual form, e.g. "LF@x" or "int@5".
func (o Operand) IR() string {
	if o.varRef {
		return string(o.frame) + "@" + o.name
	}

	return o.literal
}

// FormatHexFloat renders v as a C99 %a-style hex float, the exact encoding
// spec §4.7/§6 mandates for float literals in the emitted IR.
func FormatHexFloat(v float64) string {
	if v == 0 {
		if math.Signbit(v) {
			return "-0x0p+0"
		}

		return "0x0p+0"
	}

	s := strconv.FormatFloat(v, 'x', -1, 64)
	// Go already renders "0x1.4p+02"-shaped output; IFJcode24 is happy with
	// Go's own %x exponent padding, so no further massaging is needed.
	return s
}

// EscapeIRString re-encodes a decoded byte-string so every character the
// target IR treats specially is emitted as a three-digit decimal escape
// \NNN, per spec §4.7. The lexer stores strings already decoded (escapes
// resolved); escape re-encoding for emission is entirely this function's
// job.
func EscapeIRString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c <= ' ' || c == '#' || c == '\\':
			fmt.Fprintf(&b, "\\%03d", c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// Emitter writes the unbuffered, instruction-per-line IFJcode24 textual IR.
// It is a stateful builder exposing one method per mnemonic used by the
// parser, one emission method per target construct.
type Emitter struct {
	w io.Writer
}

func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w}
}

func (e *Emitter) line(format string, args ...interface{}) {
	fmt.Fprintf(e.w, format+"\n", args...)
}

// Header emits the program preamble: the format marker, the four global
// result registers and eight operand registers, and the unconditional
// jump into main. Called exactly once, before any function body.
func (e *Emitter) Header() {
	e.line(".IFJcode24")
	for _, r := range []string{"$R0", "$F0", "$B0", "$S0", "$R1", "$R2", "$F1", "$F2", "$B1", "$B2", "$S1", "$S2"} {
		e.line("DEFVAR GF@%s", r)
	}
	e.line("JUMP main")
}

func (e *Emitter) Label(name string)          { e.line("LABEL %s", name) }
func (e *Emitter) Jump(label string)           { e.line("JUMP %s", label) }
func (e *Emitter) JumpIfEq(label string, a, b Operand) {
	e.line("JUMPIFEQ %s %s %s", label, a.IR(), b.IR())
}
func (e *Emitter) JumpIfNeq(label string, a, b Operand) {
	e.line("JUMPIFNEQ %s %s %s", label, a.IR(), b.IR())
}

func (e *Emitter) CreateFrame() { e.line("CREATEFRAME") }
func (e *Emitter) PushFrame()   { e.line("PUSHFRAME") }
func (e *Emitter) PopFrame()    { e.line("POPFRAME") }

func (e *Emitter) DefVar(frame Frame, name string) { e.line("DEFVAR %s@%s", frame, name) }

func (e *Emitter) Move(frame Frame, name string, src Operand) {
	e.line("MOVE %s@%s %s", frame, name, src.IR())
}

func (e *Emitter) PushS(o Operand)                 { e.line("PUSHS %s", o.IR()) }
func (e *Emitter) PopS(frame Frame, name string)   { e.line("POPS %s@%s", frame, name) }
func (e *Emitter) ClearS()                         { e.line("CLEARS") }

func (e *Emitter) AddS() { e.line("ADDS") }
func (e *Emitter) SubS() { e.line("SUBS") }
func (e *Emitter) MulS() { e.line("MULS") }
func (e *Emitter) DivS() { e.line("DIVS") }
func (e *Emitter) IDivS() { e.line("IDIVS") }

func (e *Emitter) LtS()   { e.line("LTS") }
func (e *Emitter) GtS()   { e.line("GTS") }
func (e *Emitter) EqS()   { e.line("EQS") }
func (e *Emitter) NotS()  { e.line("NOTS") }
func (e *Emitter) AndS()  { e.line("ANDS") }

func (e *Emitter) Int2FloatS() { e.line("INT2FLOATS") }
func (e *Emitter) Float2IntS() { e.line("FLOAT2INTS") }

func (e *Emitter) Call(name string)  { e.line("CALL %s", name) }
func (e *Emitter) Return()           { e.line("RETURN") }
func (e *Emitter) Exit(code Operand) { e.line("EXIT %s", code.IR()) }

func (e *Emitter) Write(o Operand) { e.line("WRITE %s", o.IR()) }
func (e *Emitter) Read(frame Frame, name string, typ Type) {
	e.line("READ %s@%s %s", frame, name, readTypeName(typ))
}

func readTypeName(typ Type) string {
	switch typ {
	case TypeNullableInt:
		return "int"
	case TypeNullableFloat:
		return "float"
	case TypeNullableString:
		return "string"
	default:
		panic("gofj: READ of non-nullable type " + typ.String())
	}
}

func (e *Emitter) Int2Float(frame Frame, dst string, src Operand) {
	e.line("INT2FLOAT %s@%s %s", frame, dst, src.IR())
}

func (e *Emitter) Float2Int(frame Frame, dst string, src Operand) {
	e.line("FLOAT2INT %s@%s %s", frame, dst, src.IR())
}

func (e *Emitter) Int2Char(frame Frame, dst string, src Operand) {
	e.line("INT2CHAR %s@%s %s", frame, dst, src.IR())
}

func (e *Emitter) Stri2Int(frame Frame, dst string, str, pos Operand) {
	e.line("STRI2INT %s@%s %s %s", frame, dst, str.IR(), pos.IR())
}

func (e *Emitter) StrLen(frame Frame, dst string, src Operand) {
	e.line("STRLEN %s@%s %s", frame, dst, src.IR())
}

func (e *Emitter) Concat(frame Frame, dst string, a, b Operand) {
	e.line("CONCAT %s@%s %s %s", frame, dst, a.IR(), b.IR())
}

func (e *Emitter) GetChar(frame Frame, dst string, str, idx Operand) {
	e.line("GETCHAR %s@%s %s %s", frame, dst, str.IR(), idx.IR())
}

func (e *Emitter) Type(frame Frame, dst string, src Operand) {
	e.line("TYPE %s@%s %s", frame, dst, src.IR())
}

// Comment writes an unbuffered comment line (`#`), used sparingly around
// inlined built-in expansions to keep the generated IR navigable.
func (e *Emitter) Comment(format string, args ...interface{}) {
	e.line("# "+format, args...)
}
