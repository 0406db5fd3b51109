package gofj

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperandIR(t *testing.T) {
	assert.Equal(t, "LF@x", Var(LocalFrame, "x", TypeInt).IR())
	assert.Equal(t, "GF@$R0", Var(GlobalFrame, "$R0", TypeInt).IR())
	assert.Equal(t, "int@42", IntOperand(42).IR())
	assert.Equal(t, "bool@true", BoolOperand(true).IR())
	assert.Equal(t, "nil@nil", NilOperand().IR())
	assert.Equal(t, `string@hi`, StringOperand("hi").IR())
}

func TestOperandType(t *testing.T) {
	assert.Equal(t, TypeInt, IntOperand(1).Type())
	assert.Equal(t, TypeFloat, FloatOperand(1.5).Type())
	assert.Equal(t, TypeString, StringOperand("x").Type())
}

func TestFormatHexFloatZero(t *testing.T) {
	assert.Equal(t, "0x0p+0", FormatHexFloat(0))
	assert.Equal(t, "-0x0p+0", FormatHexFloat(math.Copysign(0, -1)))
}

func TestFormatHexFloatNonZeroRoundTrips(t *testing.T) {
	s := FormatHexFloat(1.5)
	assert.True(t, strings.HasPrefix(s, "0x1.8p"))
}

func TestEscapeIRString(t *testing.T) {
	assert.Equal(t, "hello", EscapeIRString("hello"))
	assert.Equal(t, `a\035b`, EscapeIRString("a#b"))
	assert.Equal(t, `a\092b`, EscapeIRString(`a\b`))
	assert.Equal(t, `a\010b`, EscapeIRString("a\nb"))
	assert.Equal(t, `a\032b`, EscapeIRString("a b"))
}

func TestEmitterHeader(t *testing.T) {
	var buf strings.Builder
	e := NewEmitter(&buf)
	e.Header()

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, ".IFJcode24\n"))
	assert.Contains(t, out, "DEFVAR GF@$R0")
	assert.Contains(t, out, "DEFVAR GF@$S2")
	assert.True(t, strings.HasSuffix(out, "JUMP main\n"))
}

func TestEmitterBasicInstructions(t *testing.T) {
	var buf strings.Builder
	e := NewEmitter(&buf)

	e.Label("foo")
	e.DefVar(LocalFrame, "x")
	e.Move(LocalFrame, "x", IntOperand(1))
	e.PushS(Var(LocalFrame, "x", TypeInt))
	e.PopS(GlobalFrame, "$R0")
	e.AddS()
	e.Call("foo")
	e.Return()
	e.Exit(IntOperand(0))

	want := strings.Join([]string{
		"LABEL foo",
		"DEFVAR LF@x",
		"MOVE LF@x int@1",
		"PUSHS LF@x",
		"POPS GF@$R0",
		"ADDS",
		"CALL foo",
		"RETURN",
		"EXIT int@0",
		"",
	}, "\n")

	assert.Equal(t, want, buf.String())
}

func TestEmitterReadTypeName(t *testing.T) {
	var buf strings.Builder
	e := NewEmitter(&buf)
	e.Read(LocalFrame, "s", TypeNullableString)

	assert.Equal(t, "READ LF@s string\n", buf.String())
}

func TestEmitterReadPanicsOnNonNullableType(t *testing.T) {
	var buf strings.Builder
	e := NewEmitter(&buf)

	assert.Panics(t, func() { e.Read(LocalFrame, "s", TypeInt) })
}

func TestEmitterComment(t *testing.T) {
	var buf strings.Builder
	e := NewEmitter(&buf)
	e.Comment("inline #%d", 3)

	assert.Equal(t, "# inline #3\n", buf.String())
}
