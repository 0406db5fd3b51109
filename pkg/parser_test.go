package gofj

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const prelude = `const ifj = @import("ifj24.zig");`

func compileProgram(t *testing.T, body string) (string, *CompileError) {
	t.Helper()
	src := prelude + "\n" + body

	l, err := NewLexer(strings.NewReader(src))
	assert.NoError(t, err)
	stream, cerr := l.Lex()
	if cerr != nil {
		return "", cerr
	}

	global := NewGlobalTable()
	if perr := Preload(stream, global); perr != nil {
		return "", perr
	}

	var buf strings.Builder
	e := NewEmitter(&buf)
	perr := Parse(stream, global, e)
	return buf.String(), perr
}

func TestParsePreludeMalformedFails(t *testing.T) {
	l, err := NewLexer(strings.NewReader(`var x = 1;`))
	assert.NoError(t, err)
	stream, cerr := l.Lex()
	assert.Nil(t, cerr)

	global := NewGlobalTable()
	perr := Parse(stream, global, NewEmitter(&strings.Builder{}))
	assert.Error(t, perr)
	assert.Equal(t, ExitSyntax, perr.Code)
}

func TestParseMainWithImplicitExit(t *testing.T) {
	out, err := compileProgram(t, `pub fn main() void {}`)
	assert.Nil(t, err)
	assert.Contains(t, out, "LABEL main")
	assert.Contains(t, out, "CREATEFRAME")
	assert.Contains(t, out, "PUSHFRAME")
	assert.Contains(t, out, "EXIT int@0")
}

func TestParseConstLiteralFastPath(t *testing.T) {
	out, err := compileProgram(t, `
pub fn main() void {
	const x = 5;
	_ = x;
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "MOVE LF@x int@5")
}

func TestParseVarDeclarationFromExpression(t *testing.T) {
	out, err := compileProgram(t, `
pub fn main() void {
	var x = 1 + 2;
	_ = x;
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "PUSHS int@1")
	assert.Contains(t, out, "ADDS")
	assert.Contains(t, out, "POPS LF@x")
}

func TestParseDeclaredTypeMismatchErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	var x: f64 = 1;
	_ = x;
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitTypeMismatch, err.Code)
}

func TestParseStringLiteralCannotBeStoredInVariable(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	var x = "hi";
	_ = x;
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitTypeMismatch, err.Code)
}

func TestParseBareNullWithoutDeclaredTypeErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	var x = null;
	_ = x;
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitCannotDeriveType, err.Code)
}

func TestParseNullableDeclarationFromNull(t *testing.T) {
	out, err := compileProgram(t, `
pub fn main() void {
	var x: ?i32 = null;
	_ = x;
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "MOVE LF@x nil@nil")
}

func TestParseAssignmentToConstErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	const x = 1;
	x = 2;
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitRedefinition, err.Code)
}

func TestParseAssignmentToUndefinedVariableErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	x = 2;
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitUndefined, err.Code)
}

func TestParseRedeclarationInSameScopeErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	var x = 1;
	var x = 2;
	_ = x;
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitRedefinition, err.Code)
}

func TestParseUnusedVariableErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	var x = 1;
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitUnusedVariable, err.Code)
}

func TestParseDiscardSuppressesUnusedDiagnostic(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	var x = 1;
	_ = x;
}
`)
	assert.Nil(t, err)
}

func TestParseIfValueBranch(t *testing.T) {
	out, err := compileProgram(t, `
pub fn main() void {
	if (1 < 2) {
		var x = 1;
		_ = x;
	} else {
		var y = 2;
		_ = y;
	}
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "LTS")
	assert.Contains(t, out, "LABEL else_0")
	assert.Contains(t, out, "LABEL else_0_end")
}

func TestParseIfConditionMustBeBoolean(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	if (1 + 2) {
	}
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitTypeMismatch, err.Code)
}

func TestParseWhileLoop(t *testing.T) {
	out, err := compileProgram(t, `
pub fn main() void {
	var i = 0;
	while (i < 10) {
		i = i + 1;
	}
	_ = i;
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "LABEL while_0")
	assert.Contains(t, out, "LABEL endwhile_0")
	assert.Contains(t, out, "JUMP while_0")
}

func TestParseNullableIfUnwrapsAndBinds(t *testing.T) {
	out, err := compileProgram(t, `
pub fn main() void {
	var n: ?i32 = null;
	if (n) |bound| {
		_ = bound;
	}
	_ = n;
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "JUMPIFEQ else_0 LF@n nil@nil")
	assert.Contains(t, out, "MOVE LF@bound LF@n")
}

func TestParseNullableIfRejectsNonNullableCondition(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	var n = 1;
	if (n) |bound| {
		_ = bound;
	}
	_ = n;
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitTypeMismatch, err.Code)
}

func TestParseReturnFromVoidFunctionWithValueErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn f() void {
	return 1;
}
pub fn main() void {
	f();
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitMissingExpression, err.Code)
}

func TestParseMainMustNotReturnValue(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	return 1;
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitMissingExpression, err.Code)
}

func TestParseMissingReturnErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn f() i32 {
}
pub fn main() void {
	_ = f();
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitMissingExpression, err.Code)
}

func TestParseReturnValuePushesResultRegister(t *testing.T) {
	out, err := compileProgram(t, `
pub fn f() i32 {
	return 1;
}
pub fn main() void {
	var x = f();
	_ = x;
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "POPS GF@$R0")
	assert.Contains(t, out, "PUSHS GF@$R0")
}

func TestParseCallArityMismatchErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn f(a: i32) void {
}
pub fn main() void {
	f();
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitArity, err.Code)
}

func TestParseCallArgumentTypeMismatchErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn f(a: i32) void {
}
pub fn main() void {
	f("x");
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitTypeMismatch, err.Code)
}

func TestParseCallUsesCreateFrameAndParamBinding(t *testing.T) {
	out, err := compileProgram(t, `
pub fn f(a: i32) void {
}
pub fn main() void {
	f(1);
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "CREATEFRAME")
	assert.Contains(t, out, "DEFVAR TF@PARAM0")
	assert.Contains(t, out, "POPS TF@PARAM0")
	assert.Contains(t, out, "PUSHFRAME")
	assert.Contains(t, out, "CALL f")
}

func TestParseVoidCallStatementDiscardsNothing(t *testing.T) {
	out, err := compileProgram(t, `
pub fn f() void {
}
pub fn main() void {
	f();
}
`)
	assert.Nil(t, err)
	assert.NotContains(t, out, "CLEARS")
}

func TestParseNonVoidCallStatementClearsStack(t *testing.T) {
	out, err := compileProgram(t, `
pub fn f() i32 {
	return 1;
}
pub fn main() void {
	f();
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "CLEARS")
}

func TestParseBuiltinCallStatement(t *testing.T) {
	out, err := compileProgram(t, `
pub fn main() void {
	ifj.write("hello");
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, `WRITE string@hello`)
}

func TestParseBuiltinCallIntoVariable(t *testing.T) {
	out, err := compileProgram(t, `
pub fn main() void {
	var n = ifj.length("hi");
	_ = n;
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "STRLEN LF@n string@hi")
}

func TestParseUndefinedFunctionCallErrors(t *testing.T) {
	_, err := compileProgram(t, `
pub fn main() void {
	missing();
}
`)
	assert.Error(t, err)
	assert.Equal(t, ExitUndefined, err.Code)
}

func TestParseFunctionParametersAreScoped(t *testing.T) {
	out, err := compileProgram(t, `
pub fn double(x: i32) i32 {
	return x + x;
}
pub fn main() void {
	var r = double(21);
	_ = r;
}
`)
	assert.Nil(t, err)
	assert.Contains(t, out, "LABEL double")
	assert.Contains(t, out, "DEFVAR LF@x")
	assert.Contains(t, out, "MOVE LF@x LF@PARAM0")
}
