package gofj

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func preloadSrc(t *testing.T, src string) (*GlobalTable, *CompileError) {
	t.Helper()
	l, err := NewLexer(strings.NewReader(src))
	assert.NoError(t, err)
	stream, cerr := l.Lex()
	assert.Nil(t, cerr)

	global := NewGlobalTable()
	return global, Preload(stream, global)
}

func TestPreloadRegistersSignature(t *testing.T) {
	src := `pub fn add(a: i32, b: i32) i32 { return a + b; }`
	global, err := preloadSrc(t, src)
	assert.Nil(t, err)

	fn, ok := global.Get("add")
	assert.True(t, ok)
	assert.Equal(t, TypeInt, fn.ReturnType)
	assert.Equal(t, 2, fn.Arity())
	assert.Equal(t, "a", fn.Params[0].Name)
	assert.Equal(t, TypeInt, fn.Params[0].Type)
}

func TestPreloadRejectsDuplicateFunction(t *testing.T) {
	src := `
pub fn main() void {}
pub fn main() void {}
`
	_, err := preloadSrc(t, src)
	assert.Error(t, err)
	assert.Equal(t, ExitRedefinition, err.Code)
}

func TestPreloadRejectsNestedFunctionDefinition(t *testing.T) {
	src := `pub fn outer() void { pub fn inner() void {} }`
	_, err := preloadSrc(t, src)
	assert.Error(t, err)
	assert.Equal(t, ExitSyntax, err.Code)
}

func TestPreloadValidatesMainArityAndReturn(t *testing.T) {
	_, err := preloadSrc(t, `pub fn main(a: i32) void {}`)
	assert.Error(t, err)
	assert.Equal(t, ExitArity, err.Code)

	_, err = preloadSrc(t, `pub fn main() i32 {}`)
	assert.Error(t, err)
	assert.Equal(t, ExitArity, err.Code)
}

func TestPreloadHoistsLocalsAndNullableUnwrapBindings(t *testing.T) {
	src := `
pub fn main() void {
	var x = 1;
	const y = 2;
	if (n) |bound| {
		var z = 3;
	}
}
`
	global, err := preloadSrc(t, src)
	assert.Nil(t, err)

	fn, ok := global.Get("main")
	assert.True(t, ok)
	assert.ElementsMatch(t, []string{"x", "y", "bound", "z"}, fn.Locals)
}

func TestPreloadResetsStreamCursor(t *testing.T) {
	l, err := NewLexer(strings.NewReader(`pub fn main() void {}`))
	assert.NoError(t, err)
	stream, cerr := l.Lex()
	assert.Nil(t, cerr)

	global := NewGlobalTable()
	assert.Nil(t, Preload(stream, global))

	assert.Equal(t, 0, stream.Mark())
}

func TestParseTypeTokens(t *testing.T) {
	cases := []struct {
		src  string
		want Type
	}{
		{"void", TypeVoid},
		{"i32", TypeInt},
		{"?i32", TypeNullableInt},
		{"f64", TypeFloat},
		{"?f64", TypeNullableFloat},
		{"[]u8", TypeString},
		{"?[]u8", TypeNullableString},
	}

	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			l, err := NewLexer(strings.NewReader(c.src))
			assert.NoError(t, err)
			stream, cerr := l.Lex()
			assert.Nil(t, cerr)

			got, terr := parseTypeTokens(stream)
			assert.Nil(t, terr)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestParseTypeTokensRejectsGarbage(t *testing.T) {
	l, err := NewLexer(strings.NewReader("123"))
	assert.NoError(t, err)
	stream, cerr := l.Lex()
	assert.Nil(t, cerr)

	_, terr := parseTypeTokens(stream)
	assert.Error(t, terr)
	assert.Equal(t, ExitSyntax, terr.Code)
}
