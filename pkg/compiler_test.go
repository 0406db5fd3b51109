package gofj

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompilerRunSuccessfulProgram(t *testing.T) {
	src := `const ifj = @import("ifj24.zig");
pub fn main() void {
	ifj.write("hello");
}
`
	var out strings.Builder
	c := NewCompiler()
	err := c.Run(strings.NewReader(src), &out)

	assert.Nil(t, err)
	assert.Contains(t, out.String(), ".IFJcode24")
	assert.Contains(t, out.String(), "LABEL main")
	assert.Contains(t, out.String(), "WRITE string@hello")
}

func TestCompilerRunPropagatesLexError(t *testing.T) {
	var out strings.Builder
	c := NewCompiler()
	err := c.Run(strings.NewReader("@bogus"), &out)

	assert.Error(t, err)
	assert.Equal(t, ExitLexical, err.Code)
}

func TestCompilerRunPropagatesPreloadError(t *testing.T) {
	src := `const ifj = @import("ifj24.zig");
pub fn main() void {}
pub fn main() void {}
`
	var out strings.Builder
	c := NewCompiler()
	err := c.Run(strings.NewReader(src), &out)

	assert.Error(t, err)
	assert.Equal(t, ExitRedefinition, err.Code)
}

func TestCompilerRunPropagatesParseError(t *testing.T) {
	src := `const ifj = @import("ifj24.zig");
pub fn main() void {
	undefinedVar = 1;
}
`
	var out strings.Builder
	c := NewCompiler()
	err := c.Run(strings.NewReader(src), &out)

	assert.Error(t, err)
	assert.Equal(t, ExitUndefined, err.Code)
}

func TestCompilerRunRequiresMainFunction(t *testing.T) {
	src := `const ifj = @import("ifj24.zig");
pub fn notMain() void {}
`
	var out strings.Builder
	c := NewCompiler()
	err := c.Run(strings.NewReader(src), &out)

	assert.Error(t, err)
	assert.Equal(t, ExitOtherSemantic, err.Code)
}

func TestNewLoggerDefaultsToInfoLevel(t *testing.T) {
	l := newLogger()
	assert.False(t, l.Enabled(nil, -4)) // slog.LevelDebug
}

func TestNewLoggerDebugViaEnv(t *testing.T) {
	t.Setenv("GOFJ_LOG", "DEBUG")
	l := newLogger()
	assert.True(t, l.Enabled(nil, -4))
}
