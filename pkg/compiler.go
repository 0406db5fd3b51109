package gofj

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// logger is the ambient internal tracer: silent by default (Info
// threshold, nothing logged at that level), raised to Debug by
// GOFJ_LOG=debug for development. It is read once at process start;
// there is no runtime log-level flag.
var logger = newLogger()

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if v, ok := os.LookupEnv("GOFJ_LOG"); ok && strings.EqualFold(v, "debug") {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Compiler drives the full front-end pipeline of spec §2: lex the whole
// program, preload every function signature, then interleave statement
// parsing, semantic analysis and IR emission in one pass.
type Compiler struct{}

func NewCompiler() *Compiler {
	return &Compiler{}
}

// Run reads the full program from r and writes IFJcode24 to w, returning
// the first fatal *CompileError encountered (nil on success). Per spec
// §7, the first diagnostic ends the run; callers must not trust any IR
// already written to w once a non-nil error comes back.
func (c *Compiler) Run(r io.Reader, w io.Writer) *CompileError {
	lex, err := NewLexer(r)
	if err != nil {
		return internalErr(0, fmt.Errorf("reading source: %w", err))
	}

	stream, lexErr := lex.Lex()
	if lexErr != nil {
		return lexErr
	}
	logger.Debug("lex complete", "tokens", stream.Len())

	global := NewGlobalTable()
	if err := Preload(stream, global); err != nil {
		return err
	}

	if _, ok := global.Get("main"); !ok {
		return errf(ExitOtherSemantic, 0, "program defines no 'main' function")
	}
	logger.Debug("preload complete", "functions", global.funcs.Len())

	e := NewEmitter(w)
	return Parse(stream, global, e)
}
