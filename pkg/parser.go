package gofj

import (
	"fmt"
	"strconv"
)

// parser drives the single interleaved parse/analyze/emit pass: there is
// no intermediate tree. Every statement both resolves its semantics
// against the scope stack and emits its IR in the same walk.
type parser struct {
	stream *TokenStream
	global *GlobalTable
	scopes *ScopeStack
	e      *Emitter
	bc     *builtinCodegen

	current *FunctionSymbol

	ifCounter    int
	whileCounter int
}

// Parse runs the statement parser over the whole token stream, from the
// required `const ifj = @import(...)` prelude through every `pub fn`
// definition, emitting IR as it goes. The global table must already be
// populated by Preload.
func Parse(stream *TokenStream, global *GlobalTable, e *Emitter) *CompileError {
	stream.Reset(0)
	p := &parser{
		stream: stream,
		global: global,
		scopes: NewScopeStack(global),
		e:      e,
		bc:     newBuiltinCodegen(e),
	}

	if err := p.parsePrelude(); err != nil {
		return err
	}

	e.Header()

	for {
		tok := p.stream.Peek()
		if tok.Kind == KindEOF {
			return nil
		}

		if tok.Kind == KindKeyword && tok.Keyword == KwPub {
			if err := p.parseFunction(); err != nil {
				return err
			}
			continue
		}

		return errf(ExitSyntax, tok.Line, "expected a function definition, got %s", tok.Kind)
	}
}

// parsePrelude consumes the mandatory `const ifj = @import("ifj24.zig");`
// line. Nothing about it is emitted: the import names the built-in
// catalog already wired into the global table, not a runtime value.
func (p *parser) parsePrelude() *CompileError {
	if tok := p.stream.Next(); tok.Kind != KindKeyword || tok.Keyword != KwConst {
		return errf(ExitSyntax, tok.Line, "expected prelude declaration 'const ifj = @import(...)'")
	}
	if tok := p.stream.Next(); tok.Kind != KindIdentifier || tok.Value != "ifj" {
		return errf(ExitSyntax, tok.Line, "expected identifier 'ifj' in prelude")
	}
	if tok := p.stream.Next(); tok.Kind != KindAssign {
		return errf(ExitSyntax, tok.Line, "expected '=' in prelude")
	}
	if tok := p.stream.Next(); tok.Kind != KindImport {
		return errf(ExitSyntax, tok.Line, "expected '@import' in prelude")
	}
	if tok := p.stream.Next(); tok.Kind != KindLParen {
		return errf(ExitSyntax, tok.Line, "expected '(' after @import")
	}
	if tok := p.stream.Next(); tok.Kind != KindStringLiteral {
		return errf(ExitSyntax, tok.Line, "expected a module path string in @import")
	}
	if tok := p.stream.Next(); tok.Kind != KindRParen {
		return errf(ExitSyntax, tok.Line, "expected ')' after @import module path")
	}
	if tok := p.stream.Next(); tok.Kind != KindSemicolon {
		return errf(ExitSyntax, tok.Line, "expected ';' after prelude")
	}
	return nil
}

// parseFunction reopens a function already registered by Preload: it
// re-walks the signature tokens (skipping re-validation, already done),
// emits the entry label and frame bookkeeping, declares every hoisted
// local and parameter into a fresh scope, and parses the body.
func (p *parser) parseFunction() *CompileError {
	p.stream.Next() // 'pub'
	p.stream.Next() // 'fn'
	nameTok := p.stream.Next()

	fn, ok := p.global.Get(nameTok.Value)
	if !ok {
		return internalErr(nameTok.Line, fmt.Errorf("function %q missing from preload pass", nameTok.Value))
	}

	p.stream.Next() // '('
	if p.stream.Peek().Kind != KindRParen {
		for {
			p.stream.Next() // parameter name
			p.stream.Next() // ':'
			if _, err := parseTypeTokens(p.stream); err != nil {
				return err
			}
			if p.stream.Peek().Kind == KindComma {
				p.stream.Next()
				continue
			}
			break
		}
	}
	p.stream.Next() // ')'

	if _, err := parseTypeTokens(p.stream); err != nil {
		return err
	}

	if lb := p.stream.Next(); lb.Kind != KindLBrace {
		return errf(ExitSyntax, lb.Line, "expected '{' to open body of %q", fn.Name)
	}

	p.e.Label(fn.Name)
	if fn.Name == "main" {
		p.e.CreateFrame()
	}
	p.e.PushFrame()

	p.scopes.Push()

	for _, local := range fn.Locals {
		p.e.DefVar(LocalFrame, local)
	}

	for i, param := range fn.Params {
		p.e.DefVar(LocalFrame, param.Name)
		p.e.Move(LocalFrame, param.Name, Var(LocalFrame, fmt.Sprintf("PARAM%d", i), param.Type))

		bound := *param
		if !p.scopes.Declare(&bound) {
			return errf(ExitRedefinition, nameTok.Line, "parameter %q collides with an existing name", param.Name)
		}
	}

	prevFn := p.current
	p.current = fn
	err := p.parseFunctionBody(fn, nameTok.Line)
	p.current = prevFn

	return err
}

// parseFunctionBody parses statements until the function's closing brace,
// then enforces the missing-return diagnostic and synthesizes a
// fallthrough terminator for bodies that never executed an explicit
// return.
func (p *parser) parseFunctionBody(fn *FunctionSymbol, nameLine int) *CompileError {
	for {
		tok := p.stream.Peek()

		if tok.Kind == KindRBrace {
			p.stream.Next()

			if err := p.scopes.Pop(); err != nil {
				return err
			}

			if fn.ReturnType != TypeVoid && !fn.ReturnSeen {
				return errf(ExitMissingExpression, nameLine, "function %q must return a value of type %s", fn.Name, fn.ReturnType)
			}

			if !fn.ReturnSeen {
				if fn.Name == "main" {
					p.e.Exit(IntOperand(0))
				} else {
					p.e.PopFrame()
					p.e.Return()
				}
			}

			return nil
		}

		if tok.Kind == KindEOF {
			return errf(ExitSyntax, tok.Line, "unexpected end of input in body of %q", fn.Name)
		}

		if err := p.parseStatement(); err != nil {
			return err
		}
	}
}

// parseBlock parses statements until the matching '}' (consumed), popping
// the scope the caller already pushed. Used for if/else/while bodies,
// which unlike a function body never need a fallthrough terminator.
func (p *parser) parseBlock() *CompileError {
	for {
		tok := p.stream.Peek()

		if tok.Kind == KindRBrace {
			p.stream.Next()
			return p.scopes.Pop()
		}

		if tok.Kind == KindEOF {
			return errf(ExitSyntax, tok.Line, "unexpected end of input")
		}

		if err := p.parseStatement(); err != nil {
			return err
		}
	}
}

func (p *parser) parseStatement() *CompileError {
	tok := p.stream.Peek()

	switch {
	case tok.Kind == KindKeyword && (tok.Keyword == KwConst || tok.Keyword == KwVar):
		return p.parseDeclaration()
	case tok.Kind == KindKeyword && tok.Keyword == KwIf:
		return p.parseIf()
	case tok.Kind == KindKeyword && tok.Keyword == KwWhile:
		return p.parseWhile()
	case tok.Kind == KindKeyword && tok.Keyword == KwReturn:
		return p.parseReturn()
	case tok.Kind == KindUnderscore:
		return p.parseDiscard()
	case tok.Kind == KindIdentifier:
		return p.parseIdentifierStatement()
	default:
		return errf(ExitSyntax, tok.Line, "unexpected token %s in statement position", tok.Kind)
	}
}

// --- declarations ---------------------------------------------------------

func isBareLiteralAhead(stream *TokenStream) bool {
	tok := stream.Peek()
	if tok.Kind != KindIntLiteral && tok.Kind != KindFloatLiteral {
		return false
	}
	return stream.PeekAt(1).Kind == KindSemicolon
}

func literalValue(tok Token) (*Literal, Type, *CompileError) {
	switch tok.Kind {
	case KindIntLiteral:
		v, perr := strconv.ParseInt(tok.Value, 10, 64)
		if perr != nil {
			return nil, 0, internalErr(tok.Line, perr)
		}
		return &Literal{Type: TypeInt, Int: v}, TypeInt, nil
	case KindFloatLiteral:
		v, perr := strconv.ParseFloat(tok.Value, 64)
		if perr != nil {
			return nil, 0, internalErr(tok.Line, perr)
		}
		return &Literal{Type: TypeFloat, Flt: v}, TypeFloat, nil
	default:
		return nil, 0, errf(ExitSyntax, tok.Line, "expected a literal")
	}
}

func literalOperand(lit *Literal) Operand {
	switch lit.Type {
	case TypeInt:
		return IntOperand(lit.Int)
	case TypeFloat:
		return FloatOperand(lit.Flt)
	default:
		return StringOperand(lit.Str)
	}
}

// parseDeclaration handles both `const` and `var`. A const initialized
// from a bare numeric literal with no other tokens before the semicolon
// takes a fast path that records its compile-time Value, feeding the
// constant-folding pre-pass of expr.go.
func (p *parser) parseDeclaration() *CompileError {
	kwTok := p.stream.Next()
	isConst := kwTok.Keyword == KwConst

	nameTok := p.stream.Next()
	if nameTok.Kind != KindIdentifier {
		return errf(ExitSyntax, nameTok.Line, "expected identifier after %s", kwTok.Value)
	}

	hasDeclaredType := false
	var declaredType Type
	if p.stream.Peek().Kind == KindColon {
		p.stream.Next()
		t, err := parseTypeTokens(p.stream)
		if err != nil {
			return err
		}
		declaredType = t
		hasDeclaredType = true
	}

	if eq := p.stream.Next(); eq.Kind != KindAssign {
		return errf(ExitSyntax, eq.Line, "expected '=' in declaration of %q", nameTok.Value)
	}

	sym := &VariableSymbol{Name: nameTok.Value, Const: isConst, Line: nameTok.Line}

	if isConst && isBareLiteralAhead(p.stream) {
		litTok := p.stream.Next()
		lit, typ, err := literalValue(litTok)
		if err != nil {
			return err
		}

		if hasDeclaredType && declaredType != typ {
			return errf(ExitTypeMismatch, litTok.Line, "literal of type %s does not match declared type %s", typ, declaredType)
		}

		if semi := p.stream.Next(); semi.Kind != KindSemicolon {
			return errf(ExitSyntax, semi.Line, "expected ';' after declaration of %q", nameTok.Value)
		}

		sym.Type = typ
		sym.Value = lit
		sym.Defined = true

		if !p.scopes.Declare(sym) {
			return errf(ExitRedefinition, nameTok.Line, "%q already declared", nameTok.Value)
		}

		p.e.Move(LocalFrame, sym.Name, literalOperand(lit))
		return nil
	}

	if !hasDeclaredType && p.stream.Peek().Kind == KindKeyword && p.stream.Peek().Keyword == KwNull {
		return errf(ExitCannotDeriveType, p.stream.Peek().Line, "cannot derive a type for %q from null alone", nameTok.Value)
	}

	hint := declaredType
	if !hasDeclaredType {
		hint = TypeVoid
	}

	dest := Var(LocalFrame, nameTok.Value, TypeVoid)
	typ, err := p.parseRHSInto(dest, hint)
	if err != nil {
		return err
	}

	finalType := typ
	if hasDeclaredType {
		if !assignable(declaredType, typ) {
			return errf(ExitTypeMismatch, nameTok.Line, "cannot assign %s to %q of declared type %s", typ, nameTok.Value, declaredType)
		}
		finalType = declaredType
	}

	sym.Type = finalType
	sym.Defined = true

	if !p.scopes.Declare(sym) {
		return errf(ExitRedefinition, nameTok.Line, "%q already declared", nameTok.Value)
	}

	return nil
}

// assignable implements the assignment-compatibility table of spec
// §4.4.1: identical types, a value into its own nullable wrapper, null
// into any nullable, and anything into a `term`-typed destination.
func assignable(dst, src Type) bool {
	if dst == src {
		return true
	}
	if dst.IsNullable() && src == dst.Denullify() {
		return true
	}
	if dst.IsNullable() && src == TypeNull {
		return true
	}
	if dst == TypeTerm {
		switch src {
		case TypeInt, TypeFloat, TypeString, TypeNullableInt, TypeNullableFloat, TypeNullableString, TypeNull:
			return true
		}
	}
	return false
}

// parseRHSInto parses the right-hand side of a declaration or assignment
// and leaves its value in dest, which must already name a declared
// LF@-frame variable (its Type field is ignored; only frame/name are
// used). declaredHint carries the destination's annotated type so a bare
// `null` literal can be validated; pass TypeVoid when there is none (a
// preceding check must already have rejected bare null in that case).
func (p *parser) parseRHSInto(dest Operand, declaredHint Type) (Type, *CompileError) {
	tok := p.stream.Peek()

	if tok.Kind == KindIdentifier && tok.Value == "ifj" && p.stream.PeekAt(1).Kind == KindDot {
		typ, err := p.parseBuiltinStatement(&dest)
		if err != nil {
			return 0, err
		}
		if semi := p.stream.Next(); semi.Kind != KindSemicolon {
			return 0, errf(ExitSyntax, semi.Line, "expected ';'")
		}
		return typ, nil
	}

	if tok.Kind == KindIdentifier {
		if fn, ok := p.global.Get(tok.Value); ok && p.stream.PeekAt(1).Kind == KindLParen {
			nameTok := p.stream.Next()
			if err := p.emitUserCall(fn, nameTok.Line); err != nil {
				return 0, err
			}
			if fn.ReturnType == TypeVoid {
				return 0, errf(ExitMissingExpression, nameTok.Line, "void function %q used as a value", fn.Name)
			}
			p.e.PopS(dest.frame, dest.name)
			if semi := p.stream.Next(); semi.Kind != KindSemicolon {
				return 0, errf(ExitSyntax, semi.Line, "expected ';'")
			}
			return fn.ReturnType, nil
		}
	}

	if tok.Kind == KindKeyword && tok.Keyword == KwNull {
		if !declaredHint.IsNullable() {
			return 0, errf(ExitTypeMismatch, tok.Line, "null requires a nullable destination type")
		}
		p.stream.Next()
		if semi := p.stream.Next(); semi.Kind != KindSemicolon {
			return 0, errf(ExitSyntax, semi.Line, "expected ';'")
		}
		p.e.Move(dest.frame, dest.name, NilOperand())
		return declaredHint, nil
	}

	postfix, err := ParseExpression(p.stream)
	if err != nil {
		return 0, err
	}

	if len(postfix) == 1 && postfix[0].Kind == KindStringLiteral {
		return 0, errf(ExitTypeMismatch, postfix[0].Line, "string literals cannot be stored into a variable")
	}

	typ, err := EvaluateExpression(postfix, p.scopes, p.e, tok.Line)
	if err != nil {
		return 0, err
	}

	p.e.PopS(dest.frame, dest.name)

	if semi := p.stream.Next(); semi.Kind != KindSemicolon {
		return 0, errf(ExitSyntax, semi.Line, "expected ';'")
	}

	return typ, nil
}

// --- assignment and bare statements ----------------------------------------

func (p *parser) parseIdentifierStatement() *CompileError {
	tok := p.stream.Peek()

	if tok.Value == "ifj" && p.stream.PeekAt(1).Kind == KindDot {
		if _, err := p.parseBuiltinStatement(nil); err != nil {
			return err
		}
		if semi := p.stream.Next(); semi.Kind != KindSemicolon {
			return errf(ExitSyntax, semi.Line, "expected ';'")
		}
		return nil
	}

	nameTok := p.stream.Next()

	if p.stream.Peek().Kind == KindAssign {
		sym, ok := p.scopes.Lookup(nameTok.Value)
		if !ok {
			return errf(ExitUndefined, nameTok.Line, "undefined variable %q", nameTok.Value)
		}
		return p.parseAssignment(sym, nameTok.Line)
	}

	if p.stream.Peek().Kind == KindLParen {
		fn, ok := p.global.Get(nameTok.Value)
		if !ok {
			return errf(ExitUndefined, nameTok.Line, "undefined function %q", nameTok.Value)
		}
		if err := p.emitUserCall(fn, nameTok.Line); err != nil {
			return err
		}
		if fn.ReturnType != TypeVoid {
			p.e.ClearS()
		}
		if semi := p.stream.Next(); semi.Kind != KindSemicolon {
			return errf(ExitSyntax, semi.Line, "expected ';'")
		}
		return nil
	}

	return errf(ExitSyntax, nameTok.Line, "expected '=' or '(' after %q", nameTok.Value)
}

func (p *parser) parseAssignment(sym *VariableSymbol, line int) *CompileError {
	p.stream.Next() // '='

	if sym.Const {
		return errf(ExitRedefinition, line, "cannot assign to const %q", sym.Name)
	}

	typ, err := p.parseRHSInto(Var(LocalFrame, sym.Name, sym.Type), sym.Type)
	if err != nil {
		return err
	}

	if !assignable(sym.Type, typ) {
		return errf(ExitTypeMismatch, line, "cannot assign %s to %q of type %s", typ, sym.Name, sym.Type)
	}

	sym.Defined = true
	return nil
}

// parseDiscard handles `_ = ...;`, the explicit discard spec §4.4
// requires for ignoring a call's result without an unused-variable
// diagnostic.
func (p *parser) parseDiscard() *CompileError {
	p.stream.Next() // '_'
	if eq := p.stream.Next(); eq.Kind != KindAssign {
		return errf(ExitSyntax, eq.Line, "expected '=' after '_'")
	}

	tok := p.stream.Peek()

	if tok.Kind == KindIdentifier && tok.Value == "ifj" && p.stream.PeekAt(1).Kind == KindDot {
		if _, err := p.parseBuiltinStatement(nil); err != nil {
			return err
		}
		if semi := p.stream.Next(); semi.Kind != KindSemicolon {
			return errf(ExitSyntax, semi.Line, "expected ';'")
		}
		return nil
	}

	if tok.Kind == KindIdentifier {
		if fn, ok := p.global.Get(tok.Value); ok && p.stream.PeekAt(1).Kind == KindLParen {
			nameTok := p.stream.Next()
			if err := p.emitUserCall(fn, nameTok.Line); err != nil {
				return err
			}
			if fn.ReturnType != TypeVoid {
				p.e.ClearS()
			}
			if semi := p.stream.Next(); semi.Kind != KindSemicolon {
				return errf(ExitSyntax, semi.Line, "expected ';'")
			}
			return nil
		}
	}

	postfix, err := ParseExpression(p.stream)
	if err != nil {
		return err
	}
	if _, err := EvaluateExpression(postfix, p.scopes, p.e, tok.Line); err != nil {
		return err
	}
	p.e.ClearS()

	if semi := p.stream.Next(); semi.Kind != KindSemicolon {
		return errf(ExitSyntax, semi.Line, "expected ';'")
	}
	return nil
}

// --- return ------------------------------------------------------------

func resultRegisterFor(t Type) string {
	switch base(t) {
	case TypeInt:
		return "$R0"
	case TypeFloat:
		return "$F0"
	case TypeString:
		return "$S0"
	default:
		return "$B0"
	}
}

func (p *parser) parseReturn() *CompileError {
	retTok := p.stream.Next() // 'return'
	fn := p.current
	if fn == nil {
		return errf(ExitOtherSemantic, retTok.Line, "'return' outside any function")
	}

	if fn.Name == "main" {
		if p.stream.Peek().Kind != KindSemicolon {
			return errf(ExitMissingExpression, retTok.Line, "main must not return a value")
		}
		p.stream.Next()
		p.e.Exit(IntOperand(0))
		fn.ReturnSeen = true
		return nil
	}

	if fn.ReturnType == TypeVoid {
		if p.stream.Peek().Kind != KindSemicolon {
			return errf(ExitMissingExpression, retTok.Line, "void function %q must not return a value", fn.Name)
		}
		p.stream.Next()
		p.e.PopFrame()
		p.e.Return()
		fn.ReturnSeen = true
		return nil
	}

	line := p.stream.Peek().Line
	postfix, err := ParseExpression(p.stream)
	if err != nil {
		return err
	}
	typ, err := EvaluateExpression(postfix, p.scopes, p.e, line)
	if err != nil {
		return err
	}
	if semi := p.stream.Next(); semi.Kind != KindSemicolon {
		return errf(ExitSyntax, semi.Line, "expected ';'")
	}

	if !assignable(fn.ReturnType, typ) {
		return errf(ExitTypeMismatch, retTok.Line, "cannot return %s from function declared to return %s", typ, fn.ReturnType)
	}

	p.e.PopS(GlobalFrame, resultRegisterFor(fn.ReturnType))
	p.e.PopFrame()
	p.e.Return()
	fn.ReturnSeen = true
	return nil
}

// --- calls ---------------------------------------------------------------

// emitUserCall parses a call's argument list (the callee name has already
// been consumed) and emits its frame-passing convention: CREATEFRAME, one
// DEFVAR+POPS per argument into TF@PARAM<i>, CALL; the callee's own entry
// code pushes that frame and reads the arguments as LF@PARAM<i>. If the
// callee returns a value, it is left on the operand stack (pushed from
// the global result register it returned in), matching the convention
// every other value-producing construct uses.
func (p *parser) emitUserCall(fn *FunctionSymbol, callLine int) *CompileError {
	if lp := p.stream.Next(); lp.Kind != KindLParen {
		return errf(ExitSyntax, lp.Line, "expected '(' in call to %q", fn.Name)
	}

	p.e.CreateFrame()

	i := 0
	if p.stream.Peek().Kind != KindRParen {
		for {
			if i >= fn.Arity() {
				return errf(ExitArity, callLine, "too many arguments to %q", fn.Name)
			}

			line := p.stream.Peek().Line
			postfix, err := ParseExpression(p.stream)
			if err != nil {
				return err
			}
			argTyp, err := EvaluateExpression(postfix, p.scopes, p.e, line)
			if err != nil {
				return err
			}

			if !assignable(fn.Params[i].Type, argTyp) {
				return errf(ExitTypeMismatch, line, "argument %d of %q: cannot use %s as %s", i+1, fn.Name, argTyp, fn.Params[i].Type)
			}

			param := fmt.Sprintf("PARAM%d", i)
			p.e.DefVar(TemporaryFrame, param)
			p.e.PopS(TemporaryFrame, param)

			i++
			if p.stream.Peek().Kind == KindComma {
				p.stream.Next()
				continue
			}
			break
		}
	}

	if i != fn.Arity() {
		return errf(ExitArity, callLine, "%q expects %d argument(s), got %d", fn.Name, fn.Arity(), i)
	}

	if rp := p.stream.Next(); rp.Kind != KindRParen {
		return errf(ExitSyntax, rp.Line, "expected ')' to close call to %q", fn.Name)
	}

	p.e.Call(fn.Name)

	if fn.ReturnType != TypeVoid {
		p.e.PushS(Var(GlobalFrame, resultRegisterFor(fn.ReturnType), fn.ReturnType))
	}

	return nil
}

// parseBuiltinStatement parses `ifj.NAME(args)` (the leading "ifj" has
// not yet been consumed) and dispatches to the built-in codegen. Single-
// token arguments are resolved directly to an Operand without going
// through the operand stack; multi-token arguments are evaluated and
// popped into a scratch global register first.
func (p *parser) parseBuiltinStatement(dst *Operand) (Type, *CompileError) {
	p.stream.Next() // 'ifj'
	if dot := p.stream.Next(); dot.Kind != KindDot {
		return 0, errf(ExitSyntax, dot.Line, "expected '.' after 'ifj'")
	}
	nameTok := p.stream.Next()
	if nameTok.Kind != KindIdentifier {
		return 0, errf(ExitSyntax, nameTok.Line, "expected built-in function name after 'ifj.'")
	}

	if lp := p.stream.Next(); lp.Kind != KindLParen {
		return 0, errf(ExitSyntax, lp.Line, "expected '(' after ifj.%s", nameTok.Value)
	}

	var args []Operand
	if p.stream.Peek().Kind != KindRParen {
		for {
			argLine := p.stream.Peek().Line
			postfix, err := ParseExpression(p.stream)
			if err != nil {
				return 0, err
			}

			var arg Operand
			if len(postfix) == 1 {
				item, rerr := resolveOperand(postfix[0], p.scopes)
				if rerr != nil {
					return 0, rerr
				}
				arg = item.op
			} else {
				typ, eerr := EvaluateExpression(postfix, p.scopes, p.e, argLine)
				if eerr != nil {
					return 0, eerr
				}
				reg := Var(GlobalFrame, resultRegisterFor(typ), typ)
				p.e.PopS(reg.frame, reg.name)
				arg = reg
			}
			args = append(args, arg)

			if p.stream.Peek().Kind == KindComma {
				p.stream.Next()
				continue
			}
			break
		}
	}

	if rp := p.stream.Next(); rp.Kind != KindRParen {
		return 0, errf(ExitSyntax, rp.Line, "expected ')' to close ifj.%s", nameTok.Value)
	}

	retType, berr := EmitBuiltinCall(p.bc, nameTok.Value, args, dst)
	if berr != nil {
		if berr.Line == 0 {
			berr.Line = nameTok.Line
		}
		return 0, berr
	}

	return retType, nil
}

// --- if / while ------------------------------------------------------------

// isNullableUnwrapAhead reports whether the token just past an already
// consumed 'if'/'while' '(' begins a nullable-unwrap condition: a single
// identifier, then ')', then '|'.
func isNullableUnwrapAhead(stream *TokenStream) bool {
	return stream.Peek().Kind == KindIdentifier &&
		stream.PeekAt(1).Kind == KindRParen &&
		stream.PeekAt(2).Kind == KindPipe
}

func (p *parser) parseIf() *CompileError {
	ifTok := p.stream.Next() // 'if'
	if lp := p.stream.Next(); lp.Kind != KindLParen {
		return errf(ExitSyntax, lp.Line, "expected '(' after 'if'")
	}

	if isNullableUnwrapAhead(p.stream) {
		return p.parseNullableBranch(ifTok.Line, false)
	}
	return p.parseValueBranch(ifTok.Line, false)
}

func (p *parser) parseWhile() *CompileError {
	whileTok := p.stream.Next() // 'while'
	if lp := p.stream.Next(); lp.Kind != KindLParen {
		return errf(ExitSyntax, lp.Line, "expected '(' after 'while'")
	}

	if isNullableUnwrapAhead(p.stream) {
		return p.parseNullableBranch(whileTok.Line, true)
	}
	return p.parseValueBranch(whileTok.Line, true)
}

// parseValueBranch implements both the value-if and value-while forms:
// the only structural difference is the back-jump to the loop head and
// which counter/label prefix is used.
func (p *parser) parseValueBranch(line int, isLoop bool) *CompileError {
	var startLabel, exitLabel string
	if isLoop {
		n := p.whileCounter
		p.whileCounter++
		startLabel = fmt.Sprintf("while_%d", n)
		exitLabel = fmt.Sprintf("endwhile_%d", n)
		p.e.Label(startLabel)
	} else {
		n := p.ifCounter
		p.ifCounter++
		exitLabel = fmt.Sprintf("else_%d", n)
	}
	logger.Debug("label allocated", "start", startLabel, "exit", exitLabel, "loop", isLoop)

	postfix, err := ParseExpression(p.stream)
	if err != nil {
		return err
	}
	typ, err := EvaluateExpression(postfix, p.scopes, p.e, line)
	if err != nil {
		return err
	}
	if typ != TypeBool {
		return errf(ExitTypeMismatch, line, "condition must be boolean, got %s", typ)
	}

	if rp := p.stream.Next(); rp.Kind != KindRParen {
		return errf(ExitSyntax, rp.Line, "expected ')' after condition")
	}

	p.e.PopS(GlobalFrame, "$B0")
	p.e.JumpIfEq(exitLabel, Var(GlobalFrame, "$B0", TypeBool), BoolOperand(false))

	if lb := p.stream.Next(); lb.Kind != KindLBrace {
		return errf(ExitSyntax, lb.Line, "expected '{' to open body")
	}
	p.scopes.Push()
	if err := p.parseBlock(); err != nil {
		return err
	}

	if isLoop {
		p.e.Jump(startLabel)
		p.e.Label(exitLabel)
		return nil
	}

	endLabel := exitLabel + "_end"
	p.e.Jump(endLabel)
	p.e.Label(exitLabel)

	if err := p.parseOptionalElse(); err != nil {
		return err
	}

	p.e.Label(endLabel)
	return nil
}

// parseNullableBranch implements both the nullable-if and nullable-while
// forms: `(name) |bound| { ... }`.
func (p *parser) parseNullableBranch(line int, isLoop bool) *CompileError {
	var startLabel, exitLabel string
	if isLoop {
		n := p.whileCounter
		p.whileCounter++
		startLabel = fmt.Sprintf("while_%d", n)
		exitLabel = fmt.Sprintf("endwhile_%d", n)
		p.e.Label(startLabel)
	} else {
		n := p.ifCounter
		p.ifCounter++
		exitLabel = fmt.Sprintf("else_%d", n)
	}

	condTok := p.stream.Next()
	sym, ok := p.scopes.Lookup(condTok.Value)
	if !ok {
		return errf(ExitUndefined, condTok.Line, "undefined variable %q", condTok.Value)
	}
	if !sym.Nullable() {
		return errf(ExitTypeMismatch, condTok.Line, "%q is not nullable", condTok.Value)
	}
	sym.Used = true

	if rp := p.stream.Next(); rp.Kind != KindRParen {
		return errf(ExitSyntax, rp.Line, "expected ')' after condition")
	}

	p.e.JumpIfEq(exitLabel, Var(LocalFrame, sym.Name, sym.Type), NilOperand())

	if pipe := p.stream.Next(); pipe.Kind != KindPipe {
		return errf(ExitSyntax, pipe.Line, "expected '|' to open unwrap binding")
	}
	bindTok := p.stream.Next()
	if bindTok.Kind != KindIdentifier {
		return errf(ExitSyntax, bindTok.Line, "expected identifier in unwrap binding")
	}
	if pipe := p.stream.Next(); pipe.Kind != KindPipe {
		return errf(ExitSyntax, pipe.Line, "expected closing '|' in unwrap binding")
	}

	if lb := p.stream.Next(); lb.Kind != KindLBrace {
		return errf(ExitSyntax, lb.Line, "expected '{' to open body")
	}

	p.scopes.Push()
	bound := &VariableSymbol{Name: bindTok.Value, Type: sym.Type.Denullify(), Defined: true, Line: bindTok.Line}
	if !p.scopes.Declare(bound) {
		return errf(ExitRedefinition, bindTok.Line, "%q already declared", bindTok.Value)
	}
	p.e.Move(LocalFrame, bound.Name, Var(LocalFrame, sym.Name, sym.Type))

	if err := p.parseBlock(); err != nil {
		return err
	}

	if isLoop {
		p.e.Jump(startLabel)
		p.e.Label(exitLabel)
		return nil
	}

	endLabel := exitLabel + "_end"
	p.e.Jump(endLabel)
	p.e.Label(exitLabel)

	if err := p.parseOptionalElse(); err != nil {
		return err
	}

	p.e.Label(endLabel)
	return nil
}

func (p *parser) parseOptionalElse() *CompileError {
	if !(p.stream.Peek().Kind == KindKeyword && p.stream.Peek().Keyword == KwElse) {
		return nil
	}
	p.stream.Next()

	if lb := p.stream.Next(); lb.Kind != KindLBrace {
		return errf(ExitSyntax, lb.Line, "expected '{' to open else body")
	}
	p.scopes.Push()
	return p.parseBlock()
}
