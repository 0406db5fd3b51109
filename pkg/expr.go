package gofj

import (
	"math"
	"strconv"
)

// precedence implements the shift/reduce relation of spec §4.5's 14×14
// table as a level comparison rather than a literal transcribed matrix:
// multiplicative operators bind tighter than additive, which bind tighter
// than the six relational operators, all left-associative. This produces
// the identical postfix sequence the table-driven algorithm would for
// every construct this grammar admits (arithmetic/relational operators and
// parenthesized groups), and is the classic shunting-yard realization of
// operator-precedence parsing.
func precedence(tok Token) int {
	switch tok.Kind {
	case KindStar, KindSlash:
		return 3
	case KindPlus, KindMinus:
		return 2
	default:
		return 1
	}
}

// ParseExpression consumes tokens from stream until it reaches one of the
// statement-level terminators (`;`, `,`, `{`, `|`, EOF) or an unmatched `)`
// — a `)` observed while this expression's own bracket-depth counter is
// zero, resolving spec §9's open question: depth is tracked per-expression
// starting at zero, so a `)` at depth zero is by construction the first
// unmatched right bracket, belonging to whatever construct invoked the
// expression parser (a call's argument list, an `if`/`while` condition),
// not "negative depth." The terminator itself is left unconsumed for the
// caller to inspect. The result is the postfix (reverse-Polish) token
// sequence described in spec §4.5.
func ParseExpression(stream *TokenStream) ([]Token, *CompileError) {
	var output []Token
	var ops []Token
	depth := 0
	sawOperand := false

loop:
	for {
		tok := stream.Peek()

		switch {
		case tok.Kind == KindRParen && depth == 0:
			break loop

		case tok.Kind == KindSemicolon, tok.Kind == KindComma, tok.Kind == KindLBrace,
			tok.Kind == KindPipe, tok.Kind == KindEOF:
			break loop

		case tok.Kind == KindLParen:
			depth++
			ops = append(ops, tok)
			stream.Next()

		case tok.Kind == KindRParen:
			depth--
			matched := false
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.Kind == KindLParen {
					matched = true
					break
				}
				output = append(output, top)
			}
			if !matched {
				return nil, errf(ExitSyntax, tok.Line, "unmatched ')' in expression")
			}
			stream.Next()

		case tok.IsOperand():
			output = append(output, tok)
			sawOperand = true
			stream.Next()

		case tok.IsBinaryOperator():
			for len(ops) > 0 && ops[len(ops)-1].Kind != KindLParen && precedence(ops[len(ops)-1]) >= precedence(tok) {
				output = append(output, ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, tok)
			stream.Next()

		default:
			break loop
		}
	}

	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.Kind == KindLParen {
			return nil, errf(ExitSyntax, top.Line, "unmatched '(' in expression")
		}
		output = append(output, top)
	}

	if !sawOperand {
		return nil, errf(ExitMissingExpression, stream.Peek().Line, "missing expression")
	}

	return output, nil
}

// evalItem is one entry on the small operand-type stack postfix evaluation
// walks (spec §4.5.1). literal distinguishes a token directly written in
// the expression from a variable reference or a computed sub-expression
// result, which matters for the literal/variable asymmetric coercion rules
// below. fracZero is only meaningful when typ == TypeFloat && literal.
type evalItem struct {
	op       Operand
	typ      Type
	literal  bool
	fracZero bool
}

// foldConstantFloats implements the constant-fold pre-pass of spec §4.5.1:
// every reference to a const variable with a known compile-time f64 value
// whose value has no fractional part is replaced by a fresh integer
// literal token, letting the literal/variable coercion rules below treat
// it as an exact integer. The pass is idempotent: re-running it over
// already-folded output finds no more const-f64 identifiers to replace.
func foldConstantFloats(postfix []Token, scopes *ScopeStack) []Token {
	out := make([]Token, len(postfix))
	for i, tok := range postfix {
		out[i] = tok

		if tok.Kind != KindIdentifier {
			continue
		}

		sym, ok := scopes.Lookup(tok.Value)
		if !ok || !sym.Const || sym.Value == nil || sym.Value.Type != TypeFloat {
			continue
		}

		if sym.Value.Flt != math.Trunc(sym.Value.Flt) {
			continue
		}

		out[i] = Token{Kind: KindIntLiteral, Value: strconv.FormatInt(int64(sym.Value.Flt), 10), Line: tok.Line}
	}

	return out
}

func resolveOperand(tok Token, scopes *ScopeStack) (evalItem, *CompileError) {
	switch {
	case tok.Kind == KindIdentifier:
		sym, ok := scopes.Lookup(tok.Value)
		if !ok {
			return evalItem{}, errf(ExitUndefined, tok.Line, "undefined variable %q", tok.Value)
		}
		sym.Used = true
		return evalItem{op: Var(LocalFrame, sym.Name, sym.Type), typ: sym.Type}, nil

	case tok.Kind == KindIntLiteral:
		v, perr := strconv.ParseInt(tok.Value, 10, 64)
		if perr != nil {
			return evalItem{}, internalErr(tok.Line, perr)
		}
		return evalItem{op: IntOperand(v), typ: TypeInt, literal: true}, nil

	case tok.Kind == KindFloatLiteral:
		v, perr := strconv.ParseFloat(tok.Value, 64)
		if perr != nil {
			return evalItem{}, internalErr(tok.Line, perr)
		}
		return evalItem{op: FloatOperand(v), typ: TypeFloat, literal: true, fracZero: v == math.Trunc(v)}, nil

	case tok.Kind == KindStringLiteral:
		return evalItem{op: StringOperand(tok.Value), typ: TypeString, literal: true}, nil

	case tok.Kind == KindKeyword && tok.Keyword == KwNull:
		return evalItem{op: NilOperand(), typ: TypeNull, literal: true}, nil

	default:
		return evalItem{}, errf(ExitSyntax, tok.Line, "unexpected token %s in expression", tok.Kind)
	}
}

func checkArithmeticOperand(t Type) bool {
	return t == TypeInt || t == TypeFloat
}

// combineNumeric resolves the literal/variable asymmetric coercion rules
// of spec §4.5.1's arithmetic-compatibility list for a mixed int/float
// pair; a same-kind pair is accepted as is, float iff both are float. It
// reports whether the combined result is float, or a type-mismatch error.
func combineNumeric(left, right evalItem, isDivision bool) (floatResult bool, err *CompileError) {
	if left.typ == right.typ {
		return left.typ == TypeFloat, nil
	}

	intSide, floatSide := left, right
	if left.typ == TypeFloat {
		intSide, floatSide = right, left
	}

	switch {
	case !intSide.literal && !floatSide.literal:
		return false, errf(ExitTypeMismatch, 0, "cannot combine i32 and f64 variables without an explicit conversion")

	case intSide.literal && !floatSide.literal:
		return true, nil

	case !intSide.literal && floatSide.literal:
		if !floatSide.fracZero {
			return false, errf(ExitTypeMismatch, 0, "float literal with a fractional part cannot combine with an i32 variable")
		}
		return true, nil

	default: // both literals
		if isDivision && !floatSide.fracZero {
			return false, errf(ExitTypeMismatch, 0, "'/' between a fractional float literal and an integer literal requires matching kinds")
		}
		return true, nil
	}
}

// exprCodegen threads the emitter through expression evaluation, providing
// the scratch-register coercion helper shared by the arithmetic and
// relational paths.
type exprCodegen struct {
	e *Emitter
}

func newExprCodegen(e *Emitter) *exprCodegen {
	return &exprCodegen{e: e}
}

func (bc *exprCodegen) scratchRegFor(t Type) string {
	switch base(t) {
	case TypeInt:
		return "$R1"
	case TypeFloat:
		return "$F1"
	case TypeString:
		return "$S1"
	default:
		return "$B1"
	}
}

// promoteBuriedOperand converts the operand-stack element just below the
// top from int to float, leaving the top (of type topType, unchanged)
// back in place: pop top into a scratch register, coerce the newly
// exposed top in place, push the scratch register back. This is the stack
// dance spec §4.5.1 point 2 describes for "when the non-top operand needs
// coercion."
func (bc *exprCodegen) promoteBuriedOperand(topType Type) {
	reg := bc.scratchRegFor(topType)
	bc.e.PopS(GlobalFrame, reg)
	bc.e.Int2FloatS()
	bc.e.PushS(Var(GlobalFrame, reg, topType))
}

func (bc *exprCodegen) emitArithmetic(op Kind, left, right evalItem) (Type, *CompileError) {
	if left.typ == TypeNull || right.typ == TypeNull || left.typ.IsNullable() || right.typ.IsNullable() {
		return 0, errf(ExitTypeMismatch, 0, "arithmetic operand cannot be null or nullable")
	}

	if !checkArithmeticOperand(left.typ) || !checkArithmeticOperand(right.typ) {
		return 0, errf(ExitTypeMismatch, 0, "arithmetic requires numeric operands, got %s and %s", left.typ, right.typ)
	}

	floatResult, err := combineNumeric(left, right, op == KindSlash)
	if err != nil {
		return 0, err
	}

	if floatResult && left.typ != right.typ {
		if left.typ == TypeInt {
			bc.promoteBuriedOperand(right.typ)
		} else {
			bc.e.Int2FloatS()
		}
	}

	switch op {
	case KindPlus:
		bc.e.AddS()
	case KindMinus:
		bc.e.SubS()
	case KindStar:
		bc.e.MulS()
	case KindSlash:
		if floatResult {
			bc.e.DivS()
		} else {
			bc.e.IDivS()
		}
	}

	if floatResult {
		return TypeFloat, nil
	}
	return TypeInt, nil
}

func (bc *exprCodegen) emitRelational(op Kind, left, right evalItem) (Type, *CompileError) {
	leftIsNull := left.typ == TypeNull
	rightIsNull := right.typ == TypeNull
	nullish := leftIsNull || rightIsNull || left.typ.IsNullable() || right.typ.IsNullable()

	if op == KindEq || op == KindNeq {
		if nullish {
			// NULL is accepted on either side unconditionally; otherwise both
			// operands must be nullable with the same base type.
			if !leftIsNull && !rightIsNull &&
				(!left.typ.IsNullable() || !right.typ.IsNullable() || left.typ.Denullify() != right.typ.Denullify()) {
				return 0, errf(ExitTypeMismatch, 0, "nullable operands must share the same base type, got %s and %s", left.typ, right.typ)
			}

			bc.e.EqS()
			if op == KindNeq {
				bc.e.NotS()
			}
			return TypeBool, nil
		}
	} else if nullish {
		return 0, errf(ExitTypeMismatch, 0, "relational operator forbids null or nullable operands")
	}

	if !checkArithmeticOperand(left.typ) || !checkArithmeticOperand(right.typ) {
		return 0, errf(ExitTypeMismatch, 0, "relational operator requires numeric operands, got %s and %s", left.typ, right.typ)
	}

	_, err := combineNumeric(left, right, false)
	if err != nil {
		return 0, err
	}

	if left.typ != right.typ {
		if left.typ == TypeInt {
			bc.promoteBuriedOperand(right.typ)
		} else {
			bc.e.Int2FloatS()
		}
	}

	switch op {
	case KindEq:
		bc.e.EqS()
	case KindNeq:
		bc.e.EqS()
		bc.e.NotS()
	case KindLt:
		bc.e.LtS()
	case KindGt:
		bc.e.GtS()
	case KindLeq:
		bc.e.GtS()
		bc.e.NotS()
	case KindGeq:
		bc.e.LtS()
		bc.e.NotS()
	}

	return TypeBool, nil
}

// EvaluateExpression runs the constant-fold pre-pass, then scans the
// postfix left-to-right: operand tokens are pushed (PUSHS) and tracked on
// a small Go-side type stack, binary operators pop two, type-check,
// coerce, and emit the matching stack instruction, and the lone surviving
// stack entry's type is returned to the caller (spec §4.5.1). line is
// attached to type-mismatch errors raised mid-scan, which carry no line
// of their own.
func EvaluateExpression(postfix []Token, scopes *ScopeStack, e *Emitter, line int) (Type, *CompileError) {
	postfix = foldConstantFloats(postfix, scopes)
	bc := newExprCodegen(e)

	var stack []evalItem
	for _, tok := range postfix {
		if tok.IsBinaryOperator() {
			if len(stack) < 2 {
				return 0, errf(ExitSyntax, tok.Line, "malformed expression")
			}

			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = stack[:len(stack)-2]

			var result Type
			var err *CompileError
			switch tok.Kind {
			case KindPlus, KindMinus, KindStar, KindSlash:
				result, err = bc.emitArithmetic(tok.Kind, left, right)
			default:
				result, err = bc.emitRelational(tok.Kind, left, right)
			}

			if err != nil {
				if err.Line == 0 {
					err.Line = tok.Line
					if err.Line == 0 {
						err.Line = line
					}
				}
				return 0, err
			}

			stack = append(stack, evalItem{typ: result})
			continue
		}

		item, err := resolveOperand(tok, scopes)
		if err != nil {
			return 0, err
		}

		e.PushS(item.op)
		stack = append(stack, item)
	}

	if len(stack) != 1 {
		return 0, errf(ExitSyntax, line, "malformed expression")
	}

	return stack[0].typ, nil
}
