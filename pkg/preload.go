package gofj

// Preload walks the token stream once, registering every function signature
// in the global table before any statement parsing happens (spec §4.3). It
// never emits IR and leaves the cursor where it found it: the walk starts
// from token 0, and on return the cursor is restored to its position at
// the time of the call.
func Preload(stream *TokenStream, global *GlobalTable) *CompileError {
	start := stream.Mark()
	defer stream.Reset(start)
	stream.Reset(0)

	depth := 0
	sawMain := false

	for {
		tok := stream.Peek()
		if tok.Kind == KindEOF {
			break
		}

		if tok.Kind == KindLBrace {
			depth++
			stream.Next()
			continue
		}

		if tok.Kind == KindRBrace {
			depth--
			stream.Next()
			continue
		}

		if tok.Kind == KindKeyword && tok.Keyword == KwPub {
			if depth != 0 {
				return errf(ExitSyntax, tok.Line, "nested function definition")
			}

			if err := preloadFunction(stream, global, &sawMain); err != nil {
				return err
			}
			continue
		}

		stream.Next()
	}

	return nil
}

// preloadFunction parses one `pub fn NAME ( params ) RETTY {` signature
// starting at the `pub` token and registers its FunctionSymbol. It consumes
// up to and including the opening brace of the body, then skims forward
// through the body recording every `var`/`const` declared name (and
// nullable if/while bound names) into the symbol's Locals list, tracking
// brace depth so it stops exactly at the matching closing brace — leaving
// the cursor just past it.
func preloadFunction(stream *TokenStream, global *GlobalTable, sawMain *bool) *CompileError {
	pubTok := stream.Next() // 'pub'
	_ = pubTok

	fnTok := stream.Next()
	if fnTok.Kind != KindKeyword || fnTok.Keyword != KwFn {
		return errf(ExitSyntax, fnTok.Line, "expected 'fn' after 'pub'")
	}

	nameTok := stream.Next()
	if nameTok.Kind != KindIdentifier {
		return errf(ExitSyntax, nameTok.Line, "expected function name")
	}
	name := nameTok.Value

	if lp := stream.Next(); lp.Kind != KindLParen {
		return errf(ExitSyntax, lp.Line, "expected '(' after function name %q", name)
	}

	var params []*VariableSymbol
	if stream.Peek().Kind != KindRParen {
		for {
			pNameTok := stream.Next()
			if pNameTok.Kind != KindIdentifier {
				return errf(ExitSyntax, pNameTok.Line, "expected parameter name")
			}

			if colon := stream.Next(); colon.Kind != KindColon {
				return errf(ExitSyntax, colon.Line, "expected ':' after parameter name %q", pNameTok.Value)
			}

			typ, err := parseTypeTokens(stream)
			if err != nil {
				return err
			}

			params = append(params, &VariableSymbol{
				Name: pNameTok.Value, Type: typ, Defined: true, IsParam: true, Const: true,
				Line: pNameTok.Line,
			})

			if stream.Peek().Kind == KindComma {
				stream.Next()
				continue
			}
			break
		}
	}

	if rp := stream.Next(); rp.Kind != KindRParen {
		return errf(ExitSyntax, rp.Line, "expected ')' to close parameter list of %q", name)
	}

	retTyp, err := parseTypeTokens(stream)
	if err != nil {
		return err
	}

	if name == "main" {
		*sawMain = true
		if retTyp != TypeVoid || len(params) != 0 {
			return errf(ExitArity, nameTok.Line, "main must take no parameters and return void")
		}
	}

	fn := &FunctionSymbol{Name: name, ReturnType: retTyp, Params: params}
	if !global.Declare(fn) {
		return errf(ExitRedefinition, nameTok.Line, "function %q already defined", name)
	}

	if lb := stream.Next(); lb.Kind != KindLBrace {
		return errf(ExitSyntax, lb.Line, "expected '{' to open body of %q", name)
	}

	return skimFunctionBody(stream, fn)
}

// skimFunctionBody records local variable names declared anywhere in the
// body (spec §4.3: var/const declarations and nullable-if/while unwrap
// bindings), without any type checking, then consumes up through the
// matching closing brace.
func skimFunctionBody(stream *TokenStream, fn *FunctionSymbol) *CompileError {
	depth := 1

	for {
		tok := stream.Peek()
		if tok.Kind == KindEOF {
			return errf(ExitSyntax, tok.Line, "unexpected end of input in body of %q", fn.Name)
		}

		switch {
		case tok.Kind == KindLBrace:
			depth++
			stream.Next()

		case tok.Kind == KindRBrace:
			depth--
			stream.Next()
			if depth == 0 {
				return nil
			}

		case tok.Kind == KindKeyword && tok.Keyword == KwPub:
			return errf(ExitSyntax, tok.Line, "nested function definition")

		case tok.Kind == KindKeyword && (tok.Keyword == KwVar || tok.Keyword == KwConst):
			stream.Next()
			nameTok := stream.Next()
			if nameTok.Kind == KindIdentifier {
				fn.Locals = append(fn.Locals, nameTok.Value)
			}

		case tok.Kind == KindKeyword && (tok.Keyword == KwIf || tok.Keyword == KwWhile):
			stream.Next()
			// Skip the condition up to its matching '|name|' unwrap, if any,
			// recognized by a '|' immediately following an identifier and a
			// matching closing '|' before the opening brace of the body.
			for stream.Peek().Kind != KindLBrace && stream.Peek().Kind != KindEOF {
				if stream.Peek().Kind == KindPipe {
					stream.Next()
					nameTok := stream.Next()
					if nameTok.Kind == KindIdentifier {
						fn.Locals = append(fn.Locals, nameTok.Value)
					}
					if stream.Peek().Kind == KindPipe {
						stream.Next()
					}
					continue
				}
				stream.Next()
			}

		default:
			stream.Next()
		}
	}
}

// parseTypeTokens consumes a type annotation: an optional leading '?' on a
// KwI32/KwF64 keyword or a KindU8Array token, as already resolved by the
// lexer into Token.Nullable, and returns the corresponding Type. It is used
// both for parameter/return types in preload and for `var`/`const`
// declared-type annotations in the main parser.
func parseTypeTokens(stream *TokenStream) (Type, *CompileError) {
	tok := stream.Next()

	switch {
	case tok.Kind == KindKeyword && tok.Keyword == KwVoid:
		return TypeVoid, nil
	case tok.Kind == KindKeyword && tok.Keyword == KwI32:
		if tok.Nullable {
			return TypeNullableInt, nil
		}
		return TypeInt, nil
	case tok.Kind == KindKeyword && tok.Keyword == KwF64:
		if tok.Nullable {
			return TypeNullableFloat, nil
		}
		return TypeFloat, nil
	case tok.Kind == KindU8Array:
		if tok.Nullable {
			return TypeNullableString, nil
		}
		return TypeString, nil
	default:
		return 0, errf(ExitSyntax, tok.Line, "expected a type, got %s", tok.Kind)
	}
}
