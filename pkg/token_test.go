package gofj

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "identifier", KindIdentifier.String())
	assert.Equal(t, "EOF", KindEOF.String())
	assert.Contains(t, Kind(999).String(), "Kind(999)")
}

func TestTokenIsOperand(t *testing.T) {
	cases := []struct {
		name string
		tok  Token
		want bool
	}{
		{"identifier", Token{Kind: KindIdentifier}, true},
		{"int literal", Token{Kind: KindIntLiteral}, true},
		{"float literal", Token{Kind: KindFloatLiteral}, true},
		{"string literal", Token{Kind: KindStringLiteral}, true},
		{"null keyword", Token{Kind: KindKeyword, Keyword: KwNull}, true},
		{"other keyword", Token{Kind: KindKeyword, Keyword: KwIf}, false},
		{"operator", Token{Kind: KindPlus}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.tok.IsOperand())
		})
	}
}

func TestTokenIsBinaryOperator(t *testing.T) {
	yes := []Kind{KindPlus, KindMinus, KindStar, KindSlash, KindEq, KindNeq, KindLt, KindGt, KindLeq, KindGeq}
	for _, k := range yes {
		assert.True(t, Token{Kind: k}.IsBinaryOperator(), k.String())
	}

	no := []Kind{KindIdentifier, KindAssign, KindLParen, KindComma}
	for _, k := range no {
		assert.False(t, Token{Kind: k}.IsBinaryOperator(), k.String())
	}
}
