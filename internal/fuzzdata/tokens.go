// Package fuzzdata generates random gofj-flavored token soup for lexer
// benchmarks.
package fuzzdata

import (
	"math/rand"
	"strings"
)

const validTokens = "pub;fn;main;(;);{;};i32;f64;?i32;[]u8;\"this is a string\";" +
	"\"this is a longer string containing a bunch of text: Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.\";" +
	"\"\";+;-;*;/;==;!=;<;>;<=;>=;=;:;,;|;123;321;3.14;0.5;//comment\n;\n;return;if;else;while;var;const;null;void"

// GetRandomTokens returns size whitespace-separated random tokens.
func GetRandomTokens(size int) string {
	return GetRandomTokensWithSep(size, " ")
}

// GetRandomTokensWithSep is GetRandomTokens with a caller-chosen
// separator, used to probe the lexer's whitespace handling under
// benchmark.
func GetRandomTokensWithSep(size int, sep string) string {
	valid := strings.Split(validTokens, ";")

	var toks []string
	for len(toks) < size {
		toks = append(toks, valid[rand.Intn(len(valid))])
	}

	return strings.Join(toks, sep)
}
