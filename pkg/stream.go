package gofj

// TokenStream is the growable, cursor-indexed sequence of tokens described
// in spec §3. It is append-only during lexing and random-access during
// parsing; a single cursor indexes the next token to consume.
type TokenStream struct {
	tokens []Token
	cursor int
}

// NewTokenStream wraps an already-lexed slice of tokens. The slice is taken
// by reference; callers should not mutate it afterwards.
func NewTokenStream(tokens []Token) *TokenStream {
	return &TokenStream{tokens: tokens}
}

// Append adds a token to the end of the stream. The lexer does not use it:
// it collects its tokens in a slice and wraps them with NewTokenStream.
func (s *TokenStream) Append(t Token) {
	s.tokens = append(s.tokens, t)
}

// Peek returns the token at the cursor without advancing it. Peeking past
// the end of the stream yields the final token, which is always EOF.
func (s *TokenStream) Peek() Token {
	if s.cursor >= len(s.tokens) {
		return s.tokens[len(s.tokens)-1]
	}

	return s.tokens[s.cursor]
}

// PeekAt returns the token n positions ahead of the cursor without
// advancing it.
func (s *TokenStream) PeekAt(n int) Token {
	idx := s.cursor + n
	if idx >= len(s.tokens) {
		return s.tokens[len(s.tokens)-1]
	}

	return s.tokens[idx]
}

// Next returns the token at the cursor and advances it by one.
func (s *TokenStream) Next() Token {
	tok := s.Peek()
	if s.cursor < len(s.tokens) {
		s.cursor++
	}

	return tok
}

// Back reverts the cursor by one position. It is the only way tokens are
// "un-consumed"; no separate lookahead buffer exists.
func (s *TokenStream) Back() {
	if s.cursor > 0 {
		s.cursor--
	}
}

// Mark returns the current cursor position, to be restored with Reset.
func (s *TokenStream) Mark() int {
	return s.cursor
}

// Reset rewinds the cursor to a position previously returned by Mark.
func (s *TokenStream) Reset(pos int) {
	s.cursor = pos
}

// Len returns the number of tokens in the stream, EOF included.
func (s *TokenStream) Len() int {
	return len(s.tokens)
}
