package markov

import (
	"fmt"
	"strings"
	"unicode"
)

// keySeparator joins the tokens of a Key. Build and WithStart reject tokens
// that are empty or contain whitespace, so keys inside a Chain cannot collide.
const keySeparator = " "

// Key is an immutable n-gram: a fixed-length sequence of tokens usable as a
// map key. Two keys are equal iff their token sequences are equal.
type Key string

// NewKey builds a Key from the given tokens, in order. Every token must be
// non-empty and free of whitespace; see ValidToken.
func NewKey(tokens ...string) Key {
	return Key(strings.Join(tokens, keySeparator))
}

// Tokens returns a fresh slice holding the tokens of the key. The zero Key
// holds no tokens.
func (k Key) Tokens() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), keySeparator)
}

// Len returns the number of tokens in the key.
func (k Key) Len() int {
	if k == "" {
		return 0
	}
	return strings.Count(string(k), keySeparator) + 1
}

func (k Key) String() string {
	return string(k)
}

// ValidToken reports whether token can be part of a Key.
func ValidToken(token string) bool {
	return token != "" && strings.IndexFunc(token, unicode.IsSpace) < 0
}

// checkTokens returns ErrInvalidToken for the first token ValidToken rejects.
func checkTokens(tokens []string) error {
	for i, token := range tokens {
		if !ValidToken(token) {
			return fmt.Errorf("%w: token %d is %q", ErrInvalidToken, i, token)
		}
	}
	return nil
}
