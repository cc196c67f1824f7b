package markov

import "errors"

// Input errors
var (
	// ErrInvalidNGram indicates an n-gram width below 1, or a corpus too short
	// to produce a single window of the requested width.
	ErrInvalidNGram = errors.New("invalid n-gram width")

	// ErrUnknownStart indicates that a requested start window is not a key of the chain.
	ErrUnknownStart = errors.New("start window not found in chain")

	// ErrInvalidToken indicates a token that is empty or contains whitespace.
	// Such a token could not be told apart from its neighbours inside a Key.
	ErrInvalidToken = errors.New("token is empty or contains whitespace")
)

// Walk errors
var (
	// ErrEmptyChain indicates a walk was requested on a chain with no keys.
	ErrEmptyChain = errors.New("chain is empty")
)
