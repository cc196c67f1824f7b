package markov

import "fmt"

// Chain is an n-gram transition table: it maps every window of Order()
// consecutive corpus tokens to the tokens observed directly after it.
// Successor lists keep every occurrence in corpus order, so uniform sampling
// over them follows the empirical frequencies. A Chain is never modified
// after Build returns it.
type Chain struct {
	order        int
	links        map[Key][]string
	keys         []Key // first-seen order, keeps seeded walks reproducible
	observations int
	corpusLen    int
}

// Build slides a window of width n across tokens and records, for each start
// position i in [0, len(tokens)-n), the successor tokens[i+n] under the key
// tokens[i:i+n]. A corpus with n or fewer tokens yields an empty chain and no
// error; walking that chain fails with ErrEmptyChain. An empty token or one
// containing whitespace fails with ErrInvalidToken.
func Build(tokens []string, n int) (*Chain, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n must be at least 1, got %d", ErrInvalidNGram, n)
	}
	if err := checkTokens(tokens); err != nil {
		return nil, err
	}

	c := &Chain{
		order:     n,
		links:     make(map[Key][]string),
		corpusLen: len(tokens),
	}
	for i := 0; i+n < len(tokens); i++ {
		key := NewKey(tokens[i : i+n]...)
		successors, ok := c.links[key]
		if !ok {
			c.keys = append(c.keys, key)
		}
		c.links[key] = append(successors, tokens[i+n])
		c.observations++
	}
	return c, nil
}

// Order returns the n-gram width of the chain.
func (c *Chain) Order() int {
	return c.order
}

// Len returns the number of distinct keys.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// Empty reports whether the chain has no keys.
func (c *Chain) Empty() bool {
	return c.Len() == 0
}

// Observations returns the total number of (key, successor) pairs recorded,
// which is len(tokens)-n for any corpus longer than n.
func (c *Chain) Observations() int {
	return c.observations
}

// CorpusLen returns the number of tokens the chain was built from.
func (c *Chain) CorpusLen() int {
	return c.corpusLen
}

// Keys returns every key in the order it was first seen in the corpus.
func (c *Chain) Keys() []Key {
	return append([]Key(nil), c.keys...)
}

// Has reports whether key has at least one recorded successor.
func (c *Chain) Has(key Key) bool {
	_, ok := c.links[key]
	return ok
}

// Successors returns a copy of the successors recorded for key, in corpus
// order. It returns nil for a dead end.
func (c *Chain) Successors(key Key) []string {
	successors, ok := c.links[key]
	if !ok {
		return nil
	}
	return append([]string(nil), successors...)
}

// successors returns the shared backing slice; callers must not modify it.
func (c *Chain) successors(key Key) ([]string, bool) {
	s, ok := c.links[key]
	return s, ok
}
