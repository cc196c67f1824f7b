package markov

import "sort"

// ChainStats holds aggregated statistics for a single chain.
type ChainStats struct {
	Order          int     `json:"order"`           // The n-gram width
	CorpusTokens   int     `json:"corpus_tokens"`   // The number of tokens the chain was built from
	Keys           int     `json:"keys"`            // The number of distinct windows with a successor
	Observations   int     `json:"observations"`    // The number of recorded (key, successor) pairs
	Vocabulary     int     `json:"vocabulary"`      // The number of distinct tokens seen in keys or successors
	MaxBranching   int     `json:"max_branching"`   // The largest number of distinct successors for one key
	MeanSuccessors float64 `json:"mean_successors"` // Observations divided by Keys
	DeadEnds       int     `json:"dead_ends"`       // Distinct reachable windows with no successor
}

// KeyBranching describes the successors of a single key.
type KeyBranching struct {
	Key        Key `json:"key"`
	Successors int `json:"successors"`
	Distinct   int `json:"distinct"`
}

// Stats returns a snapshot of statistics for the chain.
func (c *Chain) Stats() ChainStats {
	stats := ChainStats{
		Order:        c.order,
		CorpusTokens: c.corpusLen,
		Keys:         len(c.keys),
		Observations: c.observations,
	}
	if len(c.keys) == 0 {
		return stats
	}

	vocab := make(map[string]struct{})
	deadEnds := make(map[Key]struct{})
	for _, key := range c.keys {
		window := key.Tokens()
		for _, token := range window {
			vocab[token] = struct{}{}
		}
		next := make([]string, len(window))
		copy(next, window[1:])

		distinct := distinctTokens(c.links[key])
		if len(distinct) > stats.MaxBranching {
			stats.MaxBranching = len(distinct)
		}
		for _, successor := range distinct {
			vocab[successor] = struct{}{}
			next[len(next)-1] = successor
			if nextKey := NewKey(next...); !c.Has(nextKey) {
				deadEnds[nextKey] = struct{}{}
			}
		}
	}

	stats.Vocabulary = len(vocab)
	stats.MeanSuccessors = float64(c.observations) / float64(len(c.keys))
	stats.DeadEnds = len(deadEnds)
	return stats
}

// TopBranching returns up to k keys with the most distinct successors, ties
// broken by first-seen order. A k of 0 or less returns every key.
func (c *Chain) TopBranching(k int) []KeyBranching {
	branching := make([]KeyBranching, 0, len(c.keys))
	for _, key := range c.keys {
		successors := c.links[key]
		branching = append(branching, KeyBranching{
			Key:        key,
			Successors: len(successors),
			Distinct:   len(distinctTokens(successors)),
		})
	}
	sort.SliceStable(branching, func(i, j int) bool {
		return branching[i].Distinct > branching[j].Distinct
	})
	if k > 0 && k < len(branching) {
		branching = branching[:k]
	}
	return branching
}

// distinctTokens returns the unique tokens of s in first-seen order.
func distinctTokens(s []string) []string {
	seen := make(map[string]struct{}, len(s))
	out := make([]string, 0, len(s))
	for _, token := range s {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
