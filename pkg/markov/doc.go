/*
Package markov provides an in-memory n-gram Markov chain toolkit for
generating randomized text from a corpus.

A Chain maps every window of n consecutive tokens in the corpus to the
tokens observed directly after it, duplicates included, so uniform sampling
over a successor list reproduces the corpus frequencies. Walk repeatedly
samples a successor and slides the window forward until it reaches a window
that has no recorded successor.

Chains are built per request and are immutable once built; nothing is
persisted. Randomness is drawn from an injected Source so walks can be
reproduced under a fixed seed.
*/
package markov
