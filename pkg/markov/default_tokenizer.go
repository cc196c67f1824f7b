package markov

import (
	"bufio"
	"io"
)

// defaultMaxTokenSize is the largest single token the default stream accepts.
const defaultMaxTokenSize = 1 << 20

// DefaultTokenizer is a default implementation of the Tokenizer interface.
// It splits text on runs of Unicode whitespace and applies no further
// normalization, so punctuation stays attached to the word it touches.
// Its behavior can be customized with functional options.
type DefaultTokenizer struct {
	separator    string
	maxTokenSize int
}

// Option Is a function that configures a DefaultTokenizer.
type Option func(*DefaultTokenizer)

// WithSeparator Sets the string used for joining tokens during generation.
// Default: " "
func WithSeparator(sep string) Option {
	return func(t *DefaultTokenizer) {
		t.separator = sep
	}
}

// WithMaxTokenSize sets the largest token, in bytes, the stream will accept.
// Longer tokens make Next return bufio.ErrTooLong.
// Default: 1 MiB
func WithMaxTokenSize(size int) Option {
	return func(t *DefaultTokenizer) {
		if size > 0 {
			t.maxTokenSize = size
		}
	}
}

// NewDefaultTokenizer creates a new tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func NewDefaultTokenizer(opts ...Option) *DefaultTokenizer {
	t := &DefaultTokenizer{
		separator:    " ",
		maxTokenSize: defaultMaxTokenSize,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Separator Returns the configured separator string.
func (t *DefaultTokenizer) Separator(_, _ string) string {
	return t.separator
}

// NewStream Returns the stream processor.
func (t *DefaultTokenizer) NewStream(r io.Reader) StreamTokenizer {
	scanner := bufio.NewScanner(r)
	initial := 64 * 1024
	if initial > t.maxTokenSize {
		initial = t.maxTokenSize
	}
	scanner.Buffer(make([]byte, 0, initial), t.maxTokenSize)
	scanner.Split(bufio.ScanWords)
	return &DefaultStreamTokenizer{scanner: scanner}
}

// DefaultStreamTokenizer is the default implementation of the StreamTokenizer interface.
// It wraps a bufio.Scanner using bufio.ScanWords.
type DefaultStreamTokenizer struct {
	scanner *bufio.Scanner
}

// Next returns the next token from the stream. It returns a Token and a nil error on
// success. When the stream is exhausted, it returns a nil Token and io.EOF.
// Any other error indicates a problem reading from the underlying stream.
func (s *DefaultStreamTokenizer) Next() (*Token, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return &Token{Text: s.scanner.Text()}, nil
}
