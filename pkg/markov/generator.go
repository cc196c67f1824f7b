package markov

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ctxCheckInterval is how many walk steps run between context checks.
const ctxCheckInterval = 1024

// Generator is the main entry point for the tokenize, build, walk and join
// pipeline. It holds a tokenizer, a random source and a logger. A Generator
// is safe for concurrent use only if its Source is.
type Generator struct {
	tokenizer Tokenizer
	source    Source
	logger    *slog.Logger
}

// Result is the outcome of a single generation.
type Result struct {
	Text   string
	Tokens []string
	Reason StopReason
}

// NewGenerator creates and returns a new Generator. A nil tokenizer falls back
// to NewDefaultTokenizer and a nil source to DefaultSource.
func NewGenerator(tokenizer Tokenizer, source Source) *Generator {
	if tokenizer == nil {
		tokenizer = NewDefaultTokenizer()
	}
	if source == nil {
		source = DefaultSource()
	}
	return &Generator{
		tokenizer: tokenizer,
		source:    source,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the Generator. By default, all logs are discarded.
// Providing a `log/slog.Logger` will enable logging for chain building and generation.
func (g *Generator) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Tokenizer returns the tokenizer used by the Generator.
func (g *Generator) Tokenizer() Tokenizer {
	return g.tokenizer
}

// BuildChain tokenizes the corpus read from r and builds an n-gram chain from it.
func (g *Generator) BuildChain(ctx context.Context, r io.Reader, n int) (*Chain, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n must be at least 1, got %d", ErrInvalidNGram, n)
	}

	tokens, err := Tokenize(g.tokenizer, r)
	if err != nil {
		return nil, fmt.Errorf("tokenizer error: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	chain, err := Build(tokens, n)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "Chain built",
		slog.Int("order", n),
		slog.Int("tokens", len(tokens)),
		slog.Int("keys", chain.Len()),
		slog.Int("observations", chain.Observations()),
	)
	return chain, nil
}

// Generate runs the full pipeline on a corpus string and returns the generated
// text. If the corpus is too short for a single window of width n, the error
// matches both ErrInvalidNGram and ErrEmptyChain.
func (g *Generator) Generate(ctx context.Context, text string, n int, opts ...WalkOption) (string, error) {
	return g.GenerateFromStream(ctx, strings.NewReader(text), n, opts...)
}

// GenerateFromStream is Generate for a corpus read from an io.Reader.
func (g *Generator) GenerateFromStream(ctx context.Context, r io.Reader, n int, opts ...WalkOption) (string, error) {
	chain, err := g.BuildChain(ctx, r, n)
	if err != nil {
		return "", err
	}
	res, err := g.GenerateFromChain(ctx, chain, opts...)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// GenerateFromChain walks a prebuilt chain and joins the result. The walk
// checks ctx periodically, so an unbounded walk over a cyclic chain can be
// abandoned by cancelling it.
func (g *Generator) GenerateFromChain(ctx context.Context, c *Chain, opts ...WalkOption) (Result, error) {
	if err := checkWalkable(c); err != nil {
		return Result{}, err
	}

	w, err := newWalker(c, g.source, opts)
	if err != nil {
		return Result{}, err
	}

	tokens := w.seed()
	for steps := 1; ; steps++ {
		if steps%ctxCheckInterval == 0 {
			if err = ctx.Err(); err != nil {
				g.logger.DebugContext(ctx, "Generation cancelled",
					slog.Int("generated_length", len(tokens)),
				)
				return Result{}, fmt.Errorf("walk interrupted after %d tokens: %w", len(tokens), err)
			}
		}
		token, ok := w.next()
		if !ok {
			break
		}
		tokens = append(tokens, token)
	}

	g.logger.DebugContext(ctx, "Generation finished",
		slog.Int("order", c.Order()),
		slog.Int("generated_length", len(tokens)),
		slog.String("reason", w.reason.String()),
	)

	return Result{
		Text:   Join(g.tokenizer, tokens),
		Tokens: tokens,
		Reason: w.reason,
	}, nil
}

// checkWalkable explains why a chain built by the pipeline has nothing to walk.
func checkWalkable(c *Chain) error {
	if c == nil {
		return ErrEmptyChain
	}
	if c.Empty() {
		return fmt.Errorf("%w: corpus has %d tokens, need more than %d: %w",
			ErrInvalidNGram, c.CorpusLen(), c.Order(), ErrEmptyChain)
	}
	return nil
}
