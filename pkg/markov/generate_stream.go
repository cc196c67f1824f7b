package markov

import (
	"context"
	"log/slog"
)

// GenerateStream walks c and returns a read-only channel of Tokens.
// This allows for processing the generated text token-by-token, which is useful
// for long walks over cyclic chains. The channel will be closed once the walk
// reaches a dead end or its max length, or the context is cancelled.
// Token texts carry no separators; join them with the tokenizer's Separator.
func (g *Generator) GenerateStream(ctx context.Context, c *Chain, opts ...WalkOption) (<-chan Token, error) {
	if err := checkWalkable(c); err != nil {
		return nil, err
	}
	w, err := newWalker(c, g.source, opts)
	if err != nil {
		return nil, err
	}

	tokenChan := make(chan Token)

	go func() {
		defer close(tokenChan)

		emit := func(text string) bool {
			select {
			case <-ctx.Done():
				return false
			case tokenChan <- Token{Text: text}:
				return true
			}
		}

		count := 0
		for _, text := range w.seed() {
			if !emit(text) {
				g.logger.DebugContext(ctx, "Generation stream cancelled by context")
				return
			}
			count++
		}

		for {
			select {
			case <-ctx.Done():
				g.logger.DebugContext(ctx, "Generation stream cancelled by context",
					slog.Int("generated_length", count),
				)
				return
			default:
				// continue
			}

			text, ok := w.next()
			if !ok {
				break
			}
			if !emit(text) {
				g.logger.DebugContext(ctx, "Generation stream cancelled by context",
					slog.Int("generated_length", count),
				)
				return
			}
			count++
		}

		g.logger.DebugContext(ctx, "Generation stream finished",
			slog.Int("generated_length", count),
			slog.String("reason", w.reason.String()),
		)
	}()

	return tokenChan, nil
}
