package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/CTAG07/chainwalk/pkg/markov"
)

type generateOptions struct {
	source    string
	nGram     int
	maxLength int
	seed      uint64
	start     string
	stream    bool
	out       string
	noHistory bool
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	genOpts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a chain from a corpus and print one random walk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts, genOpts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&genOpts.source, "source", "s", "", "corpus file, - for stdin (overrides generate_config.source_path)")
	flags.IntVarP(&genOpts.nGram, "n-gram", "n", 2, "key width of the chain")
	flags.IntVarP(&genOpts.maxLength, "max-length", "m", 0, "stop after this many tokens, 0 for no limit")
	flags.Uint64Var(&genOpts.seed, "seed", 0, "random seed, 0 for a random walk each run")
	flags.StringVar(&genOpts.start, "start", "", "space separated starting window, must be a key of the chain")
	flags.BoolVar(&genOpts.stream, "stream", false, "write tokens as they are generated")
	flags.StringVarP(&genOpts.out, "out", "o", "", "write the output to this file instead of stdout")
	flags.BoolVar(&genOpts.noHistory, "no-history", false, "do not record this run in the history database")

	return cmd
}

// applyGenerateFlags overlays the flags the user set on the loaded config.
func applyGenerateFlags(cmd *cobra.Command, cfg *GenerateConfig, genOpts *generateOptions) {
	applyStringFlag(cmd, "source", &cfg.SourcePath, genOpts.source)
	applyIntFlag(cmd, "n-gram", &cfg.NGram, genOpts.nGram)
	applyIntFlag(cmd, "max-length", &cfg.MaxLength, genOpts.maxLength)
	applyUint64Flag(cmd, "seed", &cfg.Seed, genOpts.seed)
}

// openCorpus returns the corpus reader named by path. An empty path or "-"
// means stdin, which must not be an interactive terminal.
func openCorpus(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		in := cmd.InOrStdin()
		if isTerminal(in) {
			return nil, errors.New("no corpus: pass --source or pipe text on stdin")
		}
		return io.NopCloser(in), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	return file, nil
}

func runGenerate(cmd *cobra.Command, opts *rootOptions, genOpts *generateOptions) error {
	config, err := loadCommandConfig(cmd, opts)
	if err != nil {
		return err
	}
	applyGenerateFlags(cmd, config.Generate, genOpts)
	if err = config.Validate(); err != nil {
		return err
	}
	if genOpts.stream && genOpts.out != "" {
		return errors.New("--stream cannot be combined with --out")
	}

	logger := newLogger(cmd.ErrOrStderr(), config.Server.LogLevel)
	ctx := cmd.Context()

	var source markov.Source
	if config.Generate.Seed != 0 {
		source = markov.NewSource(config.Generate.Seed)
	}
	gen := markov.NewGenerator(markov.NewDefaultTokenizer(), source)
	gen.SetLogger(logger)

	corpus, err := openCorpus(cmd, config.Generate.SourcePath)
	if err != nil {
		return err
	}
	chain, err := gen.BuildChain(ctx, corpus, config.Generate.NGram)
	_ = corpus.Close()
	if err != nil {
		return err
	}

	walkOpts := []markov.WalkOption{markov.WithMaxLength(config.Generate.MaxLength)}
	if genOpts.start != "" {
		walkOpts = append(walkOpts, markov.WithStart(strings.Fields(genOpts.start)...))
	}

	var (
		outputTokens int
		reason       markov.StopReason
	)
	if genOpts.stream {
		outputTokens, reason, err = streamWalk(ctx, cmd.OutOrStdout(), gen, chain, config.Generate.MaxLength, walkOpts)
	} else {
		var res markov.Result
		res, err = gen.GenerateFromChain(ctx, chain, walkOpts...)
		if err == nil {
			outputTokens, reason = len(res.Tokens), res.Reason
			err = writeResult(cmd.OutOrStdout(), genOpts.out, res.Text)
		}
	}
	if err != nil {
		return err
	}

	if config.Server.HistoryEnabled && !genOpts.noHistory {
		recordCLIRun(ctx, logger, config, &Run{
			Source:       "cli",
			NGram:        config.Generate.NGram,
			CorpusTokens: chain.CorpusLen(),
			ChainKeys:    chain.Len(),
			OutputTokens: outputTokens,
			Reason:       reason.String(),
			Seed:         config.Generate.Seed,
		})
	}
	return nil
}

// writeResult writes text to the file at path, or to w when path is empty.
// Terminal output is wrapped to the terminal width.
func writeResult(w io.Writer, path, text string) error {
	if path != "" {
		if err := atomic.WriteFile(path, strings.NewReader(text+"\n")); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if width := terminalWidth(w); width > 0 {
		text = wrapText(text, width)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// streamWalk copies a streamed walk to w token by token. The stream carries no
// stop reason, so it is recovered from the tokens that were emitted.
func streamWalk(ctx context.Context, w io.Writer, gen *markov.Generator, chain *markov.Chain, maxLength int, walkOpts []markov.WalkOption) (int, markov.StopReason, error) {
	tokens, err := gen.GenerateStream(ctx, chain, walkOpts...)
	if err != nil {
		return 0, 0, err
	}

	count := 0
	prev := ""
	tail := make([]string, 0, chain.Order()+1)
	for token := range tokens {
		tail = append(tail, token.Text)
		if len(tail) > chain.Order() {
			tail = tail[1:]
		}
		if count > 0 {
			if _, err = io.WriteString(w, gen.Tokenizer().Separator(prev, token.Text)); err != nil {
				return count, 0, err
			}
		}
		if _, err = io.WriteString(w, token.Text); err != nil {
			return count, 0, err
		}
		prev = token.Text
		count++
	}
	if _, err = io.WriteString(w, "\n"); err != nil {
		return count, 0, err
	}

	reason := streamStopReason(chain, tail, count, maxLength)
	if reason == markov.StopCancelled {
		return count, reason, fmt.Errorf("walk interrupted after %d tokens: %w", count, context.Cause(ctx))
	}
	return count, reason, nil
}

// streamStopReason applies the walker's stop rules to the emitted tokens: the
// cap first, then a final window with no successors. A stream that ended while
// neither held was cut short by its context.
func streamStopReason(chain *markov.Chain, tail []string, count, maxLength int) markov.StopReason {
	switch {
	case maxLength > 0 && count >= max(maxLength, chain.Order()):
		return markov.StopMaxLength
	case len(tail) == chain.Order() && !chain.Has(markov.NewKey(tail...)):
		return markov.StopDeadEnd
	default:
		return markov.StopCancelled
	}
}

// recordCLIRun stores run in the history database. Failures are logged, never
// returned, so a broken database does not cost the user their output.
func recordCLIRun(ctx context.Context, logger *slog.Logger, config *Config, run *Run) {
	history, err := OpenHistoryStore(config.Server.HistoryDatabasePath, logger)
	if err != nil {
		logger.Warn("Failed to open history database", "error", err)
		return
	}
	defer func() {
		if err := history.Close(); err != nil {
			logger.Warn("Failed to close history database", "error", err)
		}
	}()

	if err = history.Record(ctx, run); err != nil {
		logger.Warn("Failed to record generation run", "error", err)
	}
}
