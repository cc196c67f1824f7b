package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/CTAG07/chainwalk/pkg/markov"
)

type inspectOptions struct {
	source string
	nGram  int
	top    int
	json   bool
	dump   bool
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	inspOpts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print statistics about the chain built from a corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts, inspOpts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&inspOpts.source, "source", "s", "", "corpus file, - for stdin (overrides generate_config.source_path)")
	flags.IntVarP(&inspOpts.nGram, "n-gram", "n", 2, "key width of the chain")
	flags.IntVar(&inspOpts.top, "top", 10, "number of most branching keys to list, 0 for all")
	flags.BoolVar(&inspOpts.json, "json", false, "print statistics as JSON")
	flags.BoolVar(&inspOpts.dump, "dump", false, "print the whole chain as JSON")

	return cmd
}

// inspectReport is the --json output.
type inspectReport struct {
	Stats markov.ChainStats     `json:"stats"`
	Top   []markov.KeyBranching `json:"top"`
}

func runInspect(cmd *cobra.Command, opts *rootOptions, inspOpts *inspectOptions) error {
	config, err := loadCommandConfig(cmd, opts)
	if err != nil {
		return err
	}
	applyStringFlag(cmd, "source", &config.Generate.SourcePath, inspOpts.source)
	applyIntFlag(cmd, "n-gram", &config.Generate.NGram, inspOpts.nGram)
	if err = config.Validate(); err != nil {
		return err
	}

	gen := markov.NewGenerator(markov.NewDefaultTokenizer(), nil)
	gen.SetLogger(newLogger(cmd.ErrOrStderr(), config.Server.LogLevel))

	corpus, err := openCorpus(cmd, config.Generate.SourcePath)
	if err != nil {
		return err
	}
	chain, err := gen.BuildChain(cmd.Context(), corpus, config.Generate.NGram)
	_ = corpus.Close()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if inspOpts.dump {
		return chain.WriteJSON(out)
	}

	report := inspectReport{Stats: chain.Stats(), Top: chain.TopBranching(inspOpts.top)}
	if inspOpts.json {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	styled := shouldUseColor(out)
	s := report.Stats
	summary := [][]string{
		{"order", strconv.Itoa(s.Order)},
		{"corpus tokens", strconv.Itoa(s.CorpusTokens)},
		{"keys", strconv.Itoa(s.Keys)},
		{"observations", strconv.Itoa(s.Observations)},
		{"vocabulary", strconv.Itoa(s.Vocabulary)},
		{"max branching", strconv.Itoa(s.MaxBranching)},
		{"mean successors", strconv.FormatFloat(s.MeanSuccessors, 'f', 2, 64)},
		{"dead ends", strconv.Itoa(s.DeadEnds)},
	}
	if err = writeLines(out, formatTable(nil, summary, map[int]bool{1: true}, styled)); err != nil {
		return err
	}
	if len(report.Top) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(report.Top))
	for _, kb := range report.Top {
		rows = append(rows, []string{kb.Key.String(), strconv.Itoa(kb.Distinct), strconv.Itoa(kb.Successors)})
	}
	if _, err = fmt.Fprintln(out); err != nil {
		return err
	}
	return writeLines(out, formatTable([]string{"KEY", "DISTINCT", "SUCCESSORS"}, rows, map[int]bool{1: true, 2: true}, styled))
}
