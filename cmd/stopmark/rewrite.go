package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query/bigram"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/query/parser"
)

type rewriteOutput struct {
	Query     string   `json:"query"`
	Parsed    string   `json:"parsed"`
	Rewritten string   `json:"rewritten"`
	Ignored   []string `json:"ignored"`
}

func newRewriteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite <query>",
		Short: "Print the bigram rewrite of a query",
		Long: `Parse a query, fold its stop words into bigrams and print the result
together with the stop words that could not be kept.

Examples:
  stopmark rewrite '"man of the world"'
  stopmark rewrite --stop-words the,of 'the cat OR of dogs'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, stops, err := opts.load()
			if err != nil {
				return err
			}
			q := strings.Join(args, " ")
			parsed, err := parser.New(cfg.Rewrite.MaxSlop, cfg.Search.Fields...).Parse(q)
			if err != nil {
				return err
			}
			res := bigram.New(stops, cfg.Rewrite.MaxSlop).Rewrite(parsed)

			out := rewriteOutput{Query: q, Parsed: parsed.String(), Ignored: res.Removed}
			if res.Query != nil {
				out.Rewritten = res.Query.String()
			}
			if out.Ignored == nil {
				out.Ignored = []string{}
			}

			w := cmd.OutOrStdout()
			if opts.jsonOutput {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintf(w, "parsed:    %s\n", out.Parsed)
			if res.Query == nil {
				fmt.Fprintln(w, "rewritten: (nothing searchable)")
			} else {
				fmt.Fprintf(w, "rewritten: %s\n", out.Rewritten)
			}
			fmt.Fprintf(w, "ignored:   %s\n", strings.Join(out.Ignored, " "))
			return nil
		},
	}
}
