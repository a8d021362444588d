// Command stopmark rewrites queries and marks text from the command line
// using the same pipeline as the search service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/text/stopwords"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/logger"
)

type rootOptions struct {
	configPath string
	stopWords  []string
	maxSlop    int
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "stopmark",
		Short:         "Stop-word aware query rewriting and snippet marking",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupWriter(cmd.ErrOrStderr(), "warn", "text")
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringSliceVar(&opts.stopWords, "stop-words", nil, "Comma separated stop words (overrides config)")
	flags.IntVar(&opts.maxSlop, "max-slop", -1, "Maximum phrase slop (overrides config)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	root.AddCommand(newRewriteCmd(opts), newMarkCmd(opts), newIndexCmd(opts))
	return root
}

// load resolves the effective config and stop words from the config file
// and flag overrides.
func (o *rootOptions) load() (*config.Config, stopwords.Set, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, stopwords.Set{}, err
	}
	if o.maxSlop >= 0 {
		cfg.Rewrite.MaxSlop = o.maxSlop
	}
	words := cfg.Analysis.StopWords
	if len(o.stopWords) > 0 {
		words = o.stopWords
	}
	if len(words) == 0 {
		return cfg, stopwords.Default(), nil
	}
	return cfg, stopwords.New(words...), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "stopmark:", err)
		os.Exit(1)
	}
}
