package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stopmark/pkg/config"
)

type markOptions struct {
	file        string
	mode        string
	context     int
	maxSnippets int
	open        string
	close       string
}

type markOutput struct {
	Query     string   `json:"query"`
	Rewritten string   `json:"rewritten"`
	Ignored   []string `json:"ignored"`
	Matched   bool     `json:"matched"`
	Snippets  []string `json:"snippets"`
}

func newMarkCmd(root *rootOptions) *cobra.Command {
	opts := &markOptions{}
	cmd := &cobra.Command{
		Use:   "mark <query>",
		Short: "Mark the passages of a text that match a query",
		Long: `Index a single text in memory, run the query against it and print
the best matching passages with the matched words marked.

Examples:
  stopmark mark --file essay.txt '"man of the world"'
  cat essay.txt | stopmark mark --mode all --open '*' --close '*' world`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMark(cmd, root, opts, strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "Text file to mark (default stdin)")
	flags.StringVarP(&opts.mode, "mode", "m", "", "Term marking mode: none, span, context or all (overrides config)")
	flags.IntVar(&opts.context, "context", -1, "Maximum context characters around a span (overrides config)")
	flags.IntVarP(&opts.maxSnippets, "snippets", "n", 0, "Maximum snippets to print (overrides config)")
	flags.StringVar(&opts.open, "open", "[", "Marker written before a matched word")
	flags.StringVar(&opts.close, "close", "]", "Marker written after a matched word")
	return cmd
}

func runMark(cmd *cobra.Command, root *rootOptions, opts *markOptions, q string) error {
	cfg, stops, err := root.load()
	if err != nil {
		return err
	}
	if opts.mode != "" {
		cfg.Marking.TermMode = opts.mode
	}
	if opts.context >= 0 {
		cfg.Marking.MaxContextChars = opts.context
	}
	if opts.maxSnippets > 0 {
		cfg.Marking.MaxSnippets = opts.maxSnippets
	}

	text, err := readInput(cmd.InOrStdin(), opts.file)
	if err != nil {
		return err
	}

	engine, err := indexer.NewEngine(config.IndexerConfig{}, []string{"body"}, stops)
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.IndexDocument(indexer.Document{ID: "input", Body: text}); err != nil {
		return err
	}

	exec, err := executor.New(engine, stops, cfg.Rewrite, cfg.Marking, nil)
	if err != nil {
		return err
	}
	res, err := exec.Execute(context.Background(), executor.Request{Query: q, Limit: 1})
	if err != nil {
		return err
	}

	out := markOutput{Query: q, Rewritten: res.Rewritten, Ignored: res.Ignored, Snippets: []string{}}
	if len(res.Hits) > 0 {
		out.Matched = true
		for _, s := range res.Hits[0].Snippets {
			out.Snippets = append(out.Snippets, s.Marked(opts.open, opts.close))
		}
	}

	w := cmd.OutOrStdout()
	if root.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if !out.Matched {
		fmt.Fprintf(w, "no match for %s\n", out.Rewritten)
		return nil
	}
	for i, s := range out.Snippets {
		fmt.Fprintf(w, "%d. %s\n", i+1, s)
	}
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}
