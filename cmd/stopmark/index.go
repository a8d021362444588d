package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stopmark/internal/indexer/consumer"
)

const maxLineBytes = 10 << 20

type indexOptions struct {
	dataDir string
	batch   int
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	opts := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index <file.jsonl>...",
		Short: "Bulk load JSON-lines documents into an on-disk index",
		Long: `Read documents, one JSON object per line with id, title and body,
and write them to the index directory the search service opens at startup.
Use - to read from stdin.

Examples:
  stopmark index --data-dir /var/lib/stopmark corpus.jsonl
  zcat dump.jsonl.gz | stopmark index --data-dir ./index -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.dataDir, "data-dir", "d", "", "Index directory (overrides config indexer.dataDir)")
	cmd.Flags().IntVarP(&opts.batch, "batch", "b", 0, "Documents per batch (overrides config indexer.batchSize)")
	return cmd
}

func runIndex(cmd *cobra.Command, root *rootOptions, opts *indexOptions, paths []string) error {
	cfg, stops, err := root.load()
	if err != nil {
		return err
	}
	if opts.dataDir != "" {
		cfg.Indexer.DataDir = opts.dataDir
	}
	if opts.batch > 0 {
		cfg.Indexer.BatchSize = opts.batch
	}
	if cfg.Indexer.DataDir == "" {
		return fmt.Errorf("an index directory is required: pass --data-dir or set indexer.dataDir")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := indexer.NewEngine(cfg.Indexer, cfg.Search.Fields, stops)
	if err != nil {
		return err
	}
	defer engine.Close()
	loader := consumer.New(engine, nil, nil, nil)

	total := 0
	for _, path := range paths {
		n, err := loadFile(ctx, cmd.InOrStdin(), path, loader, max(cfg.Indexer.BatchSize, 1))
		total += n
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	count, err := engine.DocCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents, index holds %d\n", total, count)
	return nil
}

func loadFile(ctx context.Context, stdin io.Reader, path string, loader *consumer.IndexConsumer, batchSize int) (int, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		batch []indexer.Document
		total int
		line  int
	)
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc indexer.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		if doc.ID == "" {
			return total, fmt.Errorf("line %d: document id is required", line)
		}
		batch = append(batch, doc)
		if len(batch) == batchSize {
			if err := loader.IndexBatch(ctx, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return total, err
	}
	if err := loader.IndexBatch(ctx, batch); err != nil {
		return total, err
	}
	return total + len(batch), nil
}
