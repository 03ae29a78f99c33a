// Command lilac is a thin CLI over the dataset, executor, and query
// packages: build a dataset from a JSON-lines export, run a registered
// signal over it, and select rows back out. Grounded on the teacher's
// cobra-based cmd/build.go (RunE-per-subcommand, flags bound in init),
// generalized from "build a Mache FUSE-overlay database" to "build and
// query a Lilac dataset".
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lilac-data/lilac/executor"
	"github.com/lilac-data/lilac/query"
	"github.com/lilac-data/lilac/schema"
	sig "github.com/lilac-data/lilac/signal"
	"github.com/lilac-data/lilac/store"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "lilac",
	Short:   "Lilac: dataset ingestion, enrichment, and query",
	Version: version,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(queryCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [jsonl-file] [dataset-dir]",
	Short: "Build a dataset from a newline-delimited JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := newJSONLSource(args[0])
		fs := store.NewLocalFilesystem(args[1])
		ds, err := store.Create(context.Background(), fs, src)
		if err != nil {
			return err
		}
		m := ds.Manifest()
		fmt.Printf("ingested %s into %s (%d top-level fields)\n", args[0], args[1], len(m.Schema.Fields))
		return nil
	},
}

var (
	enrichSignal string
	enrichPath   string
	enrichParams string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [dataset-dir]",
	Short: "Run a registered signal over a dataset field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := store.NewLocalFilesystem(args[0])
		ds, err := store.Open(fs)
		if err != nil {
			return err
		}
		registry := sig.NewBuiltinRegistry()
		plan, err := executor.BuildPlan(registry, enrichSignal, map[string]any{}, enrichPath)
		if err != nil {
			return err
		}
		exec := executor.New(registry, 0)
		err = exec.Run(context.Background(), ds, plan, executor.RunOptions{}, func(p executor.Progress) {
			fmt.Fprintf(os.Stderr, "\r%s: %d/%d", p.Step.SignalName, p.Completed, p.Total)
		})
		fmt.Println()
		return err
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichSignal, "signal", "text_length", "registered signal name to run")
	enrichCmd.Flags().StringVar(&enrichPath, "path", "text", "dotted input field path")
	enrichCmd.Flags().StringVar(&enrichParams, "params", "", "unused placeholder for future JSON-encoded signal params")
}

var (
	queryKeyword string
	queryLimit   int
)

var queryCmd = &cobra.Command{
	Use:   "query [dataset-dir]",
	Short: "Select rows from a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := store.NewLocalFilesystem(args[0])
		ds, err := store.Open(fs)
		if err != nil {
			return err
		}
		registry := sig.NewBuiltinRegistry()
		req := query.Request{Limit: queryLimit}
		if queryKeyword != "" {
			path, err := schema.NormalizePath("text")
			if err != nil {
				return err
			}
			req.Searches = append(req.Searches, query.Search{Kind: query.SearchKeyword, Path: path, Query: queryKeyword})
		}
		result, err := query.SelectRows(context.Background(), ds, nil, registry, req)
		if err != nil {
			return err
		}
		for _, row := range result.Rows {
			fmt.Printf("%s: %v\n", row.RowID, row.Values)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryKeyword, "keyword", "", "keyword search over the \"text\" field")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum rows to return (0 = unlimited)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
