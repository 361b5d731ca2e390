// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/screendiary/screendiary/internal/config"
	"github.com/screendiary/screendiary/internal/pipeline"
	"github.com/screendiary/screendiary/internal/search"
	"github.com/screendiary/screendiary/internal/store"
)

// runSearchCLI queries the OCR corpus from the command line. Lexical by
// default, semantic with --semantic (requires a configured AI endpoint).
func runSearchCLI(args []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (TOML)")
	semantic := fs.Bool("semantic", false, "rank by embedding similarity instead of full-text match")
	limit := fs.Int("limit", 20, "maximum number of results")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: screendiary search [--semantic] [--limit N] <query>")
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	st, err := store.Open(cfg.Storage.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot open %s: %v\n", cfg.Storage.DBPath(), err)
		return 1
	}
	defer func() { _ = st.Close() }()

	var embedder search.QueryEmbedder
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		embedder = pipeline.NewEmbedder(cfg.AI.APIBase, cfg.AI.APIKey, cfg.AI.EmbeddingModel)
	}
	engine := search.NewEngine(st, embedder)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var results []search.Result
	if *semantic {
		if embedder == nil {
			fmt.Fprintln(os.Stderr, "error: semantic search requires ai.enabled and ai.api_key")
			return 1
		}
		results, err = engine.Semantic(ctx, query, *limit)
	} else {
		results, err = engine.Text(ctx, query, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return 0
	}

	for _, r := range results {
		fmt.Printf("%s  score %.3f  #%d\n", r.Screenshot.Timestamp.Format("2006-01-02 15:04:05"), r.Score, r.Screenshot.ID)
		if len(r.Highlights) > 0 {
			fmt.Printf("    %s\n", excerpt(r.Highlights[0], 160))
		} else if r.OCRText != "" {
			fmt.Printf("    %s\n", excerpt(r.OCRText, 160))
		}
	}
	return 0
}

// excerpt collapses whitespace and caps the line for terminal output.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
