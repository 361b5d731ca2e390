// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/screendiary/screendiary/internal/config"
	"github.com/screendiary/screendiary/internal/store"
)

// runStatusCLI prints catalog counters and storage usage for the configured
// data directory.
func runStatusCLI(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (TOML)")
	if err := fs.Parse(args); err != nil {
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := st.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("Data dir:        %s\n", cfg.Storage.DataDir)
	fmt.Printf("Screenshots:     %d (%d live, %d archived)\n",
		stats.TotalScreenshots, stats.LiveScreenshots, stats.ArchivedScreenshots)
	fmt.Printf("OCR results:     %d\n", stats.OCRResults)
	fmt.Printf("Embeddings:      %d\n", stats.Embeddings)
	fmt.Printf("Video segments:  %d\n", stats.VideoSegments)
	fmt.Printf("Storage used:    %s of %d GB\n", formatBytes(stats.StorageBytes), cfg.Storage.MaxStorageGB)
	return 0
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
