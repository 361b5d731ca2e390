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

// runTimelineCLI browses the catalog. Without --date it lists all capture
// days; with one it walks that day's screenshots.
func runTimelineCLI(args []string) int {
	fs := flag.NewFlagSet("timeline", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (TOML)")
	date := fs.String("date", "", "day to browse (YYYY-MM-DD, empty lists all days)")
	verbose := fs.Bool("v", false, "include per-screenshot storage details")
	offset := fs.Int("offset", 0, "skip this many screenshots (with -v)")
	limit := fs.Int("limit", 50, "maximum screenshots to print (with -v)")
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *date == "" {
		dates, err := st.Dates(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		if len(dates) == 0 {
			fmt.Println("no captures recorded")
			return 0
		}
		for _, d := range dates {
			fmt.Printf("%s  %d screenshots\n", d.Date, d.Count)
		}
		return 0
	}

	if _, err := time.Parse(store.DateLayout, *date); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid --date %q, want YYYY-MM-DD\n", *date)
		return 2
	}

	total, err := st.ScreenshotCount(ctx, *date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("%s: %d screenshots\n", *date, total)

	if *verbose {
		shots, err := st.Screenshots(ctx, *date, *offset, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		for _, sc := range shots {
			fmt.Printf("  #%-8d %s  %s  %s\n", sc.ID, sc.Timestamp.Format("15:04:05"),
				sc.StorageType, formatBytes(sc.FileSize))
		}
		return 0
	}

	entries, err := st.Timeline(ctx, *date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Printf("  #%-8d %s\n", e.ID, e.Timestamp.Format("15:04:05"))
	}
	return 0
}
