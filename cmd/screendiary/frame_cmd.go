// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/screendiary/screendiary/internal/archive"
	"github.com/screendiary/screendiary/internal/config"
	"github.com/screendiary/screendiary/internal/store"
)

// runFrameCLI exports one frame by screenshot id, pulling it from the live
// tier or extracting it from its archive segment.
func runFrameCLI(args []string) int {
	fs := flag.NewFlagSet("frame", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (TOML)")
	monitor := fs.Int("monitor", 0, "monitor index")
	out := fs.String("out", "", "output file (default frame_<id>.webp)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: screendiary frame [--monitor N] [--out FILE] <screenshot-id>")
		return 2
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid screenshot id %q\n", fs.Arg(0))
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

	manager, err := archive.NewManager(cfg, st, archive.NewFFmpeg("", cfg.Storage.H265CRF, cfg.Storage.H265Preset))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := manager.FrameByScreenshot(ctx, id, *monitor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("frame_%d.webp", id)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s (%s)\n", path, formatBytes(int64(len(data))))
	return 0
}
