// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/screendiary/screendiary/internal/activity"
	"github.com/screendiary/screendiary/internal/config"
	"github.com/screendiary/screendiary/internal/store"
)

// runReportCLI prints the activity report for one day: sessions, breaks,
// per-category totals and, when cached or regenerated, the AI narrative.
func runReportCLI(args []string) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file (TOML)")
	date := fs.String("date", time.Now().Format(store.DateLayout), "day to report (YYYY-MM-DD)")
	regenerate := fs.Bool("regenerate", false, "force a fresh AI narrative instead of the cached one")
	top := fs.Int("top", 5, "number of entries in the top apps/titles/domains lists")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := time.Parse(store.DateLayout, *date); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid --date %q, want YYYY-MM-DD\n", *date)
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := activity.NewSummarizer(cfg, st).DayReport(ctx, *date, *regenerate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	printReport(report)
	if len(report.Sessions) > 0 {
		if err := printTopStats(ctx, st, *date, *top); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}
	return 0
}

func printTopStats(ctx context.Context, st *store.Store, date string, limit int) error {
	apps, err := st.TopApps(ctx, date, limit)
	if err != nil {
		return err
	}
	titles, err := st.TopWindowTitles(ctx, date, limit)
	if err != nil {
		return err
	}
	domains, err := st.TopBrowserDomains(ctx, date, limit)
	if err != nil {
		return err
	}

	if len(apps) > 0 {
		fmt.Println("\nTop apps:")
		for _, a := range apps {
			fmt.Printf("  %6d  %s\n", a.Count, a.AppClass)
		}
	}
	if len(titles) > 0 {
		fmt.Println("\nTop windows:")
		for _, t := range titles {
			fmt.Printf("  %6d  %s\n", t.Count, excerpt(t.WindowTitle, 80))
		}
	}
	if len(domains) > 0 {
		fmt.Println("\nTop domains:")
		for _, d := range domains {
			fmt.Printf("  %6d  %s\n", d.Count, d.BrowserDomain)
		}
	}
	return nil
}

func printReport(r *activity.DayReport) {
	fmt.Printf("Activity report for %s\n\n", r.Date)
	if len(r.Sessions) == 0 {
		fmt.Println("no activity recorded")
		return
	}

	fmt.Printf("Active:  %s (%s - %s)\n",
		formatDuration(r.Metrics.TotalActiveSeconds),
		r.Metrics.FirstActivity.Format("15:04"),
		r.Metrics.LastActivity.Format("15:04"))
	fmt.Printf("Breaks:  %d (%s)\n\n", r.Metrics.BreakCount, formatDuration(r.Metrics.TotalBreakSeconds))

	categories := make([]string, 0, len(r.Metrics.CategorySeconds))
	for cat := range r.Metrics.CategorySeconds {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool {
		return r.Metrics.CategorySeconds[categories[i]] > r.Metrics.CategorySeconds[categories[j]]
	})
	for _, cat := range categories {
		fmt.Printf("  %-14s %s\n", cat, formatDuration(r.Metrics.CategorySeconds[cat]))
	}

	fmt.Println("\nSessions:")
	for _, s := range r.Sessions {
		line := fmt.Sprintf("  %s-%s [%s] %s (%s)",
			s.Start.Format("15:04"), s.End.Format("15:04"), s.Category, s.AppClass,
			formatDuration(s.DurationSeconds()))
		if len(s.BrowserDomains) > 0 {
			line += " " + strings.Join(s.BrowserDomains, ", ")
		}
		fmt.Println(line)
	}

	if r.AISummary != nil {
		fmt.Printf("\n%s\n", r.AISummary.Summary)
		for _, b := range r.AISummary.Blocks {
			fmt.Printf("  %s  %s (%dmin): %s\n", b.TimeRange, b.Label, b.DurationMinutes, b.Description)
		}
	}
	if r.MOTD != "" {
		fmt.Printf("\n%s\n", r.MOTD)
	}
}

func formatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dmin", minutes)
	}
	return fmt.Sprintf("%dh %02dmin", minutes/60, minutes%60)
}
