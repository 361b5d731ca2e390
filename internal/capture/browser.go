// SPDX-License-Identifier: MIT
package capture

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	xlog "github.com/screendiary/screendiary/internal/log"
)

type browserProfile struct {
	glob  string
	query string
}

const (
	mozQuery    = `SELECT url FROM moz_places ORDER BY last_visit_date DESC LIMIT 1`
	chromeQuery = `SELECT url FROM urls ORDER BY last_visit_time DESC LIMIT 1`
)

var browserAliases = map[string]string{
	"navigator":        "firefox",
	"firefox":          "firefox",
	"firefox-esr":      "firefox",
	"librewolf":        "librewolf",
	"google-chrome":    "google-chrome",
	"chromium":         "chromium-browser",
	"chromium-browser": "chromium-browser",
	"brave":            "brave-browser",
	"brave-browser":    "brave-browser",
}

// HistoryResolver reads the most recent URL from a browser's on-disk history
// database. The database is opened immutable so the live browser is never
// locked.
type HistoryResolver struct {
	home     string
	profiles map[string]browserProfile
	log      zerolog.Logger
}

// NewHistoryResolver builds a resolver rooted at the user's home directory.
func NewHistoryResolver() *HistoryResolver {
	home, _ := os.UserHomeDir()
	return NewHistoryResolverAt(home)
}

// NewHistoryResolverAt roots the history globs at dir (injectable for tests).
func NewHistoryResolverAt(dir string) *HistoryResolver {
	return &HistoryResolver{
		home: dir,
		profiles: map[string]browserProfile{
			"firefox":          {glob: filepath.Join(dir, ".mozilla/firefox/*/places.sqlite"), query: mozQuery},
			"librewolf":        {glob: filepath.Join(dir, ".librewolf/*/places.sqlite"), query: mozQuery},
			"google-chrome":    {glob: filepath.Join(dir, ".config/google-chrome/Default/History"), query: chromeQuery},
			"chromium-browser": {glob: filepath.Join(dir, ".config/chromium/Default/History"), query: chromeQuery},
			"brave-browser":    {glob: filepath.Join(dir, ".config/BraveSoftware/Brave-Browser/Default/History"), query: chromeQuery},
		},
		log: xlog.WithComponent("browser"),
	}
}

// IsBrowser reports whether the app class maps to a known browser.
func (r *HistoryResolver) IsBrowser(appClass string) bool {
	_, ok := browserAliases[strings.ToLower(appClass)]
	return ok
}

// Domain returns the host of the browser's most recently visited URL with a
// leading "www." stripped, or "" on any failure.
func (r *HistoryResolver) Domain(appClass string) string {
	normalized, ok := browserAliases[strings.ToLower(appClass)]
	if !ok {
		return ""
	}
	profile, ok := r.profiles[normalized]
	if !ok {
		return ""
	}

	dbPath := newestMatch(profile.glob)
	if dbPath == "" {
		return ""
	}

	rawURL, err := readLatestURL(dbPath, profile.query)
	if err != nil {
		r.log.Debug().Err(err).Str("event", "browser.history_failed").Str("browser", normalized).Msg("history read failed")
		return ""
	}
	return HostFromURL(rawURL)
}

// newestMatch finds the most recently modified file matching the glob.
func newestMatch(pattern string) string {
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Slice(matches, func(i, j int) bool {
		ii, ierr := os.Stat(matches[i])
		jj, jerr := os.Stat(matches[j])
		if ierr != nil || jerr != nil {
			return ierr == nil
		}
		return ii.ModTime().After(jj.ModTime())
	})
	return matches[0]
}

func readLatestURL(dbPath, query string) (string, error) {
	// immutable=1 guarantees the live browser database is never locked.
	dsn := fmt.Sprintf("file:%s?immutable=1&mode=ro", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return "", err
	}
	defer func() { _ = db.Close() }()

	var rawURL string
	if err := db.QueryRow(query).Scan(&rawURL); err != nil {
		return "", err
	}
	return rawURL, nil
}

// HostFromURL extracts the host part of a URL and strips a leading "www.".
func HostFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Host
	host = strings.TrimPrefix(host, "www.")
	return host
}
