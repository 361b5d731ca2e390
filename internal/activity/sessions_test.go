// SPDX-License-Identifier: MIT
package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screendiary/screendiary/internal/store"
)

func ts(t *testing.T, clock string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04:05", "2026-03-02 "+clock)
	require.NoError(t, err)
	return parsed
}

func event(t *testing.T, clock, appClass, title, domain string) *store.WindowEvent {
	t.Helper()
	return &store.WindowEvent{
		Timestamp:     ts(t, clock),
		AppClass:      appClass,
		WindowTitle:   title,
		BrowserDomain: domain,
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		appClass string
		want     string
	}{
		{"firefox", "browser"},
		{"Firefox", "browser"},
		{"org.kde.konsole", "terminal"},
		{"VSCodium", "coding"},
		{"dolphin", "files"},
		{"libreoffice-writer", "office"},
		{"totally-unknown-app", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.appClass), "app class %q", tt.appClass)
	}
}

func TestCategorizeAmbiguousSubstring(t *testing.T) {
	// "kate-zen-mode" contains both a coding and a browser keyword; the
	// coding list is scanned first, so coding wins on every call.
	for i := 0; i < 50; i++ {
		assert.Equal(t, "coding", Categorize("kate-zen-mode"))
		assert.Equal(t, "terminal", Categorize("FootLoupe"))
	}
}

func TestMergeSessionsGapBoundary(t *testing.T) {
	// 30s gap extends the session, 31s starts a new one.
	events := []*store.WindowEvent{
		event(t, "09:00:00", "firefox", "GitHub", "github.com"),
		event(t, "09:00:30", "firefox", "GitHub", "github.com"),
		event(t, "09:01:01", "firefox", "GitLab", "gitlab.com"),
	}
	sessions := MergeSessions(events)
	require.Len(t, sessions, 2)
	assert.Equal(t, 30, sessions[0].DurationSeconds())
	assert.Equal(t, 2, sessions[0].EventCount)
	assert.Equal(t, []string{"GitHub"}, sessions[0].WindowTitles)
	assert.Equal(t, []string{"GitLab"}, sessions[1].WindowTitles)
}

func TestMergeSessionsAppSwitch(t *testing.T) {
	events := []*store.WindowEvent{
		event(t, "09:00:00", "firefox", "Docs", "docs.example.com"),
		event(t, "09:00:02", "konsole", "~/src", ""),
		event(t, "09:00:04", "firefox", "Docs", "docs.example.com"),
	}
	sessions := MergeSessions(events)
	require.Len(t, sessions, 3)
	assert.Equal(t, "browser", sessions[0].Category)
	assert.Equal(t, "terminal", sessions[1].Category)
}

func TestMergeSessionsTitleCap(t *testing.T) {
	events := []*store.WindowEvent{event(t, "09:00:00", "firefox", "title-0", "")}
	for i := 1; i < 20; i++ {
		clock := time.Date(2026, 3, 2, 9, 0, i*2, 0, time.UTC).Format("15:04:05")
		events = append(events, event(t, clock, "firefox", "title-"+string(rune('a'+i)), ""))
	}
	sessions := MergeSessions(events)
	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].WindowTitles, 10)
}

func TestDetectBreaks(t *testing.T) {
	sessions := []*Session{
		{Start: ts(t, "09:00:00"), End: ts(t, "09:10:00")},
		{Start: ts(t, "09:14:59"), End: ts(t, "09:20:00")}, // 299s gap, no break
		{Start: ts(t, "09:25:00"), End: ts(t, "09:30:00")}, // 300s gap, break
	}
	breaks := DetectBreaks(sessions)
	require.Len(t, breaks, 1)
	assert.Equal(t, ts(t, "09:20:00"), breaks[0].Start)
	assert.Equal(t, 300, breaks[0].DurationSeconds())
}

func TestComputeMetrics(t *testing.T) {
	sessions := []*Session{
		{Category: "coding", Start: ts(t, "09:00:00"), End: ts(t, "10:00:00")},
		{Category: "browser", Start: ts(t, "10:30:00"), End: ts(t, "11:00:00")},
	}
	breaks := DetectBreaks(sessions)
	m := ComputeMetrics(sessions, breaks)

	assert.Equal(t, 5400, m.TotalActiveSeconds)
	assert.Equal(t, 1800, m.TotalBreakSeconds)
	assert.Equal(t, 1, m.BreakCount)
	assert.Equal(t, 3600, m.CategorySeconds["coding"])
	assert.Equal(t, ts(t, "09:00:00"), m.FirstActivity)
	assert.Equal(t, ts(t, "11:00:00"), m.LastActivity)
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := ComputeMetrics(nil, nil)
	assert.Zero(t, m.TotalActiveSeconds)
	assert.NotNil(t, m.CategorySeconds)
}

func TestCompactSessionsMergesSameCategory(t *testing.T) {
	sessions := []*Session{
		{AppClass: "firefox", Category: "browser", Start: ts(t, "09:00:00"), End: ts(t, "09:05:00"),
			WindowTitles: []string{"GitHub"}, EventCount: 10},
		{AppClass: "librewolf", Category: "browser", Start: ts(t, "09:07:00"), End: ts(t, "09:12:00"),
			WindowTitles: []string{"Docs"}, EventCount: 5},
		{AppClass: "konsole", Category: "terminal", Start: ts(t, "09:12:30"), End: ts(t, "09:20:00"),
			EventCount: 8},
	}
	compact := CompactSessions(sessions)
	require.Len(t, compact, 2)
	assert.Equal(t, ts(t, "09:00:00"), compact[0].Start)
	assert.Equal(t, ts(t, "09:12:00"), compact[0].End)
	assert.Equal(t, 15, compact[0].EventCount)
	assert.ElementsMatch(t, []string{"GitHub", "Docs"}, compact[0].WindowTitles)
	// Inputs untouched.
	assert.Equal(t, ts(t, "09:05:00"), sessions[0].End)
}

func TestCompactSessionsAbsorbsMicroSessions(t *testing.T) {
	sessions := []*Session{
		{AppClass: "codium", Category: "coding", Start: ts(t, "09:00:00"), End: ts(t, "09:10:00"), EventCount: 20},
		{AppClass: "dolphin", Category: "files", Start: ts(t, "09:10:05"), End: ts(t, "09:10:15"), EventCount: 1},
		{AppClass: "konsole", Category: "terminal", Start: ts(t, "09:10:20"), End: ts(t, "09:25:00"), EventCount: 15},
	}
	compact := CompactSessions(sessions)
	require.Len(t, compact, 2)
	assert.Equal(t, "codium", compact[0].AppClass)
	assert.Equal(t, ts(t, "09:10:15"), compact[0].End)
	assert.Equal(t, 21, compact[0].EventCount)
}

func TestGreeting(t *testing.T) {
	assert.Equal(t, "Guten Morgen", Greeting(7))
	assert.Equal(t, "Guten Morgen", Greeting(11))
	assert.Equal(t, "Guten Tag", Greeting(12))
	assert.Equal(t, "Guten Tag", Greeting(16))
	assert.Equal(t, "Guten Abend", Greeting(17))
	assert.Equal(t, "Guten Abend", Greeting(23))
}

func TestBuildSummaryPromptContainsSessions(t *testing.T) {
	sessions := []*Session{
		{AppClass: "firefox", Category: "browser", Start: ts(t, "09:00:00"), End: ts(t, "09:30:00"),
			WindowTitles: []string{"GitHub"}, BrowserDomains: []string{"github.com"}, EventCount: 50},
	}
	metrics := ComputeMetrics(sessions, nil)
	prompt := BuildSummaryPrompt(sessions, metrics)

	assert.Contains(t, prompt, "09:00-09:30 [browser] firefox (30min): GitHub")
	assert.Contains(t, prompt, "Domains: github.com")
	assert.Contains(t, prompt, "Aktive Zeit: 0h 30m")
	assert.Contains(t, prompt, "Antworte NUR mit dem JSON")
}
