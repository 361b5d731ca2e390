// SPDX-License-Identifier: MIT
package activity

import (
	"time"

	"github.com/screendiary/screendiary/internal/store"
)

const (
	// SessionGapSeconds is the largest gap between two same-app events that
	// still extends one session.
	SessionGapSeconds = 30
	// BreakMinSeconds is the smallest inter-session gap counted as a break.
	BreakMinSeconds = 300

	maxSessionTitles = 10
	maxCompactTitles = 8
	microSessionSec  = 30
)

// Session is a contiguous run of events in one application.
type Session struct {
	AppClass       string
	Category       string
	Start          time.Time
	End            time.Time
	WindowTitles   []string
	BrowserDomains []string
	EventCount     int
}

// DurationSeconds is the wall-clock span of the session.
func (s *Session) DurationSeconds() int {
	return int(s.End.Sub(s.Start).Seconds())
}

// Break is a gap of at least BreakMinSeconds between sessions.
type Break struct {
	Start time.Time
	End   time.Time
}

// DurationSeconds is the length of the break.
func (b Break) DurationSeconds() int {
	return int(b.End.Sub(b.Start).Seconds())
}

// DayMetrics are the day-level aggregates shown alongside the narrative.
type DayMetrics struct {
	TotalActiveSeconds int
	FirstActivity      time.Time
	LastActivity       time.Time
	TotalBreakSeconds  int
	BreakCount         int
	CategorySeconds    map[string]int
}

// MergeSessions folds chronologically ordered events into sessions. An event
// extends the open session when it stays in the same app class and follows
// within SessionGapSeconds; otherwise a new session starts. Window titles are
// deduplicated and capped, browser domains deduplicated without a cap.
func MergeSessions(events []*store.WindowEvent) []*Session {
	if len(events) == 0 {
		return nil
	}

	var sessions []*Session
	current := newSession(events[0])

	for _, ev := range events[1:] {
		gap := ev.Timestamp.Sub(current.End).Seconds()
		if ev.AppClass == current.AppClass && gap <= SessionGapSeconds {
			current.End = ev.Timestamp
			current.EventCount++
			if ev.WindowTitle != "" && !contains(current.WindowTitles, ev.WindowTitle) &&
				len(current.WindowTitles) < maxSessionTitles {
				current.WindowTitles = append(current.WindowTitles, ev.WindowTitle)
			}
			if ev.BrowserDomain != "" && !contains(current.BrowserDomains, ev.BrowserDomain) {
				current.BrowserDomains = append(current.BrowserDomains, ev.BrowserDomain)
			}
			continue
		}
		sessions = append(sessions, current)
		current = newSession(ev)
	}
	return append(sessions, current)
}

func newSession(ev *store.WindowEvent) *Session {
	s := &Session{
		AppClass:   ev.AppClass,
		Category:   Categorize(ev.AppClass),
		Start:      ev.Timestamp,
		End:        ev.Timestamp,
		EventCount: 1,
	}
	if ev.WindowTitle != "" {
		s.WindowTitles = append(s.WindowTitles, ev.WindowTitle)
	}
	if ev.BrowserDomain != "" {
		s.BrowserDomains = append(s.BrowserDomains, ev.BrowserDomain)
	}
	return s
}

// DetectBreaks finds gaps of at least BreakMinSeconds between consecutive
// sessions.
func DetectBreaks(sessions []*Session) []Break {
	var breaks []Break
	for i := 1; i < len(sessions); i++ {
		gap := sessions[i].Start.Sub(sessions[i-1].End).Seconds()
		if gap >= BreakMinSeconds {
			breaks = append(breaks, Break{Start: sessions[i-1].End, End: sessions[i].Start})
		}
	}
	return breaks
}

// ComputeMetrics aggregates sessions and breaks into day metrics.
func ComputeMetrics(sessions []*Session, breaks []Break) DayMetrics {
	m := DayMetrics{CategorySeconds: map[string]int{}}
	if len(sessions) == 0 {
		return m
	}
	for _, s := range sessions {
		d := s.DurationSeconds()
		m.TotalActiveSeconds += d
		m.CategorySeconds[s.Category] += d
	}
	for _, b := range breaks {
		m.TotalBreakSeconds += b.DurationSeconds()
	}
	m.BreakCount = len(breaks)
	m.FirstActivity = sessions[0].Start
	m.LastActivity = sessions[len(sessions)-1].End
	return m
}

// CompactSessions shrinks a long session list for the AI prompt. Pass one
// merges same-category neighbors closer than BreakMinSeconds; pass two
// absorbs sessions shorter than microSessionSec into a neighbor, preferring
// the one on the left.
func CompactSessions(sessions []*Session) []*Session {
	if len(sessions) == 0 {
		return nil
	}

	merged := []*Session{clone(sessions[0])}
	for _, s := range sessions[1:] {
		cur := merged[len(merged)-1]
		gap := s.Start.Sub(cur.End).Seconds()
		if s.Category == cur.Category && gap < BreakMinSeconds {
			absorb(cur, s)
		} else {
			merged = append(merged, clone(s))
		}
	}
	if len(merged) <= 1 {
		return merged
	}

	var leftPass []*Session
	for _, s := range merged {
		if s.DurationSeconds() < microSessionSec && len(leftPass) > 0 {
			absorb(leftPass[len(leftPass)-1], s)
		} else {
			leftPass = append(leftPass, s)
		}
	}

	var cleaned []*Session
	for i, s := range leftPass {
		switch {
		case s.DurationSeconds() < microSessionSec && len(cleaned) > 0:
			absorb(cleaned[len(cleaned)-1], s)
		case s.DurationSeconds() < microSessionSec && i+1 < len(leftPass):
			absorb(leftPass[i+1], s)
		default:
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

func clone(s *Session) *Session {
	c := *s
	c.WindowTitles = append([]string(nil), s.WindowTitles...)
	c.BrowserDomains = append([]string(nil), s.BrowserDomains...)
	return &c
}

// absorb widens dst to cover src and merges its titles and domains. Titles
// are capped tighter than during merging to keep the prompt compact.
func absorb(dst, src *Session) {
	if src.End.After(dst.End) {
		dst.End = src.End
	}
	if src.Start.Before(dst.Start) {
		dst.Start = src.Start
	}
	dst.EventCount += src.EventCount
	for _, t := range src.WindowTitles {
		if !contains(dst.WindowTitles, t) && len(dst.WindowTitles) < maxCompactTitles {
			dst.WindowTitles = append(dst.WindowTitles, t)
		}
	}
	for _, d := range src.BrowserDomains {
		if !contains(dst.BrowserDomains, d) {
			dst.BrowserDomains = append(dst.BrowserDomains, d)
		}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
