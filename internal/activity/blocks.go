// SPDX-License-Identifier: MIT
package activity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Block is one labeled time-tracking entry of the AI narrative.
type Block struct {
	TimeRange       string `json:"time_range"`
	DurationMinutes int    `json:"duration_minutes"`
	Label           string `json:"label"`
	Description     string `json:"description"`
	Category        string `json:"category"`
}

// SummaryResult is the parsed AI answer for one day.
type SummaryResult struct {
	Summary string  `json:"summary"`
	Blocks  []Block `json:"blocks"`
}

var timeRangeSep = regexp.MustCompile(`[-–]`)

// Round15 rounds minutes to the nearest multiple of 15, never below 15.
func Round15(minutes int) int {
	if minutes <= 0 {
		return 15
	}
	rounded := ((minutes*2 + 15) / 30) * 15
	if rounded < 15 {
		return 15
	}
	return rounded
}

// ParseTimeRange parses "HH:MM-HH:MM" into minutes since midnight.
func ParseTimeRange(tr string) (start, end int, ok bool) {
	parts := timeRangeSep.Split(tr, -1)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, ok = parseClock(parts[0])
	if !ok {
		return 0, 0, false
	}
	end, ok = parseClock(parts[1])
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

func parseClock(s string) (int, bool) {
	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(fields[0])
	m, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return h*60 + m, true
}

func formatTimeRange(start, end int) string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", start/60, start%60, end/60, end%60)
}

// PostprocessBlocks normalizes the AI answer: adjacent blocks of the same
// category (gap of at most two minutes) are merged with deduplicated
// descriptions, and every duration is snapped to a 15-minute multiple
// derived from the actual time range when one parses.
func PostprocessBlocks(result *SummaryResult) *SummaryResult {
	if result == nil || len(result.Blocks) == 0 {
		return result
	}

	type parsedBlock struct {
		Block
		start, end int
		hasTimes   bool
	}
	parsed := make([]parsedBlock, 0, len(result.Blocks))
	for _, b := range result.Blocks {
		pb := parsedBlock{Block: b}
		if s, e, ok := ParseTimeRange(b.TimeRange); ok {
			pb.start, pb.end, pb.hasTimes = s, e, true
		}
		parsed = append(parsed, pb)
	}

	var merged []parsedBlock
	for _, b := range parsed {
		if !b.hasTimes || len(merged) == 0 {
			merged = append(merged, b)
			continue
		}
		prev := &merged[len(merged)-1]
		if !prev.hasTimes || prev.Category != b.Category || b.start-prev.end > 2 {
			merged = append(merged, b)
			continue
		}
		if b.end > prev.end {
			prev.end = b.end
		}
		prev.TimeRange = formatTimeRange(prev.start, prev.end)
		if b.Description != "" && !strings.Contains(prev.Description, b.Description) {
			prevClean := strings.TrimRight(prev.Description, ". ")
			newClean := strings.TrimRight(b.Description, ". ")
			prev.Description = prevClean + ". " + newClean + "."
		}
	}

	out := make([]Block, 0, len(merged))
	for _, b := range merged {
		if b.hasTimes {
			b.DurationMinutes = Round15(b.end - b.start)
			b.TimeRange = formatTimeRange(b.start, b.end)
		} else {
			b.DurationMinutes = Round15(b.DurationMinutes)
		}
		out = append(out, b.Block)
	}
	result.Blocks = out
	return result
}
