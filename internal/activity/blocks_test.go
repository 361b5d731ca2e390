// SPDX-License-Identifier: MIT
package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound15(t *testing.T) {
	tests := []struct {
		minutes int
		want    int
	}{
		{0, 15},
		{-5, 15},
		{1, 15},
		{8, 15},
		{15, 15},
		{18, 15},
		{23, 30},
		{30, 30},
		{49, 45},
		{53, 60},
		{60, 60},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round15(tt.minutes), "minutes=%d", tt.minutes)
	}
}

func TestParseTimeRange(t *testing.T) {
	start, end, ok := ParseTimeRange("07:14-07:32")
	require.True(t, ok)
	assert.Equal(t, 7*60+14, start)
	assert.Equal(t, 7*60+32, end)

	// En dash from model output.
	start, end, ok = ParseTimeRange("09:00–10:30")
	require.True(t, ok)
	assert.Equal(t, 540, start)
	assert.Equal(t, 630, end)

	for _, bad := range []string{"", "07:14", "seven-eight", "07:14-07:32-08:00"} {
		_, _, ok := ParseTimeRange(bad)
		assert.False(t, ok, "input %q", bad)
	}
}

func TestPostprocessBlocksMergesAdjacentSameCategory(t *testing.T) {
	result := PostprocessBlocks(&SummaryResult{
		Summary: "Tag",
		Blocks: []Block{
			{TimeRange: "07:14-07:20", Category: "coding", Description: "Editor geoeffnet."},
			{TimeRange: "07:21-07:32", Category: "coding", Description: "Tests geschrieben."},
			{TimeRange: "07:35-08:00", Category: "browser", Description: "Recherche."},
		},
	})

	require.Len(t, result.Blocks, 2)
	first := result.Blocks[0]
	assert.Equal(t, "07:14-07:32", first.TimeRange)
	assert.Equal(t, 15, first.DurationMinutes) // 18 raw minutes snap to 15
	assert.Equal(t, "Editor geoeffnet. Tests geschrieben.", first.Description)
	assert.Equal(t, "browser", result.Blocks[1].Category)
	assert.Equal(t, 30, result.Blocks[1].DurationMinutes) // 25 raw minutes
}

func TestPostprocessBlocksKeepsGapsAndCategories(t *testing.T) {
	result := PostprocessBlocks(&SummaryResult{
		Blocks: []Block{
			{TimeRange: "09:00-09:30", Category: "coding"},
			{TimeRange: "09:33-10:00", Category: "coding"}, // 3 min gap, not merged
			{TimeRange: "10:00-10:30", Category: "pause"},
		},
	})
	require.Len(t, result.Blocks, 3)
	assert.Equal(t, 30, result.Blocks[0].DurationMinutes)
}

func TestPostprocessBlocksUnparseableTimeRange(t *testing.T) {
	result := PostprocessBlocks(&SummaryResult{
		Blocks: []Block{
			{TimeRange: "vormittags", Category: "coding", DurationMinutes: 22},
			{TimeRange: "nachmittags", Category: "coding"},
		},
	})
	require.Len(t, result.Blocks, 2)
	assert.Equal(t, 15, result.Blocks[0].DurationMinutes) // 22 snaps to 15
	assert.Equal(t, 15, result.Blocks[1].DurationMinutes)
}

func TestPostprocessBlocksIdempotent(t *testing.T) {
	in := &SummaryResult{
		Blocks: []Block{
			{TimeRange: "07:14-07:20", Category: "coding", Description: "A."},
			{TimeRange: "07:21-07:32", Category: "coding", Description: "B."},
		},
	}
	once := PostprocessBlocks(in)
	again := PostprocessBlocks(&SummaryResult{Summary: once.Summary, Blocks: append([]Block(nil), once.Blocks...)})
	assert.Equal(t, once.Blocks, again.Blocks)
}

func TestPostprocessBlocksNil(t *testing.T) {
	assert.Nil(t, PostprocessBlocks(nil))
	empty := &SummaryResult{}
	assert.Same(t, empty, PostprocessBlocks(empty))
}
