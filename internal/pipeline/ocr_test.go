// SPDX-License-Identifier: MIT
package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = `level	page_num	block_num	par_num	line_num	word_num	left	top	width	height	conf	text
1	1	0	0	0	0	0	0	1000	800	-1
4	1	1	1	1	0	10	10	500	30	-1
5	1	1	1	1	1	10	10	80	30	96.5	Hello
5	1	1	1	1	2	100	10	90	30	88.1	World
5	1	1	1	1	3	200	10	40	30	-1
5	1	1	1	2	1	10	50	120	30	72.0	Terminal
`

func TestParseTSV(t *testing.T) {
	rec := parseTSV(sampleTSV, 1.0)
	require.NotNil(t, rec)

	assert.Equal(t, "Hello World Terminal", rec.Text)
	require.Len(t, rec.Words, 3)
	assert.InDelta(t, (96.5+88.1+72.0)/3, rec.Confidence, 0.001)

	first := rec.Words[0]
	assert.Equal(t, "Hello", first.Text)
	assert.Equal(t, 10, first.Left)
	assert.Equal(t, 10, first.Top)
	assert.Equal(t, 80, first.Width)
	assert.Equal(t, 30, first.Height)
	assert.Equal(t, 96.5, first.Confidence)
}

func TestParseTSVScalesBoxes(t *testing.T) {
	rec := parseTSV(sampleTSV, 2.0)
	require.Len(t, rec.Words, 3)

	first := rec.Words[0]
	assert.Equal(t, 20, first.Left)
	assert.Equal(t, 160, first.Width)
	assert.Equal(t, 60, first.Height)
	// Text and confidence are unaffected by scaling.
	assert.Equal(t, "Hello World Terminal", rec.Text)
}

func TestParseTSVEmptyAndMalformed(t *testing.T) {
	rec := parseTSV("", 1.0)
	require.NotNil(t, rec)
	assert.Empty(t, rec.Text)
	assert.Empty(t, rec.Words)
	assert.Zero(t, rec.Confidence)

	rec = parseTSV("level\tconf\ttext\nbroken line without tabs\n5\tnot-enough-columns\n", 1.0)
	assert.Empty(t, rec.Words)
}

func TestParseTSVSkipsNonWordLevels(t *testing.T) {
	rec := parseTSV(sampleTSV, 1.0)
	for _, w := range rec.Words {
		assert.False(t, strings.TrimSpace(w.Text) == "")
	}
}
