package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextIsSingleFragment(t *testing.T) {
	frags := Split("short clause", DefaultOptions())
	require.Len(t, frags, 1)
	assert.Equal(t, "short clause", frags[0].Text)
	assert.Equal(t, 0, frags[0].Index)
}

func TestSplitEmptyText(t *testing.T) {
	assert.Empty(t, Split("", DefaultOptions()))
	assert.Empty(t, Split("   \n\n  ", DefaultOptions()))
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("alpha ", 20)
	para2 := strings.Repeat("beta ", 20)
	text := para1 + "\n\n" + para2

	frags := Split(text, Options{Size: 130})
	require.Len(t, frags, 2)
	assert.Equal(t, strings.TrimSpace(para1), frags[0].Text)
	assert.Equal(t, strings.TrimSpace(para2), frags[1].Text)
}

func TestSplitRespectsSizeLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("Clause text with several words in it. ")
	}

	opts := Options{Size: 300, Overlap: 50}
	frags := Split(sb.String(), opts)
	require.NotEmpty(t, frags)
	for _, f := range frags {
		assert.LessOrEqual(t, utf8.RuneCountInString(f.Text), opts.Size)
	}
}

func TestSplitIndexesAreSequential(t *testing.T) {
	text := strings.Repeat("Sentence one here. ", 100)
	frags := Split(text, Options{Size: 120})
	require.Greater(t, len(frags), 1)
	for i, f := range frags {
		assert.Equal(t, i, f.Index)
	}
}

func TestSplitUnbrokenTextFallsBackToWindows(t *testing.T) {
	// No separators at all: fixed windows with overlap take over.
	text := strings.Repeat("x", 1000)
	frags := Split(text, Options{Size: 400, Overlap: 100})
	require.NotEmpty(t, frags)
	for _, f := range frags {
		assert.LessOrEqual(t, utf8.RuneCountInString(f.Text), 400)
	}

	// Overlap means consecutive windows share a tail.
	require.Greater(t, len(frags), 2)
	assert.Equal(t, 400, utf8.RuneCountInString(frags[0].Text))
}

func TestSplitZeroSizeUsesDefault(t *testing.T) {
	text := strings.Repeat("word ", 300) // ~1500 runes
	frags := Split(text, Options{})
	require.NotEmpty(t, frags)
	for _, f := range frags {
		assert.LessOrEqual(t, utf8.RuneCountInString(f.Text), DefaultOptions().Size)
	}
}

func TestSplitHandlesMultibyteRunes(t *testing.T) {
	text := strings.Repeat("契約条項。", 200)
	frags := Split(text, Options{Size: 100})
	require.NotEmpty(t, frags)
	for _, f := range frags {
		assert.LessOrEqual(t, utf8.RuneCountInString(f.Text), 100)
	}
}
