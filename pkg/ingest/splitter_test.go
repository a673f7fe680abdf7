package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTextShortInput(t *testing.T) {
	chunks := SplitText("short text", 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestSplitTextEmptyInput(t *testing.T) {
	assert.Nil(t, SplitText("", 100, 10))
	assert.Nil(t, SplitText("   \n\n  ", 100, 10))
}

func TestSplitTextPrefersParagraphBreaks(t *testing.T) {
	text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40) + "\n\n" + strings.Repeat("c", 40)
	chunks := SplitText(text, 50, 0)

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("a", 40), chunks[0])
	assert.Equal(t, strings.Repeat("b", 40), chunks[1])
	assert.Equal(t, strings.Repeat("c", 40), chunks[2])
}

func TestSplitTextMergesSmallParts(t *testing.T) {
	text := "one\n\ntwo\n\nthree"
	chunks := SplitText(text, 100, 0)

	require.Len(t, chunks, 1)
	assert.Equal(t, "one\n\ntwo\n\nthree", chunks[0])
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("word ")
	}
	chunks := SplitText(sb.String(), 80, 20)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 80)
	}
}

func TestSplitTextOverlapCarriesTail(t *testing.T) {
	text := strings.Repeat("a", 20) + " " + strings.Repeat("b", 20) + " " + strings.Repeat("c", 20)
	chunks := SplitText(text, 40, 10)

	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prevTail := tailRunes(chunks[i-1], 10)
		assert.True(t, strings.HasPrefix(chunks[i], prevTail),
			"chunk %d should start with the previous chunk's tail", i)
	}
}

func TestSplitTextHardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := SplitText(text, 100, 20)

	// stride = 80: [0:100) [80:180) [160:250)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("x", 100), chunks[0])
	assert.Equal(t, strings.Repeat("x", 100), chunks[1])
	assert.Equal(t, strings.Repeat("x", 90), chunks[2])
}

func TestSplitTextHardCutIsRuneSafe(t *testing.T) {
	text := strings.Repeat("文档问答系统", 50)
	chunks := SplitText(text, 40, 10)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 40)
	}
}

func TestSplitTextCoversAllContent(t *testing.T) {
	text := "alpha\n\nbeta\n\ngamma delta epsilon\n\nzeta"
	chunks := SplitText(text, 20, 5)

	joined := strings.Join(chunks, " ")
	for _, word := range []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"} {
		assert.Contains(t, joined, word)
	}
}
