package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	assert.Zero(t, Estimate(""))
	assert.Positive(t, Estimate("hello world"))

	// Longer text estimates higher, whichever backend is active.
	short := Estimate("one sentence of text.")
	long := Estimate(strings.Repeat("one sentence of text. ", 50))
	assert.Greater(t, long, short)
}
