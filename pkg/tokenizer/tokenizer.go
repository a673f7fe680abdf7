// Package tokenizer estimates token counts for budgeting and chunk
// metadata. The cl100k_base encoding is loaded once; when it cannot be
// loaded (offline environments), a characters/4 heuristic is used.
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	once     sync.Once
	encoding *tiktoken.Tiktoken
)

func Estimate(text string) int {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return (len(text) + 3) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}
