package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TTL floors per key kind. Entries are advisory; nothing depends on a
// hit for correctness.
const (
	EmbeddingTTL = 24 * time.Hour
	ExpansionTTL = time.Hour
	SearchTTL    = 30 * time.Minute
	FileMetaTTL  = 6 * time.Hour
)

// hashKey collapses the logical key into a 16-hex-digit SHA-256 prefix.
func hashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:8])
}

// EmbeddingKey memoizes vectors per exact input text.
func EmbeddingKey(text string) string {
	return "emb:" + hashKey(text)
}

// ExpansionKey memoizes LLM query expansions per exact query.
func ExpansionKey(query string) string {
	return "qexp:" + hashKey(query)
}

// SearchKey covers one sub-question against one file set. The file list
// is sorted so key identity does not depend on request order.
func SearchKey(query string, fileIDs []string, k int) string {
	sorted := append([]string(nil), fileIDs...)
	sort.Strings(sorted)
	parts := append([]string{query}, sorted...)
	parts = append(parts, strconv.Itoa(k))
	return "search:" + hashKey(parts...)
}

func FileMetaKey(fileID string) string {
	return "file:" + hashKey(fileID)
}
