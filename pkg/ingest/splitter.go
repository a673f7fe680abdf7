package ingest

import (
	"strings"
	"unicode/utf8"
)

// Separator preference for the recursive character splitter: paragraph
// break, line break, word break, then a hard cut.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// SplitText splits text into pieces of at most chunkSize characters,
// preferring the earliest separator that occurs in the text and carrying
// up to overlap characters between adjacent pieces.
func SplitText(text string, chunkSize, overlap int) []string {
	return splitRecursive(text, chunkSize, overlap, defaultSeparators)
}

func splitRecursive(text string, chunkSize, overlap int, separators []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= chunkSize {
		return []string{text}
	}

	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		return hardCut(text, chunkSize, overlap)
	}

	var chunks []string
	var pending []string
	flush := func() {
		if len(pending) > 0 {
			chunks = append(chunks, mergeSplits(pending, sep, chunkSize, overlap)...)
			pending = nil
		}
	}

	for _, part := range strings.Split(text, sep) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= chunkSize {
			pending = append(pending, part)
			continue
		}
		// Oversized part: recurse with the remaining separators.
		flush()
		chunks = append(chunks, splitRecursive(part, chunkSize, overlap, rest)...)
	}
	flush()
	return chunks
}

func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// mergeSplits packs small parts into chunks up to chunkSize, seeding
// each new chunk with the tail of the previous one for overlap.
func mergeSplits(splits []string, sep string, chunkSize, overlap int) []string {
	sepLen := utf8.RuneCountInString(sep)

	var chunks []string
	var current string
	for _, part := range splits {
		switch {
		case current == "":
			current = part
		case utf8.RuneCountInString(current)+sepLen+utf8.RuneCountInString(part) <= chunkSize:
			current += sep + part
		default:
			chunks = append(chunks, current)
			tail := tailRunes(current, overlap)
			if tail != "" && utf8.RuneCountInString(tail)+sepLen+utf8.RuneCountInString(part) <= chunkSize {
				current = tail + sep + part
			} else {
				current = part
			}
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func hardCut(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
