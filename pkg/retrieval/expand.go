package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docaihq/docai/pkg/cache"
	"github.com/docaihq/docai/pkg/domain"
)

const expansionPrompt = `Analyze the following user question and rephrase it to broaden document retrieval.

User question: %s

Provide a JSON response with the following structure:
{
    "original_query": "the question verbatim",
    "intent": "compare|recommend|spec_query|general_inquiry",
    "sub_questions": ["between 1 and %d paraphrased variants of the question"]
}

Respond with ONLY the JSON object, no additional text.`

// expansion is the cached shape of one LLM query expansion.
type expansion struct {
	OriginalQuery string   `json:"original_query"`
	Intent        string   `json:"intent"`
	SubQuestions  []string `json:"sub_questions"`
}

// ExpandQuery returns the original question followed by LLM paraphrases.
// Expansion is best-effort: any LLM or parse failure degrades to the
// original question alone and is never surfaced.
func (e *Engine) ExpandQuery(ctx context.Context, query string) []string {
	key := cache.ExpansionKey(query)
	if raw, ok := e.cache.Get(ctx, key); ok {
		var exp expansion
		if err := json.Unmarshal(raw, &exp); err == nil && len(exp.SubQuestions) > 0 {
			return e.questions(query, &exp)
		}
	}

	out, err := e.generator.Generate(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "You are an expert at analyzing document questions."},
		{Role: domain.RoleUser, Content: fmt.Sprintf(expansionPrompt, query, e.expansionCount)},
	}, &domain.GenerationOptions{Temperature: 0.3})
	if err != nil {
		e.logger.Warn("query expansion failed, using original query", "error", err)
		return []string{query}
	}

	exp, err := parseExpansion(out)
	if err != nil {
		e.logger.Debug("malformed expansion output, using original query", "error", err)
		return []string{query}
	}
	exp.OriginalQuery = query

	if raw, err := json.Marshal(exp); err == nil {
		e.cache.Set(ctx, key, raw, cache.ExpansionTTL)
	}
	return e.questions(query, exp)
}

func (e *Engine) questions(query string, exp *expansion) []string {
	out := []string{query}
	seen := map[string]struct{}{query: {}}
	for _, q := range exp.SubQuestions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) > e.expansionCount {
			break
		}
	}
	return out
}

// parseExpansion tolerates code fences and prose around the JSON object.
func parseExpansion(out string) (*expansion, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in expansion output")
	}

	var exp expansion
	if err := json.Unmarshal([]byte(out[start:end+1]), &exp); err != nil {
		return nil, fmt.Errorf("invalid expansion JSON: %w", err)
	}
	if len(exp.SubQuestions) == 0 {
		return nil, fmt.Errorf("expansion produced no sub-questions")
	}
	return &exp, nil
}
