package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docaihq/docai/pkg/domain"
)

func contexts(texts ...string) []domain.SearchResult {
	out := make([]domain.SearchResult, len(texts))
	for i, t := range texts {
		out[i] = domain.SearchResult{Content: t, Score: float32(i)}
	}
	return out
}

func TestBuildBasicShape(t *testing.T) {
	b := NewBuilder(10, 4096)
	messages := b.Build("what is the range?", contexts("ctx one", "ctx two"), nil, "")

	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleSystem, messages[0].Role)
	assert.Equal(t, systemPromptEN, messages[0].Content)

	user := messages[1]
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.True(t, strings.HasPrefix(user.Content, "Context:\n\n"))
	assert.Contains(t, user.Content, "ctx one"+ContextSeparator+"ctx two")
	assert.True(t, strings.HasSuffix(user.Content, "Question: what is the range?"))
}

func TestBuildChineseSystemPrompt(t *testing.T) {
	b := NewBuilder(10, 4096)
	assert.Equal(t, systemPromptZH, b.Build("问题", nil, nil, "zh")[0].Content)
	assert.Equal(t, systemPromptZH, b.Build("问题", nil, nil, "ZH")[0].Content)
	assert.Equal(t, systemPromptEN, b.Build("question", nil, nil, "en")[0].Content)
}

func TestBuildEmptyContextPlaceholder(t *testing.T) {
	b := NewBuilder(10, 4096)
	messages := b.Build("anything", nil, nil, "")

	user := messages[len(messages)-1]
	assert.Contains(t, user.Content, "(no relevant context found)")
}

func TestBuildIncludesRecentHistory(t *testing.T) {
	b := NewBuilder(2, 4096)
	history := []domain.Message{
		{Role: domain.RoleUser, Content: "oldest"},
		{Role: domain.RoleUser, Content: "newer"},
		{Role: domain.RoleAssistant, Content: "newest"},
	}
	messages := b.Build("q", nil, history, "")

	require.Len(t, messages, 4)
	assert.Equal(t, "newer", messages[1].Content)
	assert.Equal(t, "newest", messages[2].Content)
}

func TestBuildSkipsNonConversationRoles(t *testing.T) {
	b := NewBuilder(10, 4096)
	history := []domain.Message{
		{Role: domain.RoleSystem, Content: "injected system line"},
		{Role: domain.RoleUser, Content: "kept"},
	}
	messages := b.Build("q", nil, history, "")

	require.Len(t, messages, 3)
	assert.Equal(t, "kept", messages[1].Content)
}

func TestBuildDropsContextUnderBudget(t *testing.T) {
	b := NewBuilder(10, 200)
	big := strings.Repeat("filler content ", 100)
	messages := b.Build("q", contexts("small context", big), nil, "")

	user := messages[len(messages)-1]
	assert.Contains(t, user.Content, "small context")
	assert.NotContains(t, user.Content, big)
}

func TestBuildDropsHistoryOnlyAfterContext(t *testing.T) {
	b := NewBuilder(10, 1)
	history := []domain.Message{{Role: domain.RoleUser, Content: strings.Repeat("old ", 50)}}
	messages := b.Build("the question survives", contexts(strings.Repeat("ctx ", 50)), history, "")

	// Everything droppable is gone, the query itself is not.
	require.Len(t, messages, 2)
	user := messages[1]
	assert.Contains(t, user.Content, "(no relevant context found)")
	assert.Contains(t, user.Content, "the question survives")
}
