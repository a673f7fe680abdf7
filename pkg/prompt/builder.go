package prompt

import (
	"strings"

	"github.com/docaihq/docai/pkg/domain"
	"github.com/docaihq/docai/pkg/tokenizer"
)

// ContextSeparator delimits retrieved contexts inside the synthesized
// user message.
const ContextSeparator = "\n\n---\n\n"

const systemPromptEN = `You are a document question answering assistant.
Answer ONLY from the context provided in the user message. Do not use outside knowledge.
If the context is insufficient to answer the question, say so explicitly.
Reply in English and format the answer as Markdown.`

const systemPromptZH = `你是一个文档问答助手。
只能根据用户消息中提供的上下文回答问题，不要使用外部知识。
如果上下文不足以回答问题，请明确说明。
请用中文回答，并使用 Markdown 格式。`

// Builder assembles the system + history + context + question message
// list under a token ceiling.
type Builder struct {
	historyLimit int
	tokenCeiling int
}

func NewBuilder(historyLimit, tokenCeiling int) *Builder {
	if historyLimit < 0 {
		historyLimit = 0
	}
	if tokenCeiling <= 0 {
		tokenCeiling = 4096
	}
	return &Builder{historyLimit: historyLimit, tokenCeiling: tokenCeiling}
}

// Build composes the LLM message list. When over budget, context
// entries are dropped from the tail (lowest-ranked first); history is
// truncated only after all context is gone. The query itself is never
// dropped.
func (b *Builder) Build(query string, contexts []domain.SearchResult, history []domain.Message, language string) []domain.ChatMessage {
	system := systemPrompt(language)

	if len(history) > b.historyLimit {
		history = history[len(history)-b.historyLimit:]
	}

	kept := contexts
	for len(kept) > 0 && b.estimate(system, history, kept, query) > b.tokenCeiling {
		kept = kept[:len(kept)-1]
	}
	for len(history) > 0 && b.estimate(system, history, kept, query) > b.tokenCeiling {
		history = history[1:]
	}

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	for _, m := range history {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}
		messages = append(messages, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: userMessage(kept, query)})
	return messages
}

func (b *Builder) estimate(system string, history []domain.Message, contexts []domain.SearchResult, query string) int {
	total := tokenizer.Estimate(system)
	for _, m := range history {
		total += tokenizer.Estimate(m.Content)
	}
	total += tokenizer.Estimate(userMessage(contexts, query))
	return total
}

func userMessage(contexts []domain.SearchResult, query string) string {
	var sb strings.Builder
	sb.WriteString("Context:\n\n")
	if len(contexts) == 0 {
		sb.WriteString("(no relevant context found)")
	} else {
		for i, c := range contexts {
			if i > 0 {
				sb.WriteString(ContextSeparator)
			}
			sb.WriteString(c.Content)
		}
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	return sb.String()
}

func systemPrompt(language string) string {
	if strings.EqualFold(language, "zh") {
		return systemPromptZH
	}
	return systemPromptEN
}
