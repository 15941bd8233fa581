// Package llm provides answer generation adapters and the shared
// prompt construction they have in common.
package llm

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// maxContextChars caps the evidence text handed to the model so small
// local models do not blow their context window.
const maxContextChars = 1500

// Message is one chat turn in provider-neutral form.
type Message struct {
	Role    string
	Content string
}

const systemPromptTemplate = `You are a system assistant that knows this system well and answers questions in a formal, clear, accurate, and polite manner.
Always base your answer only on the given context and conversation history appropriately.
If the context and history do not contain enough information, please provide a concise summary instead.

Context:
%s

Answer:
- If the answer is long, provide it in a numbered list format (1., 2., 3.).
- If the answer is short, reply in a single polite sentence without numbering.
- If token length is limited, summarize the most essential information first.
- Always respond in the same language as the question.`

// BuildMessages assembles the chat transcript for one answer turn: a
// system prompt carrying the evidence context, the recent history, and
// the question as the final user message. A trailing history entry that
// repeats the question is dropped so the turn is not sent twice.
func BuildMessages(question string, history []domain.Message, evidence []domain.Evidence) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{
		Role:    "system",
		Content: fmt.Sprintf(systemPromptTemplate, ContextText(evidence)),
	})

	if n := len(history); n > 0 &&
		history[n-1].Role == domain.RoleUser && history[n-1].Content == question {
		history = history[:n-1]
	}
	for _, msg := range history {
		messages = append(messages, Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	messages = append(messages, Message{Role: "user", Content: question})
	return messages
}

// ContextText joins evidence chunk texts into the context block,
// truncated to maxContextChars.
func ContextText(evidence []domain.Evidence) string {
	if len(evidence) == 0 {
		return "No context available."
	}

	parts := make([]string, len(evidence))
	for i, ev := range evidence {
		parts[i] = ev.Content
	}
	text := strings.Join(parts, "\n")

	if runes := []rune(text); len(runes) > maxContextChars {
		text = string(runes[:maxContextChars]) + "..."
	}
	return text
}
