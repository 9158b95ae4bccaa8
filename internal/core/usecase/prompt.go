package usecase

import (
	"fmt"
	"strings"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

// buildConversationPrompt serializes the full transcript into the instruct
// format for a plain-mode turn.
func buildConversationPrompt(messages []domain.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleUser:
			fmt.Fprintf(&b, "[INST] %s [/INST]", msg.Content)
		case domain.RoleAssistant:
			fmt.Fprintf(&b, " %s </s>", msg.Content)
		}
	}
	return b.String()
}

// buildGroundedPrompt is the single-turn document-grounded prompt. Prior
// conversation turns are deliberately excluded so the answer stays grounded
// in the retrieved context plus the immediate question.
func buildGroundedPrompt(contextText, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question)
}

func buildStudyGuidePrompt(chunk string) string {
	return fmt.Sprintf("Create a Q&A pair from:\n%s", chunk)
}

func buildTitlePrompt(snippet string) string {
	const maxSnippetRunes = 200
	if runes := []rune(snippet); len(runes) > maxSnippetRunes {
		snippet = string(runes[:maxSnippetRunes])
	}
	return fmt.Sprintf("Generate a 3-word title for: '%s'", snippet)
}
