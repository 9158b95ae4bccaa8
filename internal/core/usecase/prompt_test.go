package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/quizcatalyst/rag-tutor/internal/core/domain"
)

func TestConversationPromptSerializesTranscript(t *testing.T) {
	prompt := buildConversationPrompt([]domain.Message{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "hi there"},
		{Role: domain.RoleUser, Content: "explain photosynthesis"},
	})
	want := "[INST] hello [/INST] hi there </s>[INST] explain photosynthesis [/INST]"
	if prompt != want {
		t.Fatalf("unexpected transcript prompt:\n got %q\nwant %q", prompt, want)
	}
}

func TestGroundedPromptContainsOnlyContextAndQuestion(t *testing.T) {
	prompt := buildGroundedPrompt("The sky is blue.", "What color is the sky?")
	want := "Context:\nThe sky is blue.\n\nQuestion: What color is the sky?"
	if prompt != want {
		t.Fatalf("unexpected grounded prompt:\n got %q\nwant %q", prompt, want)
	}
}

func TestTitlePromptTruncatesLongSnippets(t *testing.T) {
	prompt := buildTitlePrompt(strings.Repeat("a", 500))
	if len(prompt) > 250 {
		t.Fatalf("expected truncated snippet, prompt length %d", len(prompt))
	}
}

func TestTitlePromptTruncatesOnRuneBoundary(t *testing.T) {
	prompt := buildTitlePrompt(strings.Repeat("ü", 500))
	if !utf8.ValidString(prompt) {
		t.Fatalf("truncation split a rune: %q", prompt)
	}
	if got := strings.Count(prompt, "ü"); got != 200 {
		t.Fatalf("snippet kept %d runes, want 200", got)
	}
}
