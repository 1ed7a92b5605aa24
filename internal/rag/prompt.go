package rag

import (
	"fmt"
	"strings"
)

// SystemPrompt frames the model as a drafting aid for portal admins
const SystemPrompt = "You help administrators of Modibbo Adama University (MAU) draft short, accurate answers to student questions. " +
	"Write in plain English, two to five sentences, and never invent fees, dates or phone numbers."

// PromptBuilder constructs draft prompts with related knowledge
type PromptBuilder struct{}

// NewPromptBuilder creates a new PromptBuilder
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildPrompt combines the student question and related entries. With no
// entries the model answers from general knowledge and is told to flag it.
func (pb *PromptBuilder) BuildPrompt(question string, chunks []Chunk) string {
	if len(chunks) == 0 {
		return fmt.Sprintf("Student question: %s\n\nNo existing portal answers are available. Draft an answer and mark anything the admin must verify with [VERIFY].", question)
	}

	var sb strings.Builder

	sb.WriteString("Existing portal answers that may be relevant:\n")
	for i, chunk := range chunks {
		sb.WriteString(fmt.Sprintf("\n[%d] (%s) Q: %s\nA: %s\n", i+1, chunk.Source, chunk.Question, chunk.Text))
	}

	sb.WriteString("\n\nStudent question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nDraft an answer consistent with the existing answers above. Mark anything they do not cover with [VERIFY].")

	return sb.String()
}
