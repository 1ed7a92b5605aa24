package rag

import (
	"context"
	"fmt"
	"io"

	"mauassist/internal/llm"
	"mauassist/internal/logging"
)

// DefaultTopK is how many related entries go into a draft prompt
const DefaultTopK = 5

// Drafter writes suggested answers for unanswered questions
type Drafter struct {
	provider llm.Provider
	searcher *Searcher
	policy   *ContextPolicy
	builder  *PromptBuilder
	logger   *logging.Logger
}

// NewDrafter wires a provider to the searcher and policy
func NewDrafter(provider llm.Provider, searcher *Searcher, policy *ContextPolicy, logger *logging.Logger) *Drafter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Drafter{
		provider: provider,
		searcher: searcher,
		policy:   policy,
		builder:  NewPromptBuilder(),
		logger:   logger,
	}
}

// Draft streams a suggested answer for question into w and returns it
func (d *Drafter) Draft(ctx context.Context, question string, w io.Writer) (string, error) {
	var chunks []Chunk
	if d.policy.Allow(d.provider.IsLocal()) {
		chunks = d.searcher.Search(ctx, question, DefaultTopK)
	}

	messages := []llm.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: d.builder.BuildPrompt(question, chunks)},
	}

	d.logger.Debug("drafting answer with %s using %d related entries", d.provider.Name(), len(chunks))
	draft, err := d.provider.Stream(ctx, messages, w)
	if err != nil {
		return draft, fmt.Errorf("draft failed: %w", err)
	}
	return draft, nil
}

// Status names the provider and whether it receives knowledge context
func (d *Drafter) Status() string {
	return fmt.Sprintf("%s: %s", d.provider.Name(), d.policy.Status(d.provider.IsLocal()))
}
