package archive

import (
	"context"
	"fmt"

	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/prompts"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Categorizer assigns a category to a text artifact.
type Categorizer interface {
	Categorize(ctx context.Context, text string) (models.FileCategory, error)
}

// LLMCategorizer asks the reasoning engine to pick a category.
type LLMCategorizer struct {
	provider llm.LLMProvider
	maxChars int
}

// NewLLMCategorizer creates a categorizer that sends at most maxChars of
// content per call.
func NewLLMCategorizer(p llm.LLMProvider, maxChars int) *LLMCategorizer {
	if maxChars <= 0 {
		maxChars = 4000
	}
	return &LLMCategorizer{provider: p, maxChars: maxChars}
}

func (c *LLMCategorizer) Categorize(ctx context.Context, text string) (models.FileCategory, error) {
	system, user := prompts.Categorize(text, c.maxChars)

	values := make([]string, len(models.FileCategories))
	for i, fc := range models.FileCategories {
		values[i] = string(fc)
	}
	resp, err := c.provider.Chat(ctx, []llm.Message{
		llm.SystemMessage(system),
		llm.UserMessage(user),
	}, &llm.ChatOptions{
		ResponseMIMEType: "application/json",
		ResponseSchema:   llm.EnumProp("File category", values...),
	})
	if err != nil {
		return "", err
	}

	cat, ok := models.ParseFileCategory(llm.StripFences(resp.Content))
	if !ok {
		return "", fmt.Errorf("archive: unknown category %q", resp.Content)
	}
	return cat, nil
}
