package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/seenimoa/tradelens/internal/events"
	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/internal/prompts"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Extractor proposes learned techniques from file text or a web search.
type Extractor struct {
	provider llm.LLMProvider
	maxChars int
	now      func() time.Time
}

// NewExtractor creates an extractor sending at most maxChars of file text.
func NewExtractor(p llm.LLMProvider, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &Extractor{provider: p, maxChars: maxChars, now: time.Now}
}

// TechniqueSchema is the structured-output schema of the extraction call.
func TechniqueSchema() *llm.JSONSchema {
	return llm.ArrayProp("Trading techniques found in the text", llm.ObjectSchema("", map[string]*llm.JSONSchema{
		"name":        llm.StringProp("Name of the strategy or indicator"),
		"type":        llm.EnumProp("Technique type", string(models.TechniqueStrategy), string(models.TechniqueIndicator)),
		"description": llm.StringProp("Complete description of how it works"),
		"parameters":  llm.StringProp(`Main parameters as one string, e.g. "length: 14"`),
	}, "name", "type", "description", "parameters"))
}

// FromText extracts candidates from an uploaded file. Failures are logged
// and yield an empty result.
func (e *Extractor) FromText(ctx context.Context, fileName, text string) []models.LearnedTechnique {
	op := logger.StartOperation(ctx, "knowledge.extract", "file", fileName)
	resp, err := e.provider.Chat(op.Context(), []llm.Message{
		llm.SystemMessage(prompts.ExtractSystem),
		llm.UserMessage(prompts.Extract(text, e.maxChars)),
	}, &llm.ChatOptions{ResponseMIMEType: "application/json", ResponseSchema: TechniqueSchema()})
	if err != nil {
		op.EndWithError(err)
		return nil
	}

	var cands []models.TechniqueCandidate
	if err := json.Unmarshal([]byte(llm.StripFences(resp.Content)), &cands); err != nil {
		op.EndWithError(fmt.Errorf("decoding candidates: %w", err))
		return nil
	}
	out := e.provenance(cands, models.SourceUserUpload, fileName)
	op.End("candidates", len(out))
	return out
}

// Discover searches the web for techniques absent from existing. Errors are
// returned since discovery is an explicit user action.
func (e *Extractor) Discover(ctx context.Context, existing []models.LearnedTechnique) ([]models.LearnedTechnique, error) {
	op := logger.StartOperation(ctx, "knowledge.discover", "existing", len(existing))
	resp, err := e.provider.Chat(op.Context(), []llm.Message{
		llm.SystemMessage(prompts.DiscoverSystem),
		llm.UserMessage(prompts.Discover(existing)),
	}, &llm.ChatOptions{WebSearch: true})
	if err != nil {
		op.EndWithError(err)
		return nil, llm.Classify(err, "Searching the web for new techniques failed.")
	}

	raw, ok := firstArray(resp.Content)
	if !ok {
		logger.Warn(ctx, "knowledge: no JSON array in discovery response")
		op.End("candidates", 0)
		return nil, nil
	}
	var cands []models.TechniqueCandidate
	if err := json.Unmarshal([]byte(raw), &cands); err != nil {
		op.EndWithError(err)
		return nil, apperr.New(apperr.KindValidation, "The AI returned an invalid list of techniques.", err)
	}
	out := e.provenance(cands, models.SourceWebDiscovery, "")
	op.End("candidates", len(out))
	return out, nil
}

func (e *Extractor) provenance(cands []models.TechniqueCandidate, src models.TechniqueSource, file string) []models.LearnedTechnique {
	now := e.now().UTC()
	out := make([]models.LearnedTechnique, 0, len(cands))
	for _, c := range cands {
		if !c.Complete() {
			continue
		}
		out = append(out, models.LearnedTechnique{
			Name:           c.Name,
			Type:           c.Type,
			Description:    c.Description,
			Parameters:     c.Parameters,
			Source:         src,
			SourceFileName: file,
			CreatedAt:      now,
		})
	}
	return out
}

// firstArray returns the text between the first '[' and the last ']'.
func firstArray(text string) (string, bool) {
	start, end := -1, -1
	for i, r := range text {
		if r == '[' && start < 0 {
			start = i
		}
		if r == ']' {
			end = i
		}
	}
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Sink returns the archive hook that extracts techniques from a new text
// artifact and stages them for review.
func (e *Extractor) Sink(staging *Staging, pub events.Publisher) func(ctx context.Context, a models.Artifact) error {
	pub = events.OrNop(pub)
	return func(ctx context.Context, a models.Artifact) error {
		found := e.FromText(ctx, a.Name, a.Content)
		if len(found) == 0 {
			return nil
		}
		batch := staging.NewBatch(found)
		pub.Publish(ctx, events.New(events.TechniquesStaged, batch))
		return nil
	}
}
