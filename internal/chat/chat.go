// Package chat runs follow-up conversations about a stored analysis. The
// conversation is kept on the record itself so it survives restarts and is
// copied along when a history record is saved.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/tradelens/internal/llm"
	"github.com/seenimoa/tradelens/internal/logger"
	"github.com/seenimoa/tradelens/internal/prompts"
	"github.com/seenimoa/tradelens/internal/store"
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/models"
)

// Apology is the model turn recorded when the engine call fails.
const Apology = "Sorry, there was a problem responding. Please try again."

// Service sends chat turns and persists them on history or saved records.
type Service struct {
	mu       sync.Mutex
	provider llm.LLMProvider
	history  *store.Collection[models.AnalysisRecord, *models.AnalysisRecord]
	saved    *store.Collection[models.SavedAnalysisRecord, *models.SavedAnalysisRecord]
	opts     *llm.ChatOptions
	now      func() time.Time
}

// NewService creates a chat service. opts may be nil.
func NewService(p llm.LLMProvider,
	history *store.Collection[models.AnalysisRecord, *models.AnalysisRecord],
	saved *store.Collection[models.SavedAnalysisRecord, *models.SavedAnalysisRecord],
	opts *llm.ChatOptions) *Service {
	return &Service{provider: p, history: history, saved: saved, opts: opts, now: time.Now}
}

// SetProvider swaps the reasoning engine.
func (s *Service) SetProvider(p llm.LLMProvider) {
	s.mu.Lock()
	s.provider = p
	s.mu.Unlock()
}

// Messages returns the conversation stored on a record.
func (s *Service) Messages(ctx context.Context, kind models.RecordKind, id int64) ([]models.ChatMessage, error) {
	rec, _, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return rec.ChatHistory, nil
}

// Send appends text as a user turn, asks the engine and appends its reply.
// When the engine fails the reply is Apology; the failure is logged and the
// turn is still stored.
func (s *Service) Send(ctx context.Context, kind models.RecordKind, id int64, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.KindValidation, "Type a message first.", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == nil {
		return nil, apperr.New(apperr.KindAIUnavailable, "The AI engine is not initialised. Add an API key and try again.", nil)
	}

	rec, save, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	system, err := prompts.Chat(&rec.Analysis)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(rec.ChatHistory)+2)
	messages = append(messages, llm.SystemMessage(system))
	for _, m := range rec.ChatHistory {
		if m.Role == models.ChatModel {
			messages = append(messages, llm.AssistantMessage(m.Text()))
		} else {
			messages = append(messages, llm.UserMessage(m.Text()))
		}
	}
	messages = append(messages, llm.UserMessage(text))

	op := logger.StartOperation(ctx, "chat.send", "kind", kind, "id", id, "turns", len(rec.ChatHistory))
	reply := Apology
	resp, err := s.provider.Chat(op.Context(), messages, s.opts)
	switch {
	case err != nil:
		op.EndWithError(err)
	case strings.TrimSpace(resp.Content) == "":
		op.EndWithError(llm.ErrEmptyResponse)
	default:
		reply = strings.TrimSpace(resp.Content)
		op.End("reply_chars", len(reply))
	}

	user := s.message(models.ChatUser, text)
	model := s.message(models.ChatModel, reply)
	rec.ChatHistory = append(rec.ChatHistory, user, model)
	if err := save(rec); err != nil {
		return nil, err
	}
	return &model, nil
}

func (s *Service) message(role models.ChatRole, text string) models.ChatMessage {
	m := models.NewChatMessage(role, text)
	m.Timestamp = s.now().UTC()
	return m
}

// load fetches the record of kind and returns a function that writes it back.
func (s *Service) load(ctx context.Context, kind models.RecordKind, id int64) (*models.AnalysisRecord, func(*models.AnalysisRecord) error, error) {
	switch kind {
	case models.RecordHistory:
		rec, err := s.history.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return &rec, func(r *models.AnalysisRecord) error { return s.history.Update(ctx, r) }, nil
	case models.RecordSaved:
		saved, err := s.saved.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		rec := saved.AnalysisRecord
		return &rec, func(r *models.AnalysisRecord) error {
			saved.AnalysisRecord = *r
			saved.ID = id
			return s.saved.Update(ctx, &saved)
		}, nil
	}
	return nil, nil, apperr.Newf(apperr.KindValidation, "unknown record kind %q", kind)
}
