// Package chat answers user questions from retrieved context and keeps
// the conversation history per session.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
	"github.com/sidharthpunathil/chatbot-poc/internal/embedding"
	"github.com/sidharthpunathil/chatbot-poc/internal/llm"
	"github.com/sidharthpunathil/chatbot-poc/internal/session"
	"github.com/sidharthpunathil/chatbot-poc/internal/vectorstore"
)

// Source is one retrieved chunk that informed an answer.
type Source struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Distance float64                `json:"distance"`
}

// Request is one chat turn.
type Request struct {
	Query      string
	SessionID  string
	Collection string
	// Model and SystemPrompt optionally override the LLM defaults.
	Model        string
	SystemPrompt string
}

// Response is the answer to one chat turn.
type Response struct {
	Response  string   `json:"response"`
	SessionID string   `json:"session_id"`
	Sources   []Source `json:"sources"`
}

// Service runs the retrieval-augmented chat loop.
type Service struct {
	store     vectorstore.Store
	embedder  embedding.Provider
	completer llm.Completer
	sessions  session.Store
	topK      int
	logger    zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewService wires a chat service from its dependencies. topK is the
// number of chunks retrieved per question.
func NewService(store vectorstore.Store, embedder embedding.Provider, completer llm.Completer, sessions session.Store, topK int, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		embedder:  embedder,
		completer: completer,
		sessions:  sessions,
		topK:      topK,
		logger:    logger.With().Str("component", "chat").Logger(),
		now:       time.Now,
	}
}

// Chat answers one question. A missing session id starts a new
// session; the user question and the answer are both appended to its
// history.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", apperr.ErrInvalidInput)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		var err error
		sessionID, err = s.sessions.Create(ctx)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.EnsureCollection(ctx, req.Collection); err != nil {
		return nil, err
	}

	vector, err := s.embedder.EmbedSingle(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.Query(ctx, req.Collection, vector, s.topK, nil)
	if err != nil {
		return nil, err
	}

	contexts := make([]string, 0, len(hits))
	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		contexts = append(contexts, hit.Content)
		sources = append(sources, Source{
			Content:  hit.Content,
			Metadata: hit.Metadata,
			Distance: hit.Distance,
		})
	}

	var opts *llm.Options
	if req.Model != "" || req.SystemPrompt != "" {
		opts = &llm.Options{Model: req.Model, SystemPrompt: req.SystemPrompt}
	}
	answer, err := s.completer.Complete(ctx, req.Query, contexts, opts)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.sessions.Append(ctx, sessionID,
		session.Message{Role: "user", Content: req.Query, Timestamp: now},
		session.Message{Role: "assistant", Content: answer, Timestamp: now},
	); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("collection", req.Collection).
		Int("sources", len(sources)).
		Msg("chat turn completed")

	return &Response{
		Response:  answer,
		SessionID: sessionID,
		Sources:   sources,
	}, nil
}
