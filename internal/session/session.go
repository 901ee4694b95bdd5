// Package session keeps per-conversation message history.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sidharthpunathil/chatbot-poc/internal/apperr"
)

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Info summarises one session.
type Info struct {
	ID           string    `json:"session_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Store holds conversation histories keyed by session id.
type Store interface {
	// Create starts a new empty session and returns its id.
	Create(ctx context.Context) (string, error)

	// History returns the messages of a session in order.
	History(ctx context.Context, id string) ([]Message, error)

	// Append adds messages to a session, creating it when absent.
	Append(ctx context.Context, id string, messages ...Message) error

	// Delete removes a session and its history.
	Delete(ctx context.Context, id string) error

	// List summarises every session.
	List(ctx context.Context) ([]Info, error)
}

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
	order    []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Message)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = nil
	s.order = append(s.order, id)
	return id, nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, id string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %q not found", apperr.ErrNotFound, id)
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out, nil
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, id string, messages ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.order = append(s.order, id)
	}
	s.sessions[id] = append(s.sessions[id], messages...)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: session %q not found", apperr.ErrNotFound, id)
	}
	delete(s.sessions, id)
	for i, sid := range s.order {
		if sid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos := make([]Info, 0, len(s.order))
	for _, id := range s.order {
		messages := s.sessions[id]
		info := Info{ID: id, MessageCount: len(messages)}
		if len(messages) > 0 {
			info.CreatedAt = messages[0].Timestamp
			info.LastActivity = messages[len(messages)-1].Timestamp
		}
		infos = append(infos, info)
	}
	return infos, nil
}
