// Package session implements the Session component (§4.2): an append-only
// conversation log with a stable ordered view, cleared only by explicit
// request.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/runtime/pkg/models"
)

// Store is implemented by both the in-memory variant and any file/DB-backed
// external collaborator (§4.2: "a file-backed variant persists the tuple
// (id, messages, metadata) atomically on each mutation").
type Store interface {
	// AddMessage appends msg to the session identified by id, creating the
	// session if it does not yet exist.
	AddMessage(ctx context.Context, id string, msg models.Message) error

	// GetMessages returns a stable ordered snapshot of the session's
	// messages. The returned slice is owned by the caller.
	GetMessages(ctx context.Context, id string) ([]models.Message, error)

	// Clear removes all messages for id without deleting the session
	// identifier itself.
	Clear(ctx context.Context, id string) error

	// Metadata returns the session's free-form metadata map.
	Metadata(ctx context.Context, id string) (map[string]any, error)

	// SetMetadata replaces the session's metadata map.
	SetMetadata(ctx context.Context, id string, meta map[string]any) error
}

// NewID returns a fresh opaque session identifier.
func NewID() string {
	return uuid.NewString()
}

// InMemory is a pure, process-local Store implementation.
type InMemory struct {
	mu       sync.RWMutex
	messages map[string][]models.Message
	metadata map[string]map[string]any
}

// NewInMemory creates an empty in-memory Store.
func NewInMemory() *InMemory {
	return &InMemory{
		messages: make(map[string][]models.Message),
		metadata: make(map[string]map[string]any),
	}
}

func (s *InMemory) AddMessage(ctx context.Context, id string, msg models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[id] = append(s.messages[id], msg)
	return nil
}

func (s *InMemory) GetMessages(ctx context.Context, id string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := s.messages[id]
	out := make([]models.Message, len(existing))
	copy(out, existing)
	return out, nil
}

func (s *InMemory) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}

func (s *InMemory) Metadata(ctx context.Context, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta := s.metadata[id]
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out, nil
}

func (s *InMemory) SetMetadata(ctx context.Context, id string, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := make(map[string]any, len(meta))
	for k, v := range meta {
		clone[k] = v
	}
	s.metadata[id] = clone
	return nil
}
