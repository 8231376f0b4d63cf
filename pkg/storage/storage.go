// Package storage persists chat conversations.
package storage

import (
	"context"

	"github.com/geniusai/genius/pkg/llm"
)

// Driver defines the interface for persisting and retrieving conversations
// from a storage backend. Implementations return deep copies so callers may
// mutate what they receive.
type Driver interface {
	// Create stores a new conversation. The ID must be unique.
	Create(ctx context.Context, conv *llm.Conversation) error

	// Get retrieves a conversation by ID. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*llm.Conversation, error)

	// List returns all conversations, most recently updated first.
	List(ctx context.Context) ([]*llm.Conversation, error)

	// Update replaces the title, mode and transcript of an existing conversation.
	Update(ctx context.Context, conv *llm.Conversation) error

	// Delete removes a conversation. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}

// ErrNotFound is returned when a conversation doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "conversation not found"
	}

	return "conversation not found: " + e.ID
}
