// Package inmemory is a map-backed storage.Driver.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/storage"
)

// Driver keeps conversations in process memory.
type Driver struct {
	mu    sync.RWMutex
	convs map[string]*llm.Conversation
}

// NewDriver returns an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{convs: make(map[string]*llm.Conversation)}
}

func (d *Driver) Create(_ context.Context, conv *llm.Conversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.convs[conv.ID]; ok {
		return fmt.Errorf("conversation already exists: %s", conv.ID)
	}
	d.convs[conv.ID] = conv.Clone()
	return nil
}

func (d *Driver) Get(_ context.Context, id string) (*llm.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conv, ok := d.convs[id]
	if !ok {
		return nil, storage.ErrNotFound{ID: id}
	}
	return conv.Clone(), nil
}

func (d *Driver) List(_ context.Context) ([]*llm.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*llm.Conversation, 0, len(d.convs))
	for _, conv := range d.convs {
		out = append(out, conv.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (d *Driver) Update(_ context.Context, conv *llm.Conversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.convs[conv.ID]; !ok {
		return storage.ErrNotFound{ID: conv.ID}
	}
	d.convs[conv.ID] = conv.Clone()
	return nil
}

func (d *Driver) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.convs[id]; !ok {
		return storage.ErrNotFound{ID: id}
	}
	delete(d.convs, id)
	return nil
}

func (d *Driver) Close() error {
	return nil
}
