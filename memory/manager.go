package memory

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ManagerStore is the slice of the store the write path needs.
type ManagerStore interface {
	CreateItem(ctx context.Context, item *LearningItem) error
	GetItem(ctx context.Context, projectID, itemID string) (*LearningItem, error)
	UpdateItem(ctx context.Context, item *LearningItem) error
	RecordCoOccurrence(ctx context.Context, projectID, itemA, itemB string, positive bool) error
}

// InteractionRecorder is the write side of the interaction log.
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, projectID string, positive bool) error
}

// Manager is the write path for learning items: creation with embedding,
// feedback, pin/mute administration, and co-occurrence observation.
type Manager struct {
	store        ManagerStore
	embedder     Embedder
	interactions InteractionRecorder // may be nil
}

// NewManager creates a manager. The embedder may be nil, in which case items
// are stored without embeddings and stay out of compaction.
func NewManager(store ManagerStore, embedder Embedder, interactions InteractionRecorder) (*Manager, error) {
	if store == nil {
		return nil, &ConfigError{Field: "store", Reason: "must not be nil"}
	}
	return &Manager{store: store, embedder: embedder, interactions: interactions}, nil
}

// AddItem creates a learning item and embeds it on write. An embedding
// failure is logged and leaves the item unembedded rather than failing the
// write; unembedded items are never merged by compaction.
func (m *Manager) AddItem(ctx context.Context, projectID string, typ ItemType, content, context_ string, domains []string) (*LearningItem, error) {
	if !ValidItemType(typ) {
		return nil, fmt.Errorf("unknown item type %q", typ)
	}
	if content == "" {
		return nil, fmt.Errorf("content must not be empty")
	}

	item := NewLearningItem(projectID, typ, content)
	item.Context = context_
	item.Domains = domains

	if m.embedder != nil {
		vec, err := m.embedder.Embed(ctx, item.EmbedText())
		if err != nil {
			log.Printf("[MEMORY] Item %s: embedding failed, storing without: %v", item.ID, err)
		} else {
			item.Embedding = vec
		}
	}

	if err := m.store.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	log.Printf("[MEMORY] Created %s item %s for project %s (embedded=%t)",
		typ, item.ID, projectID, item.Embedding != nil)
	return item, nil
}

// RecordFeedback logs an interaction outcome for an item. Positive feedback
// increments the item's usage count and refreshes lastUsedAt.
func (m *Manager) RecordFeedback(ctx context.Context, projectID, itemID string, positive bool) error {
	if positive {
		item, err := m.store.GetItem(ctx, projectID, itemID)
		if err != nil {
			return fmt.Errorf("loading item %s: %w", itemID, err)
		}
		item.MarkUsed(time.Now().UTC())
		if err := m.store.UpdateItem(ctx, item); err != nil {
			return fmt.Errorf("updating item %s: %w", itemID, err)
		}
	}

	if m.interactions != nil {
		if err := m.interactions.RecordInteraction(ctx, projectID, positive); err != nil {
			return fmt.Errorf("recording interaction: %w", err)
		}
	}
	return nil
}

// ObserveCoOccurrence records that a set of items were all relevant in the
// same interaction, upserting every unordered pair.
func (m *Manager) ObserveCoOccurrence(ctx context.Context, projectID string, itemIDs []string, positive bool) error {
	for i := 0; i < len(itemIDs); i++ {
		for j := i + 1; j < len(itemIDs); j++ {
			if err := m.store.RecordCoOccurrence(ctx, projectID, itemIDs[i], itemIDs[j], positive); err != nil {
				return fmt.Errorf("recording pair %s/%s: %w", itemIDs[i], itemIDs[j], err)
			}
		}
	}
	return nil
}

// PinItem pins an item, clearing any mute.
func (m *Manager) PinItem(ctx context.Context, projectID, itemID string) error {
	now := time.Now().UTC()
	return m.mutate(ctx, projectID, itemID, func(item *LearningItem) { item.Pin(now) })
}

// MuteItem mutes an item, clearing any pin.
func (m *Manager) MuteItem(ctx context.Context, projectID, itemID string) error {
	now := time.Now().UTC()
	return m.mutate(ctx, projectID, itemID, func(item *LearningItem) { item.Mute(now) })
}

// UnpinItem clears both pin and mute.
func (m *Manager) UnpinItem(ctx context.Context, projectID, itemID string) error {
	return m.mutate(ctx, projectID, itemID, func(item *LearningItem) { item.Unpin() })
}

// VerifyItem marks an item as externally verified.
func (m *Manager) VerifyItem(ctx context.Context, projectID, itemID string) error {
	now := time.Now().UTC()
	return m.mutate(ctx, projectID, itemID, func(item *LearningItem) { item.VerifiedAt = &now })
}

func (m *Manager) mutate(ctx context.Context, projectID, itemID string, fn func(*LearningItem)) error {
	item, err := m.store.GetItem(ctx, projectID, itemID)
	if err != nil {
		return fmt.Errorf("loading item %s: %w", itemID, err)
	}
	fn(item)
	if err := m.store.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("updating item %s: %w", itemID, err)
	}
	return nil
}
