package memory

import "context"

// Embedder converts text to vector embeddings.
// Implementations: hash embedder (deterministic, offline) and the ONNX
// embedder (all-MiniLM-L6-v2, behind the onnx build tag).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Store is the persistence backend for all engine entities. Every entity is
// scoped by project ID; nothing is shared across projects.
//
// ListItems returns items in a stable order (created_at ascending) so that
// greedy clustering over the result is reproducible across backends.
type Store interface {
	// Items.
	CreateItem(ctx context.Context, item *LearningItem) error
	GetItem(ctx context.Context, projectID, itemID string) (*LearningItem, error)
	ListItems(ctx context.Context, projectID string) ([]*LearningItem, error)
	UpdateItem(ctx context.Context, item *LearningItem) error
	DeleteItem(ctx context.Context, projectID, itemID string) error

	// MergeCluster applies one compaction merge atomically: the prototype's
	// aggregated stats are written and every absorbed item is deleted, in a
	// single transaction. A failure leaves either the pre-merge or the
	// fully-merged state, never a half-merged one.
	MergeCluster(ctx context.Context, prototype *LearningItem, absorbedIDs []string) error

	// Links.
	CreateLink(ctx context.Context, link *Link) error
	UpdateLinkStrength(ctx context.Context, projectID, linkID string, strength float64) error
	// GetLinkBetween finds a link between two items in either direction.
	// Returns ErrNotFound when none exists.
	GetLinkBetween(ctx context.Context, projectID, itemA, itemB string) (*Link, error)
	ListLinks(ctx context.Context, projectID string) ([]*Link, error)

	// Co-occurrence observations. RecordCoOccurrence canonicalizes the pair
	// and upserts counts; ListCoOccurrences returns pairs with
	// count > minCount ordered by count descending.
	RecordCoOccurrence(ctx context.Context, projectID, itemA, itemB string, positive bool) error
	ListCoOccurrences(ctx context.Context, projectID string, minCount int) ([]*CoOccurrencePair, error)

	// Domain signal cache. GetDomainSignal returns ErrNotFound when the
	// project has never been classified.
	GetDomainSignal(ctx context.Context, projectID string) (*DomainSignal, error)
	PutDomainSignal(ctx context.Context, projectID string, sig *DomainSignal) error

	// Project confidence. GetConfidence returns ErrNotFound when the score
	// has never been computed.
	GetConfidence(ctx context.Context, projectID string) (*ProjectConfidence, error)
	PutConfidence(ctx context.Context, projectID string, conf *ProjectConfidence) error

	// Close releases resources.
	Close() error
}

// MessageSource provides read access to a project's conversation history.
// Messages are returned most-recent-first, up to limit.
type MessageSource interface {
	GetRecentMessages(ctx context.Context, projectID string, limit int) ([]Message, error)
}

// InteractionLog exposes aggregate interaction outcomes per project.
type InteractionLog interface {
	// InteractionCounts returns (positive, total). Both are zero for a
	// project with no logged interactions.
	InteractionCounts(ctx context.Context, projectID string) (positive, total int, err error)
}
