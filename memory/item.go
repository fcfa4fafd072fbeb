package memory

import (
	"time"

	"github.com/google/uuid"
)

// ItemType classifies a LearningItem.
type ItemType string

const (
	TypePattern     ItemType = "pattern"
	TypeAntipattern ItemType = "antipattern"
	TypeDecision    ItemType = "decision"
	TypeInvariant   ItemType = "invariant"
	TypeGoldenPath  ItemType = "golden_path"
)

// ValidItemType reports whether t is one of the known item types.
func ValidItemType(t ItemType) bool {
	switch t {
	case TypePattern, TypeAntipattern, TypeDecision, TypeInvariant, TypeGoldenPath:
		return true
	}
	return false
}

// LearningItem is one distilled fact about a project.
//
// Items are created by conversation analysis or manual action, mutated by
// feedback (usage increments), pin/mute actions, and compaction (the merge
// prototype absorbs the usage stats of merged-away items), and destroyed by
// explicit deletion or by being absorbed during compaction.
type LearningItem struct {
	ID        string
	ProjectID string
	Type      ItemType

	Content string
	Context string   // optional explanatory text
	Domains []string // domain tags, e.g. ["coding", "devops"]

	// Embedding is nil until the provider has vectorized the item.
	// Items without an embedding are never merged by compaction.
	Embedding []float32

	// UsageCount increases monotonically via positive feedback.
	UsageCount int

	// VerifiedAt marks externally verified provenance. Its presence is what
	// the confidence scorer counts as "verified".
	VerifiedAt *time.Time

	// PinnedAt and MutedAt are mutually exclusive: pinning clears muting
	// and vice versa. At most one is set at any time.
	PinnedAt *time.Time
	MutedAt  *time.Time

	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// NewLearningItem creates an item with a fresh ID and creation timestamp.
func NewLearningItem(projectID string, typ ItemType, content string) *LearningItem {
	return &LearningItem{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Type:      typ,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Pin marks the item pinned at t and clears any mute.
func (it *LearningItem) Pin(t time.Time) {
	it.PinnedAt = &t
	it.MutedAt = nil
}

// Mute marks the item muted at t and clears any pin.
func (it *LearningItem) Mute(t time.Time) {
	it.MutedAt = &t
	it.PinnedAt = nil
}

// Unpin clears both pin and mute, returning the item to neutral.
func (it *LearningItem) Unpin() {
	it.PinnedAt = nil
	it.MutedAt = nil
}

// Pinned reports whether the item is currently pinned.
func (it *LearningItem) Pinned() bool { return it.PinnedAt != nil }

// Muted reports whether the item is currently muted.
func (it *LearningItem) Muted() bool { return it.MutedAt != nil }

// Verified reports whether the item carries verification provenance.
func (it *LearningItem) Verified() bool { return it.VerifiedAt != nil }

// MarkUsed records positive feedback: bumps the usage count and refreshes
// the last-used timestamp.
func (it *LearningItem) MarkUsed(t time.Time) {
	it.UsageCount++
	it.LastUsedAt = &t
}

// AgeDays returns the item's age in (fractional) days at time now.
func (it *LearningItem) AgeDays(now time.Time) float64 {
	return now.Sub(it.CreatedAt).Hours() / 24
}

// EmbedText returns the text representation fed to the embedding provider.
func (it *LearningItem) EmbedText() string {
	if it.Context == "" {
		return it.Content
	}
	return it.Content + "\n" + it.Context
}

// LinkType classifies a directed edge between two items.
type LinkType string

const (
	LinkSupports    LinkType = "supports"
	LinkContradicts LinkType = "contradicts"
)

// Link is a directed edge between two LearningItems of the same project.
//
// Strength is derived from observed co-occurrence evidence and is never
// silently lowered by automated backfill; manually established links keep
// their strength unless a strictly stronger signal arrives.
type Link struct {
	ID        string
	ProjectID string
	FromID    string
	ToID      string
	LinkType  LinkType
	Strength  float64 // 0.0-1.0
	Rationale string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLink creates a link with a fresh ID and timestamps.
func NewLink(projectID, fromID, toID string, typ LinkType, strength float64, rationale string) *Link {
	now := time.Now().UTC()
	return &Link{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		FromID:    fromID,
		ToID:      toID,
		LinkType:  typ,
		Strength:  strength,
		Rationale: rationale,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CoOccurrencePair records how often two items were both relevant in the
// same interaction. The pair is undirected and stored canonicalized
// (ItemA < ItemB lexicographically).
type CoOccurrencePair struct {
	ProjectID     string
	ItemA         string
	ItemB         string
	Count         int // times both items were relevant together
	PositiveCount int // times that joint relevance got positive feedback
}

// CanonicalPair orders an unordered item pair for storage and lookup.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// DomainScore is one ranked entry of a DomainSignal.
type DomainScore struct {
	Domain     string
	Confidence float64 // 0-1, top domain normalized to 1.0
	Evidence   int     // messages that contributed hits
}

// DomainSignal is the cached topical classification of a project.
type DomainSignal struct {
	Primary               string // dominant domain, or "general"
	Domains               []DomainScore
	ConversationsAnalyzed int
	ComputedAt            time.Time
}

// GeneralDomain is the fallback primary when no domain qualifies.
const GeneralDomain = "general"

// Stale reports whether the signal is older than maxAge at time now.
func (s *DomainSignal) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.ComputedAt) > maxAge
}

// GeneralSignal returns the zero-evidence fallback signal used when a
// project has no usable classification.
func GeneralSignal() *DomainSignal {
	return &DomainSignal{
		Primary:    GeneralDomain,
		ComputedAt: time.Now().UTC(),
	}
}

// ProjectConfidence is the single 0-100 trust score for a project. It is
// recomputed on demand and always derivable from the current item set plus
// the interaction log.
type ProjectConfidence struct {
	Score      float64
	ComputedAt time.Time
}

// Message is one conversation message as exposed by a MessageSource.
type Message struct {
	Content   string
	Role      string // "user" or "assistant"
	CreatedAt time.Time
}
