package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/becomeliminal/conductor/memory"
)

const itemColumns = `id, project_id, type, content, context, domains, embedding,
	usage_count, verified_at, pinned_at, muted_at, last_used_at, created_at`

// CreateItem inserts a new learning item.
func (s *Store) CreateItem(ctx context.Context, item *memory.LearningItem) error {
	domains, err := json.Marshal(item.Domains)
	if err != nil {
		return fmt.Errorf("marshal domains: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learning_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ProjectID, string(item.Type), item.Content, item.Context,
		string(domains), encodeVector(item.Embedding), item.UsageCount,
		formatTimePtr(item.VerifiedAt), formatTimePtr(item.PinnedAt),
		formatTimePtr(item.MutedAt), formatTimePtr(item.LastUsedAt),
		formatTime(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// GetItem fetches a single item by project and id.
func (s *Store) GetItem(ctx context.Context, projectID, itemID string) (*memory.LearningItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM learning_items
		WHERE project_id = ? AND id = ?`,
		projectID, itemID,
	)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns all items of a project ordered by creation time
// ascending (ties broken by id) so iteration order is reproducible.
func (s *Store) ListItems(ctx context.Context, projectID string) ([]*memory.LearningItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM learning_items
		WHERE project_id = ?
		ORDER BY created_at ASC, id ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*memory.LearningItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItem rewrites all mutable fields of an item.
func (s *Store) UpdateItem(ctx context.Context, item *memory.LearningItem) error {
	domains, err := json.Marshal(item.Domains)
	if err != nil {
		return fmt.Errorf("marshal domains: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE learning_items
		SET content = ?, context = ?, domains = ?, embedding = ?,
			usage_count = ?, verified_at = ?, pinned_at = ?, muted_at = ?,
			last_used_at = ?
		WHERE project_id = ? AND id = ?`,
		item.Content, item.Context, string(domains), encodeVector(item.Embedding),
		item.UsageCount, formatTimePtr(item.VerifiedAt),
		formatTimePtr(item.PinnedAt), formatTimePtr(item.MutedAt),
		formatTimePtr(item.LastUsedAt),
		item.ProjectID, item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// DeleteItem removes an item permanently.
func (s *Store) DeleteItem(ctx context.Context, projectID, itemID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM learning_items WHERE project_id = ? AND id = ?`,
		projectID, itemID,
	)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// MergeCluster writes the prototype's aggregated usage stats and deletes
// every absorbed item inside a single transaction.
func (s *Store) MergeCluster(ctx context.Context, prototype *memory.LearningItem, absorbedIDs []string) error {
	if len(absorbedIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE learning_items
		SET usage_count = ?, last_used_at = ?
		WHERE project_id = ? AND id = ?`,
		prototype.UsageCount, formatTimePtr(prototype.LastUsedAt),
		prototype.ProjectID, prototype.ID,
	)
	if err != nil {
		return fmt.Errorf("update prototype: %w", err)
	}

	placeholders := strings.Repeat("?,", len(absorbedIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(absorbedIDs)+1)
	args = append(args, prototype.ProjectID)
	for _, id := range absorbedIDs {
		args = append(args, id)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM learning_items
		WHERE project_id = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("delete absorbed items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*memory.LearningItem, error) {
	var (
		item       memory.LearningItem
		typ        string
		domains    string
		embedding  []byte
		verifiedAt sql.NullString
		pinnedAt   sql.NullString
		mutedAt    sql.NullString
		lastUsedAt sql.NullString
		createdAt  string
	)

	err := row.Scan(
		&item.ID, &item.ProjectID, &typ, &item.Content, &item.Context,
		&domains, &embedding, &item.UsageCount,
		&verifiedAt, &pinnedAt, &mutedAt, &lastUsedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	item.Type = memory.ItemType(typ)
	item.Embedding = decodeVector(embedding)
	item.VerifiedAt = parseTimePtr(verifiedAt)
	item.PinnedAt = parseTimePtr(pinnedAt)
	item.MutedAt = parseTimePtr(mutedAt)
	item.LastUsedAt = parseTimePtr(lastUsedAt)
	item.CreatedAt = parseTime(createdAt)

	if domains != "" {
		if err := json.Unmarshal([]byte(domains), &item.Domains); err != nil {
			return nil, fmt.Errorf("unmarshal domains: %w", err)
		}
	}
	return &item, nil
}
