package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/becomeliminal/conductor/memory"
)

const linkColumns = `id, project_id, from_id, to_id, link_type, strength, rationale, created_at, updated_at`

// CreateLink inserts a new directed link.
func (s *Store) CreateLink(ctx context.Context, link *memory.Link) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO links (`+linkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.ProjectID, link.FromID, link.ToID, string(link.LinkType),
		link.Strength, link.Rationale, formatTime(link.CreatedAt), formatTime(link.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

// UpdateLinkStrength sets a link's strength and bumps its update timestamp.
func (s *Store) UpdateLinkStrength(ctx context.Context, projectID, linkID string, strength float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE links SET strength = ?, updated_at = ?
		WHERE project_id = ? AND id = ?`,
		strength, formatTime(time.Now()), projectID, linkID,
	)
	if err != nil {
		return fmt.Errorf("update link strength: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

// GetLinkBetween finds a link between two items in either direction.
func (s *Store) GetLinkBetween(ctx context.Context, projectID, itemA, itemB string) (*memory.Link, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE project_id = ?
		  AND ((from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?))
		LIMIT 1`,
		projectID, itemA, itemB, itemB, itemA,
	)

	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

// ListLinks returns all links for a project.
func (s *Store) ListLinks(ctx context.Context, projectID string) ([]*memory.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+linkColumns+`
		FROM links
		WHERE project_id = ?
		ORDER BY created_at ASC, id ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []*memory.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func scanLink(row rowScanner) (*memory.Link, error) {
	var (
		link      memory.Link
		typ       string
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&link.ID, &link.ProjectID, &link.FromID, &link.ToID, &typ,
		&link.Strength, &link.Rationale, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	link.LinkType = memory.LinkType(typ)
	link.CreatedAt = parseTime(createdAt)
	link.UpdatedAt = parseTime(updatedAt)
	return &link, nil
}

// RecordCoOccurrence upserts a canonicalized undirected pair observation.
// Positive feedback on the joint relevance bumps the positive sub-count.
func (s *Store) RecordCoOccurrence(ctx context.Context, projectID, itemA, itemB string, positive bool) error {
	if itemA == itemB {
		return nil
	}
	a, b := memory.CanonicalPair(itemA, itemB)

	pos := 0
	if positive {
		pos = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cooccurrences (project_id, item_a, item_b, count, positive_count)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(project_id, item_a, item_b)
		DO UPDATE SET count = count + 1, positive_count = positive_count + excluded.positive_count`,
		projectID, a, b, pos,
	)
	if err != nil {
		return fmt.Errorf("record cooccurrence: %w", err)
	}
	return nil
}

// ListCoOccurrences returns pairs with count > minCount, strongest first.
func (s *Store) ListCoOccurrences(ctx context.Context, projectID string, minCount int) ([]*memory.CoOccurrencePair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, item_a, item_b, count, positive_count
		FROM cooccurrences
		WHERE project_id = ? AND count > ?
		ORDER BY count DESC, item_a ASC, item_b ASC`,
		projectID, minCount,
	)
	if err != nil {
		return nil, fmt.Errorf("list cooccurrences: %w", err)
	}
	defer rows.Close()

	var pairs []*memory.CoOccurrencePair
	for rows.Next() {
		var p memory.CoOccurrencePair
		if err := rows.Scan(&p.ProjectID, &p.ItemA, &p.ItemB, &p.Count, &p.PositiveCount); err != nil {
			return nil, fmt.Errorf("scan cooccurrence: %w", err)
		}
		pairs = append(pairs, &p)
	}
	return pairs, rows.Err()
}
